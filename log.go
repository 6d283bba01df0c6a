package newton

import (
	"io"
	"os"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// NewLogger returns a logfmt logger writing to w, filtered at the provided level
// ("debug", "info", "warn" or "error"; anything else means info).
func NewLogger(w io.Writer, lvl string) kitlog.Logger {
	if w == nil {
		w = os.Stderr
	}
	logger := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(w))
	logger = kitlog.With(logger, "ts", kitlog.DefaultTimestampUTC, "app", "newton")
	return level.NewFilter(logger, levelOption(lvl))
}

func levelOption(lvl string) level.Option {
	switch lvl {
	case "debug":
		return level.AllowDebug()
	case "warn":
		return level.AllowWarn()
	case "error":
		return level.AllowError()
	default:
		return level.AllowInfo()
	}
}

func subsys(logger kitlog.Logger, name string) kitlog.Logger {
	if logger == nil {
		logger = kitlog.NewNopLogger()
	}
	return kitlog.With(logger, "subsys", name)
}
