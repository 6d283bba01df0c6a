package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	newton "github.com/monkeyman192/NMS-Newton"
	"github.com/monkeyman192/NMS-Newton/memhost"
	"github.com/monkeyman192/NMS-Newton/telemetry"
)

// newtond runs a headless in-memory host and moves its bodies the way the
// in-game mod would, exposing control and telemetry over HTTP.

var (
	confDir    string
	systemSeed uint64
	planets    int
	moons      int
	verbose    bool
)

func init() {
	flag.StringVar(&confDir, "config", "", "directory holding conf.toml (defaults to $NEWTON_CONFIG)")
	flag.Uint64Var(&systemSeed, "seed", 275850, "seed of the generated system")
	flag.IntVar(&planets, "planets", 4, "number of planets")
	flag.IntVar(&moons, "moons", 2, "number of moons")
	flag.BoolVar(&verbose, "verbose", false, "debug logging")
}

func main() {
	flag.Parse()
	cfg, err := newton.LoadConfig(confDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not load configuration: %s\n", err)
		os.Exit(1)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	logger := newton.NewLogger(os.Stderr, cfg.LogLevel)
	if err := run(cfg, logger); err != nil {
		level.Error(logger).Log("message", "exiting", "err", err)
		os.Exit(1)
	}
}

func run(cfg newton.Config, logger kitlog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := newton.NewMetrics(reg)
	if err != nil {
		return err
	}

	specs, err := memhost.RandomSystem(systemSeed, planets, moons)
	if err != nil {
		return err
	}
	universe, err := memhost.NewUniverse(specs)
	if err != nil {
		return err
	}
	ctrl := newton.NewController(cfg, universe.Scene, newton.NewStore(cfg.StateDir), metrics, logger)
	hub := telemetry.NewHub(cfg.Telemetry, cfg.Origins, logger)
	defer hub.Close()
	ctrl.OnTick(hub.Publish)
	if err := universe.Load(ctrl); err != nil {
		return err
	}

	loop := newLoop(ctrl, universe, cfg.FPS)
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           newRouter(loop, hub, reg, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		level.Info(logger).Log("message", "listening", "addr", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()
	go loop.run(ctx)

	select {
	case <-ctx.Done():
	case err := <-errc:
		return err
	}
	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	return srv.Shutdown(shutdownCtx)
}
