package main

import (
	"net/http"
	"strconv"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-gl/mathgl/mgl64"
	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	newton "github.com/monkeyman192/NMS-Newton"
	"github.com/monkeyman192/NMS-Newton/telemetry"
)

type simulationRequest struct {
	Running  *bool    `json:"running"`
	TimeRate *float64 `json:"time_rate"`
	Paused   *bool    `json:"paused"`
}

type observerRequest struct {
	Nearest  *int        `json:"nearest"`
	Distance float64     `json:"distance"`
	Position *mgl64.Vec3 `json:"position"`
}

func newRouter(l *loop, hub *telemetry.Hub, reg *prometheus.Registry, logger kitlog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), cors.Default(), requestLogger(logger))

	r.GET("/bodies", func(c *gin.Context) {
		var snap newton.Snapshot
		if err := l.do(c.Request.Context(), func(ctrl *newton.Controller) { snap = ctrl.Snapshot() }); err != nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, snap)
	})

	r.GET("/bodies/:index/period", func(c *gin.Context) {
		index, err := strconv.Atoi(c.Param("index"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid index"})
			return
		}
		var label string
		if err := l.do(c.Request.Context(), func(ctrl *newton.Controller) { label = ctrl.PeriodLabel(index) }); err != nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		if label == "" {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown body"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"index": index, "label": label})
	})

	r.POST("/simulation", func(c *gin.Context) {
		var req simulationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		var rateErr error
		err := l.do(c.Request.Context(), func(ctrl *newton.Controller) {
			if req.TimeRate != nil {
				rateErr = ctrl.SetTimeRate(*req.TimeRate)
			}
			if req.Running != nil {
				ctrl.SetRunning(*req.Running)
			}
			if req.Paused != nil {
				l.paused = *req.Paused
			}
		})
		if err == nil {
			err = rateErr
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	})

	r.POST("/observer", func(c *gin.Context) {
		var req observerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.Nearest == nil && req.Position == nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "nearest or position required"})
			return
		}
		err := l.do(c.Request.Context(), func(*newton.Controller) {
			if req.Position != nil {
				l.position, l.tracked = *req.Position, true
				return
			}
			l.tracked = false
			l.observer = newton.ObserverSample{Nearest: *req.Nearest, Distance: req.Distance}
		})
		if err != nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	})

	r.POST("/orbit/enter", func(c *gin.Context) {
		var locked bool
		if err := l.do(c.Request.Context(), func(ctrl *newton.Controller) {
			ctrl.OnObserverUpdated(l.observer)
			locked = ctrl.OnOrbitEntered()
		}); err != nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"locked": locked})
	})

	r.POST("/orbit/exit", func(c *gin.Context) {
		if err := l.do(c.Request.Context(), func(ctrl *newton.Controller) { ctrl.OnOrbitExited() }); err != nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	})

	r.POST("/save/:slot", slotHandler(l, (*newton.Controller).Save))
	r.POST("/load/:slot", slotHandler(l, (*newton.Controller).Load))

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	r.GET("/ws", gin.WrapH(hub))
	return r
}

func slotHandler(l *loop, f func(*newton.Controller, int) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		slot, err := strconv.Atoi(c.Param("slot"))
		if err != nil || slot < 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid slot"})
			return
		}
		var opErr error
		if err := l.do(c.Request.Context(), func(ctrl *newton.Controller) { opErr = f(ctrl, slot) }); err != nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		if opErr != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": opErr.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func requestLogger(logger kitlog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = kitlog.NewNopLogger()
	}
	logger = kitlog.With(logger, "subsys", "http")
	return func(c *gin.Context) {
		c.Next()
		level.Debug(logger).Log("method", c.Request.Method, "path", c.FullPath(), "status", c.Writer.Status())
	}
}
