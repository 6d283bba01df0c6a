package main

import (
	"context"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	newton "github.com/monkeyman192/NMS-Newton"
	"github.com/monkeyman192/NMS-Newton/memhost"
)

// loop plays the part of the host update thread: it is the only goroutine
// touching the controller. Everything else posts commands to it.
type loop struct {
	ctrl     *newton.Controller
	universe *memhost.Universe
	period   time.Duration
	cmds     chan func()
	paused   bool
	observer newton.ObserverSample
	position mgl64.Vec3 // Observer position, when tracked
	tracked  bool
}

func newLoop(ctrl *newton.Controller, universe *memhost.Universe, fps int) *loop {
	return &loop{
		ctrl:     ctrl,
		universe: universe,
		period:   time.Second / time.Duration(fps),
		cmds:     make(chan func()),
		observer: newton.ObserverSample{Nearest: newton.NoBody},
	}
}

func (l *loop) run(ctx context.Context) {
	ticker := time.NewTicker(l.period)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-l.cmds:
			cmd()
		case now := <-ticker.C:
			l.frame(now.Sub(last).Seconds())
			last = now
		}
	}
}

// frame replays the host call order of one frame: the timer is queried,
// the player environment is updated, then the application update runs.
func (l *loop) frame(elapsed float64) {
	l.ctrl.OnFrameTime(elapsed)
	if l.tracked {
		l.observer.Nearest, l.observer.Distance = l.universe.Nearest(l.position)
	}
	l.ctrl.OnObserverUpdated(l.observer)
	l.ctrl.OnFrameTick(l.paused)
}

// do runs f on the loop goroutine and waits for it.
func (l *loop) do(ctx context.Context, f func(*newton.Controller)) error {
	done := make(chan struct{})
	cmd := func() {
		defer close(done)
		f(l.ctrl)
	}
	select {
	case l.cmds <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
