// Package graceful tracks in-flight work so shutdown can drain it.
package graceful

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"

	"github.com/fuchsia74/grok-relay/common/logger"
)

// ErrDraining is reported to requests arriving after shutdown began.
var ErrDraining = errors.New("server is shutting down")

var (
	inFlightRequests atomic.Int64
	draining         atomic.Bool

	wg sync.WaitGroup
)

// BeginRequest increments the in-flight request counter and returns a function
// to decrement it. Use with `defer` at the top of request handlers/middlewares.
func BeginRequest() func() {
	inFlightRequests.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() { inFlightRequests.Add(-1) })
	}
}

// InFlight returns the number of requests currently being served.
func InFlight() int64 { return inFlightRequests.Load() }

// GoCritical runs fn in a tracked goroutine that Drain waits for.
func GoCritical(ctx context.Context, name string, fn func(context.Context)) {
	wg.Go(func() {
		start := time.Now()
		logger.Logger.Debug("critical task start", zap.String("name", name))
		fn(ctx)
		logger.Logger.Debug("critical task done", zap.String("name", name), zap.Duration("elapsed", time.Since(start)))
	})
}

// Drain waits until tracked tasks finished and no request is in flight,
// bounded by ctx.
func Drain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	tasksDone := false
	for {
		select {
		case <-done:
			tasksDone = true
			done = nil
		case <-ctx.Done():
			logger.Logger.Error("graceful drain timeout",
				zap.Bool("tasks_done", tasksDone),
				zap.Int64("in_flight_requests", InFlight()))
			return errors.Wrap(ctx.Err(), "drain in-flight work")
		case <-ticker.C:
		}

		if tasksDone && InFlight() == 0 {
			logger.Logger.Info("graceful drain complete")
			return nil
		}
	}
}

// SetDraining flips the draining flag to true.
func SetDraining() { draining.Store(true) }

// IsDraining returns whether the server is currently draining.
func IsDraining() bool { return draining.Load() }
