// Package refresh re-runs a merge pass whenever the host's simulated clock
// moves. The host gives no reliable change notification, so it polls.
package refresh

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const DefaultInterval = time.Second

var tracer = otel.Tracer("mapembed/refresh")

// Loop runs at most one pass per distinct clock value. Steps execute one at
// a time on the goroutine calling Run, so passes never overlap.
type Loop struct {
	Clock    func() int64
	Pass     func(ctx context.Context, now int64) error
	Interval time.Duration
	Logger   *log.Logger

	lastNow  int64
	observed bool
}

// Step runs a pass if the clock changed since the last successful one.
// A failed pass leaves the last value alone so the next step retries.
func (l *Loop) Step(ctx context.Context) (bool, error) {
	now := l.Clock()
	if l.observed && now == l.lastNow {
		return false, nil
	}

	ctx, span := tracer.Start(ctx, "refresh.pass", trace.WithAttributes(
		attribute.Int64("galaxy.now", now),
		attribute.Int64("galaxy.previous", l.lastNow),
	))
	defer span.End()

	if err := l.Pass(ctx, now); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return true, err
	}

	l.lastNow = now
	l.observed = true
	return true, nil
}

// Run checks the clock immediately and then every Interval until ctx ends.
func (l *Loop) Run(ctx context.Context) error {
	interval := l.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	logger := l.Logger
	if logger == nil {
		logger = log.Default()
	}

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			if _, err := l.Step(ctx); err != nil {
				logger.Printf("refresh pass failed: %v", err)
			}
			timer.Reset(interval)
		}
	}
}
