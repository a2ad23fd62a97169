// Package jobs runs the periodic session sweeps: expiring sessions whose
// timeout has passed and warning viewers of sessions about to expire.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const DefaultInterval = time.Minute

var tracer = otel.Tracer("github.com/cimillas/live-commerce/internal/jobs")

// SessionSweeper is implemented by app.SessionService.
type SessionSweeper interface {
	ProcessExpiredSessions(ctx context.Context) (int, error)
	SendTimeoutWarnings(ctx context.Context) (int, error)
}

// Result counts what one pass did.
type Result struct {
	Expired int
	Warned  int
}

type Sweeper struct {
	sessions SessionSweeper
	interval time.Duration
	logger   *slog.Logger
}

func NewSweeper(sessions SessionSweeper, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{sessions: sessions, interval: interval, logger: logger}
}

// RunOnce expires overdue sessions, then sends warnings. A failing expiry pass
// does not skip the warning pass; both errors are returned joined.
func (s *Sweeper) RunOnce(ctx context.Context) (Result, error) {
	ctx, span := tracer.Start(ctx, "Sweeper.RunOnce")
	defer span.End()

	var (
		res  Result
		errs []error
		err  error
	)
	res.Expired, err = s.sessions.ProcessExpiredSessions(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("process expired sessions: %w", err))
	}
	res.Warned, err = s.sessions.SendTimeoutWarnings(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("send timeout warnings: %w", err))
	}

	span.SetAttributes(
		attribute.Int("sweep.expired", res.Expired),
		attribute.Int("sweep.warned", res.Warned),
	)
	joined := errors.Join(errs...)
	if joined != nil {
		span.RecordError(joined)
	}
	return res, joined
}

// Run sweeps immediately and then on every tick until ctx is done. Pass errors
// are logged, never returned.
func (s *Sweeper) Run(ctx context.Context) error {
	s.logger.Info("session sweeper started", "interval", s.interval)
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("session sweeper stopped")
			return nil
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	res, err := s.RunOnce(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("session sweep failed", "error", err)
	}
	if res.Expired > 0 || res.Warned > 0 {
		s.logger.Info("session sweep", "expired", res.Expired, "warned", res.Warned)
	}
}
