package worker

import (
	"context"
	"time"

	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/bangbuy/notification-service/internal/service/delivery"
)

type sweepService interface {
	Sweep(ctx context.Context, strategy retry.Strategy) (delivery.Summary, error)
}

// Sweeper periodically runs delivery sweeps. An external scheduler hitting
// the HTTP trigger endpoint coexists safely with the ticker: both paths go
// through the same atomic claim in the job store.
type Sweeper struct {
	service  sweepService
	interval time.Duration
}

func NewSweeper(s sweepService, interval time.Duration) *Sweeper {
	return &Sweeper{service: s, interval: interval}
}

// Run sweeps on every tick until the context is cancelled. An interval of
// zero disables the internal ticker entirely.
func (s *Sweeper) Run(ctx context.Context, strategy retry.Strategy) {
	if s.interval <= 0 {
		zlog.Logger.Info().Msg("internal sweeper disabled")
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			zlog.Logger.Info().Msg("sweeper stopped")
			return
		case <-ticker.C:
			sum, err := s.service.Sweep(ctx, strategy)
			if err != nil {
				zlog.Logger.Error().Err(err).Msg("sweep failed")
				continue
			}

			if sum.Processed > 0 {
				zlog.Logger.Info().
					Int("processed", sum.Processed).
					Int("sent", sum.Sent).
					Int("failed", sum.Failed).
					Int("errors", sum.Errors).
					Msg("sweep finished")
			}
		}
	}
}
