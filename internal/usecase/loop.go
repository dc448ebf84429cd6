package usecase

import (
	"context"
	"time"

	"Verdict/pkg/logger"
)

// StartLoop evaluates the session on a fixed interval until ctx is canceled,
// streaming results on the returned channel. The first cycle runs immediately.
// A slow consumer drops results rather than stalling the loop; the channel is
// closed on shutdown.
func (e *Evaluator) StartLoop(ctx context.Context, s Session, interval time.Duration) <-chan *CycleResult {
	out := make(chan *CycleResult, 1)

	go func() {
		defer close(out)

		e.log.Info("evaluation loop started",
			logger.String("session", s.Key),
			logger.String("symbol", s.Symbol),
			logger.Duration("interval", interval))

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			res, err := e.Evaluate(ctx, s)
			if err != nil {
				e.log.Error("evaluation cycle failed", logger.Error(err),
					logger.String("session", s.Key))
			} else {
				select {
				case out <- res:
				default:
					e.log.Warn("cycle result dropped, consumer too slow",
						logger.String("session", s.Key))
				}
			}

			select {
			case <-ctx.Done():
				e.log.Info("evaluation loop stopped", logger.String("session", s.Key))
				return
			case <-ticker.C:
			}
		}
	}()

	return out
}
