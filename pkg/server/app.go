package server

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"Verdict/internal/domain/models"
	"Verdict/internal/health"
	"Verdict/internal/usecase"
	"Verdict/pkg/config"
	"Verdict/pkg/logger"
)

// App owns the process lifecycle: it starts the health poller and one
// evaluation loop per configured session, blocks until SIGINT or SIGTERM,
// then drains the loops and closes every backend.
type App struct {
	cfg    *config.Config
	log    *logger.Logger
	eval   *usecase.Evaluator
	health *health.Aggregator

	closers []func() error
}

// New creates the application. closers run in order during shutdown; nil
// entries are skipped.
func New(cfg *config.Config, log *logger.Logger, eval *usecase.Evaluator, h *health.Aggregator, closers ...func() error) *App {
	return &App{cfg: cfg, log: log, eval: eval, health: h, closers: closers}
}

// Run blocks until a termination signal arrives.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.health.Run(ctx)
	}()

	for _, sc := range a.cfg.Sessions {
		s := usecase.Session{
			Key:          sc.Key,
			Symbol:       sc.Symbol,
			Profile:      models.RiskProfile(sc.Profile),
			PortfolioUSD: sc.PortfolioUSD,
		}
		out := a.eval.StartLoop(ctx, s, a.cfg.Loop.Interval)

		wg.Add(1)
		go func(s usecase.Session, out <-chan *usecase.CycleResult) {
			defer wg.Done()
			a.consume(s, out)
		}(s, out)
	}

	a.log.Info("verdict started",
		logger.Int("sessions", len(a.cfg.Sessions)),
		logger.Duration("interval", a.cfg.Loop.Interval),
		logger.String("environment", a.cfg.Environment))

	<-ctx.Done()
	a.log.Info("shutdown signal received")

	wg.Wait()
	a.close()
	a.log.Info("verdict stopped")
	return nil
}

func (a *App) consume(s usecase.Session, out <-chan *usecase.CycleResult) {
	for res := range out {
		rec := res.Recommendation
		fields := []logger.Field{
			logger.String("session", s.Key),
			logger.String("symbol", rec.Symbol),
			logger.String("signal", string(rec.Signal)),
			logger.Float64("confidence", rec.Confidence),
			logger.Float64("score", rec.SignalScore),
			logger.Bool("verified", rec.Verified),
			logger.Duration("took", res.Duration),
		}
		if rec.Verified {
			a.log.Info("cycle", fields...)
		} else {
			a.log.Warn("cycle blocked", append(fields,
				logger.String("reason", rec.BlockReason))...)
		}
	}
}

func (a *App) close() {
	for _, c := range a.closers {
		if c == nil {
			continue
		}
		if err := c(); err != nil {
			a.log.Error("close failed", logger.Error(err))
		}
	}
}
