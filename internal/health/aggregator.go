package health

import (
	"context"
	"sync"
	"time"

	"Verdict/internal/domain/models"
	"Verdict/internal/domain/repository"
	"Verdict/pkg/logger"
)

// Probe checks one component. A nil error with degraded=false is healthy,
// degraded=true is a soft warning, an error is offline.
type Probe func(ctx context.Context) (degraded bool, err error)

// Config holds the polling parameters.
type Config struct {
	// Budget for one probe. A probe that blocks past it reads as offline.
	PollBudget time.Duration
	// Interval of the background polling loop.
	Interval time.Duration
	// Records retained per component.
	HistorySize int
	// Components whose offline status takes the overall rollup offline.
	// Non-critical components degrade it at most.
	Critical []string
}

// DefaultConfig returns production polling parameters.
func DefaultConfig() Config {
	return Config{
		PollBudget:  time.Second,
		Interval:    10 * time.Second,
		HistorySize: 100,
		Critical:    []string{models.FeedMarket, models.FeedOracle},
	}
}

// Aggregator polls registered component probes and rolls their statuses into
// one overall verdict. Polling runs on its own loop so a slow component never
// stretches an evaluation cycle.
type Aggregator struct {
	cfg     Config
	metrics repository.Metrics
	log     *logger.Logger

	mu      sync.RWMutex
	probes  map[string]Probe
	order   []string
	latest  map[string]models.HealthRecord
	history map[string][]models.HealthRecord
}

// New creates an aggregator with no registered components.
func New(cfg Config, metrics repository.Metrics, log *logger.Logger) *Aggregator {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = DefaultConfig().HistorySize
	}
	return &Aggregator{
		cfg:     cfg,
		metrics: metrics,
		log:     log,
		probes:  make(map[string]Probe),
		latest:  make(map[string]models.HealthRecord),
		history: make(map[string][]models.HealthRecord),
	}
}

// Register adds a component probe. Registering an existing name replaces its
// probe and keeps its history.
func (a *Aggregator) Register(component string, probe Probe) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.probes[component]; !ok {
		a.order = append(a.order, component)
	}
	a.probes[component] = probe
}

// Poll probes one component within the poll budget and records the outcome.
// It never returns an error: timeouts and probe failures become offline
// records.
func (a *Aggregator) Poll(ctx context.Context, component string) models.HealthRecord {
	a.mu.RLock()
	probe, ok := a.probes[component]
	a.mu.RUnlock()

	rec := models.HealthRecord{
		Component:   component,
		LastChecked: time.Now().UTC(),
	}
	if !ok {
		rec.Status = models.StatusOffline
		rec.Err = "component not registered"
		a.record(rec)
		return rec
	}

	pctx, cancel := context.WithTimeout(ctx, a.cfg.PollBudget)
	defer cancel()

	type outcome struct {
		degraded bool
		err      error
	}
	done := make(chan outcome, 1)
	start := time.Now()
	go func() {
		degraded, err := probe(pctx)
		done <- outcome{degraded, err}
	}()

	select {
	case o := <-done:
		rec.LatencyMS = time.Since(start).Milliseconds()
		switch {
		case o.err != nil:
			rec.Status = models.StatusOffline
			rec.Err = o.err.Error()
		case o.degraded:
			rec.Status = models.StatusDegraded
		default:
			rec.Status = models.StatusHealthy
		}
	case <-pctx.Done():
		// The probe goroutine is abandoned; its late result drains into the
		// buffered channel.
		rec.LatencyMS = time.Since(start).Milliseconds()
		rec.Status = models.StatusOffline
		rec.Err = "poll budget exceeded"
	}

	a.record(rec)
	return rec
}

// PollAll probes every registered component concurrently.
func (a *Aggregator) PollAll(ctx context.Context) {
	a.mu.RLock()
	components := append([]string(nil), a.order...)
	a.mu.RUnlock()

	var wg sync.WaitGroup
	for _, c := range components {
		wg.Add(1)
		go func(component string) {
			defer wg.Done()
			a.Poll(ctx, component)
		}(c)
	}
	wg.Wait()
}

// Aggregate rolls the latest records into one snapshot. Overall is offline
// when any critical component is offline, degraded when anything is degraded
// or a non-critical component is offline, healthy otherwise.
func (a *Aggregator) Aggregate() models.AggregateHealth {
	a.mu.RLock()
	defer a.mu.RUnlock()

	agg := models.AggregateHealth{
		Overall:    models.StatusHealthy,
		Components: make(map[string]models.HealthRecord, len(a.latest)),
		Timestamp:  time.Now().UTC(),
	}

	var latencySum int64
	for _, c := range a.order {
		rec, ok := a.latest[c]
		if !ok {
			continue
		}
		agg.Components[c] = rec
		agg.Summary.Total++
		latencySum += rec.LatencyMS

		switch rec.Status {
		case models.StatusHealthy:
			agg.Summary.Healthy++
		case models.StatusDegraded:
			agg.Summary.Degraded++
			if agg.Overall == models.StatusHealthy {
				agg.Overall = models.StatusDegraded
			}
		case models.StatusOffline:
			agg.Summary.Offline++
			if a.isCritical(c) {
				agg.Overall = models.StatusOffline
			} else if agg.Overall == models.StatusHealthy {
				agg.Overall = models.StatusDegraded
			}
		}
	}
	if agg.Summary.Total > 0 {
		agg.Summary.AvgLatencyMS = float64(latencySum) / float64(agg.Summary.Total)
	}
	return agg
}

// History returns the retained records for a component, oldest first.
func (a *Aggregator) History(component string) []models.HealthRecord {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]models.HealthRecord(nil), a.history[component]...)
}

// Run polls all components on the configured interval until ctx is canceled.
// One immediate pass runs before the first tick.
func (a *Aggregator) Run(ctx context.Context) {
	a.log.Info("health polling started",
		logger.Duration("interval", a.cfg.Interval),
		logger.Duration("budget", a.cfg.PollBudget))

	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()

	a.PollAll(ctx)
	for {
		select {
		case <-ctx.Done():
			a.log.Info("health polling stopped")
			return
		case <-ticker.C:
			a.PollAll(ctx)
		}
	}
}

func (a *Aggregator) record(rec models.HealthRecord) {
	a.mu.Lock()
	a.latest[rec.Component] = rec
	h := append(a.history[rec.Component], rec)
	if len(h) > a.cfg.HistorySize {
		h = h[len(h)-a.cfg.HistorySize:]
	}
	a.history[rec.Component] = h
	a.mu.Unlock()

	a.metrics.RecordComponentHealth(rec.Component, rec.Status)
	if rec.Status == models.StatusOffline {
		a.log.Warn("component offline",
			logger.String("component", rec.Component),
			logger.String("error", rec.Err))
	}
}

func (a *Aggregator) isCritical(component string) bool {
	for _, c := range a.cfg.Critical {
		if c == component {
			return true
		}
	}
	return false
}
