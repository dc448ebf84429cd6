package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"Verdict/internal/domain/models"
	"Verdict/internal/domain/repository"
	"Verdict/pkg/logger"
)

// Feeds bundles the five upstream providers one gather pass fans out to.
type Feeds struct {
	Market      repository.MarketFeed
	Sentiment   repository.SentimentFeed
	Onchain     repository.OnchainFeed
	Oracle      repository.OracleFeed
	Attestation repository.AttestationFeed
}

// Gatherer collects one immutable signal bundle per cycle. Every feed is
// fetched concurrently under its own timeout; a failing feed degrades the
// bundle instead of failing the cycle.
type Gatherer struct {
	feeds   Feeds
	timeout time.Duration
	metrics repository.Metrics
	log     *logger.Logger
}

// NewGatherer creates a gatherer. timeout bounds each individual feed fetch.
func NewGatherer(feeds Feeds, timeout time.Duration, metrics repository.Metrics, log *logger.Logger) *Gatherer {
	return &Gatherer{feeds: feeds, timeout: timeout, metrics: metrics, log: log}
}

// Gather fans out to all feeds and assembles the bundle. Feeds that error or
// time out leave neutral values and are listed in Degraded. Gather itself
// never fails; a fully dark upstream produces a bundle that fails closed
// downstream.
func (g *Gatherer) Gather(ctx context.Context, symbol string) *models.SignalBundle {
	bundle := &models.SignalBundle{
		Symbol:    symbol,
		RiskLevel: models.RiskMedium,
		Timestamp: time.Now().UTC(),
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		degraded []string
	)
	fail := func(feed string, err error) {
		mu.Lock()
		degraded = append(degraded, feed)
		mu.Unlock()

		g.metrics.RecordFeedError(feed)
		g.log.Warn("feed degraded, using neutral values",
			logger.String("feed", feed),
			logger.String("symbol", symbol),
			logger.Error(err))
	}

	run := func(feed string, fetch func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fctx, cancel := context.WithTimeout(ctx, g.timeout)
			defer cancel()
			if err := fetch(fctx); err != nil {
				fail(feed, err)
			}
		}()
	}

	run(models.FeedMarket, func(fctx context.Context) error {
		q, err := g.feeds.Market.Quote(fctx, symbol)
		if err != nil {
			return err
		}
		bundle.HasPrice = true
		bundle.Price = q.Price
		bundle.Volume24h = q.Volume24h
		bundle.PctChange1h = q.PctChange1h
		bundle.PctChange24 = q.PctChange24
		bundle.PctChange7d = q.PctChange7d
		return nil
	})

	run(models.FeedSentiment, func(fctx context.Context) error {
		r, err := g.feeds.Sentiment.Sentiment(fctx, symbol)
		if err != nil {
			return err
		}
		bundle.SentimentScore = r.Score
		bundle.SentimentShortTerm = r.ShortTerm
		bundle.RiskLevel = r.RiskLevel
		return nil
	})

	run(models.FeedOnchain, func(fctx context.Context) error {
		r, err := g.feeds.Onchain.Onchain(fctx, symbol)
		if err != nil {
			return err
		}
		bundle.OnchainActivity = r.Activity
		bundle.OnchainLiquidity = r.Liquidity
		return nil
	})

	run(models.FeedOracle, func(fctx context.Context) error {
		price, err := g.feeds.Oracle.ReferencePrice(fctx, symbol)
		if err != nil {
			return err
		}
		bundle.HasOraclePrice = true
		bundle.OraclePrice = price
		return nil
	})

	run(models.FeedAttestation, func(fctx context.Context) error {
		proof, err := g.feeds.Attestation.Proof(fctx, symbol)
		if err != nil {
			return err
		}
		bundle.AttestationProof = proof
		return nil
	})

	wg.Wait()

	sort.Strings(degraded)
	bundle.Degraded = degraded
	return bundle
}
