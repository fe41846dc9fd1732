package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fiffu/linewatch/config"
	"github.com/fiffu/linewatch/lib/models"
	"github.com/fiffu/linewatch/lib/navitia"
	"go.uber.org/zap"
)

type Provider interface {
	FetchDisruptions(ctx context.Context) ([]navitia.RawDisruption, error)
}

type DisruptionStore interface {
	Exists(ctx context.Context, id string) (bool, error)
	Insert(ctx context.Context, d *models.Disruption) error
}

type SubscriptionResolver interface {
	TokensForDisruption(ctx context.Context, d *models.Disruption) ([]string, error)
}

type Gateway interface {
	Send(ctx context.Context, tokens []string, title, body string) (*models.Delivery, error)
}

// Orchestrator runs ingestion cycles: fetch, normalize, dedupe, persist, notify.
type Orchestrator struct {
	log      *zap.Logger
	provider Provider
	store    DisruptionStore
	resolver SubscriptionResolver
	gateway  Gateway

	concurrency int
}

func NewOrchestrator(cfg *config.Config, log *zap.Logger, provider Provider, store DisruptionStore, resolver SubscriptionResolver, gateway Gateway) *Orchestrator {
	concurrency := cfg.Ingest.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Orchestrator{log, provider, store, resolver, gateway, concurrency}
}

// RunCycle processes the current provider snapshot. Only a fetch failure is
// returned as an error; every per-record failure is logged and counted.
func (o *Orchestrator) RunCycle(ctx context.Context) (*CycleReport, error) {
	report := newCycleReport()
	log := o.log.Sugar().With("cycle_id", report.ID)

	log.Info("Fetching all the disruptions...")
	raws, err := o.provider.FetchDisruptions(ctx)
	if err != nil {
		report.finish(CycleAborted)
		log.Errorw("Cycle aborted", "err", err)
		return report, fmt.Errorf("%w: %w", ErrFetchFailure, err)
	}

	report.State = CycleProcessing
	report.Fetched = len(raws)

	for start := 0; start < len(raws); start += o.concurrency {
		batch := raws[start:min(start+o.concurrency, len(raws))]
		o.processBatch(ctx, log, batch, report)
	}

	report.finish(CycleCompleted)
	log.Infow("Cycle completed", report.logFields()...)
	return report, nil
}

func (o *Orchestrator) processBatch(ctx context.Context, log *zap.SugaredLogger, batch []navitia.RawDisruption, report *CycleReport) {
	var wg sync.WaitGroup
	for i := range batch {
		wg.Add(1)

		go func(raw *navitia.RawDisruption) {
			defer wg.Done()
			report.add(o.process(ctx, log, raw))
		}(&batch[i])
	}
	wg.Wait()
}

func (o *Orchestrator) process(ctx context.Context, log *zap.SugaredLogger, raw *navitia.RawDisruption) recordMetrics {
	d, err := Normalize(raw)
	if err != nil {
		log.Warnw("Skipping malformed disruption", "err", err)
		return recordMetrics{Malformed: 1}
	}
	log = log.With("disruption_id", d.ID)

	exists, err := o.store.Exists(ctx, d.ID)
	if err != nil {
		log.Errorw("Failed to check disruption", "err", err)
		return recordMetrics{Errored: 1}
	}
	if exists {
		return recordMetrics{Known: 1}
	}

	tokens, err := o.resolver.TokensForDisruption(ctx, d)
	if err != nil {
		log.Errorw("Failed to resolve subscribers", "err", err)
		return recordMetrics{Errored: 1}
	}

	// The insert claims the disruption. Losing the race to another writer
	// means someone else owns the notification.
	switch err := o.store.Insert(ctx, d); {
	case errors.Is(err, ErrAlreadyExists):
		return recordMetrics{Known: 1}
	case err != nil:
		log.Errorw("Failed to insert disruption", "err", err)
		return recordMetrics{Errored: 1}
	}
	log.Infow("Inserted new disruption", "line", d.Line)

	m := recordMetrics{Created: 1}
	if len(tokens) == 0 {
		log.Infow("No one is subscribed to this line", "line", d.Line)
		return m
	}

	delivery := o.dispatch(ctx, log, d, tokens)
	m.Notified = len(delivery.Sent)
	m.FailedTokens = len(delivery.Failed)
	return m
}
