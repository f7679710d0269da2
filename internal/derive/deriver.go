// Package derive groups persisted raw events by transaction and writes one
// classified transaction record per (chain, tx hash).
package derive

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"dexIngest/internal/dex"
	"dexIngest/internal/metrics"
	"dexIngest/internal/model"
	"dexIngest/internal/storage"
)

// Store is the persistence the Deriver needs.
type Store interface {
	storage.RawEventStore
	storage.TransactionStore
}

// Result summarizes one derivation pass.
type Result struct {
	Events  int
	Groups  int
	Created int
	Skipped int
}

// Deriver turns queued raw events into transaction records.
type Deriver struct {
	store      Store
	classifier *dex.Classifier
	batchSize  int
	metrics    *metrics.Metrics
	logger     *zap.Logger

	mu sync.Mutex
}

func NewDeriver(store Store, classifier *dex.Classifier, batchSize int, m *metrics.Metrics, logger *zap.Logger) *Deriver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.Nop()
	}
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &Deriver{
		store:      store,
		classifier: classifier,
		batchSize:  batchSize,
		metrics:    m,
		logger:     logger,
	}
}

type groupKey struct {
	chainID string
	txHash  string
}

type group struct {
	key    groupKey
	events []model.RawEvent
}

// RunOnce derives records for one batch of queued raw events. Groups that
// already have a record are skipped. Queue entries are acknowledged only
// after every group in the batch has been handled.
func (d *Deriver) RunOnce(ctx context.Context) (Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	events, err := d.store.PendingRawEvents(ctx, d.batchSize)
	if err != nil {
		return Result{}, fmt.Errorf("load pending raw events: %w", err)
	}
	if len(events) == 0 {
		return Result{}, nil
	}

	groups := groupByTransaction(events)
	res := Result{Events: len(events), Groups: len(groups)}

	for _, g := range groups {
		created, err := d.derive(ctx, g)
		if err != nil {
			return res, fmt.Errorf("derive %s/%s: %w", g.key.chainID, g.key.txHash, err)
		}
		if created {
			res.Created++
		} else {
			res.Skipped++
		}
	}

	ids := make([]int64, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.ID)
	}
	if err := d.store.AckRawEvents(ctx, ids); err != nil {
		return res, fmt.Errorf("ack raw events: %w", err)
	}
	return res, nil
}

func (d *Deriver) derive(ctx context.Context, g group) (bool, error) {
	exists, err := d.store.TransactionExists(ctx, g.key.chainID, g.key.txHash)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	rep := g.events[0]
	name, status := d.classifier.Classify(rep.Signature())
	rec := model.TransactionRecord{
		ChainID:        rep.ChainID,
		BlockNumber:    rep.BlockNumber,
		TxHash:         rep.TxHash,
		EventSignature: rep.Signature(),
		EventName:      name,
		Status:         status,
		Payload:        rep.Payload,
		CreatedAt:      time.Now().UTC(),
	}
	inserted, err := d.store.InsertTransaction(ctx, rec)
	if err != nil {
		return false, err
	}
	if inserted {
		d.metrics.DeriveRecords.WithLabelValues(status).Inc()
		d.logger.Debug("transaction derived",
			zap.String("chain", rec.ChainID),
			zap.String("tx_hash", rec.TxHash),
			zap.String("event", name),
			zap.String("status", status),
			zap.Int("events", len(g.events)),
		)
	}
	return inserted, nil
}

// groupByTransaction keeps groups and the events within them in input order.
func groupByTransaction(events []model.RawEvent) []group {
	index := make(map[groupKey]int)
	var groups []group
	for _, ev := range events {
		key := groupKey{chainID: ev.ChainID, txHash: ev.TxHash}
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, group{key: key})
		}
		groups[i].events = append(groups[i].events, ev)
	}
	return groups
}

// Run derives on every tick until ctx is done. A full batch is followed
// immediately by another pass.
func (d *Deriver) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		for {
			res, err := d.RunOnce(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				d.logger.Warn("derive pass failed", zap.Error(err))
				break
			}
			if res.Events > 0 {
				d.logger.Info("derive pass complete",
					zap.Int("events", res.Events),
					zap.Int("groups", res.Groups),
					zap.Int("created", res.Created),
					zap.Int("skipped", res.Skipped),
				)
			}
			if res.Events < d.batchSize {
				break
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Stats counts transaction records by status.
func (d *Deriver) Stats(ctx context.Context) (model.TxStats, error) {
	return d.store.TransactionStats(ctx)
}
