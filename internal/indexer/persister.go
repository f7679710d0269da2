package indexer

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"dexIngest/internal/model"
	"dexIngest/internal/storage"
)

// Outcome is the result of persisting one raw event.
type Outcome int

const (
	Inserted Outcome = iota + 1
	Duplicate
)

func (o Outcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case Duplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// Persister stores raw events idempotently on (chain, tx hash, log index).
type Persister struct {
	store  storage.RawEventStore
	logger *zap.Logger
}

func NewPersister(store storage.RawEventStore, logger *zap.Logger) *Persister {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Persister{store: store, logger: logger}
}

// Persist checks for an existing row first and then inserts with conflict
// handling, so concurrent writers of the same key still yield one row.
func (p *Persister) Persist(ctx context.Context, ev model.RawEvent) (Outcome, error) {
	exists, err := p.store.RawEventExists(ctx, ev.ChainID, ev.TxHash, ev.LogIndex)
	if err != nil {
		return 0, fmt.Errorf("check raw event: %w", err)
	}
	if exists {
		return Duplicate, nil
	}

	inserted, err := p.store.InsertRawEvent(ctx, ev)
	if err != nil {
		return 0, fmt.Errorf("insert raw event: %w", err)
	}
	if !inserted {
		return Duplicate, nil
	}
	return Inserted, nil
}

// PersistAll persists each event independently and returns how many were
// inserted. Failures do not stop the batch; they are joined into the error.
func (p *Persister) PersistAll(ctx context.Context, events []model.RawEvent) (int, error) {
	var (
		inserted int
		errs     []error
	)
	for _, ev := range events {
		outcome, err := p.Persist(ctx, ev)
		if err != nil {
			p.logger.Warn("persist raw event failed",
				zap.String("chain", ev.ChainID),
				zap.String("tx_hash", ev.TxHash),
				zap.Uint64("log_index", ev.LogIndex),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("%s/%s/%d: %w", ev.ChainID, ev.TxHash, ev.LogIndex, err))
			continue
		}
		if outcome == Inserted {
			inserted++
		}
	}
	return inserted, errors.Join(errs...)
}
