package storage

import (
	"context"
	"errors"

	"dexIngest/internal/model"
)

// ErrNotFound is returned when a keyed row does not exist.
var ErrNotFound = errors.New("not found")

// RawEventStore persists raw events and the queue of events not yet derived.
type RawEventStore interface {
	RawEventExists(ctx context.Context, chainID, txHash string, logIndex uint64) (bool, error)
	// InsertRawEvent stores the event and enqueues it for derivation in one
	// step. It reports false when the natural key already exists.
	InsertRawEvent(ctx context.Context, ev model.RawEvent) (bool, error)
	PendingRawEvents(ctx context.Context, limit int) ([]model.RawEvent, error)
	AckRawEvents(ctx context.Context, ids []int64) error
}

// TransactionStore persists derived transaction records.
type TransactionStore interface {
	TransactionExists(ctx context.Context, chainID, txHash string) (bool, error)
	// InsertTransaction reports false when a record for (chain, tx hash) exists.
	InsertTransaction(ctx context.Context, rec model.TransactionRecord) (bool, error)
	TransactionStats(ctx context.Context) (model.TxStats, error)
}

// SyncStore persists mirrored rows, cursors and run status.
type SyncStore interface {
	GetOrCreateCursor(ctx context.Context, chainID, dataType string) (model.SyncCursor, error)
	// CommitPage upserts rows by (cursor.ChainID, row.ID) and saves the
	// cursor atomically.
	CommitPage(ctx context.Context, rows []model.Row, cursor model.SyncCursor) error
	RecordCursorError(ctx context.Context, chainID, dataType, message string) error
	SaveSyncStatus(ctx context.Context, status model.SyncStatus) error
	ListSyncStatus(ctx context.Context) ([]model.SyncStatus, error)
	ListCursors(ctx context.Context) ([]model.SyncCursor, error)
}

// Store is the full persistence surface used by the service.
type Store interface {
	RawEventStore
	TransactionStore
	SyncStore
	Migrate(ctx context.Context) error
	Close()
}
