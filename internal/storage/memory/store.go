// Package memory is an in-process Store used for local runs and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"dexIngest/internal/model"
)

type rawKey struct {
	chainID  string
	txHash   string
	logIndex uint64
}

type chainKey struct {
	chainID string
	key     string
}

// StoredRow is a mirrored row together with its local primary key.
type StoredRow struct {
	PK  int64
	Row model.Row
}

// Store keeps every table in maps guarded by one mutex.
type Store struct {
	mu sync.Mutex

	nextRawID int64
	rawKeys   map[rawKey]int64
	raw       map[int64]model.RawEvent
	pending   []int64

	nextTxID int64
	txs      map[chainKey]model.TransactionRecord

	cursors  map[chainKey]model.SyncCursor
	statuses map[chainKey]model.SyncStatus

	nextRowPK int64
	rows      map[string]map[chainKey]StoredRow
}

func NewStore() *Store {
	return &Store{
		rawKeys:  make(map[rawKey]int64),
		raw:      make(map[int64]model.RawEvent),
		txs:      make(map[chainKey]model.TransactionRecord),
		cursors:  make(map[chainKey]model.SyncCursor),
		statuses: make(map[chainKey]model.SyncStatus),
		rows:     make(map[string]map[chainKey]StoredRow),
	}
}

func (s *Store) Migrate(context.Context) error { return nil }

func (s *Store) Close() {}

func (s *Store) RawEventExists(_ context.Context, chainID, txHash string, logIndex uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rawKeys[rawKey{chainID, txHash, logIndex}]
	return ok, nil
}

func (s *Store) InsertRawEvent(_ context.Context, ev model.RawEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := rawKey{ev.ChainID, ev.TxHash, ev.LogIndex}
	if _, ok := s.rawKeys[key]; ok {
		return false, nil
	}
	s.nextRawID++
	ev.ID = s.nextRawID
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	s.rawKeys[key] = ev.ID
	s.raw[ev.ID] = ev
	s.pending = append(s.pending, ev.ID)
	return true, nil
}

func (s *Store) PendingRawEvents(_ context.Context, limit int) ([]model.RawEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.pending)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]model.RawEvent, 0, n)
	for _, id := range s.pending[:n] {
		out = append(out, s.raw[id])
	}
	return out, nil
}

func (s *Store) AckRawEvents(_ context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	acked := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		acked[id] = struct{}{}
	}
	kept := s.pending[:0]
	for _, id := range s.pending {
		if _, ok := acked[id]; !ok {
			kept = append(kept, id)
		}
	}
	s.pending = kept
	return nil
}

// RawEvents returns every stored raw event in insertion order.
func (s *Store) RawEvents() []model.RawEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.RawEvent, 0, len(s.raw))
	for _, ev := range s.raw {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) TransactionExists(_ context.Context, chainID, txHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.txs[chainKey{chainID, txHash}]
	return ok, nil
}

func (s *Store) InsertTransaction(_ context.Context, rec model.TransactionRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := chainKey{rec.ChainID, rec.TxHash}
	if _, ok := s.txs[key]; ok {
		return false, nil
	}
	s.nextTxID++
	rec.ID = s.nextTxID
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	s.txs[key] = rec
	return true, nil
}

func (s *Store) TransactionStats(context.Context) (model.TxStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats model.TxStats
	for _, rec := range s.txs {
		stats.Total++
		switch rec.Status {
		case model.TxStatusCompleted:
			stats.Completed++
		case model.TxStatusSwap:
			stats.Swap++
		case model.TxStatusPending:
			stats.Pending++
		default:
			stats.Unknown++
		}
	}
	return stats, nil
}

// Transactions returns every derived record ordered by id.
func (s *Store) Transactions() []model.TransactionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.TransactionRecord, 0, len(s.txs))
	for _, rec := range s.txs {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) GetOrCreateCursor(_ context.Context, chainID, dataType string) (model.SyncCursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := chainKey{chainID, dataType}
	cursor, ok := s.cursors[key]
	if !ok {
		cursor = model.SyncCursor{ChainID: chainID, DataType: dataType, UpdatedAt: time.Now().UTC()}
		s.cursors[key] = cursor
	}
	return cursor, nil
}

// CommitPage upserts rows and moves the cursor markers forward only.
func (s *Store) CommitPage(_ context.Context, rows []model.Row, cursor model.SyncCursor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range rows {
		table := s.rows[row.Table]
		if table == nil {
			table = make(map[chainKey]StoredRow)
			s.rows[row.Table] = table
		}
		key := chainKey{cursor.ChainID, row.ID}
		stored, ok := table[key]
		if !ok {
			s.nextRowPK++
			stored.PK = s.nextRowPK
		}
		stored.Row = copyRow(row)
		table[key] = stored
	}

	key := chainKey{cursor.ChainID, cursor.DataType}
	if prev, ok := s.cursors[key]; ok {
		cursor.LastSyncedBlockNumber = max(cursor.LastSyncedBlockNumber, prev.LastSyncedBlockNumber)
		cursor.LastSyncedTimestamp = max(cursor.LastSyncedTimestamp, prev.LastSyncedTimestamp)
		// byte order, as COLLATE "C" in postgres
		cursor.LastSyncedID = max(cursor.LastSyncedID, prev.LastSyncedID)
		cursor.LastErrorMessage = prev.LastErrorMessage
		cursor.ErrorCount = prev.ErrorCount
	}
	cursor.UpdatedAt = time.Now().UTC()
	s.cursors[key] = cursor
	return nil
}

func (s *Store) RecordCursorError(_ context.Context, chainID, dataType, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := chainKey{chainID, dataType}
	cursor, ok := s.cursors[key]
	if !ok {
		cursor = model.SyncCursor{ChainID: chainID, DataType: dataType}
	}
	cursor.LastErrorMessage = message
	cursor.ErrorCount++
	cursor.UpdatedAt = time.Now().UTC()
	s.cursors[key] = cursor
	return nil
}

func (s *Store) SaveSyncStatus(_ context.Context, status model.SyncStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[chainKey{status.ChainID, status.EntityType}] = status
	return nil
}

func (s *Store) ListSyncStatus(context.Context) ([]model.SyncStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.SyncStatus, 0, len(s.statuses))
	for _, status := range s.statuses {
		out = append(out, status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}

func (s *Store) ListCursors(context.Context) ([]model.SyncCursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.SyncCursor, 0, len(s.cursors))
	for _, cursor := range s.cursors {
		out = append(out, cursor)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ChainID != out[j].ChainID {
			return out[i].ChainID < out[j].ChainID
		}
		return out[i].DataType < out[j].DataType
	})
	return out, nil
}

// Rows returns the mirrored rows of one table for one chain ordered by id.
func (s *Store) Rows(table, chainID string) []StoredRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]StoredRow, 0)
	for key, row := range s.rows[table] {
		if key.chainID == chainID {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Row.ID < out[j].Row.ID })
	return out
}

func copyRow(row model.Row) model.Row {
	values := make(map[string]any, len(row.Values))
	for k, v := range row.Values {
		values[k] = v
	}
	row.Values = values
	return row
}
