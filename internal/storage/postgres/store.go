package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"dexIngest/internal/model"
)

// Store provides Postgres persistence for raw events, derived transactions,
// sync progress and mirrored entity tables.
type Store struct {
	pool    *pgxpool.Pool
	tables  map[string]model.Table
	upserts map[string]string
	order   []string
}

// NewStore connects to Postgres. tables lists the mirrored entity tables the
// store may write.
func NewStore(ctx context.Context, dsn string, tables []model.Table) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &Store{
		pool:    pool,
		tables:  make(map[string]model.Table, len(tables)),
		upserts: make(map[string]string, len(tables)),
	}
	for _, table := range tables {
		if _, ok := s.tables[table.Name]; ok {
			continue
		}
		s.tables[table.Name] = table
		s.upserts[table.Name] = upsertSQL(table)
		s.order = append(s.order, table.Name)
	}
	return s, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) RawEventExists(ctx context.Context, chainID, txHash string, logIndex uint64) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM raw_events WHERE chain_id=$1 AND tx_hash=$2 AND log_index=$3)`,
		chainID, txHash, int64(logIndex),
	).Scan(&exists)
	return exists, err
}

// InsertRawEvent inserts the event and its queue entry in one statement.
func (s *Store) InsertRawEvent(ctx context.Context, ev model.RawEvent) (bool, error) {
	createdAt := ev.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	tag, err := s.pool.Exec(ctx, `
		WITH ins AS (
			INSERT INTO raw_events (
				chain_id, block_number, tx_hash, log_index, event_signature, payload, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (chain_id, tx_hash, log_index) DO NOTHING
			RETURNING id
		)
		INSERT INTO raw_event_queue (raw_event_id) SELECT id FROM ins
	`,
		ev.ChainID,
		int64(ev.BlockNumber),
		ev.TxHash,
		int64(ev.LogIndex),
		ev.EventSignature,
		ev.Payload,
		createdAt,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) PendingRawEvents(ctx context.Context, limit int) ([]model.RawEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT r.id, r.chain_id, r.block_number, r.tx_hash, r.log_index, r.event_signature, r.payload, r.created_at
		FROM raw_event_queue q
		JOIN raw_events r ON r.id = q.raw_event_id
		ORDER BY q.raw_event_id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.RawEvent
	for rows.Next() {
		var (
			ev          model.RawEvent
			blockNumber int64
			logIndex    int64
		)
		if err := rows.Scan(&ev.ID, &ev.ChainID, &blockNumber, &ev.TxHash, &logIndex, &ev.EventSignature, &ev.Payload, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.BlockNumber = uint64(blockNumber)
		ev.LogIndex = uint64(logIndex)
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *Store) AckRawEvents(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM raw_event_queue WHERE raw_event_id = ANY($1)`, ids)
	return err
}

func (s *Store) TransactionExists(ctx context.Context, chainID, txHash string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM transaction_records WHERE chain_id=$1 AND tx_hash=$2)`,
		chainID, txHash,
	).Scan(&exists)
	return exists, err
}

func (s *Store) InsertTransaction(ctx context.Context, rec model.TransactionRecord) (bool, error) {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO transaction_records (
			chain_id, block_number, tx_hash, event_signature, event_name, status, payload, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (chain_id, tx_hash) DO NOTHING
	`,
		rec.ChainID,
		int64(rec.BlockNumber),
		rec.TxHash,
		rec.EventSignature,
		rec.EventName,
		rec.Status,
		rec.Payload,
		createdAt,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) TransactionStats(ctx context.Context) (model.TxStats, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, count(*) FROM transaction_records GROUP BY status`)
	if err != nil {
		return model.TxStats{}, err
	}
	defer rows.Close()

	var stats model.TxStats
	for rows.Next() {
		var (
			status string
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return model.TxStats{}, err
		}
		stats.Total += count
		switch status {
		case model.TxStatusCompleted:
			stats.Completed += count
		case model.TxStatusSwap:
			stats.Swap += count
		case model.TxStatusPending:
			stats.Pending += count
		default:
			stats.Unknown += count
		}
	}
	return stats, rows.Err()
}

