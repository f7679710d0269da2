package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"dexIngest/internal/model"
)

var baseSchema = []string{
	`CREATE TABLE IF NOT EXISTS raw_events (
		id BIGSERIAL PRIMARY KEY,
		chain_id TEXT NOT NULL,
		block_number BIGINT NOT NULL,
		tx_hash TEXT NOT NULL,
		log_index BIGINT NOT NULL,
		event_signature TEXT,
		payload TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (chain_id, tx_hash, log_index)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_raw_events_chain_tx ON raw_events (chain_id, tx_hash)`,
	`CREATE TABLE IF NOT EXISTS raw_event_queue (
		raw_event_id BIGINT PRIMARY KEY REFERENCES raw_events (id)
	)`,
	`CREATE TABLE IF NOT EXISTS transaction_records (
		id BIGSERIAL PRIMARY KEY,
		chain_id TEXT NOT NULL,
		block_number BIGINT NOT NULL,
		tx_hash TEXT NOT NULL,
		event_signature TEXT NOT NULL DEFAULT '',
		event_name TEXT NOT NULL,
		status TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (chain_id, tx_hash)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transaction_records_status ON transaction_records (status)`,
	`CREATE TABLE IF NOT EXISTS sync_cursors (
		chain_id TEXT NOT NULL,
		data_type TEXT NOT NULL,
		last_synced_block_number BIGINT NOT NULL DEFAULT 0,
		last_synced_timestamp BIGINT NOT NULL DEFAULT 0,
		last_synced_id TEXT NOT NULL DEFAULT '',
		last_error_message TEXT NOT NULL DEFAULT '',
		error_count BIGINT NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (chain_id, data_type)
	)`,
	`CREATE TABLE IF NOT EXISTS sync_status (
		chain_id TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		run_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		start_time TIMESTAMPTZ NOT NULL,
		end_time TIMESTAMPTZ,
		error_message TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (chain_id, entity_type)
	)`,
}

// Migrate creates the fixed tables and one table per mirrored entity.
func (s *Store) Migrate(ctx context.Context) error {
	queries := append([]string(nil), baseSchema...)
	for _, name := range s.order {
		queries = append(queries, createTableSQL(s.tables[name]))
	}

	for _, query := range queries {
		if _, err := s.pool.Exec(ctx, query); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func createTableSQL(table model.Table) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", pgx.Identifier{table.Name}.Sanitize())
	b.WriteString("\tpk BIGSERIAL PRIMARY KEY,\n\tchain_id TEXT NOT NULL,\n\tid TEXT NOT NULL,\n")
	for _, col := range table.Columns {
		fmt.Fprintf(&b, "\t%s %s,\n", pgx.Identifier{col.Name}.Sanitize(), col.Type)
	}
	b.WriteString("\tsynced_at TIMESTAMPTZ NOT NULL DEFAULT now(),\n\tUNIQUE (chain_id, id)\n)")
	return b.String()
}
