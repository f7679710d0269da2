package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"dexIngest/internal/model"
	"dexIngest/internal/storage"
)

const cursorColumns = `chain_id, data_type, last_synced_block_number, last_synced_timestamp, last_synced_id,
	last_error_message, error_count, updated_at`

func scanCursor(row pgx.Row) (model.SyncCursor, error) {
	var c model.SyncCursor
	err := row.Scan(&c.ChainID, &c.DataType, &c.LastSyncedBlockNumber, &c.LastSyncedTimestamp, &c.LastSyncedID,
		&c.LastErrorMessage, &c.ErrorCount, &c.UpdatedAt)
	return c, err
}

func (s *Store) GetOrCreateCursor(ctx context.Context, chainID, dataType string) (model.SyncCursor, error) {
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO sync_cursors (chain_id, data_type) VALUES ($1, $2)
		ON CONFLICT (chain_id, data_type) DO NOTHING
	`, chainID, dataType); err != nil {
		return model.SyncCursor{}, fmt.Errorf("create cursor: %w", err)
	}

	cursor, err := scanCursor(s.pool.QueryRow(ctx,
		`SELECT `+cursorColumns+` FROM sync_cursors WHERE chain_id=$1 AND data_type=$2`,
		chainID, dataType,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.SyncCursor{}, fmt.Errorf("load cursor %s:%s: %w", chainID, dataType, storage.ErrNotFound)
	}
	if err != nil {
		return model.SyncCursor{}, fmt.Errorf("load cursor: %w", err)
	}
	return cursor, nil
}

// CommitPage upserts rows and advances the cursor in one transaction. The
// markers are only ever moved forward.
func (s *Store) CommitPage(ctx context.Context, rows []model.Row, cursor model.SyncCursor) error {
	batch := &pgx.Batch{}
	for _, row := range rows {
		table, ok := s.tables[row.Table]
		if !ok {
			return fmt.Errorf("unknown table: %s", row.Table)
		}
		args := make([]any, 0, len(table.Columns)+2)
		args = append(args, cursor.ChainID, row.ID)
		for _, col := range table.Columns {
			args = append(args, row.Values[col.Name])
		}
		batch.Queue(s.upserts[row.Table], args...)
	}
	batch.Queue(`
		INSERT INTO sync_cursors (
			chain_id, data_type, last_synced_block_number, last_synced_timestamp, last_synced_id, updated_at
		) VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (chain_id, data_type)
		DO UPDATE SET
			last_synced_block_number = GREATEST(sync_cursors.last_synced_block_number, EXCLUDED.last_synced_block_number),
			last_synced_timestamp = GREATEST(sync_cursors.last_synced_timestamp, EXCLUDED.last_synced_timestamp),
			last_synced_id = CASE
				WHEN EXCLUDED.last_synced_id COLLATE "C" > sync_cursors.last_synced_id COLLATE "C"
				THEN EXCLUDED.last_synced_id
				ELSE sync_cursors.last_synced_id
			END,
			updated_at = now()
	`,
		cursor.ChainID,
		cursor.DataType,
		cursor.LastSyncedBlockNumber,
		cursor.LastSyncedTimestamp,
		cursor.LastSyncedID,
	)

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		br := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				if i < len(rows) {
					return fmt.Errorf("upsert %s %s: %w", rows[i].Table, rows[i].ID, err)
				}
				return fmt.Errorf("save cursor: %w", err)
			}
		}
		return br.Close()
	})
}

func (s *Store) RecordCursorError(ctx context.Context, chainID, dataType, message string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sync_cursors (chain_id, data_type, last_error_message, error_count, updated_at)
		VALUES ($1, $2, $3, 1, now())
		ON CONFLICT (chain_id, data_type)
		DO UPDATE SET
			last_error_message = EXCLUDED.last_error_message,
			error_count = sync_cursors.error_count + 1,
			updated_at = now()
	`, chainID, dataType, message)
	return err
}

func (s *Store) SaveSyncStatus(ctx context.Context, status model.SyncStatus) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sync_status (chain_id, entity_type, run_id, status, start_time, end_time, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (chain_id, entity_type)
		DO UPDATE SET
			run_id = EXCLUDED.run_id,
			status = EXCLUDED.status,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			error_message = EXCLUDED.error_message
	`,
		status.ChainID,
		status.EntityType,
		status.RunID,
		status.Status,
		status.StartTime,
		status.EndTime,
		status.ErrorMessage,
	)
	return err
}

func (s *Store) ListSyncStatus(ctx context.Context) ([]model.SyncStatus, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT chain_id, entity_type, run_id, status, start_time, end_time, error_message
		FROM sync_status
		ORDER BY chain_id, entity_type
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SyncStatus
	for rows.Next() {
		var st model.SyncStatus
		if err := rows.Scan(&st.ChainID, &st.EntityType, &st.RunID, &st.Status, &st.StartTime, &st.EndTime, &st.ErrorMessage); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *Store) ListCursors(ctx context.Context) ([]model.SyncCursor, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+cursorColumns+` FROM sync_cursors ORDER BY chain_id, data_type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SyncCursor
	for rows.Next() {
		cursor, err := scanCursor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cursor)
	}
	return out, rows.Err()
}

func upsertSQL(table model.Table) string {
	cols := []string{"chain_id", "id"}
	placeholders := []string{"$1", "$2"}
	updates := make([]string, 0, len(table.Columns)+1)
	for i, col := range table.Columns {
		name := pgx.Identifier{col.Name}.Sanitize()
		cols = append(cols, name)
		placeholders = append(placeholders, fmt.Sprintf("$%d::%s", i+3, col.Type))
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", name, name))
	}
	updates = append(updates, "synced_at = now()")

	return fmt.Sprintf(
		"INSERT INTO %s (%s, synced_at) VALUES (%s, now()) ON CONFLICT (chain_id, id) DO UPDATE SET %s",
		pgx.Identifier{table.Name}.Sanitize(),
		strings.Join(cols, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(updates, ", "),
	)
}
