package model

import "time"

const (
	SyncPending   = "pending"
	SyncRunning   = "running"
	SyncCompleted = "completed"
	SyncFailed    = "failed"
)

// SyncCursor tracks incremental sync progress for one (chain, data type).
type SyncCursor struct {
	ChainID               string    `json:"chain_id"`
	DataType              string    `json:"data_type"`
	LastSyncedBlockNumber int64     `json:"last_synced_block_number"`
	LastSyncedTimestamp   int64     `json:"last_synced_timestamp"`
	LastSyncedID          string    `json:"last_synced_id"`
	LastErrorMessage      string    `json:"last_error_message,omitempty"`
	ErrorCount            int64     `json:"error_count"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// SyncStatus is the last run outcome for one (chain, entity type).
type SyncStatus struct {
	ChainID      string     `json:"chain_id"`
	EntityType   string     `json:"entity_type"`
	RunID        string     `json:"run_id"`
	Status       string     `json:"status"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      *time.Time `json:"end_time,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// Key returns the "chain:entity" identifier used in logs and status listings.
func (s SyncStatus) Key() string {
	return s.ChainID + ":" + s.EntityType
}
