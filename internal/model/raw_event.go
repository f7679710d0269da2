package model

import "time"

// RawEvent is one on-chain log persisted verbatim with minimal metadata.
// Rows are append-only and unique by (ChainID, TxHash, LogIndex).
type RawEvent struct {
	ID             int64     `json:"id"`
	ChainID        string    `json:"chain_id"`
	BlockNumber    uint64    `json:"block_number"`
	TxHash         string    `json:"tx_hash"`
	LogIndex       uint64    `json:"log_index"`
	EventSignature *string   `json:"event_signature,omitempty"`
	Payload        string    `json:"payload"`
	CreatedAt      time.Time `json:"created_at"`
}

// Signature returns the event signature topic or an empty string.
func (e RawEvent) Signature() string {
	if e.EventSignature == nil {
		return ""
	}
	return *e.EventSignature
}
