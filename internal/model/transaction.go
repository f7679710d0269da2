package model

import "time"

const (
	EventTransfer = "Transfer"
	EventApproval = "Approval"
	EventSwap     = "Swap"
	EventMint     = "Mint"
	EventBurn     = "Burn"
	EventUnknown  = "unknown"
)

const (
	TxStatusCompleted = "completed"
	TxStatusSwap      = "swap"
	TxStatusUnknown   = "unknown"
	TxStatusPending   = "pending"
)

// TransactionRecord is the classified summary of the raw events sharing one
// transaction hash on one chain.
type TransactionRecord struct {
	ID             int64     `json:"id"`
	ChainID        string    `json:"chain_id"`
	BlockNumber    uint64    `json:"block_number"`
	TxHash         string    `json:"tx_hash"`
	EventSignature string    `json:"event_signature"`
	EventName      string    `json:"event_name"`
	Status         string    `json:"status"`
	Payload        string    `json:"payload"`
	CreatedAt      time.Time `json:"created_at"`
}

// TxStats counts transaction records by status.
type TxStats struct {
	Total     int64 `json:"total"`
	Completed int64 `json:"completed"`
	Swap      int64 `json:"swap"`
	Unknown   int64 `json:"unknown"`
	Pending   int64 `json:"pending"`
}
