package model

// DeadLetter records a chain log the listener could not decode or persist.
type DeadLetter struct {
	ChainID     string `json:"chain_id"`
	Stage       string `json:"stage"`
	BlockNumber uint64 `json:"block_number"`
	TxHash      string `json:"tx_hash"`
	LogIndex    uint64 `json:"log_index"`
	Address     string `json:"address"`
	Topic0      string `json:"topic0"`
	Error       string `json:"error"`
	FailedAt    string `json:"failed_at"`
}
