package indexer

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"dexIngest/internal/model"
)

// DecodeError reports a log that cannot become a raw event.
type DecodeError struct {
	ChainID  string
	TxHash   string
	LogIndex uint
	Reason   string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode log %s/%s/%d: %s", e.ChainID, e.TxHash, e.LogIndex, e.Reason)
}

// Decode converts a chain log into a chain-tagged raw event. It performs no I/O.
func Decode(log types.Log, chainID string, now time.Time) (model.RawEvent, error) {
	if chainID == "" {
		return model.RawEvent{}, &DecodeError{TxHash: log.TxHash.Hex(), LogIndex: log.Index, Reason: "empty chain id"}
	}
	if log.TxHash == (common.Hash{}) {
		return model.RawEvent{}, &DecodeError{ChainID: chainID, LogIndex: log.Index, Reason: "missing transaction hash"}
	}

	record := buildLogRecord(log)
	payload, err := json.Marshal(record)
	if err != nil {
		return model.RawEvent{}, &DecodeError{ChainID: chainID, TxHash: record.TransactionHash, LogIndex: log.Index, Reason: err.Error()}
	}

	var signature *string
	if len(record.Topics) > 0 {
		topic0 := record.Topics[0]
		signature = &topic0
	}

	return model.RawEvent{
		ChainID:        chainID,
		BlockNumber:    log.BlockNumber,
		TxHash:         record.TransactionHash,
		LogIndex:       uint64(log.Index),
		EventSignature: signature,
		Payload:        string(payload),
		CreatedAt:      now.UTC(),
	}, nil
}
