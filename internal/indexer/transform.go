package indexer

import (
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"dexIngest/internal/model"
)

func buildLogRecord(log types.Log) model.LogRecord {
	topics := make([]string, 0, len(log.Topics))
	for _, topic := range log.Topics {
		topics = append(topics, topic.Hex())
	}

	return model.LogRecord{
		Address:          strings.ToLower(log.Address.Hex()),
		Topics:           topics,
		Data:             hexutil.Encode(log.Data),
		BlockNumber:      log.BlockNumber,
		TransactionHash:  log.TxHash.Hex(),
		TransactionIndex: uint64(log.TxIndex),
		BlockHash:        log.BlockHash.Hex(),
		LogIndex:         uint64(log.Index),
		Removed:          log.Removed,
	}
}
