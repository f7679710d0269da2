package model

import (
	"encoding/json"
	"testing"
)

func TestLogRecordFieldNames(t *testing.T) {
	record := LogRecord{
		Address:          "0x1111111111111111111111111111111111111111",
		Topics:           []string{"0xaaa", "0xbbb"},
		Data:             "0xdeadbeef",
		BlockNumber:      36000000,
		TransactionHash:  "0xdef456",
		TransactionIndex: 7,
		BlockHash:        "0xabc123",
		LogIndex:         12,
	}

	b, err := json.Marshal(record)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(b, &fields); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	for _, key := range []string{"address", "topics", "data", "blockNumber", "transactionHash", "transactionIndex", "blockHash", "logIndex", "removed"} {
		if _, ok := fields[key]; !ok {
			t.Fatalf("missing field %q in %s", key, b)
		}
	}
	if len(fields) != 9 {
		t.Fatalf("unexpected field count %d in %s", len(fields), b)
	}
}

func TestRawEventSignature(t *testing.T) {
	if got := (RawEvent{}).Signature(); got != "" {
		t.Fatalf("expected empty signature, got %q", got)
	}
	sig := "0xddf252ad"
	if got := (RawEvent{EventSignature: &sig}).Signature(); got != sig {
		t.Fatalf("expected %q, got %q", sig, got)
	}
}
