package dex

import (
	"strings"
	"testing"

	"dexIngest/internal/model"
)

func TestClassifyKnownSignatures(t *testing.T) {
	c, err := NewClassifier(nil)
	if err != nil {
		t.Fatalf("classifier: %v", err)
	}

	cases := []struct {
		signature string
		name      string
		status    string
	}{
		{SwapSignature, model.EventSwap, model.TxStatusSwap},
		{strings.ToUpper(SwapSignature[2:]), model.EventUnknown, model.TxStatusUnknown},
		{"0x" + strings.ToUpper(SwapSignature[2:]), model.EventSwap, model.TxStatusSwap},
		{TransferSignature, model.EventTransfer, model.TxStatusCompleted},
		{ApprovalSignature, model.EventApproval, model.TxStatusCompleted},
		{MintSignature, model.EventMint, model.TxStatusCompleted},
		{BurnSignature, model.EventBurn, model.TxStatusCompleted},
		{"0x1234", model.EventUnknown, model.TxStatusUnknown},
		{"", model.EventUnknown, model.TxStatusUnknown},
	}
	for _, tc := range cases {
		name, status := c.Classify(tc.signature)
		if name != tc.name || status != tc.status {
			t.Fatalf("classify %q: got %s/%s, want %s/%s", tc.signature, name, status, tc.name, tc.status)
		}
	}
}

func TestABIEventIDsMatchTable(t *testing.T) {
	erc20, err := ERC20ABI()
	if err != nil {
		t.Fatalf("erc20 abi: %v", err)
	}
	pair, err := V2PairABI()
	if err != nil {
		t.Fatalf("pair abi: %v", err)
	}

	if got := erc20.Events["Transfer"].ID.Hex(); got != TransferSignature {
		t.Fatalf("transfer id %s", got)
	}
	if got := erc20.Events["Approval"].ID.Hex(); got != ApprovalSignature {
		t.Fatalf("approval id %s", got)
	}
	const canonicalSwap = "0xd78ad95fa46c994b6551d0da85fc275fe613ce37657fb8d5e3d130840159d822"
	if got := pair.Events["Swap"].ID.Hex(); got != canonicalSwap {
		t.Fatalf("swap id %s", got)
	}
	if canonicalSwap == SwapSignature {
		t.Fatalf("historical swap signature should differ from the abi id")
	}

	c, err := NewClassifier(nil)
	if err != nil {
		t.Fatalf("classifier: %v", err)
	}
	for _, sig := range []string{canonicalSwap, SwapSignature} {
		if name, status := c.Classify(sig); name != model.EventSwap || status != model.TxStatusSwap {
			t.Fatalf("swap %s classified as %s/%s", sig, name, status)
		}
	}
	if name, _ := c.Classify(pair.Events["Mint"].ID.Hex()); name != model.EventMint {
		t.Fatalf("canonical mint classified as %s", name)
	}
	if name, _ := c.Classify(pair.Events["Burn"].ID.Hex()); name != model.EventBurn {
		t.Fatalf("canonical burn classified as %s", name)
	}
}

func TestClassifierExtraSignatures(t *testing.T) {
	topic := "0x" + strings.Repeat("ab", 32)
	c, err := NewClassifier(map[string]string{topic: "swap"})
	if err != nil {
		t.Fatalf("classifier: %v", err)
	}
	if name, status := c.Classify(strings.ToUpper(topic[2:4]) + topic[4:]); name != model.EventUnknown || status != model.TxStatusUnknown {
		t.Fatalf("malformed topic matched: %s/%s", name, status)
	}
	if name, status := c.Classify(topic); name != model.EventSwap || status != model.TxStatusSwap {
		t.Fatalf("extra topic: got %s/%s", name, status)
	}

	if _, err := NewClassifier(map[string]string{topic: "Collect"}); err == nil {
		t.Fatalf("expected error for name outside vocabulary")
	}
	if _, err := NewClassifier(map[string]string{"0x12": "Swap"}); err == nil {
		t.Fatalf("expected error for short topic")
	}
}
