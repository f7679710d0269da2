package dex

import (
	"fmt"
	"strings"

	"dexIngest/internal/model"
)

// Signatures recorded by the transaction table. The Swap, Mint and Burn
// values are kept as historically stored and are not the keccak ids of the
// V2 pair events; the canonical ids are added alongside them from the ABI.
const (
	TransferSignature = "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"
	ApprovalSignature = "0x8c5be1e5ebec7d5bd14f71427d1e84f3dd0314c0f7b2291e5b200ac8c7c3b925"
	SwapSignature     = "0xd78ad95fa46ab8d7b872519e710f362c7dea70131084f770ccee07fc7a1d580f"
	MintSignature     = "0x0d3648bd0f6ba80134a33ba9275ac585d9d315f0ad8355cddefde31afa28d0e9"
	BurnSignature     = "0xdccd412f0b936dcbe72d3b16885e867d6d3c193faf3c47cda2137a41e4ed294f"
)

// Classifier maps an event signature topic to an event name.
type Classifier struct {
	topicToName map[string]string
}

// NewClassifier builds the signature table. extra maps additional topic0
// values to names from the fixed vocabulary.
func NewClassifier(extra map[string]string) (*Classifier, error) {
	topicToName := map[string]string{
		TransferSignature: model.EventTransfer,
		ApprovalSignature: model.EventApproval,
		SwapSignature:     model.EventSwap,
		MintSignature:     model.EventMint,
		BurnSignature:     model.EventBurn,
	}

	pairABI, err := V2PairABI()
	if err != nil {
		return nil, fmt.Errorf("parse pair abi: %w", err)
	}
	erc20, err := ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	for _, name := range []string{model.EventTransfer, model.EventApproval} {
		topicToName[strings.ToLower(erc20.Events[name].ID.Hex())] = name
	}
	for _, name := range []string{model.EventSwap, model.EventMint, model.EventBurn} {
		topicToName[strings.ToLower(pairABI.Events[name].ID.Hex())] = name
	}

	for topic0, name := range extra {
		original := name
		name = normalizeEventName(name)
		if name == "" {
			return nil, fmt.Errorf("unsupported event name in signature map: %s", original)
		}
		hash, err := ParseTopic0(topic0)
		if err != nil {
			return nil, err
		}
		topicToName[strings.ToLower(hash.Hex())] = name
	}

	return &Classifier{topicToName: topicToName}, nil
}

// Classify returns the event name and status for a signature topic. Matching
// is case-insensitive; unknown or empty topics yield "unknown".
func (c *Classifier) Classify(signature string) (name, status string) {
	name, ok := c.topicToName[strings.ToLower(strings.TrimSpace(signature))]
	if !ok {
		name = model.EventUnknown
	}
	return name, StatusFor(name)
}

// StatusFor derives a transaction status from an event name.
func StatusFor(name string) string {
	switch name {
	case model.EventTransfer, model.EventApproval, model.EventMint, model.EventBurn:
		return model.TxStatusCompleted
	case model.EventSwap:
		return model.TxStatusSwap
	default:
		return model.TxStatusUnknown
	}
}

func normalizeEventName(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "transfer":
		return model.EventTransfer
	case "approval":
		return model.EventApproval
	case "swap":
		return model.EventSwap
	case "mint":
		return model.EventMint
	case "burn":
		return model.EventBurn
	default:
		return ""
	}
}
