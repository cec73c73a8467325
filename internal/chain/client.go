package chain

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
)

// Commitment levels accepted by the node.
const (
	CommitmentConfirmed = "confirmed"
	CommitmentFinalized = "finalized"
)

// Client wraps a JSON-RPC 2.0 connection to a Solana node.
type Client struct {
	rpcClient  *rpc.Client
	commitment string
}

// NewClient dials the RPC URL.
func NewClient(ctx context.Context, rpcURL, commitment string) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return NewClientWithRPC(rpcClient, commitment), nil
}

// NewClientWithRPC wraps an existing connection.
func NewClientWithRPC(rpcClient *rpc.Client, commitment string) *Client {
	if commitment == "" {
		commitment = CommitmentFinalized
	}
	return &Client{rpcClient: rpcClient, commitment: commitment}
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// GetSlot returns the latest slot at the configured commitment.
func (c *Client) GetSlot(ctx context.Context) (uint64, error) {
	var slot uint64
	err := c.rpcClient.CallContext(ctx, &slot, "getSlot", map[string]interface{}{"commitment": c.commitment})
	return slot, err
}

// SignatureInfo is one entry of getSignaturesForAddress.
type SignatureInfo struct {
	Signature string          `json:"signature"`
	Slot      uint64          `json:"slot"`
	Err       json.RawMessage `json:"err"`
	BlockTime *int64          `json:"blockTime"`
}

// Failed reports whether the transaction did not commit.
func (s SignatureInfo) Failed() bool {
	return isFailure(s.Err)
}

// SignatureQuery pages getSignaturesForAddress. Results are newest first.
type SignatureQuery struct {
	Before string
	Until  string
	Limit  int
}

// GetSignaturesForAddress lists transactions that referenced address.
func (c *Client) GetSignaturesForAddress(ctx context.Context, address string, q SignatureQuery) ([]SignatureInfo, error) {
	opts := map[string]interface{}{"commitment": c.commitment}
	if q.Limit > 0 {
		opts["limit"] = q.Limit
	}
	if q.Before != "" {
		opts["before"] = q.Before
	}
	if q.Until != "" {
		opts["until"] = q.Until
	}

	var out []SignatureInfo
	if err := c.rpcClient.CallContext(ctx, &out, "getSignaturesForAddress", address, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// Transaction is the subset of getTransaction the indexer needs.
type Transaction struct {
	Slot      uint64 `json:"slot"`
	BlockTime *int64 `json:"blockTime"`
	Meta      *struct {
		Err         json.RawMessage `json:"err"`
		LogMessages []string        `json:"logMessages"`
	} `json:"meta"`
}

// Failed reports whether the transaction did not commit.
func (t *Transaction) Failed() bool {
	return t.Meta == nil || isFailure(t.Meta.Err)
}

// Logs returns the transaction log lines.
func (t *Transaction) Logs() []string {
	if t.Meta == nil {
		return nil
	}
	return t.Meta.LogMessages
}

// GetTransactions fetches the transactions in one batch request. Missing
// transactions come back as nil entries.
func (c *Client) GetTransactions(ctx context.Context, signatures []string) ([]*Transaction, error) {
	if len(signatures) == 0 {
		return nil, nil
	}
	opts := map[string]interface{}{
		"encoding":                       "json",
		"commitment":                     c.commitment,
		"maxSupportedTransactionVersion": 0,
	}

	out := make([]*Transaction, len(signatures))
	batch := make([]rpc.BatchElem, len(signatures))
	for i, sig := range signatures {
		batch[i] = rpc.BatchElem{
			Method: "getTransaction",
			Args:   []interface{}{sig, opts},
			Result: &out[i],
		}
	}
	if err := c.rpcClient.BatchCallContext(ctx, batch); err != nil {
		return nil, err
	}
	for i, elem := range batch {
		if elem.Error != nil {
			return nil, fmt.Errorf("getTransaction %s: %w", signatures[i], elem.Error)
		}
	}
	return out, nil
}

func isFailure(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	return string(raw) != "null"
}
