package solana

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Failure classes for Transaction. Anything not wrapped in one of these is
// treated as transient and retried by the caller.
var (
	// ErrNotFound means the ledger no longer has (or never had) the
	// transaction; permanently skippable.
	ErrNotFound = errors.New("transaction not found")

	// ErrMalformed means the response could not be structurally decoded;
	// permanently skippable, never retried.
	ErrMalformed = errors.New("malformed transaction")
)

// RPCClient is the subset of the Solana RPC surface we need, so tests can
// fake the RPC layer without hitting real nodes.
type RPCClient interface {
	GetSignaturesForAddressWithOpts(
		ctx context.Context,
		address solana.PublicKey,
		opts *rpc.GetSignaturesForAddressOpts,
	) ([]*rpc.TransactionSignature, error)

	GetTransaction(
		ctx context.Context,
		signature solana.Signature,
		opts *rpc.GetTransactionOpts,
	) (*rpc.GetTransactionResult, error)

	GetVersion(ctx context.Context) (*rpc.GetVersionResult, error)
}

// NewRPCClient builds a real RPC client for the given endpoint.
func NewRPCClient(endpoint string) RPCClient {
	return rpc.New(endpoint)
}

// Client wraps the RPC collaborator with the two calls the poller drives:
// signature scanning and transaction fetching.
type Client struct {
	rpc RPCClient
	log *slog.Logger
}

// NewClient creates a Solana client over the given RPC layer.
func NewClient(rpcClient RPCClient, log *slog.Logger) *Client {
	return &Client{rpc: rpcClient, log: log}
}

var maxTxVersion = uint64(0)

// Signatures returns signatures referencing the mint that are newer than
// until, oldest first. With a cursor set it pages backward with Before until
// the cursor boundary is reached, so a burst larger than one page cannot
// slip between the cursor and the oldest returned signature. A nil until
// has no boundary to honor and returns only the most recent page; that is
// the starting point on first run. An empty batch means no new activity,
// not an error.
func (c *Client) Signatures(ctx context.Context, mint solana.PublicKey, until *solana.Signature, limit int) ([]SignatureInfo, error) {
	var pages [][]*rpc.TransactionSignature
	var before solana.Signature
	total := 0
	for {
		opts := &rpc.GetSignaturesForAddressOpts{
			Limit:      &limit,
			Commitment: rpc.CommitmentFinalized,
		}
		if until != nil {
			opts.Until = *until
		}
		if !before.IsZero() {
			opts.Before = before
		}

		page, err := c.rpc.GetSignaturesForAddressWithOpts(ctx, mint, opts)
		if err != nil {
			return nil, fmt.Errorf("get signatures for %s: %w", mint, err)
		}
		if len(page) > 0 {
			pages = append(pages, page)
			total += len(page)
		}
		// A short page means the cursor boundary (or the start of the
		// mint's history) was reached.
		if until == nil || len(page) < limit {
			break
		}
		before = page[len(page)-1].Signature
	}

	// The RPC returns newest first within each page and pages walk backward
	// in time, so iterating both in reverse yields chronological order.
	out := make([]SignatureInfo, 0, total)
	for p := len(pages) - 1; p >= 0; p-- {
		page := pages[p]
		for i := len(page) - 1; i >= 0; i-- {
			s := page[i]
			info := SignatureInfo{
				Signature: s.Signature,
				Slot:      s.Slot,
				Failed:    s.Err != nil,
			}
			if s.BlockTime != nil {
				info.BlockTime = s.BlockTime.Time()
			}
			out = append(out, info)
		}
	}

	c.log.DebugContext(ctx, "scanned signatures", "mint", mint.String(), "count", len(out), "pages", len(pages))
	return out, nil
}

// Transaction fetches and resolves a transaction by signature. Pruned or
// unavailable transactions return ErrNotFound; structurally undecodable
// responses (including legacy encodings that fail to parse) return
// ErrMalformed. Other failures are transient.
func (c *Client) Transaction(ctx context.Context, sig solana.Signature) (*Transaction, error) {
	opts := &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     rpc.CommitmentFinalized,
		MaxSupportedTransactionVersion: &maxTxVersion,
	}

	result, err := c.rpc.GetTransaction(ctx, sig, opts)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, sig)
		}
		return nil, fmt.Errorf("get transaction %s: %w", sig, err)
	}
	if result == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sig)
	}
	if result.Transaction == nil {
		return nil, fmt.Errorf("%w: missing envelope %s", ErrMalformed, sig)
	}

	decoded, err := result.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrMalformed, sig, err)
	}
	if decoded == nil {
		return nil, fmt.Errorf("%w: empty envelope %s", ErrMalformed, sig)
	}

	txn := &Transaction{
		Signature: sig,
		Slot:      result.Slot,
	}
	if result.BlockTime != nil {
		txn.BlockTime = result.BlockTime.Time()
	}

	// Versioned transactions load extra accounts from address lookup
	// tables; the runtime's full account table is the static keys followed
	// by the loaded writable then read-only addresses.
	keys := decoded.Message.AccountKeys
	if result.Meta != nil {
		keys = append(keys[:len(keys):len(keys)], result.Meta.LoadedAddresses.Writable...)
		keys = append(keys, result.Meta.LoadedAddresses.ReadOnly...)
	}

	for _, compiled := range decoded.Message.Instructions {
		if ix, ok := resolveInstruction(compiled.ProgramIDIndex, compiled.Accounts, compiled.Data, keys); ok {
			txn.Instructions = append(txn.Instructions, ix)
		}
	}
	if result.Meta != nil {
		for _, inner := range result.Meta.InnerInstructions {
			for _, compiled := range inner.Instructions {
				if ix, ok := resolveInstruction(compiled.ProgramIDIndex, compiled.Accounts, compiled.Data, keys); ok {
					txn.Instructions = append(txn.Instructions, ix)
				}
			}
		}
	}

	return txn, nil
}

// Ping checks RPC connectivity for health reporting.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.rpc.GetVersion(ctx); err != nil {
		return fmt.Errorf("rpc getVersion: %w", err)
	}
	return nil
}

// resolveInstruction maps compiled account indexes through the transaction's
// full account table. Instructions with indexes beyond the table are corrupt
// and dropped.
func resolveInstruction(programIDIndex uint16, accountIdxs []uint16, data []byte, keys []solana.PublicKey) (Instruction, bool) {
	if int(programIDIndex) >= len(keys) {
		return Instruction{}, false
	}
	accounts := make([]solana.PublicKey, 0, len(accountIdxs))
	for _, idx := range accountIdxs {
		if int(idx) >= len(keys) {
			return Instruction{}, false
		}
		accounts = append(accounts, keys[idx])
	}
	return Instruction{
		ProgramID: keys[programIDIndex],
		Accounts:  accounts,
		Data:      data,
	}, true
}
