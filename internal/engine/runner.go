package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/wali-hu/usdc-burn-listener/internal/dedupe"
	"github.com/wali-hu/usdc-burn-listener/internal/metrics"
	"github.com/wali-hu/usdc-burn-listener/internal/sink"
	source "github.com/wali-hu/usdc-burn-listener/internal/source/solana"
	"github.com/wali-hu/usdc-burn-listener/internal/storage"
)

// ChainClient is the RPC-backed scan/fetch surface the poller drives.
type ChainClient interface {
	Signatures(ctx context.Context, mint solana.PublicKey, until *solana.Signature, limit int) ([]source.SignatureInfo, error)
	Transaction(ctx context.Context, sig solana.Signature) (*source.Transaction, error)
}

// Options configures a Runner.
type Options struct {
	Mint           solana.PublicKey
	BatchLimit     int
	DedupeCapacity int
	Backoff        Backoff
	DryRun         bool
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
}

// Runner drives the scan-fetch-decode-dedupe-emit cycle. It exclusively
// owns the cursor and the dedupe tracker: one goroutine, one cycle at a
// time, so neither needs locking.
type Runner struct {
	client   ChainClient
	store    *storage.Store
	tracker  *dedupe.Tracker
	sinks    map[string]sink.Sender
	mint     solana.PublicKey
	limit    int
	capacity int
	backoff  Backoff
	dryRun   bool
	metrics  *metrics.Metrics
	log      *slog.Logger

	cursor    *solana.Signature
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// NewRunner wires the client, persistence, dedupe tracker, and sinks.
func NewRunner(client ChainClient, store *storage.Store, tracker *dedupe.Tracker, sinks map[string]sink.Sender, opts Options) *Runner {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		client:    client,
		store:     store,
		tracker:   tracker,
		sinks:     sinks,
		mint:      opts.Mint,
		limit:     opts.BatchLimit,
		capacity:  opts.DedupeCapacity,
		backoff:   opts.Backoff,
		dryRun:    opts.DryRun,
		metrics:   opts.Metrics,
		log:       log,
		sleepFunc: sleepCtx,
	}
}

// Restore loads the persisted cursor and warms the dedupe tracker with
// recently seen signatures, so a restart resumes instead of re-emitting
// burns from near the cursor boundary.
func (r *Runner) Restore(ctx context.Context) error {
	sigStr, _, ok, err := r.store.GetCursor(ctx, r.mint.String())
	if err != nil {
		return err
	}
	if ok {
		sig, err := solana.SignatureFromBase58(sigStr)
		if err != nil {
			return fmt.Errorf("stored cursor %q: %w", sigStr, err)
		}
		r.cursor = &sig
	}

	seen, err := r.store.RecentSeen(ctx, r.capacity)
	if err != nil {
		return err
	}
	sigs := make([]solana.Signature, 0, len(seen))
	for _, s := range seen {
		sig, err := solana.SignatureFromBase58(s)
		if err != nil {
			continue
		}
		sigs = append(sigs, sig)
	}
	r.tracker.Warm(sigs)

	r.log.Info("restored poll state", "cursor_set", ok, "seen_warmed", len(sigs))
	return nil
}

// Run polls on a fixed interval until ctx is canceled. Cancellation is
// cooperative: it interrupts waits and backoff and stops at the next safe
// checkpoint, never leaving the cursor ahead of unprocessed signatures.
func (r *Runner) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := r.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.log.Error("cycle failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce processes one full cycle: scan new signatures past the cursor,
// handle each in chronological order, then advance and persist the cursor
// past the newest one. The cursor only moves after the whole batch has been
// processed, preserving at-least-once delivery across restarts.
func (r *Runner) RunOnce(ctx context.Context) error {
	batch, err := r.scanWithBackoff(ctx)
	if err != nil {
		return err
	}
	r.metrics.SignaturesScanned(len(batch))

	for _, si := range batch {
		if err := r.processSignature(ctx, si); err != nil {
			return err
		}
	}

	if len(batch) > 0 {
		newest := batch[len(batch)-1]
		if err := r.store.UpsertCursor(ctx, r.mint.String(), newest.Signature.String(), newest.Slot); err != nil {
			return fmt.Errorf("persist cursor: %w", err)
		}
		sig := newest.Signature
		r.cursor = &sig
		r.log.Debug("cursor advanced", "signature", sig.String(), "slot", newest.Slot, "batch", len(batch))
	}

	r.metrics.Cycles()
	return nil
}

// Cursor returns the current cursor signature, nil before the first batch.
func (r *Runner) Cursor() *solana.Signature {
	return r.cursor
}

func (r *Runner) processSignature(ctx context.Context, si source.SignatureInfo) error {
	if r.tracker.Seen(si.Signature) {
		r.metrics.EventsDeduped()
		return nil
	}

	// Burn instructions in failed transactions did not execute; no fetch
	// needed, just mark so the signature is not revisited.
	if si.Failed {
		r.metrics.TxSkipped("failed")
		return r.mark(ctx, si.Signature)
	}

	txn, err := r.fetchWithBackoff(ctx, si.Signature)
	switch {
	case err == nil:
	case errors.Is(err, source.ErrNotFound):
		r.log.Warn("transaction unavailable, skipping", "signature", si.Signature.String())
		r.metrics.TxSkipped("not_found")
		return r.mark(ctx, si.Signature)
	case errors.Is(err, source.ErrMalformed):
		r.log.Warn("transaction undecodable, skipping", "signature", si.Signature.String(), "error", err)
		r.metrics.TxSkipped("malformed")
		return r.mark(ctx, si.Signature)
	default:
		// shutdown mid-backoff; cursor stays put
		return err
	}

	for _, ix := range txn.Instructions {
		op, ok := source.DecodeBurn(ix.ProgramID, ix.Accounts, ix.Data)
		if !ok || !op.Mint.Equals(r.mint) {
			continue
		}
		r.emit(ctx, txn, op)
	}

	// Marked whether or not a burn was found, so non-burn transactions are
	// never re-fetched.
	return r.mark(ctx, si.Signature)
}

func (r *Runner) emit(ctx context.Context, txn *source.Transaction, op source.BurnOp) {
	payload := sink.BurnPayload{
		Signature:     txn.Signature.String(),
		Mint:          op.Mint.String(),
		SourceAccount: op.Source.String(),
		Authority:     op.Authority.String(),
		Amount:        op.Amount,
		Slot:          txn.Slot,
	}
	if !txn.BlockTime.IsZero() {
		bt := txn.BlockTime
		payload.BlockTime = &bt
	}
	if op.HasDecimals {
		d := op.Decimals
		payload.Decimals = &d
	}

	r.log.Info("burn detected",
		"signature", payload.Signature,
		"kind", op.Kind.String(),
		"amount", op.Amount,
		"source", payload.SourceAccount,
	)

	if r.dryRun {
		return
	}

	for id, s := range r.sinks {
		if err := s.Send(ctx, payload); err != nil {
			// a sink outage must not wedge the pipeline
			r.log.Error("sink send failed", "sink", id, "signature", payload.Signature, "error", err)
			r.metrics.SinkErrors()
		}
	}

	if err := r.store.InsertBurn(ctx, storage.Burn{
		Signature:     payload.Signature,
		Mint:          payload.Mint,
		SourceAccount: payload.SourceAccount,
		Amount:        strconv.FormatUint(op.Amount, 10),
		Slot:          txn.Slot,
	}); err != nil {
		r.log.Error("record burn failed", "signature", payload.Signature, "error", err)
	}

	r.metrics.BurnsEmitted()
}

func (r *Runner) mark(ctx context.Context, sig solana.Signature) error {
	r.tracker.Mark(sig)
	if err := r.store.MarkSeen(ctx, sig.String(), r.capacity); err != nil {
		return fmt.Errorf("persist seen: %w", err)
	}
	return nil
}

func (r *Runner) scanWithBackoff(ctx context.Context) ([]source.SignatureInfo, error) {
	for attempt := 0; ; attempt++ {
		batch, err := r.client.Signatures(ctx, r.mint, r.cursor, r.limit)
		if err == nil {
			return batch, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.metrics.RPCErrors()

		delay := r.backoff.Delay(attempt)
		r.log.Warn("scan failed, backing off", "attempt", attempt+1, "delay", delay, "error", err)
		if err := r.sleepFunc(ctx, delay); err != nil {
			return nil, err
		}
	}
}

func (r *Runner) fetchWithBackoff(ctx context.Context, sig solana.Signature) (*source.Transaction, error) {
	for attempt := 0; ; attempt++ {
		txn, err := r.client.Transaction(ctx, sig)
		if err == nil {
			return txn, nil
		}
		if errors.Is(err, source.ErrNotFound) || errors.Is(err, source.ErrMalformed) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.metrics.RPCErrors()

		delay := r.backoff.Delay(attempt)
		r.log.Warn("fetch failed, backing off", "signature", sig.String(), "attempt", attempt+1, "delay", delay, "error", err)
		if err := r.sleepFunc(ctx, delay); err != nil {
			return nil, err
		}
	}
}
