// Package dedupe provides a bounded, insertion-ordered signature filter.
//
// The tracker is an approximate filter: once capacity is reached the oldest
// entries are evicted FIFO, so a sufficiently old signature could in
// principle be re-admitted. The poller's forward-only cursor makes revisits
// impossible in normal operation; the bound exists because unbounded growth
// is a leak in a long-running process, and operators should size capacity
// comfortably above the scan batch limit.
package dedupe

import "github.com/gagliardetto/solana-go"

// Tracker remembers recently processed transaction signatures.
// Not safe for concurrent use; the poller owns it exclusively.
type Tracker struct {
	capacity int
	present  map[solana.Signature]struct{}
	order    []solana.Signature
}

// NewTracker creates a tracker holding at most capacity signatures.
// A non-positive capacity falls back to 1.
func NewTracker(capacity int) *Tracker {
	if capacity < 1 {
		capacity = 1
	}
	return &Tracker{
		capacity: capacity,
		present:  make(map[solana.Signature]struct{}, capacity),
	}
}

// Seen reports whether the signature has been marked and not yet evicted.
func (t *Tracker) Seen(sig solana.Signature) bool {
	_, ok := t.present[sig]
	return ok
}

// Mark records the signature, evicting the oldest entries once the capacity
// bound is exceeded. Marking an already-present signature is a no-op.
func (t *Tracker) Mark(sig solana.Signature) {
	if _, ok := t.present[sig]; ok {
		return
	}
	t.present[sig] = struct{}{}
	t.order = append(t.order, sig)

	for len(t.present) > t.capacity {
		oldest := t.order[0]
		t.order = t.order[1:]
		delete(t.present, oldest)
	}
}

// Len returns the number of tracked signatures.
func (t *Tracker) Len() int {
	return len(t.present)
}

// Warm marks signatures in order, used to restore state from storage at
// startup. Later entries survive eviction over earlier ones.
func (t *Tracker) Warm(sigs []solana.Signature) {
	for _, s := range sigs {
		t.Mark(s)
	}
}
