package solana

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// SignatureInfo is the metadata returned by the signature scan for one
// transaction. Failed transactions are surfaced so the poller can skip
// fetching them entirely.
type SignatureInfo struct {
	Signature solana.Signature
	Slot      uint64
	BlockTime time.Time
	Failed    bool
}

// Instruction is a resolved instruction: program id and accounts looked up
// from the transaction's account table, payload left opaque for the decoder.
type Instruction struct {
	ProgramID solana.PublicKey
	Accounts  []solana.PublicKey
	Data      []byte
}

// Transaction is our domain view of a fetched transaction, independent of
// the RPC response format. Instructions contains top-level and inner
// (CPI) instructions in execution order.
type Transaction struct {
	Signature    solana.Signature
	Slot         uint64
	BlockTime    time.Time
	Instructions []Instruction
}
