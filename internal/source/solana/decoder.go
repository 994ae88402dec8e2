package solana

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
)

// Well-known Solana program IDs.
var (
	// TokenProgramID is the SPL Token program.
	TokenProgramID = solana.MustPublicKeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")

	// Token2022ProgramID is the Token Extensions program (Token-2022).
	Token2022ProgramID = solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")
)

// SPL Token instruction discriminants (leading payload byte).
const (
	tokenInstructionBurn        = uint8(8)
	tokenInstructionBurnChecked = uint8(15)
)

// BurnKind distinguishes the two burn instruction variants.
type BurnKind uint8

const (
	BurnKindBurn BurnKind = iota
	BurnKindBurnChecked
)

func (k BurnKind) String() string {
	if k == BurnKindBurnChecked {
		return "burnChecked"
	}
	return "burn"
}

// BurnOp is a decoded burn instruction. Amount is the raw integer unit
// reported by the ledger; no decimal scaling is applied here.
type BurnOp struct {
	Kind        BurnKind
	Amount      uint64
	Decimals    uint8
	HasDecimals bool
	Source      solana.PublicKey // token account being debited
	Mint        solana.PublicKey
	Authority   solana.PublicKey
}

// burnLayout declares the fixed-width payload for one discriminant, so
// adding future burn variants is a table entry rather than new control flow.
type burnLayout struct {
	kind        BurnKind
	dataLen     int
	hasDecimals bool
}

var burnLayouts = map[uint8]burnLayout{
	// Burn: [disc:1][amount:8 LE]
	tokenInstructionBurn: {kind: BurnKindBurn, dataLen: 9},
	// BurnChecked: [disc:1][amount:8 LE][decimals:1]
	tokenInstructionBurnChecked: {kind: BurnKindBurnChecked, dataLen: 10, hasDecimals: true},
}

// Account layout for both variants: [source_token_account, mint, authority].
const burnAccountCount = 3

// DecodeBurn inspects one instruction and returns the decoded burn operation
// if it is a well-formed SPL Token Burn or BurnChecked. Anything else,
// including short payloads, unknown discriminants, and short account lists,
// returns false: a transaction carries many unrelated instructions, so a
// non-burn is the expected outcome, not an error.
func DecodeBurn(programID solana.PublicKey, accounts []solana.PublicKey, data []byte) (BurnOp, bool) {
	if !programID.Equals(TokenProgramID) && !programID.Equals(Token2022ProgramID) {
		return BurnOp{}, false
	}
	if len(data) == 0 {
		return BurnOp{}, false
	}

	layout, ok := burnLayouts[data[0]]
	if !ok {
		return BurnOp{}, false
	}
	if len(data) < layout.dataLen || len(accounts) < burnAccountCount {
		return BurnOp{}, false
	}

	op := BurnOp{
		Kind:      layout.kind,
		Amount:    binary.LittleEndian.Uint64(data[1:9]),
		Source:    accounts[0],
		Mint:      accounts[1],
		Authority: accounts[2],
	}
	if layout.hasDecimals {
		op.Decimals = data[9]
		op.HasDecimals = true
	}
	return op, true
}
