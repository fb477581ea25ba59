// Package actioniface is the calling convention generic venues implement so
// the router can drive them without knowing their account layout.
//
// Instruction data is {action u16, amount_in u64, minimum_amount_out u64},
// little endian. Accounts are [user_authority (signer), input (writable),
// output (writable), token_program] followed by whatever the venue needs.
package actioniface

import (
	"bytes"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/ledger"
)

// Action codes understood by venues.
const (
	ActionWithdraw uint16 = 10
	ActionDeposit  uint16 = 11
)

// DataLen is the size of encoded Args.
const DataLen = 2 + 8 + 8

// FixedAccounts is the number of accounts preceding the venue specific ones.
const FixedAccounts = 4

var ErrSlippageExceeded = &ledger.ProgramError{Name: "SlippageExceeded", Message: "output is below the requested minimum"}

type Args struct {
	Action           uint16
	AmountIn         uint64
	MinimumAmountOut uint64
}

func (a Args) Encode() []byte {
	buf := bytes.NewBuffer(make([]byte, 0, DataLen))
	_ = bin.NewBorshEncoder(buf).Encode(a)
	return buf.Bytes()
}

func Decode(data []byte) (Args, error) {
	var a Args
	if len(data) < DataLen {
		return a, ledger.ErrInvalidInstructionData
	}
	if err := bin.NewBorshDecoder(data[:DataLen]).Decode(&a); err != nil {
		return a, ledger.ErrInvalidInstructionData
	}
	return a, nil
}

// Accounts is the fixed part of the account list as seen by the venue.
type Accounts struct {
	UserAuthority *ledger.AccountInfo
	Input         *ledger.AccountInfo
	Output        *ledger.AccountInfo
	TokenProgram  *ledger.AccountInfo
	Remaining     []*ledger.AccountInfo
}

// Parse splits a venue's account list.
func Parse(accounts []*ledger.AccountInfo) (*Accounts, error) {
	if len(accounts) < FixedAccounts {
		return nil, ledger.ErrNotEnoughAccountKeys
	}
	a := &Accounts{
		UserAuthority: accounts[0],
		Input:         accounts[1],
		Output:        accounts[2],
		TokenProgram:  accounts[3],
		Remaining:     accounts[FixedAccounts:],
	}
	if !a.UserAuthority.IsSigner {
		return nil, ledger.ErrMissingRequiredSignature
	}
	if !a.TokenProgram.Key.Equals(solana.TokenProgramID) {
		return nil, ledger.ErrIncorrectProgramID
	}
	return a, nil
}

// NewInstruction builds a call into a generic venue.
func NewInstruction(programID, userAuthority, input, output, tokenProgram solana.PublicKey, args Args, remaining ...*solana.AccountMeta) ledger.Instruction {
	metas := []*solana.AccountMeta{
		solana.NewAccountMeta(userAuthority, false, true),
		solana.NewAccountMeta(input, true, false),
		solana.NewAccountMeta(output, true, false),
		solana.NewAccountMeta(tokenProgram, false, false),
	}
	metas = append(metas, remaining...)
	return ledger.NewInstruction(programID, metas, args.Encode())
}
