package token

import (
	"github.com/gagliardetto/solana-go"

	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/ledger"
)

// AssociatedProgramID is the address of the associated token account program.
var AssociatedProgramID = solana.SPLAssociatedTokenAccountProgramID

const (
	ataCreate           uint8 = 0
	ataCreateIdempotent uint8 = 1
)

var ErrInvalidOwner = &ledger.ProgramError{Name: "InvalidOwner", Message: "associated token account owner does not match address derivation"}

// AssociatedAddress returns the canonical balance record of owner for mint.
func AssociatedAddress(owner, mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindAssociatedTokenAddress(owner, mint)
}

// MustAssociatedAddress is AssociatedAddress for keys already known to be valid.
func MustAssociatedAddress(owner, mint solana.PublicKey) solana.PublicKey {
	addr, _, err := AssociatedAddress(owner, mint)
	if err != nil {
		panic(err)
	}
	return addr
}

// AssociatedProgram creates associated token accounts.
type AssociatedProgram struct{}

// Process expects [payer, associated account, owner, mint, system program, token program].
func (AssociatedProgram) Process(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, data []byte) error {
	idempotent := false
	if len(data) > 0 {
		switch data[0] {
		case ataCreate:
		case ataCreateIdempotent:
			idempotent = true
		default:
			return ledger.ErrInvalidInstructionData
		}
	}
	if len(accounts) < 6 {
		return ledger.ErrNotEnoughAccountKeys
	}
	payer, ata, owner, mint := accounts[0], accounts[1], accounts[2], accounts[3]
	if !accounts[5].Key.Equals(ProgramID) {
		return ledger.ErrIncorrectProgramID
	}

	addr, bump, err := AssociatedAddress(owner.Key, mint.Key)
	if err != nil {
		return err
	}
	if !addr.Equals(ata.Key) {
		ctx.Log("Error: associated address does not match seed derivation")
		return ledger.ErrInvalidSeeds
	}

	if idempotent && ata.Owner.Equals(ProgramID) {
		existing, err := UnpackAccount(ata)
		if err != nil {
			return err
		}
		if !existing.Owner.Equals(owner.Key) {
			return ErrInvalidOwner
		}
		if !existing.Mint.Equals(mint.Key) {
			return ErrMintMismatch
		}
		return nil
	}

	ctx.Log("Create")
	create := ledger.CreateAccount(payer.Key, ata.Key, ledger.MinimumBalance(AccountLen), AccountLen, ProgramID)
	seeds := [][]byte{owner.Key[:], ProgramID[:], mint.Key[:], {bump}}
	if err := ctx.InvokeSigned(create, seeds); err != nil {
		return err
	}
	return ctx.Invoke(InitializeAccount(ata.Key, mint.Key, owner.Key))
}

// CreateAssociated builds the idempotent create instruction for owner and mint.
func CreateAssociated(payer, owner, mint solana.PublicKey) ledger.Instruction {
	return ledger.NewInstruction(AssociatedProgramID, []*solana.AccountMeta{
		solana.NewAccountMeta(payer, true, true),
		solana.NewAccountMeta(MustAssociatedAddress(owner, mint), true, false),
		solana.NewAccountMeta(owner, false, false),
		solana.NewAccountMeta(mint, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(ProgramID, false, false),
	}, []byte{ataCreateIdempotent})
}

// NewMintAccount returns a rent exempt ledger account holding m.
func NewMintAccount(m Mint) *ledger.Account {
	acc := ledger.NewAccount(ProgramID, ledger.MinimumBalance(MintLen), MintLen)
	_ = m.Pack(acc.Data)
	return acc
}

// NewTokenAccount returns a rent exempt ledger account holding a.
func NewTokenAccount(a Account) *ledger.Account {
	acc := ledger.NewAccount(ProgramID, ledger.MinimumBalance(AccountLen), AccountLen)
	_ = a.Pack(acc.Data)
	return acc
}
