// Package token implements the balance record programs: a token program that
// holds mints and balances and the associated token account program that
// derives one canonical balance record per owner and mint.
package token

import (
	"github.com/gagliardetto/solana-go"

	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/ledger"
)

// ProgramID is the address the token program is registered at.
var ProgramID = solana.TokenProgramID

// Instruction tags.
const (
	TagInitializeMint     uint8 = 0
	TagTransfer           uint8 = 3
	TagMintTo             uint8 = 7
	TagBurn               uint8 = 8
	TagCloseAccount       uint8 = 9
	TagInitializeAccount3 uint8 = 18
)

var (
	ErrMintMismatch        = &ledger.ProgramError{Name: "MintMismatch", Message: "account not associated with this mint"}
	ErrOwnerMismatch       = &ledger.ProgramError{Name: "OwnerMismatch", Message: "owner does not match"}
	ErrInsufficientFunds   = &ledger.ProgramError{Name: "InsufficientFunds", Message: "insufficient funds"}
	ErrNonNativeHasBalance = &ledger.ProgramError{Name: "NonNativeHasBalance", Message: "non-native account can only be closed if its balance is zero"}
	ErrFixedSupply         = &ledger.ProgramError{Name: "FixedSupply", Message: "this token mint cannot mint new tokens"}
)

// Program is the token program.
type Program struct{}

func (Program) Process(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, data []byte) error {
	if len(data) == 0 {
		return ledger.ErrInvalidInstructionData
	}
	tag, rest := data[0], data[1:]
	switch tag {
	case TagInitializeMint:
		var args initializeMintArgs
		if err := decodeArgs(rest, &args); err != nil {
			return err
		}
		return initializeMint(ctx, accounts, args)
	case TagInitializeAccount3:
		var args initializeAccountArgs
		if err := decodeArgs(rest, &args); err != nil {
			return err
		}
		return initializeAccount(ctx, accounts, args)
	case TagTransfer:
		var args amountArgs
		if err := decodeArgs(rest, &args); err != nil {
			return err
		}
		return transfer(ctx, accounts, args.Amount)
	case TagMintTo:
		var args amountArgs
		if err := decodeArgs(rest, &args); err != nil {
			return err
		}
		return mintTo(ctx, accounts, args.Amount)
	case TagBurn:
		var args amountArgs
		if err := decodeArgs(rest, &args); err != nil {
			return err
		}
		return burn(ctx, accounts, args.Amount)
	case TagCloseAccount:
		return closeAccount(ctx, accounts)
	default:
		return ledger.ErrInvalidInstructionData
	}
}

func initializeMint(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, args initializeMintArgs) error {
	if len(accounts) < 1 {
		return ledger.ErrNotEnoughAccountKeys
	}
	mint := accounts[0]
	if !mint.Owner.Equals(ProgramID) {
		return ledger.ErrIllegalOwner
	}
	existing, err := DecodeMint(mint.Data)
	if err != nil {
		return ledger.ErrInvalidAccountData
	}
	if existing.Initialized {
		return ledger.ErrAccountAlreadyInitialized
	}
	ctx.Log("Instruction: InitializeMint")
	m := Mint{Authority: args.Authority, Decimals: args.Decimals, Initialized: true}
	return m.Pack(mint.Data)
}

func initializeAccount(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, args initializeAccountArgs) error {
	if len(accounts) < 2 {
		return ledger.ErrNotEnoughAccountKeys
	}
	target, mintInfo := accounts[0], accounts[1]
	if !target.Owner.Equals(ProgramID) {
		return ledger.ErrIllegalOwner
	}
	existing, err := DecodeAccount(target.Data)
	if err != nil {
		return ledger.ErrInvalidAccountData
	}
	if existing.State != AccountUninitialized {
		return ledger.ErrAccountAlreadyInitialized
	}
	if _, err := UnpackMint(mintInfo); err != nil {
		return err
	}
	ctx.Log("Instruction: InitializeAccount3")
	acc := Account{Mint: mintInfo.Key, Owner: args.Owner, State: AccountInitialized}
	return acc.Pack(target.Data)
}

func transfer(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, amount uint64) error {
	if len(accounts) < 3 {
		return ledger.ErrNotEnoughAccountKeys
	}
	srcInfo, dstInfo, authority := accounts[0], accounts[1], accounts[2]
	src, err := UnpackAccount(srcInfo)
	if err != nil {
		return err
	}
	dst, err := UnpackAccount(dstInfo)
	if err != nil {
		return err
	}
	if !src.Mint.Equals(dst.Mint) {
		return ErrMintMismatch
	}
	if err := checkAuthority(src.Owner, authority); err != nil {
		return err
	}
	if src.Amount < amount {
		ctx.Logf("Error: insufficient funds, have %d need %d", src.Amount, amount)
		return ErrInsufficientFunds
	}
	ctx.Log("Instruction: Transfer")
	if srcInfo.Key.Equals(dstInfo.Key) {
		return nil
	}
	if dst.Amount+amount < dst.Amount {
		return ledger.ErrArithmeticOverflow
	}
	src.Amount -= amount
	dst.Amount += amount
	if err := src.Pack(srcInfo.Data); err != nil {
		return err
	}
	return dst.Pack(dstInfo.Data)
}

func mintTo(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, amount uint64) error {
	if len(accounts) < 3 {
		return ledger.ErrNotEnoughAccountKeys
	}
	mintInfo, dstInfo, authority := accounts[0], accounts[1], accounts[2]
	m, err := UnpackMint(mintInfo)
	if err != nil {
		return err
	}
	dst, err := UnpackAccount(dstInfo)
	if err != nil {
		return err
	}
	if !dst.Mint.Equals(mintInfo.Key) {
		return ErrMintMismatch
	}
	if m.Authority.IsZero() {
		return ErrFixedSupply
	}
	if err := checkAuthority(m.Authority, authority); err != nil {
		return err
	}
	if m.Supply+amount < m.Supply {
		return ledger.ErrArithmeticOverflow
	}
	ctx.Log("Instruction: MintTo")
	m.Supply += amount
	dst.Amount += amount
	if err := m.Pack(mintInfo.Data); err != nil {
		return err
	}
	return dst.Pack(dstInfo.Data)
}

func burn(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, amount uint64) error {
	if len(accounts) < 3 {
		return ledger.ErrNotEnoughAccountKeys
	}
	srcInfo, mintInfo, authority := accounts[0], accounts[1], accounts[2]
	src, err := UnpackAccount(srcInfo)
	if err != nil {
		return err
	}
	m, err := UnpackMint(mintInfo)
	if err != nil {
		return err
	}
	if !src.Mint.Equals(mintInfo.Key) {
		return ErrMintMismatch
	}
	if err := checkAuthority(src.Owner, authority); err != nil {
		return err
	}
	if src.Amount < amount {
		return ErrInsufficientFunds
	}
	ctx.Log("Instruction: Burn")
	src.Amount -= amount
	m.Supply -= amount
	if err := src.Pack(srcInfo.Data); err != nil {
		return err
	}
	return m.Pack(mintInfo.Data)
}

func closeAccount(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo) error {
	if len(accounts) < 3 {
		return ledger.ErrNotEnoughAccountKeys
	}
	srcInfo, dstInfo, authority := accounts[0], accounts[1], accounts[2]
	src, err := UnpackAccount(srcInfo)
	if err != nil {
		return err
	}
	if src.Amount != 0 {
		return ErrNonNativeHasBalance
	}
	if err := checkAuthority(src.Owner, authority); err != nil {
		return err
	}
	ctx.Log("Instruction: CloseAccount")
	dstInfo.Lamports += srcInfo.Lamports
	srcInfo.Lamports = 0
	srcInfo.Data = nil
	srcInfo.Owner = solana.SystemProgramID
	return nil
}

func checkAuthority(expected solana.PublicKey, authority *ledger.AccountInfo) error {
	if !expected.Equals(authority.Key) {
		return ErrOwnerMismatch
	}
	if !authority.IsSigner {
		return ledger.ErrMissingRequiredSignature
	}
	return nil
}
