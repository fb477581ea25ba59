// Package decimalwrapper is a generic interface venue that wraps a token into
// a copy with more decimals. Deposits multiply, withdrawals divide.
package decimalwrapper

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/ledger"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/token"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/venues/actioniface"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "decimal-wrapper").Logger()
}

// ProgramID is the address the wrapper program is registered at.
var ProgramID = ledger.ProgramIDFromName("decimal_wrapper")

// WrapperLen is the encoded size of a Wrapper.
const WrapperLen = 1 + 1 + 8 + 32 + 32 + 32

var (
	ErrInvalidWrapper     = &ledger.ProgramError{Name: "InvalidWrapper", Message: "wrapper account does not match the supplied mint or reserve"}
	ErrUnknownAction      = &ledger.ProgramError{Name: "UnknownAction", Message: "action code is not supported by this venue"}
	ErrInsufficientAmount = &ledger.ProgramError{Name: "InsufficientAmount", Message: "amount is too small to withdraw a whole underlying unit"}
)

// Wrapper is the state of one wrapped token.
type Wrapper struct {
	Nonce             uint8
	Decimals          uint8
	Multiplier        uint64
	UnderlyingMint    solana.PublicKey
	WrapperMint       solana.PublicKey
	UnderlyingReserve solana.PublicKey
}

func (w *Wrapper) Pack(dst []byte) error {
	if len(dst) < WrapperLen {
		return ledger.ErrAccountDataTooSmall
	}
	buf := bytes.NewBuffer(make([]byte, 0, WrapperLen))
	if err := bin.NewBorshEncoder(buf).Encode(w); err != nil {
		return fmt.Errorf("failed to encode wrapper: %w", err)
	}
	copy(dst, buf.Bytes())
	return nil
}

func DecodeWrapper(data []byte) (*Wrapper, error) {
	if len(data) < WrapperLen {
		return nil, ledger.ErrAccountDataTooSmall
	}
	var w Wrapper
	if err := bin.NewBorshDecoder(data[:WrapperLen]).Decode(&w); err != nil {
		return nil, fmt.Errorf("failed to decode wrapper: %w", err)
	}
	return &w, nil
}

// Multiplier returns 10^(target-underlying).
func Multiplier(underlyingDecimals, targetDecimals uint8) (uint64, error) {
	if targetDecimals < underlyingDecimals {
		return 0, fmt.Errorf("wrapped decimals %d below underlying %d", targetDecimals, underlyingDecimals)
	}
	diff := targetDecimals - underlyingDecimals
	if diff > 19 {
		return 0, fmt.Errorf("decimal difference %d overflows", diff)
	}
	m := uint64(1)
	for i := uint8(0); i < diff; i++ {
		m *= 10
	}
	return m, nil
}

func wrapperSeeds(underlying solana.PublicKey, decimals uint8) [][]byte {
	return [][]byte{[]byte("wrapper"), underlying[:], {decimals}}
}

// FindWrapper derives the wrapper state address, which also acts as the
// authority of the wrapped mint and the underlying reserve.
func FindWrapper(programID, underlying solana.PublicKey, decimals uint8) (solana.PublicKey, uint8, error) {
	return ledger.FindProgramAddress(wrapperSeeds(underlying, decimals), programID)
}

// Program is the wrapper venue.
type Program struct{}

// Process expects the generic interface accounts followed by
// [wrapper, wrapper_mint, underlying_reserve].
func (Program) Process(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, data []byte) error {
	args, err := actioniface.Decode(data)
	if err != nil {
		return err
	}
	accts, err := actioniface.Parse(accounts)
	if err != nil {
		return err
	}
	if len(accts.Remaining) < 3 {
		return ledger.ErrNotEnoughAccountKeys
	}
	wrapperInfo, wrapperMint, reserve := accts.Remaining[0], accts.Remaining[1], accts.Remaining[2]
	if !wrapperInfo.Owner.Equals(ctx.ProgramID()) {
		return ledger.ErrIllegalOwner
	}
	w, err := DecodeWrapper(wrapperInfo.Data)
	if err != nil {
		return ledger.ErrInvalidAccountData
	}
	if !w.WrapperMint.Equals(wrapperMint.Key) || !w.UnderlyingReserve.Equals(reserve.Key) {
		return ErrInvalidWrapper
	}
	seeds := append(wrapperSeeds(w.UnderlyingMint, w.Decimals), []byte{w.Nonce})

	var out uint64
	switch args.Action {
	case actioniface.ActionDeposit:
		if args.AmountIn > math.MaxUint64/w.Multiplier {
			return ledger.ErrArithmeticOverflow
		}
		out = args.AmountIn * w.Multiplier
		if out < args.MinimumAmountOut {
			return actioniface.ErrSlippageExceeded
		}
		ctx.Logf("Instruction: Deposit %d underlying for %d wrapped", args.AmountIn, out)
		if err := ctx.Invoke(token.Transfer(accts.Input.Key, reserve.Key, accts.UserAuthority.Key, args.AmountIn)); err != nil {
			return err
		}
		if err := ctx.InvokeSigned(token.MintTo(wrapperMint.Key, accts.Output.Key, wrapperInfo.Key, out), seeds); err != nil {
			return err
		}
	case actioniface.ActionWithdraw:
		out = args.AmountIn / w.Multiplier
		if out == 0 {
			return ErrInsufficientAmount
		}
		if out < args.MinimumAmountOut {
			return actioniface.ErrSlippageExceeded
		}
		burned := out * w.Multiplier
		ctx.Logf("Instruction: Withdraw %d wrapped for %d underlying", burned, out)
		if err := ctx.Invoke(token.Burn(accts.Input.Key, wrapperMint.Key, accts.UserAuthority.Key, burned)); err != nil {
			return err
		}
		if err := ctx.InvokeSigned(token.Transfer(reserve.Key, accts.Output.Key, wrapperInfo.Key, out), seeds); err != nil {
			return err
		}
	default:
		ctx.Logf("Unknown action %d", args.Action)
		return ErrUnknownAction
	}

	log.Debug().
		Uint16("action", args.Action).
		Uint64("amount_in", args.AmountIn).
		Uint64("amount_out", out).
		Msg("Wrapper action executed")
	var ret [8]byte
	binary.LittleEndian.PutUint64(ret[:], out)
	ctx.SetReturnData(ret[:])
	return nil
}

// Layout is the set of addresses making up a wrapper.
type Layout struct {
	Wrapper           solana.PublicKey
	Nonce             uint8
	UnderlyingMint    solana.PublicKey
	WrapperMint       solana.PublicKey
	UnderlyingReserve solana.PublicKey
	Multiplier        uint64
}

// RemainingAccounts lists the accounts the venue expects after the generic ones.
func (l *Layout) RemainingAccounts() []*solana.AccountMeta {
	return []*solana.AccountMeta{
		solana.NewAccountMeta(l.Wrapper, false, false),
		solana.NewAccountMeta(l.WrapperMint, true, false),
		solana.NewAccountMeta(l.UnderlyingReserve, true, false),
	}
}

// LoadLayout reads a wrapper account back into its layout.
func LoadLayout(programID, key solana.PublicKey, acc *ledger.Account) (*Layout, error) {
	if acc == nil || !acc.Owner.Equals(programID) {
		return nil, fmt.Errorf("account %s is not a wrapper", key)
	}
	w, err := DecodeWrapper(acc.Data)
	if err != nil {
		return nil, err
	}
	return &Layout{
		Wrapper:           key,
		Nonce:             w.Nonce,
		UnderlyingMint:    w.UnderlyingMint,
		WrapperMint:       w.WrapperMint,
		UnderlyingReserve: w.UnderlyingReserve,
		Multiplier:        w.Multiplier,
	}, nil
}

// GenesisAccounts builds a wrapper for underlying with the given decimals.
// The wrapped mint is created at wrapperMint.
func GenesisAccounts(programID, underlying, wrapperMint solana.PublicKey, underlyingDecimals, decimals uint8) (*Layout, map[solana.PublicKey]*ledger.Account, error) {
	multiplier, err := Multiplier(underlyingDecimals, decimals)
	if err != nil {
		return nil, nil, err
	}
	key, nonce, err := FindWrapper(programID, underlying, decimals)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to derive wrapper: %w", err)
	}
	reserve, _, err := token.AssociatedAddress(key, underlying)
	if err != nil {
		return nil, nil, err
	}
	w := Wrapper{
		Nonce:             nonce,
		Decimals:          decimals,
		Multiplier:        multiplier,
		UnderlyingMint:    underlying,
		WrapperMint:       wrapperMint,
		UnderlyingReserve: reserve,
	}
	acc := ledger.NewAccount(programID, ledger.MinimumBalance(WrapperLen), WrapperLen)
	if err := w.Pack(acc.Data); err != nil {
		return nil, nil, err
	}
	layout := &Layout{
		Wrapper:           key,
		Nonce:             nonce,
		UnderlyingMint:    underlying,
		WrapperMint:       wrapperMint,
		UnderlyingReserve: reserve,
		Multiplier:        multiplier,
	}
	return layout, map[solana.PublicKey]*ledger.Account{
		key: acc,
		wrapperMint: token.NewMintAccount(token.Mint{
			Authority: key, Decimals: decimals, Initialized: true,
		}),
		reserve: token.NewTokenAccount(token.Account{
			Mint: underlying, Owner: key, State: token.AccountInitialized,
		}),
	}, nil
}
