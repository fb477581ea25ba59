// Package stableswap is a two asset stable swap pool program. It is the
// native venue the router's SS actions drive.
package stableswap

import (
	"encoding/binary"
	"os"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/rs/zerolog"

	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/ledger"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/token"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "stableswap").Logger()
}

// ProgramID is the address the pool program is registered at.
var ProgramID = ledger.ProgramIDFromName("stableswap")

// Instruction tags.
const (
	TagSwap        uint8 = 1
	TagDeposit     uint8 = 2
	TagWithdrawOne uint8 = 4
)

var (
	ErrInvalidInput          = &ledger.ProgramError{Name: "InvalidInput", Message: "input token is invalid for swap"}
	ErrCalculationFailure    = &ledger.ProgramError{Name: "CalculationFailure", Message: "general calculation failure due to overflow or underflow"}
	ErrExceededSlippage      = &ledger.ProgramError{Name: "ExceededSlippage", Message: "swap instruction exceeds desired slippage limit"}
	ErrInvalidProgramAddress = &ledger.ProgramError{Name: "InvalidProgramAddress", Message: "invalid program address generated from nonce and key"}
	ErrIncorrectSwapAccount  = &ledger.ProgramError{Name: "IncorrectSwapAccount", Message: "address of the provided swap token account is incorrect"}
	ErrIncorrectMint         = &ledger.ProgramError{Name: "IncorrectMint", Message: "address of the provided token mint is incorrect"}
)

type swapArgs struct {
	AmountIn         uint64
	MinimumAmountOut uint64
}

type depositArgs struct {
	TokenAAmount  uint64
	TokenBAmount  uint64
	MinMintAmount uint64
}

type withdrawOneArgs struct {
	PoolTokenAmount    uint64
	MinimumTokenAmount uint64
}

// Program is the stable swap pool program.
type Program struct{}

func (Program) Process(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, data []byte) error {
	if len(data) == 0 {
		return ledger.ErrInvalidInstructionData
	}
	dec := bin.NewBorshDecoder(data[1:])
	switch data[0] {
	case TagSwap:
		var args swapArgs
		if err := dec.Decode(&args); err != nil {
			return ledger.ErrInvalidInstructionData
		}
		return processSwap(ctx, accounts, args)
	case TagDeposit:
		var args depositArgs
		if err := dec.Decode(&args); err != nil {
			return ledger.ErrInvalidInstructionData
		}
		return processDeposit(ctx, accounts, args)
	case TagWithdrawOne:
		var args withdrawOneArgs
		if err := dec.Decode(&args); err != nil {
			return ledger.ErrInvalidInstructionData
		}
		return processWithdrawOne(ctx, accounts, args)
	default:
		return ledger.ErrInvalidInstructionData
	}
}

// loadPool checks the pool account and its authority.
func loadPool(ctx *ledger.InvokeContext, poolInfo, authority *ledger.AccountInfo) (*Pool, error) {
	if !poolInfo.Owner.Equals(ctx.ProgramID()) {
		return nil, ledger.ErrIllegalOwner
	}
	pool, err := DecodePool(poolInfo.Data)
	if err != nil {
		return nil, ledger.ErrInvalidAccountData
	}
	if !pool.IsInitialized {
		return nil, ledger.ErrUninitializedAccount
	}
	expected, err := Authority(ctx.ProgramID(), poolInfo.Key, pool.Nonce)
	if err != nil || !expected.Equals(authority.Key) {
		return nil, ErrInvalidProgramAddress
	}
	return pool, nil
}

func amountOf(info *ledger.AccountInfo) (uint64, error) {
	acc, err := token.UnpackAccount(info)
	if err != nil {
		return 0, err
	}
	return acc.Amount, nil
}

func setReturnAmount(ctx *ledger.InvokeContext, amount uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], amount)
	ctx.SetReturnData(buf[:])
}

// processSwap expects [pool, authority, user_authority, user_source,
// reserve_source, reserve_destination, user_destination, token_program].
func processSwap(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, args swapArgs) error {
	if len(accounts) < 8 {
		return ledger.ErrNotEnoughAccountKeys
	}
	poolInfo, authority, userAuthority := accounts[0], accounts[1], accounts[2]
	userSource, reserveSource, reserveDest, userDest := accounts[3], accounts[4], accounts[5], accounts[6]

	pool, err := loadPool(ctx, poolInfo, authority)
	if err != nil {
		return err
	}
	if !userAuthority.IsSigner {
		return ledger.ErrMissingRequiredSignature
	}
	in, out, ok := pool.Side(reserveSource.Key)
	if !ok || !out.Reserve.Equals(reserveDest.Key) {
		return ErrIncorrectSwapAccount
	}
	if reserveSource.Key.Equals(userSource.Key) || reserveDest.Key.Equals(userDest.Key) {
		return ErrInvalidInput
	}
	reserveIn, err := amountOf(reserveSource)
	if err != nil {
		return err
	}
	reserveOut, err := amountOf(reserveDest)
	if err != nil {
		return err
	}
	if args.AmountIn == 0 {
		return ErrInvalidInput
	}

	result, err := pool.QuoteSwap(reserveIn, reserveOut, args.AmountIn)
	if err != nil {
		return err
	}
	if result.AmountOut < args.MinimumAmountOut {
		ctx.Logf("Slippage: %d below minimum %d", result.AmountOut, args.MinimumAmountOut)
		return ErrExceededSlippage
	}
	ctx.Logf("Instruction: Swap %d %s for %d %s (fee %d)", args.AmountIn, in.Mint, result.AmountOut, out.Mint, result.Fee)

	if err := ctx.Invoke(token.Transfer(userSource.Key, reserveSource.Key, userAuthority.Key, args.AmountIn)); err != nil {
		return err
	}
	seeds := authoritySeeds(poolInfo.Key, pool.Nonce)
	if err := ctx.InvokeSigned(token.Transfer(reserveDest.Key, userDest.Key, authority.Key, result.AmountOut), seeds); err != nil {
		return err
	}
	log.Debug().
		Str("pool", poolInfo.Key.String()).
		Uint64("amount_in", args.AmountIn).
		Uint64("amount_out", result.AmountOut).
		Msg("Swap executed")
	setReturnAmount(ctx, result.AmountOut)
	return nil
}

// processDeposit expects [pool, authority, user_authority, user_a, user_b,
// reserve_a, reserve_b, lp_mint, user_lp, token_program].
func processDeposit(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, args depositArgs) error {
	if len(accounts) < 10 {
		return ledger.ErrNotEnoughAccountKeys
	}
	poolInfo, authority, userAuthority := accounts[0], accounts[1], accounts[2]
	userA, userB, reserveA, reserveB := accounts[3], accounts[4], accounts[5], accounts[6]
	lpMint, userLP := accounts[7], accounts[8]

	pool, err := loadPool(ctx, poolInfo, authority)
	if err != nil {
		return err
	}
	if !userAuthority.IsSigner {
		return ledger.ErrMissingRequiredSignature
	}
	if !reserveA.Key.Equals(pool.TokenA.Reserve) || !reserveB.Key.Equals(pool.TokenB.Reserve) {
		return ErrIncorrectSwapAccount
	}
	if !lpMint.Key.Equals(pool.LPMint) {
		return ErrIncorrectMint
	}
	if args.TokenAAmount == 0 && args.TokenBAmount == 0 {
		return ErrInvalidInput
	}
	balA, err := amountOf(reserveA)
	if err != nil {
		return err
	}
	balB, err := amountOf(reserveB)
	if err != nil {
		return err
	}
	mint, err := token.UnpackMint(lpMint)
	if err != nil {
		return err
	}

	minted, err := pool.QuoteDeposit(balA, balB, args.TokenAAmount, args.TokenBAmount, mint.Supply)
	if err != nil {
		return err
	}
	if minted < args.MinMintAmount {
		ctx.Logf("Slippage: minting %d below minimum %d", minted, args.MinMintAmount)
		return ErrExceededSlippage
	}
	ctx.Logf("Instruction: Deposit %d A, %d B for %d LP", args.TokenAAmount, args.TokenBAmount, minted)

	if args.TokenAAmount > 0 {
		if err := ctx.Invoke(token.Transfer(userA.Key, reserveA.Key, userAuthority.Key, args.TokenAAmount)); err != nil {
			return err
		}
	}
	if args.TokenBAmount > 0 {
		if err := ctx.Invoke(token.Transfer(userB.Key, reserveB.Key, userAuthority.Key, args.TokenBAmount)); err != nil {
			return err
		}
	}
	seeds := authoritySeeds(poolInfo.Key, pool.Nonce)
	if err := ctx.InvokeSigned(token.MintTo(lpMint.Key, userLP.Key, authority.Key, minted), seeds); err != nil {
		return err
	}
	setReturnAmount(ctx, minted)
	return nil
}

// processWithdrawOne expects [pool, authority, user_authority, lp_mint,
// user_lp, reserve_base, reserve_quote, user_destination, token_program].
func processWithdrawOne(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, args withdrawOneArgs) error {
	if len(accounts) < 9 {
		return ledger.ErrNotEnoughAccountKeys
	}
	poolInfo, authority, userAuthority := accounts[0], accounts[1], accounts[2]
	lpMint, userLP, reserveBase, reserveQuote, userDest := accounts[3], accounts[4], accounts[5], accounts[6], accounts[7]

	pool, err := loadPool(ctx, poolInfo, authority)
	if err != nil {
		return err
	}
	if !userAuthority.IsSigner {
		return ledger.ErrMissingRequiredSignature
	}
	if !lpMint.Key.Equals(pool.LPMint) {
		return ErrIncorrectMint
	}
	_, quote, ok := pool.Side(reserveBase.Key)
	if !ok || !quote.Reserve.Equals(reserveQuote.Key) {
		return ErrIncorrectSwapAccount
	}
	if args.PoolTokenAmount == 0 {
		return ErrInvalidInput
	}
	base, err := amountOf(reserveBase)
	if err != nil {
		return err
	}
	quoteBal, err := amountOf(reserveQuote)
	if err != nil {
		return err
	}
	mint, err := token.UnpackMint(lpMint)
	if err != nil {
		return err
	}

	out, fee, err := pool.QuoteWithdrawOne(base, quoteBal, args.PoolTokenAmount, mint.Supply)
	if err != nil {
		return err
	}
	if out < args.MinimumTokenAmount {
		ctx.Logf("Slippage: %d below minimum %d", out, args.MinimumTokenAmount)
		return ErrExceededSlippage
	}
	ctx.Logf("Instruction: WithdrawOne %d LP for %d (fee %d)", args.PoolTokenAmount, out, fee)

	if err := ctx.Invoke(token.Burn(userLP.Key, lpMint.Key, userAuthority.Key, args.PoolTokenAmount)); err != nil {
		return err
	}
	seeds := authoritySeeds(poolInfo.Key, pool.Nonce)
	if err := ctx.InvokeSigned(token.Transfer(reserveBase.Key, userDest.Key, authority.Key, out), seeds); err != nil {
		return err
	}
	setReturnAmount(ctx, out)
	return nil
}
