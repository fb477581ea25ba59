package stableswap

import (
	"bytes"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/ledger"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/token"
)

func encode(tag uint8, args any) []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(tag)
	_ = bin.NewBorshEncoder(buf).Encode(args)
	return buf.Bytes()
}

type SwapAccounts struct {
	Pool               solana.PublicKey
	Authority          solana.PublicKey
	UserAuthority      solana.PublicKey
	UserSource         solana.PublicKey
	ReserveSource      solana.PublicKey
	ReserveDestination solana.PublicKey
	UserDestination    solana.PublicKey
}

func Swap(programID solana.PublicKey, a SwapAccounts, amountIn, minimumAmountOut uint64) ledger.Instruction {
	return ledger.NewInstruction(programID, []*solana.AccountMeta{
		solana.NewAccountMeta(a.Pool, false, false),
		solana.NewAccountMeta(a.Authority, false, false),
		solana.NewAccountMeta(a.UserAuthority, false, true),
		solana.NewAccountMeta(a.UserSource, true, false),
		solana.NewAccountMeta(a.ReserveSource, true, false),
		solana.NewAccountMeta(a.ReserveDestination, true, false),
		solana.NewAccountMeta(a.UserDestination, true, false),
		solana.NewAccountMeta(token.ProgramID, false, false),
	}, encode(TagSwap, swapArgs{AmountIn: amountIn, MinimumAmountOut: minimumAmountOut}))
}

type DepositAccounts struct {
	Pool          solana.PublicKey
	Authority     solana.PublicKey
	UserAuthority solana.PublicKey
	UserA         solana.PublicKey
	UserB         solana.PublicKey
	ReserveA      solana.PublicKey
	ReserveB      solana.PublicKey
	LPMint        solana.PublicKey
	UserLP        solana.PublicKey
}

func Deposit(programID solana.PublicKey, a DepositAccounts, amountA, amountB, minMintAmount uint64) ledger.Instruction {
	return ledger.NewInstruction(programID, []*solana.AccountMeta{
		solana.NewAccountMeta(a.Pool, false, false),
		solana.NewAccountMeta(a.Authority, false, false),
		solana.NewAccountMeta(a.UserAuthority, false, true),
		solana.NewAccountMeta(a.UserA, true, false),
		solana.NewAccountMeta(a.UserB, true, false),
		solana.NewAccountMeta(a.ReserveA, true, false),
		solana.NewAccountMeta(a.ReserveB, true, false),
		solana.NewAccountMeta(a.LPMint, true, false),
		solana.NewAccountMeta(a.UserLP, true, false),
		solana.NewAccountMeta(token.ProgramID, false, false),
	}, encode(TagDeposit, depositArgs{TokenAAmount: amountA, TokenBAmount: amountB, MinMintAmount: minMintAmount}))
}

type WithdrawOneAccounts struct {
	Pool            solana.PublicKey
	Authority       solana.PublicKey
	UserAuthority   solana.PublicKey
	LPMint          solana.PublicKey
	UserLP          solana.PublicKey
	ReserveBase     solana.PublicKey
	ReserveQuote    solana.PublicKey
	UserDestination solana.PublicKey
}

func WithdrawOne(programID solana.PublicKey, a WithdrawOneAccounts, poolTokenAmount, minimumTokenAmount uint64) ledger.Instruction {
	return ledger.NewInstruction(programID, []*solana.AccountMeta{
		solana.NewAccountMeta(a.Pool, false, false),
		solana.NewAccountMeta(a.Authority, false, false),
		solana.NewAccountMeta(a.UserAuthority, false, true),
		solana.NewAccountMeta(a.LPMint, true, false),
		solana.NewAccountMeta(a.UserLP, true, false),
		solana.NewAccountMeta(a.ReserveBase, true, false),
		solana.NewAccountMeta(a.ReserveQuote, false, false),
		solana.NewAccountMeta(a.UserDestination, true, false),
		solana.NewAccountMeta(token.ProgramID, false, false),
	}, encode(TagWithdrawOne, withdrawOneArgs{PoolTokenAmount: poolTokenAmount, MinimumTokenAmount: minimumTokenAmount}))
}
