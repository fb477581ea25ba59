package router

import (
	"bytes"
	"crypto/sha256"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/ledger"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/token"
)

// Instruction discriminators.
var (
	BeginDiscriminator         = instructionDiscriminator("begin")
	BeginV2Discriminator       = instructionDiscriminator("begin_v2")
	EndDiscriminator           = instructionDiscriminator("end")
	SSSwapDiscriminator        = instructionDiscriminator("ss_swap")
	SSWithdrawOneDiscriminator = instructionDiscriminator("ss_withdraw_one")
	SSDepositADiscriminator    = instructionDiscriminator("ss_deposit_a")
	SSDepositBDiscriminator    = instructionDiscriminator("ss_deposit_b")
	ADWithdrawDiscriminator    = instructionDiscriminator("ad_withdraw")
	ADDepositDiscriminator     = instructionDiscriminator("ad_deposit")
)

func instructionDiscriminator(name string) [8]byte {
	sum := sha256.Sum256([]byte("global:" + name))
	var d [8]byte
	copy(d[:], sum[:8])
	return d
}

// BeginArgs are the arguments of Begin and BeginV2.
type BeginArgs struct {
	AmountIn         uint64
	MinimumAmountOut uint64
	NumSteps         uint16
}

func instructionData(disc [8]byte, args any) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, 32))
	buf.Write(disc[:])
	if args != nil {
		_ = bin.NewBorshEncoder(buf).Encode(args)
	}
	return buf.Bytes()
}

func decodeBeginArgs(data []byte) (BeginArgs, error) {
	var args BeginArgs
	if err := bin.NewBorshDecoder(data).Decode(&args); err != nil {
		return args, ledger.ErrInvalidInstructionData
	}
	return args, nil
}

// BeginAccounts are the accounts of Begin. Payer defaults to Owner.
type BeginAccounts struct {
	Continuation solana.PublicKey
	Random       solana.PublicKey
	Input        solana.PublicKey
	Output       solana.PublicKey
	Owner        solana.PublicKey
	Payer        solana.PublicKey
}

// Begin builds the instruction opening a chain at a derived continuation.
func Begin(programID solana.PublicKey, a BeginAccounts, args BeginArgs) ledger.Instruction {
	payer := a.Payer
	if payer.IsZero() {
		payer = a.Owner
	}
	return ledger.NewInstruction(programID, []*solana.AccountMeta{
		solana.NewAccountMeta(a.Continuation, true, false),
		solana.NewAccountMeta(a.Random, false, false),
		solana.NewAccountMeta(a.Input, false, false),
		solana.NewAccountMeta(a.Output, false, false),
		solana.NewAccountMeta(a.Owner, false, true),
		solana.NewAccountMeta(payer, true, true),
		solana.NewAccountMeta(solana.SysVarRentPubkey, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}, instructionData(BeginDiscriminator, args))
}

// BeginV2Accounts are the accounts of BeginV2.
type BeginV2Accounts struct {
	Continuation solana.PublicKey
	Input        solana.PublicKey
	Output       solana.PublicKey
	Owner        solana.PublicKey
}

// BeginV2 builds the instruction opening a chain in a caller allocated account.
func BeginV2(programID solana.PublicKey, a BeginV2Accounts, args BeginArgs) ledger.Instruction {
	return ledger.NewInstruction(programID, []*solana.AccountMeta{
		solana.NewAccountMeta(a.Continuation, true, false),
		solana.NewAccountMeta(a.Input, false, false),
		solana.NewAccountMeta(a.Output, false, false),
		solana.NewAccountMeta(a.Owner, false, true),
	}, instructionData(BeginV2Discriminator, args))
}

// AllocateContinuation creates a zeroed router owned account for BeginV2.
// The account key must sign the unit.
func AllocateContinuation(programID, payer, account solana.PublicKey) ledger.Instruction {
	return ledger.CreateAccount(payer, account, ledger.MinimumBalance(ContinuationLen), ContinuationLen, programID)
}

// EndAccounts are the accounts of End. Payer defaults to Owner.
type EndAccounts struct {
	Continuation solana.PublicKey
	Output       solana.PublicKey
	Owner        solana.PublicKey
	Payer        solana.PublicKey
}

// End builds the instruction closing a chain.
func End(programID solana.PublicKey, a EndAccounts) ledger.Instruction {
	payer := a.Payer
	if payer.IsZero() {
		payer = a.Owner
	}
	return ledger.NewInstruction(programID, []*solana.AccountMeta{
		solana.NewAccountMeta(a.Continuation, true, false),
		solana.NewAccountMeta(a.Output, false, false),
		solana.NewAccountMeta(a.Owner, false, true),
		solana.NewAccountMeta(payer, true, false),
	}, instructionData(EndDiscriminator, nil))
}

// HopAccounts is the prefix shared by every hop.
type HopAccounts struct {
	Continuation solana.PublicKey
	SwapProgram  solana.PublicKey
	Owner        solana.PublicKey
}

func (h HopAccounts) metas() []*solana.AccountMeta {
	return []*solana.AccountMeta{
		solana.NewAccountMeta(h.Continuation, true, false),
		solana.NewAccountMeta(token.ProgramID, false, false),
		solana.NewAccountMeta(h.SwapProgram, false, false),
		solana.NewAccountMeta(h.Owner, false, true),
	}
}

// SSSwapAccounts are the venue accounts of an SSSwap hop.
type SSSwapAccounts struct {
	Pool          solana.PublicKey
	PoolAuthority solana.PublicKey
	Input         solana.PublicKey
	ReserveInput  solana.PublicKey
	ReserveOutput solana.PublicKey
	Output        solana.PublicKey
}

func SSSwap(programID solana.PublicKey, h HopAccounts, a SSSwapAccounts) ledger.Instruction {
	metas := append(h.metas(),
		solana.NewAccountMeta(a.Pool, false, false),
		solana.NewAccountMeta(a.PoolAuthority, false, false),
		solana.NewAccountMeta(a.Input, true, false),
		solana.NewAccountMeta(a.ReserveInput, true, false),
		solana.NewAccountMeta(a.ReserveOutput, true, false),
		solana.NewAccountMeta(a.Output, true, false),
	)
	return ledger.NewInstruction(programID, metas, instructionData(SSSwapDiscriminator, nil))
}

// SSWithdrawOneAccounts are the venue accounts of an SSWithdrawOne hop.
// Input holds LP tokens; Output receives the base side.
type SSWithdrawOneAccounts struct {
	Pool          solana.PublicKey
	PoolAuthority solana.PublicKey
	LPMint        solana.PublicKey
	Input         solana.PublicKey
	ReserveOutput solana.PublicKey
	ReserveOther  solana.PublicKey
	Output        solana.PublicKey
}

func SSWithdrawOne(programID solana.PublicKey, h HopAccounts, a SSWithdrawOneAccounts) ledger.Instruction {
	metas := append(h.metas(),
		solana.NewAccountMeta(a.Pool, false, false),
		solana.NewAccountMeta(a.PoolAuthority, false, false),
		solana.NewAccountMeta(a.LPMint, true, false),
		solana.NewAccountMeta(a.Input, true, false),
		solana.NewAccountMeta(a.ReserveOutput, true, false),
		solana.NewAccountMeta(a.ReserveOther, false, false),
		solana.NewAccountMeta(a.Output, true, false),
	)
	return ledger.NewInstruction(programID, metas, instructionData(SSWithdrawOneDiscriminator, nil))
}

// SSDepositAccounts are the venue accounts of SSDepositA and SSDepositB.
// The deposited side is UserA for SSDepositA and UserB for SSDepositB.
type SSDepositAccounts struct {
	Pool          solana.PublicKey
	PoolAuthority solana.PublicKey
	UserA         solana.PublicKey
	ReserveA      solana.PublicKey
	UserB         solana.PublicKey
	ReserveB      solana.PublicKey
	LPMint        solana.PublicKey
	Output        solana.PublicKey
}

func (a SSDepositAccounts) metas(h HopAccounts) []*solana.AccountMeta {
	return append(h.metas(),
		solana.NewAccountMeta(a.Pool, false, false),
		solana.NewAccountMeta(a.PoolAuthority, false, false),
		solana.NewAccountMeta(a.UserA, true, false),
		solana.NewAccountMeta(a.ReserveA, true, false),
		solana.NewAccountMeta(a.UserB, true, false),
		solana.NewAccountMeta(a.ReserveB, true, false),
		solana.NewAccountMeta(a.LPMint, true, false),
		solana.NewAccountMeta(a.Output, true, false),
	)
}

func SSDepositA(programID solana.PublicKey, h HopAccounts, a SSDepositAccounts) ledger.Instruction {
	return ledger.NewInstruction(programID, a.metas(h), instructionData(SSDepositADiscriminator, nil))
}

func SSDepositB(programID solana.PublicKey, h HopAccounts, a SSDepositAccounts) ledger.Instruction {
	return ledger.NewInstruction(programID, a.metas(h), instructionData(SSDepositBDiscriminator, nil))
}

// ADAccounts are the venue accounts of a generic interface hop. Remaining is
// forwarded to the venue untouched.
type ADAccounts struct {
	Input     solana.PublicKey
	Output    solana.PublicKey
	Remaining []*solana.AccountMeta
}

func (a ADAccounts) metas(h HopAccounts) []*solana.AccountMeta {
	metas := append(h.metas(),
		solana.NewAccountMeta(a.Input, true, false),
		solana.NewAccountMeta(a.Output, true, false),
	)
	return append(metas, a.Remaining...)
}

func ADWithdraw(programID solana.PublicKey, h HopAccounts, a ADAccounts) ledger.Instruction {
	return ledger.NewInstruction(programID, a.metas(h), instructionData(ADWithdrawDiscriminator, nil))
}

func ADDeposit(programID solana.PublicKey, h HopAccounts, a ADAccounts) ledger.Instruction {
	return ledger.NewInstruction(programID, a.metas(h), instructionData(ADDepositDiscriminator, nil))
}
