package router

import (
	"errors"
	"fmt"
	"math"

	"github.com/gagliardetto/solana-go"

	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/ledger"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/token"
)

// Plan is the instruction list of one chain, ready to be put in a transaction.
type Plan struct {
	Continuation solana.PublicKey
	Instructions []ledger.Instruction
	// Signers lists keys besides the owner that must sign, such as a
	// BeginV2 continuation allocated in the same unit.
	Signers []solana.PublicKey
}

type hopBuilder func(h HopAccounts) ledger.Instruction

// PlanBuilder assembles Begin, the hops in the order given, and End. It does
// not choose venues; hops are taken as supplied.
type PlanBuilder struct {
	programID    solana.PublicKey
	owner        solana.PublicKey
	payer        solana.PublicKey
	input        solana.PublicKey
	output       solana.PublicKey
	amountIn     uint64
	minimumOut   uint64
	createOutput *solana.PublicKey
	allocated    *solana.PublicKey
	hops         []hopBuilder
}

func NewPlanBuilder(programID, owner solana.PublicKey) *PlanBuilder {
	return &PlanBuilder{programID: programID, owner: owner, payer: owner}
}

// From sets the source record and the amount the chain consumes.
func (b *PlanBuilder) From(input solana.PublicKey, amountIn uint64) *PlanBuilder {
	b.input = input
	b.amountIn = amountIn
	return b
}

// To sets the destination record and the chain's floor.
func (b *PlanBuilder) To(output solana.PublicKey, minimumAmountOut uint64) *PlanBuilder {
	b.output = output
	b.minimumOut = minimumAmountOut
	return b
}

func (b *PlanBuilder) WithPayer(payer solana.PublicKey) *PlanBuilder {
	b.payer = payer
	return b
}

// CreateOutput prepends an idempotent creation of the owner's associated
// record for mint. The destination must be that record.
func (b *PlanBuilder) CreateOutput(mint solana.PublicKey) *PlanBuilder {
	b.createOutput = &mint
	return b
}

// UseBeginV2 opens the chain in account, allocated within the same unit.
// account must sign the transaction.
func (b *PlanBuilder) UseBeginV2(account solana.PublicKey) *PlanBuilder {
	b.allocated = &account
	return b
}

func (b *PlanBuilder) SSSwap(swapProgram solana.PublicKey, a SSSwapAccounts) *PlanBuilder {
	return b.add(swapProgram, func(programID solana.PublicKey, h HopAccounts) ledger.Instruction {
		return SSSwap(programID, h, a)
	})
}

func (b *PlanBuilder) SSWithdrawOne(swapProgram solana.PublicKey, a SSWithdrawOneAccounts) *PlanBuilder {
	return b.add(swapProgram, func(programID solana.PublicKey, h HopAccounts) ledger.Instruction {
		return SSWithdrawOne(programID, h, a)
	})
}

func (b *PlanBuilder) SSDepositA(swapProgram solana.PublicKey, a SSDepositAccounts) *PlanBuilder {
	return b.add(swapProgram, func(programID solana.PublicKey, h HopAccounts) ledger.Instruction {
		return SSDepositA(programID, h, a)
	})
}

func (b *PlanBuilder) SSDepositB(swapProgram solana.PublicKey, a SSDepositAccounts) *PlanBuilder {
	return b.add(swapProgram, func(programID solana.PublicKey, h HopAccounts) ledger.Instruction {
		return SSDepositB(programID, h, a)
	})
}

func (b *PlanBuilder) ADWithdraw(venue solana.PublicKey, a ADAccounts) *PlanBuilder {
	return b.add(venue, func(programID solana.PublicKey, h HopAccounts) ledger.Instruction {
		return ADWithdraw(programID, h, a)
	})
}

func (b *PlanBuilder) ADDeposit(venue solana.PublicKey, a ADAccounts) *PlanBuilder {
	return b.add(venue, func(programID solana.PublicKey, h HopAccounts) ledger.Instruction {
		return ADDeposit(programID, h, a)
	})
}

func (b *PlanBuilder) add(swapProgram solana.PublicKey, build func(programID solana.PublicKey, h HopAccounts) ledger.Instruction) *PlanBuilder {
	programID := b.programID
	b.hops = append(b.hops, func(h HopAccounts) ledger.Instruction {
		h.SwapProgram = swapProgram
		return build(programID, h)
	})
	return b
}

// Build returns the chain's instructions. random salts the derived
// continuation address and is ignored with UseBeginV2.
func (b *PlanBuilder) Build(random solana.PublicKey) (*Plan, error) {
	switch {
	case b.input.IsZero():
		return nil, errors.New("plan has no input record")
	case b.output.IsZero():
		return nil, errors.New("plan has no output record")
	case len(b.hops) == 0:
		return nil, errors.New("plan has no hops")
	case len(b.hops) > math.MaxUint16:
		return nil, fmt.Errorf("plan has %d hops, at most %d allowed", len(b.hops), math.MaxUint16)
	}
	args := BeginArgs{
		AmountIn:         b.amountIn,
		MinimumAmountOut: b.minimumOut,
		NumSteps:         uint16(len(b.hops)),
	}
	plan := &Plan{}

	if b.createOutput != nil {
		plan.Instructions = append(plan.Instructions, token.CreateAssociated(b.payer, b.owner, *b.createOutput))
	}
	if b.allocated != nil {
		plan.Continuation = *b.allocated
		plan.Signers = append(plan.Signers, *b.allocated)
		plan.Instructions = append(plan.Instructions,
			AllocateContinuation(b.programID, b.owner, *b.allocated),
			BeginV2(b.programID, BeginV2Accounts{
				Continuation: *b.allocated,
				Input:        b.input,
				Output:       b.output,
				Owner:        b.owner,
			}, args),
		)
	} else {
		key, _, err := DeriveContinuation(b.programID, b.owner, random)
		if err != nil {
			return nil, fmt.Errorf("failed to derive continuation: %w", err)
		}
		plan.Continuation = key
		plan.Instructions = append(plan.Instructions, Begin(b.programID, BeginAccounts{
			Continuation: key,
			Random:       random,
			Input:        b.input,
			Output:       b.output,
			Owner:        b.owner,
			Payer:        b.payer,
		}, args))
	}

	prefix := HopAccounts{Continuation: plan.Continuation, Owner: b.owner}
	for _, build := range b.hops {
		plan.Instructions = append(plan.Instructions, build(prefix))
	}
	payer := b.payer
	if b.allocated != nil {
		payer = b.owner
	}
	plan.Instructions = append(plan.Instructions, End(b.programID, EndAccounts{
		Continuation: plan.Continuation,
		Output:       b.output,
		Owner:        b.owner,
		Payer:        payer,
	}))
	if !b.payer.Equals(b.owner) {
		plan.Signers = append(plan.Signers, b.payer)
	}
	return plan, nil
}
