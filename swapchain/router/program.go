// Package router is the continuation based multi-hop swap program. A chain is
// Begin, one instruction per hop and End, all inside one atomic unit. Every
// hop is wrapped by the step processor, which checks the hop against the
// continuation and threads the observed output into the next hop.
package router

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/ledger"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/venues/stableswap"
)

// ProgramID is the address the router is registered at by default.
var ProgramID = ledger.ProgramIDFromName("swapchain_router")

type handler func(p *Program, ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, data []byte) error

// Program is the router. It implements ledger.Program and ledger.Finalizer.
type Program struct {
	id           solana.PublicKey
	stableSwapID solana.PublicKey
	crossUnit    bool
	handlers     map[[8]byte]handler
}

// Option configures a Program.
type Option func(*Program)

// WithStableSwapProgram sets the pool program SS hops must target.
func WithStableSwapProgram(id solana.PublicKey) Option {
	return func(p *Program) { p.stableSwapID = id }
}

// WithCrossUnitChains lets a continuation stay open after the unit that
// created or advanced it commits. Chains are confined to one unit otherwise.
func WithCrossUnitChains(allow bool) Option {
	return func(p *Program) { p.crossUnit = allow }
}

// New returns the router registered at id.
func New(id solana.PublicKey, opts ...Option) *Program {
	p := &Program{
		id:           id,
		stableSwapID: stableswap.ProgramID,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.handlers = map[[8]byte]handler{
		BeginDiscriminator:         (*Program).processBegin,
		BeginV2Discriminator:       (*Program).processBeginV2,
		EndDiscriminator:           (*Program).processEnd,
		SSSwapDiscriminator:        hop(parseSSSwap),
		SSWithdrawOneDiscriminator: hop(parseSSWithdrawOne),
		SSDepositADiscriminator:    hop(parseSSDepositA),
		SSDepositBDiscriminator:    hop(parseSSDepositB),
		ADWithdrawDiscriminator:    hop(parseADWithdraw),
		ADDepositDiscriminator:     hop(parseADDeposit),
	}
	return p
}

// ID is the address the router runs at.
func (p *Program) ID() solana.PublicKey {
	return p.id
}

func (p *Program) Process(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, data []byte) error {
	if len(data) < 8 {
		return ledger.ErrInvalidInstructionData
	}
	var disc [8]byte
	copy(disc[:], data[:8])
	h, ok := p.handlers[disc]
	if !ok {
		return fmt.Errorf("%w: unknown instruction %x", ledger.ErrInvalidInstructionData, disc)
	}
	return h(p, ctx, accounts, data[8:])
}

// FinalizeUnit rejects a unit that leaves a continuation open.
func (p *Program) FinalizeUnit(_ context.Context, changed map[solana.PublicKey]*ledger.Account) error {
	if p.crossUnit {
		return nil
	}
	for key, acc := range changed {
		if IsContinuation(acc, p.id) {
			log.Warn().Str("continuation", key.String()).Msg("Continuation left open at end of unit")
			return fail(nil, ErrContinuationLeftOpen)
		}
	}
	return nil
}
