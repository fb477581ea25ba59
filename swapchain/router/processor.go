package router

import (
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/ledger"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/token"
)

// processStep runs one hop of a chain. The continuation is advanced by the
// balance change measured on the hop's output account, whatever the venue
// claims to have paid out.
func (p *Program) processStep(ctx *ledger.InvokeContext, prefix *hopPrefix, action Action) error {
	cont, err := p.loadContinuation(prefix.continuation)
	if err != nil {
		return err
	}
	if !cont.Owner.Equals(prefix.owner.Key) {
		return ledger.ErrConstraintHasOne
	}

	// 1. The chain must still have steps left.
	if cont.StepsLeft == 0 {
		return fail(ctx, ErrNoMoreSteps)
	}

	// 2. Hops run in the order the chain was built for.
	input := action.InputAccount()
	if !input.Key.Equals(cont.Input) {
		return fail(ctx, ErrPathInputOutputMismatch)
	}

	// 3. Input belongs to the owner and holds the expected mint.
	inputAcc, err := token.UnpackAccount(input)
	if err != nil {
		return err
	}
	if !inputAcc.Owner.Equals(cont.Owner) {
		return fail(ctx, ErrInputOwnerMismatch)
	}
	if !inputAcc.Mint.Equals(cont.AmountIn.Mint) {
		return fail(ctx, ErrInputMintMismatch)
	}

	// 4. There is something to swap and it is actually there.
	amountIn := cont.AmountIn
	if amountIn.Amount == 0 {
		return fail(ctx, ErrZeroSwap)
	}
	if inputAcc.Amount < amountIn.Amount {
		return fail(ctx, ErrInsufficientInputBalance)
	}

	// 5. Output belongs to the owner.
	output := action.OutputAccount()
	outputAcc, err := token.UnpackAccount(output)
	if err != nil {
		return err
	}
	if !outputAcc.Owner.Equals(cont.Owner) {
		return fail(ctx, ErrOutputOwnerMismatch)
	}

	// 6. Remember the output balance before the venue runs.
	initialBalance := outputAcc.Amount

	// 7. Only the last hop carries the chain's floor.
	var minimumAmountOut uint64
	if cont.StepsLeft == 1 {
		if !outputAcc.Mint.Equals(cont.MinimumAmountOut.Mint) {
			return fail(ctx, ErrOutputMintMismatch)
		}
		minimumAmountOut = cont.MinimumAmountOut.Amount
	}

	// 8. Venue errors propagate unchanged.
	reported, err := action.Execute(&SwapContext{
		Invoke:        ctx,
		TokenProgram:  prefix.tokenProgram,
		SwapProgram:   prefix.swapProgram,
		UserAuthority: prefix.owner,
	}, amountIn.Amount, minimumAmountOut)
	if err != nil {
		return err
	}

	// 9. A hop may never lower its output balance.
	resultAcc, err := token.UnpackAccount(output)
	if err != nil {
		return err
	}
	if resultAcc.Amount < initialBalance {
		return fail(ctx, ErrBalanceLower)
	}
	observed, ok := checkedSub(resultAcc.Amount, initialBalance)
	if !ok {
		return fail(ctx, ErrTransitiveSwapCalculationError)
	}
	if reported != observed {
		ctx.Logf("Venue reported %d, observed %d", reported, observed)
	}

	// 10. Advance the chain by the observed delta.
	cont.Input = output.Key
	cont.AmountIn = NewTokenAmount(resultAcc.Mint, observed)
	cont.StepsLeft--
	if err := cont.Pack(prefix.continuation.Data); err != nil {
		return err
	}

	// 11. Report the hop.
	event := SwapActionEvent{
		ActionType:    action.Type(),
		Owner:         cont.Owner,
		InputAmount:   amountIn,
		OutputAccount: cont.Input,
		OutputAmount:  cont.AmountIn,
	}
	raw, err := event.Marshal()
	if err != nil {
		return err
	}
	ctx.Emit(raw)
	log.Debug().
		Str("action", action.Type().String()).
		Str("input", amountIn.String()).
		Str("output", cont.AmountIn.String()).
		Uint16("steps_left", cont.StepsLeft).
		Msg("Hop processed")
	return nil
}

func checkedSub(a, b uint64) (uint64, bool) {
	if b > a {
		return 0, false
	}
	return a - b, true
}

func checkedAdd(a, b uint64) (uint64, bool) {
	sum := a + b
	return sum, sum >= a
}
