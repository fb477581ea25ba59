package router

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/ledger"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/token"
)

// processBegin expects [continuation, random, input, output, owner, payer,
// rent, system_program].
func (p *Program) processBegin(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, data []byte) error {
	args, err := decodeBeginArgs(data)
	if err != nil {
		return err
	}
	if len(accounts) < 8 {
		return ledger.ErrNotEnoughAccountKeys
	}
	contInfo, random, input, output := accounts[0], accounts[1], accounts[2], accounts[3]
	owner, payer, system := accounts[4], accounts[5], accounts[7]
	if !owner.IsSigner || !payer.IsSigner {
		return ledger.ErrMissingRequiredSignature
	}
	if !payer.IsWritable || !contInfo.IsWritable {
		return ledger.ErrReadonlyDataModified
	}
	if !system.Key.Equals(solana.SystemProgramID) {
		return ledger.ErrIncorrectProgramID
	}

	expected, bump, err := DeriveContinuation(p.id, owner.Key, random.Key)
	if err != nil {
		return err
	}
	if !expected.Equals(contInfo.Key) {
		ctx.Logf("Continuation %s does not match derived address %s", contInfo.Key, expected)
		return fmt.Errorf("%w: continuation %s", ledger.ErrInvalidSeeds, contInfo.Key)
	}
	cont, err := newContinuation(ctx, input, output, owner.Key, payer.Key, args, bump)
	if err != nil {
		return err
	}

	seeds := append(continuationSeeds(owner.Key, random.Key), []byte{bump})
	create := ledger.CreateAccount(payer.Key, contInfo.Key, ledger.MinimumBalance(ContinuationLen), ContinuationLen, p.id)
	if err := ctx.InvokeSigned(create, seeds); err != nil {
		return fmt.Errorf("failed to allocate continuation: %w", err)
	}
	return p.openContinuation(ctx, contInfo, cont)
}

// processBeginV2 expects [continuation, input, output, owner]. The
// continuation is allocated by the caller, owned by the router and zeroed.
func (p *Program) processBeginV2(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, data []byte) error {
	args, err := decodeBeginArgs(data)
	if err != nil {
		return err
	}
	if len(accounts) < 4 {
		return ledger.ErrNotEnoughAccountKeys
	}
	contInfo, input, output, owner := accounts[0], accounts[1], accounts[2], accounts[3]
	if !owner.IsSigner {
		return ledger.ErrMissingRequiredSignature
	}
	if !contInfo.Owner.Equals(p.id) {
		return ledger.ErrIllegalOwner
	}
	if !contInfo.IsWritable {
		return ledger.ErrReadonlyDataModified
	}
	if len(contInfo.Data) < ContinuationLen {
		return ledger.ErrAccountDataTooSmall
	}
	for _, b := range contInfo.Data {
		if b != 0 {
			return ledger.ErrAccountAlreadyInitialized
		}
	}
	cont, err := newContinuation(ctx, input, output, owner.Key, owner.Key, args, 0)
	if err != nil {
		return err
	}
	return p.openContinuation(ctx, contInfo, cont)
}

func newContinuation(ctx *ledger.InvokeContext, input, output *ledger.AccountInfo, owner, payer solana.PublicKey, args BeginArgs, nonce uint8) (*Continuation, error) {
	inputAcc, err := token.UnpackAccount(input)
	if err != nil {
		return nil, err
	}
	if !inputAcc.Owner.Equals(owner) {
		return nil, fail(ctx, ErrInputOwnerMismatch)
	}
	outputAcc, err := token.UnpackAccount(output)
	if err != nil {
		return nil, err
	}
	if !outputAcc.Owner.Equals(owner) {
		return nil, fail(ctx, ErrOutputOwnerMismatch)
	}
	amountIn := NewTokenAmount(inputAcc.Mint, args.AmountIn)
	return &Continuation{
		Owner:                owner,
		Payer:                payer,
		InitialAmountIn:      amountIn,
		Input:                input.Key,
		AmountIn:             amountIn,
		StepsLeft:            args.NumSteps,
		Output:               output.Key,
		OutputInitialBalance: outputAcc.Amount,
		MinimumAmountOut:     NewTokenAmount(outputAcc.Mint, args.MinimumAmountOut),
		Nonce:                nonce,
	}, nil
}

func (p *Program) openContinuation(ctx *ledger.InvokeContext, info *ledger.AccountInfo, cont *Continuation) error {
	if err := cont.Pack(info.Data); err != nil {
		return err
	}
	ctx.Logf("Begin: %s -> %s in %d steps, minimum %d", cont.AmountIn, cont.Output, cont.StepsLeft, cont.MinimumAmountOut.Amount)
	log.Debug().
		Str("continuation", info.Key.String()).
		Str("owner", cont.Owner.String()).
		Str("amount_in", cont.AmountIn.String()).
		Uint16("steps", cont.StepsLeft).
		Msg("Chain opened")
	return nil
}

// processEnd expects [continuation, output, owner, payer].
func (p *Program) processEnd(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, _ []byte) error {
	if len(accounts) < 4 {
		return ledger.ErrNotEnoughAccountKeys
	}
	contInfo, output, owner, payer := accounts[0], accounts[1], accounts[2], accounts[3]
	cont, err := p.loadContinuation(contInfo)
	if err != nil {
		return err
	}
	if !owner.IsSigner {
		return ledger.ErrMissingRequiredSignature
	}
	if !cont.Owner.Equals(owner.Key) || !cont.Payer.Equals(payer.Key) || !cont.Output.Equals(output.Key) {
		return ledger.ErrConstraintHasOne
	}
	if !payer.IsWritable {
		return ledger.ErrReadonlyDataModified
	}

	if cont.StepsLeft != 0 {
		return fail(ctx, ErrEndIncomplete)
	}
	outputAcc, err := token.UnpackAccount(output)
	if err != nil {
		return err
	}
	// A chain that ends in the mint it started with spent initial_amount_in
	// out of the same asset, so it is credited back before measuring.
	result := outputAcc.Amount
	if cont.InitialAmountIn.Mint.Equals(cont.MinimumAmountOut.Mint) {
		var ok bool
		if result, ok = checkedAdd(result, cont.InitialAmountIn.Amount); !ok {
			return fail(ctx, ErrOverflowSwapResult)
		}
	}
	if result < cont.OutputInitialBalance {
		return fail(ctx, ErrBalanceLower)
	}
	amountOut := result - cont.OutputInitialBalance
	if amountOut < cont.MinimumAmountOut.Amount {
		ctx.Logf("Amount out %d below minimum %d", amountOut, cont.MinimumAmountOut.Amount)
		return fail(ctx, ErrMinimumOutNotMet)
	}
	if !outputAcc.Mint.Equals(cont.MinimumAmountOut.Mint) {
		return fail(ctx, ErrOutputMintMismatch)
	}

	event := SwapCompleteEvent{
		Owner:     cont.Owner,
		AmountIn:  cont.InitialAmountIn,
		AmountOut: NewTokenAmount(outputAcc.Mint, amountOut),
	}
	raw, err := event.Marshal()
	if err != nil {
		return err
	}
	ctx.Emit(raw)

	refund, ok := checkedAdd(payer.Lamports, contInfo.Lamports)
	if !ok {
		return ledger.ErrArithmeticOverflow
	}
	payer.Lamports = refund
	contInfo.Lamports = 0
	contInfo.Data = nil
	contInfo.Owner = solana.SystemProgramID

	log.Info().
		Str("owner", cont.Owner.String()).
		Str("amount_in", event.AmountIn.String()).
		Str("amount_out", event.AmountOut.String()).
		Msg("Chain completed")
	return nil
}
