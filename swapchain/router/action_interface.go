package router

import (
	"github.com/gagliardetto/solana-go"

	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/ledger"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/venues/actioniface"
)

// InterfaceAction calls any program implementing the generic action
// interface. Accounts after input and output are forwarded as is.
type InterfaceAction struct {
	actionType ActionType
	input      *ledger.AccountInfo
	output     *ledger.AccountInfo
	remaining  []*ledger.AccountInfo
}

// parseInterface expects [input, output, ...remaining].
func parseInterface(actionType ActionType, rest []*ledger.AccountInfo) (Action, error) {
	if len(rest) < 2 {
		return nil, ledger.ErrNotEnoughAccountKeys
	}
	a := &InterfaceAction{
		actionType: actionType,
		input:      rest[0],
		output:     rest[1],
		remaining:  rest[2:],
	}
	return a, requireWritable(a.input, a.output)
}

func parseADWithdraw(_ *Program, _ *hopPrefix, rest []*ledger.AccountInfo) (Action, error) {
	return parseInterface(ActionADWithdraw, rest)
}

func parseADDeposit(_ *Program, _ *hopPrefix, rest []*ledger.AccountInfo) (Action, error) {
	return parseInterface(ActionADDeposit, rest)
}

func (a *InterfaceAction) Type() ActionType                   { return a.actionType }
func (a *InterfaceAction) InputAccount() *ledger.AccountInfo  { return a.input }
func (a *InterfaceAction) OutputAccount() *ledger.AccountInfo { return a.output }

func (a *InterfaceAction) Execute(sc *SwapContext, amountIn, minimumAmountOut uint64) (uint64, error) {
	remaining := make([]*solana.AccountMeta, len(a.remaining))
	for i, info := range a.remaining {
		remaining[i] = info.Meta()
	}
	ix := actioniface.NewInstruction(
		sc.SwapProgram.Key,
		sc.UserAuthority.Key,
		a.input.Key,
		a.output.Key,
		sc.TokenProgram.Key,
		actioniface.Args{
			Action:           uint16(a.actionType),
			AmountIn:         amountIn,
			MinimumAmountOut: minimumAmountOut,
		},
		remaining...,
	)
	return sc.invokeVenue(ix)
}
