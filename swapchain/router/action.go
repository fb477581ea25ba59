package router

import (
	"encoding/binary"
	"fmt"

	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/ledger"
)

// ActionType identifies a hop variant. The value is the action code handed
// to generic interface venues and written to logs.
type ActionType uint16

const (
	ActionSSSwap        ActionType = 0
	ActionSSWithdrawOne ActionType = 1
	ActionSSDepositA    ActionType = 2
	ActionSSDepositB    ActionType = 3
	ActionADWithdraw    ActionType = 10
	ActionADDeposit     ActionType = 11
)

// actionVariants lists action types in declaration order. Encoded events
// carry the index into this list.
var actionVariants = []ActionType{
	ActionSSSwap,
	ActionSSWithdrawOne,
	ActionSSDepositA,
	ActionSSDepositB,
	ActionADWithdraw,
	ActionADDeposit,
}

func (t ActionType) String() string {
	switch t {
	case ActionSSSwap:
		return "SSSwap"
	case ActionSSWithdrawOne:
		return "SSWithdrawOne"
	case ActionSSDepositA:
		return "SSDepositA"
	case ActionSSDepositB:
		return "SSDepositB"
	case ActionADWithdraw:
		return "ADWithdraw"
	case ActionADDeposit:
		return "ADDeposit"
	default:
		return fmt.Sprintf("ActionType(%d)", uint16(t))
	}
}

// ParseActionType is the inverse of String.
func ParseActionType(name string) (ActionType, error) {
	for _, v := range actionVariants {
		if v.String() == name {
			return v, nil
		}
	}
	return 0, fmt.Errorf("unknown action %q", name)
}

// Variant returns the position of t in the action enum.
func (t ActionType) Variant() (uint8, error) {
	for i, v := range actionVariants {
		if v == t {
			return uint8(i), nil
		}
	}
	return 0, fmt.Errorf("unknown action type %d", uint16(t))
}

// ActionTypeFromVariant maps an enum position back to its action type.
func ActionTypeFromVariant(i uint8) (ActionType, error) {
	if int(i) >= len(actionVariants) {
		return 0, fmt.Errorf("unknown action variant %d", i)
	}
	return actionVariants[i], nil
}

// SwapContext carries the accounts every hop shares into an action.
type SwapContext struct {
	Invoke        *ledger.InvokeContext
	TokenProgram  *ledger.AccountInfo
	SwapProgram   *ledger.AccountInfo
	UserAuthority *ledger.AccountInfo
}

// Action is one hop variant. Execute performs the exchange against the venue
// and returns whatever output the venue reported. The reported value is for
// logging only; the step processor measures the real delta itself.
type Action interface {
	Type() ActionType
	InputAccount() *ledger.AccountInfo
	OutputAccount() *ledger.AccountInfo
	Execute(sc *SwapContext, amountIn, minimumAmountOut uint64) (uint64, error)
}

// invokeVenue calls the venue and reads back the amount it reported, if any.
func (sc *SwapContext) invokeVenue(ix ledger.Instruction) (uint64, error) {
	if err := sc.Invoke.Invoke(ix); err != nil {
		return 0, err
	}
	programID, data := sc.Invoke.ReturnData()
	if !programID.Equals(ix.ProgramID) || len(data) < 8 {
		return 0, nil
	}
	return binary.LittleEndian.Uint64(data[:8]), nil
}
