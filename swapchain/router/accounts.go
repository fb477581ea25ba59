package router

import (
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/ledger"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/token"
)

// hopPrefixLen is the number of accounts every hop starts with:
// [continuation, token_program, swap_program, owner].
const hopPrefixLen = 4

type hopPrefix struct {
	continuation *ledger.AccountInfo
	tokenProgram *ledger.AccountInfo
	swapProgram  *ledger.AccountInfo
	owner        *ledger.AccountInfo
}

type actionParser func(p *Program, prefix *hopPrefix, rest []*ledger.AccountInfo) (Action, error)

func parseHopPrefix(accounts []*ledger.AccountInfo) (*hopPrefix, []*ledger.AccountInfo, error) {
	if len(accounts) < hopPrefixLen {
		return nil, nil, ledger.ErrNotEnoughAccountKeys
	}
	h := &hopPrefix{
		continuation: accounts[0],
		tokenProgram: accounts[1],
		swapProgram:  accounts[2],
		owner:        accounts[3],
	}
	if !h.tokenProgram.Key.Equals(token.ProgramID) {
		return nil, nil, ledger.ErrIncorrectProgramID
	}
	if !h.owner.IsSigner {
		return nil, nil, ledger.ErrMissingRequiredSignature
	}
	return h, accounts[hopPrefixLen:], nil
}

// hop turns an action parser into an instruction handler running the step processor.
func hop(parse actionParser) handler {
	return func(p *Program, ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, _ []byte) error {
		prefix, rest, err := parseHopPrefix(accounts)
		if err != nil {
			return err
		}
		action, err := parse(p, prefix, rest)
		if err != nil {
			return err
		}
		return p.processStep(ctx, prefix, action)
	}
}

func requireWritable(infos ...*ledger.AccountInfo) error {
	for _, info := range infos {
		if !info.IsWritable {
			return ledger.ErrReadonlyDataModified
		}
	}
	return nil
}
