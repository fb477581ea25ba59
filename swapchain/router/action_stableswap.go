package router

import (
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/ledger"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/venues/stableswap"
)

// poolAccounts are the accounts every SS action passes through to the pool.
type poolAccounts struct {
	pool      *ledger.AccountInfo
	authority *ledger.AccountInfo
}

func (p *Program) checkStableSwap(prefix *hopPrefix) error {
	if !prefix.swapProgram.Key.Equals(p.stableSwapID) {
		return ledger.ErrIncorrectProgramID
	}
	return nil
}

// SSSwapAction swaps one side of a pool for the other.
type SSSwapAction struct {
	poolAccounts
	input         *ledger.AccountInfo
	reserveInput  *ledger.AccountInfo
	reserveOutput *ledger.AccountInfo
	output        *ledger.AccountInfo
}

// parseSSSwap expects [pool, pool_authority, input, reserve_input, reserve_output, output].
func parseSSSwap(p *Program, prefix *hopPrefix, rest []*ledger.AccountInfo) (Action, error) {
	if err := p.checkStableSwap(prefix); err != nil {
		return nil, err
	}
	if len(rest) < 6 {
		return nil, ledger.ErrNotEnoughAccountKeys
	}
	a := &SSSwapAction{
		poolAccounts:  poolAccounts{pool: rest[0], authority: rest[1]},
		input:         rest[2],
		reserveInput:  rest[3],
		reserveOutput: rest[4],
		output:        rest[5],
	}
	return a, requireWritable(a.input, a.reserveInput, a.reserveOutput, a.output)
}

func (a *SSSwapAction) Type() ActionType                   { return ActionSSSwap }
func (a *SSSwapAction) InputAccount() *ledger.AccountInfo  { return a.input }
func (a *SSSwapAction) OutputAccount() *ledger.AccountInfo { return a.output }

func (a *SSSwapAction) Execute(sc *SwapContext, amountIn, minimumAmountOut uint64) (uint64, error) {
	return sc.invokeVenue(stableswap.Swap(sc.SwapProgram.Key, stableswap.SwapAccounts{
		Pool:               a.pool.Key,
		Authority:          a.authority.Key,
		UserAuthority:      sc.UserAuthority.Key,
		UserSource:         a.input.Key,
		ReserveSource:      a.reserveInput.Key,
		ReserveDestination: a.reserveOutput.Key,
		UserDestination:    a.output.Key,
	}, amountIn, minimumAmountOut))
}

// SSWithdrawOneAction burns LP tokens for one side of the pool.
type SSWithdrawOneAction struct {
	poolAccounts
	lpMint        *ledger.AccountInfo
	input         *ledger.AccountInfo
	reserveOutput *ledger.AccountInfo
	reserveOther  *ledger.AccountInfo
	output        *ledger.AccountInfo
}

// parseSSWithdrawOne expects [pool, pool_authority, lp_mint, input,
// reserve_output, reserve_other, output].
func parseSSWithdrawOne(p *Program, prefix *hopPrefix, rest []*ledger.AccountInfo) (Action, error) {
	if err := p.checkStableSwap(prefix); err != nil {
		return nil, err
	}
	if len(rest) < 7 {
		return nil, ledger.ErrNotEnoughAccountKeys
	}
	a := &SSWithdrawOneAction{
		poolAccounts:  poolAccounts{pool: rest[0], authority: rest[1]},
		lpMint:        rest[2],
		input:         rest[3],
		reserveOutput: rest[4],
		reserveOther:  rest[5],
		output:        rest[6],
	}
	return a, requireWritable(a.lpMint, a.input, a.reserveOutput, a.output)
}

func (a *SSWithdrawOneAction) Type() ActionType                   { return ActionSSWithdrawOne }
func (a *SSWithdrawOneAction) InputAccount() *ledger.AccountInfo  { return a.input }
func (a *SSWithdrawOneAction) OutputAccount() *ledger.AccountInfo { return a.output }

func (a *SSWithdrawOneAction) Execute(sc *SwapContext, amountIn, minimumAmountOut uint64) (uint64, error) {
	return sc.invokeVenue(stableswap.WithdrawOne(sc.SwapProgram.Key, stableswap.WithdrawOneAccounts{
		Pool:            a.pool.Key,
		Authority:       a.authority.Key,
		UserAuthority:   sc.UserAuthority.Key,
		LPMint:          a.lpMint.Key,
		UserLP:          a.input.Key,
		ReserveBase:     a.reserveOutput.Key,
		ReserveQuote:    a.reserveOther.Key,
		UserDestination: a.output.Key,
	}, amountIn, minimumAmountOut))
}

// SSDepositAction deposits a single side of a pool for LP tokens.
type SSDepositAction struct {
	poolAccounts
	sideB    bool
	userA    *ledger.AccountInfo
	reserveA *ledger.AccountInfo
	userB    *ledger.AccountInfo
	reserveB *ledger.AccountInfo
	lpMint   *ledger.AccountInfo
	output   *ledger.AccountInfo
}

// parseSSDeposit expects [pool, pool_authority, user_a, reserve_a, user_b,
// reserve_b, lp_mint, output].
func parseSSDeposit(p *Program, prefix *hopPrefix, rest []*ledger.AccountInfo, sideB bool) (Action, error) {
	if err := p.checkStableSwap(prefix); err != nil {
		return nil, err
	}
	if len(rest) < 8 {
		return nil, ledger.ErrNotEnoughAccountKeys
	}
	a := &SSDepositAction{
		poolAccounts: poolAccounts{pool: rest[0], authority: rest[1]},
		sideB:        sideB,
		userA:        rest[2],
		reserveA:     rest[3],
		userB:        rest[4],
		reserveB:     rest[5],
		lpMint:       rest[6],
		output:       rest[7],
	}
	return a, requireWritable(a.userA, a.reserveA, a.userB, a.reserveB, a.lpMint, a.output)
}

func parseSSDepositA(p *Program, prefix *hopPrefix, rest []*ledger.AccountInfo) (Action, error) {
	return parseSSDeposit(p, prefix, rest, false)
}

func parseSSDepositB(p *Program, prefix *hopPrefix, rest []*ledger.AccountInfo) (Action, error) {
	return parseSSDeposit(p, prefix, rest, true)
}

func (a *SSDepositAction) Type() ActionType {
	if a.sideB {
		return ActionSSDepositB
	}
	return ActionSSDepositA
}

func (a *SSDepositAction) InputAccount() *ledger.AccountInfo {
	if a.sideB {
		return a.userB
	}
	return a.userA
}

func (a *SSDepositAction) OutputAccount() *ledger.AccountInfo { return a.output }

func (a *SSDepositAction) Execute(sc *SwapContext, amountIn, minimumAmountOut uint64) (uint64, error) {
	amountA, amountB := amountIn, uint64(0)
	if a.sideB {
		amountA, amountB = 0, amountIn
	}
	return sc.invokeVenue(stableswap.Deposit(sc.SwapProgram.Key, stableswap.DepositAccounts{
		Pool:          a.pool.Key,
		Authority:     a.authority.Key,
		UserAuthority: sc.UserAuthority.Key,
		UserA:         a.userA.Key,
		UserB:         a.userB.Key,
		ReserveA:      a.reserveA.Key,
		ReserveB:      a.reserveB.Key,
		LPMint:        a.lpMint.Key,
		UserLP:        a.output.Key,
	}, amountA, amountB, minimumAmountOut))
}
