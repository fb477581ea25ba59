package router_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/zeebo/assert"

	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/ledger"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/router"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/token"
)

func TestRoundTripCreditsInitialAmount(t *testing.T) {
	e := newEnv(t)
	owner := e.owner.PublicKey()
	mintA, mintB := e.mint("A"), e.mint("B")
	a := e.record("a", owner, mintA, 1000)
	b := e.record("b", owner, mintB, 0)
	e.venue.rates[mintB] = rate{num: 201, den: 200}
	e.venue.rates[mintA] = rate{num: 199, den: 201}

	plan, err := router.NewPlanBuilder(router.ProgramID, owner).
		From(a, 1000).
		To(a, 990).
		ADDeposit(stubID, e.stubHop(a, b, mintA, mintB)).
		ADWithdraw(stubID, e.stubHop(b, a, mintB, mintA)).
		Build(e.random())
	assert.NoError(t, err)
	assert.Equal(t, len(plan.Instructions), 4)

	receipt, err := e.run(nil, plan.Instructions...)
	assert.NoError(t, err)
	assert.Equal(t, e.amount(a), uint64(995))
	assert.Equal(t, e.amount(b), uint64(0))
	assert.DeepEqual(t, e.venue.actions, []uint16{11, 10})

	events := decodeEvents(t, receipt)
	assert.Equal(t, len(events), 3)
	first, ok := events[0].(*router.SwapActionEvent)
	assert.True(t, ok)
	assert.Equal(t, first.ActionType, router.ActionADDeposit)
	assert.Equal(t, first.InputAmount, router.NewTokenAmount(mintA, 1000))
	assert.Equal(t, first.OutputAccount, b)
	assert.Equal(t, first.OutputAmount, router.NewTokenAmount(mintB, 1005))

	done, ok := events[2].(*router.SwapCompleteEvent)
	assert.True(t, ok)
	assert.Equal(t, done.Owner, owner)
	assert.Equal(t, done.AmountIn, router.NewTokenAmount(mintA, 1000))
	assert.Equal(t, done.AmountOut, router.NewTokenAmount(mintA, 995))

	// The continuation is closed and its rent is back with the payer.
	acc, err := e.rt.GetAccount(plan.Continuation)
	assert.NoError(t, err)
	assert.True(t, acc == nil)
	assert.Equal(t, e.lamports(owner), uint64(ownerLamports))
}

func TestFloorIsInclusive(t *testing.T) {
	e := newEnv(t)
	owner := e.owner.PublicKey()
	mintA, mintC := e.mint("A"), e.mint("C")
	a := e.record("a", owner, mintA, 2000)
	c := e.record("c", owner, mintC, 0)
	e.venue.rates[mintC] = rate{num: 99, den: 100}
	e.venue.ignoreFloor = true

	build := func(floor uint64) []ledger.Instruction {
		plan, err := router.NewPlanBuilder(router.ProgramID, owner).
			From(a, 1000).
			To(c, floor).
			ADDeposit(stubID, e.stubHop(a, c, mintA, mintC)).
			Build(e.random())
		if err != nil {
			t.Fatalf("failed to build plan: %v", err)
		}
		return plan.Instructions
	}

	_, err := e.run(nil, build(991)...)
	assert.True(t, errors.Is(err, router.ErrMinimumOutNotMet))
	assert.Equal(t, e.amount(a), uint64(2000))

	_, err = e.run(nil, build(990)...)
	assert.NoError(t, err)
	assert.Equal(t, e.amount(a), uint64(1000))
	assert.Equal(t, e.amount(c), uint64(990))
}

func TestVenueFloorIsPassedToLastHop(t *testing.T) {
	e := newEnv(t)
	owner := e.owner.PublicKey()
	mintA, mintC := e.mint("A"), e.mint("C")
	a := e.record("a", owner, mintA, 1000)
	c := e.record("c", owner, mintC, 0)
	e.venue.rates[mintC] = rate{num: 99, den: 100}

	plan, err := router.NewPlanBuilder(router.ProgramID, owner).
		From(a, 1000).
		To(c, 991).
		ADDeposit(stubID, e.stubHop(a, c, mintA, mintC)).
		Build(e.random())
	assert.NoError(t, err)
	_, err = e.run(nil, plan.Instructions...)
	assert.Equal(t, ledger.ErrorName(err), "SlippageExceeded")
}

func TestObservedDeltaIsPropagated(t *testing.T) {
	e := newEnv(t)
	owner := e.owner.PublicKey()
	mintA, mintB, mintC := e.mint("A"), e.mint("B"), e.mint("C")
	a := e.record("a", owner, mintA, 1000)
	b := e.record("b", owner, mintB, 7)
	c := e.record("c", owner, mintC, 0)
	e.venue.rates[mintB] = rate{num: 201, den: 200, shortfall: 5}

	plan, err := router.NewPlanBuilder(router.ProgramID, owner).
		From(a, 1000).
		To(c, 1000).
		ADDeposit(stubID, e.stubHop(a, b, mintA, mintB)).
		ADDeposit(stubID, e.stubHop(b, c, mintB, mintC)).
		Build(e.random())
	assert.NoError(t, err)

	receipt, err := e.run(nil, plan.Instructions...)
	assert.NoError(t, err)
	assert.Equal(t, e.amount(b), uint64(7))
	assert.Equal(t, e.amount(c), uint64(1000))

	events := decodeEvents(t, receipt)
	second, ok := events[1].(*router.SwapActionEvent)
	assert.True(t, ok)
	assert.Equal(t, second.InputAmount, router.NewTokenAmount(mintB, 1000))

	found := false
	for _, line := range receipt.Logs {
		if strings.Contains(line, "Venue reported 1005, observed 1000") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestHopThatLowersOutputFails(t *testing.T) {
	e := newEnv(t)
	owner := e.owner.PublicKey()
	mintA, mintC := e.mint("A"), e.mint("C")
	a := e.record("a", owner, mintA, 1000)
	c := e.record("c", owner, mintC, 500)
	e.venue.rates[mintC] = rate{num: 0, den: 1, drain: 100}

	plan, err := router.NewPlanBuilder(router.ProgramID, owner).
		From(a, 1000).
		To(c, 0).
		ADDeposit(stubID, e.stubHop(a, c, mintA, mintC)).
		Build(e.random())
	assert.NoError(t, err)

	_, err = e.run(nil, plan.Instructions...)
	assert.True(t, errors.Is(err, router.ErrBalanceLower))
	assert.Equal(t, e.amount(a), uint64(1000))
	assert.Equal(t, e.amount(c), uint64(500))
}

func TestHopsMustFollowChain(t *testing.T) {
	e := newEnv(t)
	owner := e.owner.PublicKey()
	mintA, mintB, mintC := e.mint("A"), e.mint("B"), e.mint("C")
	a := e.record("a", owner, mintA, 1000)
	b := e.record("b", owner, mintB, 0)
	other := e.record("b2", owner, mintB, 5000)
	c := e.record("c", owner, mintC, 0)

	plan, err := router.NewPlanBuilder(router.ProgramID, owner).
		From(a, 1000).
		To(c, 1).
		ADDeposit(stubID, e.stubHop(a, b, mintA, mintB)).
		ADDeposit(stubID, e.stubHop(other, c, mintB, mintC)).
		Build(e.random())
	assert.NoError(t, err)

	_, err = e.run(nil, plan.Instructions...)
	assert.True(t, errors.Is(err, router.ErrPathInputOutputMismatch))
	var ixErr *ledger.InstructionError
	assert.True(t, errors.As(err, &ixErr))
	assert.Equal(t, ixErr.Index, 2)
	assert.Equal(t, e.amount(other), uint64(5000))
}

func TestForeignRecordsAreRejected(t *testing.T) {
	e := newEnv(t)
	owner := e.owner.PublicKey()
	stranger := e.wallet().PublicKey()
	mintA, mintB := e.mint("A"), e.mint("B")
	a := e.record("a", owner, mintA, 1000)
	b := e.record("b", owner, mintB, 0)
	theirs := e.record("theirs", stranger, mintB, 0)
	theirsA := e.record("theirs-a", stranger, mintA, 1000)

	plan, err := router.NewPlanBuilder(router.ProgramID, owner).
		From(theirsA, 1000).
		To(b, 1).
		ADDeposit(stubID, e.stubHop(theirsA, b, mintA, mintB)).
		Build(e.random())
	assert.NoError(t, err)
	_, err = e.run(nil, plan.Instructions...)
	assert.True(t, errors.Is(err, router.ErrInputOwnerMismatch))

	plan, err = router.NewPlanBuilder(router.ProgramID, owner).
		From(a, 1000).
		To(b, 1).
		ADDeposit(stubID, e.stubHop(a, theirs, mintA, mintB)).
		Build(e.random())
	assert.NoError(t, err)
	_, err = e.run(nil, plan.Instructions...)
	assert.True(t, errors.Is(err, router.ErrOutputOwnerMismatch))
}

func TestLastHopMintMismatchStopsBeforeVenue(t *testing.T) {
	e := newEnv(t)
	owner := e.owner.PublicKey()
	mintA, mintB, mintC := e.mint("A"), e.mint("B"), e.mint("C")
	a := e.record("a", owner, mintA, 1000)
	b := e.record("b", owner, mintB, 0)
	c := e.record("c", owner, mintC, 0)

	plan, err := router.NewPlanBuilder(router.ProgramID, owner).
		From(a, 1000).
		To(c, 1).
		ADDeposit(stubID, e.stubHop(a, b, mintA, mintB)).
		Build(e.random())
	assert.NoError(t, err)

	_, err = e.run(nil, plan.Instructions...)
	assert.True(t, errors.Is(err, router.ErrOutputMintMismatch))
	assert.Equal(t, e.venue.calls, 0)
}

func TestZeroAndInsufficientInput(t *testing.T) {
	e := newEnv(t)
	owner := e.owner.PublicKey()
	mintA, mintB := e.mint("A"), e.mint("B")
	a := e.record("a", owner, mintA, 1000)
	b := e.record("b", owner, mintB, 0)

	for _, tc := range []struct {
		amount uint64
		want   router.ErrorCode
	}{
		{amount: 0, want: router.ErrZeroSwap},
		{amount: 1001, want: router.ErrInsufficientInputBalance},
	} {
		plan, err := router.NewPlanBuilder(router.ProgramID, owner).
			From(a, tc.amount).
			To(b, 0).
			ADDeposit(stubID, e.stubHop(a, b, mintA, mintB)).
			Build(e.random())
		assert.NoError(t, err)
		_, err = e.run(nil, plan.Instructions...)
		assert.True(t, errors.Is(err, tc.want))
	}
}

func TestHopAfterLastStepFails(t *testing.T) {
	e := newEnv(t)
	owner := e.owner.PublicKey()
	mintA, mintB := e.mint("A"), e.mint("B")
	a := e.record("a", owner, mintA, 1000)
	b := e.record("b", owner, mintB, 0)

	random := e.random()
	cont, _, err := router.DeriveContinuation(router.ProgramID, owner, random)
	assert.NoError(t, err)
	prefix := e.hopPrefix(cont)
	_, err = e.run(nil,
		router.Begin(router.ProgramID, router.BeginAccounts{
			Continuation: cont, Random: random, Input: a, Output: b, Owner: owner,
		}, router.BeginArgs{AmountIn: 1000, MinimumAmountOut: 1, NumSteps: 1}),
		router.ADDeposit(router.ProgramID, prefix, e.stubHop(a, b, mintA, mintB)),
		router.ADDeposit(router.ProgramID, prefix, e.stubHop(b, b, mintB, mintB)),
		router.End(router.ProgramID, router.EndAccounts{Continuation: cont, Output: b, Owner: owner}),
	)
	assert.True(t, errors.Is(err, router.ErrNoMoreSteps))
	var ixErr *ledger.InstructionError
	assert.True(t, errors.As(err, &ixErr))
	assert.Equal(t, ixErr.Index, 2)
}

func TestStepsDecrementOncePerHop(t *testing.T) {
	e := newEnv(t, router.WithCrossUnitChains(true))
	owner := e.owner.PublicKey()
	mintA, mintB, mintC := e.mint("A"), e.mint("B"), e.mint("C")
	a := e.record("a", owner, mintA, 1000)
	b := e.record("b", owner, mintB, 0)
	c := e.record("c", owner, mintC, 0)
	e.venue.rates[mintB] = rate{num: 201, den: 200}

	random := e.random()
	cont, bump, err := router.DeriveContinuation(router.ProgramID, owner, random)
	assert.NoError(t, err)
	_, err = e.run(nil, router.Begin(router.ProgramID, router.BeginAccounts{
		Continuation: cont, Random: random, Input: a, Output: c, Owner: owner,
	}, router.BeginArgs{AmountIn: 1000, MinimumAmountOut: 900, NumSteps: 2}))
	assert.NoError(t, err)

	opened := e.continuation(cont)
	assert.Equal(t, opened.StepsLeft, uint16(2))
	assert.Equal(t, opened.Owner, owner)
	assert.Equal(t, opened.Payer, owner)
	assert.Equal(t, opened.Input, a)
	assert.Equal(t, opened.Output, c)
	assert.Equal(t, opened.OutputInitialBalance, uint64(0))
	assert.Equal(t, opened.MinimumAmountOut, router.NewTokenAmount(mintC, 900))
	assert.Equal(t, opened.Nonce, bump)

	_, err = e.run(nil, router.ADDeposit(router.ProgramID, e.hopPrefix(cont), e.stubHop(a, b, mintA, mintB)))
	assert.NoError(t, err)
	advanced := e.continuation(cont)
	assert.Equal(t, advanced.StepsLeft, uint16(1))
	assert.Equal(t, advanced.Input, b)
	assert.Equal(t, advanced.AmountIn, router.NewTokenAmount(mintB, 1005))
	assert.Equal(t, advanced.InitialAmountIn, opened.InitialAmountIn)
	assert.Equal(t, advanced.Output, opened.Output)
	assert.Equal(t, advanced.MinimumAmountOut, opened.MinimumAmountOut)
	assert.Equal(t, advanced.OutputInitialBalance, opened.OutputInitialBalance)

	_, err = e.run(nil,
		router.ADDeposit(router.ProgramID, e.hopPrefix(cont), e.stubHop(b, c, mintB, mintC)),
		router.End(router.ProgramID, router.EndAccounts{Continuation: cont, Output: c, Owner: owner}),
	)
	assert.NoError(t, err)
	assert.Equal(t, e.amount(c), uint64(1005))
}

func TestEndIncompleteLeavesContinuationUntouched(t *testing.T) {
	e := newEnv(t, router.WithCrossUnitChains(true))
	owner := e.owner.PublicKey()
	mintA, mintB := e.mint("A"), e.mint("B")
	a := e.record("a", owner, mintA, 1000)
	b := e.record("b", owner, mintB, 0)

	random := e.random()
	cont, _, err := router.DeriveContinuation(router.ProgramID, owner, random)
	assert.NoError(t, err)
	_, err = e.run(nil, router.Begin(router.ProgramID, router.BeginAccounts{
		Continuation: cont, Random: random, Input: a, Output: b, Owner: owner,
	}, router.BeginArgs{AmountIn: 1000, MinimumAmountOut: 1, NumSteps: 1}))
	assert.NoError(t, err)
	before, err := e.rt.GetAccount(cont)
	assert.NoError(t, err)

	_, err = e.run(nil, router.End(router.ProgramID, router.EndAccounts{Continuation: cont, Output: b, Owner: owner}))
	assert.True(t, errors.Is(err, router.ErrEndIncomplete))

	after, err := e.rt.GetAccount(cont)
	assert.NoError(t, err)
	assert.True(t, before.Equal(after))
}

func TestEndChecksStoredAccounts(t *testing.T) {
	e := newEnv(t, router.WithCrossUnitChains(true))
	owner := e.owner.PublicKey()
	mintA, mintB := e.mint("A"), e.mint("B")
	a := e.record("a", owner, mintA, 1000)
	b := e.record("b", owner, mintB, 0)
	other := e.record("b2", owner, mintB, 0)

	random := e.random()
	cont, _, err := router.DeriveContinuation(router.ProgramID, owner, random)
	assert.NoError(t, err)
	_, err = e.run(nil, router.Begin(router.ProgramID, router.BeginAccounts{
		Continuation: cont, Random: random, Input: a, Output: b, Owner: owner,
	}, router.BeginArgs{AmountIn: 1000, NumSteps: 0}))
	assert.NoError(t, err)

	_, err = e.run(nil, router.End(router.ProgramID, router.EndAccounts{Continuation: cont, Output: other, Owner: owner}))
	assert.True(t, errors.Is(err, ledger.ErrConstraintHasOne))

	_, err = e.run(nil, router.End(router.ProgramID, router.EndAccounts{Continuation: cont, Output: b, Owner: owner}))
	assert.NoError(t, err)
}

func TestContinuationMustCloseInSameUnit(t *testing.T) {
	e := newEnv(t)
	owner := e.owner.PublicKey()
	mintA, mintB := e.mint("A"), e.mint("B")
	a := e.record("a", owner, mintA, 1000)
	b := e.record("b", owner, mintB, 0)

	random := e.random()
	cont, _, err := router.DeriveContinuation(router.ProgramID, owner, random)
	assert.NoError(t, err)
	_, err = e.run(nil, router.Begin(router.ProgramID, router.BeginAccounts{
		Continuation: cont, Random: random, Input: a, Output: b, Owner: owner,
	}, router.BeginArgs{AmountIn: 1000, MinimumAmountOut: 1, NumSteps: 1}))
	assert.True(t, errors.Is(err, router.ErrContinuationLeftOpen))

	acc, err := e.rt.GetAccount(cont)
	assert.NoError(t, err)
	assert.True(t, acc == nil)
	assert.Equal(t, e.lamports(owner), uint64(ownerLamports))
}

func TestBeginRejectsUnderivedContinuation(t *testing.T) {
	e := newEnv(t)
	owner := e.owner.PublicKey()
	mintA, mintB := e.mint("A"), e.mint("B")
	a := e.record("a", owner, mintA, 1000)
	b := e.record("b", owner, mintB, 0)

	_, err := e.run(nil, router.Begin(router.ProgramID, router.BeginAccounts{
		Continuation: e.random(), Random: e.random(), Input: a, Output: b, Owner: owner,
	}, router.BeginArgs{AmountIn: 1000, NumSteps: 1}))
	assert.True(t, errors.Is(err, ledger.ErrInvalidSeeds))

	_, err = e.run(nil, ledger.NewInstruction(router.ProgramID, nil, router.BeginDiscriminator[:]))
	assert.True(t, errors.Is(err, ledger.ErrInvalidInstructionData))
}

func TestBeginV2UsesCallerAccount(t *testing.T) {
	e := newEnv(t)
	owner := e.owner.PublicKey()
	mintA, mintB := e.mint("A"), e.mint("B")
	a := e.record("a", owner, mintA, 1000)
	b := e.record("b", owner, mintB, 0)

	contKey, err := solana.NewRandomPrivateKey()
	assert.NoError(t, err)
	plan, err := router.NewPlanBuilder(router.ProgramID, owner).
		From(a, 1000).
		To(b, 1000).
		UseBeginV2(contKey.PublicKey()).
		ADDeposit(stubID, e.stubHop(a, b, mintA, mintB)).
		Build(solana.PublicKey{})
	assert.NoError(t, err)
	assert.Equal(t, plan.Continuation, contKey.PublicKey())
	assert.DeepEqual(t, plan.Signers, []solana.PublicKey{contKey.PublicKey()})

	_, err = e.run([]solana.PrivateKey{contKey}, plan.Instructions...)
	assert.NoError(t, err)
	assert.Equal(t, e.amount(b), uint64(1000))
	assert.Equal(t, e.lamports(owner), uint64(ownerLamports))
}

func TestBeginV2RejectsInitializedAccount(t *testing.T) {
	e := newEnv(t)
	owner := e.owner.PublicKey()
	mintA, mintB := e.mint("A"), e.mint("B")
	a := e.record("a", owner, mintA, 1000)
	b := e.record("b", owner, mintB, 0)

	used := e.random()
	acc := ledger.NewAccount(router.ProgramID, ledger.MinimumBalance(router.ContinuationLen), router.ContinuationLen)
	acc.Data[0] = 1
	if err := e.store.Put(used, acc); err != nil {
		t.Fatalf("failed to seed account: %v", err)
	}

	_, err := e.run(nil, router.BeginV2(router.ProgramID, router.BeginV2Accounts{
		Continuation: used, Input: a, Output: b, Owner: owner,
	}, router.BeginArgs{AmountIn: 1000, NumSteps: 1}))
	assert.True(t, errors.Is(err, ledger.ErrAccountAlreadyInitialized))
}

func TestErrorCodes(t *testing.T) {
	assert.Equal(t, router.ErrPathInputOutputMismatch.Code(), uint32(6000))
	assert.Equal(t, router.ErrContinuationLeftOpen.Code(), uint32(6013))
	assert.Equal(t, router.ErrMinimumOutNotMet.Name(), "MinimumOutNotMet")
	assert.Equal(t, ledger.ErrorName(router.ErrBalanceLower), "BalanceLower")
	assert.True(t, strings.Contains(router.ErrZeroSwap.Error(), "0x1774"))
}

func TestBeginShortAccountList(t *testing.T) {
	e := newEnv(t)
	owner := e.owner.PublicKey()
	mintA, mintB := e.mint("A"), e.mint("B")
	a := e.record("a", owner, mintA, 1000)
	b := e.record("b", owner, mintB, 0)
	args := router.BeginArgs{AmountIn: 1000, MinimumAmountOut: 1, NumSteps: 1}

	random := e.random()
	cont, _, err := router.DeriveContinuation(router.ProgramID, owner, random)
	assert.NoError(t, err)
	begin := router.Begin(router.ProgramID, router.BeginAccounts{
		Continuation: cont, Random: random, Input: a, Output: b, Owner: owner,
	}, args)
	begin.Accounts = begin.Accounts[:len(begin.Accounts)-1]
	_, err = e.run(nil, begin)
	assert.True(t, errors.Is(err, ledger.ErrNotEnoughAccountKeys))

	beginV2 := router.BeginV2(router.ProgramID, router.BeginV2Accounts{
		Continuation: e.random(), Input: a, Output: b, Owner: owner,
	}, args)
	beginV2.Accounts = beginV2.Accounts[:3]
	_, err = e.run(nil, beginV2)
	assert.True(t, errors.Is(err, ledger.ErrNotEnoughAccountKeys))
}

// The input record is closed and opened again between Begin and the hop, so
// the hop sees the same address holding a different record.
func TestHopChecksInputRecord(t *testing.T) {
	for _, tc := range []struct {
		name  string
		owner func(e *env) solana.PublicKey
		mint  string
		want  router.ErrorCode
	}{
		{name: "mint", owner: func(e *env) solana.PublicKey { return e.owner.PublicKey() }, mint: "C", want: router.ErrInputMintMismatch},
		{name: "owner", owner: func(e *env) solana.PublicKey { return e.wallet().PublicKey() }, mint: "A", want: router.ErrInputOwnerMismatch},
	} {
		t.Run(tc.name, func(t *testing.T) {
			e := newEnv(t)
			owner := e.owner.PublicKey()
			mintA, mintB := e.mint("A"), e.mint("B")
			b := e.record("b", owner, mintB, 0)
			reopened := map[string]solana.PublicKey{"A": mintA, "C": e.mint("C")}[tc.mint]

			inputKey, err := solana.NewRandomPrivateKey()
			assert.NoError(t, err)
			a := inputKey.PublicKey()
			if err := e.store.Put(a, token.NewTokenAccount(token.Account{Mint: mintA, Owner: owner, State: token.AccountInitialized})); err != nil {
				t.Fatalf("failed to create record: %v", err)
			}

			random := e.random()
			cont, _, err := router.DeriveContinuation(router.ProgramID, owner, random)
			assert.NoError(t, err)
			_, err = e.run([]solana.PrivateKey{inputKey},
				router.Begin(router.ProgramID, router.BeginAccounts{
					Continuation: cont, Random: random, Input: a, Output: b, Owner: owner,
				}, router.BeginArgs{AmountIn: 1000, MinimumAmountOut: 1, NumSteps: 1}),
				token.CloseAccount(a, owner, owner),
				ledger.CreateAccount(owner, a, ledger.MinimumBalance(token.AccountLen), token.AccountLen, token.ProgramID),
				token.InitializeAccount(a, reopened, tc.owner(e)),
				router.ADDeposit(router.ProgramID, e.hopPrefix(cont), e.stubHop(a, b, mintA, mintB)),
				router.End(router.ProgramID, router.EndAccounts{Continuation: cont, Output: b, Owner: owner}),
			)
			assert.True(t, errors.Is(err, tc.want))
			var ixErr *ledger.InstructionError
			assert.True(t, errors.As(err, &ixErr))
			assert.Equal(t, ixErr.Index, 4)
			assert.Equal(t, e.venue.calls, 0)
		})
	}
}

// relayVenue calls back into the router with a prebuilt hop.
type relayVenue struct {
	inner ledger.Instruction
}

func (r *relayVenue) Process(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, data []byte) error {
	return ctx.Invoke(r.inner)
}

func TestVenueCannotReenterRouter(t *testing.T) {
	e := newEnv(t)
	owner := e.owner.PublicKey()
	mintA, mintB := e.mint("A"), e.mint("B")
	a := e.record("a", owner, mintA, 1000)
	b := e.record("b", owner, mintB, 0)

	random := e.random()
	cont, _, err := router.DeriveContinuation(router.ProgramID, owner, random)
	assert.NoError(t, err)

	relayID := ledger.ProgramIDFromName("relay-venue")
	relay := &relayVenue{inner: router.ADDeposit(router.ProgramID, e.hopPrefix(cont), e.stubHop(a, b, mintA, mintB))}
	e.rt.Register(relayID, "relay-venue", relay)

	receipt, err := e.run(nil,
		router.Begin(router.ProgramID, router.BeginAccounts{
			Continuation: cont, Random: random, Input: a, Output: b, Owner: owner,
		}, router.BeginArgs{AmountIn: 1000, MinimumAmountOut: 1, NumSteps: 2}),
		router.ADDeposit(router.ProgramID,
			router.HopAccounts{Continuation: cont, SwapProgram: relayID, Owner: owner},
			router.ADAccounts{Input: a, Output: b, Remaining: relay.inner.Accounts}),
	)
	assert.True(t, errors.Is(err, ledger.ErrReentrancy))
	var ixErr *ledger.InstructionError
	assert.True(t, errors.As(err, &ixErr))
	assert.Equal(t, ixErr.Index, 1)
	assert.Equal(t, e.venue.calls, 0)
	assert.Equal(t, len(decodeEvents(t, receipt)), 0)

	assert.Equal(t, e.amount(a), uint64(1000))
	assert.Equal(t, e.amount(b), uint64(0))
	acc, err := e.rt.GetAccount(cont)
	assert.NoError(t, err)
	assert.True(t, acc == nil)
}
