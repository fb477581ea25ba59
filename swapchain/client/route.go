package client

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"

	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/config"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/ledger"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/models"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/router"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/token"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/venues/decimalwrapper"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/venues/stableswap"
)

// AccountReader reads raw ledger accounts, returning nil for missing ones.
type AccountReader interface {
	GetAccountData(ctx context.Context, key solana.PublicKey) (*ledger.Account, error)
}

// Route is a route plan resolved against the ledger.
type Route struct {
	Builder *router.PlanBuilder
	// Setup creates the intermediate records the hops pass through.
	Setup      []ledger.Instruction
	Input      solana.PublicKey
	Output     solana.PublicKey
	OutputMint solana.PublicKey
}

type routeResolver struct {
	ctx      context.Context
	accounts AccountReader
	owner    solana.PublicKey
	pools    map[string]*stableswap.Layout
	wrappers map[string]*decimalwrapper.Layout
	created  map[solana.PublicKey]bool
	setup    []ledger.Instruction
}

// ResolveRoute looks up the pools and wrappers plan names and returns the
// chain's builder with the plan's floor applied. Call Builder.To again to
// change the floor.
func ResolveRoute(ctx context.Context, accounts AccountReader, routerID, owner solana.PublicKey, plan *config.RoutePlan) (*Route, error) {
	r := &routeResolver{
		ctx:      ctx,
		accounts: accounts,
		owner:    owner,
		pools:    make(map[string]*stableswap.Layout),
		wrappers: make(map[string]*decimalwrapper.Layout),
		created:  make(map[solana.PublicKey]bool),
	}
	current := config.MintAddress(plan.From)
	r.created[current] = true
	input := token.MustAssociatedAddress(owner, current)
	b := router.NewPlanBuilder(routerID, owner).From(input, plan.AmountIn)

	for i, h := range plan.Hops {
		action, err := router.ParseActionType(h.Action)
		if err != nil {
			return nil, fmt.Errorf("hop %d: %w", i, err)
		}
		next, err := r.addHop(b, action, h, current)
		if err != nil {
			return nil, fmt.Errorf("hop %d (%s): %w", i, action, err)
		}
		current = next
	}

	if want := config.MintAddress(plan.To); !current.Equals(want) {
		return nil, fmt.Errorf("route ends in mint %s, not %q", current, plan.To)
	}
	output := token.MustAssociatedAddress(owner, current)
	b.To(output, plan.MinimumAmountOut).CreateOutput(current)
	return &Route{
		Builder:    b,
		Setup:      r.setup,
		Input:      input,
		Output:     output,
		OutputMint: current,
	}, nil
}

// Transaction builds the chain and signs the unit running setup and chain.
// keys must cover the owner and any plan signers.
func (r *Route) Transaction(nonce uint64, random solana.PublicKey, keys ...solana.PrivateKey) (*ledger.Transaction, *router.Plan, error) {
	plan, err := r.Builder.Build(random)
	if err != nil {
		return nil, nil, err
	}
	ixs := make([]ledger.Instruction, 0, len(r.Setup)+len(plan.Instructions))
	ixs = append(ixs, r.Setup...)
	ixs = append(ixs, plan.Instructions...)
	tx := &ledger.Transaction{Nonce: nonce, Instructions: ixs}
	if err := tx.Sign(keys...); err != nil {
		return nil, nil, fmt.Errorf("failed to sign: %w", err)
	}
	return tx, plan, nil
}

// record returns the owner's record for mint, creating it first if needed.
func (r *routeResolver) record(mint solana.PublicKey) solana.PublicKey {
	if !r.created[mint] {
		r.created[mint] = true
		r.setup = append(r.setup, token.CreateAssociated(r.owner, r.owner, mint))
	}
	return token.MustAssociatedAddress(r.owner, mint)
}

func (r *routeResolver) addHop(b *router.PlanBuilder, action router.ActionType, h config.RouteHop, current solana.PublicKey) (solana.PublicKey, error) {
	input := token.MustAssociatedAddress(r.owner, current)
	switch action {
	case router.ActionSSSwap:
		pool, err := r.pool(h.Pool)
		if err != nil {
			return solana.PublicKey{}, err
		}
		in, out := pool.TokenA, pool.TokenB
		switch {
		case current.Equals(pool.TokenB.Mint):
			in, out = pool.TokenB, pool.TokenA
		case !current.Equals(pool.TokenA.Mint):
			return solana.PublicKey{}, fmt.Errorf("pool %q does not trade mint %s", h.Pool, current)
		}
		b.SSSwap(stableswap.ProgramID, router.SSSwapAccounts{
			Pool:          pool.Pool,
			PoolAuthority: pool.Authority,
			Input:         input,
			ReserveInput:  in.Reserve,
			ReserveOutput: out.Reserve,
			Output:        r.record(out.Mint),
		})
		return out.Mint, nil

	case router.ActionSSWithdrawOne:
		pool, err := r.pool(h.Pool)
		if err != nil {
			return solana.PublicKey{}, err
		}
		if !current.Equals(pool.LPMint) {
			return solana.PublicKey{}, fmt.Errorf("input mint %s is not the LP mint of %q", current, h.Pool)
		}
		want := config.MintAddress(h.Mint)
		out, other := pool.TokenA, pool.TokenB
		switch {
		case want.Equals(pool.TokenB.Mint):
			out, other = pool.TokenB, pool.TokenA
		case !want.Equals(pool.TokenA.Mint):
			return solana.PublicKey{}, fmt.Errorf("pool %q does not hold %q", h.Pool, h.Mint)
		}
		b.SSWithdrawOne(stableswap.ProgramID, router.SSWithdrawOneAccounts{
			Pool:          pool.Pool,
			PoolAuthority: pool.Authority,
			LPMint:        pool.LPMint,
			Input:         input,
			ReserveOutput: out.Reserve,
			ReserveOther:  other.Reserve,
			Output:        r.record(out.Mint),
		})
		return out.Mint, nil

	case router.ActionSSDepositA, router.ActionSSDepositB:
		pool, err := r.pool(h.Pool)
		if err != nil {
			return solana.PublicKey{}, err
		}
		side := pool.TokenA
		if action == router.ActionSSDepositB {
			side = pool.TokenB
		}
		if !current.Equals(side.Mint) {
			return solana.PublicKey{}, fmt.Errorf("input mint %s is not the deposited side of %q", current, h.Pool)
		}
		a := router.SSDepositAccounts{
			Pool:          pool.Pool,
			PoolAuthority: pool.Authority,
			UserA:         r.record(pool.TokenA.Mint),
			ReserveA:      pool.TokenA.Reserve,
			UserB:         r.record(pool.TokenB.Mint),
			ReserveB:      pool.TokenB.Reserve,
			LPMint:        pool.LPMint,
			Output:        r.record(pool.LPMint),
		}
		if action == router.ActionSSDepositA {
			b.SSDepositA(stableswap.ProgramID, a)
		} else {
			b.SSDepositB(stableswap.ProgramID, a)
		}
		return pool.LPMint, nil

	case router.ActionADDeposit, router.ActionADWithdraw:
		w, err := r.wrapper(h.Wrapper)
		if err != nil {
			return solana.PublicKey{}, err
		}
		from, to := w.UnderlyingMint, w.WrapperMint
		if action == router.ActionADWithdraw {
			from, to = to, from
		}
		if !current.Equals(from) {
			return solana.PublicKey{}, fmt.Errorf("input mint %s does not match wrapper %q", current, h.Wrapper)
		}
		a := router.ADAccounts{Input: input, Output: r.record(to), Remaining: w.RemainingAccounts()}
		if action == router.ActionADDeposit {
			b.ADDeposit(decimalwrapper.ProgramID, a)
		} else {
			b.ADWithdraw(decimalwrapper.ProgramID, a)
		}
		return to, nil
	}
	return solana.PublicKey{}, fmt.Errorf("unsupported action")
}

func (r *routeResolver) pool(name string) (*stableswap.Layout, error) {
	if l, ok := r.pools[name]; ok {
		return l, nil
	}
	key := config.PoolAddress(name)
	acc, err := r.accounts.GetAccountData(r.ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pool %q: %w", name, err)
	}
	layout, _, err := stableswap.LoadLayout(stableswap.ProgramID, key, acc)
	if err != nil {
		return nil, fmt.Errorf("pool %q: %w", name, err)
	}
	r.pools[name] = layout
	return layout, nil
}

// wrapper finds a wrapper through its wrapped mint, whose authority is the
// wrapper account.
func (r *routeResolver) wrapper(name string) (*decimalwrapper.Layout, error) {
	if l, ok := r.wrappers[name]; ok {
		return l, nil
	}
	mintAcc, err := r.accounts.GetAccountData(r.ctx, config.MintAddress(name))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch mint %q: %w", name, err)
	}
	if mintAcc == nil {
		return nil, fmt.Errorf("mint %q does not exist", name)
	}
	mint, err := token.DecodeMint(mintAcc.Data)
	if err != nil {
		return nil, fmt.Errorf("mint %q: %w", name, err)
	}
	acc, err := r.accounts.GetAccountData(r.ctx, mint.Authority)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch wrapper %q: %w", name, err)
	}
	layout, err := decimalwrapper.LoadLayout(decimalwrapper.ProgramID, mint.Authority, acc)
	if err != nil {
		return nil, fmt.Errorf("wrapper %q: %w", name, err)
	}
	r.wrappers[name] = layout
	return layout, nil
}

// CompletedAmount returns the amount_out of the chain completed in resp.
func CompletedAmount(resp *models.TransactionResponse) (uint64, bool) {
	for _, ev := range resp.Events {
		if ev.Complete == nil || ev.Complete.AmountOut == nil {
			continue
		}
		v, err := strconv.ParseUint(ev.Complete.AmountOut.Amount, 10, 64)
		if err != nil {
			return 0, false
		}
		return v, true
	}
	return 0, false
}
