package client_test

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/zeebo/assert"

	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/client"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/config"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/ledger"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/router"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/rpc"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/token"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/venues"
)

const marketGenesis = `
[[mints]]
name = "USDC"
decimals = 6

[[mints]]
name = "USDT"
decimals = 6

[[accounts]]
owner = "%[1]s"
mint = "USDC"
amount = 10000000

[[pools]]
name = "usdc-usdt"
mint_a = "USDC"
mint_b = "USDT"
amp = 100
trade_fee = "0.0004"
withdraw_fee = "0.001"
reserve_a = 1000000000
reserve_b = 1000000000

[[wrappers]]
name = "wUSDT"
underlying = "USDT"
decimals = 9

[[wallets]]
pubkey = "%[1]s"
lamports = 1000000000
`

func newMarket(t *testing.T) (*client.Client, solana.PrivateKey) {
	t.Helper()
	owner, err := solana.NewRandomPrivateKey()
	if err != nil {
		t.Fatalf("failed to create key: %v", err)
	}
	store, err := ledger.OpenMemStore()
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	g, err := config.ParseGenesis([]byte(fmt.Sprintf(marketGenesis, owner.PublicKey())))
	if err != nil {
		t.Fatalf("failed to parse genesis: %v", err)
	}
	if _, err := config.ApplyGenesis(store, g); err != nil {
		t.Fatalf("failed to apply genesis: %v", err)
	}
	rt, err := ledger.NewRuntime(store)
	if err != nil {
		t.Fatalf("failed to create runtime: %v", err)
	}
	rt.Register(token.ProgramID, "token", token.Program{})
	rt.Register(token.AssociatedProgramID, "associated_token", token.AssociatedProgram{})
	venues.Default().RegisterAll(rt)
	rt.Register(router.ProgramID, "swapchain_router", router.New(router.ProgramID))

	srv, err := rpc.NewServer(context.Background(), &rpc.ServerConfig{Address: "127.0.0.1:0"}, rt, router.ProgramID)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	c, err := client.New(ts.URL, nil, testConfig())
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	t.Cleanup(c.Close)
	return c, owner
}

func balanceOf(t *testing.T, c *client.Client, owner solana.PublicKey, mint string) string {
	t.Helper()
	resp, err := c.GetTokenBalance(context.Background(), owner, config.MintAddress(mint))
	if err != nil {
		t.Fatalf("failed to read %s balance: %v", mint, err)
	}
	return resp.Amount
}

func TestRouteSwapThenWrap(t *testing.T) {
	c, owner := newMarket(t)
	ctx := context.Background()

	plan, err := config.ParseRoutePlan([]byte(`
from = "USDC"
to = "wUSDT"
amount_in = 1000000

[[hops]]
action = "SSSwap"
pool = "usdc-usdt"

[[hops]]
action = "ADDeposit"
wrapper = "wUSDT"
`))
	assert.NoError(t, err)

	route, err := client.ResolveRoute(ctx, c, router.ProgramID, owner.PublicKey(), plan)
	assert.NoError(t, err)
	assert.Equal(t, route.OutputMint, config.MintAddress("wUSDT"))
	// records for USDT and wUSDT are created ahead of the chain
	assert.Equal(t, len(route.Setup), 2)

	tx, _, err := route.Transaction(1, ledger.ProgramIDFromName("random-1"), owner)
	assert.NoError(t, err)

	sim, err := c.SimulateTransaction(ctx, tx)
	assert.NoError(t, err)
	assert.True(t, sim.Success)
	expected, ok := client.CompletedAmount(sim)
	assert.True(t, ok)
	assert.True(t, expected > 990_000_000)
	assert.True(t, expected < 1_000_000_000)
	assert.Equal(t, expected%1000, uint64(0))

	resp, err := c.SubmitTransaction(ctx, tx)
	assert.NoError(t, err)
	assert.True(t, resp.Success)
	got, ok := client.CompletedAmount(resp)
	assert.True(t, ok)
	assert.Equal(t, got, expected)
	assert.Equal(t, balanceOf(t, c, owner.PublicKey(), "wUSDT"), strconv.FormatUint(got, 10))
	assert.Equal(t, balanceOf(t, c, owner.PublicKey(), "USDT"), "0")
	assert.Equal(t, balanceOf(t, c, owner.PublicKey(), "USDC"), "9000000")
}

func TestRouteRoundTripThroughLP(t *testing.T) {
	c, owner := newMarket(t)
	ctx := context.Background()

	plan, err := config.ParseRoutePlan([]byte(`
from = "USDC"
to = "USDC"
amount_in = 1000000
minimum_amount_out = 990000
begin_v2 = true

[[hops]]
action = "SSSwap"
pool = "usdc-usdt"

[[hops]]
action = "SSDepositB"
pool = "usdc-usdt"

[[hops]]
action = "SSWithdrawOne"
pool = "usdc-usdt"
mint = "USDC"
`))
	assert.NoError(t, err)

	route, err := client.ResolveRoute(ctx, c, router.ProgramID, owner.PublicKey(), plan)
	assert.NoError(t, err)
	assert.Equal(t, route.Input, route.Output)

	continuation, err := solana.NewRandomPrivateKey()
	if err != nil {
		t.Fatalf("failed to create key: %v", err)
	}
	route.Builder.UseBeginV2(continuation.PublicKey())
	tx, plan2, err := route.Transaction(uint64(time.Now().UnixNano()), solana.PublicKey{}, owner, continuation)
	assert.NoError(t, err)
	assert.Equal(t, plan2.Continuation, continuation.PublicKey())

	resp, err := c.SubmitTransaction(ctx, tx)
	assert.NoError(t, err)
	assert.True(t, resp.Success)
	got, ok := client.CompletedAmount(resp)
	assert.True(t, ok)
	assert.True(t, got >= 990_000)
	assert.True(t, got < 1_000_000)
	assert.Equal(t, balanceOf(t, c, owner.PublicKey(), "USDC"), strconv.FormatUint(9_000_000+got, 10))
	assert.Equal(t, balanceOf(t, c, owner.PublicKey(), config.LPMintName("usdc-usdt")), "0")
}

func TestResolveRouteRejectsBrokenChains(t *testing.T) {
	c, owner := newMarket(t)
	tests := []struct {
		name string
		plan config.RoutePlan
	}{
		{name: "unknown pool", plan: config.RoutePlan{From: "USDC", To: "USDT", AmountIn: 1,
			Hops: []config.RouteHop{{Action: "SSSwap", Pool: "usdc-dai"}}}},
		{name: "pool does not trade input", plan: config.RoutePlan{From: "wUSDT", To: "USDT", AmountIn: 1,
			Hops: []config.RouteHop{{Action: "SSSwap", Pool: "usdc-usdt"}}}},
		{name: "wrong destination", plan: config.RoutePlan{From: "USDC", To: "USDC", AmountIn: 1,
			Hops: []config.RouteHop{{Action: "SSSwap", Pool: "usdc-usdt"}}}},
		{name: "deposit of the wrong side", plan: config.RoutePlan{From: "USDC", To: "usdc-usdt-lp", AmountIn: 1,
			Hops: []config.RouteHop{{Action: "SSDepositB", Pool: "usdc-usdt"}}}},
		{name: "unwrap of the underlying", plan: config.RoutePlan{From: "USDT", To: "USDT", AmountIn: 1,
			Hops: []config.RouteHop{{Action: "ADWithdraw", Wrapper: "wUSDT"}}}},
		{name: "unknown wrapper", plan: config.RoutePlan{From: "USDT", To: "wDAI", AmountIn: 1,
			Hops: []config.RouteHop{{Action: "ADDeposit", Wrapper: "wDAI"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.ResolveRoute(context.Background(), c, router.ProgramID, owner.PublicKey(), &tt.plan)
			assert.Error(t, err)
		})
	}
}
