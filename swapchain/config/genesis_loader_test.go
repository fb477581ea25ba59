package config_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/zeebo/assert"

	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/config"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/ledger"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/token"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/venues/stableswap"
)

const genesisTemplate = `
[[mints]]
name = "USDC"
decimals = 6
authority = "%[1]s"

[[mints]]
name = "USDT"
decimals = 6

[[accounts]]
owner = "%[1]s"
mint = "USDC"
amount = 5000000

[[accounts]]
owner = "%[1]s"
mint = "USDC"
amount = 1000

[[accounts]]
owner = "%[1]s"
mint = "USDT"
amount = 7

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
underlying = "USDC"
decimals = 9

[[wallets]]
pubkey = "%[1]s"
lamports = 1000000000
`

func testGenesis(t *testing.T) (*config.Genesis, solana.PublicKey) {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		t.Fatalf("failed to create key: %v", err)
	}
	g, err := config.ParseGenesis([]byte(fmt.Sprintf(genesisTemplate, key.PublicKey())))
	if err != nil {
		t.Fatalf("failed to parse genesis: %v", err)
	}
	return g, key.PublicKey()
}

func openStore(t *testing.T) *ledger.Store {
	t.Helper()
	store, err := ledger.OpenMemStore()
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func mintOf(t *testing.T, store *ledger.Store, key solana.PublicKey) *token.Mint {
	t.Helper()
	acc, err := store.Get(key)
	if err != nil || acc == nil {
		t.Fatalf("missing mint %s: %v", key, err)
	}
	m, err := token.DecodeMint(acc.Data)
	if err != nil {
		t.Fatalf("failed to decode mint: %v", err)
	}
	return m
}

func TestApplyGenesis(t *testing.T) {
	g, owner := testGenesis(t)
	store := openStore(t)

	dir, err := config.ApplyGenesis(store, g)
	assert.NoError(t, err)

	usdc := config.MintAddress("USDC")
	assert.Equal(t, dir.Mints["USDC"], usdc)
	assert.Equal(t, dir.Mints["usdc-usdt-lp"], config.MintAddress(config.LPMintName("usdc-usdt")))
	assert.Equal(t, dir.Decimals["wUSDC"], uint8(9))

	// duplicate entries are summed into one associated account
	acc, err := store.Get(token.MustAssociatedAddress(owner, usdc))
	assert.NoError(t, err)
	ta, err := token.DecodeAccount(acc.Data)
	assert.NoError(t, err)
	assert.Equal(t, ta.Amount, uint64(5_001_000))

	m := mintOf(t, store, usdc)
	assert.Equal(t, m.Supply, uint64(1_005_001_000))
	assert.Equal(t, m.Authority, owner)
	assert.Equal(t, mintOf(t, store, config.MintAddress("USDT")).Authority, solana.PublicKey{})
	assert.Equal(t, mintOf(t, store, config.MintAddress("wUSDC")).Supply, uint64(0))

	pool, err := store.Get(config.PoolAddress("usdc-usdt"))
	assert.NoError(t, err)
	layout, state, err := stableswap.LoadLayout(stableswap.ProgramID, config.PoolAddress("usdc-usdt"), pool)
	assert.NoError(t, err)
	assert.Equal(t, layout.TokenA.Reserve, dir.Pools["usdc-usdt"].TokenA.Reserve)
	assert.Equal(t, state.AmpFactor, uint64(100))
	assert.Equal(t, mintOf(t, store, layout.LPMint).Supply, uint64(2_000_000_000))

	wallet, err := store.Get(owner)
	assert.NoError(t, err)
	assert.Equal(t, wallet.Lamports, uint64(1_000_000_000))
	assert.Equal(t, wallet.Owner, solana.SystemProgramID)

	wrapper := dir.Wrappers["wUSDC"]
	assert.Equal(t, wrapper.Multiplier, uint64(1000))
	acc, err = store.Get(wrapper.Wrapper)
	assert.NoError(t, err)
	assert.True(t, acc != nil)
}

func TestApplyGenesisIsIdempotent(t *testing.T) {
	g, _ := testGenesis(t)
	store := openStore(t)

	_, err := config.ApplyGenesis(store, g)
	assert.NoError(t, err)
	_, err = config.ApplyGenesis(store, g)
	assert.NoError(t, err)

	other, _ := testGenesis(t)
	_, err = config.ApplyGenesis(store, other)
	assert.Error(t, err)
}

func TestApplyGenesisRejectsUsedStore(t *testing.T) {
	g, _ := testGenesis(t)
	store := openStore(t)
	if err := store.Put(ledger.ProgramIDFromName("somebody"), ledger.NewAccount(solana.SystemProgramID, 1, 0)); err != nil {
		t.Fatalf("failed to seed store: %v", err)
	}
	_, err := config.ApplyGenesis(store, g)
	assert.Error(t, err)
}

func TestGenesisValidation(t *testing.T) {
	owner := ledger.ProgramIDFromName("owner").String()
	tests := []struct {
		name    string
		genesis string
	}{
		{name: "duplicate mint", genesis: `
[[mints]]
name = "A"
[[mints]]
name = "A"
`},
		{name: "unknown pool mint", genesis: `
[[mints]]
name = "A"
[[pools]]
name = "p"
mint_a = "A"
mint_b = "B"
amp = 10
reserve_a = 1
reserve_b = 1
`},
		{name: "bad fee", genesis: `
[[mints]]
name = "A"
[[mints]]
name = "B"
[[pools]]
name = "p"
mint_a = "A"
mint_b = "B"
amp = 10
trade_fee = "lots"
reserve_a = 1
reserve_b = 1
`},
		{name: "wrapper shrinks decimals", genesis: `
[[mints]]
name = "A"
decimals = 9
[[wrappers]]
underlying = "A"
decimals = 6
`},
		{name: "wrapped balance", genesis: fmt.Sprintf(`
[[mints]]
name = "A"
[[wrappers]]
underlying = "A"
decimals = 3
[[accounts]]
owner = "%s"
mint = "wA"
amount = 1
`, owner)},
		{name: "bad owner", genesis: `
[[mints]]
name = "A"
[[accounts]]
owner = "not-a-key"
mint = "A"
amount = 1
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := config.ParseGenesis([]byte(tt.genesis))
			assert.NoError(t, err)
			_, _, err = g.Build()
			assert.Error(t, err)
		})
	}
}

func TestLoadGenesisFromFileAndURL(t *testing.T) {
	owner := ledger.ProgramIDFromName("owner")
	body := fmt.Sprintf(genesisTemplate, owner)

	path := filepath.Join(t.TempDir(), "genesis.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("failed to write genesis: %v", err)
	}
	fromFile, err := config.LoadGenesis(context.Background(), path)
	assert.NoError(t, err)
	assert.Equal(t, len(fromFile.Pools), 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	fromURL, err := config.LoadGenesis(context.Background(), srv.URL+"/genesis.toml")
	assert.NoError(t, err)

	h1, err := fromFile.Hash()
	assert.NoError(t, err)
	h2, err := fromURL.Hash()
	assert.NoError(t, err)
	assert.Equal(t, h1, h2)
}
