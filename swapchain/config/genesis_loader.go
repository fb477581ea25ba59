package config

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcutil/base58"
	"github.com/gagliardetto/solana-go"
	getter "github.com/hashicorp/go-getter"
	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/ledger"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/token"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/venues/decimalwrapper"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/venues/stableswap"
)

var log zerolog.Logger

func init() {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(output).With().Timestamp().Str("component", "genesis").Logger()
}

const (
	genesisMetaKey = "genesis"
	lpDecimals     = 6
)

var errStoreNotEmpty = errors.New("store is not empty")

// MintAddress is the address of the mint registered under name.
func MintAddress(name string) solana.PublicKey {
	return ledger.ProgramIDFromName("mint:" + name)
}

// PoolAddress is the address of the stable swap pool registered under name.
func PoolAddress(name string) solana.PublicKey {
	return ledger.ProgramIDFromName("pool:" + name)
}

// LPMintName is the mint name of a pool's LP token.
func LPMintName(pool string) string {
	return pool + "-lp"
}

// Directory resolves genesis names to addresses.
type Directory struct {
	Mints    map[string]solana.PublicKey
	Decimals map[string]uint8
	Pools    map[string]*stableswap.Layout
	// Wrappers is keyed by the wrapped mint name.
	Wrappers map[string]*decimalwrapper.Layout
}

// LoadGenesis reads a genesis file. source is a local path or a go-getter
// address such as https://host/genesis.toml or s3::https://bucket/genesis.toml.
func LoadGenesis(ctx context.Context, source string) (*Genesis, error) {
	data, err := fetchGenesis(ctx, source)
	if err != nil {
		return nil, err
	}
	return ParseGenesis(data)
}

func fetchGenesis(ctx context.Context, source string) ([]byte, error) {
	if _, err := os.Stat(source); err == nil {
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("failed to read genesis file: %w", err)
		}
		return data, nil
	}

	dir, err := os.MkdirTemp("", "swapchain-genesis-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create download dir: %w", err)
	}
	defer os.RemoveAll(dir)

	dst := filepath.Join(dir, "genesis.toml")
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()
	client := getter.Client{
		Ctx:  ctx,
		Src:  source,
		Dst:  dst,
		Mode: getter.ClientModeFile,
	}
	log.Info().Str("source", source).Msg("Downloading genesis")
	if err := client.Get(); err != nil {
		return nil, fmt.Errorf("failed to download genesis: %w", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		return nil, fmt.Errorf("failed to read downloaded genesis: %w", err)
	}
	return data, nil
}

// ParseGenesis decodes a toml genesis document.
func ParseGenesis(data []byte) (*Genesis, error) {
	var g Genesis
	if err := toml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("failed to parse genesis: %w", err)
	}
	return &g, nil
}

// Hash identifies the genesis content.
func (g *Genesis) Hash() (string, error) {
	raw, err := toml.Marshal(g)
	if err != nil {
		return "", fmt.Errorf("failed to encode genesis: %w", err)
	}
	sum := sha256.Sum256(raw)
	return base58.Encode(sum[:]), nil
}

type genesisBuilder struct {
	dir      *Directory
	accounts map[solana.PublicKey]*ledger.Account
	// authorities of the mints created directly from [[mints]]
	authorities map[string]solana.PublicKey
	wrapped     map[solana.PublicKey]bool
}

func (b *genesisBuilder) put(key solana.PublicKey, acc *ledger.Account) error {
	if _, ok := b.accounts[key]; ok {
		return fmt.Errorf("address %s is used twice", key)
	}
	b.accounts[key] = acc
	return nil
}

func (b *genesisBuilder) addMint(name string, decimals uint8) (solana.PublicKey, error) {
	if name == "" {
		return solana.PublicKey{}, fmt.Errorf("mint name is required")
	}
	if _, ok := b.dir.Mints[name]; ok {
		return solana.PublicKey{}, fmt.Errorf("mint %q is defined twice", name)
	}
	key := MintAddress(name)
	b.dir.Mints[name] = key
	b.dir.Decimals[name] = decimals
	return key, nil
}

func (b *genesisBuilder) mint(name string) (solana.PublicKey, error) {
	key, ok := b.dir.Mints[name]
	if !ok {
		return solana.PublicKey{}, fmt.Errorf("unknown mint %q", name)
	}
	return key, nil
}

// Build derives every genesis account.
func (g *Genesis) Build() (*Directory, map[solana.PublicKey]*ledger.Account, error) {
	b := &genesisBuilder{
		dir: &Directory{
			Mints:    map[string]solana.PublicKey{},
			Decimals: map[string]uint8{},
			Pools:    map[string]*stableswap.Layout{},
			Wrappers: map[string]*decimalwrapper.Layout{},
		},
		accounts:    map[solana.PublicKey]*ledger.Account{},
		authorities: map[string]solana.PublicKey{},
		wrapped:     map[solana.PublicKey]bool{},
	}

	for _, m := range g.Mints {
		if _, err := b.addMint(m.Name, m.Decimals); err != nil {
			return nil, nil, err
		}
		if m.Authority != "" {
			authority, err := solana.PublicKeyFromBase58(m.Authority)
			if err != nil {
				return nil, nil, fmt.Errorf("mint %q: invalid authority: %w", m.Name, err)
			}
			b.authorities[m.Name] = authority
		}
	}
	for _, w := range g.Wrappers {
		if err := b.buildWrapper(w); err != nil {
			return nil, nil, err
		}
	}
	for _, p := range g.Pools {
		if err := b.buildPool(p); err != nil {
			return nil, nil, err
		}
	}
	if err := b.buildBalances(g.Accounts); err != nil {
		return nil, nil, err
	}
	for _, w := range g.Wallets {
		key, err := solana.PublicKeyFromBase58(w.Pubkey)
		if err != nil {
			return nil, nil, fmt.Errorf("wallet %q: %w", w.Pubkey, err)
		}
		if err := b.put(key, ledger.NewAccount(solana.SystemProgramID, w.Lamports, 0)); err != nil {
			return nil, nil, err
		}
	}
	if err := b.writeMints(g.Mints); err != nil {
		return nil, nil, err
	}
	return b.dir, b.accounts, nil
}

func (b *genesisBuilder) buildWrapper(w GenesisWrapper) error {
	underlying, err := b.mint(w.Underlying)
	if err != nil {
		return fmt.Errorf("wrapper: %w", err)
	}
	name := w.Name
	if name == "" {
		name = "w" + w.Underlying
	}
	wrappedMint, err := b.addMint(name, w.Decimals)
	if err != nil {
		return err
	}
	layout, accounts, err := decimalwrapper.GenesisAccounts(decimalwrapper.ProgramID, underlying, wrappedMint, b.dir.Decimals[w.Underlying], w.Decimals)
	if err != nil {
		return fmt.Errorf("wrapper %q: %w", name, err)
	}
	for key, acc := range accounts {
		if err := b.put(key, acc); err != nil {
			return err
		}
	}
	b.dir.Wrappers[name] = layout
	b.wrapped[wrappedMint] = true
	return nil
}

func (b *genesisBuilder) buildPool(p GenesisPool) error {
	if p.Name == "" {
		return fmt.Errorf("pool name is required")
	}
	if _, ok := b.dir.Pools[p.Name]; ok {
		return fmt.Errorf("pool %q is defined twice", p.Name)
	}
	mintA, err := b.mint(p.MintA)
	if err != nil {
		return fmt.Errorf("pool %q: %w", p.Name, err)
	}
	mintB, err := b.mint(p.MintB)
	if err != nil {
		return fmt.Errorf("pool %q: %w", p.Name, err)
	}
	tradeFee, err := parseFee(p.TradeFee)
	if err != nil {
		return fmt.Errorf("pool %q: trade_fee: %w", p.Name, err)
	}
	withdrawFee, err := parseFee(p.WithdrawFee)
	if err != nil {
		return fmt.Errorf("pool %q: withdraw_fee: %w", p.Name, err)
	}
	fees, err := stableswap.FeesFromDecimal(tradeFee, withdrawFee)
	if err != nil {
		return fmt.Errorf("pool %q: %w", p.Name, err)
	}
	lpMint, err := b.addMint(LPMintName(p.Name), lpDecimals)
	if err != nil {
		return err
	}
	layout, accounts, err := stableswap.GenesisAccounts(stableswap.ProgramID, stableswap.PoolConfig{
		Pool:       PoolAddress(p.Name),
		MintA:      mintA,
		MintB:      mintB,
		LPMint:     lpMint,
		AmpFactor:  p.Amp,
		Fees:       fees,
		ReserveA:   p.ReserveA,
		ReserveB:   p.ReserveB,
		LPDecimals: lpDecimals,
	})
	if err != nil {
		return err
	}
	for key, acc := range accounts {
		if err := b.put(key, acc); err != nil {
			return err
		}
	}
	b.dir.Pools[p.Name] = layout
	return nil
}

func parseFee(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func (b *genesisBuilder) buildBalances(balances []GenesisAccount) error {
	amounts := map[solana.PublicKey]*token.Account{}
	for _, a := range balances {
		owner, err := solana.PublicKeyFromBase58(a.Owner)
		if err != nil {
			return fmt.Errorf("account owner %q: %w", a.Owner, err)
		}
		mint, err := b.mint(a.Mint)
		if err != nil {
			return fmt.Errorf("account of %s: %w", a.Owner, err)
		}
		if b.wrapped[mint] {
			return fmt.Errorf("account of %s: wrapped mint %q can only be obtained by depositing", a.Owner, a.Mint)
		}
		key, _, err := token.AssociatedAddress(owner, mint)
		if err != nil {
			return err
		}
		if acc, ok := amounts[key]; ok {
			if acc.Amount+a.Amount < acc.Amount {
				return fmt.Errorf("account of %s: %q balance overflows", a.Owner, a.Mint)
			}
			acc.Amount += a.Amount
			continue
		}
		amounts[key] = &token.Account{Mint: mint, Owner: owner, Amount: a.Amount, State: token.AccountInitialized}
	}
	for key, acc := range amounts {
		if err := b.put(key, token.NewTokenAccount(*acc)); err != nil {
			return err
		}
	}
	return nil
}

// writeMints creates the plain mints and sets every mint's supply to the sum
// of the balances created above.
func (b *genesisBuilder) writeMints(mints []GenesisMint) error {
	supply := map[solana.PublicKey]uint64{}
	for key, acc := range b.accounts {
		if !acc.Owner.Equals(token.ProgramID) || len(acc.Data) != token.AccountLen {
			continue
		}
		ta, err := token.DecodeAccount(acc.Data)
		if err != nil {
			return fmt.Errorf("failed to decode %s: %w", key, err)
		}
		next := supply[ta.Mint] + ta.Amount
		if next < supply[ta.Mint] {
			return fmt.Errorf("supply of mint %s overflows", ta.Mint)
		}
		supply[ta.Mint] = next
	}

	for _, m := range mints {
		key := b.dir.Mints[m.Name]
		acc := token.NewMintAccount(token.Mint{
			Authority:   b.authorities[m.Name],
			Supply:      supply[key],
			Decimals:    m.Decimals,
			Initialized: true,
		})
		if err := b.put(key, acc); err != nil {
			return err
		}
	}
	// venue mints already exist, only the supply is reconciled
	for name, key := range b.dir.Mints {
		acc := b.accounts[key]
		m, err := token.DecodeMint(acc.Data)
		if err != nil {
			return fmt.Errorf("mint %q: %w", name, err)
		}
		m.Supply = supply[key]
		if err := m.Pack(acc.Data); err != nil {
			return err
		}
	}
	return nil
}

// ApplyGenesis writes g into store. A store that already holds the same
// genesis is left untouched; any other non empty store is rejected.
func ApplyGenesis(store *ledger.Store, g *Genesis) (*Directory, error) {
	dir, accounts, err := g.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build genesis: %w", err)
	}
	hash, err := g.Hash()
	if err != nil {
		return nil, err
	}

	stored, ok, err := store.GetMeta(genesisMetaKey)
	if err != nil {
		return nil, err
	}
	if ok {
		if string(stored) != hash {
			return nil, fmt.Errorf("store was initialised with genesis %s, got %s", stored, hash)
		}
		log.Info().Str("hash", hash).Msg("Genesis already applied")
		return dir, nil
	}

	err = store.ForEach(func(solana.PublicKey, *ledger.Account) error { return errStoreNotEmpty })
	if err != nil {
		return nil, fmt.Errorf("failed to apply genesis: %w", err)
	}
	if err := store.Commit(accounts); err != nil {
		return nil, fmt.Errorf("failed to write genesis accounts: %w", err)
	}
	if err := store.PutMeta(genesisMetaKey, []byte(hash)); err != nil {
		return nil, fmt.Errorf("failed to record genesis: %w", err)
	}
	log.Info().
		Str("hash", hash).
		Int("accounts", len(accounts)).
		Int("pools", len(dir.Pools)).
		Int("wrappers", len(dir.Wrappers)).
		Msg("Genesis applied")
	return dir, nil
}
