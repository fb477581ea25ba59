package stableswap

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/ledger"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/token"
)

// PoolConfig describes a pool to create at genesis.
type PoolConfig struct {
	Pool      solana.PublicKey
	MintA     solana.PublicKey
	MintB     solana.PublicKey
	LPMint    solana.PublicKey
	AmpFactor uint64
	Fees      Fees
	ReserveA  uint64
	ReserveB  uint64
	// LPDecimals defaults to 6.
	LPDecimals uint8
}

// Layout is the set of addresses making up a pool.
type Layout struct {
	Pool      solana.PublicKey
	Authority solana.PublicKey
	Nonce     uint8
	TokenA    PoolToken
	TokenB    PoolToken
	LPMint    solana.PublicKey
	// LPHolder receives the LP supply minted for the initial reserves.
	LPHolder solana.PublicKey
}

// NewLayout derives every address of a pool. Reserves and the initial LP
// holder are associated accounts of the pool authority.
func NewLayout(programID solana.PublicKey, cfg PoolConfig) (*Layout, error) {
	authority, nonce, err := FindAuthority(programID, cfg.Pool)
	if err != nil {
		return nil, fmt.Errorf("failed to derive pool authority: %w", err)
	}
	reserveA, _, err := token.AssociatedAddress(authority, cfg.MintA)
	if err != nil {
		return nil, err
	}
	reserveB, _, err := token.AssociatedAddress(authority, cfg.MintB)
	if err != nil {
		return nil, err
	}
	holder, _, err := token.AssociatedAddress(authority, cfg.LPMint)
	if err != nil {
		return nil, err
	}
	return &Layout{
		Pool:      cfg.Pool,
		Authority: authority,
		Nonce:     nonce,
		TokenA:    PoolToken{Mint: cfg.MintA, Reserve: reserveA},
		TokenB:    PoolToken{Mint: cfg.MintB, Reserve: reserveB},
		LPMint:    cfg.LPMint,
		LPHolder:  holder,
	}, nil
}

// GenesisAccounts builds the pool, its reserves and its LP mint as ledger
// accounts ready to be written into an empty store.
func GenesisAccounts(programID solana.PublicKey, cfg PoolConfig) (*Layout, map[solana.PublicKey]*ledger.Account, error) {
	if cfg.MintA.Equals(cfg.MintB) {
		return nil, nil, fmt.Errorf("pool %s: both sides use mint %s", cfg.Pool, cfg.MintA)
	}
	if cfg.AmpFactor == 0 {
		return nil, nil, fmt.Errorf("pool %s: amp factor must be positive", cfg.Pool)
	}
	layout, err := NewLayout(programID, cfg)
	if err != nil {
		return nil, nil, err
	}
	d, err := ComputeD(cfg.AmpFactor, cfg.ReserveA, cfg.ReserveB)
	if err != nil {
		return nil, nil, fmt.Errorf("pool %s: failed to compute invariant: %w", cfg.Pool, err)
	}
	supply, err := toUint64(d)
	if err != nil {
		return nil, nil, err
	}
	lpDecimals := cfg.LPDecimals
	if lpDecimals == 0 {
		lpDecimals = 6
	}

	pool := Pool{
		IsInitialized: true,
		Nonce:         layout.Nonce,
		AmpFactor:     cfg.AmpFactor,
		TokenA:        layout.TokenA,
		TokenB:        layout.TokenB,
		LPMint:        cfg.LPMint,
		Fees:          cfg.Fees,
	}
	poolAcc := ledger.NewAccount(programID, ledger.MinimumBalance(PoolLen), PoolLen)
	if err := pool.Pack(poolAcc.Data); err != nil {
		return nil, nil, err
	}
	accounts := map[solana.PublicKey]*ledger.Account{
		cfg.Pool: poolAcc,
		layout.TokenA.Reserve: token.NewTokenAccount(token.Account{
			Mint: cfg.MintA, Owner: layout.Authority, Amount: cfg.ReserveA, State: token.AccountInitialized,
		}),
		layout.TokenB.Reserve: token.NewTokenAccount(token.Account{
			Mint: cfg.MintB, Owner: layout.Authority, Amount: cfg.ReserveB, State: token.AccountInitialized,
		}),
		cfg.LPMint: token.NewMintAccount(token.Mint{
			Authority: layout.Authority, Supply: supply, Decimals: lpDecimals, Initialized: true,
		}),
		layout.LPHolder: token.NewTokenAccount(token.Account{
			Mint: cfg.LPMint, Owner: layout.Authority, Amount: supply, State: token.AccountInitialized,
		}),
	}
	return layout, accounts, nil
}

// LoadLayout reads a pool account back into its layout.
func LoadLayout(programID, poolKey solana.PublicKey, acc *ledger.Account) (*Layout, *Pool, error) {
	if acc == nil || !acc.Owner.Equals(programID) {
		return nil, nil, fmt.Errorf("account %s is not a pool", poolKey)
	}
	pool, err := DecodePool(acc.Data)
	if err != nil {
		return nil, nil, err
	}
	authority, err := Authority(programID, poolKey, pool.Nonce)
	if err != nil {
		return nil, nil, err
	}
	holder, _, err := token.AssociatedAddress(authority, pool.LPMint)
	if err != nil {
		return nil, nil, err
	}
	return &Layout{
		Pool:      poolKey,
		Authority: authority,
		Nonce:     pool.Nonce,
		TokenA:    pool.TokenA,
		TokenB:    pool.TokenB,
		LPMint:    pool.LPMint,
		LPHolder:  holder,
	}, pool, nil
}
