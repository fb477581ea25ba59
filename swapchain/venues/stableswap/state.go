package stableswap

import (
	"bytes"
	"fmt"
	"math/big"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/ledger"
)

// PoolLen is the encoded size of a Pool.
const PoolLen = 1 + 1 + 8 + 2*(32+32) + 32 + 4*8

// feeDenominator is the denominator fees are stored with.
const feeDenominator = 10_000_000_000

// Fees are rational fractions applied to swap output and withdrawals.
type Fees struct {
	TradeFeeNumerator      uint64
	TradeFeeDenominator    uint64
	WithdrawFeeNumerator   uint64
	WithdrawFeeDenominator uint64
}

// FeesFromDecimal converts fractional fees such as 0.0004 into stored form.
func FeesFromDecimal(trade, withdraw decimal.Decimal) (Fees, error) {
	if trade.IsNegative() || trade.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return Fees{}, fmt.Errorf("trade fee %s out of range [0, 1)", trade)
	}
	if withdraw.IsNegative() || withdraw.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return Fees{}, fmt.Errorf("withdraw fee %s out of range [0, 1)", withdraw)
	}
	return Fees{
		TradeFeeNumerator:      uint64(trade.Shift(10).IntPart()),
		TradeFeeDenominator:    feeDenominator,
		WithdrawFeeNumerator:   uint64(withdraw.Shift(10).IntPart()),
		WithdrawFeeDenominator: feeDenominator,
	}, nil
}

func decimalOf(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}

func applyFee(amount, numerator, denominator uint64) uint64 {
	if numerator == 0 || denominator == 0 {
		return 0
	}
	fee := decimalOf(amount).Mul(decimalOf(numerator)).Div(decimalOf(denominator)).Floor()
	return fee.BigInt().Uint64()
}

// TradeFee is the fee charged on amount of swap output.
func (f Fees) TradeFee(amount uint64) uint64 {
	return applyFee(amount, f.TradeFeeNumerator, f.TradeFeeDenominator)
}

// WithdrawFee is the fee charged on amount withdrawn.
func (f Fees) WithdrawFee(amount uint64) uint64 {
	return applyFee(amount, f.WithdrawFeeNumerator, f.WithdrawFeeDenominator)
}

// TradeFeeRate returns the trade fee as a fraction.
func (f Fees) TradeFeeRate() decimal.Decimal {
	if f.TradeFeeDenominator == 0 {
		return decimal.Zero
	}
	return decimalOf(f.TradeFeeNumerator).Div(decimalOf(f.TradeFeeDenominator))
}

// PoolToken is one side of a pool.
type PoolToken struct {
	Mint    solana.PublicKey
	Reserve solana.PublicKey
}

// Pool is the state of a two asset stable swap pool.
type Pool struct {
	IsInitialized bool
	Nonce         uint8
	AmpFactor     uint64
	TokenA        PoolToken
	TokenB        PoolToken
	LPMint        solana.PublicKey
	Fees          Fees
}

func (p *Pool) Pack(dst []byte) error {
	if len(dst) < PoolLen {
		return ledger.ErrAccountDataTooSmall
	}
	buf := bytes.NewBuffer(make([]byte, 0, PoolLen))
	if err := bin.NewBorshEncoder(buf).Encode(p); err != nil {
		return fmt.Errorf("failed to encode pool: %w", err)
	}
	copy(dst, buf.Bytes())
	return nil
}

func DecodePool(data []byte) (*Pool, error) {
	if len(data) < PoolLen {
		return nil, ledger.ErrAccountDataTooSmall
	}
	var p Pool
	if err := bin.NewBorshDecoder(data[:PoolLen]).Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to decode pool: %w", err)
	}
	return &p, nil
}

// Side returns the token matching reserve and the opposite token.
func (p *Pool) Side(reserve solana.PublicKey) (this, other PoolToken, ok bool) {
	switch {
	case reserve.Equals(p.TokenA.Reserve):
		return p.TokenA, p.TokenB, true
	case reserve.Equals(p.TokenB.Reserve):
		return p.TokenB, p.TokenA, true
	default:
		return PoolToken{}, PoolToken{}, false
	}
}

// Authority derives the pool authority that owns the reserves and the LP mint.
func Authority(programID, pool solana.PublicKey, nonce uint8) (solana.PublicKey, error) {
	return ledger.CreateProgramAddress(authoritySeeds(pool, nonce), programID)
}

// FindAuthority searches for the pool authority and its nonce.
func FindAuthority(programID, pool solana.PublicKey) (solana.PublicKey, uint8, error) {
	return ledger.FindProgramAddress([][]byte{pool[:]}, programID)
}

func authoritySeeds(pool solana.PublicKey, nonce uint8) [][]byte {
	return [][]byte{pool[:], {nonce}}
}
