package stableswap

import (
	"math/big"
)

const (
	nCoins        = 2
	maxIterations = 256
)

var (
	bigOne   = big.NewInt(1)
	bigTwo   = big.NewInt(2)
	bigThree = big.NewInt(3)
	bigCoins = big.NewInt(nCoins)
)

func u(v uint64) *big.Int {
	return new(big.Int).SetUint64(v)
}

func absDiffLE1(a, b *big.Int) bool {
	d := new(big.Int).Sub(a, b)
	return d.Abs(d).Cmp(bigOne) <= 0
}

// ComputeD solves the stable swap invariant for reserves a and b.
func ComputeD(amp, a, b uint64) (*big.Int, error) {
	sum := new(big.Int).Add(u(a), u(b))
	if sum.Sign() == 0 {
		return new(big.Int), nil
	}
	if a == 0 || b == 0 {
		return nil, ErrCalculationFailure
	}
	leverage := new(big.Int).Mul(u(amp), bigCoins)
	aTimesN := new(big.Int).Mul(u(a), bigCoins)
	bTimesN := new(big.Int).Mul(u(b), bigCoins)

	d := new(big.Int).Set(sum)
	for i := 0; i < maxIterations; i++ {
		dP := new(big.Int).Set(d)
		dP.Mul(dP, d).Quo(dP, aTimesN)
		dP.Mul(dP, d).Quo(dP, bTimesN)
		prev := new(big.Int).Set(d)

		// d = (leverage*sum + dP*n) * d / ((leverage-1)*d + (n+1)*dP)
		num := new(big.Int).Mul(leverage, sum)
		num.Add(num, new(big.Int).Mul(dP, bigCoins))
		num.Mul(num, d)
		den := new(big.Int).Sub(leverage, bigOne)
		den.Mul(den, d)
		den.Add(den, new(big.Int).Mul(dP, bigThree))
		if den.Sign() == 0 {
			return nil, ErrCalculationFailure
		}
		d = num.Quo(num, den)
		if absDiffLE1(d, prev) {
			return d, nil
		}
	}
	return nil, ErrCalculationFailure
}

// ComputeY returns the balance of the other token that keeps invariant d when
// one side holds x.
func ComputeY(amp uint64, x, d *big.Int) (*big.Int, error) {
	if x.Sign() == 0 {
		return nil, ErrCalculationFailure
	}
	ann := new(big.Int).Mul(u(amp), bigCoins)
	if ann.Sign() == 0 {
		return nil, ErrCalculationFailure
	}
	c := new(big.Int).Set(d)
	c.Mul(c, d).Quo(c, new(big.Int).Mul(x, bigCoins))
	c.Mul(c, d).Quo(c, new(big.Int).Mul(ann, bigCoins))
	b := new(big.Int).Quo(d, ann)
	b.Add(b, x)

	y := new(big.Int).Set(d)
	for i := 0; i < maxIterations; i++ {
		prev := new(big.Int).Set(y)
		// y = (y*y + c) / (2y + b - d)
		num := new(big.Int).Mul(y, y)
		num.Add(num, c)
		den := new(big.Int).Mul(y, bigTwo)
		den.Add(den, b)
		den.Sub(den, d)
		if den.Sign() <= 0 {
			return nil, ErrCalculationFailure
		}
		y = num.Quo(num, den)
		if absDiffLE1(y, prev) {
			return y, nil
		}
	}
	return nil, ErrCalculationFailure
}

func toUint64(v *big.Int) (uint64, error) {
	if v.Sign() < 0 || !v.IsUint64() {
		return 0, ErrCalculationFailure
	}
	return v.Uint64(), nil
}

// SwapResult is the outcome of a quoted swap.
type SwapResult struct {
	AmountOut uint64
	Fee       uint64
}

// QuoteSwap prices amountIn against the given reserves.
func (p *Pool) QuoteSwap(reserveIn, reserveOut, amountIn uint64) (SwapResult, error) {
	d, err := ComputeD(p.AmpFactor, reserveIn, reserveOut)
	if err != nil {
		return SwapResult{}, err
	}
	newX := new(big.Int).Add(u(reserveIn), u(amountIn))
	newY, err := ComputeY(p.AmpFactor, newX, d)
	if err != nil {
		return SwapResult{}, err
	}
	out := new(big.Int).Sub(u(reserveOut), newY)
	if out.Sign() <= 0 {
		return SwapResult{}, nil
	}
	dy, err := toUint64(out)
	if err != nil {
		return SwapResult{}, err
	}
	fee := p.Fees.TradeFee(dy)
	return SwapResult{AmountOut: dy - fee, Fee: fee}, nil
}

// QuoteDeposit returns the LP tokens minted for depositing amountA and amountB.
func (p *Pool) QuoteDeposit(reserveA, reserveB, amountA, amountB, lpSupply uint64) (uint64, error) {
	newA, newB := reserveA+amountA, reserveB+amountB
	if newA < reserveA || newB < reserveB {
		return 0, ErrCalculationFailure
	}
	d1, err := ComputeD(p.AmpFactor, newA, newB)
	if err != nil {
		return 0, err
	}
	if lpSupply == 0 {
		return toUint64(d1)
	}
	d0, err := ComputeD(p.AmpFactor, reserveA, reserveB)
	if err != nil {
		return 0, err
	}
	if d1.Cmp(d0) <= 0 {
		return 0, ErrCalculationFailure
	}

	// Imbalanced deposits pay half the trade fee on the distance from the ideal balance.
	adjusted := make([]uint64, 2)
	for i, pair := range [][2]uint64{{reserveA, newA}, {reserveB, newB}} {
		ideal := new(big.Int).Mul(d1, u(pair[0]))
		ideal.Quo(ideal, d0)
		diff := new(big.Int).Sub(ideal, u(pair[1]))
		diff.Abs(diff)
		diffU, err := toUint64(diff)
		if err != nil {
			return 0, err
		}
		fee := p.Fees.TradeFee(diffU) / 2
		if fee > pair[1] {
			return 0, ErrCalculationFailure
		}
		adjusted[i] = pair[1] - fee
	}
	d2, err := ComputeD(p.AmpFactor, adjusted[0], adjusted[1])
	if err != nil {
		return 0, err
	}
	if d2.Cmp(d0) <= 0 {
		return 0, nil
	}
	minted := new(big.Int).Sub(d2, d0)
	minted.Mul(minted, u(lpSupply)).Quo(minted, d0)
	return toUint64(minted)
}

// QuoteWithdrawOne returns the amount of the base token paid for burning
// lpAmount, and the fee kept by the pool.
func (p *Pool) QuoteWithdrawOne(baseReserve, quoteReserve, lpAmount, lpSupply uint64) (uint64, uint64, error) {
	if lpSupply == 0 || lpAmount > lpSupply {
		return 0, 0, ErrCalculationFailure
	}
	d0, err := ComputeD(p.AmpFactor, baseReserve, quoteReserve)
	if err != nil {
		return 0, 0, err
	}
	burned := new(big.Int).Mul(u(lpAmount), d0)
	burned.Quo(burned, u(lpSupply))
	d1 := new(big.Int).Sub(d0, burned)
	newY, err := ComputeY(p.AmpFactor, u(quoteReserve), d1)
	if err != nil {
		return 0, 0, err
	}
	dy := new(big.Int).Sub(u(baseReserve), newY)
	if dy.Sign() <= 0 {
		return 0, 0, nil
	}
	dyU, err := toUint64(dy)
	if err != nil {
		return 0, 0, err
	}
	tradeFee := p.Fees.TradeFee(dyU) / 2
	afterTrade := dyU - tradeFee
	withdrawFee := p.Fees.WithdrawFee(afterTrade)
	return afterTrade - withdrawFee, tradeFee + withdrawFee, nil
}
