package venues

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// MaxSlippageBps is 100%.
const MaxSlippageBps = 10000

// CalculateMinOutput applies a slippage tolerance to an expected output.
// slippageBps is basis points (e.g., 100 = 1%)
// minOutput = floor(expected * (10000 - slippageBps) / 10000)
func CalculateMinOutput(expectedOutput uint64, slippageBps uint32) (uint64, error) {
	if slippageBps > MaxSlippageBps {
		return 0, fmt.Errorf("slippage of %d bps exceeds %d", slippageBps, MaxSlippageBps)
	}
	expected := decimal.NewFromBigInt(new(big.Int).SetUint64(expectedOutput), 0)
	keep := decimal.NewFromInt(int64(MaxSlippageBps - slippageBps))
	minOutput := expected.Mul(keep).Div(decimal.NewFromInt(MaxSlippageBps)).Floor()
	return minOutput.BigInt().Uint64(), nil
}

// ParseSlippage reads a percentage such as "0.5" into basis points.
func ParseSlippage(percent string) (uint32, error) {
	d, err := decimal.NewFromString(percent)
	if err != nil {
		return 0, fmt.Errorf("failed to parse slippage %q: %w", percent, err)
	}
	if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(100)) {
		return 0, fmt.Errorf("slippage %s%% out of range", percent)
	}
	return uint32(d.Mul(decimal.NewFromInt(100)).Round(0).IntPart()), nil
}
