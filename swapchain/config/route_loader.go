package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// RoutePlan is a chain written by hand. Records are the owner's associated
// records of the named mints; hops run in the order listed.
//
//	from = "usdc"
//	to = "wusdt"
//	amount_in = 1000000
//
//	[[hops]]
//	action = "SSSwap"
//	pool = "usdc-usdt"
//
//	[[hops]]
//	action = "ADDeposit"
//	wrapper = "wusdt"
type RoutePlan struct {
	From             string     `toml:"from"`
	To               string     `toml:"to"`
	AmountIn         uint64     `toml:"amount_in"`
	MinimumAmountOut uint64     `toml:"minimum_amount_out"`
	BeginV2          bool       `toml:"begin_v2"`
	Hops             []RouteHop `toml:"hops"`
}

// RouteHop names one step. Pool is required by SS actions, Wrapper (the
// wrapped mint name) by AD actions. Mint picks the side SSWithdrawOne pays.
type RouteHop struct {
	Action  string `toml:"action"`
	Pool    string `toml:"pool,omitempty"`
	Wrapper string `toml:"wrapper,omitempty"`
	Mint    string `toml:"mint,omitempty"`
}

// LoadRoutePlan reads a route plan from a .toml file.
func LoadRoutePlan(path string) (*RoutePlan, error) {
	if filepath.Ext(path) != ".toml" {
		return nil, fmt.Errorf("route plan must be a .toml file")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read route plan: %w", err)
	}
	return ParseRoutePlan(data)
}

func ParseRoutePlan(data []byte) (*RoutePlan, error) {
	var plan RoutePlan
	if err := toml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("failed to parse route plan: %w", err)
	}
	if err := plan.validate(); err != nil {
		return nil, err
	}
	return &plan, nil
}

func (p *RoutePlan) validate() error {
	switch {
	case p.From == "":
		return fmt.Errorf("route plan: from is required")
	case p.To == "":
		return fmt.Errorf("route plan: to is required")
	case p.AmountIn == 0:
		return fmt.Errorf("route plan: amount_in must be positive")
	case len(p.Hops) == 0:
		return fmt.Errorf("route plan: at least one hop is required")
	}
	for i, h := range p.Hops {
		switch h.Action {
		case "SSSwap", "SSDepositA", "SSDepositB":
			if h.Pool == "" {
				return fmt.Errorf("route plan: hop %d (%s) needs a pool", i, h.Action)
			}
		case "SSWithdrawOne":
			if h.Pool == "" || h.Mint == "" {
				return fmt.Errorf("route plan: hop %d (%s) needs a pool and a mint", i, h.Action)
			}
		case "ADWithdraw", "ADDeposit":
			if h.Wrapper == "" {
				return fmt.Errorf("route plan: hop %d (%s) needs a wrapper", i, h.Action)
			}
		default:
			return fmt.Errorf("route plan: hop %d has unknown action %q", i, h.Action)
		}
	}
	return nil
}
