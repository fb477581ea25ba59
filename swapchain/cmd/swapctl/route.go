package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/client"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/config"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/models"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/router"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/venues"
)

type routeFlags struct {
	keypair  string
	simulate bool
	slippage string
	routerID string
}

func newRouteCommand(g *globalFlags) *cobra.Command {
	f := &routeFlags{}
	cmd := &cobra.Command{
		Use:   "route <plan.toml>",
		Short: "run a chain from a route plan.",
		Long: "route resolves the pools and wrappers named in the plan, builds Begin, " +
			"the hops and End, signs them with the keypair and submits the unit. " +
			"Without minimum_amount_out in the plan, --slippage derives the floor from a simulation.",
		Example: "swapctl route plan.toml --keypair owner.json --slippage 0.5",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := config.LoadRoutePlan(args[0])
			if err != nil {
				return err
			}
			c, err := g.client()
			if err != nil {
				return err
			}
			defer c.Close()
			resp, err := runRoute(cmd.Context(), c, plan, f)
			if err != nil {
				return err
			}
			if err := printJSON(cmd, resp); err != nil {
				return err
			}
			if !resp.Success {
				return fmt.Errorf("chain failed with %s", resp.ErrorName)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&f.keypair, "keypair", "k", "keypair.json", "owner keypair file")
	cmd.Flags().BoolVar(&f.simulate, "simulate", false, "simulate without committing")
	cmd.Flags().StringVar(&f.slippage, "slippage", "", "slippage tolerance in percent, e.g. 0.5")
	cmd.Flags().StringVar(&f.routerID, "router", router.ProgramID.String(), "router program address")
	return cmd
}

func runRoute(ctx context.Context, c *client.Client, plan *config.RoutePlan, f *routeFlags) (*models.TransactionResponse, error) {
	owner, err := readKeypair(f.keypair)
	if err != nil {
		return nil, err
	}
	routerID, err := solana.PublicKeyFromBase58(f.routerID)
	if err != nil {
		return nil, fmt.Errorf("invalid router address: %w", err)
	}
	route, err := client.ResolveRoute(ctx, c, routerID, owner.PublicKey(), plan)
	if err != nil {
		return nil, err
	}

	keys := []solana.PrivateKey{owner}
	if plan.BeginV2 {
		continuation, err := solana.NewRandomPrivateKey()
		if err != nil {
			return nil, fmt.Errorf("failed to generate continuation key: %w", err)
		}
		route.Builder.UseBeginV2(continuation.PublicKey())
		keys = append(keys, continuation)
	}
	random := solana.NewWallet().PublicKey()
	nonce := uint64(time.Now().UnixNano())

	if plan.MinimumAmountOut == 0 && f.slippage != "" {
		floor, err := quoteFloor(ctx, c, route, f.slippage, nonce, random, keys)
		if err != nil {
			return nil, err
		}
		route.Builder.To(route.Output, floor)
		log.Info().Uint64("minimum_amount_out", floor).Msg("Floor set from simulation")
	}

	tx, built, err := route.Transaction(nonce, random, keys...)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("continuation", built.Continuation.String()).
		Int("instructions", len(tx.Instructions)).
		Bool("simulate", f.simulate).
		Msg("Sending chain")
	if f.simulate {
		return c.SimulateTransaction(ctx, tx)
	}
	return c.SubmitTransaction(ctx, tx)
}

// quoteFloor simulates the chain with no floor and applies slippage to the
// reported amount_out.
func quoteFloor(ctx context.Context, c *client.Client, route *client.Route, slippage string, nonce uint64, random solana.PublicKey, keys []solana.PrivateKey) (uint64, error) {
	bps, err := venues.ParseSlippage(slippage)
	if err != nil {
		return 0, err
	}
	route.Builder.To(route.Output, 0)
	tx, _, err := route.Transaction(nonce, random, keys...)
	if err != nil {
		return 0, err
	}
	sim, err := c.SimulateTransaction(ctx, tx)
	if err != nil {
		return 0, err
	}
	if !sim.Success {
		return 0, fmt.Errorf("simulation failed with %s: %s", sim.ErrorName, sim.Error)
	}
	expected, ok := client.CompletedAmount(sim)
	if !ok {
		return 0, fmt.Errorf("simulation reported no completed chain")
	}
	return venues.CalculateMinOutput(expected, bps)
}
