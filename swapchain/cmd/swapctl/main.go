package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/client"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/config"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "swapctl").Logger()
}

// globalFlags are shared by every command talking to a node.
type globalFlags struct {
	node    string
	backups []string
	timeout time.Duration
}

func (g *globalFlags) client() (*client.Client, error) {
	cfg := client.DefaultFailoverConfig()
	cfg.Timeout = g.timeout
	// a one-shot command does not need the background health checker
	cfg.HealthCheckInterval = 0
	return client.New(g.node, g.backups, cfg)
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "swapctl <command> [arguments]",
		Short:         "swapctl talks to a swapchaind node.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Example:       "swapctl route plan.toml --keypair owner.json --slippage 0.5",
	}
	defaultNode := os.Getenv("SWAPCHAIN_NODE")
	if defaultNode == "" {
		defaultNode = "http://localhost:8080"
	}
	root.PersistentFlags().StringVar(&g.node, "node", defaultNode, "node URL")
	root.PersistentFlags().StringSliceVar(&g.backups, "backup", nil, "backup node URLs")
	root.PersistentFlags().DurationVar(&g.timeout, "timeout", 30*time.Second, "request timeout")

	root.AddCommand(newKeygenCommand())
	root.AddCommand(newDeriveCommand(g))
	root.AddCommand(newBalanceCommand(g))
	root.AddCommand(newContinuationCommand(g))
	root.AddCommand(newRouteCommand(g))
	return root
}

func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}

// parseMint accepts a base58 address or a genesis mint name.
func parseMint(s string) solana.PublicKey {
	if key, err := solana.PublicKeyFromBase58(s); err == nil {
		return key
	}
	return config.MintAddress(s)
}
