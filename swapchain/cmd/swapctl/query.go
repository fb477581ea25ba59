package main

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/router"
)

func newDeriveCommand(g *globalFlags) *cobra.Command {
	var owner, random string
	var offline bool
	cmd := &cobra.Command{
		Use:     "derive",
		Short:   "derive the continuation address of an owner and a random key.",
		Example: "swapctl derive --owner <pubkey> --random <pubkey>",
		RunE: func(cmd *cobra.Command, args []string) error {
			ownerKey, err := solana.PublicKeyFromBase58(owner)
			if err != nil {
				return fmt.Errorf("invalid owner: %w", err)
			}
			randomKey, err := solana.PublicKeyFromBase58(random)
			if err != nil {
				return fmt.Errorf("invalid random: %w", err)
			}
			if offline {
				key, nonce, err := router.DeriveContinuation(router.ProgramID, ownerKey, randomKey)
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]any{"address": key.String(), "nonce": nonce})
			}
			c, err := g.client()
			if err != nil {
				return err
			}
			defer c.Close()
			resp, err := c.DeriveContinuation(cmd.Context(), ownerKey, randomKey)
			if err != nil {
				return err
			}
			return printJSON(cmd, resp)
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owner pubkey")
	cmd.Flags().StringVar(&random, "random", "", "random pubkey")
	cmd.Flags().BoolVar(&offline, "offline", false, "derive locally with the default router address")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("random")
	return cmd
}

func newBalanceCommand(g *globalFlags) *cobra.Command {
	var owner, mint string
	cmd := &cobra.Command{
		Use:     "balance",
		Short:   "print the owner's balance of a mint.",
		Example: "swapctl balance --owner <pubkey> --mint USDC",
		RunE: func(cmd *cobra.Command, args []string) error {
			ownerKey, err := solana.PublicKeyFromBase58(owner)
			if err != nil {
				return fmt.Errorf("invalid owner: %w", err)
			}
			c, err := g.client()
			if err != nil {
				return err
			}
			defer c.Close()
			resp, err := c.GetTokenBalance(cmd.Context(), ownerKey, parseMint(mint))
			if err != nil {
				return err
			}
			return printJSON(cmd, resp)
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owner pubkey")
	cmd.Flags().StringVar(&mint, "mint", "", "mint address or genesis name")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("mint")
	return cmd
}

func newContinuationCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "continuation <address>",
		Short:   "print an open continuation.",
		Example: "swapctl continuation <address>",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := solana.PublicKeyFromBase58(args[0])
			if err != nil {
				return fmt.Errorf("invalid address: %w", err)
			}
			c, err := g.client()
			if err != nil {
				return err
			}
			defer c.Close()
			resp, err := c.GetContinuation(cmd.Context(), key)
			if err != nil {
				return err
			}
			return printJSON(cmd, resp)
		},
	}
}
