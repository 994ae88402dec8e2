package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wali-hu/usdc-burn-listener/internal/config"
	"github.com/wali-hu/usdc-burn-listener/internal/storage"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show the persisted cursor and burn counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		store, err := storage.Open(cfg.Global.DBPath)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		defer store.Close()

		ctx := cmd.Context()
		sig, slot, ok, err := store.GetCursor(ctx, cfg.Solana.Mint)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintf(out, "mint %s: no cursor yet\n", cfg.Solana.Mint)
		} else {
			fmt.Fprintf(out, "mint %s: cursor %s (slot %d)\n", cfg.Solana.Mint, sig, slot)
		}

		burns, err := store.CountBurns(ctx, "")
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "burns recorded: %d\n", burns)
		return nil
	},
}
