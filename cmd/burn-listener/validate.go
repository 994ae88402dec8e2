package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/wali-hu/usdc-burn-listener/internal/config"
)

const defaultHTTPTimeout = 8 * time.Second

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate config and ping the RPC endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("config invalid: %w", err)
		}
		fmt.Fprintf(out, "config OK (version %d)\n", cfg.Version)
		fmt.Fprintf(out, "mint %s\n", cfg.Solana.Mint)

		client := &http.Client{Timeout: defaultHTTPTimeout}
		version, err := pingSolana(cmd.Context(), client, cfg.Solana.RPCURL)
		if err != nil {
			fmt.Fprintf(out, "- rpc %s: ERROR %v\n", cfg.Solana.RPCURL, err)
			return fmt.Errorf("validate: rpc endpoint unreachable")
		}
		fmt.Fprintf(out, "- rpc %s: solana-core %s OK\n", cfg.Solana.RPCURL, version)

		fmt.Fprintln(out, "validate: success")
		return nil
	},
}

func pingSolana(ctx context.Context, client *http.Client, url string) (string, error) {
	payload := map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "getVersion",
		"params":  []any{},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call getVersion: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("rpc status %d", resp.StatusCode)
	}

	var rpcResp struct {
		Result struct {
			SolanaCore string `json:"solana-core"`
		} `json:"result"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return "", fmt.Errorf("decode rpc response: %w", err)
	}

	if rpcResp.Error != nil {
		return "", fmt.Errorf("rpc error: %s", rpcResp.Error.Message)
	}
	if rpcResp.Result.SolanaCore == "" {
		return "", fmt.Errorf("empty getVersion result")
	}

	return rpcResp.Result.SolanaCore, nil
}
