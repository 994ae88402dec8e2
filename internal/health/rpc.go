package health

import (
	"context"
	"fmt"
)

// Pinger is anything that can verify upstream connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RPCChecker reports the Solana RPC endpoint's reachability.
type RPCChecker struct {
	client Pinger
}

// NewRPCChecker creates a checker over the RPC client.
func NewRPCChecker(client Pinger) *RPCChecker {
	return &RPCChecker{client: client}
}

// Ping checks the configured RPC endpoint.
func (c *RPCChecker) Ping(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	if err := c.client.Ping(ctx); err != nil {
		return fmt.Errorf("solana rpc: %w", err)
	}
	return nil
}
