package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func discoverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discover <peer-id>",
		Short: "Query the routing table for peers closest to peer-id",
		Args:  cobra.ExactArgs(1),
		RunE:  runDiscover,
	}
}

func runDiscover(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	n, err := newNode(ctx)
	if err != nil {
		return err
	}
	defer n.close()

	go func() { _ = n.engine.Run(ctx) }()

	if _, err := n.engine.StartListening(ctx, n.cfg.DefaultPort); err != nil {
		return fmt.Errorf("start listening: %w", err)
	}

	closest, err := n.engine.FindClosestPeers(ctx, args[0])
	if err != nil {
		return fmt.Errorf("find closest peers: %w", err)
	}
	for _, p := range closest {
		fmt.Println(p)
	}
	return nil
}
