package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func connectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connect <multiaddr>",
		Short: "Dial a peer at the given multiaddr",
		Args:  cobra.ExactArgs(1),
		RunE:  runConnect,
	}
}

func runConnect(cmd *cobra.Command, args []string) error {
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

	if err := n.engine.ConnectToPeer(ctx, args[0]); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	fmt.Println("connected")
	return nil
}
