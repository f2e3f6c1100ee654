package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taisirhassan/cipherstream/internal/domain"
)

func sendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <peer-id> <file-path>",
		Short: "Send a file to a connected peer",
		Args:  cobra.ExactArgs(2),
		RunE:  runSend,
	}
	return cmd
}

func runSend(cmd *cobra.Command, args []string) error {
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

	peerID, path := args[0], args[1]
	if _, err := n.engine.RegisterFile(ctx, path); err != nil {
		return fmt.Errorf("register file: %w", err)
	}

	terminal := make(chan domain.Event, 1)
	n.bus.Subscribe(func(ev domain.Event) error {
		if ev.Type == domain.EventTransferComplete || ev.Type == domain.EventTransferFailed {
			select {
			case terminal <- ev:
			default:
			}
		}
		return nil
	})

	transferID, err := n.engine.SendFileRequest(ctx, peerID, path)
	if err != nil {
		return fmt.Errorf("send file request: %w", err)
	}
	fmt.Printf("transfer %s started to %s\n", transferID, peerID)

	select {
	case ev := <-terminal:
		if ev.Type == domain.EventTransferFailed {
			return fmt.Errorf("transfer failed: %s", ev.Reason)
		}
		fmt.Println("transfer completed")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
