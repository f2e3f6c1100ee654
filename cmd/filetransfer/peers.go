package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func peersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "peers",
		Short: "List known peers and their connection state",
		RunE:  runPeers,
	}
}

func runPeers(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	n, err := newNode(ctx)
	if err != nil {
		return err
	}
	defer n.close()

	peers, err := n.repos.Peers.ListAll()
	if err != nil {
		return fmt.Errorf("list peers: %w", err)
	}
	if len(peers) == 0 {
		fmt.Println("no known peers")
		return nil
	}
	for _, p := range peers {
		state := "disconnected"
		if p.Connected {
			state = "connected"
		}
		fmt.Printf("%s\t%s\t%s\n", p.ID, state, p.LastSeen.Format("2006-01-02T15:04:05Z07:00"))
	}
	return nil
}
