package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func startCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start listening for inbound connections and transfers",
		RunE:  runStart,
	}

	cmd.Flags().Int("port", 0, "port to listen on (0 uses the config default)")
	cmd.Flags().StringSlice("bootstrap", nil, "bootstrap peer multiaddrs")

	return cmd
}

func runStart(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n, err := newNode(ctx)
	if err != nil {
		return err
	}
	defer n.close()

	port := n.cfg.DefaultPort
	if p, _ := cmd.Flags().GetInt("port"); p != 0 {
		port = p
	}

	runDone := make(chan error, 1)
	go func() { runDone <- n.engine.Run(ctx) }()

	addr, err := n.engine.StartListening(ctx, port)
	if err != nil {
		cancel()
		<-runDone
		return err
	}
	n.log.Info().Str("address", addr).Msg("listening")

	if bootstrap, _ := cmd.Flags().GetStringSlice("bootstrap"); len(bootstrap) > 0 {
		if err := n.engine.BootstrapRouting(ctx, bootstrap); err != nil {
			n.log.Warn().Err(err).Msg("bootstrap routing")
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		n.log.Info().Msg("shutting down")
	case err := <-runDone:
		return err
	}

	cancel()
	<-runDone
	return nil
}
