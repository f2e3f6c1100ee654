// Command filetransfer is the reference CLI for the cipherstream file
// transfer core, grounded in the teacher's cmd/node/main.go layout: a
// single root cobra.Command with each subcommand's flags/RunE built by a
// small constructor function, no viper layer since a plain --config path
// plus config.Load already covers this CLI's needs.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	root := &cobra.Command{
		Use:   "filetransfer",
		Short: "Peer-to-peer encrypted file transfer over libp2p",
		Long: `filetransfer runs a node that can listen for inbound connections,
connect to peers, and send files over an authenticated, chunked transfer
protocol.`,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file")

	root.AddCommand(startCmd())
	root.AddCommand(sendCmd())
	root.AddCommand(connectCmd())
	root.AddCommand(peersCmd())
	root.AddCommand(discoverCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
