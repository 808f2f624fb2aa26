package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/outofforest/logger"
	"github.com/outofforest/parallel"
	"github.com/outofforest/registry"
)

var (
	sharedDir   string
	downloadDir string
	serve       bool
)

var rootCmd = &cobra.Command{
	Use:   "peer <registry_host> <registry_port> <peer_id>",
	Short: "Peer sharing files through the registry",
	Long: `peer connects to the registry and reads commands from the standard input:
  JOIN     announces peer ID
  PUBLISH  publishes files stored in the shared directory
  SEARCH   looks up the peer holding the file
  FETCH    downloads the file from the peer holding it
  EXIT     quits
Commands are case-insensitive.`,
	Args:         cobra.ExactArgs(3),
	SilenceUsage: true,
	RunE:         runPeer,
}

func init() {
	rootCmd.Flags().StringVar(&sharedDir, "shared", "SharedFiles", "Directory with files shared with other peers")
	rootCmd.Flags().StringVar(&downloadDir, "downloads", ".", "Directory where fetched files are stored")
	rootCmd.Flags().BoolVar(&serve, "serve", true, "Serve shared files to other peers on the address advertised by the registry")
}

func runPeer(cmd *cobra.Command, args []string) error {
	if _, err := registry.ParsePort(args[1]); err != nil {
		return err
	}
	peerID, err := registry.ParsePeerID(args[2])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	config := registry.ClientConfig{
		PeerID:      peerID,
		Registry:    net.JoinHostPort(args[0], args[1]),
		DownloadDir: downloadDir,
	}

	var ls net.Listener
	if serve {
		ls, err = registry.ListenShared(ctx, ":0")
		if err != nil {
			return err
		}
		config.LocalAddr = ls.Addr().String()
	}

	client, err := registry.Dial(ctx, config)
	if err != nil {
		if ls != nil {
			_ = ls.Close()
		}
		return err
	}
	defer client.Close()

	p := &prompt{
		client:    client,
		sharedDir: sharedDir,
		in:        readLines(os.Stdin),
		out:       os.Stdout,
	}

	err = parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("prompt", parallel.Exit, p.run)
		if ls != nil {
			spawn("fileServer", parallel.Fail, func(ctx context.Context) error {
				return registry.RunFileServer(ctx, ls, sharedDir)
			})
		}
		return nil
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ctx = logger.WithLogger(ctx, logger.New(logger.DefaultConfig))
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}
