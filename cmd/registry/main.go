package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/outofforest/logger"
	"github.com/outofforest/registry"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "registry <listen_port>",
	Short: "Registry mapping shared files to the peers holding them",
	Long: `registry accepts peer connections and answers JOIN, PUBLISH and SEARCH requests.
File contents never pass through the registry, peers fetch them from each other directly.`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runRegistry,
}

func init() {
	rootCmd.Flags().StringVar(&configFile, "config", "", "TOML file with registry configuration")
}

func runRegistry(cmd *cobra.Command, args []string) error {
	port, err := registry.ParsePort(args[0])
	if err != nil {
		return err
	}

	config := registry.DefaultServerConfig()
	if configFile != "" {
		config, err = registry.LoadServerConfig(configFile)
		if err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	ls, err := net.Listen("tcp4", net.JoinHostPort("", strconv.Itoa(int(port))))
	if err != nil {
		return errors.WithStack(err)
	}

	err = registry.RunServer(ctx, ls, config)
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
