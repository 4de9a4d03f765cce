package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/oshokin/smokewatch/internal/config"
	"github.com/oshokin/smokewatch/internal/service/common"
	"github.com/oshokin/smokewatch/internal/service/watcher"
	"github.com/oshokin/smokewatch/internal/version"
)

var (
	// configPath stores the path to the configuration YAML file.
	configPath string
	// serverAddress overrides the gRPC address derived from the config.
	serverAddress string
	// timeout overrides the per-call timeout.
	timeout time.Duration
	// deviceFilter restricts alarm queries to one device.
	deviceFilter string
	// pollInterval is the watch polling interval.
	pollInterval time.Duration

	// rootCmd is the base command; it only groups the query subcommands.
	rootCmd = &cobra.Command{
		Use:   "smokewatch-ctl",
		Short: "Query a running smokewatch server.",
		Long: `Queries the smokewatch gRPC service and prints the result as JSON.

The server address is taken from --server, or derived from grpc_addr in the
configuration file (wildcard hosts are dialed on loopback).`,
		SilenceUsage: true,
	}

	devicesCmd = &cobra.Command{
		Use:   "devices",
		Short: "List every device record.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return query(cmd, func(ctx context.Context, c *common.Client) (proto.Message, error) {
				return c.ListDevices(ctx)
			})
		},
	}

	deviceCmd = &cobra.Command{
		Use:   "device <id>",
		Short: "Show the record of one device.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return query(cmd, func(ctx context.Context, c *common.Client) (proto.Message, error) {
				return c.GetDevice(ctx, args[0])
			})
		},
	}

	latestCmd = &cobra.Command{
		Use:   "latest",
		Short: "Show the most recently updated device.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return query(cmd, func(ctx context.Context, c *common.Client) (proto.Message, error) {
				return c.LatestDevice(ctx)
			})
		},
	}

	alarmsCmd = &cobra.Command{
		Use:   "alarms",
		Short: "List alarm transitions, newest first.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return query(cmd, func(ctx context.Context, c *common.Client) (proto.Message, error) {
				return c.ListAlarms(ctx, deviceFilter)
			})
		},
	}

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Poll the alarm history and log new transitions.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &watcher.Options{
				ConfigPath:    configPath,
				ServerAddress: serverAddress,
				DeviceID:      deviceFilter,
				PollInterval:  pollInterval,
				Timeout:       timeout,
			}

			return watcher.Run(ctx, options)
		},
	}
)

// query dials the server, runs call and prints its result as indented JSON.
func query(cmd *cobra.Command, call func(ctx context.Context, c *common.Client) (proto.Message, error)) error {
	ctx := cmd.Context()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	address := config.DialAddress(cfg.GRPCAddress)
	if serverAddress != "" {
		address = serverAddress
	}

	callTimeout := cfg.Timeout
	if timeout > 0 {
		callTimeout = timeout
	}

	client, err := common.Dial(ctx, address, common.WithCallTimeout(callTimeout))
	if err != nil {
		return err
	}

	defer func() {
		_ = client.Close()
	}()

	result, err := call(ctx, client)
	if err != nil {
		return err
	}

	data, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))

	return err
}

// Execute runs the smokewatch-ctl CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)
	rootCmd.AddCommand(devicesCmd, deviceCmd, latestCmd, alarmsCmd, watchCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"path to configuration file (default "+config.DefaultConfigFilename+" if present)")
	rootCmd.PersistentFlags().StringVarP(&serverAddress, "server", "s", "", "gRPC server address, e.g. 127.0.0.1:50051")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "per-call timeout, overrides timeout")

	alarmsCmd.Flags().StringVar(&deviceFilter, "device", "", "only show transitions of this device")
	watchCmd.Flags().StringVar(&deviceFilter, "device", "", "only watch transitions of this device")
	watchCmd.Flags().DurationVar(&pollInterval, "interval", watcher.DefaultPollInterval, "polling interval")
}
