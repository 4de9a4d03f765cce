package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/smokewatch/internal/config"
	"github.com/oshokin/smokewatch/internal/service/server"
	"github.com/oshokin/smokewatch/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// httpAddress overrides the HTTP listen address.
	httpAddress string
	// grpcAddress overrides the gRPC listen address.
	grpcAddress string
	// allowMultiple disables the single-instance check.
	allowMultiple bool

	// rootCmd represents the base command for running the server.
	rootCmd = &cobra.Command{
		Use:   "smokewatch-server",
		Short: "Ingest smoke telemetry and serve device state and alarm history.",
		Long: `Starts the smokewatch server.

Devices push telemetry over HTTP (POST /api/data or /api/telemetry) or publish it to an
MQTT broker when mqtt.broker_url is configured. The server keeps the latest record of each
device and a bounded newest-first log of alarm transitions, both in memory only.

State is queried over HTTP, the gRPC query service and the /ws live stream.
Settings are read from the configuration file; every key can be overridden with a
SMOKEWATCH_<KEY> environment variable.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &server.Options{
				ConfigPath:    configPath,
				HTTPAddress:   httpAddress,
				GRPCAddress:   grpcAddress,
				AllowMultiple: allowMultiple,
			}

			return server.Run(ctx, options)
		},
	}

	// initConfigCmd writes a settings file filled with defaults.
	initConfigCmd = &cobra.Command{
		Use:   "init-config [path]",
		Short: "Write a default settings file.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultConfigFilename
			if len(args) > 0 {
				path = args[0]
			}

			if err := config.Save(path, config.Default()); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Settings written to %s\n", path)

			return nil
		},
	}
)

// Execute runs the smokewatch-server CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)
	rootCmd.AddCommand(initConfigCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "",
		"path to configuration file (default "+config.DefaultConfigFilename+" if present)")
	rootCmd.Flags().StringVar(&httpAddress, "http-addr", "", "HTTP listen address, overrides http_addr")
	rootCmd.Flags().StringVar(&grpcAddress, "grpc-addr", "", "gRPC listen address, overrides grpc_addr")
	rootCmd.Flags().BoolVar(&allowMultiple, "allow-multiple", false, "skip the single-instance check")
}
