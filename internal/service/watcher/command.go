package watcher

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/smokewatch/internal/config"
	"github.com/oshokin/smokewatch/internal/logger"
	"github.com/oshokin/smokewatch/internal/service/common"
)

// Options controls the watcher polling behavior and configuration.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// ServerAddress provides an optional gRPC server address override.
	ServerAddress string
	// DeviceID restricts the watch to one device when set.
	DeviceID string
	// PollInterval defines the interval between history checks.
	PollInterval time.Duration
	// Timeout specifies the per-RPC timeout duration.
	Timeout time.Duration
}

// DefaultPollInterval defines the polling interval when none is given.
const DefaultPollInterval = 5 * time.Second

// alarmLister is the part of the query client the watcher needs.
type alarmLister interface {
	ListAlarms(ctx context.Context, deviceID string) (*structpb.ListValue, error)
}

// Run polls the alarm history until ctx is canceled.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "smokewatch-watch")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	timeout := cfg.Timeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}

	// Command line address overrides the configured listen address.
	serverAddress := config.DialAddress(cfg.GRPCAddress)
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	client, err := common.Dial(ctx, serverAddress, common.WithCallTimeout(timeout))
	if err != nil {
		return fmt.Errorf("dial server: %w", err)
	}

	defer func() {
		_ = client.Close()
	}()

	logger.InfoKV(ctx, "Watching alarm transitions",
		"server_address", serverAddress,
		"device_id", opts.DeviceID,
		"interval", opts.PollInterval.String(),
	)

	return watch(ctx, client, opts.DeviceID, opts.PollInterval)
}

// watch polls immediately and then on every tick.
func watch(ctx context.Context, client alarmLister, deviceID string, interval time.Duration) error {
	seen := newTracker()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := poll(ctx, client, seen, deviceID); err != nil {
			logger.ErrorKV(ctx, "Poll alarm history failed", "error", err)
		}

		select {
		case <-ctx.Done():
			logger.Info(ctx, "Context canceled, exiting")
			return nil
		case <-ticker.C:
		}
	}
}

// poll fetches the history and logs transitions not reported yet, oldest first.
func poll(ctx context.Context, client alarmLister, seen *tracker, deviceID string) error {
	alarms, err := client.ListAlarms(ctx, deviceID)
	if err != nil {
		return err
	}

	for _, event := range seen.unseen(alarms) {
		fields := event.GetFields()

		logger.InfoKV(ctx, "Alarm transition",
			"device_id", fields["device_id"].GetStringValue(),
			"type", fields["type"].GetStringValue(),
			"smoke", fields["smoke"].GetNumberValue(),
			"source", fields["source"].GetStringValue(),
			"timestamp", time.UnixMilli(int64(fields["timestamp"].GetNumberValue())).Format(time.RFC3339Nano),
		)
	}

	return nil
}
