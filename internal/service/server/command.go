package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	grpcapi "github.com/oshokin/smokewatch/internal/api/grpc/telemetry"
	"github.com/oshokin/smokewatch/internal/api/mqtt"
	"github.com/oshokin/smokewatch/internal/api/rest"
	"github.com/oshokin/smokewatch/internal/api/ws"
	"github.com/oshokin/smokewatch/internal/config"
	"github.com/oshokin/smokewatch/internal/logger"
	"github.com/oshokin/smokewatch/internal/metrics"
	"github.com/oshokin/smokewatch/internal/repository/alarmlog"
	"github.com/oshokin/smokewatch/internal/repository/device"
)

// Options controls the smokewatch-server process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// HTTPAddress overrides the HTTP listen address from the config.
	HTTPAddress string
	// GRPCAddress overrides the gRPC listen address from the config.
	GRPCAddress string
	// AllowMultiple skips the single-instance check.
	AllowMultiple bool
}

const (
	// shutdownTimeout bounds the graceful HTTP shutdown.
	shutdownTimeout = 10 * time.Second
	// readHeaderTimeout protects the HTTP server against slow clients.
	readHeaderTimeout = 10 * time.Second
)

// Run starts the HTTP, gRPC and optional MQTT adapters over one in-memory core
// and blocks until ctx is canceled or a listener fails.
//
//nolint:funlen // Wiring reads best top to bottom.
func Run(ctx context.Context, opts *Options) error {
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if err = logger.Configure(settings.LogLevel, settings.LogFormat); err != nil {
		return fmt.Errorf("configure logger: %w", err)
	}

	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "smokewatch-server")

	if !opts.AllowMultiple {
		if err = ensureSingleInstance(); err != nil {
			return err
		}
	}

	httpAddress := override(settings.HTTPAddress, opts.HTTPAddress)
	grpcAddress := override(settings.GRPCAddress, opts.GRPCAddress)

	devices := device.NewStore(device.WithThreshold(settings.AlarmThreshold))
	alarms := alarmlog.New(settings.MaxHistory)

	registry := prometheus.NewRegistry()
	m := metrics.New()

	if err = m.Register(registry, devices.Count, alarms.Len); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	hub := ws.NewHub(ctx)
	svc := newService(devices, alarms, withMetrics(m), withNotifier(hub))

	routerOptions := []rest.Option{
		rest.WithMetrics(m, registry),
		rest.WithStream(hub),
	}

	var subscriber *mqtt.Subscriber

	if settings.MQTT.Enabled() {
		subscriber = mqtt.NewSubscriber(ctx, mqttConfig(settings), svc)
		routerOptions = append(routerOptions, rest.WithHealthCheck("mqtt", subscriber.Health))
	}

	lc := net.ListenConfig{}

	httpListener, err := lc.Listen(ctx, "tcp", httpAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", httpAddress, err)
	}

	grpcListener, err := lc.Listen(ctx, "tcp", grpcAddress)
	if err != nil {
		_ = httpListener.Close()

		return fmt.Errorf("listen on %s: %w", grpcAddress, err)
	}

	httpServer := &http.Server{
		Handler:           rest.NewRouter(ctx, svc, routerOptions...),
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(grpcapi.LoggingInterceptor(ctx)))
	grpcapi.Register(grpcServer, grpcapi.NewServer(svc))

	logger.InfoKV(ctx, "Smokewatch server listening",
		"http_address", httpListener.Addr().String(),
		"grpc_address", grpcListener.Addr().String(),
		"alarm_threshold", settings.AlarmThreshold,
		"max_history", settings.MaxHistory,
		"mqtt_broker", settings.MQTT.BrokerURL,
	)

	if subscriber != nil {
		subscriber.Start()
		defer subscriber.Stop()
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := httpServer.Serve(httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve HTTP: %w", err)
		}

		return nil
	})

	group.Go(func() error {
		if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("serve gRPC: %w", err)
		}

		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info(ctx, "Shutting down servers")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		grpcServer.GracefulStop()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown HTTP: %w", err)
		}

		return nil
	})

	if err = group.Wait(); err != nil {
		return err
	}

	logger.Info(ctx, "Smokewatch server stopped")

	return nil
}

// override returns value unless replacement is set.
func override(value, replacement string) string {
	if replacement != "" {
		return replacement
	}

	return value
}

// mqttConfig maps settings to the subscriber configuration.
func mqttConfig(settings *config.Config) mqtt.Config {
	return mqtt.Config{
		BrokerURL:         settings.MQTT.BrokerURL,
		ClientID:          settings.MQTT.ClientID,
		Username:          settings.MQTT.Username,
		Password:          settings.MQTT.Password,
		Topic:             settings.MQTT.Topic,
		QoS:               settings.MQTT.QoS,
		DeviceIDFromTopic: settings.MQTT.DeviceIDFromTopic,
		DeviceIDSegment:   settings.MQTT.DeviceIDSegment,
		ConnectTimeout:    settings.Timeout,
	}
}
