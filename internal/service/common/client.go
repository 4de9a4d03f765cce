//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	api "github.com/oshokin/smokewatch/internal/api/grpc/telemetry"
	"github.com/oshokin/smokewatch/internal/config"
)

// Client wraps the telemetry query service with convenience helpers.
type Client struct {
	// conn is the underlying gRPC connection to the server.
	conn *grpc.ClientConn

	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

var (
	// errAddressRequired is returned when a required address value is missing.
	errAddressRequired = errors.New("address must be provided")
	// errDeviceIDRequired is returned when a device lookup has no id.
	errDeviceIDRequired = errors.New("device id must be provided")
)

// Dial creates a client for the query service at address.
// Note: this uses insecure transport credentials; deploy on a trusted network
// or terminate TLS in a proxy.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial smokewatch server: %w", err)
	}

	client := &Client{
		conn:        conn,
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// ListDevices retrieves every current device record.
func (c *Client) ListDevices(ctx context.Context) (*structpb.ListValue, error) {
	resp := new(structpb.ListValue)
	if err := c.invoke(ctx, api.ListDevicesMethod, new(emptypb.Empty), resp); err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}

	return resp, nil
}

// GetDevice retrieves one device record. A missing device yields a NotFound status error.
func (c *Client) GetDevice(ctx context.Context, deviceID string) (*structpb.Struct, error) {
	if deviceID == "" {
		return nil, errDeviceIDRequired
	}

	resp := new(structpb.Struct)
	if err := c.invoke(ctx, api.GetDeviceMethod, wrapperspb.String(deviceID), resp); err != nil {
		return nil, fmt.Errorf("get device %q: %w", deviceID, err)
	}

	return resp, nil
}

// LatestDevice retrieves the most recently updated device record.
func (c *Client) LatestDevice(ctx context.Context) (*structpb.Struct, error) {
	resp := new(structpb.Struct)
	if err := c.invoke(ctx, api.LatestDeviceMethod, new(emptypb.Empty), resp); err != nil {
		return nil, fmt.Errorf("latest device: %w", err)
	}

	return resp, nil
}

// ListAlarms retrieves the alarm history, newest first. An empty deviceID lists every device.
func (c *Client) ListAlarms(ctx context.Context, deviceID string) (*structpb.ListValue, error) {
	resp := new(structpb.ListValue)
	if err := c.invoke(ctx, api.ListAlarmsMethod, wrapperspb.String(deviceID), resp); err != nil {
		return nil, fmt.Errorf("list alarms: %w", err)
	}

	return resp, nil
}

func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	return c.conn.Invoke(callCtx, method, req, resp)
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
