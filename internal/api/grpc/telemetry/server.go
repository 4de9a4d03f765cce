package telemetry

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oshokin/smokewatch/internal/api/view"
	domain "github.com/oshokin/smokewatch/internal/domain/telemetry"
)

// Service abstracts the query operations the transport depends on.
type Service interface {
	ListDevices(ctx context.Context) []domain.DeviceRecord
	GetDevice(ctx context.Context, deviceID string) (domain.DeviceRecord, bool)
	LatestDevice(ctx context.Context) domain.DeviceRecord
	ListAlarms(ctx context.Context) []domain.AlarmEvent
	ListAlarmsFor(ctx context.Context, deviceID string) []domain.AlarmEvent
}

// Server implements QueryServer on top of Service.
type Server struct {
	// service answers the queries.
	service Service
}

var _ QueryServer = (*Server)(nil)

// NewServer wires the provided service implementation into a gRPC handler.
func NewServer(service Service) *Server {
	return &Server{
		service: service,
	}
}

// ListDevices returns every current device record.
func (s *Server) ListDevices(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	devices := view.FromRecords(s.service.ListDevices(ctx))

	items := make([]any, 0, len(devices))
	for _, d := range devices {
		items = append(items, d.Map())
	}

	return toList(items)
}

// GetDevice returns the record of one device or NotFound.
func (s *Server) GetDevice(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	record, ok := s.service.GetDevice(ctx, req.GetValue())
	if !ok {
		return nil, status.Error(codes.NotFound, "device not found")
	}

	return toStruct(view.FromRecord(&record).Map())
}

// LatestDevice returns the most recently updated device, or the default record.
func (s *Server) LatestDevice(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	record := s.service.LatestDevice(ctx)

	return toStruct(view.FromRecord(&record).Map())
}

// ListAlarms returns the alarm history, newest first.
// A non-empty value restricts the result to that device.
func (s *Server) ListAlarms(ctx context.Context, req *wrapperspb.StringValue) (*structpb.ListValue, error) {
	var events []domain.AlarmEvent

	if deviceID := req.GetValue(); deviceID != "" {
		events = s.service.ListAlarmsFor(ctx, deviceID)
	} else {
		events = s.service.ListAlarms(ctx)
	}

	alarms := view.FromEvents(events)

	items := make([]any, 0, len(alarms))
	for _, a := range alarms {
		items = append(items, a.Map())
	}

	return toList(items)
}

func toStruct(fields map[string]any) (*structpb.Struct, error) {
	result, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}

	return result, nil
}

func toList(items []any) (*structpb.ListValue, error) {
	result, err := structpb.NewList(items)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}

	return result, nil
}
