// Package telemetry implements the read-only gRPC query API.
//
// Messages are protobuf well-known types: requests use Empty and StringValue,
// responses carry device and alarm views as Struct and ListValue, so clients
// need no generated stubs beyond the ServiceDesc declared here.
package telemetry
