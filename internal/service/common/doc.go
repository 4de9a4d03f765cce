// Package common holds helpers shared by several services.
//
// It provides a lightweight client for the telemetry query service with
// per-call timeouts.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
