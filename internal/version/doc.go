// Package version exposes build metadata for the smokewatch binaries and a
// shared cobra `version` subcommand.
package version
