// Package integration holds end-to-end tests that start the real server on
// free local ports.
package integration
