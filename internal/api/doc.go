// Package api defines the transport-friendly task representations shared by
// the IPC surface and the CLI.
package api
