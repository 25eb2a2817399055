// Package ipc provides JSON-RPC daemon control over a Unix domain socket.
// The server wraps the daemon; the client backs the loom CLI.
package ipc
