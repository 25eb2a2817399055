// Package daemonctl orchestrates daemon process lifecycle from the CLI:
// launching loomd, waiting for its socket, and stopping or force-killing it.
package daemonctl
