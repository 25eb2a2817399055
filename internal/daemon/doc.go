// Package daemon composes the engine client, generation service, history
// store, and notifications into the long-running loomd process, and enforces
// single-instance execution through a lock file.
package daemon
