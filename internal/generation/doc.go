// Package generation owns the daemon's task registry and the polling loop
// that drives tasks from submission through completion.
//
// The registry is a single in-memory map guarded by one mutex; critical
// sections stay short and every value handed to callers is a deep copy.
// Submission runs asynchronously per task (build graph, upload inputs, submit
// to the engine); a background poll loop then reconciles engine queue state
// with the registry until each task reaches a terminal status. Notifications
// and event publishing always happen outside the lock.
package generation
