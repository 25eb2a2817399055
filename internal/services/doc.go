// Package services defines shared utilities consumed by the generation
// pipeline and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp task IDs, operation names, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper so failures are classified
//     consistently across the engine and text runtime clients.
package services
