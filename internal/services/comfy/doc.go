// Package comfy wraps the generation engine's HTTP and WebSocket API.
//
// The engine accepts flat wire graphs on /prompt, reports queue contents on
// /queue, records finished prompts under /history, and serves output files via
// /view. All operations take a context and return explicit errors; submission
// failures carry the engine's node-level validation detail so callers can
// surface exactly which node was rejected.
package comfy
