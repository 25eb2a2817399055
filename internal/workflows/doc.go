// Package workflows compiles flat, user-facing generation settings into
// engine workflow graphs.
//
// Each factory is a pure function from a config record to a populated
// graph.Workflow: fixed node topology per media type, positional widget values
// in the order the engine's node schema expects, and catalog-validated links.
// Factories perform no I/O and never consult remote state; config validation
// fails fast before any graph is built.
package workflows
