// Package queue defines the generation task model shared across the daemon.
//
// Tasks live in an in-memory registry owned by the generation service; this
// package provides the lifecycle vocabulary (types, statuses, transition
// rules) plus a SQLite-backed archive that records finished tasks for the
// history surface.
package queue
