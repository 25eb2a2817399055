// Package graph models the node/link workflow document submitted to the media
// generation engine.
//
// A Workflow is a directed graph of typed processing nodes connected by typed
// links. The builder API (AddNode/AddLink) validates node references, slot
// arity, and slot data types against a local catalog of known node classes, so
// miswired graphs fail at construction time instead of being rejected (or
// silently misinterpreted) by the engine at execution time.
//
// ToWire converts a Workflow into the engine's flat node-map submission format;
// FromWire reverses the conversion for graphs built from declared classes.
package graph
