// Package state holds the view-state shared by the query engine and its
// front ends (the terminal UI and the headless HTTP API).
//
// The Store keeps a single Snapshot. Writers change it through Update, which
// runs a mutation function under the store lock and then publishes a deep copy
// to every subscriber. Readers either take a copy with Snapshot or follow the
// stream returned by Subscribe.
//
// Subscriptions conflate: each subscriber has a one-slot buffer, and a slow
// reader only ever sees the most recent value. A subscriber always receives the
// current value first. The channel is closed when the subscriber's context ends.
//
// The zero Store is ready to use.
package state
