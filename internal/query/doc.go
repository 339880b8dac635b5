// Package query runs station searches, favorites refreshes and nearby lookups
// against a youbike.Directory and publishes the outcome into a state.Store.
package query
