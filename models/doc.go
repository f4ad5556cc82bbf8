// Package models provides shared data structures for modekeeper.
//
// This package contains the core types used across the coordinator, the
// cluster registry, the HTTP surface and the CLI. Keeping them in a separate
// package lets every component import them without circular dependencies.
//
// The models in this package represent:
//   - Mode: the operating mode of a bot instance, ordered by severity
//   - ClusterNode: one row of the cluster registry
//   - API payloads exchanged between the CLI and a running node
//
// All structs include JSON tags for API serialization.
package models
