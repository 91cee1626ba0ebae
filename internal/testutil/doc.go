// Package testutil builds deterministic synthetic recordings for tests.
//
// Sessions are described by ground-truth sync-edge times plus per-stream
// clock offsets and injected defects (dropped or extra edges, counter
// breaks). Builders produce either in-memory recordings for unit tests or
// a full on-disk session layout for reader, store, and CLI tests.
package testutil
