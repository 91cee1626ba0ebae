// Package harness runs conformance scenarios against the alignment
// engines. A scenario describes a synthetic rig session in YAML: the
// shared sync-edge train, the streams with their defects, and the
// expected per-stream outcomes. The runner builds the session in memory,
// executes the requested alignment mode, and compares outcomes both
// against the scenario's expectations and against golden snapshots.
package harness
