// Package align implements the timestamp-alignment engine.
//
// Multiple acquisition streams record the same sync-line edges but drift
// apart because each device runs its own clock and buffering. The engine
// rebuilds a shared timeline in four steps:
//
//  1. ScanCounter classifies discontinuities in a stream's raw sample
//     counter and decides whether the stream is realignable.
//  2. BuildAnchors extracts sync-edge anchor points (sample number ->
//     provisional time) for a stream, honoring the stream's sync polarity.
//  3. Reconcile matches anchor counts between the reference stream and a
//     candidate stream, trimming at most one edge from one end.
//  4. Remap maps arbitrary sample indices into the reference timeline by
//     piecewise-linear interpolation over the anchor set.
//
// AlignRecording sequences these steps over every stream of a recording,
// strictly one stream at a time. Failures are localized: a stream that
// cannot be reconciled is recorded and skipped, never remapped with
// mismatched anchor counts.
//
// All numeric kernels are pure functions over fixed-size slices: input
// array in, output array out, no hidden state.
package align
