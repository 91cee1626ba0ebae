// Package harp decodes an absolute-clock barcode line into time anchors.
//
// A dedicated digital line carries, once per second, a serial barcode
// encoding the absolute clock's current time. Aligning a recording to that
// clock happens in two passes:
//
//   - SelectLine scans the candidate digital lines of the acquisition
//     stream and picks the one whose edges look like a barcode feed:
//     uniformly distributed over the session (chi-square goodness of fit)
//     with a high fraction of sub-50 ms inter-edge gaps.
//   - DecodeClock splits the chosen line's edge train into segments at
//     gaps above half a second and decodes each segment as a fixed-baud
//     serial barcode. Each decoded segment yields one (local time,
//     absolute time) anchor; malformed segments are discarded.
//
// The resulting anchors feed align.Remap to translate any stream's local
// times into absolute time.
package harp
