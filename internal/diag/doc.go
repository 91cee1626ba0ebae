// Package diag carries structured diagnostics out of the alignment engine.
//
// The engine never renders anything. It hands plot-shaped data (timestamp
// traces, residual series, histograms) to an optional Sink; a caller can
// embed that data in an external report or drop it. A nil sink is valid
// and changes nothing about alignment results.
package diag
