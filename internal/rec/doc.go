// Package rec models a multi-stream acquisition session on disk.
//
// A session root contains one directory per record node; each record node
// contains experiment/recording directories; each recording groups one or
// more continuous streams and a single ordered event log that share a time
// origin. The layout mirrors the Open Ephys binary format:
//
//	<root>/Record Node <id>/experiment<N>/recording<M>/
//	    structure.oebin
//	    continuous/<stream folder>/sample_numbers.npy
//	    continuous/<stream folder>/timestamps.npy
//	    events/<stream folder>/TTL/sample_numbers.npy
//	    events/<stream folder>/TTL/timestamps.npy
//	    events/<stream folder>/TTL/states.npy
//
// Everything loaded here is treated as read-only input by the alignment
// engine; the only files ever rewritten are the per-stream timestamp
// arrays, and that happens in the store package, never here.
//
// Events are explicit typed records with pure filter/sort helpers over an
// ordered sequence. There is deliberately no query engine underneath.
package rec
