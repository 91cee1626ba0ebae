package cli

import (
	"github.com/ephyslab/rigsync/internal/align"
	"github.com/ephyslab/rigsync/internal/harp"
)

// Params is the external parameter file for alignment runs. Every tunable
// of the engine appears here; nothing numeric is hard-coded in the logic.
// Files are JSON or YAML and are validated against the embedded CUE schema
// before use.
type Params struct {
	ReferenceStream        int      `json:"reference_stream"`
	SyncLine               int      `json:"sync_line"`
	InvertedStreams        []string `json:"inverted_streams"`
	DiscontinuityThreshold int      `json:"discontinuity_threshold"`
	TrimOffsetSec          float64  `json:"trim_offset_sec"`
	RemoveResidualChunks   bool     `json:"remove_residual_chunks"`

	TimestampFile   string `json:"timestamp_file"`
	ArchiveFile     string `json:"archive_file"`
	HarpArchiveFile string `json:"harp_archive_file"`

	BarcodeStream       string  `json:"barcode_stream"`
	SegmentGapSec       float64 `json:"segment_gap_sec"`
	BaudRate            float64 `json:"baud_rate"`
	PValueMin           float64 `json:"p_value_min"`
	ShortGapFractionMin float64 `json:"short_gap_fraction_min"`
	ShortGapSec         float64 `json:"short_gap_sec"`
	StartGapSec         float64 `json:"start_gap_sec"`
	BinSizeSec          float64 `json:"bin_size_sec"`

	Subsample int `json:"subsample"`
}

// DefaultParams mirrors the schema defaults.
func DefaultParams() Params {
	return Params{
		ReferenceStream:        0,
		SyncLine:               align.DefaultSyncLine,
		DiscontinuityThreshold: align.DefaultDiscontinuityThreshold,
		TrimOffsetSec:          align.DefaultTrimOffset,
		TimestampFile:          align.DefaultTimestampFile,
		ArchiveFile:            align.DefaultArchiveFile,
		HarpArchiveFile:        harp.DefaultArchiveFile,
		BarcodeStream:          harp.DefaultBarcodeStream,
		SegmentGapSec:          harp.DefaultSegmentGap,
		BaudRate:               harp.DefaultBaudRate,
		PValueMin:              harp.DefaultPValueMin,
		ShortGapFractionMin:    harp.DefaultShortGapFractionMin,
		ShortGapSec:            harp.DefaultShortGap,
		StartGapSec:            harp.DefaultStartGap,
		BinSizeSec:             harp.DefaultBinSize,
		Subsample:              align.DefaultSubsample,
	}
}

// AlignParams maps the file onto the local-sync engine's parameters.
func (p Params) AlignParams(force bool) align.Params {
	return align.Params{
		ReferenceStream:        p.ReferenceStream,
		SyncLine:               p.SyncLine,
		InvertedStreams:        p.InvertedStreams,
		DiscontinuityThreshold: p.DiscontinuityThreshold,
		TrimOffset:             p.TrimOffsetSec,
		RemoveResidualChunks:   p.RemoveResidualChunks,
		TimestampFile:          p.TimestampFile,
		ArchiveFile:            p.ArchiveFile,
		Subsample:              p.Subsample,
		Force:                  force,
	}
}

// HarpParams maps the file onto the harp engine's parameters.
func (p Params) HarpParams(line int, unattended, force bool) harp.Params {
	return harp.Params{
		BarcodeStream: p.BarcodeStream,
		Line:          line,
		Unattended:    unattended,
		Select: harp.SelectOptions{
			BinSize:             p.BinSizeSec,
			ShortGap:            p.ShortGapSec,
			StartGap:            p.StartGapSec,
			PValueMin:           p.PValueMin,
			ShortGapFractionMin: p.ShortGapFractionMin,
		},
		Decode: harp.DecodeOptions{
			SegmentGap: p.SegmentGapSec,
			BaudRate:   p.BaudRate,
		},
		TimestampFile: p.TimestampFile,
		ArchiveFile:   p.HarpArchiveFile,
		Subsample:     p.Subsample,
		Force:         force,
	}
}
