package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Alignment modes a scenario can exercise.
const (
	ModeAlign = "align"
	ModeHarp  = "harp"
)

// Scenario defines one conformance scenario: a synthetic session and the
// outcomes an alignment run over it must produce.
type Scenario struct {
	// Name uniquely identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario validates.
	Description string `yaml:"description"`

	// Mode selects the engine: "align" or "harp".
	Mode string `yaml:"mode"`

	// SyncLine is the digital line carrying the shared sync signal.
	// Zero selects line 1.
	SyncLine int `yaml:"sync_line,omitempty"`

	// Edges is the shared sync-edge train every stream observes.
	Edges EdgeTrain `yaml:"edges"`

	// Streams are the synthetic streams, reference first.
	Streams []StreamDef `yaml:"streams"`

	// Barcodes describes a barcode train for harp scenarios.
	Barcodes *BarcodeDef `yaml:"barcodes,omitempty"`

	// Params overrides engine defaults.
	Params ParamsDef `yaml:"params,omitempty"`

	// Expect lists the required per-stream outcomes.
	Expect []Expectation `yaml:"expect"`
}

// EdgeTrain is an evenly spaced sync-edge train.
type EdgeTrain struct {
	Start    float64 `yaml:"start"`
	Interval float64 `yaml:"interval"`
	Count    int     `yaml:"count"`
}

// StreamDef describes one synthetic stream and its defects.
type StreamDef struct {
	Name        string    `yaml:"name"`
	NodeID      int       `yaml:"node_id"`
	Rate        float64   `yaml:"rate"`
	Duration    float64   `yaml:"duration"`
	StartSample int64     `yaml:"start_sample,omitempty"`
	ClockOffset float64   `yaml:"clock_offset,omitempty"`
	Inverted    bool      `yaml:"inverted,omitempty"`
	DropFront   int       `yaml:"drop_front,omitempty"`
	DropBack    int       `yaml:"drop_back,omitempty"`
	ExtraEdges  []float64 `yaml:"extra_edges,omitempty"`
}

// BarcodeDef describes a decodable barcode train on one stream's line.
type BarcodeDef struct {
	Stream       string  `yaml:"stream"`
	Line         int     `yaml:"line"`
	Start        float64 `yaml:"start"`
	FirstSeconds uint32  `yaml:"first_seconds"`
	Count        int     `yaml:"count"`
}

// ParamsDef carries the engine knobs a scenario may override.
type ParamsDef struct {
	ReferenceStream      int      `yaml:"reference_stream,omitempty"`
	InvertedStreams      []string `yaml:"inverted_streams,omitempty"`
	TrimOffsetSec        float64  `yaml:"trim_offset_sec,omitempty"`
	RemoveResidualChunks bool     `yaml:"remove_residual_chunks,omitempty"`
	Line                 int      `yaml:"line,omitempty"`
	Force                bool     `yaml:"force,omitempty"`
}

// Expectation is a required outcome for one stream. Status is mandatory;
// Code and Trim are checked only when set.
type Expectation struct {
	Stream string `yaml:"stream"`
	Status string `yaml:"status"`
	Code   string `yaml:"code,omitempty"`
	Trim   string `yaml:"trim,omitempty"`
}

// LoadScenario reads and validates a scenario YAML file. Unknown fields
// are rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("harness: reading scenario: %w", err)
	}
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("harness: parsing %s: %w", path, err)
	}
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("harness: invalid scenario %s: %w", path, err)
	}
	return &s, nil
}

func (s *Scenario) validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Mode != ModeAlign && s.Mode != ModeHarp {
		return fmt.Errorf("mode must be %q or %q, got %q", ModeAlign, ModeHarp, s.Mode)
	}
	if len(s.Streams) == 0 {
		return fmt.Errorf("streams list is required")
	}
	if s.Edges.Count < 2 {
		return fmt.Errorf("edges.count must be at least 2")
	}
	if s.Mode == ModeHarp && s.Barcodes == nil {
		return fmt.Errorf("harp scenarios need a barcodes block")
	}
	if len(s.Expect) == 0 {
		return fmt.Errorf("expect list is required")
	}
	for i, st := range s.Streams {
		if st.Name == "" || st.Rate <= 0 || st.Duration <= 0 {
			return fmt.Errorf("streams[%d]: name, rate and duration are required", i)
		}
	}
	for i, e := range s.Expect {
		if e.Stream == "" || e.Status == "" {
			return fmt.Errorf("expect[%d]: stream and status are required", i)
		}
	}
	return nil
}
