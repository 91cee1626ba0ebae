package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// OutcomeSnapshot is the golden-file form of a scenario execution.
type OutcomeSnapshot struct {
	ScenarioName string    `json:"scenario_name"`
	Mode         string    `json:"mode"`
	Outcomes     []Outcome `json:"outcomes"`
}

// RunWithGolden executes a scenario, verifies its expectations, and
// compares the outcome snapshot against testdata/golden/<name>.golden.
// Regenerate goldens with go test ./internal/harness -update.
func RunWithGolden(t *testing.T, scenario *Scenario) *Result {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		t.Fatalf("running scenario %s: %v", scenario.Name, err)
	}
	if err := result.Verify(); err != nil {
		t.Fatal(err)
	}

	snapshot := OutcomeSnapshot{
		ScenarioName: scenario.Name,
		Mode:         scenario.Mode,
		Outcomes:     result.Outcomes,
	}
	raw, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		t.Fatalf("marshaling snapshot for %s: %v", scenario.Name, err)
	}
	raw = append(raw, '\n')

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, raw)
	return result
}
