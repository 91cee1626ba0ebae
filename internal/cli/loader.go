package cli

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cuejson "cuelang.org/go/encoding/json"
	"gopkg.in/yaml.v3"
)

//go:embed params.cue
var paramsSchema string

// LoadParams reads and validates a parameter file. JSON and YAML are
// accepted; the content is unified with the embedded CUE schema, so
// unknown fields and out-of-range values are rejected with positions, and
// omitted fields pick up their schema defaults. An empty path returns the
// defaults.
func LoadParams(path string) (Params, error) {
	if path == "" {
		return DefaultParams(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Params{}, fmt.Errorf("cli: reading parameters %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		raw, err = yamlToJSON(raw)
		if err != nil {
			return Params{}, fmt.Errorf("cli: parsing parameters %s: %w", path, err)
		}
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(paramsSchema, cue.Filename("params.cue"))
	if err := schema.Err(); err != nil {
		return Params{}, fmt.Errorf("cli: compiling parameter schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Params"))
	if err := def.Err(); err != nil {
		return Params{}, fmt.Errorf("cli: parameter schema has no #Params: %w", err)
	}

	expr, err := cuejson.Extract(path, raw)
	if err != nil {
		return Params{}, fmt.Errorf("cli: parsing parameters %s: %w", path, err)
	}
	unified := def.Unify(ctx.BuildExpr(expr))
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return Params{}, fmt.Errorf("cli: invalid parameters %s: %w", path, err)
	}

	var params Params
	if err := unified.Decode(&params); err != nil {
		return Params{}, fmt.Errorf("cli: decoding parameters %s: %w", path, err)
	}
	return params, nil
}

// yamlToJSON re-encodes a YAML document as JSON so one extraction path
// serves both formats.
func yamlToJSON(raw []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return json.Marshal(doc)
}
