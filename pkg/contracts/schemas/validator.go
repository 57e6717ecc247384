// Package schemas compiles and exposes the JSON Schemas for the oracle's
// wire contracts — the DissonanceReport emitted by analyze() and the
// PolicyManifest consumed by cross-repo rules — and validates arbitrary
// values against them.
package schemas

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Name identifies one of the package's compiled schemas.
type Name string

const (
	Report         Name = "report"
	PolicyManifest Name = "policy-manifest"
)

var raw = map[Name]string{
	Report:         ReportSchema,
	PolicyManifest: PolicyManifestSchema,
}

// Validator holds every schema in raw, compiled once at construction so
// repeated Validate calls at report-emission time pay no compile cost.
type Validator struct {
	schemas map[Name]*jsonschema.Schema
}

// New compiles every schema in the package. A malformed embedded schema is
// a programmer error, so callers are expected to check the error once at
// process startup rather than per-request.
func New() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	for name, doc := range raw {
		url := string(name) + ".json"
		if err := compiler.AddResource(url, strings.NewReader(doc)); err != nil {
			return nil, fmt.Errorf("schemas: add resource %s: %w", name, err)
		}
	}
	compiled := make(map[Name]*jsonschema.Schema, len(raw))
	for name := range raw {
		url := string(name) + ".json"
		schema, err := compiler.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("schemas: compile %s: %w", name, err)
		}
		compiled[name] = schema
	}
	return &Validator{schemas: compiled}, nil
}

// Validate marshals v to JSON, decodes it back into schema-library-shaped
// data (map[string]any/[]any/etc, since jsonschema.Schema.Validate rejects
// raw Go structs), and checks it against the named schema.
func (v *Validator) Validate(name Name, value any) error {
	schema, ok := v.schemas[name]
	if !ok {
		return fmt.Errorf("schemas: unknown schema %q", name)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("schemas: marshal %s: %w", name, err)
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("schemas: unmarshal %s: %w", name, err)
	}
	if err := schema.Validate(decoded); err != nil {
		return fmt.Errorf("schemas: %s: %w", name, err)
	}
	return nil
}
