package docio

import (
	"bytes"
	_ "embed"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "https://github.com/netly/wgtopo/docio/document.schema.json"

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
		if err != nil {
			compileErr = fmt.Errorf("docio: parsing embedded schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, doc); err != nil {
			compileErr = fmt.Errorf("docio: loading embedded schema: %w", err)
			return
		}
		compiled, compileErr = c.Compile(schemaURL)
	})
	return compiled, compileErr
}

// ValidationError wraps a jsonschema validation failure with the document
// boundary it occurred at, without leaking the schema library's type into
// callers that only want to type-switch on apperr kinds.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("docio: document failed schema validation: %v", e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ValidateSchema checks a generically-decoded document against the
// embedded JSON Schema before any semantic conversion runs, so malformed
// input is rejected with field-level detail (spec.md §1: parsing is "out
// of scope... only its boundary contract is specified" — the contract is
// this schema).
func ValidateSchema(doc map[string]any) error {
	s, err := compiledSchema()
	if err != nil {
		return err
	}
	if err := s.Validate(doc); err != nil {
		return &ValidationError{Err: err}
	}
	return nil
}
