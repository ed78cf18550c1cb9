// Package schema validates model-produced feedback documents against an
// embedded JSON Schema.
package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed feedback.schema.json
var feedbackSchemaJSON []byte

const feedbackSchemaName = "feedback.schema.json"

var printer = message.NewPrinter(language.English)

// Error lists every schema violation of one document.
type Error struct {
	Violations []string
}

func (e *Error) Error() string {
	return "schema validation failed: " + strings.Join(e.Violations, "; ")
}

// Validator checks feedback documents. Safe for concurrent use.
type Validator struct {
	schema *jsonschema.Schema
}

// New compiles the embedded feedback schema.
func New() (*Validator, error) {
	var doc any
	if err := json.Unmarshal(feedbackSchemaJSON, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", feedbackSchemaName, err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(feedbackSchemaName, doc); err != nil {
		return nil, fmt.Errorf("add %s: %w", feedbackSchemaName, err)
	}
	sch, err := compiler.Compile(feedbackSchemaName)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", feedbackSchemaName, err)
	}
	return &Validator{schema: sch}, nil
}

// MustNew is New for package-level initialisation.
func MustNew() *Validator {
	v, err := New()
	if err != nil {
		panic(err)
	}
	return v
}

// Validate checks a decoded JSON value.
func (v *Validator) Validate(doc any) error {
	err := v.schema.Validate(doc)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return fmt.Errorf("schema: %w", err)
	}
	out := &Error{}
	collect(ve, &out.Violations)
	return out
}

// ValidateJSON decodes data and validates it.
func (v *Validator) ValidateJSON(data []byte) error {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return v.Validate(doc)
}

func collect(ve *jsonschema.ValidationError, out *[]string) {
	if len(ve.Causes) == 0 {
		loc := "/" + strings.Join(ve.InstanceLocation, "/")
		*out = append(*out, fmt.Sprintf("%s: %s", loc, ve.ErrorKind.LocalizedString(printer)))
		return
	}
	for _, c := range ve.Causes {
		collect(c, out)
	}
}
