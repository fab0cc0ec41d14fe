// Package schema validates decoded documents against the pipeline's JSON
// schemas. Default schemas are embedded; a schemas/ directory under the
// process base dir overrides them file by file.
package schema

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.json
var defaultSchemas embed.FS

// Schema document names.
const (
	Outline      = "outline.schema.json"
	Section      = "section.schema.json"
	Summary      = "summary.schema.json"
	CriticReport = "critic_report.schema.json"
)

// FieldError is a single path-qualified validation failure.
type FieldError struct {
	Path        string // "/"-joined JSON path
	Description string
}

func (e FieldError) String() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Description)
}

// ValidationError reports an instance that fails its schema.
type ValidationError struct {
	Schema string
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fe.String())
	}
	return fmt.Sprintf("document violates %s: %s", e.Schema, strings.Join(parts, "; "))
}

// InvalidSchemaError reports a schema document that cannot itself be
// loaded or compiled, as distinct from an invalid instance.
type InvalidSchemaError struct {
	Schema string
	Err    error
}

func (e *InvalidSchemaError) Error() string {
	return fmt.Sprintf("invalid schema %s: %v", e.Schema, e.Err)
}

func (e *InvalidSchemaError) Unwrap() error { return e.Err }

// Validator resolves schema documents and validates instances.
type Validator struct {
	schemaDir string // optional on-disk override directory
}

// New returns a Validator. schemaDir may be empty to use only the
// embedded defaults.
func New(schemaDir string) *Validator {
	return &Validator{schemaDir: schemaDir}
}

// Validate checks doc (a decoded JSON value) against the named schema.
func (v *Validator) Validate(doc any, name string) error {
	raw, err := v.schemaBytes(name)
	if err != nil {
		return err
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(raw),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return &InvalidSchemaError{Schema: name, Err: err}
	}
	if result.Valid() {
		return nil
	}

	verr := &ValidationError{Schema: name}
	for _, re := range result.Errors() {
		verr.Errors = append(verr.Errors, FieldError{
			Path:        "/" + strings.ReplaceAll(re.Field(), ".", "/"),
			Description: re.Description(),
		})
	}
	return verr
}

func (v *Validator) schemaBytes(name string) ([]byte, error) {
	if v.schemaDir != "" {
		path := filepath.Join(v.schemaDir, name)
		if data, err := os.ReadFile(path); err == nil {
			return data, nil
		} else if !os.IsNotExist(err) {
			return nil, &InvalidSchemaError{Schema: name, Err: err}
		}
	}
	data, err := defaultSchemas.ReadFile("schemas/" + name)
	if err != nil {
		return nil, &InvalidSchemaError{Schema: name, Err: err}
	}
	return data, nil
}
