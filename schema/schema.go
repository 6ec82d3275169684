// Package schema validates JSON documents against JSON Schema documents.
package schema

import (
	"bytes"
	"encoding/json"

	"github.com/xeipuuv/gojsonschema"

	"github.com/geoknoesis/semlift-go/errors"
	"github.com/geoknoesis/semlift-go/jsonptr"
)

// Result is the outcome of a validation. Errors is empty when Valid.
type Result struct {
	Valid  bool
	Errors []string
}

// Schema is a compiled JSON Schema.
type Schema struct {
	compiled *gojsonschema.Schema
}

// Compile parses a schema given as JSON or YAML.
func Compile(data []byte) (*Schema, error) {
	doc, err := Normalize(data)
	if err != nil {
		return nil, err
	}
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "compile JSON Schema"), errors.ErrConfiguration)
	}
	return &Schema{compiled: compiled}, nil
}

// Validate checks doc, a decoded JSON value.
func (s *Schema) Validate(doc any) (*Result, error) {
	result, err := s.compiled.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, errors.Wrap(err, "validate document")
	}
	res := &Result{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		res.Errors = append(res.Errors, desc.Field()+": "+desc.Description())
	}
	return res, nil
}

// Validate compiles schemaData and checks doc against it.
func Validate(schemaData []byte, doc any) (*Result, error) {
	s, err := Compile(schemaData)
	if err != nil {
		return nil, err
	}
	return s.Validate(doc)
}

// Normalize returns data as JSON. YAML input is converted; JSON passes
// through unchanged.
func Normalize(data []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.Configuration("empty JSON Schema")
	}
	if json.Valid(trimmed) {
		return trimmed, nil
	}
	doc, err := jsonptr.DecodeYAML(trimmed)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "parse JSON Schema as YAML"), errors.ErrConfiguration)
	}
	out, err := jsonptr.Encode(doc)
	if err != nil {
		return nil, errors.Mark(err, errors.ErrConfiguration)
	}
	return out, nil
}
