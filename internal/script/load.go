package script

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// ErrInvalid marks scripts that were read but fail the schema or Validate.
var ErrInvalid = errors.New("invalid script")

// Load reads a script, choosing the format from the file extension:
// .cue files are CUE, everything else is YAML.
func Load(path string) (*Script, error) {
	if filepath.Ext(path) == ".cue" {
		return LoadCUE(path)
	}
	return LoadYAML(path)
}

// LoadYAML reads and validates a YAML script. Unknown fields are rejected
// so that typos ("signal:" for "signals:") do not pass silently.
func LoadYAML(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script file: %w", err)
	}
	return ParseYAML(data)
}

// ParseYAML decodes and validates a YAML script from memory.
func ParseYAML(data []byte) (*Script, error) {
	var s Script
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return &s, nil
}

// LoadCUE reads a CUE script, checks it against the #Script schema and
// validates it.
func LoadCUE(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script file: %w", err)
	}
	return ParseCUE(data, path)
}

// ParseCUE decodes a CUE script from memory. filename is used in error
// positions only.
func ParseCUE(data []byte, filename string) (*Script, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compiling script schema: %w", err)
	}

	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse CUE: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Script")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("%w: does not match schema: %w", ErrInvalid, err)
	}

	var s Script
	if err := unified.Decode(&s); err != nil {
		return nil, fmt.Errorf("decoding script: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return &s, nil
}
