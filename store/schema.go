package store

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaURL = "users.schema.json"

//go:embed users.schema.json
var schemaJSON []byte

// ErrInvalidState marks a data file that is not valid JSON or does not match the schema.
var ErrInvalidState = errors.New("invalid data file")

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

// SchemaError is one schema violation at a location inside the document.
type SchemaError struct {
	Path    string
	Message string
}

func (e SchemaError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return e.Path + ": " + e.Message
}

func dataSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile(schemaURL)
	})
	return compiledSchema, schemaErr
}

// Validate checks raw data file contents against the embedded schema.
// The returned error wraps ErrInvalidState.
func Validate(data []byte) error {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}

	schema, err := dataSchema()
	if err != nil {
		return err
	}
	if err := schema.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if !errors.As(err, &ve) {
			return fmt.Errorf("%w: %v", ErrInvalidState, err)
		}
		msgs := make([]string, 0)
		for _, se := range collectSchemaErrors(nil, ve) {
			msgs = append(msgs, se.Error())
		}
		return fmt.Errorf("%w: %s", ErrInvalidState, strings.Join(msgs, "; "))
	}
	return nil
}

// ValidateFile runs Validate on the file at path.
func ValidateFile(path string) error {
	data, err := readLocked(path)
	if err != nil {
		return err
	}
	return Validate(data)
}

func collectSchemaErrors(out []SchemaError, err *jsonschema.ValidationError) []SchemaError {
	if err == nil {
		return out
	}
	if len(err.Causes) == 0 {
		return append(out, SchemaError{
			Path:    jsonPointerToPath(err.InstanceLocation),
			Message: err.Message,
		})
	}
	for _, cause := range err.Causes {
		out = collectSchemaErrors(out, cause)
	}
	return out
}

// jsonPointerToPath turns "/0/tasks/1/text" into "[0].tasks[1].text".
func jsonPointerToPath(ptr string) string {
	ptr = strings.TrimPrefix(ptr, "/")
	if ptr == "" {
		return ""
	}
	var b strings.Builder
	for _, part := range strings.Split(ptr, "/") {
		if part != "" && strings.Trim(part, "0123456789") == "" {
			b.WriteString("[" + part + "]")
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(part)
	}
	return b.String()
}
