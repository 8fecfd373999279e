// Package schema validates outgoing event payloads against JSON Schemas
// registered per method. Schemas arrive either as raw JSON documents or are
// reflected from Go types, so harnesses can pin an event's shape with a
// single type parameter.
package schema

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"sort"

	json "github.com/goccy/go-json"
	"github.com/invopop/jsonschema"
	jsv "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/Nandana-NNR/mock-firebolt/internal/registry"
)

var reflector = jsonschema.Reflector{
	AllowAdditionalProperties: true,
	DoNotReference:            true,
}

// Registry maps method names to compiled schemas. Methods without a schema
// are treated as valid: the validation gate only rejects on explicit schema
// errors.
type Registry struct {
	schemas registry.Registry[*jsv.Schema]
}

// NewRegistry constructs an empty schema registry.
func NewRegistry() *Registry {
	return &Registry{schemas: registry.New[*jsv.Schema]()}
}

// Register compiles a raw JSON Schema document and installs it for method,
// replacing any earlier registration.
func (r *Registry) Register(method string, schemaJSON []byte) error {
	doc, err := jsv.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return fmt.Errorf("parse schema for %s: %w", method, err)
	}

	compiler := jsv.NewCompiler()
	url := method + ".json"
	if err := compiler.AddResource(url, doc); err != nil {
		return fmt.Errorf("add schema for %s: %w", method, err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return fmt.Errorf("compile schema for %s: %w", method, err)
	}

	r.schemas.Add(method, compiled)
	return nil
}

// RegisterType reflects T into a JSON Schema and installs it for method.
func RegisterType[T any](r *Registry, method string) error {
	s := reflector.ReflectFromType(reflect.TypeFor[T]())
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode reflected schema for %s: %w", method, err)
	}
	return r.Register(method, b)
}

// Has reports whether a schema is registered for method.
func (r *Registry) Has(method string) bool {
	_, ok := r.schemas.Get(method)
	return ok
}

// Methods returns every method with a registered schema, sorted.
func (r *Registry) Methods() []string {
	out := make([]string, 0, r.schemas.Len())
	r.schemas.ForEach(func(method string, _ *jsv.Schema) bool {
		out = append(out, method)
		return true
	})
	sort.Strings(out)
	return out
}

// Validate checks result against the schema registered for method and
// returns every leaf validation failure. A method without a schema yields
// no errors.
func (r *Registry) Validate(result any, method string) []error {
	compiled, ok := r.schemas.Get(method)
	if !ok {
		return nil
	}

	b, err := json.Marshal(result)
	if err != nil {
		return []error{fmt.Errorf("encode result for %s: %w", method, err)}
	}
	value, err := jsv.UnmarshalJSON(bytes.NewReader(b))
	if err != nil {
		return []error{fmt.Errorf("decode result for %s: %w", method, err)}
	}

	if err := compiled.Validate(value); err != nil {
		var verr *jsv.ValidationError
		if errors.As(err, &verr) {
			return leaves(verr)
		}
		return []error{err}
	}
	return nil
}

// leaves flattens a validation error tree into its leaf causes, which carry
// the actually-useful "field X is wrong" messages.
func leaves(v *jsv.ValidationError) []error {
	if len(v.Causes) == 0 {
		return []error{v}
	}
	var out []error
	for _, c := range v.Causes {
		out = append(out, leaves(c)...)
	}
	return out
}
