package jsonx

import (
	"bytes"

	json "github.com/goccy/go-json"
)

// ToDynamic converts any Go value to a dynamic JSON object represented as a
// map[string]any by round-tripping it through its JSON encoding. Numbers are
// decoded as json.Number rather than float64 so values like message ids
// survive template rendering verbatim instead of drifting through floating
// point formatting.
func ToDynamic(val any) (map[string]any, error) {
	b, err := json.Marshal(val)
	if err != nil {
		return nil, err
	}
	return DecodeObject(b)
}

// DecodeObject decodes a JSON object from raw bytes into a map[string]any
// with json.Number number handling.
func DecodeObject(b []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	result := make(map[string]any)
	if err := dec.Decode(&result); err != nil {
		return nil, err
	}
	return result, nil
}

// DecodeValue decodes any JSON value (object, array, scalar) from raw bytes
// with json.Number number handling.
func DecodeValue(b []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var result any
	if err := dec.Decode(&result); err != nil {
		return nil, err
	}
	return result, nil
}

// MarshalString marshals a value and returns the encoding as a string.
func MarshalString(val any) (string, error) {
	b, err := json.Marshal(val)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
