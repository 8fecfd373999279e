// Package render holds the string-formatting detail behind acknowledgment
// and event messages: text/template with strict missing-key handling, parsed
// once and rendered many times.
package render

import (
	"strings"
	"text/template"

	json "github.com/goccy/go-json"
)

// Data is the value bag a template renders against. Keys are the lowercase
// field names the stock templates use ("registration", "unRegistration",
// "method", "result", "resultAsJson").
type Data map[string]any

// String returns the JSON encoding of the data bag, or an empty string when
// it cannot be encoded. Handy in logs.
func (d Data) String() string {
	b, err := json.Marshal(d)
	if err != nil {
		return ""
	}
	return string(b)
}

// Template is a parsed message template.
type Template struct {
	name string
	tmpl *template.Template
}

// Parse compiles a message template. Missing keys are render-time errors
// rather than "<no value>" placeholders; a half-rendered acknowledgment is
// worse than a loud failure.
func Parse(name, text string) (*Template, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, err
	}
	return &Template{name: name, tmpl: tmpl}, nil
}

// Name returns the template's name as given to Parse.
func (t *Template) Name() string { return t.name }

// Render executes the template against data and returns the result.
func (t *Template) Render(data Data) (string, error) {
	var buf strings.Builder
	if err := t.tmpl.Execute(&buf, map[string]any(data)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Render is the one-shot form: parse text and execute it against data.
func Render(name, text string, data Data) (string, error) {
	t, err := Parse(name, text)
	if err != nil {
		return "", err
	}
	return t.Render(data)
}
