// Package template renders lookup results with Go text templates. The
// hermetic subset of the sprig functions is available: nothing that reads
// the environment, the clock or a random source.
package template

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// Renderer parses and executes output templates.
type Renderer struct {
	funcs template.FuncMap
}

// NewRenderer returns a renderer with the sprig functions plus the tpmops
// helpers.
func NewRenderer() *Renderer {
	r := &Renderer{funcs: sprig.HermeticTxtFuncMap()}
	r.funcs["json"] = r.toJSON
	r.funcs["base64"] = r.base64Encode
	r.funcs["base64Decode"] = r.base64Decode
	r.funcs["indentWith"] = r.indent
	r.funcs["sha256"] = r.sha256Hash
	r.funcs["customData"] = r.customData
	return r
}

// Template is a parsed output template.
type Template struct {
	tmpl *template.Template
}

// Parse compiles text. Missing map keys are an error.
func (r *Renderer) Parse(text string) (*Template, error) {
	tmpl, err := template.New("format").Funcs(r.funcs).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("invalid template: %w", err)
	}
	return &Template{tmpl: tmpl}, nil
}

// Execute renders the template for one value.
func (t *Template) Execute(data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template: %w", err)
	}
	return buf.String(), nil
}

// Render parses text and executes it once.
func (r *Renderer) Render(text string, data interface{}) (string, error) {
	t, err := r.Parse(text)
	if err != nil {
		return "", err
	}
	return t.Execute(data)
}
