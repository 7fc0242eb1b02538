// Package template renders per-language source files for the judge: starter
// boilerplate shown to users, and runnable solution files with an embedded
// test harness. Templates are embedded in the binary and compiled lazily.
package template

import (
	"bytes"
	"embed"
	"fmt"
	"sync"
	"text/template"

	"codearena/internal/problem/model"
	"codearena/pkg/errors"
)

//go:embed templates
var templateFS embed.FS

// Kind selects which template variant to render.
type Kind string

const (
	// KindBoilerplate is the starter stub shown to users. No test cases,
	// no user code.
	KindBoilerplate Kind = "boilerplate"
	// KindPublicRun embeds user code with a harness over public test cases.
	KindPublicRun Kind = "public_run"
	// KindFullRun embeds user code with a harness over public and private
	// test cases.
	KindFullRun Kind = "full_run"
)

// Valid reports whether k is a known template kind.
func (k Kind) Valid() bool {
	switch k {
	case KindBoilerplate, KindPublicRun, KindFullRun:
		return true
	}
	return false
}

// RenderInput is the data a template renders from. Parameters and ReturnType
// are already language-specific.
type RenderInput struct {
	Description   string
	FunctionName  string
	Parameters    []model.Param
	ReturnType    string
	TestCases     []model.TestCase
	TestCasesJSON string
	// Cases carries the pre-built harness blocks for languages whose
	// harness cannot decode JSON at runtime.
	Cases     []HarnessCase
	UserCode  string
	ClassName string
}

// Engine compiles and caches embedded templates keyed by (language, kind).
type Engine struct {
	mu    sync.RWMutex
	cache map[string]*template.Template
}

func NewEngine() *Engine {
	return &Engine{cache: make(map[string]*template.Template)}
}

// Render renders the (language, kind) template with the given input.
// Identical inputs produce byte-identical output.
func (e *Engine) Render(language string, kind Kind, input *RenderInput) (string, error) {
	if !kind.Valid() {
		return "", errors.Newf(errors.TemplateNotFound, "unknown template kind %q", kind)
	}

	tmpl, err := e.lookup(language, kind)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, input); err != nil {
		return "", errors.Wrapf(err, errors.TemplateRenderFailed,
			"render %s/%s template failed: %v", language, kind, err)
	}
	return buf.String(), nil
}

// lookup returns a compiled template, compiling and caching on first use.
// The check-then-insert race is benign: compilation is deterministic.
func (e *Engine) lookup(language string, kind Kind) (*template.Template, error) {
	key := fmt.Sprintf("%s_%s", language, kind)

	e.mu.RLock()
	tmpl, ok := e.cache[key]
	e.mu.RUnlock()
	if ok {
		return tmpl, nil
	}

	path := fmt.Sprintf("templates/%s/%s.tmpl", language, kind)
	raw, err := templateFS.ReadFile(path)
	if err != nil {
		return nil, errors.Newf(errors.TemplateNotFound,
			"no %s template for language %q", kind, language)
	}
	tmpl, err = template.New(key).Parse(string(raw))
	if err != nil {
		return nil, errors.Wrapf(err, errors.TemplateRenderFailed,
			"compile %s/%s template failed: %v", language, kind, err)
	}

	e.mu.Lock()
	e.cache[key] = tmpl
	e.mu.Unlock()
	return tmpl, nil
}
