package template

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"codearena/internal/langmap"
	"codearena/internal/problem/model"
	"codearena/pkg/errors"
)

// LanguageParameterSource resolves the per-language signature projection of
// a problem. Absence must be a hard error, never an empty default.
type LanguageParameterSource interface {
	GetLanguageParameter(ctx context.Context, problemID int64, language string) (*model.LanguageParameter, error)
}

// Generated is a rendered source file ready for materialization.
type Generated struct {
	Filename  string
	Content   string
	Language  string
	Extension string
	// ClassName is set for Java so the entry point survives the unique
	// on-disk filename.
	ClassName string
}

// Generator turns problems and submissions into runnable source files.
type Generator struct {
	params  LanguageParameterSource
	fetcher *TestCaseFetcher
	engine  *Engine
}

func NewGenerator(params LanguageParameterSource, fetcher *TestCaseFetcher, engine *Engine) *Generator {
	return &Generator{
		params:  params,
		fetcher: fetcher,
		engine:  engine,
	}
}

// GenerateBoilerplates renders starter code for every supported language from
// the problem's canonical signature. Boilerplate needs no test cases and no
// persisted language parameters: types are resolved in-memory so this can run
// inside the problem-creation transaction before any rows exist.
func (g *Generator) GenerateBoilerplates(problem *model.Problem) ([]model.BoilerplateSnippet, error) {
	snippets := make([]model.BoilerplateSnippet, 0, len(langmap.Languages))
	for _, lang := range langmap.Languages {
		params, returnType, err := resolveSignature(lang, problem.Parameters, problem.ReturnType)
		if err != nil {
			return nil, err
		}

		input := &RenderInput{
			Description:  problem.Description,
			FunctionName: problem.FunctionName,
			Parameters:   params,
			ReturnType:   returnType,
		}
		code, err := g.engine.Render(string(lang), KindBoilerplate, input)
		if err != nil {
			return nil, err
		}
		snippets = append(snippets, model.BoilerplateSnippet{
			ProblemID: problem.ID,
			Language:  string(lang),
			Code:      code,
			Extension: langmap.Extension(lang),
		})
	}
	return snippets, nil
}

// DeriveLanguageParameters maps the canonical signature into every supported
// language. Any hole in the type table aborts the whole fan-out.
func DeriveLanguageParameters(problem *model.Problem) ([]model.LanguageParameter, error) {
	out := make([]model.LanguageParameter, 0, len(langmap.Languages))
	for _, lang := range langmap.Languages {
		params, returnType, err := resolveSignature(lang, problem.Parameters, problem.ReturnType)
		if err != nil {
			return nil, err
		}
		out = append(out, model.LanguageParameter{
			ProblemID:  problem.ID,
			Language:   string(lang),
			Parameters: params,
			ReturnType: returnType,
		})
	}
	return out, nil
}

func resolveSignature(lang langmap.Language, params []model.Param, returnType string) ([]model.Param, string, error) {
	mapped := make([]model.Param, 0, len(params))
	for _, p := range params {
		resolved, err := langmap.Resolve(lang, p.Type)
		if err != nil {
			return nil, "", err
		}
		mapped = append(mapped, model.Param{Name: p.Name, Type: resolved})
	}
	resolvedReturn, err := langmap.Resolve(lang, returnType)
	if err != nil {
		return nil, "", err
	}
	return mapped, resolvedReturn, nil
}

// GenerateRun renders a runnable solution file for one submission. The
// language parameters are fetched fresh, the test-case artifacts are
// dereferenced over HTTP, and any fetch failure aborts generation before
// anything is enqueued.
func (g *Generator) GenerateRun(ctx context.Context, problem *model.Problem, rt langmap.Runtime, kind Kind, userCodeB64 string) (*Generated, error) {
	if kind != KindPublicRun && kind != KindFullRun {
		return nil, errors.Newf(errors.TemplateNotFound, "unknown template kind %q", kind)
	}
	if rt.Language == "" {
		return nil, errors.Newf(errors.LanguageNotSupported,
			"no solution templates for runtime %q", rt.Tag)
	}
	if strings.TrimSpace(userCodeB64) == "" {
		return nil, errors.New(errors.UserCodeMissing)
	}
	userCode, err := base64.StdEncoding.DecodeString(userCodeB64)
	if err != nil {
		return nil, errors.Wrapf(err, errors.UserCodeInvalid, "user code is not valid base64: %v", err)
	}

	lp, err := g.params.GetLanguageParameter(ctx, problem.ID, string(rt.Language))
	if err != nil {
		return nil, err
	}

	cases, err := g.fetchCases(ctx, problem, kind)
	if err != nil {
		return nil, err
	}
	casesJSON, err := MarshalTestCases(cases)
	if err != nil {
		return nil, err
	}

	input := &RenderInput{
		Description:   problem.Description,
		FunctionName:  problem.FunctionName,
		Parameters:    lp.Parameters,
		ReturnType:    lp.ReturnType,
		TestCases:     cases,
		TestCasesJSON: casesJSON,
		UserCode:      string(userCode),
	}
	switch rt.Language {
	case langmap.LangC, langmap.LangCPP, langmap.LangJava:
		input.Cases, err = buildHarnessCases(rt.Language, problem.FunctionName, lp.Parameters, lp.ReturnType, cases)
		if err != nil {
			return nil, err
		}
	}
	if rt.Language == langmap.LangJava {
		input.ClassName = ExtractJavaClassName(string(userCode))
	}

	content, err := g.engine.Render(string(rt.Language), kind, input)
	if err != nil {
		return nil, err
	}

	return &Generated{
		Filename:  fmt.Sprintf("%d_%s_solution.%s", problem.ID, problem.FunctionName, rt.Extension),
		Content:   content,
		Language:  rt.Tag,
		Extension: rt.Extension,
		ClassName: input.ClassName,
	}, nil
}

func (g *Generator) fetchCases(ctx context.Context, problem *model.Problem, kind Kind) ([]model.TestCase, error) {
	switch kind {
	case KindPublicRun:
		if problem.PublicTestCasesURL == "" {
			return nil, errors.Newf(errors.TestCaseURLMissing,
				"problem %d has no public test case URL", problem.ID)
		}
		return g.fetcher.Fetch(ctx, problem.PublicTestCasesURL)
	case KindFullRun:
		if problem.PublicTestCasesURL == "" || problem.PrivateTestCasesURL == "" {
			return nil, errors.Newf(errors.TestCaseURLMissing,
				"problem %d needs both public and private test case URLs", problem.ID)
		}
		public, err := g.fetcher.Fetch(ctx, problem.PublicTestCasesURL)
		if err != nil {
			return nil, err
		}
		private, err := g.fetcher.Fetch(ctx, problem.PrivateTestCasesURL)
		if err != nil {
			return nil, err
		}
		return append(public, private...), nil
	}
	return nil, errors.Newf(errors.TemplateNotFound, "unknown template kind %q", kind)
}
