package langmap

import (
	"strings"
	"testing"

	"codearena/pkg/errors"
)

func TestValidateComplete(t *testing.T) {
	if err := ValidateComplete(); err != nil {
		t.Fatalf("type table has holes: %v", err)
	}
}

func TestResolveCPPPassThrough(t *testing.T) {
	for _, canonical := range CanonicalTypes {
		got, err := Resolve(LangCPP, canonical)
		if err != nil {
			t.Fatalf("Resolve(cpp, %q): %v", canonical, err)
		}
		if got != canonical {
			t.Errorf("Resolve(cpp, %q) = %q, want pass-through", canonical, got)
		}
	}
}

func TestResolve(t *testing.T) {
	cases := []struct {
		lang      Language
		canonical string
		want      string
	}{
		{LangPython, "std::vector<int>", "list[int]"},
		{LangPython, "double", "float"},
		{LangJavaScript, "long long", "bigint"},
		{LangJavaScript, "std::pair<int,int>", "[number, number]"},
		{LangJava, "std::map<std::string,int>", "Map<String, Integer>"},
		{LangJava, "bool", "boolean"},
		{LangC, "std::string", "char*"},
		{LangC, "std::vector<std::string>", "char**"},
	}
	for _, tc := range cases {
		got, err := Resolve(tc.lang, tc.canonical)
		if err != nil {
			t.Fatalf("Resolve(%s, %q): %v", tc.lang, tc.canonical, err)
		}
		if got != tc.want {
			t.Errorf("Resolve(%s, %q) = %q, want %q", tc.lang, tc.canonical, got, tc.want)
		}
	}
}

func TestResolveUnknownType(t *testing.T) {
	_, err := Resolve(LangPython, "std::deque<int>")
	if err == nil {
		t.Fatal("expected error for unknown canonical type")
	}
	if !errors.Is(err, errors.TypeMappingMissing) {
		t.Errorf("expected TypeMappingMissing, got %v", err)
	}
	if !strings.Contains(err.Error(), "no mapping found for type") {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestResolveUnknownLanguage(t *testing.T) {
	_, err := Resolve(Language("rust"), "int")
	if !errors.Is(err, errors.LanguageNotSupported) {
		t.Errorf("expected LanguageNotSupported, got %v", err)
	}
}

func TestResolveRuntime(t *testing.T) {
	rt, err := ResolveRuntime("c++")
	if err != nil {
		t.Fatalf("ResolveRuntime(c++): %v", err)
	}
	if rt.SandboxLanguage != "gcc" || rt.Version != "10.2.0" || rt.Extension != "cpp" {
		t.Errorf("unexpected runtime: %+v", rt)
	}

	rt, err = ResolveRuntime("node")
	if err != nil {
		t.Fatalf("ResolveRuntime(node): %v", err)
	}
	if rt.SandboxLanguage != "javascript" || rt.Version != "20.11.1" {
		t.Errorf("unexpected runtime: %+v", rt)
	}
}

func TestResolveRuntimeUnknown(t *testing.T) {
	_, err := ResolveRuntime("brainfuck")
	if !errors.Is(err, errors.RuntimeNotSupported) {
		t.Errorf("expected RuntimeNotSupported, got %v", err)
	}
}
