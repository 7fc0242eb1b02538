// Package langmap holds the static language knowledge of the judge: the
// canonical-type translation table and the sandbox runtime table. Both are
// immutable after init and validated for totality at startup.
package langmap

import (
	"codearena/pkg/errors"
)

// Language identifies a target programming language for type translation.
type Language string

const (
	LangC          Language = "c"
	LangCPP        Language = "cpp"
	LangPython     Language = "python"
	LangJavaScript Language = "javascript"
	LangJava       Language = "java"
)

// Languages lists every supported target language.
var Languages = []Language{LangC, LangCPP, LangPython, LangJavaScript, LangJava}

// CanonicalTypes is the closed set of canonical parameter/return types.
// Canonical spelling follows C++; C++ resolution is a pass-through.
var CanonicalTypes = []string{
	"int",
	"long",
	"long long",
	"unsigned int",
	"float",
	"double",
	"long double",
	"char",
	"bool",
	"std::string",
	"std::vector<int>",
	"std::vector<double>",
	"std::vector<std::string>",
	"std::map<std::string,int>",
	"std::map<std::string,double>",
	"std::pair<int,int>",
}

// typeMappings translates a canonical type into each target language.
var typeMappings = map[string]map[Language]string{
	"int": {
		LangC:          "int",
		LangCPP:        "int",
		LangPython:     "int",
		LangJavaScript: "number",
		LangJava:       "int",
	},
	"long": {
		LangC:          "long",
		LangCPP:        "long",
		LangPython:     "int",
		LangJavaScript: "number",
		LangJava:       "long",
	},
	"long long": {
		LangC:          "long long",
		LangCPP:        "long long",
		LangPython:     "int",
		LangJavaScript: "bigint",
		LangJava:       "long",
	},
	"unsigned int": {
		LangC:          "unsigned int",
		LangCPP:        "unsigned int",
		LangPython:     "int",
		LangJavaScript: "number",
		LangJava:       "int", // Java has no unsigned primitives
	},
	"float": {
		LangC:          "float",
		LangCPP:        "float",
		LangPython:     "float",
		LangJavaScript: "number",
		LangJava:       "float",
	},
	"double": {
		LangC:          "double",
		LangCPP:        "double",
		LangPython:     "float",
		LangJavaScript: "number",
		LangJava:       "double",
	},
	"long double": {
		LangC:          "long double",
		LangCPP:        "long double",
		LangPython:     "float",
		LangJavaScript: "number",
		LangJava:       "double",
	},
	"char": {
		LangC:          "char",
		LangCPP:        "char",
		LangPython:     "str",
		LangJavaScript: "string",
		LangJava:       "char",
	},
	"bool": {
		LangC:          "bool",
		LangCPP:        "bool",
		LangPython:     "bool",
		LangJavaScript: "boolean",
		LangJava:       "boolean",
	},
	"std::string": {
		LangC:          "char*",
		LangCPP:        "std::string",
		LangPython:     "str",
		LangJavaScript: "string",
		LangJava:       "String",
	},
	"std::vector<int>": {
		LangC:          "int*",
		LangCPP:        "std::vector<int>",
		LangPython:     "list[int]",
		LangJavaScript: "number[]",
		LangJava:       "List<Integer>",
	},
	"std::vector<double>": {
		LangC:          "double*",
		LangCPP:        "std::vector<double>",
		LangPython:     "list[float]",
		LangJavaScript: "number[]",
		LangJava:       "List<Double>",
	},
	"std::vector<std::string>": {
		LangC:          "char**",
		LangCPP:        "std::vector<std::string>",
		LangPython:     "list[str]",
		LangJavaScript: "string[]",
		LangJava:       "List<String>",
	},
	"std::map<std::string,int>": {
		LangC:          "struct",
		LangCPP:        "std::map<std::string,int>",
		LangPython:     "dict[str, int]",
		LangJavaScript: "Record<string, number>",
		LangJava:       "Map<String, Integer>",
	},
	"std::map<std::string,double>": {
		LangC:          "struct",
		LangCPP:        "std::map<std::string,double>",
		LangPython:     "dict[str, float]",
		LangJavaScript: "Record<string, number>",
		LangJava:       "Map<String, Double>",
	},
	"std::pair<int,int>": {
		LangC:          "struct { int first; int second; }",
		LangCPP:        "std::pair<int,int>",
		LangPython:     "tuple[int, int]",
		LangJavaScript: "[number, number]",
		LangJava:       "Pair<Integer, Integer>",
	},
}

// IsCanonical reports whether t belongs to the canonical type set.
func IsCanonical(t string) bool {
	_, ok := typeMappings[t]
	return ok
}

// IsSupported reports whether lang is a supported target language.
func IsSupported(lang Language) bool {
	for _, l := range Languages {
		if l == lang {
			return true
		}
	}
	return false
}

// Resolve translates a canonical type into the given language. A missing
// entry is a configuration error, never an empty string.
func Resolve(lang Language, canonical string) (string, error) {
	if !IsSupported(lang) {
		return "", errors.Newf(errors.LanguageNotSupported, "language %q is not supported", lang)
	}
	mapping, ok := typeMappings[canonical]
	if !ok {
		return "", errors.Newf(errors.TypeMappingMissing, "no mapping found for type: %s", canonical)
	}
	resolved, ok := mapping[lang]
	if !ok || resolved == "" {
		return "", errors.Newf(errors.TypeMappingMissing, "no %s mapping found for type: %s", lang, canonical)
	}
	return resolved, nil
}

// ValidateComplete checks that every canonical type resolves in every
// supported language. Run once at startup so a hole in the table fails
// the process instead of surfacing mid-job.
func ValidateComplete() error {
	for _, canonical := range CanonicalTypes {
		for _, lang := range Languages {
			if _, err := Resolve(lang, canonical); err != nil {
				return err
			}
		}
	}
	return nil
}
