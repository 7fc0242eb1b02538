package langmap

import (
	"codearena/pkg/errors"
)

// Runtime describes how a human language tag maps onto the sandbox.
type Runtime struct {
	// Tag is the user-facing language tag carried in job payloads.
	Tag string
	// SandboxLanguage is the language id the sandbox expects.
	SandboxLanguage string
	// Version is the sandbox runtime version.
	Version string
	// Extension is the generated source file extension, without the dot.
	Extension string
	// Language is the type-translation target, empty when the tag has
	// no canonical-type table (go).
	Language Language
}

// runtimes maps a user-facing language tag to its sandbox runtime.
var runtimes = map[string]Runtime{
	"c":      {Tag: "c", SandboxLanguage: "gcc", Version: "10.2.0", Extension: "c", Language: LangC},
	"c++":    {Tag: "c++", SandboxLanguage: "gcc", Version: "10.2.0", Extension: "cpp", Language: LangCPP},
	"go":     {Tag: "go", SandboxLanguage: "go", Version: "1.16.2", Extension: "go"},
	"java":   {Tag: "java", SandboxLanguage: "java", Version: "15.0.2", Extension: "java", Language: LangJava},
	"node":   {Tag: "node", SandboxLanguage: "javascript", Version: "20.11.1", Extension: "js", Language: LangJavaScript},
	"python": {Tag: "python", SandboxLanguage: "python", Version: "3.12.0", Extension: "py", Language: LangPython},
}

// ResolveRuntime maps a language tag onto its sandbox runtime. An unknown
// tag is a hard error at dispatch time.
func ResolveRuntime(tag string) (Runtime, error) {
	rt, ok := runtimes[tag]
	if !ok {
		return Runtime{}, errors.Newf(errors.RuntimeNotSupported, "runtime %q is not supported", tag)
	}
	return rt, nil
}

// extensions maps a type-translation language onto its file extension.
var extensions = map[Language]string{
	LangC:          "c",
	LangCPP:        "cpp",
	LangPython:     "py",
	LangJavaScript: "js",
	LangJava:       "java",
}

// Extension returns the source file extension for a language, without the dot.
func Extension(lang Language) string {
	return extensions[lang]
}

// RuntimeTags lists every supported language tag.
func RuntimeTags() []string {
	tags := make([]string, 0, len(runtimes))
	for tag := range runtimes {
		tags = append(tags, tag)
	}
	return tags
}
