package template

import (
	"regexp"
)

// DefaultJavaClassName is used when the submission declares no public class.
const DefaultJavaClassName = "Main"

var javaClassRe = regexp.MustCompile(`public\s+class\s+([A-Za-z_$][A-Za-z0-9_$]*)`)

// ExtractJavaClassName returns the first public class declared in the code.
// This is a heuristic: it does not parse Java, it matches the first
// "public class <Name>" occurrence. Falls back to DefaultJavaClassName so the
// generated file always has a valid entry-point name.
func ExtractJavaClassName(code string) string {
	m := javaClassRe.FindStringSubmatch(code)
	if m == nil {
		return DefaultJavaClassName
	}
	return m[1]
}
