package template

import (
	"strings"
)

// ArgNames joins parameter names with commas: "nums, target".
func (in *RenderInput) ArgNames() string {
	names := make([]string, 0, len(in.Parameters))
	for _, p := range in.Parameters {
		names = append(names, p.Name)
	}
	return strings.Join(names, ", ")
}

// TypedArgs formats a C-style parameter list: "int* nums, int target".
func (in *RenderInput) TypedArgs() string {
	args := make([]string, 0, len(in.Parameters))
	for _, p := range in.Parameters {
		args = append(args, p.Type+" "+p.Name)
	}
	return strings.Join(args, ", ")
}

// PyArgs formats an annotated Python parameter list: "nums: list[int], target: int".
func (in *RenderInput) PyArgs() string {
	args := make([]string, 0, len(in.Parameters))
	for _, p := range in.Parameters {
		args = append(args, p.Name+": "+p.Type)
	}
	return strings.Join(args, ", ")
}

// HasEntryPoint reports whether the user code already defines a Java main
// method, in which case the run harness is not appended.
func (in *RenderInput) HasEntryPoint() bool {
	return strings.Contains(in.UserCode, "static void main")
}
