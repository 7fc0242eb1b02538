package template

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"codearena/internal/langmap"
	"codearena/internal/problem/model"
	"codearena/pkg/errors"
)

// HarnessCase is one test case prepared for a compiled-language harness.
// The templates for C, C++, and Java cannot decode JSON at runtime, so the
// call expression and the literals are generated here, typed against the
// problem's language-specific signature.
type HarnessCase struct {
	Index          int
	DescriptionLit string // quoted source literal for the report
	Call           string // expression yielding the JSON text of the actual result
	ExpectedLit    string // quoted source literal of the canonical expected JSON
}

func buildHarnessCases(lang langmap.Language, functionName string, params []model.Param, returnType string, cases []model.TestCase) ([]HarnessCase, error) {
	out := make([]HarnessCase, 0, len(cases))
	for i, tc := range cases {
		args, err := splitArgs(tc.Input, params)
		if err != nil {
			return nil, errors.Wrapf(err, errors.TestCaseInvalid, "test case %d: %v", i+1, err)
		}
		argExprs := make([]string, 0, len(args))
		for j, raw := range args {
			expr, lerr := literalFor(lang, params[j].Type, raw)
			if lerr != nil {
				return nil, errors.Wrapf(lerr, errors.TestCaseInvalid,
					"test case %d argument %q: %v", i+1, params[j].Name, lerr)
			}
			argExprs = append(argExprs, expr)
		}

		expected, err := canonicalJSON(tc.Expected)
		if err != nil {
			return nil, errors.Wrapf(err, errors.TestCaseInvalid, "test case %d expected value: %v", i+1, err)
		}

		call, err := callExpr(lang, functionName, returnType, argExprs, tc.Expected)
		if err != nil {
			return nil, errors.Wrapf(err, errors.TestCaseInvalid, "test case %d: %v", i+1, err)
		}

		desc := tc.Description
		if desc == "" {
			desc = fmt.Sprintf("Test case %d", i+1)
		}
		out = append(out, HarnessCase{
			Index:          i + 1,
			DescriptionLit: quoteLit(desc),
			Call:           call,
			ExpectedLit:    quoteLit(expected),
		})
	}
	return out, nil
}

// splitArgs turns a test case input into one JSON value per parameter. An
// object is matched by parameter name, an array positionally, and any other
// value is the single argument.
func splitArgs(input json.RawMessage, params []model.Param) ([]json.RawMessage, error) {
	trimmed := strings.TrimSpace(string(input))
	switch {
	case trimmed == "" || trimmed == "null":
		if len(params) != 0 {
			return nil, fmt.Errorf("input is empty but the function takes %d arguments", len(params))
		}
		return nil, nil
	case strings.HasPrefix(trimmed, "{"):
		var byName map[string]json.RawMessage
		if err := json.Unmarshal(input, &byName); err != nil {
			return nil, err
		}
		args := make([]json.RawMessage, 0, len(params))
		for _, p := range params {
			v, ok := byName[p.Name]
			if !ok {
				return nil, fmt.Errorf("input is missing argument %q", p.Name)
			}
			args = append(args, v)
		}
		return args, nil
	case strings.HasPrefix(trimmed, "["):
		var list []json.RawMessage
		if err := json.Unmarshal(input, &list); err != nil {
			return nil, err
		}
		if len(list) != len(params) {
			return nil, fmt.Errorf("input has %d values but the function takes %d arguments", len(list), len(params))
		}
		return list, nil
	default:
		if len(params) != 1 {
			return nil, fmt.Errorf("scalar input but the function takes %d arguments", len(params))
		}
		return []json.RawMessage{input}, nil
	}
}

// canonicalJSON renders a JSON value in the exact form the harness
// serializers produce: compact, object keys sorted, integral floats without
// a decimal part.
func canonicalJSON(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "null", nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return "", err
	}
	var b strings.Builder
	encodeCanonical(&b, v)
	return b.String(), nil
}

func encodeCanonical(b *strings.Builder, v interface{}) {
	switch x := v.(type) {
	case nil:
		b.WriteString("null")
	case bool:
		b.WriteString(strconv.FormatBool(x))
	case string:
		b.WriteString(quoteLit(x))
	case json.Number:
		b.WriteString(canonicalNumber(x))
	case []interface{}:
		b.WriteByte('[')
		for i, elem := range x {
			if i > 0 {
				b.WriteByte(',')
			}
			encodeCanonical(b, elem)
		}
		b.WriteByte(']')
	case map[string]interface{}:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(quoteLit(k))
			b.WriteByte(':')
			encodeCanonical(b, x[k])
		}
		b.WriteByte('}')
	}
}

// canonicalNumber matches the number formatting of the generated
// serializers: integers verbatim, integral floats as integers, the rest with
// ten significant digits.
func canonicalNumber(n json.Number) string {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		return s
	}
	f, err := n.Float64()
	if err != nil {
		return s
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return fmt.Sprintf("%.10g", f)
}

// quoteLit renders s as a quoted, escaped literal valid in JSON, C, C++,
// and Java source.
func quoteLit(s string) string {
	quoted, _ := json.Marshal(s)
	return string(quoted)
}

// callExpr builds the per-language expression that invokes the user function
// and serializes its result to JSON text.
func callExpr(lang langmap.Language, functionName, returnType string, args []string, expected json.RawMessage) (string, error) {
	argList := strings.Join(args, ", ")
	switch lang {
	case langmap.LangCPP:
		return fmt.Sprintf("judge::toJson(Solution().%s(%s))", functionName, argList), nil
	case langmap.LangJava:
		return fmt.Sprintf("toJson(new Solution().%s(%s))", functionName, argList), nil
	case langmap.LangC:
		return cCallExpr(functionName, returnType, argList, expected)
	}
	return "", fmt.Errorf("no harness call form for language %q", lang)
}

// cCallExpr picks the C serializer by return type. Pointer-returning
// functions carry no length, so array results are read up to the expected
// value's length.
func cCallExpr(functionName, returnType, argList string, expected json.RawMessage) (string, error) {
	call := fmt.Sprintf("%s(%s)", functionName, argList)
	switch returnType {
	case "int", "long", "long long", "unsigned int":
		return fmt.Sprintf("judge_json_long((long long)(%s))", call), nil
	case "float", "double", "long double":
		return fmt.Sprintf("judge_json_double((double)(%s))", call), nil
	case "bool":
		return fmt.Sprintf("judge_json_bool(%s)", call), nil
	case "char":
		return fmt.Sprintf("judge_json_char(%s)", call), nil
	case "char*":
		return fmt.Sprintf("judge_json_str(%s)", call), nil
	case "int*", "double*", "char**":
		n, err := expectedArrayLen(expected)
		if err != nil {
			return "", err
		}
		fn := map[string]string{"int*": "judge_json_iarr", "double*": "judge_json_darr", "char**": "judge_json_sarr"}[returnType]
		return fmt.Sprintf("%s(%s, %d)", fn, call, n), nil
	}
	return "", fmt.Errorf("no C serializer for return type %q", returnType)
}

func expectedArrayLen(expected json.RawMessage) (int, error) {
	var list []json.RawMessage
	if err := json.Unmarshal(expected, &list); err != nil {
		return 0, fmt.Errorf("array-returning function needs an array expected value: %w", err)
	}
	return len(list), nil
}

func literalFor(lang langmap.Language, typ string, raw json.RawMessage) (string, error) {
	switch lang {
	case langmap.LangCPP:
		return cppLiteral(typ, raw)
	case langmap.LangC:
		return cLiteral(typ, raw)
	case langmap.LangJava:
		return javaLiteral(typ, raw)
	}
	return "", fmt.Errorf("no literal form for language %q", lang)
}

func cppLiteral(typ string, raw json.RawMessage) (string, error) {
	switch typ {
	case "int", "long", "long long", "unsigned int", "float", "double", "long double":
		return numberText(raw)
	case "bool":
		return boolText(raw)
	case "char":
		return charLiteral(raw)
	case "std::string":
		s, err := stringValue(raw)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("std::string(%s)", quoteLit(s)), nil
	case "std::vector<int>", "std::vector<double>":
		elems, err := numberElems(raw)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s{%s}", typ, strings.Join(elems, ", ")), nil
	case "std::vector<std::string>":
		elems, err := stringElems(raw)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("std::vector<std::string>{%s}", strings.Join(elems, ", ")), nil
	case "std::map<std::string,int>", "std::map<std::string,double>":
		entries, err := mapEntries(raw, func(v string) string { return v })
		if err != nil {
			return "", err
		}
		for i, e := range entries {
			entries[i] = "{" + e + "}"
		}
		return fmt.Sprintf("%s{%s}", typ, strings.Join(entries, ", ")), nil
	case "std::pair<int,int>":
		a, b, err := pairValues(raw)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("std::make_pair(%s, %s)", a, b), nil
	}
	return "", fmt.Errorf("no C++ literal form for type %q", typ)
}

func cLiteral(typ string, raw json.RawMessage) (string, error) {
	switch typ {
	case "int", "long", "long long", "unsigned int", "float", "double", "long double":
		return numberText(raw)
	case "bool":
		return boolText(raw)
	case "char":
		return charLiteral(raw)
	case "char*":
		s, err := stringValue(raw)
		if err != nil {
			return "", err
		}
		return quoteLit(s), nil
	case "int*", "double*":
		elems, err := numberElems(raw)
		if err != nil {
			return "", err
		}
		if len(elems) == 0 {
			return "NULL", nil
		}
		elemType := strings.TrimSuffix(typ, "*")
		return fmt.Sprintf("(%s[]){%s}", elemType, strings.Join(elems, ", ")), nil
	case "char**":
		elems, err := stringElems(raw)
		if err != nil {
			return "", err
		}
		if len(elems) == 0 {
			return "NULL", nil
		}
		return fmt.Sprintf("(char*[]){%s}", strings.Join(elems, ", ")), nil
	}
	return "", fmt.Errorf("no C literal form for type %q", typ)
}

func javaLiteral(typ string, raw json.RawMessage) (string, error) {
	switch typ {
	case "int", "double", "float":
		return numberText(raw)
	case "long":
		n, err := numberText(raw)
		if err != nil {
			return "", err
		}
		return n + "L", nil
	case "boolean":
		return boolText(raw)
	case "char":
		return charLiteral(raw)
	case "String":
		s, err := stringValue(raw)
		if err != nil {
			return "", err
		}
		return quoteLit(s), nil
	case "List<Integer>":
		elems, err := numberElems(raw)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("java.util.Arrays.<Integer>asList(%s)", strings.Join(elems, ", ")), nil
	case "List<Double>":
		elems, err := numberElems(raw)
		if err != nil {
			return "", err
		}
		for i, e := range elems {
			elems[i] = javaDoubleText(e)
		}
		return fmt.Sprintf("java.util.Arrays.<Double>asList(%s)", strings.Join(elems, ", ")), nil
	case "List<String>":
		elems, err := stringElems(raw)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("java.util.Arrays.<String>asList(%s)", strings.Join(elems, ", ")), nil
	case "Map<String, Integer>":
		entries, err := mapEntries(raw, func(v string) string { return v })
		if err != nil {
			return "", err
		}
		return javaMapLiteral(entries)
	case "Map<String, Double>":
		entries, err := mapEntries(raw, javaDoubleText)
		if err != nil {
			return "", err
		}
		return javaMapLiteral(entries)
	case "Pair<Integer, Integer>":
		a, b, err := pairValues(raw)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("new Pair<>(%s, %s)", a, b), nil
	}
	return "", fmt.Errorf("no Java literal form for type %q", typ)
}

// javaMapLiteral uses Map.of, which caps out at ten entries.
func javaMapLiteral(entries []string) (string, error) {
	if len(entries) > 10 {
		return "", fmt.Errorf("map input has %d entries, at most 10 are supported", len(entries))
	}
	return fmt.Sprintf("java.util.Map.of(%s)", strings.Join(entries, ", ")), nil
}

func javaDoubleText(n string) string {
	if strings.ContainsAny(n, ".eE") {
		return n
	}
	return n + ".0"
}

func numberText(raw json.RawMessage) (string, error) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("expected a number, got %s", raw)
	}
	return n.String(), nil
}

func boolText(raw json.RawMessage) (string, error) {
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return "", fmt.Errorf("expected a boolean, got %s", raw)
	}
	return strconv.FormatBool(b), nil
}

func stringValue(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("expected a string, got %s", raw)
	}
	return s, nil
}

func charLiteral(raw json.RawMessage) (string, error) {
	s, err := stringValue(raw)
	if err != nil {
		return "", err
	}
	if len(s) != 1 {
		return "", fmt.Errorf("expected a single character, got %q", s)
	}
	switch s {
	case "'":
		return `'\''`, nil
	case `\`:
		return `'\\'`, nil
	case "\n":
		return `'\n'`, nil
	case "\r":
		return `'\r'`, nil
	case "\t":
		return `'\t'`, nil
	}
	if s[0] < 0x20 {
		return "", fmt.Errorf("unsupported control character %q", s)
	}
	return fmt.Sprintf("'%s'", s), nil
}

func numberElems(raw json.RawMessage) ([]string, error) {
	var list []json.Number
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("expected an array of numbers, got %s", raw)
	}
	out := make([]string, 0, len(list))
	for _, n := range list {
		out = append(out, n.String())
	}
	return out, nil
}

func stringElems(raw json.RawMessage) ([]string, error) {
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("expected an array of strings, got %s", raw)
	}
	out := make([]string, 0, len(list))
	for _, s := range list {
		out = append(out, quoteLit(s))
	}
	return out, nil
}

// mapEntries renders {"k": v} as `{"k", v}` pairs flattened to `"k", v`
// fragments, keys sorted for deterministic output.
func mapEntries(raw json.RawMessage, valueText func(string) string) ([]string, error) {
	var obj map[string]json.Number
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("expected an object of numbers, got %s", raw)
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, fmt.Sprintf("%s, %s", quoteLit(k), valueText(obj[k].String())))
	}
	return out, nil
}

func pairValues(raw json.RawMessage) (string, string, error) {
	var list []json.Number
	if err := json.Unmarshal(raw, &list); err != nil || len(list) != 2 {
		return "", "", fmt.Errorf("expected a two-element array, got %s", raw)
	}
	return list[0].String(), list[1].String(), nil
}
