// Package template resolves ${...} references in tool parameters against a
// workflow run's shared data and step results.
//
// Supported references:
//
//	${context.key}            value stored under key in the shared data
//	${context.key.nested.0}   nested map keys and list indices below key
//	${step_id.result}         result of a previously executed step
//	${step_id.error}          error message recorded for that step
//	${step_id.result.items.2} nested access into a step result
//
// A reference that cannot be resolved yields nil ("no value"); resolution
// never fails.
package template

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

// ContextRoot is the first path segment addressing the shared data map.
const ContextRoot = "context"

var refPattern = regexp.MustCompile(`\$\{([^{}]+)\}`)

// Scope is the read-only view a template is resolved against. Steps maps a
// step id to its result entry ({"result": ..., "error": ...}).
type Scope struct {
	Context map[string]any
	Steps   map[string]map[string]any
}

// HasTemplate reports whether s contains at least one ${...} reference.
func HasTemplate(s string) bool {
	return refPattern.MatchString(s)
}

// Resolve returns a copy of params with every template reference resolved.
// params is never modified.
func Resolve(params map[string]any, scope Scope) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = ResolveValue(v, scope)
	}
	return out
}

// ResolveValue resolves a single parameter value. Strings that consist of
// exactly one reference resolve to the referenced value with its type
// preserved; references embedded in longer strings are rendered as text.
// Maps and slices are resolved recursively and other values pass through.
func ResolveValue(v any, scope Scope) any {
	switch val := v.(type) {
	case string:
		return resolveString(val, scope)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = ResolveValue(item, scope)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = ResolveValue(item, scope)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(val))
		for k, item := range val {
			out[k] = Render(item, scope)
		}
		return out
	case []string:
		out := make([]string, len(val))
		for i, item := range val {
			out[i] = Render(item, scope)
		}
		return out
	default:
		return v
	}
}

// Render interpolates every reference in s as text. Unresolved references
// render as the empty string.
func Render(s string, scope Scope) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return refPattern.ReplaceAllStringFunc(s, func(m string) string {
		v, _ := Lookup(m[2:len(m)-1], scope)
		return toText(v)
	})
}

func resolveString(s string, scope Scope) any {
	if !strings.Contains(s, "${") {
		return s
	}
	matches := refPattern.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 1 && matches[0][0] == 0 && matches[0][1] == len(s) {
		v, _ := Lookup(s[matches[0][2]:matches[0][3]], scope)
		return v
	}
	if len(matches) == 0 {
		return s
	}
	return Render(s, scope)
}

// Lookup resolves a dotted reference path (without the ${ } delimiters).
// The boolean reports whether the path resolved to a value.
func Lookup(path string, scope Scope) (any, bool) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, false
	}
	parts := strings.Split(path, ".")

	if parts[0] == ContextRoot {
		if len(parts) == 1 || scope.Context == nil {
			return nil, false
		}
		// A literal dotted key wins over nested access.
		if v, ok := scope.Context[strings.Join(parts[1:], ".")]; ok {
			return v, true
		}
		root, ok := scope.Context[parts[1]]
		if !ok {
			return nil, false
		}
		return walk(root, parts[2:])
	}

	entry, ok := scope.Steps[parts[0]]
	if !ok {
		return nil, false
	}
	return walk(entry, parts[1:])
}

func walk(obj any, keys []string) (any, bool) {
	cur := obj
	for _, key := range keys {
		if cur == nil {
			return nil, false
		}
		next, ok := child(cur, key)
		if !ok {
			return nil, false
		}
		cur = next
	}
	if cur == nil {
		return nil, false
	}
	return cur, true
}

func child(obj any, key string) (any, bool) {
	switch o := obj.(type) {
	case map[string]any:
		v, ok := o[key]
		return v, ok
	case []any:
		idx, ok := index(key, len(o))
		if !ok {
			return nil, false
		}
		return o[idx], true
	}

	rv := reflect.ValueOf(obj)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		v := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()))
		if !v.IsValid() {
			return nil, false
		}
		return v.Interface(), true
	case reflect.Slice, reflect.Array:
		idx, ok := index(key, rv.Len())
		if !ok {
			return nil, false
		}
		return rv.Index(idx).Interface(), true
	case reflect.Struct:
		f, ok := rv.Type().FieldByName(key)
		if !ok || !f.IsExported() {
			return nil, false
		}
		return rv.FieldByIndex(f.Index).Interface(), true
	default:
		return nil, false
	}
}

// index parses a list segment. Only plain non-negative integers in range are
// accepted.
func index(key string, n int) (int, bool) {
	if key == "" {
		return 0, false
	}
	for _, r := range key {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	i, err := strconv.Atoi(key)
	if err != nil || i >= n {
		return 0, false
	}
	return i, true
}

func toText(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		if b, err := json.Marshal(v); err == nil {
			return string(b)
		}
	}
	return fmt.Sprint(v)
}
