// Package schema coerces loosely shaped decoded JSON into the exact shape a
// feature expects. Coercion never fails: anything it cannot repair becomes
// an empty value of the expected type.
package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

type Type int

const (
	String Type = iota
	Number
	StringList
	StringMap
	NumberMap
	Index
	Variables
	ObjectList
)

// Field describes one key of the target object.
type Field struct {
	Name string
	// Aliases are alternative keys the model may use, tried after Name.
	Aliases  []string
	Type     Type
	Required bool

	// Index bounds, inclusive.
	Min, Max int

	// Len fixes the length of a StringList when > 0; PadLabel names the
	// placeholders used for padding ("Option" gives "Option 3"). A list
	// shorter than MinLen is treated as absent.
	Len      int
	MinLen   int
	PadLabel string

	// Items is the element schema of an ObjectList.
	Items *Schema
}

type Schema struct {
	Name   string
	Fields []Field
}

// Coerce shapes v to s. The second result lists required fields that were
// absent or empty after coercion.
func (s Schema) Coerce(v any) (map[string]any, []string) {
	obj := s.asObject(v)
	out := make(map[string]any, len(s.Fields))
	var missing []string
	for _, f := range s.Fields {
		raw, ok := lookup(obj, f)
		val := f.coerce(raw)
		out[f.Name] = val
		if f.Required && (!ok || isEmpty(val)) {
			missing = append(missing, f.Name)
		}
	}
	return out, missing
}

// Coerce is the free-function form of Schema.Coerce.
func Coerce(v any, s Schema) (map[string]any, []string) { return s.Coerce(v) }

// asObject accepts a bare list as the value of the first list-typed field,
// which is how models often answer "return a list of questions".
func (s Schema) asObject(v any) map[string]any {
	switch t := v.(type) {
	case map[string]any:
		return t
	case []any:
		for _, f := range s.Fields {
			if f.Type == ObjectList || f.Type == StringList || f.Type == Variables {
				return map[string]any{f.Name: t}
			}
		}
	}
	return map[string]any{}
}

// lookup tries Name then each alias; nulls and blank strings are skipped.
func lookup(obj map[string]any, f Field) (any, bool) {
	for _, k := range append([]string{f.Name}, f.Aliases...) {
		v, ok := obj[k]
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			continue
		}
		return v, true
	}
	return nil, false
}

func (f Field) coerce(v any) any {
	switch f.Type {
	case String:
		return ToString(v)
	case Number:
		n, _ := ToNumber(v)
		return n
	case StringList:
		l := ToStringList(v)
		if len(l) < f.MinLen {
			return []string{}
		}
		if f.Len > 0 {
			l = PadList(l, f.Len, f.PadLabel)
		}
		return l
	case StringMap:
		return ToStringMap(v)
	case NumberMap:
		return ToNumberMap(v)
	case Index:
		return ClampIndex(v, f.Min, f.Max)
	case Variables:
		return ToVariables(v)
	case ObjectList:
		return f.objectList(v)
	}
	return nil
}

func (f Field) objectList(v any) []map[string]any {
	out := []map[string]any{}
	if f.Items == nil {
		return out
	}
	var items []any
	switch t := v.(type) {
	case []any:
		items = t
	case map[string]any:
		items = []any{t}
	}
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		obj, missing := f.Items.Coerce(m)
		if len(missing) > 0 {
			continue
		}
		out = append(out, obj)
	}
	return out
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []string:
		return len(t) == 0
	case []map[string]any:
		return len(t) == 0
	case map[string]string:
		return len(t) == 0
	case map[string]float64:
		return len(t) == 0
	}
	return false
}

// ToString renders scalars plainly and composites as compact JSON.
func ToString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// ToNumber accepts JSON numbers and numeric strings.
func ToNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, false
		}
		return t, true
	case int:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// ToStringList wraps a scalar into a one-element list. Maps contribute their
// values in key order.
func ToStringList(v any) []string {
	out := []string{}
	switch t := v.(type) {
	case nil:
	case []any:
		for _, it := range t {
			if s := ToString(it); s != "" {
				out = append(out, s)
			}
		}
	case []string:
		for _, s := range t {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	case map[string]any:
		for _, k := range sortedKeys(t) {
			if s := ToString(t[k]); s != "" {
				out = append(out, s)
			}
		}
	default:
		if s := ToString(t); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ToStringMap turns a list of N scalars into var_0..var_{N-1}.
func ToStringMap(v any) map[string]string {
	out := map[string]string{}
	switch t := v.(type) {
	case nil:
	case map[string]any:
		for k, val := range t {
			out[k] = ToString(val)
		}
	case map[string]string:
		for k, val := range t {
			out[k] = val
		}
	case []any:
		for i, it := range t {
			out[fmt.Sprintf("var_%d", i)] = ToString(it)
		}
	case []string:
		for i, it := range t {
			out[fmt.Sprintf("var_%d", i)] = it
		}
	default:
		if s := ToString(t); s != "" {
			out["var_0"] = s
		}
	}
	return out
}

// ToNumberMap keeps entries whose value is a number or a numeric string.
func ToNumberMap(v any) map[string]float64 {
	out := map[string]float64{}
	m, ok := v.(map[string]any)
	if !ok {
		return out
	}
	for k, val := range m {
		if n, ok := ToNumber(val); ok {
			out[k] = n
		}
	}
	return out
}

// ClampIndex returns v as an int in [min,max]; anything else yields min.
func ClampIndex(v any, min, max int) int {
	n, ok := ToNumber(v)
	if !ok || n != math.Trunc(n) {
		return min
	}
	i := int(n)
	if i < min || i > max {
		return min
	}
	return i
}

// PadList right-pads l with "<label> <pos>" placeholders (1-based) or
// truncates it to exactly n entries.
func PadList(l []string, n int, label string) []string {
	if label == "" {
		label = "Item"
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		if i < len(l) {
			out = append(out, l[i])
			continue
		}
		out = append(out, fmt.Sprintf("%s %d", label, i+1))
	}
	return out
}

// ToVariables reduces each element to a string: strings pass, single-key
// maps contribute their key, anything else is stringified.
func ToVariables(v any) []string {
	out := []string{}
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	switch t := v.(type) {
	case nil:
	case []any:
		for _, it := range t {
			switch e := it.(type) {
			case string:
				add(e)
			case map[string]any:
				if len(e) == 1 {
					for k := range e {
						add(k)
					}
				} else {
					add(ToString(e))
				}
			default:
				add(ToString(e))
			}
		}
	case []string:
		for _, s := range t {
			add(s)
		}
	case map[string]any:
		for _, k := range sortedKeys(t) {
			add(k)
		}
	default:
		add(ToString(t))
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
