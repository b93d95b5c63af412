package access

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Answers holds accessibility values keyed by field name. Values are bool,
// int, string (Enum and Text) or []string (List). A missing key is null.
type Answers map[string]any

// Get returns the value of name, or nil when unset.
func (a Answers) Get(name string) any {
	if a == nil {
		return nil
	}
	return a[name]
}

// Set stores v under name after checking it against the field kind and
// choices. A nil v clears the field.
func (a Answers) Set(name string, v any) error {
	f, ok := Lookup(name)
	if !ok {
		return eris.Errorf("access: unknown field %q", name)
	}
	if v == nil {
		delete(a, name)
		return nil
	}

	switch f.Kind {
	case Bool:
		if _, ok := v.(bool); !ok {
			return typeError(f, v)
		}
	case Int:
		n, ok := v.(int)
		if !ok {
			return typeError(f, v)
		}
		if n < 0 {
			return eris.Errorf("access: %s must be >= 0, got %d", name, n)
		}
	case Enum:
		s, ok := v.(string)
		if !ok {
			return typeError(f, v)
		}
		if !f.allows(s) {
			return eris.Errorf("access: %q is not a valid choice for %s", s, name)
		}
	case List:
		l, ok := v.([]string)
		if !ok {
			return typeError(f, v)
		}
		for _, s := range l {
			if !f.allows(s) {
				return eris.Errorf("access: %q is not a valid choice for %s", s, name)
			}
		}
		v = append([]string(nil), l...)
	case Text:
		if _, ok := v.(string); !ok {
			return typeError(f, v)
		}
	}

	a[name] = v
	return nil
}

func typeError(f Field, v any) error {
	return eris.Errorf("access: %s expects a %s value, got %T", f.Name, f.Kind, v)
}

// BoolValue returns the boolean value of name and whether it is set.
func (a Answers) BoolValue(name string) (value, ok bool) {
	value, ok = a.Get(name).(bool)
	return value, ok
}

// Filled reports whether name holds a non-empty value.
func (a Answers) Filled(name string) bool {
	return !IsEmpty(a.Get(name))
}

// Any reports whether at least one field is filled.
func (a Answers) Any() bool {
	for name := range a {
		if a.Filled(name) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (a Answers) Clone() Answers {
	out := make(Answers, len(a))
	for k, v := range a {
		if l, ok := v.([]string); ok {
			v = append([]string(nil), l...)
		}
		out[k] = v
	}
	return out
}

// Equal reports whether a and b hold the same value for every given field,
// or for every registered field when fields is empty.
func (a Answers) Equal(b Answers, fields ...string) bool {
	if len(fields) == 0 {
		fields = Names()
	}
	for _, name := range fields {
		if !ValuesEqual(a.Get(name), b.Get(name)) {
			return false
		}
	}
	return true
}

// CompletionRate is the percentage of filled root fields, truncated.
func (a Answers) CompletionRate() int {
	roots := RootNames()
	if len(roots) == 0 {
		return 0
	}
	filled := 0
	for _, name := range roots {
		if a.Filled(name) {
			filled++
		}
	}
	return filled * 100 / len(roots)
}

// IsEmpty reports whether v counts as no answer: nil, "" or an empty list.
// false and 0 are answers.
func IsEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []string:
		return len(t) == 0
	default:
		return false
	}
}

// ValuesEqual compares two values. Empty values are equal to each other and
// lists compare as sets.
func ValuesEqual(x, y any) bool {
	if IsEmpty(x) || IsEmpty(y) {
		return IsEmpty(x) && IsEmpty(y)
	}
	lx, okx := x.([]string)
	ly, oky := y.([]string)
	if okx || oky {
		if !okx || !oky || len(lx) != len(ly) {
			return false
		}
		sx := append([]string(nil), lx...)
		sy := append([]string(nil), ly...)
		sort.Strings(sx)
		sort.Strings(sy)
		for i := range sx {
			if sx[i] != sy[i] {
				return false
			}
		}
		return true
	}
	return x == y
}

// Format renders a value for reports and conflict messages.
func Format(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case []string:
		return "[" + strings.Join(t, ", ") + "]"
	default:
		return fmt.Sprint(t)
	}
}

var (
	trueValues  = map[string]bool{"true": true, "True": true, "TRUE": true, "1": true, "vrai": true, "Vrai": true, "VRAI": true, "oui": true, "Oui": true, "OUI": true}
	falseValues = map[string]bool{"false": true, "False": true, "FALSE": true, "0": true, "faux": true, "Faux": true, "FAUX": true, "non": true, "Non": true, "NON": true}
)

// ParseNullBool maps the usual French and English spellings of a boolean.
// Anything else is null.
func ParseNullBool(s string) (value, ok bool) {
	s = strings.TrimSpace(s)
	switch {
	case trueValues[s]:
		return true, true
	case falseValues[s]:
		return false, true
	default:
		return false, false
	}
}

// Parse converts a raw text cell into the typed value of name. Empty input
// yields nil.
func Parse(name, raw string) (any, error) {
	f, ok := Lookup(name)
	if !ok {
		return nil, eris.Errorf("access: unknown field %q", name)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	switch f.Kind {
	case Bool:
		b, ok := ParseNullBool(raw)
		if !ok {
			return nil, nil
		}
		return b, nil
	case Int:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, eris.Errorf("access: %s expects an integer, got %q", name, raw)
		}
		return n, nil
	case List:
		var out []string
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, nil
	default:
		return raw, nil
	}
}

// SetRaw parses raw and stores it under name.
func (a Answers) SetRaw(name, raw string) error {
	v, err := Parse(name, raw)
	if err != nil {
		return err
	}
	return a.Set(name, v)
}
