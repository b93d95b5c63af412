package access

import (
	"encoding/json"
	"math"

	"github.com/rotisserie/eris"
)

// UnmarshalJSON decodes answers stored as a JSON object and restores the
// value types of the schema: numbers become int and arrays []string.
// Unknown keys and null values are dropped.
func (a *Answers) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return eris.Wrap(err, "access: decode answers")
	}

	out := make(Answers, len(raw))
	for name, v := range raw {
		f, ok := Lookup(name)
		if !ok || v == nil {
			continue
		}
		switch f.Kind {
		case Int:
			n, ok := v.(float64)
			if !ok || n != math.Trunc(n) {
				return eris.Errorf("access: %s expects an integer, got %v", name, v)
			}
			v = int(n)
		case List:
			items, ok := v.([]any)
			if !ok {
				return eris.Errorf("access: %s expects a list, got %T", name, v)
			}
			l := make([]string, 0, len(items))
			for _, it := range items {
				s, ok := it.(string)
				if !ok {
					return eris.Errorf("access: %s expects strings, got %T", name, it)
				}
				l = append(l, s)
			}
			v = l
		}
		if err := out.Set(name, v); err != nil {
			return err
		}
	}
	*a = out
	return nil
}
