package params

import (
	"bytes"
	"encoding/json"
	"maps"
	"slices"
)

// Bag is the immutable set of resolved option values for one run. Unset
// optional options are present with a nil value.
type Bag struct {
	order  []string
	values map[string]any
}

// NewBag builds a bag from literal values, ordered by name. It is meant for
// callers that assemble parameters without a command line.
func NewBag(values map[string]any) Bag {
	order := slices.Sorted(maps.Keys(values))

	return Bag{order: order, values: maps.Clone(values)}
}

// With returns a copy of b where name holds value. It is the only way to
// add harness-derived fields after resolution.
func (b Bag) With(name string, value any) Bag {
	out := Bag{
		order:  slices.Clone(b.order),
		values: maps.Clone(b.values),
	}

	if out.values == nil {
		out.values = make(map[string]any, 1)
	}

	if _, ok := out.values[name]; !ok {
		out.order = append(out.order, name)
	}

	out.values[name] = value

	return out
}

// Names returns the option names in declaration order.
func (b Bag) Names() []string {
	return slices.Clone(b.order)
}

// Has reports whether name is present and set.
func (b Bag) Has(name string) bool {
	return b.values[name] != nil
}

// String returns the string value of name, or "" when unset.
func (b Bag) String(name string) string {
	s, _ := b.values[name].(string)
	return s
}

// Int returns the integer value of name, or 0 when unset.
func (b Bag) Int(name string) int {
	n, _ := b.OptInt(name)
	return n
}

// OptInt returns the integer value of name and whether it was set.
func (b Bag) OptInt(name string) (int, bool) {
	n, ok := b.values[name].(int)
	return n, ok
}

// Float returns the float value of name, or 0 when unset.
func (b Bag) Float(name string) float64 {
	f, _ := b.OptFloat(name)
	return f
}

// OptFloat returns the float value of name and whether it was set.
// Integer values are widened.
func (b Bag) OptFloat(name string) (float64, bool) {
	switch v := b.values[name].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

// Bool returns the boolean value of name, or false when unset.
func (b Bag) Bool(name string) bool {
	v, _ := b.values[name].(bool)
	return v
}

// FloatOrInt returns the fraction-or-count value of name and whether it
// was set.
func (b Bag) FloatOrInt(name string) (FloatOrInt, bool) {
	v, ok := b.values[name].(FloatOrInt)
	return v, ok
}

// Strings returns the list value of name.
func (b Bag) Strings(name string) []string {
	v, _ := b.values[name].([]string)
	return slices.Clone(v)
}

// MarshalJSON encodes b as a JSON object in declaration order.
func (b Bag) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte('{')

	for i, name := range b.order {
		if i > 0 {
			buf.WriteByte(',')
		}

		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}

		val, err := json.Marshal(b.values[name])
		if err != nil {
			return nil, err
		}

		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}
