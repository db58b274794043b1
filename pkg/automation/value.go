package automation

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Value is a condition scalar recorded as supplied by the rule source.
// Numbers, strings and booleans are kept in their textual form so that
// evaluators decide how to interpret them.
type Value struct {
	raw string
	set bool
}

// NewValue creates a Value from a Go scalar.
func NewValue(v any) Value {
	switch x := v.(type) {
	case nil:
		return Value{}
	case Value:
		return x
	case string:
		return Value{raw: x, set: true}
	case float64:
		return Value{raw: strconv.FormatFloat(x, 'f', -1, 64), set: true}
	case float32:
		return Value{raw: strconv.FormatFloat(float64(x), 'f', -1, 32), set: true}
	default:
		return Value{raw: fmt.Sprint(x), set: true}
	}
}

// String returns the textual form.
func (v Value) String() string {
	return v.raw
}

// IsZero reports whether no value was supplied.
func (v Value) IsZero() bool {
	return !v.set
}

// Number parses the value as a decimal number.
func (v Value) Number() (float64, bool) {
	if !v.set {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v.raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Int parses the leading integer of the value: "75" and "75.9" give 75,
// "12h" gives 12, "abc" is not an integer.
func (v Value) Int() (int, bool) {
	if f, ok := v.Number(); ok {
		return int(math.Trunc(f)), true
	}
	if !v.set {
		return 0, false
	}

	s := strings.TrimSpace(v.raw)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: condition value must be a scalar", node.Line)
	}
	if node.Tag == "!!null" {
		*v = Value{}
		return nil
	}
	*v = Value{raw: node.Value, set: true}
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (v Value) MarshalYAML() (any, error) {
	return v.native(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	var x any
	if err := json.Unmarshal(data, &x); err != nil {
		return err
	}
	switch x.(type) {
	case nil, string, float64, bool:
		*v = NewValue(x)
		return nil
	}
	return fmt.Errorf("condition value must be a scalar, got %s", data)
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.native())
}

func (v Value) native() any {
	if !v.set {
		return nil
	}
	if f, ok := v.Number(); ok {
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return int64(f)
		}
		return f
	}
	if b, err := strconv.ParseBool(v.raw); err == nil {
		return b
	}
	return v.raw
}
