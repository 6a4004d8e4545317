package vars

import "strings"

// Kind identifies which variant a Value holds.
type Kind int

const (
	KindScalar Kind = iota
	KindSequence
	KindMapping
)

// String returns a human-readable kind name for error messages.
func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	default:
		return "unknown"
	}
}

// exprMarker is the opening delimiter of a template expression. A scalar
// string containing it is treated as unresolved until the resolver has
// evaluated it.
const exprMarker = "{{"

// Value is a tagged variant over the three kinds of data a scope file can
// hold: a scalar (string, number, bool, nil), an ordered sequence, or a
// nested mapping. Merge and resolution logic switch on the kind exhaustively
// instead of type-asserting raw YAML values at every step.
type Value struct {
	kind    Kind
	scalar  any
	seq     []Value
	mapping map[string]Value
}

// Scalar wraps a scalar value.
func Scalar(v any) Value {
	return Value{kind: KindScalar, scalar: v}
}

// Sequence wraps an ordered list of values.
func Sequence(elems ...Value) Value {
	return Value{kind: KindSequence, seq: elems}
}

// Mapping wraps a map of values.
func Mapping(m map[string]Value) Value {
	if m == nil {
		m = make(map[string]Value)
	}
	return Value{kind: KindMapping, mapping: m}
}

// FromAny converts a parsed YAML value into a Value. Maps and slices recurse;
// everything else is a scalar.
func FromAny(v any) Value {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, elem := range t {
			m[k] = FromAny(elem)
		}
		return Mapping(m)
	case []any:
		seq := make([]Value, len(t))
		for i, elem := range t {
			seq[i] = FromAny(elem)
		}
		return Value{kind: KindSequence, seq: seq}
	default:
		return Scalar(v)
	}
}

// Kind reports which variant the value holds.
func (v Value) Kind() Kind {
	return v.kind
}

// AsAny converts the value back into plain Go data (map[string]any, []any,
// scalar) for template evaluation and output marshaling.
func (v Value) AsAny() any {
	switch v.kind {
	case KindSequence:
		out := make([]any, len(v.seq))
		for i, elem := range v.seq {
			out[i] = elem.AsAny()
		}
		return out
	case KindMapping:
		out := make(map[string]any, len(v.mapping))
		for k, elem := range v.mapping {
			out[k] = elem.AsAny()
		}
		return out
	default:
		return v.scalar
	}
}

// Clone returns a deep copy. Scalars are immutable and shared.
func (v Value) Clone() Value {
	switch v.kind {
	case KindSequence:
		seq := make([]Value, len(v.seq))
		for i, elem := range v.seq {
			seq[i] = elem.Clone()
		}
		return Value{kind: KindSequence, seq: seq}
	case KindMapping:
		m := make(map[string]Value, len(v.mapping))
		for k, elem := range v.mapping {
			m[k] = elem.Clone()
		}
		return Value{kind: KindMapping, mapping: m}
	default:
		return v
	}
}

// IsExpression reports whether the value is a scalar string containing an
// unevaluated template expression.
func (v Value) IsExpression() bool {
	if v.kind != KindScalar {
		return false
	}
	s, ok := v.scalar.(string)
	return ok && strings.Contains(s, exprMarker)
}

// ContainsExpression reports whether the value or any nested value is an
// unevaluated template expression.
func (v Value) ContainsExpression() bool {
	switch v.kind {
	case KindSequence:
		for _, elem := range v.seq {
			if elem.ContainsExpression() {
				return true
			}
		}
		return false
	case KindMapping:
		for _, elem := range v.mapping {
			if elem.ContainsExpression() {
				return true
			}
		}
		return false
	default:
		return v.IsExpression()
	}
}

// Scope is one immutable mapping of variable names to values loaded from a
// single logical source: a role's defaults, a role's explicit vars, or one
// environment's group or host overrides.
type Scope map[string]Value

// Context is the merged variable space for one environment.
type Context map[string]Value

// AsMap converts the context into plain Go data for template evaluation.
func (c Context) AsMap() map[string]any {
	out := make(map[string]any, len(c))
	for k, v := range c {
		out[k] = v.AsAny()
	}
	return out
}
