package vars

// MergeScopes folds an ordered list of scopes (lowest precedence first) into a
// single context with one linear pass: merge(merge(s1, s2), s3)...
//
// Merge semantics, applied key by key, recursively:
//   - mapping + mapping: recursive merge, key union
//   - sequence + sequence: concatenate, lower-precedence elements first
//   - anything else (scalar vs scalar, or mismatched kinds): the
//     higher-precedence side replaces the lower; a kind mismatch is an
//     override, not an error
//
// Input scopes are never mutated; the result holds deep copies.
func MergeScopes(scopes ...Scope) Context {
	merged := make(map[string]Value)
	for _, s := range scopes {
		merged = mergeMappings(merged, s)
	}
	return Context(merged)
}

func mergeMappings(base, overlay map[string]Value) map[string]Value {
	result := make(map[string]Value, len(base)+len(overlay))
	for k, v := range base {
		result[k] = v
	}

	for key, overlayValue := range overlay {
		baseValue, exists := result[key]
		if !exists {
			result[key] = overlayValue.Clone()
			continue
		}
		result[key] = mergeValues(baseValue, overlayValue)
	}

	return result
}

func mergeValues(base, overlay Value) Value {
	switch {
	case base.kind == KindMapping && overlay.kind == KindMapping:
		return Mapping(mergeMappings(base.mapping, overlay.mapping))

	case base.kind == KindSequence && overlay.kind == KindSequence:
		seq := make([]Value, 0, len(base.seq)+len(overlay.seq))
		for _, elem := range base.seq {
			seq = append(seq, elem.Clone())
		}
		for _, elem := range overlay.seq {
			seq = append(seq, elem.Clone())
		}
		return Value{kind: KindSequence, seq: seq}

	default:
		return overlay.Clone()
	}
}
