package vars

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"text/template"
	"text/template/parse"

	"github.com/Masterminds/sprig/v3"
)

// DefaultMaxPasses caps the fixpoint loop. Ten passes matches the deepest
// reference chain worth supporting; anything deeper is a configuration smell.
const DefaultMaxPasses = 10

// templateFuncs is the function map available inside expressions.
var templateFuncs = sprig.TxtFuncMap()

// Resolver evaluates template expressions embedded in a context until every
// expression is reduced to a concrete value.
//
// Resolution is an iterative fixpoint, not a single pass: an expression may
// reference a variable whose own value is still an expression, so each pass
// only evaluates expressions whose references are fully resolved, and the
// loop repeats until a pass changes nothing. Expressions left over at the
// fixpoint are classified as referencing an undefined variable or as a
// mutually referencing cycle.
type Resolver struct {
	// MaxPasses overrides DefaultMaxPasses when positive.
	MaxPasses int

	Trace *Trace
}

// expression locates one unresolved template expression inside a context.
type expression struct {
	path string     // where the expression lives, e.g. "db.host" or "sites[0]"
	text string     // the raw expression string
	refs [][]string // variable paths the expression references
}

// Resolve returns a copy of the context with every template expression
// evaluated. The input is never mutated. Resolving an already-resolved
// context is a no-op, and two runs over the same input produce identical
// output or an identical error.
func (r *Resolver) Resolve(input Context) (Context, error) {
	maxPasses := r.MaxPasses
	if maxPasses <= 0 {
		maxPasses = DefaultMaxPasses
	}

	current := make(Context, len(input))
	for k, v := range input {
		current[k] = v.Clone()
	}

	converged := false
	passes := 0
	for pass := 1; pass <= maxPasses; pass++ {
		passes = pass

		// Both readiness checks and evaluation use the snapshot taken at the
		// start of the pass, so results never depend on key visit order.
		snapshot := current
		data := snapshot.AsMap()

		next := make(Context, len(current))
		changed := false
		for _, key := range sortedKeys(current) {
			resolved, didChange, err := r.resolveValue(current[key], key, snapshot, data)
			if err != nil {
				return nil, err
			}
			next[key] = resolved
			changed = changed || didChange
		}
		current = next

		if !changed {
			converged = true
			break
		}
	}

	unresolved := collectExpressions(current)
	if len(unresolved) == 0 {
		r.Trace.Logf("resolution converged after %d passes", passes)
		return current, nil
	}

	if !converged {
		return nil, fmt.Errorf("resolution did not converge after %d passes (%d expressions still pending)",
			maxPasses, len(unresolved))
	}
	return nil, classify(current, unresolved)
}

// resolveValue walks a value tree and evaluates every expression whose
// references are ready in the snapshot.
func (r *Resolver) resolveValue(v Value, path string, snapshot Context, data map[string]any) (Value, bool, error) {
	switch v.kind {
	case KindMapping:
		m := make(map[string]Value, len(v.mapping))
		changed := false
		for _, k := range sortedKeys(v.mapping) {
			childPath := k
			if path != "" {
				childPath = path + "." + k
			}
			child, didChange, err := r.resolveValue(v.mapping[k], childPath, snapshot, data)
			if err != nil {
				return Value{}, false, err
			}
			m[k] = child
			changed = changed || didChange
		}
		return Mapping(m), changed, nil

	case KindSequence:
		seq := make([]Value, len(v.seq))
		changed := false
		for i, elem := range v.seq {
			child, didChange, err := r.resolveValue(elem, fmt.Sprintf("%s[%d]", path, i), snapshot, data)
			if err != nil {
				return Value{}, false, err
			}
			seq[i] = child
			changed = changed || didChange
		}
		return Value{kind: KindSequence, seq: seq}, changed, nil

	default:
		if !v.IsExpression() {
			return v, false, nil
		}
		text := v.scalar.(string)

		refs, err := templateRefs(text)
		if err != nil {
			return Value{}, false, fmt.Errorf("invalid template expression at %s: %w", path, err)
		}
		if !ready(refs, snapshot) {
			return v, false, nil
		}

		out, err := evalExpression(text, data)
		if err != nil {
			return Value{}, false, fmt.Errorf("evaluate expression at %s: %w", path, err)
		}
		r.Trace.Logf("resolved %s", path)
		return Scalar(out), true, nil
	}
}

// ready reports whether every referenced variable exists and holds no
// unresolved expression anywhere in its subtree.
func ready(refs [][]string, ctx Context) bool {
	for _, ref := range refs {
		v, ok := lookupPath(ctx, ref)
		if !ok || v.ContainsExpression() {
			return false
		}
	}
	return true
}

// lookupPath navigates a dotted reference path through nested mappings.
func lookupPath(ctx Context, path []string) (Value, bool) {
	if len(path) == 0 {
		return Value{}, false
	}
	cur, ok := ctx[path[0]]
	if !ok {
		return Value{}, false
	}
	for _, seg := range path[1:] {
		if cur.kind != KindMapping {
			return Value{}, false
		}
		cur, ok = cur.mapping[seg]
		if !ok {
			return Value{}, false
		}
	}
	return cur, true
}

// classify turns the unresolved leftovers of a fixpoint into a diagnosable
// error: a missing reference wins over a cycle, and within each case the
// lexicographically first offender is reported so reruns fail identically.
func classify(ctx Context, unresolved []expression) error {
	for _, expr := range unresolved {
		for _, ref := range expr.refs {
			if _, ok := lookupPath(ctx, ref); !ok {
				return &UndefinedVariableError{
					Variable: strings.Join(ref, "."),
					Path:     expr.path,
				}
			}
		}
	}
	return &CycleError{Chain: buildChain(unresolved)}
}

// buildChain follows references through the unresolved set, starting from the
// lexicographically first expression, until it revisits a member.
func buildChain(unresolved []expression) []string {
	byPath := make(map[string]expression, len(unresolved))
	for _, expr := range unresolved {
		byPath[expr.path] = expr
	}

	var chain []string
	seen := make(map[string]bool)
	cur := unresolved[0]
	for {
		chain = append(chain, cur.path)
		seen[cur.path] = true

		next, ok := nextInChain(cur, unresolved)
		if !ok || seen[next.path] {
			break
		}
		cur = next
	}
	return chain
}

// nextInChain finds the first unresolved expression reachable through cur's
// references. A reference hits an expression when the expression lives at the
// referenced path or anywhere beneath it.
func nextInChain(cur expression, unresolved []expression) (expression, bool) {
	for _, ref := range cur.refs {
		refPath := strings.Join(ref, ".")
		for _, candidate := range unresolved {
			if candidate.path == refPath ||
				strings.HasPrefix(candidate.path, refPath+".") ||
				strings.HasPrefix(candidate.path, refPath+"[") {
				return candidate, true
			}
		}
	}
	return expression{}, false
}

// collectExpressions gathers every remaining expression in the context,
// sorted by path.
func collectExpressions(ctx Context) []expression {
	var out []expression
	for _, key := range sortedKeys(ctx) {
		collectValueExpressions(ctx[key], key, &out)
	}
	return out
}

func collectValueExpressions(v Value, path string, out *[]expression) {
	switch v.kind {
	case KindMapping:
		for _, k := range sortedKeys(v.mapping) {
			childPath := k
			if path != "" {
				childPath = path + "." + k
			}
			collectValueExpressions(v.mapping[k], childPath, out)
		}
	case KindSequence:
		for i, elem := range v.seq {
			collectValueExpressions(elem, fmt.Sprintf("%s[%d]", path, i), out)
		}
	default:
		if !v.IsExpression() {
			return
		}
		text := v.scalar.(string)
		refs, err := templateRefs(text)
		if err != nil {
			// Malformed expressions error out during resolution passes and
			// never reach collection.
			refs = nil
		}
		*out = append(*out, expression{path: path, text: text, refs: refs})
	}
}

// templateRefs parses an expression and returns the variable paths it
// references, deduplicated and sorted.
func templateRefs(text string) ([][]string, error) {
	tmpl, err := template.New("expr").Funcs(templateFuncs).Parse(text)
	if err != nil {
		return nil, err
	}

	var refs [][]string
	collectRefs(tmpl.Tree.Root, &refs)

	sort.Slice(refs, func(i, j int) bool {
		return strings.Join(refs[i], ".") < strings.Join(refs[j], ".")
	})
	deduped := refs[:0]
	var last string
	for _, ref := range refs {
		joined := strings.Join(ref, ".")
		if joined != last || len(deduped) == 0 {
			deduped = append(deduped, ref)
			last = joined
		}
	}
	return deduped, nil
}

// collectRefs walks a template parse tree and records every field access
// rooted at the template data (".name", ".db.host").
func collectRefs(node parse.Node, refs *[][]string) {
	switch n := node.(type) {
	case *parse.ListNode:
		if n == nil {
			return
		}
		for _, item := range n.Nodes {
			collectRefs(item, refs)
		}
	case *parse.ActionNode:
		collectRefs(n.Pipe, refs)
	case *parse.IfNode:
		collectBranch(n.BranchNode, refs)
	case *parse.RangeNode:
		collectBranch(n.BranchNode, refs)
	case *parse.WithNode:
		collectBranch(n.BranchNode, refs)
	case *parse.TemplateNode:
		if n.Pipe != nil {
			collectRefs(n.Pipe, refs)
		}
	case *parse.PipeNode:
		if n == nil {
			return
		}
		for _, cmd := range n.Cmds {
			collectRefs(cmd, refs)
		}
	case *parse.CommandNode:
		for _, arg := range n.Args {
			collectRefs(arg, refs)
		}
	case *parse.FieldNode:
		*refs = append(*refs, n.Ident)
	case *parse.ChainNode:
		collectRefs(n.Node, refs)
	}
}

func collectBranch(branch parse.BranchNode, refs *[][]string) {
	collectRefs(branch.Pipe, refs)
	collectRefs(branch.List, refs)
	collectRefs(branch.ElseList, refs)
}

// evalExpression executes a single expression against the context data.
func evalExpression(text string, data map[string]any) (string, error) {
	tmpl, err := template.New("expr").Funcs(templateFuncs).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
