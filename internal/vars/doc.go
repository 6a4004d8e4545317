// Package vars implements the variable resolution engine: it loads
// hierarchical scopes from disk, deep-merges them under a fixed precedence,
// and evaluates embedded template expressions to a fixpoint.
//
// The pipeline runs strictly upward:
//
//   - Loader reads one directory tree into a Scope
//   - MergeScopes folds ordered scopes into a Context
//   - Resolver evaluates expressions until nothing changes
//   - Consolidate orchestrates the above per environment and concatenates
//     the target variable across environments
//
// # Merge semantics
//
// Later scopes override earlier ones for scalars and merge recursively for
// mappings, but sequences always concatenate so no environment can drop
// elements contributed by a lower-precedence scope:
//
//	roles/rproxy/defaults/main.yml    sites: [a]
//	inventory/prod/group_vars/all.yml sites: [b]
//	merged                            sites: [a, b]
//
// # Expressions
//
// A scalar string containing {{ ... }} is a template expression, evaluated
// with text/template plus the sprig function map against the merged context:
//
//	base_domain: example.com
//	url: "https://{{ .base_domain }}"
//
// Chains of expressions resolve over multiple passes; mutual references are
// detected and reported as a CycleError rather than looping forever.
package vars
