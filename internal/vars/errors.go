package vars

import (
	"fmt"
	"strings"
)

// ParseError indicates a scope file could not be read or parsed into a
// mapping. It is fatal: a silently incomplete scope would produce incorrect,
// hard-to-diagnose merges downstream.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// UndefinedVariableError indicates a template expression references a name
// that does not exist in the context.
type UndefinedVariableError struct {
	// Variable is the dotted path of the missing reference.
	Variable string
	// Path locates the expression that made the reference.
	Path string
}

func (e *UndefinedVariableError) Error() string {
	return fmt.Sprintf("undefined variable %q referenced from %s", e.Variable, e.Path)
}

// CycleError indicates a set of expressions that reference each other and can
// never converge. Chain holds the mutually referencing paths in traversal
// order, ending where it started.
type CycleError struct {
	Chain []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("unresolvable reference cycle: %s", strings.Join(e.Chain, " -> "))
}

// TypeError indicates the target variable exists in an environment but is not
// a sequence, so its value cannot contribute to the aggregate.
type TypeError struct {
	Environment string
	Variable    string
	Kind        Kind
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("variable %q in environment %q is a %s, expected a sequence",
		e.Variable, e.Environment, e.Kind)
}
