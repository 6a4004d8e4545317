package vars

import (
	"context"
	"fmt"

	"github.com/cameronsjo/purser/internal/inventory"
)

// Options configures one consolidation run.
type Options struct {
	// InventoryDir is the root whose immediate subdirectories are
	// environments. Required.
	InventoryDir string

	// RolesDir holds the shared role scopes. Optional.
	RolesDir string

	// TargetVar names the list-typed variable to extract from each
	// environment. Required.
	TargetVar string

	// Decryptor handles encrypted scope files. Optional.
	Decryptor Decryptor

	Trace *Trace
}

// Consolidate builds the target aggregate: for every environment under the
// inventory root, in lexicographic order, it merges the shared role scopes
// with the environment's group and host overrides under the fixed precedence
// [role-defaults, role-vars, group, host], resolves all template expressions,
// and appends the resolved target variable's elements to the result.
//
// Environments that do not define the target variable contribute nothing. An
// environment where the variable is present but not a sequence fails the
// whole run with a *TypeError, and any load or resolution error likewise
// aborts the run: a partial aggregate that looks complete is worse than a
// failed run.
func Consolidate(ctx context.Context, opts Options) ([]any, error) {
	if opts.InventoryDir == "" {
		return nil, fmt.Errorf("inventory directory is required")
	}
	if opts.TargetVar == "" {
		return nil, fmt.Errorf("target variable name is required")
	}

	loader := &Loader{Decryptor: opts.Decryptor, Trace: opts.Trace}

	roleDefaults, roleVars, err := loadRoleScopes(ctx, loader, opts.RolesDir)
	if err != nil {
		return nil, err
	}

	envs, err := inventory.Environments(opts.InventoryDir)
	if err != nil {
		return nil, err
	}
	if len(envs) == 0 {
		opts.Trace.Logf("no environments under %s", opts.InventoryDir)
	}

	aggregate := make([]any, 0)
	for _, env := range envs {
		group, err := loader.LoadDir(ctx, env.GroupVarsDir)
		if err != nil {
			return nil, fmt.Errorf("environment %s: %w", env.Name, err)
		}
		host, err := loader.LoadDir(ctx, env.HostVarsDir)
		if err != nil {
			return nil, fmt.Errorf("environment %s: %w", env.Name, err)
		}

		merged := MergeScopes(roleDefaults, roleVars, group, host)

		resolver := &Resolver{Trace: opts.Trace}
		resolved, err := resolver.Resolve(merged)
		if err != nil {
			return nil, fmt.Errorf("environment %s: %w", env.Name, err)
		}

		value, ok := resolved[opts.TargetVar]
		if !ok {
			opts.Trace.Logf("environment %s does not define %q, skipping", env.Name, opts.TargetVar)
			continue
		}
		if value.Kind() != KindSequence {
			return nil, &TypeError{Environment: env.Name, Variable: opts.TargetVar, Kind: value.Kind()}
		}

		elements := value.AsAny().([]any)
		aggregate = append(aggregate, elements...)
		opts.Trace.Logf("environment %s contributed %d elements", env.Name, len(elements))
	}

	return aggregate, nil
}

// loadRoleScopes folds every role's defaults into one shared scope and every
// role's explicit vars into another, with roles in lexicographic order so
// later roles win conflicts deterministically.
func loadRoleScopes(ctx context.Context, loader *Loader, rolesDir string) (defaults, explicit Scope, err error) {
	roles, err := inventory.Roles(rolesDir)
	if err != nil {
		return nil, nil, err
	}

	defaults = make(Scope)
	explicit = make(Scope)
	for _, role := range roles {
		d, err := loader.LoadDir(ctx, role.DefaultsDir)
		if err != nil {
			return nil, nil, fmt.Errorf("role %s: %w", role.Name, err)
		}
		defaults = Scope(mergeMappings(defaults, d))

		v, err := loader.LoadDir(ctx, role.VarsDir)
		if err != nil {
			return nil, nil, fmt.Errorf("role %s: %w", role.Name, err)
		}
		explicit = Scope(mergeMappings(explicit, v))
	}
	return defaults, explicit, nil
}
