// Package inventory discovers the on-disk layout of a multi-environment
// inventory tree and its companion roles directory.
//
// The expected shape mirrors an Ansible-style checkout:
//
//	inventory/
//	  prod/
//	    group_vars/...
//	    host_vars/...
//	  test/
//	    ...
//	roles/
//	  rproxy/
//	    defaults/...
//	    vars/...
package inventory

import (
	"fmt"
	"os"
	"path/filepath"
)

// Environment identifies one immediate subdirectory of the inventory root.
// Each environment owns its group-level and host-level override scopes.
type Environment struct {
	Name         string
	Path         string
	GroupVarsDir string
	HostVarsDir  string
}

// Role identifies one role directory with its default and explicit var scopes.
type Role struct {
	Name        string
	Path        string
	DefaultsDir string
	VarsDir     string
}

// Environments enumerates the immediate subdirectories of the inventory root
// in lexicographic order. This order is the environment-processing order used
// everywhere downstream. Plain files in the root are ignored; a root with no
// subdirectories yields an empty list. A missing root is an error: the caller
// asked for a specific tree.
func Environments(root string) ([]Environment, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read inventory root: %w", err)
	}

	var envs []Environment
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(root, entry.Name())
		envs = append(envs, Environment{
			Name:         entry.Name(),
			Path:         path,
			GroupVarsDir: filepath.Join(path, "group_vars"),
			HostVarsDir:  filepath.Join(path, "host_vars"),
		})
	}
	return envs, nil
}

// Roles enumerates role directories in lexicographic order. A missing or
// empty roles directory yields an empty list, not an error: roles are
// optional.
func Roles(dir string) ([]Role, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read roles directory: %w", err)
	}

	var roles []Role
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		roles = append(roles, Role{
			Name:        entry.Name(),
			Path:        path,
			DefaultsDir: filepath.Join(path, "defaults"),
			VarsDir:     filepath.Join(path, "vars"),
		})
	}
	return roles, nil
}
