package vars

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultExtensions are the file extensions recognized as scope files.
var DefaultExtensions = []string{".yml", ".yaml"}

// sopsInfixes mark files that must be decrypted before parsing.
var sopsInfixes = []string{".sops.yml", ".sops.yaml"}

// Decryptor decrypts an encrypted scope file into plaintext bytes that parse
// as a mapping.
type Decryptor interface {
	Decrypt(ctx context.Context, path string) ([]byte, error)
}

// Loader reads a directory tree of structured-data files into a single scope.
type Loader struct {
	// Extensions overrides DefaultExtensions when non-empty.
	Extensions []string

	// Decryptor handles *.sops.yml / *.sops.yaml files. When nil, encrypted
	// files are skipped with a trace note instead of being parsed as
	// ciphertext.
	Decryptor Decryptor

	Trace *Trace
}

// LoadDir reads every recognized file under dir (recursively, in lexicographic
// path order) and merges the per-file mappings with the standard merge rule,
// so the lexicographically last file wins scalar conflicts and contributes
// last to sequences.
//
// A missing directory or one with no matching files yields an empty scope. A
// file that cannot be parsed into a mapping aborts the whole load with a
// *ParseError naming the file.
func (l *Loader) LoadDir(ctx context.Context, dir string) (Scope, error) {
	scope := make(Scope)

	if dir == "" {
		return scope, nil
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		l.Trace.Logf("no scope directory at %s", dir)
		return scope, nil
	}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !l.matches(path) {
			return nil
		}

		data, err := l.loadFile(ctx, path)
		if err != nil {
			return err
		}
		if data == nil {
			// Encrypted file without a decryptor, already traced.
			return nil
		}

		perFile := make(Scope, len(data))
		for k, v := range data {
			perFile[k] = FromAny(v)
		}
		scope = Scope(mergeMappings(scope, perFile))
		l.Trace.Logf("loaded %s (%d keys)", path, len(perFile))
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(scope) == 0 {
		l.Trace.Logf("empty scope from %s", dir)
	}
	return scope, nil
}

// loadFile reads and parses a single scope file into a raw mapping. A nil map
// with a nil error means the file was deliberately skipped.
func (l *Loader) loadFile(ctx context.Context, path string) (map[string]any, error) {
	var raw []byte
	var err error

	if isEncrypted(path) {
		if l.Decryptor == nil {
			l.Trace.Logf("skipping encrypted file %s (no decryptor configured)", path)
			return nil, nil
		}
		raw, err = l.Decryptor.Decrypt(ctx, path)
		if err != nil {
			return nil, &ParseError{Path: path, Err: err}
		}
	} else {
		raw, err = os.ReadFile(path)
		if err != nil {
			return nil, &ParseError{Path: path, Err: err}
		}
	}

	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	if doc == nil {
		return map[string]any{}, nil
	}

	mapping, ok := doc.(map[string]any)
	if !ok {
		return nil, &ParseError{Path: path, Err: fmt.Errorf("top-level document is not a mapping")}
	}
	return mapping, nil
}

func (l *Loader) matches(path string) bool {
	exts := l.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	for _, ext := range exts {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

func isEncrypted(path string) bool {
	for _, infix := range sopsInfixes {
		if strings.HasSuffix(path, infix) {
			return true
		}
	}
	return false
}
