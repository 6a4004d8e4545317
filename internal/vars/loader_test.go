package vars

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScopeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoadDir(t *testing.T) {
	t.Run("merges files in lexicographic order", func(t *testing.T) {
		dir := t.TempDir()
		writeScopeFile(t, dir, "10-base.yml", "key: base\nonly_base: 1\n")
		writeScopeFile(t, dir, "20-override.yml", "key: override\n")

		loader := &Loader{}
		scope, err := loader.LoadDir(context.Background(), dir)
		require.NoError(t, err)

		assert.Equal(t, "override", scope["key"].AsAny())
		assert.Equal(t, 1, scope["only_base"].AsAny())
	})

	t.Run("walks nested directories", func(t *testing.T) {
		dir := t.TempDir()
		writeScopeFile(t, dir, "all/main.yml", "from_group: all\n")
		writeScopeFile(t, dir, "web.yml", "from_file: web\n")

		loader := &Loader{}
		scope, err := loader.LoadDir(context.Background(), dir)
		require.NoError(t, err)

		assert.Equal(t, "all", scope["from_group"].AsAny())
		assert.Equal(t, "web", scope["from_file"].AsAny())
	})

	t.Run("concatenates sequences across files", func(t *testing.T) {
		dir := t.TempDir()
		writeScopeFile(t, dir, "a.yml", "sites: [one]\n")
		writeScopeFile(t, dir, "b.yml", "sites: [two, three]\n")

		loader := &Loader{}
		scope, err := loader.LoadDir(context.Background(), dir)
		require.NoError(t, err)

		assert.Equal(t, []any{"one", "two", "three"}, scope["sites"].AsAny())
	})

	t.Run("ignores unrecognized extensions", func(t *testing.T) {
		dir := t.TempDir()
		writeScopeFile(t, dir, "vars.yml", "key: value\n")
		writeScopeFile(t, dir, "README.md", "# not a scope file\n")
		writeScopeFile(t, dir, "notes.txt", "key: wrong\n")

		loader := &Loader{}
		scope, err := loader.LoadDir(context.Background(), dir)
		require.NoError(t, err)

		assert.Len(t, scope, 1)
		assert.Equal(t, "value", scope["key"].AsAny())
	})

	t.Run("missing directory yields empty scope", func(t *testing.T) {
		loader := &Loader{}
		scope, err := loader.LoadDir(context.Background(), "/nonexistent/path")
		require.NoError(t, err)
		assert.Empty(t, scope)
	})

	t.Run("empty directory yields empty scope", func(t *testing.T) {
		loader := &Loader{}
		scope, err := loader.LoadDir(context.Background(), t.TempDir())
		require.NoError(t, err)
		assert.Empty(t, scope)
	})

	t.Run("empty file yields no keys", func(t *testing.T) {
		dir := t.TempDir()
		writeScopeFile(t, dir, "empty.yml", "")

		loader := &Loader{}
		scope, err := loader.LoadDir(context.Background(), dir)
		require.NoError(t, err)
		assert.Empty(t, scope)
	})

	t.Run("unparseable file is a fatal ParseError", func(t *testing.T) {
		dir := t.TempDir()
		writeScopeFile(t, dir, "good.yml", "key: value\n")
		writeScopeFile(t, dir, "broken.yml", "key: [unclosed\n")

		loader := &Loader{}
		_, err := loader.LoadDir(context.Background(), dir)
		require.Error(t, err)

		var parseErr *ParseError
		require.ErrorAs(t, err, &parseErr)
		assert.Equal(t, filepath.Join(dir, "broken.yml"), parseErr.Path)
	})

	t.Run("non-mapping document is a fatal ParseError", func(t *testing.T) {
		dir := t.TempDir()
		writeScopeFile(t, dir, "list.yml", "- not\n- a\n- mapping\n")

		loader := &Loader{}
		_, err := loader.LoadDir(context.Background(), dir)
		require.Error(t, err)

		var parseErr *ParseError
		require.ErrorAs(t, err, &parseErr)
		assert.Contains(t, parseErr.Error(), "not a mapping")
	})
}

// staticDecryptor returns canned plaintext for any file.
type staticDecryptor struct {
	plaintext []byte
	err       error
}

func (d *staticDecryptor) Decrypt(_ context.Context, _ string) ([]byte, error) {
	return d.plaintext, d.err
}

func TestLoadDirEncryptedFiles(t *testing.T) {
	t.Run("decrypts sops files before parsing", func(t *testing.T) {
		dir := t.TempDir()
		writeScopeFile(t, dir, "plain.yml", "key: plain\n")
		writeScopeFile(t, dir, "secret.sops.yml", "ciphertext-placeholder\n")

		loader := &Loader{
			Decryptor: &staticDecryptor{plaintext: []byte(`{"api_token": "s3cret"}`)},
		}
		scope, err := loader.LoadDir(context.Background(), dir)
		require.NoError(t, err)

		assert.Equal(t, "plain", scope["key"].AsAny())
		assert.Equal(t, "s3cret", scope["api_token"].AsAny())
	})

	t.Run("skips sops files without a decryptor", func(t *testing.T) {
		dir := t.TempDir()
		writeScopeFile(t, dir, "plain.yml", "key: plain\n")
		writeScopeFile(t, dir, "secret.sops.yml", "ciphertext-placeholder\n")

		loader := &Loader{}
		scope, err := loader.LoadDir(context.Background(), dir)
		require.NoError(t, err)
		assert.Len(t, scope, 1)
	})

	t.Run("decryption failure is a ParseError", func(t *testing.T) {
		dir := t.TempDir()
		writeScopeFile(t, dir, "secret.sops.yaml", "ciphertext-placeholder\n")

		loader := &Loader{
			Decryptor: &staticDecryptor{err: errors.New("no key available")},
		}
		_, err := loader.LoadDir(context.Background(), dir)
		require.Error(t, err)

		var parseErr *ParseError
		require.ErrorAs(t, err, &parseErr)
		assert.ErrorContains(t, parseErr, "no key available")
	})
}
