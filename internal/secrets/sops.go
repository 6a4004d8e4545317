// Package secrets decrypts SOPS-encrypted scope files.
package secrets

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// SOPS decrypts files by shelling out to the sops binary, which handles all
// key backends (age, PGP, KMS) without purser needing any of their SDKs.
type SOPS struct{}

// NewSOPS creates a SOPS decryptor.
func NewSOPS() *SOPS {
	return &SOPS{}
}

// Decrypt decrypts a SOPS-encrypted YAML file and returns the plaintext as
// JSON bytes, which parse cleanly as YAML downstream.
func (s *SOPS) Decrypt(ctx context.Context, file string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "sops", "--input-type", "yaml", "--output-type", "json", "-d", file)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("sops decrypt failed for %s: %w: %s", file, err, stderr.String())
	}
	return stdout.Bytes(), nil
}
