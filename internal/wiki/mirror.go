package wiki

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cameronsjo/purser/internal/fileutil"
)

// Options configures one mirror run.
type Options struct {
	// Project is the Redmine project identifier. Required.
	Project string

	// OutputDir receives the mirrored pages. Required.
	OutputDir string

	// Extension is the filename extension for mirrored pages (default "md").
	Extension string

	// DeleteStale removes local pages that no longer exist remotely.
	DeleteStale bool

	// RewriteLinks converts Redmine wiki links to local markdown links.
	RewriteLinks bool

	// DryRun reports would-be changes without touching the filesystem.
	DryRun bool
}

// Result reports what a mirror run changed.
type Result struct {
	Changed bool
	Synced  []string
	Deleted []string
	Log     []string
}

func (r *Result) logf(format string, args ...any) {
	r.Log = append(r.Log, fmt.Sprintf(format, args...))
}

// Mirror performs one-way synchronization of a project wiki to disk.
type Mirror struct {
	Client *Client
	Opts   Options
}

// Run mirrors every indexed page into the output directory, writing only
// files whose content differs, and optionally deleting local pages that no
// longer exist remotely.
func (m *Mirror) Run(ctx context.Context) (*Result, error) {
	ext := m.Opts.Extension
	if ext == "" {
		ext = "md"
	}

	result := &Result{}

	index, err := m.Client.Index(ctx, m.Opts.Project)
	if err != nil {
		return nil, err
	}
	result.logf("indexed %d pages in project %s", len(index), m.Opts.Project)

	// Title -> filename for every page up front, so link rewriting can map
	// any internal reference.
	mapping := make(map[string]string, len(index))
	for _, stub := range index {
		if stub.Title == "" {
			continue
		}
		mapping[stub.Title] = FilenameForTitle(stub.Title, ext)
	}

	if !m.Opts.DryRun {
		if err := os.MkdirAll(m.Opts.OutputDir, 0755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}

	seen := make(map[string]bool, len(index))
	for _, stub := range index {
		if stub.Title == "" {
			result.logf("skipping index entry with no title")
			continue
		}

		filename := mapping[stub.Title]
		seen[filename] = true

		page, err := m.Client.Page(ctx, m.Opts.Project, stub.Title)
		if err != nil {
			return nil, fmt.Errorf("page %q: %w", stub.Title, err)
		}

		content := page.Text
		if m.Opts.RewriteLinks {
			content = rewriteLinks(content, m.Opts.Project, mapping, ext)
		}

		path := filepath.Join(m.Opts.OutputDir, filename)
		old, err := fileutil.ReadFileIfExists(path)
		if err != nil {
			return nil, fmt.Errorf("read existing %s: %w", path, err)
		}

		if old != nil && bytes.Equal(old, []byte(content)) {
			result.logf("no change for %s", path)
			continue
		}

		result.logf("writing %q -> %s", stub.Title, path)
		if !m.Opts.DryRun {
			if err := fileutil.WriteFileAtomic(path, []byte(content), 0644); err != nil {
				return nil, fmt.Errorf("write %s: %w", path, err)
			}
		}
		result.Changed = true
		result.Synced = append(result.Synced, path)
	}

	if m.Opts.DeleteStale {
		if err := m.deleteStale(result, seen, ext); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// deleteStale removes mirrored files that no indexed page produced.
func (m *Mirror) deleteStale(result *Result, seen map[string]bool, ext string) error {
	matches, err := filepath.Glob(filepath.Join(m.Opts.OutputDir, "*."+ext))
	if err != nil {
		return fmt.Errorf("scan for stale files: %w", err)
	}

	for _, path := range matches {
		if seen[filepath.Base(path)] {
			continue
		}
		result.logf("deleting stale file %s", path)
		if !m.Opts.DryRun {
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("delete stale %s: %w", path, err)
			}
		}
		result.Changed = true
		result.Deleted = append(result.Deleted, path)
	}
	return nil
}

// FilenameForTitle returns the local filename for a wiki page title. The main
// wiki page (titled "wiki") maps to README.<ext> so repositories consuming
// the mirror get a landing page.
func FilenameForTitle(title, extension string) string {
	if strings.EqualFold(strings.TrimSpace(title), "wiki") {
		return "README." + extension
	}
	return defaultFilename(title, extension)
}

func defaultFilename(title, extension string) string {
	safe := strings.ToLower(strings.ReplaceAll(title, " ", "_"))
	return safe + "." + extension
}
