package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/cameronsjo/purser/internal/lock"
	"github.com/cameronsjo/purser/internal/ui"
	"github.com/cameronsjo/purser/internal/wiki"
)

var (
	mirrorURL          string
	mirrorProject      string
	mirrorAPIKey       string
	mirrorOutputDir    string
	mirrorExtension    string
	mirrorDeleteStale  bool
	mirrorRewriteLinks bool
	mirrorDryRun       bool
	mirrorDebug        bool
)

// mirrorCmd represents the mirror command.
var mirrorCmd = &cobra.Command{
	Use:   "mirror",
	Short: "Mirror a Redmine project wiki into a local directory",
	Long: `Mirror a Redmine project wiki into a local directory.

This is a one-way mirror: Redmine is the source of truth. Local files are
created, updated, or removed to match the remote wiki state; nothing is ever
pushed back. The main wiki page is written as README.<extension>.

The API key is taken from --api-key, then the REDMINE_API_KEY environment
variable, then an interactive prompt when stdin is a TTY.

Examples:
  purser mirror --url https://redmine.example.com --project myproject \
    --output-dir ./wiki --rewrite-links
  purser mirror --url https://redmine.example.com --project myproject \
    --output-dir ./wiki --dry-run --debug`,
	Run: runMirror,
}

func init() {
	mirrorCmd.Flags().StringVar(&mirrorURL, "url", "", "Redmine base URL (required)")
	mirrorCmd.Flags().StringVar(&mirrorProject, "project", "", "Project identifier (required)")
	mirrorCmd.Flags().StringVar(&mirrorAPIKey, "api-key", "", "Redmine API key")
	mirrorCmd.Flags().StringVarP(&mirrorOutputDir, "output-dir", "o", "", "Local directory for mirrored pages (required)")
	mirrorCmd.Flags().StringVar(&mirrorExtension, "extension", "md", "Filename extension for mirrored pages")
	mirrorCmd.Flags().BoolVar(&mirrorDeleteStale, "delete-stale", true, "Delete local pages no longer present remotely")
	mirrorCmd.Flags().BoolVar(&mirrorRewriteLinks, "rewrite-links", false, "Rewrite wiki links to local filenames")
	mirrorCmd.Flags().BoolVarP(&mirrorDryRun, "dry-run", "n", false, "Report changes without writing")
	mirrorCmd.Flags().BoolVar(&mirrorDebug, "debug", false, "Print the mirror log to stderr")
	mirrorCmd.MarkFlagRequired("url")
	mirrorCmd.MarkFlagRequired("project")
	mirrorCmd.MarkFlagRequired("output-dir")

	rootCmd.AddCommand(mirrorCmd)
}

func runMirror(cmd *cobra.Command, args []string) {
	apiKey, err := resolveAPIKey()
	if err != nil {
		ui.Fatal("%v", err)
	}

	mirror := &wiki.Mirror{
		Client: wiki.NewClient(mirrorURL, apiKey),
		Opts: wiki.Options{
			Project:      mirrorProject,
			OutputDir:    mirrorOutputDir,
			Extension:    mirrorExtension,
			DeleteStale:  mirrorDeleteStale,
			RewriteLinks: mirrorRewriteLinks,
			DryRun:       mirrorDryRun,
		},
	}

	// One mirror per output directory at a time.
	var result *wiki.Result
	err = lock.WithLock(mirrorOutputDir, "mirror", func() error {
		var runErr error
		result, runErr = mirror.Run(context.Background())
		return runErr
	})
	if mirrorDebug && result != nil {
		for _, line := range result.Log {
			fmt.Fprintf(os.Stderr, "  %s\n", line)
		}
	}
	if err != nil {
		ui.Fatal("Mirror failed: %v", err)
	}

	for _, path := range result.Synced {
		ui.Page("synced %s", path)
	}
	for _, path := range result.Deleted {
		ui.Warning("deleted %s", path)
	}

	switch {
	case !result.Changed:
		ui.Success("Wiki already up to date")
	case mirrorDryRun:
		ui.Info("Dry run: %d page(s) would change, %d stale file(s) would be deleted",
			len(result.Synced), len(result.Deleted))
	default:
		ui.Success("Mirrored %d page(s), deleted %d stale file(s)",
			len(result.Synced), len(result.Deleted))
	}
}

// resolveAPIKey finds the Redmine API key: flag, environment, then an
// interactive prompt when stdin is a TTY.
func resolveAPIKey() (string, error) {
	if mirrorAPIKey != "" {
		return mirrorAPIKey, nil
	}
	if key := os.Getenv("REDMINE_API_KEY"); key != "" {
		return key, nil
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("no API key: set --api-key or REDMINE_API_KEY")
	}

	fmt.Fprint(os.Stderr, "Redmine API key: ")
	key, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read API key: %w", err)
	}
	if len(key) == 0 {
		return "", fmt.Errorf("empty API key")
	}
	return string(key), nil
}
