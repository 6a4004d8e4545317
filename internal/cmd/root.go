// Package cmd provides the CLI commands for purser.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "purser",
	Short: "Inventory variable consolidation and wiki mirroring",
	Long: `purser - the ship's bookkeeper

Consolidates list-typed variables across multi-environment inventories and
mirrors project wikis into local files.

CONSOLIDATE
  consolidate <var>     Merge role and inventory scopes per environment,
                        resolve templates, and concatenate <var> across
                        all environments
    --inventory-dir     Root directory of per-environment inventories
    --roles-dir         Directory containing roles (defaults/ and vars/)
    --format            Output format: yaml or json
    --debug             Print the diagnostic trace to stderr

MIRROR
  mirror                One-way mirror of a Redmine project wiki
    --url               Redmine base URL
    --project           Project identifier
    --output-dir        Local directory for mirrored pages
    --api-key           API key (or REDMINE_API_KEY, or TTY prompt)
    --rewrite-links     Rewrite wiki links to local filenames
    --dry-run           Report changes without writing

MAINTENANCE
  update                Update purser to the latest release
    --check             Check without installing`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetVersionTemplate("purser version {{.Version}}\n")
}
