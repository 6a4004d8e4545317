package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cameronsjo/purser/internal/secrets"
	"github.com/cameronsjo/purser/internal/ui"
	"github.com/cameronsjo/purser/internal/vars"
)

var (
	consolidateInventoryDir string
	consolidateRolesDir     string
	consolidateFormat       string
	consolidateDebug        bool
)

// consolidateCmd represents the consolidate command.
var consolidateCmd = &cobra.Command{
	Use:   "consolidate <target-var>",
	Short: "Consolidate a list-typed variable across all environments",
	Long: `Consolidate a list-typed variable across all inventory environments.

For every environment under --inventory-dir (in lexicographic order), purser
merges the shared role scopes with the environment's group_vars and host_vars
under the precedence [role defaults, role vars, group, host], resolves all
{{ ... }} template expressions, and concatenates the target variable's
elements into one list, printed to stdout.

Examples:
  purser consolidate rproxy_setup_sites --inventory-dir inventory --roles-dir roles
  purser consolidate sites --inventory-dir inventory --format json --debug`,
	Args: cobra.ExactArgs(1),
	Run:  runConsolidate,
}

func init() {
	consolidateCmd.Flags().StringVarP(&consolidateInventoryDir, "inventory-dir", "i", "", "Root directory of per-environment inventories (required)")
	consolidateCmd.Flags().StringVarP(&consolidateRolesDir, "roles-dir", "r", "", "Directory containing roles")
	consolidateCmd.Flags().StringVarP(&consolidateFormat, "format", "f", "yaml", "Output format: yaml or json")
	consolidateCmd.Flags().BoolVar(&consolidateDebug, "debug", false, "Print the diagnostic trace to stderr")
	consolidateCmd.MarkFlagRequired("inventory-dir")

	rootCmd.AddCommand(consolidateCmd)
}

func runConsolidate(cmd *cobra.Command, args []string) {
	targetVar := args[0]
	trace := vars.NewTrace()

	aggregate, err := vars.Consolidate(context.Background(), vars.Options{
		InventoryDir: consolidateInventoryDir,
		RolesDir:     consolidateRolesDir,
		TargetVar:    targetVar,
		Decryptor:    secrets.NewSOPS(),
		Trace:        trace,
	})
	if consolidateDebug {
		printTrace(trace)
	}
	if err != nil {
		ui.Fatal("Consolidation failed: %v", err)
	}

	out, err := marshalAggregate(aggregate, consolidateFormat)
	if err != nil {
		ui.Fatal("%v", err)
	}
	fmt.Print(string(out))

	if consolidateDebug {
		ui.Ledger("%s: %d elements", targetVar, len(aggregate))
	}
}

func marshalAggregate(aggregate []any, format string) ([]byte, error) {
	switch format {
	case "yaml":
		return yaml.Marshal(aggregate)
	case "json":
		out, err := json.MarshalIndent(aggregate, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(out, '\n'), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want yaml or json)", format)
	}
}

func printTrace(trace *vars.Trace) {
	fmt.Fprintf(os.Stderr, "run %s\n", trace.RunID)
	for _, note := range trace.Notes() {
		fmt.Fprintf(os.Stderr, "  %s\n", note)
	}
}
