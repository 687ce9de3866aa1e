package commands

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/metamodel/internal/cli/ui"
)

// NewValidateCommand creates the validate command
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate entity declarations and fetch plans",
		Long: `Build the metamodel from the declaration file and resolve every
declared fetch plan. Exits non-zero on the first configuration error.

Examples:
  conduit-meta validate
  conduit-meta validate -d model/entities.yaml`,
		Args: cobra.NoArgs,
		RunE: runValidate,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	ws, err := loadWorkspace(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = ws.logger.Sync() }()

	if err := ws.plans.Preload(); err != nil {
		return ws.invalid(cmd, err)
	}

	out := cmd.OutOrStdout()
	stats := ws.registry.Stats()
	fmt.Fprintln(out, ui.Success(fmt.Sprintf("%s: %d entities in %d stores, %d fetch plans",
		ws.path, stats.TotalClasses, stats.Stores, ws.catalog.Count()), noColor))

	if cycles := ws.registry.AssociationCycles(); len(cycles) > 0 {
		info := color.New(color.FgCyan)
		if noColor {
			info.DisableColor()
		}
		for _, cycle := range cycles {
			info.Fprintf(out, "  association cycle: %s -> %s\n", strings.Join(cycle, " -> "), cycle[0])
		}
	}
	return nil
}
