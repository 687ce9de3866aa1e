package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/metamodel/internal/cli/ui"
	"github.com/conduit-lang/metamodel/internal/orm/schema"
)

// NewDescribeCommand creates the describe command
func NewDescribeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "describe [entity]",
		Short: "Describe the metamodel or one entity",
		Long: `Without arguments, list every entity with its ancestor, store and
property counts. With an entity name, show its properties (inherited ones
included), descendants and fetch plans.

Examples:
  conduit-meta describe
  conduit-meta describe Order`,
		Args: cobra.MaximumNArgs(1),
		RunE: runDescribe,
	}
}

func runDescribe(cmd *cobra.Command, args []string) error {
	ws, err := loadWorkspace(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = ws.logger.Sync() }()

	if len(args) == 0 {
		describeRegistry(cmd, ws)
		return nil
	}

	class, err := ws.class(cmd, args[0])
	if err != nil {
		return err
	}
	return describeClass(cmd, ws, class)
}

func describeRegistry(cmd *cobra.Command, ws *workspace) {
	out := cmd.OutOrStdout()

	table := ui.NewTable(out, noColor, "ENTITY", "EXTENDS", "STORE", "PROPERTIES", "PLANS")
	for _, class := range ws.registry.Classes() {
		extends := ""
		if class.Ancestor() != nil {
			extends = class.Ancestor().Name()
		}
		table.AddRow(
			class.Name(),
			extends,
			class.Store(),
			strconv.Itoa(len(class.Properties())),
			strconv.Itoa(len(ws.catalog.Names(class.Name()))),
		)
	}
	table.Render()

	stats := ws.registry.Stats()
	fmt.Fprintf(out, "\n%d entities, %d properties (%d associations, %d collections), %d stores\n",
		stats.TotalClasses, stats.TotalProperties, stats.TotalAssociations, stats.TotalCollections, stats.Stores)

	report := ws.registry.AnalyzeAssociations()
	if len(report.SelfRefs) > 0 {
		fmt.Fprintf(out, "self-referencing: %s\n", strings.Join(report.SelfRefs, ", "))
	}
	for _, cycle := range report.Cycles {
		fmt.Fprintf(out, "association cycle: %s -> %s\n", strings.Join(cycle, " -> "), cycle[0])
	}
}

func describeClass(cmd *cobra.Command, ws *workspace, class *schema.ClassDescriptor) error {
	out := cmd.OutOrStdout()

	title := color.New(color.FgCyan, color.Bold)
	if noColor {
		title.DisableColor()
	}
	title.Fprintln(out, class.Name())

	kv := ui.NewKeyValueTable(out, noColor)
	kv.AddRow("Store", class.Store())
	if class.Ancestor() != nil {
		var chain []string
		for _, a := range class.Ancestors() {
			chain = append(chain, a.Name())
		}
		kv.AddRow("Extends", strings.Join(chain, " -> "))
	}
	if pk := class.PrimaryKey(); pk != nil {
		kv.AddRow("Primary key", pk.Name())
	}
	descendants, err := ws.registry.Descendants(class.Name())
	if err != nil {
		return err
	}
	if len(descendants) > 0 {
		var names []string
		for _, d := range descendants {
			names = append(names, d.Name())
		}
		kv.AddRow("Descendants", strings.Join(names, ", "))
	}
	kv.Render()
	fmt.Fprintln(out)

	table := ui.NewTable(out, noColor, "PROPERTY", "TYPE", "FLAGS", "DECLARED BY")
	for _, p := range class.Properties() {
		table.AddRow(p.Name(), p.Range().String(), propertyFlags(p), p.DeclaringClass().Name())
	}
	table.Render()

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Fetch plans: %s\n", strings.Join(ws.planNames(class), ", "))
	return nil
}

func propertyFlags(p *schema.PropertyDescriptor) string {
	var flags []string
	if p.Mandatory() {
		flags = append(flags, "mandatory")
	}
	if p.ReadOnly() {
		flags = append(flags, "read-only")
	}
	if !p.Persistent() {
		flags = append(flags, "transient")
	}
	if p.CrossStore() {
		flags = append(flags, "cross-store")
	}
	return strings.Join(flags, ",")
}
