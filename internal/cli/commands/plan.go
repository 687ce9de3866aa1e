package commands

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/metamodel/internal/orm/fetchplan"
)

var (
	planMerge    []string
	planPaths    []string
	planMaxDepth int
)

// NewPlanCommand creates the plan command
func NewPlanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan <entity> [plan]",
		Short: "Print a resolved fetch plan",
		Long: `Resolve a named fetch plan and print its property graph. Nested plans
already printed are shown as "↺" back references, so cyclic plans terminate.

Plans can be combined with --merge, or built ad hoc from dotted --paths.
Without a plan name or paths, the built-in _local plan is printed.

Examples:
  conduit-meta plan Order order-full
  conduit-meta plan Order order-list --merge order-with-customer
  conduit-meta plan Order --paths number,customer.name,lines.product
  conduit-meta plan Node tree --max-depth 3`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runPlan,
	}

	cmd.Flags().StringSliceVarP(&planMerge, "merge", "m", nil, "Merge further named plans into the result")
	cmd.Flags().StringSliceVarP(&planPaths, "paths", "p", nil, "Dotted property paths to include")
	cmd.Flags().IntVar(&planMaxDepth, "max-depth", 0, "Maximum nesting to print (default fetchplan.max_depth)")

	return cmd
}

func runPlan(cmd *cobra.Command, args []string) error {
	ws, err := loadWorkspace(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = ws.logger.Sync() }()

	class, err := ws.class(cmd, args[0])
	if err != nil {
		return err
	}

	var result *fetchplan.Plan
	add := func(p *fetchplan.Plan) error {
		if result == nil {
			result = p
			return nil
		}
		merged, err := ws.plans.Merge(result, p)
		if err != nil {
			return err
		}
		result = merged
		return nil
	}

	if len(args) == 2 {
		p, err := ws.plan(cmd, class, args[1])
		if err != nil {
			return err
		}
		if err := add(p); err != nil {
			return err
		}
	}
	if len(planPaths) > 0 {
		p, err := fetchplan.BuildPaths(ws.registry, class.Name(), planPaths...)
		if err != nil {
			return err
		}
		if err := add(p); err != nil {
			return err
		}
	}
	for _, name := range planMerge {
		p, err := ws.plan(cmd, class, name)
		if err != nil {
			return err
		}
		if err := add(p); err != nil {
			return err
		}
	}
	if result == nil {
		if result, err = ws.plan(cmd, class, fetchplan.PlanLocal); err != nil {
			return err
		}
	}

	maxDepth := planMaxDepth
	if maxDepth <= 0 {
		maxDepth = ws.cfg.FetchPlan.MaxDepth
	}

	out, err := result.Format(maxDepth)
	fmt.Fprint(cmd.OutOrStdout(), out)
	if errors.Is(err, fetchplan.ErrMaxDepthExceeded) {
		warn := color.New(color.FgYellow)
		if noColor {
			warn.DisableColor()
		}
		warn.Fprintf(cmd.ErrOrStderr(), "⚠️  output truncated at depth %d\n", maxDepth)
		return nil
	}
	return err
}
