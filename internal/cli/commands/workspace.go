package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/metamodel/internal/cli/config"
	"github.com/conduit-lang/metamodel/internal/cli/ui"
	"github.com/conduit-lang/metamodel/internal/logging"
	"github.com/conduit-lang/metamodel/internal/orm/declare"
	"github.com/conduit-lang/metamodel/internal/orm/fetchplan"
	"github.com/conduit-lang/metamodel/internal/orm/schema"
)

// errReported marks a failure whose diagnostic was already written
var errReported = errors.New("see above")

// workspace is a built metamodel plus the configuration that produced it
type workspace struct {
	cfg      *config.Config
	logger   *zap.Logger
	path     string
	decls    []declare.EntityDeclaration
	catalog  *declare.Catalog
	registry *schema.Registry
	plans    *fetchplan.Repository
}

func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if declarationsPath != "" {
		cfg.Declarations.Path = declarationsPath
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

// loadWorkspace reads the configuration and declarations and builds the
// registry and plan repository. Diagnostics are written to the command's
// error stream.
func loadWorkspace(cmd *cobra.Command) (*workspace, error) {
	cfg, err := loadConfig()
	if err != nil {
		ui.ConfigProblem(err, noColor).Write(cmd.ErrOrStderr())
		return nil, errReported
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		ui.ConfigProblem(err, noColor).Write(cmd.ErrOrStderr())
		return nil, errReported
	}

	ws := &workspace{cfg: cfg, logger: logger, path: cfg.Declarations.Path}

	ws.decls, err = declare.NewYAMLFileProvider(ws.path).Declarations()
	if err != nil {
		return nil, ws.invalid(cmd, err)
	}

	ws.catalog, err = declare.NewCatalog(ws.decls)
	if err != nil {
		return nil, ws.invalid(cmd, err)
	}

	ws.registry, err = schema.Init(declare.StaticProvider(ws.decls), schema.WithLogger(logger))
	if err != nil {
		return nil, ws.invalid(cmd, err)
	}

	ws.plans = fetchplan.NewRepository(ws.registry, ws.catalog, fetchplan.WithLogger(logger))
	return ws, nil
}

func (ws *workspace) invalid(cmd *cobra.Command, err error) error {
	ui.InvalidDeclarations(ws.path, problems(err), noColor).Write(cmd.ErrOrStderr())
	return errReported
}

// class resolves a class name, reporting unknown names with suggestions
func (ws *workspace) class(cmd *cobra.Command, name string) (*schema.ClassDescriptor, error) {
	class, err := ws.registry.Class(name)
	if err != nil {
		if schema.IsUnknownEntity(err) {
			ui.UnknownEntity(name, ws.registry.Names(), noColor).Write(cmd.ErrOrStderr())
			return nil, errReported
		}
		return nil, err
	}
	return class, nil
}

// plan resolves a named plan, reporting unknown names with suggestions
func (ws *workspace) plan(cmd *cobra.Command, class *schema.ClassDescriptor, name string) (*fetchplan.Plan, error) {
	plan, err := ws.plans.FetchPlan(class.Name(), name)
	if err != nil {
		var unknown *fetchplan.UnknownPlanError
		if errors.As(err, &unknown) && unknown.Plan == name {
			ui.UnknownPlan(class.Name(), name, ws.planNames(class), noColor).Write(cmd.ErrOrStderr())
			return nil, errReported
		}
		return nil, err
	}
	return plan, nil
}

// planNames lists the plans usable on class: built-ins, then those declared
// on the class and its ancestors
func (ws *workspace) planNames(class *schema.ClassDescriptor) []string {
	names := []string{fetchplan.PlanLocal, fetchplan.PlanMinimal, fetchplan.PlanBase}
	seen := make(map[string]bool)
	for c := class; c != nil; c = c.Ancestor() {
		for _, name := range ws.catalog.Names(c.Name()) {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}

// problems flattens joined errors into one line each
func problems(err error) []string {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		var result []string
		for _, e := range joined.Unwrap() {
			result = append(result, problems(e)...)
		}
		return result
	}
	return []string{fmt.Sprint(err)}
}
