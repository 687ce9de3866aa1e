package commands

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

var (
	configPath       string
	declarationsPath string
	logLevel         string
	noColor          bool
)

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "conduit-meta",
		Short: "Inspect Conduit entity declarations and fetch plans",
		Long: color.CyanString(`conduit-meta - metamodel tooling for Conduit entities

Builds the metamodel from an entity declaration file and lets you inspect it:
  • validate declarations and fetch plans
  • describe entities, inheritance and associations
  • print resolved, merged or ad hoc fetch plans
  • compute change records between two entity states`),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Path to config file (default ./conduit-meta.yaml)")
	flags.StringVarP(&declarationsPath, "declarations", "d", "", "Path to the entity declaration file")
	flags.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(NewValidateCommand())
	rootCmd.AddCommand(NewDescribeCommand())
	rootCmd.AddCommand(NewPlanCommand())
	rootCmd.AddCommand(NewDiffCommand())

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			goVer := GoVersion
			if goVer == "unknown" {
				goVer = runtime.Version()
			}

			titleColor := color.New(color.FgCyan, color.Bold)
			if noColor {
				titleColor.DisableColor()
			}
			out := cmd.OutOrStdout()

			titleColor.Fprint(out, "conduit-meta version: ")
			fmt.Fprintln(out, Version)
			titleColor.Fprint(out, "Git commit: ")
			fmt.Fprintln(out, GitCommit)
			titleColor.Fprint(out, "Build date: ")
			fmt.Fprintln(out, BuildDate)
			titleColor.Fprint(out, "Go version: ")
			fmt.Fprintln(out, goVer)
		},
	}
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errReported) {
			return err
		}
		errorColor := color.New(color.FgRed, color.Bold)
		errorColor.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return err
	}
	return nil
}
