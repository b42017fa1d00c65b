// ABOUTME: Root command and global flags for the tutor CLI
// ABOUTME: Wires every subcommand and validates --verbose/--quiet
package commands

import (
	"errors"

	"github.com/spf13/cobra"
)

var (
	verbose      bool
	quiet        bool
	outputFormat string
)

const banner = `
████████╗██╗   ██╗████████╗ ██████╗ ██████╗
╚══██╔══╝██║   ██║╚══██╔══╝██╔═══██╗██╔══██╗
   ██║   ██║   ██║   ██║   ██║   ██║██████╔╝
   ██║   ██║   ██║   ██║   ██║   ██║██╔══██╗
   ██║   ╚██████╔╝   ██║   ╚██████╔╝██║  ██║
   ╚═╝    ╚═════╝    ╚═╝    ╚═════╝ ╚═╝  ╚═╝`

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tutor",
		Short: "Math tutoring assistant with a routing supervisor",
		Long: banner + `

A math tutor that routes every question to the right specialist:
an explainer, an exam creator, an answer evaluator or a study planner.
The supervisor keeps per-session context so follow-ups like
"¿Está bien explicado?" reach the evaluator.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if verbose && quiet {
				return errors.New("--verbose and --quiet are mutually exclusive")
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show debug logs including routing decisions")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only print results")
	cmd.PersistentFlags().StringVar(&outputFormat, "format", "auto", "Output format: auto, text, json, yaml or markdown")

	cmd.AddCommand(NewAskCmd())
	cmd.AddCommand(NewChatCmd())
	cmd.AddCommand(NewRouteCmd())
	cmd.AddCommand(NewIngestCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewExportCmd())
	cmd.AddCommand(NewProfileCmd())
	cmd.AddCommand(NewMCPCmd())
	cmd.AddCommand(NewSyncCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}
