// ABOUTME: Route command shows the supervisor's routing decision without answering
// ABOUTME: Works offline with the keyword classifier when no OpenAI key is set
package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewRouteCmd creates the route command
func NewRouteCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "route <message>",
		Short: "Show which specialist would handle a message",
		Long: `Show which specialist would handle a message.

Prints the routing decision and its rationale without dispatching the
message or changing the session. With --session the decision uses that
session's context, so follow-up overrides are visible.`,
		Example: `  tutor route "Crea un examen sobre álgebra básica"
  tutor route --session sess_20260101_120000_ab12cd34 "¿Está bien explicado?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tutor, _, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer tutor.Close()

			d, err := tutor.Route(commandContext(cmd), sessionID, strings.Join(args, " "))
			if err != nil {
				return err
			}

			if wantJSON() {
				return writeJSON(cmd.OutOrStdout(), d)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Target\t%s\n", d.Target)
			fmt.Fprintf(w, "Rationale\t%s\n", d.Rationale)
			if d.Confidence != nil {
				fmt.Fprintf(w, "Confidence\t%.2f\n", *d.Confidence)
			}
			if d.Topic != "" {
				fmt.Fprintf(w, "Topic\t%s\n", d.Topic)
			}
			var marks []string
			if d.Override {
				marks = append(marks, "context override")
			}
			if d.TieBreak {
				marks = append(marks, "tie-break")
			}
			if d.Fallback {
				marks = append(marks, "fallback")
			}
			if len(marks) > 0 {
				fmt.Fprintf(w, "Notes\t%s\n", strings.Join(marks, ", "))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Session whose context applies")

	return cmd
}
