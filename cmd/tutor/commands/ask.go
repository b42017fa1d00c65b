// ABOUTME: Ask command runs one question through the supervisor
// ABOUTME: Prints the consolidated reply; --session continues a conversation
package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/harper/tutor/internal/core"
	"github.com/spf13/cobra"
)

// NewAskCmd creates the ask command
func NewAskCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask the tutor a single question",
		Long: `Ask the tutor a single question.

The supervisor classifies the question, dispatches it to the right
specialist and may follow up with the evaluator before answering.
Use --session to continue an earlier conversation.`,
		Example: `  tutor ask "Explícame el teorema de Pitágoras"
  tutor ask --session sess_20260101_120000_ab12cd34 "¿Está bien explicado?"
  tutor ask --format json "Crea un examen sobre álgebra básica"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tutor, _, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer tutor.Close()

			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			reply, err := tutor.Ask(ctx, sessionID, strings.Join(args, " "))
			if err != nil {
				return err
			}
			return printReply(cmd.OutOrStdout(), cmd.ErrOrStderr(), reply)
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Session ID to continue")

	return cmd
}

// printReply writes a reply in the selected output format
func printReply(out, errOut io.Writer, reply *core.Reply) error {
	if wantJSON() {
		return writeJSON(out, reply)
	}

	fmt.Fprintln(out, reply.Text)
	if verbose {
		fmt.Fprintf(errOut, "\nRoute: %s\n", routePath(reply))
	}
	if !quiet {
		fmt.Fprintf(errOut, "\n[session %s, turn %d]\n", reply.SessionID, reply.UserTurn)
	}
	return nil
}

// routePath renders the dispatched agents, e.g. "math_expert → evaluator → FINISH"
func routePath(reply *core.Reply) string {
	agents := make([]string, 0, len(reply.Decisions))
	for _, d := range reply.Decisions {
		agents = append(agents, string(d.Target))
	}
	return strings.Join(agents, " → ")
}

// commandContext returns the command context, or Background when unset
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
