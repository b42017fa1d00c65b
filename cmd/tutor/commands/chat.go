// ABOUTME: Chat command runs an interactive tutoring session on stdin
// ABOUTME: Every line is one user turn of the same session
package commands

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/harper/tutor/internal/core"
	"github.com/spf13/cobra"
)

var exitWords = []string{"salir", "exit", "quit", "/salir", "/exit"}

// NewChatCmd creates the chat command
func NewChatCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive tutoring session",
		Long: `Start an interactive tutoring session.

Each line you type is sent to the tutor within the same session, so
follow-ups such as "¿Está bien explicado?" refer to the previous answer.
Type "salir" or press Ctrl-D to leave.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			tutor, logger, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer tutor.Close()

			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				if !quiet {
					fmt.Fprint(out, "tú> ")
				}
				if !scanner.Scan() {
					break
				}
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				if containsString(exitWords, strings.ToLower(line)) {
					break
				}

				reply, err := tutor.Ask(ctx, sessionID, line)
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					if errors.Is(err, core.ErrEmptyUtterance) {
						continue
					}
					return err
				}
				sessionID = reply.SessionID

				fmt.Fprintf(out, "\n%s\n\n", reply.Text)
				logger.Debug("turn routed", "session", reply.SessionID, "route", routePath(reply))
			}

			if sessionID != "" && !quiet {
				fmt.Fprintf(cmd.ErrOrStderr(), "Session saved: %s\n", sessionID)
			}
			return scanner.Err()
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Session ID to continue")

	return cmd
}
