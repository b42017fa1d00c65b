// ABOUTME: History command lists tutoring sessions or shows one transcript
// ABOUTME: Transcripts include the routing rationale of every dispatch
package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/harper/tutor/internal/models"
	"github.com/spf13/cobra"
)

// NewHistoryCmd creates the history command
func NewHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [session-id]",
		Short: "List sessions or show a session transcript",
		Long: `List recent tutoring sessions, or show the transcript of one session
with the agent and routing rationale of every dispatch.`,
		Example: `  tutor history
  tutor history --limit 5
  tutor history sess_20260101_120000_ab12cd34`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validatePositiveInt(limit, "limit"); err != nil {
				return err
			}

			tutor, _, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer tutor.Close()

			if len(args) == 1 {
				rec, err := tutor.Transcript(args[0])
				if err != nil {
					return fmt.Errorf("loading session: %w", err)
				}
				if rec == nil {
					return fmt.Errorf("session %s not found", args[0])
				}
				if wantJSON() {
					return writeJSON(cmd.OutOrStdout(), rec)
				}
				printTranscript(cmd, rec)
				return nil
			}

			sessions, err := tutor.Sessions(limit)
			if err != nil {
				return fmt.Errorf("listing sessions: %w", err)
			}
			if wantJSON() {
				return writeJSON(cmd.OutOrStdout(), sessions)
			}
			if len(sessions) == 0 {
				if !quiet {
					fmt.Fprintln(cmd.OutOrStdout(), "No sessions yet. Start one with: tutor chat")
				}
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "SESSION\tTITLE\tTOPIC\tTURNS\tUPDATED\n")
			for _, s := range sessions {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
					s.SessionID, truncate(s.Title, 40), truncate(s.LastTopic, 20), s.UserTurns, formatTime(s.UpdatedAt))
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum sessions to list")

	return cmd
}

func printTranscript(cmd *cobra.Command, rec *models.SessionRecord) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Session %s: %s\n", rec.SessionID, rec.Title)
	if rec.LastTopic != "" {
		fmt.Fprintf(out, "Topic: %s\n", rec.LastTopic)
	}

	lastUserTurn := 0
	for _, turn := range rec.Turns {
		if turn.UserTurn != lastUserTurn {
			fmt.Fprintf(out, "\n[%d] Student: %s\n", turn.UserTurn, turn.Utterance)
			lastUserTurn = turn.UserTurn
		}
		line := fmt.Sprintf("  %d. %s", turn.Cycle, turn.Agent)
		if turn.Rationale != "" {
			line += " (" + turn.Rationale + ")"
		}
		if len(turn.Annotations) > 0 {
			line += " [" + strings.Join(turn.Annotations, ", ") + "]"
		}
		fmt.Fprintln(out, line)
		if turn.Artifact != "" && !quiet {
			fmt.Fprintf(out, "     %s\n", truncate(strings.ReplaceAll(turn.Artifact, "\n", " "), 100))
		}
	}
}
