// ABOUTME: CLI command to view and update the student profile
// ABOUTME: The profile personalizes explanations, exams and study plans
package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/harper/tutor/internal/models"
	"github.com/spf13/cobra"
)

// NewProfileCmd creates the profile command
func NewProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "View and manage the student profile",
		Long: `View and manage the student profile.

The profile stores the student's name, level, mastered topics,
difficulty areas and preferences. The tutor also updates it in the
background from what the student says.`,
		Example: `  tutor profile
  tutor profile --format json
  tutor profile set --name "Ana" --level intermedio
  tutor profile set --difficulty "integrales por partes"`,
		RunE: runProfileShow,
	}

	cmd.AddCommand(newProfileSetCmd())

	return cmd
}

func newProfileSetCmd() *cobra.Command {
	var (
		name        string
		level       string
		mastered    []string
		difficulty  []string
		preferences []string
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update profile fields",
		Long: `Update profile fields. List flags add entries and can be repeated.

Levels: principiante, intermedio, avanzado.`,
		Example: `  tutor profile set --name "Ana"
  tutor profile set --mastered "ecuaciones lineales" --mastered "fracciones"
  tutor profile set --preference "ejemplos visuales"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if level != "" && !models.ValidLevel(level) {
				return fmt.Errorf("invalid level %q (use %s, %s or %s)", level,
					models.LevelBeginner, models.LevelIntermediate, models.LevelAdvanced)
			}

			fields := map[string]interface{}{}
			if name != "" {
				fields["name"] = name
			}
			if level != "" {
				fields["level"] = level
			}
			addList(fields, "mastered_topics", mastered)
			addList(fields, "difficulty_areas", difficulty)
			addList(fields, "preferences", preferences)
			if len(fields) == 0 {
				return fmt.Errorf("nothing to update: pass --name, --level, --mastered, --difficulty or --preference")
			}

			tutor, _, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer tutor.Close()

			profile, err := tutor.UpdateProfile(fields)
			if err != nil {
				return err
			}
			if wantJSON() {
				return writeJSON(cmd.OutOrStdout(), profile)
			}
			if !quiet {
				fmt.Fprintln(cmd.OutOrStdout(), "Profile updated")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Student name")
	cmd.Flags().StringVar(&level, "level", "", "Level: principiante, intermedio or avanzado")
	cmd.Flags().StringArrayVar(&mastered, "mastered", nil, "Add a mastered topic (can be repeated)")
	cmd.Flags().StringArrayVar(&difficulty, "difficulty", nil, "Add a difficulty area (can be repeated)")
	cmd.Flags().StringArrayVar(&preferences, "preference", nil, "Add a learning preference (can be repeated)")

	return cmd
}

func runProfileShow(cmd *cobra.Command, args []string) error {
	tutor, _, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer tutor.Close()

	profile, err := tutor.Profile()
	if err != nil {
		return fmt.Errorf("loading profile: %w", err)
	}
	if wantJSON() {
		return writeJSON(cmd.OutOrStdout(), profile)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Name:\t%s\n", orNone(profile.Name))
	fmt.Fprintf(w, "Level:\t%s\n", profile.Level)
	fmt.Fprintf(w, "Mastered:\t%s\n", orNone(strings.Join(profile.MasteredTopics, ", ")))
	fmt.Fprintf(w, "Difficulties:\t%s\n", orNone(strings.Join(profile.DifficultyAreas, ", ")))
	fmt.Fprintf(w, "Preferences:\t%s\n", orNone(strings.Join(profile.Preferences, ", ")))
	if !profile.LastUpdated.IsZero() {
		fmt.Fprintf(w, "Updated:\t%s\n", formatTime(profile.LastUpdated))
	}
	return w.Flush()
}

func addList(fields map[string]interface{}, key string, values []string) {
	if len(values) == 0 {
		return
	}
	items := make([]interface{}, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			items = append(items, v)
		}
	}
	if len(items) > 0 {
		fields[key] = items
	}
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
