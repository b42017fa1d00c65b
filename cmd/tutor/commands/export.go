// ABOUTME: Export command writes sessions and ingested documents to a file
// ABOUTME: Format follows --format or the output extension: yaml, markdown or json
package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/harper/tutor/internal/storage/sqlite"
	"github.com/spf13/cobra"
)

// NewExportCmd creates the export command
func NewExportCmd() *cobra.Command {
	var output string
	var withEmbeddings bool

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export sessions and documents",
		Long: `Export all tutoring sessions and ingested documents.

The format is taken from --format when set, otherwise from the output
file extension (.yaml, .md, .json). Requires the sqlite backend.`,
		Example: `  tutor export --output tutor.yaml
  tutor export --output sesiones.md
  tutor export --format json --output embeddings.json --embeddings`,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := exportFormat(output, withEmbeddings)
			if err != nil {
				return err
			}

			tutor, _, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer tutor.Close()

			store, ok := tutor.Store().(*sqlite.Storage)
			if !ok {
				return fmt.Errorf("export requires the sqlite backend (TUTOR_BACKEND=sqlite)")
			}

			switch format {
			case "yaml":
				err = store.ExportToYAML(output)
			case "markdown":
				err = store.ExportToMarkdown(output)
			case "json":
				err = store.ExportEmbeddingsToJSON(output)
			}
			if err != nil {
				return fmt.Errorf("export failed: %w", err)
			}

			if !quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %s to %s\n", format, output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "tutor-export.yaml", "Output file")
	cmd.Flags().BoolVar(&withEmbeddings, "embeddings", false, "Export embeddings as JSON instead of transcripts")

	return cmd
}

// exportFormat resolves the export format from flags and the output path
func exportFormat(output string, embeddings bool) (string, error) {
	if embeddings {
		return "json", nil
	}

	format := outputFormat
	if format == "" || format == "auto" || format == "text" {
		switch strings.ToLower(filepath.Ext(output)) {
		case ".md", ".markdown":
			format = "markdown"
		case ".json":
			format = "json"
		default:
			format = "yaml"
		}
	}

	switch format {
	case "yaml", "markdown":
		return format, nil
	case "json":
		return "", fmt.Errorf("json export is only available for embeddings (use --embeddings)")
	default:
		return "", fmt.Errorf("unsupported export format %q", format)
	}
}
