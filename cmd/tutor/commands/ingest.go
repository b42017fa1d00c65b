// ABOUTME: Ingest command loads study material into the passage store
// ABOUTME: Accepts files, directories and http(s) URLs; HTML is converted to Markdown
package commands

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/harper/tutor/internal/engine"
	"github.com/harper/tutor/internal/ingest"
	"github.com/harper/tutor/internal/models"
	"github.com/spf13/cobra"
)

var ingestExtensions = []string{".md", ".markdown", ".txt", ".html", ".htm"}

// NewIngestCmd creates the ingest command
func NewIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <file|dir|url>...",
		Short: "Add study material for retrieval",
		Long: `Add study material for retrieval.

Documents are split into paragraphs and sentences and stored so the
tutor can cite them. Paragraphs are embedded when OPENAI_API_KEY is set;
otherwise keyword search is used. Directories are scanned for
.md, .txt and .html files.`,
		Example: `  tutor ingest apuntes/derivadas.md
  tutor ingest apuntes/
  tutor ingest https://es.wikipedia.org/wiki/Teorema_de_Pit%C3%A1goras`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tutor, logger, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer tutor.Close()

			docs, err := loadSources(cmd, args)
			if err != nil {
				return err
			}

			var results []*engine.IngestResult
			for _, doc := range docs {
				res, err := tutor.Ingest(commandContext(cmd), doc)
				if err != nil {
					return fmt.Errorf("ingesting %s: %w", doc.Source, err)
				}
				logger.Debug("ingested", "source", doc.Source, "chunks", res.Chunks)
				results = append(results, res)
			}

			if wantJSON() {
				return writeJSON(cmd.OutOrStdout(), results)
			}
			if !quiet {
				for _, res := range results {
					fmt.Fprintf(cmd.OutOrStdout(), "✓ %s (%d chunks, %d embedded)\n", truncate(res.Title, 50), res.Chunks, res.Embedded)
				}
			}
			return nil
		},
	}

	return cmd
}

// loadSources expands the arguments into documents
func loadSources(cmd *cobra.Command, args []string) ([]*models.Document, error) {
	var docs []*models.Document
	for _, arg := range args {
		if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
			doc, err := ingest.LoadURL(commandContext(cmd), arg)
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
			continue
		}

		err := filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if path != arg && !containsString(ingestExtensions, strings.ToLower(filepath.Ext(path))) {
				return nil
			}
			doc, err := ingest.LoadFile(path)
			if err != nil {
				return err
			}
			docs = append(docs, doc)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("no study material found in %s", strings.Join(args, ", "))
	}
	return docs, nil
}
