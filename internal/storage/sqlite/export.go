// ABOUTME: Export functionality for tutor data
// ABOUTME: Supports YAML and Markdown transcript export plus JSON embeddings
package sqlite

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ExportData represents the complete exportable data structure
type ExportData struct {
	Version    string           `yaml:"version" json:"version"`
	ExportedAt string           `yaml:"exported_at" json:"exported_at"`
	Tool       string           `yaml:"tool" json:"tool"`
	Sessions   []ExportSession  `yaml:"sessions,omitempty" json:"sessions,omitempty"`
	Documents  []ExportDocument `yaml:"documents,omitempty" json:"documents,omitempty"`
	Embeddings string           `yaml:"embeddings_file,omitempty" json:"embeddings_file,omitempty"`
}

// ExportSession represents a session transcript for export
type ExportSession struct {
	SessionID string       `yaml:"session_id" json:"session_id"`
	Title     string       `yaml:"title" json:"title"`
	LastTopic string       `yaml:"last_topic,omitempty" json:"last_topic,omitempty"`
	Status    string       `yaml:"status" json:"status"`
	CreatedAt string       `yaml:"created_at" json:"created_at"`
	Turns     []ExportTurn `yaml:"turns" json:"turns"`
}

// ExportTurn represents one dispatch cycle for export
type ExportTurn struct {
	TurnID      string   `yaml:"turn_id" json:"turn_id"`
	UserTurn    int      `yaml:"user_turn" json:"user_turn"`
	Cycle       int      `yaml:"cycle" json:"cycle"`
	Utterance   string   `yaml:"utterance" json:"utterance"`
	Agent       string   `yaml:"agent" json:"agent"`
	Rationale   string   `yaml:"rationale,omitempty" json:"rationale,omitempty"`
	Artifact    string   `yaml:"artifact,omitempty" json:"artifact,omitempty"`
	Satisfied   bool     `yaml:"satisfied" json:"satisfied"`
	Annotations []string `yaml:"annotations,omitempty" json:"annotations,omitempty"`
	Timestamp   string   `yaml:"timestamp" json:"timestamp"`
}

// ExportDocument represents an ingested document for export
type ExportDocument struct {
	DocumentID string `yaml:"document_id" json:"document_id"`
	Source     string `yaml:"source" json:"source"`
	Title      string `yaml:"title,omitempty" json:"title,omitempty"`
	Chunks     int    `yaml:"chunks" json:"chunks"`
	CreatedAt  string `yaml:"created_at" json:"created_at"`
}

// Export exports all data from storage
func (s *Storage) Export() (*ExportData, error) {
	data := &ExportData{
		Version:    "1.0",
		ExportedAt: time.Now().Format(time.RFC3339),
		Tool:       "tutor",
	}

	sessions, err := s.ListSessions(0)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	for _, summary := range sessions {
		rec, err := s.LoadSession(summary.SessionID)
		if err != nil || rec == nil {
			continue
		}

		exportSession := ExportSession{
			SessionID: rec.SessionID,
			Title:     rec.Title,
			LastTopic: rec.LastTopic,
			Status:    string(rec.Status),
			CreatedAt: rec.CreatedAt.Format(time.RFC3339),
			Turns:     make([]ExportTurn, 0, len(rec.Turns)),
		}

		for _, turn := range rec.Turns {
			exportSession.Turns = append(exportSession.Turns, ExportTurn{
				TurnID:      turn.TurnID,
				UserTurn:    turn.UserTurn,
				Cycle:       turn.Cycle,
				Utterance:   turn.Utterance,
				Agent:       string(turn.Agent),
				Rationale:   turn.Rationale,
				Artifact:    turn.Artifact,
				Satisfied:   turn.Satisfied,
				Annotations: turn.Annotations,
				Timestamp:   turn.Timestamp.Format(time.RFC3339),
			})
		}

		data.Sessions = append(data.Sessions, exportSession)
	}

	docs, err := s.ListDocuments()
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	for _, doc := range docs {
		chunks, err := s.documents.GetChunks(doc.DocumentID)
		if err != nil {
			return nil, fmt.Errorf("failed to list chunks: %w", err)
		}
		data.Documents = append(data.Documents, ExportDocument{
			DocumentID: doc.DocumentID,
			Source:     doc.Source,
			Title:      doc.Title,
			Chunks:     len(chunks),
			CreatedAt:  doc.CreatedAt.Format(time.RFC3339),
		})
	}

	return data, nil
}

// ExportToYAML exports data to a YAML file
func (s *Storage) ExportToYAML(outputPath string) error {
	data, err := s.Export()
	if err != nil {
		return err
	}

	file, err := createOutput(outputPath)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	encoder := yaml.NewEncoder(file)
	encoder.SetIndent(2)
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}

	return nil
}

// ExportToMarkdown exports data to a Markdown file
func (s *Storage) ExportToMarkdown(outputPath string) error {
	data, err := s.Export()
	if err != nil {
		return err
	}

	file, err := createOutput(outputPath)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	_, _ = fmt.Fprintf(file, "# Tutor Export - %s\n\n", time.Now().Format("2006-01-02"))
	_, _ = fmt.Fprintf(file, "Generated: %s\n\n", data.ExportedAt)

	if len(data.Documents) > 0 {
		_, _ = fmt.Fprintln(file, "## Documents")
		_, _ = fmt.Fprintln(file)
		_, _ = fmt.Fprintln(file, "| Title | Source | Chunks |")
		_, _ = fmt.Fprintln(file, "|-------|--------|--------|")
		for _, doc := range data.Documents {
			_, _ = fmt.Fprintf(file, "| %s | %s | %d |\n", doc.Title, doc.Source, doc.Chunks)
		}
		_, _ = fmt.Fprintln(file)
	}

	if len(data.Sessions) > 0 {
		_, _ = fmt.Fprintln(file, "## Sessions")
		_, _ = fmt.Fprintln(file)
		for _, sess := range data.Sessions {
			_, _ = fmt.Fprintf(file, "### %s (%s)\n\n", sess.Title, sess.Status)
			if sess.LastTopic != "" {
				_, _ = fmt.Fprintf(file, "*Topic: %s*\n\n", sess.LastTopic)
			}
			lastUserTurn := 0
			for _, turn := range sess.Turns {
				if turn.UserTurn != lastUserTurn {
					_, _ = fmt.Fprintf(file, "**Student:** %s\n\n", turn.Utterance)
					lastUserTurn = turn.UserTurn
				}
				if turn.Agent == "FINISH" {
					continue
				}
				_, _ = fmt.Fprintf(file, "**%s:** %s\n\n", turn.Agent, turn.Artifact)
				if len(turn.Annotations) > 0 {
					_, _ = fmt.Fprintf(file, "*%s*\n\n", strings.Join(turn.Annotations, ", "))
				}
			}
			_, _ = fmt.Fprintln(file, "---")
			_, _ = fmt.Fprintln(file)
		}
	}

	return nil
}

// ExportEmbeddingsToJSON exports embeddings to a separate JSON file
func (s *Storage) ExportEmbeddingsToJSON(outputPath string) error {
	rows, err := s.db.Query(`
		SELECT chunk_id, document_id, vector, created_at
		FROM embeddings
	`)
	if err != nil {
		return fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	type EmbeddingExport struct {
		ChunkID    string    `json:"chunk_id"`
		DocumentID string    `json:"document_id"`
		Vector     []float64 `json:"vector"`
		CreatedAt  string    `json:"created_at"`
	}

	var embeddings []EmbeddingExport
	for rows.Next() {
		var (
			emb        EmbeddingExport
			documentID *string
			blob       []byte
			createdAt  time.Time
		)
		if err := rows.Scan(&emb.ChunkID, &documentID, &blob, &createdAt); err != nil {
			continue
		}
		if documentID != nil {
			emb.DocumentID = *documentID
		}
		emb.Vector = blobToVector(blob)
		emb.CreatedAt = createdAt.Format(time.RFC3339)
		embeddings = append(embeddings, emb)
	}

	file, err := createOutput(outputPath)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(embeddings); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}

func createOutput(outputPath string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	file, err := os.Create(outputPath) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return file, nil
}
