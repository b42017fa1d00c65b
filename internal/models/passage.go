// ABOUTME: Document and Passage types for the retrieval collaborator
// ABOUTME: Passages are ranked fragments handed to responders as supporting content
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Document is an ingested source of study material
type Document struct {
	DocumentID string    `json:"document_id" yaml:"document_id"`
	Source     string    `json:"source" yaml:"source"`
	Title      string    `json:"title,omitempty" yaml:"title,omitempty"`
	Content    string    `json:"content" yaml:"content"`
	CreatedAt  time.Time `json:"created_at" yaml:"created_at"`
}

// NewDocument creates a Document with a generated ID
func NewDocument(source, title, content string) (*Document, error) {
	if strings.TrimSpace(content) == "" {
		return nil, errors.New("document content cannot be empty")
	}
	if source == "" {
		return nil, errors.New("document source cannot be empty")
	}
	return &Document{
		DocumentID: fmt.Sprintf("doc_%s", uuid.New().String()[:8]),
		Source:     source,
		Title:      title,
		Content:    content,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// Passage is one ranked retrieval result
type Passage struct {
	ID      string  `json:"id"`
	Source  string  `json:"source"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}
