// ABOUTME: PassageChunker splits ingested documents into hierarchical chunks for retrieval
// ABOUTME: Implements document → paragraph → sentence hierarchy with a paragraph size cap
package core

import (
	"errors"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/harper/tutor/internal/models"
)

// DefaultMaxParagraphRunes caps a paragraph chunk; longer paragraphs are split on sentences
const DefaultMaxParagraphRunes = 500

var (
	paragraphBreak = regexp.MustCompile(`\n[ \t]*\n`)
	sentenceEnd    = regexp.MustCompile(`[.!?…]+["»)]?\s+`)
)

// PassageChunker handles hierarchical document chunking
type PassageChunker struct {
	MaxParagraphRunes int
}

// NewPassageChunker creates a chunker with the default paragraph cap
func NewPassageChunker() *PassageChunker {
	return &PassageChunker{MaxParagraphRunes: DefaultMaxParagraphRunes}
}

// ChunkDocument splits a document into document, paragraph and sentence chunks.
// The document chunk comes first; each paragraph is followed by its sentences.
func (pc *PassageChunker) ChunkDocument(doc *models.Document) ([]models.Chunk, error) {
	if doc == nil || strings.TrimSpace(doc.Content) == "" {
		return nil, errors.New("cannot chunk empty document")
	}

	text := strings.ReplaceAll(doc.Content, "\r\n", "\n")

	docChunk := models.Chunk{
		ChunkID:    generateChunkID(),
		ChunkType:  models.ChunkTypeDocument,
		Content:    strings.TrimSpace(text),
		DocumentID: doc.DocumentID,
	}
	chunks := []models.Chunk{docChunk}

	for _, para := range pc.paragraphs(text) {
		paraChunk := models.Chunk{
			ChunkID:       generateChunkID(),
			ChunkType:     models.ChunkTypeParagraph,
			Content:       para,
			ParentChunkID: docChunk.ChunkID,
			DocumentID:    doc.DocumentID,
		}
		chunks = append(chunks, paraChunk)

		for _, sent := range splitSentences(para) {
			chunks = append(chunks, models.Chunk{
				ChunkID:       generateChunkID(),
				ChunkType:     models.ChunkTypeSentence,
				Content:       sent,
				ParentChunkID: paraChunk.ChunkID,
				DocumentID:    doc.DocumentID,
			})
		}
	}

	return chunks, nil
}

// paragraphs splits on blank lines and packs oversized paragraphs by sentence
func (pc *PassageChunker) paragraphs(text string) []string {
	var result []string
	for _, raw := range paragraphBreak.Split(text, -1) {
		para := strings.Join(strings.Fields(raw), " ")
		if para == "" {
			continue
		}
		if pc.MaxParagraphRunes <= 0 || len([]rune(para)) <= pc.MaxParagraphRunes {
			result = append(result, para)
			continue
		}

		var buf strings.Builder
		for _, sent := range splitSentences(para) {
			if buf.Len() > 0 && len([]rune(buf.String()))+1+len([]rune(sent)) > pc.MaxParagraphRunes {
				result = append(result, buf.String())
				buf.Reset()
			}
			if buf.Len() > 0 {
				buf.WriteByte(' ')
			}
			buf.WriteString(sent)
		}
		if buf.Len() > 0 {
			result = append(result, buf.String())
		}
	}
	return result
}

// splitSentences splits on terminal punctuation followed by whitespace
func splitSentences(text string) []string {
	var result []string
	start := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		if sent := strings.TrimSpace(text[start:loc[1]]); sent != "" {
			result = append(result, sent)
		}
		start = loc[1]
	}
	if rest := strings.TrimSpace(text[start:]); rest != "" {
		result = append(result, rest)
	}
	return result
}

// generateChunkID generates a unique chunk ID
func generateChunkID() string {
	return "chunk_" + uuid.New().String()
}
