// ABOUTME: Loads study material files into documents for the passage store
// ABOUTME: HTML is cleaned with goquery and converted to Markdown before chunking
package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/harper/tutor/internal/models"
)

// MaxSourceBytes bounds how much of a file or URL is read
const MaxSourceBytes = 5 * 1024 * 1024

var (
	blankRuns  = regexp.MustCompile(`\n{3,}`)
	spaceRuns  = regexp.MustCompile(`[ \t]+`)
	htmlSuffix = map[string]bool{".html": true, ".htm": true, ".xhtml": true}
)

// LoadFile reads a local .html, .md or .txt file into a document
func LoadFile(path string) (*models.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	raw, err := io.ReadAll(io.LimitReader(f, MaxSourceBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if htmlSuffix[strings.ToLower(filepath.Ext(path))] {
		return FromHTML(path, string(raw))
	}
	return models.NewDocument(path, title, Clean(string(raw)))
}

// LoadURL fetches an HTML page into a document
func LoadURL(ctx context.Context, url string) (*models.Document, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, fmt.Errorf("URL must start with http:// or https://")
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "tutor/1.0")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxSourceBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		return FromHTML(url, string(body))
	}
	return models.NewDocument(url, url, Clean(string(body)))
}

// FromHTML strips scripts, styles and navigation from a page and converts the
// remaining body to Markdown. The <title> becomes the document title.
func FromHTML(source, html string) (*models.Document, error) {
	page, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	title := strings.TrimSpace(page.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(page.Find("h1").First().Text())
	}

	page.Find("script, style, nav, header, footer, noscript").Remove()

	body := page.Find("body")
	if body.Length() == 0 {
		body = page.Selection
	}
	inner, err := body.Html()
	if err != nil {
		return nil, fmt.Errorf("failed to render HTML: %w", err)
	}

	converter := md.NewConverter("", true, nil)
	markdown, err := converter.ConvertString(inner)
	if err != nil {
		return nil, fmt.Errorf("failed to convert HTML to Markdown: %w", err)
	}

	return models.NewDocument(source, title, Clean(markdown))
}

// Clean normalizes line endings, collapses runs of spaces and keeps at most one
// blank line between paragraphs
func Clean(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRuns.ReplaceAllString(line, " "))
	}
	text = strings.Join(lines, "\n")
	text = blankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
