// ABOUTME: Accuracy metrics for routing benchmark results
// ABOUTME: Aggregates accuracy per category and difficulty plus decision latency, and exports JSON
package routing

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"time"
)

// Bucket counts correct routes within one group
type Bucket struct {
	Total    int     `json:"total"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"`
}

func (b *Bucket) add(correct bool) {
	b.Total++
	if correct {
		b.Correct++
	}
	b.Accuracy = float64(b.Correct) / float64(b.Total)
}

// Latency describes decision times in milliseconds
type Latency struct {
	MeanMS float64 `json:"mean_ms"`
	P95MS  float64 `json:"p95_ms"`
	MaxMS  float64 `json:"max_ms"`
}

// Summary aggregates a benchmark run
type Summary struct {
	Overall      Bucket             `json:"overall"`
	Latency      Latency            `json:"latency"`
	ByCategory   map[string]*Bucket `json:"by_category"`
	ByDifficulty map[string]*Bucket `json:"by_difficulty"`
	Failures     []string           `json:"failures,omitempty"`
}

// Summarize computes accuracy over results
func Summarize(results []Result) Summary {
	s := Summary{
		ByCategory:   map[string]*Bucket{},
		ByDifficulty: map[string]*Bucket{},
	}
	for _, r := range results {
		s.Overall.add(r.Correct)
		bucket(s.ByCategory, r.Category).add(r.Correct)
		bucket(s.ByDifficulty, r.Difficulty).add(r.Correct)
		if !r.Correct {
			s.Failures = append(s.Failures, r.ID)
		}
	}
	sort.Strings(s.Failures)
	s.Latency = summarizeLatency(results)
	return s
}

// summarizeLatency computes the mean, nearest-rank p95 and max latency
func summarizeLatency(results []Result) Latency {
	if len(results) == 0 {
		return Latency{}
	}
	samples := make([]float64, len(results))
	total := 0.0
	for i, r := range results {
		samples[i] = r.LatencyMS
		total += r.LatencyMS
	}
	sort.Float64s(samples)

	rank := int(math.Ceil(0.95*float64(len(samples)))) - 1
	return Latency{
		MeanMS: total / float64(len(samples)),
		P95MS:  samples[rank],
		MaxMS:  samples[len(samples)-1],
	}
}

func bucket(m map[string]*Bucket, key string) *Bucket {
	if key == "" {
		key = "sin_categoria"
	}
	b, ok := m[key]
	if !ok {
		b = &Bucket{}
		m[key] = b
	}
	return b
}

// Report is the exported benchmark document
type Report struct {
	GeneratedAt string   `json:"generated_at"`
	Summary     Summary  `json:"summary"`
	Results     []Result `json:"results"`
}

// ExportResults writes results and their summary as indented JSON
func ExportResults(results []Result, outputPath string) error {
	report := Report{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Summary:     Summarize(results),
		Results:     results,
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	return nil
}
