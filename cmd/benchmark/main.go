// ABOUTME: Command-line runner for the routing benchmark
// ABOUTME: Routes every test case through the supervisor and writes JSON accuracy results
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/harper/tutor/benchmarks/routing"
	"github.com/harper/tutor/internal/config"
	"github.com/harper/tutor/internal/engine"
	"github.com/harper/tutor/internal/logging"
)

func main() {
	casesPath := flag.String("cases", "", "Test cases file (.json or .yaml). If empty, runs the built-in set.")
	category := flag.String("category", "", "Only run cases of this category")
	outputPath := flag.String("output", "routing_results.json", "Output path for JSON results")
	workers := flag.Int("workers", routing.DefaultWorkers, "Concurrent routing calls")
	verbose := flag.Bool("verbose", false, "Log every routed case")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := logging.New(os.Stderr, level, false)

	if err := run(logger, *casesPath, *category, *outputPath, *workers); err != nil {
		logger.Error("benchmark failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, casesPath, category, outputPath string, workers int) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if !cfg.HasOpenAI() {
		logger.Warn("OPENAI_API_KEY not set - benchmarking the keyword classifier")
	}

	var cases []routing.TestCase
	if casesPath == "" {
		cases, err = routing.DefaultCases()
	} else {
		cases, err = routing.LoadCases(casesPath)
	}
	if err != nil {
		return err
	}
	cases = routing.Filter(cases, category)
	if len(cases) == 0 {
		return fmt.Errorf("no test cases to run")
	}

	tutor, err := engine.New(cfg, logger)
	if err != nil {
		return err
	}
	defer tutor.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println("========================================")
	fmt.Println("Tutor Routing Benchmark")
	fmt.Println("========================================")
	fmt.Printf("Cases: %d\n\n", len(cases))

	results, err := routing.NewRunner(tutor, workers, logger).Run(ctx, cases)
	if err != nil {
		return err
	}

	for _, r := range results {
		mark := "✅"
		if !r.Correct {
			mark = "❌"
		}
		fmt.Printf("%s: expected=%s | predicted=%s | %.2fms | %s\n", r.ID, r.ExpectedAgent, r.PredictedAgent, r.LatencyMS, mark)
	}

	summary := routing.Summarize(results)
	fmt.Println("\n========================================")
	fmt.Println("ACCURACY BY CATEGORY")
	fmt.Println("========================================")
	categories := make([]string, 0, len(summary.ByCategory))
	for name := range summary.ByCategory {
		categories = append(categories, name)
	}
	sort.Strings(categories)
	for _, name := range categories {
		b := summary.ByCategory[name]
		fmt.Printf("  %-15s %d/%d (%.0f%%)\n", name, b.Correct, b.Total, b.Accuracy*100)
	}
	fmt.Printf("\nOverall: %d/%d (%.0f%%)\n", summary.Overall.Correct, summary.Overall.Total, summary.Overall.Accuracy*100)
	fmt.Printf("Latency: mean %.2fms | p95 %.2fms | max %.2fms\n", summary.Latency.MeanMS, summary.Latency.P95MS, summary.Latency.MaxMS)

	if err := routing.ExportResults(results, outputPath); err != nil {
		return err
	}
	fmt.Printf("\nResults saved to %s\n", outputPath)
	return nil
}
