// Screening CLI for one-shot case files.
//
// Usage:
//   go run cmd/screen/main.go -input case.json [-output report.json] [-filter 'amount >= 100.0']
//
// This tool:
//   1. Reads a JSON case file of raw transaction records
//   2. Normalizes, screens, and scores the set
//   3. Prints a summary and optionally writes the full report JSON
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/opensource-finance/kestrel/internal/archive"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/ingest"
	"github.com/opensource-finance/kestrel/internal/screening"
)

// caseFile is the accepted input shape. A bare JSON array of records
// works too.
type caseFile struct {
	CaseID  string             `json:"case_id"`
	Records []ingest.RawRecord `json:"records"`
}

func main() {
	input := flag.String("input", "", "Path to case JSON file (- for stdin)")
	output := flag.String("output", "", "Write the full report JSON to this path (- for stdout)")
	filterExpr := flag.String("filter", "", "CEL expression applied to each record, e.g. 'amount >= 100.0'")
	archivePath := flag.String("archive", "", "Also archive the report into this SQLite file")
	workers := flag.Int("workers", 4, "Concurrent typology detectors")
	timeoutSec := flag.Int("timeout", 60, "Screening timeout in seconds")
	summary := flag.Bool("summary", true, "Print a human-readable summary")
	verbose := flag.Bool("verbose", false, "Log pipeline detail to stderr")
	flag.Parse()

	initLogger(*verbose)

	if *input == "" {
		fmt.Println("Usage: screen -input case.json [-output report.json] [-filter 'amount >= 100.0']")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cf, err := readCase(*input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}

	processor := screening.NewProcessor(domain.ScreeningConfig{
		MaxWorkers:     *workers,
		TimeoutSeconds: *timeoutSec,
	})
	if *filterExpr != "" {
		normalizer, err := ingest.NewNormalizerWithFilter(*filterExpr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: invalid filter: %v\n", err)
			os.Exit(1)
		}
		processor.Normalizer = normalizer
	}

	start := time.Now()
	report, err := processor.ScreenRecords(context.Background(), cf.Records)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: screening failed: %v\n", err)
		os.Exit(1)
	}
	elapsed := time.Since(start)

	if *archivePath != "" {
		if err := archiveReport(report, *archivePath); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
			os.Exit(1)
		}
	}

	if *output != "" {
		if err := writeReport(report, *output); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
			os.Exit(1)
		}
	}

	if *summary {
		printSummary(cf.CaseID, report, elapsed)
	}
}

func initLogger(verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

func readCase(path string) (caseFile, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return caseFile{}, err
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var records []ingest.RawRecord
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return caseFile{}, fmt.Errorf("parse %s: %w", path, err)
		}
		return caseFile{Records: records}, nil
	}

	var cf caseFile
	if err := json.Unmarshal(trimmed, &cf); err != nil {
		return caseFile{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cf, nil
}

func archiveReport(report *domain.ScreeningReport, path string) error {
	arch, err := archive.New(domain.ArchiveConfig{Driver: "sqlite", SQLitePath: path})
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer arch.Close()

	if err := arch.SaveReport(context.Background(), report); err != nil {
		return fmt.Errorf("archive report: %w", err)
	}
	return nil
}

func writeReport(report *domain.ScreeningReport, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	data = append(data, '\n')

	if path == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func printSummary(caseID string, r *domain.ScreeningReport, elapsed time.Duration) {
	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                   KESTREL SCREENING REPORT                    ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 CASE\n")
	if caseID != "" {
		fmt.Printf("   Case ID:       %s\n", caseID)
	}
	fmt.Printf("   Report ID:     %s\n", r.ReportID)
	fmt.Printf("   Screened:      %d transactions", r.TransactionCount)
	if r.DroppedCount > 0 {
		fmt.Printf(" (%d dropped)", r.DroppedCount)
	}
	if r.FilteredCount > 0 {
		fmt.Printf(" (%d filtered)", r.FilteredCount)
	}
	fmt.Println()

	fmt.Printf("\n📈 ANALYTICS\n")
	fmt.Printf("   Mean Amount:   $%.2f\n", r.Analytics.MeanAmount)
	fmt.Printf("   Std Dev:       $%.2f\n", r.Analytics.StdAmount)
	fmt.Printf("   Anomalies:     %d\n", r.Analytics.AnomalyCount)
	fmt.Printf("   Structuring:   %v\n", r.Analytics.StructuringDetected)
	fmt.Printf("   Velocity:      %v\n", r.Analytics.VelocitySpike)
	fmt.Printf("   Base Risk:     %.3f\n", r.Analytics.BaseRisk)

	fmt.Printf("\n🕸️  GRAPH\n")
	fmt.Printf("   Parties:       %d\n", r.Graph.NodeCount)
	fmt.Printf("   Edges:         %d\n", r.Graph.EdgeCount)
	for _, p := range r.Graph.SuspiciousPatterns {
		fmt.Printf("     - %-20s nodes=%v metric=%.2f\n", p.Type, p.NodeIDs, p.Metric)
	}

	fmt.Printf("\n🚩 TYPOLOGIES\n")
	if len(r.TypologyMatches) == 0 {
		fmt.Println("   No typology patterns detected")
	}
	for _, m := range r.TypologyMatches {
		fmt.Printf("   %-15s confidence=%.2f  %d txns  $%s\n",
			m.Typology, m.Confidence, m.TransactionCount, m.TotalAmount.StringFixed(2))
		for _, e := range m.Evidence {
			fmt.Printf("     · %s\n", e)
		}
	}
	for _, s := range r.Skipped {
		fmt.Printf("   ⚠️  %s\n", s)
	}

	fmt.Printf("\n🎯 RISK\n")
	fmt.Printf("   Risk Score:    %.3f\n", r.Risk.RiskScore)
	if ct := r.Risk.ContributingTypology; ct != nil {
		fmt.Printf("   Driven By:     %s (%s)\n", ct.Typology, ct.RegulatoryReference)
	}

	fmt.Printf("\n⏱️  Screened in %v\n\n", elapsed.Round(time.Millisecond))
}
