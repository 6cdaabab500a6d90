//go:build integration
// +build integration

// Package integration provides end-to-end tests for the Kestrel
// screening engine.
//
// These tests verify the COMPLETE screening pipeline:
//
//	Case → Normalize → Analytics ∥ Graph → Typologies → Risk → Report
//
// Run with: go test -tags=integration -v ./tests/integration/...
//
// UNDERSTANDING THE DOMAIN:
//
// 1. CASE: A set of transactions for one investigation, screened as a
//    whole. Sets are canonically ordered by timestamp, then id.
//
// 2. ANALYTICS: Statistical profile of the set - mean, deviation,
//    anomalies, a structuring pre-screen, and a base risk floor.
//
// 3. TYPOLOGY: A laundering pattern detector (smurfing, layering,
//    round-tripping, rapid movement, shell fan-out). Each reports at
//    most one match per account with a confidence in [0, 0.98].
//
// 4. GRAPH: Structural analysis of the party graph - hubs, fan-outs,
//    isolated communities.
//
// 5. RISK: base_risk when nothing matched, otherwise
//    min(1.0, base_risk*0.4 + best_confidence*0.6).
//
// The full-stack test drives a case through the event bus, the case
// worker, the SQLite archive, and the operational HTTP API. The
// scenario tests exercise the processor directly.
package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/opensource-finance/kestrel/internal/archive"
	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/cache"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/ingest"
	"github.com/opensource-finance/kestrel/internal/metrics"
	"github.com/opensource-finance/kestrel/internal/ops"
	"github.com/opensource-finance/kestrel/internal/screening"
	"github.com/opensource-finance/kestrel/internal/worker"
)

var testBase = time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

func closeEnough(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// record builds one raw wire record. cp == 0 leaves the counterparty
// unset.
func record(id string, account, cp int64, amount, direction string, at time.Time) ingest.RawRecord {
	amt, _ := decimal.NewFromString(amount)
	rec := ingest.RawRecord{
		ID:        ingest.RecordID(id),
		AccountID: &account,
		Amount:    &amt,
		Direction: direction,
		Timestamp: at.Format(time.RFC3339),
	}
	if cp != 0 {
		rec.CounterpartyID = &cp
	}
	return rec
}

func tx(id string, account, cp int64, amount float64, dir domain.Direction, at time.Time) domain.Transaction {
	return domain.Transaction{
		ID:             id,
		AccountID:      account,
		CounterpartyID: cp,
		Amount:         decimal.NewFromFloat(amount),
		Direction:      dir,
		Timestamp:      at,
	}
}

// smurfingRecords is the structuring scenario: 15 deposits of $7,990
// from 5 counterparties over 12 days, $119,850 in total.
func smurfingRecords() []ingest.RawRecord {
	records := make([]ingest.RawRecord, 0, 15)
	for i := 0; i < 15; i++ {
		records = append(records, record(
			fmt.Sprintf("d%02d", i+1),
			1, int64(301+i%5),
			"7990.00", "inbound",
			testBase.Add(time.Duration(i)*19*time.Hour),
		))
	}
	return records
}

// stack wires every component the way cmd/kestrel does, on a temporary
// SQLite file and an in-process bus.
type stack struct {
	bus     domain.EventBus
	archive domain.Archive
	worker  *worker.Worker
	http    *httptest.Server
}

func newStack(t *testing.T) *stack {
	t.Helper()

	tmp, err := os.CreateTemp("", "kestrel-integration-*.db")
	if err != nil {
		t.Fatalf("temp file: %v", err)
	}
	tmp.Close()

	arch, err := archive.New(domain.ArchiveConfig{Driver: "sqlite", SQLitePath: tmp.Name()})
	if err != nil {
		t.Fatalf("archive: %v", err)
	}

	cacheImpl := cache.NewLRUCache(1000)
	eventBus := bus.NewChannelBus(100)
	collector := metrics.NewCollector()

	processor := screening.NewProcessor(domain.ScreeningConfig{
		MaxWorkers:            4,
		ReportCacheTTLSeconds: 300,
	})
	processor.Cache = cacheImpl
	processor.Metrics = collector

	w := worker.NewWorker(eventBus, processor, arch, cacheImpl)
	w.Metrics = collector
	if err := w.Start(worker.Config{Workers: 2}); err != nil {
		t.Fatalf("worker start: %v", err)
	}

	srv := ops.NewServer(domain.OpsConfig{
		Host:         "127.0.0.1",
		Port:         0,
		ReadTimeout:  30,
		WriteTimeout: 30,
	}, ops.Components{
		Archive: arch,
		Cache:   cacheImpl,
		Bus:     eventBus,
	}, collector.Handler(), "integration-test")

	httpSrv := httptest.NewServer(srv.Router())

	t.Cleanup(func() {
		httpSrv.Close()
		w.Stop()
		eventBus.Close()
		cacheImpl.Close()
		arch.Close()
		os.Remove(tmp.Name())
	})

	return &stack{bus: eventBus, archive: arch, worker: w, http: httpSrv}
}

// TestSmurfingCaseEndToEnd drives the structuring scenario through the
// bus, the worker, the archive, and the HTTP API.
func TestSmurfingCaseEndToEnd(t *testing.T) {
	s := newStack(t)

	reports := make(chan []byte, 1)
	sub, err := s.bus.Subscribe(context.Background(), domain.TopicScreeningReport, func(ctx context.Context, msg *domain.Message) error {
		select {
		case reports <- msg.Payload:
		default:
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Unsubscribe()

	time.Sleep(50 * time.Millisecond)

	payload, _ := json.Marshal(worker.CaseMessage{
		CaseID:  "case-smurf",
		Records: smurfingRecords(),
	})
	if err := s.bus.Publish(context.Background(), domain.TopicCaseSubmitted, payload); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	var raw []byte
	select {
	case raw = <-reports:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for report")
	}

	var result worker.ReportMessage
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("failed to parse report message: %v", err)
	}
	if result.CaseID != "case-smurf" {
		t.Errorf("expected case 'case-smurf', got %q", result.CaseID)
	}
	report := result.Report
	if report == nil {
		t.Fatal("expected report in message")
	}

	if report.TransactionCount != 15 {
		t.Errorf("expected 15 transactions screened, got %d", report.TransactionCount)
	}
	if len(report.TypologyMatches) != 1 {
		t.Fatalf("expected exactly 1 typology match, got %d", len(report.TypologyMatches))
	}

	match := report.TypologyMatches[0]
	if match.Typology != domain.TypologySmurfing {
		t.Errorf("expected SMURFING, got %s", match.Typology)
	}
	if !closeEnough(match.Confidence, 0.98) {
		t.Errorf("expected corroborated confidence 0.98, got %v", match.Confidence)
	}
	if match.TransactionCount != 15 {
		t.Errorf("expected pattern of 15 deposits, got %d", match.TransactionCount)
	}
	if !match.TotalAmount.Equal(decimal.NewFromInt(119850)) {
		t.Errorf("expected total $119,850, got %s", match.TotalAmount)
	}

	if !report.Analytics.StructuringDetected {
		t.Error("expected the structuring pre-screen to fire")
	}
	if !closeEnough(report.Analytics.BaseRisk, 0.5) {
		t.Errorf("expected base risk 0.5, got %v", report.Analytics.BaseRisk)
	}
	if !closeEnough(report.Risk.RiskScore, 0.788) {
		t.Errorf("expected risk 0.788, got %v", report.Risk.RiskScore)
	}

	// Archived copy is served over HTTP.
	resp, err := http.Get(s.http.URL + "/reports/" + report.ReportID)
	if err != nil {
		t.Fatalf("GET report failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
	var archived domain.ScreeningReport
	if err := json.NewDecoder(resp.Body).Decode(&archived); err != nil {
		t.Fatalf("failed to decode archived report: %v", err)
	}
	if archived.ReportID != report.ReportID {
		t.Errorf("expected archived report %s, got %s", report.ReportID, archived.ReportID)
	}
	if !closeEnough(archived.Risk.RiskScore, 0.788) {
		t.Errorf("expected archived risk 0.788, got %v", archived.Risk.RiskScore)
	}

	// Health and metrics reflect the run.
	health, err := http.Get(s.http.URL + "/health")
	if err != nil {
		t.Fatalf("GET health failed: %v", err)
	}
	defer health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Errorf("expected healthy stack, got status %d", health.StatusCode)
	}

	metricsResp, err := http.Get(s.http.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET metrics failed: %v", err)
	}
	defer metricsResp.Body.Close()
	metricsBody, err := io.ReadAll(metricsResp.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(metricsBody), "kestrel_screenings_total") {
		t.Error("expected kestrel_screenings_total in metrics output")
	}
	if !strings.Contains(string(metricsBody), "kestrel_reports_archived_total") {
		t.Error("expected kestrel_reports_archived_total in metrics output")
	}
}

// TestRoundTrippingScenario: $30,000 leaves, $31,000 returns from a
// different party within the window, twice.
func TestRoundTrippingScenario(t *testing.T) {
	processor := screening.NewProcessor(domain.ScreeningConfig{MaxWorkers: 4})

	set := domain.NewTransactionSet([]domain.Transaction{
		tx("a", 1, 401, 30000, domain.DirectionOutbound, testBase),
		tx("b", 1, 402, 31000, domain.DirectionInbound, testBase.Add(5*24*time.Hour+time.Hour)),
		tx("c", 1, 401, 30000, domain.DirectionOutbound, testBase.Add(6*24*time.Hour+3*time.Hour)),
		tx("d", 1, 403, 31000, domain.DirectionInbound, testBase.Add(11*24*time.Hour)),
	})

	report, err := processor.Screen(context.Background(), set)
	if err != nil {
		t.Fatalf("Screen failed: %v", err)
	}

	if len(report.TypologyMatches) != 1 {
		t.Fatalf("expected exactly 1 typology match, got %d", len(report.TypologyMatches))
	}
	match := report.TypologyMatches[0]
	if match.Typology != domain.TypologyRoundTripping {
		t.Errorf("expected ROUND_TRIPPING, got %s", match.Typology)
	}
	if !closeEnough(match.Confidence, 0.7) {
		t.Errorf("expected confidence 0.7 for 2 trips, got %v", match.Confidence)
	}
	if match.TransactionCount != 4 {
		t.Errorf("expected 4 legs in the pattern, got %d", match.TransactionCount)
	}
	if !match.TotalAmount.Equal(decimal.NewFromInt(122000)) {
		t.Errorf("expected circular flow of $122,000, got %s", match.TotalAmount)
	}

	if !closeEnough(report.Analytics.BaseRisk, 0.3) {
		t.Errorf("expected base risk 0.3, got %v", report.Analytics.BaseRisk)
	}
	if !closeEnough(report.Risk.RiskScore, 0.54) {
		t.Errorf("expected risk 0.54, got %v", report.Risk.RiskScore)
	}
}

// TestFanOutGraphScenario: one account pays 7 distinct recipients the
// same day and does nothing else.
func TestFanOutGraphScenario(t *testing.T) {
	processor := screening.NewProcessor(domain.ScreeningConfig{MaxWorkers: 4})

	txns := make([]domain.Transaction, 0, 7)
	for i := 0; i < 7; i++ {
		txns = append(txns, tx(
			fmt.Sprintf("p%d", i+1),
			1, int64(501+i),
			2500, domain.DirectionOutbound,
			testBase.Add(time.Duration(i)*time.Hour),
		))
	}

	report, err := processor.Screen(context.Background(), domain.NewTransactionSet(txns))
	if err != nil {
		t.Fatalf("Screen failed: %v", err)
	}

	if report.Graph.NodeCount != 8 {
		t.Errorf("expected 8 nodes, got %d", report.Graph.NodeCount)
	}
	if report.Graph.EdgeCount != 7 {
		t.Errorf("expected 7 edges, got %d", report.Graph.EdgeCount)
	}

	found := false
	for _, p := range report.Graph.SuspiciousPatterns {
		if p.Type == domain.PatternFanOut && len(p.NodeIDs) == 1 && p.NodeIDs[0] == 1 {
			found = true
			if p.Metric != 7 {
				t.Errorf("expected fan-out metric 7, got %v", p.Metric)
			}
		}
	}
	if !found {
		t.Error("expected a fan_out pattern anchored on account 1")
	}

	if len(report.TypologyMatches) != 0 {
		t.Errorf("expected no typology matches, got %d", len(report.TypologyMatches))
	}
	if !closeEnough(report.Risk.RiskScore, 0.3) {
		t.Errorf("expected risk 0.3, got %v", report.Risk.RiskScore)
	}
}

// TestCleanCustomer: a ramp of ordinary payments produces no matches
// and a risk score below 0.4.
func TestCleanCustomer(t *testing.T) {
	processor := screening.NewProcessor(domain.ScreeningConfig{MaxWorkers: 4})

	txns := make([]domain.Transaction, 0, 30)
	for i := 0; i < 30; i++ {
		dir := domain.DirectionInbound
		if i%2 == 1 {
			dir = domain.DirectionOutbound
		}
		txns = append(txns, tx(
			fmt.Sprintf("c%02d", i+1),
			1, int64(601+i%6),
			650+float64(i)*83, dir,
			testBase.Add(time.Duration(i)*48*time.Hour),
		))
	}

	report, err := processor.Screen(context.Background(), domain.NewTransactionSet(txns))
	if err != nil {
		t.Fatalf("Screen failed: %v", err)
	}

	if len(report.TypologyMatches) != 0 {
		t.Errorf("expected no typology matches, got %d", len(report.TypologyMatches))
	}
	if report.Analytics.AnomalyCount != 0 {
		t.Errorf("expected no anomalies, got %d", report.Analytics.AnomalyCount)
	}
	if report.Analytics.StructuringDetected {
		t.Error("expected no structuring on a clean account")
	}
	if report.Risk.RiskScore >= 0.4 {
		t.Errorf("expected risk below 0.4, got %v", report.Risk.RiskScore)
	}
}

// TestDeterministicReports: the same case screened by independent
// processors yields byte-identical reports once run metadata is
// cleared.
func TestDeterministicReports(t *testing.T) {
	canonical := func(r *domain.ScreeningReport) []byte {
		c := *r
		c.ReportID = ""
		c.GeneratedAt = time.Time{}
		c.ElapsedMs = 0
		data, err := json.Marshal(c)
		if err != nil {
			t.Fatalf("marshal report: %v", err)
		}
		return data
	}

	records := smurfingRecords()

	var first []byte
	for run := 0; run < 3; run++ {
		processor := screening.NewProcessor(domain.ScreeningConfig{MaxWorkers: 4})
		report, err := processor.ScreenRecords(context.Background(), records)
		if err != nil {
			t.Fatalf("run %d: ScreenRecords failed: %v", run, err)
		}
		data := canonical(report)
		if first == nil {
			first = data
			continue
		}
		if string(data) != string(first) {
			t.Fatalf("run %d produced a different report", run)
		}
	}
}
