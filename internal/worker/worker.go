// Package worker consumes submitted screening cases from the event bus.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/ingest"
	"github.com/opensource-finance/kestrel/internal/metrics"
	"github.com/opensource-finance/kestrel/internal/screening"
)

// Worker pulls submitted cases off the bus, screens them, and
// publishes the finished reports. Archival and volume counting are
// best-effort and never fail a case.
type Worker struct {
	bus       domain.EventBus
	processor *screening.Processor
	archive   domain.Archive
	cache     domain.Cache

	// Metrics is optional.
	Metrics *metrics.Collector

	sem           chan struct{}
	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// Workers bounds concurrent case screenings.
	Workers int
}

// CaseMessage is the payload expected on the case topic.
type CaseMessage struct {
	CaseID  string             `json:"case_id"`
	Records []ingest.RawRecord `json:"records"`
}

// ReportMessage is the payload published on the report topic.
type ReportMessage struct {
	CaseID string                  `json:"case_id"`
	Report *domain.ScreeningReport `json:"report"`
}

// NewWorker creates a new case worker. archive and cache may be nil.
func NewWorker(bus domain.EventBus, processor *screening.Processor, archive domain.Archive, cache domain.Cache) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:       bus,
		processor: processor,
		archive:   archive,
		cache:     cache,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start subscribes to the case topic and begins screening.
func (w *Worker) Start(cfg Config) error {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	w.sem = make(chan struct{}, workers)

	sub, err := w.bus.Subscribe(w.ctx, domain.TopicCaseSubmitted, w.handleCase)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("case worker started",
		"topic", domain.TopicCaseSubmitted,
		"workers", workers,
	)
	return nil
}

// handleCase dispatches one submitted case. Cases run concurrently up
// to the worker bound.
func (w *Worker) handleCase(ctx context.Context, msg *domain.Message) error {
	select {
	case w.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() { <-w.sem }()
		w.processCase(ctx, msg)
	}()
	return nil
}

// processCase screens one case end to end.
func (w *Worker) processCase(ctx context.Context, msg *domain.Message) {
	start := time.Now()

	// Parse message
	var caseMsg CaseMessage
	if err := json.Unmarshal(msg.Payload, &caseMsg); err != nil {
		slog.Error("failed to parse case message",
			"message_id", msg.ID,
			"error", err,
		)
		return
	}

	caseID := caseMsg.CaseID
	if caseID == "" {
		caseID = msg.ID
	}

	slog.Debug("processing case",
		"case_id", caseID,
		"records", len(caseMsg.Records),
	)

	report, err := w.processor.ScreenRecords(ctx, caseMsg.Records)
	if err != nil {
		slog.Error("case screening failed",
			"case_id", caseID,
			"error", err,
		)
		return
	}

	// Rolling case volume, for capacity planning
	if w.cache != nil {
		if count, err := w.cache.IncrementCounter(ctx, "cases.hourly", time.Hour); err == nil {
			slog.Debug("case volume", "hourly_volume", count)
		}
	}

	// Archive if configured
	if w.archive != nil {
		if err := w.archive.SaveReport(ctx, report); err != nil {
			slog.Error("failed to archive report",
				"case_id", caseID,
				"report_id", report.ReportID,
				"error", err,
			)
		} else if w.Metrics != nil {
			w.Metrics.RecordArchived()
		}
	}

	// Publish result to report topic
	payload, _ := json.Marshal(ReportMessage{CaseID: caseID, Report: report})
	if err := w.bus.Publish(ctx, domain.TopicScreeningReport, payload); err != nil {
		slog.Error("failed to publish report",
			"case_id", caseID,
			"report_id", report.ReportID,
			"error", err,
		)
	}

	slog.Info("case screened",
		"case_id", caseID,
		"report_id", report.ReportID,
		"risk_score", report.Risk.RiskScore,
		"matches", len(report.TypologyMatches),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("case worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
