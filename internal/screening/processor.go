// Package screening orchestrates one detection run end to end:
// validation, statistical analytics, graph correlation, typology
// detection, and the blended risk score.
package screening

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/kestrel/internal/analytics"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/graph"
	"github.com/opensource-finance/kestrel/internal/ingest"
	"github.com/opensource-finance/kestrel/internal/metrics"
	"github.com/opensource-finance/kestrel/internal/typology"
)

// Risk blend weights: the analytics floor carries 40%, the strongest
// typology match 60%.
const (
	blendBaseWeight  = 0.4
	blendMatchWeight = 0.6
)

// digestScheme versions the report-cache key derivation. Bump it when
// detection semantics change so stale reports cannot be served.
const digestScheme = "kestrel-v1"

var tracer = otel.Tracer("kestrel-screening")

// Processor runs screenings. Construct with NewProcessor; the exported
// fields are optional collaborators wired by the caller.
type Processor struct {
	// Normalizer converts raw records for ScreenRecords. NewProcessor
	// installs a filterless one; replace it to apply an ingest filter.
	Normalizer *ingest.Normalizer

	// Cache, when set, serves repeat screenings by input digest.
	Cache domain.Cache

	// Metrics, when set, receives run counters and timings.
	Metrics *metrics.Collector

	analytics  *analytics.Engine
	graph      *graph.Engine
	typologies *typology.Engine
	cacheTTL   time.Duration
	timeout    time.Duration
}

// NewProcessor builds a processor from screening configuration.
func NewProcessor(cfg domain.ScreeningConfig) *Processor {
	return &Processor{
		Normalizer: ingest.NewNormalizer(),
		analytics:  analytics.NewEngine(),
		graph:      graph.NewEngine(),
		typologies: typology.NewEngine(cfg.MaxWorkers),
		cacheTTL:   time.Duration(cfg.ReportCacheTTLSeconds) * time.Second,
		timeout:    time.Duration(cfg.TimeoutSeconds) * time.Second,
	}
}

// Screen runs the full pipeline over an already-normalized set. The
// set must be in canonical order with every field valid; anything else
// returns a ValidationError naming the first offending transaction.
func (p *Processor) Screen(ctx context.Context, set domain.TransactionSet) (*domain.ScreeningReport, error) {
	start := time.Now()

	if err := Validate(set); err != nil {
		if p.Metrics != nil {
			p.Metrics.RecordError()
		}
		return nil, err
	}

	if p.timeout > 0 {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, p.timeout)
			defer cancel()
		}
	}

	ctx, span := tracer.Start(ctx, "screening.run",
		trace.WithAttributes(attribute.Int("transaction_count", len(set))),
	)
	defer span.End()

	// Repeat submissions of an identical set are answered from the
	// cache without recomputation.
	var digest string
	if p.Cache != nil && p.cacheTTL > 0 {
		digest = Digest(set)
		if cached, err := p.Cache.GetReport(ctx, digest); err == nil && cached != nil {
			if p.Metrics != nil {
				p.Metrics.RecordCacheHit()
			}
			slog.Debug("screening served from report cache",
				"report_id", cached.ReportID,
				"digest", digest[:12])
			return cached, nil
		}
	}

	// Analytics and graph have no data dependency on each other.
	var (
		analyticsRes domain.AnalyticsResult
		graphRes     domain.GraphResult
		wg           sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, s := tracer.Start(ctx, "screening.analytics")
		defer s.End()
		analyticsRes = p.analytics.Analyze(set)
	}()
	go func() {
		defer wg.Done()
		_, s := tracer.Start(ctx, "screening.graph")
		defer s.End()
		graphRes = p.graph.Analyze(set)
	}()
	wg.Wait()

	tctx, tspan := tracer.Start(ctx, "screening.typologies")
	matches, skipped := p.typologies.Evaluate(tctx, set, analyticsRes, graphRes)
	tspan.SetAttributes(attribute.Int("match_count", len(matches)))
	tspan.End()

	_, aspan := tracer.Start(ctx, "screening.aggregate")
	risk := Aggregate(analyticsRes, matches)
	aspan.End()

	report := &domain.ScreeningReport{
		ReportID:         uuid.New().String(),
		GeneratedAt:      time.Now().UTC(),
		TransactionCount: len(set),
		Analytics:        analyticsRes,
		TypologyMatches:  matches,
		Graph:            graphRes,
		Risk:             risk,
		Skipped:          skipped,
		ElapsedMs:        time.Since(start).Milliseconds(),
	}

	span.SetAttributes(
		attribute.Float64("risk_score", risk.RiskScore),
		attribute.Int("typology_matches", len(matches)),
	)
	if p.Metrics != nil {
		p.Metrics.RecordScreening(time.Since(start), report)
	}
	if digest != "" {
		if err := p.Cache.SetReport(ctx, digest, report, p.cacheTTL); err != nil {
			slog.Warn("failed to cache screening report",
				"report_id", report.ReportID,
				"error", err)
		}
	}

	slog.Info("screening completed",
		"report_id", report.ReportID,
		"transactions", len(set),
		"matches", len(matches),
		"risk_score", risk.RiskScore,
		"elapsed_ms", report.ElapsedMs)

	return report, nil
}

// ScreenRecords normalizes raw records and screens whatever survives.
// Malformed records are dropped and counted on the report, never fatal.
func (p *Processor) ScreenRecords(ctx context.Context, records []ingest.RawRecord) (*domain.ScreeningReport, error) {
	_, span := tracer.Start(ctx, "screening.normalize",
		trace.WithAttributes(attribute.Int("raw_count", len(records))),
	)
	normalizer := p.Normalizer
	if normalizer == nil {
		normalizer = ingest.NewNormalizer()
	}
	set, res := normalizer.Normalize(records)
	span.SetAttributes(
		attribute.Int("accepted", res.Accepted),
		attribute.Int("dropped", res.Dropped),
		attribute.Int("filtered", res.Filtered),
	)
	span.End()

	if res.Dropped > 0 || res.Filtered > 0 {
		slog.Debug("normalization reduced input",
			"accepted", res.Accepted,
			"dropped", res.Dropped,
			"filtered", res.Filtered)
	}

	report, err := p.Screen(ctx, set)
	if err != nil {
		return nil, err
	}
	report.DroppedCount = res.Dropped
	report.FilteredCount = res.Filtered
	return report, nil
}

// Validate checks that a set honors the input contract: canonical
// order, positive amounts, known directions, ids and timestamps
// present. Core components never repair input, they reject it.
func Validate(set domain.TransactionSet) error {
	for i := range set {
		t := &set[i]
		switch {
		case t.ID == "":
			return &domain.ValidationError{Index: i, Field: "id", Reason: "empty"}
		case t.AccountID == 0:
			return &domain.ValidationError{Index: i, Field: "account_id", Reason: "missing"}
		case !t.Amount.IsPositive():
			return &domain.ValidationError{Index: i, Field: "amount", Reason: "must be positive"}
		case !t.Direction.Valid():
			return &domain.ValidationError{Index: i, Field: "direction", Reason: fmt.Sprintf("unknown direction %q", t.Direction)}
		case t.Timestamp.IsZero():
			return &domain.ValidationError{Index: i, Field: "timestamp", Reason: "missing"}
		}
	}
	for i := 1; i < len(set); i++ {
		prev, cur := &set[i-1], &set[i]
		if cur.Timestamp.Before(prev.Timestamp) ||
			(cur.Timestamp.Equal(prev.Timestamp) && cur.ID < prev.ID) {
			return &domain.ValidationError{Index: i, Field: "timestamp", Reason: "set not in canonical order"}
		}
	}
	return nil
}

// Aggregate blends the analytics floor with the strongest typology
// match. With no matches the base risk stands alone; ties between
// matches resolve to the earlier one in canonical typology order.
func Aggregate(analyticsRes domain.AnalyticsResult, matches []domain.TypologyMatch) domain.RiskOutcome {
	out := domain.RiskOutcome{RiskScore: analyticsRes.BaseRisk}
	if len(matches) == 0 {
		return out
	}

	best := 0
	for i := 1; i < len(matches); i++ {
		if matches[i].Confidence > matches[best].Confidence {
			best = i
		}
	}
	m := matches[best]

	score := analyticsRes.BaseRisk*blendBaseWeight + m.Confidence*blendMatchWeight
	if score > 1 {
		score = 1
	}
	out.RiskScore = score
	out.ContributingTypology = &m
	return out
}

// Digest derives the report-cache key: a SHA-256 over the canonical
// set under the current scheme version. Two sets with equal digests
// produce byte-identical detection output.
func Digest(set domain.TransactionSet) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s/%d", digestScheme, len(set))
	for i := range set {
		t := &set[i]
		fmt.Fprintf(h, "\n%s|%d|%d|%s|%s|%d",
			t.ID, t.AccountID, t.CounterpartyID, t.Amount.String(), t.Direction, t.Timestamp.UnixNano())
	}
	return hex.EncodeToString(h.Sum(nil))
}
