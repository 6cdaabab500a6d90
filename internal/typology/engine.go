package typology

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// defaultDetectors returns the detectors in canonical typology order.
func defaultDetectors() []Detector {
	return []Detector{
		SmurfingDetector{},
		LayeringDetector{},
		RoundTripDetector{},
		RapidMovementDetector{},
		ShellFanOutDetector{},
	}
}

// Engine runs the typology detectors over a screened set.
type Engine struct {
	mu         sync.RWMutex
	detectors  []Detector
	maxWorkers int
}

// NewEngine creates an engine with the standard detectors. maxWorkers
// bounds detector parallelism; zero or negative means one worker per
// detector.
func NewEngine(maxWorkers int) *Engine {
	detectors := defaultDetectors()
	if maxWorkers <= 0 {
		maxWorkers = len(detectors)
	}
	return &Engine{
		detectors:  detectors,
		maxWorkers: maxWorkers,
	}
}

// DetectorCount returns the number of registered detectors.
func (e *Engine) DetectorCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.detectors)
}

// Evaluate runs every detector in parallel and returns matches in
// canonical typology order, at most one per typology, plus a note for
// each detector that faulted. Detector goroutines write to their own
// slot, so output order never depends on scheduling.
func (e *Engine) Evaluate(ctx context.Context, set domain.TransactionSet, analyticsRes domain.AnalyticsResult, graphRes domain.GraphResult) ([]domain.TypologyMatch, []string) {
	e.mu.RLock()
	detectors := e.detectors
	maxWorkers := e.maxWorkers
	e.mu.RUnlock()

	accounts := set.ByAccount()
	ids := make([]int64, 0, len(accounts))
	for id := range accounts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	type outcome struct {
		match *domain.TypologyMatch
		skip  string
	}
	results := make([]outcome, len(detectors))

	sem := make(chan struct{}, maxWorkers)
	var wg sync.WaitGroup

	for i, det := range detectors {
		wg.Add(1)
		go func(slot int, det Detector) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			m, skip := runDetector(ctx, det, ids, accounts, analyticsRes, graphRes)
			results[slot] = outcome{match: m, skip: skip}
		}(i, det)
	}
	wg.Wait()

	matches := make([]domain.TypologyMatch, 0, len(detectors))
	skipped := make([]string, 0)
	for _, r := range results {
		if r.skip != "" {
			skipped = append(skipped, r.skip)
			continue
		}
		if r.match != nil {
			matches = append(matches, *r.match)
		}
	}
	return matches, skipped
}

// runDetector walks accounts in ascending id order, keeping the
// strongest match; strict comparison resolves confidence ties to the
// lowest account. A panic is contained to this detector's slot.
func runDetector(ctx context.Context, det Detector, ids []int64, accounts map[int64]domain.TransactionSet, analyticsRes domain.AnalyticsResult, graphRes domain.GraphResult) (best *domain.TypologyMatch, skip string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("typology detector panicked",
				"typology", string(det.Typology()),
				"panic", r)
			best = nil
			skip = fmt.Sprintf("typology %s: match skipped due to error", det.Typology())
		}
	}()

	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		m := det.Detect(&Input{
			Set:       accounts[id],
			Analytics: analyticsRes,
			Graph:     graphRes,
		})
		if m == nil {
			continue
		}
		clampMatch(m)
		if best == nil || m.Confidence > best.Confidence {
			best = m
		}
	}
	return best, ""
}

// clampMatch enforces output bounds regardless of what a detector
// computed.
func clampMatch(m *domain.TypologyMatch) {
	if m.Confidence < 0 {
		m.Confidence = 0
	}
	if m.Confidence > confidenceCeiling {
		m.Confidence = confidenceCeiling
	}
	if m.Evidence == nil {
		m.Evidence = []string{}
	}
	if m.TransactionCount < 0 {
		m.TransactionCount = 0
	}
}
