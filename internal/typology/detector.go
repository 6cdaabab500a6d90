// Package typology implements the pattern detectors for the five
// supported money-laundering typologies.
package typology

import (
	"sort"
	"strings"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/shopspring/decimal"
)

// Confidence bounds shared by every detector: formulas saturate at
// confidenceCap, and only corroborated smurfing may reach the absolute
// ceiling. Saturation compares with a small epsilon so a formula that
// lands exactly on the cap still qualifies.
const (
	confidenceCap     = 0.95
	confidenceCeiling = 0.98
	confidenceEps     = 1e-9
)

// Input carries one account's transactions plus the run-wide analytics
// and graph results a detector may consult.
type Input struct {
	// Set holds a single account's transactions in canonical order.
	Set domain.TransactionSet

	Analytics domain.AnalyticsResult
	Graph     domain.GraphResult
}

// Detector finds one typology's pattern in a single account's activity.
// Implementations are pure: same input, same output, no shared state.
type Detector interface {
	Typology() domain.Typology

	// Detect returns the strongest pattern instance found, or nil.
	Detect(in *Input) *domain.TypologyMatch
}

// newMatch assembles a match with the typology's reference data filled
// in. Count and total describe the pattern transactions only.
func newMatch(t domain.Typology, confidence float64, evidence []string, count int, total decimal.Decimal) *domain.TypologyMatch {
	def := t.Definition()
	return &domain.TypologyMatch{
		Typology:            t,
		Confidence:          confidence,
		Evidence:            evidence,
		RegulatoryReference: def.RegulatoryReference,
		RiskWeight:          def.RiskWeight,
		TransactionCount:    count,
		TotalAmount:         total,
	}
}

// windowEnd advances end past every transaction inside the inclusive
// window opening at txns[start].
func windowEnd(txns domain.TransactionSet, start, end int, span time.Duration) int {
	limit := txns[start].Timestamp.Add(span)
	for end < len(txns) && !txns[end].Timestamp.After(limit) {
		end++
	}
	return end
}

// uniqueCounterparties counts distinct known counterparties.
func uniqueCounterparties(txns []domain.Transaction) int {
	seen := make(map[int64]struct{})
	for i := range txns {
		if txns[i].CounterpartyID != 0 {
			seen[txns[i].CounterpartyID] = struct{}{}
		}
	}
	return len(seen)
}

// sortedCounterparties returns distinct known counterparties ascending.
func sortedCounterparties(txns []domain.Transaction) []int64 {
	seen := make(map[int64]struct{})
	for i := range txns {
		if txns[i].CounterpartyID != 0 {
			seen[txns[i].CounterpartyID] = struct{}{}
		}
	}
	ids := make([]int64, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func sameUTCDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// spanDays is the inclusive calendar span of a window, minimum one.
func spanDays(first, last time.Time) int {
	return int(last.Sub(first).Hours()/24) + 1
}

// dollars renders an amount for evidence lines: "$119,850.00".
func dollars(d decimal.Decimal) string {
	s := d.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, frac, _ := strings.Cut(s, ".")
	out := "$" + groupThousands(intPart) + "." + frac
	if neg {
		out = "-" + out
	}
	return out
}

func groupThousands(digits string) string {
	n := len(digits)
	if n <= 3 {
		return digits
	}
	var b strings.Builder
	head := n % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < n; i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
