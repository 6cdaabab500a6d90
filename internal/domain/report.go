package domain

import (
	"time"
)

// RiskOutcome is the blended final score for one screening run.
type RiskOutcome struct {
	// RiskScore is base_risk when no typology matched, otherwise
	// min(1.0, base_risk*0.4 + best_confidence*0.6).
	RiskScore float64 `json:"risk_score"`

	// ContributingTypology is the highest-confidence match, nil when
	// the run produced no matches.
	ContributingTypology *TypologyMatch `json:"contributing_typology,omitempty"`
}

// ScreeningReport is the complete output of one screening run.
//
// Everything except ReportID, GeneratedAt, and ElapsedMs is a pure
// function of the input transaction set. Determinism checks compare
// reports with those three fields cleared.
type ScreeningReport struct {
	ReportID    string    `json:"report_id"`
	GeneratedAt time.Time `json:"generated_at"`

	// TransactionCount is the size of the normalized set actually
	// screened. DroppedCount is how many raw records normalization
	// discarded as malformed; FilteredCount is how many valid records
	// the ingest filter excluded.
	TransactionCount int `json:"transaction_count"`
	DroppedCount     int `json:"dropped_count"`
	FilteredCount    int `json:"filtered_count,omitempty"`

	Analytics AnalyticsResult `json:"analytics"`

	// TypologyMatches is ordered by canonical typology order, at most
	// one entry per typology.
	TypologyMatches []TypologyMatch `json:"typology_matches"`

	Graph GraphResult `json:"graph"`
	Risk  RiskOutcome `json:"risk"`

	// Skipped records detectors that faulted during this run, e.g.
	// "typology SMURFING: match skipped due to error".
	Skipped []string `json:"skipped,omitempty"`

	ElapsedMs int64 `json:"elapsed_ms"`
}

// BestMatch returns the highest-confidence match, or nil when there are
// none. Ties resolve to the earlier entry in canonical typology order,
// which is the order TypologyMatches is stored in.
func (r *ScreeningReport) BestMatch() *TypologyMatch {
	var best *TypologyMatch
	for i := range r.TypologyMatches {
		m := &r.TypologyMatches[i]
		if best == nil || m.Confidence > best.Confidence {
			best = m
		}
	}
	return best
}
