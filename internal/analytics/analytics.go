// Package analytics computes the statistical profile of a transaction set.
package analytics

import (
	"math"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/shopspring/decimal"
)

// Structuring band: amounts engineered to sit just under the $10k CTR
// reporting threshold.
var (
	structuringFloor = decimal.NewFromInt(4000)
	structuringCeil  = decimal.NewFromInt(10000)
)

const (
	structuringMinCount = 5
	anomalyStdDevs      = 2.0

	// Velocity spike: one UTC day busier than three times the mean
	// daily count, never flagged below five transactions.
	velocityMinBurst = 5
	velocityFactor   = 3.0

	baseRiskFloor       = 0.3
	anomalyRiskStep     = 0.1
	anomalyRiskCap      = 7
	structuringRiskStep = 0.2
)

// Engine computes the statistical profile used for baseline risk.
type Engine struct{}

// NewEngine creates a new analytics engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Analyze profiles one normalized transaction set. The set must be in
// canonical order; anomaly ids come back in that order.
func (e *Engine) Analyze(set domain.TransactionSet) domain.AnalyticsResult {
	res := domain.AnalyticsResult{
		AnomalyIndices: []string{},
	}

	n := len(set)
	if n > 0 {
		amounts := make([]float64, n)
		var sum float64
		for i, t := range set {
			amounts[i] = t.Amount.InexactFloat64()
			sum += amounts[i]
		}
		res.MeanAmount = sum / float64(n)

		// Population standard deviation. A single transaction has no
		// spread, so std stays zero and nothing can be anomalous.
		if n >= 2 {
			var sq float64
			for _, a := range amounts {
				d := a - res.MeanAmount
				sq += d * d
			}
			res.StdAmount = math.Sqrt(sq / float64(n))
		}

		if res.StdAmount > 0 {
			cutoff := anomalyStdDevs * res.StdAmount
			for i, a := range amounts {
				if math.Abs(a-res.MeanAmount) > cutoff {
					res.AnomalyIndices = append(res.AnomalyIndices, set[i].ID)
				}
			}
		}
		res.AnomalyCount = len(res.AnomalyIndices)

		res.StructuringDetected = structuring(set)
		res.VelocitySpike = velocitySpike(set)
	}

	res.BaseRisk = baseRisk(res.AnomalyCount, res.StructuringDetected)
	return res
}

// structuring counts amounts in the sub-threshold band. Timing is
// deliberately ignored here; the smurfing detector applies the window.
func structuring(set domain.TransactionSet) bool {
	count := 0
	for _, t := range set {
		if t.Amount.GreaterThanOrEqual(structuringFloor) && t.Amount.LessThan(structuringCeil) {
			count++
			if count >= structuringMinCount {
				return true
			}
		}
	}
	return false
}

// velocitySpike looks for a single UTC day far busier than the set's
// average day. Informational only.
func velocitySpike(set domain.TransactionSet) bool {
	days := make(map[string]int)
	for _, t := range set {
		days[t.Timestamp.UTC().Format("2006-01-02")]++
	}
	if len(days) == 0 {
		return false
	}

	limit := velocityFactor * float64(len(set)) / float64(len(days))
	if limit < velocityMinBurst {
		limit = velocityMinBurst
	}
	for _, count := range days {
		if float64(count) > limit {
			return true
		}
	}
	return false
}

// baseRisk blends the anomaly count and structuring flag into the
// statistical floor. Range [0.3, 1.0].
func baseRisk(anomalies int, structuringDetected bool) float64 {
	if anomalies > anomalyRiskCap {
		anomalies = anomalyRiskCap
	}
	risk := baseRiskFloor + anomalyRiskStep*float64(anomalies)
	if structuringDetected {
		risk += structuringRiskStep
	}
	return math.Min(risk, 1.0)
}
