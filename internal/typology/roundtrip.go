package typology

import (
	"fmt"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/shopspring/decimal"
)

// Round-trip thresholds: a five-figure outbound leg answered within two
// weeks by a similar-sized inbound leg from a different party.
const (
	roundTripWindow      = 14 * 24 * time.Hour
	roundTripMinTrips    = 2
	roundTripConfBase    = 0.5
	roundTripConfPerTrip = 0.1
)

var (
	roundTripLegMin     = decimal.NewFromInt(10000)
	roundTripLowFactor  = decimal.NewFromFloat(0.85)
	roundTripHighFactor = decimal.NewFromFloat(1.15)
)

type trip struct {
	out  domain.Transaction
	back domain.Transaction
}

// RoundTripDetector finds funds leaving and returning at a similar
// amount through a different counterparty.
type RoundTripDetector struct{}

func (RoundTripDetector) Typology() domain.Typology { return domain.TypologyRoundTripping }

func (RoundTripDetector) Detect(in *Input) *domain.TypologyMatch {
	set := in.Set

	// Greedy chronological pairing: the first qualifying return leg
	// completes a trip, and a consumed leg can neither start nor
	// complete another.
	consumed := make([]bool, len(set))
	var trips []trip

	for i := range set {
		out := &set[i]
		if consumed[i] || out.Direction != domain.DirectionOutbound || !out.Amount.GreaterThan(roundTripLegMin) {
			continue
		}
		low := out.Amount.Mul(roundTripLowFactor)
		high := out.Amount.Mul(roundTripHighFactor)
		limit := out.Timestamp.Add(roundTripWindow)

		for j := i + 1; j < len(set); j++ {
			back := &set[j]
			if back.Timestamp.After(limit) {
				break
			}
			if consumed[j] || back.Direction != domain.DirectionInbound {
				continue
			}
			if back.CounterpartyID == 0 || back.CounterpartyID == out.CounterpartyID {
				continue
			}
			if back.Amount.LessThan(low) || back.Amount.GreaterThan(high) {
				continue
			}
			consumed[i], consumed[j] = true, true
			trips = append(trips, trip{out: *out, back: *back})
			break
		}
	}

	if len(trips) < roundTripMinTrips {
		return nil
	}

	total := decimal.Zero
	for _, tr := range trips {
		total = total.Add(tr.out.Amount).Add(tr.back.Amount)
	}
	confidence := roundTripConfBase + roundTripConfPerTrip*float64(len(trips))
	if confidence > confidenceCap {
		confidence = confidenceCap
	}

	evidence := []string{
		fmt.Sprintf("%d round-trip patterns detected", len(trips)),
		"Funds sent to entity A, returned from entity B within 14 days",
		"Amounts match within ±15% variance",
		fmt.Sprintf("Total circular flow: %s", dollars(total)),
	}
	for _, tr := range trips {
		days := int(tr.back.Timestamp.Sub(tr.out.Timestamp).Hours() / 24)
		evidence = append(evidence, fmt.Sprintf("  %s → %d → returned as %s from %d (%dd later)",
			dollars(tr.out.Amount), tr.out.CounterpartyID, dollars(tr.back.Amount), tr.back.CounterpartyID, days))
	}

	return newMatch(domain.TypologyRoundTripping, confidence, evidence, 2*len(trips), total)
}
