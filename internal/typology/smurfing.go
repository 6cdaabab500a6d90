package typology

import (
	"fmt"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/shopspring/decimal"
)

// Smurfing thresholds: five or more sub-CTR deposits from at least
// three distinct sources inside a rolling two-week window.
const (
	smurfWindow     = 14 * 24 * time.Hour
	smurfMinCount   = 5
	smurfMinSources = 3

	smurfConfBase      = 0.4
	smurfConfPerCount  = 0.03
	smurfConfPerSource = 0.02
)

var (
	smurfBandFloor = decimal.NewFromInt(4000)
	smurfBandCeil  = decimal.NewFromInt(10000)
)

// SmurfingDetector finds structuring: deposits engineered to duck the
// $10k reporting threshold, arriving from many sources.
type SmurfingDetector struct{}

func (SmurfingDetector) Typology() domain.Typology { return domain.TypologySmurfing }

func (SmurfingDetector) Detect(in *Input) *domain.TypologyMatch {
	deposits := make(domain.TransactionSet, 0, len(in.Set))
	for _, t := range in.Set {
		if t.Direction == domain.DirectionInbound &&
			t.Amount.GreaterThanOrEqual(smurfBandFloor) &&
			t.Amount.LessThan(smurfBandCeil) {
			deposits = append(deposits, t)
		}
	}
	if len(deposits) < smurfMinCount {
		return nil
	}

	// Anchor an inclusive window at every deposit and keep the fullest
	// qualifying one. Strict comparison keeps the earliest on ties.
	bestStart, bestEnd, bestUnique := -1, -1, 0
	end := 0
	for start := range deposits {
		end = windowEnd(deposits, start, end, smurfWindow)
		count := end - start
		if count < smurfMinCount {
			continue
		}
		unique := uniqueCounterparties(deposits[start:end])
		if unique < smurfMinSources {
			continue
		}
		if bestStart < 0 || count > bestEnd-bestStart {
			bestStart, bestEnd, bestUnique = start, end, unique
		}
	}
	if bestStart < 0 {
		return nil
	}

	window := deposits[bestStart:bestEnd]
	count := len(window)
	total := window.Total()

	raw := smurfConfBase + smurfConfPerCount*float64(count) + smurfConfPerSource*float64(bestUnique)
	confidence := raw
	if confidence > confidenceCap {
		confidence = confidenceCap
	}
	// Only a saturated formula corroborated by the analytics
	// pre-screen may exceed the cap.
	corroborated := raw >= confidenceCap-confidenceEps && in.Analytics.StructuringDetected
	if corroborated {
		confidence = confidenceCeiling
	}

	evidence := []string{
		fmt.Sprintf("%d deposits below $10k CTR threshold", count),
		fmt.Sprintf("%d unique counterparties identified", bestUnique),
		fmt.Sprintf("Activity concentrated in %d day(s)", spanDays(window[0].Timestamp, window[count-1].Timestamp)),
		fmt.Sprintf("Aggregate amount: %s", dollars(total)),
		fmt.Sprintf("Average deposit: %s", dollars(total.Div(decimal.NewFromInt(int64(count))))),
	}
	if corroborated {
		evidence = append(evidence, "Structuring pattern confirmed by analytics engine")
	}

	return newMatch(domain.TypologySmurfing, confidence, evidence, count, total)
}
