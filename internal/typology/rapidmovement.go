package typology

import (
	"fmt"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/shopspring/decimal"
)

// Rapid movement thresholds: a large deposit withdrawn within a day at
// 90 to 105 percent of its amount.
const (
	rapidWindow       = 24 * time.Hour
	rapidMinEvents    = 2
	rapidConfBase     = 0.5
	rapidConfPerEvent = 0.1
)

var (
	rapidDepositMin = decimal.NewFromInt(20000)
	rapidLowFactor  = decimal.NewFromFloat(0.90)
	rapidHighFactor = decimal.NewFromFloat(1.05)
)

type passThrough struct {
	in  domain.Transaction
	out domain.Transaction
}

// RapidMovementDetector finds deposits passed straight through the
// account at nearly the same amount.
type RapidMovementDetector struct{}

func (RapidMovementDetector) Typology() domain.Typology { return domain.TypologyRapidMovement }

func (RapidMovementDetector) Detect(in *Input) *domain.TypologyMatch {
	set := in.Set

	// Same greedy pairing as round-trips: first qualifying withdrawal
	// wins, consumed legs are out of play.
	consumed := make([]bool, len(set))
	var events []passThrough

	for i := range set {
		dep := &set[i]
		if consumed[i] || dep.Direction != domain.DirectionInbound || !dep.Amount.GreaterThan(rapidDepositMin) {
			continue
		}
		low := dep.Amount.Mul(rapidLowFactor)
		high := dep.Amount.Mul(rapidHighFactor)
		limit := dep.Timestamp.Add(rapidWindow)

		for j := i + 1; j < len(set); j++ {
			wd := &set[j]
			if wd.Timestamp.After(limit) {
				break
			}
			if consumed[j] || wd.Direction != domain.DirectionOutbound {
				continue
			}
			if wd.Amount.LessThan(low) || wd.Amount.GreaterThan(high) {
				continue
			}
			consumed[i], consumed[j] = true, true
			events = append(events, passThrough{in: *dep, out: *wd})
			break
		}
	}

	if len(events) < rapidMinEvents {
		return nil
	}

	total := decimal.Zero
	for _, ev := range events {
		total = total.Add(ev.in.Amount).Add(ev.out.Amount)
	}
	confidence := rapidConfBase + rapidConfPerEvent*float64(len(events))
	if confidence > confidenceCap {
		confidence = confidenceCap
	}

	evidence := []string{
		fmt.Sprintf("%d pass-through events detected", len(events)),
		"Large deposits immediately followed by same-amount withdrawals",
		"Funds retained for less than 24 hours each time",
		fmt.Sprintf("Total pass-through volume: %s", dollars(total)),
	}
	for _, ev := range events {
		hours := int(ev.out.Timestamp.Sub(ev.in.Timestamp).Hours())
		evidence = append(evidence, fmt.Sprintf("  %s in from %d → %s out to %d (%dh later)",
			dollars(ev.in.Amount), ev.in.CounterpartyID, dollars(ev.out.Amount), ev.out.CounterpartyID, hours))
	}

	return newMatch(domain.TypologyRapidMovement, confidence, evidence, 2*len(events), total)
}
