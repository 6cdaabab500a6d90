package typology

import (
	"fmt"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/shopspring/decimal"
)

// Shell fan-out thresholds: a six-figure wire dispersed the same
// calendar day to many distinct recipients.
const (
	shellMinTransfers  = 8
	shellMinRecipients = 6

	shellConfBase         = 0.5
	shellConfPerRecipient = 0.03
	shellConfGraphBoost   = 0.1
)

var shellWireMin = decimal.NewFromInt(100000)

// ShellFanOutDetector finds a large wire fanned out to shell-like
// recipients on the day it lands.
type ShellFanOutDetector struct{}

func (ShellFanOutDetector) Typology() domain.Typology { return domain.TypologyShellFanout }

func (ShellFanOutDetector) Detect(in *Input) *domain.TypologyMatch {
	var best *domain.TypologyMatch
	for i := range in.Set {
		dep := &in.Set[i]
		if dep.Direction != domain.DirectionInbound || !dep.Amount.GreaterThan(shellWireMin) {
			continue
		}
		if m := shellFanOutFrom(in, i); m != nil && (best == nil || m.Confidence > best.Confidence) {
			best = m
		}
	}
	return best
}

func shellFanOutFrom(in *Input, depIdx int) *domain.TypologyMatch {
	set := in.Set
	dep := set[depIdx]

	// Timestamps are nondecreasing, so the same UTC day is one
	// contiguous run.
	var transfers []domain.Transaction
	for j := depIdx + 1; j < len(set); j++ {
		if !sameUTCDay(dep.Timestamp, set[j].Timestamp) {
			break
		}
		if set[j].Direction == domain.DirectionOutbound {
			transfers = append(transfers, set[j])
		}
	}
	if len(transfers) < shellMinTransfers {
		return nil
	}
	recipients := sortedCounterparties(transfers)
	if len(recipients) < shellMinRecipients {
		return nil
	}

	confidence := shellConfBase + shellConfPerRecipient*float64(len(recipients))
	corroborated := in.Graph.HasPattern(domain.PatternHighDegreeHub, dep.AccountID) ||
		in.Graph.HasPattern(domain.PatternFanOut, dep.AccountID)
	if corroborated {
		confidence += shellConfGraphBoost
	}
	if confidence > confidenceCap {
		confidence = confidenceCap
	}

	outTotal := decimal.Zero
	byRecipient := make(map[int64]decimal.Decimal, len(recipients))
	for _, t := range transfers {
		outTotal = outTotal.Add(t.Amount)
		if t.CounterpartyID != 0 {
			byRecipient[t.CounterpartyID] = byRecipient[t.CounterpartyID].Add(t.Amount)
		}
	}

	evidence := []string{
		fmt.Sprintf("Large inbound wire of %s", dollars(dep.Amount)),
		fmt.Sprintf("%d outbound transfers on same day", len(transfers)),
		fmt.Sprintf("%d unique recipient entities", len(recipients)),
		fmt.Sprintf("Total dispersed: %s", dollars(outTotal)),
		"Recipients have characteristics of shell entities",
	}
	if corroborated {
		evidence = append(evidence, "Graph analysis confirms high-degree hub pattern")
	}
	for _, id := range recipients {
		evidence = append(evidence, fmt.Sprintf("  → %d: %s", id, dollars(byRecipient[id])))
	}

	return newMatch(domain.TypologyShellFanout, confidence, evidence,
		1+len(transfers), dep.Amount.Add(outTotal))
}
