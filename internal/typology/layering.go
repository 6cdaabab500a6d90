package typology

import (
	"fmt"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/shopspring/decimal"
)

// Layering thresholds: one large deposit followed inside a day by a
// burst of outbound transfers to multiple recipients.
const (
	layeringWindow        = 24 * time.Hour
	layeringMinTransfers  = 4
	layeringMinRecipients = 2

	layeringConfBase        = 0.5
	layeringConfPerTransfer = 0.03
	layeringConfDispersal   = 0.2
)

var layeringDepositMin = decimal.NewFromInt(50000)

// LayeringDetector finds large deposits split into rapid outbound
// transfers.
type LayeringDetector struct{}

func (LayeringDetector) Typology() domain.Typology { return domain.TypologyLayering }

func (LayeringDetector) Detect(in *Input) *domain.TypologyMatch {
	var best *domain.TypologyMatch
	for i := range in.Set {
		dep := &in.Set[i]
		if dep.Direction != domain.DirectionInbound || !dep.Amount.GreaterThan(layeringDepositMin) {
			continue
		}
		// Strict comparison keeps the earliest deposit on ties.
		if m := layeringFrom(in.Set, i); m != nil && (best == nil || m.Confidence > best.Confidence) {
			best = m
		}
	}
	return best
}

func layeringFrom(set domain.TransactionSet, depIdx int) *domain.TypologyMatch {
	dep := set[depIdx]
	limit := dep.Timestamp.Add(layeringWindow)

	var transfers []domain.Transaction
	for j := depIdx + 1; j < len(set); j++ {
		if set[j].Timestamp.After(limit) {
			break
		}
		if set[j].Direction == domain.DirectionOutbound {
			transfers = append(transfers, set[j])
		}
	}
	if len(transfers) < layeringMinTransfers {
		return nil
	}
	recipients := uniqueCounterparties(transfers)
	if recipients < layeringMinRecipients {
		return nil
	}

	// Dispersal ratio: how spread out the transfers are across
	// recipients, 1.0 when every transfer hits a new party.
	dispersal := float64(recipients) / float64(len(transfers))
	confidence := layeringConfBase + layeringConfPerTransfer*float64(len(transfers)) + layeringConfDispersal*dispersal
	if confidence > confidenceCap {
		confidence = confidenceCap
	}

	outTotal := decimal.Zero
	for _, t := range transfers {
		outTotal = outTotal.Add(t.Amount)
	}
	pct := outTotal.Div(dep.Amount).Mul(decimal.NewFromInt(100))

	evidence := []string{
		fmt.Sprintf("Large deposit of %s received", dollars(dep.Amount)),
		fmt.Sprintf("%d outbound transfers within 24 hours", len(transfers)),
		fmt.Sprintf("%d unique recipients", recipients),
		fmt.Sprintf("%s dispersed (%s%% of deposit)", dollars(outTotal), pct.StringFixed(0)),
		"Rapid disbursement consistent with layering behavior",
	}

	return newMatch(domain.TypologyLayering, confidence, evidence,
		1+len(transfers), dep.Amount.Add(outTotal))
}
