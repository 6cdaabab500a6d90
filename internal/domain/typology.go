package domain

import "github.com/shopspring/decimal"

// Typology identifies one of the money-laundering patterns the engine
// can detect.
type Typology string

const (
	TypologySmurfing      Typology = "SMURFING"
	TypologyLayering      Typology = "LAYERING"
	TypologyRoundTripping Typology = "ROUND_TRIPPING"
	TypologyRapidMovement Typology = "RAPID_MOVEMENT"
	TypologyShellFanout   Typology = "SHELL_FANOUT"
)

// AllTypologies lists every typology in canonical evaluation order.
// Detector scheduling, report ordering, and tie-breaking all follow
// this order.
var AllTypologies = []Typology{
	TypologySmurfing,
	TypologyLayering,
	TypologyRoundTripping,
	TypologyRapidMovement,
	TypologyShellFanout,
}

// TypologyDefinition is the static reference data for one typology.
type TypologyDefinition struct {
	Name                string  `json:"name"`
	Description         string  `json:"description"`
	RegulatoryReference string  `json:"regulatory_reference"`
	RiskWeight          float64 `json:"risk_weight"`
}

// TypologyDefinitions maps each typology to its reference data. The
// regulatory citations and weights come from the compliance team and
// change only with guidance updates.
var TypologyDefinitions = map[Typology]TypologyDefinition{
	TypologySmurfing: {
		Name:                "Structuring / Smurfing",
		Description:         "Multiple deposits below CTR threshold ($10k) from many unique sources",
		RegulatoryReference: "BSA §5324, 31 CFR 1010.314, FinCEN Advisory FIN-2014-A007",
		RiskWeight:          0.9,
	},
	TypologyLayering: {
		Name:                "Layering",
		Description:         "Large deposit immediately split into many smaller outbound transfers",
		RegulatoryReference: "FATF ML Typology Report, FinCEN Advisory FIN-2020-A003",
		RiskWeight:          0.95,
	},
	TypologyRoundTripping: {
		Name:                "Round-Tripping / Circular Flow",
		Description:         "Funds sent out and returned via different channel at similar amount",
		RegulatoryReference: "FATF Trade-Based ML Report, FinCEN SAR Activity Review Issue 21",
		RiskWeight:          0.85,
	},
	TypologyRapidMovement: {
		Name:                "Rapid Movement / Pass-Through",
		Description:         "Large deposit followed by near-identical withdrawal within 24 hours",
		RegulatoryReference: "FinCEN SAR Narrative Guidance, FFIEC BSA/AML Manual",
		RiskWeight:          0.88,
	},
	TypologyShellFanout: {
		Name:                "Shell Company Fan-Out",
		Description:         "Single large wire fanned out to 10+ entities same day",
		RegulatoryReference: "FATF Beneficial Ownership Guidance, FinCEN Shell Company Advisory",
		RiskWeight:          0.92,
	},
}

// Definition returns the reference data for t. Unknown typologies get a
// zero definition rather than a panic.
func (t Typology) Definition() TypologyDefinition {
	return TypologyDefinitions[t]
}

// TypologyMatch is one detected pattern instance. At most one match per
// typology appears in a screening report.
type TypologyMatch struct {
	Typology   Typology `json:"typology"`
	Confidence float64  `json:"confidence"`

	// Evidence holds human-readable findings computed from the actual
	// pattern transactions. Never templated placeholders.
	Evidence []string `json:"evidence"`

	RegulatoryReference string  `json:"regulatory_reference"`
	RiskWeight          float64 `json:"risk_weight"`

	// TransactionCount and TotalAmount summarize the transactions that
	// comprise the pattern, not the whole input set.
	TransactionCount int             `json:"transaction_count"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
}
