package domain

// AnalyticsResult holds the statistical profile of one transaction set.
type AnalyticsResult struct {
	MeanAmount float64 `json:"mean_amount"`
	StdAmount  float64 `json:"std_amount"`

	// AnomalyIndices lists, in set order, the ids of transactions whose
	// amount deviates from the mean by more than two standard deviations.
	AnomalyIndices []string `json:"anomaly_indices"`
	AnomalyCount   int      `json:"anomaly_count"`

	// StructuringDetected is the cheap pre-screen: five or more
	// transactions between $4,000 and $10,000 regardless of timing.
	StructuringDetected bool `json:"structuring_detected"`

	// VelocitySpike flags any single UTC day whose transaction count
	// exceeds three times the mean daily count (minimum burst of five).
	// Informational only; it never feeds the risk score.
	VelocitySpike bool `json:"velocity_spike"`

	// BaseRisk is the statistical floor later blended with typology
	// confidence. Range [0.3, 1.0].
	BaseRisk float64 `json:"base_risk"`
}
