package domain

// PatternType identifies a structural finding in the transaction graph.
type PatternType string

const (
	PatternHighDegreeHub      PatternType = "high_degree_hub"
	PatternFanOut             PatternType = "fan_out"
	PatternCommunityIsolation PatternType = "community_isolation"
)

// GraphPattern is one structural finding. NodeIDs lists the parties the
// pattern is anchored on, ascending.
type GraphPattern struct {
	Type    PatternType `json:"type"`
	NodeIDs []int64     `json:"node_ids"`

	// Metric carries the pattern's magnitude: total degree for hubs,
	// distinct recipient count for fan-outs, internal density for
	// isolated communities.
	Metric float64 `json:"metric"`
}

// Community is one connected component of the undirected party graph.
type Community struct {
	MemberNodeIDs []int64 `json:"member_node_ids"`

	// InternalDensity is the share of possible ordered pairs inside the
	// component that carry at least one edge. Zero for singletons.
	InternalDensity float64 `json:"internal_density"`
}

// GraphResult is the full structural analysis of one transaction set.
type GraphResult struct {
	NodeCount int `json:"node_count"`
	EdgeCount int `json:"edge_count"`

	// SuspiciousPatterns is ordered by lowest anchor node id, then by
	// pattern type (hub, fan-out, community isolation).
	SuspiciousPatterns []GraphPattern `json:"suspicious_patterns"`

	// Communities lists every connected component, ordered by smallest
	// member id, members ascending.
	Communities []Community `json:"communities"`
}

// HasPattern reports whether a pattern of the given type is anchored on
// the given node.
func (g *GraphResult) HasPattern(pt PatternType, nodeID int64) bool {
	for _, p := range g.SuspiciousPatterns {
		if p.Type != pt {
			continue
		}
		for _, id := range p.NodeIDs {
			if id == nodeID {
				return true
			}
		}
	}
	return false
}
