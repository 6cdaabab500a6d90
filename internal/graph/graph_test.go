package graph

import (
	"reflect"
	"strconv"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/shopspring/decimal"
)

func outbound(id string, account, counterparty int64, ts time.Time) domain.Transaction {
	return domain.Transaction{
		ID:             id,
		AccountID:      account,
		CounterpartyID: counterparty,
		Amount:         decimal.NewFromInt(1000),
		Direction:      domain.DirectionOutbound,
		Timestamp:      ts,
	}
}

func inbound(id string, account, counterparty int64, ts time.Time) domain.Transaction {
	t := outbound(id, account, counterparty, ts)
	t.Direction = domain.DirectionInbound
	return t
}

func at(hour int) time.Time {
	return time.Date(2025, 6, 1, hour, 0, 0, 0, time.UTC)
}

func TestAnalyzeEmptySet(t *testing.T) {
	engine := NewEngine()

	res := engine.Analyze(nil)

	if res.NodeCount != 0 || res.EdgeCount != 0 {
		t.Errorf("expected empty graph, got %d nodes %d edges", res.NodeCount, res.EdgeCount)
	}
	if res.SuspiciousPatterns == nil || res.Communities == nil {
		t.Error("pattern and community lists should be empty, not nil")
	}
}

func TestFanOutPattern(t *testing.T) {
	engine := NewEngine()

	// One account wiring to seven distinct recipients.
	set := make(domain.TransactionSet, 0, 7)
	for i := 0; i < 7; i++ {
		set = append(set, outbound("t"+strconv.Itoa(i), 1, int64(10+i), at(i)))
	}

	res := engine.Analyze(set)

	if res.NodeCount != 8 {
		t.Errorf("expected 8 nodes, got %d", res.NodeCount)
	}
	if res.EdgeCount != 7 {
		t.Errorf("expected 7 edges, got %d", res.EdgeCount)
	}

	if len(res.SuspiciousPatterns) != 1 {
		t.Fatalf("expected 1 pattern, got %d", len(res.SuspiciousPatterns))
	}
	p := res.SuspiciousPatterns[0]
	if p.Type != domain.PatternFanOut {
		t.Errorf("expected fan_out, got %s", p.Type)
	}
	if len(p.NodeIDs) != 1 || p.NodeIDs[0] != 1 {
		t.Errorf("expected fan_out anchored on node 1, got %v", p.NodeIDs)
	}
	if p.Metric != 7 {
		t.Errorf("expected metric 7, got %.2f", p.Metric)
	}
}

func TestHighDegreeHub(t *testing.T) {
	engine := NewEngine()

	// Ten deposits from three counterparties: parallel edges all count
	// toward the account's degree.
	set := make(domain.TransactionSet, 0, 10)
	for i := 0; i < 10; i++ {
		set = append(set, inbound("t"+strconv.Itoa(i), 5, int64(20+i%3), at(i)))
	}

	res := engine.Analyze(set)

	if !res.HasPattern(domain.PatternHighDegreeHub, 5) {
		t.Fatal("expected high_degree_hub on node 5")
	}
	for _, p := range res.SuspiciousPatterns {
		if p.Type == domain.PatternHighDegreeHub && p.Metric != 10 {
			t.Errorf("expected hub metric 10, got %.2f", p.Metric)
		}
	}
}

func TestHubAndFanOutOrdering(t *testing.T) {
	engine := NewEngine()

	// Node 1 qualifies as both hub (degree 10) and fan-out (six
	// distinct recipients). Hub must come first.
	set := make(domain.TransactionSet, 0, 10)
	for i := 0; i < 10; i++ {
		set = append(set, outbound("t"+strconv.Itoa(i), 1, int64(10+i%6), at(i)))
	}

	res := engine.Analyze(set)

	if len(res.SuspiciousPatterns) != 2 {
		t.Fatalf("expected 2 patterns, got %d", len(res.SuspiciousPatterns))
	}
	if res.SuspiciousPatterns[0].Type != domain.PatternHighDegreeHub {
		t.Errorf("expected hub first, got %s", res.SuspiciousPatterns[0].Type)
	}
	if res.SuspiciousPatterns[1].Type != domain.PatternFanOut {
		t.Errorf("expected fan_out second, got %s", res.SuspiciousPatterns[1].Type)
	}
}

func TestCommunityIsolation(t *testing.T) {
	engine := NewEngine()

	// Two accounts trading exclusively with each other: both ordered
	// pairs carry edges, density 1.0.
	set := domain.TransactionSet{
		outbound("t1", 1, 2, at(0)),
		inbound("t2", 1, 2, at(1)),
	}

	res := engine.Analyze(set)

	if len(res.Communities) != 1 {
		t.Fatalf("expected 1 community, got %d", len(res.Communities))
	}
	c := res.Communities[0]
	if !reflect.DeepEqual(c.MemberNodeIDs, []int64{1, 2}) {
		t.Errorf("expected members [1 2], got %v", c.MemberNodeIDs)
	}
	if c.InternalDensity != 1.0 {
		t.Errorf("expected density 1.0, got %.2f", c.InternalDensity)
	}

	if len(res.SuspiciousPatterns) != 1 {
		t.Fatalf("expected 1 pattern, got %d", len(res.SuspiciousPatterns))
	}
	if res.SuspiciousPatterns[0].Type != domain.PatternCommunityIsolation {
		t.Errorf("expected community_isolation, got %s", res.SuspiciousPatterns[0].Type)
	}
}

func TestLargeComponentNotIsolated(t *testing.T) {
	engine := NewEngine()

	// Eight-node component: too large for community isolation no
	// matter how dense.
	set := make(domain.TransactionSet, 0, 7)
	for i := 0; i < 7; i++ {
		set = append(set, outbound("t"+strconv.Itoa(i), 1, int64(10+i), at(i)))
	}

	res := engine.Analyze(set)

	for _, p := range res.SuspiciousPatterns {
		if p.Type == domain.PatternCommunityIsolation {
			t.Errorf("unexpected community_isolation over %v", p.NodeIDs)
		}
	}
	if len(res.Communities) != 1 || len(res.Communities[0].MemberNodeIDs) != 8 {
		t.Fatalf("expected one community of 8 members, got %v", res.Communities)
	}
}

func TestNoCounterpartyMeansNoEdge(t *testing.T) {
	engine := NewEngine()

	set := domain.TransactionSet{
		inbound("t1", 1, 0, at(0)),
		inbound("t2", 2, 0, at(1)),
	}

	res := engine.Analyze(set)

	if res.NodeCount != 2 {
		t.Errorf("expected 2 nodes, got %d", res.NodeCount)
	}
	if res.EdgeCount != 0 {
		t.Errorf("expected 0 edges, got %d", res.EdgeCount)
	}
	// Two singleton communities with zero density.
	if len(res.Communities) != 2 {
		t.Fatalf("expected 2 communities, got %d", len(res.Communities))
	}
	for _, c := range res.Communities {
		if c.InternalDensity != 0 {
			t.Errorf("expected singleton density 0, got %.2f", c.InternalDensity)
		}
	}
}

func TestAnalyzeDeterministic(t *testing.T) {
	engine := NewEngine()

	set := make(domain.TransactionSet, 0, 20)
	for i := 0; i < 10; i++ {
		set = append(set, outbound("o"+strconv.Itoa(i), 1, int64(100+i%7), at(i)))
		set = append(set, inbound("i"+strconv.Itoa(i), 2, int64(200+i%4), at(i)))
	}

	first := engine.Analyze(set)
	for run := 0; run < 5; run++ {
		if got := engine.Analyze(set); !reflect.DeepEqual(first, got) {
			t.Fatalf("run %d diverged from first result", run)
		}
	}
}
