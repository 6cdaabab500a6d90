package ingest

import (
	"strings"
	"testing"
)

func TestNewFilterRejectsEmptyExpression(t *testing.T) {
	if _, err := NewFilter(""); err == nil {
		t.Error("expected error for empty expression")
	}
}

func TestNewFilterRejectsBadSyntax(t *testing.T) {
	if _, err := NewFilter("amount >"); err == nil {
		t.Error("expected compile error for truncated expression")
	}
	if _, err := NewFilter("no_such_variable == 1"); err == nil {
		t.Error("expected compile error for undeclared variable")
	}
}

func TestNewFilterRejectsNonBoolOutput(t *testing.T) {
	_, err := NewFilter("amount + 1.0")
	if err == nil {
		t.Fatal("expected error for non-bool expression")
	}
	if !strings.Contains(err.Error(), "must return bool") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestFilterExpression(t *testing.T) {
	f, err := NewFilter(`direction == "inbound"`)
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	if f.Expression() != `direction == "inbound"` {
		t.Errorf("expression not preserved: %q", f.Expression())
	}
}

func TestFilterExcludesRecords(t *testing.T) {
	n, err := NewNormalizerWithFilter(`direction == "inbound"`)
	if err != nil {
		t.Fatalf("NewNormalizerWithFilter: %v", err)
	}

	set, res := n.Normalize([]RawRecord{
		raw("t1", 1, 100, "inbound", "2025-03-01T10:00:00Z"),
		raw("t2", 1, 100, "outbound", "2025-03-02T10:00:00Z"),
		raw("t3", 1, 100, "inbound", "2025-03-03T10:00:00Z"),
	})

	if res.Accepted != 2 || res.Filtered != 1 || res.Dropped != 0 {
		t.Fatalf("expected 2 accepted 1 filtered, got %+v", res)
	}
	for _, tx := range set {
		if tx.Direction != "inbound" {
			t.Errorf("outbound record survived the filter: %+v", tx)
		}
	}
}

func TestFilterSeesAllVariables(t *testing.T) {
	expr := `id != "" && amount >= 250.0 && direction == "inbound" && tx_type == "wire" && account_id == 1 && counterparty_id != 0`
	n, err := NewNormalizerWithFilter(expr)
	if err != nil {
		t.Fatalf("NewNormalizerWithFilter: %v", err)
	}

	cp := int64(9)
	match := raw("t1", 1, 250, "inbound", "2025-03-01T10:00:00Z")
	match.CounterpartyID = &cp
	match.Type = "wire"

	tooSmall := raw("t2", 1, 249.99, "inbound", "2025-03-02T10:00:00Z")
	tooSmall.CounterpartyID = &cp
	tooSmall.Type = "wire"

	noCounterparty := raw("t3", 1, 300, "inbound", "2025-03-03T10:00:00Z")
	noCounterparty.Type = "wire"

	set, res := n.Normalize([]RawRecord{match, tooSmall, noCounterparty})
	if res.Accepted != 1 || res.Filtered != 2 {
		t.Fatalf("expected 1 accepted 2 filtered, got %+v", res)
	}
	if set[0].ID != "t1" {
		t.Errorf("wrong survivor %q", set[0].ID)
	}
}

func TestFilterMalformedStillDropped(t *testing.T) {
	// Drops happen before filtering; the filter never sees malformed
	// records.
	n, err := NewNormalizerWithFilter("amount > 0.0")
	if err != nil {
		t.Fatalf("NewNormalizerWithFilter: %v", err)
	}

	_, res := n.Normalize([]RawRecord{
		raw("t1", 1, 100, "inbound", "garbage"),
		raw("t2", 1, 100, "inbound", "2025-03-01T10:00:00Z"),
	})
	if res.Dropped != 1 || res.Filtered != 0 || res.Accepted != 1 {
		t.Errorf("expected 1 dropped 1 accepted, got %+v", res)
	}
}

func TestFilterDeterministic(t *testing.T) {
	n, err := NewNormalizerWithFilter("amount < 5000.0")
	if err != nil {
		t.Fatalf("NewNormalizerWithFilter: %v", err)
	}

	records := []RawRecord{
		raw("t1", 1, 100, "inbound", "2025-03-01T10:00:00Z"),
		raw("t2", 1, 9000, "inbound", "2025-03-02T10:00:00Z"),
		raw("t3", 1, 4999.99, "outbound", "2025-03-03T10:00:00Z"),
	}

	first, firstRes := n.Normalize(records)
	for i := 0; i < 5; i++ {
		set, res := n.Normalize(records)
		if res != firstRes {
			t.Fatalf("run %d: counts changed: %+v vs %+v", i, res, firstRes)
		}
		if len(set) != len(first) {
			t.Fatalf("run %d: set size changed", i)
		}
		for j := range set {
			if set[j].ID != first[j].ID {
				t.Fatalf("run %d: order changed at %d", i, j)
			}
		}
	}
}
