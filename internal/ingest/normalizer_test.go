package ingest

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/shopspring/decimal"
)

// raw builds a valid inbound record; tests knock fields out as needed.
func raw(id string, account int64, amount float64, direction, ts string) RawRecord {
	amt := decimal.NewFromFloat(amount)
	return RawRecord{
		ID:        RecordID(id),
		AccountID: &account,
		Amount:    &amt,
		Direction: direction,
		Timestamp: ts,
	}
}

func TestNormalizeValidRecords(t *testing.T) {
	n := NewNormalizer()

	set, res := n.Normalize([]RawRecord{
		raw("t1", 1, 500, "inbound", "2025-03-01T10:00:00Z"),
		raw("t2", 1, 250, "outbound", "2025-03-02T10:00:00Z"),
		raw("t3", 2, 99.95, "inbound", "2025-03-03T10:00:00Z"),
	})

	if res.Accepted != 3 || res.Dropped != 0 || res.Filtered != 0 {
		t.Fatalf("expected 3 accepted, got %+v", res)
	}
	if len(set) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(set))
	}
	if set[0].ID != "t1" || set[0].Direction != domain.DirectionInbound {
		t.Errorf("unexpected first transaction %+v", set[0])
	}
	if !set[2].Amount.Equal(decimal.NewFromFloat(99.95)) {
		t.Errorf("amount mangled: %s", set[2].Amount)
	}
}

func TestNormalizeDropsMissingFields(t *testing.T) {
	n := NewNormalizer()
	account := int64(1)
	amt := decimal.NewFromInt(100)

	noID := RawRecord{AccountID: &account, Amount: &amt, Direction: "inbound", Timestamp: "2025-03-01T10:00:00Z"}
	noAccount := RawRecord{ID: "t2", Amount: &amt, Direction: "inbound", Timestamp: "2025-03-01T10:00:00Z"}
	noAmount := RawRecord{ID: "t3", AccountID: &account, Direction: "inbound", Timestamp: "2025-03-01T10:00:00Z"}
	noTimestamp := RawRecord{ID: "t4", AccountID: &account, Amount: &amt, Direction: "inbound"}

	records := []RawRecord{
		noID,
		noAccount,
		noAmount,
		noTimestamp,
		raw("t5", 1, 100, "inbound", "2025-03-01T10:00:00Z"),
	}

	set, res := n.Normalize(records)
	if res.Accepted != 1 || res.Dropped != 4 {
		t.Fatalf("expected 1 accepted 4 dropped, got %+v", res)
	}
	if len(set) != 1 || set[0].ID != "t5" {
		t.Fatalf("wrong survivor: %+v", set)
	}
}

func TestNormalizeDropsZeroAccountID(t *testing.T) {
	n := NewNormalizer()

	_, res := n.Normalize([]RawRecord{raw("t1", 0, 100, "inbound", "2025-03-01T10:00:00Z")})
	if res.Dropped != 1 {
		t.Errorf("account id 0 should read as missing, got %+v", res)
	}
}

func TestNormalizeDropsNonPositiveAmount(t *testing.T) {
	n := NewNormalizer()

	_, res := n.Normalize([]RawRecord{
		raw("t1", 1, 0, "inbound", "2025-03-01T10:00:00Z"),
		raw("t2", 1, -50, "inbound", "2025-03-01T10:00:00Z"),
		raw("t3", 1, 0.01, "inbound", "2025-03-01T10:00:00Z"),
	})
	if res.Accepted != 1 || res.Dropped != 2 {
		t.Errorf("expected only the positive amount to survive, got %+v", res)
	}
}

func TestNormalizeDropsUnknownDirection(t *testing.T) {
	n := NewNormalizer()

	_, res := n.Normalize([]RawRecord{
		raw("t1", 1, 100, "sideways", "2025-03-01T10:00:00Z"),
		raw("t2", 1, 100, "", "2025-03-01T10:00:00Z"),
	})
	if res.Dropped != 2 {
		t.Errorf("expected 2 dropped, got %+v", res)
	}
}

func TestNormalizeDirectionCanonicalized(t *testing.T) {
	n := NewNormalizer()

	set, res := n.Normalize([]RawRecord{
		raw("t1", 1, 100, "INBOUND", "2025-03-01T10:00:00Z"),
		raw("t2", 1, 100, " Outbound ", "2025-03-02T10:00:00Z"),
	})
	if res.Accepted != 2 {
		t.Fatalf("expected 2 accepted, got %+v", res)
	}
	if set[0].Direction != domain.DirectionInbound || set[1].Direction != domain.DirectionOutbound {
		t.Errorf("directions not canonicalized: %s, %s", set[0].Direction, set[1].Direction)
	}
}

func TestNormalizeDropsBadTimestamp(t *testing.T) {
	n := NewNormalizer()

	_, res := n.Normalize([]RawRecord{
		raw("t1", 1, 100, "inbound", "not-a-time"),
		raw("t2", 1, 100, "inbound", "03/01/2025"),
	})
	if res.Dropped != 2 {
		t.Errorf("expected 2 dropped, got %+v", res)
	}
}

func TestNormalizeTimestampLayouts(t *testing.T) {
	n := NewNormalizer()

	set, res := n.Normalize([]RawRecord{
		raw("t1", 1, 100, "inbound", "2025-03-01T10:00:00+02:00"),
		raw("t2", 1, 100, "inbound", "2025-03-01T12:00:00"),
		raw("t3", 1, 100, "inbound", "2025-03-01 14:00:00"),
		raw("t4", 1, 100, "inbound", "2025-03-02"),
	})
	if res.Accepted != 4 {
		t.Fatalf("expected all layouts accepted, got %+v", res)
	}
	// The offset timestamp lands at 08:00 UTC, before the naive ones.
	if set[0].ID != "t1" {
		t.Errorf("expected offset timestamp normalized to UTC first, got %s", set[0].ID)
	}
	for _, tx := range set {
		if tx.Timestamp.Location() != time.UTC {
			t.Errorf("timestamp %s not in UTC", tx.Timestamp)
		}
	}
}

func TestNormalizeCanonicalOrder(t *testing.T) {
	n := NewNormalizer()

	set, _ := n.Normalize([]RawRecord{
		raw("b", 1, 100, "inbound", "2025-03-03T10:00:00Z"),
		raw("c", 1, 100, "inbound", "2025-03-01T10:00:00Z"),
		raw("a", 1, 100, "inbound", "2025-03-03T10:00:00Z"),
	})

	got := []string{set[0].ID, set[1].ID, set[2].ID}
	want := []string{"c", "a", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
}

func TestNormalizeNumericID(t *testing.T) {
	var records []RawRecord
	payload := `[
		{"id": 1042, "account_id": 1, "amount": 250.5, "direction": "inbound", "timestamp": "2025-03-01T10:00:00Z"},
		{"id": "txn-7", "account_id": 1, "amount": "99.95", "direction": "outbound", "timestamp": "2025-03-02T10:00:00Z"}
	]`
	if err := json.Unmarshal([]byte(payload), &records); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	set, res := NewNormalizer().Normalize(records)
	if res.Accepted != 2 {
		t.Fatalf("expected 2 accepted, got %+v", res)
	}
	if set[0].ID != "1042" {
		t.Errorf("numeric id not canonicalized, got %q", set[0].ID)
	}
	if set[1].ID != "txn-7" {
		t.Errorf("string id mangled, got %q", set[1].ID)
	}
}

func TestNormalizeNullID(t *testing.T) {
	var records []RawRecord
	payload := `[{"id": null, "account_id": 1, "amount": 100, "direction": "inbound", "timestamp": "2025-03-01T10:00:00Z"}]`
	if err := json.Unmarshal([]byte(payload), &records); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	_, res := NewNormalizer().Normalize(records)
	if res.Dropped != 1 {
		t.Errorf("null id should drop the record, got %+v", res)
	}
}

func TestNormalizeCounterpartyOptional(t *testing.T) {
	n := NewNormalizer()

	cp := int64(42)
	withCP := raw("t1", 1, 100, "inbound", "2025-03-01T10:00:00Z")
	withCP.CounterpartyID = &cp
	withoutCP := raw("t2", 1, 100, "inbound", "2025-03-02T10:00:00Z")

	set, _ := n.Normalize([]RawRecord{withCP, withoutCP})
	if set[0].CounterpartyID != 42 {
		t.Errorf("expected counterparty 42, got %d", set[0].CounterpartyID)
	}
	if set[1].CounterpartyID != 0 {
		t.Errorf("expected absent counterparty as 0, got %d", set[1].CounterpartyID)
	}
	if set[1].HasCounterparty() {
		t.Error("expected HasCounterparty false for absent counterparty")
	}
}

func TestNormalizeTypeLowercased(t *testing.T) {
	n := NewNormalizer()

	rec := raw("t1", 1, 100, "inbound", "2025-03-01T10:00:00Z")
	rec.Type = " WIRE "
	set, _ := n.Normalize([]RawRecord{rec})
	if set[0].Type != "wire" {
		t.Errorf("expected type wire, got %q", set[0].Type)
	}
}

func TestNormalizeEmptyInput(t *testing.T) {
	set, res := NewNormalizer().Normalize(nil)
	if len(set) != 0 {
		t.Errorf("expected empty set, got %d", len(set))
	}
	if res.Accepted != 0 || res.Dropped != 0 || res.Filtered != 0 {
		t.Errorf("expected zero counts, got %+v", res)
	}
}
