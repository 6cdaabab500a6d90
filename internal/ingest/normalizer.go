// Package ingest turns raw transaction records into the canonical
// screening input: validated, normalized, optionally filtered, and in
// deterministic order.
package ingest

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/shopspring/decimal"
)

// RecordID accepts either a JSON string or a JSON number and
// canonicalizes to a string. Anything else decodes to empty, which the
// normalizer treats as a missing id.
type RecordID string

func (r *RecordID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*r = RecordID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*r = RecordID(n.String())
		return nil
	}
	*r = ""
	return nil
}

// RawRecord is one transaction as received from a source system.
// Pointer fields distinguish absent from zero; Timestamp stays a string
// so one bad record cannot fail a whole batch decode.
type RawRecord struct {
	ID             RecordID         `json:"id"`
	AccountID      *int64           `json:"account_id"`
	CounterpartyID *int64           `json:"counterparty_id"`
	Amount         *decimal.Decimal `json:"amount"`
	Direction      string           `json:"direction"`
	Timestamp      string           `json:"timestamp"`
	Type           string           `json:"type"`
}

// timestampLayouts lists the accepted wire formats, tried in order.
// Naive timestamps are taken as UTC.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Result summarizes one normalization pass.
type Result struct {
	// Accepted records made it into the screening set.
	Accepted int `json:"accepted"`
	// Dropped records were malformed: missing required fields,
	// non-positive amounts, unknown directions, unparseable timestamps.
	Dropped int `json:"dropped"`
	// Filtered records were valid but excluded by the ingest filter.
	Filtered int `json:"filtered"`
}

// Normalizer validates raw records and produces a canonical
// TransactionSet. Malformed records are dropped and counted, never
// fatal: screening proceeds on whatever survives.
type Normalizer struct {
	filter *Filter
}

// NewNormalizer creates a normalizer that accepts every valid record.
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// NewNormalizerWithFilter creates a normalizer that additionally
// applies a CEL filter expression to each valid record.
func NewNormalizerWithFilter(expression string) (*Normalizer, error) {
	f, err := NewFilter(expression)
	if err != nil {
		return nil, err
	}
	return &Normalizer{filter: f}, nil
}

// Filter returns the active ingest filter, or nil.
func (n *Normalizer) Filter() *Filter {
	return n.filter
}

// Normalize converts raw records into a canonical set. The returned
// set is sorted ascending by timestamp with ties broken by id.
func (n *Normalizer) Normalize(raw []RawRecord) (domain.TransactionSet, Result) {
	var res Result
	txns := make([]domain.Transaction, 0, len(raw))

	for i := range raw {
		t, reason := normalizeRecord(&raw[i])
		if reason != "" {
			res.Dropped++
			slog.Debug("dropped malformed record",
				"index", i,
				"record_id", string(raw[i].ID),
				"reason", reason)
			continue
		}
		if n.filter != nil && !n.filter.Keep(&t) {
			res.Filtered++
			continue
		}
		txns = append(txns, t)
	}

	res.Accepted = len(txns)
	return domain.NewTransactionSet(txns), res
}

// normalizeRecord validates one record and returns the canonical
// transaction, or a drop reason.
func normalizeRecord(r *RawRecord) (domain.Transaction, string) {
	if r.ID == "" {
		return domain.Transaction{}, "missing id"
	}
	if r.AccountID == nil || *r.AccountID == 0 {
		return domain.Transaction{}, "missing account_id"
	}
	if r.Amount == nil {
		return domain.Transaction{}, "missing amount"
	}
	if !r.Amount.IsPositive() {
		return domain.Transaction{}, "non-positive amount"
	}

	direction := domain.Direction(strings.ToLower(strings.TrimSpace(r.Direction)))
	if !direction.Valid() {
		return domain.Transaction{}, "unknown direction"
	}

	ts, ok := parseTimestamp(r.Timestamp)
	if !ok {
		return domain.Transaction{}, "unparseable timestamp"
	}

	t := domain.Transaction{
		ID:        string(r.ID),
		AccountID: *r.AccountID,
		Amount:    *r.Amount,
		Direction: direction,
		Timestamp: ts,
		Type:      strings.ToLower(strings.TrimSpace(r.Type)),
	}
	if r.CounterpartyID != nil {
		t.CounterpartyID = *r.CounterpartyID
	}
	return t, ""
}

// parseTimestamp accepts the known layouts and normalizes to UTC.
func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}
