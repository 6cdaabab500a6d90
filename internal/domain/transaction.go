package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Direction indicates which way funds moved relative to the focal account.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Valid reports whether the direction is one of the two known values.
func (d Direction) Valid() bool {
	return d == DirectionInbound || d == DirectionOutbound
}

// Transaction is a single normalized ledger movement for one account.
//
// CounterpartyID zero means the counterparty is unknown or external to
// the institution. Account and counterparty identifiers share one
// numeric namespace.
type Transaction struct {
	ID             string          `json:"id"`
	AccountID      int64           `json:"account_id"`
	CounterpartyID int64           `json:"counterparty_id,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	Direction      Direction       `json:"direction"`
	Timestamp      time.Time       `json:"timestamp"`

	// Type carries the source system's label ("wire", "ach", "check").
	// It is informational and never drives detection.
	Type string `json:"type,omitempty"`
}

// HasCounterparty reports whether the counterparty is a known internal party.
func (t *Transaction) HasCounterparty() bool {
	return t.CounterpartyID != 0
}

// TransactionSet is the ordered input to every screening component.
// Invariant: ascending by timestamp, ties broken by id. Build one with
// NewTransactionSet or restore the invariant with Sort after mutating.
type TransactionSet []Transaction

// NewTransactionSet copies txns into canonical order.
func NewTransactionSet(txns []Transaction) TransactionSet {
	set := make(TransactionSet, len(txns))
	copy(set, txns)
	set.Sort()
	return set
}

// Sort restores canonical order in place.
func (s TransactionSet) Sort() {
	sort.SliceStable(s, func(i, j int) bool {
		if !s[i].Timestamp.Equal(s[j].Timestamp) {
			return s[i].Timestamp.Before(s[j].Timestamp)
		}
		return s[i].ID < s[j].ID
	})
}

// Sorted reports whether the set is already in canonical order.
func (s TransactionSet) Sorted() bool {
	for i := 1; i < len(s); i++ {
		if s[i].Timestamp.Before(s[i-1].Timestamp) {
			return false
		}
		if s[i].Timestamp.Equal(s[i-1].Timestamp) && s[i].ID < s[i-1].ID {
			return false
		}
	}
	return true
}

// ByAccount partitions the set by account id, preserving order within
// each partition. Keys iterate in no particular order; callers that
// need determinism must sort the ids.
func (s TransactionSet) ByAccount() map[int64]TransactionSet {
	parts := make(map[int64]TransactionSet)
	for _, t := range s {
		parts[t.AccountID] = append(parts[t.AccountID], t)
	}
	return parts
}

// Total sums every amount in the set.
func (s TransactionSet) Total() decimal.Decimal {
	total := decimal.Zero
	for _, t := range s {
		total = total.Add(t.Amount)
	}
	return total
}
