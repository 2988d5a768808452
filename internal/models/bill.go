package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// BillStatus is the closed set of bill lifecycle states.
type BillStatus string

const (
	BillStatusOpen BillStatus = "OPEN"
	BillStatusPaid BillStatus = "PAID"
	BillStatusVoid BillStatus = "VOID"
)

// Valid reports whether s is one of the known statuses.
func (s BillStatus) Valid() bool {
	switch s {
	case BillStatusOpen, BillStatusPaid, BillStatusVoid:
		return true
	}
	return false
}

// Terminal reports whether no further transition leaves s.
func (s BillStatus) Terminal() bool {
	return s == BillStatusPaid || s == BillStatusVoid
}

// Transition validates the edge from s to next. The only legal edges are
// OPEN -> PAID and OPEN -> VOID; re-applying a terminal status to itself is
// accepted as a no-op. Everything else fails with ErrInvalidTransition.
func (s BillStatus) Transition(next BillStatus) error {
	switch {
	case s == next && s.Terminal():
		return nil
	case s == BillStatusOpen && (next == BillStatusPaid || next == BillStatusVoid):
		return nil
	default:
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, next)
	}
}

// Bill is the ledger's record of an amount owed for one appointment.
// Amount is always the tax-inclusive total, never the caller-supplied base.
type Bill struct {
	ID            int64           `json:"bill_id"`
	PatientID     int64           `json:"patient_id"`
	AppointmentID int64           `json:"appointment_id"`
	Amount        decimal.Decimal `json:"amount"`
	Status        BillStatus      `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}

// BillFilter narrows and pages a bill listing. Nil fields match everything.
type BillFilter struct {
	PatientID *int64
	Status    *BillStatus
	Skip      int
	Limit     int
}
