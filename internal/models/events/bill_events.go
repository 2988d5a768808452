package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// BillCreated is published after a bill is persisted with status OPEN.
type BillCreated struct {
	BillID        int64           `json:"bill_id"`
	PatientID     int64           `json:"patient_id"`
	AppointmentID int64           `json:"appointment_id"`
	Amount        decimal.Decimal `json:"amount"`
	CorrelationID string          `json:"correlation_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// BillVoided is published after a bill transitions to VOID.
type BillVoided struct {
	BillID        int64     `json:"bill_id"`
	CorrelationID string    `json:"correlation_id"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// BillPaid is published after a bill transitions to PAID.
type BillPaid struct {
	BillID        int64     `json:"bill_id"`
	CorrelationID string    `json:"correlation_id"`
	OccurredAt    time.Time `json:"occurred_at"`
}
