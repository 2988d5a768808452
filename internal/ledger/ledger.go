package ledger

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/careops/billing-service/internal/correlation"
	"github.com/careops/billing-service/internal/interfaces"
	"github.com/careops/billing-service/internal/models"
	"github.com/careops/billing-service/internal/models/events"
)

// Ledger owns the Bill entity: it enforces the one-bill-per-appointment
// invariant, the OPEN/PAID/VOID state machine, and tax-inclusive totals.
// Atomicity of the uniqueness check and of status transitions is delegated to
// the store (unique constraint, row lock); the ledger holds no locks itself.
type Ledger struct {
	store  interfaces.BillStore
	events interfaces.EventPublisher
	tax    TaxPolicy
	log    zerolog.Logger
}

// NewLedger wires the ledger with a storage implementation, an event
// publisher, and the tax policy in force.
func NewLedger(store interfaces.BillStore, publisher interfaces.EventPublisher, tax TaxPolicy, log zerolog.Logger) *Ledger {
	return &Ledger{
		store:  store,
		events: publisher,
		tax:    tax,
		log:    log,
	}
}

// CreateBillInput is the caller-supplied portion of a new bill. BaseAmount is
// the pre-tax amount; the persisted bill carries the post-tax total.
type CreateBillInput struct {
	PatientID     int64
	AppointmentID int64
	BaseAmount    decimal.Decimal
}

// CreateBill computes the tax-inclusive total and persists a new OPEN bill.
// A second create for the same appointment fails with
// models.ErrDuplicateAppointment; the operation never silently returns the
// existing bill.
func (l *Ledger) CreateBill(ctx context.Context, in CreateBillInput) (models.Bill, error) {
	if in.PatientID <= 0 {
		return models.Bill{}, fmt.Errorf("%w: patient_id is required", models.ErrValidation)
	}
	if in.AppointmentID <= 0 {
		return models.Bill{}, fmt.Errorf("%w: appointment_id is required", models.ErrValidation)
	}
	if in.BaseAmount.IsNegative() {
		return models.Bill{}, fmt.Errorf("%w: amount must not be negative", models.ErrValidation)
	}

	bill := models.Bill{
		PatientID:     in.PatientID,
		AppointmentID: in.AppointmentID,
		Amount:        l.tax.Total(in.BaseAmount),
		Status:        models.BillStatusOpen,
	}

	created, err := l.store.CreateBill(ctx, bill)
	if err != nil {
		return models.Bill{}, err
	}

	corrID := correlation.FromContext(ctx)
	l.log.Info().
		Int64("bill_id", created.ID).
		Int64("appointment_id", created.AppointmentID).
		Str("amount", created.Amount.String()).
		Str("correlation_id", corrID).
		Msg("bill_created")

	l.publish(ctx, created.ID, events.BillCreated{
		BillID:        created.ID,
		PatientID:     created.PatientID,
		AppointmentID: created.AppointmentID,
		Amount:        created.Amount,
		CorrelationID: corrID,
		OccurredAt:    time.Now().UTC(),
	})

	return created, nil
}

// VoidBill transitions an OPEN bill to VOID. Voiding a PAID bill fails with
// models.ErrInvalidTransition; re-voiding an already VOID bill succeeds as a
// no-op.
func (l *Ledger) VoidBill(ctx context.Context, billID int64) (models.Bill, error) {
	bill, err := l.store.UpdateStatus(ctx, billID, func(current models.Bill) (models.BillStatus, error) {
		if current.Status == models.BillStatusPaid {
			return "", fmt.Errorf("%w: cannot void a paid bill", models.ErrInvalidTransition)
		}
		if err := current.Status.Transition(models.BillStatusVoid); err != nil {
			return "", err
		}
		return models.BillStatusVoid, nil
	})
	if err != nil {
		return models.Bill{}, err
	}

	corrID := correlation.FromContext(ctx)
	l.log.Info().
		Int64("bill_id", bill.ID).
		Str("correlation_id", corrID).
		Msg("bill_voided")

	l.publish(ctx, bill.ID, events.BillVoided{
		BillID:        bill.ID,
		CorrelationID: corrID,
		OccurredAt:    time.Now().UTC(),
	})

	return bill, nil
}

// MarkPaid transitions an OPEN bill to PAID, driven by the payment
// collaborator's confirmation. The guards mirror VoidBill: paying a VOID bill
// fails, re-paying a PAID bill is a no-op.
func (l *Ledger) MarkPaid(ctx context.Context, billID int64) (models.Bill, error) {
	bill, err := l.store.UpdateStatus(ctx, billID, func(current models.Bill) (models.BillStatus, error) {
		if current.Status == models.BillStatusVoid {
			return "", fmt.Errorf("%w: cannot mark a void bill as paid", models.ErrInvalidTransition)
		}
		if err := current.Status.Transition(models.BillStatusPaid); err != nil {
			return "", err
		}
		return models.BillStatusPaid, nil
	})
	if err != nil {
		return models.Bill{}, err
	}

	corrID := correlation.FromContext(ctx)
	l.log.Info().
		Int64("bill_id", bill.ID).
		Str("correlation_id", corrID).
		Msg("bill_paid")

	l.publish(ctx, bill.ID, events.BillPaid{
		BillID:        bill.ID,
		CorrelationID: corrID,
		OccurredAt:    time.Now().UTC(),
	})

	return bill, nil
}

// GetBill returns the bill with the given id.
func (l *Ledger) GetBill(ctx context.Context, billID int64) (models.Bill, error) {
	return l.store.GetBill(ctx, billID)
}

// ListBills returns the page of bills matching the filter plus the count of
// all matching bills before pagination. An empty result is not an error.
func (l *Ledger) ListBills(ctx context.Context, filter models.BillFilter) ([]models.Bill, int, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown status %q", models.ErrValidation, *filter.Status)
	}
	if filter.Skip < 0 {
		filter.Skip = 0
	}
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 100
	}

	bills, total, err := l.store.ListBills(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	l.log.Info().
		Int("total", total).
		Int("returned", len(bills)).
		Msg("bills_retrieved")

	return bills, total, nil
}

// publish sends an event if a publisher is configured. Failures are logged
// and swallowed: events are advisory, not part of the transactional contract.
func (l *Ledger) publish(ctx context.Context, billID int64, event any) {
	if l.events == nil {
		return
	}
	if err := l.events.Publish(ctx, strconv.FormatInt(billID, 10), event); err != nil {
		l.log.Warn().Err(err).Int64("bill_id", billID).Msg("failed to publish bill event")
	}
}
