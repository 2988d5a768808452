package interfaces

import (
	"context"

	"github.com/careops/billing-service/internal/models"
)

// BillStore is the persistence contract for the billing ledger.
//
// Implementations must make CreateBill an atomic check-and-insert with
// respect to the one-bill-per-appointment invariant: two concurrent creates
// for the same appointment must never both succeed. UpdateStatus must run the
// apply callback and the resulting write inside one critical section (a row
// lock, a serializable transaction, or the store's own mutex), so concurrent
// transitions observe a consistent current status.
type BillStore interface {
	// CreateBill persists a new bill, assigning ID and CreatedAt. A bill
	// already existing for the same appointment fails with
	// models.ErrDuplicateAppointment.
	CreateBill(ctx context.Context, bill models.Bill) (models.Bill, error)

	// GetBill returns the bill with the given id, or models.ErrBillNotFound.
	GetBill(ctx context.Context, id int64) (models.Bill, error)

	// UpdateStatus loads the bill under a lock, calls apply with its current
	// state, and persists the status apply returns. An error from apply
	// aborts the update and is returned unchanged. A missing bill fails with
	// models.ErrBillNotFound.
	UpdateStatus(ctx context.Context, id int64, apply func(models.Bill) (models.BillStatus, error)) (models.Bill, error)

	// ListBills returns the page of bills matching the filter ordered by
	// CreatedAt descending (ties in insertion order), plus the total number
	// of matching bills before pagination.
	ListBills(ctx context.Context, filter models.BillFilter) ([]models.Bill, int, error)
}
