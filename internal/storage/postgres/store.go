package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/careops/billing-service/internal/interfaces"
	"github.com/careops/billing-service/internal/models"
)

// Store is the postgres implementation of interfaces.BillStore. The
// one-bill-per-appointment invariant is enforced by a unique constraint on
// appointment_id: the insert either commits or fails with a unique violation
// that is translated to models.ErrDuplicateAppointment, closing the
// check-then-insert race. Status updates lock the row with FOR UPDATE inside
// a transaction.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS bills (
	bill_id        BIGSERIAL PRIMARY KEY,
	patient_id     BIGINT NOT NULL,
	appointment_id BIGINT NOT NULL,
	amount         NUMERIC(10,2) NOT NULL,
	status         TEXT NOT NULL DEFAULT 'OPEN',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS bills_appointment_id_key ON bills (appointment_id);
CREATE INDEX IF NOT EXISTS bills_patient_id_idx ON bills (patient_id);
CREATE INDEX IF NOT EXISTS bills_status_idx ON bills (status);
`

// Migrate creates the bills table and its indexes if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("%w: migrate bills: %v", models.ErrStorage, err)
	}
	return nil
}

func (s *Store) CreateBill(ctx context.Context, bill models.Bill) (models.Bill, error) {
	const query = `INSERT INTO bills (patient_id, appointment_id, amount, status)
	VALUES ($1, $2, $3, $4)
	RETURNING bill_id, created_at`

	err := s.db.QueryRowContext(ctx, query,
		bill.PatientID, bill.AppointmentID, bill.Amount, string(bill.Status),
	).Scan(&bill.ID, &bill.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return models.Bill{}, models.ErrDuplicateAppointment
		}
		return models.Bill{}, fmt.Errorf("%w: insert bill: %v", models.ErrStorage, err)
	}
	return bill, nil
}

func (s *Store) GetBill(ctx context.Context, id int64) (models.Bill, error) {
	const query = `SELECT bill_id, patient_id, appointment_id, amount, status, created_at
	FROM bills WHERE bill_id = $1`

	bill, err := scanBill(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return models.Bill{}, models.ErrBillNotFound
	}
	if err != nil {
		return models.Bill{}, fmt.Errorf("%w: get bill: %v", models.ErrStorage, err)
	}
	return bill, nil
}

// UpdateStatus locks the row, runs apply against the current state, and
// persists the status it returns. Errors from apply roll the transaction
// back untouched.
func (s *Store) UpdateStatus(ctx context.Context, id int64, apply func(models.Bill) (models.BillStatus, error)) (models.Bill, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Bill{}, fmt.Errorf("%w: begin: %v", models.ErrStorage, err)
	}
	defer tx.Rollback()

	const lockQuery = `SELECT bill_id, patient_id, appointment_id, amount, status, created_at
	FROM bills WHERE bill_id = $1 FOR UPDATE`

	bill, err := scanBill(tx.QueryRowContext(ctx, lockQuery, id))
	if err == sql.ErrNoRows {
		return models.Bill{}, models.ErrBillNotFound
	}
	if err != nil {
		return models.Bill{}, fmt.Errorf("%w: lock bill: %v", models.ErrStorage, err)
	}

	next, err := apply(bill)
	if err != nil {
		return models.Bill{}, err
	}

	const updateQuery = `UPDATE bills SET status = $1 WHERE bill_id = $2`
	if _, err := tx.ExecContext(ctx, updateQuery, string(next), id); err != nil {
		return models.Bill{}, fmt.Errorf("%w: update status: %v", models.ErrStorage, err)
	}
	if err := tx.Commit(); err != nil {
		return models.Bill{}, fmt.Errorf("%w: commit: %v", models.ErrStorage, err)
	}

	bill.Status = next
	return bill, nil
}

func (s *Store) ListBills(ctx context.Context, filter models.BillFilter) ([]models.Bill, int, error) {
	var (
		conds []string
		args  []any
	)
	if filter.PatientID != nil {
		args = append(args, *filter.PatientID)
		conds = append(conds, fmt.Sprintf("patient_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	countQuery := "SELECT count(*) FROM bills" + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%w: count bills: %v", models.ErrStorage, err)
	}

	pageQuery := "SELECT bill_id, patient_id, appointment_id, amount, status, created_at FROM bills" +
		where +
		" ORDER BY created_at DESC, bill_id ASC" +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Skip)

	rows, err := s.db.QueryContext(ctx, pageQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: list bills: %v", models.ErrStorage, err)
	}
	defer rows.Close()

	bills := make([]models.Bill, 0)
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: scan bill: %v", models.ErrStorage, err)
		}
		bills = append(bills, bill)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%w: list bills: %v", models.ErrStorage, err)
	}
	return bills, total, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBill(row rowScanner) (models.Bill, error) {
	var (
		bill   models.Bill
		status string
	)
	err := row.Scan(&bill.ID, &bill.PatientID, &bill.AppointmentID, &bill.Amount, &status, &bill.CreatedAt)
	if err != nil {
		return models.Bill{}, err
	}
	bill.Status = models.BillStatus(status)
	return bill, nil
}

var _ interfaces.BillStore = (*Store)(nil)
