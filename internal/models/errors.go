package models

import "errors"

// Error taxonomy for the billing ledger. Operations wrap these with %w so
// callers classify failures with errors.Is and map them to transport codes.
var (
	// ErrValidation marks malformed or missing input fields.
	ErrValidation = errors.New("invalid input")

	// ErrDuplicateAppointment is returned when a bill already exists for the
	// requested appointment. The create operation is deliberately not
	// idempotent; callers must fetch the existing bill instead of retrying.
	ErrDuplicateAppointment = errors.New("bill already exists for this appointment")

	// ErrBillNotFound is returned when the referenced bill does not exist.
	ErrBillNotFound = errors.New("bill not found")

	// ErrInvalidTransition is returned when a requested status change
	// violates the bill state machine.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrStorage marks an underlying persistence failure. The ledger never
	// retries; transient failures are the caller's problem.
	ErrStorage = errors.New("storage failure")
)
