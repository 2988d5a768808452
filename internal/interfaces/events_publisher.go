package interfaces

import "context"

// EventPublisher delivers bill lifecycle events to interested collaborators.
// Publishing is advisory: the ledger logs failures and never fails the
// request over them.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}
