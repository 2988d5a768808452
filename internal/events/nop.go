package events

import (
	"context"

	"github.com/careops/billing-service/internal/interfaces"
)

// NopPublisher discards every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }

var _ interfaces.EventPublisher = NopPublisher{}
