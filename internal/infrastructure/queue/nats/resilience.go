package nats

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/finraglab/finrag/internal/infrastructure/resilience"
)

// classifyQueueError: connection hiccups are retryable, permission or
// payload problems are not.
func classifyQueueError(err error) resilience.Classification {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.Classification{}
	case errors.Is(err, nats.ErrConnectionClosed),
		errors.Is(err, nats.ErrConnectionDraining),
		errors.Is(err, nats.ErrConnectionReconnecting),
		errors.Is(err, nats.ErrTimeout),
		errors.Is(err, nats.ErrNoServers):
		return resilience.Classification{Retryable: true, RecordFailure: true}
	case errors.Is(err, nats.ErrMaxPayload), errors.Is(err, nats.ErrBadSubject):
		return resilience.Classification{}
	default:
		return resilience.Classification{Retryable: true, RecordFailure: true}
	}
}
