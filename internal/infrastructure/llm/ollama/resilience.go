package ollama

import (
	"context"
	"errors"
	"net"

	"github.com/finraglab/finrag/internal/core/domain"
	"github.com/finraglab/finrag/internal/infrastructure/resilience"
)

// classifyModelError decides retry and breaker behavior for one failed
// model call. Client mistakes (4xx) are terminal and do not count
// against the breaker; outages and timeouts do.
func classifyModelError(err error) resilience.Classification {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.Classification{Retryable: false, RecordFailure: false}
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		if retryableStatus(statusErr.StatusCode) {
			return resilience.Classification{Retryable: true, RecordFailure: true}
		}
		return resilience.Classification{Retryable: false, RecordFailure: false}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.Classification{Retryable: true, RecordFailure: true}
	}
	return resilience.Classification{Retryable: true, RecordFailure: true}
}

func retryableStatus(code int) bool {
	switch code {
	case 408, 429:
		return true
	}
	return code >= 500
}

// wrapTemporaryIfRetryable tags transient transport failures so the
// structured-output retry loop treats them like validation misses.
func wrapTemporaryIfRetryable(operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if classifyModelError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}
