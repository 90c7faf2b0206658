package usecase

import (
	"context"

	"github.com/finraglab/finrag/internal/core/domain"
)

// attemptOutcome classifies one structured-completion attempt.
type attemptOutcome int

const (
	attemptSuccess attemptOutcome = iota
	attemptRetry
	attemptExhausted
)

// classifyAttempt decides what happens after attempt n of maxAttempts.
// Only validation and temporary failures earn a retry; anything else,
// or running out of attempts, is terminal.
func classifyAttempt(attempt, maxAttempts int, err error) attemptOutcome {
	switch {
	case err == nil:
		return attemptSuccess
	case attempt >= maxAttempts:
		return attemptExhausted
	case domain.IsKind(err, domain.ErrValidation) || domain.IsKind(err, domain.ErrTemporary):
		return attemptRetry
	default:
		return attemptExhausted
	}
}

// runStructured drives a structured completion through bounded
// immediate retries. After each failed attempt the corrective message
// is appended to the conversation so the model sees what went wrong.
// The message slice passed to call is never shared with the caller.
func runStructured(ctx context.Context, maxAttempts int, messages []domain.ChatMessage, corrective string, call func(ctx context.Context, messages []domain.ChatMessage) error) error {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	msgs := make([]domain.ChatMessage, len(messages))
	copy(msgs, messages)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := call(ctx, msgs)
		switch classifyAttempt(attempt, maxAttempts, err) {
		case attemptSuccess:
			return nil
		case attemptRetry:
			lastErr = err
			msgs = append(msgs, domain.ChatMessage{Role: domain.RoleSystem, Content: corrective})
		case attemptExhausted:
			return err
		}
	}
	return lastErr
}
