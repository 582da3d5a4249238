package completion

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrEmptyPrompt       = errors.New("prompt is empty")
	ErrMalformedResponse = errors.New("malformed completion response")
	ErrUnavailable       = errors.New("completion backend not configured")
)

// Completer turns one prompt into one reply.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// SystemPrompted is implemented by completers that send their own system message.
type SystemPrompted interface {
	SystemPrompt() string
}

// HasSystemPrompt reports whether c already frames prompts with a non-empty system message.
func HasSystemPrompt(c Completer) bool {
	sp, ok := c.(SystemPrompted)
	return ok && sp.SystemPrompt() != ""
}

// StatusError reports a non-2xx answer from the endpoint.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("completion endpoint returned status %d: %s", e.Code, e.Body)
}

// Unavailable is the Completer used when no backend is configured.
type Unavailable struct{}

// Complete always fails with ErrUnavailable.
func (Unavailable) Complete(context.Context, string) (string, error) {
	return "", ErrUnavailable
}
