package llm

import (
	"context"
	"errors"
	"fmt"
)

// Turn is one prior exchange in an accumulated conversation.
type Turn struct {
	Role string // RoleUser or RoleModel
	Text string
}

const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Client is the external AI capability: given accumulated conversation
// turns and a prompt, return text or fail. The annotation layer is
// agnostic to provider, model and transport.
type Client interface {
	Send(ctx context.Context, turns []Turn, prompt string) (string, error)
	Model() string
}

// RequestError is a failed call to the AI capability. Retryable errors
// (rate limits, transient network and server failures) are eligible for
// bounded retry with backoff; non-retryable ones (bad credentials, quota
// exhaustion, malformed responses) propagate immediately.
type RequestError struct {
	Status    int
	Reason    string
	Retryable bool
}

func (e *RequestError) Error() string {
	kind := "permanent"
	if e.Retryable {
		kind = "retryable"
	}
	if e.Status > 0 {
		return fmt.Sprintf("ai request failed (%s, status %d): %s", kind, e.Status, e.Reason)
	}
	return fmt.Sprintf("ai request failed (%s): %s", kind, e.Reason)
}

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Retryable
	}
	return false
}
