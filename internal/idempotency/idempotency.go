// Package idempotency lets a client retry a state-changing request with the
// same Idempotency-Key and get back the first response instead of a second
// execution.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

const (
	Header     = "Idempotency-Key"
	DefaultTTL = 24 * time.Hour

	statusProcessing = "processing"
	statusSuccess    = "success"
)

var ErrInProgress = errors.New("idempotency key is already being processed")

// Result is the response stored for a completed request.
type Result struct {
	StatusCode int             `json:"status_code"`
	Body       json.RawMessage `json:"body,omitempty"`
}

// Gateway reserves keys for the duration of one request.
//
// Reserve returns (nil, nil) when the caller now owns the key, the stored
// result when the key already completed, and ErrInProgress while another
// request holds it. The owner must call MarkSuccess or MarkFailure.
type Gateway interface {
	Reserve(ctx context.Context, key string) (*Result, error)
	MarkSuccess(ctx context.Context, key string, res Result) error
	MarkFailure(ctx context.Context, key string) error
}

type state struct {
	Status string  `json:"status"`
	Result *Result `json:"result,omitempty"`
}
