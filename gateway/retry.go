package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/logging"
)

// RetryOptions configures the Retrying decorator.
type RetryOptions struct {
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries uint64
	// InitialInterval seeds the exponential backoff schedule.
	InitialInterval time.Duration
	// MaxInterval caps the delay between attempts.
	MaxInterval time.Duration
	// Logger receives one entry per retried attempt. Defaults to NoOp.
	Logger logging.Logger
}

// Retrying decorates a Gateway with exponential backoff on retryable
// failures. Fatal and context-exceeded errors pass through immediately; a
// retry budget exhausted on retryable errors is converted into a FatalError,
// so callers above the decorator never observe RetryableError.
type Retrying struct {
	inner  Gateway
	opts   RetryOptions
	logger logging.Logger
}

// NewRetrying wraps inner with the retry policy.
func NewRetrying(inner Gateway, optFns ...func(o *RetryOptions)) *Retrying {
	opts := RetryOptions{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Retrying{inner: inner, opts: opts, logger: opts.Logger}
}

// Send implements Gateway.
func (g *Retrying) Send(ctx context.Context, messages []core.Message, tools []core.ToolSpec) (*Reply, error) {
	var reply *Reply
	attempt := 0

	operation := func() error {
		attempt++
		r, err := g.inner.Send(ctx, messages, tools)
		if err != nil {
			if IsRetryable(err) {
				g.logger.Warn("gateway.send.retry", "attempt", attempt, "error", err.Error())
				return err
			}
			return backoff.Permanent(err)
		}
		reply = r
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = g.opts.InitialInterval
	policy.MaxInterval = g.opts.MaxInterval
	policy.MaxElapsedTime = 0 // bounded by MaxRetries and ctx, not wall clock

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, g.opts.MaxRetries), ctx))
	if err != nil {
		if IsRetryable(err) {
			return nil, &FatalError{Err: fmt.Errorf("retry budget exhausted after %d attempts: %w", attempt, err)}
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, err
	}

	return reply, nil
}

// Info implements Gateway by delegating to the wrapped implementation.
func (g *Retrying) Info() Info { return g.inner.Info() }
