package genai

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy is a small fixed attempt budget with linearly growing delay:
// BaseDelay, 2*BaseDelay, 3*BaseDelay, ...
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, BaseDelay: time.Second}
}

type linearBackOff struct {
	base time.Duration
	n    int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.n++
	return time.Duration(b.n) * b.base
}

func (b *linearBackOff) Reset() { b.n = 0 }

// Retrying wraps a Backend with the retry policy. Exhausted calls return an
// error matching ErrBackendUnavailable.
type Retrying struct {
	next   Backend
	policy RetryPolicy
	log    *log.Logger
}

func NewRetrying(next Backend, policy RetryPolicy, logger *log.Logger) *Retrying {
	if policy.Attempts <= 0 {
		policy.Attempts = 1
	}
	if policy.BaseDelay < 0 {
		policy.BaseDelay = 0
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Retrying{next: next, policy: policy, log: logger}
}

func (r *Retrying) options(op string) []backoff.RetryOption {
	return []backoff.RetryOption{
		backoff.WithBackOff(&linearBackOff{base: r.policy.BaseDelay}),
		backoff.WithMaxTries(uint(r.policy.Attempts)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			r.log.Printf("genai %s failed, retrying in %s: %v", op, wait, err)
		}),
	}
}

func (r *Retrying) Complete(ctx context.Context, messages []Message, opts Options) (string, error) {
	out, err := backoff.Retry(ctx, func() (string, error) {
		s, err := r.next.Complete(ctx, messages, opts)
		if err != nil && ctx.Err() != nil {
			return "", backoff.Permanent(err)
		}
		return s, err
	}, r.options("complete")...)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
	return out, nil
}

func (r *Retrying) Image(ctx context.Context, prompt string, size string) (ImageRef, error) {
	out, err := backoff.Retry(ctx, func() (ImageRef, error) {
		ref, err := r.next.Image(ctx, prompt, size)
		if err != nil && ctx.Err() != nil {
			return ImageRef{}, backoff.Permanent(err)
		}
		return ref, err
	}, r.options("image")...)
	if err != nil {
		return ImageRef{}, fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
	return out, nil
}
