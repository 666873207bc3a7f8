// Package verification keeps the short-lived codes sent to an email address
// or phone number before signup, login and rebind.
package verification

import (
	"context"
	"time"

	"github.com/Skotchmaster/auth_center/internal/logging"
)

const (
	DefaultTTL    = 5 * time.Minute
	DefaultGrace  = time.Second
	DefaultLength = 5
)

// Store holds at most one pending code per destination.
type Store interface {
	// Set replaces any pending code for destination.
	Set(ctx context.Context, destination, code string, ttl time.Duration) error
	Get(ctx context.Context, destination string) (string, bool, error)
	// Shorten moves the expiry of destination closer to now, but only while
	// the pending code is still code.
	Shorten(ctx context.Context, destination, code string, ttl time.Duration) error
}

type CodeGenerator interface {
	Next() (string, error)
}

type Registry struct {
	store Store
	gen   CodeGenerator
	ttl   time.Duration
	grace time.Duration
}

type Option func(*Registry)

func WithTTL(ttl time.Duration) Option {
	return func(r *Registry) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

func WithGrace(grace time.Duration) Option {
	return func(r *Registry) {
		if grace > 0 {
			r.grace = grace
		}
	}
}

func NewRegistry(store Store, gen CodeGenerator, opts ...Option) *Registry {
	r := &Registry{store: store, gen: gen, ttl: DefaultTTL, grace: DefaultGrace}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) TTL() time.Duration { return r.ttl }

// Issue generates a code for destination, replacing the previous one.
func (r *Registry) Issue(ctx context.Context, destination string) (string, error) {
	code, err := r.gen.Next()
	if err != nil {
		return "", err
	}
	if err := r.store.Set(ctx, destination, code, r.ttl); err != nil {
		return "", err
	}
	return code, nil
}

// Check reports whether candidate is the pending code for destination.
// Store failures are logged and read as a mismatch.
func (r *Registry) Check(ctx context.Context, destination, candidate string) bool {
	if destination == "" || candidate == "" {
		return false
	}
	code, ok, err := r.store.Get(ctx, destination)
	if err != nil {
		logging.FromContext(ctx).Error("verification_check_failed", "error", err)
		return false
	}
	return ok && code == candidate
}

// Consume retires the pending code after the grace window. Calling it more
// than once, or for an unknown destination, is a no-op.
func (r *Registry) Consume(ctx context.Context, destination string) {
	l := logging.FromContext(ctx)
	code, ok, err := r.store.Get(ctx, destination)
	if err != nil {
		l.Error("verification_consume_failed", "error", err)
		return
	}
	if !ok {
		return
	}
	if err := r.store.Shorten(ctx, destination, code, r.grace); err != nil {
		l.Error("verification_consume_failed", "error", err)
	}
}
