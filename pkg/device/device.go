// Package device implements the device side of enrollment and
// re-authentication.
//
// An EnrollmentCoordinator creates the long-term key, proves possession of
// it bound to the identity hashes, seals the PII record for the verifier and
// stores the wrapped secret in the device's single enrollment slot. A
// VerificationCoordinator later unwraps that secret and produces a fresh
// proof bound to a verifier-issued session. Client drives both against a
// Transport.
package device

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/allsmog/zkekyc-go/pkg/logging"
	"github.com/allsmog/zkekyc-go/pkg/storage"
	"github.com/allsmog/zkekyc-go/pkg/vault"
)

var (
	// ErrNotEnrolled means there is no usable enrollment on this device.
	// Callers route the user to enrollment.
	ErrNotEnrolled = errors.New("not enrolled")

	// ErrStorageUnavailable means the secret store or key facility could
	// not be used. Nothing was persisted; the flow may be retried.
	ErrStorageUnavailable = errors.New("secure storage unavailable")

	// ErrTransport wraps network failures talking to the verifier.
	ErrTransport = errors.New("transport failure")

	// ErrRejected means the verifier answered and refused the payload.
	ErrRejected = errors.New("rejected by verifier")

	// ErrInvalidRequest indicates missing or malformed caller input.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrInvalidTransition is returned when a login attempt is driven out of
	// order.
	ErrInvalidTransition = errors.New("invalid attempt transition")
)

// Option configures a coordinator or client.
type Option func(*options)

type options struct {
	now    func() time.Time
	rand   io.Reader
	logger *slog.Logger
}

func newOptions(opts []Option) options {
	o := options{now: time.Now, rand: rand.Reader}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = logging.OrDiscard(o.logger)
	return o
}

// WithClock overrides the time source used for payload timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithRand overrides the randomness source for keys and proof nonces.
func WithRand(r io.Reader) Option {
	return func(o *options) { o.rand = r }
}

// WithLogger sets the logger. Secrets are never passed to it.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// storageError maps store and key facility failures onto the device taxonomy.
func storageError(op string, err error) error {
	switch {
	case errors.Is(err, storage.ErrUnavailable), errors.Is(err, vault.ErrKeyUnavailable):
		return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
