package device

import (
	"context"
	"errors"
	"fmt"

	"github.com/allsmog/zkekyc-go/pkg/crypto/curve"
	"github.com/allsmog/zkekyc-go/pkg/storage"
	"github.com/allsmog/zkekyc-go/pkg/vault"
)

// Client runs enrollment and login flows against a verifier.
type Client struct {
	enroll    *EnrollmentCoordinator
	verify    *VerificationCoordinator
	transport Transport
	opts      options
}

// NewClient builds both coordinators over the same vault and slot.
func NewClient(crv curve.Curve, v *vault.Vault, store storage.SecretStore, t Transport, opts ...Option) *Client {
	return &Client{
		enroll:    NewEnrollmentCoordinator(crv, v, store, opts...),
		verify:    NewVerificationCoordinator(crv, v, store, opts...),
		transport: t,
		opts:      newOptions(opts),
	}
}

// Enrollment exposes the enrollment coordinator for status and reset.
func (c *Client) Enrollment() *EnrollmentCoordinator {
	return c.enroll
}

// Enroll enrolls locally and submits the payload. The local enrollment is
// kept when the verifier refuses it; the error then matches ErrRejected.
func (c *Client) Enroll(ctx context.Context, req *EnrollmentRequest) (*EnrollmentResult, *SubmitResult, error) {
	res, err := c.enroll.Enroll(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	sub, err := c.transport.SubmitEnrollment(ctx, res.Payload)
	if err != nil {
		return res, nil, wrapTransport("submit enrollment", err)
	}
	if !sub.Accepted {
		c.opts.logger.Warn("enrollment rejected", "detail", sub.Detail)
		return res, sub, fmt.Errorf("%w: %s", ErrRejected, sub.Detail)
	}

	c.opts.logger.Info("enrollment accepted")
	return res, sub, nil
}

// Login runs one attempt: challenge, proof, submit. Every call draws a new
// session and builds a new payload.
func (c *Client) Login(ctx context.Context) (*SubmitResult, *Attempt, error) {
	a := NewAttempt()
	sub, err := c.login(ctx, a)
	if err != nil && !a.State().Terminal() {
		_ = a.Fail(err)
	}
	return sub, a, err
}

func (c *Client) login(ctx context.Context, a *Attempt) (*SubmitResult, error) {
	if err := a.Start(); err != nil {
		return nil, err
	}

	sessionID, err := c.transport.IssueChallenge(ctx)
	if err != nil {
		return nil, wrapTransport("issue challenge", err)
	}

	payload, err := c.verify.PerformVerification(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := a.ProofReady(sessionID); err != nil {
		return nil, err
	}

	if err := a.Submitted(); err != nil {
		return nil, err
	}
	sub, err := c.transport.SubmitVerification(ctx, payload, sessionID)
	if err != nil {
		return nil, wrapTransport("submit verification", err)
	}
	if err := a.Complete(sub.Accepted); err != nil {
		return nil, err
	}

	log := c.opts.logger.With("session_id", sessionID)
	if !sub.Accepted {
		log.Warn("re-authentication rejected", "detail", sub.Detail)
		return sub, fmt.Errorf("%w: %s", ErrRejected, sub.Detail)
	}
	log.Info("re-authentication accepted")
	return sub, nil
}

func wrapTransport(op string, err error) error {
	if errors.Is(err, ErrTransport) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrTransport, err)
}
