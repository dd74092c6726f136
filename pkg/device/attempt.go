package device

import (
	"fmt"
	"sync"
)

// AttemptState is the position of a login attempt.
type AttemptState int

const (
	StateIdle AttemptState = iota
	StateAwaitingChallenge
	StateProofGenerated
	StateSubmitted
	StateAccepted
	StateRejected
	StateFailed
)

func (s AttemptState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingChallenge:
		return "awaiting_challenge"
	case StateProofGenerated:
		return "proof_generated"
	case StateSubmitted:
		return "submitted"
	case StateAccepted:
		return "accepted"
	case StateRejected:
		return "rejected"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("AttemptState(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s AttemptState) Terminal() bool {
	return s == StateAccepted || s == StateRejected || s == StateFailed
}

// Attempt tracks one login:
// Idle -> AwaitingChallenge -> ProofGenerated -> Submitted -> Accepted|Rejected.
// Any non-terminal state may move to Failed.
type Attempt struct {
	mu        sync.Mutex
	state     AttemptState
	sessionID string
	err       error
}

// NewAttempt returns an attempt in StateIdle.
func NewAttempt() *Attempt {
	return &Attempt{}
}

// State returns the current state.
func (a *Attempt) State() AttemptState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// SessionID returns the session the attempt was issued, if any.
func (a *Attempt) SessionID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sessionID
}

// Err returns the failure recorded by Fail.
func (a *Attempt) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// Start moves Idle to AwaitingChallenge.
func (a *Attempt) Start() error {
	return a.transition(StateIdle, StateAwaitingChallenge)
}

// ProofReady records the issued session and moves to ProofGenerated.
func (a *Attempt) ProofReady(sessionID string) error {
	if err := a.transition(StateAwaitingChallenge, StateProofGenerated); err != nil {
		return err
	}
	a.mu.Lock()
	a.sessionID = sessionID
	a.mu.Unlock()
	return nil
}

// Submitted moves ProofGenerated to Submitted.
func (a *Attempt) Submitted() error {
	return a.transition(StateProofGenerated, StateSubmitted)
}

// Complete records the verifier's decision.
func (a *Attempt) Complete(accepted bool) error {
	to := StateRejected
	if accepted {
		to = StateAccepted
	}
	return a.transition(StateSubmitted, to)
}

// Fail moves any non-terminal attempt to Failed and records err.
func (a *Attempt) Fail(err error) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.state, StateFailed)
	}
	a.state = StateFailed
	a.err = err
	return nil
}

func (a *Attempt) transition(from, to AttemptState) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != from {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.state, to)
	}
	a.state = to
	return nil
}
