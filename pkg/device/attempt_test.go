package device

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttemptHappyPath(t *testing.T) {
	a := NewAttempt()
	require.Equal(t, StateIdle, a.State())

	require.NoError(t, a.Start())
	require.NoError(t, a.ProofReady("sid-1"))
	assert.Equal(t, "sid-1", a.SessionID())
	require.NoError(t, a.Submitted())
	require.NoError(t, a.Complete(true))
	assert.Equal(t, StateAccepted, a.State())
	assert.True(t, a.State().Terminal())
}

func TestAttemptRejects(t *testing.T) {
	a := NewAttempt()
	require.NoError(t, a.Start())
	require.NoError(t, a.ProofReady("sid"))
	require.NoError(t, a.Submitted())
	require.NoError(t, a.Complete(false))
	assert.Equal(t, StateRejected, a.State())

	assert.ErrorIs(t, a.Fail(errors.New("late")), ErrInvalidTransition)
	assert.Equal(t, StateRejected, a.State())
}

func TestAttemptOutOfOrder(t *testing.T) {
	a := NewAttempt()
	assert.ErrorIs(t, a.Submitted(), ErrInvalidTransition)
	assert.ErrorIs(t, a.ProofReady("sid"), ErrInvalidTransition)
	assert.ErrorIs(t, a.Complete(true), ErrInvalidTransition)
	assert.Equal(t, StateIdle, a.State())
	assert.Empty(t, a.SessionID())

	require.NoError(t, a.Start())
	assert.ErrorIs(t, a.Start(), ErrInvalidTransition)
}

func TestAttemptFail(t *testing.T) {
	boom := errors.New("boom")
	a := NewAttempt()
	require.NoError(t, a.Start())
	require.NoError(t, a.Fail(boom))
	assert.Equal(t, StateFailed, a.State())
	assert.Equal(t, boom, a.Err())
	assert.ErrorIs(t, a.Start(), ErrInvalidTransition)
}

func TestAttemptStateString(t *testing.T) {
	assert.Equal(t, "awaiting_challenge", StateAwaitingChallenge.String())
	assert.Equal(t, "proof_generated", StateProofGenerated.String())
	assert.Equal(t, "AttemptState(42)", AttemptState(42).String())
}
