package device

import (
	"context"

	"github.com/allsmog/zkekyc-go/pkg/protocol"
)

// Transport carries payloads to a verifier. Implementations wrap network
// failures in ErrTransport and report verifier refusals as a SubmitResult
// with Accepted false.
type Transport interface {
	// IssueChallenge asks the verifier for a fresh single-use session id.
	IssueChallenge(ctx context.Context) (string, error)

	SubmitEnrollment(ctx context.Context, p *protocol.EnrollmentPayload) (*SubmitResult, error)

	SubmitVerification(ctx context.Context, p *protocol.VerificationPayload, sessionID string) (*SubmitResult, error)
}

// SubmitResult is the verifier's decision.
type SubmitResult struct {
	Accepted     bool
	UserID       *int64
	SessionToken string
	Detail       string
}
