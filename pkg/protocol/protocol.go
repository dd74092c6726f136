// Package protocol defines the wire contract between a device and a
// verifier: payload shapes, the exact binding messages both sides hash into
// proof challenges, and the public enrollment commitment.
package protocol

import (
	"fmt"

	"github.com/allsmog/zkekyc-go/pkg/crypto/curve"
	"github.com/allsmog/zkekyc-go/pkg/crypto/schnorr"
)

// EnrollmentPayload is submitted once per enrollment.
type EnrollmentPayload struct {
	PublicKey    string            `json:"publicKey"`
	Commitment   string            `json:"commitment"`
	IDNumberHash string            `json:"idNumberHash"`
	EncryptedPII string            `json:"encryptedPII"` // JSON {"ciphertext","iv"}
	Proof        schnorr.ProofData `json:"proof"`
	Timestamp    int64             `json:"timestamp"` // unix milliseconds
	FullNameHash string            `json:"fullNameHash"`
	DOBHash      string            `json:"dobHash"`
	Approval     int               `json:"approval"`
}

// VerificationPayload is submitted for every re-authentication.
type VerificationPayload struct {
	PublicKey string            `json:"publicKey"`
	Proof     schnorr.ProofData `json:"proof"`
	Nullifier string            `json:"nullifier"`
	Timestamp int64             `json:"timestamp"` // unix milliseconds
}

// ChallengeResponse is the verifier's answer to a challenge request.
type ChallengeResponse struct {
	SessionID string `json:"sessionId"`
}

// SubmitResponse is the verifier's answer to an enrollment or verification.
type SubmitResponse struct {
	Success      bool   `json:"success"`
	UserID       *int64 `json:"userId,omitempty"`
	SessionToken string `json:"sessionToken,omitempty"`
	Detail       string `json:"detail,omitempty"`
}

// ErrorResponse is the body of a non-2xx verifier answer.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// PIIRecord is the plaintext sealed into EncryptedPII.
type PIIRecord struct {
	IDNumber     string `json:"idNumber"`
	FullName     string `json:"fullName"`
	PhoneNumber  string `json:"phoneNumber"`
	Address      string `json:"address"`
	DOB          string `json:"dob"`
	Origin       string `json:"origin"`
	FaceApproval int    `json:"faceApproval"`
}

// EnrollmentBinding lists the fields hashed into the enrollment proof.
type EnrollmentBinding struct {
	Commitment string
	IDHash     string
	NameHash   string
	DOBHash    string
	Approval   int
	Timestamp  int64
}

// Message renders the enrollment binding message. Field order and labels
// are fixed; verifiers rebuild this string byte for byte.
func (b EnrollmentBinding) Message() []byte {
	return []byte(fmt.Sprintf("ENROLL:commitment:%s:id:%s:name:%s:dob:%s:approval:%d:ts:%d",
		b.Commitment, b.IDHash, b.NameHash, b.DOBHash, b.Approval, b.Timestamp))
}

// Binding extracts the enrollment binding from a payload.
func (p *EnrollmentPayload) Binding() EnrollmentBinding {
	return EnrollmentBinding{
		Commitment: p.Commitment,
		IDHash:     p.IDNumberHash,
		NameHash:   p.FullNameHash,
		DOBHash:    p.DOBHash,
		Approval:   p.Approval,
		Timestamp:  p.Timestamp,
	}
}

// VerificationMessage renders the re-authentication binding message.
func VerificationMessage(sessionID string, timestamp int64) []byte {
	return []byte(fmt.Sprintf("VERIFY:%s:%d", sessionID, timestamp))
}

// IdentityCommitment binds a public key to an ID document hash:
// HashHex(pointHex(public) || idHash).
func IdentityCommitment(publicKeyHex, idHash string) string {
	return schnorr.HashHex(publicKeyHex + idHash)
}

// CommitmentFor is IdentityCommitment over a decoded point.
func CommitmentFor(public curve.Point, idHash string) string {
	return IdentityCommitment(curve.EncodePointHex(public), idHash)
}
