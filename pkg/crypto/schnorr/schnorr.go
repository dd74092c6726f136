// Package schnorr implements the non-interactive Schnorr proof of knowledge
// of a discrete logarithm that backs enrollment and re-authentication.
//
// # Protocol Overview
//
// The prover holds a secret scalar x with public key P = x*G and wants to
// convince a verifier that it knows x, bound to a specific message, without
// revealing x.
//
//  1. COMMITMENT:
//     - draw a fresh nonce k
//     - compute R = k*G
//
//  2. CHALLENGE (Fiat-Shamir):
//     - c = H(R || P || message) mod n
//
//  3. RESPONSE:
//     - s = k + c*x (mod n)
//
//  4. VERIFICATION:
//     - recompute c from (R, P, message) and compare with the proof's c
//     - check s*G == R + c*P
//
// # Why This Works
//
//	s*G = (k + c*x)*G
//	    = k*G + c*x*G
//	    = R + c*P
//
// The message is hashed into the challenge, so a proof generated for one
// binding message does not verify against any other.
//
// # Hash Layout
//
// H is SHA-256 over the compressed encodings of R and P followed by the raw
// message bytes, with no separator or length prefix. This is the layout the
// enrollment verifier reconstructs and must not change without a coordinated
// protocol revision.
//
// # Nonce Discipline
//
// Reusing k for two different challenges reveals x:
//
//	x = (s1 - s2) / (c1 - c2) mod n
//
// GenerateProof therefore draws k afresh on every call and never caches it.
package schnorr

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/allsmog/zkekyc-go/pkg/crypto/curve"
)

var (
	// ErrVerificationFailed is reported when a well-formed proof does not
	// satisfy the verification equation or the challenge does not match.
	ErrVerificationFailed = errors.New("proof verification failed")

	// ErrInvalidProof is reported for structurally unusable proofs
	// (missing components, identity commitment).
	ErrInvalidProof = errors.New("invalid proof")
)

// KeyPair is a long-term identity key.
type KeyPair struct {
	Secret curve.Scalar
	Public curve.Point
}

// Proof is a non-interactive Schnorr proof.
type Proof struct {
	Commitment curve.Point  // R = k*G
	Challenge  curve.Scalar // c = H(R || P || m) mod n
	Response   curve.Scalar // s = k + c*x mod n
}

// VerificationResult contains the outcome of verifying an encoded proof.
// Error explains a false Valid and is meant for server-side logs only.
type VerificationResult struct {
	Valid bool
	Error error
}

// GenerateKeyPair draws a fresh secret in [1, n-1] and computes its public key.
func GenerateKeyPair(crv curve.Curve) (*KeyPair, error) {
	return GenerateKeyPairFrom(crv, rand.Reader)
}

// GenerateKeyPairFrom is GenerateKeyPair with an explicit randomness source.
func GenerateKeyPairFrom(crv curve.Curve, r io.Reader) (*KeyPair, error) {
	x, err := crv.RandomScalar(r)
	if err != nil {
		return nil, fmt.Errorf("failed to generate secret: %w", err)
	}
	pub, err := ComputePublicKey(crv, x)
	if err != nil {
		return nil, err
	}
	return &KeyPair{Secret: x, Public: pub}, nil
}

// ComputePublicKey returns x*G. The zero secret is rejected.
func ComputePublicKey(crv curve.Curve, secret curve.Scalar) (curve.Point, error) {
	if err := curve.ValidateScalar(secret); err != nil {
		return nil, err
	}
	pub := crv.ScalarBaseMult(secret)
	if err := crv.ValidatePoint(pub); err != nil {
		return nil, fmt.Errorf("invalid public key: %w", err)
	}
	return pub, nil
}

// GenerateCommitment draws a nonce k from r and returns R = k*G together
// with k. The caller must use k for exactly one response.
func GenerateCommitment(crv curve.Curve, r io.Reader) (curve.Point, curve.Scalar, error) {
	k, err := crv.RandomScalar(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	R := crv.ScalarBaseMult(k)
	if R == nil || R.IsIdentity() {
		return nil, nil, fmt.Errorf("failed to compute commitment point")
	}
	return R, k, nil
}

// DeriveChallenge computes c = SHA-256(R || P || message) mod n, where R and
// P are the compressed encodings of the commitment and the public key.
//
// SHA-256 outputs 256 bits and both group orders are close to 2^256 or
// 2^252, so the reduction bias is negligible for a challenge.
func DeriveChallenge(crv curve.Curve, R, P, message []byte) curve.Scalar {
	h := sha256.New()
	h.Write(R)
	h.Write(P)
	h.Write(message)
	return crv.NewScalar(new(big.Int).SetBytes(h.Sum(nil)))
}

// ComputeResponse returns s = k + c*x mod n.
func ComputeResponse(crv curve.Curve, k, c, x curve.Scalar) curve.Scalar {
	return curve.AddScalars(crv, k, curve.MulScalars(crv, c, x))
}

// GenerateProof proves knowledge of secret bound to message, drawing the
// nonce from crypto/rand.
func GenerateProof(crv curve.Curve, secret curve.Scalar, message []byte) (*Proof, error) {
	return GenerateProofFrom(crv, rand.Reader, secret, message)
}

// GenerateProofFrom is GenerateProof with an explicit randomness source for
// the nonce.
func GenerateProofFrom(crv curve.Curve, r io.Reader, secret curve.Scalar, message []byte) (*Proof, error) {
	P, err := ComputePublicKey(crv, secret)
	if err != nil {
		return nil, err
	}

	R, k, err := GenerateCommitment(crv, r)
	if err != nil {
		return nil, err
	}

	c := DeriveChallenge(crv, R.Bytes(), P.Bytes(), message)
	return &Proof{
		Commitment: R,
		Challenge:  c,
		Response:   ComputeResponse(crv, k, c, secret),
	}, nil
}

// Verify checks proof against public and message and reports why it fails.
// It never panics on adversarial input.
func Verify(crv curve.Curve, public curve.Point, proof *Proof, message []byte) error {
	if proof == nil || proof.Commitment == nil || proof.Challenge == nil || proof.Response == nil {
		return ErrInvalidProof
	}
	if public == nil {
		return fmt.Errorf("invalid public key: %w", curve.ErrInvalidPoint)
	}
	if err := crv.ValidatePoint(public); err != nil {
		return fmt.Errorf("invalid public key: %w", err)
	}
	if err := crv.ValidatePoint(proof.Commitment); err != nil {
		return fmt.Errorf("%w: commitment: %v", ErrInvalidProof, err)
	}

	expected := DeriveChallenge(crv, proof.Commitment.Bytes(), public.Bytes(), message)
	if subtle.ConstantTimeCompare(expected.Bytes(), proof.Challenge.Bytes()) != 1 {
		return fmt.Errorf("%w: challenge mismatch", ErrVerificationFailed)
	}

	left := crv.ScalarBaseMult(proof.Response)
	cP := crv.ScalarMult(public, proof.Challenge)
	if left == nil || cP == nil {
		return ErrVerificationFailed
	}
	right := crv.Add(proof.Commitment, cP)
	if right == nil || !left.Equal(right) {
		return fmt.Errorf("%w: equation does not hold", ErrVerificationFailed)
	}
	return nil
}

// VerifyProof reports whether proof is valid for public and message.
func VerifyProof(crv curve.Curve, public curve.Point, proof *Proof, message []byte) bool {
	return Verify(crv, public, proof, message) == nil
}

// VerifyEncoded verifies a proof straight from its wire form. Malformed hex,
// off-curve points and out-of-range scalars all yield Valid=false.
func VerifyEncoded(crv curve.Curve, publicKeyHex string, data ProofData, message []byte) *VerificationResult {
	public, err := curve.DecodePointHex(crv, publicKeyHex)
	if err != nil {
		return &VerificationResult{Valid: false, Error: fmt.Errorf("invalid public key: %w", err)}
	}
	proof, err := DecodeProof(crv, data)
	if err != nil {
		return &VerificationResult{Valid: false, Error: err}
	}
	if err := Verify(crv, public, proof, message); err != nil {
		return &VerificationResult{Valid: false, Error: err}
	}
	return &VerificationResult{Valid: true}
}

// HashHex returns the lowercase hex SHA-256 of the UTF-8 bytes of data.
func HashHex(data string) string {
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

// GenerateNullifier derives the per-session replay tag
// HashHex(scalarHex(secret) || sessionID). It is deterministic for a given
// (secret, sessionID) pair and reveals nothing about the secret.
func GenerateNullifier(secret curve.Scalar, sessionID string) string {
	return HashHex(curve.EncodeScalarHex(secret) + sessionID)
}
