// Package curve provides the prime-order group arithmetic underneath the
// enrollment and re-authentication proofs.
//
// # Supported Groups
//
//   - secp256k1: the default and wire-compatible group. Points travel in
//     33-byte compressed form and scalars as 32-byte big-endian integers.
//
//   - ristretto255: a prime-order group built on Curve25519, selectable for
//     deployments whose verifier speaks it. Points and scalars are 32 bytes.
//
// A process picks one group at startup and keeps it; keys, proofs and
// nullifiers produced under one group are meaningless under the other.
//
// # Encoding Policy
//
// Decoders are strict. A scalar must be exactly ScalarLen bytes and strictly
// below the group order, a point must be a canonical compressed encoding of a
// non-identity group element. Nothing is truncated or reduced silently:
// callers that hold an arbitrary integer (a hash output, a sum of scalars)
// reduce it explicitly with NewScalar.
package curve

import (
	"errors"
	"fmt"
	"io"
	"math/big"
)

// Point is an element of the group.
type Point interface {
	// Bytes returns the canonical compressed encoding of the point.
	// For secp256k1: 33 bytes (0x02/0x03 prefix + x-coordinate).
	// For ristretto255: 32 bytes.
	// The identity has no compressed encoding and returns nil.
	Bytes() []byte

	// Equal reports whether two points are the same group element.
	Equal(other Point) bool

	// IsIdentity reports whether this is the neutral element.
	// The identity is never acceptable as a public key or commitment.
	IsIdentity() bool
}

// Scalar is an integer modulo the group order n.
//
// Scalars play four roles in the protocol:
//   - secrets (x, with public key x*G)
//   - ephemeral nonces (k, with commitment R = k*G)
//   - challenges (a hash output reduced mod n)
//   - responses (s = k + c*x mod n)
type Scalar interface {
	// Bytes returns the scalar as a fixed-width big-endian byte slice.
	Bytes() []byte

	// BigInt returns the scalar as a big.Int in [0, n).
	BigInt() *big.Int

	// IsZero reports whether the scalar is zero.
	IsZero() bool
}

// Curve abstracts the group operations for the supported groups.
//
// Implementations must:
//   - reject encodings of points that are not on the curve
//   - reject the identity element wherever a point is decoded
//   - reject scalars that are not below the group order
type Curve interface {
	// Name returns the group identifier ("secp256k1" or "ristretto255").
	Name() string

	// ScalarLen is the fixed width of an encoded scalar in bytes.
	ScalarLen() int

	// PointLen is the fixed width of an encoded point in bytes.
	PointLen() int

	// ParsePoint decodes a compressed point. It fails with an error matching
	// ErrInvalidEncoding on wrong length, off-curve input or the identity.
	ParsePoint(b []byte) (Point, error)

	// ParseScalar decodes a big-endian scalar of exactly ScalarLen bytes.
	// Values >= n are rejected rather than reduced. Zero is accepted here;
	// use ValidateScalar where zero must be excluded.
	ParseScalar(b []byte) (Scalar, error)

	// NewScalar reduces an arbitrary integer mod n.
	NewScalar(v *big.Int) Scalar

	// ScalarBaseMult computes s*G.
	ScalarBaseMult(s Scalar) Point

	// ScalarMult computes s*P.
	ScalarMult(p Point, s Scalar) Point

	// Add computes P + Q.
	Add(p, q Point) Point

	// Order returns a copy of the group order n.
	Order() *big.Int

	// GenerateScalar draws a uniform scalar in [1, n-1] from crypto/rand.
	GenerateScalar() (Scalar, error)

	// RandomScalar draws a uniform scalar in [1, n-1] from r, redrawing on
	// out-of-range and zero candidates.
	RandomScalar(r io.Reader) (Scalar, error)

	// ValidatePoint checks that a point is usable as a key or commitment.
	ValidatePoint(p Point) error
}

// maxScalarDraws bounds the rejection-sampling loop in RandomScalar. A
// healthy source needs more than one draw with probability around 2^-128.
const maxScalarDraws = 64

var (
	// ErrInvalidEncoding is the root of every decoding failure.
	ErrInvalidEncoding = errors.New("invalid encoding")

	// ErrInvalidPoint indicates a malformed point encoding
	ErrInvalidPoint = fmt.Errorf("%w: invalid point", ErrInvalidEncoding)

	// ErrInvalidScalar indicates a malformed or out-of-range scalar
	ErrInvalidScalar = fmt.Errorf("%w: invalid scalar", ErrInvalidEncoding)

	// ErrIdentityPoint indicates the point is the identity point
	ErrIdentityPoint = fmt.Errorf("%w: point is identity", ErrInvalidEncoding)

	// ErrPointNotOnCurve indicates the point is not on the curve
	ErrPointNotOnCurve = fmt.Errorf("%w: point is not on curve", ErrInvalidEncoding)

	// ErrZeroScalar indicates a zero scalar where a non-zero one is required
	ErrZeroScalar = fmt.Errorf("%w: scalar is zero", ErrInvalidScalar)

	// ErrScalarGeneration indicates the randomness source kept producing
	// unusable candidates or failed outright.
	ErrScalarGeneration = errors.New("failed to generate scalar")
)
