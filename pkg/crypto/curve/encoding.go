package curve

import (
	"encoding/hex"
	"fmt"
)

// AddScalars returns a + b mod n.
func AddScalars(crv Curve, a, b Scalar) Scalar {
	sum := a.BigInt()
	return crv.NewScalar(sum.Add(sum, b.BigInt()))
}

// MulScalars returns a * b mod n.
func MulScalars(crv Curve, a, b Scalar) Scalar {
	prod := a.BigInt()
	return crv.NewScalar(prod.Mul(prod, b.BigInt()))
}

// ValidateScalar rejects the zero scalar. Secrets and nonces must pass it.
func ValidateScalar(s Scalar) error {
	if s == nil || s.IsZero() {
		return ErrZeroScalar
	}
	return nil
}

// EncodeScalarHex renders s as lowercase hex, zero-padded to the scalar width.
func EncodeScalarHex(s Scalar) string {
	return hex.EncodeToString(s.Bytes())
}

// DecodeScalarHex parses a fixed-width hex scalar. Short, long, malformed
// or out-of-range input fails with ErrInvalidScalar.
func DecodeScalarHex(crv Curve, s string) (Scalar, error) {
	if len(s) != 2*crv.ScalarLen() {
		return nil, fmt.Errorf("%w: expected %d hex chars, got %d", ErrInvalidScalar, 2*crv.ScalarLen(), len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScalar, err)
	}
	return crv.ParseScalar(b)
}

// EncodePointHex renders the compressed encoding of p as lowercase hex.
func EncodePointHex(p Point) string {
	return hex.EncodeToString(p.Bytes())
}

// DecodePointHex parses a hex-encoded compressed point.
func DecodePointHex(crv Curve, s string) (Point, error) {
	if len(s) != 2*crv.PointLen() {
		return nil, fmt.Errorf("%w: expected %d hex chars, got %d", ErrInvalidPoint, 2*crv.PointLen(), len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPoint, err)
	}
	return crv.ParsePoint(b)
}
