package curve

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
)

const (
	secp256k1ScalarLen = 32
	secp256k1PointLen  = 33
)

// Secp256k1Point represents a point on the secp256k1 curve.
// A nil key is the identity.
type Secp256k1Point struct {
	point *btcec.PublicKey
}

// Bytes returns the compressed point encoding (33 bytes)
func (p *Secp256k1Point) Bytes() []byte {
	if p == nil || p.point == nil {
		return nil
	}
	return p.point.SerializeCompressed()
}

// Equal checks if two points are equal
func (p *Secp256k1Point) Equal(other Point) bool {
	o, ok := other.(*Secp256k1Point)
	if !ok {
		return false
	}
	if p.IsIdentity() || o.IsIdentity() {
		return p.IsIdentity() && o.IsIdentity()
	}
	return p.point.IsEqual(o.point)
}

// IsIdentity checks if this is the identity point (point at infinity)
func (p *Secp256k1Point) IsIdentity() bool {
	return p == nil || p.point == nil
}

func (p *Secp256k1Point) jacobian(out *btcec.JacobianPoint) {
	if p.IsIdentity() {
		*out = btcec.JacobianPoint{}
		return
	}
	p.point.AsJacobian(out)
}

func secp256k1FromJacobian(j *btcec.JacobianPoint) *Secp256k1Point {
	if j.Z.IsZero() || (j.X.IsZero() && j.Y.IsZero()) {
		return &Secp256k1Point{}
	}
	j.ToAffine()
	return &Secp256k1Point{point: btcec.NewPublicKey(&j.X, &j.Y)}
}

// Secp256k1Scalar represents a scalar for secp256k1 operations
type Secp256k1Scalar struct {
	scalar btcec.ModNScalar
}

// Bytes returns the scalar as a 32-byte slice (big-endian). A nil scalar
// encodes as zero.
func (s *Secp256k1Scalar) Bytes() []byte {
	if s == nil {
		return make([]byte, secp256k1ScalarLen)
	}
	b := s.scalar.Bytes()
	return b[:]
}

// BigInt returns the scalar as a big.Int
func (s *Secp256k1Scalar) BigInt() *big.Int {
	return new(big.Int).SetBytes(s.Bytes())
}

// IsZero reports whether the scalar is zero
func (s *Secp256k1Scalar) IsZero() bool {
	return s == nil || s.scalar.IsZero()
}

// Secp256k1Curve implements the Curve interface for secp256k1
type Secp256k1Curve struct{}

// NewSecp256k1 creates a new secp256k1 curve instance
func NewSecp256k1() Curve {
	return &Secp256k1Curve{}
}

// Name returns the curve name
func (c *Secp256k1Curve) Name() string {
	return "secp256k1"
}

// ScalarLen returns 32.
func (c *Secp256k1Curve) ScalarLen() int { return secp256k1ScalarLen }

// PointLen returns 33.
func (c *Secp256k1Curve) PointLen() int { return secp256k1PointLen }

// ParsePoint parses a 33-byte compressed point.
func (c *Secp256k1Curve) ParsePoint(b []byte) (Point, error) {
	if len(b) != secp256k1PointLen {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidPoint, secp256k1PointLen, len(b))
	}
	if b[0] != 0x02 && b[0] != 0x03 {
		return nil, fmt.Errorf("%w: not a compressed encoding", ErrInvalidPoint)
	}

	pubKey, err := btcec.ParsePubKey(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPointNotOnCurve, err)
	}

	point := &Secp256k1Point{point: pubKey}
	if err := c.ValidatePoint(point); err != nil {
		return nil, err
	}
	return point, nil
}

// ParseScalar parses a 32-byte big-endian scalar strictly below n.
func (c *Secp256k1Curve) ParseScalar(b []byte) (Scalar, error) {
	if len(b) != secp256k1ScalarLen {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidScalar, secp256k1ScalarLen, len(b))
	}

	s := &Secp256k1Scalar{}
	if overflow := s.scalar.SetByteSlice(b); overflow {
		return nil, fmt.Errorf("%w: scalar out of range", ErrInvalidScalar)
	}
	return s, nil
}

// NewScalar reduces v mod n.
func (c *Secp256k1Curve) NewScalar(v *big.Int) Scalar {
	reduced := new(big.Int).Mod(v, btcec.S256().N)
	s := &Secp256k1Scalar{}
	s.scalar.SetByteSlice(reduced.FillBytes(make([]byte, secp256k1ScalarLen)))
	return s
}

// ScalarBaseMult computes s * G (scalar multiplication with generator)
func (c *Secp256k1Curve) ScalarBaseMult(s Scalar) Point {
	k, ok := s.(*Secp256k1Scalar)
	if !ok {
		return nil
	}
	if k.IsZero() {
		return &Secp256k1Point{}
	}

	var result btcec.JacobianPoint
	btcec.ScalarBaseMultNonConst(&k.scalar, &result)
	return secp256k1FromJacobian(&result)
}

// ScalarMult computes s * P (scalar multiplication)
func (c *Secp256k1Curve) ScalarMult(p Point, s Scalar) Point {
	pt, ok := p.(*Secp256k1Point)
	if !ok {
		return nil
	}
	k, ok := s.(*Secp256k1Scalar)
	if !ok {
		return nil
	}
	if pt.IsIdentity() || k.IsZero() {
		return &Secp256k1Point{}
	}

	var in, result btcec.JacobianPoint
	pt.jacobian(&in)
	btcec.ScalarMultNonConst(&k.scalar, &in, &result)
	return secp256k1FromJacobian(&result)
}

// Add adds two points: P + Q
func (c *Secp256k1Curve) Add(p, q Point) Point {
	a, ok := p.(*Secp256k1Point)
	if !ok {
		return nil
	}
	b, ok := q.(*Secp256k1Point)
	if !ok {
		return nil
	}

	var ja, jb, result btcec.JacobianPoint
	a.jacobian(&ja)
	b.jacobian(&jb)
	btcec.AddNonConst(&ja, &jb, &result)
	return secp256k1FromJacobian(&result)
}

// Order returns the order of the secp256k1 curve
func (c *Secp256k1Curve) Order() *big.Int {
	return new(big.Int).Set(btcec.S256().N)
}

// GenerateScalar generates a cryptographically secure random scalar
func (c *Secp256k1Curve) GenerateScalar() (Scalar, error) {
	return c.RandomScalar(rand.Reader)
}

// RandomScalar rejection-samples a scalar in [1, n-1] from r.
func (c *Secp256k1Curve) RandomScalar(r io.Reader) (Scalar, error) {
	var buf [secp256k1ScalarLen]byte
	for i := 0; i < maxScalarDraws; i++ {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrScalarGeneration, err)
		}
		s := &Secp256k1Scalar{}
		if overflow := s.scalar.SetByteSlice(buf[:]); overflow || s.IsZero() {
			continue
		}
		return s, nil
	}
	return nil, fmt.Errorf("%w: no usable candidate after %d draws", ErrScalarGeneration, maxScalarDraws)
}

// ValidatePoint validates that a point is on the curve and not the identity
func (c *Secp256k1Curve) ValidatePoint(p Point) error {
	pt, ok := p.(*Secp256k1Point)
	if !ok {
		return ErrInvalidPoint
	}
	if pt.IsIdentity() {
		return ErrIdentityPoint
	}
	if !btcec.S256().IsOnCurve(pt.point.X(), pt.point.Y()) {
		return ErrPointNotOnCurve
	}
	return nil
}
