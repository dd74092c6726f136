package curve

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"github.com/gtank/ristretto255"
)

const ristretto255Len = 32

var ristretto255Order = func() *big.Int {
	// l = 2^252 + 27742317777372353535851937790883648493
	order := new(big.Int).Lsh(big.NewInt(1), 252)
	addend, _ := new(big.Int).SetString("27742317777372353535851937790883648493", 10)
	return order.Add(order, addend)
}()

// Ristretto255Point represents a point in the Ristretto255 prime-order group.
type Ristretto255Point struct {
	point *ristretto255.Element
}

// Bytes returns the canonical 32-byte encoding of the point.
func (p *Ristretto255Point) Bytes() []byte {
	if p.IsIdentity() {
		return nil
	}
	return p.point.Encode(nil)
}

// Equal reports whether two points are identical.
func (p *Ristretto255Point) Equal(other Point) bool {
	o, ok := other.(*Ristretto255Point)
	if !ok {
		return false
	}
	if p.IsIdentity() || o.IsIdentity() {
		return p.IsIdentity() && o.IsIdentity()
	}
	return p.point.Equal(o.point) == 1
}

// IsIdentity reports whether the point is the identity element.
func (p *Ristretto255Point) IsIdentity() bool {
	if p == nil || p.point == nil {
		return true
	}
	return p.point.Equal(ristretto255.NewElement().Zero()) == 1
}

// Ristretto255Scalar represents a scalar modulo the Ristretto255 group order.
// The library keeps scalars little-endian; Bytes converts to big-endian so
// hex encodings read as the integer value on both groups.
type Ristretto255Scalar struct {
	scalar *ristretto255.Scalar
}

// Bytes returns the 32-byte big-endian encoding of the scalar. A nil scalar
// encodes as zero.
func (s *Ristretto255Scalar) Bytes() []byte {
	if s == nil || s.scalar == nil {
		return make([]byte, ristretto255Len)
	}
	return reverse(s.scalar.Encode(nil))
}

// BigInt returns the scalar value as a big.Int.
func (s *Ristretto255Scalar) BigInt() *big.Int {
	return new(big.Int).SetBytes(s.Bytes())
}

// IsZero reports whether the scalar is zero.
func (s *Ristretto255Scalar) IsZero() bool {
	if s == nil || s.scalar == nil {
		return true
	}
	return s.scalar.Equal(ristretto255.NewScalar()) == 1
}

// Ristretto255Curve implements the Curve interface for the Ristretto group.
type Ristretto255Curve struct{}

// NewRistretto255 creates a new Ristretto255 curve instance.
func NewRistretto255() Curve {
	return &Ristretto255Curve{}
}

// Name returns the canonical group name.
func (c *Ristretto255Curve) Name() string {
	return "ristretto255"
}

// ScalarLen returns 32.
func (c *Ristretto255Curve) ScalarLen() int { return ristretto255Len }

// PointLen returns 32.
func (c *Ristretto255Curve) PointLen() int { return ristretto255Len }

// ParsePoint decodes a canonical 32-byte Ristretto point encoding.
func (c *Ristretto255Curve) ParsePoint(b []byte) (Point, error) {
	if len(b) != ristretto255Len {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidPoint, ristretto255Len, len(b))
	}

	elem := ristretto255.NewElement()
	if err := elem.Decode(b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPoint, err)
	}

	point := &Ristretto255Point{point: elem}
	if err := c.ValidatePoint(point); err != nil {
		return nil, err
	}
	return point, nil
}

// ParseScalar decodes a 32-byte big-endian scalar strictly below l.
func (c *Ristretto255Curve) ParseScalar(b []byte) (Scalar, error) {
	if len(b) != ristretto255Len {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidScalar, ristretto255Len, len(b))
	}

	sc := ristretto255.NewScalar()
	if err := sc.Decode(reverse(b)); err != nil {
		return nil, fmt.Errorf("%w: scalar out of range", ErrInvalidScalar)
	}
	return &Ristretto255Scalar{scalar: sc}, nil
}

// NewScalar reduces v mod l.
func (c *Ristretto255Curve) NewScalar(v *big.Int) Scalar {
	reduced := new(big.Int).Mod(v, ristretto255Order)
	sc := ristretto255.NewScalar()
	// A reduced value always decodes.
	_ = sc.Decode(reverse(reduced.FillBytes(make([]byte, ristretto255Len))))
	return &Ristretto255Scalar{scalar: sc}
}

// ScalarBaseMult returns s*B, where B is the canonical generator.
func (c *Ristretto255Curve) ScalarBaseMult(s Scalar) Point {
	k, ok := s.(*Ristretto255Scalar)
	if !ok || k == nil || k.scalar == nil {
		return nil
	}
	return &Ristretto255Point{point: ristretto255.NewElement().ScalarBaseMult(k.scalar)}
}

// ScalarMult computes s * P for the provided point and scalar.
func (c *Ristretto255Curve) ScalarMult(p Point, s Scalar) Point {
	pt, ok := p.(*Ristretto255Point)
	if !ok {
		return nil
	}
	k, ok := s.(*Ristretto255Scalar)
	if !ok || k == nil || k.scalar == nil {
		return nil
	}
	if pt.point == nil {
		return &Ristretto255Point{point: ristretto255.NewElement().Zero()}
	}
	return &Ristretto255Point{point: ristretto255.NewElement().ScalarMult(k.scalar, pt.point)}
}

// Add returns P + Q for two group elements.
func (c *Ristretto255Curve) Add(p, q Point) Point {
	a, ok := p.(*Ristretto255Point)
	if !ok {
		return nil
	}
	b, ok := q.(*Ristretto255Point)
	if !ok {
		return nil
	}
	switch {
	case a.point == nil:
		return b
	case b.point == nil:
		return a
	}
	return &Ristretto255Point{point: ristretto255.NewElement().Add(a.point, b.point)}
}

// Order returns the order of the Ristretto255 group.
func (c *Ristretto255Curve) Order() *big.Int {
	return new(big.Int).Set(ristretto255Order)
}

// GenerateScalar returns a uniformly random non-zero scalar.
func (c *Ristretto255Curve) GenerateScalar() (Scalar, error) {
	return c.RandomScalar(rand.Reader)
}

// RandomScalar reduces 64 uniform bytes from r mod l, redrawing on zero.
func (c *Ristretto255Curve) RandomScalar(r io.Reader) (Scalar, error) {
	var seed [64]byte
	for i := 0; i < maxScalarDraws; i++ {
		if _, err := io.ReadFull(r, seed[:]); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrScalarGeneration, err)
		}
		s := &Ristretto255Scalar{scalar: ristretto255.NewScalar().FromUniformBytes(seed[:])}
		if s.IsZero() {
			continue
		}
		return s, nil
	}
	return nil, fmt.Errorf("%w: no usable candidate after %d draws", ErrScalarGeneration, maxScalarDraws)
}

// ValidatePoint ensures the point is non-identity and properly encoded.
func (c *Ristretto255Curve) ValidatePoint(p Point) error {
	rp, ok := p.(*Ristretto255Point)
	if !ok {
		return ErrInvalidPoint
	}
	if rp.IsIdentity() {
		return ErrIdentityPoint
	}
	return nil
}

func reverse(b []byte) []byte {
	out := make([]byte, len(b))
	for i := range b {
		out[len(b)-1-i] = b[i]
	}
	return out
}
