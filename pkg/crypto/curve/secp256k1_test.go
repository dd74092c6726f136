package curve

import (
	"bytes"
	"encoding/hex"
	"errors"
	"math/big"
	"testing"
)

func TestSecp256k1Curve(t *testing.T) {
	curve := NewSecp256k1()

	t.Run("Name", func(t *testing.T) {
		if curve.Name() != "secp256k1" {
			t.Errorf("expected curve name 'secp256k1', got %s", curve.Name())
		}
		if curve.ScalarLen() != 32 || curve.PointLen() != 33 {
			t.Errorf("unexpected widths %d/%d", curve.ScalarLen(), curve.PointLen())
		}
	})

	t.Run("GenerateScalar", func(t *testing.T) {
		s1, err := curve.GenerateScalar()
		if err != nil {
			t.Fatalf("failed to generate scalar: %v", err)
		}
		s2, err := curve.GenerateScalar()
		if err != nil {
			t.Fatalf("failed to generate second scalar: %v", err)
		}

		if bytes.Equal(s1.Bytes(), s2.Bytes()) {
			t.Error("generated scalars should be different")
		}
		if s1.BigInt().Sign() <= 0 {
			t.Error("scalar should be positive")
		}
		if s1.BigInt().Cmp(curve.Order()) >= 0 {
			t.Error("scalar should be less than curve order")
		}
	})

	t.Run("RandomScalarRedraws", func(t *testing.T) {
		// zero, then n itself, then 1
		stream := make([]byte, 32)
		stream = append(stream, curve.Order().FillBytes(make([]byte, 32))...)
		one := make([]byte, 32)
		one[31] = 1
		stream = append(stream, one...)

		s, err := curve.RandomScalar(bytes.NewReader(stream))
		if err != nil {
			t.Fatalf("RandomScalar: %v", err)
		}
		if s.BigInt().Cmp(big.NewInt(1)) != 0 {
			t.Fatalf("expected 1, got %s", s.BigInt())
		}
	})

	t.Run("RandomScalarExhausted", func(t *testing.T) {
		_, err := curve.RandomScalar(bytes.NewReader(make([]byte, 32*maxScalarDraws)))
		if !errors.Is(err, ErrScalarGeneration) {
			t.Fatalf("expected ErrScalarGeneration, got %v", err)
		}
	})

	t.Run("ParsePoint", func(t *testing.T) {
		scalar, _ := curve.GenerateScalar()
		originalPoint := curve.ScalarBaseMult(scalar)

		parsedPoint, err := curve.ParsePoint(originalPoint.Bytes())
		if err != nil {
			t.Fatalf("failed to parse point: %v", err)
		}
		if !originalPoint.Equal(parsedPoint) {
			t.Error("parsed point should equal original")
		}
	})

	t.Run("ParsePointRejects", func(t *testing.T) {
		scalar, _ := curve.GenerateScalar()
		pk := curve.ScalarBaseMult(scalar).(*Secp256k1Point)
		uncompressed := pk.point.SerializeUncompressed()

		oversizedX := bytes.Repeat([]byte{0xff}, 33)
		oversizedX[0] = 0x02

		cases := map[string][]byte{
			"empty":        nil,
			"short":        {0x02, 0x03},
			"zeros":        make([]byte, 33),
			"uncompressed": uncompressed,
			"x >= p":       oversizedX,
		}
		for name, in := range cases {
			t.Run(name, func(t *testing.T) {
				_, err := curve.ParsePoint(in)
				if !errors.Is(err, ErrInvalidEncoding) {
					t.Fatalf("expected ErrInvalidEncoding, got %v", err)
				}
			})
		}
	})

	t.Run("ParseScalarRange", func(t *testing.T) {
		if _, err := curve.ParseScalar(make([]byte, 32)); err != nil {
			t.Errorf("zero should decode: %v", err)
		}
		n := curve.Order().FillBytes(make([]byte, 32))
		if _, err := curve.ParseScalar(n); !errors.Is(err, ErrInvalidScalar) {
			t.Errorf("n should be rejected, got %v", err)
		}
		if _, err := curve.ParseScalar(make([]byte, 31)); !errors.Is(err, ErrInvalidEncoding) {
			t.Errorf("short scalar should be rejected, got %v", err)
		}
	})

	t.Run("NewScalarReduces", func(t *testing.T) {
		v := new(big.Int).Add(curve.Order(), big.NewInt(7))
		if got := curve.NewScalar(v).BigInt(); got.Cmp(big.NewInt(7)) != 0 {
			t.Errorf("expected 7, got %s", got)
		}
		if !curve.NewScalar(curve.Order()).IsZero() {
			t.Error("n mod n should be zero")
		}
	})

	t.Run("Identity", func(t *testing.T) {
		s, _ := curve.GenerateScalar()
		p := curve.ScalarBaseMult(s)

		neg := curve.NewScalar(new(big.Int).Sub(curve.Order(), s.BigInt()))
		sum := curve.Add(p, curve.ScalarBaseMult(neg))
		if !sum.IsIdentity() {
			t.Fatal("P + (-P) should be identity")
		}
		if !errors.Is(curve.ValidatePoint(sum), ErrIdentityPoint) {
			t.Error("identity must not validate")
		}
		if !curve.Add(sum, p).Equal(p) {
			t.Error("identity + P should be P")
		}
		if !curve.ScalarBaseMult(curve.NewScalar(big.NewInt(0))).IsIdentity() {
			t.Error("0*G should be identity")
		}
	})

	t.Run("Distributive", func(t *testing.T) {
		a, _ := curve.GenerateScalar()
		b, _ := curve.GenerateScalar()

		left := curve.ScalarBaseMult(AddScalars(curve, a, b))
		right := curve.Add(curve.ScalarBaseMult(a), curve.ScalarBaseMult(b))
		if !left.Equal(right) {
			t.Error("(a+b)G != aG + bG")
		}

		left = curve.ScalarBaseMult(MulScalars(curve, a, b))
		right = curve.ScalarMult(curve.ScalarBaseMult(a), b)
		if !left.Equal(right) {
			t.Error("(ab)G != b(aG)")
		}
	})
}

func TestSecp256k1KnownValues(t *testing.T) {
	curve := NewSecp256k1()

	privateKeyBytes := make([]byte, 32)
	privateKeyBytes[31] = 1

	privateKey, err := curve.ParseScalar(privateKeyBytes)
	if err != nil {
		t.Fatalf("failed to parse private key: %v", err)
	}

	publicKey := curve.ScalarBaseMult(privateKey)

	// generator point
	expectedPubKey := "0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"
	if got := hex.EncodeToString(publicKey.Bytes()); got != expectedPubKey {
		t.Errorf("expected public key %s, got %s", expectedPubKey, got)
	}

	parsedPoint, err := DecodePointHex(curve, expectedPubKey)
	if err != nil {
		t.Fatalf("failed to parse expected point: %v", err)
	}
	if !publicKey.Equal(parsedPoint) {
		t.Error("parsed point should equal computed point")
	}

	// 2G
	two := curve.Add(publicKey, publicKey)
	if got := EncodePointHex(two); got != "02c6047f9441ed7d6d3045406e95c07cd85c778e4b8cef3ca7abac09b95c709ee5" {
		t.Errorf("unexpected 2G: %s", got)
	}
}
