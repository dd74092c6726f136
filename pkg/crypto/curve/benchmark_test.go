package curve

import (
	"testing"
)

func benchCurves() []Curve {
	return []Curve{NewSecp256k1(), NewRistretto255()}
}

func BenchmarkGenerateScalar(b *testing.B) {
	for _, curve := range benchCurves() {
		b.Run(curve.Name(), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := curve.GenerateScalar(); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkScalarBaseMult(b *testing.B) {
	for _, curve := range benchCurves() {
		b.Run(curve.Name(), func(b *testing.B) {
			scalar, _ := curve.GenerateScalar()
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				if point := curve.ScalarBaseMult(scalar); point == nil {
					b.Fatal("point should not be nil")
				}
			}
		})
	}
}

func BenchmarkScalarMult(b *testing.B) {
	for _, curve := range benchCurves() {
		b.Run(curve.Name(), func(b *testing.B) {
			s1, _ := curve.GenerateScalar()
			s2, _ := curve.GenerateScalar()
			point := curve.ScalarBaseMult(s1)
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				if result := curve.ScalarMult(point, s2); result == nil {
					b.Fatal("result should not be nil")
				}
			}
		})
	}
}

func BenchmarkDecodePointHex(b *testing.B) {
	for _, curve := range benchCurves() {
		b.Run(curve.Name(), func(b *testing.B) {
			scalar, _ := curve.GenerateScalar()
			encoded := EncodePointHex(curve.ScalarBaseMult(scalar))
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				if _, err := DecodePointHex(curve, encoded); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
