package curve

import (
	"fmt"
	"strings"
)

// DefaultName is the group spoken by the reference verifier.
const DefaultName = "secp256k1"

// FromName returns a Curve implementation that matches the provided name.
// An empty name selects DefaultName.
func FromName(name string) (Curve, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", DefaultName:
		return NewSecp256k1(), nil
	case "ristretto255":
		return NewRistretto255(), nil
	default:
		return nil, fmt.Errorf("unsupported curve: %s", name)
	}
}

// SupportedCurves lists the curve identifiers understood by FromName.
func SupportedCurves() []string {
	return []string{DefaultName, "ristretto255"}
}
