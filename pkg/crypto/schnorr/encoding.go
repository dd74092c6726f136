package schnorr

import (
	"fmt"

	"github.com/allsmog/zkekyc-go/pkg/crypto/curve"
)

// ProofData is the wire form of a Proof: fixed-width lowercase hex strings.
type ProofData struct {
	CommitmentR string `json:"commitmentR"`
	Challenge   string `json:"challenge"`
	Response    string `json:"response"`
}

// EncodeProof renders p in wire form.
func EncodeProof(p *Proof) ProofData {
	return ProofData{
		CommitmentR: curve.EncodePointHex(p.Commitment),
		Challenge:   curve.EncodeScalarHex(p.Challenge),
		Response:    curve.EncodeScalarHex(p.Response),
	}
}

// DecodeProof parses wire-form components strictly.
func DecodeProof(crv curve.Curve, d ProofData) (*Proof, error) {
	R, err := curve.DecodePointHex(crv, d.CommitmentR)
	if err != nil {
		return nil, fmt.Errorf("invalid commitment: %w", err)
	}
	c, err := curve.DecodeScalarHex(crv, d.Challenge)
	if err != nil {
		return nil, fmt.Errorf("invalid challenge: %w", err)
	}
	s, err := curve.DecodeScalarHex(crv, d.Response)
	if err != nil {
		return nil, fmt.Errorf("invalid response: %w", err)
	}
	return &Proof{Commitment: R, Challenge: c, Response: s}, nil
}
