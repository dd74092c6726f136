package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allsmog/zkekyc-go/pkg/crypto/schnorr"
)

func TestEnrollmentMessage(t *testing.T) {
	b := EnrollmentBinding{
		Commitment: "c0",
		IDHash:     "i1",
		NameHash:   "n2",
		DOBHash:    "d3",
		Approval:   1,
		Timestamp:  1700000000123,
	}
	assert.Equal(t, "ENROLL:commitment:c0:id:i1:name:n2:dob:d3:approval:1:ts:1700000000123", string(b.Message()))

	b.Approval = 0
	assert.Contains(t, string(b.Message()), ":approval:0:")
}

func TestVerificationMessage(t *testing.T) {
	assert.Equal(t, "VERIFY:test-session-id:42", string(VerificationMessage("test-session-id", 42)))
}

func TestIdentityCommitment(t *testing.T) {
	assert.Equal(t, schnorr.HashHex("02abcdef"+"idhash"), IdentityCommitment("02abcdef", "idhash"))
	assert.NotEqual(t, IdentityCommitment("02abcdef", "a"), IdentityCommitment("02abcdef", "b"))
}

func TestPayloadFieldNames(t *testing.T) {
	p := EnrollmentPayload{
		PublicKey:    "pk",
		Commitment:   "c",
		IDNumberHash: "i",
		EncryptedPII: `{"ciphertext":"AA==","iv":"AA=="}`,
		Proof:        schnorr.ProofData{CommitmentR: "r", Challenge: "c", Response: "s"},
		Timestamp:    5,
		FullNameHash: "n",
		DOBHash:      "d",
		Approval:     1,
	}
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"publicKey": "pk",
		"commitment": "c",
		"idNumberHash": "i",
		"encryptedPII": "{\"ciphertext\":\"AA==\",\"iv\":\"AA==\"}",
		"proof": {"commitmentR": "r", "challenge": "c", "response": "s"},
		"timestamp": 5,
		"fullNameHash": "n",
		"dobHash": "d",
		"approval": 1
	}`, string(raw))

	assert.Equal(t, p.Binding().Message(), EnrollmentBinding{"c", "i", "n", "d", 1, 5}.Message())

	v := VerificationPayload{PublicKey: "pk", Nullifier: "nf", Timestamp: 9}
	raw, err = json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"publicKey":"pk","proof":{"commitmentR":"","challenge":"","response":""},"nullifier":"nf","timestamp":9}`, string(raw))
}

func TestSubmitResponseOmitsEmpty(t *testing.T) {
	raw, err := json.Marshal(SubmitResponse{Success: false, Detail: "Invalid session"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"detail":"Invalid session"}`, string(raw))
}
