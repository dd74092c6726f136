package vault

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobJSON(t *testing.T) {
	blob := &EncryptedBlob{Ciphertext: []byte{1, 2, 3}, IV: []byte{9, 9}}

	encoded := blob.String()
	assert.JSONEq(t, `{"ciphertext":"AQID","iv":"CQk="}`, encoded)

	parsed, err := ParseBlob(encoded)
	require.NoError(t, err)
	assert.Equal(t, blob, parsed)
}

func TestBlobJSONRejectsCorruption(t *testing.T) {
	cases := map[string]string{
		"missing iv":         `{"ciphertext":"AQID"}`,
		"missing ciphertext": `{"iv":"CQk="}`,
		"bad base64":         `{"ciphertext":"***","iv":"CQk="}`,
		"null":               `null`,
		"not json":           `ciphertext=AQID`,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseBlob(in)
			assert.ErrorIs(t, err, ErrCorruptBlob)
		})
	}
}

func TestBlobEmbedsInStruct(t *testing.T) {
	var doc struct {
		Key *EncryptedBlob `json:"private_key"`
	}
	err := json.Unmarshal([]byte(`{"private_key":{"ciphertext":"AQID"}}`), &doc)
	assert.ErrorIs(t, err, ErrCorruptBlob)
}
