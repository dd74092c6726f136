package vault

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// EncryptedBlob is a sealed message and the IV it was sealed with.
// On the wire it is {"ciphertext": base64, "iv": base64}.
type EncryptedBlob struct {
	Ciphertext []byte
	IV         []byte
}

type blobJSON struct {
	Ciphertext *string `json:"ciphertext"`
	IV         *string `json:"iv"`
}

// MarshalJSON implements json.Marshaler.
func (b EncryptedBlob) MarshalJSON() ([]byte, error) {
	ct := base64.StdEncoding.EncodeToString(b.Ciphertext)
	iv := base64.StdEncoding.EncodeToString(b.IV)
	return json.Marshal(blobJSON{Ciphertext: &ct, IV: &iv})
}

// UnmarshalJSON implements json.Unmarshaler. Both fields are required.
func (b *EncryptedBlob) UnmarshalJSON(data []byte) error {
	var raw blobJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptBlob, err)
	}
	if raw.Ciphertext == nil || raw.IV == nil {
		return fmt.Errorf("%w: missing field", ErrCorruptBlob)
	}
	ct, err := base64.StdEncoding.DecodeString(*raw.Ciphertext)
	if err != nil {
		return fmt.Errorf("%w: ciphertext: %v", ErrCorruptBlob, err)
	}
	iv, err := base64.StdEncoding.DecodeString(*raw.IV)
	if err != nil {
		return fmt.Errorf("%w: iv: %v", ErrCorruptBlob, err)
	}
	b.Ciphertext, b.IV = ct, iv
	return nil
}

// String returns the JSON form, as embedded in enrollment payloads.
func (b *EncryptedBlob) String() string {
	raw, _ := json.Marshal(b)
	return string(raw)
}

// ParseBlob decodes the JSON form produced by String.
func ParseBlob(s string) (*EncryptedBlob, error) {
	var b EncryptedBlob
	if err := json.Unmarshal([]byte(s), &b); err != nil {
		if errors.Is(err, ErrCorruptBlob) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrCorruptBlob, err)
	}
	return &b, nil
}
