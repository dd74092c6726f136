package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/allsmog/zkekyc-go/pkg/crypto/curve"
	"github.com/allsmog/zkekyc-go/pkg/crypto/schnorr"
	"github.com/allsmog/zkekyc-go/pkg/protocol"
	"github.com/allsmog/zkekyc-go/pkg/storage"
	"github.com/allsmog/zkekyc-go/pkg/vault"
)

// IdentityFacts are the document fields extracted before enrollment.
type IdentityFacts struct {
	IDNumber string
	FullName string
	DOB      string
	Origin   string
	Address  string
}

// EnrollmentRequest is the input to Enroll. Approval is 1 when the liveness
// check passed and 0 otherwise.
type EnrollmentRequest struct {
	Facts       IdentityFacts
	PhoneNumber string
	Address     string
	Approval    int
}

// Validate checks the request fields the binding message depends on.
func (r *EnrollmentRequest) Validate() error {
	switch {
	case r == nil:
		return fmt.Errorf("%w: nil request", ErrInvalidRequest)
	case strings.TrimSpace(r.Facts.IDNumber) == "":
		return fmt.Errorf("%w: id number is required", ErrInvalidRequest)
	case strings.TrimSpace(r.Facts.FullName) == "":
		return fmt.Errorf("%w: full name is required", ErrInvalidRequest)
	case strings.TrimSpace(r.Facts.DOB) == "":
		return fmt.Errorf("%w: date of birth is required", ErrInvalidRequest)
	case r.Approval != 0 && r.Approval != 1:
		return fmt.Errorf("%w: approval must be 0 or 1", ErrInvalidRequest)
	}
	return nil
}

// address prefers the supplement over the document address.
func (r *EnrollmentRequest) address() string {
	if a := strings.TrimSpace(r.Address); a != "" {
		return r.Address
	}
	return r.Facts.Address
}

// EnrollmentResult is what a successful enrollment produces. KeyPair holds
// the raw secret and must not outlive the caller's immediate use.
type EnrollmentResult struct {
	Payload        *protocol.EnrollmentPayload
	KeyPair        *schnorr.KeyPair
	BindingMessage []byte
}

// EnrollmentCoordinator creates and persists the device identity key.
type EnrollmentCoordinator struct {
	crv   curve.Curve
	vault *vault.Vault
	store storage.SecretStore
	opts  options

	// mu serializes enrollments around the single persisted slot.
	mu sync.Mutex
}

// NewEnrollmentCoordinator wires a coordinator to its vault and slot.
func NewEnrollmentCoordinator(crv curve.Curve, v *vault.Vault, store storage.SecretStore, opts ...Option) *EnrollmentCoordinator {
	return &EnrollmentCoordinator{
		crv:   crv,
		vault: v,
		store: store,
		opts:  newOptions(opts),
	}
}

// Enroll generates a key pair, seals the PII record, proves possession of the
// key bound to the identity hashes and persists the wrapped secret. A second
// enrollment replaces the first.
//
// Nothing is written if ctx ends before persistence. Once the slot is
// written the result is returned regardless of ctx.
func (e *EnrollmentCoordinator) Enroll(ctx context.Context, req *EnrollmentRequest) (*EnrollmentResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	log := e.opts.logger.With("curve", e.crv.Name())

	kp, err := schnorr.GenerateKeyPairFrom(e.crv, e.opts.rand)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key pair: %w", err)
	}

	record, err := json.Marshal(protocol.PIIRecord{
		IDNumber:     req.Facts.IDNumber,
		FullName:     req.Facts.FullName,
		PhoneNumber:  req.PhoneNumber,
		Address:      req.address(),
		DOB:          req.Facts.DOB,
		Origin:       req.Facts.Origin,
		FaceApproval: req.Approval,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode pii record: %w", err)
	}
	sealedPII, err := e.vault.Encrypt(ctx, record, vault.PIIKey)
	if err != nil {
		return nil, storageError("seal pii", err)
	}

	publicHex := curve.EncodePointHex(kp.Public)
	binding := protocol.EnrollmentBinding{
		IDHash:    schnorr.HashHex(req.Facts.IDNumber),
		NameHash:  schnorr.HashHex(req.Facts.FullName),
		DOBHash:   schnorr.HashHex(req.Facts.DOB),
		Approval:  req.Approval,
		Timestamp: e.opts.now().UnixMilli(),
	}
	binding.Commitment = protocol.IdentityCommitment(publicHex, binding.IDHash)
	message := binding.Message()

	proof, err := schnorr.GenerateProofFrom(e.crv, e.opts.rand, kp.Secret, message)
	if err != nil {
		return nil, fmt.Errorf("failed to generate enrollment proof: %w", err)
	}

	payload := &protocol.EnrollmentPayload{
		PublicKey:    publicHex,
		Commitment:   binding.Commitment,
		IDNumberHash: binding.IDHash,
		EncryptedPII: sealedPII.String(),
		Proof:        schnorr.EncodeProof(proof),
		Timestamp:    binding.Timestamp,
		FullNameHash: binding.NameHash,
		DOBHash:      binding.DOBHash,
		Approval:     binding.Approval,
	}

	wrapped, err := e.vault.Encrypt(ctx, []byte(curve.EncodeScalarHex(kp.Secret)), vault.SecretWrapKey)
	if err != nil {
		return nil, storageError("wrap secret", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// The slot write is the commit point; it is not abandoned half way.
	err = e.store.SaveEnrollment(context.WithoutCancel(ctx), &storage.Enrollment{
		PrivateKey: wrapped,
		Binding: storage.Binding{
			IDHash:   binding.IDHash,
			NameHash: binding.NameHash,
			DOBHash:  binding.DOBHash,
		},
	})
	if err != nil {
		log.Error("failed to persist enrollment", "error", err)
		return nil, fmt.Errorf("persist enrollment: %w: %w", ErrStorageUnavailable, err)
	}

	log.Info("device enrolled",
		"public_key", publicHex,
		"id_hash", binding.IDHash,
		"approval", binding.Approval,
	)

	return &EnrollmentResult{
		Payload:        payload,
		KeyPair:        kp,
		BindingMessage: message,
	}, nil
}

// IsEnrolled reports whether the slot holds an enrollment.
func (e *EnrollmentCoordinator) IsEnrolled(ctx context.Context) (bool, error) {
	ok, err := e.store.Exists(ctx)
	if err != nil {
		return false, storageError("check enrollment", err)
	}
	return ok, nil
}

// Binding returns the identity hashes of the current enrollment.
func (e *EnrollmentCoordinator) Binding(ctx context.Context) (*storage.Binding, error) {
	b, err := e.store.LoadBinding(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return nil, ErrNotEnrolled
	case err != nil:
		return nil, storageError("load binding", err)
	}
	return b, nil
}

// ClearEnrollment empties the slot. The device must enroll again before it
// can re-authenticate.
func (e *EnrollmentCoordinator) ClearEnrollment(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.store.Clear(ctx); err != nil {
		return storageError("clear enrollment", err)
	}
	e.opts.logger.Info("enrollment cleared")
	return nil
}
