package device

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/allsmog/zkekyc-go/pkg/crypto/curve"
	"github.com/allsmog/zkekyc-go/pkg/crypto/schnorr"
	"github.com/allsmog/zkekyc-go/pkg/protocol"
	"github.com/allsmog/zkekyc-go/pkg/storage"
	"github.com/allsmog/zkekyc-go/pkg/vault"
)

// VerificationCoordinator produces re-authentication proofs from the
// persisted secret. It writes nothing.
type VerificationCoordinator struct {
	crv   curve.Curve
	vault *vault.Vault
	store storage.SecretStore
	opts  options
}

// NewVerificationCoordinator wires a coordinator to its vault and slot.
func NewVerificationCoordinator(crv curve.Curve, v *vault.Vault, store storage.SecretStore, opts ...Option) *VerificationCoordinator {
	return &VerificationCoordinator{
		crv:   crv,
		vault: v,
		store: store,
		opts:  newOptions(opts),
	}
}

// PerformVerification builds a payload proving possession of the enrolled
// secret for sessionID. It returns ErrNotEnrolled when there is no usable
// enrollment.
func (v *VerificationCoordinator) PerformVerification(ctx context.Context, sessionID string) (*protocol.VerificationPayload, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrInvalidRequest)
	}

	secret, err := v.loadSecret(ctx)
	if err != nil {
		return nil, err
	}

	public, err := schnorr.ComputePublicKey(v.crv, secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotEnrolled, err)
	}

	ts := v.opts.now().UnixMilli()
	proof, err := schnorr.GenerateProofFrom(v.crv, v.opts.rand, secret, protocol.VerificationMessage(sessionID, ts))
	if err != nil {
		return nil, fmt.Errorf("failed to generate verification proof: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v.opts.logger.Debug("verification proof generated", "session_id", sessionID)

	return &protocol.VerificationPayload{
		PublicKey: curve.EncodePointHex(public),
		Proof:     schnorr.EncodeProof(proof),
		Nullifier: schnorr.GenerateNullifier(secret, sessionID),
		Timestamp: ts,
	}, nil
}

func (v *VerificationCoordinator) loadSecret(ctx context.Context) (curve.Scalar, error) {
	wrapped, err := v.store.LoadWrappedSecret(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrCorrupt):
		return nil, fmt.Errorf("%w: %w", ErrNotEnrolled, err)
	case err != nil:
		return nil, storageError("load secret", err)
	}

	plain, err := v.vault.Decrypt(ctx, wrapped, vault.SecretWrapKey)
	switch {
	case errors.Is(err, vault.ErrDecryptionFailed):
		v.opts.logger.Warn("stored secret could not be unwrapped")
		return nil, fmt.Errorf("%w: %w", ErrNotEnrolled, err)
	case err != nil:
		return nil, storageError("unwrap secret", err)
	}

	secret, err := curve.DecodeScalarHex(v.crv, string(plain))
	if err == nil {
		err = curve.ValidateScalar(secret)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: stored secret: %w", ErrNotEnrolled, err)
	}
	return secret, nil
}
