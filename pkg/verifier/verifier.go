// Package verifier is a development verifier for the device protocol. It
// issues single-use challenge sessions, checks enrollment and
// re-authentication proofs, remembers nullifiers and mints session tokens.
package verifier

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/allsmog/zkekyc-go/pkg/crypto/curve"
	"github.com/allsmog/zkekyc-go/pkg/crypto/schnorr"
	"github.com/allsmog/zkekyc-go/pkg/jwt"
	"github.com/allsmog/zkekyc-go/pkg/logging"
	"github.com/allsmog/zkekyc-go/pkg/metrics"
	"github.com/allsmog/zkekyc-go/pkg/middleware"
	"github.com/allsmog/zkekyc-go/pkg/protocol"
	"github.com/allsmog/zkekyc-go/pkg/storage"
	"github.com/allsmog/zkekyc-go/pkg/vault"
)

// Refusal details. Devices show these verbatim.
const (
	detailInvalidJSON     = "Invalid JSON"
	detailInvalidKey      = "Invalid public key"
	detailAlreadyEnrolled = "ID already enrolled"
	detailCommitment      = "Commitment does not match public key and ID hash"
	detailApproval        = "Approval must be 0 or 1"
	detailNoLiveness      = "Liveness approval required"
	detailInvalidPII      = "Invalid encrypted PII"
	detailStale           = "Timestamp outside allowed clock skew"
	detailInvalidProof    = "Invalid ZKP Proof"
	detailInvalidSession  = "Invalid or expired session"
	detailReplay          = "Replay attack detected (Nullifier used)"
	detailUserNotFound    = "User not found"
	detailUserInactive    = "User is not active"
	detailStorage         = "storage error"
)

const maxBodyBytes = 64 << 10

// Config contains configuration for the verifier handlers
type Config struct {
	Issuer          string        // token issuer
	Audience        string        // token audience
	TokenTTL        time.Duration // session token lifetime
	MaxClockSkew    time.Duration // allowed payload timestamp drift, 0 disables the check
	RequireApproval bool          // refuse enrollments with approval 0
	AdminToken      string        // bearer token for admin routes, empty disables them
}

// Handlers contains the verifier HTTP handlers
type Handlers struct {
	store   storage.Registry
	curve   curve.Curve
	signer  jwt.TokenSigner
	config  Config
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures Handlers
type Option func(*Handlers)

// WithMetrics records outcomes on m
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handlers) { h.metrics = m }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(h *Handlers) { h.logger = l }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(h *Handlers) { h.now = now }
}

// NewHandlers creates the verifier handlers
func NewHandlers(store storage.Registry, crv curve.Curve, signer jwt.TokenSigner, cfg Config, opts ...Option) *Handlers {
	h := &Handlers{
		store:  store,
		curve:  crv,
		signer: signer,
		config: cfg,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = logging.OrDiscard(h.logger)
	return h
}

// MeResponse is the body of GET /api/me
type MeResponse struct {
	UserID     int64     `json:"userId"`
	PublicKey  string    `json:"publicKey"`
	Commitment string    `json:"commitment"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
}

// CitizenResponse is the body of the admin citizen lookup
type CitizenResponse struct {
	Exists    bool       `json:"exists"`
	UserID    *int64     `json:"userId,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

// Challenge issues a fresh single-use session
func (h *Handlers) Challenge(w http.ResponseWriter, r *http.Request) {
	sessionID := uuid.NewString()
	if err := h.store.CreateSession(&storage.Session{ID: sessionID}); err != nil {
		h.logger.Error("failed to create session", "error", err)
		middleware.WriteError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	writeJSON(w, http.StatusOK, protocol.ChallengeResponse{SessionID: sessionID})
}

// Enroll checks an enrollment payload and records the user
func (h *Handlers) Enroll(w http.ResponseWriter, r *http.Request) {
	var p protocol.EnrollmentPayload
	if !decodeBody(w, r, &p) {
		return
	}
	log := h.logger.With("public_key", p.PublicKey, "id_hash", p.IDNumberHash)

	reject := func(status int, detail string) {
		h.metrics.Enrollment(metrics.OutcomeRejected)
		log.Info("enrollment rejected", "reason", detail)
		middleware.WriteError(w, status, detail)
	}

	public, err := curve.DecodePointHex(h.curve, p.PublicKey)
	if err != nil {
		reject(http.StatusBadRequest, detailInvalidKey)
		return
	}

	switch _, err := h.store.GetUserByIDHash(p.IDNumberHash); {
	case err == nil:
		reject(http.StatusBadRequest, detailAlreadyEnrolled)
		return
	case !errors.Is(err, storage.ErrUserNotFound):
		h.storageFailure(w, "lookup id hash", err)
		h.metrics.Enrollment(metrics.OutcomeError)
		return
	}

	if subtle.ConstantTimeCompare([]byte(protocol.IdentityCommitment(p.PublicKey, p.IDNumberHash)), []byte(p.Commitment)) != 1 {
		reject(http.StatusBadRequest, detailCommitment)
		return
	}
	if p.Approval != 0 && p.Approval != 1 {
		reject(http.StatusBadRequest, detailApproval)
		return
	}
	if h.config.RequireApproval && p.Approval != 1 {
		reject(http.StatusForbidden, detailNoLiveness)
		return
	}
	if _, err := vault.ParseBlob(p.EncryptedPII); err != nil {
		reject(http.StatusBadRequest, detailInvalidPII)
		return
	}
	if !h.fresh(p.Timestamp) {
		reject(http.StatusBadRequest, detailStale)
		return
	}
	if !h.verifyProof("enroll", p.PublicKey, p.Proof, p.Binding().Message()) {
		reject(http.StatusBadRequest, detailInvalidProof)
		return
	}

	proofJSON, _ := json.Marshal(p.Proof)
	user, err := h.store.CreateUser(&storage.User{
		PublicKey:       curve.EncodePointHex(public),
		Commitment:      p.Commitment,
		IDHash:          p.IDNumberHash,
		NameHash:        p.FullNameHash,
		DOBHash:         p.DOBHash,
		EncryptedPII:    p.EncryptedPII,
		EnrollmentProof: string(proofJSON),
		Approval:        p.Approval,
	})
	switch {
	case errors.Is(err, storage.ErrUserExists):
		reject(http.StatusBadRequest, detailAlreadyEnrolled)
		return
	case err != nil:
		h.metrics.Enrollment(metrics.OutcomeError)
		h.storageFailure(w, "create user", err)
		return
	}

	h.metrics.Enrollment(metrics.OutcomeAccepted)
	log.Info("user enrolled", "user_id", user.ID, "approval", user.Approval)
	writeJSON(w, http.StatusOK, protocol.SubmitResponse{Success: true, UserID: &user.ID})
}

// Verify checks a re-authentication payload bound to the sessionId query
// parameter and mints a session token
func (h *Handlers) Verify(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")

	var p protocol.VerificationPayload
	if !decodeBody(w, r, &p) {
		return
	}
	log := h.logger.With("session_id", sessionID, "public_key", p.PublicKey)

	reject := func(status int, detail, outcome string) {
		h.metrics.Verification(outcome)
		log.Info("verification rejected", "reason", detail)
		middleware.WriteError(w, status, detail)
	}

	if sessionID == "" {
		reject(http.StatusBadRequest, detailInvalidSession, metrics.OutcomeRejected)
		return
	}
	session, err := h.store.GetSession(sessionID)
	switch {
	case errors.Is(err, storage.ErrSessionNotFound), errors.Is(err, storage.ErrSessionExpired):
		reject(http.StatusBadRequest, detailInvalidSession, metrics.OutcomeRejected)
		return
	case err != nil:
		h.metrics.Verification(metrics.OutcomeError)
		h.storageFailure(w, "get session", err)
		return
	case session.Used:
		reject(http.StatusBadRequest, detailInvalidSession, metrics.OutcomeReplay)
		return
	}

	if strings.TrimSpace(p.Nullifier) == "" {
		reject(http.StatusBadRequest, "Nullifier is required", metrics.OutcomeRejected)
		return
	}
	used, err := h.store.IsNullifierUsed(p.Nullifier)
	if err != nil {
		h.metrics.Verification(metrics.OutcomeError)
		h.storageFailure(w, "check nullifier", err)
		return
	}
	if used {
		reject(http.StatusBadRequest, detailReplay, metrics.OutcomeReplay)
		return
	}

	public, err := curve.DecodePointHex(h.curve, p.PublicKey)
	if err != nil {
		reject(http.StatusBadRequest, detailInvalidKey, metrics.OutcomeRejected)
		return
	}
	user, err := h.store.GetUserByPublicKey(curve.EncodePointHex(public))
	switch {
	case errors.Is(err, storage.ErrUserNotFound):
		reject(http.StatusNotFound, detailUserNotFound, metrics.OutcomeRejected)
		return
	case err != nil:
		h.metrics.Verification(metrics.OutcomeError)
		h.storageFailure(w, "get user", err)
		return
	}
	if user.Status != storage.StatusActive {
		reject(http.StatusForbidden, detailUserInactive, metrics.OutcomeRejected)
		return
	}

	if !h.fresh(p.Timestamp) {
		reject(http.StatusBadRequest, detailStale, metrics.OutcomeRejected)
		return
	}
	if !h.verifyProof("verify", p.PublicKey, p.Proof, protocol.VerificationMessage(sessionID, p.Timestamp)) {
		reject(http.StatusBadRequest, detailInvalidProof, metrics.OutcomeRejected)
		return
	}

	// Consume first so that concurrent submissions for one session cannot
	// both succeed.
	switch err := h.store.ConsumeSession(sessionID); {
	case errors.Is(err, storage.ErrSessionUsed):
		reject(http.StatusBadRequest, detailInvalidSession, metrics.OutcomeReplay)
		return
	case errors.Is(err, storage.ErrSessionNotFound), errors.Is(err, storage.ErrSessionExpired):
		reject(http.StatusBadRequest, detailInvalidSession, metrics.OutcomeRejected)
		return
	case err != nil:
		h.metrics.Verification(metrics.OutcomeError)
		h.storageFailure(w, "consume session", err)
		return
	}
	switch err := h.store.RecordNullifier(p.Nullifier); {
	case errors.Is(err, storage.ErrNullifierUsed):
		reject(http.StatusBadRequest, detailReplay, metrics.OutcomeReplay)
		return
	case err != nil:
		h.metrics.Verification(metrics.OutcomeError)
		h.storageFailure(w, "record nullifier", err)
		return
	}

	token, err := jwt.MintSessionToken(h.signer, jwt.SessionToken{
		Issuer:    h.config.Issuer,
		Audience:  h.config.Audience,
		UserID:    user.ID,
		PublicKey: user.PublicKey,
		Group:     h.curve.Name(),
		SessionID: sessionID,
		TTL:       h.config.TokenTTL,
		Now:       h.now(),
	})
	if err != nil {
		h.metrics.Verification(metrics.OutcomeError)
		log.Error("failed to mint token", "error", err)
		middleware.WriteError(w, http.StatusInternalServerError, "failed to mint token")
		return
	}

	h.metrics.Verification(metrics.OutcomeAccepted)
	log.Info("user verified", "user_id", user.ID)
	writeJSON(w, http.StatusOK, protocol.SubmitResponse{
		Success:      true,
		UserID:       &user.ID,
		SessionToken: token,
	})
}

// Me returns the user behind the bearer session token
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaims(r)
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "session token required")
		return
	}

	user, err := h.store.GetUser(claims.UserID)
	switch {
	case errors.Is(err, storage.ErrUserNotFound):
		middleware.WriteError(w, http.StatusNotFound, detailUserNotFound)
		return
	case err != nil:
		h.storageFailure(w, "get user", err)
		return
	}

	writeJSON(w, http.StatusOK, MeResponse{
		UserID:     user.ID,
		PublicKey:  user.PublicKey,
		Commitment: user.Commitment,
		Status:     user.Status,
		CreatedAt:  user.CreatedAt,
	})
}

// CheckCitizen reports whether an ID document hash is enrolled without
// exposing anything else about the user
func (h *Handlers) CheckCitizen(w http.ResponseWriter, r *http.Request) {
	user, err := h.store.GetUserByIDHash(chi.URLParam(r, "idHash"))
	switch {
	case errors.Is(err, storage.ErrUserNotFound):
		writeJSON(w, http.StatusOK, CitizenResponse{Exists: false})
		return
	case err != nil:
		h.storageFailure(w, "lookup id hash", err)
		return
	}
	writeJSON(w, http.StatusOK, CitizenResponse{Exists: true, UserID: &user.ID, CreatedAt: &user.CreatedAt})
}

// StatusRequest is the body of the admin user status update
type StatusRequest struct {
	Status string `json:"status"`
}

// SetUserStatus activates or bans a user. Banned users are refused at
// re-authentication.
func (h *Handlers) SetUserStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || id <= 0 {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid user id")
		return
	}
	var req StatusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Status != storage.StatusActive && req.Status != storage.StatusBanned {
		middleware.WriteError(w, http.StatusBadRequest, "Status must be active or banned")
		return
	}

	switch err := h.store.UpdateUserStatus(id, req.Status); {
	case errors.Is(err, storage.ErrUserNotFound):
		middleware.WriteError(w, http.StatusNotFound, detailUserNotFound)
		return
	case err != nil:
		h.storageFailure(w, "update user status", err)
		return
	}
	h.logger.Info("user status changed", "user_id", id, "status", req.Status)
	writeJSON(w, http.StatusOK, map[string]any{"userId": id, "status": req.Status})
}

// Stats reports registry counters when the registry exposes them
func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	st, ok := h.store.(interface{ Stats() map[string]int })
	if !ok {
		writeJSON(w, http.StatusOK, map[string]string{"storage": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"storage": st.Stats()})
}

// JWKS returns the public keys for session token verification
func (h *Handlers) JWKS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=300")
	writeJSON(w, http.StatusOK, h.signer.JWKS())
}

// Health reports whether storage is reachable
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"curve":  h.curve.Name(),
	})
}

// RequireAdmin guards admin routes with the configured static token
func (h *Handlers) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := h.config.AdminToken
		got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if want == "" || subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			middleware.WriteError(w, http.StatusUnauthorized, "admin token required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handlers) verifyProof(kind, publicKey string, proof schnorr.ProofData, message []byte) bool {
	start := time.Now()
	res := schnorr.VerifyEncoded(h.curve, publicKey, proof, message)
	h.metrics.ProofVerified(kind, time.Since(start))
	if !res.Valid {
		h.logger.Debug("proof rejected", "kind", kind, "reason", res.Error)
	}
	return res.Valid
}

// fresh reports whether a millisecond timestamp is within the allowed skew
func (h *Handlers) fresh(ts int64) bool {
	if h.config.MaxClockSkew <= 0 {
		return true
	}
	d := h.now().Sub(time.UnixMilli(ts))
	if d < 0 {
		d = -d
	}
	return d <= h.config.MaxClockSkew
}

func (h *Handlers) storageFailure(w http.ResponseWriter, op string, err error) {
	h.logger.Error("storage failure", "op", op, "error", err)
	middleware.WriteError(w, http.StatusInternalServerError, detailStorage)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, detailInvalidJSON)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
