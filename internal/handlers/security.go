package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ewhitmore/driveline/internal/auth"
	"github.com/ewhitmore/driveline/internal/security"
	pkghttp "github.com/ewhitmore/driveline/pkg/http"
	pkglogger "github.com/ewhitmore/driveline/pkg/logger"
)

// SecurityHandler exposes admin controls over the sign-in rate limiter
type SecurityHandler struct {
	limiter     *security.Limiter
	auditLogger *pkglogger.AuditLogger
}

// NewSecurityHandler creates a new SecurityHandler
func NewSecurityHandler(limiter *security.Limiter, auditLogger *pkglogger.AuditLogger) *SecurityHandler {
	return &SecurityHandler{limiter: limiter, auditLogger: auditLogger}
}

// LockKeyRequest force-locks a sign-in key
type LockKeyRequest struct {
	Key             string `json:"key" validate:"required"`
	DurationMinutes int    `json:"duration_minutes" validate:"required,gte=1,lte=1440"`
}

// UnlockKeyRequest clears lock and attempt state for a sign-in key
type UnlockKeyRequest struct {
	Key string `json:"key" validate:"required"`
}

// LimiterStatusResponse is the admin view of limiter state for a key
type LimiterStatusResponse struct {
	Key         string     `json:"key"`
	Attempts    int        `json:"attempts"`
	Locked      bool       `json:"locked"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
	LockReason  string     `json:"lock_reason,omitempty"`
}

// Status returns limiter state for a key without mutating it
func (h *SecurityHandler) Status(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		pkghttp.WriteBadRequest(w, "Missing key")
		return
	}

	st := h.limiter.Status(key)
	resp := LimiterStatusResponse{
		Key:        key,
		Attempts:   st.Attempts,
		Locked:     st.Locked,
		LockReason: st.LockReason,
	}
	if st.Locked {
		resp.LockedUntil = &st.LockedUntil
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// Lock force-locks a key for the requested duration
func (h *SecurityHandler) Lock(w http.ResponseWriter, r *http.Request) {
	var req LockKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	h.limiter.Lock(req.Key, time.Duration(req.DurationMinutes)*time.Minute)
	h.audit(r, "signin_key_locked", req.Key)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"message": "Key locked"})
}

// Unlock clears lock and attempt state for a key
func (h *SecurityHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	var req UnlockKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	h.limiter.Unlock(req.Key)
	h.audit(r, "signin_key_unlocked", req.Key)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"message": "Key unlocked"})
}

func (h *SecurityHandler) audit(r *http.Request, eventType, key string) {
	actorID := ""
	if claims := auth.GetUserFromContext(r); claims != nil {
		actorID = claims.UserID
	}
	h.auditLogger.LogAccountAction(eventType, actorID, "", map[string]string{
		"key": pkglogger.SanitizedEmail(key),
	})
}
