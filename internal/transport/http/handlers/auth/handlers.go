package authhandler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"hrims/internal/domain/audit"
	"hrims/internal/domain/auth"
	"hrims/internal/requestctx"
	"hrims/internal/transport/http/api"
	"hrims/internal/transport/http/middleware"
	"hrims/internal/transport/http/shared"
)

const auditModule = "auth"

// Authenticator is the slice of *auth.Service the handlers call.
type Authenticator interface {
	Login(ctx context.Context, in auth.LoginInput) (auth.LoginResult, error)
	SetupMFA(ctx context.Context, userID, email string) (auth.MFASetup, error)
	EnableMFA(ctx context.Context, userID, code string) error
	DisableMFA(ctx context.Context, userID, code string) error
}

type AuditLogger interface {
	LogEvent(evt audit.Event)
}

type Handler struct {
	Auth  Authenticator
	Audit AuditLogger
	Log   zerolog.Logger
}

func NewHandler(authn Authenticator, auditLog AuditLogger, log zerolog.Logger) *Handler {
	return &Handler{Auth: authn, Audit: auditLog, Log: log}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	MFACode  string `json:"mfaCode" validate:"omitempty,len=6,numeric"`
}

type mfaCodeRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

// RegisterPublicRoutes mounts the routes that run before a token exists.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/auth/login", h.HandleLogin)
}

// RegisterRoutes mounts the MFA routes. They expect RequireAuth upstream.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/auth/mfa", func(r chi.Router) {
		r.Post("/setup", h.HandleMFASetup)
		r.Post("/enable", h.HandleMFAEnable)
		r.Post("/disable", h.HandleMFADisable)
	})
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var payload loginRequest
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	payload.Email = strings.ToLower(strings.TrimSpace(payload.Email))
	v := shared.NewValidator()
	v.Struct(payload)
	if v.Reject(w, requestID) {
		return
	}

	result, err := h.Auth.Login(r.Context(), auth.LoginInput{
		Email:    payload.Email,
		Password: payload.Password,
		MFACode:  payload.MFACode,
	})
	if err != nil {
		if !errors.Is(err, auth.ErrMFARequired) {
			h.record(r.Context(), "", payload.Email, "login", audit.StatusFailure)
		}
		shared.WriteError(w, h.Log, err, requestID)
		return
	}

	h.record(r.Context(), result.Claims.UserID, result.Claims.Email, "login", audit.StatusSuccess)
	api.Success(w, map[string]any{
		"token":     result.Token,
		"expiresAt": result.ExpiresAt,
		"user": map[string]string{
			"id":          result.Claims.UserID,
			"email":       result.Claims.Email,
			"displayName": result.Claims.Name,
		},
	}, requestID)
}

func (h *Handler) HandleMFASetup(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return
	}
	setup, err := h.Auth.SetupMFA(r.Context(), identity.UID, identity.Email)
	if err != nil {
		shared.WriteError(w, h.Log, err, requestID)
		return
	}
	h.record(r.Context(), identity.UID, identity.Email, "mfa_setup", audit.StatusSuccess)
	api.Success(w, setup, requestID)
}

func (h *Handler) HandleMFAEnable(w http.ResponseWriter, r *http.Request) {
	h.toggleMFA(w, r, "mfa_enable", "enabled", h.Auth.EnableMFA)
}

func (h *Handler) HandleMFADisable(w http.ResponseWriter, r *http.Request) {
	h.toggleMFA(w, r, "mfa_disable", "disabled", h.Auth.DisableMFA)
}

func (h *Handler) toggleMFA(w http.ResponseWriter, r *http.Request, action, status string, apply func(context.Context, string, string) error) {
	requestID := middleware.GetRequestID(r.Context())
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return
	}
	var payload mfaCodeRequest
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	payload.Code = strings.TrimSpace(payload.Code)
	v := shared.NewValidator()
	v.Struct(payload)
	if v.Reject(w, requestID) {
		return
	}

	if err := apply(r.Context(), identity.UID, payload.Code); err != nil {
		h.record(r.Context(), identity.UID, identity.Email, action, audit.StatusFailure)
		shared.WriteError(w, h.Log, err, requestID)
		return
	}
	h.record(r.Context(), identity.UID, identity.Email, action, audit.StatusSuccess)
	api.Success(w, map[string]string{"status": status}, requestID)
}

func (h *Handler) record(ctx context.Context, userID, username, action, status string) {
	if h.Audit == nil {
		return
	}
	h.Audit.LogEvent(audit.Event{
		UserID:    userID,
		Username:  username,
		Action:    action,
		Module:    auditModule,
		IPAddress: requestctx.GetClientIP(ctx),
		Status:    status,
	})
}
