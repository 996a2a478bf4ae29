package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"fortaudit/internal/platform/middleware"
	"fortaudit/internal/scoring"
	"fortaudit/internal/session/lifecycle"
	sessionModel "fortaudit/internal/session/models"
	sessionService "fortaudit/internal/session/service"
	"fortaudit/internal/transport/http/shared"
	dErrors "fortaudit/pkg/domain-errors"
)

// Service defines the interface for audit session operations.
type Service interface {
	Create(ctx context.Context, session *sessionModel.AuditSession) (*sessionModel.AuditSession, error)
	Get(ctx context.Context, id string) (*sessionModel.AuditSession, error)
	ListByMill(ctx context.Context, millID string) ([]*sessionModel.AuditSession, error)
	SubmitResponse(ctx context.Context, sessionID string, response *sessionModel.AuditResponse) (*sessionModel.AuditSession, error)
	AttachEvidence(ctx context.Context, sessionID string, evidence *sessionModel.EvidenceFile) (*sessionModel.AuditSession, error)
	AddAnnotation(ctx context.Context, sessionID string, annotation *sessionModel.Annotation) (*sessionModel.AuditSession, error)
	ResolveAnnotation(ctx context.Context, sessionID, annotationID string) (*sessionModel.AuditSession, error)
	Transition(ctx context.Context, sessionID string, target sessionModel.AuditStatus, actor lifecycle.Actor) (*sessionModel.AuditSession, error)
	Result(ctx context.Context, sessionID string) (*sessionModel.AuditResult, *scoring.IntegrityWarning, error)
	Verify(ctx context.Context, sessionID string) (*sessionService.Verification, error)
}

// Handler handles audit session endpoints. The /verify route is registered
// separately because it is served without authentication.
type Handler struct {
	logger    *slog.Logger
	sessions  Service
	validator middleware.TokenValidator
}

func New(sessions Service, logger *slog.Logger, validator middleware.TokenValidator) *Handler {
	return &Handler{
		logger:    logger,
		sessions:  sessions,
		validator: validator,
	}
}

// Register registers the authenticated audit routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.validator, h.logger))
		r.Post("/audits", h.handleCreate)
		r.Get("/audits", h.handleList)
		r.Get("/audits/{id}", h.handleGet)
		r.Put("/audits/{id}/responses/{itemId}", h.handleSubmitResponse)
		r.Post("/audits/{id}/evidence", h.handleAttachEvidence)
		r.Post("/audits/{id}/annotations", h.handleAddAnnotation)
		r.Post("/audits/{id}/annotations/{annotationId}/resolve", h.handleResolveAnnotation)
		r.Post("/audits/{id}/transition", h.handleTransition)
		r.Get("/audits/{id}/result", h.handleResult)
	})
}

// RegisterPublic registers the unauthenticated verification route.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/verify/{id}", h.handleVerify)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var session sessionModel.AuditSession
	if err := json.NewDecoder(r.Body).Decode(&session); err != nil {
		h.warnBadPayload(ctx, "invalid session payload", err)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	created, err := h.sessions.Create(ctx, &session)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to create session", err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, err := h.sessions.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(ctx, w, "failed to load session", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, session)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	millID := r.URL.Query().Get("mill_id")
	if millID == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "mill_id query parameter is required"))
		return
	}
	sessions, err := h.sessions.ListByMill(ctx, millID)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to list sessions", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, sessions)
}

func (h *Handler) handleSubmitResponse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var response sessionModel.AuditResponse
	if err := json.NewDecoder(r.Body).Decode(&response); err != nil {
		h.warnBadPayload(ctx, "invalid response payload", err)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	response.ItemID = chi.URLParam(r, "itemId")

	updated, err := h.sessions.SubmitResponse(ctx, chi.URLParam(r, "id"), &response)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to record response", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleAttachEvidence(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var evidence sessionModel.EvidenceFile
	if err := json.NewDecoder(r.Body).Decode(&evidence); err != nil {
		h.warnBadPayload(ctx, "invalid evidence payload", err)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	evidence.UploadedBy = middleware.GetActorID(ctx)

	updated, err := h.sessions.AttachEvidence(ctx, chi.URLParam(r, "id"), &evidence)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to attach evidence", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleAddAnnotation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var annotation sessionModel.Annotation
	if err := json.NewDecoder(r.Body).Decode(&annotation); err != nil {
		h.warnBadPayload(ctx, "invalid annotation payload", err)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	annotation.AuthorID = middleware.GetActorID(ctx)

	updated, err := h.sessions.AddAnnotation(ctx, chi.URLParam(r, "id"), &annotation)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to add annotation", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleResolveAnnotation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	updated, err := h.sessions.ResolveAnnotation(ctx, chi.URLParam(r, "id"), chi.URLParam(r, "annotationId"))
	if err != nil {
		h.writeServiceError(ctx, w, "failed to resolve annotation", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, updated)
}

type transitionRequest struct {
	Target string `json:"target"`
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.warnBadPayload(ctx, "invalid transition payload", err)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	target, err := sessionModel.ParseAuditStatus(req.Target)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	actor := lifecycle.Actor{
		ID:   middleware.GetActorID(ctx),
		Role: middleware.GetActorRole(ctx),
	}
	updated, err := h.sessions.Transition(ctx, chi.URLParam(r, "id"), target, actor)
	if err != nil {
		h.writeServiceError(ctx, w, "transition failed", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, updated)
}

type resultResponse struct {
	Result    *sessionModel.AuditResult `json:"result"`
	Integrity string                    `json:"integrity"`
}

func (h *Handler) handleResult(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	result, warning, err := h.sessions.Result(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(ctx, w, "failed to compute result", err)
		return
	}
	integrity := "verified"
	if warning != nil {
		integrity = "mismatch"
		if warning.Stale {
			integrity = "stale"
		}
	}
	shared.WriteJSON(w, http.StatusOK, resultResponse{Result: result, Integrity: integrity})
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	verification, err := h.sessions.Verify(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(ctx, w, "verification lookup failed", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, verification)
}

func (h *Handler) warnBadPayload(ctx context.Context, msg string, err error) {
	h.logger.WarnContext(ctx, msg,
		"request_id", middleware.GetRequestID(ctx),
		"error", err.Error(),
	)
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	if dErrors.GetCode(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg,
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
	}
	shared.WriteError(w, err)
}
