package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	checklistModel "fortaudit/internal/checklist/models"
	"fortaudit/internal/platform/middleware"
	"fortaudit/internal/transport/http/shared"
	dErrors "fortaudit/pkg/domain-errors"
)

// Service defines the interface for template operations.
type Service interface {
	CreateDraft(ctx context.Context, template *checklistModel.ChecklistTemplate) (*checklistModel.ChecklistTemplate, error)
	Publish(ctx context.Context, id string) (*checklistModel.ChecklistTemplate, error)
	Archive(ctx context.Context, id string) (*checklistModel.ChecklistTemplate, error)
	Get(ctx context.Context, id string) (*checklistModel.ChecklistTemplate, error)
	ListPublished(ctx context.Context) ([]*checklistModel.ChecklistTemplate, error)
}

// Handler handles template authoring endpoints.
type Handler struct {
	logger    *slog.Logger
	templates Service
	validator middleware.TokenValidator
}

func New(templates Service, logger *slog.Logger, validator middleware.TokenValidator) *Handler {
	return &Handler{
		logger:    logger,
		templates: templates,
		validator: validator,
	}
}

// Register registers the template routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.validator, h.logger))
		r.Post("/templates", h.handleCreate)
		r.Get("/templates", h.handleList)
		r.Get("/templates/{id}", h.handleGet)
		r.Post("/templates/{id}/publish", h.handlePublish)
		r.Post("/templates/{id}/archive", h.handleArchive)
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var template checklistModel.ChecklistTemplate
	if err := json.NewDecoder(r.Body).Decode(&template); err != nil {
		h.logger.WarnContext(ctx, "invalid template payload",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	created, err := h.templates.CreateDraft(ctx, &template)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to create template", err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	template, err := h.templates.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(ctx, w, "failed to load template", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, template)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	templates, err := h.templates.ListPublished(ctx)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to list templates", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, templates)
}

func (h *Handler) handlePublish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	template, err := h.templates.Publish(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(ctx, w, "failed to publish template", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, template)
}

func (h *Handler) handleArchive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	template, err := h.templates.Archive(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(ctx, w, "failed to archive template", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, template)
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
