// Package service owns the template lifecycle: drafts mutate freely,
// publishing validates and freezes the document, archiving withdraws it from
// new sessions without touching historical ones.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"fortaudit/internal/checklist/models"
	"fortaudit/internal/checklist/store"
	dErrors "fortaudit/pkg/domain-errors"
	"fortaudit/pkg/platform/audit"
	"fortaudit/pkg/platform/sentinel"
)

type Service struct {
	store          store.Store
	logger         *slog.Logger
	auditPublisher *audit.Publisher
	now            func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(publisher *audit.Publisher) Option {
	return func(s *Service) { s.auditPublisher = publisher }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(templateStore store.Store, opts ...Option) (*Service, error) {
	if templateStore == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "template store is required")
	}
	svc := &Service{
		store:  templateStore,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// CreateDraft stores a new template in Draft. Structural validation is
// deferred to Publish so authors can save work in progress; only the
// commodity must already be valid.
func (s *Service) CreateDraft(ctx context.Context, template *models.ChecklistTemplate) (*models.ChecklistTemplate, error) {
	if !template.Commodity.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid commodity")
	}
	if template.ID == "" {
		template.ID = uuid.NewString()
	}
	if template.Version == 0 {
		template.Version = 1
	}
	template.Status = models.TemplateDraft
	template.CreatedAt = s.now()
	template.PublishedAt = nil

	if err := s.store.Save(ctx, template); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save template")
	}
	return template, nil
}

// Publish validates and freezes a draft. A published template is immutable:
// corrections require a new draft with a bumped version.
func (s *Service) Publish(ctx context.Context, id string) (*models.ChecklistTemplate, error) {
	template, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if template.Status != models.TemplateDraft {
		return nil, dErrors.New(dErrors.CodeInvalidState, "only draft templates can be published")
	}
	if err := template.Validate(); err != nil {
		return nil, err
	}

	publishedAt := s.now()
	template.Status = models.TemplatePublished
	template.PublishedAt = &publishedAt
	if err := s.store.Save(ctx, template); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save template")
	}

	s.emit(ctx, audit.ActionTemplatePublished, template)
	return template, nil
}

// Archive withdraws a published template from new sessions. Sessions already
// referencing it keep scoring against it.
func (s *Service) Archive(ctx context.Context, id string) (*models.ChecklistTemplate, error) {
	template, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if template.Status != models.TemplatePublished {
		return nil, dErrors.New(dErrors.CodeInvalidState, "only published templates can be archived")
	}

	template.Status = models.TemplateArchived
	if err := s.store.Save(ctx, template); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save template")
	}

	s.emit(ctx, audit.ActionTemplateArchived, template)
	return template, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.ChecklistTemplate, error) {
	return s.get(ctx, id)
}

func (s *Service) ListPublished(ctx context.Context) ([]*models.ChecklistTemplate, error) {
	templates, err := s.store.ListByStatus(ctx, models.TemplatePublished)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list templates")
	}
	return templates, nil
}

func (s *Service) get(ctx context.Context, id string) (*models.ChecklistTemplate, error) {
	if id == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "template id is required")
	}
	template, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "template not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load template")
	}
	return template, nil
}

func (s *Service) emit(ctx context.Context, action audit.Action, template *models.ChecklistTemplate) {
	err := s.auditPublisher.Emit(ctx, audit.Event{
		Action:     action,
		TemplateID: template.ID,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "audit emit failed",
			"action", string(action),
			"template_id", template.ID,
			"error", err,
		)
	}
}
