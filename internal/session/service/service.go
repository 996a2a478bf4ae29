// Package service orchestrates audit sessions: creation against published
// templates, response capture with optimistic concurrency, evidence and
// annotation bookkeeping, lifecycle transitions, and result verification.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	checklist "fortaudit/internal/checklist/models"
	"fortaudit/internal/platform/metrics"
	"fortaudit/internal/scoring"
	"fortaudit/internal/session/lifecycle"
	"fortaudit/internal/session/models"
	"fortaudit/internal/session/store"
	dErrors "fortaudit/pkg/domain-errors"
	"fortaudit/pkg/platform/audit"
	"fortaudit/pkg/platform/sentinel"
)

// TemplateStore is the slice of the checklist layer this service needs.
type TemplateStore interface {
	FindByID(ctx context.Context, id string) (*checklist.ChecklistTemplate, error)
}

type Service struct {
	sessions       store.Store
	templates      TemplateStore
	machine        *lifecycle.Machine
	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher *audit.Publisher
	tracer         trace.Tracer
	now            func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditPublisher(publisher *audit.Publisher) Option {
	return func(s *Service) { s.auditPublisher = publisher }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) { s.tracer = tracer }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(sessions store.Store, templates TemplateStore, machine *lifecycle.Machine, opts ...Option) (*Service, error) {
	if sessions == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "session store is required")
	}
	if templates == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "template store is required")
	}
	if machine == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "lifecycle machine is required")
	}
	svc := &Service{
		sessions:  sessions,
		templates: templates,
		machine:   machine,
		logger:    slog.Default(),
		tracer:    noop.NewTracerProvider().Tracer("fortaudit"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Create opens a new session in Pending against a published template.
// Draft and archived templates are refused so every session scores against a
// frozen document.
func (s *Service) Create(ctx context.Context, session *models.AuditSession) (*models.AuditSession, error) {
	template, err := s.template(ctx, session.TemplateID)
	if err != nil {
		return nil, err
	}
	if template.Status != checklist.TemplatePublished {
		return nil, dErrors.New(dErrors.CodeInvalidState, "template is not published")
	}
	if err := session.Validate(); err != nil {
		return nil, err
	}

	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	session.Status = models.StatusPending
	session.Responses = map[string]*models.AuditResponse{}
	session.Result = nil
	session.StartDate = s.now()
	session.UpdatedAt = session.StartDate

	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save session")
	}

	s.emit(ctx, audit.Event{
		Action:     audit.ActionSessionCreated,
		SessionID:  session.ID,
		TemplateID: session.TemplateID,
		MillID:     session.MillID,
		ActorID:    session.AssigneeID(),
		ToStatus:   string(session.Status),
	})
	return session, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.AuditSession, error) {
	return s.session(ctx, id)
}

func (s *Service) ListByMill(ctx context.Context, millID string) ([]*models.AuditSession, error) {
	sessions, err := s.sessions.ListByMill(ctx, millID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list sessions")
	}
	return sessions, nil
}

// SubmitResponse records one answer while the session is In Progress. The
// write is conditional on the status the session had when loaded, so a
// concurrent transition loses no updates silently.
func (s *Service) SubmitResponse(ctx context.Context, sessionID string, response *models.AuditResponse) (*models.AuditSession, error) {
	session, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.StatusInProgress {
		return nil, dErrors.New(dErrors.CodeInvalidState, "responses can only be recorded while in progress")
	}

	template, err := s.template(ctx, session.TemplateID)
	if err != nil {
		return nil, err
	}
	index := checklist.NewIndex(template)
	item, ok := index.Items[response.ItemID]
	if !ok {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "item does not exist in the template")
	}

	response.Score = clampScore(response.Score, item.Weight)
	if response.FlagLevel == "" {
		response.FlagLevel = deriveFlag(response, item)
	} else if !response.FlagLevel.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid flag level")
	}
	response.AnsweredAt = s.now()

	session.Responses[response.ItemID] = response
	session.UpdatedAt = s.now()

	if err := s.saveIfStatus(ctx, session, models.StatusInProgress); err != nil {
		return nil, err
	}
	return session, nil
}

// AttachEvidence stores an uploaded file reference. Evidence attached during
// CAPA Required is marked corrective; the CAPA exit guards look for it.
func (s *Service) AttachEvidence(ctx context.Context, sessionID string, evidence *models.EvidenceFile) (*models.AuditSession, error) {
	session, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	switch session.Status {
	case models.StatusInProgress, models.StatusCAPARequired:
	default:
		return nil, dErrors.New(dErrors.CodeInvalidState, "evidence can only be attached while in progress or during CAPA")
	}
	if evidence.URL == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "evidence url is required")
	}
	kind := checklist.EvidenceKind(evidence.Kind)
	if evidence.Kind != "" && !kind.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid evidence kind")
	}
	if evidence.ItemID != "" {
		template, err := s.template(ctx, session.TemplateID)
		if err != nil {
			return nil, err
		}
		item, ok := checklist.NewIndex(template).Items[evidence.ItemID]
		if !ok {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "item does not exist in the template")
		}
		if len(item.RequiredEvidence) > 0 && !acceptsKind(item.RequiredEvidence, kind) {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "evidence kind not accepted for this item")
		}
	}

	evidence.ID = uuid.NewString()
	evidence.Corrective = session.Status == models.StatusCAPARequired
	evidence.UploadedAt = s.now()

	session.Evidence = append(session.Evidence, *evidence)
	session.UpdatedAt = s.now()

	if err := s.saveIfStatus(ctx, session, session.Status); err != nil {
		return nil, err
	}
	return session, nil
}

// AddAnnotation records a reviewer note. Annotations that require a response
// block approval until resolved.
func (s *Service) AddAnnotation(ctx context.Context, sessionID string, annotation *models.Annotation) (*models.AuditSession, error) {
	session, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	switch session.Status {
	case models.StatusSubmitted, models.StatusReviewing, models.StatusCAPARequired:
	default:
		return nil, dErrors.New(dErrors.CodeInvalidState, "annotations are only accepted during review or CAPA")
	}
	if annotation.Text == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "annotation text is required")
	}

	annotation.ID = uuid.NewString()
	annotation.Resolved = false
	annotation.CreatedAt = s.now()

	session.Annotations = append(session.Annotations, *annotation)
	session.UpdatedAt = s.now()

	if err := s.saveIfStatus(ctx, session, session.Status); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *Service) ResolveAnnotation(ctx context.Context, sessionID, annotationID string) (*models.AuditSession, error) {
	session, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	resolved := false
	for i := range session.Annotations {
		if session.Annotations[i].ID == annotationID {
			session.Annotations[i].Resolved = true
			resolved = true
			break
		}
	}
	if !resolved {
		return nil, dErrors.New(dErrors.CodeNotFound, "annotation not found")
	}
	session.UpdatedAt = s.now()

	if err := s.saveIfStatus(ctx, session, session.Status); err != nil {
		return nil, err
	}
	return session, nil
}

// Transition moves a session to the target status. Edges entering review
// rescore from the live responses first so guards and the stored result never
// reflect stale answers.
func (s *Service) Transition(ctx context.Context, sessionID string, target models.AuditStatus, actor lifecycle.Actor) (*models.AuditSession, error) {
	ctx, span := s.tracer.Start(ctx, "session.Transition")
	defer span.End()

	if !target.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid target status")
	}

	session, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	from := session.Status

	template, err := s.template(ctx, session.TemplateID)
	if err != nil {
		return nil, err
	}

	in := lifecycle.Input{
		Session:  session,
		Template: template,
		Actor:    actor,
	}
	if lifecycle.RequiresRescore(from, target) {
		started := s.now()
		result, err := scoring.Score(template, session.Responses)
		if err != nil {
			return nil, err
		}
		s.metrics.ObserveScoring(s.now().Sub(started))
		in.Result = result
	}

	next, err := s.machine.Attempt(in, target, s.now())
	if err != nil {
		var invalid *lifecycle.InvalidTransitionError
		if errors.As(err, &invalid) || dErrors.GetCode(err) == dErrors.CodeForbidden {
			s.metrics.RecordInvalidTransition()
			s.emit(ctx, audit.Event{
				Action:     audit.ActionTransitionDenied,
				SessionID:  session.ID,
				TemplateID: session.TemplateID,
				MillID:     session.MillID,
				ActorID:    actor.ID,
				ActorRole:  actor.Role,
				FromStatus: string(from),
				ToStatus:   string(target),
				Reason:     err.Error(),
			})
		}
		return nil, err
	}

	if err := s.saveIfStatus(ctx, next, from); err != nil {
		return nil, err
	}

	s.metrics.RecordTransition(string(from), string(target))
	event := audit.Event{
		Action:     audit.ActionTransition,
		SessionID:  next.ID,
		TemplateID: next.TemplateID,
		MillID:     next.MillID,
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		FromStatus: string(from),
		ToStatus:   string(target),
	}
	if next.Result != nil {
		event.Grade = next.Result.Grade
		event.IntegrityHash = next.Result.IntegrityHash
	}
	s.emit(ctx, event)
	return next, nil
}

// Result recomputes the score from the live responses and cross-checks the
// stored integrity stamp. A mismatch is reported, never repaired here.
func (s *Service) Result(ctx context.Context, sessionID string) (*models.AuditResult, *scoring.IntegrityWarning, error) {
	session, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	template, err := s.template(ctx, session.TemplateID)
	if err != nil {
		return nil, nil, err
	}

	started := s.now()
	result, err := scoring.Score(template, session.Responses)
	if err != nil {
		return nil, nil, err
	}
	s.metrics.ObserveScoring(s.now().Sub(started))

	var warning *scoring.IntegrityWarning
	if session.Result != nil {
		warning = scoring.Verify(session.ID, session.Result.IntegrityHash, result)
		if warning != nil {
			s.metrics.RecordIntegrityMismatch()
			s.logger.WarnContext(ctx, "integrity check failed",
				"session_id", session.ID,
				"stored", warning.Stored,
				"computed", warning.Computed,
				"stale", warning.Stale,
			)
		}
	}
	return result, warning, nil
}

// Verification is the public, read-only view served without authentication.
// It exposes only the certification outcome, never responses or annotations.
type Verification struct {
	AuditID         string                `json:"audit_id"`
	MillID          string                `json:"mill_id"`
	TemplateID      string                `json:"template_id"`
	TemplateVersion int                   `json:"template_version"`
	Verified        bool                  `json:"verified"`
	Status          models.AuditStatus    `json:"status"`
	Grade           string                `json:"grade,omitempty"`
	OverallResult   models.OverallResult  `json:"overall_result,omitempty"`
	OverallPercent  float64               `json:"overall_percent,omitempty"`
	CompletedDate   *time.Time            `json:"completed_date,omitempty"`
}

// Verify builds the public verification artifact for one session. Only
// approved sessions verify; everything else reports unverified with its
// current status.
func (s *Service) Verify(ctx context.Context, sessionID string) (*Verification, error) {
	session, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	template, err := s.template(ctx, session.TemplateID)
	if err != nil {
		return nil, err
	}

	v := &Verification{
		AuditID:         session.ID,
		MillID:          session.MillID,
		TemplateID:      template.ID,
		TemplateVersion: template.Version,
		Verified:        session.Status == models.StatusApproved,
		Status:          session.Status,
		CompletedDate:   session.CompletedDate,
	}
	if session.Result != nil {
		v.Grade = session.Result.Grade
		v.OverallResult = session.Result.OverallResult
		v.OverallPercent = session.Result.OverallPercent
	}
	return v, nil
}

// Restamp recomputes the integrity stamp of every approved session and
// rewrites stale ones, for use after a stamp format revision. Concurrency is
// bounded; the first error cancels the batch.
func (s *Service) Restamp(ctx context.Context, concurrency int) (int, error) {
	if concurrency < 1 {
		concurrency = 4
	}
	approved, err := s.sessions.ListByStatus(ctx, models.StatusApproved)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list approved sessions")
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	restamped := make(chan string, len(approved))

	for _, session := range approved {
		session := session
		g.Go(func() error {
			if session.Result == nil {
				return nil
			}
			template, err := s.template(ctx, session.TemplateID)
			if err != nil {
				return err
			}
			result, err := scoring.Score(template, session.Responses)
			if err != nil {
				return err
			}
			if result.IntegrityHash == session.Result.IntegrityHash {
				return nil
			}
			session.Result = result
			session.UpdatedAt = s.now()
			if err := s.saveIfStatus(ctx, session, models.StatusApproved); err != nil {
				return err
			}
			s.emit(ctx, audit.Event{
				Action:        audit.ActionRestamp,
				SessionID:     session.ID,
				TemplateID:    session.TemplateID,
				MillID:        session.MillID,
				IntegrityHash: result.IntegrityHash,
			})
			restamped <- session.ID
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	close(restamped)
	return len(restamped), nil
}

func (s *Service) session(ctx context.Context, id string) (*models.AuditSession, error) {
	if id == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "session id is required")
	}
	session, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "session not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load session")
	}
	return session, nil
}

func (s *Service) template(ctx context.Context, id string) (*checklist.ChecklistTemplate, error) {
	if id == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "template id is required")
	}
	template, err := s.templates.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "template not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load template")
	}
	return template, nil
}

func (s *Service) saveIfStatus(ctx context.Context, session *models.AuditSession, expected models.AuditStatus) error {
	err := s.sessions.SaveIfStatus(ctx, session, expected)
	if err == nil {
		return nil
	}
	if errors.Is(err, sentinel.ErrConflict) {
		return dErrors.Wrap(err, dErrors.CodeConflict, "session was modified concurrently")
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeNotFound, "session not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save session")
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed",
			"action", string(event.Action),
			"session_id", event.SessionID,
			"error", err,
		)
	}
}

func clampScore(v, weight float64) float64 {
	if v < 0 {
		return 0
	}
	if v > weight {
		return weight
	}
	return v
}

func acceptsKind(required []checklist.EvidenceKind, kind checklist.EvidenceKind) bool {
	for _, k := range required {
		if k == kind {
			return true
		}
	}
	return false
}

func deriveFlag(response *models.AuditResponse, item *checklist.ChecklistItem) models.FlagLevel {
	if !response.IsNonCompliant {
		return models.FlagGreen
	}
	if item.Criticality == checklist.CriticalityCritical {
		return models.FlagRed
	}
	return models.FlagAmber
}
