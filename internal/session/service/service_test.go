package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fortaudit/internal/authz"
	checklist "fortaudit/internal/checklist/models"
	checkliststore "fortaudit/internal/checklist/store"
	"fortaudit/internal/session/lifecycle"
	"fortaudit/internal/session/models"
	"fortaudit/internal/session/store"
	dErrors "fortaudit/pkg/domain-errors"
	"fortaudit/pkg/platform/audit"
	auditmemory "fortaudit/pkg/platform/audit/store/memory"
)

var testClock = time.Date(2026, 4, 10, 8, 0, 0, 0, time.UTC)

type fixture struct {
	svc       *Service
	sessions  *store.InMemoryStore
	templates *checkliststore.InMemoryStore
	sink      *auditmemory.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		sessions:  store.NewInMemory(),
		templates: checkliststore.NewInMemory(),
		sink:      auditmemory.New(),
	}
	svc, err := New(f.sessions, f.templates, lifecycle.New(authz.AllowAll{}),
		WithAuditPublisher(audit.NewPublisher(f.sink)),
		WithClock(func() time.Time { return testClock }),
	)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func publishedTemplate() *checklist.ChecklistTemplate {
	now := testClock
	return &checklist.ChecklistTemplate{
		ID:        "tpl-1",
		Version:   2,
		Title:     "Wheat flour fortification",
		Commodity: checklist.CommodityWheatFlour,
		Status:    checklist.TemplatePublished,
		Sections: []checklist.ChecklistSection{
			{
				ID:     "dosing",
				Title:  "Dosing",
				Weight: 1,
				Items: []checklist.ChecklistItem{
					{
						ID:               "dosifier-calibrated",
						SectionID:        "dosing",
						Text:             "Dosifier calibrated within the last 30 days",
						ResponseType:     checklist.ResponseYesNo,
						Criticality:      checklist.CriticalityCritical,
						Weight:           10,
						RequiredEvidence: []checklist.EvidenceKind{checklist.EvidencePhoto},
					},
					{
						ID:           "premix-logged",
						SectionID:    "dosing",
						Text:         "Premix usage logged per batch",
						ResponseType: checklist.ResponseYesNo,
						Criticality:  checklist.CriticalityMajor,
						Weight:       5,
					},
				},
			},
		},
		CreatedAt:   now,
		PublishedAt: &now,
	}
}

func newSessionRequest() *models.AuditSession {
	return &models.AuditSession{
		TemplateID:  "tpl-1",
		MillID:      "mill-7",
		Type:        models.TypeOfficialInspection,
		InspectorID: "inspector-1",
	}
}

func (f *fixture) seedTemplate(t *testing.T, template *checklist.ChecklistTemplate) {
	t.Helper()
	require.NoError(t, f.templates.Save(context.Background(), template))
}

func (f *fixture) createSession(t *testing.T) *models.AuditSession {
	t.Helper()
	created, err := f.svc.Create(context.Background(), newSessionRequest())
	require.NoError(t, err)
	return created
}

// walk drives the session to the given status through the real machine,
// answering every item compliantly along the way.
func (f *fixture) walk(t *testing.T, id string, target models.AuditStatus) *models.AuditSession {
	t.Helper()
	ctx := context.Background()
	actor := lifecycle.Actor{ID: "inspector-1", Role: "inspector"}

	session, err := f.svc.Transition(ctx, id, models.StatusInProgress, actor)
	require.NoError(t, err)
	if target == models.StatusInProgress {
		return session
	}

	for _, itemID := range []string{"dosifier-calibrated", "premix-logged"} {
		weight := 10.0
		if itemID == "premix-logged" {
			weight = 5.0
		}
		_, err = f.svc.SubmitResponse(ctx, id, &models.AuditResponse{
			ItemID: itemID,
			Value:  true,
			Score:  weight,
		})
		require.NoError(t, err)
	}

	for _, step := range []models.AuditStatus{models.StatusSubmitted, models.StatusReviewing, target} {
		session, err = f.svc.Transition(ctx, id, step, actor)
		require.NoError(t, err)
		if session.Status == target {
			return session
		}
	}
	return session
}

func TestCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("opens a pending session against a published template", func(t *testing.T) {
		f := newFixture(t)
		f.seedTemplate(t, publishedTemplate())

		created, err := f.svc.Create(ctx, newSessionRequest())
		require.NoError(t, err)

		assert.NotEmpty(t, created.ID)
		assert.Equal(t, models.StatusPending, created.Status)
		assert.NotNil(t, created.Responses)
		assert.Equal(t, testClock, created.StartDate)

		events := f.sink.All()
		require.Len(t, events, 1)
		assert.Equal(t, audit.ActionSessionCreated, events[0].Action)
		assert.Equal(t, created.ID, events[0].SessionID)
	})

	t.Run("refuses a draft template", func(t *testing.T) {
		f := newFixture(t)
		template := publishedTemplate()
		template.Status = checklist.TemplateDraft
		f.seedTemplate(t, template)

		_, err := f.svc.Create(ctx, newSessionRequest())
		require.Error(t, err)
		assert.Equal(t, dErrors.CodeInvalidState, dErrors.GetCode(err))
	})

	t.Run("refuses an archived template", func(t *testing.T) {
		f := newFixture(t)
		template := publishedTemplate()
		template.Status = checklist.TemplateArchived
		f.seedTemplate(t, template)

		_, err := f.svc.Create(ctx, newSessionRequest())
		require.Error(t, err)
		assert.Equal(t, dErrors.CodeInvalidState, dErrors.GetCode(err))
	})

	t.Run("unknown template", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Create(ctx, newSessionRequest())
		require.Error(t, err)
		assert.Equal(t, dErrors.CodeNotFound, dErrors.GetCode(err))
	})

	t.Run("session validation applies", func(t *testing.T) {
		f := newFixture(t)
		f.seedTemplate(t, publishedTemplate())
		request := newSessionRequest()
		request.OperatorID = "operator-9"

		_, err := f.svc.Create(ctx, request)
		require.Error(t, err)
		assert.Equal(t, dErrors.CodeValidation, dErrors.GetCode(err))
	})
}

func TestSubmitResponse(t *testing.T) {
	ctx := context.Background()

	t.Run("records an answer while in progress", func(t *testing.T) {
		f := newFixture(t)
		f.seedTemplate(t, publishedTemplate())
		created := f.createSession(t)
		f.walk(t, created.ID, models.StatusInProgress)

		updated, err := f.svc.SubmitResponse(ctx, created.ID, &models.AuditResponse{
			ItemID: "premix-logged",
			Value:  true,
			Score:  4,
		})
		require.NoError(t, err)

		resp := updated.Responses["premix-logged"]
		require.NotNil(t, resp)
		assert.Equal(t, 4.0, resp.Score)
		assert.Equal(t, models.FlagGreen, resp.FlagLevel)
		assert.Equal(t, testClock, resp.AnsweredAt)
	})

	t.Run("clamps the score to the item weight", func(t *testing.T) {
		f := newFixture(t)
		f.seedTemplate(t, publishedTemplate())
		created := f.createSession(t)
		f.walk(t, created.ID, models.StatusInProgress)

		updated, err := f.svc.SubmitResponse(ctx, created.ID, &models.AuditResponse{
			ItemID: "premix-logged",
			Value:  true,
			Score:  50,
		})
		require.NoError(t, err)
		assert.Equal(t, 5.0, updated.Responses["premix-logged"].Score)
	})

	t.Run("derives red flag for a critical non-compliance", func(t *testing.T) {
		f := newFixture(t)
		f.seedTemplate(t, publishedTemplate())
		created := f.createSession(t)
		f.walk(t, created.ID, models.StatusInProgress)

		updated, err := f.svc.SubmitResponse(ctx, created.ID, &models.AuditResponse{
			ItemID:         "dosifier-calibrated",
			Value:          false,
			IsNonCompliant: true,
		})
		require.NoError(t, err)
		assert.Equal(t, models.FlagRed, updated.Responses["dosifier-calibrated"].FlagLevel)
	})

	t.Run("derives amber flag for a major non-compliance", func(t *testing.T) {
		f := newFixture(t)
		f.seedTemplate(t, publishedTemplate())
		created := f.createSession(t)
		f.walk(t, created.ID, models.StatusInProgress)

		updated, err := f.svc.SubmitResponse(ctx, created.ID, &models.AuditResponse{
			ItemID:         "premix-logged",
			Value:          false,
			IsNonCompliant: true,
		})
		require.NoError(t, err)
		assert.Equal(t, models.FlagAmber, updated.Responses["premix-logged"].FlagLevel)
	})

	t.Run("caller-provided flag survives", func(t *testing.T) {
		f := newFixture(t)
		f.seedTemplate(t, publishedTemplate())
		created := f.createSession(t)
		f.walk(t, created.ID, models.StatusInProgress)

		updated, err := f.svc.SubmitResponse(ctx, created.ID, &models.AuditResponse{
			ItemID:         "premix-logged",
			Value:          false,
			IsNonCompliant: true,
			FlagLevel:      models.FlagRed,
		})
		require.NoError(t, err)
		assert.Equal(t, models.FlagRed, updated.Responses["premix-logged"].FlagLevel)
	})

	t.Run("rejects an unknown item", func(t *testing.T) {
		f := newFixture(t)
		f.seedTemplate(t, publishedTemplate())
		created := f.createSession(t)
		f.walk(t, created.ID, models.StatusInProgress)

		_, err := f.svc.SubmitResponse(ctx, created.ID, &models.AuditResponse{ItemID: "ghost"})
		require.Error(t, err)
		assert.Equal(t, dErrors.CodeInvalidInput, dErrors.GetCode(err))
	})

	t.Run("rejects answers outside in progress", func(t *testing.T) {
		f := newFixture(t)
		f.seedTemplate(t, publishedTemplate())
		created := f.createSession(t)

		_, err := f.svc.SubmitResponse(ctx, created.ID, &models.AuditResponse{ItemID: "premix-logged"})
		require.Error(t, err)
		assert.Equal(t, dErrors.CodeInvalidState, dErrors.GetCode(err))
	})
}

func TestAttachEvidence(t *testing.T) {
	ctx := context.Background()

	t.Run("attaches during in progress", func(t *testing.T) {
		f := newFixture(t)
		f.seedTemplate(t, publishedTemplate())
		created := f.createSession(t)
		f.walk(t, created.ID, models.StatusInProgress)

		updated, err := f.svc.AttachEvidence(ctx, created.ID, &models.EvidenceFile{
			ItemID:     "dosifier-calibrated",
			Kind:       "photo",
			URL:        "https://files.example/calibration.jpg",
			UploadedBy: "inspector-1",
		})
		require.NoError(t, err)

		require.Len(t, updated.Evidence, 1)
		assert.NotEmpty(t, updated.Evidence[0].ID)
		assert.False(t, updated.Evidence[0].Corrective)
	})

	t.Run("kind must match the item requirement", func(t *testing.T) {
		f := newFixture(t)
		f.seedTemplate(t, publishedTemplate())
		created := f.createSession(t)
		f.walk(t, created.ID, models.StatusInProgress)

		_, err := f.svc.AttachEvidence(ctx, created.ID, &models.EvidenceFile{
			ItemID: "dosifier-calibrated",
			Kind:   "document",
			URL:    "https://files.example/calibration.pdf",
		})
		require.Error(t, err)
		assert.Equal(t, dErrors.CodeInvalidInput, dErrors.GetCode(err))
	})

	t.Run("unknown kind is rejected", func(t *testing.T) {
		f := newFixture(t)
		f.seedTemplate(t, publishedTemplate())
		created := f.createSession(t)
		f.walk(t, created.ID, models.StatusInProgress)

		_, err := f.svc.AttachEvidence(ctx, created.ID, &models.EvidenceFile{
			Kind: "hologram",
			URL:  "https://files.example/x",
		})
		require.Error(t, err)
		assert.Equal(t, dErrors.CodeInvalidInput, dErrors.GetCode(err))
	})

	t.Run("evidence during CAPA is corrective", func(t *testing.T) {
		f := newFixture(t)
		f.seedTemplate(t, publishedTemplate())
		created := f.createSession(t)
		f.walk(t, created.ID, models.StatusInProgress)

		// Fail the critical item so review lands in CAPA.
		_, err := f.svc.SubmitResponse(ctx, created.ID, &models.AuditResponse{
			ItemID:         "dosifier-calibrated",
			Value:          false,
			IsNonCompliant: true,
		})
		require.NoError(t, err)
		_, err = f.svc.SubmitResponse(ctx, created.ID, &models.AuditResponse{
			ItemID: "premix-logged",
			Value:  true,
			Score:  5,
		})
		require.NoError(t, err)

		actor := lifecycle.Actor{ID: "reviewer-1", Role: "reviewer"}
		for _, step := range []models.AuditStatus{models.StatusSubmitted, models.StatusReviewing, models.StatusCAPARequired} {
			_, err = f.svc.Transition(ctx, created.ID, step, actor)
			require.NoError(t, err)
		}

		updated, err := f.svc.AttachEvidence(ctx, created.ID, &models.EvidenceFile{
			URL:        "https://files.example/corrected.jpg",
			UploadedBy: "operator-2",
		})
		require.NoError(t, err)
		require.Len(t, updated.Evidence, 1)
		assert.True(t, updated.Evidence[0].Corrective)
	})

	t.Run("rejected after approval", func(t *testing.T) {
		f := newFixture(t)
		f.seedTemplate(t, publishedTemplate())
		created := f.createSession(t)
		f.walk(t, created.ID, models.StatusApproved)

		_, err := f.svc.AttachEvidence(ctx, created.ID, &models.EvidenceFile{URL: "https://x/y.jpg"})
		require.Error(t, err)
		assert.Equal(t, dErrors.CodeInvalidState, dErrors.GetCode(err))
	})
}

func TestAnnotations(t *testing.T) {
	ctx := context.Background()

	t.Run("reviewer annotates a submitted session and resolves it", func(t *testing.T) {
		f := newFixture(t)
		f.seedTemplate(t, publishedTemplate())
		created := f.createSession(t)
		f.walk(t, created.ID, models.StatusSubmitted)

		updated, err := f.svc.AddAnnotation(ctx, created.ID, &models.Annotation{
			ItemID:           "premix-logged",
			AuthorID:         "reviewer-1",
			Text:             "Batch log for April is missing",
			RequiresResponse: true,
		})
		require.NoError(t, err)
		require.Len(t, updated.Annotations, 1)
		assert.False(t, updated.Annotations[0].Resolved)

		resolved, err := f.svc.ResolveAnnotation(ctx, created.ID, updated.Annotations[0].ID)
		require.NoError(t, err)
		assert.True(t, resolved.Annotations[0].Resolved)
	})

	t.Run("annotations are rejected while in progress", func(t *testing.T) {
		f := newFixture(t)
		f.seedTemplate(t, publishedTemplate())
		created := f.createSession(t)
		f.walk(t, created.ID, models.StatusInProgress)

		_, err := f.svc.AddAnnotation(ctx, created.ID, &models.Annotation{Text: "too early"})
		require.Error(t, err)
		assert.Equal(t, dErrors.CodeInvalidState, dErrors.GetCode(err))
	})

	t.Run("resolving an unknown annotation", func(t *testing.T) {
		f := newFixture(t)
		f.seedTemplate(t, publishedTemplate())
		created := f.createSession(t)
		f.walk(t, created.ID, models.StatusSubmitted)

		_, err := f.svc.ResolveAnnotation(ctx, created.ID, "ghost")
		require.Error(t, err)
		assert.Equal(t, dErrors.CodeNotFound, dErrors.GetCode(err))
	})
}

func TestTransition(t *testing.T) {
	ctx := context.Background()

	t.Run("full approval walk stores the scored result", func(t *testing.T) {
		f := newFixture(t)
		f.seedTemplate(t, publishedTemplate())
		created := f.createSession(t)

		approved := f.walk(t, created.ID, models.StatusApproved)

		assert.Equal(t, models.StatusApproved, approved.Status)
		require.NotNil(t, approved.Result)
		assert.Equal(t, 100.0, approved.Result.OverallPercent)
		assert.NotEmpty(t, approved.Result.IntegrityHash)
		require.NotNil(t, approved.CompletedDate)

		// Last transition event carries the scoring snapshot.
		events := f.sink.All()
		last := events[len(events)-1]
		assert.Equal(t, audit.ActionTransition, last.Action)
		assert.Equal(t, approved.Result.Grade, last.Grade)
		assert.Equal(t, approved.Result.IntegrityHash, last.IntegrityHash)
	})

	t.Run("illegal edge is denied and audited", func(t *testing.T) {
		f := newFixture(t)
		f.seedTemplate(t, publishedTemplate())
		created := f.createSession(t)

		_, err := f.svc.Transition(ctx, created.ID, models.StatusApproved, lifecycle.Actor{ID: "x"})
		require.Error(t, err)
		assert.Equal(t, dErrors.CodeInvalidState, dErrors.GetCode(err))

		events := f.sink.All()
		last := events[len(events)-1]
		assert.Equal(t, audit.ActionTransitionDenied, last.Action)
		assert.Equal(t, string(models.StatusPending), last.FromStatus)
		assert.Equal(t, string(models.StatusApproved), last.ToStatus)

		// Session untouched.
		stored, err := f.svc.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, stored.Status)
	})

	t.Run("submission rescores from live responses", func(t *testing.T) {
		f := newFixture(t)
		f.seedTemplate(t, publishedTemplate())
		created := f.createSession(t)
		f.walk(t, created.ID, models.StatusSubmitted)

		stored, err := f.svc.Get(ctx, created.ID)
		require.NoError(t, err)
		require.NotNil(t, stored.Result)
		assert.Equal(t, 15.0, stored.Result.TotalScore)
		assert.Equal(t, 15.0, stored.Result.TotalMax)
	})

	t.Run("invalid target status", func(t *testing.T) {
		f := newFixture(t)
		f.seedTemplate(t, publishedTemplate())
		created := f.createSession(t)

		_, err := f.svc.Transition(ctx, created.ID, models.AuditStatus("sideways"), lifecycle.Actor{})
		require.Error(t, err)
		assert.Equal(t, dErrors.CodeInvalidInput, dErrors.GetCode(err))
	})
}

func TestResult(t *testing.T) {
	ctx := context.Background()

	t.Run("recompute matches the stored stamp", func(t *testing.T) {
		f := newFixture(t)
		f.seedTemplate(t, publishedTemplate())
		created := f.createSession(t)
		f.walk(t, created.ID, models.StatusApproved)

		result, warning, err := f.svc.Result(ctx, created.ID)
		require.NoError(t, err)
		assert.Nil(t, warning)
		assert.Equal(t, 100.0, result.OverallPercent)
	})

	t.Run("tampered stamp produces a warning", func(t *testing.T) {
		f := newFixture(t)
		f.seedTemplate(t, publishedTemplate())
		created := f.createSession(t)
		approved := f.walk(t, created.ID, models.StatusApproved)

		tampered := approved.Clone()
		tampered.Result.IntegrityHash = "v1-0000000000000000"
		require.NoError(t, f.sessions.Save(ctx, tampered))

		_, warning, err := f.svc.Result(ctx, created.ID)
		require.NoError(t, err)
		require.NotNil(t, warning)
		assert.Equal(t, "v1-0000000000000000", warning.Stored)
		assert.False(t, warning.Stale)
	})
}

func TestVerify(t *testing.T) {
	ctx := context.Background()

	t.Run("approved session verifies", func(t *testing.T) {
		f := newFixture(t)
		f.seedTemplate(t, publishedTemplate())
		created := f.createSession(t)
		f.walk(t, created.ID, models.StatusApproved)

		v, err := f.svc.Verify(ctx, created.ID)
		require.NoError(t, err)

		assert.True(t, v.Verified)
		assert.Equal(t, "mill-7", v.MillID)
		assert.Equal(t, 2, v.TemplateVersion)
		assert.Equal(t, models.ResultCertified, v.OverallResult)
		assert.NotNil(t, v.CompletedDate)
	})

	t.Run("anything short of approved does not verify", func(t *testing.T) {
		f := newFixture(t)
		f.seedTemplate(t, publishedTemplate())
		created := f.createSession(t)
		f.walk(t, created.ID, models.StatusSubmitted)

		v, err := f.svc.Verify(ctx, created.ID)
		require.NoError(t, err)
		assert.False(t, v.Verified)
		assert.Equal(t, models.StatusSubmitted, v.Status)
	})
}

func TestRestamp(t *testing.T) {
	ctx := context.Background()

	t.Run("rewrites only stale stamps", func(t *testing.T) {
		f := newFixture(t)
		f.seedTemplate(t, publishedTemplate())

		fresh := f.createSession(t)
		f.walk(t, fresh.ID, models.StatusApproved)

		staleSession, err := f.svc.Create(ctx, newSessionRequest())
		require.NoError(t, err)
		approved := f.walk(t, staleSession.ID, models.StatusApproved)

		legacy := approved.Clone()
		legacy.Result.IntegrityHash = "legacy-deadbeef"
		require.NoError(t, f.sessions.Save(ctx, legacy))

		n, err := f.svc.Restamp(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		restamped, err := f.svc.Get(ctx, staleSession.ID)
		require.NoError(t, err)
		assert.NotEqual(t, "legacy-deadbeef", restamped.Result.IntegrityHash)
		assert.Contains(t, restamped.Result.IntegrityHash, "v1-")
	})

	t.Run("no approved sessions is a no-op", func(t *testing.T) {
		f := newFixture(t)
		n, err := f.svc.Restamp(ctx, 0)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}
