package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fortaudit/internal/checklist/models"
	"fortaudit/internal/checklist/store"
	dErrors "fortaudit/pkg/domain-errors"
	"fortaudit/pkg/platform/audit"
	auditmemory "fortaudit/pkg/platform/audit/store/memory"
)

func newTestService(t *testing.T) (*Service, *auditmemory.Store) {
	t.Helper()
	sink := auditmemory.New()
	svc, err := New(store.NewInMemory(),
		WithAuditPublisher(audit.NewPublisher(sink)),
		WithClock(func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }),
	)
	require.NoError(t, err)
	return svc, sink
}

func validTemplate() *models.ChecklistTemplate {
	threshold := 60.0
	return &models.ChecklistTemplate{
		Title:                "Maize mill fortification checklist",
		Commodity:            models.CommodityMaizeFlour,
		FortificationMethods: []models.FortificationMethod{models.MethodDosifier},
		Sections: []models.ChecklistSection{
			{
				ID:                   "premix",
				Title:                "Premix handling",
				Weight:               1,
				MinimumPassThreshold: &threshold,
				Items: []models.ChecklistItem{
					{
						ID:           "premix-storage",
						SectionID:    "premix",
						Text:         "Premix stored in a dry, sealed container",
						ResponseType: models.ResponseYesNo,
						Criticality:  models.CriticalityCritical,
						Weight:       10,
					},
				},
			},
		},
	}
}

func TestNew(t *testing.T) {
	t.Run("requires a store", func(t *testing.T) {
		_, err := New(nil)
		require.Error(t, err)
	})
}

func TestCreateDraft(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	t.Run("assigns id and draft status", func(t *testing.T) {
		created, err := svc.CreateDraft(ctx, validTemplate())
		require.NoError(t, err)

		assert.NotEmpty(t, created.ID)
		assert.Equal(t, 1, created.Version)
		assert.Equal(t, models.TemplateDraft, created.Status)
		assert.Nil(t, created.PublishedAt)
		assert.False(t, created.CreatedAt.IsZero())
	})

	t.Run("rejects an unknown commodity", func(t *testing.T) {
		template := validTemplate()
		template.Commodity = models.Commodity("plutonium")

		_, err := svc.CreateDraft(ctx, template)
		require.Error(t, err)
		assert.Equal(t, dErrors.CodeInvalidInput, dErrors.GetCode(err))
	})

	t.Run("structural problems are tolerated in drafts", func(t *testing.T) {
		template := validTemplate()
		template.Sections[0].Items[0].Weight = -5

		_, err := svc.CreateDraft(ctx, template)
		require.NoError(t, err)
	})
}

func TestPublish(t *testing.T) {
	ctx := context.Background()

	t.Run("freezes a valid draft", func(t *testing.T) {
		svc, sink := newTestService(t)
		created, err := svc.CreateDraft(ctx, validTemplate())
		require.NoError(t, err)

		published, err := svc.Publish(ctx, created.ID)
		require.NoError(t, err)

		assert.Equal(t, models.TemplatePublished, published.Status)
		require.NotNil(t, published.PublishedAt)

		events := sink.All()
		require.Len(t, events, 1)
		assert.Equal(t, audit.ActionTemplatePublished, events[0].Action)
		assert.Equal(t, created.ID, events[0].TemplateID)
	})

	t.Run("validation failures surface at publish time", func(t *testing.T) {
		svc, sink := newTestService(t)
		template := validTemplate()
		template.Sections[0].Items[0].Weight = -5
		created, err := svc.CreateDraft(ctx, template)
		require.NoError(t, err)

		_, err = svc.Publish(ctx, created.ID)
		require.Error(t, err)
		assert.Equal(t, dErrors.CodeValidation, dErrors.GetCode(err))
		assert.Empty(t, sink.All())
	})

	t.Run("cannot publish twice", func(t *testing.T) {
		svc, _ := newTestService(t)
		created, err := svc.CreateDraft(ctx, validTemplate())
		require.NoError(t, err)
		_, err = svc.Publish(ctx, created.ID)
		require.NoError(t, err)

		_, err = svc.Publish(ctx, created.ID)
		require.Error(t, err)
		assert.Equal(t, dErrors.CodeInvalidState, dErrors.GetCode(err))
	})

	t.Run("unknown id", func(t *testing.T) {
		svc, _ := newTestService(t)
		_, err := svc.Publish(ctx, "missing")
		require.Error(t, err)
		assert.Equal(t, dErrors.CodeNotFound, dErrors.GetCode(err))
	})
}

func TestArchive(t *testing.T) {
	ctx := context.Background()

	t.Run("withdraws a published template", func(t *testing.T) {
		svc, sink := newTestService(t)
		created, err := svc.CreateDraft(ctx, validTemplate())
		require.NoError(t, err)
		_, err = svc.Publish(ctx, created.ID)
		require.NoError(t, err)

		archived, err := svc.Archive(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, models.TemplateArchived, archived.Status)

		events := sink.All()
		require.Len(t, events, 2)
		assert.Equal(t, audit.ActionTemplateArchived, events[1].Action)
	})

	t.Run("drafts cannot be archived", func(t *testing.T) {
		svc, _ := newTestService(t)
		created, err := svc.CreateDraft(ctx, validTemplate())
		require.NoError(t, err)

		_, err = svc.Archive(ctx, created.ID)
		require.Error(t, err)
		assert.Equal(t, dErrors.CodeInvalidState, dErrors.GetCode(err))
	})
}

func TestListPublished(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	draft, err := svc.CreateDraft(ctx, validTemplate())
	require.NoError(t, err)

	toPublish, err := svc.CreateDraft(ctx, validTemplate())
	require.NoError(t, err)
	_, err = svc.Publish(ctx, toPublish.ID)
	require.NoError(t, err)

	published, err := svc.ListPublished(ctx)
	require.NoError(t, err)
	require.Len(t, published, 1)
	assert.Equal(t, toPublish.ID, published[0].ID)
	assert.NotEqual(t, draft.ID, published[0].ID)
}
