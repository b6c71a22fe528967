//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"rostersync/internal/member/models"
	"rostersync/internal/member/store"
	"rostersync/pkg/platform/sentinel"
	"rostersync/pkg/testutil/containers"
)

func newMember(externalID int64, scopeID int64) *models.Member {
	ext := externalID
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.Member{
		ID:         uuid.New(),
		ExternalID: &ext,
		Name:       "Kim Minjun",
		Phone:      "010-1234-5678",
		Status:     models.StatusActive,
		ScopeID:    scopeID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestPostgresMemberStore(t *testing.T) {
	pg := containers.NewMirrorPostgres(t)
	s := store.NewPostgres(pg.DB)
	ctx := context.Background()

	t.Run("create and find", func(t *testing.T) {
		m := newMember(10, 2)
		require.NoError(t, s.Create(ctx, m))

		got, err := s.FindByExternalID(ctx, 10)
		require.NoError(t, err)
		require.Equal(t, m.ID, got.ID)
		require.Equal(t, "Kim Minjun", got.Name)
	})

	t.Run("duplicate external id conflicts", func(t *testing.T) {
		dup := newMember(10, 2)
		err := s.Create(ctx, dup)
		require.ErrorIs(t, err, sentinel.ErrConflict)
	})

	t.Run("local-only rows coexist", func(t *testing.T) {
		local := newMember(0, 2)
		local.ExternalID = nil
		require.NoError(t, s.Create(ctx, local))

		second := newMember(0, 2)
		second.ExternalID = nil
		require.NoError(t, s.Create(ctx, second), "NULL external ids never collide")
	})

	t.Run("deactivate is soft", func(t *testing.T) {
		m := newMember(11, 2)
		require.NoError(t, s.Create(ctx, m))

		at := time.Now().UTC().Truncate(time.Microsecond)
		require.NoError(t, s.Deactivate(ctx, m.ID, at))

		got, err := s.FindByID(ctx, m.ID)
		require.NoError(t, err)
		require.Equal(t, models.StatusInactive, got.Status)
		require.NotNil(t, got.DeactivatedAt)
	})

	t.Run("list active external scoped", func(t *testing.T) {
		other := newMember(20, 3)
		require.NoError(t, s.Create(ctx, other))

		active, err := s.ListActiveExternal(ctx, 2)
		require.NoError(t, err)
		for _, m := range active {
			require.Equal(t, int64(2), m.ScopeID)
			require.NotNil(t, m.ExternalID)
			require.Equal(t, models.StatusActive, m.Status)
		}
	})

	t.Run("find missing returns not found", func(t *testing.T) {
		_, err := s.FindByExternalID(ctx, 404404)
		require.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}
