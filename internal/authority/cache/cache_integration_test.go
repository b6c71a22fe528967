//go:build integration

package cache_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"rostersync/internal/authority"
	"rostersync/internal/authority/cache"
	"rostersync/pkg/testutil/containers"
)

// countingSource counts upstream fetches so the test can prove the cache
// absorbed the repeat.
type countingSource struct {
	mu      sync.Mutex
	fetches int
	roster  []authority.Member
}

func (s *countingSource) FetchActiveRoster(context.Context, int64) ([]authority.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	return s.roster, nil
}

func (s *countingSource) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

func TestRosterCacheReadThrough(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	source := &countingSource{roster: []authority.Member{
		{ID: 10, AcademyID: 2, NameEnc: "enc::abc", Status: authority.StatusActive},
	}}
	cached := cache.New(source, rc.Client, time.Minute, logger)

	first, err := cached.FetchActiveRoster(ctx, 2)
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.Equal(t, 1, source.count())

	second, err := cached.FetchActiveRoster(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, source.count(), "repeat fetch served from cache")

	cached.Invalidate(ctx, 2)

	_, err = cached.FetchActiveRoster(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, 2, source.count(), "invalidation forces a fresh fetch")
}
