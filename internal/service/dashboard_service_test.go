package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/edusight/edusight-api/pkg/errors"
)

type memoryCacheRepo struct {
	entries map[string][]byte
	gets    int
	sets    int
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{entries: map[string][]byte{}}
}

func (m *memoryCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	m.gets++
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	m.sets++
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(_ context.Context, _ string) error {
	m.entries = map[string][]byte{}
	return nil
}

func newTestDashboardService(t *testing.T, cacheRepo CacheRepository) *DashboardService {
	t.Helper()
	var cache *CacheService
	if cacheRepo != nil {
		cache = NewCacheService(cacheRepo, nil, time.Minute, nil, true)
	}
	svc := NewDashboardService(stubSnapshots{testSnapshot()}, newTestRegistry(t), cache, nil, time.Minute)
	svc.now = func() time.Time { return queryTestNow }
	return svc
}

func TestDashboardMetricsForSuperAdmin(t *testing.T) {
	svc := newTestDashboardService(t, nil)

	metrics, cached, err := svc.Snapshot(context.Background(), "super_admin")
	require.NoError(t, err)
	assert.False(t, cached)

	assert.Equal(t, 5, metrics.TotalStudents)
	assert.Equal(t, 5, metrics.TotalAssignments)
	assert.Equal(t, 2, metrics.PendingSubmissions)
	assert.Equal(t, 60.0, metrics.SubmissionRate)
	assert.Equal(t, 3, metrics.UpcomingQuizzes)
	// Scores 85, 55, 40, 72 over the four rows with a numeric score.
	assert.Equal(t, 63.0, metrics.AvgQuizScore)
	// Submissions on or after 2025-06-11: Diya and Rohan.
	assert.Equal(t, 2, metrics.RecentSubmissions)
	assert.Equal(t, map[string]int{"Grade 8": 2, "Grade 9": 2, "Grade 6": 1}, metrics.GradeDistribution)
}

func TestDashboardMetricsScoped(t *testing.T) {
	svc := newTestDashboardService(t, nil)

	metrics, _, err := svc.Snapshot(context.Background(), "grade89_admin")
	require.NoError(t, err)
	assert.Equal(t, 4, metrics.TotalAssignments)
	assert.Equal(t, 2, metrics.UpcomingQuizzes)
	assert.NotContains(t, metrics.GradeDistribution, "Grade 6")
}

func TestDashboardMetricsUnknownUser(t *testing.T) {
	svc := newTestDashboardService(t, nil)

	metrics, _, err := svc.Snapshot(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Equal(t, 0, metrics.TotalStudents)
	assert.Equal(t, 0.0, metrics.SubmissionRate)
	assert.Equal(t, 0.0, metrics.AvgQuizScore)
	assert.Equal(t, "No data available for your access level.", metrics.Message)
}

func TestDashboardUsesCacheOnSecondCall(t *testing.T) {
	repo := newMemoryCacheRepo()
	svc := newTestDashboardService(t, repo)

	first, cached, err := svc.Snapshot(context.Background(), "super_admin")
	require.NoError(t, err)
	assert.False(t, cached)
	require.Equal(t, 1, repo.sets)

	second, cached, err := svc.Snapshot(context.Background(), "super_admin")
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, first.TotalStudents, second.TotalStudents)
	assert.Equal(t, 1, repo.sets)
}
