package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/edusight/edusight-api/internal/models"
)

// DashboardService composes the scope-filtered overview metrics.
type DashboardService struct {
	snapshots snapshotProvider
	registry  scopeResolver
	cache     *CacheService
	logger    *zap.Logger
	now       func() time.Time
	cacheTTL  time.Duration
}

// NewDashboardService constructs a DashboardService. The cache may be nil.
func NewDashboardService(snapshots snapshotProvider, registry scopeResolver, cache *CacheService, logger *zap.Logger, cacheTTL time.Duration) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &DashboardService{
		snapshots: snapshots,
		registry:  registry,
		cache:     cache,
		logger:    logger,
		now:       time.Now,
		cacheTTL:  cacheTTL,
	}
}

// Snapshot returns dashboard metrics for the user's scope and reports
// whether the payload came from cache.
func (s *DashboardService) Snapshot(ctx context.Context, username string) (*models.DashboardMetrics, bool, error) {
	cacheKey := fmt.Sprintf("dash:%s", username)
	if s.cache != nil {
		var cached models.DashboardMetrics
		hit, err := s.cache.Get(ctx, cacheKey, &cached)
		if err == nil && hit {
			return &cached, true, nil
		}
	}

	metrics := s.compose(username)

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, metrics, s.cacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.String("key", cacheKey), zap.Error(err))
		}
	}
	return metrics, false, nil
}

func (s *DashboardService) compose(username string) *models.DashboardMetrics {
	snapshot := s.snapshots.Current()

	activity := []models.ActivityRecord{}
	schedule := []models.QuizScheduleRecord{}
	if scope, ok := s.registry.ResolveScope(username); ok {
		activity = scopeFilterActivity(snapshot.Activity, scope)
		schedule = scopeFilterSchedule(snapshot.QuizSchedule, scope)
	}

	if len(activity) == 0 {
		return &models.DashboardMetrics{
			GradeDistribution:   map[string]int{},
			SubjectDistribution: map[string]int{},
			Message:             noDataMessage,
		}
	}

	students := make(map[string]struct{})
	pending := 0
	scoreSum, scoreCount := 0, 0
	recent := 0
	recentCutoff := dateOnly(s.now().AddDate(0, 0, -7))
	grades := make(map[string]int)
	subjects := make(map[string]int)

	for _, row := range activity {
		students[row.StudentName] = struct{}{}
		if row.HomeworkSubmitted == models.HomeworkSubmittedNo {
			pending++
		}
		if row.QuizScore != nil {
			scoreSum += *row.QuizScore
			scoreCount++
		}
		if row.SubmissionDate != nil && !row.SubmissionDate.Before(recentCutoff) {
			recent++
		}
		grades[row.Grade]++
		subjects[row.Subject]++
	}

	total := len(activity)
	submissionRate := 0.0
	if total > 0 {
		submissionRate = float64(total-pending) / float64(total) * 100
	}
	avgScore := 0.0
	if scoreCount > 0 {
		avgScore = float64(scoreSum) / float64(scoreCount)
	}

	return &models.DashboardMetrics{
		TotalStudents:       len(students),
		TotalAssignments:    total,
		PendingSubmissions:  pending,
		SubmissionRate:      round1(submissionRate),
		UpcomingQuizzes:     len(schedule),
		AvgQuizScore:        round1(avgScore),
		RecentSubmissions:   recent,
		GradeDistribution:   grades,
		SubjectDistribution: subjects,
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
