package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edusight/edusight-api/internal/models"
)

var queryTestNow = time.Date(2025, 6, 18, 10, 0, 0, 0, time.UTC)

func intPtr(v int) *int { return &v }

func datePtr(year int, month time.Month, day int) *time.Time {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &t
}

func testSnapshot() *models.Snapshot {
	return &models.Snapshot{
		Activity: []models.ActivityRecord{
			{
				StudentID: "1001", StudentName: "Aarav Sharma", Grade: "Grade 8", ClassSection: "A",
				Region: "North", Subject: "Mathematics",
				HomeworkAssignment: "Math Chapter 5 Exercises", HomeworkSubmitted: "No",
				SubmissionDateRaw: models.SubmissionMissing,
				QuizTopic:         "Algebra Basics", QuizScoreRaw: "85", QuizScore: intPtr(85),
				QuizDateRaw: "2025-06-12", QuizDate: datePtr(2025, 6, 12), AttendancePct: 92,
			},
			{
				StudentID: "1002", StudentName: "Diya Gupta", Grade: "Grade 8", ClassSection: "B",
				Region: "South", Subject: "Science",
				HomeworkAssignment: "Science Lab Report", HomeworkSubmitted: "Yes",
				SubmissionDateRaw: "2025-06-14", SubmissionDate: datePtr(2025, 6, 14),
				QuizTopic: "Cell Biology", QuizScoreRaw: "55", QuizScore: intPtr(55),
				QuizDateRaw: "2025-06-10", QuizDate: datePtr(2025, 6, 10), AttendancePct: 88,
			},
			{
				StudentID: "1003", StudentName: "Kabir Shah", Grade: "Grade 9", ClassSection: "A",
				Region: "North", Subject: "Science",
				HomeworkAssignment: "Biology Diagrams", HomeworkSubmitted: "No",
				SubmissionDateRaw: models.SubmissionMissing,
				QuizTopic:         "Plant Biology", QuizScoreRaw: models.ScoreNotTaken,
				QuizDateRaw: "2025-06-15", QuizDate: datePtr(2025, 6, 15), AttendancePct: 75,
			},
			{
				StudentID: "1004", StudentName: "Maya Patel", Grade: "Grade 6", ClassSection: "C",
				Region: "East", Subject: "English",
				HomeworkAssignment: "English Essay Writing", HomeworkSubmitted: "Yes",
				SubmissionDateRaw: "2025-05-01", SubmissionDate: datePtr(2025, 5, 1),
				QuizTopic: "Grammar Rules", QuizScoreRaw: "40", QuizScore: intPtr(40),
				QuizDateRaw: "2025-05-02", QuizDate: datePtr(2025, 5, 2), AttendancePct: 95,
			},
			{
				StudentID: "1005", StudentName: "Rohan Mehta", Grade: "Grade 9", ClassSection: "B",
				Region: "East", Subject: "Mathematics",
				HomeworkAssignment: "Math Problem Solving", HomeworkSubmitted: "Yes",
				SubmissionDateRaw: "2025-06-17", SubmissionDate: datePtr(2025, 6, 17),
				QuizTopic: "Statistics", QuizScoreRaw: "72", QuizScore: intPtr(72),
				QuizDateRaw: "2025-06-17", QuizDate: datePtr(2025, 6, 17), AttendancePct: 90,
			},
		},
		QuizSchedule: []models.QuizScheduleRecord{
			{
				QuizID: "5001", Grade: "Grade 8", ClassSection: "A", Subject: "Mathematics",
				Topic: "Geometry Theorems", ScheduledDateRaw: "2025-06-20",
				ScheduledDate: datePtr(2025, 6, 20), DurationMinutes: 45, TotalMarks: 25,
			},
			{
				QuizID: "5002", Grade: "Grade 9", ClassSection: "B", Subject: "Science",
				Topic: "Periodic Table", ScheduledDateRaw: "2025-06-30",
				ScheduledDate: datePtr(2025, 6, 30), DurationMinutes: 60, TotalMarks: 50,
			},
			{
				QuizID: "5003", Grade: "Grade 6", ClassSection: "C", Subject: "English",
				Topic: "Sentence Formation", ScheduledDateRaw: "2025-06-21",
				ScheduledDate: datePtr(2025, 6, 21), DurationMinutes: 30, TotalMarks: 20,
			},
		},
		LoadedAt: queryTestNow,
	}
}

type stubSnapshots struct{ snap *models.Snapshot }

func (s stubSnapshots) Current() *models.Snapshot { return s.snap }

type stubClassifier struct{ intent models.QueryIntent }

func (s stubClassifier) Classify(string) models.QueryIntent    { return s.intent }
func (s stubClassifier) FollowUps(models.QueryIntent) []string { return nil }

type panicClassifier struct{}

func (panicClassifier) Classify(string) models.QueryIntent    { panic("rule table corrupted") }
func (panicClassifier) FollowUps(models.QueryIntent) []string { return nil }

func newTestQueryService(t *testing.T, classifier intentClassifier) *QueryService {
	t.Helper()
	if classifier == nil {
		real := NewClassifierService(nil, 512)
		real.now = func() time.Time { return queryTestNow }
		classifier = real
	}
	svc := NewQueryService(stubSnapshots{testSnapshot()}, newTestRegistry(t), classifier, nil, nil, 10)
	svc.now = func() time.Time { return queryTestNow }
	return svc
}

func TestExecuteHomeworkMissingScoped(t *testing.T) {
	svc := newTestQueryService(t, nil)

	result := svc.Execute("north_admin", "Which students have not submitted their homework?")
	require.Equal(t, models.StatusSuccess, result.Status)
	require.Len(t, result.Data, 2)
	assert.Equal(t, 2, result.TotalRecords)
	assert.Equal(t, "Aarav Sharma", result.Data[0][models.ColStudentName])
	assert.Equal(t, "Kabir Shah", result.Data[1][models.ColStudentName])
	assert.Contains(t, result.Summary, "Total records: 2")
	assert.Contains(t, result.Summary, "Grade breakdown")
	assert.Contains(t, result.Columns, models.ColHomeworkAssignment)
}

func TestExecuteTopPerformers(t *testing.T) {
	svc := newTestQueryService(t, nil)

	result := svc.Execute("super_admin", "Who are the top performing students?")
	require.Equal(t, models.StatusSuccess, result.Status)
	// The row without a numeric score is dropped before ranking.
	require.Len(t, result.Data, 4)
	assert.Equal(t, "85", result.Data[0][models.ColQuizScore])
	assert.Equal(t, "72", result.Data[1][models.ColQuizScore])
	assert.Equal(t, "55", result.Data[2][models.ColQuizScore])
	assert.Equal(t, "40", result.Data[3][models.ColQuizScore])
	assert.Contains(t, result.Summary, "Average score: 63.0, Highest score: 85")
}

func TestExecutePoorPerformers(t *testing.T) {
	svc := newTestQueryService(t, nil)

	result := svc.Execute("super_admin", "Show struggling students")
	require.Equal(t, models.StatusSuccess, result.Status)
	require.Len(t, result.Data, 2)
	assert.Equal(t, "40", result.Data[0][models.ColQuizScore])
	assert.Equal(t, "55", result.Data[1][models.ColQuizScore])
	assert.Contains(t, result.Summary, "Average score: 47.5, Lowest score: 40")
}

func TestExecuteStripsSensitiveColumns(t *testing.T) {
	svc := newTestQueryService(t, nil)

	// The grade admin may not view sensitive data.
	result := svc.Execute("grade89_admin", "Show quiz performance")
	require.Equal(t, models.StatusSuccess, result.Status)
	assert.NotContains(t, result.Columns, models.ColQuizScore)
	assert.NotContains(t, result.Columns, models.ColAttendance)
	for _, row := range result.Data {
		assert.NotContains(t, row, models.ColQuizScore)
		assert.NotContains(t, row, models.ColAttendance)
	}
}

func TestExecuteScoreHistogramSumsToScoredRows(t *testing.T) {
	svc := newTestQueryService(t, nil)

	result := svc.Execute("grade89_admin", "Show quiz performance")
	require.NotNil(t, result.Visualization)
	require.NotNil(t, result.Visualization.ScoreDistribution)

	sum := 0
	for _, v := range result.Visualization.ScoreDistribution.Values {
		sum += v
	}
	// Grades 8 and 9 contribute four rows, one of which has no score.
	assert.Equal(t, 3, sum)
}

func TestExecuteTimeWindow(t *testing.T) {
	svc := newTestQueryService(t, nil)

	result := svc.Execute("super_admin", "show last week performance data")
	require.Equal(t, models.StatusSuccess, result.Status)
	// Quiz dates within 2025-06-11..2025-06-18; rows outside and the nil
	// date case are excluded.
	assert.Equal(t, 3, result.TotalRecords)
	names := make([]string, 0, len(result.Data))
	for _, row := range result.Data {
		names = append(names, row[models.ColStudentName])
	}
	assert.Equal(t, []string{"Aarav Sharma", "Kabir Shah", "Rohan Mehta"}, names)
}

func newQueryServiceWithSnapshot(t *testing.T, snap *models.Snapshot) *QueryService {
	t.Helper()
	classifier := NewClassifierService(nil, 512)
	classifier.now = func() time.Time { return queryTestNow }
	svc := NewQueryService(stubSnapshots{snap}, newTestRegistry(t), classifier, nil, nil, 10)
	svc.now = func() time.Time { return queryTestNow }
	return svc
}

func TestExecuteTimeWindowExcludesUnparseableQuizDate(t *testing.T) {
	snap := testSnapshot()
	snap.Activity = append(snap.Activity, models.ActivityRecord{
		StudentID: "1006", StudentName: "Isha Verma", Grade: "Grade 8", ClassSection: "B",
		Region: "North", Subject: "Science",
		HomeworkAssignment: "Lab Notes", HomeworkSubmitted: "Yes",
		SubmissionDateRaw: "2025-06-14", SubmissionDate: datePtr(2025, 6, 14),
		QuizTopic: "Optics", QuizScoreRaw: "64", QuizScore: intPtr(64),
		QuizDateRaw: "15/06/2025", AttendancePct: 90,
	})
	svc := newQueryServiceWithSnapshot(t, snap)

	result := svc.Execute("super_admin", "show last week performance data")
	require.Equal(t, models.StatusSuccess, result.Status)
	// The quiz date is the windowed column for activity rows; an in-window
	// submission date does not rescue a row whose quiz date failed to parse.
	assert.Equal(t, 3, result.TotalRecords)
	for _, row := range result.Data {
		assert.NotEqual(t, "Isha Verma", row[models.ColStudentName])
	}
}

func TestExecuteGradeFilterWithinScope(t *testing.T) {
	svc := newTestQueryService(t, nil)

	// Grade 8 sits inside the admin's {Grade 8, Grade 9} allow-list; only
	// Grade 8 rows come back.
	result := svc.Execute("grade89_admin", "Show me Grade 8 performance data")
	require.Equal(t, models.StatusSuccess, result.Status)
	require.Len(t, result.Data, 2)
	for _, row := range result.Data {
		assert.Equal(t, "Grade 8", row[models.ColGrade])
	}
}

func TestExecuteUpcomingQuizzesScoped(t *testing.T) {
	svc := newTestQueryService(t, nil)

	result := svc.Execute("grade89_admin", "List all upcoming quizzes")
	require.Equal(t, models.StatusSuccess, result.Status)
	require.Len(t, result.Data, 2)
	assert.Equal(t, []string{
		models.ColSubject, models.ColTopic, models.ColScheduledDate,
		models.ColGrade, models.ColClassSection,
		models.ColDurationMinutes, models.ColTotalMarks,
	}, result.Columns)
	assert.Contains(t, result.Summary, "Quizzes in next 7 days: 1")
}

func TestExecuteUpcomingQuizzesIgnoresRegionFilter(t *testing.T) {
	svc := newTestQueryService(t, nil)

	// The schedule snapshot has no region column, so a region mention must
	// not wipe the results.
	result := svc.Execute("super_admin", "upcoming quizzes in North region")
	require.Equal(t, models.StatusSuccess, result.Status)
	assert.Equal(t, 3, result.TotalRecords)
}

func TestExecuteUpcomingQuizzesSummaryHasNoLowerBound(t *testing.T) {
	snap := testSnapshot()
	snap.QuizSchedule = append(snap.QuizSchedule, models.QuizScheduleRecord{
		QuizID: "5004", Grade: "Grade 8", ClassSection: "A", Subject: "Mathematics",
		Topic: "Fractions Review", ScheduledDateRaw: "2025-06-10",
		ScheduledDate: datePtr(2025, 6, 10), DurationMinutes: 40, TotalMarks: 20,
	})
	svc := newQueryServiceWithSnapshot(t, snap)

	result := svc.Execute("super_admin", "List all upcoming quizzes")
	require.Equal(t, models.StatusSuccess, result.Status)
	assert.Equal(t, 4, result.TotalRecords)
	// An already-past row still counts toward the seven-day figure.
	assert.Contains(t, result.Summary, "Quizzes in next 7 days: 3")
}

func TestExecuteUnknownUserSeesNothing(t *testing.T) {
	svc := newTestQueryService(t, nil)

	result := svc.Execute("ghost", "list students")
	require.Equal(t, models.StatusSuccess, result.Status)
	assert.Empty(t, result.Data)
	assert.Equal(t, "No data available for your access level.", result.Message)
}

func TestExecuteEmptyIntersection(t *testing.T) {
	svc := newTestQueryService(t, nil)

	// The subject admin's scope and the grade filter do not intersect.
	result := svc.Execute("mathsci_admin", "students in grade 6")
	require.Equal(t, models.StatusSuccess, result.Status)
	assert.Empty(t, result.Data)
	assert.Equal(t, "No records found matching your query.", result.Summary)
}

func TestExecuteLimitCapsDisplayRows(t *testing.T) {
	classifier := stubClassifier{intent: models.QueryIntent{
		Action:  models.ActionList,
		Entity:  models.EntityStudents,
		Filters: map[models.Dimension]string{},
		Limit:   2,
	}}
	svc := newTestQueryService(t, classifier)

	result := svc.Execute("super_admin", "list students")
	require.Equal(t, models.StatusSuccess, result.Status)
	assert.Len(t, result.Data, 2)
	assert.Equal(t, 5, result.TotalRecords)
}

func TestExecuteRecoversFromPanic(t *testing.T) {
	svc := newTestQueryService(t, panicClassifier{})

	result := svc.Execute("super_admin", "any query")
	require.Equal(t, models.StatusError, result.Status)
	assert.Contains(t, result.Error, "query execution failed")
	assert.Equal(t, "any query", result.Query)
	assert.False(t, result.Timestamp.IsZero())
}

func TestScopeFilterReturnsCopies(t *testing.T) {
	snap := testSnapshot()
	scope := models.AccessScope{Role: models.RoleSuperAdmin}

	rows := scopeFilterActivity(snap.Activity, scope)
	require.Len(t, rows, len(snap.Activity))
	rows[0].StudentName = "mutated"
	assert.Equal(t, "Aarav Sharma", snap.Activity[0].StudentName)
}

func TestScopeFilterCombinedDimensions(t *testing.T) {
	snap := testSnapshot()
	scope := models.AccessScope{
		Role:    models.RoleRegionAdmin,
		Regions: []string{"East"},
		Grades:  []string{"Grade 9"},
	}

	rows := scopeFilterActivity(snap.Activity, scope)
	require.Len(t, rows, 1)
	assert.Equal(t, "Rohan Mehta", rows[0].StudentName)
}
