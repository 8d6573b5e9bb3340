package repository

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edusight/edusight-api/internal/models"
)

const activityCSV = `student_id,student_name,grade,class_section,region,subject,homework_assignment,homework_submitted,submission_date,quiz_topic,quiz_score,quiz_date,attendance_percentage,last_updated
1001,Aarav Sharma,Grade 8,A,North,Mathematics,Math Chapter 5 Exercises,Yes,2025-06-14,Algebra Basics,85,2025-06-12,92,2025-06-18 10:00:00
1002,Diya Gupta,Grade 9,B,South,Science,Science Lab Report,No,Not Submitted,Cell Biology,Not Taken,2025-06-15,88,2025-06-18 10:00:00
1003,Kabir Shah,Grade 6,C,East,English,English Essay Writing,Yes,2025-06-10,Grammar Rules,abc,not-a-date,75,2025-06-18 10:00:00
`

const scheduleCSV = `quiz_id,grade,class_section,subject,topic,scheduled_date,duration_minutes,total_marks,created_date
5001,Grade 8,A,Mathematics,Geometry Theorems,2025-06-20,45,25,2025-06-18
5002,Grade 9,B,Science,Periodic Table,2025-06-30,60,50,2025-06-18
`

func writeTempCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCSVLoaderParsesSentinels(t *testing.T) {
	loader := NewCSVSnapshotLoader(
		writeTempCSV(t, "students.csv", activityCSV),
		writeTempCSV(t, "quizzes.csv", scheduleCSV),
		nil,
	)

	snap, err := loader.Load()
	require.NoError(t, err)
	require.Len(t, snap.Activity, 3)
	require.Len(t, snap.QuizSchedule, 2)

	first := snap.Activity[0]
	require.NotNil(t, first.QuizScore)
	assert.Equal(t, 85, *first.QuizScore)
	require.NotNil(t, first.SubmissionDate)
	assert.Equal(t, time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC), *first.SubmissionDate)
	assert.Equal(t, 92, first.AttendancePct)

	// "Not Taken" and "Not Submitted" parse to nil while the raw strings
	// stay available for display.
	second := snap.Activity[1]
	assert.Nil(t, second.QuizScore)
	assert.Equal(t, models.ScoreNotTaken, second.QuizScoreRaw)
	assert.Nil(t, second.SubmissionDate)
	assert.Equal(t, models.SubmissionMissing, second.SubmissionDateRaw)

	// Unparseable values degrade to nil the same way.
	third := snap.Activity[2]
	assert.Nil(t, third.QuizScore)
	assert.Nil(t, third.QuizDate)

	quiz := snap.QuizSchedule[0]
	assert.Equal(t, "5001", quiz.QuizID)
	require.NotNil(t, quiz.ScheduledDate)
	assert.Equal(t, 45, quiz.DurationMinutes)
	assert.Equal(t, 25, quiz.TotalMarks)
}

func TestCSVLoaderMissingFilesYieldEmptySnapshot(t *testing.T) {
	loader := NewCSVSnapshotLoader(
		filepath.Join(t.TempDir(), "absent.csv"),
		filepath.Join(t.TempDir(), "absent.csv"),
		nil,
	)

	snap, err := loader.Load()
	require.NoError(t, err)
	assert.Empty(t, snap.Activity)
	assert.Empty(t, snap.QuizSchedule)
}

type staticLoader struct {
	snap *models.Snapshot
	err  error
}

func (l staticLoader) Load() (*models.Snapshot, error) { return l.snap, l.err }

func TestSnapshotRepositoryCurrentNeverNil(t *testing.T) {
	repo := NewSnapshotRepository(staticLoader{snap: &models.Snapshot{}}, nil, nil)
	require.NotNil(t, repo.Current())
	assert.Empty(t, repo.Current().Activity)
}

func TestSnapshotRepositoryReloadSwapsAtomically(t *testing.T) {
	loader := &switchableLoader{}
	repo := NewSnapshotRepository(loader, nil, nil)

	loader.snap = &models.Snapshot{Activity: []models.ActivityRecord{{StudentID: "1001"}}}
	snap, err := repo.Reload()
	require.NoError(t, err)
	assert.Len(t, snap.Activity, 1)
	assert.False(t, snap.LoadedAt.IsZero())

	held := repo.Current()

	loader.snap = &models.Snapshot{Activity: []models.ActivityRecord{{StudentID: "1001"}, {StudentID: "1002"}}}
	_, err = repo.Reload()
	require.NoError(t, err)

	// The previously obtained snapshot is untouched by the reload.
	assert.Len(t, held.Activity, 1)
	assert.Len(t, repo.Current().Activity, 2)
}

func TestSnapshotRepositoryReloadFailureKeepsCurrent(t *testing.T) {
	loader := &switchableLoader{snap: &models.Snapshot{Activity: []models.ActivityRecord{{StudentID: "1001"}}}}
	repo := NewSnapshotRepository(loader, nil, nil)
	_, err := repo.Reload()
	require.NoError(t, err)

	loader.err = errors.New("source unavailable")
	_, err = repo.Reload()
	require.Error(t, err)
	assert.Len(t, repo.Current().Activity, 1)
}

type switchableLoader struct {
	snap *models.Snapshot
	err  error
}

func (l *switchableLoader) Load() (*models.Snapshot, error) {
	if l.err != nil {
		return nil, l.err
	}
	return l.snap, nil
}
