package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/edusight/edusight-api/internal/models"
)

// SQLSnapshotLoader loads the activity and quiz schedule datasets from a
// relational source. Used when the deployment keeps the datasets in Postgres
// instead of flat files.
type SQLSnapshotLoader struct {
	db *sqlx.DB
}

// NewSQLSnapshotLoader constructs a loader over the given database handle.
func NewSQLSnapshotLoader(db *sqlx.DB) *SQLSnapshotLoader {
	return &SQLSnapshotLoader{db: db}
}

type activityRow struct {
	StudentID          string         `db:"student_id"`
	StudentName        string         `db:"student_name"`
	Grade              string         `db:"grade"`
	ClassSection       string         `db:"class_section"`
	Region             string         `db:"region"`
	Subject            string         `db:"subject"`
	HomeworkAssignment string         `db:"homework_assignment"`
	HomeworkSubmitted  string         `db:"homework_submitted"`
	SubmissionDate     sql.NullTime   `db:"submission_date"`
	QuizTopic          string         `db:"quiz_topic"`
	QuizScore          sql.NullInt64  `db:"quiz_score"`
	QuizDate           sql.NullTime   `db:"quiz_date"`
	AttendancePct      int            `db:"attendance_percentage"`
	LastUpdated        sql.NullString `db:"last_updated"`
}

type scheduleRow struct {
	QuizID          string         `db:"quiz_id"`
	Grade           string         `db:"grade"`
	ClassSection    string         `db:"class_section"`
	Subject         string         `db:"subject"`
	Topic           string         `db:"topic"`
	ScheduledDate   sql.NullTime   `db:"scheduled_date"`
	DurationMinutes int            `db:"duration_minutes"`
	TotalMarks      int            `db:"total_marks"`
	CreatedDate     sql.NullString `db:"created_date"`
}

// Load reads both datasets in full. Snapshots are small enough that a full
// scan per reload is acceptable.
func (l *SQLSnapshotLoader) Load() (*models.Snapshot, error) {
	ctx := context.Background()

	var activity []activityRow
	query := `SELECT student_id, student_name, grade, class_section, region, subject,
        homework_assignment, homework_submitted, submission_date, quiz_topic,
        quiz_score, quiz_date, attendance_percentage, last_updated
        FROM student_activity ORDER BY student_id`
	if err := l.db.SelectContext(ctx, &activity, query); err != nil {
		return nil, fmt.Errorf("load student activity: %w", err)
	}

	var schedule []scheduleRow
	query = `SELECT quiz_id, grade, class_section, subject, topic, scheduled_date,
        duration_minutes, total_marks, created_date
        FROM quiz_schedule ORDER BY scheduled_date, quiz_id`
	if err := l.db.SelectContext(ctx, &schedule, query); err != nil {
		return nil, fmt.Errorf("load quiz schedule: %w", err)
	}

	snap := &models.Snapshot{
		Activity:     make([]models.ActivityRecord, 0, len(activity)),
		QuizSchedule: make([]models.QuizScheduleRecord, 0, len(schedule)),
	}
	for _, row := range activity {
		snap.Activity = append(snap.Activity, row.toRecord())
	}
	for _, row := range schedule {
		snap.QuizSchedule = append(snap.QuizSchedule, row.toRecord())
	}
	return snap, nil
}

func (r activityRow) toRecord() models.ActivityRecord {
	rec := models.ActivityRecord{
		StudentID:          r.StudentID,
		StudentName:        r.StudentName,
		Grade:              r.Grade,
		ClassSection:       r.ClassSection,
		Region:             r.Region,
		Subject:            r.Subject,
		HomeworkAssignment: r.HomeworkAssignment,
		HomeworkSubmitted:  r.HomeworkSubmitted,
		SubmissionDateRaw:  models.SubmissionMissing,
		QuizTopic:          r.QuizTopic,
		QuizScoreRaw:       models.ScoreNotTaken,
		AttendancePct:      r.AttendancePct,
		LastUpdated:        r.LastUpdated.String,
	}
	if r.SubmissionDate.Valid {
		t := r.SubmissionDate.Time
		rec.SubmissionDate = &t
		rec.SubmissionDateRaw = t.Format(dateLayout)
	}
	if r.QuizDate.Valid {
		t := r.QuizDate.Time
		rec.QuizDate = &t
		rec.QuizDateRaw = t.Format(dateLayout)
	}
	if r.QuizScore.Valid {
		score := int(r.QuizScore.Int64)
		rec.QuizScore = &score
		rec.QuizScoreRaw = fmt.Sprintf("%d", score)
	}
	return rec
}

func (r scheduleRow) toRecord() models.QuizScheduleRecord {
	rec := models.QuizScheduleRecord{
		QuizID:          r.QuizID,
		Grade:           r.Grade,
		ClassSection:    r.ClassSection,
		Subject:         r.Subject,
		Topic:           r.Topic,
		DurationMinutes: r.DurationMinutes,
		TotalMarks:      r.TotalMarks,
		CreatedDate:     r.CreatedDate.String,
	}
	if r.ScheduledDate.Valid {
		t := r.ScheduledDate.Time
		rec.ScheduledDate = &t
		rec.ScheduledDateRaw = t.Format(dateLayout)
	}
	return rec
}

var _ SnapshotLoader = (*SQLSnapshotLoader)(nil)
var _ SnapshotLoader = (*CSVSnapshotLoader)(nil)
