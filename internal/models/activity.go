package models

import (
	"strconv"
	"time"
)

// Raw sentinel values carried by the snapshot sources. Scores and dates are
// parsed into nullable fields at load time; the raw strings remain available
// for display.
const (
	ScoreNotTaken       = "Not Taken"
	SubmissionMissing   = "Not Submitted"
	HomeworkSubmittedNo = "No"
)

// Display column identifiers shared by the query engine and exporters.
const (
	ColStudentName        = "student_name"
	ColGrade              = "grade"
	ColClassSection       = "class_section"
	ColRegion             = "region"
	ColSubject            = "subject"
	ColHomeworkAssignment = "homework_assignment"
	ColHomeworkSubmitted  = "homework_submitted"
	ColSubmissionDate     = "submission_date"
	ColQuizTopic          = "quiz_topic"
	ColQuizScore          = "quiz_score"
	ColQuizDate           = "quiz_date"
	ColAttendance         = "attendance_percentage"
	ColTopic              = "topic"
	ColScheduledDate      = "scheduled_date"
	ColDurationMinutes    = "duration_minutes"
	ColTotalMarks         = "total_marks"
)

// ActivityRecord is one immutable row of the student activity snapshot.
type ActivityRecord struct {
	StudentID          string
	StudentName        string
	Grade              string
	ClassSection       string
	Region             string
	Subject            string
	HomeworkAssignment string
	HomeworkSubmitted  string
	SubmissionDateRaw  string
	SubmissionDate     *time.Time
	QuizTopic          string
	QuizScoreRaw       string
	QuizScore          *int
	QuizDateRaw        string
	QuizDate           *time.Time
	AttendancePct      int
	LastUpdated        string
}

// DimensionValue returns the record's value for a filterable dimension.
func (r ActivityRecord) DimensionValue(d Dimension) string {
	switch d {
	case DimensionRegion:
		return r.Region
	case DimensionGrade:
		return r.Grade
	case DimensionClass:
		return r.ClassSection
	case DimensionSubject:
		return r.Subject
	}
	return ""
}

// Field renders the display value for a column identifier.
func (r ActivityRecord) Field(column string) string {
	switch column {
	case ColStudentName:
		return r.StudentName
	case ColGrade:
		return r.Grade
	case ColClassSection:
		return r.ClassSection
	case ColRegion:
		return r.Region
	case ColSubject:
		return r.Subject
	case ColHomeworkAssignment:
		return r.HomeworkAssignment
	case ColHomeworkSubmitted:
		return r.HomeworkSubmitted
	case ColSubmissionDate:
		return r.SubmissionDateRaw
	case ColQuizTopic:
		return r.QuizTopic
	case ColQuizScore:
		return r.QuizScoreRaw
	case ColQuizDate:
		return r.QuizDateRaw
	case ColAttendance:
		return itoa(r.AttendancePct)
	}
	return ""
}

// QuizScheduleRecord is one immutable row of the quiz schedule snapshot.
type QuizScheduleRecord struct {
	QuizID           string
	Grade            string
	ClassSection     string
	Subject          string
	Topic            string
	ScheduledDateRaw string
	ScheduledDate    *time.Time
	DurationMinutes  int
	TotalMarks       int
	CreatedDate      string
}

// DimensionValue returns the schedule row's value for a filterable
// dimension. Region is not carried by the schedule snapshot.
func (r QuizScheduleRecord) DimensionValue(d Dimension) string {
	switch d {
	case DimensionGrade:
		return r.Grade
	case DimensionClass:
		return r.ClassSection
	case DimensionSubject:
		return r.Subject
	}
	return ""
}

// Field renders the display value for a column identifier.
func (r QuizScheduleRecord) Field(column string) string {
	switch column {
	case ColSubject:
		return r.Subject
	case ColTopic:
		return r.Topic
	case ColScheduledDate:
		return r.ScheduledDateRaw
	case ColGrade:
		return r.Grade
	case ColClassSection:
		return r.ClassSection
	case ColDurationMinutes:
		return itoa(r.DurationMinutes)
	case ColTotalMarks:
		return itoa(r.TotalMarks)
	}
	return ""
}

// Snapshot is one consistent, read-only version of the loaded datasets.
// Reload builds a fresh Snapshot and swaps it atomically; in-flight queries
// keep the version they started with.
type Snapshot struct {
	Activity     []ActivityRecord
	QuizSchedule []QuizScheduleRecord
	LoadedAt     time.Time
}

func itoa(v int) string {
	return strconv.Itoa(v)
}
