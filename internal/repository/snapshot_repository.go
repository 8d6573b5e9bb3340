package repository

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/edusight/edusight-api/internal/models"
)

const dateLayout = "2006-01-02"

// SnapshotLoader loads one consistent snapshot from a backing source.
type SnapshotLoader interface {
	Load() (*models.Snapshot, error)
}

type loadObserver interface {
	ObserveSnapshotLoad(duration time.Duration, activityRows, scheduleRows int)
}

// SnapshotRepository holds the current snapshot and swaps it atomically on
// reload. Readers always see a complete version; in-flight queries keep the
// snapshot they started with.
type SnapshotRepository struct {
	loader  SnapshotLoader
	metrics loadObserver
	logger  *zap.Logger
	current atomic.Pointer[models.Snapshot]
}

// NewSnapshotRepository constructs a repository seeded with an empty snapshot.
func NewSnapshotRepository(loader SnapshotLoader, metrics loadObserver, logger *zap.Logger) *SnapshotRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &SnapshotRepository{loader: loader, metrics: metrics, logger: logger}
	r.current.Store(&models.Snapshot{LoadedAt: time.Now()})
	return r
}

// Current returns the active snapshot. Never nil.
func (r *SnapshotRepository) Current() *models.Snapshot {
	return r.current.Load()
}

// Reload builds a fresh snapshot from the loader and swaps it in. On failure
// the previous snapshot stays active.
func (r *SnapshotRepository) Reload() (*models.Snapshot, error) {
	start := time.Now()
	snap, err := r.loader.Load()
	if err != nil {
		return nil, fmt.Errorf("reload snapshot: %w", err)
	}
	snap.LoadedAt = time.Now()
	r.current.Store(snap)

	if r.metrics != nil {
		r.metrics.ObserveSnapshotLoad(time.Since(start), len(snap.Activity), len(snap.QuizSchedule))
	}
	r.logger.Info("snapshot reloaded",
		zap.Int("activity_rows", len(snap.Activity)),
		zap.Int("quiz_schedule_rows", len(snap.QuizSchedule)),
		zap.Duration("duration", time.Since(start)),
	)
	return snap, nil
}

// CSVSnapshotLoader reads the activity and quiz schedule datasets from CSV
// files. A missing file yields an empty dataset rather than an error so the
// service can start before data has been generated.
type CSVSnapshotLoader struct {
	activityPath string
	schedulePath string
	logger       *zap.Logger
}

// NewCSVSnapshotLoader constructs a loader over the given file paths.
func NewCSVSnapshotLoader(activityPath, schedulePath string, logger *zap.Logger) *CSVSnapshotLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CSVSnapshotLoader{activityPath: activityPath, schedulePath: schedulePath, logger: logger}
}

// Load parses both CSV files into a snapshot.
func (l *CSVSnapshotLoader) Load() (*models.Snapshot, error) {
	activity, err := l.loadActivity()
	if err != nil {
		return nil, err
	}
	schedule, err := l.loadSchedule()
	if err != nil {
		return nil, err
	}
	return &models.Snapshot{Activity: activity, QuizSchedule: schedule}, nil
}

func (l *CSVSnapshotLoader) loadActivity() ([]models.ActivityRecord, error) {
	rows, header, err := readCSV(l.activityPath)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		l.logger.Warn("activity file missing, starting empty", zap.String("path", l.activityPath))
		return nil, nil
	}

	records := make([]models.ActivityRecord, 0, len(rows))
	for _, row := range rows {
		get := func(col string) string { return cell(row, header, col) }
		rec := models.ActivityRecord{
			StudentID:          get("student_id"),
			StudentName:        get(models.ColStudentName),
			Grade:              get(models.ColGrade),
			ClassSection:       get(models.ColClassSection),
			Region:             get(models.ColRegion),
			Subject:            get(models.ColSubject),
			HomeworkAssignment: get(models.ColHomeworkAssignment),
			HomeworkSubmitted:  get(models.ColHomeworkSubmitted),
			SubmissionDateRaw:  get(models.ColSubmissionDate),
			QuizTopic:          get(models.ColQuizTopic),
			QuizScoreRaw:       get(models.ColQuizScore),
			QuizDateRaw:        get(models.ColQuizDate),
			LastUpdated:        get("last_updated"),
		}
		rec.SubmissionDate = parseDate(rec.SubmissionDateRaw)
		rec.QuizDate = parseDate(rec.QuizDateRaw)
		rec.QuizScore = parseScore(rec.QuizScoreRaw)
		if v, err := strconv.Atoi(get(models.ColAttendance)); err == nil {
			rec.AttendancePct = v
		}
		records = append(records, rec)
	}
	return records, nil
}

func (l *CSVSnapshotLoader) loadSchedule() ([]models.QuizScheduleRecord, error) {
	rows, header, err := readCSV(l.schedulePath)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		l.logger.Warn("quiz schedule file missing, starting empty", zap.String("path", l.schedulePath))
		return nil, nil
	}

	records := make([]models.QuizScheduleRecord, 0, len(rows))
	for _, row := range rows {
		get := func(col string) string { return cell(row, header, col) }
		rec := models.QuizScheduleRecord{
			QuizID:           get("quiz_id"),
			Grade:            get(models.ColGrade),
			ClassSection:     get(models.ColClassSection),
			Subject:          get(models.ColSubject),
			Topic:            get(models.ColTopic),
			ScheduledDateRaw: get(models.ColScheduledDate),
			CreatedDate:      get("created_date"),
		}
		rec.ScheduledDate = parseDate(rec.ScheduledDateRaw)
		if v, err := strconv.Atoi(get(models.ColDurationMinutes)); err == nil {
			rec.DurationMinutes = v
		}
		if v, err := strconv.Atoi(get(models.ColTotalMarks)); err == nil {
			rec.TotalMarks = v
		}
		records = append(records, rec)
	}
	return records, nil
}

// readCSV returns the data rows and a header index map. A missing file is
// reported as nil rows with no error.
func readCSV(path string) ([][]string, map[string]int, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	headerRow, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return [][]string{}, map[string]int{}, nil
		}
		return nil, nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	header := make(map[string]int, len(headerRow))
	for i, name := range headerRow {
		header[strings.TrimSpace(name)] = i
	}

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", path, err)
		}
		rows = append(rows, row)
	}
	return rows, header, nil
}

func cell(row []string, header map[string]int, col string) string {
	idx, ok := header[col]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// parseDate returns nil for sentinel or unparseable values.
func parseDate(raw string) *time.Time {
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil
	}
	return &t
}

// parseScore returns nil for the not-taken sentinel or anything non-numeric.
func parseScore(raw string) *int {
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &v
}
