package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/edusight/edusight-api/internal/models"
)

type snapshotProvider interface {
	Current() *models.Snapshot
}

type scopeResolver interface {
	ResolveScope(username string) (models.AccessScope, bool)
}

type intentClassifier interface {
	Classify(text string) models.QueryIntent
	FollowUps(intent models.QueryIntent) []string
}

const (
	poorPerformerCutoff = 60
	noDataMessage       = "No data available for your access level."
)

// QueryService turns an authenticated username and a free-text question into
// a bounded, role-appropriate result set. Every failure inside the pipeline
// is converted to a structured error result at the Execute boundary.
type QueryService struct {
	snapshots    snapshotProvider
	registry     scopeResolver
	classifier   intentClassifier
	metrics      *MetricsService
	logger       *zap.Logger
	now          func() time.Time
	defaultLimit int
}

// NewQueryService constructs the query engine.
func NewQueryService(snapshots snapshotProvider, registry scopeResolver, classifier intentClassifier, metrics *MetricsService, logger *zap.Logger, defaultLimit int) *QueryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	return &QueryService{
		snapshots:    snapshots,
		registry:     registry,
		classifier:   classifier,
		metrics:      metrics,
		logger:       logger,
		now:          time.Now,
		defaultLimit: defaultLimit,
	}
}

// Execute runs the full pipeline: resolve scope, classify, scope filter,
// intent filter, shape columns, derive summary and visualization payloads.
func (s *QueryService) Execute(username, text string) (result *models.QueryResult) {
	start := s.now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("query execution panicked",
				zap.String("username", username),
				zap.Any("panic", r),
			)
			result = s.errorResult(text, fmt.Sprintf("query execution failed: %v", r))
		}
		if s.metrics != nil && result != nil {
			entity := ""
			if result.Intent != nil {
				entity = string(result.Intent.Entity)
			}
			s.metrics.ObserveQuery(entity, string(result.Status), s.now().Sub(start))
		}
	}()

	intent := s.classifier.Classify(text)
	scope, known := s.registry.ResolveScope(username)

	snapshot := s.snapshots.Current()

	if intent.Entity == models.EntityUpcomingQuizzes {
		rows := []models.QuizScheduleRecord{}
		if known {
			rows = scopeFilterSchedule(snapshot.QuizSchedule, scope)
		}
		if len(rows) == 0 {
			return s.emptyResult(text, intent)
		}
		rows = applyIntentSchedule(rows, intent)
		return s.shapeScheduleResult(text, intent, rows)
	}

	rows := []models.ActivityRecord{}
	if known {
		rows = scopeFilterActivity(snapshot.Activity, scope)
	}
	if len(rows) == 0 {
		return s.emptyResult(text, intent)
	}
	rows = s.applyIntentActivity(rows, intent)
	return s.shapeActivityResult(text, intent, scope, rows)
}

// scopeFilterActivity keeps rows matching every non-empty allow-list
// dimension of the scope. The unrestricted role bypasses filtering; the
// returned slice is always a copy.
func scopeFilterActivity(rows []models.ActivityRecord, scope models.AccessScope) []models.ActivityRecord {
	out := make([]models.ActivityRecord, 0, len(rows))
	if scope.Unrestricted() {
		return append(out, rows...)
	}
	for _, row := range rows {
		if scopeAllowsActivity(scope, row) {
			out = append(out, row)
		}
	}
	return out
}

func scopeAllowsActivity(scope models.AccessScope, row models.ActivityRecord) bool {
	for _, dim := range []models.Dimension{
		models.DimensionRegion,
		models.DimensionGrade,
		models.DimensionClass,
		models.DimensionSubject,
	} {
		allowed := scope.AllowList(dim)
		if len(allowed) == 0 {
			continue
		}
		if !contains(allowed, row.DimensionValue(dim)) {
			return false
		}
	}
	return true
}

func scopeFilterSchedule(rows []models.QuizScheduleRecord, scope models.AccessScope) []models.QuizScheduleRecord {
	out := make([]models.QuizScheduleRecord, 0, len(rows))
	if scope.Unrestricted() {
		return append(out, rows...)
	}
	for _, row := range rows {
		ok := true
		for _, dim := range []models.Dimension{
			models.DimensionGrade,
			models.DimensionClass,
			models.DimensionSubject,
		} {
			allowed := scope.AllowList(dim)
			if len(allowed) == 0 {
				continue
			}
			if !contains(allowed, row.DimensionValue(dim)) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, row)
		}
	}
	return out
}

// applyIntentActivity applies the equality filters, then the condition
// handlers, then the time window, in that fixed order.
func (s *QueryService) applyIntentActivity(rows []models.ActivityRecord, intent models.QueryIntent) []models.ActivityRecord {
	for dim, value := range intent.Filters {
		filtered := rows[:0:0]
		for _, row := range rows {
			if row.DimensionValue(dim) == value {
				filtered = append(filtered, row)
			}
		}
		rows = filtered
	}

	for _, condition := range intent.Conditions {
		switch condition {
		case models.ConditionHomeworkNotSubmitted:
			filtered := rows[:0:0]
			for _, row := range rows {
				if row.HomeworkSubmitted == models.HomeworkSubmittedNo {
					filtered = append(filtered, row)
				}
			}
			rows = filtered
		case models.ConditionTopPerformers:
			rows = takenOnly(rows)
			sort.SliceStable(rows, func(i, j int) bool {
				return *rows[i].QuizScore > *rows[j].QuizScore
			})
			limit := intent.Limit
			if limit <= 0 {
				limit = s.defaultLimit
			}
			if len(rows) > limit {
				rows = rows[:limit]
			}
		case models.ConditionPoorPerformers:
			taken := takenOnly(rows)
			filtered := taken[:0:0]
			for _, row := range taken {
				if *row.QuizScore < poorPerformerCutoff {
					filtered = append(filtered, row)
				}
			}
			rows = filtered
			if intent.Limit > 0 {
				sort.SliceStable(rows, func(i, j int) bool {
					return *rows[i].QuizScore < *rows[j].QuizScore
				})
				if len(rows) > intent.Limit {
					rows = rows[:intent.Limit]
				}
			}
		}
	}

	if intent.Window != nil {
		filtered := rows[:0:0]
		for _, row := range rows {
			// Activity rows carry a quiz-date column, so that is the one
			// date the window applies to. Rows whose quiz date failed to
			// parse are excluded from temporal filtering.
			date := row.QuizDate
			if date == nil {
				continue
			}
			if !date.Before(intent.Window.Start) && !date.After(intent.Window.End) {
				filtered = append(filtered, row)
			}
		}
		rows = filtered
	}

	return rows
}

// takenOnly drops rows without a parsed numeric quiz score. The "Not Taken"
// sentinel and unparseable values both surface as a nil score.
func takenOnly(rows []models.ActivityRecord) []models.ActivityRecord {
	out := make([]models.ActivityRecord, 0, len(rows))
	for _, row := range rows {
		if row.QuizScore != nil {
			out = append(out, row)
		}
	}
	return out
}

func applyIntentSchedule(rows []models.QuizScheduleRecord, intent models.QueryIntent) []models.QuizScheduleRecord {
	for dim, value := range intent.Filters {
		if dim == models.DimensionRegion {
			// The schedule snapshot carries no region column.
			continue
		}
		filtered := rows[:0:0]
		for _, row := range rows {
			if row.DimensionValue(dim) == value {
				filtered = append(filtered, row)
			}
		}
		rows = filtered
	}
	return rows
}

// displayColumns selects the ordered column list for an intent, then strips
// sensitive columns unless the scope may view them.
func displayColumns(intent models.QueryIntent, scope models.AccessScope) []string {
	if intent.Entity == models.EntityUpcomingQuizzes {
		return []string{
			models.ColSubject, models.ColTopic, models.ColScheduledDate,
			models.ColGrade, models.ColClassSection,
			models.ColDurationMinutes, models.ColTotalMarks,
		}
	}

	base := []string{models.ColStudentName, models.ColGrade, models.ColClassSection}
	var extra []string
	switch {
	case intent.HasCondition(models.ConditionHomeworkNotSubmitted):
		extra = []string{models.ColHomeworkAssignment, models.ColSubmissionDate, models.ColSubject}
	case intent.HasCondition(models.ConditionTopPerformers), intent.HasCondition(models.ConditionPoorPerformers):
		extra = []string{models.ColQuizScore, models.ColQuizTopic, models.ColQuizDate}
	case intent.Entity == models.EntityQuizPerformance:
		extra = []string{models.ColQuizScore, models.ColQuizTopic, models.ColQuizDate, models.ColSubject}
	case intent.Entity == models.EntityPerformance:
		extra = []string{models.ColQuizScore, models.ColAttendance, models.ColSubject, models.ColHomeworkSubmitted}
	default:
		extra = []string{models.ColRegion, models.ColAttendance}
	}
	columns := append(base, extra...)

	if !scope.CanViewSensitive {
		visible := columns[:0:0]
		for _, col := range columns {
			if col == models.ColAttendance || col == models.ColQuizScore {
				continue
			}
			visible = append(visible, col)
		}
		columns = visible
	}
	return columns
}

func (s *QueryService) shapeActivityResult(query string, intent models.QueryIntent, scope models.AccessScope, rows []models.ActivityRecord) *models.QueryResult {
	if len(rows) == 0 {
		return &models.QueryResult{
			Status:    models.StatusSuccess,
			Data:      []map[string]string{},
			Summary:   "No records found matching your query.",
			Message:   "Try adjusting your search criteria or check your access permissions.",
			Intent:    &intent,
			Timestamp: s.now().UTC(),
		}
	}

	columns := displayColumns(intent, scope)
	data := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		record := make(map[string]string, len(columns))
		for _, col := range columns {
			record[col] = row.Field(col)
		}
		data = append(data, record)
	}
	if intent.Limit > 0 && len(data) > intent.Limit {
		data = data[:intent.Limit]
	}

	return &models.QueryResult{
		Status:        models.StatusSuccess,
		Columns:       columns,
		Data:          data,
		Summary:       s.buildActivitySummary(rows, intent),
		Visualization: buildVisualization(activityDistInputs(rows), intent.Entity),
		Message:       fmt.Sprintf("Found %d records matching your query.", len(data)),
		TotalRecords:  len(rows),
		Intent:        &intent,
		Query:         query,
		Timestamp:     s.now().UTC(),
	}
}

func (s *QueryService) shapeScheduleResult(query string, intent models.QueryIntent, rows []models.QuizScheduleRecord) *models.QueryResult {
	if len(rows) == 0 {
		return &models.QueryResult{
			Status:    models.StatusSuccess,
			Data:      []map[string]string{},
			Summary:   "No records found matching your query.",
			Message:   "Try adjusting your search criteria or check your access permissions.",
			Intent:    &intent,
			Timestamp: s.now().UTC(),
		}
	}

	columns := displayColumns(intent, models.AccessScope{Role: models.RoleSuperAdmin})
	data := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		record := make(map[string]string, len(columns))
		for _, col := range columns {
			record[col] = row.Field(col)
		}
		data = append(data, record)
	}
	if intent.Limit > 0 && len(data) > intent.Limit {
		data = data[:intent.Limit]
	}

	return &models.QueryResult{
		Status:        models.StatusSuccess,
		Columns:       columns,
		Data:          data,
		Summary:       s.buildScheduleSummary(rows),
		Visualization: buildVisualization(scheduleDistInputs(rows), intent.Entity),
		Message:       fmt.Sprintf("Found %d records matching your query.", len(data)),
		TotalRecords:  len(rows),
		Intent:        &intent,
		Query:         query,
		Timestamp:     s.now().UTC(),
	}
}

// buildActivitySummary composes the textual summary: total count, any
// condition-specific aggregates, and an overall grade distribution when the
// result spans more than one grade.
func (s *QueryService) buildActivitySummary(rows []models.ActivityRecord, intent models.QueryIntent) string {
	parts := []string{fmt.Sprintf("Total records: %d", len(rows))}

	switch {
	case intent.HasCondition(models.ConditionHomeworkNotSubmitted):
		grades := countBy(rows, func(r models.ActivityRecord) string { return r.Grade })
		parts = append(parts, "Grade breakdown: "+formatCounts(grades))
		subjects := countBy(rows, func(r models.ActivityRecord) string { return r.Subject })
		if label, count, ok := topCount(subjects); ok {
			parts = append(parts, fmt.Sprintf("Most affected subject: %s (%d students)", label, count))
		}
	case intent.HasCondition(models.ConditionTopPerformers):
		if mean, max, ok := scoreStats(rows); ok {
			parts = append(parts, fmt.Sprintf("Average score: %.1f, Highest score: %d", mean, max))
		}
	case intent.HasCondition(models.ConditionPoorPerformers):
		if mean, min, ok := scoreStatsMin(rows); ok {
			parts = append(parts, fmt.Sprintf("Average score: %.1f, Lowest score: %d", mean, min))
		}
	}

	grades := countBy(rows, func(r models.ActivityRecord) string { return r.Grade })
	if len(grades) > 1 {
		parts = append(parts, "Grade distribution: "+formatCounts(grades))
	}

	return strings.Join(parts, " | ")
}

func (s *QueryService) buildScheduleSummary(rows []models.QuizScheduleRecord) string {
	parts := []string{fmt.Sprintf("Total records: %d", len(rows))}

	// No lower bound: every row scheduled up to a week out counts.
	horizon := s.now().AddDate(0, 0, 7)
	upcoming := 0
	for _, row := range rows {
		if row.ScheduledDate == nil {
			continue
		}
		if !row.ScheduledDate.After(horizon) {
			upcoming++
		}
	}
	parts = append(parts, fmt.Sprintf("Quizzes in next 7 days: %d", upcoming))

	grades := make(map[string]int)
	for _, row := range rows {
		grades[row.Grade]++
	}
	if len(grades) > 1 {
		parts = append(parts, "Grade distribution: "+formatCounts(grades))
	}

	return strings.Join(parts, " | ")
}

// distInput carries the fields the visualization builder aggregates over,
// independent of which snapshot the rows came from.
type distInput struct {
	grade   string
	class   string
	subject string
	score   *int
}

func activityDistInputs(rows []models.ActivityRecord) []distInput {
	out := make([]distInput, len(rows))
	for i, row := range rows {
		out[i] = distInput{grade: row.Grade, class: row.ClassSection, subject: row.Subject, score: row.QuizScore}
	}
	return out
}

func scheduleDistInputs(rows []models.QuizScheduleRecord) []distInput {
	out := make([]distInput, len(rows))
	for i, row := range rows {
		out[i] = distInput{grade: row.Grade, class: row.ClassSection, subject: row.Subject}
	}
	return out
}

// buildVisualization derives the chart-ready aggregates. The score histogram
// is produced only for performance-related entities and only over rows with
// a parsed numeric score.
func buildVisualization(rows []distInput, entity models.QueryEntity) *models.VisualizationData {
	if len(rows) == 0 {
		return nil
	}

	viz := &models.VisualizationData{}

	grades := make(map[string]int)
	classes := make(map[string]int)
	subjects := make(map[string]int)
	for _, row := range rows {
		if row.grade != "" {
			grades[row.grade]++
		}
		if row.class != "" {
			classes[row.class]++
		}
		if row.subject != "" {
			subjects[row.subject]++
		}
	}

	if len(grades) > 0 {
		viz.GradeDistribution = toSeries(grades, models.ChartBar)
	}
	if len(classes) > 0 {
		viz.ClassDistribution = toSeries(classes, models.ChartPie)
	}
	if len(subjects) > 0 {
		viz.SubjectDistribution = toSeries(subjects, models.ChartHorizontalBar)
	}

	if entity == models.EntityQuizPerformance || entity == models.EntityPerformance {
		if histogram := scoreHistogram(rows); histogram != nil {
			viz.ScoreDistribution = histogram
		}
	}

	return viz
}

// scoreHistogram buckets numeric scores into the fixed ranges
// [0,40] (40,60] (60,80] (80,100]. Bucket counts always sum to the number
// of rows carrying a valid score.
func scoreHistogram(rows []distInput) *models.ChartSeries {
	labels := []string{"Below 40", "40-60", "60-80", "80-100"}
	values := make([]int, len(labels))
	scored := 0
	for _, row := range rows {
		if row.score == nil {
			continue
		}
		scored++
		switch s := *row.score; {
		case s <= 40:
			values[0]++
		case s <= 60:
			values[1]++
		case s <= 80:
			values[2]++
		default:
			values[3]++
		}
	}
	if scored == 0 {
		return nil
	}
	return &models.ChartSeries{Labels: labels, Values: values, Kind: models.ChartBar}
}

// toSeries orders a counter into a deterministic series: descending count,
// ties broken lexically.
func toSeries(counts map[string]int, kind models.ChartKind) *models.ChartSeries {
	labels := make([]string, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		if counts[labels[i]] != counts[labels[j]] {
			return counts[labels[i]] > counts[labels[j]]
		}
		return labels[i] < labels[j]
	})
	values := make([]int, len(labels))
	for i, label := range labels {
		values[i] = counts[label]
	}
	return &models.ChartSeries{Labels: labels, Values: values, Kind: kind}
}

func countBy(rows []models.ActivityRecord, key func(models.ActivityRecord) string) map[string]int {
	counts := make(map[string]int)
	for _, row := range rows {
		counts[key(row)]++
	}
	return counts
}

func topCount(counts map[string]int) (string, int, bool) {
	best := ""
	bestCount := -1
	for label, count := range counts {
		if count > bestCount || (count == bestCount && label < best) {
			best = label
			bestCount = count
		}
	}
	if bestCount < 0 {
		return "", 0, false
	}
	return best, bestCount, true
}

func formatCounts(counts map[string]int) string {
	labels := make([]string, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		if counts[labels[i]] != counts[labels[j]] {
			return counts[labels[i]] > counts[labels[j]]
		}
		return labels[i] < labels[j]
	})
	parts := make([]string, len(labels))
	for i, label := range labels {
		parts[i] = fmt.Sprintf("%s: %d", label, counts[label])
	}
	return strings.Join(parts, ", ")
}

func scoreStats(rows []models.ActivityRecord) (mean float64, max int, ok bool) {
	sum, count := 0, 0
	for _, row := range rows {
		if row.QuizScore == nil {
			continue
		}
		if count == 0 || *row.QuizScore > max {
			max = *row.QuizScore
		}
		sum += *row.QuizScore
		count++
	}
	if count == 0 {
		return 0, 0, false
	}
	return float64(sum) / float64(count), max, true
}

func scoreStatsMin(rows []models.ActivityRecord) (mean float64, min int, ok bool) {
	sum, count := 0, 0
	for _, row := range rows {
		if row.QuizScore == nil {
			continue
		}
		if count == 0 || *row.QuizScore < min {
			min = *row.QuizScore
		}
		sum += *row.QuizScore
		count++
	}
	if count == 0 {
		return 0, 0, false
	}
	return float64(sum) / float64(count), min, true
}

func (s *QueryService) emptyResult(query string, intent models.QueryIntent) *models.QueryResult {
	return &models.QueryResult{
		Status:    models.StatusSuccess,
		Data:      []map[string]string{},
		Message:   noDataMessage,
		Intent:    &intent,
		Query:     query,
		Timestamp: s.now().UTC(),
	}
}

func (s *QueryService) errorResult(query, message string) *models.QueryResult {
	return &models.QueryResult{
		Status:    models.StatusError,
		Error:     message,
		Query:     query,
		Timestamp: s.now().UTC(),
	}
}

// FollowUps exposes the classifier's follow-up suggestions for a result.
func (s *QueryService) FollowUps(intent models.QueryIntent) []string {
	return s.classifier.FollowUps(intent)
}
