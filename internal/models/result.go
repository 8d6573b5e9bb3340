package models

import "time"

// QueryStatus marks a result as a success or a structured failure.
type QueryStatus string

const (
	StatusSuccess QueryStatus = "success"
	StatusError   QueryStatus = "error"
)

// ChartKind selects the chart type a series is intended for.
type ChartKind string

const (
	ChartBar           ChartKind = "bar"
	ChartPie           ChartKind = "pie"
	ChartHorizontalBar ChartKind = "horizontal_bar"
)

// ChartSeries is one chart-ready label/value pairing.
type ChartSeries struct {
	Labels []string  `json:"labels"`
	Values []int     `json:"values"`
	Kind   ChartKind `json:"type"`
}

// VisualizationData groups the aggregates derived from a result set.
type VisualizationData struct {
	GradeDistribution   *ChartSeries `json:"grade_distribution,omitempty"`
	ClassDistribution   *ChartSeries `json:"class_distribution,omitempty"`
	ScoreDistribution   *ChartSeries `json:"score_distribution,omitempty"`
	SubjectDistribution *ChartSeries `json:"subject_distribution,omitempty"`
}

// QueryResult is the complete outcome of one natural-language query. The
// error variant carries Error, Query and Timestamp; the success variant
// carries everything else.
type QueryResult struct {
	Status        QueryStatus         `json:"status"`
	Columns       []string            `json:"columns,omitempty"`
	Data          []map[string]string `json:"data"`
	Summary       string              `json:"summary,omitempty"`
	Visualization *VisualizationData  `json:"visualization_data,omitempty"`
	Message       string              `json:"message,omitempty"`
	TotalRecords  int                 `json:"total_records"`
	Intent        *QueryIntent        `json:"intent,omitempty"`
	Error         string              `json:"error,omitempty"`
	Query         string              `json:"query,omitempty"`
	Timestamp     time.Time           `json:"timestamp"`
}

// DashboardMetrics is the scope-filtered overview payload.
type DashboardMetrics struct {
	TotalStudents       int            `json:"total_students"`
	TotalAssignments    int            `json:"total_assignments"`
	PendingSubmissions  int            `json:"pending_submissions"`
	SubmissionRate      float64        `json:"submission_rate"`
	UpcomingQuizzes     int            `json:"upcoming_quizzes"`
	AvgQuizScore        float64        `json:"avg_quiz_score"`
	RecentSubmissions   int            `json:"recent_submissions"`
	GradeDistribution   map[string]int `json:"grade_distribution"`
	SubjectDistribution map[string]int `json:"subject_distribution"`
	Message             string         `json:"message,omitempty"`
}
