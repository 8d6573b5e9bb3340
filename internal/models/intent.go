package models

import "time"

// QueryAction is the verb of a classified query.
type QueryAction string

const (
	ActionFind QueryAction = "find"
	ActionList QueryAction = "list"
	ActionShow QueryAction = "show"
)

// QueryEntity is the target dataset of a classified query.
type QueryEntity string

const (
	EntityStudents        QueryEntity = "students"
	EntityQuizPerformance QueryEntity = "quiz_performance"
	EntityUpcomingQuizzes QueryEntity = "upcoming_quizzes"
	EntityPerformance     QueryEntity = "performance"
)

// Condition names a special-case transform beyond simple equality filtering.
type Condition string

const (
	ConditionHomeworkNotSubmitted Condition = "homework_not_submitted"
	ConditionTopPerformers        Condition = "top_performers"
	ConditionPoorPerformers       Condition = "poor_performers"
)

// TimeWindow is an inclusive date range extracted from a query.
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// QueryIntent is the structured representation of a free-text query. It is
// created fresh per query and never shared between calls.
type QueryIntent struct {
	Action     QueryAction          `json:"action"`
	Entity     QueryEntity          `json:"entity"`
	Filters    map[Dimension]string `json:"filters"`
	Conditions []Condition          `json:"conditions"`
	Window     *TimeWindow          `json:"time_window,omitempty"`
	SortBy     string               `json:"sort_by,omitempty"`
	Limit      int                  `json:"limit,omitempty"`
}

// HasCondition reports whether the named condition is present.
func (i QueryIntent) HasCondition(c Condition) bool {
	for _, have := range i.Conditions {
		if have == c {
			return true
		}
	}
	return false
}

// ContextEntry is one element of the rolling conversation context.
type ContextEntry struct {
	Query     string      `json:"query"`
	Intent    QueryIntent `json:"intent"`
	Timestamp time.Time   `json:"timestamp"`
}
