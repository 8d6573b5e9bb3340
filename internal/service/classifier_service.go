package service

import (
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/edusight/edusight-api/internal/models"
)

// ruleCategory identifies one group of the ordered intent rule table.
type ruleCategory string

const (
	categoryHomeworkMissing ruleCategory = "students_not_submitted"
	categoryGradeClass      ruleCategory = "students_by_grade"
	categoryQuizPerformance ruleCategory = "quiz_performance"
	categoryUpcomingQuizzes ruleCategory = "upcoming_quizzes"
	categoryPerformanceData ruleCategory = "performance_data"
	categoryTopPerformers   ruleCategory = "top_performers"
	categoryPoorPerformers  ruleCategory = "poor_performers"
)

// intentRule couples a category with its alternative phrasings. Table order
// is the priority order: when several categories could match the same text,
// the earliest effective one wins.
type intentRule struct {
	category ruleCategory
	patterns []*regexp.Regexp
}

// The alternations keep the transliterated-Hindi keywords alongside their
// English equivalents: normalization translates known tokens, but words
// outside the glossary (natija, agla, mushkil) still reach the rule table
// untranslated.
var intentRules = []intentRule{
	{categoryHomeworkMissing, compileAll(
		`(which|kaunse|kaun).*(students|bachche|vidyarthi).*(not|nahi|nahin).*(submit|jama|diya).*(homework|assignment)`,
		`(students|bachche|vidyarthi).*(homework|assignment).*(not|nahi|nahin).*(submit|jama|diya)`,
		`(homework|assignment).*(not|nahi|nahin).*(submit|jama|diya).*(students|bachche|vidyarthi)`,
	)},
	{categoryGradeClass, compileAll(
		`(grade|class|kaksha)\s*(\d+|[A-Z])`,
		`(\d+).*(grade|class|kaksha)`,
	)},
	{categoryQuizPerformance, compileAll(
		`(quiz|test|pariksha).*(performance|pradarshan|marks|score|ank)`,
		`(performance|pradarshan|marks|score|ank).*(quiz|test|pariksha)`,
		`(show|dikhao|dekho).*(quiz|test|pariksha).*(result|natija)`,
	)},
	{categoryUpcomingQuizzes, compileAll(
		`(upcoming|aane|wale).*(quiz|test|pariksha)`,
		`(quiz|test|pariksha).*(scheduled|aane|wale)`,
		`(next|agla).*(quiz|test|pariksha)`,
	)},
	{categoryPerformanceData, compileAll(
		`(performance|pradarshan).*(data|jaankaari)`,
		`(show|dikhao|dekho).*(performance|pradarshan)`,
		`(last|pichhla|pichhe).*(week|hafta).*(performance|pradarshan)`,
	)},
	{categoryTopPerformers, compileAll(
		`(top|sabse|acche|best|highest).*(students|bachche|vidyarthi)`,
		`(best|acche|sabse).*(performance|pradarshan)`,
		`(highest|sabse).*(marks|score|ank)`,
	)},
	{categoryPoorPerformers, compileAll(
		`(poor|kharab|worst|lowest|kam).*(students|bachche|vidyarthi)`,
		`(low|kam).*(performance|pradarshan)`,
		`(struggling|mushkil).*(students|bachche|vidyarthi)`,
	)},
}

// Ordered phrasings for the grade number; the first hit wins.
var gradePatterns = compileAll(
	`grade\s*(\d+)`,
	`class\s*(\d+)`,
	`kaksha\s*(\d+)`,
	`(\d+)(?:th|nd|rd|st)?\s*grade`,
	`(\d+)(?:th|nd|rd|st)?\s*class`,
)

// Ordered phrasings for the class-section letter.
var classPatterns = compileAll(
	`class\s*([a-d])\b`,
	`section\s*([a-d])\b`,
	`\b([a-d])\s*section`,
)

// Fixed region vocabulary scanned as literal substrings, first match wins.
var regionVocabulary = []string{"north", "south", "east", "west", "central"}

var nonWordPattern = regexp.MustCompile(`[^\w]`)

// Time-window phrase groups, checked in order.
var (
	lastWeekPhrases  = []string{"last week"}
	thisWeekPhrases  = []string{"this week", "current week"}
	lastMonthPhrases = []string{"last month"}
)

// Fixed bilingual example catalog backing query suggestions.
var suggestionCatalog = []string{
	"Which students haven't submitted their homework?",
	"Kaunse students ne homework submit nahi kiya?",
	"Show me Grade 8 performance data",
	"Grade 8 ki performance data dikhao",
	"List all upcoming quizzes",
	"Aane wale quiz ki list dikhao",
	"Who are the top performing students?",
	"Sabse acche students kaun hain?",
	"Show last week performance data",
	"Pichhle week ki performance dikhao",
	"Which students scored less than 60 in quiz?",
	"Quiz mein 60 se kam marks wale students",
	"Show me all students in Grade 9 Class A",
	"Grade 9 Class A ke sabhi students",
	"List students from North region",
	"North region ke students ki list",
}

var (
	missingHomeworkFollowUps = []string{
		"Which subject has the most missing homework?",
		"Show me the submission pattern for the last month",
		"Are there any students who consistently miss homework?",
		"What is the overall homework submission rate?",
	}
	quizPerformanceFollowUps = []string{
		"Which subject has the highest average scores?",
		"Show me the score distribution",
		"Who are the top 5 performers?",
		"Which topics need more attention?",
	}
	upcomingQuizFollowUps = []string{
		"Which grade has the most upcoming quizzes?",
		"Show me the quiz schedule for this week",
		"Are students prepared for these quizzes?",
		"What subjects are being tested most?",
	}
	genericFollowUps = []string{
		"Can you show me more details?",
		"What about other grades?",
		"How does this compare to last month?",
		"Are there any trends I should know about?",
	}
)

const (
	maxSuggestions  = 8
	fallbackEntries = 5
	maxFollowUps    = 3
	contextDepth    = 5
)

// ClassifierService turns free-text questions into structured intents. A
// single instance may serve concurrent callers; only the rolling context is
// mutable and it is guarded by a mutex.
type ClassifierService struct {
	logger    *zap.Logger
	now       func() time.Time
	maxLength int

	mu      sync.Mutex
	context []models.ContextEntry
}

// NewClassifierService constructs a classifier. maxLength bounds the input
// before any pattern matching; zero or negative selects a sane default.
func NewClassifierService(logger *zap.Logger, maxLength int) *ClassifierService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxLength <= 0 {
		maxLength = 512
	}
	return &ClassifierService{logger: logger, now: time.Now, maxLength: maxLength}
}

// Normalize lowercases the text and substitutes each punctuation-stripped
// token through the bilingual glossary, preserving word order. Normalizing
// already-normalized text is a no-op.
func (s *ClassifierService) Normalize(text string) string {
	words := strings.Fields(strings.ToLower(text))
	normalized := make([]string, 0, len(words))
	for _, word := range words {
		clean := nonWordPattern.ReplaceAllString(word, "")
		if english, ok := translateToken(clean); ok {
			normalized = append(normalized, english)
			continue
		}
		normalized = append(normalized, word)
	}
	return strings.Join(normalized, " ")
}

// Classify builds the intent for a query. The default intent finds students
// with whatever dimension filters and time window the text yields; the rule
// table then overwrites action, entity and conditions for the first
// effective category match.
func (s *ClassifierService) Classify(text string) models.QueryIntent {
	text = truncate(text, s.maxLength)
	normalized := s.Normalize(text)

	intent := models.QueryIntent{
		Action:     models.ActionFind,
		Entity:     models.EntityStudents,
		Filters:    s.extractDimensionFilters(normalized),
		Conditions: []models.Condition{},
		Window:     s.extractTimeWindow(normalized),
	}

	for _, rule := range intentRules {
		if !matchesAny(rule.patterns, normalized) {
			continue
		}
		applyCategory(&intent, rule.category)
		if len(intent.Conditions) > 0 || intent.Entity != models.EntityStudents {
			break
		}
	}

	s.remember(text, intent)
	return intent
}

// Suggest returns example queries for the given partial input, bounded to
// eight entries. An empty partial yields the head of the catalog; a partial
// that matches nothing falls back to the first five entries.
func (s *ClassifierService) Suggest(partial string) []string {
	if partial == "" {
		return append([]string(nil), suggestionCatalog[:maxSuggestions]...)
	}

	needle := strings.ToLower(partial)
	matched := make([]string, 0, maxSuggestions)
	for _, entry := range suggestionCatalog {
		if strings.Contains(strings.ToLower(entry), needle) {
			matched = append(matched, entry)
			if len(matched) == maxSuggestions {
				break
			}
		}
	}
	if len(matched) == 0 {
		return append([]string(nil), suggestionCatalog[:fallbackEntries]...)
	}
	return matched
}

// FollowUps proposes up to three follow-up questions for a classified
// intent, falling back to a generic set for unmatched combinations.
func (s *ClassifierService) FollowUps(intent models.QueryIntent) []string {
	var catalog []string
	switch {
	case intent.Entity == models.EntityStudents && intent.HasCondition(models.ConditionHomeworkNotSubmitted):
		catalog = missingHomeworkFollowUps
	case intent.Entity == models.EntityQuizPerformance:
		catalog = quizPerformanceFollowUps
	case intent.Entity == models.EntityUpcomingQuizzes:
		catalog = upcomingQuizFollowUps
	default:
		catalog = genericFollowUps
	}
	if len(catalog) > maxFollowUps {
		catalog = catalog[:maxFollowUps]
	}
	return append([]string(nil), catalog...)
}

// Context returns a copy of the rolling conversation context.
func (s *ClassifierService) Context() []models.ContextEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ContextEntry(nil), s.context...)
}

// ClearContext drops the rolling conversation context.
func (s *ClassifierService) ClearContext() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.context = nil
}

func (s *ClassifierService) remember(query string, intent models.QueryIntent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.context = append(s.context, models.ContextEntry{
		Query:     query,
		Intent:    intent,
		Timestamp: s.now().UTC(),
	})
	if len(s.context) > contextDepth {
		s.context = s.context[len(s.context)-contextDepth:]
	}
}

// extractDimensionFilters pulls grade, class section and region values out
// of normalized text. A dimension without a match stays unset.
func (s *ClassifierService) extractDimensionFilters(normalized string) map[models.Dimension]string {
	filters := make(map[models.Dimension]string)

	for _, pattern := range gradePatterns {
		if m := pattern.FindStringSubmatch(normalized); m != nil {
			filters[models.DimensionGrade] = "Grade " + m[1]
			break
		}
	}

	for _, pattern := range classPatterns {
		if m := pattern.FindStringSubmatch(normalized); m != nil {
			filters[models.DimensionClass] = strings.ToUpper(m[1])
			break
		}
	}

	for _, region := range regionVocabulary {
		if strings.Contains(normalized, region) {
			filters[models.DimensionRegion] = strings.ToUpper(region[:1]) + region[1:]
			break
		}
	}

	return filters
}

// extractTimeWindow resolves the fixed time phrases into a concrete window.
func (s *ClassifierService) extractTimeWindow(normalized string) *models.TimeWindow {
	now := s.now()

	if containsAny(normalized, lastWeekPhrases) {
		return &models.TimeWindow{Start: dateOnly(now.AddDate(0, 0, -7)), End: dateOnly(now)}
	}
	if containsAny(normalized, thisWeekPhrases) {
		// Monday-aligned seven day window.
		offset := (int(now.Weekday()) + 6) % 7
		start := dateOnly(now.AddDate(0, 0, -offset))
		return &models.TimeWindow{Start: start, End: start.AddDate(0, 0, 6)}
	}
	if containsAny(normalized, lastMonthPhrases) {
		return &models.TimeWindow{Start: dateOnly(now.AddDate(0, 0, -30)), End: dateOnly(now)}
	}
	return nil
}

func applyCategory(intent *models.QueryIntent, category ruleCategory) {
	switch category {
	case categoryHomeworkMissing:
		intent.Action = models.ActionFind
		intent.Entity = models.EntityStudents
		intent.Conditions = []models.Condition{models.ConditionHomeworkNotSubmitted}
	case categoryGradeClass:
		intent.Action = models.ActionList
		intent.Entity = models.EntityStudents
	case categoryQuizPerformance:
		intent.Action = models.ActionShow
		intent.Entity = models.EntityQuizPerformance
	case categoryUpcomingQuizzes:
		intent.Action = models.ActionList
		intent.Entity = models.EntityUpcomingQuizzes
	case categoryPerformanceData:
		intent.Action = models.ActionShow
		intent.Entity = models.EntityPerformance
	case categoryTopPerformers:
		intent.Action = models.ActionFind
		intent.Entity = models.EntityStudents
		intent.Conditions = []models.Condition{models.ConditionTopPerformers}
		intent.SortBy = models.ColQuizScore
		intent.Limit = 10
	case categoryPoorPerformers:
		intent.Action = models.ActionFind
		intent.Entity = models.EntityStudents
		intent.Conditions = []models.Condition{models.ConditionPoorPerformers}
		intent.SortBy = models.ColQuizScore
		intent.Limit = 10
	}
}

func compileAll(patterns ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		compiled[i] = regexp.MustCompile(p)
	}
	return compiled
}

func matchesAny(patterns []*regexp.Regexp, text string) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

func containsAny(text string, phrases []string) bool {
	for _, phrase := range phrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
