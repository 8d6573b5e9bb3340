package dto

import "github.com/edusight/edusight-api/internal/models"

// QueryRequest carries a free-text question.
type QueryRequest struct {
	Query string `json:"query" validate:"required,max=512"`
}

// QueryResponse wraps the query result together with follow-up suggestions.
type QueryResponse struct {
	Result    *models.QueryResult `json:"result"`
	FollowUps []string            `json:"follow_up_questions,omitempty"`
}

// SuggestionsResponse lists example queries for a partial input.
type SuggestionsResponse struct {
	Suggestions []string `json:"suggestions"`
}

// ContextResponse exposes the rolling conversation context.
type ContextResponse struct {
	Context []models.ContextEntry `json:"context"`
}

// ExportRequest asks for a rendered export of a query's result.
type ExportRequest struct {
	Query  string `json:"query" validate:"required,max=512"`
	Format string `json:"format" validate:"required,oneof=csv pdf"`
}

// ExportResponse describes a generated export file.
type ExportResponse struct {
	Filename      string `json:"filename"`
	Format        string `json:"format"`
	Records       int    `json:"records"`
	DownloadToken string `json:"download_token"`
}
