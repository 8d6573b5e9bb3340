package dto

import "github.com/edusight/edusight-api/internal/models"

// DashboardResponse wraps the overview metrics payload.
type DashboardResponse struct {
	Metrics *models.DashboardMetrics `json:"metrics"`
}

// ReloadResponse reports the outcome of a snapshot reload.
type ReloadResponse struct {
	ActivityRows     int    `json:"activity_rows"`
	QuizScheduleRows int    `json:"quiz_schedule_rows"`
	LoadedAt         string `json:"loaded_at"`
}
