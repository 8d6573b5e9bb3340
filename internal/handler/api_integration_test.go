package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/edusight/edusight-api/internal/middleware"
	"github.com/edusight/edusight-api/internal/models"
	"github.com/edusight/edusight-api/internal/service"
)

func TestAPIRoutesIntegration(t *testing.T) {
	router := buildAPIRouter(t)

	superToken := loginFor(t, router, "super_admin", "admin123")
	northToken := loginFor(t, router, "north_admin", "north123")

	t.Run("login rejects bad credentials", func(t *testing.T) {
		body := bytes.NewBufferString(`{"username":"super_admin","password":"wrong"}`)
		req, _ := http.NewRequest(http.MethodPost, "/api/v1/auth/login", body)
		req.Header.Set("Content-Type", "application/json")
		resp := performRequest(router, req)
		require.Equal(t, http.StatusUnauthorized, resp.Code)
	})

	t.Run("query requires token", func(t *testing.T) {
		body := bytes.NewBufferString(`{"query":"Which students haven't submitted homework?"}`)
		req, _ := http.NewRequest(http.MethodPost, "/api/v1/query", body)
		req.Header.Set("Content-Type", "application/json")
		resp := performRequest(router, req)
		require.Equal(t, http.StatusUnauthorized, resp.Code)
	})

	t.Run("query success scoped to caller", func(t *testing.T) {
		body := bytes.NewBufferString(`{"query":"Which students haven't submitted homework?"}`)
		req, _ := http.NewRequest(http.MethodPost, "/api/v1/query", body)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+northToken)
		resp := performRequest(router, req)
		require.Equal(t, http.StatusOK, resp.Code)
		require.Contains(t, resp.Body.String(), `"status":"success"`)
		require.Contains(t, resp.Body.String(), "Aarav Sharma")
		require.NotContains(t, resp.Body.String(), "Maya Patel")
	})

	t.Run("suggestions", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/api/v1/query/suggestions?q=homework", nil)
		req.Header.Set("Authorization", "Bearer "+superToken)
		resp := performRequest(router, req)
		require.Equal(t, http.StatusOK, resp.Code)
		require.Contains(t, resp.Body.String(), "homework")
	})

	t.Run("me returns caller identity", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
		req.Header.Set("Authorization", "Bearer "+northToken)
		resp := performRequest(router, req)
		require.Equal(t, http.StatusOK, resp.Code)
		require.Contains(t, resp.Body.String(), `"username":"north_admin"`)
	})

	t.Run("accounts forbidden for scoped admin", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/api/v1/accounts", nil)
		req.Header.Set("Authorization", "Bearer "+northToken)
		resp := performRequest(router, req)
		require.Equal(t, http.StatusForbidden, resp.Code)
	})

	t.Run("accounts allowed for super admin", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/api/v1/accounts", nil)
		req.Header.Set("Authorization", "Bearer "+superToken)
		resp := performRequest(router, req)
		require.Equal(t, http.StatusOK, resp.Code)
		require.Contains(t, resp.Body.String(), "grade89_admin")
	})

	t.Run("clear context", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodDelete, "/api/v1/query/context", nil)
		req.Header.Set("Authorization", "Bearer "+superToken)
		resp := performRequest(router, req)
		require.Equal(t, http.StatusNoContent, resp.Code)
	})
}

func buildAPIRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	permission, err := service.NewPermissionService(nil)
	require.NoError(t, err)
	auth := service.NewAuthService(permission, validator.New(), nil, service.AuthConfig{
		Secret:     "integration-test-secret",
		Expiration: time.Hour,
		Issuer:     "edusight-test",
	})
	classifier := service.NewClassifierService(nil, 512)
	queries := service.NewQueryService(integrationSnapshots{}, permission, classifier, service.NewMetricsService(), nil, 100)

	authHandler := NewAuthHandler(auth, permission)
	queryHandler := NewQueryHandler(queries, classifier)

	router := gin.New()
	api := router.Group("/api/v1")
	api.POST("/auth/login", authHandler.Login)

	secured := api.Group("")
	secured.Use(middleware.JWT(auth))
	secured.GET("/auth/me", authHandler.Me)
	secured.GET("/accounts", middleware.RequireRoles(models.RoleSuperAdmin), authHandler.Accounts)
	secured.POST("/query", queryHandler.Execute)
	secured.GET("/query/suggestions", queryHandler.Suggestions)
	secured.GET("/query/context", queryHandler.Context)
	secured.DELETE("/query/context", queryHandler.ClearContext)

	return router
}

func loginFor(t *testing.T, router *gin.Engine, username, password string) string {
	t.Helper()
	payload, _ := json.Marshal(map[string]string{"username": username, "password": password})
	req, _ := http.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewBuffer(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := performRequest(router, req)
	require.Equal(t, http.StatusOK, resp.Code)

	var envelope struct {
		Data struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	require.NotEmpty(t, envelope.Data.AccessToken)
	return envelope.Data.AccessToken
}

func performRequest(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

type integrationSnapshots struct{}

func (integrationSnapshots) Current() *models.Snapshot {
	return &models.Snapshot{
		Activity: []models.ActivityRecord{
			{
				StudentID: "1001", StudentName: "Aarav Sharma", Grade: "Grade 8",
				ClassSection: "A", Region: "North", Subject: "Mathematics",
				HomeworkAssignment: "Math Chapter 5 Exercises", HomeworkSubmitted: "No",
				SubmissionDateRaw: models.SubmissionMissing,
				QuizTopic:         "Algebra Basics", QuizScoreRaw: "85",
				AttendancePct: 92,
			},
			{
				StudentID: "1002", StudentName: "Maya Patel", Grade: "Grade 6",
				ClassSection: "C", Region: "East", Subject: "English",
				HomeworkAssignment: "Essay Draft", HomeworkSubmitted: "No",
				SubmissionDateRaw: models.SubmissionMissing,
				QuizTopic:         "Grammar", QuizScoreRaw: "95",
				AttendancePct: 95,
			},
		},
		LoadedAt: time.Now(),
	}
}
