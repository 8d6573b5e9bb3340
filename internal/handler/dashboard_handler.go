package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/edusight/edusight-api/internal/dto"
	"github.com/edusight/edusight-api/internal/middleware"
	"github.com/edusight/edusight-api/internal/models"
	"github.com/edusight/edusight-api/internal/service"
	appErrors "github.com/edusight/edusight-api/pkg/errors"
	"github.com/edusight/edusight-api/pkg/response"
)

type snapshotReloader interface {
	Reload() (*models.Snapshot, error)
}

// DashboardHandler serves the overview metrics and the snapshot admin ops.
type DashboardHandler struct {
	dashboard *service.DashboardService
	snapshots snapshotReloader
	cache     *service.CacheService
	logger    *zap.Logger
}

// NewDashboardHandler creates a new handler.
func NewDashboardHandler(dashboard *service.DashboardService, snapshots snapshotReloader, cache *service.CacheService, logger *zap.Logger) *DashboardHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardHandler{dashboard: dashboard, snapshots: snapshots, cache: cache, logger: logger}
}

// Overview godoc
// @Summary Dashboard metrics
// @Description Returns scope-filtered overview metrics for the authenticated account
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Overview(c *gin.Context) {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	metrics, cached, err := h.dashboard.Snapshot(c.Request.Context(), claims.Username)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, dto.DashboardResponse{Metrics: metrics}, map[string]interface{}{
		"cache_hit": cached,
	})
}

// ReloadSnapshot godoc
// @Summary Reload data snapshot
// @Description Rebuilds the in-memory snapshot from the configured source and drops cached dashboards
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/snapshot/reload [post]
func (h *DashboardHandler) ReloadSnapshot(c *gin.Context) {
	snap, err := h.snapshots.Reload()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "snapshot reload failed"))
		return
	}

	if h.cache != nil {
		if err := h.cache.Invalidate(c.Request.Context(), "dash:*"); err != nil {
			h.logger.Warn("dashboard cache invalidation failed", zap.Error(err))
		}
	}

	response.JSON(c, http.StatusOK, dto.ReloadResponse{
		ActivityRows:     len(snap.Activity),
		QuizScheduleRows: len(snap.QuizSchedule),
		LoadedAt:         snap.LoadedAt.Format("2006-01-02 15:04:05"),
	})
}
