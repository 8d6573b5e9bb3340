package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edusight/edusight-api/internal/dto"
	"github.com/edusight/edusight-api/internal/middleware"
	"github.com/edusight/edusight-api/internal/service"
	appErrors "github.com/edusight/edusight-api/pkg/errors"
	"github.com/edusight/edusight-api/pkg/response"
)

// QueryHandler wires HTTP endpoints to the natural-language query engine.
type QueryHandler struct {
	queries    *service.QueryService
	classifier *service.ClassifierService
}

// NewQueryHandler creates a new handler.
func NewQueryHandler(queries *service.QueryService, classifier *service.ClassifierService) *QueryHandler {
	return &QueryHandler{queries: queries, classifier: classifier}
}

// Execute godoc
// @Summary Run a natural-language query
// @Description Classifies the question and returns scope-filtered records with a summary
// @Tags Query
// @Accept json
// @Produce json
// @Param payload body dto.QueryRequest true "Query payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /query [post]
func (h *QueryHandler) Execute(c *gin.Context) {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query payload"))
		return
	}

	result := h.queries.Execute(claims.Username, req.Query)
	res := dto.QueryResponse{Result: result}
	if result.Intent != nil {
		res.FollowUps = h.queries.FollowUps(*result.Intent)
	}

	response.JSON(c, http.StatusOK, res)
}

// Suggestions godoc
// @Summary Suggest example queries
// @Description Returns example questions matching the partial input
// @Tags Query
// @Produce json
// @Param q query string false "Partial query text"
// @Success 200 {object} response.Envelope
// @Router /query/suggestions [get]
func (h *QueryHandler) Suggestions(c *gin.Context) {
	partial := c.Query("q")
	response.JSON(c, http.StatusOK, dto.SuggestionsResponse{
		Suggestions: h.classifier.Suggest(partial),
	})
}

// Context godoc
// @Summary Get conversation context
// @Description Returns the rolling window of recently classified queries
// @Tags Query
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /query/context [get]
func (h *QueryHandler) Context(c *gin.Context) {
	response.JSON(c, http.StatusOK, dto.ContextResponse{
		Context: h.classifier.Context(),
	})
}

// ClearContext godoc
// @Summary Clear conversation context
// @Description Drops the rolling window of recently classified queries
// @Tags Query
// @Success 204 {object} response.Envelope
// @Router /query/context [delete]
func (h *QueryHandler) ClearContext(c *gin.Context) {
	h.classifier.ClearContext()
	response.NoContent(c)
}
