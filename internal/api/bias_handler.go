package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"biascope/adapters/stats/metrics"
	"biascope/app"
	"biascope/domain/bias"
	"biascope/domain/core"
	"biascope/domain/distribution"
	"biascope/domain/variable"
)

// EvaluationDefaults fills request fields the caller omits.
type EvaluationDefaults struct {
	Variables    []variable.Spec
	Selection    bias.MetricSelection
	Binning      distribution.BinningPolicy
	Aggregations []bias.AggregationSpec
}

// BiasHandler handles cohort and report requests
type BiasHandler struct {
	service  *app.BiasService
	defaults EvaluationDefaults
}

// NewBiasHandler creates a new bias handler
func NewBiasHandler(service *app.BiasService, defaults EvaluationDefaults) *BiasHandler {
	return &BiasHandler{service: service, defaults: defaults}
}

// CreateCohortRequest defines the cohort creation payload. The query must
// yield (person_id, cohort_start_date, cohort_end_date).
type CreateCohortRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Query       string `json:"query" binding:"required"`
	CreatedBy   string `json:"created_by"`
}

// CreateCohort materializes a cohort from a selection query
func (h *BiasHandler) CreateCohort(c *gin.Context) {
	var req CreateCohortRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.service.CreateCohort(c.Request.Context(), req.Name, req.Description, req.Query, req.CreatedBy)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// ListCohorts returns all cohort definitions, newest first
func (h *BiasHandler) ListCohorts(c *gin.Context) {
	defs, err := h.service.ListCohorts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cohorts": defs})
}

// GetCohort returns one cohort definition
func (h *BiasHandler) GetCohort(c *gin.Context) {
	id, err := core.ParseCohortID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cohort id"})
		return
	}

	def, err := h.service.GetCohort(c.Request.Context(), id)
	if err != nil {
		if core.IsNotFoundError(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "cohort not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, def)
}

// GetCohortStats returns membership window statistics for a cohort
func (h *BiasHandler) GetCohortStats(c *gin.Context) {
	id, err := core.ParseCohortID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cohort id"})
		return
	}

	stats, err := h.service.CohortStats(c.Request.Context(), id)
	if err != nil {
		if core.IsNotFoundError(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "cohort not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// EvaluateBiasRequest defines the report generation payload. Omitted
// fields fall back to the server's configured defaults.
type EvaluateBiasRequest struct {
	CohortID     string                      `json:"cohort_id" binding:"required"`
	ReferenceID  string                      `json:"reference_id"`
	Variables    []variable.Spec             `json:"variables"`
	Metrics      map[string][]string         `json:"metrics"`
	Binning      *distribution.BinningPolicy `json:"binning"`
	Aggregations []bias.AggregationSpec      `json:"aggregations"`
}

// EvaluateBias runs a bias evaluation and returns the report
func (h *BiasHandler) EvaluateBias(c *gin.Context) {
	var req EvaluateBiasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := core.ParseCohortID(req.CohortID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cohort id"})
		return
	}

	evalReq, err := h.buildEvaluation(id, &req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := h.service.EvaluateBias(c.Request.Context(), evalReq)
	if err != nil {
		h.writeEvaluationError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// CompareCohortsRequest names two cohorts to evaluate under identical
// configuration.
type CompareCohortsRequest struct {
	LeftID  string `json:"left_id" binding:"required"`
	RightID string `json:"right_id" binding:"required"`
	EvaluateBiasRequest
}

// CompareCohorts evaluates two cohorts against the same reference
func (h *BiasHandler) CompareCohorts(c *gin.Context) {
	var req CompareCohortsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	left, err := core.ParseCohortID(req.LeftID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid left cohort id"})
		return
	}
	right, err := core.ParseCohortID(req.RightID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid right cohort id"})
		return
	}

	evalReq, err := h.buildEvaluation(left, &req.EvaluateBiasRequest)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	comparison, err := h.service.CompareCohorts(c.Request.Context(), left, right, evalReq)
	if err != nil {
		h.writeEvaluationError(c, err)
		return
	}
	c.JSON(http.StatusOK, comparison)
}

// ListMetrics describes the available metrics and the default selection
func (h *BiasHandler) ListMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"metrics":           metrics.Names(),
		"default_selection": metrics.DefaultSelection(),
	})
}

// ListVariables returns the variable specs evaluated by default
func (h *BiasHandler) ListVariables(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"variables": h.defaults.Variables})
}

// buildEvaluation merges the request with the configured defaults.
func (h *BiasHandler) buildEvaluation(id core.CohortID, req *EvaluateBiasRequest) (app.EvaluationRequest, error) {
	out := app.EvaluationRequest{
		CohortID:     id,
		Variables:    h.defaults.Variables,
		Selection:    h.defaults.Selection,
		Binning:      h.defaults.Binning,
		Aggregations: h.defaults.Aggregations,
	}
	if req.ReferenceID != "" {
		refID, err := core.ParseCohortID(req.ReferenceID)
		if err != nil {
			return app.EvaluationRequest{}, err
		}
		out.ReferenceID = refID
	}
	if len(req.Variables) > 0 {
		out.Variables = req.Variables
	}
	if len(req.Metrics) > 0 {
		selection := make(bias.MetricSelection, len(req.Metrics))
		for t, names := range req.Metrics {
			selection[variable.VariableType(t)] = names
		}
		out.Selection = selection
	}
	if req.Binning != nil {
		if err := req.Binning.Validate(); err != nil {
			return app.EvaluationRequest{}, err
		}
		out.Binning = *req.Binning
	}
	if len(req.Aggregations) > 0 {
		out.Aggregations = req.Aggregations
	}
	if len(out.Aggregations) == 0 {
		out.Aggregations = []bias.AggregationSpec{{Method: bias.AggregateMean}}
	}
	return out, nil
}

// writeEvaluationError maps domain error classes to HTTP statuses.
func (h *BiasHandler) writeEvaluationError(c *gin.Context, err error) {
	switch {
	case core.IsNotFoundError(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case core.IsConfigurationError(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
