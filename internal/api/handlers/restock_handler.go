package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/andresuchdata/restockplan/internal/domain"
	"github.com/andresuchdata/restockplan/internal/repository"
	"github.com/andresuchdata/restockplan/internal/service"
	"github.com/andresuchdata/restockplan/pkg/logger"
	"github.com/gin-gonic/gin"
)

type RestockHandler struct {
	service *service.QueryService
}

func NewRestockHandler(service *service.QueryService) *RestockHandler {
	return &RestockHandler{service: service}
}

// parseFilter accepts ?code=A&code=B as well as ?code=A,B.
func (h *RestockHandler) parseFilter(c *gin.Context) domain.EvaluationFilter {
	filter := domain.EvaluationFilter{
		Type: strings.TrimSpace(c.Query("type")),
		ABC:  strings.TrimSpace(c.Query("abc")),
		XYZ:  strings.TrimSpace(c.Query("xyz")),
	}
	for _, v := range c.QueryArray("code") {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				filter.Codes = append(filter.Codes, p)
			}
		}
	}
	return filter
}

func (h *RestockHandler) ListEvaluations(c *gin.Context) {
	evals, err := h.service.ListEvaluations(c.Request.Context(), h.parseFilter(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": evals, "count": len(evals)})
}

func (h *RestockHandler) GetEvaluation(c *gin.Context) {
	ev, err := h.service.GetEvaluation(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": ev})
}

func (h *RestockHandler) ListBranches(c *gin.Context) {
	reports, err := h.service.ListBranches(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": reports, "count": len(reports)})
}

func (h *RestockHandler) GetRequests(c *gin.Context) {
	lines, err := h.service.GetRequests(c.Request.Context(), c.Param("group"), c.Query("priority"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": lines, "count": len(lines)})
}

func (h *RestockHandler) GetCapacity(c *gin.Context) {
	rep, err := h.service.GetCapacity(c.Request.Context(), c.Param("group"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rep})
}

func (h *RestockHandler) ListRuns(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}
	runs, err := h.service.ListRuns(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": runs, "count": len(runs)})
}

func (h *RestockHandler) GetRun(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
		return
	}
	run, err := h.service.GetRun(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": run})
}

func (h *RestockHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, service.ErrInvalidPriority):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logger.Log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
