package projection

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/linepulse-lab/linepulse/internal/aggregation"
	httperr "github.com/linepulse-lab/linepulse/internal/core/errors"
	"github.com/linepulse-lab/linepulse/internal/core/storage"
	"github.com/linepulse-lab/linepulse/internal/retention"
)

// RegisterRoutes registers all projection API routes on the given router.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/aggregates", s.HandleAggregates)
	r.GET("/v1/oee/line", s.HandleLineOEE)
	r.GET("/v1/breaks/compliance", s.HandleBreakCompliance)

	r.GET("/v1/admin/retention/:table", s.HandleGetRetention)
	r.PUT("/v1/admin/retention/:table", s.HandlePutRetention)
}

type rangeQuery struct {
	From time.Time `form:"from" binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
	To   time.Time `form:"to" binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
}

// HandleAggregates handles GET /v1/aggregates
// Query parameters: from, to, bucket (duration), stations (comma-separated ids)
func (s *Service) HandleAggregates(c *gin.Context) {
	var query struct {
		rangeQuery
		Bucket   string `form:"bucket"`
		Stations string `form:"stations"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		writeQueryError(c, "Invalid query parameters", err)
		return
	}

	req := aggregation.Request{From: query.From, To: query.To}

	if query.Bucket != "" {
		width, err := parseDuration(query.Bucket)
		if err != nil {
			writeQueryError(c, "Invalid bucket width", err)
			return
		}
		req.BucketWidth = width
	}

	stationIDs, err := parseStationIDs(query.Stations)
	if err != nil {
		writeQueryError(c, "Invalid stations filter", err)
		return
	}
	req.StationIDs = stationIDs

	result, err := s.Aggregates(c.Request.Context(), req)
	if err != nil {
		writeServiceError(c, "Failed to query aggregates", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// HandleLineOEE handles GET /v1/oee/line
func (s *Service) HandleLineOEE(c *gin.Context) {
	var query rangeQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		writeQueryError(c, "Invalid query parameters", err)
		return
	}

	resp, err := s.LineOEE(c.Request.Context(), query.From, query.To)
	if err != nil {
		writeServiceError(c, "Failed to compute line OEE", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleBreakCompliance handles GET /v1/breaks/compliance
// Query parameters: from, to, shift (1-3, omitted = all shifts)
func (s *Service) HandleBreakCompliance(c *gin.Context) {
	var query struct {
		rangeQuery
		Shift int `form:"shift"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		writeQueryError(c, "Invalid query parameters", err)
		return
	}

	rows, err := s.BreakCompliance(c.Request.Context(), query.From, query.To, query.Shift)
	if err != nil {
		writeServiceError(c, "Failed to query break compliance", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"breaks": rows})
}

// retentionPolicyView is the wire shape of a policy; durations travel as
// strings ("7d", "168h") in both directions.
type retentionPolicyView struct {
	Table         string `json:"table"`
	CompressAfter string `json:"compress_after"`
	DeleteAfter   string `json:"delete_after"`
}

func viewOf(p retention.Policy) retentionPolicyView {
	return retentionPolicyView{
		Table:         p.Table,
		CompressAfter: p.CompressAfter.String(),
		DeleteAfter:   p.DeleteAfter.String(),
	}
}

// HandleGetRetention handles GET /v1/admin/retention/:table
func (s *Service) HandleGetRetention(c *gin.Context) {
	p, err := s.RetentionPolicy(c.Param("table"))
	if err != nil {
		writeServiceError(c, "Failed to read retention policy", err)
		return
	}
	c.JSON(http.StatusOK, viewOf(p))
}

// HandlePutRetention handles PUT /v1/admin/retention/:table
func (s *Service) HandlePutRetention(c *gin.Context) {
	var body struct {
		CompressAfter string `json:"compress_after" binding:"required"`
		DeleteAfter   string `json:"delete_after" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidJsonError,
			Message:   "Invalid retention policy body",
			Details:   err.Error(),
		})
		return
	}

	compressAfter, err := parseDuration(body.CompressAfter)
	if err != nil {
		writeQueryError(c, "Invalid compress_after", err)
		return
	}
	deleteAfter, err := parseDuration(body.DeleteAfter)
	if err != nil {
		writeQueryError(c, "Invalid delete_after", err)
		return
	}

	policy := retention.Policy{
		Table:         c.Param("table"),
		CompressAfter: compressAfter,
		DeleteAfter:   deleteAfter,
	}
	if err := s.SetRetentionPolicy(policy); err != nil {
		writeServiceError(c, "Failed to update retention policy", err)
		return
	}
	c.JSON(http.StatusOK, viewOf(policy))
}

// parseDuration accepts Go duration syntax plus "Xd" for days.
func parseDuration(s string) (time.Duration, error) {
	if len(s) > 1 && s[len(s)-1] == 'd' {
		var days int
		if _, err := fmt.Sscanf(s, "%dd", &days); err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		if days <= 0 {
			return 0, fmt.Errorf("duration must be positive, got %q", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return d, nil
}

func parseStationIDs(raw string) ([]int, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]int, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("station ids must be positive integers, got %q", p)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func writeQueryError(c *gin.Context, message string, err error) {
	c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
		ErrorType: httperr.HttpInvalidQueryError,
		Message:   message,
		Details:   err.Error(),
	})
}

// writeServiceError maps service-level failures onto the HTTP error shape.
// Caller deadlines surface as gateway timeouts; there is no internal retry.
func writeServiceError(c *gin.Context, message string, err error) {
	switch {
	case errors.Is(err, ErrInvalidQuery), errors.Is(err, aggregation.ErrInvalidQuery):
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidQueryError,
			Message:   message,
			Details:   err.Error(),
		})
	case errors.Is(err, retention.ErrInvalidPolicy):
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidPolicyError,
			Message:   message,
			Details:   err.Error(),
		})
	case errors.Is(err, storage.ErrNoData):
		c.JSON(http.StatusNotFound, httperr.ErrorResponse{
			ErrorType: httperr.HttpNoDataError,
			Message:   message,
			Details:   err.Error(),
		})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, httperr.ErrorResponse{
			ErrorType: httperr.HttpTimeoutError,
			Message:   message,
			Details:   err.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   message,
			Details:   err.Error(),
		})
	}
}
