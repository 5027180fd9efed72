package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/vantageplatform/vantage-core/internal/errors"
	"github.com/vantageplatform/vantage-core/internal/types"
)

type telemetryEventRequest struct {
	Events []*types.TelemetryEvent `json:"events" binding:"required"`
}

// PostTelemetryEvent handles POST /telemetry/event: idempotent ingestion of
// a batch of telemetry events (spec.md §6).
func (s *Server) PostTelemetryEvent(c *gin.Context) {
	var req telemetryEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError(err.Error()))
		return
	}
	if s.Telemetry == nil {
		c.Error(apperrors.NewUpstreamUnavailableError("telemetry sink unavailable"))
		return
	}
	inserted, err := s.Telemetry.IngestEvents(c.Request.Context(), req.Events)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"inserted": inserted})
}

// GetMetricsTimeseries handles GET /metrics/timeseries: bucketed aggregates
// for a metric, optionally scoped to a subject (spec.md §6).
func (s *Server) GetMetricsTimeseries(c *gin.Context) {
	metricKey := c.Query("metric_key")
	subjectType := c.Query("subject_type")
	subjectID := c.Query("subject_id")
	bucket := c.Query("bucket")

	var from, to time.Time
	if v := c.Query("from"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.Error(apperrors.NewBadRequestError("from must be RFC3339"))
			return
		}
		from = parsed
	}
	if v := c.Query("to"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.Error(apperrors.NewBadRequestError("to must be RFC3339"))
			return
		}
		to = parsed
	}

	if s.Telemetry == nil {
		c.Error(apperrors.NewUpstreamUnavailableError("telemetry sink unavailable"))
		return
	}
	rows, err := s.Telemetry.Timeseries(c.Request.Context(), metricKey, subjectType, subjectID, from, to, bucket)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"buckets": rows})
}
