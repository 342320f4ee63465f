package ingestion

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	v1 "github.com/linepulse-lab/linepulse/internal/api/v1"
	httperr "github.com/linepulse-lab/linepulse/internal/core/errors"
	"github.com/linepulse-lab/linepulse/internal/core/storage"
)

const (
	msgReadBodyFailed = "Failed to read request body"
	msgInvalidJSON    = "Invalid JSON body"
	msgPersistFailed  = "Failed to persist readings"
)

// ingestionError carries the structured HTTP error shape from a helper back to the orchestrator.
// Helpers return this instead of writing to gin.Context directly, keeping them decoupled from HTTP.
type ingestionError struct {
	statusCode int
	errorType  string
	message    string
	details    interface{}
}

func (e *ingestionError) Error() string {
	return e.message
}

// rejectedReading identifies one malformed row in a batch response.
type rejectedReading struct {
	Index     int    `json:"index"`
	StationID int    `json:"station_id,omitempty"`
	Reason    string `json:"reason"`
}

// CycleTimesHandler accepts a batch of cycle-time readings. Malformed rows
// are rejected individually; valid rows in the same batch are still stored.
// A reading without its own target gets the configured station target.
func (s *Service) CycleTimesHandler(c *gin.Context) {
	var batch []v1.CycleTimeReading
	if ierr := s.bindBatch(c, &batch); ierr != nil {
		writeError(c, ierr)
		return
	}

	cfg := s.line.Current()
	accepted := make([]v1.CycleTimeReading, 0, len(batch))
	var rejected []rejectedReading

	for i := range batch {
		r := batch[i]
		if err := r.Validate(); err != nil {
			rejected = append(rejected, rejectedReading{Index: i, StationID: r.StationID, Reason: err.Error()})
			continue
		}
		if r.TargetSeconds == 0 {
			target := cfg.TargetFor(r.StationID)
			if target <= 0 {
				rejected = append(rejected, rejectedReading{
					Index:     i,
					StationID: r.StationID,
					Reason:    "no target reported and station has no configured target",
				})
				continue
			}
			r.TargetSeconds = target
		}
		accepted = append(accepted, r)
	}

	if len(accepted) > 0 {
		if err := s.store.SaveCycleTimes(c.Request.Context(), accepted); err != nil {
			slog.Error("[Ingestion] Failed to persist cycle times", "error", err, "count", len(accepted))
			writeError(c, &ingestionError{
				statusCode: http.StatusInternalServerError,
				errorType:  httperr.HttpInternalError,
				message:    msgPersistFailed,
			})
			return
		}
	}

	respondBatch(c, len(accepted), rejected)
}

// AvailabilityHandler accepts a batch of availability readings.
func (s *Service) AvailabilityHandler(c *gin.Context) {
	var batch []v1.AvailabilityReading
	if ierr := s.bindBatch(c, &batch); ierr != nil {
		writeError(c, ierr)
		return
	}

	accepted := make([]v1.AvailabilityReading, 0, len(batch))
	var rejected []rejectedReading

	for i := range batch {
		r := batch[i]
		if err := r.Validate(); err != nil {
			rejected = append(rejected, rejectedReading{Index: i, StationID: r.StationID, Reason: err.Error()})
			continue
		}
		accepted = append(accepted, r)
	}

	if len(accepted) > 0 {
		if err := s.store.SaveAvailability(c.Request.Context(), accepted); err != nil {
			slog.Error("[Ingestion] Failed to persist availability readings", "error", err, "count", len(accepted))
			writeError(c, &ingestionError{
				statusCode: http.StatusInternalServerError,
				errorType:  httperr.HttpInternalError,
				message:    msgPersistFailed,
			})
			return
		}
	}

	respondBatch(c, len(accepted), rejected)
}

// QualityHandler accepts one cumulative quality-counter snapshot. The upsert
// is last-write-wins by snapshot time under a per-key lock: a snapshot older
// than the stored row is acknowledged but ignored, so retries and
// out-of-order delivery stay idempotent.
func (s *Service) QualityHandler(c *gin.Context) {
	var snap v1.QualitySnapshot
	if ierr := s.bindBatch(c, &snap); ierr != nil {
		writeError(c, ierr)
		return
	}

	if err := snap.Validate(); err != nil {
		writeError(c, &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpMalformedReadingError,
			message:    err.Error(),
		})
		return
	}

	key := snap.Key()
	lock := s.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	ctx := c.Request.Context()
	current, err := s.store.GetQualitySnapshot(ctx, key)
	if err != nil && !errors.Is(err, storage.ErrNoData) {
		slog.Error("[Ingestion] Failed to read quality snapshot", "error", err,
			"shift_number", key.ShiftNumber, "hour_index", key.HourIndex)
		writeError(c, &ingestionError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgPersistFailed,
		})
		return
	}

	if current != nil && current.Time.After(snap.Time) {
		slog.Info("[Ingestion] Ignoring stale quality snapshot",
			"shift_number", key.ShiftNumber,
			"hour_index", key.HourIndex,
			"snapshot_time", snap.Time,
			"stored_time", current.Time,
		)
		c.JSON(http.StatusOK, gin.H{"status": "stale_ignored"})
		return
	}

	if err := s.store.PutQualitySnapshot(ctx, &snap); err != nil {
		slog.Error("[Ingestion] Failed to persist quality snapshot", "error", err,
			"shift_number", key.ShiftNumber, "hour_index", key.HourIndex)
		writeError(c, &ingestionError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgPersistFailed,
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// ConnectionEventsHandler appends acquisition-link diagnostic events.
// Each event gets a server-side UUID.
func (s *Service) ConnectionEventsHandler(c *gin.Context) {
	var batch []v1.ConnectionEvent
	if ierr := s.bindBatch(c, &batch); ierr != nil {
		writeError(c, ierr)
		return
	}

	var rejected []rejectedReading
	stored := 0
	for i := range batch {
		evt := batch[i]
		if err := evt.Validate(); err != nil {
			rejected = append(rejected, rejectedReading{Index: i, Reason: err.Error()})
			continue
		}
		evt.ID = uuid.NewString()
		if err := s.store.SaveConnectionEvent(c.Request.Context(), &evt); err != nil {
			slog.Error("[Ingestion] Failed to persist connection event", "error", err, "endpoint", evt.Endpoint)
			writeError(c, &ingestionError{
				statusCode: http.StatusInternalServerError,
				errorType:  httperr.HttpInternalError,
				message:    msgPersistFailed,
			})
			return
		}
		stored++
	}

	respondBatch(c, stored, rejected)
}

// BreakStartHandler records a stoppage detected by the external freeze
// detector and returns the assigned break id.
func (s *Service) BreakStartHandler(c *gin.Context) {
	var rec v1.BreakRecord
	if ierr := s.bindBatch(c, &rec); ierr != nil {
		writeError(c, ierr)
		return
	}

	if err := rec.Validate(); err != nil {
		writeError(c, &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpMalformedReadingError,
			message:    err.Error(),
		})
		return
	}

	id, err := s.breakStore.SaveBreak(c.Request.Context(), &rec)
	if err != nil {
		slog.Error("[Ingestion] Failed to persist break", "error", err, "shift_number", rec.ShiftNumber)
		writeError(c, &ingestionError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgPersistFailed,
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// BreakEndHandler closes an open break; duration is derived from the stored
// start time.
func (s *Service) BreakEndHandler(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(c, &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidQueryError,
			message:    "break id must be a positive integer",
		})
		return
	}

	var body struct {
		EndTime time.Time `json:"end_time"`
	}
	if ierr := s.bindBatch(c, &body); ierr != nil {
		writeError(c, ierr)
		return
	}
	if body.EndTime.IsZero() {
		writeError(c, &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpMalformedReadingError,
			message:    "end_time is required",
		})
		return
	}

	if err := s.breakStore.CloseBreak(c.Request.Context(), id, body.EndTime); err != nil {
		if errors.Is(err, storage.ErrNoData) {
			writeError(c, &ingestionError{
				statusCode: http.StatusNotFound,
				errorType:  httperr.HttpNoDataError,
				message:    "no open break with that id",
			})
			return
		}
		slog.Error("[Ingestion] Failed to close break", "error", err, "break_id", id)
		writeError(c, &ingestionError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgPersistFailed,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "closed"})
}

// bindBatch reads the size-limited request body and binds it into target.
func (s *Service) bindBatch(c *gin.Context, target interface{}) *ingestionError {
	// Enforce maximum body size to prevent OOM from oversized batches
	maxBytes := int64(s.maxBodySizeBytes)
	limitedBody := io.LimitReader(c.Request.Body, maxBytes+1) // +1 to detect oversized requests

	bodyBytes, err := io.ReadAll(limitedBody)
	if err != nil {
		slog.Error("[Ingestion] Failed to read request body", "error", err)
		return &ingestionError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgReadBodyFailed,
		}
	}

	if int64(len(bodyBytes)) > maxBytes {
		slog.Warn("[Ingestion] Request body exceeds maximum size", "size", len(bodyBytes), "max", maxBytes)
		return &ingestionError{
			statusCode: http.StatusRequestEntityTooLarge,
			errorType:  httperr.HttpInvalidJsonError,
			message:    "Request body exceeds maximum allowed size",
			details: map[string]interface{}{
				"max_size_mb": maxBytes / (1024 * 1024),
			},
		}
	}

	c.Request.Body = io.NopCloser(bytes.NewReader(bodyBytes))

	if err := c.ShouldBindJSON(target); err != nil {
		slog.Warn("[Ingestion] Invalid JSON body received", "error", err, "payload_size", len(bodyBytes))
		return &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidJsonError,
			message:    msgInvalidJSON,
		}
	}

	return nil
}

// respondBatch reports per-item outcomes. Any rejected row makes the whole
// response a 400 so collectors notice, but accepted rows are already stored.
func respondBatch(c *gin.Context, accepted int, rejected []rejectedReading) {
	if len(rejected) > 0 {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpMalformedReadingError,
			Message:   "batch contained malformed readings",
			Details: map[string]interface{}{
				"accepted": accepted,
				"rejected": rejected,
			},
		})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "count": accepted})
}

// writeError serializes an ingestionError as the JSON HTTP response.
func writeError(c *gin.Context, err *ingestionError) {
	c.JSON(err.statusCode, httperr.ErrorResponse{
		ErrorType: err.errorType,
		Message:   err.message,
		Details:   err.details,
	})
}
