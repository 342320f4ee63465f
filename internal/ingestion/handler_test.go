package ingestion

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	v1 "github.com/linepulse-lab/linepulse/internal/api/v1"
	"github.com/linepulse-lab/linepulse/internal/core/breaks"
	"github.com/linepulse-lab/linepulse/internal/core/line"
	"github.com/linepulse-lab/linepulse/internal/core/storage"
)

type fakeStore struct {
	cycleTimes   []v1.CycleTimeReading
	availability []v1.AvailabilityReading
	snapshots    map[v1.QualityKey]*v1.QualitySnapshot
	events       []v1.ConnectionEvent

	breakRecords []v1.BreakRecord
	closedBreaks map[int64]time.Time
	nextBreakID  int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		snapshots:    make(map[v1.QualityKey]*v1.QualitySnapshot),
		closedBreaks: make(map[int64]time.Time),
		nextBreakID:  1,
	}
}

func (f *fakeStore) SaveCycleTimes(_ context.Context, readings []v1.CycleTimeReading) error {
	f.cycleTimes = append(f.cycleTimes, readings...)
	return nil
}

func (f *fakeStore) SaveAvailability(_ context.Context, readings []v1.AvailabilityReading) error {
	f.availability = append(f.availability, readings...)
	return nil
}

func (f *fakeStore) GetQualitySnapshot(_ context.Context, key v1.QualityKey) (*v1.QualitySnapshot, error) {
	snap, ok := f.snapshots[key]
	if !ok {
		return nil, storage.ErrNoData
	}
	return snap, nil
}

func (f *fakeStore) PutQualitySnapshot(_ context.Context, snap *v1.QualitySnapshot) error {
	f.snapshots[snap.Key()] = snap
	return nil
}

func (f *fakeStore) SaveConnectionEvent(_ context.Context, event *v1.ConnectionEvent) error {
	f.events = append(f.events, *event)
	return nil
}

func (f *fakeStore) RetrieveCycleTimes(context.Context, time.Time, time.Time, []int) ([]v1.CycleTimeReading, error) {
	return f.cycleTimes, nil
}

func (f *fakeStore) RetrieveAvailability(context.Context, time.Time, time.Time, []int) ([]v1.AvailabilityReading, error) {
	return f.availability, nil
}

func (f *fakeStore) QualityTotalsInRange(context.Context, time.Time, time.Time) (storage.QualityTotals, error) {
	return storage.QualityTotals{}, nil
}

func (f *fakeStore) SaveBreak(_ context.Context, b *v1.BreakRecord) (int64, error) {
	id := f.nextBreakID
	f.nextBreakID++
	rec := *b
	rec.ID = id
	f.breakRecords = append(f.breakRecords, rec)
	return id, nil
}

func (f *fakeStore) CloseBreak(_ context.Context, id int64, end time.Time) error {
	for _, rec := range f.breakRecords {
		if rec.ID == id {
			f.closedBreaks[id] = end
			return nil
		}
	}
	return storage.ErrNoData
}

func (f *fakeStore) RetrieveBreaks(context.Context, time.Time, time.Time, int) ([]breaks.ActualBreak, error) {
	return nil, nil
}

func testLine(t *testing.T) *line.Holder {
	t.Helper()
	l, err := line.NewLine([]line.Station{
		{ID: 1, Name: "Press", TargetCycleSeconds: 17},
		{ID: 2, Name: "Weld", TargetCycleSeconds: 20},
	}, nil)
	require.NoError(t, err)
	return line.NewHolder(l)
}

func newTestRouter(t *testing.T, store *fakeStore) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := NewService(store, store, testLine(t), 1)
	router := gin.New()
	svc.RegisterRoutes(router)
	return router
}

func postJSON(t *testing.T, router *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCycleTimesHandler(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	t.Run("valid batch accepted", func(t *testing.T) {
		store := newFakeStore()
		router := newTestRouter(t, store)

		rec := postJSON(t, router, "/v1/readings/cycle-times", []v1.CycleTimeReading{
			{Time: now, StationID: 1, ActualSeconds: 17.2, TargetSeconds: 17},
			{Time: now, StationID: 2, ActualSeconds: 19.8, TargetSeconds: 20},
		})

		require.Equal(t, http.StatusAccepted, rec.Code)
		require.Len(t, store.cycleTimes, 2)
	})

	t.Run("missing target substituted from line config", func(t *testing.T) {
		store := newFakeStore()
		router := newTestRouter(t, store)

		rec := postJSON(t, router, "/v1/readings/cycle-times", []v1.CycleTimeReading{
			{Time: now, StationID: 1, ActualSeconds: 16.5},
		})

		require.Equal(t, http.StatusAccepted, rec.Code)
		require.Len(t, store.cycleTimes, 1)
		require.InDelta(t, 17.0, store.cycleTimes[0].TargetSeconds, 1e-9)
	})

	t.Run("malformed rows rejected, valid rows kept", func(t *testing.T) {
		store := newFakeStore()
		router := newTestRouter(t, store)

		rec := postJSON(t, router, "/v1/readings/cycle-times", []v1.CycleTimeReading{
			{Time: now, StationID: 1, ActualSeconds: 17.2, TargetSeconds: 17},
			{Time: now, StationID: 1, ActualSeconds: -3, TargetSeconds: 17},
			{Time: now, StationID: 99, ActualSeconds: 18}, // unknown station, no target
		})

		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Len(t, store.cycleTimes, 1)

		var resp struct {
			ErrorType string `json:"error_type"`
			Details   struct {
				Accepted int               `json:"accepted"`
				Rejected []rejectedReading `json:"rejected"`
			} `json:"details"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, "malformed_reading", resp.ErrorType)
		require.Equal(t, 1, resp.Details.Accepted)
		require.Len(t, resp.Details.Rejected, 2)
		require.Equal(t, 1, resp.Details.Rejected[0].Index)
		require.Equal(t, 99, resp.Details.Rejected[1].StationID)
	})

	t.Run("invalid json", func(t *testing.T) {
		store := newFakeStore()
		router := newTestRouter(t, store)

		req := httptest.NewRequest(http.MethodPost, "/v1/readings/cycle-times", bytes.NewReader([]byte("{not json")))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Empty(t, store.cycleTimes)
	})
}

func TestAvailabilityHandler(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	fault := 42.0

	store := newFakeStore()
	router := newTestRouter(t, store)

	rec := postJSON(t, router, "/v1/readings/availability", []v1.AvailabilityReading{
		{Time: now, StationID: 1, AvailabilityPct: 95.5, FaultSeconds: &fault},
		{Time: now, StationID: 1, AvailabilityPct: 130},
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Len(t, store.availability, 1)
	require.InDelta(t, 95.5, store.availability[0].AvailabilityPct, 1e-9)
}

func TestQualityHandler_LastWriteWins(t *testing.T) {
	early := time.Date(2026, 3, 2, 8, 10, 0, 0, time.UTC)
	late := early.Add(5 * time.Minute)

	store := newFakeStore()
	router := newTestRouter(t, store)

	key := v1.QualityKey{ShiftNumber: 1, HourIndex: 2}

	t.Run("first snapshot stored", func(t *testing.T) {
		rec := postJSON(t, router, "/v1/readings/quality", v1.QualitySnapshot{
			Time: late, ShiftNumber: 1, HourIndex: 2, GoodParts: 120, RejectParts: 4,
		})
		require.Equal(t, http.StatusAccepted, rec.Code)
		require.Equal(t, 120, store.snapshots[key].GoodParts)
	})

	t.Run("stale snapshot acknowledged but ignored", func(t *testing.T) {
		rec := postJSON(t, router, "/v1/readings/quality", v1.QualitySnapshot{
			Time: early, ShiftNumber: 1, HourIndex: 2, GoodParts: 80,
		})
		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Body.String(), "stale_ignored")
		require.Equal(t, 120, store.snapshots[key].GoodParts)
	})

	t.Run("newer snapshot replaces", func(t *testing.T) {
		rec := postJSON(t, router, "/v1/readings/quality", v1.QualitySnapshot{
			Time: late.Add(time.Minute), ShiftNumber: 1, HourIndex: 2, GoodParts: 150,
		})
		require.Equal(t, http.StatusAccepted, rec.Code)
		require.Equal(t, 150, store.snapshots[key].GoodParts)
	})

	t.Run("invalid key rejected", func(t *testing.T) {
		rec := postJSON(t, router, "/v1/readings/quality", v1.QualitySnapshot{
			Time: late, ShiftNumber: 4, HourIndex: 2,
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestConnectionEventsHandler_AssignsIDs(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	store := newFakeStore()
	router := newTestRouter(t, store)

	rec := postJSON(t, router, "/v1/readings/connection-events", []v1.ConnectionEvent{
		{Time: now, EventType: v1.ConnEventConnected, Endpoint: "opc.tcp://plc1:4840"},
		{Time: now.Add(time.Minute), EventType: v1.ConnEventDisconnected, Endpoint: "opc.tcp://plc1:4840"},
	})

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, store.events, 2)
	require.NotEmpty(t, store.events[0].ID)
	require.NotEqual(t, store.events[0].ID, store.events[1].ID)
}

func TestBreakHandlers(t *testing.T) {
	start := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	end := start.Add(12 * time.Minute)

	store := newFakeStore()
	router := newTestRouter(t, store)

	t.Run("start returns id", func(t *testing.T) {
		rec := postJSON(t, router, "/v1/breaks", v1.BreakRecord{
			StartTime: start, ShiftNumber: 1,
		})
		require.Equal(t, http.StatusCreated, rec.Code)

		var resp struct {
			ID int64 `json:"id"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, int64(1), resp.ID)
	})

	t.Run("end closes the break", func(t *testing.T) {
		rec := postJSON(t, router, "/v1/breaks/1/end", gin.H{"end_time": end})
		require.Equal(t, http.StatusOK, rec.Code)
		require.True(t, end.Equal(store.closedBreaks[1]))
	})

	t.Run("unknown id is 404", func(t *testing.T) {
		rec := postJSON(t, router, "/v1/breaks/42/end", gin.H{"end_time": end})
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("invalid shift rejected", func(t *testing.T) {
		rec := postJSON(t, router, "/v1/breaks", v1.BreakRecord{
			StartTime: start, ShiftNumber: 9,
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestOversizedBodyRejected(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(t, store)

	// 1MB limit; build a body just past it.
	big := bytes.Repeat([]byte("a"), 1024*1024+16)
	req := httptest.NewRequest(http.MethodPost, "/v1/readings/cycle-times", bytes.NewReader(big))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	require.Empty(t, store.cycleTimes)
}
