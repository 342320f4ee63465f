package ingestion

import (
	"sync"

	"github.com/gin-gonic/gin"

	v1 "github.com/linepulse-lab/linepulse/internal/api/v1"
	"github.com/linepulse-lab/linepulse/internal/core/line"
	"github.com/linepulse-lab/linepulse/internal/core/storage"
)

// Service accepts reading batches from the edge collector and break records
// from the external freeze detector. Quality snapshot upserts are serialized
// per (shift_number, hour_index) key so last-write-wins is decided under a
// lock, not by insert order.
type Service struct {
	store            storage.ReadingStore
	breakStore       storage.BreakStore
	line             *line.Holder
	maxBodySizeBytes int

	qualityMu    sync.Mutex
	qualityLocks map[v1.QualityKey]*sync.Mutex
}

func NewService(store storage.ReadingStore, breakStore storage.BreakStore, holder *line.Holder, maxBodySizeMB int) *Service {
	if store == nil {
		panic("ingestion: reading store must not be nil")
	}
	if breakStore == nil {
		panic("ingestion: break store must not be nil")
	}
	if holder == nil {
		panic("ingestion: line holder must not be nil")
	}
	if maxBodySizeMB <= 0 {
		maxBodySizeMB = 1 // default to 1MB
	}
	return &Service{
		store:            store,
		breakStore:       breakStore,
		line:             holder,
		maxBodySizeBytes: maxBodySizeMB * 1024 * 1024,
		qualityLocks:     make(map[v1.QualityKey]*sync.Mutex),
	}
}

// RegisterRoutes registers the ingestion service routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.POST("/v1/readings/cycle-times", s.CycleTimesHandler)
	r.POST("/v1/readings/availability", s.AvailabilityHandler)
	r.POST("/v1/readings/quality", s.QualityHandler)
	r.POST("/v1/readings/connection-events", s.ConnectionEventsHandler)

	r.POST("/v1/breaks", s.BreakStartHandler)
	r.POST("/v1/breaks/:id/end", s.BreakEndHandler)
}

// keyLock returns the mutex serializing upserts for one quality key. The set
// of keys is bounded (3 shifts x 8 hours), so entries are never evicted.
func (s *Service) keyLock(key v1.QualityKey) *sync.Mutex {
	s.qualityMu.Lock()
	defer s.qualityMu.Unlock()

	m, ok := s.qualityLocks[key]
	if !ok {
		m = &sync.Mutex{}
		s.qualityLocks[key] = m
	}
	return m
}
