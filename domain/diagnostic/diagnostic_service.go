// Package diagnostic reports the health of the gateway.
package diagnostic

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	customlog "github.com/open-teleop/scenebridge/pkg/log"
	"github.com/open-teleop/scenebridge/pkg/processing"
	"github.com/open-teleop/scenebridge/pkg/zeromq"
)

// PoolStats reports the state of the scene command pool
type PoolStats interface {
	GetName() string
	GetMetrics() processing.PoolMetrics
	GetQueueLength() int
	GetQueueCapacity() int
}

// Connection reports whether the middleware is reachable
type Connection interface {
	IsConnected() bool
}

// SceneStats reports per object statistics
type SceneStats interface {
	Stats() map[string]map[string]interface{}
}

// PoolStatus is a snapshot of the scene command pool
type PoolStatus struct {
	Name              string `json:"name"`
	QueueLength       int    `json:"queue_length"`
	QueueCapacity     int    `json:"queue_capacity"`
	ProcessedCount    int64  `json:"processed_count"`
	ErrorCount        int64  `json:"error_count"`
	DroppedCount      int64  `json:"dropped_count"`
	ProcessingTimeAvg int64  `json:"processing_time_avg_us"`
	ProcessingTimeMax int64  `json:"processing_time_max_us"`
}

// EventStatus counts scene events seen on the gateway stream
type EventStatus struct {
	Counts    map[string]int64 `json:"counts"`
	LastTopic string           `json:"last_topic,omitempty"`
	LastSeen  time.Time        `json:"last_seen,omitempty"`
}

// SystemMetrics represents gateway diagnostics information
type SystemMetrics struct {
	Timestamp          time.Time                         `json:"timestamp"`
	Uptime             string                            `json:"uptime"`
	RosbridgeConnected bool                              `json:"rosbridge_connected"`
	Pool               PoolStatus                        `json:"pool"`
	Objects            map[string]map[string]interface{} `json:"objects"`
	Events             EventStatus                       `json:"events"`
}

// DiagnosticService handles gateway diagnostics
type DiagnosticService struct {
	mu       sync.RWMutex
	started  time.Time
	pool     PoolStats
	conn     Connection
	scene    SceneStats
	events   EventStatus
	listener *zeromq.EventListener
	logger   customlog.Logger
}

// NewDiagnosticService creates a new diagnostic service instance
func NewDiagnosticService(pool PoolStats, conn Connection, scene SceneStats, logger customlog.Logger) *DiagnosticService {
	return &DiagnosticService{
		started: time.Now(),
		pool:    pool,
		conn:    conn,
		scene:   scene,
		events:  EventStatus{Counts: make(map[string]int64)},
		logger:  logger,
	}
}

// GetMetricsHandler handles API requests for gateway metrics
func (s *DiagnosticService) GetMetricsHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "success",
		"metrics": s.GetMetrics(),
	})
}

// GetMetrics returns the current gateway metrics
func (s *DiagnosticService) GetMetrics() SystemMetrics {
	m := SystemMetrics{
		Timestamp: time.Now(),
		Uptime:    time.Since(s.started).Round(time.Second).String(),
	}
	if s.conn != nil {
		m.RosbridgeConnected = s.conn.IsConnected()
	}
	if s.pool != nil {
		pm := s.pool.GetMetrics()
		m.Pool = PoolStatus{
			Name:              s.pool.GetName(),
			QueueLength:       s.pool.GetQueueLength(),
			QueueCapacity:     s.pool.GetQueueCapacity(),
			ProcessedCount:    pm.ProcessedCount,
			ErrorCount:        pm.ErrorCount,
			DroppedCount:      pm.DroppedCount,
			ProcessingTimeAvg: pm.ProcessingTimeAvg,
			ProcessingTimeMax: pm.ProcessingTimeMax,
		}
	}
	if s.scene != nil {
		m.Objects = s.scene.Stats()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	m.Events = EventStatus{
		Counts:    make(map[string]int64, len(s.events.Counts)),
		LastTopic: s.events.LastTopic,
		LastSeen:  s.events.LastSeen,
	}
	for topic, n := range s.events.Counts {
		m.Events.Counts[topic] = n
	}
	return m
}

// RecordEvent counts a scene event
func (s *DiagnosticService) RecordEvent(ev *zeromq.SceneEventMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events.Counts[ev.Topic]++
	s.events.LastTopic = ev.Topic
	s.events.LastSeen = time.Unix(0, ev.TimestampNs)
}

// StartEventListener subscribes to the scene events published at address
func (s *DiagnosticService) StartEventListener(address string) error {
	listener, err := zeromq.NewEventListener("scene.", s.RecordEvent, s.logger)
	if err != nil {
		return err
	}

	if err := listener.Start(address); err != nil {
		return err
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	return nil
}

// Stop stops the event listener
func (s *DiagnosticService) Stop() {
	s.mu.Lock()
	listener := s.listener
	s.listener = nil
	s.mu.Unlock()

	if listener != nil {
		listener.Stop()
	}
}
