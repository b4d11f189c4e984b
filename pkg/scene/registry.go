package scene

import (
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	customlog "github.com/open-teleop/scenebridge/pkg/log"
	"github.com/open-teleop/scenebridge/pkg/msgs"
)

// ObjectInfo holds bookkeeping for a collision object in the scene
type ObjectInfo struct {
	ID            string `json:"id"`
	MeshCount     int    `json:"mesh_count"`
	Operations    int64  `json:"operations"`
	LastOperation string `json:"last_operation"`
	LastUpdated   int64  `json:"last_updated"`
}

// OperationName returns the lower case name of a collision object operation
func OperationName(op int8) string {
	switch op {
	case msgs.CollisionObjectAdd:
		return "add"
	case msgs.CollisionObjectRemove:
		return "remove"
	case msgs.CollisionObjectAppend:
		return "append"
	case msgs.CollisionObjectMove:
		return "move"
	default:
		return "unknown"
	}
}

// Registry tracks the collision objects this process has published
type Registry struct {
	logger  customlog.Logger
	objects map[string]*ObjectInfo
	mu      sync.RWMutex

	objectsGauge prometheus.Gauge
	opsCounter   *prometheus.CounterVec
}

// NewRegistry creates a new registry. A nil registerer keeps the collectors
// unregistered.
func NewRegistry(logger customlog.Logger, reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)
	return &Registry{
		logger:  logger,
		objects: make(map[string]*ObjectInfo),
		objectsGauge: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "scenebridge",
			Subsystem: "scene",
			Name:      "collision_objects",
			Help:      "Collision objects currently tracked in the planning scene.",
		}),
		opsCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scenebridge",
			Subsystem: "scene",
			Name:      "operations_total",
			Help:      "Collision object operations published, by operation.",
		}, []string{"operation"}),
	}
}

// Record applies an operation on id to the bookkeeping
func (r *Registry) Record(id string, op int8, meshCount int, timestamp int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.opsCounter.WithLabelValues(OperationName(op)).Inc()

	if op == msgs.CollisionObjectRemove {
		delete(r.objects, id)
		r.objectsGauge.Set(float64(len(r.objects)))
		r.logger.Debugf("Removed collision object '%s' from registry", id)
		return
	}

	info, exists := r.objects[id]
	if !exists {
		info = &ObjectInfo{ID: id}
		r.objects[id] = info
	}

	switch op {
	case msgs.CollisionObjectAdd:
		info.MeshCount = meshCount
	case msgs.CollisionObjectAppend:
		info.MeshCount += meshCount
	}
	info.Operations++
	info.LastOperation = OperationName(op)
	info.LastUpdated = timestamp

	r.objectsGauge.Set(float64(len(r.objects)))
}

// Get returns a copy of the information for id
func (r *Registry) Get(id string) (ObjectInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, exists := r.objects[id]
	if !exists {
		return ObjectInfo{}, false
	}
	return *info, true
}

// IDs returns the tracked object ids in sorted order
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.objects))
	for id := range r.objects {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Objects returns copies of all tracked objects sorted by id
func (r *Registry) Objects() []ObjectInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ObjectInfo, 0, len(r.objects))
	for _, info := range r.objects {
		out = append(out, *info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Stats returns a map of object statistics keyed by id
func (r *Registry) Stats() map[string]map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make(map[string]map[string]interface{}, len(r.objects))
	for id, info := range r.objects {
		stats[id] = map[string]interface{}{
			"mesh_count":     info.MeshCount,
			"operations":     info.Operations,
			"last_operation": info.LastOperation,
			"last_updated":   info.LastUpdated,
		}
	}
	return stats
}
