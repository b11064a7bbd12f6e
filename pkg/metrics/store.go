package metrics

import "github.com/prometheus/client_golang/prometheus"

// EntityStoreMetrics counts entity store operations per record kind.
type EntityStoreMetrics struct {
	ops *prometheus.CounterVec
}

// NewEntityStoreMetrics registers the store counters on the provided registerer.
func NewEntityStoreMetrics(reg prometheus.Registerer) *EntityStoreMetrics {
	if reg == nil {
		return &EntityStoreMetrics{}
	}
	ops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "entity_store_ops_total",
		Help: "Entity store operations by op, kind and result.",
	}, []string{"op", "kind", "result"})
	reg.MustRegister(ops)
	return &EntityStoreMetrics{ops: ops}
}

// Observe counts one operation.
func (m *EntityStoreMetrics) Observe(op, kind string, err error) {
	if m == nil || m.ops == nil {
		return
	}
	m.ops.WithLabelValues(normalizeLabel(op), normalizeLabel(kind), resultLabel(err)).Inc()
}
