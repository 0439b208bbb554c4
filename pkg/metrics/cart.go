package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// CartMetrics counts cart mutations and guest-to-user merges.
type CartMetrics struct {
	operations *prometheus.CounterVec
	merges     *prometheus.CounterVec
}

// NewCartMetrics registers the cart collectors on reg. A nil registerer yields
// a recorder that drops every observation.
func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_operations_total",
		Help: "Cart operations partitioned by operation and outcome.",
	}, []string{"op", "outcome"})
	merges := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_merges_total",
		Help: "Guest cart merges partitioned by the path taken.",
	}, []string{"path"})
	reg.MustRegister(operations, merges)
	return &CartMetrics{operations: operations, merges: merges}
}

// ObserveOperation records the outcome of a cart operation.
func (c *CartMetrics) ObserveOperation(op string, err error) {
	if c == nil || c.operations == nil {
		return
	}
	c.operations.WithLabelValues(normalizeLabel(op), outcomeOf(err)).Inc()
}

// IncMerge records a merge that completed through path.
func (c *CartMetrics) IncMerge(path string) {
	if c == nil || c.merges == nil {
		return
	}
	c.merges.WithLabelValues(normalizeLabel(path)).Inc()
}
