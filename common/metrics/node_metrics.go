package metrics

import (
	"net/http"

	"github.com/Scusemua/go-utils/config"
	"github.com/Scusemua/go-utils/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tklab-ds/distributed-scheduler/common/scheduling/resource"
)

const (
	// TotalView labels gauges carrying the node's advertised capacity.
	TotalView = "total"
	// AvailableView labels gauges carrying the node's available quantities.
	AvailableView = "available"
	// LoadView labels gauges carrying pending, unsatisfied demand.
	LoadView = "load"
	// NormalTasksView labels gauges carrying best-effort task usage.
	NormalTasksView = "normal_tasks"
)

// NodeMetricsManager exposes a node's resource books as Prometheus gauges.
// It is wired to an AllocationManager through the metrics callback: every
// mutation of the books refreshes the gauges with a fresh snapshot.
type NodeMetricsManager struct {
	log logger.Logger

	nodeId   string
	registry *prometheus.Registry

	// resourceGauges carries one gauge per (resource name, view) pair.
	resourceGauges *prometheus.GaugeVec

	// outstandingAssignmentsGauge counts tasks currently holding slots.
	outstandingAssignmentsGauge prometheus.Gauge
}

// NewNodeMetricsManager creates the gauge surface for the given node and
// registers it with a private registry.
func NewNodeMetricsManager(nodeId string) *NodeMetricsManager {
	manager := &NodeMetricsManager{
		nodeId:   nodeId,
		registry: prometheus.NewRegistry(),
		resourceGauges: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "scheduler",
			Subsystem: "node",
			Name:      "resource_quantity",
			Help:      "Per-resource quantities of the node's accounting views.",
		}, []string{"node_id", "resource", "view"}),
		outstandingAssignmentsGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "scheduler",
			Subsystem:   "node",
			Name:        "outstanding_assignments",
			Help:        "Number of tasks currently holding resource slots on the node.",
			ConstLabels: prometheus.Labels{"node_id": nodeId},
		}),
	}

	config.InitLogger(&manager.log, manager)

	manager.registry.MustRegister(manager.resourceGauges, manager.outstandingAssignmentsGauge)

	return manager
}

// Callback returns the function to hand to NewAllocationManager. It resets
// and repopulates the resource gauges from each snapshot, so gauges for
// deleted resources disappear rather than going stale.
func (m *NodeMetricsManager) Callback() resource.MetricsCallback {
	return func(snapshot resource.StateSnapshot) {
		m.resourceGauges.Reset()

		m.setView(TotalView, snapshot.Total)
		m.setView(AvailableView, snapshot.Available)
		m.setView(LoadView, snapshot.Load)
		m.setView(NormalTasksView, snapshot.NormalTasks)

		m.outstandingAssignmentsGauge.Set(float64(snapshot.OutstandingAssignments))
	}
}

func (m *NodeMetricsManager) setView(view string, quantities map[string]float64) {
	for name, quantity := range quantities {
		m.resourceGauges.With(prometheus.Labels{
			"node_id":  m.nodeId,
			"resource": name,
			"view":     view,
		}).Set(quantity)
	}
}

// Registry returns the private registry carrying the node's gauges, for
// callers that scrape or aggregate programmatically.
func (m *NodeMetricsManager) Registry() *prometheus.Registry {
	return m.registry
}

// HTTPHandler returns a handler serving the node's gauges in the Prometheus
// exposition format.
func (m *NodeMetricsManager) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
