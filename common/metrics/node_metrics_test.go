package metrics_test

import (
	dto "github.com/prometheus/client_model/go"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tklab-ds/distributed-scheduler/common/metrics"
	"github.com/tklab-ds/distributed-scheduler/common/scheduling/resource"
)

// gaugeValue digs the value of a labelled gauge out of a gathered metric
// family, returning -1 when no matching series exists.
func gaugeValue(families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	for _, family := range families {
		if family.GetName() != name {
			continue
		}

	metric:
		for _, metric := range family.GetMetric() {
			seen := make(map[string]string)
			for _, pair := range metric.GetLabel() {
				seen[pair.GetName()] = pair.GetValue()
			}
			for key, value := range labels {
				if seen[key] != value {
					continue metric
				}
			}
			return metric.GetGauge().GetValue()
		}
	}
	return -1
}

var _ = Describe("NodeMetricsManager", func() {
	It("Will track the node's books through the allocation manager", func() {
		nodeMetrics := metrics.NewNodeMetricsManager("node-1")
		manager := resource.NewAllocationManager(
			resource.NewResourceSetFromMap(map[string]float64{"CPU": 4}), nodeMetrics.Callback())

		_, err := manager.AcquireTaskResources("task-1", resource.NewResourceSetFromMap(map[string]float64{"CPU": 1.5}))
		Expect(err).To(BeNil())

		families, gatherErr := nodeMetrics.Registry().Gather()
		Expect(gatherErr).To(BeNil())

		Expect(gaugeValue(families, "scheduler_node_resource_quantity",
			map[string]string{"resource": "CPU", "view": metrics.TotalView})).To(Equal(4.0))
		Expect(gaugeValue(families, "scheduler_node_resource_quantity",
			map[string]string{"resource": "CPU", "view": metrics.AvailableView})).To(Equal(2.5))
		Expect(gaugeValue(families, "scheduler_node_outstanding_assignments", nil)).To(Equal(1.0))
	})

	It("Will drop gauges for deleted resources", func() {
		nodeMetrics := metrics.NewNodeMetricsManager("node-1")
		manager := resource.NewAllocationManager(
			resource.NewResourceSetFromMap(map[string]float64{"CPU": 4, "GPU": 2}), nodeMetrics.Callback())

		manager.DeleteResource("GPU")

		families, gatherErr := nodeMetrics.Registry().Gather()
		Expect(gatherErr).To(BeNil())

		Expect(gaugeValue(families, "scheduler_node_resource_quantity",
			map[string]string{"resource": "GPU", "view": metrics.TotalView})).To(Equal(-1.0))
		Expect(gaugeValue(families, "scheduler_node_resource_quantity",
			map[string]string{"resource": "CPU", "view": metrics.TotalView})).To(Equal(4.0))
	})

	It("Will serve the gauges over HTTP", func() {
		nodeMetrics := metrics.NewNodeMetricsManager("node-1")
		Expect(nodeMetrics.HTTPHandler()).ToNot(BeNil())
	})
})
