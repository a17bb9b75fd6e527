package resource_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tklab-ds/distributed-scheduler/common/scheduling/resource"
	"github.com/tklab-ds/distributed-scheduler/common/types"
)

var _ = Describe("HostResources", func() {
	It("Will start with everything available and nothing loaded", func() {
		total := resource.NewResourceSetFromMap(map[string]float64{"CPU": 4, "GPU": 2})
		node := resource.NewHostResources(total)

		Expect(node.Total().Equals(total)).To(BeTrue())
		Expect(node.Available().Equals(total)).To(BeTrue())
		Expect(node.Load().IsEmpty()).To(BeTrue())
		Expect(node.NormalTasks().IsEmpty()).To(BeTrue())

		// The views are copies; mutating the input set later changes nothing.
		total.Delete("GPU")
		Expect(node.Total().Get("GPU").Equals(types.NewFixedPointFromInt(2))).To(BeTrue())
	})

	It("Will restore available exactly across an acquire/release round trip", func() {
		node := resource.NewHostResources(resource.NewResourceSetFromMap(map[string]float64{"CPU": 4, "GPU": 2}))
		demand := resource.NewResourceSetFromMap(map[string]float64{"CPU": 1.5, "GPU": 1})

		before := node.Available().Copy()
		node.Acquire(demand)

		Expect(node.Available().Get("CPU").Equals(types.NewFixedPoint(2.5))).To(BeTrue())
		Expect(node.Available().Get("GPU").Equals(types.NewFixedPointFromInt(1))).To(BeTrue())

		node.Release(demand)
		Expect(node.Available().Equals(before)).To(BeTrue())
	})

	It("Will panic loudly when acquiring unadvertised resources", func() {
		node := resource.NewHostResources(resource.NewResourceSetFromMap(map[string]float64{"CPU": 4}))

		Expect(func() {
			node.Acquire(resource.NewResourceSetFromMap(map[string]float64{"TPU": 1}))
		}).To(Panic())
	})

	It("Will keep available under total after any sequence of releases", func() {
		node := resource.NewHostResources(resource.NewResourceSetFromMap(map[string]float64{"CPU": 4}))

		node.Release(resource.NewResourceSetFromMap(map[string]float64{"CPU": 3}))
		node.Release(resource.NewResourceSetFromMap(map[string]float64{"CPU": 3}))

		Expect(node.Available().Get("CPU").Equals(types.NewFixedPointFromInt(4))).To(BeTrue())
	})

	It("Will grow both total and available for synthetic resources", func() {
		node := resource.NewHostResources(resource.NewResourceSetFromMap(map[string]float64{"CPU": 4}))

		node.AddResource(resource.NewResourceSetFromMap(map[string]float64{"pg_bundle_0": 1}))

		Expect(node.Total().Get("pg_bundle_0").Equals(types.NewFixedPointFromInt(1))).To(BeTrue())
		Expect(node.Available().Get("pg_bundle_0").Equals(types.NewFixedPointFromInt(1))).To(BeTrue())
	})

	It("Will shift available by the capacity delta, clipping at zero", func() {
		node := resource.NewHostResources(resource.NewResourceSetFromMap(map[string]float64{"GPU": 2}))

		node.Acquire(resource.NewResourceSetFromMap(map[string]float64{"GPU": 1}))
		node.UpdateResourceCapacity("GPU", 4)

		Expect(node.Total().Get("GPU").Equals(types.NewFixedPointFromInt(4))).To(BeTrue())
		Expect(node.Available().Get("GPU").Equals(types.NewFixedPointFromInt(3))).To(BeTrue())

		// Shrinking below what is in use clips available at zero.
		node.UpdateResourceCapacity("GPU", 0)
		Expect(node.Total().Get("GPU").IsZero()).To(BeTrue())
		Expect(node.Available().Get("GPU").IsZero()).To(BeTrue())
	})

	It("Will introduce a brand-new resource with both views at capacity", func() {
		node := resource.NewHostResources(resource.NewResourceSetFromMap(map[string]float64{"CPU": 4}))

		node.UpdateResourceCapacity("TPU", 8)

		Expect(node.Total().Get("TPU").Equals(types.NewFixedPointFromInt(8))).To(BeTrue())
		Expect(node.Available().Get("TPU").Equals(types.NewFixedPointFromInt(8))).To(BeTrue())
		Expect(node.Load().IsEmpty()).To(BeTrue())
	})

	It("Will delete resources from every view, idempotently", func() {
		node := resource.NewHostResources(resource.NewResourceSetFromMap(map[string]float64{"CPU": 4}))
		node.SetLoad(resource.NewResourceSetFromMap(map[string]float64{"CPU": 6}))

		node.DeleteResource("CPU")
		Expect(node.Total().IsEmpty()).To(BeTrue())
		Expect(node.Available().IsEmpty()).To(BeTrue())
		Expect(node.Load().IsEmpty()).To(BeTrue())

		node.DeleteResource("CPU")
		Expect(node.Total().IsEmpty()).To(BeTrue())
	})

	It("Will leave load untouched by acquire, release, and capacity updates", func() {
		node := resource.NewHostResources(resource.NewResourceSetFromMap(map[string]float64{"CPU": 4}))
		node.SetLoad(resource.NewResourceSetFromMap(map[string]float64{"CPU": 6}))

		node.Acquire(resource.NewResourceSetFromMap(map[string]float64{"CPU": 2}))
		node.Release(resource.NewResourceSetFromMap(map[string]float64{"CPU": 2}))
		node.UpdateResourceCapacity("CPU", 8)

		Expect(node.Load().Get("CPU").Equals(types.NewFixedPointFromInt(6))).To(BeTrue())
	})

	It("Will render availability net of best-effort usage", func() {
		node := resource.NewHostResources(resource.NewResourceSetFromMap(map[string]float64{"CPU": 4}))
		node.SetNormalTasks(resource.NewResourceSetFromMap(map[string]float64{"CPU": 1}))

		rendered := node.DebugString()
		Expect(rendered).To(ContainSubstring("- total: {CPU: 4.000000}"))
		Expect(rendered).To(ContainSubstring("- avail: {CPU: 3.000000}"))
		Expect(rendered).To(ContainSubstring("- normal task usage: {CPU: 1.000000}"))
	})
})
