package resource_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tklab-ds/distributed-scheduler/common/scheduling/resource"
	"github.com/tklab-ds/distributed-scheduler/common/types"
)

var _ = Describe("ResourceIdSet", func() {
	It("Will build one slot ledger per resource", func() {
		set := resource.NewResourceIdSet(resource.NewResourceSetFromMap(map[string]float64{"CPU": 4, "GPU": 2}))

		Expect(set.AvailableResources()).To(HaveLen(2))
		Expect(set.AvailableResources()["CPU"].WholeIds()).To(Equal([]int64{0, 1, 2, 3}))
		Expect(set.AvailableResources()["GPU"].WholeIds()).To(Equal([]int64{0, 1}))
	})

	It("Will reject construction from fractional capacities", func() {
		Expect(func() {
			resource.NewResourceIdSet(resource.NewResourceSetFromMap(map[string]float64{"CPU": 1.5}))
		}).To(Panic())
	})

	It("Will answer containment across every demanded resource", func() {
		set := resource.NewResourceIdSet(resource.NewResourceSetFromMap(map[string]float64{"CPU": 4, "GPU": 2}))

		Expect(set.Contains(resource.NewResourceSetFromMap(map[string]float64{"CPU": 2, "GPU": 2}))).To(BeTrue())
		Expect(set.Contains(resource.NewResourceSetFromMap(map[string]float64{"CPU": 2, "GPU": 3}))).To(BeFalse())
		Expect(set.Contains(resource.NewResourceSetFromMap(map[string]float64{"TPU": 1}))).To(BeFalse())
	})

	It("Will acquire exactly the demanded slots and evict emptied ledgers", func() {
		set := resource.NewResourceIdSet(resource.NewResourceSetFromMap(map[string]float64{"CPU": 4, "GPU": 2}))

		acquired := set.Acquire(resource.NewResourceSetFromMap(map[string]float64{"CPU": 1.5, "GPU": 2}))

		Expect(acquired.AvailableResources()["CPU"].TotalQuantity().Equals(types.NewFixedPoint(1.5))).To(BeTrue())
		Expect(acquired.AvailableResources()["GPU"].TotalQuantity().Equals(types.NewFixedPointFromInt(2))).To(BeTrue())

		// The GPU ledger was emptied and evicted; CPU remains.
		Expect(set.AvailableResources()).To(HaveKey("CPU"))
		Expect(set.AvailableResources()).ToNot(HaveKey("GPU"))
		Expect(set.ToResourceSet().Get("CPU").Equals(types.NewFixedPoint(2.5))).To(BeTrue())
	})

	It("Will release as an outer join, inserting previously absent resources", func() {
		set := resource.NewResourceIdSet(resource.NewResourceSetFromMap(map[string]float64{"CPU": 2}))
		other := resource.NewResourceIdSet(resource.NewResourceSetFromMap(map[string]float64{"GPU": 1}))

		set.Release(other)

		Expect(set.AvailableResources()).To(HaveKey("GPU"))
		Expect(set.ToResourceSet().Get("GPU").Equals(types.NewFixedPointFromInt(1))).To(BeTrue())
	})

	It("Will panic when releasing an empty sub-ledger", func() {
		set := resource.NewResourceIdSet(resource.NewResourceSetFromMap(map[string]float64{"CPU": 2}))

		drained := resource.NewResourceIdSet(resource.NewResourceSetFromMap(map[string]float64{"CPU": 1}))
		drained.AvailableResources()["CPU"].Acquire(types.NewFixedPointFromInt(1))

		Expect(func() { set.Release(drained) }).To(Panic())
	})

	It("Will drop deleted resources in a constrained release", func() {
		set := resource.NewResourceIdSet(resource.NewResourceSetFromMap(map[string]float64{"CPU": 4, "GPU": 2}))
		total := resource.NewResourceSetFromMap(map[string]float64{"CPU": 4, "GPU": 2})

		acquired := set.Acquire(resource.NewResourceSetFromMap(map[string]float64{"CPU": 2, "GPU": 2}))

		// GPU disappears from the node's advertised total mid-flight.
		set.DeleteResource("GPU")
		total.Delete("GPU")

		set.ReleaseConstrained(acquired, total)

		Expect(set.ToResourceSet().Get("CPU").Equals(types.NewFixedPointFromInt(4))).To(BeTrue())
		Expect(set.AvailableResources()).ToNot(HaveKey("GPU"))
	})

	It("Will delete resources idempotently", func() {
		set := resource.NewResourceIdSet(resource.NewResourceSetFromMap(map[string]float64{"CPU": 2}))

		set.DeleteResource("CPU")
		Expect(set.AvailableResources()).To(BeEmpty())

		// A second delete changes nothing.
		set.DeleteResource("CPU")
		Expect(set.AvailableResources()).To(BeEmpty())
	})

	It("Will create or reshape ledgers through AddOrUpdateResource", func() {
		set := resource.NewEmptyResourceIdSet()

		set.AddOrUpdateResource("TPU", 2)
		Expect(set.AvailableResources()["TPU"].WholeIds()).To(Equal([]int64{0, 1}))

		set.AddOrUpdateResource("TPU", 4)
		Expect(set.AvailableResources()["TPU"].WholeIds()).To(Equal(
			[]int64{0, 1, resource.DynamicResourceId, resource.DynamicResourceId}))

		set.AddOrUpdateResource("TPU", 1)
		Expect(set.AvailableResources()["TPU"].TotalQuantity().Equals(types.NewFixedPointFromInt(1))).To(BeTrue())
	})

	It("Will project the CPU ledger", func() {
		set := resource.NewResourceIdSet(resource.NewResourceSetFromMap(map[string]float64{"CPU": 2, "GPU": 1}))

		cpus := set.GetCpuResources()
		Expect(cpus.AvailableResources()).To(HaveLen(1))
		Expect(cpus.AvailableResources()["CPU"].WholeIds()).To(Equal([]int64{0, 1}))

		// The projection is a copy; draining it leaves the set untouched.
		cpus.Acquire(resource.NewResourceSetFromMap(map[string]float64{"CPU": 2}))
		Expect(set.AvailableResources()["CPU"].WholeIds()).To(Equal([]int64{0, 1}))
	})

	It("Will combine sets without mutating either operand", func() {
		set := resource.NewResourceIdSet(resource.NewResourceSetFromMap(map[string]float64{"CPU": 2}))
		acquired := set.Acquire(resource.NewResourceSetFromMap(map[string]float64{"CPU": 1}))

		combined := set.Plus(acquired)

		Expect(combined.ToResourceSet().Get("CPU").Equals(types.NewFixedPointFromInt(2))).To(BeTrue())
		Expect(set.ToResourceSet().Get("CPU").Equals(types.NewFixedPointFromInt(1))).To(BeTrue())
	})

	It("Will clear every resource", func() {
		set := resource.NewResourceIdSet(resource.NewResourceSetFromMap(map[string]float64{"CPU": 2, "GPU": 1}))

		set.Clear()
		Expect(set.AvailableResources()).To(BeEmpty())
	})

	It("Will conserve quantities across acquire and release", func() {
		totalSet := resource.NewResourceSetFromMap(map[string]float64{"CPU": 4, "GPU": 2})
		set := resource.NewResourceIdSet(totalSet)

		first := set.Acquire(resource.NewResourceSetFromMap(map[string]float64{"CPU": 1.5}))
		second := set.Acquire(resource.NewResourceSetFromMap(map[string]float64{"CPU": 0.5, "GPU": 1}))

		// Available plus outstanding equals the total at every quiescent point.
		outstanding := first.Plus(second)
		combined := set.Plus(outstanding)
		Expect(combined.ToResourceSet().Equals(totalSet)).To(BeTrue())

		set.Release(second)
		set.Release(first)
		Expect(set.ToResourceSet().Equals(totalSet)).To(BeTrue())
	})
})
