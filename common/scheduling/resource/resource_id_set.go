package resource

import (
	"fmt"
	"sort"
	"strings"
)

// ResourceIdSet is the node's multi-resource slot ledger: one ResourceIds
// per resource name. A resource whose ledger becomes fully empty is evicted
// from the map, so a present entry always holds at least one slot or
// fraction.
type ResourceIdSet struct {
	availableResources map[string]*ResourceIds
}

// NewEmptyResourceIdSet creates a ResourceIdSet holding no resources.
func NewEmptyResourceIdSet() *ResourceIdSet {
	return &ResourceIdSet{availableResources: make(map[string]*ResourceIds)}
}

// NewResourceIdSet creates a ResourceIdSet with one slot ledger per entry of
// the given set. Every quantity must be integral; slot identities are only
// meaningful in whole units.
func NewResourceIdSet(resources *ResourceSet) *ResourceIdSet {
	set := NewEmptyResourceIdSet()
	for name, quantity := range resources.Amounts() {
		set.availableResources[name] = NewResourceIds(quantity.InexactFloat64())
	}
	return set
}

// newResourceIdSetFromMap wraps an existing ledger map without copying.
func newResourceIdSetFromMap(availableResources map[string]*ResourceIds) *ResourceIdSet {
	return &ResourceIdSet{availableResources: availableResources}
}

// Copy returns a deep copy of the set.
func (s *ResourceIdSet) Copy() *ResourceIdSet {
	availableResources := make(map[string]*ResourceIds, len(s.availableResources))
	for name, ids := range s.availableResources {
		availableResources[name] = ids.Copy()
	}
	return newResourceIdSetFromMap(availableResources)
}

// Contains returns true if every named demand could be satisfied: the
// resource must be present and its ledger must contain the demanded
// quantity.
func (s *ResourceIdSet) Contains(demand *ResourceSet) bool {
	for name, quantity := range demand.Amounts() {
		ids, ok := s.availableResources[name]
		if !ok {
			return false
		}
		if !ids.Contains(quantity) {
			return false
		}
	}
	return true
}

// Acquire removes the demanded quantities from the per-resource ledgers and
// returns a ResourceIdSet holding exactly the acquired slots.
// Contains(demand) is a precondition; a demand naming an absent resource
// panics with ErrUnknownResource. A ledger emptied by the acquisition is
// evicted from the map.
func (s *ResourceIdSet) Acquire(demand *ResourceSet) *ResourceIdSet {
	acquired := make(map[string]*ResourceIds, len(demand.Amounts()))

	for name, quantity := range demand.Amounts() {
		ids, ok := s.availableResources[name]
		if !ok {
			panic(fmt.Errorf("%w: acquire of resource %q with no slot ledger", ErrUnknownResource, name))
		}

		acquired[name] = ids.Acquire(quantity)
		if ids.TotalQuantityIsZero() {
			delete(s.availableResources, name)
		}
	}
	return newResourceIdSetFromMap(acquired)
}

// Release absorbs other's slots back into the set, outer-join style: a
// resource already present delegates to its ledger's Release; a resource
// not present is inserted wholesale. An empty sub-ledger in other is a
// programming error.
func (s *ResourceIdSet) Release(other *ResourceIdSet) {
	for name, ids := range other.availableResources {
		if ids.TotalQuantityIsZero() {
			panic(fmt.Errorf("%w: release of empty slot ledger for resource %q", ErrInvariantViolated, name))
		}

		existing, ok := s.availableResources[name]
		if !ok {
			s.availableResources[name] = ids.Copy()
		} else {
			existing.Release(ids)
		}
	}
}

// ReleaseConstrained behaves like Release, except that a resource absent
// from total is silently dropped: slots for a resource deleted from the
// node's advertised total are orphaned and must not be resurrected by a
// late return from in-flight work.
func (s *ResourceIdSet) ReleaseConstrained(other *ResourceIdSet, total *ResourceSet) {
	for name, ids := range other.availableResources {
		if total.Get(name).IsZero() {
			continue
		}

		if ids.TotalQuantityIsZero() {
			panic(fmt.Errorf("%w: release of empty slot ledger for resource %q", ErrInvariantViolated, name))
		}

		existing, ok := s.availableResources[name]
		if !ok {
			s.availableResources[name] = ids.Copy()
		} else {
			existing.Release(ids)
		}
	}
}

// Clear removes every resource from the set.
func (s *ResourceIdSet) Clear() {
	s.availableResources = make(map[string]*ResourceIds)
}

// Plus returns a copy of the set with other released into it; neither
// operand is mutated.
func (s *ResourceIdSet) Plus(other *ResourceIdSet) *ResourceIdSet {
	combined := s.Copy()
	combined.Release(other)
	return combined
}

// AddOrUpdateResource adjusts the named resource's advertised capacity,
// creating a fresh slot ledger if the resource is new.
func (s *ResourceIdSet) AddOrUpdateResource(name string, capacity int64) {
	if ids, ok := s.availableResources[name]; ok {
		ids.UpdateCapacity(capacity)
		return
	}
	s.availableResources[name] = NewResourceIds(float64(capacity))
}

// DeleteResource removes the named resource's ledger; absent names are a
// no-op. Slot assignments still outstanding for the resource are orphaned;
// ReleaseConstrained drops them safely on return.
func (s *ResourceIdSet) DeleteResource(name string) {
	delete(s.availableResources, name)
}

// AvailableResources returns the per-resource ledgers. The returned map is
// the set's internal state and must not be mutated by the caller.
func (s *ResourceIdSet) AvailableResources() map[string]*ResourceIds {
	return s.availableResources
}

// GetCpuResources returns a projection holding only the CPU ledger, or an
// empty set if the node has no CPU slots available.
func (s *ResourceIdSet) GetCpuResources() *ResourceIdSet {
	cpuResources := make(map[string]*ResourceIds, 1)
	if ids, ok := s.availableResources[CpuResourceLabel]; ok {
		cpuResources[CpuResourceLabel] = ids.Copy()
	}
	return newResourceIdSetFromMap(cpuResources)
}

// ToResourceSet collapses the set to quantities: each ledger's TotalQuantity
// under its resource name.
func (s *ResourceIdSet) ToResourceSet() *ResourceSet {
	resources := NewResourceSet()
	for name, ids := range s.availableResources {
		resources.AddOrUpdate(name, ids.TotalQuantity())
	}
	return resources
}

// String renders the set for diagnostics, in sorted name order.
func (s *ResourceIdSet) String() string {
	names := make([]string, 0, len(s.availableResources))
	for name := range s.availableResources {
		names = append(names, name)
	}
	sort.Strings(names)

	var builder strings.Builder
	builder.WriteString("AvailableResources: ")
	for i, name := range names {
		if i > 0 {
			builder.WriteString(", ")
		}
		builder.WriteString(name)
		builder.WriteString(": {")
		builder.WriteString(s.availableResources[name].String())
		builder.WriteString("}")
	}
	return builder.String()
}
