package resource

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tklab-ds/distributed-scheduler/common/types"
)

const (
	// CpuResourceLabel is the resource name under which CPU cores are
	// advertised. GetCpuResources / CpuResources project on this label.
	CpuResourceLabel = "CPU"

	// MemoryResourceLabelPrefix prefixes every memory-like resource name.
	// Memory is counted in 50-MiB units; rendering rescales to GiB.
	MemoryResourceLabelPrefix = "memory"

	// ObjectStoreMemoryResourceLabel shares the memory rendering despite not
	// carrying the memory prefix.
	ObjectStoreMemoryResourceLabel = "object_store_memory"
)

// memoryUnitsToGiB is the rendering factor for memory-like resources, whose
// quantities are counted in 50-MiB units.
const memoryUnitsToGiB = 50.0 / 1024.0

// ResourceSet maps resource names to exact quantities. Every entry present
// in the set has a strictly positive quantity; an operation that would drive
// an entry to zero or below removes the entry instead. Absence and zero are
// therefore indistinguishable to callers, and the empty set is the additive
// identity.
//
// ResourceSet is not internally synchronized; it expects a single-threaded
// owner, like the rest of the accounting core.
type ResourceSet struct {
	amounts map[string]types.FixedPoint
}

// NewResourceSet creates an empty ResourceSet.
func NewResourceSet() *ResourceSet {
	return &ResourceSet{amounts: make(map[string]types.FixedPoint)}
}

// NewResourceSetFromMap creates a ResourceSet from a map of real-valued
// quantities. Every quantity must be strictly positive; a zero or negative
// quantity is a programming error and panics with ErrInvariantViolated.
func NewResourceSetFromMap(resources map[string]float64) *ResourceSet {
	set := NewResourceSet()
	for name, quantity := range resources {
		if quantity <= 0 {
			panic(fmt.Errorf("%w: resource %q constructed with non-positive quantity %f", ErrInvariantViolated, name, quantity))
		}
		set.amounts[name] = types.NewFixedPoint(quantity)
	}
	return set
}

// NewResourceSetFromFixedPoints creates a ResourceSet from exact quantities.
// Every quantity must be strictly positive.
func NewResourceSetFromFixedPoints(resources map[string]types.FixedPoint) *ResourceSet {
	set := NewResourceSet()
	for name, quantity := range resources {
		if !quantity.IsPositive() {
			panic(fmt.Errorf("%w: resource %q constructed with non-positive quantity %s", ErrInvariantViolated, name, quantity))
		}
		set.amounts[name] = quantity
	}
	return set
}

// NewResourceSetFromLabels creates a ResourceSet from parallel label and
// quantity slices. The slices must have equal length and every quantity must
// be strictly positive.
func NewResourceSetFromLabels(labels []string, quantities []float64) *ResourceSet {
	if len(labels) != len(quantities) {
		panic(fmt.Errorf("%w: %d labels paired with %d quantities", ErrInvariantViolated, len(labels), len(quantities)))
	}

	set := NewResourceSet()
	for i, name := range labels {
		if quantities[i] <= 0 {
			panic(fmt.Errorf("%w: resource %q constructed with non-positive quantity %f", ErrInvariantViolated, name, quantities[i]))
		}
		set.amounts[name] = types.NewFixedPoint(quantities[i])
	}
	return set
}

// Copy returns a deep copy of the set.
func (s *ResourceSet) Copy() *ResourceSet {
	amounts := make(map[string]types.FixedPoint, len(s.amounts))
	for name, quantity := range s.amounts {
		amounts[name] = quantity
	}
	return &ResourceSet{amounts: amounts}
}

// IsEmpty returns true if the set carries no entries.
func (s *ResourceSet) IsEmpty() bool {
	return len(s.amounts) == 0
}

// Get returns the quantity recorded for the named resource, or zero if the
// resource is absent.
func (s *ResourceSet) Get(name string) types.FixedPoint {
	return s.amounts[name]
}

// AddOrUpdate overwrites the quantity for the named resource. A non-positive
// quantity is a no-op; deleting an entry requires Delete.
func (s *ResourceSet) AddOrUpdate(name string, quantity types.FixedPoint) {
	if quantity.IsPositive() {
		s.amounts[name] = quantity
	}
}

// Delete removes the named resource from the set, reporting whether the
// entry existed.
func (s *ResourceSet) Delete(name string) bool {
	if _, ok := s.amounts[name]; ok {
		delete(s.amounts, name)
		return true
	}
	return false
}

// IsSubset returns true if, for every entry of s, other carries at least the
// same quantity. The empty set is a subset of everything; names present only
// in other do not affect the outcome.
func (s *ResourceSet) IsSubset(other *ResourceSet) bool {
	for name, quantity := range s.amounts {
		if quantity.GreaterThan(other.Get(name)) {
			return false
		}
	}
	return true
}

// IsSuperset returns true if other is a subset of s.
func (s *ResourceSet) IsSuperset(other *ResourceSet) bool {
	return other.IsSubset(s)
}

// Equals returns true if the two sets carry exactly the same (name,
// quantity) pairs.
func (s *ResourceSet) Equals(other *ResourceSet) bool {
	return s.IsSubset(other) && other.IsSubset(s)
}

// Subtract decrements s by other, leniently: names absent from s are
// ignored, and any entry driven to zero or below is removed. It never
// signals an error.
func (s *ResourceSet) Subtract(other *ResourceSet) {
	for name, quantity := range other.amounts {
		current, ok := s.amounts[name]
		if !ok {
			continue
		}
		remaining := current.Sub(quantity)
		if remaining.IsPositive() {
			s.amounts[name] = remaining
		} else {
			delete(s.amounts, name)
		}
	}
}

// SubtractStrict decrements s by other. Every name in other must exist in s
// (panics with ErrUnknownResource otherwise) and no entry may go negative
// (panics with ErrNegativeCapacity). An entry driven exactly to zero is
// removed.
func (s *ResourceSet) SubtractStrict(other *ResourceSet) {
	for name, quantity := range other.amounts {
		current, ok := s.amounts[name]
		if !ok {
			panic(fmt.Errorf("%w: attempt to acquire unknown resource %q, quantity %s", ErrUnknownResource, name, quantity))
		}

		remaining := current.Sub(quantity)
		if remaining.IsNegative() {
			panic(fmt.Errorf("%w: resource %q would be %s after subtraction", ErrNegativeCapacity, name, remaining))
		}

		if remaining.IsZero() {
			delete(s.amounts, name)
		} else {
			s.amounts[name] = remaining
		}
	}
}

// Add increments s pointwise by other, admitting names that s did not
// previously carry.
func (s *ResourceSet) Add(other *ResourceSet) {
	for name, quantity := range other.amounts {
		s.amounts[name] = s.amounts[name].Add(quantity)
	}
}

// AddConstrained increments s pointwise by other, capping each resulting
// entry at total's quantity for that name. A name absent from total is
// skipped entirely: a release that races a resource deletion must not
// resurrect the deleted resource.
func (s *ResourceSet) AddConstrained(other *ResourceSet, total *ResourceSet) {
	for name, quantity := range other.amounts {
		limit, ok := total.amounts[name]
		if !ok {
			continue
		}

		sum := s.amounts[name].Add(quantity)
		if sum.GreaterThan(limit) {
			sum = limit
		}
		s.amounts[name] = sum
	}
}

// CpuResources returns a projection of the set containing only the CPU
// entry, or an empty set if no CPUs are recorded.
func (s *ResourceSet) CpuResources() *ResourceSet {
	projection := NewResourceSet()
	if quantity := s.Get(CpuResourceLabel); quantity.IsPositive() {
		projection.amounts[CpuResourceLabel] = quantity
	}
	return projection
}

// GetResourceMap returns the set's entries as inexact float64 quantities,
// for rendering and interop only.
func (s *ResourceSet) GetResourceMap() map[string]float64 {
	result := make(map[string]float64, len(s.amounts))
	for name, quantity := range s.amounts {
		result[name] = quantity.InexactFloat64()
	}
	return result
}

// Amounts returns the set's entries. The returned map is the set's internal
// state and must not be mutated by the caller.
func (s *ResourceSet) Amounts() map[string]types.FixedPoint {
	return s.amounts
}

// formatResource renders a single quantity. Memory-like resources are
// counted in 50-MiB units and rendered in GiB.
func formatResource(name string, quantity float64) string {
	if name == ObjectStoreMemoryResourceLabel || strings.HasPrefix(name, MemoryResourceLabelPrefix) {
		return fmt.Sprintf("%f GiB", quantity*memoryUnitsToGiB)
	}
	return fmt.Sprintf("%f", quantity)
}

// String renders the set for diagnostics, in sorted name order.
func (s *ResourceSet) String() string {
	if len(s.amounts) == 0 {
		return "{}"
	}

	names := make([]string, 0, len(s.amounts))
	for name := range s.amounts {
		names = append(names, name)
	}
	sort.Strings(names)

	var builder strings.Builder
	for i, name := range names {
		if i > 0 {
			builder.WriteString(", ")
		}
		builder.WriteString("{")
		builder.WriteString(name)
		builder.WriteString(": ")
		builder.WriteString(formatResource(name, s.amounts[name].InexactFloat64()))
		builder.WriteString("}")
	}
	return builder.String()
}
