package resource

import (
	"strings"

	"github.com/tklab-ds/distributed-scheduler/common/types"
)

// HostResources is the node-level accounting façade: four coupled views of
// the same resource space.
//
//   - total: the capacity the node currently advertises.
//   - available: total minus whatever tasks currently hold.
//   - load: demand that has arrived but is not yet satisfied. Load reflects
//     pressure, not consumption, and is never touched by acquire/release.
//   - normalTasks: the slice of usage attributable to best-effort tasks, as
//     opposed to actor and placement-group reservations.
//
// available is a pointwise subset of total except during the transient
// window of a shrink that races in-flight work; releases are capped back
// under total as slots come home.
//
// HostResources is not internally synchronized; the owning scheduler loop
// serializes access.
type HostResources struct {
	total       *ResourceSet
	available   *ResourceSet
	load        *ResourceSet
	normalTasks *ResourceSet
}

// NewHostResources creates the façade for a node advertising the given
// total capacity. Everything starts available; load and normal-task usage
// start empty.
func NewHostResources(total *ResourceSet) *HostResources {
	return &HostResources{
		total:       total.Copy(),
		available:   total.Copy(),
		load:        NewResourceSet(),
		normalTasks: NewResourceSet(),
	}
}

// Acquire deducts a task's demand from the available view. The subtraction
// is strict: acquiring a resource the node never advertised, or more of one
// than remains, is a scheduler bug and panics loudly.
func (h *HostResources) Acquire(demand *ResourceSet) {
	h.available.SubtractStrict(demand)
}

// Release returns a task's resources to the available view, capped at
// total: a resource deleted from total while the task was running is not
// resurrected.
func (h *HostResources) Release(resources *ResourceSet) {
	h.available.AddConstrained(resources, h.total)
}

// AddResource grows both total and available by the given resources. This
// is how synthetic resources (placement groups) appear mid-run.
func (h *HostResources) AddResource(resources *ResourceSet) {
	h.total.Add(resources)
	h.available.Add(resources)
}

// UpdateResourceCapacity moves the named resource's total to newCapacity,
// shifting available by the same delta and clipping it at zero. A resource
// the node did not previously advertise appears with both views at
// newCapacity. Load is untouched.
func (h *HostResources) UpdateResourceCapacity(name string, newCapacity int64) {
	capacity := types.NewFixedPointFromInt(newCapacity)
	current := h.total.Get(name)

	if current.IsPositive() {
		delta := capacity.Sub(current)
		newAvailable := h.available.Get(name).Add(delta)
		if newAvailable.IsNegative() {
			newAvailable = types.Zero
		}
		setOrDelete(h.total, name, capacity)
		setOrDelete(h.available, name, newAvailable)
		return
	}

	setOrDelete(h.total, name, capacity)
	setOrDelete(h.available, name, capacity)
}

// setOrDelete writes a quantity through the set's positivity invariant: a
// quantity that is no longer positive removes the entry.
func setOrDelete(set *ResourceSet, name string, quantity types.FixedPoint) {
	if quantity.IsPositive() {
		set.AddOrUpdate(name, quantity)
	} else {
		set.Delete(name)
	}
}

// DeleteResource removes the named resource from the total, available, and
// load views. Deleting an absent resource is a no-op, so the operation is
// idempotent.
func (h *HostResources) DeleteResource(name string) {
	h.total.Delete(name)
	h.available.Delete(name)
	h.load.Delete(name)
}

// Total returns the advertised-capacity view.
func (h *HostResources) Total() *ResourceSet {
	return h.total
}

// SetTotal replaces the advertised-capacity view.
func (h *HostResources) SetTotal(total *ResourceSet) {
	h.total = total
}

// Available returns the available view.
func (h *HostResources) Available() *ResourceSet {
	return h.available
}

// SetAvailable replaces the available view.
func (h *HostResources) SetAvailable(available *ResourceSet) {
	h.available = available
}

// Load returns the pending-demand view.
func (h *HostResources) Load() *ResourceSet {
	return h.load
}

// SetLoad replaces the pending-demand view.
func (h *HostResources) SetLoad(load *ResourceSet) {
	h.load = load
}

// NormalTasks returns the best-effort-task usage view.
func (h *HostResources) NormalTasks() *ResourceSet {
	return h.normalTasks
}

// SetNormalTasks replaces the best-effort-task usage view.
func (h *HostResources) SetNormalTasks(normalTasks *ResourceSet) {
	h.normalTasks = normalTasks
}

// DebugString renders the node's books: total capacity, availability net of
// best-effort usage, and the best-effort usage itself.
func (h *HostResources) DebugString() string {
	availableLessNormalTasks := h.available.Copy()
	availableLessNormalTasks.Subtract(h.normalTasks)

	var builder strings.Builder
	builder.WriteString("\n- total: ")
	builder.WriteString(h.total.String())
	builder.WriteString("\n- avail: ")
	builder.WriteString(availableLessNormalTasks.String())
	builder.WriteString("\n- normal task usage: ")
	builder.WriteString(h.normalTasks.String())
	return builder.String()
}
