package resource

import (
	"fmt"
	"sync"

	"github.com/Scusemua/go-utils/config"
	"github.com/Scusemua/go-utils/logger"
	"github.com/elliotchance/orderedmap/v2"
	"github.com/google/uuid"
)

// StateSnapshot is a point-in-time copy of the node's resource books,
// handed to the metrics callback after every mutation. Quantities are
// inexact float64 renderings; the snapshot exists for observation, never
// for accounting.
type StateSnapshot struct {
	Total                  map[string]float64
	Available              map[string]float64
	Load                   map[string]float64
	NormalTasks            map[string]float64
	OutstandingAssignments int
}

// MetricsCallback is invoked by the AllocationManager whenever resources are
// acquired, released, or reshaped, so that the associated gauges can be
// updated accordingly.
type MetricsCallback func(snapshot StateSnapshot)

// AllocationManager owns a node's resource accounting: the quantity façade
// (HostResources) and the slot-identity ledger (ResourceIdSet), kept
// consistent through every acquire, release, and capacity change. It also
// remembers which slots each task currently holds, in assignment order.
//
// The manager is the single serialization point for the core: its mutex
// guards every mutation, and the unsynchronized value types underneath are
// only ever touched while it is held.
type AllocationManager struct {
	mu sync.Mutex

	id  string        // Unique ID of the manager.
	log logger.Logger // Logger.

	// hostResources tracks the node's total/available/load/normal-task
	// quantities.
	hostResources *HostResources

	// availableSlots tracks which specific slots (and fractions of slots)
	// remain available for assignment.
	availableSlots *ResourceIdSet

	// outstanding maps task id -> the slots assigned to that task, in
	// assignment order.
	outstanding *orderedmap.OrderedMap[string, *ResourceIdSet]

	// metricsCallback is invoked after every mutation; may be nil.
	metricsCallback MetricsCallback
}

// NewAllocationManager creates the accounting state for a node advertising
// the given total capacity. Slot identities exist in whole units, so every
// quantity in total must be integral.
func NewAllocationManager(total *ResourceSet, metricsCallback MetricsCallback) *AllocationManager {
	manager := &AllocationManager{
		id:              uuid.NewString(),
		hostResources:   NewHostResources(total),
		availableSlots:  NewResourceIdSet(total),
		outstanding:     orderedmap.NewOrderedMap[string, *ResourceIdSet](),
		metricsCallback: metricsCallback,
	}

	config.InitLogger(&manager.log, manager)

	manager.log.Debug("Allocation manager initialized with total resources %s.", total.String())
	manager.notifyMetrics()

	return manager
}

// Id returns the manager's unique id.
func (m *AllocationManager) Id() string {
	return m.id
}

// AcquireTaskResources satisfies a task's demand from the node's available
// slots. On success it returns the exact slots assigned to the task and
// deducts the demand from the available view.
//
// Returns ErrInvalidAllocationRequest if the task already holds an
// assignment, or ErrInsufficientResourcesAvailable if the demand cannot be
// satisfied from the slots on hand. In both cases the books are untouched.
func (m *AllocationManager) AcquireTaskResources(taskId string, demand *ResourceSet) (*ResourceIdSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.outstanding.Get(taskId); ok {
		m.log.Error("Cannot acquire resources for task %s: task already holds an assignment.", taskId)
		return nil, fmt.Errorf("%w: task %s already holds a resource assignment", ErrInvalidAllocationRequest, taskId)
	}

	if !m.availableSlots.Contains(demand) {
		m.log.Debug("Insufficient resources for task %s: demand %s, available %s.",
			taskId, demand.String(), m.hostResources.Available().String())
		return nil, fmt.Errorf("%w: demand %s", ErrInsufficientResourcesAvailable, demand.String())
	}

	acquired := m.availableSlots.Acquire(demand)
	m.hostResources.Acquire(demand)
	m.outstanding.Set(taskId, acquired)

	m.log.Debug("Acquired resources for task %s: %s.", taskId, acquired.String())
	m.notifyMetrics()

	return acquired, nil
}

// ReleaseTaskResources returns a task's slots to the node. Slots for
// resources that were deleted from the node's total while the task was
// running are dropped rather than resurrected.
//
// Returns ErrAllocationNotFound if the task holds no assignment.
func (m *AllocationManager) ReleaseTaskResources(taskId string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	assignment, ok := m.outstanding.Get(taskId)
	if !ok {
		m.log.Error("Cannot release resources for task %s: no outstanding assignment found.", taskId)
		return fmt.Errorf("%w: task %s", ErrAllocationNotFound, taskId)
	}

	m.availableSlots.ReleaseConstrained(assignment, m.hostResources.Total())
	m.hostResources.Release(assignment.ToResourceSet())
	m.outstanding.Delete(taskId)

	m.log.Debug("Released resources for task %s: %s.", taskId, assignment.String())
	m.notifyMetrics()

	return nil
}

// OutstandingAssignment returns the slots currently held by the given task.
func (m *AllocationManager) OutstandingAssignment(taskId string) (*ResourceIdSet, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.outstanding.Get(taskId)
}

// NumOutstandingAssignments returns the number of tasks currently holding
// slots on this node.
func (m *AllocationManager) NumOutstandingAssignments() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.outstanding.Len()
}

// UpdateResourceCapacity moves the named resource's advertised capacity to
// newCapacity on both the quantity façade and the slot ledger. A shrink
// below what is currently out with tasks takes effect logically: the
// shortfall is recorded as decrement backlog and swallowed out of future
// returns.
func (m *AllocationManager) UpdateResourceCapacity(name string, newCapacity int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.log.Debug("Updating capacity of resource %q to %d.", name, newCapacity)

	m.hostResources.UpdateResourceCapacity(name, newCapacity)
	m.availableSlots.AddOrUpdateResource(name, newCapacity)
	m.notifyMetrics()
}

// DeleteResource removes the named resource from every view and discards
// its slot ledger. The operation is idempotent. Outstanding assignments for
// the resource are orphaned and will be dropped on release.
func (m *AllocationManager) DeleteResource(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.log.Debug("Deleting resource %q.", name)

	m.hostResources.DeleteResource(name)
	m.availableSlots.DeleteResource(name)
	m.notifyMetrics()
}

// GetCpuResources returns the available CPU slot ledger, or an empty set if
// no CPU slots remain.
func (m *AllocationManager) GetCpuResources() *ResourceIdSet {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.availableSlots.GetCpuResources()
}

// Resources returns the node's quantity façade. Callers must respect the
// manager's single-owner discipline when reaching through it.
func (m *AllocationManager) Resources() *HostResources {
	return m.hostResources
}

// AvailableSlots returns the node's slot ledger. Callers must respect the
// manager's single-owner discipline when reaching through it.
func (m *AllocationManager) AvailableSlots() *ResourceIdSet {
	return m.availableSlots
}

// SetLoad replaces the node's pending-demand view.
func (m *AllocationManager) SetLoad(load *ResourceSet) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.hostResources.SetLoad(load)
	m.notifyMetrics()
}

// SetNormalTasks replaces the node's best-effort-task usage view.
func (m *AllocationManager) SetNormalTasks(normalTasks *ResourceSet) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.hostResources.SetNormalTasks(normalTasks)
	m.notifyMetrics()
}

// Serialize emits a wire snapshot of the currently available slots.
func (m *AllocationManager) Serialize() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.availableSlots.Serialize()
}

// DebugString renders the node's books for diagnostics.
func (m *AllocationManager) DebugString() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.hostResources.DebugString()
}

// notifyMetrics invokes the metrics callback with a snapshot of the books.
// The manager's mutex must be held.
func (m *AllocationManager) notifyMetrics() {
	if m.metricsCallback == nil {
		return
	}

	m.metricsCallback(StateSnapshot{
		Total:                  m.hostResources.Total().GetResourceMap(),
		Available:              m.hostResources.Available().GetResourceMap(),
		Load:                   m.hostResources.Load().GetResourceMap(),
		NormalTasks:            m.hostResources.NormalTasks().GetResourceMap(),
		OutstandingAssignments: m.outstanding.Len(),
	})
}
