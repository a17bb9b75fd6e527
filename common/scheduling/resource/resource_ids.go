package resource

import (
	"fmt"
	"strings"

	"github.com/tklab-ds/distributed-scheduler/common/types"
)

// DynamicResourceId is the sentinel slot id assigned to dynamically created
// slots that were never tied to a physical identifier (custom resources,
// capacity grown at runtime). Many slots may coexist under this id; it is a
// tag, not a key, and the only place slot ids must be unique is within the
// fractional ledger.
const DynamicResourceId int64 = -1

// FractionalResourceId is a sub-unit carved from a slot: the slot's id and
// the residual fraction of the slot that remains available. A residual
// always lies in the open interval (0, 1); a residual that reaches 1 makes
// the slot whole again and a residual that reaches 0 removes the entry.
type FractionalResourceId struct {
	Id       int64
	Residual types.FixedPoint
}

// ResourceIds is the slot ledger for a single resource name: which specific
// units (and fractions of units) are currently available on the node.
//
// wholeIds holds one entry per fully available slot. fractionalIds holds at
// most one entry per slot id, carrying whatever residual remains after tasks
// took sub-slot pieces. totalCapacity is the quantity the owner currently
// advertises for this resource, which may exceed what the ledger holds while
// slots are out with tasks. decrementBacklog counts capacity decreases that
// could not be applied because the slots were in use; returns are swallowed
// against it before anything rejoins the ledger.
type ResourceIds struct {
	wholeIds         []int64
	fractionalIds    []FractionalResourceId
	totalCapacity    types.FixedPoint
	decrementBacklog int64
}

// NewResourceIds creates a ledger for a resource with the given capacity.
// The capacity must be integral (panics with ErrInvariantViolated
// otherwise); the ledger is populated with slot ids [0, quantity).
func NewResourceIds(quantity float64) *ResourceIds {
	fixed := types.NewFixedPoint(quantity)
	if !fixed.IsWhole() {
		panic(fmt.Errorf("%w: slot ledger constructed with non-integral capacity %f", ErrInvariantViolated, quantity))
	}

	whole := fixed.IntPart()
	ids := &ResourceIds{wholeIds: make([]int64, 0, whole)}
	for id := int64(0); id < whole; id++ {
		ids.wholeIds = append(ids.wholeIds, id)
	}
	ids.totalCapacity = ids.TotalQuantity()
	return ids
}

// NewResourceIdsFromIds creates a ledger holding exactly the given whole and
// fractional slots. Acquire uses it to describe what was taken; Release
// accepts such ledgers back.
func NewResourceIdsFromIds(wholeIds []int64, fractionalIds []FractionalResourceId) *ResourceIds {
	ids := &ResourceIds{wholeIds: wholeIds, fractionalIds: fractionalIds}
	ids.totalCapacity = ids.TotalQuantity()
	return ids
}

// Copy returns a deep copy of the ledger.
func (r *ResourceIds) Copy() *ResourceIds {
	return &ResourceIds{
		wholeIds:         append([]int64(nil), r.wholeIds...),
		fractionalIds:    append([]FractionalResourceId(nil), r.fractionalIds...),
		totalCapacity:    r.totalCapacity,
		decrementBacklog: r.decrementBacklog,
	}
}

// Contains returns true if a request for the given quantity could be
// satisfied by this ledger. Whole units are satisfied by whole slots only.
// A sub-unit remainder is satisfied by a surplus whole slot (which can be
// carved) or by any fractional residual at least as large as the remainder.
func (r *ResourceIds) Contains(quantity types.FixedPoint) bool {
	whole := quantity.IntPart()
	if int64(len(r.wholeIds)) < whole {
		return false
	}

	remainder := quantity.Sub(types.NewFixedPointFromInt(whole))
	if remainder.IsZero() {
		return true
	}

	if int64(len(r.wholeIds)) > whole {
		return true
	}
	for _, fractional := range r.fractionalIds {
		if fractional.Residual.GreaterThanOrEqual(remainder) {
			return true
		}
	}
	return false
}

// Acquire removes the given quantity from the ledger and returns a ledger
// holding exactly what was taken. Contains(quantity) is a precondition;
// violating it panics.
//
// Whole units are popped from the tail, so recently released slots are
// reused first. A sub-unit request is served from the first fractional
// residual large enough to cover it; failing that, a whole slot is carved,
// leaving its remainder in the fractional ledger. A mixed quantity such as
// 1.5 decomposes into its whole part followed by its sub-unit remainder.
func (r *ResourceIds) Acquire(quantity types.FixedPoint) *ResourceIds {
	if quantity.GreaterThanOrEqual(types.NewFixedPointFromInt(1)) {
		whole := quantity.IntPart()
		remainder := quantity.Sub(types.NewFixedPointFromInt(whole))

		if !remainder.IsZero() {
			taken := r.Acquire(types.NewFixedPointFromInt(whole))
			carved := r.Acquire(remainder)
			return NewResourceIdsFromIds(taken.wholeIds, carved.fractionalIds)
		}

		if int64(len(r.wholeIds)) < whole {
			panic(fmt.Errorf("%w: acquire of %d whole slots with only %d available", ErrInvariantViolated, whole, len(r.wholeIds)))
		}

		taken := make([]int64, 0, whole)
		for i := int64(0); i < whole; i++ {
			taken = append(taken, r.wholeIds[len(r.wholeIds)-1])
			r.wholeIds = r.wholeIds[:len(r.wholeIds)-1]
		}
		return NewResourceIdsFromIds(taken, nil)
	}

	// Sub-unit path: first fractional residual that covers the request wins.
	for i := range r.fractionalIds {
		if r.fractionalIds[i].Residual.GreaterThanOrEqual(quantity) {
			taken := FractionalResourceId{Id: r.fractionalIds[i].Id, Residual: quantity}
			r.fractionalIds[i].Residual = r.fractionalIds[i].Residual.Sub(quantity)

			// A residual of zero means the slot is fully out; swap-remove it.
			if r.fractionalIds[i].Residual.IsZero() {
				r.fractionalIds[i] = r.fractionalIds[len(r.fractionalIds)-1]
				r.fractionalIds = r.fractionalIds[:len(r.fractionalIds)-1]
			}
			return NewResourceIdsFromIds(nil, []FractionalResourceId{taken})
		}
	}

	// No fractional suffices; carve a whole slot.
	if len(r.wholeIds) == 0 {
		panic(fmt.Errorf("%w: fractional acquire of %s with no slots available", ErrInvariantViolated, quantity))
	}
	wholeId := r.wholeIds[len(r.wholeIds)-1]
	r.wholeIds = r.wholeIds[:len(r.wholeIds)-1]

	remainder := types.NewFixedPointFromInt(1).Sub(quantity)
	r.fractionalIds = append(r.fractionalIds, FractionalResourceId{Id: wholeId, Residual: remainder})
	return NewResourceIdsFromIds(nil, []FractionalResourceId{{Id: wholeId, Residual: quantity}})
}

// Release absorbs the slots in other back into the ledger.
//
// Whole returns feed the decrement backlog before anything rejoins
// wholeIds. A fractional return merges onto the existing residual for its
// slot id; a merge that would exceed one panics with ErrInvariantViolated,
// and a merge that reaches exactly one makes the slot whole again, subject
// to the backlog.
func (r *ResourceIds) Release(other *ResourceIds) {
	returned := int64(len(other.wholeIds))
	if returned > r.decrementBacklog {
		r.wholeIds = append(r.wholeIds, other.wholeIds[r.decrementBacklog:]...)
		r.decrementBacklog = 0
	} else {
		r.decrementBacklog -= returned
	}

	for _, fractional := range other.fractionalIds {
		index := r.findFractional(fractional.Id)
		if index < 0 {
			r.fractionalIds = append(r.fractionalIds, fractional)
			continue
		}

		merged := r.fractionalIds[index].Residual.Add(fractional.Residual)
		if merged.GreaterThan(types.NewFixedPointFromInt(1)) {
			panic(fmt.Errorf("%w: fractional slot %d released to residual %s, exceeding one",
				ErrInvariantViolated, fractional.Id, merged))
		}

		if merged.Equals(types.NewFixedPointFromInt(1)) {
			// The slot is whole again; it either pays down the backlog or
			// rejoins the whole ledger.
			if r.decrementBacklog > 0 {
				r.decrementBacklog--
			} else {
				r.wholeIds = append(r.wholeIds, fractional.Id)
			}
			r.fractionalIds = append(r.fractionalIds[:index], r.fractionalIds[index+1:]...)
		} else {
			r.fractionalIds[index].Residual = merged
		}
	}
}

// Plus returns a copy of the ledger with other released into it; neither
// operand is mutated.
func (r *ResourceIds) Plus(other *ResourceIds) *ResourceIds {
	combined := r.Copy()
	combined.Release(other)
	return combined
}

// findFractional returns the index of the fractional entry for the given
// slot id, or -1.
func (r *ResourceIds) findFractional(id int64) int {
	for i := range r.fractionalIds {
		if r.fractionalIds[i].Id == id {
			return i
		}
	}
	return -1
}

// WholeIds returns the fully available slot ids. The returned slice is the
// ledger's internal state and must not be mutated by the caller.
func (r *ResourceIds) WholeIds() []int64 {
	return r.wholeIds
}

// FractionalIds returns the partially available slots. The returned slice is
// the ledger's internal state and must not be mutated by the caller.
func (r *ResourceIds) FractionalIds() []FractionalResourceId {
	return r.fractionalIds
}

// TotalQuantity returns the quantity currently held by the ledger: one per
// whole slot plus the sum of the fractional residuals.
func (r *ResourceIds) TotalQuantity() types.FixedPoint {
	total := types.NewFixedPointFromInt(int64(len(r.wholeIds)))
	for _, fractional := range r.fractionalIds {
		total = total.Add(fractional.Residual)
	}
	return total
}

// TotalQuantityIsZero returns true if the ledger holds no slots at all,
// ignoring advertised capacity and backlog.
func (r *ResourceIds) TotalQuantityIsZero() bool {
	return len(r.wholeIds) == 0 && len(r.fractionalIds) == 0
}

// TotalCapacity returns the capacity the owner currently advertises for
// this resource.
func (r *ResourceIds) TotalCapacity() types.FixedPoint {
	return r.totalCapacity
}

// DecrementBacklog returns the number of pending whole-slot returns that
// will be swallowed rather than restored to availability.
func (r *ResourceIds) DecrementBacklog() int64 {
	return r.decrementBacklog
}

// UpdateCapacity adjusts the advertised capacity to newCapacity, growing or
// shrinking the ledger by the difference. newCapacity must be non-negative.
func (r *ResourceIds) UpdateCapacity(newCapacity int64) {
	if newCapacity < 0 {
		panic(fmt.Errorf("%w: capacity update to negative total %d", ErrInvariantViolated, newCapacity))
	}

	delta := types.NewFixedPointFromInt(newCapacity).Sub(r.totalCapacity).IntPart()
	if delta < 0 {
		r.decreaseCapacity(-delta)
	} else {
		r.increaseCapacity(delta)
	}
	r.totalCapacity = types.NewFixedPointFromInt(newCapacity)
}

// increaseCapacity grows the ledger by increment whole units. A pending
// decrement backlog is paid down first, since a grow cancels an earlier
// phantom shrink; only the remainder materializes as dynamically created
// slots.
func (r *ResourceIds) increaseCapacity(increment int64) {
	materialized := increment - r.decrementBacklog
	if materialized < 0 {
		materialized = 0
	}
	r.decrementBacklog -= increment
	if r.decrementBacklog < 0 {
		r.decrementBacklog = 0
	}

	for i := int64(0); i < materialized; i++ {
		r.wholeIds = append(r.wholeIds, DynamicResourceId)
	}
}

// decreaseCapacity shrinks the ledger by decrement whole units. Whatever
// whole-unit quantity is on hand is acquired and discarded immediately;
// the shortfall, if any, becomes decrement backlog to be swallowed out of
// future returns. Fractionals count toward the on-hand quantity only after
// truncation, because capacity moves in whole units.
func (r *ResourceIds) decreaseCapacity(decrement int64) {
	available := r.TotalQuantity().IntPart()
	if available < decrement {
		r.decrementBacklog += decrement - available
		if available > 0 {
			r.Acquire(types.NewFixedPointFromInt(available))
		}
	} else {
		r.Acquire(types.NewFixedPointFromInt(decrement))
	}
}

// String renders the ledger for diagnostics.
func (r *ResourceIds) String() string {
	var builder strings.Builder
	builder.WriteString("Whole IDs: [")
	for i, id := range r.wholeIds {
		if i > 0 {
			builder.WriteString(", ")
		}
		builder.WriteString(fmt.Sprintf("%d", id))
	}
	builder.WriteString("], Fractional IDs: [")
	for i, fractional := range r.fractionalIds {
		if i > 0 {
			builder.WriteString(", ")
		}
		builder.WriteString(fmt.Sprintf("(%d, %s)", fractional.Id, fractional.Residual))
	}
	builder.WriteString("]")
	return builder.String()
}
