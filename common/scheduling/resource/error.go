package resource

import (
	"errors"
)

var (
	// ErrInvariantViolated indicates that a caller broke one of the accounting
	// invariants: constructing a set with a non-positive quantity, constructing
	// a slot ledger with a non-integral capacity, acquiring more slots than a
	// ledger holds, driving a slot's residual above one, or shrinking a ledger
	// below zero capacity. These are programming errors in
	// the scheduler; the accounting core panics with this error rather than
	// returning it, because the books cannot be trusted afterwards.
	ErrInvariantViolated = errors.New("resource accounting invariant violated")

	// ErrUnknownResource indicates an attempt to operate on a resource name
	// that the target set or ledger does not carry, e.g. strictly subtracting
	// a demand for a resource the node never advertised.
	ErrUnknownResource = errors.New("attempt to operate on an unknown resource")

	// ErrNegativeCapacity indicates that a strict subtraction would have
	// driven a resource's quantity below zero.
	ErrNegativeCapacity = errors.New("resource capacity would become negative")

	// ErrInsufficientResourcesAvailable indicates that a task's demand could
	// not be satisfied from the slots currently available on the node. Unlike
	// the errors above this one is an ordinary outcome: the scheduler is
	// expected to probe nodes that may turn out to be full.
	ErrInsufficientResourcesAvailable = errors.New("there are insufficient resources available to fulfill the request in its entirety")

	// ErrAllocationNotFound indicates that no outstanding slot assignment
	// exists for the specified task.
	ErrAllocationNotFound = errors.New("could not find the resource assignment for the specified task")

	// ErrInvalidAllocationRequest indicates that an assignment request was
	// illegal independent of how many resources are available, such as
	// acquiring resources for a task that already holds an assignment.
	ErrInvalidAllocationRequest = errors.New("the resource assignment could not be completed due to the request being invalid")
)
