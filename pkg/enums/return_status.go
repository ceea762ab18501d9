package enums

import "fmt"

// ReturnStatus tracks a return request through its adjudication machine.
//
// Allowed transitions: pending -> approved -> refunded, pending -> declined.
type ReturnStatus string

const (
	ReturnStatusPending  ReturnStatus = "pending"
	ReturnStatusApproved ReturnStatus = "approved"
	ReturnStatusDeclined ReturnStatus = "declined"
	ReturnStatusRefunded ReturnStatus = "refunded"
)

var validReturnStatuses = []ReturnStatus{
	ReturnStatusPending,
	ReturnStatusApproved,
	ReturnStatusDeclined,
	ReturnStatusRefunded,
}

var returnTransitions = map[ReturnStatus][]ReturnStatus{
	ReturnStatusPending:  {ReturnStatusApproved, ReturnStatusDeclined},
	ReturnStatusApproved: {ReturnStatusRefunded},
	ReturnStatusDeclined: {},
	ReturnStatusRefunded: {},
}

// String implements fmt.Stringer.
func (r ReturnStatus) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ReturnStatus.
func (r ReturnStatus) IsValid() bool {
	for _, candidate := range validReturnStatuses {
		if candidate == r {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether the state machine permits moving to target.
func (r ReturnStatus) CanTransitionTo(target ReturnStatus) bool {
	for _, candidate := range returnTransitions[r] {
		if candidate == target {
			return true
		}
	}
	return false
}

// ParseReturnStatus converts raw input into a ReturnStatus.
func ParseReturnStatus(value string) (ReturnStatus, error) {
	for _, candidate := range validReturnStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid return status %q", value)
}
