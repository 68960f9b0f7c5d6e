package entity

// Status constants for Request
const (
	StatusPending         = "pending"
	StatusApproved        = "approved"
	StatusRejected        = "rejected"
	StatusInProgress      = "in-progress"
	StatusNeedsCorrection = "needs-correction"
	StatusCompleted       = "completed"
)

// Priority constants shared by Request and Notification
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Approval step status constants
const (
	StepStatusPending  = "pending"
	StepStatusApproved = "approved"
	StepStatusRejected = "rejected"
)

// Role constants supplied by the authentication collaborator
const (
	RoleRequester = "requester"
	RoleApprover  = "approver"
	RoleAdmin     = "admin"
)

var validStatuses = map[string]bool{
	StatusPending:         true,
	StatusApproved:        true,
	StatusRejected:        true,
	StatusInProgress:      true,
	StatusNeedsCorrection: true,
	StatusCompleted:       true,
}

var validPriorities = map[string]bool{
	PriorityLow:    true,
	PriorityMedium: true,
	PriorityHigh:   true,
	PriorityUrgent: true,
}

// priorityRank orders priorities for sorting (higher is more urgent)
var priorityRank = map[string]int{
	PriorityLow:    0,
	PriorityMedium: 1,
	PriorityHigh:   2,
	PriorityUrgent: 3,
}

// IsValidStatus reports whether s is a known request status
func IsValidStatus(s string) bool {
	return validStatuses[s]
}

// IsValidPriority reports whether p is a known priority
func IsValidPriority(p string) bool {
	return validPriorities[p]
}

// PriorityRank returns the sort rank of a priority, -1 when unknown
func PriorityRank(p string) int {
	if r, ok := priorityRank[p]; ok {
		return r
	}
	return -1
}

// IsPrivilegedRole reports whether the role may act on any request
func IsPrivilegedRole(role string) bool {
	return role == RoleApprover || role == RoleAdmin
}
