package domain

// Visibility and promotion status values. Listings, catalog entries,
// promotion templates and promotions all share the same two states.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Approval status values for listings and suggestions.
const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

// IsValidStatus checks whether s is active or inactive.
func IsValidStatus(s string) bool {
	return s == StatusActive || s == StatusInactive
}

// ValidApprovalStatuses returns the set of valid approval statuses.
func ValidApprovalStatuses() []string {
	return []string{ApprovalPending, ApprovalApproved, ApprovalRejected}
}

// IsValidApprovalStatus checks whether s is a valid approval status.
func IsValidApprovalStatus(s string) bool {
	for _, v := range ValidApprovalStatuses() {
		if v == s {
			return true
		}
	}
	return false
}

// IsDecision reports whether s is a final review decision (approved or rejected).
func IsDecision(s string) bool {
	return s == ApprovalApproved || s == ApprovalRejected
}
