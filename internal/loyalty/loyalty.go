// Package loyalty implements point accrual and visit-count milestone rewards.
package loyalty

import "bengkelpos/backend/internal/domain"

// EarnedPoints returns floor(total / earnPer) * earnPoint. A zero or negative
// earnPer disables accrual entirely.
func EarnedPoints(total int64, cfg domain.PointConfig) int64 {
	if cfg.EarnPer <= 0 || total <= 0 {
		return 0
	}
	return (total / cfg.EarnPer) * cfg.EarnPoint
}

// NewBalance applies one completed transaction to a member's point balance.
func NewBalance(current, used, earned int64) int64 {
	return current - used + earned
}

// Milestone returns the highest reward milestone reached by visitCount:
// floor(visitCount / visitsRequired) * visitsRequired. Zero means no milestone
// has been reached yet.
func Milestone(visitCount, visitsRequired int) int {
	if visitsRequired <= 0 || visitCount < visitsRequired {
		return 0
	}
	return (visitCount / visitsRequired) * visitsRequired
}

// Eligible reports whether the member may claim their current milestone.
// claimed answers "does a claim row already exist for this milestone".
func Eligible(visitCount, visitsRequired int, claimed func(milestone int) bool) (int, bool) {
	milestone := Milestone(visitCount, visitsRequired)
	if milestone == 0 {
		return 0, false
	}
	if claimed(milestone) {
		return milestone, false
	}
	return milestone, true
}
