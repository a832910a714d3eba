package loyalty

import (
	"testing"

	"bengkelpos/backend/internal/domain"
)

func TestEarnedPoints(t *testing.T) {
	cfg := domain.PointConfig{EarnPer: 10000, EarnPoint: 1}

	if got := EarnedPoints(25000, cfg); got != 2 {
		t.Fatalf("expected 2 points for 25000, got %d", got)
	}
	if got := EarnedPoints(9999, cfg); got != 0 {
		t.Fatalf("expected 0 points below earn_per, got %d", got)
	}
	if got := EarnedPoints(130000, cfg); got != 13 {
		t.Fatalf("expected 13 points for 130000, got %d", got)
	}
	if got := EarnedPoints(50000, domain.PointConfig{EarnPer: 25000, EarnPoint: 5}); got != 10 {
		t.Fatalf("expected 10 points with earn_point=5, got %d", got)
	}
}

func TestEarnedPointsDisabledConfig(t *testing.T) {
	if got := EarnedPoints(100000, domain.PointConfig{}); got != 0 {
		t.Fatalf("expected 0 with zero earn_per, got %d", got)
	}
}

func TestNewBalance(t *testing.T) {
	if got := NewBalance(10, 4, 13); got != 19 {
		t.Fatalf("expected 19, got %d", got)
	}
}

func TestMilestone(t *testing.T) {
	if got := Milestone(4, 5); got != 0 {
		t.Fatalf("expected no milestone below threshold, got %d", got)
	}
	if got := Milestone(5, 5); got != 5 {
		t.Fatalf("expected milestone 5, got %d", got)
	}
	if got := Milestone(12, 5); got != 10 {
		t.Fatalf("expected milestone 10 at 12 visits, got %d", got)
	}
	if got := Milestone(10, 0); got != 0 {
		t.Fatalf("expected 0 milestone with zero threshold, got %d", got)
	}
}

func TestEligibleOncePerMilestone(t *testing.T) {
	claimedSet := map[int]bool{}
	claimed := func(m int) bool { return claimedSet[m] }

	if _, ok := Eligible(4, 5, claimed); ok {
		t.Fatalf("expected ineligible below threshold")
	}

	milestone, ok := Eligible(5, 5, claimed)
	if !ok || milestone != 5 {
		t.Fatalf("expected eligible at milestone 5, got %d/%t", milestone, ok)
	}
	claimedSet[5] = true

	if _, ok := Eligible(5, 5, claimed); ok {
		t.Fatalf("expected ineligible after claim")
	}
	if _, ok := Eligible(9, 5, claimed); ok {
		t.Fatalf("expected ineligible at 9 visits (milestone 5 already claimed)")
	}

	milestone, ok = Eligible(10, 5, claimed)
	if !ok || milestone != 10 {
		t.Fatalf("expected eligible again at milestone 10, got %d/%t", milestone, ok)
	}
}
