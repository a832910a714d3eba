package pricing

import (
	"testing"

	"bengkelpos/backend/internal/domain"
)

func TestResolveUsesBasePriceWithoutTiers(t *testing.T) {
	svc := domain.Service{ID: "svc-1", Name: "Cuci Motor", BasePrice: 15000}

	for _, vt := range []string{domain.VehicleTypeR2, domain.VehicleTypeR3, domain.VehicleTypeR4} {
		for _, vs := range []string{domain.VehicleSizeKecil, domain.VehicleSizeSedang, domain.VehicleSizeBesar, domain.VehicleSizeJumbo} {
			if got := Resolve(svc, nil, vt, vs); got != 15000 {
				t.Fatalf("expected base price 15000 for %s/%s, got %d", vt, vs, got)
			}
		}
	}
}

func TestResolveMatchingTierWins(t *testing.T) {
	svc := domain.Service{ID: "svc-1", Name: "Ganti Oli", BasePrice: 40000}
	tiers := []domain.ServicePrice{
		{ServiceID: "svc-1", VehicleType: domain.VehicleTypeR2, VehicleSize: domain.VehicleSizeKecil, Price: 30000},
		{ServiceID: "svc-1", VehicleType: domain.VehicleTypeR4, VehicleSize: domain.VehicleSizeBesar, Price: 90000},
	}

	if got := Resolve(svc, tiers, domain.VehicleTypeR2, domain.VehicleSizeKecil); got != 30000 {
		t.Fatalf("expected tier price 30000, got %d", got)
	}
	if got := Resolve(svc, tiers, domain.VehicleTypeR4, domain.VehicleSizeBesar); got != 90000 {
		t.Fatalf("expected tier price 90000, got %d", got)
	}
}

func TestResolveUnmatchedClassificationIsZero(t *testing.T) {
	svc := domain.Service{ID: "svc-1", Name: "Ganti Oli", BasePrice: 40000}
	tiers := []domain.ServicePrice{
		{ServiceID: "svc-1", VehicleType: domain.VehicleTypeR2, VehicleSize: domain.VehicleSizeKecil, Price: 30000},
	}

	// Tiered service with no tier for the classification sells at 0, not base.
	if got := Resolve(svc, tiers, domain.VehicleTypeR4, domain.VehicleSizeJumbo); got != 0 {
		t.Fatalf("expected 0 for unmatched classification, got %d", got)
	}
}

func TestResolveIgnoresTiersOfOtherServices(t *testing.T) {
	svc := domain.Service{ID: "svc-1", Name: "Tune Up", BasePrice: 50000}
	tiers := []domain.ServicePrice{
		{ServiceID: "svc-2", VehicleType: domain.VehicleTypeR2, VehicleSize: domain.VehicleSizeKecil, Price: 1},
		{ServiceID: "svc-1", VehicleType: domain.VehicleTypeR2, VehicleSize: domain.VehicleSizeKecil, Price: 35000},
	}

	if got := Resolve(svc, tiers, domain.VehicleTypeR2, domain.VehicleSizeKecil); got != 35000 {
		t.Fatalf("expected 35000, got %d", got)
	}
}
