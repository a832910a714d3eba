// Package pricing resolves the sale price of a workshop service for a given
// vehicle classification (type x size).
package pricing

import "bengkelpos/backend/internal/domain"

// Resolve picks the price for svc given the vehicle classification.
//
// Rules, in order:
//  1. a tier exactly matching (vehicleType, vehicleSize) wins;
//  2. tiers exist but none matches: the price is 0; a service with any tier
//     configured is never sold at base price;
//  3. no tiers at all: base price.
func Resolve(svc domain.Service, tiers []domain.ServicePrice, vehicleType, vehicleSize string) int64 {
	if len(tiers) == 0 {
		return svc.BasePrice
	}
	for _, tier := range tiers {
		if tier.ServiceID != "" && tier.ServiceID != svc.ID {
			continue
		}
		if tier.VehicleType == vehicleType && tier.VehicleSize == vehicleSize {
			return tier.Price
		}
	}
	return 0
}
