package rider

import (
	"math"
	"sort"
	"strings"
)

// Listed reports whether the rider may appear in any admin-facing listing
func (p *Profile) Listed() bool {
	return p.IsActive && p.IsVerified && !p.IsSuspended
}

// Dispatchable reports whether the rider can be offered a delivery right now
func (p *Profile) Dispatchable() bool {
	return p.Listed() && p.IsAvailable && p.Status == StatusOnline
}

// Indexed reports whether the rider belongs in the location index, which holds
// dispatchable riders with a searchable position only.
func (p *Profile) Indexed() bool {
	loc := p.CurrentLocation
	return p.Dispatchable() && loc != nil && math.Abs(loc.Latitude()) <= MaxIndexedLatitude
}

// ServesArea reports whether the rider's service areas cover city and, when
// given, zipCode. Matching is case-insensitive on trimmed values.
func (p *Profile) ServesArea(city, zipCode string) bool {
	city = strings.TrimSpace(city)
	zipCode = strings.TrimSpace(zipCode)
	if city == "" {
		return false
	}
	cityMatch, zipMatch := false, zipCode == ""
	for _, area := range p.ServiceAreas {
		area = strings.TrimSpace(area)
		if strings.EqualFold(area, city) {
			cityMatch = true
		}
		if zipCode != "" && strings.EqualFold(area, zipCode) {
			zipMatch = true
		}
	}
	return cityMatch && zipMatch
}

// SortTopPerformers orders by averageRating desc, completionRate desc,
// onTimeDeliveryRate desc. Unrated riders sort after rated ones; userId breaks ties.
func SortTopPerformers(profiles []*Profile) {
	sort.SliceStable(profiles, func(i, j int) bool {
		a, b := profiles[i].Stats, profiles[j].Stats
		ra, rb := ratingOrZero(a.AverageRating), ratingOrZero(b.AverageRating)
		if ra != rb {
			return ra > rb
		}
		if a.CompletionRate != b.CompletionRate {
			return a.CompletionRate > b.CompletionRate
		}
		if a.OnTimeDeliveryRate != b.OnTimeDeliveryRate {
			return a.OnTimeDeliveryRate > b.OnTimeDeliveryRate
		}
		return profiles[i].UserID < profiles[j].UserID
	})
}

func ratingOrZero(r *float64) float64 {
	if r == nil {
		return 0
	}
	return *r
}
