package orderbook

import (
	"sort"
	"strings"
)

// Scoring weights from spec.md section 4.4: "60% inverse price, 30%
// trust, 10% locality".
const (
	priceWeight    = 0.60
	trustWeight    = 0.30
	localityWeight = 0.10
)

// satisfiesHardConstraints reports whether offer meets every hard
// requirement in req: GPU count, per-GPU VRAM, required features,
// model substring, price ceiling, availability, and total budget.
func satisfiesHardConstraints(req Requirements, offer CapacityAnnouncement) (allocatedHours uint32, totalPrice uint64, ok bool) {
	if uint32(len(offer.Gpus)) < req.MinGpus {
		return 0, 0, false
	}
	for _, g := range offer.Gpus {
		if g.VramGB < req.MinVramGB {
			return 0, 0, false
		}
	}
	if !offer.Features.Satisfies(req.RequiredFeatures) {
		return 0, 0, false
	}
	if req.Model != "" {
		match := false
		needle := strings.ToLower(req.Model)
		for _, g := range offer.Gpus {
			if strings.Contains(g.CanonicalModel(), needle) {
				match = true
				break
			}
		}
		if !match {
			return 0, 0, false
		}
	}
	if offer.PricePerHour > req.MaxPricePerHour {
		return 0, 0, false
	}
	if offer.AvailableHours < req.EstimatedHours {
		return 0, 0, false
	}

	allocatedHours = req.EstimatedHours
	totalPrice = offer.PricePerHour * uint64(req.MinGpus) * uint64(allocatedHours)
	if totalPrice > req.MaxTotalBudget {
		return 0, 0, false
	}
	return allocatedHours, totalPrice, true
}

// localityBonus returns 1.0 when the offer's location matches the
// buyer's preferred location and a preference was actually expressed,
// 0 otherwise.
func localityBonus(req Requirements, offer CapacityAnnouncement) float64 {
	if req.PreferredLocation == "" {
		return 0
	}
	if strings.EqualFold(req.PreferredLocation, offer.Location) {
		return 1.0
	}
	return 0
}

// matchOffers scores every offer surviving the hard constraints and
// returns them sorted by descending score, breaking ties by ascending
// peer identity byte order (spec.md section 4.4, property P8: matching
// is a deterministic pure function of the book's state and the
// query). It is free of side effects: it reads offers and trustLookup
// and nothing else.
func matchOffers(req Requirements, offers []CapacityAnnouncement, trustLookup TrustLookup) []Match {
	type survivor struct {
		offer          CapacityAnnouncement
		allocatedHours uint32
		totalPrice     uint64
		invPrice       float64
		trust          float64
	}

	survivors := make([]survivor, 0, len(offers))
	maxInvPrice := 0.0
	for _, offer := range offers {
		allocated, total, ok := satisfiesHardConstraints(req, offer)
		if !ok {
			continue
		}
		var invPrice float64
		if offer.PricePerHour > 0 {
			invPrice = 1.0 / float64(offer.PricePerHour)
		} else {
			invPrice = 1.0
		}
		if invPrice > maxInvPrice {
			maxInvPrice = invPrice
		}
		survivors = append(survivors, survivor{
			offer:          offer,
			allocatedHours: allocated,
			totalPrice:     total,
			invPrice:       invPrice,
			trust:          trustLookup(offer.Peer),
		})
	}

	matches := make([]Match, 0, len(survivors))
	for _, s := range survivors {
		normalizedPrice := 0.0
		if maxInvPrice > 0 {
			normalizedPrice = s.invPrice / maxInvPrice
		}
		score := priceWeight*normalizedPrice + trustWeight*s.trust + localityWeight*localityBonus(req, s.offer)
		matches = append(matches, Match{
			Offer:          s.offer,
			Score:          score,
			AllocatedHours: s.allocatedHours,
			TotalPrice:     s.totalPrice,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Offer.Peer.Less(matches[j].Offer.Peer)
	})

	return matches
}
