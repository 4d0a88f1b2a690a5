package economy

import "econcraft.ai/internal/sim/catalogs"

// SolveRatios assigns each building type the fraction of its nominal
// throughput it can run at given current stockpiles.
//
// Free buildings run at 1. Resources are visited in ascending id order; for
// each one the demand of its consumers is summed, scaled by the ratio each
// consumer already holds, and compared with what is in stock. Every consumer
// takes the minimum of its current ratio and the resource's ratio. This is a
// single pass, so a ratio lowered by a later resource does not revisit the
// demand computed for an earlier one.
func SolveRatios(p *PlayerEconomy) map[catalogs.BuildingID]float32 {
	exact := solveRatios(p)
	out := make(map[catalogs.BuildingID]float32, len(exact))
	for id, r := range exact {
		out[id] = float32(r)
	}
	return out
}

// solveRatios keeps full precision; deltas are computed from these.
func solveRatios(p *PlayerEconomy) map[catalogs.BuildingID]float64 {
	ratios := make(map[catalogs.BuildingID]float64, len(p.deps.Free)+len(p.buildings))
	for _, id := range p.deps.Free {
		ratios[id] = 1
	}
	for _, rid := range p.deps.Resources() {
		consumers := p.deps.Consumers[rid]
		var needed float64
		for _, bid := range consumers {
			hired := p.hired(bid)
			if hired == 0 {
				continue
			}
			r, ok := ratios[bid]
			if !ok {
				r = 1
			}
			needed += float64(p.cat.Buildings[bid].Consumed[rid]) * float64(hired) * r
		}
		ratio := 1.0
		if needed > 0 {
			if avail := float64(p.available(rid)); avail < needed {
				ratio = avail / needed
			}
		}
		for _, bid := range consumers {
			if cur, ok := ratios[bid]; !ok || ratio < cur {
				ratios[bid] = ratio
			}
		}
	}
	return ratios
}
