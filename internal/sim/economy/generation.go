package economy

import "econcraft.ai/internal/sim/catalogs"

// truncSlack absorbs the rounding left by avail/needed*needed so a share
// that is an integer in exact arithmetic is not truncated one unit low.
const truncSlack = 1e-9

// GenerationCache memoizes the ratios and per-resource deltas between ticks.
// Any change to buildings, workers or stockpiles marks it dirty.
type GenerationCache struct {
	dirty  bool
	ratios map[catalogs.BuildingID]float32
	deltas map[catalogs.ResourceID]int32
}

func newGenerationCache() GenerationCache {
	return GenerationCache{
		dirty:  true,
		ratios: map[catalogs.BuildingID]float32{},
		deltas: map[catalogs.ResourceID]int32{},
	}
}

func (p *PlayerEconomy) Dirty() bool { return p.gen.dirty }

// MarkDirty forces a recompute on the next tick.
func (p *PlayerEconomy) MarkDirty() { p.gen.dirty = true }

// Ratios returns a copy of the cached ratios.
func (p *PlayerEconomy) Ratios() map[catalogs.BuildingID]float32 {
	out := make(map[catalogs.BuildingID]float32, len(p.gen.ratios))
	for id, r := range p.gen.ratios {
		out[id] = r
	}
	return out
}

// Deltas returns a copy of the cached per-tick net change.
func (p *PlayerEconomy) Deltas() map[catalogs.ResourceID]int32 {
	out := make(map[catalogs.ResourceID]int32, len(p.gen.deltas))
	for id, d := range p.gen.deltas {
		out[id] = d
	}
	return out
}

// EnsureFresh recomputes ratios and deltas if the cache is dirty and reports
// whether it did. Each produced or consumed contribution is truncated toward
// zero on its own before being summed.
func (p *PlayerEconomy) EnsureFresh() bool {
	if !p.gen.dirty {
		return false
	}
	exact := solveRatios(p)
	ratios := make(map[catalogs.BuildingID]float32, len(exact))
	for id, r := range exact {
		ratios[id] = float32(r)
	}
	deltas := map[catalogs.ResourceID]int32{}
	for _, id := range p.OwnedIDs() {
		b := p.cat.Buildings[id]
		hired := uint64(p.buildings[id].Workers.Hired)
		r, ok := exact[id]
		if !ok {
			r = 1
		}
		for rid, amt := range b.Produced {
			deltas[rid] += share(amt, hired, r)
		}
		for rid, amt := range b.Consumed {
			deltas[rid] -= share(amt, hired, r)
		}
	}
	p.gen.ratios = ratios
	p.gen.deltas = deltas
	p.gen.dirty = false
	return true
}

// share is amt*hired*r truncated toward zero.
func share(amt uint32, hired uint64, r float64) int32 {
	v := float64(uint64(amt)*hired) * r
	if r < 1 {
		v *= 1 + truncSlack
	}
	return int32(v)
}
