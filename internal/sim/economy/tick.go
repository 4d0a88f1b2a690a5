package economy

import (
	"sort"

	"econcraft.ai/internal/sim/catalogs"
)

// TickReport summarizes one Advance.
type TickReport struct {
	Recomputed bool
	// Shortfalls lists resources that could not cover next tick's
	// consumption. Their presence leaves the cache dirty.
	Shortfalls []catalogs.ResourceID
}

// Advance applies one tick of production and consumption to p. Stockpiles
// are clamped to [0, Maximum]; nothing wraps.
func Advance(p *PlayerEconomy) TickReport {
	rep := TickReport{Recomputed: p.EnsureFresh()}

	ids := make([]catalogs.ResourceID, 0, len(p.gen.deltas))
	for rid := range p.gen.deltas {
		ids = append(ids, rid)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, rid := range ids {
		d := p.gen.deltas[rid]
		s := p.stockpile(rid)
		next := int64(s.Current) + int64(d)
		switch {
		case next < 0:
			next = 0
		case next > int64(s.Maximum):
			next = int64(s.Maximum)
		}
		s.Current = uint32(next)
	}

	for _, rid := range ids {
		d := p.gen.deltas[rid]
		if d < 0 && int64(p.stockpiles[rid].Current) < -int64(d) {
			rep.Shortfalls = append(rep.Shortfalls, rid)
			p.gen.dirty = true
		}
	}
	return rep
}
