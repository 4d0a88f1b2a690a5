package economy

import (
	"fmt"
	"math"

	"econcraft.ai/internal/sim/catalogs"
	"econcraft.ai/internal/sim/terrain"
)

// MaxBuildable returns how many buildings of type id the player can afford
// across tiles. Extractors are further limited by the free slots on those
// tiles. A construction-cost resource the player has never stocked yields 0.
func (p *PlayerEconomy) MaxBuildable(tiles []*terrain.Tile, id catalogs.BuildingID) uint32 {
	b, ok := p.cat.Buildings[id]
	if !ok {
		return 0
	}
	max := uint64(math.MaxUint32)
	if b.Extractor {
		max = 0
		for _, t := range tiles {
			max += uint64(t.Free(id))
		}
		if max > math.MaxUint32 {
			max = math.MaxUint32
		}
	}
	for rid, qt := range b.ConstructionCost {
		s, ok := p.stockpiles[rid]
		if !ok {
			return 0
		}
		if n := uint64(s.Current / qt); n < max {
			max = n
		}
	}
	return uint32(max)
}

// Build places amount buildings of type id on tile, charging the
// construction cost and claiming the tile as the player's land.
func (p *PlayerEconomy) Build(tile *terrain.Tile, id catalogs.BuildingID, amount uint32) error {
	b, ok := p.cat.Buildings[id]
	if !ok {
		return &Error{Code: CodeUnknownBuilding, Building: id}
	}
	for _, pre := range b.Prerequisites {
		if ob, ok := p.buildings[pre]; !ok || ob.Count == 0 {
			return &Error{Code: CodeMissingPrerequisite, Building: pre, Requested: uint32(id)}
		}
	}
	if max := p.MaxBuildable([]*terrain.Tile{tile}, id); amount > max {
		return &Error{Code: CodeInsufficientSlotOrResource, Building: id, Requested: amount, Available: max}
	}
	if amount == 0 {
		return nil
	}

	for rid, qt := range b.ConstructionCost {
		p.stockpiles[rid].Current -= qt * amount
	}
	p.addBuilding(tile.Pos, id, b, amount)
	tile.Occupy(id, amount)
	p.gen.dirty = true
	return nil
}

// Demolish removes amount buildings of type id from tile. Workers beyond
// the reduced capacity return to the idle population.
func (p *PlayerEconomy) Demolish(tile *terrain.Tile, id catalogs.BuildingID, amount uint32) error {
	b, ok := p.cat.Buildings[id]
	if !ok {
		return &Error{Code: CodeUnknownBuilding, Building: id}
	}
	ob, ok := p.buildings[id]
	if !ok || ob.Count < amount {
		var have uint32
		if ok {
			have = ob.Count
		}
		return &Error{Code: CodeInsufficientOwned, Building: id, Requested: amount, Available: have}
	}
	if amount == 0 {
		return nil
	}
	pos := tile.Pos
	if ob.Placements[pos] < amount {
		panic(fmt.Sprintf("economy: demolish %d of building %d at %s but only %d placed there", amount, id, pos, ob.Placements[pos]))
	}

	ob.Count -= amount
	ob.Workers.Capacity -= amount * b.MaxWorkers
	if ob.Placements[pos] -= amount; ob.Placements[pos] == 0 {
		delete(ob.Placements, pos)
	}
	if ob.Workers.Hired > ob.Workers.Capacity {
		p.people.Idle += ob.Workers.Hired - ob.Workers.Capacity
		ob.Workers.Hired = ob.Workers.Capacity
	}
	if ob.Count == 0 {
		delete(p.buildings, id)
	}
	tile.Release(id, amount)
	p.releaseLand(pos)
	p.gen.dirty = true
	return nil
}

// releaseLand drops pos from the player's lands once nothing stands there.
func (p *PlayerEconomy) releaseLand(pos terrain.Position) {
	for _, ob := range p.buildings {
		if ob.Placements[pos] > 0 {
			return
		}
	}
	delete(p.lands, pos)
}
