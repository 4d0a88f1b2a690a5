// Package economy holds the per-player production-chain state: owned
// buildings, workforce, stockpiles and trade ledger, together with the ratio
// solver, the generation cache and the per-tick advance.
//
// A PlayerEconomy is not safe for concurrent use. The world loop is its only
// mutator.
package economy

import (
	"fmt"
	"sort"

	"econcraft.ai/internal/sim/catalogs"
	"econcraft.ai/internal/sim/terrain"
)

type Stockpile struct {
	Current uint32 `json:"current"`
	Maximum uint32 `json:"maximum"`
}

type Workers struct {
	Hired    uint32 `json:"hired"`
	Capacity uint32 `json:"capacity"`
}

// OwnedBuilding aggregates every building of one type a player owns.
type OwnedBuilding struct {
	Count      uint32                      `json:"count"`
	Workers    Workers                     `json:"workers"`
	Placements map[terrain.Position]uint32 `json:"-"`
}

type Population struct {
	Idle    uint32 `json:"idle"`
	Total   uint32 `json:"total"`
	Maximum uint32 `json:"maximum"`
}

// Config holds the values a fresh player starts from.
type Config struct {
	StockpileMaximum uint32
	Population       Population
}

func DefaultConfig() Config {
	return Config{
		StockpileMaximum: 100,
		Population:       Population{Idle: 5, Total: 5, Maximum: 10},
	}
}

type PlayerEconomy struct {
	cat  *catalogs.Catalog
	deps *catalogs.DependencyIndex

	buildings  map[catalogs.BuildingID]*OwnedBuilding
	people     Population
	stockpiles map[catalogs.ResourceID]*Stockpile
	lands      map[terrain.Position]struct{}
	ledger     Ledger

	gen GenerationCache

	stockpileMaximum uint32
}

func New(cat *catalogs.Catalog, deps *catalogs.DependencyIndex) *PlayerEconomy {
	return NewWithConfig(cat, deps, DefaultConfig())
}

func NewWithConfig(cat *catalogs.Catalog, deps *catalogs.DependencyIndex, cfg Config) *PlayerEconomy {
	if cfg.StockpileMaximum == 0 {
		cfg.StockpileMaximum = DefaultConfig().StockpileMaximum
	}
	return &PlayerEconomy{
		cat:              cat,
		deps:             deps,
		buildings:        map[catalogs.BuildingID]*OwnedBuilding{},
		people:           cfg.Population,
		stockpiles:       map[catalogs.ResourceID]*Stockpile{},
		lands:            map[terrain.Position]struct{}{},
		ledger:           newLedger(),
		gen:              newGenerationCache(),
		stockpileMaximum: cfg.StockpileMaximum,
	}
}

func (p *PlayerEconomy) Catalog() *catalogs.Catalog { return p.cat }

// Stockpile returns a copy of the stockpile for rid.
func (p *PlayerEconomy) Stockpile(rid catalogs.ResourceID) (Stockpile, bool) {
	s, ok := p.stockpiles[rid]
	if !ok {
		return Stockpile{}, false
	}
	return *s, true
}

// Owned returns a copy of the aggregate for a building type.
func (p *PlayerEconomy) Owned(id catalogs.BuildingID) (OwnedBuilding, bool) {
	ob, ok := p.buildings[id]
	if !ok {
		return OwnedBuilding{}, false
	}
	cp := *ob
	cp.Placements = make(map[terrain.Position]uint32, len(ob.Placements))
	for pos, n := range ob.Placements {
		cp.Placements[pos] = n
	}
	return cp, true
}

// PlacedAt returns how many buildings of type id stand at pos.
func (p *PlayerEconomy) PlacedAt(id catalogs.BuildingID, pos terrain.Position) uint32 {
	ob, ok := p.buildings[id]
	if !ok {
		return 0
	}
	return ob.Placements[pos]
}

func (p *PlayerEconomy) Population() Population { return p.people }

// OwnedIDs returns the owned building types in ascending order.
func (p *PlayerEconomy) OwnedIDs() []catalogs.BuildingID {
	ids := make([]catalogs.BuildingID, 0, len(p.buildings))
	for id := range p.buildings {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// StockpileIDs returns the resources with a stockpile in ascending order.
func (p *PlayerEconomy) StockpileIDs() []catalogs.ResourceID {
	ids := make([]catalogs.ResourceID, 0, len(p.stockpiles))
	for id := range p.stockpiles {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Lands returns every position the player has built on, sorted.
func (p *PlayerEconomy) Lands() []terrain.Position {
	out := make([]terrain.Position, 0, len(p.lands))
	for pos := range p.lands {
		out = append(out, pos)
	}
	sortPositions(out)
	return out
}

func (p *PlayerEconomy) OwnsLand(pos terrain.Position) bool {
	_, ok := p.lands[pos]
	return ok
}

func (p *PlayerEconomy) hired(id catalogs.BuildingID) uint32 {
	if ob, ok := p.buildings[id]; ok {
		return ob.Workers.Hired
	}
	return 0
}

func (p *PlayerEconomy) available(rid catalogs.ResourceID) uint32 {
	if s, ok := p.stockpiles[rid]; ok {
		return s.Current
	}
	return 0
}

func (p *PlayerEconomy) stockpile(rid catalogs.ResourceID) *Stockpile {
	s, ok := p.stockpiles[rid]
	if !ok {
		s = &Stockpile{Maximum: p.stockpileMaximum}
		p.stockpiles[rid] = s
	}
	return s
}

// Grant adds buildings without any slot, cost or prerequisite check. It is
// used for the starting set handed out at registration.
func (p *PlayerEconomy) Grant(pos terrain.Position, id catalogs.BuildingID, amount uint32) error {
	b, ok := p.cat.Buildings[id]
	if !ok {
		return &Error{Code: CodeUnknownBuilding, Building: id}
	}
	p.addBuilding(pos, id, b, amount)
	p.gen.dirty = true
	return nil
}

func (p *PlayerEconomy) addBuilding(pos terrain.Position, id catalogs.BuildingID, b *catalogs.Building, amount uint32) {
	if amount == 0 {
		return
	}
	ob, ok := p.buildings[id]
	if !ok {
		ob = &OwnedBuilding{Placements: map[terrain.Position]uint32{}}
		p.buildings[id] = ob
	}
	ob.Count += amount
	ob.Workers.Capacity += amount * b.MaxWorkers
	ob.Placements[pos] += amount
	p.lands[pos] = struct{}{}
}

// State is the durable part of a PlayerEconomy. The generation cache is
// deliberately absent.
type State struct {
	Buildings  map[catalogs.BuildingID]OwnedBuilding
	Population Population
	Stockpiles map[catalogs.ResourceID]Stockpile
	Lands      []terrain.Position
	Ledger     Ledger
}

// State returns a deep copy of the durable fields.
func (p *PlayerEconomy) State() State {
	st := State{
		Buildings:  make(map[catalogs.BuildingID]OwnedBuilding, len(p.buildings)),
		Population: p.people,
		Stockpiles: make(map[catalogs.ResourceID]Stockpile, len(p.stockpiles)),
		Lands:      p.Lands(),
		Ledger:     p.ledger.clone(),
	}
	for id := range p.buildings {
		st.Buildings[id], _ = p.Owned(id)
	}
	for rid, s := range p.stockpiles {
		st.Stockpiles[rid] = *s
	}
	return st
}

// Restore rebuilds a PlayerEconomy from durable state, checking every
// invariant. The generation cache starts dirty.
func Restore(cat *catalogs.Catalog, deps *catalogs.DependencyIndex, cfg Config, st State) (*PlayerEconomy, error) {
	p := NewWithConfig(cat, deps, cfg)
	pop := st.Population
	if pop.Idle > pop.Total || pop.Total > pop.Maximum {
		return nil, fmt.Errorf("population %d/%d/%d violates idle <= total <= maximum", pop.Idle, pop.Total, pop.Maximum)
	}
	p.people = pop

	for id, ob := range st.Buildings {
		b, ok := cat.Buildings[id]
		if !ok {
			return nil, fmt.Errorf("unknown building id %d", id)
		}
		if ob.Workers.Capacity != ob.Count*b.MaxWorkers {
			return nil, fmt.Errorf("building %d: capacity %d != %d * %d", id, ob.Workers.Capacity, ob.Count, b.MaxWorkers)
		}
		if ob.Workers.Hired > ob.Workers.Capacity {
			return nil, fmt.Errorf("building %d: hired %d exceeds capacity %d", id, ob.Workers.Hired, ob.Workers.Capacity)
		}
		var placed uint32
		cp := &OwnedBuilding{Count: ob.Count, Workers: ob.Workers, Placements: map[terrain.Position]uint32{}}
		for pos, n := range ob.Placements {
			placed += n
			if n > 0 {
				cp.Placements[pos] = n
			}
		}
		if placed != ob.Count {
			return nil, fmt.Errorf("building %d: placements sum %d != count %d", id, placed, ob.Count)
		}
		p.buildings[id] = cp
	}
	for rid, s := range st.Stockpiles {
		if _, ok := cat.Resources[rid]; !ok {
			return nil, fmt.Errorf("unknown resource id %d", rid)
		}
		if s.Current > s.Maximum {
			return nil, fmt.Errorf("resource %d: current %d exceeds maximum %d", rid, s.Current, s.Maximum)
		}
		s := s
		p.stockpiles[rid] = &s
	}
	for _, pos := range st.Lands {
		p.lands[pos] = struct{}{}
	}
	p.ledger = st.Ledger.clone()
	return p, nil
}

func sortPositions(ps []terrain.Position) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].X != ps[j].X {
			return ps[i].X < ps[j].X
		}
		return ps[i].Y < ps[j].Y
	})
}
