package world

import (
	"fmt"

	"econcraft.ai/internal/persistence/snapshot"
	"econcraft.ai/internal/sim/catalogs"
	"econcraft.ai/internal/sim/economy"
	"econcraft.ai/internal/sim/terrain"
)

// ExportSnapshot captures the durable state after tick completed. Generation
// caches are left out; they are rebuilt on import.
func (w *World) ExportSnapshot(tick uint64) snapshot.SnapshotV1 {
	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version: 1,
			WorldID: w.cfg.ID,
			Tick:    tick,
		},
		Seed:             w.cfg.Tuning.Terrain.Seed,
		TickRateHz:       int(w.clock.Rate()),
		Paused:           w.paused,
		StockpileMaximum: w.econ.StockpileMaximum,
		MaxSlotsPerTile:  w.cfg.Tuning.Terrain.MaxSlotsPerTile,
		BuildingsDigest:  w.cat.BuildingsDigest,
		ResourcesDigest:  w.cat.ResourcesDigest,
		Counters:         snapshot.CountersV1{NextPlayer: w.nextPlayerNum.Load()},
	}

	for _, p := range w.sortedPlayers() {
		snap.Players = append(snap.Players, exportPlayer(p))
	}

	positions := make([]terrain.Position, 0, len(w.tiles))
	for pos := range w.tiles {
		positions = append(positions, pos)
	}
	sortPositions(positions)
	for _, pos := range positions {
		t := w.tiles[pos]
		tv := snapshot.TileV1{X: pos.X, Y: pos.Y}
		ids := make([]catalogs.BuildingID, 0, len(t.Slots))
		for id, s := range t.Slots {
			if s.Used > 0 {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			// Untouched tiles regenerate from the seed.
			continue
		}
		sortBuildingIDs(ids)
		for _, id := range ids {
			s := t.Slots[id]
			tv.Slots = append(tv.Slots, snapshot.SlotV1{Building: uint8(id), Used: s.Used, Total: s.Total})
		}
		snap.Tiles = append(snap.Tiles, tv)
	}
	return snap
}

func exportPlayer(p *Player) snapshot.PlayerV1 {
	st := p.Econ.State()
	pv := snapshot.PlayerV1{
		ID:          p.ID,
		Name:        p.Name,
		ResumeToken: p.ResumeToken,
		Population: snapshot.PopulationV1{
			Idle:    st.Population.Idle,
			Total:   st.Population.Total,
			Maximum: st.Population.Maximum,
		},
	}
	for _, id := range p.Econ.OwnedIDs() {
		ob := st.Buildings[id]
		bv := snapshot.BuildingV1{
			Building: uint8(id),
			Count:    ob.Count,
			Hired:    ob.Workers.Hired,
			Capacity: ob.Workers.Capacity,
		}
		positions := make([]terrain.Position, 0, len(ob.Placements))
		for pos := range ob.Placements {
			positions = append(positions, pos)
		}
		sortPositions(positions)
		for _, pos := range positions {
			bv.Placements = append(bv.Placements, snapshot.PlacementV1{X: pos.X, Y: pos.Y, Count: ob.Placements[pos]})
		}
		pv.Buildings = append(pv.Buildings, bv)
	}
	for _, rid := range p.Econ.StockpileIDs() {
		s := st.Stockpiles[rid]
		pv.Stockpiles = append(pv.Stockpiles, snapshot.StockpileV1{Resource: uint8(rid), Current: s.Current, Maximum: s.Maximum})
	}
	for _, pos := range st.Lands {
		pv.Lands = append(pv.Lands, [2]int32{pos.X, pos.Y})
	}
	pv.Inbound = exportLedgerSide(st.Ledger.Inbound)
	pv.Outbound = exportLedgerSide(st.Ledger.Outbound)
	return pv
}

func exportLedgerSide(m map[string][]economy.Offer) []snapshot.LedgerEntryV1 {
	var out []snapshot.LedgerEntryV1
	for _, po := range peerOffers(m) {
		for _, o := range po.Offers {
			e := snapshot.LedgerEntryV1{Peer: po.Peer}
			for _, ra := range o.Offering {
				e.Offering = append(e.Offering, snapshot.EntryV1{Resource: ra.Resource, Amount: ra.Amount})
			}
			for _, ra := range o.Requesting {
				e.Requesting = append(e.Requesting, snapshot.EntryV1{Resource: ra.Resource, Amount: ra.Amount})
			}
			out = append(out, e)
		}
	}
	return out
}

// ImportSnapshot replaces the world state with snap. It must be called
// before Run. Every restored economy starts with a dirty generation cache.
func (w *World) ImportSnapshot(snap snapshot.SnapshotV1) error {
	if snap.Header.Version != 1 {
		return fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	if snap.BuildingsDigest != w.cat.BuildingsDigest || snap.ResourcesDigest != w.cat.ResourcesDigest {
		w.logger.Printf("snapshot tick %d was taken with different catalogs; ids are revalidated on load", snap.Header.Tick)
	}

	players := map[string]*Player{}
	byName := map[string]string{}
	byToken := map[string]string{}
	placed := map[terrain.Position]map[catalogs.BuildingID]uint32{}
	for _, pv := range snap.Players {
		if _, dup := players[pv.ID]; dup {
			return fmt.Errorf("duplicate player id %s", pv.ID)
		}
		if _, dup := byName[pv.Name]; dup {
			return fmt.Errorf("duplicate player name %q", pv.Name)
		}
		st := importState(pv)
		econ, err := economy.Restore(w.cat, w.deps, w.econ, st)
		if err != nil {
			return fmt.Errorf("player %s: %w", pv.ID, err)
		}
		for id, ob := range st.Buildings {
			for pos, n := range ob.Placements {
				if placed[pos] == nil {
					placed[pos] = map[catalogs.BuildingID]uint32{}
				}
				placed[pos][id] += n
			}
		}
		players[pv.ID] = &Player{ID: pv.ID, Name: pv.Name, ResumeToken: pv.ResumeToken, Econ: econ}
		byName[pv.Name] = pv.ID
		if pv.ResumeToken != "" {
			byToken[pv.ResumeToken] = pv.ID
		}
	}

	tiles := map[terrain.Position]*terrain.Tile{}
	for _, tv := range snap.Tiles {
		pos := terrain.Position{X: tv.X, Y: tv.Y}
		t := w.terrain.Tile(pos)
		for _, sv := range tv.Slots {
			id := catalogs.BuildingID(sv.Building)
			if sv.Used > sv.Total {
				return fmt.Errorf("tile %s: building %d uses %d of %d slots", pos, id, sv.Used, sv.Total)
			}
			if got := placed[pos][id]; got != sv.Used {
				return fmt.Errorf("tile %s: building %d uses %d slots but players placed %d", pos, id, sv.Used, got)
			}
			t.Slots[id] = &terrain.Slots{Used: sv.Used, Total: sv.Total}
		}
		tiles[pos] = t
	}
	for pos, byID := range placed {
		for id, n := range byID {
			t := tiles[pos]
			if n > 0 && (t == nil || t.Slots[id] == nil) {
				return fmt.Errorf("tile %s: building %d placed %d times but tile not recorded", pos, id, n)
			}
		}
	}

	w.players = players
	w.byName = byName
	w.byToken = byToken
	w.tiles = tiles
	w.clients = map[string]*clientState{}
	w.paused = snap.Paused
	if snap.TickRateHz > 0 && snap.TickRateHz <= 255 {
		w.clock.SetRate(uint8(snap.TickRateHz))
	}
	w.nextPlayerNum.Store(snap.Counters.NextPlayer)
	w.tick.Store(snap.Header.Tick + 1)
	return nil
}

func importState(pv snapshot.PlayerV1) economy.State {
	st := economy.State{
		Buildings: map[catalogs.BuildingID]economy.OwnedBuilding{},
		Population: economy.Population{
			Idle:    pv.Population.Idle,
			Total:   pv.Population.Total,
			Maximum: pv.Population.Maximum,
		},
		Stockpiles: map[catalogs.ResourceID]economy.Stockpile{},
		Ledger: economy.Ledger{
			Inbound:  importLedgerSide(pv.Inbound),
			Outbound: importLedgerSide(pv.Outbound),
		},
	}
	for _, bv := range pv.Buildings {
		ob := economy.OwnedBuilding{
			Count:      bv.Count,
			Workers:    economy.Workers{Hired: bv.Hired, Capacity: bv.Capacity},
			Placements: map[terrain.Position]uint32{},
		}
		for _, pl := range bv.Placements {
			ob.Placements[terrain.Position{X: pl.X, Y: pl.Y}] += pl.Count
		}
		st.Buildings[catalogs.BuildingID(bv.Building)] = ob
	}
	for _, sv := range pv.Stockpiles {
		st.Stockpiles[catalogs.ResourceID(sv.Resource)] = economy.Stockpile{Current: sv.Current, Maximum: sv.Maximum}
	}
	for _, l := range pv.Lands {
		st.Lands = append(st.Lands, terrain.Position{X: l[0], Y: l[1]})
	}
	return st
}

func importLedgerSide(entries []snapshot.LedgerEntryV1) map[string][]economy.Offer {
	m := map[string][]economy.Offer{}
	for _, e := range entries {
		o := economy.Offer{}
		for _, x := range e.Offering {
			o.Offering = append(o.Offering, economy.ResourceEntry{ID: catalogs.ResourceID(x.Resource), Amount: x.Amount})
		}
		for _, x := range e.Requesting {
			o.Requesting = append(o.Requesting, economy.ResourceEntry{ID: catalogs.ResourceID(x.Resource), Amount: x.Amount})
		}
		m[e.Peer] = append(m[e.Peer], o)
	}
	return m
}
