package world

import (
	"encoding/binary"
	"encoding/hex"
	"io"
	"sort"

	"lukechampine.com/blake3"

	"econcraft.ai/internal/sim/catalogs"
	"econcraft.ai/internal/sim/economy"
	"econcraft.ai/internal/sim/terrain"
)

type digestWriter struct {
	h   io.Writer
	tmp [8]byte
}

func (d *digestWriter) u64(v uint64) {
	binary.LittleEndian.PutUint64(d.tmp[:], v)
	d.h.Write(d.tmp[:])
}

func (d *digestWriter) u32(v uint32) { d.u64(uint64(v)) }

func (d *digestWriter) str(s string) {
	d.u64(uint64(len(s)))
	io.WriteString(d.h, s)
}

// stateDigest hashes the durable world state in a fixed order. Two worlds
// that applied the same joins and commands produce the same digest.
func (w *World) stateDigest(nowTick uint64) string {
	h := blake3.New(32, nil)
	d := &digestWriter{h: h}
	d.u64(nowTick)
	d.u64(uint64(w.cfg.Tuning.Terrain.Seed))

	for _, p := range w.sortedPlayers() {
		d.str(p.ID)
		d.str(p.Name)
		writeEconomy(d, p.Econ)
	}

	positions := make([]terrain.Position, 0, len(w.tiles))
	for pos := range w.tiles {
		positions = append(positions, pos)
	}
	sortPositions(positions)
	for _, pos := range positions {
		t := w.tiles[pos]
		ids := make([]catalogs.BuildingID, 0, len(t.Slots))
		for id, s := range t.Slots {
			if s.Used > 0 {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			continue
		}
		sortBuildingIDs(ids)
		d.u64(uint64(int64(pos.X)))
		d.u64(uint64(int64(pos.Y)))
		for _, id := range ids {
			d.u64(uint64(id))
			d.u32(t.Slots[id].Used)
			d.u32(t.Slots[id].Total)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeEconomy(d *digestWriter, e *economy.PlayerEconomy) {
	pop := e.Population()
	d.u32(pop.Idle)
	d.u32(pop.Total)
	d.u32(pop.Maximum)

	for _, id := range e.OwnedIDs() {
		ob, _ := e.Owned(id)
		d.u64(uint64(id))
		d.u32(ob.Count)
		d.u32(ob.Workers.Hired)
		d.u32(ob.Workers.Capacity)
		positions := make([]terrain.Position, 0, len(ob.Placements))
		for pos := range ob.Placements {
			positions = append(positions, pos)
		}
		sortPositions(positions)
		for _, pos := range positions {
			d.u64(uint64(int64(pos.X)))
			d.u64(uint64(int64(pos.Y)))
			d.u32(ob.Placements[pos])
		}
	}
	for _, rid := range e.StockpileIDs() {
		s, _ := e.Stockpile(rid)
		d.u64(uint64(rid))
		d.u32(s.Current)
		d.u32(s.Maximum)
	}

	l := e.Ledger()
	for _, side := range []map[string][]economy.Offer{l.Inbound, l.Outbound} {
		peers := make([]string, 0, len(side))
		for peer := range side {
			peers = append(peers, peer)
		}
		sort.Strings(peers)
		d.u64(uint64(len(peers)))
		for _, peer := range peers {
			d.str(peer)
			for _, o := range side[peer] {
				writeEntries(d, o.Offering)
				writeEntries(d, o.Requesting)
			}
		}
	}
}

func writeEntries(d *digestWriter, es []economy.ResourceEntry) {
	d.u64(uint64(len(es)))
	for _, e := range es {
		d.u64(uint64(e.ID))
		d.u32(e.Amount)
	}
}

func sortPositions(ps []terrain.Position) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].X != ps[j].X {
			return ps[i].X < ps[j].X
		}
		return ps[i].Y < ps[j].Y
	})
}
