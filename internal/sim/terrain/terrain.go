// Package terrain provides the tiles buildings are placed on and the
// extractor slots each tile offers.
package terrain

import (
	"fmt"
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"

	"econcraft.ai/internal/sim/catalogs"
)

// Position points to a unique tile.
type Position struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
}

func (p Position) String() string { return fmt.Sprintf("(%d,%d)", p.X, p.Y) }

// Slots tracks how many placements of one building type a tile holds.
type Slots struct {
	Used  uint32 `json:"used"`
	Total uint32 `json:"total"`
}

type Tile struct {
	Pos   Position                       `json:"pos"`
	Slots map[catalogs.BuildingID]*Slots `json:"slots"`
}

func NewTile(pos Position) *Tile {
	return &Tile{Pos: pos, Slots: map[catalogs.BuildingID]*Slots{}}
}

// Free returns the number of unused slots for a building type.
func (t *Tile) Free(id catalogs.BuildingID) uint32 {
	s, ok := t.Slots[id]
	if !ok || s.Used >= s.Total {
		return 0
	}
	return s.Total - s.Used
}

// Occupy records n more placements. Non-extractor types have no natural
// slots, so their entry grows with usage.
func (t *Tile) Occupy(id catalogs.BuildingID, n uint32) {
	s, ok := t.Slots[id]
	if !ok {
		s = &Slots{}
		t.Slots[id] = s
	}
	s.Used += n
	if s.Total < s.Used {
		s.Total = s.Used
	}
}

// Release frees n placements. Releasing more than was occupied means the
// caller's bookkeeping diverged from the tile's and panics.
func (t *Tile) Release(id catalogs.BuildingID, n uint32) {
	if n == 0 {
		return
	}
	s, ok := t.Slots[id]
	if !ok || s.Used < n {
		used := uint32(0)
		if ok {
			used = s.Used
		}
		panic(fmt.Sprintf("terrain: release %d of building %d at %s but only %d used", n, id, t.Pos, used))
	}
	s.Used -= n
}

// Generator lazily creates tiles, seeding extractor slots from noise so the
// same seed always yields the same map.
type Generator struct {
	noise    opensimplex.Noise
	maxSlots uint32
	cat      *catalogs.Catalog
}

func NewGenerator(seed int64, maxSlots uint32, cat *catalogs.Catalog) *Generator {
	return &Generator{
		noise:    opensimplex.NewNormalized(seed),
		maxSlots: maxSlots,
		cat:      cat,
	}
}

// Tile builds the tile at pos. Each extractor type samples its own noise
// layer, offset by building id.
func (g *Generator) Tile(pos Position) *Tile {
	t := NewTile(pos)
	if g.maxSlots == 0 {
		return t
	}
	for _, id := range g.cat.BuildingIDs() {
		b := g.cat.Buildings[id]
		if !b.Extractor {
			continue
		}
		off := float64(id) * 97.0
		v := g.noise.Eval2(float64(pos.X)*0.35+off, float64(pos.Y)*0.35-off)
		n := uint32(math.Floor(v * float64(g.maxSlots+1)))
		if n > g.maxSlots {
			n = g.maxSlots
		}
		if n > 0 {
			t.Slots[id] = &Slots{Total: n}
		}
	}
	return t
}
