package terrain

import (
	"testing"

	"econcraft.ai/internal/sim/catalogs"
)

func testCatalog(t *testing.T) *catalogs.Catalog {
	t.Helper()
	cat, _, err := catalogs.LoadBytes(
		[]byte(`[{"id":0,"name":"Mine","extractor":true,"produced":{"0":1},"max_workers":1},{"id":1,"name":"Hut","max_workers":0}]`),
		[]byte(`[{"id":0,"name":"Iron"}]`),
	)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return cat
}

func TestTile_OccupyRelease(t *testing.T) {
	tile := NewTile(Position{X: 1, Y: 2})
	tile.Slots[0] = &Slots{Total: 3}
	if got := tile.Free(0); got != 3 {
		t.Fatalf("free = %d", got)
	}
	tile.Occupy(0, 2)
	if got := tile.Free(0); got != 1 {
		t.Fatalf("free after occupy = %d", got)
	}
	tile.Release(0, 2)
	if tile.Slots[0].Used != 0 || tile.Slots[0].Total != 3 {
		t.Fatalf("release did not restore slots: %+v", *tile.Slots[0])
	}

	// Non-extractor types grow their entry.
	tile.Occupy(1, 4)
	if s := tile.Slots[1]; s.Used != 4 || s.Total != 4 {
		t.Fatalf("unexpected hut slots: %+v", *s)
	}
	if tile.Free(1) != 0 {
		t.Fatalf("grown entry should have no free slots")
	}
}

func TestTile_ReleaseUnderflowPanics(t *testing.T) {
	tile := NewTile(Position{})
	tile.Occupy(0, 1)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	tile.Release(0, 2)
}

func TestGenerator_Deterministic(t *testing.T) {
	cat := testCatalog(t)
	a := NewGenerator(42, 6, cat)
	b := NewGenerator(42, 6, cat)
	for x := int32(-5); x <= 5; x++ {
		for y := int32(-5); y <= 5; y++ {
			ta, tb := a.Tile(Position{X: x, Y: y}), b.Tile(Position{X: x, Y: y})
			if ta.Free(0) != tb.Free(0) {
				t.Fatalf("tile %d,%d differs", x, y)
			}
			if ta.Free(0) > 6 {
				t.Fatalf("slots above max: %d", ta.Free(0))
			}
			if _, ok := ta.Slots[1]; ok {
				t.Fatalf("non-extractor should not get natural slots")
			}
		}
	}
}

func TestGenerator_ZeroSlots(t *testing.T) {
	g := NewGenerator(1, 0, testCatalog(t))
	if len(g.Tile(Position{}).Slots) != 0 {
		t.Fatalf("expected empty tile")
	}
}
