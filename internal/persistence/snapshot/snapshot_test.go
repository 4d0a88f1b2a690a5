package snapshot

import (
	"os"
	"path/filepath"
	"testing"
)

func sample(tick uint64) SnapshotV1 {
	return SnapshotV1{
		Header:           Header{Version: 1, WorldID: "econ_1", Tick: tick},
		Seed:             1337,
		TickRateHz:       5,
		StockpileMaximum: 100,
		MaxSlotsPerTile:  6,
		BuildingsDigest:  "b",
		ResourcesDigest:  "r",
		Players: []PlayerV1{{
			ID:          "P1",
			Name:        "alice",
			ResumeToken: "tok",
			Population:  PopulationV1{Idle: 3, Total: 5, Maximum: 10},
			Buildings: []BuildingV1{{
				Building: 0, Count: 2, Hired: 2, Capacity: 10,
				Placements: []PlacementV1{{X: 0, Y: 0, Count: 1}, {X: 1, Y: -1, Count: 1}},
			}},
			Stockpiles: []StockpileV1{{Resource: 0, Current: 42, Maximum: 100}},
			Lands:      [][2]int32{{0, 0}, {1, -1}},
			Outbound: []LedgerEntryV1{{
				Peer:     "P2",
				Offering: []EntryV1{{Resource: 0, Amount: 5}},
			}},
		}},
		Tiles:    []TileV1{{X: 0, Y: 0, Slots: []SlotV1{{Building: 0, Used: 1, Total: 3}}}},
		Counters: CountersV1{NextPlayer: 1},
	}
}

func TestWriteRead_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := Path(dir, 3000)
	if err := WriteSnapshot(path, sample(3000)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind")
	}

	got, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Header.Tick != 3000 || got.Header.Players != 1 {
		t.Fatalf("header = %+v", got.Header)
	}
	p := got.Players[0]
	if p.Name != "alice" || p.Stockpiles[0].Current != 42 || len(p.Buildings[0].Placements) != 2 {
		t.Fatalf("player = %+v", p)
	}
	if len(p.Outbound) != 1 || p.Outbound[0].Offering[0].Amount != 5 {
		t.Fatalf("ledger = %+v", p.Outbound)
	}
	if got.Tiles[0].Slots[0].Total != 3 {
		t.Fatalf("tiles = %+v", got.Tiles)
	}

	h, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("header: %v", err)
	}
	if h.WorldID != "econ_1" || h.Tick != 3000 || h.Players != 1 {
		t.Fatalf("header = %+v", h)
	}
}

func TestReadSnapshot_RejectsUnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x"+Ext)
	s := sample(1)
	s.Header.Version = 9
	if err := WriteSnapshot(path, s); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadSnapshot(path); err == nil {
		t.Fatalf("expected version error")
	}
}

func TestLatest(t *testing.T) {
	dir := t.TempDir()
	if Latest(dir) != "" {
		t.Fatalf("empty dir should have no latest")
	}
	for _, tick := range []uint64{3000, 12000, 9000} {
		if err := WriteSnapshot(Path(dir, tick), sample(tick)); err != nil {
			t.Fatal(err)
		}
	}
	_ = os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644)
	_ = os.WriteFile(filepath.Join(dir, "abc"+Ext), []byte("x"), 0o644)
	if got := Latest(dir); got != Path(dir, 12000) {
		t.Fatalf("latest = %s", got)
	}
}
