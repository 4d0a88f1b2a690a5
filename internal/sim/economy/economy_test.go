package economy

import (
	"errors"
	"math/rand"
	"testing"

	"econcraft.ai/internal/sim/catalogs"
	"econcraft.ai/internal/sim/terrain"
)

const (
	iron  catalogs.ResourceID = 0
	steel catalogs.ResourceID = 1
	wood  catalogs.ResourceID = 2

	mine    catalogs.BuildingID = 0
	factory catalogs.BuildingID = 1
	sawmill catalogs.BuildingID = 2
	forge   catalogs.BuildingID = 3
)

const testBuildings = `[
  {"id":0,"name":"Mine","extractor":true,"produced":{"0":10},"max_workers":5},
  {"id":1,"name":"Factory","consumed":{"0":5},"produced":{"1":3},"max_workers":2},
  {"id":2,"name":"Sawmill","extractor":true,"produced":{"2":4},"max_workers":3,"construction_cost":{"0":4}},
  {"id":3,"name":"Forge","prerequisites":[1],"consumed":{"1":1,"2":1},"produced":{"0":1},"max_workers":4,"construction_cost":{"2":2}}
]`

const testResources = `[{"id":0,"name":"Iron"},{"id":1,"name":"Steel"},{"id":2,"name":"Wood"}]`

func newTestPlayer(t *testing.T) *PlayerEconomy {
	t.Helper()
	cat, deps, err := catalogs.LoadBytes([]byte(testBuildings), []byte(testResources))
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return New(cat, deps)
}

func extractorTile(pos terrain.Position, id catalogs.BuildingID, slots uint32) *terrain.Tile {
	tile := terrain.NewTile(pos)
	tile.Slots[id] = &terrain.Slots{Total: slots}
	return tile
}

func current(t *testing.T, p *PlayerEconomy, rid catalogs.ResourceID) uint32 {
	t.Helper()
	s, ok := p.Stockpile(rid)
	if !ok {
		t.Fatalf("no stockpile for resource %d", rid)
	}
	return s.Current
}

func wantCode(t *testing.T, err error, sentinel *Error) {
	t.Helper()
	if !errors.Is(err, sentinel) {
		t.Fatalf("err = %v, want %s", err, sentinel.Code)
	}
}

func TestMineProducesPerWorker(t *testing.T) {
	p := newTestPlayer(t)
	tile := extractorTile(terrain.Position{}, mine, 1)
	if err := p.Build(tile, mine, 1); err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := p.Hire(mine, 2); err != nil {
		t.Fatalf("hire: %v", err)
	}
	Advance(p)
	if got := current(t, p, iron); got != 20 {
		t.Fatalf("iron = %d, want 20", got)
	}

	for i := 0; i < 10; i++ {
		Advance(p)
	}
	if got := current(t, p, iron); got != 100 {
		t.Fatalf("iron = %d, want clamp at 100", got)
	}
}

func TestFactoryScarcityScalesThroughput(t *testing.T) {
	p := newTestPlayer(t)
	if err := p.Deposit(iron, 6); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := p.Build(terrain.NewTile(terrain.Position{X: 1}), factory, 1); err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := p.Hire(factory, 2); err != nil {
		t.Fatalf("hire: %v", err)
	}

	if !p.EnsureFresh() {
		t.Fatalf("expected recompute")
	}
	if r := p.Ratios()[factory]; r < 0.599 || r > 0.601 {
		t.Fatalf("ratio = %v, want 0.6", r)
	}
	d := p.Deltas()
	if d[iron] != -6 {
		t.Fatalf("iron delta = %d, want -6", d[iron])
	}
	// 3*2*0.6 = 3.6, truncated toward zero.
	if d[steel] != 3 {
		t.Fatalf("steel delta = %d, want 3", d[steel])
	}

	rep := Advance(p)
	if rep.Recomputed {
		t.Fatalf("cache was fresh, should not recompute")
	}
	if current(t, p, iron) != 0 || current(t, p, steel) != 3 {
		t.Fatalf("iron=%d steel=%d", current(t, p, iron), current(t, p, steel))
	}
	if !p.Dirty() || len(rep.Shortfalls) != 1 || rep.Shortfalls[0] != iron {
		t.Fatalf("expected iron shortfall to dirty the cache: %+v", rep)
	}

	Advance(p)
	if d := p.Deltas(); d[iron] != 0 || d[steel] != 0 {
		t.Fatalf("starved factory should stop: %+v", d)
	}
	if got := current(t, p, steel); got != 3 {
		t.Fatalf("steel = %d", got)
	}
}

func TestWithdrawTooMuchLeavesStateClean(t *testing.T) {
	p := newTestPlayer(t)
	if err := p.Deposit(iron, 10); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	p.EnsureFresh()

	wantCode(t, p.Withdraw(iron, 11), ErrInsufficientStock)
	if got := current(t, p, iron); got != 10 {
		t.Fatalf("iron = %d", got)
	}
	if p.Dirty() {
		t.Fatalf("failed withdraw marked cache dirty")
	}

	wantCode(t, p.Withdraw(steel, 0), ErrInsufficientStock)
	if _, ok := p.Stockpile(steel); ok {
		t.Fatalf("failed withdraw created a stockpile")
	}

	if err := p.Withdraw(iron, 4); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if current(t, p, iron) != 6 || !p.Dirty() {
		t.Fatalf("withdraw not applied")
	}
}

func TestDepositRejectsOverflow(t *testing.T) {
	p := newTestPlayer(t)
	if err := p.Deposit(wood, 100); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	err := p.Deposit(wood, 1)
	wantCode(t, err, ErrStockpileFull)
	var e *Error
	if !errors.As(err, &e) || e.Available != 0 || e.Requested != 1 {
		t.Fatalf("unexpected error detail: %+v", e)
	}
	wantCode(t, p.Deposit(99, 1), ErrUnknownResource)
}

func TestOpenTradeUnaffordable(t *testing.T) {
	p := newTestPlayer(t)
	if err := p.Deposit(iron, 5); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	p.EnsureFresh()

	// Duplicate entries are summed.
	o := Offer{
		Offering:   []ResourceEntry{{ID: iron, Amount: 3}, {ID: iron, Amount: 3}},
		Requesting: []ResourceEntry{{ID: wood, Amount: 1}},
	}
	wantCode(t, p.OpenTrade("bob", o), ErrInsufficientStock)
	if current(t, p, iron) != 5 {
		t.Fatalf("failed trade reserved resources")
	}
	if len(p.Ledger().Outbound) != 0 {
		t.Fatalf("failed trade reached the ledger")
	}
	if p.Dirty() {
		t.Fatalf("failed trade dirtied the cache")
	}
}

func TestTradeLifecycle(t *testing.T) {
	alice, bob := newTestPlayer(t), newTestPlayer(t)
	if err := alice.Deposit(iron, 10); err != nil {
		t.Fatal(err)
	}
	if err := bob.Deposit(wood, 98); err != nil {
		t.Fatal(err)
	}
	if err := bob.Deposit(iron, 95); err != nil {
		t.Fatal(err)
	}
	o := Offer{
		Offering:   []ResourceEntry{{ID: iron, Amount: 8}},
		Requesting: []ResourceEntry{{ID: wood, Amount: 5}},
	}

	if err := alice.OpenTrade("bob", o); err != nil {
		t.Fatalf("open: %v", err)
	}
	bob.ReceiveOffer("alice", o)
	if current(t, alice, iron) != 2 {
		t.Fatalf("offering not escrowed")
	}

	wantCode(t, bob.AcceptTrade("carol", o), ErrNoSuchOffer)
	if err := bob.AcceptTrade("alice", o); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := alice.SettleOutbound("bob", o); err != nil {
		t.Fatalf("settle: %v", err)
	}

	// Bob's iron is clamped at the maximum; the excess is lost.
	if current(t, bob, iron) != 100 || current(t, bob, wood) != 93 {
		t.Fatalf("bob iron=%d wood=%d", current(t, bob, iron), current(t, bob, wood))
	}
	if current(t, alice, wood) != 5 || current(t, alice, iron) != 2 {
		t.Fatalf("alice wood=%d iron=%d", current(t, alice, wood), current(t, alice, iron))
	}
	if bob.HasInbound("alice", o) || alice.HasOutbound("bob", o) {
		t.Fatalf("offer left in ledger")
	}
	wantCode(t, bob.AcceptTrade("alice", o), ErrNoSuchOffer)
}

func TestCancelTradeRefunds(t *testing.T) {
	p := newTestPlayer(t)
	if err := p.Deposit(iron, 10); err != nil {
		t.Fatal(err)
	}
	o := Offer{Offering: []ResourceEntry{{ID: iron, Amount: 7}}}
	if err := p.OpenTrade("bob", o); err != nil {
		t.Fatal(err)
	}
	if err := p.CancelTrade("bob", o); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if current(t, p, iron) != 10 {
		t.Fatalf("iron = %d after refund", current(t, p, iron))
	}
	wantCode(t, p.CancelTrade("bob", o), ErrNoSuchOffer)

	if err := p.OpenTrade("bob", o); err != nil {
		t.Fatal(err)
	}
	p.ReceiveOffer("bob", Offer{Offering: []ResourceEntry{{ID: wood, Amount: 1}}})
	p.DropPeer("bob")
	if current(t, p, iron) != 10 || len(p.Ledger().Peers()) != 0 {
		t.Fatalf("DropPeer did not clear and refund")
	}
}

func TestBuildChargesCostAndOccupiesSlots(t *testing.T) {
	p := newTestPlayer(t)
	tile := extractorTile(terrain.Position{X: 2, Y: 3}, sawmill, 3)

	if got := p.MaxBuildable([]*terrain.Tile{tile}, sawmill); got != 0 {
		t.Fatalf("max without stockpile = %d", got)
	}
	if err := p.Deposit(iron, 10); err != nil {
		t.Fatal(err)
	}
	if got := p.MaxBuildable([]*terrain.Tile{tile}, sawmill); got != 2 {
		t.Fatalf("max = %d, want 2 (cost-limited)", got)
	}
	wantCode(t, p.Build(tile, sawmill, 3), ErrInsufficientSlotOrResource)
	if current(t, p, iron) != 10 || tile.Free(sawmill) != 3 {
		t.Fatalf("failed build mutated state")
	}

	if err := p.Build(tile, sawmill, 2); err != nil {
		t.Fatalf("build: %v", err)
	}
	if current(t, p, iron) != 2 || tile.Free(sawmill) != 1 {
		t.Fatalf("iron=%d free=%d", current(t, p, iron), tile.Free(sawmill))
	}
	ob, _ := p.Owned(sawmill)
	if ob.Count != 2 || ob.Workers.Capacity != 6 || ob.Placements[tile.Pos] != 2 {
		t.Fatalf("owned = %+v", ob)
	}
	if !p.OwnsLand(tile.Pos) {
		t.Fatalf("tile not claimed")
	}

	empty := terrain.NewTile(terrain.Position{X: 9})
	if got := p.MaxBuildable([]*terrain.Tile{empty}, mine); got != 0 {
		t.Fatalf("extractor on tile without slots = %d", got)
	}
	if got := p.MaxBuildable(nil, factory); got != ^uint32(0) {
		t.Fatalf("unbounded building = %d", got)
	}
}

func TestBuildRequiresPrerequisite(t *testing.T) {
	p := newTestPlayer(t)
	if err := p.Deposit(wood, 10); err != nil {
		t.Fatal(err)
	}
	tile := terrain.NewTile(terrain.Position{})
	wantCode(t, p.Build(tile, forge, 1), ErrMissingPrerequisite)
	if err := p.Build(tile, factory, 1); err != nil {
		t.Fatal(err)
	}
	if err := p.Build(tile, forge, 1); err != nil {
		t.Fatalf("build forge: %v", err)
	}
	wantCode(t, p.Build(tile, 42, 1), ErrUnknownBuilding)
}

func TestDemolishReturnsWorkers(t *testing.T) {
	p := newTestPlayer(t)
	tile := extractorTile(terrain.Position{}, mine, 4)
	if err := p.Build(tile, mine, 2); err != nil {
		t.Fatal(err)
	}
	if err := p.Hire(mine, 5); err != nil {
		t.Fatal(err)
	}
	if p.Population().Idle != 0 {
		t.Fatalf("idle = %d", p.Population().Idle)
	}

	wantCode(t, p.Demolish(tile, mine, 3), ErrInsufficientOwned)
	if err := p.Demolish(tile, mine, 1); err != nil {
		t.Fatalf("demolish: %v", err)
	}
	ob, _ := p.Owned(mine)
	if ob.Count != 1 || ob.Workers.Capacity != 5 || ob.Workers.Hired != 5 {
		t.Fatalf("owned = %+v", ob)
	}
	if err := p.Demolish(tile, mine, 1); err != nil {
		t.Fatal(err)
	}
	if _, ok := p.Owned(mine); ok {
		t.Fatalf("empty building entry kept")
	}
	if pop := p.Population(); pop.Idle != 5 || pop.Total != 5 {
		t.Fatalf("population = %+v", pop)
	}
	if tile.Free(mine) != 4 || p.OwnsLand(tile.Pos) {
		t.Fatalf("tile not released")
	}
	wantCode(t, p.Hire(mine, 1), ErrNoSuchBuilding)
}

func TestDemolishAtWrongTilePanics(t *testing.T) {
	p := newTestPlayer(t)
	if err := p.Build(extractorTile(terrain.Position{}, mine, 1), mine, 1); err != nil {
		t.Fatal(err)
	}
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	_ = p.Demolish(extractorTile(terrain.Position{X: 5}, mine, 1), mine, 1)
}

func TestHireFireLimits(t *testing.T) {
	p := newTestPlayer(t)
	tile := terrain.NewTile(terrain.Position{})
	if err := p.Build(tile, factory, 1); err != nil {
		t.Fatal(err)
	}
	wantCode(t, p.Hire(factory, 3), ErrInsufficientCapacity)
	wantCode(t, p.Fire(factory, 1), ErrInsufficientHired)
	wantCode(t, p.Fire(mine, 1), ErrNoSuchBuilding)

	if err := p.Build(tile, factory, 3); err != nil {
		t.Fatal(err)
	}
	wantCode(t, p.Hire(factory, 6), ErrInsufficientIdle)
	if err := p.Hire(factory, 5); err != nil {
		t.Fatal(err)
	}
	if err := p.Fire(factory, 2); err != nil {
		t.Fatal(err)
	}
	ob, _ := p.Owned(factory)
	if ob.Workers.Hired != 3 || p.Population().Idle != 2 {
		t.Fatalf("hired=%d idle=%d", ob.Workers.Hired, p.Population().Idle)
	}
}

func TestSolveRatiosChain(t *testing.T) {
	p := newTestPlayer(t)
	tile := extractorTile(terrain.Position{}, mine, 5)
	if err := p.Build(tile, mine, 1); err != nil {
		t.Fatal(err)
	}
	if err := p.Build(tile, factory, 1); err != nil {
		t.Fatal(err)
	}
	if err := p.Hire(factory, 2); err != nil {
		t.Fatal(err)
	}
	r := SolveRatios(p)
	if r[mine] != 1 {
		t.Fatalf("free building ratio = %v", r[mine])
	}
	if r[factory] != 0 {
		t.Fatalf("factory with no iron = %v, want 0", r[factory])
	}
	if err := p.Deposit(iron, 50); err != nil {
		t.Fatal(err)
	}
	if r := SolveRatios(p); r[factory] != 1 {
		t.Fatalf("factory with plenty = %v", r[factory])
	}
}

func TestScarceConsumptionMatchesStock(t *testing.T) {
	// Factory demand is 5*2 = 10 iron per tick.
	for avail := uint32(1); avail <= 9; avail++ {
		p := newTestPlayer(t)
		if err := p.Deposit(iron, avail); err != nil {
			t.Fatal(err)
		}
		if err := p.Build(terrain.NewTile(terrain.Position{}), factory, 1); err != nil {
			t.Fatal(err)
		}
		if err := p.Hire(factory, 2); err != nil {
			t.Fatal(err)
		}
		p.EnsureFresh()
		d := p.Deltas()
		if d[iron] != -int32(avail) {
			t.Fatalf("avail=%d: iron delta = %d, want %d", avail, d[iron], -int32(avail))
		}
		if want := int32(6*avail) / 10; d[steel] != want {
			t.Fatalf("avail=%d: steel delta = %d, want %d", avail, d[steel], want)
		}
		Advance(p)
		if got := current(t, p, iron); got != 0 {
			t.Fatalf("avail=%d: %d iron left behind", avail, got)
		}
	}
}

// ownForgeChain gives p a factory with two workers and a forge with the
// given workers, plus the listed stock.
func ownForgeChain(t *testing.T, p *PlayerEconomy, forgeWorkers uint32, stock map[catalogs.ResourceID]uint32) {
	t.Helper()
	tile := terrain.NewTile(terrain.Position{})
	if err := p.Deposit(wood, 2); err != nil {
		t.Fatal(err)
	}
	if err := p.Build(tile, factory, 1); err != nil {
		t.Fatal(err)
	}
	if err := p.Build(tile, forge, 1); err != nil {
		t.Fatal(err)
	}
	if err := p.Hire(forge, forgeWorkers); err != nil {
		t.Fatal(err)
	}
	for rid, n := range stock {
		if err := p.Deposit(rid, n); err != nil {
			t.Fatal(err)
		}
	}
}

func TestSolveRatiosSinglePassUnderClamp(t *testing.T) {
	p := newTestPlayer(t)
	ownForgeChain(t, p, 1, map[catalogs.ResourceID]uint32{iron: 5, steel: 10, wood: 10})
	if err := p.Hire(factory, 2); err != nil {
		t.Fatal(err)
	}

	r := SolveRatios(p)
	if r[factory] != 0.5 {
		t.Fatalf("factory = %v, want 0.5", r[factory])
	}
	// The forge's steel supplier runs at half speed, but only the steel in
	// stock is checked, so the forge still runs at full speed.
	if r[forge] != 1 {
		t.Fatalf("forge = %v, want 1", r[forge])
	}
	p.EnsureFresh()
	if d := p.Deltas(); d[iron] != -4 || d[steel] != 2 || d[wood] != -1 {
		t.Fatalf("deltas = %+v", d)
	}
}

func TestSolveRatiosTakesLowerOfTwoInputs(t *testing.T) {
	cases := []struct {
		name        string
		steel, wood uint32
		want        float32
	}{
		// Steel is visited first: 1 of 4 gives 0.25, then wood demand is
		// 4*0.25 = 1 and fully covered.
		{"steel scarcer", 1, 3, 0.25},
		// Steel gives 0.75, so wood demand is scaled to 3 and 1 in stock
		// clamps the forge to 1/3.
		{"wood scarcer", 3, 1, 1.0 / 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := newTestPlayer(t)
			ownForgeChain(t, p, 4, map[catalogs.ResourceID]uint32{steel: tc.steel, wood: tc.wood})
			r := SolveRatios(p)[forge]
			if r < tc.want-1e-6 || r > tc.want+1e-6 {
				t.Fatalf("forge = %v, want %v", r, tc.want)
			}
			steelR := float32(tc.steel) / 4
			if r > steelR {
				t.Fatalf("forge %v above steel ratio %v", r, steelR)
			}
			p.EnsureFresh()
			d := p.Deltas()
			if -d[steel] > int32(tc.steel) || -d[wood] > int32(tc.wood) {
				t.Fatalf("consumes more than stocked: %+v", d)
			}
		})
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	p := newTestPlayer(t)
	tile := extractorTile(terrain.Position{X: -1, Y: 4}, mine, 2)
	if err := p.Build(tile, mine, 2); err != nil {
		t.Fatal(err)
	}
	if err := p.Hire(mine, 3); err != nil {
		t.Fatal(err)
	}
	if err := p.OpenTrade("bob", Offer{}); err != nil {
		t.Fatal(err)
	}
	Advance(p)

	st := p.State()
	q, err := Restore(p.cat, p.deps, DefaultConfig(), st)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if !q.Dirty() {
		t.Fatalf("restored cache must start dirty")
	}
	if current(t, q, iron) != current(t, p, iron) || q.Population() != p.Population() {
		t.Fatalf("restored state differs")
	}
	if !q.HasOutbound("bob", Offer{}) || !q.OwnsLand(tile.Pos) {
		t.Fatalf("ledger or lands lost")
	}
	Advance(p)
	Advance(q)
	if current(t, q, iron) != current(t, p, iron) {
		t.Fatalf("diverged after restore")
	}

	st.Population.Idle = 99
	if _, err := Restore(p.cat, p.deps, DefaultConfig(), st); err == nil {
		t.Fatalf("expected population error")
	}
}

// Every reachable state keeps stockpiles within bounds and the workforce
// bookkeeping consistent.
func TestRandomCommandsPreserveInvariants(t *testing.T) {
	p := newTestPlayer(t)
	rng := rand.New(rand.NewSource(7))
	tiles := []*terrain.Tile{
		extractorTile(terrain.Position{X: 0}, mine, 3),
		extractorTile(terrain.Position{X: 1}, sawmill, 2),
		terrain.NewTile(terrain.Position{X: 2}),
	}
	ids := []catalogs.BuildingID{mine, factory, sawmill, forge}
	res := []catalogs.ResourceID{iron, steel, wood}

	for step := 0; step < 2000; step++ {
		tile := tiles[rng.Intn(len(tiles))]
		id := ids[rng.Intn(len(ids))]
		n := uint32(rng.Intn(4))
		switch rng.Intn(7) {
		case 0:
			_ = p.Build(tile, id, n)
		case 1:
			if p.PlacedAt(id, tile.Pos) >= n {
				_ = p.Demolish(tile, id, n)
			}
		case 2:
			_ = p.Hire(id, n)
		case 3:
			_ = p.Fire(id, n)
		case 4:
			_ = p.Deposit(res[rng.Intn(len(res))], uint32(rng.Intn(40)))
		case 5:
			_ = p.Withdraw(res[rng.Intn(len(res))], uint32(rng.Intn(40)))
		default:
			Advance(p)
		}
		checkInvariants(t, p, step)
	}
}

func checkInvariants(t *testing.T, p *PlayerEconomy, step int) {
	t.Helper()
	for _, rid := range p.StockpileIDs() {
		s, _ := p.Stockpile(rid)
		if s.Current > s.Maximum {
			t.Fatalf("step %d: resource %d %d > %d", step, rid, s.Current, s.Maximum)
		}
	}
	pop := p.Population()
	employed := uint32(0)
	for _, id := range p.OwnedIDs() {
		ob, _ := p.Owned(id)
		b := p.cat.Buildings[id]
		if ob.Workers.Capacity != ob.Count*b.MaxWorkers || ob.Workers.Hired > ob.Workers.Capacity {
			t.Fatalf("step %d: building %d workers %+v count %d", step, id, ob.Workers, ob.Count)
		}
		var placed uint32
		for _, n := range ob.Placements {
			placed += n
		}
		if placed != ob.Count {
			t.Fatalf("step %d: building %d placements %d != count %d", step, id, placed, ob.Count)
		}
		employed += ob.Workers.Hired
	}
	if pop.Idle+employed != pop.Total || pop.Total > pop.Maximum {
		t.Fatalf("step %d: population %+v employed %d", step, pop, employed)
	}
}

func TestBuildThenDemolishRestoresCounts(t *testing.T) {
	p := newTestPlayer(t)
	tile := extractorTile(terrain.Position{X: 3}, mine, 4)
	if err := p.Build(tile, mine, 1); err != nil {
		t.Fatal(err)
	}
	before, _ := p.Owned(mine)
	used := tile.Slots[mine].Used

	if err := p.Build(tile, mine, 2); err != nil {
		t.Fatal(err)
	}
	if err := p.Demolish(tile, mine, 2); err != nil {
		t.Fatal(err)
	}
	after, _ := p.Owned(mine)
	if after.Count != before.Count || after.Workers != before.Workers || tile.Slots[mine].Used != used {
		t.Fatalf("before=%+v after=%+v used %d -> %d", before, after, used, tile.Slots[mine].Used)
	}
}

func TestEnsureFreshIdempotent(t *testing.T) {
	p := newTestPlayer(t)
	tile := extractorTile(terrain.Position{}, mine, 2)
	if err := p.Build(tile, mine, 1); err != nil {
		t.Fatal(err)
	}
	if err := p.Build(tile, factory, 2); err != nil {
		t.Fatal(err)
	}
	if err := p.Hire(mine, 1); err != nil {
		t.Fatal(err)
	}
	if err := p.Hire(factory, 3); err != nil {
		t.Fatal(err)
	}
	if err := p.Deposit(iron, 7); err != nil {
		t.Fatal(err)
	}
	if !p.EnsureFresh() {
		t.Fatalf("expected recompute")
	}
	first := p.Deltas()
	if p.EnsureFresh() {
		t.Fatalf("second call recomputed")
	}
	second := p.Deltas()
	if len(first) != len(second) {
		t.Fatalf("deltas changed: %v vs %v", first, second)
	}
	for rid, d := range first {
		if second[rid] != d {
			t.Fatalf("deltas changed: %v vs %v", first, second)
		}
	}
	for id, r := range p.Ratios() {
		if r < 0 || r > 1 {
			t.Fatalf("ratio %d out of range: %v", id, r)
		}
	}
	if p.Ratios()[mine] != 1 {
		t.Fatalf("free building not at full ratio")
	}
}
