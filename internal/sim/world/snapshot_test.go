package world

import (
	"path/filepath"
	"testing"

	"econcraft.ai/internal/persistence/snapshot"
	"econcraft.ai/internal/protocol"
	"econcraft.ai/internal/sim/terrain"
)

func populated(t *testing.T) (*World, *testClient, *testClient) {
	t.Helper()
	w := newTestWorld(t)
	alice := join(t, w, "alice")
	bob := join(t, w, "bob")
	give := offer([]protocol.ResourceAmount{{Resource: 0, Amount: 5}}, []protocol.ResourceAmount{{Resource: 1, Amount: 2}})
	w.StepOnce(nil, nil, []CommandEnvelope{
		alice.cmd("1", protocol.CmdHire, func(m *protocol.CmdMsg) { m.Building = 0; m.Amount = 2 }),
		bob.cmd("2", protocol.CmdDeposit, func(m *protocol.CmdMsg) { m.Resource = 0; m.Amount = 50 }),
		bob.cmd("3", protocol.CmdBuild, func(m *protocol.CmdMsg) { m.Building = 2; m.Amount = 3; m.Pos = [2]int32{-2, 7} }),
		bob.cmd("4", protocol.CmdOpenTrade, func(m *protocol.CmdMsg) { m.Peer = alice.id; m.Offer = give }),
	})
	for i := 0; i < 3; i++ {
		w.StepOnce(nil, nil, nil)
	}
	return w, alice, bob
}

func TestSnapshot_ExportImportRoundTrip(t *testing.T) {
	a, alice, bob := populated(t)
	last := a.CurrentTick() - 1
	snap := a.ExportSnapshot(last)

	path := snapshot.Path(t.TempDir(), last)
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		t.Fatal(err)
	}
	loaded, err := snapshot.ReadSnapshot(path)
	if err != nil {
		t.Fatal(err)
	}

	b := newTestWorld(t)
	if err := b.ImportSnapshot(loaded); err != nil {
		t.Fatalf("import: %v", err)
	}
	if b.CurrentTick() != a.CurrentTick() {
		t.Fatalf("tick = %d, want %d", b.CurrentTick(), a.CurrentTick())
	}
	if da, db := a.stateDigest(last), b.stateDigest(last); da != db {
		t.Fatalf("digest mismatch after import")
	}
	for _, id := range []string{alice.id, bob.id} {
		if !b.players[id].Econ.Dirty() {
			t.Fatalf("%s: restored cache must start dirty", id)
		}
	}
	if len(b.players[alice.id].Econ.Ledger().Inbound[bob.id]) != 1 {
		t.Fatalf("inbound offer lost")
	}
	if got := b.tiles[terrain.Position{X: -2, Y: 7}].Slots[2].Used; got != 3 {
		t.Fatalf("depot slots = %d", got)
	}

	// A resumed token still binds.
	resp := make(chan JoinResponse, 1)
	b.handleAttach(AttachRequest{ResumeToken: alice.token, Resp: resp})
	if r := <-resp; r.Welcome.PlayerID != alice.id {
		t.Fatalf("attach after import = %+v", r.Welcome)
	}

	// New registrations continue the id sequence.
	if c := join(t, b, "carol"); c.id != "P3" {
		t.Fatalf("next id = %s", c.id)
	}

	_, da := a.StepOnce(nil, nil, nil)
	_, db := newImported(t, loaded).StepOnce(nil, nil, nil)
	if da != db {
		t.Fatalf("worlds diverged one tick after import")
	}
}

func newImported(t *testing.T, snap snapshot.SnapshotV1) *World {
	t.Helper()
	w := newTestWorld(t)
	if err := w.ImportSnapshot(snap); err != nil {
		t.Fatal(err)
	}
	return w
}

func TestSnapshot_ImportRejectsInconsistentTiles(t *testing.T) {
	a, _, _ := populated(t)
	snap := a.ExportSnapshot(a.CurrentTick() - 1)
	for i := range snap.Tiles {
		for j := range snap.Tiles[i].Slots {
			snap.Tiles[i].Slots[j].Used++
			snap.Tiles[i].Slots[j].Total++
		}
	}
	if err := newTestWorld(t).ImportSnapshot(snap); err == nil {
		t.Fatalf("expected slot/placement mismatch")
	}
}

func TestSnapshot_ImportRejectsBrokenEconomy(t *testing.T) {
	a, _, _ := populated(t)
	snap := a.ExportSnapshot(a.CurrentTick() - 1)
	snap.Players[0].Population.Idle = snap.Players[0].Population.Total + 1
	if err := newTestWorld(t).ImportSnapshot(snap); err == nil {
		t.Fatalf("expected population invariant error")
	}

	snap = a.ExportSnapshot(a.CurrentTick() - 1)
	snap.Header.Version = 2
	if err := newTestWorld(t).ImportSnapshot(snap); err == nil {
		t.Fatalf("expected version error")
	}
}

func TestSnapshot_WrittenFileIsFound(t *testing.T) {
	a, _, _ := populated(t)
	dir := t.TempDir()
	tick := a.CurrentTick() - 1
	if err := snapshot.WriteSnapshot(snapshot.Path(dir, tick), a.ExportSnapshot(tick)); err != nil {
		t.Fatal(err)
	}
	if got := snapshot.Latest(dir); got != filepath.Join(dir, snapshot.Path("", tick)) {
		t.Fatalf("latest = %s", got)
	}
}
