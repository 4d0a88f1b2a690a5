package main

import (
	"io"
	"path/filepath"
	"strings"
	"testing"

	persistlog "econcraft.ai/internal/persistence/log"
	"econcraft.ai/internal/protocol"
	"econcraft.ai/internal/sim/catalogs"
	"econcraft.ai/internal/sim/tuning"
	"econcraft.ai/internal/sim/world"
)

func newWorld(t *testing.T) *world.World {
	t.Helper()
	configs := filepath.Join("..", "..", "configs")
	cat, deps, err := catalogs.Load(configs)
	if err != nil {
		t.Fatal(err)
	}
	tune, err := tuning.Load(filepath.Join(configs, "tuning.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	w, err := world.New(world.WorldConfig{ID: "replay", Tuning: tune}, cat, deps, nil)
	if err != nil {
		t.Fatal(err)
	}
	return w
}

func recordSession(t *testing.T) []world.TickLogEntry {
	t.Helper()
	dir := t.TempDir()
	l := persistlog.NewTickLogger(dir)
	w := newWorld(t)
	w.SetTickLogger(l)

	resp := make(chan world.JoinResponse, 1)
	w.StepOnce([]world.JoinRequest{{Name: "alice", Resp: resp}}, nil, nil)
	id := (<-resp).Welcome.PlayerID
	cmd := func(reqID, name string, building uint8, amount uint32) world.CommandEnvelope {
		return world.CommandEnvelope{PlayerID: id, Cmd: protocol.CmdMsg{
			Type: protocol.TypeCmd, ProtocolVersion: protocol.Version, ReqID: reqID,
			Cmd: name, Building: building, Amount: amount,
		}}
	}
	w.StepOnce(nil, nil, []world.CommandEnvelope{cmd("1", protocol.CmdHire, 0, 3), cmd("2", protocol.CmdHire, 1, 2)})
	for i := 0; i < 10; i++ {
		w.StepOnce(nil, nil, nil)
	}
	w.StepOnce(nil, nil, []world.CommandEnvelope{cmd("3", protocol.CmdFire, 0, 1)})
	w.StepOnce(nil, nil, nil)
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	entries, err := persistlog.ReadTicks(dir)
	if err != nil {
		t.Fatal(err)
	}
	return entries
}

func TestReplay_MatchesRecordedDigests(t *testing.T) {
	entries := recordSession(t)
	checked, err := replay(newWorld(t), entries, 0, 0, io.Discard)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if checked != len(entries) {
		t.Fatalf("checked %d of %d", checked, len(entries))
	}

	// Window.
	checked, err = replay(newWorld(t), entries, 5, 8, io.Discard)
	if err != nil || checked != 4 {
		t.Fatalf("window: checked=%d err=%v", checked, err)
	}
}

func TestReplay_DetectsDivergence(t *testing.T) {
	entries := recordSession(t)
	entries[6].Digest = "tampered"
	_, err := replay(newWorld(t), entries, 0, 0, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "digest mismatch at tick 6") {
		t.Fatalf("err = %v", err)
	}
}
