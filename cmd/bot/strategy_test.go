package main

import (
	"encoding/json"
	"testing"

	"econcraft.ai/internal/protocol"
)

func TestStrategy_HiresIntoFreeCapacity(t *testing.T) {
	s := newStrategy(1, 10)
	st := protocol.StateMsg{
		Tick:       3,
		Population: protocol.PopulationObs{Idle: 4, Total: 5, Maximum: 10},
		Buildings: []protocol.BuildingObs{
			{Building: 0, Count: 1, Hired: 5, Capacity: 5},
			{Building: 1, Count: 1, Hired: 3, Capacity: 5},
		},
	}
	cmds := s.onState(st)
	if len(cmds) != 1 || cmds[0].Cmd != protocol.CmdHire || cmds[0].Building != 1 || cmds[0].Amount != 2 {
		t.Fatalf("cmds = %+v", cmds)
	}
	if again := s.onState(st); len(again) != 0 {
		t.Fatalf("hire re-sent before its result: %+v", again)
	}
	s.onResult(protocol.ResultMsg{ReqID: cmds[0].ReqID, OK: true})
	if again := s.onState(st); len(again) != 1 {
		t.Fatalf("hire not retried after result: %+v", again)
	}
}

func TestStrategy_ProbeThenBuild(t *testing.T) {
	s := newStrategy(2, 10)
	st := protocol.StateMsg{Tick: 10, Lands: [][2]int32{{3, -4}}}
	cmds := s.onState(st)
	if len(cmds) != 1 || cmds[0].Cmd != protocol.CmdMaxBuildable || cmds[0].Pos != [2]int32{3, -4} {
		t.Fatalf("probe = %+v", cmds)
	}

	// Data arrives as decoded JSON.
	var data any
	_ = json.Unmarshal([]byte(`{"building":2,"pos":[3,-4],"max":2}`), &data)
	build := s.onResult(protocol.ResultMsg{ReqID: cmds[0].ReqID, OK: true, Data: data})
	if len(build) != 1 || build[0].Cmd != protocol.CmdBuild || build[0].Building != 2 || build[0].Pos != [2]int32{3, -4} {
		t.Fatalf("build = %+v", build)
	}

	st.Tick = 15
	if again := s.onState(st); len(again) != 0 {
		t.Fatalf("probed before the interval: %+v", again)
	}
	st.Tick = 20
	next := s.onState(st)
	if len(next) != 1 {
		t.Fatalf("second probe = %+v", next)
	}
	_ = json.Unmarshal([]byte(`{"building":2,"pos":[3,-4],"max":0}`), &data)
	if none := s.onResult(protocol.ResultMsg{ReqID: next[0].ReqID, OK: true, Data: data}); len(none) != 0 {
		t.Fatalf("built with no room: %+v", none)
	}
}
