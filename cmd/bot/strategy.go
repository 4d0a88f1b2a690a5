package main

import (
	"fmt"

	"econcraft.ai/internal/protocol"
)

// strategy is a small greedy player: keep workers busy, and every
// probeEvery ticks ask how many of the target building fit on owned land,
// building one when the answer is positive.
type strategy struct {
	target     uint8
	probeEvery uint64

	seq       int
	lastProbe uint64
	probeReq  string
	hireReq   string
}

func newStrategy(target uint8, probeEvery uint64) *strategy {
	if probeEvery == 0 {
		probeEvery = 25
	}
	return &strategy{target: target, probeEvery: probeEvery}
}

func (s *strategy) cmd(name string) protocol.CmdMsg {
	s.seq++
	return protocol.CmdMsg{
		Type:            protocol.TypeCmd,
		ProtocolVersion: protocol.Version,
		ReqID:           fmt.Sprintf("bot-%d", s.seq),
		Cmd:             name,
	}
}

// onState returns the commands to send after a STATE message.
func (s *strategy) onState(st protocol.StateMsg) []protocol.CmdMsg {
	var out []protocol.CmdMsg
	if st.Population.Idle > 0 && s.hireReq == "" {
		for _, b := range st.Buildings {
			if b.Hired >= b.Capacity {
				continue
			}
			n := b.Capacity - b.Hired
			if n > st.Population.Idle {
				n = st.Population.Idle
			}
			c := s.cmd(protocol.CmdHire)
			c.Building = b.Building
			c.Amount = n
			out = append(out, c)
			s.hireReq = c.ReqID
			break
		}
	}
	if s.probeReq == "" && len(st.Lands) > 0 && st.Tick >= s.lastProbe+s.probeEvery {
		c := s.cmd(protocol.CmdMaxBuildable)
		c.Building = s.target
		c.Amount = 1
		c.Pos = st.Lands[0]
		out = append(out, c)
		s.probeReq = c.ReqID
		s.lastProbe = st.Tick
	}
	return out
}

// onResult returns follow-up commands for a RESULT.
func (s *strategy) onResult(r protocol.ResultMsg) []protocol.CmdMsg {
	if r.ReqID == "" {
		return nil
	}
	switch r.ReqID {
	case s.hireReq:
		s.hireReq = ""
		return nil
	case s.probeReq:
		s.probeReq = ""
	default:
		return nil
	}
	data, ok := r.Data.(map[string]any)
	if !ok || !r.OK {
		return nil
	}
	n, _ := data["max"].(float64)
	if n < 1 {
		return nil
	}
	pos, ok := data["pos"].([]any)
	if !ok || len(pos) != 2 {
		return nil
	}
	x, _ := pos[0].(float64)
	y, _ := pos[1].(float64)
	c := s.cmd(protocol.CmdBuild)
	c.Building = s.target
	c.Amount = 1
	c.Pos = [2]int32{int32(x), int32(y)}
	return []protocol.CmdMsg{c}
}
