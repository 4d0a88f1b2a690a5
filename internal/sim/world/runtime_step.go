package world

import (
	"encoding/json"
	"sort"
	"time"

	"econcraft.ai/internal/protocol"
	"econcraft.ai/internal/sim/catalogs"
	"econcraft.ai/internal/sim/economy"
)

func (w *World) stepInternal(joins []JoinRequest, leaves []LeaveRequest, cmds []CommandEnvelope, admin []adminReq) string {
	stepStart := time.Now()
	nowTick := w.tick.Load()

	// Admin snapshots see the state as of the previous tick, so they run
	// before anything else at this boundary.
	removed := w.handleAdminDeferred(admin, nowTick)

	// Apply leaves and joins deterministically at tick boundary. A leave
	// from a superseded connection is a no-op, and the commands it queued
	// are applied for the resumed session.
	left := map[string]bool{}
	recordedLeaves := make([]string, 0, len(leaves))
	for _, req := range leaves {
		if w.handleLeave(req) {
			left[req.PlayerID] = true
			recordedLeaves = append(recordedLeaves, req.PlayerID)
		}
	}
	recordedJoins := make([]RecordedJoin, 0, len(joins))
	for _, req := range joins {
		resp := w.joinPlayer(req, nowTick)
		if req.Resp != nil {
			req.Resp <- resp
		}
		if resp.Welcome.PlayerID != "" {
			recordedJoins = append(recordedJoins, RecordedJoin{PlayerID: resp.Welcome.PlayerID, Name: req.Name})
		}
	}

	// Commands in inbox order. A disconnect drains that player's commands.
	recorded := make([]RecordedCommand, 0, len(cmds))
	for _, env := range cmds {
		if left[env.PlayerID] {
			continue
		}
		p := w.players[env.PlayerID]
		if p == nil {
			w.sendResult(env.PlayerID, resultMsg(nowTick, env.Cmd.ReqID, nil, reject(protocol.ErrUnregistered, "player is not registered")))
			continue
		}
		data, err := w.applyCmd(p, env.Cmd, nowTick)
		recorded = append(recorded, RecordedCommand{PlayerID: p.ID, Cmd: env.Cmd, Code: ErrorCode(err)})
		w.sendResult(p.ID, resultMsg(nowTick, env.Cmd.ReqID, data, err))
	}

	// Economies advance one at a time, in id order.
	players := w.sortedPlayers()
	if !w.paused {
		for _, p := range players {
			rep := economy.Advance(p.Econ)
			for _, rid := range rep.Shortfalls {
				p.addEvent(protocol.Event{"t": nowTick, "type": "SHORTFALL", "resource": uint8(rid)})
			}
		}
	}

	for _, p := range players {
		cl := w.clients[p.ID]
		if cl == nil || cl.Out == nil {
			p.events = p.events[:0]
			continue
		}
		b, err := json.Marshal(w.buildState(p, nowTick))
		p.events = p.events[:0]
		if err != nil {
			continue
		}
		sendLatest(cl.Out, b)
	}

	digest := w.stateDigest(nowTick)
	if w.tickLogger != nil && (!w.paused || len(removed)+len(recordedJoins)+len(recordedLeaves)+len(recorded) > 0) {
		_ = w.tickLogger.WriteTick(TickLogEntry{
			Tick:     nowTick,
			Paused:   w.paused,
			Removed:  removed,
			Joins:    recordedJoins,
			Leaves:   recordedLeaves,
			Commands: recorded,
			Digest:   digest,
		})
	}

	every := uint64(w.cfg.Tuning.SnapshotEveryTicks)
	if !w.paused && w.snapshotSink != nil && every > 0 && nowTick != 0 && nowTick%every == 0 {
		snap := w.ExportSnapshot(nowTick)
		select {
		case w.snapshotSink <- snap:
		default:
			w.logger.Printf("tick %d: snapshot sink full, dropping periodic snapshot", nowTick)
		}
	}

	if !w.paused {
		w.tick.Add(1)
	}
	w.publishMetrics(time.Since(stepStart))
	return digest
}

func (w *World) buildState(p *Player, nowTick uint64) protocol.StateMsg {
	st := protocol.StateMsg{
		Type:            protocol.TypeState,
		ProtocolVersion: protocol.Version,
		Tick:            nowTick,
		PlayerID:        p.ID,
		Paused:          w.paused,
		Stockpiles:      []protocol.StockpileObs{},
		Buildings:       []protocol.BuildingObs{},
	}
	pop := p.Econ.Population()
	st.Population = protocol.PopulationObs{Idle: pop.Idle, Total: pop.Total, Maximum: pop.Maximum}

	deltas := p.Econ.Deltas()
	for _, rid := range p.Econ.StockpileIDs() {
		s, _ := p.Econ.Stockpile(rid)
		st.Stockpiles = append(st.Stockpiles, protocol.StockpileObs{
			Resource: uint8(rid),
			Current:  s.Current,
			Maximum:  s.Maximum,
			Delta:    deltas[rid],
		})
	}
	ratios := p.Econ.Ratios()
	for _, id := range p.Econ.OwnedIDs() {
		ob, _ := p.Econ.Owned(id)
		r, ok := ratios[id]
		if !ok {
			r = 1
		}
		st.Buildings = append(st.Buildings, protocol.BuildingObs{
			Building: uint8(id),
			Count:    ob.Count,
			Hired:    ob.Workers.Hired,
			Capacity: ob.Workers.Capacity,
			Ratio:    r,
		})
	}
	for _, pos := range p.Econ.Lands() {
		st.Lands = append(st.Lands, [2]int32{pos.X, pos.Y})
	}
	l := p.Econ.Ledger()
	st.Inbound = peerOffers(l.Inbound)
	st.Outbound = peerOffers(l.Outbound)
	if len(p.events) > 0 {
		st.Events = append([]protocol.Event(nil), p.events...)
	}
	return st
}

func peerOffers(m map[string][]economy.Offer) []protocol.PeerOffersObs {
	if len(m) == 0 {
		return nil
	}
	peers := make([]string, 0, len(m))
	for peer := range m {
		peers = append(peers, peer)
	}
	sort.Slice(peers, func(i, j int) bool { return playerLess(peers[i], peers[j]) })
	out := make([]protocol.PeerOffersObs, 0, len(peers))
	for _, peer := range peers {
		po := protocol.PeerOffersObs{Peer: peer}
		for _, o := range m[peer] {
			po.Offers = append(po.Offers, offerToMsg(o))
		}
		out = append(out, po)
	}
	return out
}

func resultMsg(tick uint64, reqID string, data interface{}, err error) protocol.ResultMsg {
	r := protocol.ResultMsg{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		ReqID:           reqID,
		Tick:            tick,
		OK:              err == nil,
		Data:            data,
	}
	if err != nil {
		r.Code = ErrorCode(err)
		r.Message = err.Error()
	}
	return r
}

// sendResult delivers a RESULT without blocking the loop. A client whose
// result buffer is full loses the message.
func (w *World) sendResult(playerID string, r protocol.ResultMsg) {
	cl := w.clients[playerID]
	if cl == nil || cl.Results == nil {
		return
	}
	b, err := json.Marshal(r)
	if err != nil {
		return
	}
	select {
	case cl.Results <- b:
	default:
		w.logger.Printf("tick %d: result buffer full for %s, dropping %s", r.Tick, playerID, r.ReqID)
	}
}

// sendLatest keeps only the newest message when the consumer falls behind.
func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}

func (w *World) audit(tick uint64, actor, action, details string) {
	if w.auditLogger == nil {
		return
	}
	_ = w.auditLogger.WriteAudit(AuditEntry{Tick: tick, Actor: actor, Action: action, Details: details})
}

func sortBuildingIDs(ids []catalogs.BuildingID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
