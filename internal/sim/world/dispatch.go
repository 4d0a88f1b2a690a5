package world

import (
	"fmt"

	"econcraft.ai/internal/protocol"
	"econcraft.ai/internal/sim/catalogs"
	"econcraft.ai/internal/sim/economy"
	"econcraft.ai/internal/sim/terrain"
)

// applyCmd executes one command for p. The returned value, if any, becomes
// the RESULT data.
func (w *World) applyCmd(p *Player, cmd protocol.CmdMsg, nowTick uint64) (interface{}, error) {
	bid := catalogs.BuildingID(cmd.Building)
	rid := catalogs.ResourceID(cmd.Resource)
	pos := terrain.Position{X: cmd.Pos[0], Y: cmd.Pos[1]}

	switch cmd.Cmd {
	case protocol.CmdBuild:
		return nil, p.Econ.Build(w.tileAt(pos), bid, cmd.Amount)

	case protocol.CmdDemolish:
		if _, ok := w.cat.Building(bid); !ok {
			return nil, &economy.Error{Code: economy.CodeUnknownBuilding, Building: bid}
		}
		// Check the placement here so a wrong position is a rejection, not
		// a bookkeeping panic inside the economy.
		if placed := p.Econ.PlacedAt(bid, pos); placed < cmd.Amount {
			return nil, &economy.Error{Code: economy.CodeInsufficientOwned, Building: bid, Requested: cmd.Amount, Available: placed}
		}
		return nil, p.Econ.Demolish(w.tileAt(pos), bid, cmd.Amount)

	case protocol.CmdHire:
		return nil, p.Econ.Hire(bid, cmd.Amount)

	case protocol.CmdFire:
		return nil, p.Econ.Fire(bid, cmd.Amount)

	case protocol.CmdDeposit:
		return nil, p.Econ.Deposit(rid, cmd.Amount)

	case protocol.CmdWithdraw:
		return nil, p.Econ.Withdraw(rid, cmd.Amount)

	case protocol.CmdOpenTrade, protocol.CmdAcceptTrade, protocol.CmdCancelTrade:
		return nil, w.applyTrade(p, cmd, nowTick)

	case protocol.CmdGetTile:
		if !p.Econ.OwnsLand(pos) {
			return nil, reject(protocol.ErrTileNotOwned, fmt.Sprintf("tile %s is not owned", pos))
		}
		return tileObs(w.tileAt(pos)), nil

	case protocol.CmdMaxBuildable:
		if _, ok := w.cat.Building(bid); !ok {
			return nil, &economy.Error{Code: economy.CodeUnknownBuilding, Building: bid}
		}
		n := p.Econ.MaxBuildable([]*terrain.Tile{w.tileAt(pos)}, bid)
		return map[string]interface{}{"building": cmd.Building, "pos": cmd.Pos, "max": n}, nil

	default:
		return nil, reject(protocol.ErrBadRequest, "unknown cmd: "+cmd.Cmd)
	}
}

func (w *World) applyTrade(p *Player, cmd protocol.CmdMsg, nowTick uint64) error {
	if cmd.Offer == nil {
		return reject(protocol.ErrBadRequest, "offer required")
	}
	peer := w.players[cmd.Peer]
	if peer == nil || peer.ID == p.ID {
		return reject(protocol.ErrUnknownPeer, fmt.Sprintf("unknown peer %q", cmd.Peer))
	}
	o := offerFromMsg(*cmd.Offer)

	switch cmd.Cmd {
	case protocol.CmdOpenTrade:
		if err := p.Econ.OpenTrade(peer.ID, o); err != nil {
			return err
		}
		peer.Econ.ReceiveOffer(p.ID, o)
		peer.addEvent(tradeEvent(nowTick, "TRADE_OFFERED", p.ID, *cmd.Offer))

	case protocol.CmdAcceptTrade:
		// p accepts an offer peer made.
		if !peer.Econ.HasOutbound(p.ID, o) {
			return &economy.Error{Code: economy.CodeNoSuchOffer, Peer: peer.ID}
		}
		if err := p.Econ.AcceptTrade(peer.ID, o); err != nil {
			return err
		}
		if err := peer.Econ.SettleOutbound(p.ID, o); err != nil {
			panic(fmt.Sprintf("world: settle %s->%s after accept: %v", peer.ID, p.ID, err))
		}
		peer.addEvent(tradeEvent(nowTick, "TRADE_ACCEPTED", p.ID, *cmd.Offer))

	case protocol.CmdCancelTrade:
		if err := p.Econ.CancelTrade(peer.ID, o); err != nil {
			return err
		}
		if err := peer.Econ.RetractInbound(p.ID, o); err != nil {
			panic(fmt.Sprintf("world: retract %s->%s after cancel: %v", p.ID, peer.ID, err))
		}
		peer.addEvent(tradeEvent(nowTick, "TRADE_CANCELLED", p.ID, *cmd.Offer))
	}
	return nil
}

func offerFromMsg(m protocol.OfferMsg) economy.Offer {
	conv := func(in []protocol.ResourceAmount) []economy.ResourceEntry {
		out := make([]economy.ResourceEntry, 0, len(in))
		for _, e := range in {
			out = append(out, economy.ResourceEntry{ID: catalogs.ResourceID(e.Resource), Amount: e.Amount})
		}
		return out
	}
	return economy.Offer{Offering: conv(m.Offering), Requesting: conv(m.Requesting)}
}

func offerToMsg(o economy.Offer) protocol.OfferMsg {
	conv := func(in []economy.ResourceEntry) []protocol.ResourceAmount {
		out := make([]protocol.ResourceAmount, 0, len(in))
		for _, e := range in {
			out = append(out, protocol.ResourceAmount{Resource: uint8(e.ID), Amount: e.Amount})
		}
		return out
	}
	return protocol.OfferMsg{Offering: conv(o.Offering), Requesting: conv(o.Requesting)}
}

func tradeEvent(tick uint64, typ, peer string, offer protocol.OfferMsg) protocol.Event {
	return protocol.Event{"t": tick, "type": typ, "peer": peer, "offer": offer}
}

func tileObs(t *terrain.Tile) protocol.TileObs {
	obs := protocol.TileObs{Pos: [2]int32{t.Pos.X, t.Pos.Y}, Slots: []protocol.SlotObs{}}
	ids := make([]catalogs.BuildingID, 0, len(t.Slots))
	for id := range t.Slots {
		ids = append(ids, id)
	}
	sortBuildingIDs(ids)
	for _, id := range ids {
		s := t.Slots[id]
		obs.Slots = append(obs.Slots, protocol.SlotObs{Building: uint8(id), Used: s.Used, Total: s.Total})
	}
	return obs
}
