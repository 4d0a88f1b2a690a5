package world

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"econcraft.ai/internal/protocol"
	"econcraft.ai/internal/sim/catalogs"
	"econcraft.ai/internal/sim/economy"
	"econcraft.ai/internal/sim/terrain"
)

// tileAt returns the live tile at pos, generating it on first use.
func (w *World) tileAt(pos terrain.Position) *terrain.Tile {
	if t, ok := w.tiles[pos]; ok {
		return t
	}
	t := w.terrain.Tile(pos)
	w.tiles[pos] = t
	return t
}

func (w *World) registerPlayer(name string, nowTick uint64) (*Player, string, string) {
	if name == "" {
		return nil, protocol.ErrBadRequest, "player_name required"
	}
	if _, ok := w.byName[name]; ok {
		return nil, protocol.ErrAlreadyRegistered, fmt.Sprintf("player %q already registered", name)
	}

	n := w.nextPlayerNum.Add(1)
	p := &Player{
		ID:          fmt.Sprintf("P%d", n),
		Name:        name,
		ResumeToken: uuid.NewString(),
		Econ:        economy.NewWithConfig(w.cat, w.deps, w.econ),
	}
	for _, sb := range w.cfg.Tuning.StarterBuildings {
		pos := terrain.Position{X: sb.X, Y: sb.Y}
		id := catalogs.BuildingID(sb.Building)
		if err := p.Econ.Grant(pos, id, sb.Amount); err != nil {
			// Starter ids are checked in New.
			panic(fmt.Sprintf("world: grant starter building %d: %v", id, err))
		}
		w.tileAt(pos).Occupy(id, sb.Amount)
	}

	w.players[p.ID] = p
	w.byName[p.Name] = p.ID
	w.byToken[p.ResumeToken] = p.ID
	w.logger.Printf("tick %d: registered %s as %s", nowTick, p.Name, p.ID)
	return p, "", ""
}

func (w *World) joinPlayer(req JoinRequest, nowTick uint64) JoinResponse {
	p, code, msg := w.registerPlayer(req.Name, nowTick)
	if p == nil {
		return JoinResponse{Welcome: w.welcomeError(code, msg)}
	}
	if req.Out != nil || req.Results != nil {
		w.clients[p.ID] = &clientState{Out: req.Out, Results: req.Results}
	}
	return JoinResponse{Welcome: w.welcome(p, false), Catalogs: w.catalogMsgs()}
}

// handleAttach binds a connection to an existing player by resume token. It
// runs immediately rather than at a tick boundary because it only touches
// the client table.
func (w *World) handleAttach(req AttachRequest) {
	var resp JoinResponse
	id, ok := w.byToken[req.ResumeToken]
	if p := w.players[id]; ok && p != nil {
		w.clients[p.ID] = &clientState{Out: req.Out, Results: req.Results}
		resp = JoinResponse{Welcome: w.welcome(p, true), Catalogs: w.catalogMsgs()}
	} else {
		resp = JoinResponse{Welcome: w.welcomeError(protocol.ErrInvalidToken, "unknown resume token")}
	}
	if req.Resp != nil {
		req.Resp <- resp
	}
}

// handleLeave unbinds the player if req names the connection currently
// bound and reports whether it did.
func (w *World) handleLeave(req LeaveRequest) bool {
	cl, ok := w.clients[req.PlayerID]
	if !ok || cl.Out != req.Out || cl.Results != req.Results {
		return false
	}
	delete(w.clients, req.PlayerID)
	return true
}

// removePlayer unregisters a player. Every other player drops the offers
// exchanged with it and gets its escrow back. The client binding is kept
// so later commands on that connection are answered with E_UNREGISTERED.
func (w *World) removePlayer(id string, nowTick uint64) error {
	p, ok := w.players[id]
	if !ok {
		return fmt.Errorf("unknown player %q", id)
	}
	for _, other := range w.sortedPlayers() {
		if other.ID == id {
			continue
		}
		if l := other.Econ.Ledger(); len(l.Inbound[id]) > 0 || len(l.Outbound[id]) > 0 {
			other.Econ.DropPeer(id)
			other.addEvent(protocol.Event{"t": nowTick, "type": "PEER_REMOVED", "peer": id})
		}
	}
	for _, pos := range p.Econ.Lands() {
		t := w.tiles[pos]
		if t == nil {
			continue
		}
		for _, bid := range p.Econ.OwnedIDs() {
			if n := p.Econ.PlacedAt(bid, pos); n > 0 {
				t.Release(bid, n)
			}
		}
	}
	delete(w.players, id)
	delete(w.byName, p.Name)
	delete(w.byToken, p.ResumeToken)
	w.logger.Printf("tick %d: removed %s (%s)", nowTick, p.ID, p.Name)
	w.audit(nowTick, "ADMIN", "REMOVE_PLAYER", p.ID)
	return nil
}

func (w *World) sortedPlayers() []*Player {
	out := make([]*Player, 0, len(w.players))
	for _, p := range w.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return playerLess(out[i].ID, out[j].ID) })
	return out
}

// playerLess orders ids like P2 before P10.
func playerLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

// Player returns the registered player with id, or nil. Only safe from the
// world loop goroutine or when the loop is not running.
func (w *World) Player(id string) *Player { return w.players[id] }

func (w *World) welcome(p *Player, resumed bool) protocol.WelcomeMsg {
	return protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		PlayerID:        p.ID,
		ResumeToken:     p.ResumeToken,
		Resumed:         resumed,
		WorldParams: protocol.WorldParams{
			TickRateHz:       int(w.clock.Rate()),
			StockpileMaximum: w.econ.StockpileMaximum,
			Seed:             w.cfg.Tuning.Terrain.Seed,
			Paused:           w.paused,
		},
		Catalogs: protocol.CatalogDigests{
			Buildings: protocol.DigestRef{Digest: w.cat.BuildingsDigest, Count: len(w.cat.Buildings)},
			Resources: protocol.DigestRef{Digest: w.cat.ResourcesDigest, Count: len(w.cat.Resources)},
		},
	}
}

func (w *World) welcomeError(code, msg string) protocol.WelcomeMsg {
	return protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		Code:            code,
		Message:         msg,
	}
}

func (w *World) catalogMsgs() []protocol.CatalogMsg {
	buildings := make([]*catalogs.Building, 0, len(w.cat.Buildings))
	for _, id := range w.cat.BuildingIDs() {
		buildings = append(buildings, w.cat.Buildings[id])
	}
	resources := make([]*catalogs.Resource, 0, len(w.cat.Resources))
	for _, id := range w.cat.ResourceIDs() {
		resources = append(resources, w.cat.Resources[id])
	}
	return []protocol.CatalogMsg{
		{Type: protocol.TypeCatalog, ProtocolVersion: protocol.Version, Name: "buildings", Digest: w.cat.BuildingsDigest, Data: buildings},
		{Type: protocol.TypeCatalog, ProtocolVersion: protocol.Version, Name: "resources", Digest: w.cat.ResourcesDigest, Data: resources},
	}
}
