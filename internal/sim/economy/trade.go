package economy

import (
	"sort"

	"econcraft.ai/internal/sim/catalogs"
)

type ResourceEntry struct {
	ID     catalogs.ResourceID `json:"id"`
	Amount uint32              `json:"amount"`
}

// Offer is a proposed exchange: the owner gives Offering and receives
// Requesting.
type Offer struct {
	Offering   []ResourceEntry `json:"offering"`
	Requesting []ResourceEntry `json:"requesting"`
}

func (o Offer) Equal(other Offer) bool {
	return entriesEqual(o.Offering, other.Offering) && entriesEqual(o.Requesting, other.Requesting)
}

func (o Offer) clone() Offer {
	return Offer{
		Offering:   append([]ResourceEntry(nil), o.Offering...),
		Requesting: append([]ResourceEntry(nil), o.Requesting...),
	}
}

func entriesEqual(a, b []ResourceEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Ledger keys offers by peer id. Inbound offers were made to this player,
// outbound offers were made by it.
type Ledger struct {
	Inbound  map[string][]Offer `json:"inbound"`
	Outbound map[string][]Offer `json:"outbound"`
}

func newLedger() Ledger {
	return Ledger{Inbound: map[string][]Offer{}, Outbound: map[string][]Offer{}}
}

func (l Ledger) clone() Ledger {
	out := newLedger()
	for peer, offers := range l.Inbound {
		for _, o := range offers {
			out.Inbound[peer] = append(out.Inbound[peer], o.clone())
		}
	}
	for peer, offers := range l.Outbound {
		for _, o := range offers {
			out.Outbound[peer] = append(out.Outbound[peer], o.clone())
		}
	}
	return out
}

// Peers returns every peer with at least one offer in either direction.
func (l Ledger) Peers() []string {
	set := map[string]struct{}{}
	for peer := range l.Inbound {
		set[peer] = struct{}{}
	}
	for peer := range l.Outbound {
		set[peer] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for peer := range set {
		out = append(out, peer)
	}
	sort.Strings(out)
	return out
}

func find(offers []Offer, o Offer) int {
	for i := range offers {
		if offers[i].Equal(o) {
			return i
		}
	}
	return -1
}

func remove(m map[string][]Offer, peer string, o Offer) bool {
	i := find(m[peer], o)
	if i < 0 {
		return false
	}
	rest := append(m[peer][:i:i], m[peer][i+1:]...)
	if len(rest) == 0 {
		delete(m, peer)
	} else {
		m[peer] = rest
	}
	return true
}

// Ledger returns a copy of the trade ledger.
func (p *PlayerEconomy) Ledger() Ledger { return p.ledger.clone() }

func (p *PlayerEconomy) HasInbound(peer string, o Offer) bool {
	return find(p.ledger.Inbound[peer], o) >= 0
}

func (p *PlayerEconomy) HasOutbound(peer string, o Offer) bool {
	return find(p.ledger.Outbound[peer], o) >= 0
}

// covers reports whether the stockpiles hold every entry, summing
// duplicate ids.
func (p *PlayerEconomy) covers(entries []ResourceEntry) error {
	need := map[catalogs.ResourceID]uint64{}
	for _, e := range entries {
		if _, ok := p.cat.Resources[e.ID]; !ok {
			return &Error{Code: CodeUnknownResource, Resource: e.ID}
		}
		need[e.ID] += uint64(e.Amount)
	}
	for _, e := range entries {
		if have := p.available(e.ID); uint64(have) < need[e.ID] {
			req := need[e.ID]
			if req > uint64(^uint32(0)) {
				req = uint64(^uint32(0))
			}
			return &Error{Code: CodeInsufficientStock, Resource: e.ID, Requested: uint32(req), Available: have}
		}
	}
	return nil
}

func (p *PlayerEconomy) debit(entries []ResourceEntry) {
	for _, e := range entries {
		if e.Amount > 0 {
			p.stockpiles[e.ID].Current -= e.Amount
		}
	}
}

func (p *PlayerEconomy) creditAll(entries []ResourceEntry) {
	for _, e := range entries {
		p.credit(e.ID, e.Amount)
	}
}

// OpenTrade escrows the offering and records the offer as outbound to peer.
func (p *PlayerEconomy) OpenTrade(peer string, o Offer) error {
	if err := p.covers(o.Offering); err != nil {
		return err
	}
	if err := p.knownResources(o.Requesting); err != nil {
		return err
	}
	p.debit(o.Offering)
	p.ledger.Outbound[peer] = append(p.ledger.Outbound[peer], o.clone())
	p.gen.dirty = true
	return nil
}

// ReceiveOffer records an offer peer made to this player.
func (p *PlayerEconomy) ReceiveOffer(peer string, o Offer) {
	p.ledger.Inbound[peer] = append(p.ledger.Inbound[peer], o.clone())
}

// AcceptTrade pays the requested resources for an inbound offer from peer
// and credits the offering. Credits beyond a stockpile maximum are lost.
func (p *PlayerEconomy) AcceptTrade(peer string, o Offer) error {
	if !p.HasInbound(peer, o) {
		return &Error{Code: CodeNoSuchOffer, Peer: peer}
	}
	if err := p.covers(o.Requesting); err != nil {
		return err
	}
	remove(p.ledger.Inbound, peer, o)
	p.debit(o.Requesting)
	p.creditAll(o.Offering)
	p.gen.dirty = true
	return nil
}

// SettleOutbound completes an outbound offer peer accepted: the escrow is
// already gone, so only the requested resources are credited.
func (p *PlayerEconomy) SettleOutbound(peer string, o Offer) error {
	if !remove(p.ledger.Outbound, peer, o) {
		return &Error{Code: CodeNoSuchOffer, Peer: peer}
	}
	p.creditAll(o.Requesting)
	p.gen.dirty = true
	return nil
}

// CancelTrade withdraws an outbound offer and refunds the escrow.
func (p *PlayerEconomy) CancelTrade(peer string, o Offer) error {
	if !remove(p.ledger.Outbound, peer, o) {
		return &Error{Code: CodeNoSuchOffer, Peer: peer}
	}
	p.creditAll(o.Offering)
	p.gen.dirty = true
	return nil
}

// RetractInbound drops an inbound offer after the peer cancelled it.
func (p *PlayerEconomy) RetractInbound(peer string, o Offer) error {
	if !remove(p.ledger.Inbound, peer, o) {
		return &Error{Code: CodeNoSuchOffer, Peer: peer}
	}
	return nil
}

// DropPeer removes every offer involving peer. Outbound escrow is refunded.
func (p *PlayerEconomy) DropPeer(peer string) {
	for _, o := range p.ledger.Outbound[peer] {
		p.creditAll(o.Offering)
		p.gen.dirty = true
	}
	delete(p.ledger.Outbound, peer)
	delete(p.ledger.Inbound, peer)
}

func (p *PlayerEconomy) knownResources(entries []ResourceEntry) error {
	for _, e := range entries {
		if _, ok := p.cat.Resources[e.ID]; !ok {
			return &Error{Code: CodeUnknownResource, Resource: e.ID}
		}
	}
	return nil
}
