package economy

import "econcraft.ai/internal/sim/catalogs"

// Deposit adds amount to the stockpile for rid, creating it with the
// default maximum if needed. Overflow is rejected, never truncated.
func (p *PlayerEconomy) Deposit(rid catalogs.ResourceID, amount uint32) error {
	if _, ok := p.cat.Resources[rid]; !ok {
		return &Error{Code: CodeUnknownResource, Resource: rid}
	}
	space := p.stockpileMaximum
	if s, ok := p.stockpiles[rid]; ok {
		space = s.Maximum - s.Current
	}
	if amount > space {
		return &Error{Code: CodeStockpileFull, Resource: rid, Requested: amount, Available: space}
	}
	p.stockpile(rid).Current += amount
	p.gen.dirty = true
	return nil
}

// Withdraw removes amount from the stockpile for rid.
func (p *PlayerEconomy) Withdraw(rid catalogs.ResourceID, amount uint32) error {
	if _, ok := p.cat.Resources[rid]; !ok {
		return &Error{Code: CodeUnknownResource, Resource: rid}
	}
	have := p.available(rid)
	if _, ok := p.stockpiles[rid]; !ok || have < amount {
		return &Error{Code: CodeInsufficientStock, Resource: rid, Requested: amount, Available: have}
	}
	p.stockpiles[rid].Current -= amount
	p.gen.dirty = true
	return nil
}

// credit adds amount up to the stockpile maximum and returns what was
// discarded.
func (p *PlayerEconomy) credit(rid catalogs.ResourceID, amount uint32) uint32 {
	s := p.stockpile(rid)
	space := s.Maximum - s.Current
	if amount <= space {
		s.Current += amount
		return 0
	}
	s.Current = s.Maximum
	return amount - space
}
