package economy

import "econcraft.ai/internal/sim/catalogs"

// Hire moves amount idle people into jobs at buildings of type id.
func (p *PlayerEconomy) Hire(id catalogs.BuildingID, amount uint32) error {
	ob, ok := p.buildings[id]
	if !ok || ob.Count == 0 {
		return &Error{Code: CodeNoSuchBuilding, Building: id}
	}
	if free := ob.Workers.Capacity - ob.Workers.Hired; free < amount {
		return &Error{Code: CodeInsufficientCapacity, Building: id, Requested: amount, Available: free}
	}
	if p.people.Idle < amount {
		return &Error{Code: CodeInsufficientIdle, Building: id, Requested: amount, Available: p.people.Idle}
	}
	ob.Workers.Hired += amount
	p.people.Idle -= amount
	p.gen.dirty = true
	return nil
}

// Fire sends amount workers at buildings of type id back to idle.
func (p *PlayerEconomy) Fire(id catalogs.BuildingID, amount uint32) error {
	ob, ok := p.buildings[id]
	if !ok || ob.Count == 0 {
		return &Error{Code: CodeNoSuchBuilding, Building: id}
	}
	if ob.Workers.Hired < amount {
		return &Error{Code: CodeInsufficientHired, Building: id, Requested: amount, Available: ob.Workers.Hired}
	}
	ob.Workers.Hired -= amount
	p.people.Idle += amount
	p.gen.dirty = true
	return nil
}
