package economy

import (
	"fmt"

	"econcraft.ai/internal/sim/catalogs"
)

// Code names the precondition a command failed.
type Code string

const (
	CodeUnknownBuilding            Code = "UNKNOWN_BUILDING"
	CodeUnknownResource            Code = "UNKNOWN_RESOURCE"
	CodeMissingPrerequisite        Code = "MISSING_PREREQUISITE"
	CodeInsufficientSlotOrResource Code = "INSUFFICIENT_SLOT_OR_RESOURCE"
	CodeInsufficientOwned          Code = "INSUFFICIENT_OWNED"
	CodeNoSuchBuilding             Code = "NO_SUCH_BUILDING"
	CodeInsufficientCapacity       Code = "INSUFFICIENT_CAPACITY"
	CodeInsufficientHired          Code = "INSUFFICIENT_HIRED"
	CodeInsufficientIdle           Code = "INSUFFICIENT_IDLE"
	CodeStockpileFull              Code = "STOCKPILE_FULL"
	CodeInsufficientStock          Code = "INSUFFICIENT_STOCK"
	CodeNoSuchOffer                Code = "NO_SUCH_OFFER"
)

// Error is a validation failure. State is never modified when one is returned.
type Error struct {
	Code      Code
	Building  catalogs.BuildingID
	Resource  catalogs.ResourceID
	Requested uint32
	Available uint32
	Peer      string
}

// Sentinels for errors.Is; only the Code is compared.
var (
	ErrUnknownBuilding            = &Error{Code: CodeUnknownBuilding}
	ErrUnknownResource            = &Error{Code: CodeUnknownResource}
	ErrMissingPrerequisite        = &Error{Code: CodeMissingPrerequisite}
	ErrInsufficientSlotOrResource = &Error{Code: CodeInsufficientSlotOrResource}
	ErrInsufficientOwned          = &Error{Code: CodeInsufficientOwned}
	ErrNoSuchBuilding             = &Error{Code: CodeNoSuchBuilding}
	ErrInsufficientCapacity       = &Error{Code: CodeInsufficientCapacity}
	ErrInsufficientHired          = &Error{Code: CodeInsufficientHired}
	ErrInsufficientIdle           = &Error{Code: CodeInsufficientIdle}
	ErrStockpileFull              = &Error{Code: CodeStockpileFull}
	ErrInsufficientStock          = &Error{Code: CodeInsufficientStock}
	ErrNoSuchOffer                = &Error{Code: CodeNoSuchOffer}
)

func (e *Error) Error() string {
	switch e.Code {
	case CodeUnknownBuilding:
		return fmt.Sprintf("unknown building id %d", e.Building)
	case CodeUnknownResource:
		return fmt.Sprintf("unknown resource id %d", e.Resource)
	case CodeMissingPrerequisite:
		return fmt.Sprintf("building %d requires building %d", e.Requested, e.Building)
	case CodeInsufficientSlotOrResource:
		return fmt.Sprintf("can't build %d of building %d, maximum is %d", e.Requested, e.Building, e.Available)
	case CodeInsufficientOwned:
		return fmt.Sprintf("can't demolish %d of building %d, only %d owned", e.Requested, e.Building, e.Available)
	case CodeNoSuchBuilding:
		return fmt.Sprintf("building %d is not owned", e.Building)
	case CodeInsufficientCapacity:
		return fmt.Sprintf("can't hire %d workers for building %d, %d jobs free", e.Requested, e.Building, e.Available)
	case CodeInsufficientHired:
		return fmt.Sprintf("can't fire %d workers from building %d, %d hired", e.Requested, e.Building, e.Available)
	case CodeInsufficientIdle:
		return fmt.Sprintf("can't hire %d workers, %d idle", e.Requested, e.Available)
	case CodeStockpileFull:
		return fmt.Sprintf("can't deposit %d of resource %d, %d space left", e.Requested, e.Resource, e.Available)
	case CodeInsufficientStock:
		return fmt.Sprintf("need %d of resource %d, have %d", e.Requested, e.Resource, e.Available)
	case CodeNoSuchOffer:
		return fmt.Sprintf("no such offer with %q", e.Peer)
	}
	return string(e.Code)
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}
