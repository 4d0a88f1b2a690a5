package world

import (
	"errors"

	"econcraft.ai/internal/protocol"
	"econcraft.ai/internal/sim/economy"
)

// cmdError is a rejection decided by the world itself rather than by a
// player's economy (unknown peer, tile not owned, ...).
type cmdError struct {
	code string
	msg  string
}

func (e *cmdError) Error() string { return e.msg }

func reject(code, msg string) error { return &cmdError{code: code, msg: msg} }

var economyCodes = map[economy.Code]string{
	economy.CodeUnknownBuilding:            protocol.ErrUnknownID,
	economy.CodeUnknownResource:            protocol.ErrUnknownID,
	economy.CodeMissingPrerequisite:        protocol.ErrMissingPrerequisite,
	economy.CodeInsufficientSlotOrResource: protocol.ErrNoSlot,
	economy.CodeInsufficientOwned:          protocol.ErrNotOwned,
	economy.CodeNoSuchBuilding:             protocol.ErrNoSuchBuilding,
	economy.CodeInsufficientCapacity:       protocol.ErrNoCapacity,
	economy.CodeInsufficientHired:          protocol.ErrNotHired,
	economy.CodeInsufficientIdle:           protocol.ErrNoIdle,
	economy.CodeStockpileFull:              protocol.ErrStockpileFull,
	economy.CodeInsufficientStock:          protocol.ErrNoResource,
	economy.CodeNoSuchOffer:                protocol.ErrNoSuchOffer,
}

// ErrorCode maps a command error to its wire code. Anything unrecognized is
// reported as E_INTERNAL.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var ce *cmdError
	if errors.As(err, &ce) {
		return ce.code
	}
	var ee *economy.Error
	if errors.As(err, &ee) {
		if code, ok := economyCodes[ee.Code]; ok {
			return code
		}
	}
	return protocol.ErrInternal
}
