package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrRateLimit       = "E_RATE_LIMIT"
	ErrWorldBusy       = "E_WORLD_BUSY"

	// Session/registry.
	ErrAlreadyRegistered = "E_ALREADY_REGISTERED"
	ErrUnregistered      = "E_UNREGISTERED"
	ErrInvalidToken      = "E_INVALID_TOKEN"

	// Economy commands.
	ErrBadRequest          = "E_BAD_REQUEST"
	ErrUnknownID           = "E_UNKNOWN_ID"
	ErrMissingPrerequisite = "E_MISSING_PREREQUISITE"
	ErrNoSlot              = "E_NO_SLOT"
	ErrNotOwned            = "E_NOT_OWNED"
	ErrNoSuchBuilding      = "E_NO_SUCH_BUILDING"
	ErrNoCapacity          = "E_NO_CAPACITY"
	ErrNotHired            = "E_NOT_HIRED"
	ErrNoIdle              = "E_NO_IDLE"
	ErrStockpileFull       = "E_STOCKPILE_FULL"
	ErrNoResource          = "E_NO_RESOURCE"
	ErrNoSuchOffer         = "E_NO_SUCH_OFFER"
	ErrUnknownPeer         = "E_UNKNOWN_PEER"
	ErrTileNotOwned        = "E_TILE_NOT_OWNED"

	ErrInternal = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest:     {},
	ErrRateLimit:           {},
	ErrWorldBusy:           {},
	ErrAlreadyRegistered:   {},
	ErrUnregistered:        {},
	ErrInvalidToken:        {},
	ErrBadRequest:          {},
	ErrUnknownID:           {},
	ErrMissingPrerequisite: {},
	ErrNoSlot:              {},
	ErrNotOwned:            {},
	ErrNoSuchBuilding:      {},
	ErrNoCapacity:          {},
	ErrNotHired:            {},
	ErrNoIdle:              {},
	ErrStockpileFull:       {},
	ErrNoResource:          {},
	ErrNoSuchOffer:         {},
	ErrUnknownPeer:         {},
	ErrTileNotOwned:        {},
	ErrInternal:            {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
