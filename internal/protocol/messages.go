package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	PlayerName      string     `json:"player_name"`
	Auth            *HelloAuth `json:"auth,omitempty"`
}

type HelloAuth struct {
	ResumeToken string `json:"resume_token,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	PlayerID        string         `json:"player_id"`
	ResumeToken     string         `json:"resume_token"`
	Resumed         bool           `json:"resumed,omitempty"`
	WorldParams     WorldParams    `json:"world_params"`
	Catalogs        CatalogDigests `json:"catalogs"`

	// Set when registration failed; PlayerID is then empty.
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

type WorldParams struct {
	TickRateHz       int    `json:"tick_rate_hz"`
	StockpileMaximum uint32 `json:"stockpile_maximum"`
	Seed             int64  `json:"seed"`
	Paused           bool   `json:"paused,omitempty"`
}

type CatalogDigests struct {
	Buildings DigestRef `json:"buildings"`
	Resources DigestRef `json:"resources"`
}

type DigestRef struct {
	Digest string `json:"digest"`
	Count  int    `json:"count"`
}

// CATALOG (server -> client): one catalog per message.
type CatalogMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	Name            string      `json:"name"`   // "buildings" or "resources"
	Digest          string      `json:"digest"` // sha256 hex
	Data            interface{} `json:"data"`
}

// CMD (client -> server)
type CmdMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	ReqID           string    `json:"req_id"`
	Cmd             string    `json:"cmd"`
	Building        uint8     `json:"building,omitempty"`
	Resource        uint8     `json:"resource,omitempty"`
	Amount          uint32    `json:"amount,omitempty"`
	Pos             [2]int32  `json:"pos,omitempty"`
	Peer            string    `json:"peer,omitempty"`
	Offer           *OfferMsg `json:"offer,omitempty"`
}

type OfferMsg struct {
	Offering   []ResourceAmount `json:"offering"`
	Requesting []ResourceAmount `json:"requesting"`
}

type ResourceAmount struct {
	Resource uint8  `json:"resource"`
	Amount   uint32 `json:"amount"`
}

// RESULT (server -> client): exactly one per CMD.
type ResultMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	ReqID           string      `json:"req_id"`
	Tick            uint64      `json:"tick"`
	OK              bool        `json:"ok"`
	Code            string      `json:"code,omitempty"`
	Message         string      `json:"message,omitempty"`
	Data            interface{} `json:"data,omitempty"`
}

// STATE (server -> client): pushed once per tick.
type StateMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	Tick            uint64          `json:"tick"`
	PlayerID        string          `json:"player_id"`
	Paused          bool            `json:"paused,omitempty"`
	Population      PopulationObs   `json:"population"`
	Stockpiles      []StockpileObs  `json:"stockpiles"`
	Buildings       []BuildingObs   `json:"buildings"`
	Lands           [][2]int32      `json:"lands,omitempty"`
	Inbound         []PeerOffersObs `json:"inbound,omitempty"`
	Outbound        []PeerOffersObs `json:"outbound,omitempty"`
	Events          []Event         `json:"events,omitempty"`
}

type PopulationObs struct {
	Idle    uint32 `json:"idle"`
	Total   uint32 `json:"total"`
	Maximum uint32 `json:"maximum"`
}

type StockpileObs struct {
	Resource uint8  `json:"resource"`
	Current  uint32 `json:"current"`
	Maximum  uint32 `json:"maximum"`
	Delta    int32  `json:"delta"`
}

type BuildingObs struct {
	Building uint8   `json:"building"`
	Count    uint32  `json:"count"`
	Hired    uint32  `json:"hired"`
	Capacity uint32  `json:"capacity"`
	Ratio    float32 `json:"ratio"`
}

type PeerOffersObs struct {
	Peer   string     `json:"peer"`
	Offers []OfferMsg `json:"offers"`
}

// TileObs is the RESULT payload of GET_TILE.
type TileObs struct {
	Pos   [2]int32  `json:"pos"`
	Slots []SlotObs `json:"slots"`
}

type SlotObs struct {
	Building uint8  `json:"building"`
	Used     uint32 `json:"used"`
	Total    uint32 `json:"total"`
}

type Event map[string]interface{}
