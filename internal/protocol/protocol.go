package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeCatalog = "CATALOG"
	TypeCmd     = "CMD"
	TypeResult  = "RESULT"
	TypeState   = "STATE"
)

// Command names carried in CmdMsg.Cmd.
const (
	CmdBuild        = "BUILD"
	CmdDemolish     = "DEMOLISH"
	CmdHire         = "HIRE"
	CmdFire         = "FIRE"
	CmdDeposit      = "DEPOSIT"
	CmdWithdraw     = "WITHDRAW"
	CmdOpenTrade    = "OPEN_TRADE"
	CmdAcceptTrade  = "ACCEPT_TRADE"
	CmdCancelTrade  = "CANCEL_TRADE"
	CmdGetTile      = "GET_TILE"
	CmdMaxBuildable = "MAX_BUILDABLE"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
