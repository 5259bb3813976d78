// Package wire defines the websocket protocol shared with clients:
// event names and their JSON payloads.
package wire

// Events emitted by the server.
const (
	EvReceivedLatestGame   = "receivedLatestGame"
	EvReceivedMove         = "receivedMove"
	EvChat                 = "chat"
	EvUserJoinedAsPlayer   = "userJoinedAsPlayer"
	EvGameOver             = "gameOver"
	EvProbabilitiesUpdated = "probabilitiesUpdated"
	EvSwitchCountdown      = "switchCountdown"
	EvTokenUsed            = "tokenUsed"
	EvPieceSwitched        = "pieceSwitched"
	EvError                = "error"
)

// Events consumed from clients.
const (
	CmdJoinLobby      = "joinLobby"
	CmdGetLatestGame  = "getLatestGame"
	CmdChat           = "chat"
	CmdSendMove       = "sendMove"
	CmdJoinAsPlayer   = "joinAsPlayer"
	CmdClaimAbandoned = "claimAbandoned"
	CmdRequestSwitch  = "requestSwitch"
	CmdUseToken       = "useToken"
	CmdLeave          = "disconnect"
)
