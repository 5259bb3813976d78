package wire

// User mirrors the client-side user shape. Players carry connection
// state; observers only id and name.
type User struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Connected      bool   `json:"connected,omitempty"`
	DisconnectedOn int64  `json:"disconnectedOn,omitempty"`
}

// Tokens is the per-side switch-cancel budget.
type Tokens struct {
	White int `json:"white"`
	Black int `json:"black"`
}

// Game is the full session view sent with receivedLatestGame.
type Game struct {
	ID           int64           `json:"id,omitempty"`
	Code         string          `json:"code"`
	FEN          string          `json:"fen"`
	White        *User           `json:"white,omitempty"`
	Black        *User           `json:"black,omitempty"`
	Host         *User           `json:"host,omitempty"`
	Observers    []User          `json:"observers"`
	Turn         string          `json:"turn"`
	Winner       string          `json:"winner,omitempty"`
	EndReason    string          `json:"endReason,omitempty"`
	Unlisted     bool            `json:"unlisted"`
	IsAIGame     bool            `json:"isAIGame"`
	SwitchType   string          `json:"switchType,omitempty"`
	SwitchPoints []int           `json:"switchPoints,omitempty"`
	Tokens       Tokens          `json:"tokens"`
	MovesSAN     []string        `json:"moves"`
	StartedAt    int64           `json:"startedAt,omitempty"`
	EndedAt      int64           `json:"endedAt,omitempty"`
	Switched     map[string]bool `json:"switched,omitempty"`
}

// Move is both the sendMove command payload and the receivedMove
// broadcast.
type Move struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

// ChatMessage relays one chat line to the room.
type ChatMessage struct {
	Author  User   `json:"author"`
	Message string `json:"message"`
}

// JoinedAsPlayer announces a seat being taken.
type JoinedAsPlayer struct {
	Name string `json:"name"`
	Side string `json:"side"`
}

// GameOver announces the terminal result.
type GameOver struct {
	Reason     string `json:"reason"`
	Winner     string `json:"winner,omitempty"`
	WinnerName string `json:"winnerName,omitempty"`
	WinnerSide string `json:"winnerSide,omitempty"`
	ID         int64  `json:"id,omitempty"`
}

// Probabilities carries the engine-derived win chances.
type Probabilities struct {
	WhiteWinProb float64 `json:"whiteWinProb"`
	BlackWinProb float64 `json:"blackWinProb"`
}

// SwitchCountdown starts the client-side countdown for a pending color
// switch on Square.
type SwitchCountdown struct {
	Square string `json:"square"`
	Piece  string `json:"piece"`
	Time   int    `json:"time"`
}

// TokenUsed reports a spent cancel token.
type TokenUsed struct {
	Player string `json:"player"`
	Square string `json:"square"`
}

// PieceSwitched reports a completed color switch.
type PieceSwitched struct {
	Square   string `json:"square"`
	NewColor string `json:"newColor"`
}

// ClaimAbandoned is the claimAbandoned command payload.
type ClaimAbandoned struct {
	Type string `json:"type"` // "win" or "draw"
}

// UseToken is the useToken command payload.
type UseToken struct {
	Square string `json:"square"`
}
