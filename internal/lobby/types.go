// Package lobby holds the live game sessions: creation, connections,
// move processing and the color-switch mechanic.
package lobby

import (
	"sync"
	"time"

	"github.com/switchess/server/internal/rules"
	"github.com/switchess/server/pkg/wire"
)

// The engine plays under a fixed principal.
const (
	AIUserID   int64 = -1
	AIUserName       = "Stockfish AI"
)

// End reasons stored and broadcast on termination.
const (
	EndCheckmate    = "checkmate"
	EndStalemate    = "stalemate"
	EndRepetition   = "repetition"
	EndInsufficient = "insufficient"
	EndDraw         = "draw"
	EndAbandoned    = "abandoned"
)

// SwitchType selects how color switches are triggered.
type SwitchType string

const (
	SwitchNone   SwitchType = ""
	SwitchMove   SwitchType = "move"
	SwitchTime   SwitchType = "time"
	SwitchPlayer SwitchType = "player"
	SwitchRandom SwitchType = "random"
)

const (
	defaultTokensPerSide = 3
	defaultSwitchPoint   = 10
)

// Player is a seated participant.
type Player struct {
	ID             int64
	Name           string
	Connected      bool
	DisconnectedOn time.Time
}

func (p *Player) wire() *wire.User {
	if p == nil {
		return nil
	}
	u := &wire.User{ID: p.ID, Name: p.Name, Connected: p.Connected}
	if !p.DisconnectedOn.IsZero() {
		u.DisconnectedOn = p.DisconnectedOn.UnixMilli()
	}
	return u
}

// pendingSwitch is an armed countdown for one square.
type pendingSwitch struct {
	Square rules.Square
	Piece  rules.Piece
}

// Session is one live game. All mutable state is guarded by mu; engine
// and timer waits happen with the lock released.
type Session struct {
	mu sync.Mutex

	Code string
	ID   int64

	game     *rules.Game
	moves    []wire.Move
	movesSAN []string
	movesUCI []string

	host  *Player
	white *Player
	black *Player

	observers []wire.User

	unlisted bool
	vsAI     bool

	switchType     SwitchType
	switchPoints   []int
	switchInterval time.Duration
	tokens         wire.Tokens
	switched       map[rules.Square]bool
	switchesDone   int
	pending        *pendingSwitch

	winner    string
	endReason string

	createdAt time.Time
	startedAt time.Time
	endedAt   time.Time

	evicted bool
}

func (s *Session) terminal() bool {
	return s.endReason != "" || s.winner != ""
}

func (s *Session) started() bool {
	return len(s.moves) > 0
}

// sideOf reports which seat the user holds, if any.
func (s *Session) sideOf(userID int64) (rules.Color, bool) {
	if s.white != nil && s.white.ID == userID {
		return rules.White, true
	}
	if s.black != nil && s.black.ID == userID {
		return rules.Black, true
	}
	return "", false
}

func (s *Session) player(side rules.Color) *Player {
	if side == rules.White {
		return s.white
	}
	return s.black
}

func (s *Session) aiSide() (rules.Color, bool) {
	if !s.vsAI {
		return "", false
	}
	return s.sideOf(AIUserID)
}

// view builds the client-facing snapshot. Caller holds mu.
func (s *Session) view() *wire.Game {
	g := &wire.Game{
		ID:         s.ID,
		Code:       s.Code,
		FEN:        s.game.FEN(),
		White:      s.white.wire(),
		Black:      s.black.wire(),
		Host:       s.host.wire(),
		Observers:  append([]wire.User(nil), s.observers...),
		Turn:       string(s.game.Turn()),
		Winner:     s.winner,
		EndReason:  s.endReason,
		Unlisted:   s.unlisted,
		IsAIGame:   s.vsAI,
		SwitchType: string(s.switchType),
		Tokens:     s.tokens,
		MovesSAN:   append([]string(nil), s.movesSAN...),
	}
	if s.switchType == SwitchMove || s.switchType == SwitchRandom {
		g.SwitchPoints = append([]int(nil), s.switchPoints...)
	}
	if !s.startedAt.IsZero() {
		g.StartedAt = s.startedAt.UnixMilli()
	}
	if !s.endedAt.IsZero() {
		g.EndedAt = s.endedAt.UnixMilli()
	}
	if len(s.switched) > 0 {
		g.Switched = make(map[string]bool, len(s.switched))
		for sq := range s.switched {
			g.Switched[string(sq)] = true
		}
	}
	return g
}
