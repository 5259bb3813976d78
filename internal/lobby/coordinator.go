package lobby

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/switchess/server/internal/rules"
	"github.com/switchess/server/internal/transport"
	"github.com/switchess/server/pkg/wire"
)

// HandleEvent dispatches one decoded client event. It implements
// transport.Handler.
func (l *Lobby) HandleEvent(c transport.Conn, event string, data json.RawMessage) {
	switch event {
	case wire.CmdJoinLobby:
		var code string
		if err := json.Unmarshal(data, &code); err != nil {
			c.Emit(wire.EvError, "Malformed join request")
			return
		}
		l.JoinLobby(c, code)
	case wire.CmdGetLatestGame:
		l.GetLatest(c)
	case wire.CmdChat:
		var message string
		if err := json.Unmarshal(data, &message); err != nil {
			return
		}
		l.Chat(c, message)
	case wire.CmdSendMove:
		var mv wire.Move
		if err := json.Unmarshal(data, &mv); err != nil {
			c.Emit(wire.EvError, "Malformed move")
			return
		}
		if sess := l.sessionOf(c); sess != nil {
			l.ProcessMove(context.Background(), c, sess, mv)
		} else {
			c.Emit(wire.EvError, "Game not found")
		}
	case wire.CmdJoinAsPlayer:
		l.JoinAsPlayer(c)
	case wire.CmdClaimAbandoned:
		var claim wire.ClaimAbandoned
		if err := json.Unmarshal(data, &claim); err != nil {
			c.Emit(wire.EvError, "Malformed claim")
			return
		}
		l.ClaimAbandoned(c, claim.Type)
	case wire.CmdRequestSwitch:
		if sess := l.sessionOf(c); sess != nil {
			l.RequestSwitch(c, sess)
		}
	case wire.CmdUseToken:
		var use wire.UseToken
		if err := json.Unmarshal(data, &use); err != nil {
			c.Emit(wire.EvError, "Malformed token request")
			return
		}
		if sess := l.sessionOf(c); sess != nil {
			l.UseToken(c, sess, use.Square)
		}
	case wire.CmdLeave:
		l.Leave(c)
	default:
		l.log.Debug("unknown event", zap.String("event", event))
	}
}

// HandleDisconnect implements transport.Handler.
func (l *Lobby) HandleDisconnect(c transport.Conn) {
	l.Leave(c)
}

// sessionOf resolves the session the connection has joined.
func (l *Lobby) sessionOf(c transport.Conn) *Session {
	l.mu.RLock()
	code := l.conns[c.ID()]
	l.mu.RUnlock()
	if code == "" {
		return nil
	}
	return l.Get(code)
}

// JoinLobby attaches the connection to a session's room. Seated players
// reconnect in place with a refreshed name; everyone else observes. A
// connection joined elsewhere leaves that room first.
func (l *Lobby) JoinLobby(c transport.Conn, code string) {
	code = strings.ToUpper(strings.TrimSpace(code))
	sess := l.Get(code)
	if sess == nil {
		c.Emit(wire.EvError, "Game not found")
		return
	}

	l.mu.RLock()
	prev := l.conns[c.ID()]
	l.mu.RUnlock()
	if prev != "" && prev != code {
		l.Leave(c)
	}

	user := c.User()
	sess.mu.Lock()
	if sess.host != nil && sess.host.ID == user.ID {
		sess.host.Connected = true
		sess.host.Name = user.Name
	}
	if _, seated := sess.sideOf(user.ID); seated {
		p := sess.white
		if sess.black != nil && sess.black.ID == user.ID {
			p = sess.black
		}
		p.Connected = true
		p.DisconnectedOn = time.Time{}
		p.Name = user.Name
	} else if !hasObserver(sess.observers, user.ID) {
		sess.observers = append(sess.observers, wire.User{ID: user.ID, Name: user.Name})
	}
	view := sess.view()
	sess.mu.Unlock()

	l.cancelIdleTimer(sess)
	l.mu.Lock()
	l.conns[c.ID()] = code
	l.mu.Unlock()
	l.hub.Join(code, c)
	l.hub.Emit(code, wire.EvReceivedLatestGame, view)
}

func hasObserver(observers []wire.User, id int64) bool {
	for _, o := range observers {
		if o.ID == id {
			return true
		}
	}
	return false
}

// Leave detaches the connection from its session. Players are marked
// disconnected with a timestamp; observers are removed outright. The
// last one out arms the idle eviction timer.
func (l *Lobby) Leave(c transport.Conn) {
	l.mu.Lock()
	code := l.conns[c.ID()]
	delete(l.conns, c.ID())
	l.mu.Unlock()
	if code == "" {
		return
	}

	l.hub.Leave(code, c)
	sess := l.Get(code)
	if sess == nil {
		return
	}

	user := c.User()
	sess.mu.Lock()
	for i, o := range sess.observers {
		if o.ID == user.ID {
			sess.observers = append(sess.observers[:i], sess.observers[i+1:]...)
			break
		}
	}
	if side, seated := sess.sideOf(user.ID); seated {
		p := sess.player(side)
		p.Connected = false
		p.DisconnectedOn = time.Now()
	}
	if sess.host != nil && sess.host.ID == user.ID {
		sess.host.Connected = false
	}
	view := sess.view()
	started := sess.started()
	sess.mu.Unlock()

	if l.hub.RoomSize(code) == 0 {
		l.armIdleTimer(sess, started)
	} else {
		l.hub.Emit(code, wire.EvReceivedLatestGame, view)
	}
}

// JoinAsPlayer seats the connection's user on the first open side.
func (l *Lobby) JoinAsPlayer(c transport.Conn) {
	sess := l.sessionOf(c)
	if sess == nil {
		c.Emit(wire.EvError, "Game not found")
		return
	}

	user := c.User()
	sess.mu.Lock()
	if sess.terminal() {
		sess.mu.Unlock()
		c.Emit(wire.EvError, "Game is already over")
		return
	}
	if _, seated := sess.sideOf(user.ID); seated {
		sess.mu.Unlock()
		return
	}

	var side rules.Color
	switch {
	case sess.white == nil:
		side = rules.White
		sess.white = &Player{ID: user.ID, Name: user.Name, Connected: true}
	case sess.black == nil:
		side = rules.Black
		sess.black = &Player{ID: user.ID, Name: user.Name, Connected: true}
	default:
		sess.mu.Unlock()
		c.Emit(wire.EvError, "Both seats are taken")
		return
	}
	for i, o := range sess.observers {
		if o.ID == user.ID {
			sess.observers = append(sess.observers[:i], sess.observers[i+1:]...)
			break
		}
	}
	if sess.startedAt.IsZero() {
		sess.startedAt = time.Now()
	}
	bothSeated := sess.white != nil && sess.black != nil
	if bothSeated && sess.switchType == SwitchTime {
		l.armSwitchInterval(sess)
	}
	view := sess.view()
	sess.mu.Unlock()

	l.hub.Emit(sess.Code, wire.EvUserJoinedAsPlayer, wire.JoinedAsPlayer{
		Name: user.Name,
		Side: string(side),
	})
	l.hub.Emit(sess.Code, wire.EvReceivedLatestGame, view)
	l.publishSnapshot(sess)
	l.log.Info("player seated",
		zap.String("code", sess.Code),
		zap.Int64("user", user.ID),
		zap.String("side", string(side)))
}

// ClaimAbandoned lets a seated player end a started game whose opponent
// has been disconnected past the grace window.
func (l *Lobby) ClaimAbandoned(c transport.Conn, claimType string) {
	sess := l.sessionOf(c)
	if sess == nil {
		c.Emit(wire.EvError, "Game not found")
		return
	}
	if claimType != "win" && claimType != "draw" {
		c.Emit(wire.EvError, "Invalid claim")
		return
	}

	user := c.User()
	sess.mu.Lock()
	if sess.terminal() || !sess.started() || sess.white == nil || sess.black == nil {
		sess.mu.Unlock()
		c.Emit(wire.EvError, "Invalid claim")
		return
	}
	side, seated := sess.sideOf(user.ID)
	if !seated {
		sess.mu.Unlock()
		c.Emit(wire.EvError, "Invalid claim")
		return
	}
	opponent := sess.player(side.Other())
	if opponent.Connected || opponent.DisconnectedOn.IsZero() ||
		time.Since(opponent.DisconnectedOn) < l.cfg.AbandonGrace {
		sess.mu.Unlock()
		c.Emit(wire.EvError, "Invalid claim: opponent has not abandoned the game")
		return
	}

	winner := "draw"
	if claimType == "win" {
		winner = string(side)
	}
	rec, over, done := l.finishLocked(sess, EndAbandoned, winner)
	if done {
		over.WinnerName = user.Name
		if winner != "draw" {
			over.WinnerSide = winner
		}
	}
	sess.mu.Unlock()

	if done {
		l.conclude(sess, rec, over)
	}
}

// GetLatest sends the session view to the requesting connection only.
func (l *Lobby) GetLatest(c transport.Conn) {
	sess := l.sessionOf(c)
	if sess == nil {
		return
	}
	sess.mu.Lock()
	view := sess.view()
	sess.mu.Unlock()
	c.Emit(wire.EvReceivedLatestGame, view)
}

// Chat relays a message to everyone else in the room.
func (l *Lobby) Chat(c transport.Conn, message string) {
	sess := l.sessionOf(c)
	if sess == nil || strings.TrimSpace(message) == "" {
		return
	}
	l.hub.EmitExcept(sess.Code, c, wire.EvChat, wire.ChatMessage{
		Author:  c.User(),
		Message: message,
	})
}
