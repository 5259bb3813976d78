package lobby

import (
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/switchess/server/internal/prob"
	"github.com/switchess/server/internal/rules"
	"github.com/switchess/server/internal/transport"
	"github.com/switchess/server/pkg/wire"
)

// fairnessBand is the maximum win-probability gap a switch may leave
// behind.
const fairnessBand = 0.05

// maybeMoveSwitch fires a switch attempt when the position's fullmove
// number reaches one of the configured points. Each point triggers at
// most once.
func (l *Lobby) maybeMoveSwitch(sess *Session) {
	sess.mu.Lock()
	if sess.switchType != SwitchMove && sess.switchType != SwitchRandom {
		sess.mu.Unlock()
		return
	}
	if sess.terminal() || sess.pending != nil {
		sess.mu.Unlock()
		return
	}
	n := sess.game.FullMoves()
	hit := -1
	for i, p := range sess.switchPoints {
		if p == n {
			hit = i
			break
		}
	}
	if hit < 0 {
		sess.mu.Unlock()
		return
	}
	sess.switchPoints = append(sess.switchPoints[:hit], sess.switchPoints[hit+1:]...)
	sess.mu.Unlock()

	go l.attemptSwitch(sess)
}

// armSwitchInterval starts the recurring trigger for time-based
// switching. Caller holds sess.mu.
func (l *Lobby) armSwitchInterval(sess *Session) {
	l.timers.Every(sess.Code, "switchInterval", sess.switchInterval, func() {
		l.attemptSwitch(sess)
	})
}

// RequestSwitch is the player-initiated trigger.
func (l *Lobby) RequestSwitch(c transport.Conn, sess *Session) {
	sess.mu.Lock()
	if sess.switchType != SwitchPlayer {
		sess.mu.Unlock()
		c.Emit(wire.EvError, "Switching is not player-triggered in this game")
		return
	}
	if _, seated := sess.sideOf(c.User().ID); !seated {
		sess.mu.Unlock()
		c.Emit(wire.EvError, "Only players can request a switch")
		return
	}
	if sess.terminal() || !sess.started() || sess.pending != nil {
		sess.mu.Unlock()
		return
	}
	sess.mu.Unlock()

	go l.attemptSwitch(sess)
}

// attemptSwitch scans the eligible pieces, tentatively flips each and
// keeps the first flip the engine judges fair. Acceptance arms the
// cancellable countdown; the board itself is untouched until it fires.
func (l *Lobby) attemptSwitch(sess *Session) {
	sess.mu.Lock()
	if sess.terminal() || sess.evicted || sess.pending != nil {
		sess.mu.Unlock()
		return
	}
	fen := sess.game.FEN()
	board := sess.game.Board()
	switched := make(map[rules.Square]bool, len(sess.switched))
	for sq := range sess.switched {
		switched[sq] = true
	}
	sess.mu.Unlock()

	l.switchMu.Lock()
	lastDir := l.lastSwitchDir
	l.switchMu.Unlock()

	for _, cand := range Candidates(board, switched) {
		// Alternate direction: never flip the same color twice in a row.
		if lastDir != "" && cand.Piece.Color == lastDir {
			continue
		}
		flipped, err := rules.FlipPieceColor(fen, cand.Square)
		if err != nil {
			continue
		}
		pair, err := l.evaluateFairness(flipped, fenTurn(flipped), prob.DrawFlags{})
		if err != nil {
			l.log.Warn("switch candidate evaluation failed",
				zap.String("code", sess.Code),
				zap.String("square", string(cand.Square)),
				zap.Error(err))
			continue
		}
		if math.Abs(pair.White-pair.Black) > fairnessBand {
			continue
		}

		l.switchMu.Lock()
		l.lastSwitchDir = cand.Piece.Color
		l.switchMu.Unlock()
		l.beginCountdown(sess, cand)
		return
	}
}

// beginCountdown arms the cancellable switch countdown on one square.
func (l *Lobby) beginCountdown(sess *Session, cand Candidate) {
	sess.mu.Lock()
	if sess.terminal() || sess.evicted || sess.pending != nil {
		sess.mu.Unlock()
		return
	}
	sess.pending = &pendingSwitch{Square: cand.Square, Piece: cand.Piece}
	sess.mu.Unlock()

	l.hub.Emit(sess.Code, wire.EvSwitchCountdown, wire.SwitchCountdown{
		Square: string(cand.Square),
		Piece:  pieceLetter(cand.Piece),
		Time:   int(l.cfg.Countdown.Seconds()),
	})
	l.timers.After(sess.Code, switchTimerKey(cand.Square), l.cfg.Countdown, func() {
		l.performSwitch(sess, cand.Square)
	})
	l.log.Info("switch countdown started",
		zap.String("code", sess.Code),
		zap.String("square", string(cand.Square)))
}

// performSwitch flips the piece when the countdown fires. The pending
// marker is the arbiter: whoever clears it first (token or countdown)
// wins, the other is a no-op.
func (l *Lobby) performSwitch(sess *Session, sq rules.Square) {
	sess.mu.Lock()
	if sess.pending == nil || sess.pending.Square != sq {
		sess.mu.Unlock()
		return
	}
	vetted := sess.pending.Piece
	sess.pending = nil
	if sess.terminal() || sess.evicted {
		sess.mu.Unlock()
		return
	}
	// Only the piece the fairness check saw may flip. A piece that moved
	// onto the square mid-countdown was never vetted.
	piece, ok := sess.game.Board()[sq]
	if !ok || piece != vetted {
		sess.mu.Unlock()
		l.log.Info("switch dropped, square changed",
			zap.String("code", sess.Code), zap.String("square", string(sq)))
		return
	}
	flipped, err := rules.FlipPieceColor(sess.game.FEN(), sq)
	if err != nil {
		sess.mu.Unlock()
		l.log.Warn("switch flip failed", zap.String("code", sess.Code), zap.Error(err))
		return
	}
	game, err := rules.FromFEN(flipped)
	if err != nil {
		sess.mu.Unlock()
		l.log.Warn("switched position rejected", zap.String("code", sess.Code), zap.Error(err))
		return
	}
	sess.game = game
	sess.switched[sq] = true
	sess.switchesDone++
	newColor := colorLetter(piece.Color.Other())
	view := sess.view()
	sess.mu.Unlock()

	l.hub.Emit(sess.Code, wire.EvPieceSwitched, wire.PieceSwitched{
		Square:   string(sq),
		NewColor: newColor,
	})
	l.hub.Emit(sess.Code, wire.EvReceivedLatestGame, view)
	l.publishSnapshot(sess)
	l.log.Info("piece switched",
		zap.String("code", sess.Code),
		zap.String("square", string(sq)),
		zap.String("new_color", newColor))
}

// UseToken spends one of the caller's cancel tokens on the pending
// switch. Tokens never go negative.
func (l *Lobby) UseToken(c transport.Conn, sess *Session, square string) {
	sess.mu.Lock()
	side, seated := sess.sideOf(c.User().ID)
	if !seated {
		sess.mu.Unlock()
		c.Emit(wire.EvError, "Only players can use tokens")
		return
	}
	if sess.pending == nil || string(sess.pending.Square) != square {
		sess.mu.Unlock()
		c.Emit(wire.EvError, "No switch to cancel on that square")
		return
	}
	budget := &sess.tokens.White
	if side == rules.Black {
		budget = &sess.tokens.Black
	}
	if *budget <= 0 {
		sess.mu.Unlock()
		c.Emit(wire.EvError, "No tokens left")
		return
	}
	*budget--
	sess.pending = nil
	sess.mu.Unlock()

	l.timers.Cancel(sess.Code, switchTimerKey(rules.Square(square)))
	l.hub.Emit(sess.Code, wire.EvTokenUsed, wire.TokenUsed{
		Player: string(side),
		Square: square,
	})
	l.log.Info("switch cancelled with token",
		zap.String("code", sess.Code),
		zap.String("square", square),
		zap.String("player", string(side)))
}

func switchTimerKey(sq rules.Square) string { return "switch:" + string(sq) }

func pieceLetter(p rules.Piece) string {
	return string([]byte{byte(p.Type)})
}

func colorLetter(c rules.Color) string {
	if c == rules.White {
		return "w"
	}
	return "b"
}

// fenTurn reads the side to move from a FEN string.
func fenTurn(fen string) rules.Color {
	fields := strings.Fields(fen)
	if len(fields) > 1 && fields[1] == "b" {
		return rules.Black
	}
	return rules.White
}
