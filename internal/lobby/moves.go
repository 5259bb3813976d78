package lobby

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/switchess/server/internal/engine"
	"github.com/switchess/server/internal/prob"
	"github.com/switchess/server/internal/rules"
	"github.com/switchess/server/internal/store"
	"github.com/switchess/server/internal/transport"
	"github.com/switchess/server/pkg/wire"
)

// ProcessMove validates and plays one move from a connected player,
// then drives everything that hangs off a move: broadcasts, win
// probabilities, switch triggers, termination and the engine's reply.
func (l *Lobby) ProcessMove(ctx context.Context, c transport.Conn, sess *Session, mv wire.Move) {
	sess.mu.Lock()
	if sess.terminal() {
		sess.mu.Unlock()
		c.Emit(wire.EvError, "Game is already over")
		return
	}
	side, seated := sess.sideOf(c.User().ID)
	if !seated || sess.game.Turn() != side {
		sess.mu.Unlock()
		c.Emit(wire.EvError, "Not your turn to move")
		return
	}

	if err := l.applyLocked(sess, mv); err != nil {
		sess.mu.Unlock()
		c.Emit(wire.EvError, "Invalid move")
		return
	}

	var (
		rec    *wireRecord
		aiTurn bool
	)
	if sess.game.IsGameOver() {
		reason, winner := terminalOutcome(sess.game)
		if r, over, done := l.finishLocked(sess, reason, winner); done {
			rec = &wireRecord{rec: r, over: over}
		}
	} else if aiSide, ok := sess.aiSide(); ok && sess.game.Turn() == aiSide {
		aiTurn = true
	}
	moveCount := len(sess.moves)
	sess.mu.Unlock()

	l.hub.EmitExcept(sess.Code, c, wire.EvReceivedMove, mv)

	if rec != nil {
		l.conclude(sess, rec.rec, rec.over)
		return
	}

	l.publishSnapshot(sess)
	go l.publishProbabilities(sess, moveCount)
	l.maybeMoveSwitch(sess)

	if aiTurn {
		l.aiReply(ctx, sess, moveCount)
	}
}

type wireRecord struct {
	rec  *store.Record
	over wire.GameOver
}

// applyLocked plays the move and keeps the session's bookkeeping in step:
// move lists, the started timestamp and the one-shot switch markers,
// which follow pieces as they move. Caller holds sess.mu.
func (l *Lobby) applyLocked(sess *Session, mv wire.Move) error {
	applied, err := sess.game.Apply(rules.Move{From: mv.From, To: mv.To, Promotion: mv.Promotion})
	if err != nil {
		return err
	}
	sess.moves = append(sess.moves, mv)
	sess.movesSAN = append(sess.movesSAN, applied.SAN)
	sess.movesUCI = append(sess.movesUCI, applied.UCI)
	if sess.startedAt.IsZero() {
		sess.startedAt = time.Now()
	}

	if applied.Capture {
		delete(sess.switched, applied.CaptureSquare)
	}
	if sess.switched[applied.From] {
		delete(sess.switched, applied.From)
		sess.switched[applied.To] = true
	}
	if applied.Castled && sess.switched[applied.CastleRook[0]] {
		delete(sess.switched, applied.CastleRook[0])
		sess.switched[applied.CastleRook[1]] = true
	}

	// A move landing on a pending switch square makes the countdown
	// meaningless for the original piece; let the countdown handler
	// re-check when it fires.
	return nil
}

// terminalOutcome maps the rules state onto (endReason, winner).
func terminalOutcome(g *rules.Game) (reason, winner string) {
	switch {
	case g.IsCheckmate():
		return EndCheckmate, string(g.Winner())
	case g.IsStalemate():
		return EndStalemate, "draw"
	case g.IsThreefoldRepetition():
		return EndRepetition, "draw"
	case g.IsInsufficientMaterial():
		return EndInsufficient, "draw"
	default:
		return EndDraw, "draw"
	}
}

// aiOpeningMove plays the engine's first move during session creation,
// before the session is published.
func (l *Lobby) aiOpeningMove(ctx context.Context, sess *Session) error {
	res, err := l.engine.BestMove(ctx, sess.game.FEN(), engine.Limits{Depth: l.cfg.SearchDepth})
	if err != nil {
		res, err = l.engine.BestMove(ctx, sess.game.FEN(), engine.Limits{Depth: l.cfg.SearchDepth})
	}
	if err != nil {
		return fmt.Errorf("engine opening move: %w", err)
	}
	mv, err := moveFromUCI(res.BestMove)
	if err != nil {
		return fmt.Errorf("engine opening move: %w", err)
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return l.applyLocked(sess, mv)
}

// aiReply asks the engine for its move and applies it. The engine wait
// happens with the session unlocked; the reply is dropped if the session
// moved on meanwhile. Engine failures are retried exactly once, then the
// room is told and the session stays awaiting the move.
func (l *Lobby) aiReply(ctx context.Context, sess *Session, afterCount int) {
	sess.mu.Lock()
	if sess.terminal() || sess.evicted || len(sess.moves) != afterCount {
		sess.mu.Unlock()
		return
	}
	aiSide, ok := sess.aiSide()
	if !ok || sess.game.Turn() != aiSide {
		sess.mu.Unlock()
		return
	}
	fen := sess.game.FEN()
	sess.mu.Unlock()

	res, err := l.engine.BestMove(ctx, fen, engine.Limits{Depth: l.cfg.SearchDepth})
	if err != nil {
		l.log.Warn("engine move failed, retrying", zap.String("code", sess.Code), zap.Error(err))
		res, err = l.engine.BestMove(ctx, fen, engine.Limits{Depth: l.cfg.SearchDepth})
	}
	if err != nil {
		l.log.Error("engine move failed", zap.String("code", sess.Code), zap.Error(err))
		l.hub.Emit(sess.Code, wire.EvError, "AI is not responding, please wait")
		return
	}
	mv, err := moveFromUCI(res.BestMove)
	if err != nil {
		l.log.Error("engine returned unusable move",
			zap.String("code", sess.Code), zap.String("bestmove", res.BestMove))
		l.hub.Emit(sess.Code, wire.EvError, "AI made an invalid move")
		return
	}

	sess.mu.Lock()
	if sess.terminal() || sess.evicted || len(sess.moves) != afterCount {
		sess.mu.Unlock()
		return
	}
	if sess.game.Turn() != aiSide {
		sess.mu.Unlock()
		return
	}
	if err := l.applyLocked(sess, mv); err != nil {
		sess.mu.Unlock()
		l.log.Error("engine move rejected by rules",
			zap.String("code", sess.Code), zap.String("uci", res.BestMove))
		l.hub.Emit(sess.Code, wire.EvError, "AI made an invalid move")
		return
	}
	var rec *wireRecord
	if sess.game.IsGameOver() {
		reason, winner := terminalOutcome(sess.game)
		if r, over, done := l.finishLocked(sess, reason, winner); done {
			rec = &wireRecord{rec: r, over: over}
		}
	}
	moveCount := len(sess.moves)
	sess.mu.Unlock()

	l.hub.Emit(sess.Code, wire.EvReceivedMove, mv)

	if rec != nil {
		l.conclude(sess, rec.rec, rec.over)
		return
	}
	l.publishSnapshot(sess)
	go l.publishProbabilities(sess, moveCount)
	l.maybeMoveSwitch(sess)
}

func moveFromUCI(uci string) (wire.Move, error) {
	if len(uci) < 4 {
		return wire.Move{}, fmt.Errorf("short uci move %q", uci)
	}
	mv := wire.Move{From: uci[:2], To: uci[2:4]}
	if len(uci) > 4 {
		mv.Promotion = uci[4:]
	}
	return mv, nil
}

// publishProbabilities evaluates the position and broadcasts the win
// chances. Stale results (the game moved on or ended) are dropped.
func (l *Lobby) publishProbabilities(sess *Session, afterCount int) {
	sess.mu.Lock()
	if sess.terminal() || sess.evicted || len(sess.moves) != afterCount {
		sess.mu.Unlock()
		return
	}
	fen := sess.game.FEN()
	turn := sess.game.Turn()
	flags := drawFlagsLocked(sess)
	sess.mu.Unlock()

	pair, err := l.evaluateFairness(fen, turn, flags)
	if err != nil {
		l.log.Warn("probability evaluation failed", zap.String("code", sess.Code), zap.Error(err))
		return
	}

	sess.mu.Lock()
	stale := sess.terminal() || sess.evicted || len(sess.moves) != afterCount
	sess.mu.Unlock()
	if stale {
		return
	}
	l.hub.Emit(sess.Code, wire.EvProbabilitiesUpdated, wire.Probabilities{
		WhiteWinProb: pair.White,
		BlackWinProb: pair.Black,
	})
}

// drawFlagsLocked reads the forced-draw indicators. Caller holds sess.mu.
func drawFlagsLocked(sess *Session) prob.DrawFlags {
	flags := prob.DrawFlags{
		HalfMoveClock: sess.game.HalfMoveClock(),
	}
	if sess.game.IsInsufficientMaterial() {
		flags.InsufficientMaterial = true
	}
	if sess.game.IsThreefoldRepetition() {
		flags.Repetitions = 3
	}
	return flags
}

// evaluateFairness turns an engine evaluation of fen into white/black
// win probabilities. Engine scores come back from the side to move's
// perspective and are normalized to white's.
func (l *Lobby) evaluateFairness(fen string, turn rules.Color, flags prob.DrawFlags) (prob.Pair, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 35*time.Second)
	defer cancel()
	res, err := l.engine.Evaluate(ctx, fen, engine.Limits{Depth: l.cfg.SearchDepth})
	if err != nil {
		return prob.Pair{}, err
	}
	if !res.HasScore {
		return prob.Pair{}, fmt.Errorf("engine returned no score")
	}
	eval := prob.Evaluation{Kind: prob.Centipawn, Value: res.Score.Value}
	if res.Score.Mate {
		eval.Kind = prob.Mate
	}
	if turn == rules.Black {
		eval.Value = -eval.Value
	}
	return prob.WinProbability(eval, flags), nil
}
