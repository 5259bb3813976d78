package lobby

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/switchess/server/internal/engine"
	"github.com/switchess/server/internal/rules"
	"github.com/switchess/server/internal/sched"
	"github.com/switchess/server/internal/store"
	"github.com/switchess/server/internal/transport"
	"github.com/switchess/server/pkg/wire"
)

// EngineClient is the slice of the engine broker the lobby needs.
type EngineClient interface {
	BestMove(ctx context.Context, fen string, limits engine.Limits) (engine.Result, error)
	Evaluate(ctx context.Context, fen string, limits engine.Limits) (engine.Result, error)
}

// Config tunes lobby timing. Zero values take the defaults below.
type Config struct {
	IdleUnstarted  time.Duration
	IdleStarted    time.Duration
	AbandonGrace   time.Duration
	Countdown      time.Duration
	SwitchInterval time.Duration
	SearchDepth    int
}

func (c *Config) fill() {
	if c.IdleUnstarted <= 0 {
		c.IdleUnstarted = time.Minute
	}
	if c.IdleStarted <= 0 {
		c.IdleStarted = 20 * time.Minute
	}
	if c.AbandonGrace <= 0 {
		c.AbandonGrace = 50 * time.Second
	}
	if c.Countdown <= 0 {
		c.Countdown = 5 * time.Second
	}
	if c.SwitchInterval <= 0 {
		c.SwitchInterval = 15 * time.Second
	}
	if c.SearchDepth <= 0 {
		c.SearchDepth = 15
	}
}

// Lobby owns every live session and the connection bookkeeping around
// them.
type Lobby struct {
	log    *zap.Logger
	cfg    Config
	hub    transport.Rooms
	timers *sched.Timers
	engine EngineClient
	repo   store.Repository
	live   *store.LiveStore

	mu       sync.RWMutex
	sessions map[string]*Session
	conns    map[string]string // connection id -> session code

	switchMu      sync.Mutex
	lastSwitchDir rules.Color // color of the last flipped piece
}

func New(log *zap.Logger, cfg Config, hub transport.Rooms, timers *sched.Timers, eng EngineClient, repo store.Repository, live *store.LiveStore) *Lobby {
	cfg.fill()
	return &Lobby{
		log:      log.Named("lobby"),
		cfg:      cfg,
		hub:      hub,
		timers:   timers,
		engine:   eng,
		repo:     repo,
		live:     live,
		sessions: make(map[string]*Session),
		conns:    make(map[string]string),
	}
}

// CreateParams describes a new game request.
type CreateParams struct {
	HostID       int64
	HostName     string
	Side         string // "white", "black" or "random"
	VsAI         bool
	Unlisted     bool
	SwitchType   SwitchType
	SwitchPoints []int
	Interval     time.Duration
}

// Create builds, seats and registers a new session. For games against
// the engine with the engine as white, the opening move is played before
// the session becomes visible.
func (l *Lobby) Create(ctx context.Context, p CreateParams) (*wire.Game, error) {
	if p.HostID == 0 || strings.TrimSpace(p.HostName) == "" {
		return nil, fmt.Errorf("host identity required")
	}

	sess := &Session{
		game:      rules.New(),
		host:      &Player{ID: p.HostID, Name: p.HostName, Connected: true},
		unlisted:  p.Unlisted,
		vsAI:      p.VsAI,
		tokens:    wire.Tokens{White: defaultTokensPerSide, Black: defaultTokensPerSide},
		switched:  make(map[rules.Square]bool),
		createdAt: time.Now(),
	}
	l.configureSwitching(sess, p)

	hostWhite := l.pickSide(p.Side)
	host := &Player{ID: p.HostID, Name: p.HostName, Connected: true}
	if hostWhite {
		sess.white = host
	} else {
		sess.black = host
	}

	if p.VsAI {
		ai := &Player{ID: AIUserID, Name: AIUserName, Connected: true}
		if hostWhite {
			sess.black = ai
		} else {
			sess.white = ai
		}
		sess.startedAt = time.Now()

		if side, ok := sess.aiSide(); ok && side == rules.White {
			if err := l.aiOpeningMove(ctx, sess); err != nil {
				return nil, err
			}
		}
	}

	l.register(sess)

	sess.mu.Lock()
	view := sess.view()
	if sess.switchType == SwitchTime && !sess.startedAt.IsZero() {
		l.armSwitchInterval(sess)
	}
	sess.mu.Unlock()

	l.publishSnapshot(sess)
	l.log.Info("session created",
		zap.String("code", sess.Code),
		zap.Int64("host", p.HostID),
		zap.Bool("vs_ai", p.VsAI),
		zap.String("switch_type", string(sess.switchType)),
	)
	return view, nil
}

// configureSwitching resolves the switch mode. The "random" mode is
// move-based switching with generated points.
func (l *Lobby) configureSwitching(sess *Session, p CreateParams) {
	sess.switchType = p.SwitchType
	switch p.SwitchType {
	case SwitchMove:
		sess.switchPoints = append([]int(nil), p.SwitchPoints...)
		if len(sess.switchPoints) == 0 {
			sess.switchPoints = []int{defaultSwitchPoint}
		}
	case SwitchRandom:
		sess.switchPoints = randomSwitchPoints()
	case SwitchTime:
		sess.switchInterval = p.Interval
		if sess.switchInterval <= 0 {
			sess.switchInterval = l.cfg.SwitchInterval
		}
	case SwitchPlayer, SwitchNone:
	default:
		sess.switchType = SwitchNone
	}
}

// randomSwitchPoints draws a handful of ascending fullmove numbers from
// the early middlegame.
func randomSwitchPoints() []int {
	count := 1 + randInt(3)
	seen := make(map[int]bool)
	for len(seen) < count {
		seen[5+randInt(30)] = true
	}
	points := make([]int, 0, count)
	for n := range seen {
		points = append(points, n)
	}
	sort.Ints(points)
	return points
}

func (l *Lobby) pickSide(side string) bool {
	switch strings.ToLower(strings.TrimSpace(side)) {
	case "white", "w":
		return true
	case "black", "b":
		return false
	default:
		return randInt(2) == 0
	}
}

func randInt(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}

const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func randomCode() string {
	b := make([]byte, 6)
	for i := range b {
		b[i] = codeAlphabet[randInt(len(codeAlphabet))]
	}
	return string(b)
}

// register claims a free code and publishes the session under it in one
// critical section, so concurrent creates cannot collide on a code.
func (l *Lobby) register(sess *Session) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for {
		code := randomCode()
		if _, taken := l.sessions[code]; taken {
			continue
		}
		sess.Code = code
		l.sessions[code] = sess
		return
	}
}

// Get returns the session registered under code, or nil.
func (l *Lobby) Get(code string) *Session {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sessions[code]
}

// View returns the client snapshot for code, or nil when unknown.
func (l *Lobby) View(code string) *wire.Game {
	sess := l.Get(code)
	if sess == nil {
		return nil
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.view()
}

// ListPublic snapshots every listed active session, newest first.
func (l *Lobby) ListPublic() []*wire.Game {
	l.mu.RLock()
	sessions := make([]*Session, 0, len(l.sessions))
	for _, sess := range l.sessions {
		sessions = append(sessions, sess)
	}
	l.mu.RUnlock()

	var out []*wire.Game
	for _, sess := range sessions {
		sess.mu.Lock()
		if !sess.unlisted && !sess.terminal() {
			out = append(out, sess.view())
		}
		sess.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt > out[j].StartedAt })
	return out
}

// evict removes the session from the registry and tears down its timers
// and live snapshot. Idempotent.
func (l *Lobby) evict(sess *Session) {
	sess.mu.Lock()
	if sess.evicted {
		sess.mu.Unlock()
		return
	}
	sess.evicted = true
	snap := l.snapshotLocked(sess)
	sess.mu.Unlock()

	l.mu.Lock()
	delete(l.sessions, sess.Code)
	for connID, code := range l.conns {
		if code == sess.Code {
			delete(l.conns, connID)
		}
	}
	l.mu.Unlock()

	l.timers.CancelAll(sess.Code)
	if l.live != nil {
		if err := l.live.Delete(context.Background(), snap); err != nil {
			l.log.Warn("delete live snapshot", zap.String("code", sess.Code), zap.Error(err))
		}
	}
	l.log.Info("session evicted", zap.String("code", sess.Code))
}

// armIdleTimer schedules eviction for an empty room. Started games get
// the long leash.
func (l *Lobby) armIdleTimer(sess *Session, started bool) {
	d := l.cfg.IdleUnstarted
	if started {
		d = l.cfg.IdleStarted
	}
	l.timers.After(sess.Code, "idle", d, func() {
		if l.Get(sess.Code) == nil {
			return
		}
		sess.mu.Lock()
		terminal := sess.terminal()
		sess.mu.Unlock()
		if terminal {
			return
		}
		l.log.Info("idle eviction", zap.String("code", sess.Code))
		l.evict(sess)
	})
}

func (l *Lobby) cancelIdleTimer(sess *Session) {
	l.timers.Cancel(sess.Code, "idle")
}

// snapshotLocked builds the Redis mirror. Caller holds sess.mu.
func (l *Lobby) snapshotLocked(sess *Session) *store.Snapshot {
	snap := &store.Snapshot{
		Code:         sess.Code,
		FEN:          sess.game.FEN(),
		Started:      sess.started(),
		VsAI:         sess.vsAI,
		MoveCount:    len(sess.moves),
		SwitchesDone: sess.switchesDone,
		UpdatedAt:    time.Now(),
	}
	if sess.white != nil {
		snap.WhiteID, snap.WhiteName = sess.white.ID, sess.white.Name
	}
	if sess.black != nil {
		snap.BlackID, snap.BlackName = sess.black.ID, sess.black.Name
	}
	return snap
}

func (l *Lobby) publishSnapshot(sess *Session) {
	if l.live == nil {
		return
	}
	sess.mu.Lock()
	snap := l.snapshotLocked(sess)
	sess.mu.Unlock()
	if err := l.live.Put(context.Background(), snap); err != nil {
		l.log.Warn("publish live snapshot", zap.String("code", sess.Code), zap.Error(err))
	}
}

// record builds the durable row. Caller holds sess.mu.
func (l *Lobby) recordLocked(sess *Session) *store.Record {
	rec := &store.Record{
		Code:         sess.Code,
		EndReason:    sess.endReason,
		Winner:       sess.winner,
		FinalFEN:     sess.game.FEN(),
		MovesUCI:     append([]string(nil), sess.movesUCI...),
		MovesSAN:     append([]string(nil), sess.movesSAN...),
		SwitchesDone: sess.switchesDone,
		VsAI:         sess.vsAI,
		StartedAt:    sess.startedAt,
		EndedAt:      sess.endedAt,
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = sess.createdAt
	}
	if sess.white != nil {
		rec.WhiteID, rec.WhiteName = sess.white.ID, sess.white.Name
	}
	if sess.black != nil {
		rec.BlackID, rec.BlackName = sess.black.ID, sess.black.Name
	}
	return rec
}

// finishLocked marks the session terminal exactly once and returns what
// the caller must do after releasing the lock. Callers that lose the
// race get done=false.
func (l *Lobby) finishLocked(sess *Session, reason, winner string) (rec *store.Record, over wire.GameOver, done bool) {
	if sess.terminal() {
		return nil, wire.GameOver{}, false
	}
	sess.endReason = reason
	sess.winner = winner
	sess.endedAt = time.Now()

	over = wire.GameOver{Reason: reason, Winner: winner}
	switch winner {
	case string(rules.White):
		if sess.white != nil {
			over.WinnerName = sess.white.Name
		}
	case string(rules.Black):
		if sess.black != nil {
			over.WinnerName = sess.black.Name
		}
	}
	return l.recordLocked(sess), over, true
}

// conclude persists, announces and evicts a finished session.
func (l *Lobby) conclude(sess *Session, rec *store.Record, over wire.GameOver) {
	if l.repo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := l.repo.SaveFinished(ctx, rec); err != nil {
			l.log.Error("persist finished game", zap.String("code", sess.Code), zap.Error(err))
		}
		cancel()
	}
	l.hub.Emit(sess.Code, wire.EvGameOver, over)
	l.log.Info("game over",
		zap.String("code", sess.Code),
		zap.String("reason", over.Reason),
		zap.String("winner", over.Winner),
	)
	l.evict(sess)
}
