package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultDepth          = 12
	defaultReadyTimeout   = 10 * time.Second
	defaultRequestTimeout = 30 * time.Second
	jobQueueSize          = 64
)

var (
	// ErrTimeout is returned when the engine fails to answer within the
	// request timeout. The broker resyncs the engine afterwards.
	ErrTimeout = errors.New("engine: request timed out")
	// ErrUnavailable is returned when the engine process dies while a
	// request is in flight, or when the broker is closed.
	ErrUnavailable = errors.New("engine: unavailable")
)

// Config controls engine startup and per-request behavior.
type Config struct {
	BinaryPath     string
	Threads        int
	HashMB         int
	SkillLevel     int
	ReadyTimeout   time.Duration
	RequestTimeout time.Duration
	Logger         *zap.Logger
}

func (c *Config) fill() {
	if c.ReadyTimeout <= 0 {
		c.ReadyTimeout = defaultReadyTimeout
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

// Result carries the answer for one analysis request.
type Result struct {
	BestMove string
	Score    Score
	HasScore bool
}

type jobKind int

const (
	jobBestMove jobKind = iota
	jobEvaluate
)

type job struct {
	kind   jobKind
	fen    string
	limits Limits
	ctx    context.Context
	resp   chan jobResult
}

type jobResult struct {
	res Result
	err error
}

// Broker serializes access to a single UCI engine process. All requests
// go through a FIFO queue consumed by one worker goroutine; callers never
// touch the process directly.
type Broker struct {
	cfg     Config
	log     *zap.Logger
	newProc func() process

	jobs chan job
	done chan struct{}

	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New builds a broker around the engine binary in cfg. Start must be
// called before any request is accepted.
func New(cfg Config) *Broker {
	cfg.fill()
	b := &Broker{
		cfg:  cfg,
		log:  cfg.Logger.Named("engine"),
		jobs: make(chan job, jobQueueSize),
		done: make(chan struct{}),
	}
	b.newProc = func() process { return newExecProcess(cfg.BinaryPath) }
	return b
}

// Start launches the engine process, performs the uci handshake and spawns
// the worker. It fails fast if the first handshake does not complete.
func (b *Broker) Start() error {
	proc, err := b.spawn()
	if err != nil {
		return err
	}
	b.wg.Add(1)
	go b.worker(proc)
	return nil
}

// Close shuts the broker down. Queued requests fail with ErrUnavailable.
func (b *Broker) Close() {
	b.closeOnce.Do(func() { close(b.done) })
	b.wg.Wait()
}

// BestMove asks the engine for the best move from fen under the given
// search limits.
func (b *Broker) BestMove(ctx context.Context, fen string, limits Limits) (Result, error) {
	return b.submit(ctx, job{kind: jobBestMove, fen: fen, limits: limits})
}

// Evaluate scores fen from the side to move's perspective.
func (b *Broker) Evaluate(ctx context.Context, fen string, limits Limits) (Result, error) {
	return b.submit(ctx, job{kind: jobEvaluate, fen: fen, limits: limits})
}

func (b *Broker) submit(ctx context.Context, j job) (Result, error) {
	j.ctx = ctx
	j.resp = make(chan jobResult, 1)
	select {
	case <-b.done:
		return Result{}, ErrUnavailable
	default:
	}
	select {
	case b.jobs <- j:
	case <-b.done:
		return Result{}, ErrUnavailable
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	select {
	case r := <-j.resp:
		return r.res, r.err
	case <-b.done:
		return Result{}, ErrUnavailable
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// spawn starts a fresh process and walks it through the uci handshake and
// option setup.
func (b *Broker) spawn() (process, error) {
	proc := b.newProc()
	if err := proc.Start(); err != nil {
		return nil, fmt.Errorf("spawn engine: %w", err)
	}
	if err := proc.Send("uci"); err != nil {
		proc.Kill()
		return nil, err
	}
	if err := b.awaitLine(proc, "uciok", b.cfg.ReadyTimeout); err != nil {
		proc.Kill()
		return nil, fmt.Errorf("uci handshake: %w", err)
	}
	for _, opt := range b.optionCommands() {
		if err := proc.Send(opt); err != nil {
			proc.Kill()
			return nil, err
		}
	}
	if err := b.sync(proc); err != nil {
		proc.Kill()
		return nil, err
	}
	b.log.Info("engine ready", zap.String("binary", b.cfg.BinaryPath))
	return proc, nil
}

func (b *Broker) optionCommands() []string {
	var cmds []string
	if b.cfg.Threads > 0 {
		cmds = append(cmds, fmt.Sprintf("setoption name Threads value %d", b.cfg.Threads))
	}
	if b.cfg.HashMB > 0 {
		cmds = append(cmds, fmt.Sprintf("setoption name Hash value %d", b.cfg.HashMB))
	}
	if b.cfg.SkillLevel > 0 {
		cmds = append(cmds, fmt.Sprintf("setoption name Skill Level value %d", b.cfg.SkillLevel))
	}
	return cmds
}

// sync performs an isready/readyok round trip.
func (b *Broker) sync(proc process) error {
	if err := proc.Send("isready"); err != nil {
		return err
	}
	return b.awaitLine(proc, "readyok", b.cfg.ReadyTimeout)
}

func (b *Broker) awaitLine(proc process, want string, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		select {
		case line, ok := <-proc.Lines():
			if !ok {
				return ErrUnavailable
			}
			if line == want {
				return nil
			}
		case <-deadline.C:
			return ErrTimeout
		case <-b.done:
			return ErrUnavailable
		}
	}
}

// worker owns the process for its whole lifetime. On engine death it
// fails the in-flight job and restarts; queued jobs are served by the
// replacement.
func (b *Broker) worker(proc process) {
	defer b.wg.Done()
	defer func() {
		if proc != nil {
			proc.Kill()
		}
	}()

	for {
		select {
		case <-b.done:
			b.drain()
			return
		case j := <-b.jobs:
			if j.ctx.Err() != nil {
				j.resp <- jobResult{err: j.ctx.Err()}
				continue
			}
			if proc == nil {
				var err error
				proc, err = b.spawn()
				if err != nil {
					b.log.Error("engine restart failed", zap.Error(err))
					j.resp <- jobResult{err: ErrUnavailable}
					continue
				}
			}
			res, err := b.run(proc, j)
			j.resp <- jobResult{res: res, err: err}
			switch {
			case errors.Is(err, ErrUnavailable):
				proc.Kill()
				proc = nil
			case errors.Is(err, ErrTimeout):
				// Best effort resync; give up on the process if it
				// stays wedged.
				_ = proc.Send("stop")
				if serr := b.sync(proc); serr != nil {
					b.log.Warn("engine wedged after timeout, restarting")
					proc.Kill()
					proc = nil
				}
			}
		}
	}
}

func (b *Broker) drain() {
	for {
		select {
		case j := <-b.jobs:
			j.resp <- jobResult{err: ErrUnavailable}
		default:
			return
		}
	}
}

// run executes one search on the engine and collects its answer.
func (b *Broker) run(proc process, j job) (Result, error) {
	if err := proc.Send(positionCommand(j.fen)); err != nil {
		return Result{}, ErrUnavailable
	}
	if err := proc.Send(goCommand(j.limits)); err != nil {
		return Result{}, ErrUnavailable
	}

	timeout := b.cfg.RequestTimeout
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	var res Result
	for {
		select {
		case line, ok := <-proc.Lines():
			if !ok {
				return Result{}, ErrUnavailable
			}
			if score, ok := parseScore(line); ok {
				res.Score = score
				res.HasScore = true
			}
			if mv, ok := parseBestMove(line); ok {
				res.BestMove = mv
				if j.kind == jobEvaluate && !res.HasScore {
					return Result{}, fmt.Errorf("engine: no score before bestmove (%s)", strings.TrimSpace(line))
				}
				return res, nil
			}
		case <-deadline.C:
			b.log.Warn("engine request timed out", zap.String("fen", j.fen))
			return Result{}, ErrTimeout
		case <-j.ctx.Done():
			_ = proc.Send("stop")
			if err := b.sync(proc); err != nil {
				return Result{}, errors.Join(j.ctx.Err(), ErrUnavailable)
			}
			return Result{}, j.ctx.Err()
		case <-b.done:
			return Result{}, ErrUnavailable
		}
	}
}
