package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeProcess answers scripted responses to commands. A nil response list
// for a command means silence.
type fakeProcess struct {
	mu      sync.Mutex
	replies map[string][]string
	sent    []string
	lines   chan string
	dead    bool
}

func newFakeProcess() *fakeProcess {
	return &fakeProcess{
		replies: map[string][]string{
			"uci":     {"id name Fakefish", "uciok"},
			"isready": {"readyok"},
		},
		lines: make(chan string, 128),
	}
}

func (f *fakeProcess) reply(cmd string, lines ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[cmd] = lines
}

func (f *fakeProcess) Start() error { return nil }

func (f *fakeProcess) Send(cmd string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dead {
		return errors.New("process exited")
	}
	f.sent = append(f.sent, cmd)
	for _, line := range f.replies[cmd] {
		f.lines <- line
	}
	return nil
}

func (f *fakeProcess) Lines() <-chan string { return f.lines }

func (f *fakeProcess) Kill() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.dead {
		f.dead = true
		close(f.lines)
	}
}

func (f *fakeProcess) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func newTestBroker(t *testing.T, procs ...*fakeProcess) *Broker {
	t.Helper()
	b := New(Config{BinaryPath: "fakefish", RequestTimeout: 200 * time.Millisecond})
	i := 0
	b.newProc = func() process {
		if i >= len(procs) {
			t.Fatal("broker spawned more processes than scripted")
		}
		p := procs[i]
		i++
		return p
	}
	if err := b.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(b.Close)
	return b
}

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

func TestBrokerBestMove(t *testing.T) {
	proc := newFakeProcess()
	proc.reply("go depth 12",
		"info depth 12 score cp 31 pv e2e4",
		"bestmove e2e4 ponder e7e5",
	)
	b := newTestBroker(t, proc)

	res, err := b.BestMove(context.Background(), startFEN, Limits{})
	if err != nil {
		t.Fatalf("BestMove: %v", err)
	}
	if res.BestMove != "e2e4" {
		t.Fatalf("best move = %q", res.BestMove)
	}
	if !res.HasScore || res.Score.Value != 31 || res.Score.Mate {
		t.Fatalf("score = %+v", res.Score)
	}
}

func TestBrokerEvaluateMate(t *testing.T) {
	proc := newFakeProcess()
	proc.reply("go depth 12",
		"info depth 12 score mate 2 pv d8h4",
		"bestmove d8h4",
	)
	b := newTestBroker(t, proc)

	res, err := b.Evaluate(context.Background(), startFEN, Limits{})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !res.Score.Mate || res.Score.Value != 2 {
		t.Fatalf("score = %+v", res.Score)
	}
}

func TestBrokerSerializesRequests(t *testing.T) {
	proc := newFakeProcess()
	proc.reply("go depth 12",
		"info depth 12 score cp 10",
		"bestmove e2e4",
	)
	b := newTestBroker(t, proc)

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := b.BestMove(context.Background(), startFEN, Limits{}); err != nil {
				t.Errorf("BestMove: %v", err)
			}
		}()
	}
	wg.Wait()

	// Each request issues position then go; with one worker they never
	// interleave.
	cmds := proc.commands()
	for i := 0; i < len(cmds)-1; i++ {
		if strings.HasPrefix(cmds[i], "position ") && !strings.HasPrefix(cmds[i+1], "go ") {
			t.Fatalf("interleaved commands: %v", cmds)
		}
	}
}

func TestBrokerTimeoutThenRecover(t *testing.T) {
	proc := newFakeProcess()
	// No reply scripted for "go depth 12": the first request times out.
	b := newTestBroker(t, proc)

	_, err := b.BestMove(context.Background(), startFEN, Limits{})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("want ErrTimeout, got %v", err)
	}

	// After the stop/isready resync, the engine answers again.
	proc.reply("go depth 12", "info depth 12 score cp 5", "bestmove g1f3")
	res, err := b.BestMove(context.Background(), startFEN, Limits{})
	if err != nil {
		t.Fatalf("BestMove after timeout: %v", err)
	}
	if res.BestMove != "g1f3" {
		t.Fatalf("best move = %q", res.BestMove)
	}
}

func TestBrokerRestartsAfterCrash(t *testing.T) {
	first := newFakeProcess()
	second := newFakeProcess()
	second.reply("go depth 12", "info depth 12 score cp 7", "bestmove d2d4")
	b := newTestBroker(t, first, second)

	first.Kill()
	// The in-flight (or next) request against the dead process fails.
	_, err := b.BestMove(context.Background(), startFEN, Limits{})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("want ErrUnavailable, got %v", err)
	}

	// The replacement process serves the following request.
	res, err := b.BestMove(context.Background(), startFEN, Limits{})
	if err != nil {
		t.Fatalf("BestMove after restart: %v", err)
	}
	if res.BestMove != "d2d4" {
		t.Fatalf("best move = %q", res.BestMove)
	}
}

func TestBrokerCloseFailsPending(t *testing.T) {
	proc := newFakeProcess()
	b := New(Config{BinaryPath: "fakefish"})
	b.newProc = func() process { return proc }
	if err := b.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	b.Close()

	_, err := b.BestMove(context.Background(), startFEN, Limits{})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("want ErrUnavailable after Close, got %v", err)
	}
}

func TestBrokerAppliesOptions(t *testing.T) {
	proc := newFakeProcess()
	b := New(Config{BinaryPath: "fakefish", Threads: 2, HashMB: 128, SkillLevel: 5})
	b.newProc = func() process { return proc }
	if err := b.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(b.Close)

	cmds := strings.Join(proc.commands(), "\n")
	for _, want := range []string{
		"setoption name Threads value 2",
		"setoption name Hash value 128",
		"setoption name Skill Level value 5",
	} {
		if !strings.Contains(cmds, want) {
			t.Errorf("missing option command %q in %q", want, cmds)
		}
	}
}
