// Package sched provides named one-shot and repeating timers on top of a
// shared gocron scheduler. Timers are keyed by owner and purpose so a
// later schedule or cancel always targets the right instance.
package sched

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type entry struct {
	token uuid.UUID
	job   uuid.UUID
}

// Timers owns the scheduler and the key→job table.
type Timers struct {
	log   *zap.Logger
	sched gocron.Scheduler

	mu   sync.Mutex
	jobs map[string]entry
}

// New builds and starts the underlying scheduler.
func New(log *zap.Logger) (*Timers, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	s.Start()
	return &Timers{
		log:   log.Named("sched"),
		sched: s,
		jobs:  make(map[string]entry),
	}, nil
}

// Close stops the scheduler and drops all pending timers.
func (t *Timers) Close() error {
	t.mu.Lock()
	t.jobs = make(map[string]entry)
	t.mu.Unlock()
	return t.sched.Shutdown()
}

func key(owner, purpose string) string { return owner + "/" + purpose }

// After arms a one-shot timer. An existing timer under the same key is
// replaced. fn runs on a scheduler goroutine.
func (t *Timers) After(owner, purpose string, d time.Duration, fn func()) {
	k := key(owner, purpose)
	token := uuid.New()
	job, err := t.sched.NewJob(
		gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(time.Now().Add(d))),
		gocron.NewTask(func() {
			// A timer that was cancelled or replaced after firing was
			// already queued loses the claim and does nothing.
			if !t.claim(k, token) {
				return
			}
			fn()
		}),
	)
	if err != nil {
		t.log.Error("schedule one-shot", zap.String("key", k), zap.Error(err))
		return
	}
	t.track(k, entry{token: token, job: job.ID()})
}

// Every arms a repeating timer with the first run one interval from now.
// An existing timer under the same key is replaced.
func (t *Timers) Every(owner, purpose string, d time.Duration, fn func()) {
	k := key(owner, purpose)
	token := uuid.New()
	job, err := t.sched.NewJob(
		gocron.DurationJob(d),
		gocron.NewTask(func() {
			if !t.holds(k, token) {
				return
			}
			fn()
		}),
	)
	if err != nil {
		t.log.Error("schedule interval", zap.String("key", k), zap.Error(err))
		return
	}
	t.track(k, entry{token: token, job: job.ID()})
}

// Cancel disarms the timer under (owner, purpose). Cancelling a timer
// that is not armed is a no-op.
func (t *Timers) Cancel(owner, purpose string) {
	k := key(owner, purpose)
	t.mu.Lock()
	e, ok := t.jobs[k]
	if ok {
		delete(t.jobs, k)
	}
	t.mu.Unlock()
	if ok {
		_ = t.sched.RemoveJob(e.job)
	}
}

// CancelAll disarms every timer belonging to owner.
func (t *Timers) CancelAll(owner string) {
	prefix := owner + "/"
	t.mu.Lock()
	var ids []uuid.UUID
	for k, e := range t.jobs {
		if strings.HasPrefix(k, prefix) {
			ids = append(ids, e.job)
			delete(t.jobs, k)
		}
	}
	t.mu.Unlock()
	for _, id := range ids {
		_ = t.sched.RemoveJob(id)
	}
}

// track registers e under k, removing any job it replaces.
func (t *Timers) track(k string, e entry) {
	t.mu.Lock()
	prev, had := t.jobs[k]
	t.jobs[k] = e
	t.mu.Unlock()
	if had {
		_ = t.sched.RemoveJob(prev.job)
	}
}

// claim removes k from the table if token still owns it.
func (t *Timers) claim(k string, token uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.jobs[k]
	if !ok || e.token != token {
		return false
	}
	delete(t.jobs, k)
	return true
}

func (t *Timers) holds(k string, token uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.jobs[k]
	return ok && e.token == token
}
