package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const liveTTL = 24 * time.Hour

// Snapshot is the externally visible state of one live session. The
// lobby publishes it to Redis after every state change so HTTP readers
// and sibling tools never touch lobby internals.
type Snapshot struct {
	Code         string    `json:"code"`
	FEN          string    `json:"fen"`
	Started      bool      `json:"started"`
	VsAI         bool      `json:"vsAi"`
	WhiteID      int64     `json:"whiteId"`
	WhiteName    string    `json:"whiteName"`
	BlackID      int64     `json:"blackId"`
	BlackName    string    `json:"blackName"`
	MoveCount    int       `json:"moveCount"`
	SwitchesDone int       `json:"switchesDone"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// LiveStore mirrors live sessions into Redis.
type LiveStore struct {
	rdb *redis.Client
}

func NewLiveStore(redisURL string) (*LiveStore, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &LiveStore{rdb: rdb}, nil
}

// NewLiveStoreWithClient wraps an existing client, mainly for tests.
func NewLiveStoreWithClient(rdb *redis.Client) *LiveStore {
	return &LiveStore{rdb: rdb}
}

func (s *LiveStore) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func liveKey(code string) string { return "live:game:" + code }

func userIdxKey(userID int64) string { return fmt.Sprintf("live:user:%d", userID) }

// Put writes the snapshot and indexes it under both seated players.
func (s *LiveStore) Put(ctx context.Context, snap *Snapshot) error {
	if s == nil || s.rdb == nil || snap == nil {
		return nil
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, liveKey(snap.Code), raw, liveTTL)
	for _, id := range []int64{snap.WhiteID, snap.BlackID} {
		if id > 0 {
			pipe.SAdd(ctx, userIdxKey(id), snap.Code)
			pipe.Expire(ctx, userIdxKey(id), liveTTL)
		}
	}
	_, err = pipe.Exec(ctx)
	return err
}

// Get returns the snapshot for code, or nil when none is stored.
func (s *LiveStore) Get(ctx context.Context, code string) (*Snapshot, error) {
	if s == nil || s.rdb == nil {
		return nil, nil
	}
	raw, err := s.rdb.Get(ctx, liveKey(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// FindByUser returns the most recently updated live session the user is
// seated in, or nil.
func (s *LiveStore) FindByUser(ctx context.Context, userID int64) (*Snapshot, error) {
	if s == nil || s.rdb == nil || userID <= 0 {
		return nil, nil
	}
	codes, err := s.rdb.SMembers(ctx, userIdxKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	var best *Snapshot
	for _, code := range codes {
		snap, err := s.Get(ctx, code)
		if err != nil {
			return nil, err
		}
		if snap == nil {
			// Stale index entry; the session is gone.
			s.rdb.SRem(ctx, userIdxKey(userID), code)
			continue
		}
		if best == nil || snap.UpdatedAt.After(best.UpdatedAt) {
			best = snap
		}
	}
	return best, nil
}

// Delete drops the snapshot and its user index entries.
func (s *LiveStore) Delete(ctx context.Context, snap *Snapshot) error {
	if s == nil || s.rdb == nil || snap == nil {
		return nil
	}
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, liveKey(snap.Code))
	for _, id := range []int64{snap.WhiteID, snap.BlackID} {
		if id > 0 {
			pipe.SRem(ctx, userIdxKey(id), snap.Code)
		}
	}
	_, err := pipe.Exec(ctx)
	return err
}
