// Package store persists finished games and mirrors live session
// snapshots into Redis for external readers.
package store

import (
	"context"
	"time"
)

// Record is the durable row for one finished game.
type Record struct {
	Code         string    `json:"code"`
	WhiteID      int64     `json:"whiteId"`
	WhiteName    string    `json:"whiteName"`
	BlackID      int64     `json:"blackId"`
	BlackName    string    `json:"blackName"`
	EndReason    string    `json:"endReason"`
	Winner       string    `json:"winner"`
	FinalFEN     string    `json:"finalFen"`
	MovesUCI     []string  `json:"movesUci"`
	MovesSAN     []string  `json:"movesSan"`
	SwitchesDone int       `json:"switchesDone"`
	VsAI         bool      `json:"vsAi"`
	StartedAt    time.Time `json:"startedAt"`
	EndedAt      time.Time `json:"endedAt"`
}

// Repository stores finished games. Implementations must tolerate the
// same game being saved more than once.
type Repository interface {
	SaveFinished(ctx context.Context, rec *Record) error
	GetByCode(ctx context.Context, code string) (*Record, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]*Record, error)
	Close() error
}
