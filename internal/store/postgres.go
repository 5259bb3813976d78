package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// PostgresRepository persists finished games into the games table.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(databaseURL string) (*PostgresRepository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &PostgresRepository{db: db}, nil
}

func (r *PostgresRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SaveFinished upserts one finished game keyed by its lobby code.
func (r *PostgresRepository) SaveFinished(ctx context.Context, rec *Record) error {
	if r == nil || r.db == nil || rec == nil {
		return nil
	}
	movesUCIRaw, _ := json.Marshal(rec.MovesUCI)
	movesSANRaw, _ := json.Marshal(rec.MovesSAN)
	duration := rec.EndedAt.Sub(rec.StartedAt).Milliseconds()
	if duration < 0 {
		duration = 0
	}

	q := `INSERT INTO games (
	    code, white_id, white_name, black_id, black_name,
	    end_reason, winner, final_fen, moves_uci, moves_san,
	    switches_done, vs_ai, started_at, ended_at, duration_ms
	  ) VALUES (
	    $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15
	  ) ON CONFLICT (code) DO UPDATE SET
	    end_reason=EXCLUDED.end_reason,
	    winner=EXCLUDED.winner,
	    final_fen=EXCLUDED.final_fen,
	    moves_uci=EXCLUDED.moves_uci,
	    moves_san=EXCLUDED.moves_san,
	    switches_done=EXCLUDED.switches_done,
	    ended_at=EXCLUDED.ended_at,
	    duration_ms=EXCLUDED.duration_ms`

	_, err := r.db.ExecContext(ctx, q,
		rec.Code,
		rec.WhiteID, rec.WhiteName,
		rec.BlackID, rec.BlackName,
		rec.EndReason, rec.Winner, rec.FinalFEN,
		string(movesUCIRaw), string(movesSANRaw),
		rec.SwitchesDone, rec.VsAI,
		rec.StartedAt, rec.EndedAt, duration,
	)
	return err
}

func (r *PostgresRepository) GetByCode(ctx context.Context, code string) (*Record, error) {
	if r == nil || r.db == nil {
		return nil, nil
	}
	row := r.db.QueryRowContext(ctx, `SELECT
	    code, white_id, white_name, black_id, black_name,
	    end_reason, winner, final_fen, moves_uci, moves_san,
	    switches_done, vs_ai, started_at, ended_at
	  FROM games WHERE code = $1`, code)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*Record, error) {
	if r == nil || r.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `SELECT
	    code, white_id, white_name, black_id, black_name,
	    end_reason, winner, final_fen, moves_uci, moves_san,
	    switches_done, vs_ai, started_at, ended_at
	  FROM games WHERE white_id = $1 OR black_id = $1
	  ORDER BY ended_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*Record, error) {
	var rec Record
	var movesUCIRaw, movesSANRaw []byte
	err := s.Scan(
		&rec.Code, &rec.WhiteID, &rec.WhiteName, &rec.BlackID, &rec.BlackName,
		&rec.EndReason, &rec.Winner, &rec.FinalFEN, &movesUCIRaw, &movesSANRaw,
		&rec.SwitchesDone, &rec.VsAI, &rec.StartedAt, &rec.EndedAt,
	)
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal(movesUCIRaw, &rec.MovesUCI)
	_ = json.Unmarshal(movesSANRaw, &rec.MovesSAN)
	return &rec, nil
}
