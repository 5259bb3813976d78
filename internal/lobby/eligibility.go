package lobby

import (
	"github.com/switchess/server/internal/rules"
)

// Candidate is a piece the switch orchestrator may try to flip.
type Candidate struct {
	Square rules.Square
	Piece  rules.Piece
}

// Eligible reports whether the piece on sq may have its color switched.
// It is a pure predicate: kings never switch, a piece switches at most
// once, a piece guarding its own king against check cannot leave, and
// pieces within king distance 2 of their own king are excluded.
func Eligible(board map[rules.Square]rules.Piece, sq rules.Square, switched map[rules.Square]bool) bool {
	piece, ok := board[sq]
	if !ok {
		return false
	}
	if piece.Type == rules.King {
		return false
	}
	if switched[sq] {
		return false
	}

	king := rules.KingSquare(board, piece.Color)
	if king == "" {
		return false
	}
	if rules.Chebyshev(sq, king) <= 2 {
		return false
	}

	// Removing the piece must not expose its own king.
	without := make(map[rules.Square]rules.Piece, len(board))
	for s, p := range board {
		if s == sq {
			continue
		}
		without[s] = p
	}
	return !rules.InCheck(without, piece.Color)
}

// Candidates scans the board in file-then-rank order and returns every
// eligible piece. The stable order keeps switch selection deterministic
// for a given position.
func Candidates(board map[rules.Square]rules.Piece, switched map[rules.Square]bool) []Candidate {
	var out []Candidate
	for rank := 7; rank >= 0; rank-- {
		for file := 0; file < 8; file++ {
			sq := rules.SquareAt(file, rank)
			if Eligible(board, sq, switched) {
				out = append(out, Candidate{Square: sq, Piece: board[sq]})
			}
		}
	}
	return out
}
