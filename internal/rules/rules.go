// Package rules wraps the chess rules library behind the narrow surface the
// game core needs: move application, termination detection, and board access.
// The game core never imports the chess library directly.
package rules

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

var ErrIllegalMove = errors.New("illegal move")

// Color is a side to move.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

func (c Color) Other() Color {
	if c == White {
		return Black
	}
	return White
}

// PieceType mirrors the standard piece kinds.
type PieceType byte

const (
	Pawn   PieceType = 'p'
	Knight PieceType = 'n'
	Bishop PieceType = 'b'
	Rook   PieceType = 'r'
	Queen  PieceType = 'q'
	King   PieceType = 'k'
)

// Piece is an occupied square's contents.
type Piece struct {
	Type  PieceType
	Color Color
}

// Square is algebraic notation, "a1" through "h8".
type Square string

// File returns 0..7 for a..h.
func (s Square) File() int { return int(s[0] - 'a') }

// Rank returns 0..7 for 1..8.
func (s Square) Rank() int { return int(s[1] - '1') }

// Valid reports whether s names a board square.
func (s Square) Valid() bool {
	return len(s) == 2 && s[0] >= 'a' && s[0] <= 'h' && s[1] >= '1' && s[1] <= '8'
}

// SquareAt builds a Square from zero-based file and rank.
func SquareAt(file, rank int) Square {
	return Square([]byte{byte('a' + file), byte('1' + rank)})
}

// Chebyshev is the king-move distance between two squares.
func Chebyshev(a, b Square) int {
	df := a.File() - b.File()
	if df < 0 {
		df = -df
	}
	dr := a.Rank() - b.Rank()
	if dr < 0 {
		dr = -dr
	}
	if df > dr {
		return df
	}
	return dr
}

// Move is a requested move in coordinate form.
type Move struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

// UCI renders the move in UCI coordinate notation.
func (m Move) UCI() string {
	return strings.ToLower(strings.TrimSpace(m.From) + strings.TrimSpace(m.To) + strings.TrimSpace(m.Promotion))
}

// Applied describes a legal move after it has been played.
type Applied struct {
	From          Square
	To            Square
	UCI           string
	SAN           string
	Mover         Color
	Capture       bool
	CaptureSquare Square // differs from To only for en passant
	CastleRook    [2]Square
	Castled       bool
}

// Game holds one live rules-engine position.
type Game struct {
	inner *nchess.Game
}

// New starts a game from the standard initial position.
func New() *Game {
	return &Game{inner: nchess.NewGame()}
}

// FromFEN loads an arbitrary position.
func FromFEN(fen string) (*Game, error) {
	opt, err := nchess.FEN(strings.TrimSpace(fen))
	if err != nil {
		return nil, fmt.Errorf("parse fen: %w", err)
	}
	return &Game{inner: nchess.NewGame(opt)}, nil
}

func (g *Game) FEN() string { return g.inner.FEN() }

func (g *Game) Turn() Color {
	if g.inner.Position().Turn() == nchess.White {
		return White
	}
	return Black
}

// FullMoves is the fullmove number from the position, starting at 1.
func (g *Game) FullMoves() int {
	return fenField(g.FEN(), 5, 1)
}

// HalfMoveClock is the plies since the last capture or pawn move.
func (g *Game) HalfMoveClock() int {
	return fenField(g.FEN(), 4, 0)
}

func fenField(fen string, idx, fallback int) int {
	fields := strings.Fields(fen)
	if len(fields) <= idx {
		return fallback
	}
	n, err := strconv.Atoi(fields[idx])
	if err != nil {
		return fallback
	}
	return n
}

// Apply validates and plays a move. ErrIllegalMove is returned without
// mutating the position when the move cannot be played.
func (g *Game) Apply(m Move) (*Applied, error) {
	uci := m.UCI()
	if len(uci) < 4 {
		return nil, ErrIllegalMove
	}
	pos := g.inner.Position()
	mover := g.Turn()

	mv, err := nchess.UCINotation{}.Decode(pos, uci)
	if err != nil {
		return nil, ErrIllegalMove
	}
	san := nchess.AlgebraicNotation{}.Encode(pos, mv)
	if err := g.inner.Move(mv, nil); err != nil {
		return nil, ErrIllegalMove
	}

	applied := &Applied{
		From:    Square(mv.S1().String()),
		To:      Square(mv.S2().String()),
		UCI:     uci,
		SAN:     san,
		Mover:   mover,
		Capture: mv.HasTag(nchess.Capture) || mv.HasTag(nchess.EnPassant),
	}
	applied.CaptureSquare = applied.To
	if mv.HasTag(nchess.EnPassant) {
		// The captured pawn sits on the origin rank, not the target square.
		applied.CaptureSquare = SquareAt(applied.To.File(), applied.From.Rank())
	}
	switch {
	case mv.HasTag(nchess.KingSideCastle):
		applied.Castled = true
		rank := applied.From.Rank()
		applied.CastleRook = [2]Square{SquareAt(7, rank), SquareAt(5, rank)}
	case mv.HasTag(nchess.QueenSideCastle):
		applied.Castled = true
		rank := applied.From.Rank()
		applied.CastleRook = [2]Square{SquareAt(0, rank), SquareAt(3, rank)}
	}
	return applied, nil
}

// Board returns the occupied squares of the current position.
func (g *Game) Board() map[Square]Piece {
	out := make(map[Square]Piece, 32)
	board := g.inner.Position().Board()
	for file := nchess.FileA; file <= nchess.FileH; file++ {
		for rank := nchess.Rank1; rank <= nchess.Rank8; rank++ {
			sq := nchess.NewSquare(file, rank)
			p := board.Piece(sq)
			if p == nchess.NoPiece {
				continue
			}
			out[Square(sq.String())] = convertPiece(p)
		}
	}
	return out
}

func convertPiece(p nchess.Piece) Piece {
	color := White
	if p.Color() == nchess.Black {
		color = Black
	}
	var pt PieceType
	switch p.Type() {
	case nchess.Pawn:
		pt = Pawn
	case nchess.Knight:
		pt = Knight
	case nchess.Bishop:
		pt = Bishop
	case nchess.Rook:
		pt = Rook
	case nchess.Queen:
		pt = Queen
	case nchess.King:
		pt = King
	}
	return Piece{Type: pt, Color: color}
}

// IsGameOver includes claimable threefold repetition, matching the behavior
// the move processor terminates on.
func (g *Game) IsGameOver() bool {
	return g.inner.Outcome() != nchess.NoOutcome || g.IsThreefoldRepetition()
}

func (g *Game) IsCheckmate() bool { return g.inner.Method() == nchess.Checkmate }
func (g *Game) IsStalemate() bool { return g.inner.Method() == nchess.Stalemate }

func (g *Game) IsThreefoldRepetition() bool {
	switch g.inner.Method() {
	case nchess.ThreefoldRepetition, nchess.FivefoldRepetition:
		return true
	}
	for _, m := range g.inner.EligibleDraws() {
		if m == nchess.ThreefoldRepetition {
			return true
		}
	}
	return false
}

func (g *Game) IsInsufficientMaterial() bool {
	return g.inner.Method() == nchess.InsufficientMaterial || InsufficientMaterial(g.Board())
}

func (g *Game) IsDraw() bool {
	return g.inner.Outcome() == nchess.Draw
}

// Winner is meaningful only when checkmate has been delivered: the side that
// just moved wins.
func (g *Game) Winner() Color {
	return g.Turn().Other()
}

// InsufficientMaterial checks the enumerated dead-position signatures:
// king vs king, and king plus one minor piece vs bare king.
func InsufficientMaterial(board map[Square]Piece) bool {
	var minors, others int
	for _, p := range board {
		switch p.Type {
		case King:
		case Knight, Bishop:
			minors++
		default:
			others++
		}
	}
	return others == 0 && minors <= 1
}

// KingSquare locates a side's king; empty when absent (surgery positions).
func KingSquare(board map[Square]Piece, side Color) Square {
	for sq, p := range board {
		if p.Type == King && p.Color == side {
			return sq
		}
	}
	return ""
}
