package rules

// Attack detection over a plain board map. The switch-eligibility simulation
// removes pieces from positions the rules library never saw, so the check test
// runs on the raw board instead of the library's move generator.

var (
	knightJumps = [8][2]int{{1, 2}, {2, 1}, {2, -1}, {1, -2}, {-1, -2}, {-2, -1}, {-2, 1}, {-1, 2}}
	kingSteps   = [8][2]int{{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1}}
	rookRays    = [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	bishopRays  = [4][2]int{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
)

// Attacked reports whether any piece of side `by` attacks sq on the given
// board. En passant is ignored; it cannot target a king square.
func Attacked(board map[Square]Piece, sq Square, by Color) bool {
	file, rank := sq.File(), sq.Rank()

	pawnDir := -1 // a black pawn attacks downward
	if by == White {
		pawnDir = 1
	}
	for _, df := range [2]int{-1, 1} {
		if p, ok := pieceAtOffset(board, file+df, rank-pawnDir); ok && p.Color == by && p.Type == Pawn {
			return true
		}
	}
	for _, d := range knightJumps {
		if p, ok := pieceAtOffset(board, file+d[0], rank+d[1]); ok && p.Color == by && p.Type == Knight {
			return true
		}
	}
	for _, d := range kingSteps {
		if p, ok := pieceAtOffset(board, file+d[0], rank+d[1]); ok && p.Color == by && p.Type == King {
			return true
		}
	}
	if rayHit(board, file, rank, rookRays, by, Rook) || rayHit(board, file, rank, bishopRays, by, Bishop) {
		return true
	}
	return false
}

// InCheck reports whether side's king is attacked on the given board. A board
// with no king for that side (surgery intermediate) is never in check.
func InCheck(board map[Square]Piece, side Color) bool {
	king := KingSquare(board, side)
	if king == "" {
		return false
	}
	return Attacked(board, king, side.Other())
}

func rayHit(board map[Square]Piece, file, rank int, rays [4][2]int, by Color, slider PieceType) bool {
	for _, d := range rays {
		f, r := file+d[0], rank+d[1]
		for f >= 0 && f < 8 && r >= 0 && r < 8 {
			p, ok := board[SquareAt(f, r)]
			if ok {
				if p.Color == by && (p.Type == slider || p.Type == Queen) {
					return true
				}
				break
			}
			f += d[0]
			r += d[1]
		}
	}
	return false
}

func pieceAtOffset(board map[Square]Piece, file, rank int) (Piece, bool) {
	if file < 0 || file > 7 || rank < 0 || rank > 7 {
		return Piece{}, false
	}
	p, ok := board[SquareAt(file, rank)]
	return p, ok
}
