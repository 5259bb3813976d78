package rules

import (
	"fmt"
	"strings"
)

// Position surgery works on FEN text rather than through the rules library so
// that mid-game mutations (the color switch, eligibility simulations) cannot
// disturb the library's internal move history.

// RemovePiece clears a square in the FEN's board field.
func RemovePiece(fen string, sq Square) (string, error) {
	return editBoard(fen, sq, func(byte) (byte, error) {
		return 0, nil
	})
}

// FlipPieceColor inverts the case of the piece letter on sq, changing its
// side without moving it. Castling rights tied to the square are dropped.
func FlipPieceColor(fen string, sq Square) (string, error) {
	return editBoard(fen, sq, func(c byte) (byte, error) {
		if c >= 'a' && c <= 'z' {
			return c - 32, nil
		}
		if c >= 'A' && c <= 'Z' {
			return c + 32, nil
		}
		return 0, fmt.Errorf("square %s is empty", sq)
	})
}

// PieceAt reads a square straight out of a FEN string.
func PieceAt(fen string, sq Square) (Piece, bool) {
	grid, _, err := expandFEN(fen)
	if err != nil {
		return Piece{}, false
	}
	c := grid[gridIndex(sq)]
	if c == 0 {
		return Piece{}, false
	}
	color := White
	lower := c
	if c >= 'A' && c <= 'Z' {
		lower = c + 32
	} else {
		color = Black
	}
	return Piece{Type: PieceType(lower), Color: color}, true
}

func editBoard(fen string, sq Square, edit func(byte) (byte, error)) (string, error) {
	if !sq.Valid() {
		return "", fmt.Errorf("invalid square %q", sq)
	}
	grid, rest, err := expandFEN(fen)
	if err != nil {
		return "", err
	}
	idx := gridIndex(sq)
	if grid[idx] == 0 {
		return "", fmt.Errorf("square %s is empty", sq)
	}
	next, err := edit(grid[idx])
	if err != nil {
		return "", err
	}
	grid[idx] = next

	fields := strings.Fields(rest)
	if len(fields) >= 2 {
		fields[1] = pruneCastling(fields[1], sq)
	}
	return compressGrid(grid) + " " + strings.Join(fields, " "), nil
}

// expandFEN turns the board field into a 64-byte grid (index 0 = a8, 63 = h1,
// 0 byte = empty) and returns the remaining FEN fields.
func expandFEN(fen string) ([]byte, string, error) {
	fen = strings.TrimSpace(fen)
	sp := strings.IndexByte(fen, ' ')
	if sp < 0 {
		return nil, "", fmt.Errorf("malformed fen %q", fen)
	}
	boardField, rest := fen[:sp], fen[sp+1:]

	grid := make([]byte, 64)
	i := 0
	for _, c := range []byte(boardField) {
		switch {
		case c == '/':
		case c >= '1' && c <= '8':
			i += int(c - '0')
		default:
			if i >= 64 {
				return nil, "", fmt.Errorf("malformed board field %q", boardField)
			}
			grid[i] = c
			i++
		}
	}
	if i != 64 {
		return nil, "", fmt.Errorf("malformed board field %q", boardField)
	}
	return grid, rest, nil
}

func compressGrid(grid []byte) string {
	var b strings.Builder
	for rank := 0; rank < 8; rank++ {
		if rank > 0 {
			b.WriteByte('/')
		}
		empty := 0
		for file := 0; file < 8; file++ {
			c := grid[rank*8+file]
			if c == 0 {
				empty++
				continue
			}
			if empty > 0 {
				b.WriteByte(byte('0' + empty))
				empty = 0
			}
			b.WriteByte(c)
		}
		if empty > 0 {
			b.WriteByte(byte('0' + empty))
		}
	}
	return b.String()
}

func gridIndex(sq Square) int {
	return (7-sq.Rank())*8 + sq.File()
}

// pruneCastling drops rights that can no longer be exercised once the piece
// on sq changed hands or vanished.
func pruneCastling(rights string, sq Square) string {
	if rights == "-" {
		return rights
	}
	drop := map[Square]string{
		"h1": "K", "a1": "Q", "e1": "KQ",
		"h8": "k", "a8": "q", "e8": "kq",
	}[sq]
	if drop == "" {
		return rights
	}
	out := rights
	for _, c := range drop {
		out = strings.ReplaceAll(out, string(c), "")
	}
	if out == "" {
		return "-"
	}
	return out
}
