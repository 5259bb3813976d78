package rules

import "testing"

func TestRemovePiece(t *testing.T) {
	got, err := RemovePiece(startFEN, "e2")
	if err != nil {
		t.Fatalf("RemovePiece: %v", err)
	}
	want := "rnbqkbnr/pppppppp/8/8/8/8/PPPP1PPP/RNBQKBNR w KQkq - 0 1"
	if got != want {
		t.Fatalf("RemovePiece = %q, want %q", got, want)
	}

	if _, err := RemovePiece(startFEN, "e4"); err == nil {
		t.Fatal("removing an empty square should fail")
	}
	if _, err := RemovePiece(startFEN, "z9"); err == nil {
		t.Fatal("invalid square should fail")
	}
}

func TestFlipPieceColor(t *testing.T) {
	got, err := FlipPieceColor(startFEN, "b8")
	if err != nil {
		t.Fatalf("FlipPieceColor: %v", err)
	}
	want := "rNbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"
	if got != want {
		t.Fatalf("FlipPieceColor = %q, want %q", got, want)
	}

	// Flipping back restores the original letter.
	back, err := FlipPieceColor(got, "b8")
	if err != nil {
		t.Fatalf("FlipPieceColor back: %v", err)
	}
	if back != startFEN {
		t.Fatalf("round trip = %q", back)
	}
}

func TestFlipPieceColorPrunesCastling(t *testing.T) {
	cases := []struct {
		sq   Square
		want string
	}{
		{"h1", "Qkq"},
		{"a1", "Kkq"},
		{"e1", "kq"},
		{"h8", "KQq"},
		{"a8", "KQk"},
		{"e8", "KQ"},
		{"b1", "KQkq"},
	}
	for _, tc := range cases {
		got, err := FlipPieceColor(startFEN, tc.sq)
		if err != nil {
			t.Fatalf("FlipPieceColor(%s): %v", tc.sq, err)
		}
		fields := fieldsOf(got)
		if fields[2] != tc.want {
			t.Errorf("castling after flipping %s = %q, want %q", tc.sq, fields[2], tc.want)
		}
	}
}

func TestPruneCastlingToEmpty(t *testing.T) {
	fen := "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w K - 0 1"
	got, err := FlipPieceColor(fen, "h1")
	if err != nil {
		t.Fatalf("FlipPieceColor: %v", err)
	}
	if fieldsOf(got)[2] != "-" {
		t.Fatalf("castling = %q, want -", fieldsOf(got)[2])
	}
}

func TestPieceAt(t *testing.T) {
	p, ok := PieceAt(startFEN, "d8")
	if !ok || p != (Piece{Type: Queen, Color: Black}) {
		t.Fatalf("PieceAt(d8) = %+v, %v", p, ok)
	}
	p, ok = PieceAt(startFEN, "a1")
	if !ok || p != (Piece{Type: Rook, Color: White}) {
		t.Fatalf("PieceAt(a1) = %+v, %v", p, ok)
	}
	if _, ok := PieceAt(startFEN, "d4"); ok {
		t.Fatal("PieceAt on empty square reported a piece")
	}
}

func TestSurgeryResultLoadsIntoGame(t *testing.T) {
	flipped, err := FlipPieceColor(startFEN, "a8")
	if err != nil {
		t.Fatalf("FlipPieceColor: %v", err)
	}
	g, err := FromFEN(flipped)
	if err != nil {
		t.Fatalf("FromFEN(flipped): %v", err)
	}
	if g.Board()["a8"] != (Piece{Type: Rook, Color: White}) {
		t.Fatalf("a8 after flip = %+v", g.Board()["a8"])
	}
}

func fieldsOf(fen string) []string {
	var out []string
	cur := ""
	for _, c := range fen {
		if c == ' ' {
			out = append(out, cur)
			cur = ""
			continue
		}
		cur += string(c)
	}
	return append(out, cur)
}
