package lobby

import (
	"testing"

	"github.com/switchess/server/internal/rules"
)

func TestEligibleRejectsKings(t *testing.T) {
	board := map[rules.Square]rules.Piece{
		"e1": {Type: rules.King, Color: rules.White},
		"e8": {Type: rules.King, Color: rules.Black},
		"a4": {Type: rules.Rook, Color: rules.White},
	}
	if Eligible(board, "e1", nil) || Eligible(board, "e8", nil) {
		t.Fatal("kings must never be eligible")
	}
	if !Eligible(board, "a4", nil) {
		t.Fatal("distant rook should be eligible")
	}
}

func TestEligibleRejectsEmptySquare(t *testing.T) {
	board := map[rules.Square]rules.Piece{
		"e1": {Type: rules.King, Color: rules.White},
	}
	if Eligible(board, "d4", nil) {
		t.Fatal("empty square cannot be eligible")
	}
}

func TestEligibleOneShotMarker(t *testing.T) {
	board := map[rules.Square]rules.Piece{
		"e1": {Type: rules.King, Color: rules.White},
		"a5": {Type: rules.Knight, Color: rules.White},
	}
	if !Eligible(board, "a5", nil) {
		t.Fatal("unswitched knight should be eligible")
	}
	if Eligible(board, "a5", map[rules.Square]bool{"a5": true}) {
		t.Fatal("a piece switches at most once")
	}
}

func TestEligibleKingProximity(t *testing.T) {
	board := map[rules.Square]rules.Piece{
		"e1": {Type: rules.King, Color: rules.White},
		"f2": {Type: rules.Pawn, Color: rules.White},  // distance 1
		"g3": {Type: rules.Pawn, Color: rules.White},  // distance 2
		"h4": {Type: rules.Pawn, Color: rules.White},  // distance 3
		"e8": {Type: rules.Rook, Color: rules.White},  // distance 7
	}
	if Eligible(board, "f2", nil) || Eligible(board, "g3", nil) {
		t.Fatal("pieces within king distance 2 must be excluded")
	}
	if !Eligible(board, "h4", nil) || !Eligible(board, "e8", nil) {
		t.Fatal("pieces beyond distance 2 should be eligible")
	}
}

func TestEligibleRemovalSelfCheck(t *testing.T) {
	// The e4 knight shields the white king from the black rook on e8.
	board := map[rules.Square]rules.Piece{
		"e1": {Type: rules.King, Color: rules.White},
		"e4": {Type: rules.Knight, Color: rules.White},
		"e8": {Type: rules.Rook, Color: rules.Black},
		"a8": {Type: rules.King, Color: rules.Black},
	}
	if Eligible(board, "e4", nil) {
		t.Fatal("removing the shield would self-check")
	}
	// The rook itself is far from its own king and pins nothing.
	if !Eligible(board, "e8", nil) {
		t.Fatal("black rook should be eligible")
	}
}

func TestEligibleRequiresOwnKing(t *testing.T) {
	board := map[rules.Square]rules.Piece{
		"a4": {Type: rules.Rook, Color: rules.White},
		"e8": {Type: rules.King, Color: rules.Black},
	}
	if Eligible(board, "a4", nil) {
		t.Fatal("a side without a king has no switchable pieces")
	}
}

func TestCandidatesOrderAndContents(t *testing.T) {
	board := map[rules.Square]rules.Piece{
		"e1": {Type: rules.King, Color: rules.White},
		"e8": {Type: rules.King, Color: rules.Black},
		"a8": {Type: rules.Rook, Color: rules.Black},
		"a1": {Type: rules.Rook, Color: rules.White},
		"b8": {Type: rules.Knight, Color: rules.Black},
	}
	cands := Candidates(board, nil)
	if len(cands) != 3 {
		t.Fatalf("got %d candidates: %+v", len(cands), cands)
	}
	// Scan runs rank 8 down to rank 1, files a through h.
	if cands[0].Square != "a8" || cands[1].Square != "b8" || cands[2].Square != "a1" {
		t.Fatalf("unexpected order: %+v", cands)
	}
}
