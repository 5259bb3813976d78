package rules

import "testing"

func board(pieces map[Square]Piece) map[Square]Piece { return pieces }

func TestAttackedByPawn(t *testing.T) {
	b := board(map[Square]Piece{
		"e4": {Type: Pawn, Color: White},
		"d2": {Type: Pawn, Color: Black},
	})
	if !Attacked(b, "d5", White) || !Attacked(b, "f5", White) {
		t.Fatal("white pawn attack squares missed")
	}
	if Attacked(b, "e5", White) {
		t.Fatal("pawn does not attack straight ahead")
	}
	if !Attacked(b, "c1", Black) || !Attacked(b, "e1", Black) {
		t.Fatal("black pawn attack squares missed")
	}
}

func TestAttackedByKnightAndKing(t *testing.T) {
	b := board(map[Square]Piece{
		"g1": {Type: Knight, Color: White},
		"e5": {Type: King, Color: Black},
	})
	if !Attacked(b, "f3", White) || !Attacked(b, "e2", White) {
		t.Fatal("knight attacks missed")
	}
	if Attacked(b, "g3", White) {
		t.Fatal("knight cannot attack adjacent file square")
	}
	if !Attacked(b, "d4", Black) || !Attacked(b, "f6", Black) {
		t.Fatal("king attacks missed")
	}
	if Attacked(b, "e7", Black) {
		t.Fatal("king range exceeded")
	}
}

func TestAttackedBySlidersWithBlockers(t *testing.T) {
	b := board(map[Square]Piece{
		"a1": {Type: Rook, Color: White},
		"a4": {Type: Pawn, Color: Black},
		"c3": {Type: Bishop, Color: Black},
		"f1": {Type: Queen, Color: White},
	})
	if !Attacked(b, "a3", White) || !Attacked(b, "a4", White) {
		t.Fatal("rook ray missed")
	}
	if Attacked(b, "a5", White) {
		t.Fatal("rook ray passed through a blocker")
	}
	if !Attacked(b, "e5", Black) || !Attacked(b, "a1", Black) {
		t.Fatal("bishop diagonal missed")
	}
	if !Attacked(b, "f7", White) || !Attacked(b, "h3", White) {
		t.Fatal("queen rays missed")
	}
}

func TestInCheck(t *testing.T) {
	b := board(map[Square]Piece{
		"e1": {Type: King, Color: White},
		"e8": {Type: Rook, Color: Black},
	})
	if !InCheck(b, White) {
		t.Fatal("rook check missed")
	}

	// Interpose a piece and the check disappears.
	b["e4"] = Piece{Type: Knight, Color: White}
	if InCheck(b, White) {
		t.Fatal("blocked check still reported")
	}
}

func TestInCheckWithoutKing(t *testing.T) {
	b := board(map[Square]Piece{
		"e8": {Type: Rook, Color: Black},
	})
	if InCheck(b, White) {
		t.Fatal("kingless side cannot be in check")
	}
}

func TestRemovalExposesCheck(t *testing.T) {
	// The knight on e4 shields the white king from the e8 rook.
	b := board(map[Square]Piece{
		"e1": {Type: King, Color: White},
		"e4": {Type: Knight, Color: White},
		"e8": {Type: Rook, Color: Black},
	})
	if InCheck(b, White) {
		t.Fatal("shielded king reported in check")
	}
	delete(b, "e4")
	if !InCheck(b, White) {
		t.Fatal("removal did not expose the check")
	}
}
