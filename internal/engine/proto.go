package engine

import (
	"strconv"
	"strings"
)

// Score is a single engine evaluation, from White's point of view.
type Score struct {
	Mate  bool `json:"mate"`
	Value int  `json:"value"`
}

// Limits bounds one search; at least one field must be set.
type Limits struct {
	Depth          int
	MoveTimeMillis int
}

func positionCommand(fen string) string {
	fen = strings.TrimSpace(fen)
	if fen == "" || fen == "startpos" {
		return "position startpos"
	}
	return "position fen " + fen
}

func goCommand(l Limits) string {
	args := []string{"go"}
	if l.Depth > 0 {
		args = append(args, "depth", strconv.Itoa(l.Depth))
	}
	if l.MoveTimeMillis > 0 {
		args = append(args, "movetime", strconv.Itoa(l.MoveTimeMillis))
	}
	if len(args) == 1 {
		args = append(args, "depth", strconv.Itoa(defaultDepth))
	}
	return strings.Join(args, " ")
}

// parseScore extracts "score cp <v>" or "score mate <v>" from an info line.
func parseScore(line string) (Score, bool) {
	if !strings.HasPrefix(line, "info ") {
		return Score{}, false
	}
	parts := strings.Fields(line)
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] != "score" {
			continue
		}
		v, err := strconv.Atoi(parts[i+2])
		if err != nil {
			return Score{}, false
		}
		switch parts[i+1] {
		case "cp":
			return Score{Value: v}, true
		case "mate":
			return Score{Mate: true, Value: v}, true
		}
		return Score{}, false
	}
	return Score{}, false
}

// parseBestMove extracts the move from a "bestmove e2e4 ponder ..." line.
func parseBestMove(line string) (string, bool) {
	if !strings.HasPrefix(line, "bestmove") {
		return "", false
	}
	parts := strings.Fields(line)
	if len(parts) < 2 || parts[1] == "(none)" {
		return "", false
	}
	return parts[1], true
}
