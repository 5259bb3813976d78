// Package prob turns engine evaluations into a win-probability pair for the
// live probability bar. It is pure: the same evaluation and draw flags always
// produce the same pair.
package prob

import "math"

// logisticScale controls how fast centipawn advantage saturates; 400cp is one
// pawn-of-four, putting +400 at roughly 73% for the side ahead.
const logisticScale = 400.0

// Kind tags the two evaluation shapes a UCI engine reports.
type Kind string

const (
	Centipawn Kind = "cp"
	Mate      Kind = "mate"
)

// Evaluation is a single engine score from White's point of view.
type Evaluation struct {
	Kind  Kind
	Value int
}

// DrawFlags are the detectors that override any raw evaluation.
type DrawFlags struct {
	InsufficientMaterial bool
	Repetitions          int
	HalfMoveClock        int
}

func (f DrawFlags) forced() bool {
	return f.InsufficientMaterial || f.Repetitions >= 3 || f.HalfMoveClock >= 100
}

// Pair is the derived probabilities; White + Black == 1 always holds.
type Pair struct {
	White float64 `json:"whiteWinProb"`
	Black float64 `json:"blackWinProb"`
}

// WinProbability maps an evaluation to a probability pair. A detected drawn
// position forces exactly (0.5, 0.5) regardless of the raw score.
func WinProbability(eval Evaluation, flags DrawFlags) Pair {
	if flags.forced() {
		return Pair{White: 0.5, Black: 0.5}
	}

	var white float64
	switch eval.Kind {
	case Mate:
		// The sign of the mate count names the side delivering it.
		if eval.Value > 0 {
			white = 1.0
		} else {
			white = 0.0
		}
	default:
		white = logistic(float64(eval.Value))
	}

	if white < 0 {
		white = 0
	}
	if white > 1 {
		white = 1
	}
	return Pair{White: white, Black: 1 - white}
}

func logistic(cp float64) float64 {
	return 1.0 / (1.0 + math.Exp(-cp/logisticScale))
}
