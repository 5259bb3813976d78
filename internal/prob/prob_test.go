package prob

import (
	"math"
	"testing"
)

func TestWinProbabilityMonotonicAndSymmetric(t *testing.T) {
	values := []int{-2000, -800, -400, -100, -1, 0, 1, 100, 400, 800, 2000}
	prev := -1.0
	for _, v := range values {
		p := WinProbability(Evaluation{Kind: Centipawn, Value: v}, DrawFlags{})
		if p.White < prev {
			t.Fatalf("probability not monotonic at cp=%d: %f < %f", v, p.White, prev)
		}
		prev = p.White

		if p.White < 0 || p.White > 1 {
			t.Fatalf("cp=%d: white prob out of range: %f", v, p.White)
		}
		if math.Abs(p.White+p.Black-1) > 1e-12 {
			t.Fatalf("cp=%d: probabilities do not sum to 1: %f + %f", v, p.White, p.Black)
		}

		mirror := WinProbability(Evaluation{Kind: Centipawn, Value: -v}, DrawFlags{})
		if math.Abs(p.White+mirror.White-1) > 1e-12 {
			t.Fatalf("cp=%d: not symmetric: p(v)=%f p(-v)=%f", v, p.White, mirror.White)
		}
	}

	if p := WinProbability(Evaluation{Kind: Centipawn, Value: 0}, DrawFlags{}); p.White != 0.5 {
		t.Fatalf("p(0) = %f, want 0.5", p.White)
	}
}

func TestWinProbabilityMate(t *testing.T) {
	if p := WinProbability(Evaluation{Kind: Mate, Value: 3}, DrawFlags{}); p.White != 1 || p.Black != 0 {
		t.Fatalf("mate +3 = %+v, want white certain", p)
	}
	if p := WinProbability(Evaluation{Kind: Mate, Value: -2}, DrawFlags{}); p.White != 0 || p.Black != 1 {
		t.Fatalf("mate -2 = %+v, want black certain", p)
	}
}

func TestWinProbabilityDrawOverrides(t *testing.T) {
	cases := []struct {
		name  string
		flags DrawFlags
	}{
		{"insufficient material", DrawFlags{InsufficientMaterial: true}},
		{"threefold repetition", DrawFlags{Repetitions: 3}},
		{"fifty move rule", DrawFlags{HalfMoveClock: 100}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// Even a forced mate score yields an even pair under a draw override.
			p := WinProbability(Evaluation{Kind: Mate, Value: 5}, tc.flags)
			if p.White != 0.5 || p.Black != 0.5 {
				t.Fatalf("draw override ignored: %+v", p)
			}
			p = WinProbability(Evaluation{Kind: Centipawn, Value: 900}, tc.flags)
			if p.White != 0.5 || p.Black != 0.5 {
				t.Fatalf("draw override ignored for cp: %+v", p)
			}
		})
	}

	if p := WinProbability(Evaluation{Kind: Centipawn, Value: 900}, DrawFlags{Repetitions: 2, HalfMoveClock: 99}); p.White == 0.5 {
		t.Fatalf("near-draw flags must not force an even pair")
	}
}
