package window

import (
	"errors"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func ramp(rows, cols int) *mat.Dense {
	m := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			m.Set(i, j, float64(i*10+j))
		}
	}
	return m
}

func TestSlideWindowsAndLabels(t *testing.T) {
	for _, tc := range []struct{ rows, seqLen int }{{10, 1}, {10, 3}, {10, 10}, {57, 20}} {
		x := ramp(tc.rows, 3)
		y := ramp(tc.rows, 2)
		set, err := Slide(x, y, tc.seqLen)
		if err != nil {
			t.Fatalf("Slide(%d,%d): %v", tc.rows, tc.seqLen, err)
		}
		want := tc.rows - tc.seqLen + 1
		if set.Len() != want {
			t.Fatalf("Slide(%d,%d): %d windows want %d", tc.rows, tc.seqLen, set.Len(), want)
		}
		for k := 0; k < set.Len(); k++ {
			if got, want := set.Y.At(k, 1), y.At(k+tc.seqLen-1, 1); got != want {
				t.Fatalf("window %d label %g want %g", k, got, want)
			}
			for step := 0; step < tc.seqLen; step++ {
				if got, want := set.X.At(k, step, 2), x.At(k+step, 2); got != want {
					t.Fatalf("window %d step %d = %g want %g", k, step, got, want)
				}
			}
		}
	}
}

func TestSlideFullLengthGivesOneWindow(t *testing.T) {
	set, err := Slide(ramp(5, 2), ramp(5, 1), 5)
	if err != nil {
		t.Fatalf("Slide: %v", err)
	}
	if set.Len() != 1 {
		t.Fatalf("expected 1 window, got %d", set.Len())
	}
	if set.Y.At(0, 0) != 40 {
		t.Fatalf("label %g want 40", set.Y.At(0, 0))
	}
}

func TestSlideInvalidLength(t *testing.T) {
	for _, seqLen := range []int{0, 6} {
		if _, err := Slide(ramp(5, 2), ramp(5, 1), seqLen); !errors.Is(err, ErrInvalidWindowLength) {
			t.Fatalf("seqLen %d: expected ErrInvalidWindowLength, got %v", seqLen, err)
		}
	}
}

func TestConcatAndSubset(t *testing.T) {
	a, _ := Slide(ramp(4, 2), ramp(4, 1), 2)
	b, _ := Slide(ramp(6, 2), ramp(6, 1), 2)
	all, err := Concat(a, Set{}, b)
	if err != nil {
		t.Fatalf("Concat: %v", err)
	}
	if all.Len() != 3+5 {
		t.Fatalf("expected 8 windows, got %d", all.Len())
	}
	if got := all.Y.At(3, 0); got != 10 {
		t.Fatalf("first window of b labelled %g want 10", got)
	}

	sub := all.Subset([]int{7, 0})
	if sub.Len() != 2 || sub.Y.At(0, 0) != 50 || sub.X.At(1, 1, 0) != 10 {
		t.Fatalf("unexpected subset labels=%v", mat.Formatted(sub.Y))
	}

	c, _ := Slide(ramp(4, 3), ramp(4, 1), 2)
	if _, err := Concat(a, c); err == nil {
		t.Fatal("expected shape mismatch error")
	}
}
