package archive

import (
	"archive/zip"
	"errors"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/NeuroCSUT/RatGPS/internal/window"
)

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "preds.npz")
	preds := mat.NewDense(3, 2, []float64{1.5, -2, 0, 3.25, 1e-9, 42})
	seqs := window.NewSequences(2, 3, 4)
	for i := range seqs.Raw() {
		seqs.Raw()[i] = float64(i) / 7
	}
	vec := Array{Name: "fold_sizes", Shape: []int{3}, Data: []float64{10, 10, 9}}

	if err := Write(path, Matrix("preds", preds), Sequences("grads", seqs), vec); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	arrays, err := Lookup(got, "preds", "grads", "fold_sizes")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}

	m, err := arrays[0].Dense()
	if err != nil {
		t.Fatalf("Dense: %v", err)
	}
	if !mat.Equal(m, preds) {
		t.Fatalf("preds differ: %v", mat.Formatted(m))
	}
	s, err := arrays[1].Seqs()
	if err != nil {
		t.Fatalf("Seqs: %v", err)
	}
	if s.Len() != 2 || s.Steps() != 3 || s.Features() != 4 {
		t.Fatalf("grads shape %v", s.Shape())
	}
	for i, v := range s.Raw() {
		if v != seqs.Raw()[i] {
			t.Fatalf("grads[%d]=%g want %g", i, v, seqs.Raw()[i])
		}
	}
	if len(arrays[2].Shape) != 1 || arrays[2].Shape[0] != 3 || arrays[2].Data[2] != 9 {
		t.Fatalf("fold_sizes=%+v", arrays[2])
	}
	if _, err := arrays[2].Dense(); err == nil {
		t.Fatalf("expected rank error for 1-D array")
	}
}

func TestEntriesAreDeflatedAndAligned(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.npz")
	if err := Write(path, Array{Name: "x", Shape: []int{2, 2}, Data: []float64{1, 2, 3, 4}}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer zr.Close()
	if len(zr.File) != 1 || zr.File[0].Name != "x.npy" || zr.File[0].Method != zip.Deflate {
		t.Fatalf("unexpected entries %+v", zr.File)
	}
	// Header padded to a multiple of 64 bytes, then 4 float64 values.
	if size := zr.File[0].UncompressedSize64; (size-32)%64 != 0 {
		t.Fatalf("header not aligned: entry size %d", size)
	}
}

func TestWriteRejectsShapeMismatch(t *testing.T) {
	err := Write(filepath.Join(t.TempDir(), "bad.npz"), Array{Name: "x", Shape: []int{2, 2}, Data: []float64{1}})
	if err == nil {
		t.Fatalf("expected shape error")
	}
}

func TestLookupMissing(t *testing.T) {
	if _, err := Lookup(map[string]Array{}, "preds"); !errors.Is(err, ErrMissingArray) {
		t.Fatalf("expected ErrMissingArray, got %v", err)
	}
}
