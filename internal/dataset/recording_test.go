package dataset

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadText(t *testing.T) {
	dir := t.TempDir()
	feats := writeFile(t, filepath.Join(dir, "feat.dat"), "# spikes\n1 2 3\n4 5 6\n\n7 8 9\n")
	locs := writeFile(t, filepath.Join(dir, "pos.dat"), "0.5\n1.5\n2.5\n")

	rec, err := Load(feats, locs)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rec.Len() != 3 || rec.Channels() != 3 || rec.Outputs() != 1 {
		t.Fatalf("unexpected shape len=%d channels=%d outputs=%d", rec.Len(), rec.Channels(), rec.Outputs())
	}
	if got := rec.Features.At(2, 0); got != 7 {
		t.Fatalf("features[2,0]=%g want 7", got)
	}
	if got := rec.Positions.At(1, 0); got != 1.5 {
		t.Fatalf("positions[1]=%g want 1.5", got)
	}
}

func TestLoadFlatPositionsBecomeColumn(t *testing.T) {
	dir := t.TempDir()
	feats := writeFile(t, filepath.Join(dir, "feat.dat"), "1 0\n0 1\n1 1\n")
	locs := writeFile(t, filepath.Join(dir, "pos.dat"), "10 20 30\n")

	rec, err := Load(feats, locs)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rec.Outputs() != 1 {
		t.Fatalf("expected single column positions, got %d", rec.Outputs())
	}
	if got := rec.Positions.At(2, 0); got != 30 {
		t.Fatalf("positions[2]=%g want 30", got)
	}
}

func TestLoadNPY(t *testing.T) {
	dir := t.TempDir()
	feats := writeNPY(t, filepath.Join(dir, "feat.npy"), "<i8", []int{3, 2}, false, []int64{1, 2, 3, 4, 5, 6})
	locs := writeNPY(t, filepath.Join(dir, "pos.npy"), "<f8", []int{3, 2}, true, []float64{1, 2, 3, 10, 20, 30})

	rec, err := Load(feats, locs)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := rec.Features.At(1, 1); got != 4 {
		t.Fatalf("features[1,1]=%g want 4", got)
	}
	if got := rec.Positions.At(2, 1); got != 30 {
		t.Fatalf("fortran positions[2,1]=%g want 30", got)
	}
	if got := rec.Positions.At(2, 0); got != 3 {
		t.Fatalf("fortran positions[2,0]=%g want 3", got)
	}
}

func TestLoadNPYOneDimensional(t *testing.T) {
	dir := t.TempDir()
	feats := writeNPY(t, filepath.Join(dir, "feat.npy"), "<f4", []int{4, 1}, false, []float32{1, 2, 3, 4})
	locs := writeNPY(t, filepath.Join(dir, "pos.npy"), "<f8", []int{4}, false, []float64{0, 1, 2, 3})

	rec, err := Load(feats, locs)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rec.Outputs() != 1 || rec.Len() != 4 {
		t.Fatalf("unexpected shape len=%d outputs=%d", rec.Len(), rec.Outputs())
	}
}

func TestLoadUnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	locs := writeFile(t, filepath.Join(dir, "pos.dat"), "1\n")
	feats := writeFile(t, filepath.Join(dir, "feat.csv"), "1\n")

	_, err := Load(feats, locs)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}

	feats = writeFile(t, filepath.Join(dir, "feat.dat"), "1\n")
	_, err = Load(feats, filepath.Join(dir, "pos.h5"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat for positions, got %v", err)
	}
}

func TestLoadShapeMismatch(t *testing.T) {
	dir := t.TempDir()
	feats := writeFile(t, filepath.Join(dir, "feat.dat"), "1 2\n3 4\n5 6\n")
	locs := writeFile(t, filepath.Join(dir, "pos.dat"), "1\n2\n")

	_, err := Load(feats, locs)
	if !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}
}

func TestReadTextRaggedRows(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "bad.dat"), "1 2\n3\n")
	if _, err := ReadText(path); err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("expected ragged row error on line 2, got %v", err)
	}
}

func TestReadIndexTable(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "idx.dat"), "0 2 4\n1 3 5\n")
	rows, err := ReadIndexTable(path)
	if err != nil {
		t.Fatalf("ReadIndexTable: %v", err)
	}
	if len(rows) != 2 || rows[1][2] != 5 {
		t.Fatalf("unexpected table %v", rows)
	}

	bad := writeFile(t, filepath.Join(t.TempDir(), "idx.dat"), "0 1.5\n")
	if _, err := ReadIndexTable(bad); err == nil {
		t.Fatal("expected error for fractional index")
	}
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// writeNPY writes a version 1.0 .npy file; data must match descr.
func writeNPY(t *testing.T, path, descr string, shape []int, fortran bool, data any) string {
	t.Helper()
	dims := make([]string, len(shape))
	for i, d := range shape {
		dims[i] = fmt.Sprint(d)
	}
	tuple := strings.Join(dims, ", ")
	if len(shape) == 1 {
		tuple += ","
	}
	order := "False"
	if fortran {
		order = "True"
	}
	dict := fmt.Sprintf("{'descr': '%s', 'fortran_order': %s, 'shape': (%s), }", descr, order, tuple)
	for (10+len(dict)+1)%64 != 0 {
		dict += " "
	}
	dict += "\n"

	buf := &bytes.Buffer{}
	buf.WriteString("\x93NUMPY")
	buf.Write([]byte{1, 0})
	_ = binary.Write(buf, binary.LittleEndian, uint16(len(dict)))
	buf.WriteString(dict)
	if err := binary.Write(buf, binary.LittleEndian, data); err != nil {
		t.Fatalf("encode npy payload: %v", err)
	}
	return writeFile(t, path, buf.String())
}
