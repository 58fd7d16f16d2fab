package dataset

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func TestReadMATUncompressed(t *testing.T) {
	// 2x3 matrix, column-major on disk
	path := writeMAT(t, false, matVar{name: "mm", rows: 2, cols: 3, colMajor: []float64{1, 4, 2, 5, 3, 6}})
	vars, err := ReadMAT(path)
	if err != nil {
		t.Fatalf("ReadMAT: %v", err)
	}
	m, ok := vars["mm"]
	if !ok {
		t.Fatalf("variable mm missing: %v", vars)
	}
	want := [][]float64{{1, 2, 3}, {4, 5, 6}}
	for i, row := range want {
		for j, v := range row {
			if got := m.At(i, j); got != v {
				t.Fatalf("mm[%d,%d]=%g want %g", i, j, got, v)
			}
		}
	}
}

func TestReadMATCompressedLongName(t *testing.T) {
	path := writeMAT(t, true,
		matVar{name: "positions", rows: 1, cols: 2, colMajor: []float64{7, 8}},
		matVar{name: "loc", rows: 2, cols: 1, colMajor: []float64{3.5, 7}},
	)
	vars, err := ReadMAT(path)
	if err != nil {
		t.Fatalf("ReadMAT: %v", err)
	}
	if len(vars) != 2 {
		t.Fatalf("expected 2 variables, got %d", len(vars))
	}
	if got := vars["positions"].At(0, 1); got != 8 {
		t.Fatalf("positions[0,1]=%g want 8", got)
	}
	if got := vars["loc"].At(1, 0); got != 7 {
		t.Fatalf("loc[1,0]=%g want 7", got)
	}
}

func TestLoadMATConvertsUnits(t *testing.T) {
	dir := t.TempDir()
	feats := writeMATAt(t, filepath.Join(dir, "feat.mat"), false,
		matVar{name: "mm", rows: 2, cols: 3, colMajor: []float64{1, 0, 2, 1, 0, 3}})
	locs := writeMATAt(t, filepath.Join(dir, "loc.mat"), false,
		matVar{name: "loc", rows: 3, cols: 1, colMajor: []float64{3.5, 7, 10.5}})

	rec, err := Load(feats, locs)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rec.Len() != 3 || rec.Channels() != 2 {
		t.Fatalf("expected 3x2 features, got %dx%d", rec.Len(), rec.Channels())
	}
	if got := rec.Features.At(2, 1); got != 3 {
		t.Fatalf("features not transposed: [2,1]=%g", got)
	}
	for i, want := range []float64{1, 2, 3} {
		if got := rec.Positions.At(i, 0); got != want {
			t.Fatalf("position[%d]=%g want %g cm", i, got, want)
		}
	}
}

func TestReadMATRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.mat")
	if err := os.WriteFile(path, []byte("not a mat file"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadMAT(path); err == nil {
		t.Fatal("expected error for truncated file")
	}
}

type matVar struct {
	name       string
	rows, cols int
	colMajor   []float64
}

func writeMAT(t *testing.T, compress bool, vars ...matVar) string {
	t.Helper()
	return writeMATAt(t, filepath.Join(t.TempDir(), "data.mat"), compress, vars...)
}

func writeMATAt(t *testing.T, path string, compress bool, vars ...matVar) string {
	t.Helper()
	buf := &bytes.Buffer{}
	header := make([]byte, matHeaderLen)
	copy(header, "MATLAB 5.0 MAT-file, written by tests")
	for i := len("MATLAB 5.0 MAT-file, written by tests"); i < 116; i++ {
		header[i] = ' '
	}
	binary.LittleEndian.PutUint16(header[124:], 0x0100)
	header[126], header[127] = 'I', 'M'
	buf.Write(header)

	for _, v := range vars {
		elem := matrixElement(v)
		if !compress {
			buf.Write(elem)
			continue
		}
		z := &bytes.Buffer{}
		zw := zlib.NewWriter(z)
		if _, err := zw.Write(elem); err != nil {
			t.Fatalf("compress: %v", err)
		}
		if err := zw.Close(); err != nil {
			t.Fatalf("compress: %v", err)
		}
		writeTag(buf, miCompressed, z.Len())
		buf.Write(z.Bytes())
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write mat: %v", err)
	}
	return path
}

func matrixElement(v matVar) []byte {
	body := &bytes.Buffer{}

	writeTag(body, miUint32, 8)
	flags := make([]byte, 8)
	binary.LittleEndian.PutUint32(flags, 6) // mxDOUBLE_CLASS
	body.Write(flags)

	writeTag(body, miInt32, 8)
	dims := make([]byte, 8)
	binary.LittleEndian.PutUint32(dims, uint32(v.rows))
	binary.LittleEndian.PutUint32(dims[4:], uint32(v.cols))
	body.Write(dims)

	if len(v.name) <= 4 {
		small := make([]byte, 8)
		binary.LittleEndian.PutUint32(small, uint32(len(v.name))<<16|miInt8)
		copy(small[4:], v.name)
		body.Write(small)
	} else {
		writeTag(body, miInt8, len(v.name))
		body.WriteString(v.name)
		pad(body, len(v.name))
	}

	writeTag(body, miDouble, 8*len(v.colMajor))
	for _, x := range v.colMajor {
		_ = binary.Write(body, binary.LittleEndian, x)
	}

	out := &bytes.Buffer{}
	writeTag(out, miMatrix, body.Len())
	out.Write(body.Bytes())
	return out.Bytes()
}

func writeTag(buf *bytes.Buffer, typ uint32, size int) {
	tag := make([]byte, 8)
	binary.LittleEndian.PutUint32(tag, typ)
	binary.LittleEndian.PutUint32(tag[4:], uint32(size))
	buf.Write(tag)
}

func pad(buf *bytes.Buffer, size int) {
	if rem := size % 8; rem != 0 {
		buf.Write(make([]byte, 8-rem))
	}
}
