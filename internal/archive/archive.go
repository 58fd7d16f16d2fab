// Package archive reads and writes .npz files: zip archives of named NumPy arrays.
package archive

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/c2h5oh/datasize"
	"github.com/sbinet/npyio/npy"
	"gonum.org/v1/gonum/mat"

	"github.com/NeuroCSUT/RatGPS/internal/window"
)

// ErrMissingArray indicates an archive without a requested entry.
var ErrMissingArray = errors.New("archive: missing array")

// Array is a named float64 array of arbitrary rank in C order.
type Array struct {
	Name  string
	Shape []int
	Data  []float64
}

// Matrix wraps a 2-D table.
func Matrix(name string, m *mat.Dense) Array {
	r, c := m.Dims()
	data := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		data = append(data, m.RawRowView(i)...)
	}
	return Array{Name: name, Shape: []int{r, c}, Data: data}
}

// Sequences wraps an (n, steps, features) array without copying.
func Sequences(name string, s *window.Sequences) Array {
	return Array{Name: name, Shape: s.Shape(), Data: s.Raw()}
}

// Dense returns a 2-D array as a matrix.
func (a Array) Dense() (*mat.Dense, error) {
	if len(a.Shape) != 2 {
		return nil, fmt.Errorf("archive: %s has shape %v, want 2-D", a.Name, a.Shape)
	}
	return mat.NewDense(a.Shape[0], a.Shape[1], a.Data), nil
}

// Seqs returns a 3-D array as sequences.
func (a Array) Seqs() (*window.Sequences, error) {
	if len(a.Shape) != 3 {
		return nil, fmt.Errorf("archive: %s has shape %v, want 3-D", a.Name, a.Shape)
	}
	s := window.NewSequences(a.Shape[0], a.Shape[1], a.Shape[2])
	copy(s.Raw(), a.Data)
	return s, nil
}

// Size is the number of elements implied by the shape.
func (a Array) Size() int {
	n := 1
	for _, d := range a.Shape {
		n *= d
	}
	return n
}

// Write stores arrays in a new archive at path, one deflated <name>.npy entry each.
func Write(path string, arrays ...Array) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("write archive: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write archive: %w", err)
	}
	zw := zip.NewWriter(f)
	for _, a := range arrays {
		if a.Size() != len(a.Data) {
			f.Close()
			return fmt.Errorf("write archive: %s has %d values for shape %v", a.Name, len(a.Data), a.Shape)
		}
		w, err := zw.CreateHeader(&zip.FileHeader{Name: a.Name + ".npy", Method: zip.Deflate})
		if err != nil {
			f.Close()
			return fmt.Errorf("write archive: %w", err)
		}
		if err := writeNPY(w, a); err != nil {
			f.Close()
			return fmt.Errorf("write archive %s: %w", a.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return fmt.Errorf("write archive: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("write archive: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write archive: %w", err)
	}
	log.Printf("archive=%s arrays=%d size=%s", path, len(arrays), datasize.ByteSize(info.Size()).HumanReadable())
	return nil
}

// writeNPY emits a version 1.0 little-endian float64 array.
func writeNPY(w io.Writer, a Array) error {
	dims := make([]string, len(a.Shape))
	for i, d := range a.Shape {
		dims[i] = strconv.Itoa(d)
	}
	shape := strings.Join(dims, ", ")
	if len(dims) == 1 {
		shape += ","
	}
	header := fmt.Sprintf("{'descr': '<f8', 'fortran_order': False, 'shape': (%s), }", shape)
	// magic(6) + version(2) + length(2) + header + '\n' is padded to a multiple of 64.
	pad := 64 - (10+len(header)+1)%64
	if pad == 64 {
		pad = 0
	}
	header += strings.Repeat(" ", pad) + "\n"

	var buf bytes.Buffer
	buf.WriteString("\x93NUMPY")
	buf.Write([]byte{1, 0})
	if err := binary.Write(&buf, binary.LittleEndian, uint16(len(header))); err != nil {
		return err
	}
	buf.WriteString(header)
	if _, err := w.Write(buf.Bytes()); err != nil {
		return err
	}
	body := make([]byte, 8*len(a.Data))
	for i, v := range a.Data {
		binary.LittleEndian.PutUint64(body[8*i:], math.Float64bits(v))
	}
	_, err := w.Write(body)
	return err
}

// Read loads every .npy entry of the archive, keyed by name without extension.
func Read(path string) (map[string]Array, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer zr.Close()

	out := make(map[string]Array, len(zr.File))
	for _, zf := range zr.File {
		if !strings.HasSuffix(zf.Name, ".npy") {
			continue
		}
		a, err := readEntry(zf)
		if err != nil {
			return nil, fmt.Errorf("read archive %s: %s: %w", path, zf.Name, err)
		}
		out[a.Name] = a
	}
	return out, nil
}

func readEntry(zf *zip.File) (Array, error) {
	rc, err := zf.Open()
	if err != nil {
		return Array{}, err
	}
	defer rc.Close()
	r, err := npy.NewReader(rc)
	if err != nil {
		return Array{}, err
	}
	if r.Header.Descr.Fortran && len(r.Header.Descr.Shape) > 1 {
		return Array{}, errors.New("fortran order not supported")
	}
	a := Array{Name: strings.TrimSuffix(zf.Name, ".npy"), Shape: append([]int(nil), r.Header.Descr.Shape...)}
	switch r.Header.Descr.Type {
	case "<f8":
		err = r.Read(&a.Data)
	case "<f4":
		var v []float32
		err = r.Read(&v)
		a.Data = make([]float64, len(v))
		for i, x := range v {
			a.Data[i] = float64(x)
		}
	default:
		return Array{}, fmt.Errorf("unsupported dtype %s", r.Header.Descr.Type)
	}
	return a, err
}

// Lookup returns the named arrays from m, in order.
func Lookup(m map[string]Array, names ...string) ([]Array, error) {
	out := make([]Array, len(names))
	for i, name := range names {
		a, ok := m[name]
		if !ok {
			have := make([]string, 0, len(m))
			for k := range m {
				have = append(have, k)
			}
			sort.Strings(have)
			return nil, fmt.Errorf("%w: %s (have %v)", ErrMissingArray, name, have)
		}
		out[i] = a
	}
	return out, nil
}
