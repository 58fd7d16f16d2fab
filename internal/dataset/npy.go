package dataset

import (
	"fmt"
	"os"

	"github.com/sbinet/npyio/npy"
	"gonum.org/v1/gonum/mat"
)

// ReadNPY loads a one- or two-dimensional NumPy array of any numeric dtype.
// One-dimensional arrays become a single column.
func ReadNPY(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open npy: %w", err)
	}
	defer f.Close()

	r, err := npy.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("read npy %s: %w", path, err)
	}
	shape := r.Header.Descr.Shape
	var rows, cols int
	switch len(shape) {
	case 1:
		rows, cols = shape[0], 1
	case 2:
		rows, cols = shape[0], shape[1]
	default:
		return nil, fmt.Errorf("read npy %s: want 1-D or 2-D array, got shape %v", path, shape)
	}
	if rows == 0 || cols == 0 {
		return nil, fmt.Errorf("read npy %s: empty array %v", path, shape)
	}

	data, err := readNumeric(r, r.Header.Descr.Type)
	if err != nil {
		return nil, fmt.Errorf("read npy %s: %w", path, err)
	}
	if r.Header.Descr.Fortran && cols > 1 {
		m := mat.NewDense(rows, cols, nil)
		for j := 0; j < cols; j++ {
			for i := 0; i < rows; i++ {
				m.Set(i, j, data[j*rows+i])
			}
		}
		return m, nil
	}
	return mat.NewDense(rows, cols, data), nil
}

func readNumeric(r *npy.Reader, descr string) ([]float64, error) {
	if len(descr) < 2 {
		return nil, fmt.Errorf("bad dtype %q", descr)
	}
	switch descr[1:] {
	case "f8":
		var v []float64
		err := r.Read(&v)
		return v, err
	case "f4":
		var v []float32
		if err := r.Read(&v); err != nil {
			return nil, err
		}
		return widen(v), nil
	case "i8":
		var v []int64
		if err := r.Read(&v); err != nil {
			return nil, err
		}
		return widen(v), nil
	case "i4":
		var v []int32
		if err := r.Read(&v); err != nil {
			return nil, err
		}
		return widen(v), nil
	case "i2":
		var v []int16
		if err := r.Read(&v); err != nil {
			return nil, err
		}
		return widen(v), nil
	case "i1":
		var v []int8
		if err := r.Read(&v); err != nil {
			return nil, err
		}
		return widen(v), nil
	case "u8":
		var v []uint64
		if err := r.Read(&v); err != nil {
			return nil, err
		}
		return widen(v), nil
	case "u4":
		var v []uint32
		if err := r.Read(&v); err != nil {
			return nil, err
		}
		return widen(v), nil
	case "u2":
		var v []uint16
		if err := r.Read(&v); err != nil {
			return nil, err
		}
		return widen(v), nil
	case "u1":
		var v []uint8
		if err := r.Read(&v); err != nil {
			return nil, err
		}
		return widen(v), nil
	default:
		return nil, fmt.Errorf("%w: dtype %s", ErrUnsupportedFormat, descr)
	}
}

type number interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~float32
}

func widen[T number](v []T) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
