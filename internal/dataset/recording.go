package dataset

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// PixelsPerCm converts positions stored in MATLAB files from tracker pixels to centimetres.
const PixelsPerCm = 3.5

var (
	// ErrUnsupportedFormat indicates a file extension no loader understands.
	ErrUnsupportedFormat = errors.New("dataset: unsupported file format")
	// ErrShapeMismatch indicates features and positions disagree on the number of samples.
	ErrShapeMismatch = errors.New("dataset: features and positions row counts differ")
)

// Recording pairs per-timestep spike counts with the animal's position at that timestep.
type Recording struct {
	Features  *mat.Dense
	Positions *mat.Dense
}

// Len returns the number of timesteps.
func (r *Recording) Len() int {
	n, _ := r.Features.Dims()
	return n
}

// Channels returns the number of feature columns.
func (r *Recording) Channels() int {
	_, c := r.Features.Dims()
	return c
}

// Outputs returns the label dimensionality (1 or 2 for linear and open-field tracks).
func (r *Recording) Outputs() int {
	_, c := r.Positions.Dims()
	return c
}

// Load reads features and positions, choosing a decoder from each file's extension.
func Load(featuresPath, positionsPath string) (*Recording, error) {
	x, err := LoadFeatures(featuresPath)
	if err != nil {
		return nil, err
	}
	y, err := loadPositions(positionsPath)
	if err != nil {
		return nil, err
	}
	xr, xc := x.Dims()
	yr, yc := y.Dims()
	log.Printf("loaded features=%dx%d positions=%dx%d", xr, xc, yr, yc)
	if xr != yr {
		return nil, fmt.Errorf("%w: %d features vs %d positions", ErrShapeMismatch, xr, yr)
	}
	logSummary(x, y)
	return &Recording{Features: x, Positions: y}, nil
}

// LoadFeatures reads a (time, channels) spike-count table on its own.
func LoadFeatures(path string) (*mat.Dense, error) {
	switch ext(path) {
	case ".mat":
		vars, err := ReadMAT(path)
		if err != nil {
			return nil, err
		}
		mm, ok := vars["mm"]
		if !ok {
			return nil, fmt.Errorf("read %s: variable mm not found", path)
		}
		// spike counts are stored channels x time
		return mat.DenseCopyOf(mm.T()), nil
	case ".dat":
		return ReadText(path)
	case ".npy":
		return ReadNPY(path)
	default:
		return nil, fmt.Errorf("%w: features %s", ErrUnsupportedFormat, path)
	}
}

func loadPositions(path string) (*mat.Dense, error) {
	switch ext(path) {
	case ".mat":
		vars, err := ReadMAT(path)
		if err != nil {
			return nil, err
		}
		loc, ok := vars["loc"]
		if !ok {
			return nil, fmt.Errorf("read %s: variable loc not found", path)
		}
		loc.Scale(1/PixelsPerCm, loc)
		return asColumns(loc), nil
	case ".dat":
		y, err := ReadText(path)
		if err != nil {
			return nil, err
		}
		return asColumns(y), nil
	case ".npy":
		y, err := ReadNPY(path)
		if err != nil {
			return nil, err
		}
		return asColumns(y), nil
	default:
		return nil, fmt.Errorf("%w: positions %s", ErrUnsupportedFormat, path)
	}
}

// asColumns turns a flat 1xT position vector into a Tx1 table.
func asColumns(y *mat.Dense) *mat.Dense {
	r, c := y.Dims()
	if r == 1 && c > 1 {
		log.Printf("position is 1D, reshaping 1x%d to %dx1", c, c)
		return mat.DenseCopyOf(y.T())
	}
	return y
}

func ext(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

func logSummary(x, y *mat.Dense) {
	xs := flatten(x)
	ys := flatten(y)
	mean, std := stat.PopMeanStdDev(xs, nil)
	log.Printf("minX=%g maxX=%g meanX=%g stdX=%g minY=%g maxY=%g",
		floats.Min(xs), floats.Max(xs), mean, std, floats.Min(ys), floats.Max(ys))
}

func flatten(m *mat.Dense) []float64 {
	r, c := m.Dims()
	out := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		out = append(out, m.RawRowView(i)...)
	}
	return out
}
