package dataset

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"gonum.org/v1/gonum/mat"
)

// MAT-file v5 data element types.
const (
	miInt8       = 1
	miUint8      = 2
	miInt16      = 3
	miUint16     = 4
	miInt32      = 5
	miUint32     = 6
	miSingle     = 7
	miDouble     = 9
	miInt64      = 12
	miUint64     = 13
	miMatrix     = 14
	miCompressed = 15
)

// Array classes up to and including sparse are not numeric matrices.
const mxSparseClass = 5

const matHeaderLen = 128

var errMATFormat = errors.New("mat: malformed file")

// ReadMAT decodes the real-valued two-dimensional numeric variables of a MATLAB
// level 5 MAT-file. Other variable kinds are skipped. v7.3 (HDF5) files are not supported.
func ReadMAT(path string) (map[string]*mat.Dense, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mat: %w", err)
	}
	vars, err := decodeMAT(raw)
	if err != nil {
		return nil, fmt.Errorf("read mat %s: %w", path, err)
	}
	return vars, nil
}

func decodeMAT(raw []byte) (map[string]*mat.Dense, error) {
	if len(raw) < matHeaderLen {
		return nil, fmt.Errorf("%w: short header", errMATFormat)
	}
	var order binary.ByteOrder
	switch string(raw[126:128]) {
	case "IM":
		order = binary.LittleEndian
	case "MI":
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("%w: bad endian indicator", errMATFormat)
	}
	if bytes.HasPrefix(raw, []byte("MATLAB 7.3")) {
		return nil, fmt.Errorf("%w: v7.3 (HDF5) MAT-files", ErrUnsupportedFormat)
	}

	vars := make(map[string]*mat.Dense)
	r := &matReader{buf: raw[matHeaderLen:], order: order}
	for !r.done() {
		typ, data, err := r.element()
		if err != nil {
			return nil, err
		}
		if err := collectVar(typ, data, order, vars); err != nil {
			return nil, err
		}
	}
	return vars, nil
}

func collectVar(typ uint32, data []byte, order binary.ByteOrder, vars map[string]*mat.Dense) error {
	switch typ {
	case miCompressed:
		zr, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("inflate: %w", err)
		}
		inflated, err := io.ReadAll(zr)
		zr.Close()
		if err != nil {
			return fmt.Errorf("inflate: %w", err)
		}
		inner := &matReader{buf: inflated, order: order}
		for !inner.done() {
			t, d, err := inner.element()
			if err != nil {
				return err
			}
			if err := collectVar(t, d, order, vars); err != nil {
				return err
			}
		}
		return nil
	case miMatrix:
		name, m, err := decodeMatrix(data, order)
		if err != nil {
			return err
		}
		if m != nil {
			vars[name] = m
		}
		return nil
	default:
		return nil
	}
}

// decodeMatrix returns a nil matrix for arrays that are not plain numeric 2-D.
func decodeMatrix(data []byte, order binary.ByteOrder) (string, *mat.Dense, error) {
	r := &matReader{buf: data, order: order}

	_, flags, err := r.element()
	if err != nil {
		return "", nil, err
	}
	if len(flags) < 8 {
		return "", nil, fmt.Errorf("%w: array flags", errMATFormat)
	}
	class := order.Uint32(flags[:4]) & 0xff
	complexFlag := order.Uint32(flags[:4])&0x800 != 0

	dimType, dimData, err := r.element()
	if err != nil {
		return "", nil, err
	}
	dims, err := decodeNumbers(dimType, dimData, order)
	if err != nil {
		return "", nil, err
	}

	_, nameData, err := r.element()
	if err != nil {
		return "", nil, err
	}
	name := string(nameData)

	if class <= mxSparseClass || complexFlag || len(dims) != 2 {
		return name, nil, nil
	}
	rows, cols := int(dims[0]), int(dims[1])
	if rows == 0 || cols == 0 {
		return name, nil, nil
	}

	realType, realData, err := r.element()
	if err != nil {
		return "", nil, err
	}
	vals, err := decodeNumbers(realType, realData, order)
	if err != nil {
		return "", nil, err
	}
	if len(vals) != rows*cols {
		return "", nil, fmt.Errorf("%w: %s has %d values for %dx%d", errMATFormat, name, len(vals), rows, cols)
	}
	// MATLAB stores column-major
	m := mat.NewDense(rows, cols, nil)
	for j := 0; j < cols; j++ {
		for i := 0; i < rows; i++ {
			m.Set(i, j, vals[j*rows+i])
		}
	}
	return name, m, nil
}

func decodeNumbers(typ uint32, data []byte, order binary.ByteOrder) ([]float64, error) {
	var size int
	switch typ {
	case miInt8, miUint8:
		size = 1
	case miInt16, miUint16:
		size = 2
	case miInt32, miUint32, miSingle:
		size = 4
	case miDouble, miInt64, miUint64:
		size = 8
	default:
		return nil, fmt.Errorf("%w: numeric type %d", errMATFormat, typ)
	}
	n := len(data) / size
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		b := data[i*size : (i+1)*size]
		switch typ {
		case miInt8:
			out[i] = float64(int8(b[0]))
		case miUint8:
			out[i] = float64(b[0])
		case miInt16:
			out[i] = float64(int16(order.Uint16(b)))
		case miUint16:
			out[i] = float64(order.Uint16(b))
		case miInt32:
			out[i] = float64(int32(order.Uint32(b)))
		case miUint32:
			out[i] = float64(order.Uint32(b))
		case miSingle:
			out[i] = float64(math.Float32frombits(order.Uint32(b)))
		case miDouble:
			out[i] = math.Float64frombits(order.Uint64(b))
		case miInt64:
			out[i] = float64(int64(order.Uint64(b)))
		case miUint64:
			out[i] = float64(order.Uint64(b))
		}
	}
	return out, nil
}

type matReader struct {
	buf   []byte
	pos   int
	order binary.ByteOrder
}

func (r *matReader) done() bool {
	return len(r.buf)-r.pos < 8
}

// element reads one tagged data element, handling the packed small-element form.
func (r *matReader) element() (uint32, []byte, error) {
	if len(r.buf)-r.pos < 8 {
		return 0, nil, fmt.Errorf("%w: truncated tag", errMATFormat)
	}
	tag := r.order.Uint32(r.buf[r.pos:])
	if small := tag >> 16; small != 0 {
		typ := tag & 0xffff
		if small > 4 {
			return 0, nil, fmt.Errorf("%w: small element of %d bytes", errMATFormat, small)
		}
		data := r.buf[r.pos+4 : r.pos+4+int(small)]
		r.pos += 8
		return typ, data, nil
	}
	size := int(r.order.Uint32(r.buf[r.pos+4:]))
	start := r.pos + 8
	end := start + size
	if end > len(r.buf) {
		return 0, nil, fmt.Errorf("%w: element overruns buffer", errMATFormat)
	}
	r.pos = end
	if tag != miCompressed {
		if pad := size % 8; pad != 0 {
			r.pos += 8 - pad
		}
	}
	if r.pos > len(r.buf) {
		r.pos = len(r.buf)
	}
	return tag, r.buf[start:end], nil
}
