package dataset

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// ReadText parses a whitespace separated numeric table, one row per line.
// Blank lines and lines starting with '#' are ignored.
func ReadText(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open table: %w", err)
	}
	defer f.Close()

	rows, cols, data, err := parseTable(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return mat.NewDense(rows, cols, data), nil
}

func parseTable(r io.Reader) (int, int, []float64, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var data []float64
	rows, cols := 0, 0
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if rows == 0 {
			cols = len(fields)
		} else if len(fields) != cols {
			return 0, 0, nil, fmt.Errorf("line %d: expected %d columns, got %d", lineNo, cols, len(fields))
		}
		for _, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return 0, 0, nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			data = append(data, v)
		}
		rows++
	}
	if err := scanner.Err(); err != nil {
		return 0, 0, nil, err
	}
	if rows == 0 {
		return 0, 0, nil, errors.New("no data rows")
	}
	return rows, cols, data, nil
}

// ReadIndexTable reads an integer table such as a channel down-sampling file,
// where each row lists the channels kept in one repeat.
func ReadIndexTable(path string) ([][]int, error) {
	m, err := ReadText(path)
	if err != nil {
		return nil, err
	}
	r, c := m.Dims()
	out := make([][]int, r)
	for i := 0; i < r; i++ {
		row := make([]int, c)
		for j := 0; j < c; j++ {
			v := m.At(i, j)
			if v != float64(int(v)) || v < 0 {
				return nil, fmt.Errorf("index table %s: row %d col %d: %g is not a channel index", path, i, j, v)
			}
			row[j] = int(v)
		}
		out[i] = row
	}
	return out, nil
}
