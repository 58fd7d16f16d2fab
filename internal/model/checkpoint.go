package model

import (
	"compress/zlib"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/c2h5oh/datasize"
	"gonum.org/v1/gonum/mat"
)

// ErrArchitectureMismatch indicates a checkpoint saved by a differently shaped network.
var ErrArchitectureMismatch = errors.New("model: checkpoint architecture mismatch")

type checkpointFile struct {
	Cell    string        `json:"cell"`
	Inputs  int           `json:"inputs"`
	Outputs int           `json:"outputs"`
	Layers  int           `json:"layers"`
	Hidden  int           `json:"hidden"`
	Params  []storedParam `json:"params"`
}

type storedParam struct {
	Name string    `json:"name"`
	Rows int       `json:"rows"`
	Cols int       `json:"cols"`
	Data []float64 `json:"data"`
}

// Save writes the architecture and weights to path as zlib-compressed JSON.
// The file is replaced atomically.
func (n *Network) Save(path string) error {
	ckpt := checkpointFile{
		Cell:    n.opts.Cell.String(),
		Inputs:  n.inputs,
		Outputs: n.outputs,
		Layers:  n.opts.Layers,
		Hidden:  n.opts.Hidden,
	}
	for _, p := range n.params {
		r, c := p.w.Dims()
		data := make([]float64, 0, r*c)
		for i := 0; i < r; i++ {
			data = append(data, p.w.RawRowView(i)...)
		}
		ckpt.Params = append(ckpt.Params, storedParam{Name: p.name, Rows: r, Cols: c, Data: data})
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	defer os.Remove(tmp.Name())

	zw := zlib.NewWriter(tmp)
	if err := json.NewEncoder(zw).Encode(&ckpt); err != nil {
		tmp.Close()
		return fmt.Errorf("save checkpoint: %w", err)
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("save checkpoint: %w", err)
	}
	info, err := tmp.Stat()
	if err != nil {
		tmp.Close()
		return fmt.Errorf("save checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	if n.opts.Verbose >= 2 {
		log.Printf("checkpoint=%s size=%s", path, datasize.ByteSize(info.Size()).HumanReadable())
	}
	return nil
}

// Load restores weights saved by Save. The checkpoint must describe the same architecture.
func (n *Network) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}
	defer f.Close()
	zr, err := zlib.NewReader(f)
	if err != nil {
		return fmt.Errorf("load checkpoint %s: %w", path, err)
	}
	defer zr.Close()

	var ckpt checkpointFile
	if err := json.NewDecoder(zr).Decode(&ckpt); err != nil {
		return fmt.Errorf("load checkpoint %s: %w", path, err)
	}
	if ckpt.Cell != n.opts.Cell.String() || ckpt.Inputs != n.inputs || ckpt.Outputs != n.outputs ||
		ckpt.Layers != n.opts.Layers || ckpt.Hidden != n.opts.Hidden {
		return fmt.Errorf("%w: %s holds %s %dx%d layers=%d hidden=%d, network is %s %dx%d layers=%d hidden=%d",
			ErrArchitectureMismatch, path,
			ckpt.Cell, ckpt.Inputs, ckpt.Outputs, ckpt.Layers, ckpt.Hidden,
			n.opts.Cell, n.inputs, n.outputs, n.opts.Layers, n.opts.Hidden)
	}
	w := make(Weights, len(ckpt.Params))
	for _, p := range ckpt.Params {
		if len(p.Data) != p.Rows*p.Cols || p.Rows <= 0 || p.Cols <= 0 {
			return fmt.Errorf("load checkpoint %s: %s has %d values for %dx%d", path, p.Name, len(p.Data), p.Rows, p.Cols)
		}
		w[p.Name] = mat.NewDense(p.Rows, p.Cols, p.Data)
	}
	return n.SetWeights(w)
}
