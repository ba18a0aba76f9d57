// Package npz reads NumPy array files (.npy) and zip archives of them (.npz).
// Only the subset of the format needed for point-cloud archives is supported:
// little-endian numeric dtypes, C-contiguous layout, format versions 1.0-3.0.
package npz

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

var npyMagic = []byte("\x93NUMPY")

// elemSizes maps supported dtype descriptors to their element size in bytes.
var elemSizes = map[string]int{
	"<f4": 4,
	"<f8": 8,
	"<i4": 4,
	"<i8": 8,
	"|u1": 1,
	"<u1": 1,
}

// Array holds one decoded array: its dtype descriptor, shape, and the raw
// little-endian payload bytes.
type Array struct {
	DType string
	Shape []int

	raw []byte
}

// Len returns the total number of elements (product of the shape).
func (a *Array) Len() int {
	n := 1
	for _, d := range a.Shape {
		n *= d
	}
	return n
}

// Float32s decodes the payload into a float32 slice, converting from the
// stored dtype. Integer dtypes are converted by value.
func (a *Array) Float32s() ([]float32, error) {
	n := a.Len()
	out := make([]float32, n)
	switch a.DType {
	case "<f4":
		for i := 0; i < n; i++ {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(a.raw[i*4:]))
		}
	case "<f8":
		for i := 0; i < n; i++ {
			out[i] = float32(math.Float64frombits(binary.LittleEndian.Uint64(a.raw[i*8:])))
		}
	case "<i4":
		for i := 0; i < n; i++ {
			out[i] = float32(int32(binary.LittleEndian.Uint32(a.raw[i*4:])))
		}
	case "<i8":
		for i := 0; i < n; i++ {
			out[i] = float32(int64(binary.LittleEndian.Uint64(a.raw[i*8:])))
		}
	case "|u1", "<u1":
		for i := 0; i < n; i++ {
			out[i] = float32(a.raw[i])
		}
	default:
		return nil, fmt.Errorf("unsupported dtype %q", a.DType)
	}
	return out, nil
}

// Float64s decodes the payload into a float64 slice.
func (a *Array) Float64s() ([]float64, error) {
	if a.DType == "<f8" {
		n := a.Len()
		out := make([]float64, n)
		for i := 0; i < n; i++ {
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(a.raw[i*8:]))
		}
		return out, nil
	}
	f32, err := a.Float32s()
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(f32))
	for i, v := range f32 {
		out[i] = float64(v)
	}
	return out, nil
}

// ReadNPY parses a single .npy stream.
func ReadNPY(r io.Reader) (*Array, error) {
	var pre [8]byte
	if _, err := io.ReadFull(r, pre[:]); err != nil {
		return nil, fmt.Errorf("failed to read npy preamble: %w", err)
	}
	if !bytes.Equal(pre[:6], npyMagic) {
		return nil, fmt.Errorf("bad npy magic %q", pre[:6])
	}
	major := pre[6]

	var headerLen int
	switch major {
	case 1:
		var buf [2]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return nil, fmt.Errorf("failed to read npy header length: %w", err)
		}
		headerLen = int(binary.LittleEndian.Uint16(buf[:]))
	case 2, 3:
		var buf [4]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return nil, fmt.Errorf("failed to read npy header length: %w", err)
		}
		headerLen = int(binary.LittleEndian.Uint32(buf[:]))
	default:
		return nil, fmt.Errorf("unsupported npy format version %d.%d", major, pre[7])
	}

	header := make([]byte, headerLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("failed to read npy header: %w", err)
	}

	descr, fortran, shape, err := parseHeader(string(header))
	if err != nil {
		return nil, err
	}
	if fortran {
		return nil, fmt.Errorf("fortran-ordered arrays are not supported")
	}
	size, ok := elemSizes[descr]
	if !ok {
		return nil, fmt.Errorf("unsupported dtype %q", descr)
	}

	a := &Array{DType: descr, Shape: shape}
	a.raw = make([]byte, a.Len()*size)
	if _, err := io.ReadFull(r, a.raw); err != nil {
		return nil, fmt.Errorf("truncated npy payload (want %d bytes): %w", len(a.raw), err)
	}
	return a, nil
}

// Open reads all members of an .npz archive, keyed by member name with the
// .npy suffix stripped.
func Open(path string) (map[string]*Array, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open npz archive: %w", err)
	}
	defer zr.Close()

	arrays := make(map[string]*Array, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open npz member %q: %w", f.Name, err)
		}
		a, err := ReadNPY(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("npz member %q: %w", f.Name, err)
		}
		arrays[strings.TrimSuffix(f.Name, ".npy")] = a
	}
	return arrays, nil
}

// parseHeader parses the Python-literal npy header dict, e.g.
// {'descr': '<f4', 'fortran_order': False, 'shape': (3, 4), }
func parseHeader(h string) (descr string, fortran bool, shape []int, err error) {
	descr, err = headerString(h, "descr")
	if err != nil {
		return "", false, nil, err
	}

	switch {
	case strings.Contains(h, "'fortran_order': False"):
		fortran = false
	case strings.Contains(h, "'fortran_order': True"):
		fortran = true
	default:
		return "", false, nil, fmt.Errorf("npy header missing fortran_order: %q", h)
	}

	shape, err = headerShape(h)
	if err != nil {
		return "", false, nil, err
	}
	return descr, fortran, shape, nil
}

func headerString(h, key string) (string, error) {
	marker := "'" + key + "':"
	i := strings.Index(h, marker)
	if i < 0 {
		return "", fmt.Errorf("npy header missing %s: %q", key, h)
	}
	rest := h[i+len(marker):]
	start := strings.IndexByte(rest, '\'')
	if start < 0 {
		return "", fmt.Errorf("npy header has malformed %s value: %q", key, h)
	}
	end := strings.IndexByte(rest[start+1:], '\'')
	if end < 0 {
		return "", fmt.Errorf("npy header has malformed %s value: %q", key, h)
	}
	return rest[start+1 : start+1+end], nil
}

func headerShape(h string) ([]int, error) {
	i := strings.Index(h, "'shape':")
	if i < 0 {
		return nil, fmt.Errorf("npy header missing shape: %q", h)
	}
	rest := h[i:]
	open := strings.IndexByte(rest, '(')
	closing := strings.IndexByte(rest, ')')
	if open < 0 || closing < 0 || closing < open {
		return nil, fmt.Errorf("npy header has malformed shape: %q", h)
	}
	inner := strings.TrimSpace(rest[open+1 : closing])
	if inner == "" {
		// Scalar array: shape ().
		return []int{}, nil
	}
	parts := strings.Split(inner, ",")
	shape := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue // trailing comma in 1-tuples like (100,)
		}
		d, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("npy header has non-integer shape dimension %q", p)
		}
		if d < 0 {
			return nil, fmt.Errorf("npy header has negative shape dimension %d", d)
		}
		shape = append(shape, d)
	}
	return shape, nil
}
