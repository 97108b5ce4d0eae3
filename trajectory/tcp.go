package trajectory

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// MatrixOrder is the memory layout of the flattened 4x4 transform in a TCP
// log row.
type MatrixOrder int

const (
	RowMajor MatrixOrder = iota
	ColumnMajor
)

func (o MatrixOrder) String() string {
	switch o {
	case RowMajor:
		return "row-major"
	case ColumnMajor:
		return "column-major"
	default:
		return "unknown"
	}
}

// TCPOptions controls how a tool-center-point log is interpreted.
type TCPOptions struct {
	Delimiter Delimiter
	HasHeader bool
	Order     MatrixOrder
}

// minTCPFields is t + 16 matrix entries.
const minTCPFields = 17

// ParseTCPFile reads a TCP log from disk.
func ParseTCPFile(path string, opts TCPOptions) ([]r3.Vector, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open TCP file: %w", err)
	}
	defer f.Close()
	pts, err := ParseTCP(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return pts, nil
}

// ParseTCP reads rows of `t m0 .. m15` where the 16 trailing fields are a
// flattened 4x4 transform, and extracts the translation of each. Skip and
// failure rules match Parse: blank lines and '#' comments are ignored, one
// optional header line is discarded, and any malformed row aborts the parse.
func ParseTCP(r io.Reader, opts TCPOptions) ([]r3.Vector, error) {
	var (
		pts           []r3.Vector
		headerSkipped bool
		lineNum       int
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lineNum++
		s := strings.TrimSpace(scanner.Text())
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		if opts.HasHeader && !headerSkipped {
			headerSkipped = true
			continue
		}

		vals, err := parseFields(s, opts.Delimiter)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		if len(vals) < minTCPFields {
			return nil, fmt.Errorf("line %d: expected %d numbers (t + 16 matrix), got %d",
				lineNum, minTCPFields, len(vals))
		}

		pts = append(pts, translation(vals[1:17], opts.Order))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read TCP file: %w", err)
	}
	if len(pts) == 0 {
		return nil, ErrNoTCPRows
	}
	return pts, nil
}

// translation extracts the translation column of a flattened 4x4 transform.
func translation(flat []float64, order MatrixOrder) r3.Vector {
	m := mat.NewDense(4, 4, flat)
	if order == ColumnMajor {
		// Rows of the row-major view are the columns of the actual
		// matrix; the translation column is the fourth row.
		return r3.Vector{X: m.At(3, 0), Y: m.At(3, 1), Z: m.At(3, 2)}
	}
	return r3.Vector{X: m.At(0, 3), Y: m.At(1, 3), Z: m.At(2, 3)}
}

// Downsample keeps every step-th point, starting with the first. A step of
// 0 or 1 returns the input unchanged.
func Downsample(pts []r3.Vector, step int) []r3.Vector {
	if step <= 1 {
		return pts
	}
	out := make([]r3.Vector, 0, (len(pts)+step-1)/step)
	for i := 0; i < len(pts); i += step {
		out = append(out, pts[i])
	}
	return out
}
