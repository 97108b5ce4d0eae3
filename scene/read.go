package scene

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"

	"go.viam.com/rdk/spatialmath"
)

// Read parses a .scene stream into its objects. Blank lines are tolerated
// anywhere; the header and the closing "." are optional. Each entry must
// carry its full fixed-arity block or the parse fails with a diagnostic
// naming the expected and actual field counts.
func Read(r io.Reader) ([]Object, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		s := strings.TrimSpace(scanner.Text())
		if s != "" {
			lines = append(lines, s)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read scene: %w", err)
	}

	var objs []Object
	for i := 0; i < len(lines); i++ {
		if !strings.HasPrefix(lines[i], "* ") {
			continue
		}
		name := strings.TrimSpace(lines[i][2:])
		if name == "" {
			name = "cube"
		}

		// name line + position + quaternion + "1" + shape + size +
		// four placeholder lines.
		if rem := len(lines) - i - 1; rem < 9 {
			return nil, fmt.Errorf("truncated entry %q: expected 9 more lines, got %d", name, rem)
		}
		pos, err := parseFloats(lines[i+1], 3)
		if err != nil {
			return nil, fmt.Errorf("entry %q position: %w", name, err)
		}
		quat, err := parseFloats(lines[i+2], 4)
		if err != nil {
			return nil, fmt.Errorf("entry %q orientation: %w", name, err)
		}
		shape := strings.ToLower(strings.TrimSpace(lines[i+4]))
		size, err := parseFloats(lines[i+5], 3)
		if err != nil {
			return nil, fmt.Errorf("entry %q size: %w", name, err)
		}
		i += 9

		objs = append(objs, Object{
			Name:  name,
			Pose:  spatialmath.NewPose(r3.Vector{X: pos[0], Y: pos[1], Z: pos[2]}, orientationFromXYZW(quat)),
			Size:  r3.Vector{X: size[0], Y: size[1], Z: size[2]},
			Shape: shape,
		})
	}
	return objs, nil
}

// ReadFile parses a .scene file from disk.
func ReadFile(path string) ([]Object, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scene file: %w", err)
	}
	defer f.Close()
	objs, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return objs, nil
}

// orientationFromXYZW builds a normalized orientation from file-order
// quaternion components. A near-zero quaternion falls back to identity.
func orientationFromXYZW(q []float64) spatialmath.Orientation {
	x, y, z, w := q[0], q[1], q[2], q[3]
	n := math.Sqrt(x*x + y*y + z*z + w*w)
	if n < 1e-12 {
		return spatialmath.NewZeroOrientation()
	}
	return &spatialmath.Quaternion{Real: w / n, Imag: x / n, Jmag: y / n, Kmag: z / n}
}

// parseFloats splits a line on commas/whitespace and requires exactly n
// numeric fields.
func parseFloats(line string, n int) ([]float64, error) {
	parts := strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	vals := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("non-numeric field %q in line %q", p, line)
		}
		vals = append(vals, v)
	}
	if len(vals) != n {
		return nil, fmt.Errorf("expected %d floats, got %d in line %q", n, len(vals), line)
	}
	return vals, nil
}
