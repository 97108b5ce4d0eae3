package trajectory

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Delimiter selects how data lines are split into fields.
type Delimiter int

const (
	// DelimiterAuto decides per line: comma if present, else tab if
	// present, else whitespace.
	DelimiterAuto Delimiter = iota
	DelimiterSpace
	DelimiterComma
	DelimiterTab
)

func (d Delimiter) String() string {
	switch d {
	case DelimiterAuto:
		return "auto"
	case DelimiterSpace:
		return "space"
	case DelimiterComma:
		return "comma"
	case DelimiterTab:
		return "tab"
	default:
		return "unknown"
	}
}

// ParseDelimiter converts a config/flag string into a Delimiter.
func ParseDelimiter(s string) (Delimiter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return DelimiterAuto, nil
	case "space":
		return DelimiterSpace, nil
	case "comma":
		return DelimiterComma, nil
	case "tab":
		return DelimiterTab, nil
	default:
		return DelimiterAuto, fmt.Errorf("unknown delimiter %q (want auto, space, comma or tab)", s)
	}
}

// TimeUnit is the unit of the timestamp field.
type TimeUnit int

const (
	Seconds TimeUnit = iota
	Milliseconds
)

func (u TimeUnit) String() string {
	switch u {
	case Seconds:
		return "seconds"
	case Milliseconds:
		return "milliseconds"
	default:
		return "unknown"
	}
}

// ParseTimeUnit converts a config/flag string into a TimeUnit.
func ParseTimeUnit(s string) (TimeUnit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "seconds", "s":
		return Seconds, nil
	case "milliseconds", "ms":
		return Milliseconds, nil
	default:
		return Seconds, fmt.Errorf("unknown time unit %q (want seconds or milliseconds)", s)
	}
}

// ParseOptions controls how a trajectory file is interpreted.
type ParseOptions struct {
	Delimiter Delimiter
	TimeUnit  TimeUnit
	// HasHeader discards the first non-comment, non-blank line regardless
	// of its content.
	HasHeader bool
	// Degrees converts the 7 position fields from degrees to radians.
	Degrees bool
}

// minTrajectoryFields is t + 7 positions + 7 velocities. Velocities are
// validated as numeric but not retained.
const minTrajectoryFields = 1 + NumJoints + NumJoints

// ParseFile reads a single-arm trajectory file from disk.
func ParseFile(path string, opts ParseOptions) (*Trajectory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trajectory file: %w", err)
	}
	defer f.Close()
	traj, err := Parse(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return traj, nil
}

// Parse reads a single-arm trajectory from r. Blank lines and lines starting
// with '#' are skipped. Rows are sorted by time and samples closer than
// 1e-12 seconds are collapsed, the later row in file order winning. Any
// malformed row aborts the whole parse; no partial trajectory is returned.
func Parse(r io.Reader, opts ParseOptions) (*Trajectory, error) {
	var (
		times         []float64
		poses         []Pose
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
		if len(vals) < minTrajectoryFields {
			return nil, fmt.Errorf("line %d: expected %d numbers (t + %d pos + %d vel), got %d",
				lineNum, minTrajectoryFields, NumJoints, NumJoints, len(vals))
		}

		t := vals[0]
		if opts.TimeUnit == Milliseconds {
			t *= 0.001
		}
		var pose Pose
		for k := 0; k < NumJoints; k++ {
			v := vals[1+k]
			if opts.Degrees {
				v = v * math.Pi / 180.0
			}
			pose[k] = v
		}
		times = append(times, t)
		poses = append(poses, pose)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read trajectory: %w", err)
	}
	if len(times) == 0 {
		return nil, ErrNoRows
	}

	return sortAndDedup(times, poses), nil
}

// sortAndDedup stable-sorts samples by time and collapses samples whose
// times differ by less than timeEpsilon, keeping the later sample.
func sortAndDedup(times []float64, poses []Pose) *Trajectory {
	idx := make([]int, len(times))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return times[idx[a]] < times[idx[b]] })

	out := &Trajectory{
		Times: make([]float64, 0, len(times)),
		Poses: make([]Pose, 0, len(poses)),
	}
	for _, i := range idx {
		t, q := times[i], poses[i]
		if n := len(out.Times); n > 0 && math.Abs(t-out.Times[n-1]) < timeEpsilon {
			out.Times[n-1] = t
			out.Poses[n-1] = q
			continue
		}
		out.Times = append(out.Times, t)
		out.Poses = append(out.Poses, q)
	}
	return out
}

// parseFields splits a data line per the delimiter mode and parses every
// field as a float. A token that does not parse fails the whole line.
func parseFields(s string, d Delimiter) ([]float64, error) {
	var parts []string
	switch d {
	case DelimiterComma:
		parts = strings.Split(s, ",")
	case DelimiterTab:
		parts = strings.Split(s, "\t")
	case DelimiterSpace:
		parts = strings.Fields(s)
	default: // DelimiterAuto
		switch {
		case strings.Contains(s, ","):
			parts = strings.Split(s, ",")
		case strings.Contains(s, "\t"):
			parts = strings.Split(s, "\t")
		default:
			parts = strings.Fields(s)
		}
	}

	vals := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("non-numeric data %q in line %q", p, s)
		}
		vals = append(vals, v)
	}
	return vals, nil
}
