package scene

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// header is the fixed first line of a .scene file.
const header = "(noname)+"

// ErrNoObjects is returned when an export is attempted with nothing to write.
var ErrNoObjects = errors.New("no objects to export")

// Write emits the objects in .scene format. Objects are sorted
// case-insensitively by name and names have spaces replaced by underscores,
// so identical object sets always produce identical files.
func Write(w io.Writer, objs []Object) error {
	if len(objs) == 0 {
		return ErrNoObjects
	}

	sorted := make([]Object, len(objs))
	copy(sorted, objs)
	sort.SliceStable(sorted, func(a, b int) bool {
		return strings.ToLower(sorted[a].Name) < strings.ToLower(sorted[b].Name)
	})

	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, header)
	for _, o := range sorted {
		name := strings.ReplaceAll(strings.TrimSpace(o.Name), " ", "_")
		pt := o.Pose.Point()
		q := o.Pose.Orientation().Quaternion()
		shape := o.Shape
		if shape == "" {
			shape = ShapeBox
		}

		fmt.Fprintf(bw, "* %s\n", name)
		fmt.Fprintf(bw, "%.6f %.6f %.6f\n", pt.X, pt.Y, pt.Z)
		// File order is x y z w.
		fmt.Fprintf(bw, "%.6f %.6f %.6f %.6f\n", q.Imag, q.Jmag, q.Kmag, q.Real)
		fmt.Fprintln(bw, "1")
		fmt.Fprintln(bw, shape)
		fmt.Fprintf(bw, "%.6f %.6f %.6f\n", o.Size.X, o.Size.Y, o.Size.Z)
		fmt.Fprintln(bw, "0 0 0")
		fmt.Fprintln(bw, "0 0 0 1")
		fmt.Fprintln(bw, "0 0 0 0")
		fmt.Fprintln(bw, "0")
	}
	fmt.Fprintln(bw, ".")
	return bw.Flush()
}

// WriteFile writes the objects to a .scene file on disk.
func WriteFile(path string, objs []Object) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create scene file: %w", err)
	}
	if err := Write(f, objs); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
