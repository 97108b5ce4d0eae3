package armscrub

import (
	"fmt"
	"path/filepath"

	"github.com/golang/geo/r3"

	"github.com/KejiaChen/armscrub/trajectory"
)

// MarkerOptions controls TCP marker scattering.
type MarkerOptions struct {
	// Radius of each marker sphere, in scene units.
	Radius float64
	// Step keeps every Nth point; 0 or 1 keeps all.
	Step int
	// Material name looked up on the sink; unknown names fall back to the
	// sink default.
	Material string
	// YOffset shifts every marker along Y, used to separate the two arms'
	// traces in a shared scene.
	YOffset float64
}

// tcpCollection names the marker collection for one arm and source file.
func tcpCollection(arm Arm, path string) string {
	return fmt.Sprintf("TCP %s (%s)", arm, filepath.Base(path))
}

// VisualizeTCP parses a TCP log and scatters one sphere marker per
// (downsampled) translation into the scene sink. Returns the number of
// markers drawn. A parse failure or draw failure fails the whole action.
func (s *Session) VisualizeTCP(arm Arm, path string, popts trajectory.TCPOptions, opts MarkerOptions) (int, error) {
	pts, err := trajectory.ParseTCPFile(path, popts)
	if err != nil {
		return 0, fmt.Errorf("TCP %s: %w", arm, err)
	}
	pts = trajectory.Downsample(pts, opts.Step)

	if opts.Material != "" && !s.sink.HasMaterial(opts.Material) {
		s.logger.Warnf("Material %q not found; using default", opts.Material)
	}

	coll := tcpCollection(arm, path)
	for i, p := range pts {
		name := fmt.Sprintf("%s/%d", coll, i)
		center := r3.Vector{X: p.X, Y: p.Y + opts.YOffset, Z: p.Z}
		if err := s.sink.DrawSphere(name, center, opts.Radius, opts.Material); err != nil {
			return i, fmt.Errorf("TCP %s: draw marker %d: %w", arm, i, err)
		}
	}
	s.logger.Infof("TCP %s: plotted %d points", arm, len(pts))
	return len(pts), nil
}

// ClearTCP removes the TCP marker collections for one arm.
func (s *Session) ClearTCP(arm Arm) error {
	return s.sink.Clear(fmt.Sprintf("TCP %s (", arm))
}
