package armscrub

import (
	"fmt"

	"github.com/golang/geo/r3"
	viz "github.com/viam-labs/motion-tools/client/client"

	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/spatialmath"
)

// SceneSink is the minimal surface of the host visualizer: create marker
// spheres and boxes, clear, and delegate mesh export. Collections are
// flattened into "collection/object" name prefixes.
type SceneSink interface {
	DrawSphere(name string, center r3.Vector, radius float64, material string) error
	DrawBox(name string, pose spatialmath.Pose, size r3.Vector, material string) error
	// HasMaterial reports whether the material name maps to something the
	// sink can render. Unknown materials fall back to a default.
	HasMaterial(material string) bool
	// Clear removes drawn objects under the given collection prefix. An
	// empty prefix clears everything.
	Clear(prefix string) error
	// ExportSTL writes the named objects as STL meshes into dir. Sinks
	// without mesh access report the whole action as unsupported.
	ExportSTL(names []string, dir string) error
}

// defaultColor is used when a material name is unknown to the sink.
const defaultColor = "grey"

// VizSink draws into the motion-tools visualizer. Materials are mapped to
// visualizer colors through a palette; unknown materials render grey.
type VizSink struct {
	logger  logging.Logger
	palette map[string]string
}

// NewVizSink creates a SceneSink backed by a running motion-tools
// visualizer.
func NewVizSink(logger logging.Logger) *VizSink {
	return &VizSink{
		logger: logger,
		palette: map[string]string{
			"trajectoryBlue":  "blue",
			"trajectoryRed":   "red",
			"trajectoryGreen": "green",
			"markerBlack":     "black",
			"markerWhite":     "white",
		},
	}
}

func (v *VizSink) color(material string) string {
	if c, ok := v.palette[material]; ok {
		return c
	}
	return defaultColor
}

// HasMaterial reports whether the material is in the palette.
func (v *VizSink) HasMaterial(material string) bool {
	_, ok := v.palette[material]
	return ok
}

// DrawSphere draws a named sphere marker.
func (v *VizSink) DrawSphere(name string, center r3.Vector, radius float64, material string) error {
	sphere, err := spatialmath.NewSphere(spatialmath.NewPoseFromPoint(center), radius, name)
	if err != nil {
		return fmt.Errorf("create sphere %q: %w", name, err)
	}
	return viz.DrawGeometry(sphere, v.color(material))
}

// DrawBox draws a named box with the given pose and extents.
func (v *VizSink) DrawBox(name string, pose spatialmath.Pose, size r3.Vector, material string) error {
	box, err := spatialmath.NewBox(pose, size, name)
	if err != nil {
		return fmt.Errorf("create box %q: %w", name, err)
	}
	return viz.DrawGeometry(box, v.color(material))
}

// Clear removes spatial objects. motion-tools has no per-prefix removal, so
// any prefix clears the whole scene; the coarseness is logged.
func (v *VizSink) Clear(prefix string) error {
	if prefix != "" {
		v.logger.Debugf("motion-tools cannot clear by prefix; clearing all spatial objects (wanted %q)", prefix)
	}
	return viz.RemoveAllSpatialObjects()
}

// ExportSTL is unsupported: the visualizer exposes no mesh readback.
func (v *VizSink) ExportSTL(names []string, dir string) error {
	return fmt.Errorf("STL export is not supported by the motion-tools sink (%d object(s) requested)", len(names))
}
