// Package scene reads and writes MoveIt planning-scene geometry in the
// text `.scene` format: one block per object carrying a name, a world-frame
// position and quaternion, a shape keyword and axis-aligned extents.
package scene

import (
	"github.com/golang/geo/r3"

	"go.viam.com/rdk/spatialmath"
)

// ShapeBox is the only shape this package instantiates on import; other
// shape keywords round-trip through the codec but are skipped by consumers.
const ShapeBox = "box"

// Object is one entry of a planning scene: a named shape with a world-frame
// pose and axis-aligned extents in meters.
type Object struct {
	Name  string
	Pose  spatialmath.Pose
	Size  r3.Vector
	Shape string
}

// NewBox returns a box Object at the given position and orientation.
func NewBox(name string, position r3.Vector, orientation spatialmath.Orientation, size r3.Vector) Object {
	return Object{
		Name:  name,
		Pose:  spatialmath.NewPose(position, orientation),
		Size:  size,
		Shape: ShapeBox,
	}
}
