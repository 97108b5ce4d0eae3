// Package trajectory parses joint trajectory and tool-center-point logs and
// evaluates poses at arbitrary query times. It is independent of any rig or
// visualizer; the root package wires its output to external components.
package trajectory

// NumJoints is the joint count of the trajectory file format: every row
// carries 7 joint positions and 7 joint velocities after the timestamp.
const NumJoints = 7

// timeEpsilon is the tolerance under which two sample times are considered
// identical, both for dedup on parse and for degenerate intervals on sample.
const timeEpsilon = 1e-12

// Pose is a joint-position vector for one actuator group at one instant,
// in radians.
type Pose [NumJoints]float64

// Trajectory is a time-sorted, deduplicated sequence of pose samples for one
// arm. Times are strictly increasing and never empty; both are guaranteed by
// Parse, which is the only constructor.
type Trajectory struct {
	Times []float64
	Poses []Pose
}

// Len returns the number of samples.
func (t *Trajectory) Len() int { return len(t.Times) }

// Start returns the time of the first sample.
func (t *Trajectory) Start() float64 { return t.Times[0] }

// End returns the time of the last sample.
func (t *Trajectory) End() float64 { return t.Times[len(t.Times)-1] }

// Duration returns End-Start.
func (t *Trajectory) Duration() float64 { return t.End() - t.Start() }
