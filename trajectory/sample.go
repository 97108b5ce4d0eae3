package trajectory

import "sort"

// Sample evaluates the trajectory at the given time by linear interpolation.
// Times at or before the first sample return the first pose; times at or
// after the last sample return the last pose. Each trajectory is clamped on
// its own span, so trajectories with different ranges can be sampled at a
// shared query time independently.
func (t *Trajectory) Sample(at float64) Pose {
	n := len(t.Times)
	if at <= t.Times[0] {
		return t.Poses[0]
	}
	if at >= t.Times[n-1] {
		return t.Poses[n-1]
	}

	i := sort.SearchFloat64s(t.Times, at)
	t0, t1 := t.Times[i-1], t.Times[i]
	// Degenerate bracket. Parse dedups these, but guard anyway rather
	// than divide by ~0.
	if t1-t0 < timeEpsilon {
		return t.Poses[i]
	}

	r := (at - t0) / (t1 - t0)
	q0, q1 := t.Poses[i-1], t.Poses[i]
	var out Pose
	for k := 0; k < NumJoints; k++ {
		out[k] = (1-r)*q0[k] + r*q1[k]
	}
	return out
}
