// Package armscrub loads dual-arm joint trajectories and tool-center-point
// logs and drives an external rig and visualizer from them: scrubbing joint
// poses along the union timeline, scattering TCP markers, and round-tripping
// static scene geometry through the MoveIt .scene format.
package armscrub

import (
	"context"
	"fmt"
	"sort"

	"go.viam.com/rdk/logging"

	"github.com/KejiaChen/armscrub/scene"
	"github.com/KejiaChen/armscrub/trajectory"
)

// Arm identifies one independently loaded actuator group.
type Arm string

const (
	ArmA Arm = "A"
	ArmB Arm = "B"
)

// minScrubDuration guards the scrub-to-time mapping against a zero-length
// union range (single-sample trajectories).
const minScrubDuration = 1e-9

// Session owns all mutable replay state: the loaded trajectory set, the
// scrub fraction, and the memoized joint bindings. It is single-writer and
// not safe for concurrent use; every load, clear or scrub tick runs to
// completion before the next.
type Session struct {
	logger logging.Logger
	rig    Rig
	sink   SceneSink

	// Binding is the joint naming configuration. Mutating it does not
	// require any explicit invalidation; the resolver compares the full
	// tuple on every use.
	Binding BindingConfig

	// OnTruncate, when set, is called whenever a sampled pose and the
	// resolved handle list differ in length. Truncation itself is
	// silent; this hook only makes it observable.
	OnTruncate func(arm Arm, poseLen, handleLen int)

	trajectories map[Arm]*trajectory.Trajectory
	bindings     map[Arm]*armBinding
	scrub        float64
	time         float64

	sceneObjects []scene.Object
	spawned      map[string]bool
}

// NewSession creates a Session around the given rig and scene sink.
func NewSession(rig Rig, sink SceneSink, logger logging.Logger) *Session {
	return &Session{
		logger:       logger,
		rig:          rig,
		sink:         sink,
		Binding:      DefaultBindingConfig(),
		trajectories: make(map[Arm]*trajectory.Trajectory),
		bindings:     make(map[Arm]*armBinding),
		spawned:      make(map[string]bool),
	}
}

// LoadArm parses a trajectory file and installs it for the given arm,
// replacing any previous trajectory wholesale. On parse failure the
// previously loaded trajectory, if any, is left untouched. The current
// scrub position is re-applied so the rig reflects the new data.
func (s *Session) LoadArm(ctx context.Context, arm Arm, path string, opts trajectory.ParseOptions) error {
	traj, err := trajectory.ParseFile(path, opts)
	if err != nil {
		return fmt.Errorf("arm %s: %w", arm, err)
	}
	s.trajectories[arm] = traj
	s.bindings[arm] = nil
	s.logger.Infof("Arm %s: %d samples (%.3fs)", arm, traj.Len(), traj.Duration())
	s.ApplyScrub(ctx)
	return nil
}

// ClearArm drops the trajectory and binding cache for the given arm.
func (s *Session) ClearArm(arm Arm) {
	delete(s.trajectories, arm)
	s.bindings[arm] = nil
	s.time = 0
	s.logger.Infof("Cleared arm %s", arm)
}

// Trajectory returns the loaded trajectory for the arm, or nil.
func (s *Session) Trajectory(arm Arm) *trajectory.Trajectory {
	return s.trajectories[arm]
}

// TimeRange returns the union time range over all loaded trajectories:
// the min of all starts to the max of all ends. With nothing loaded it is
// the fixed fallback [0, 1].
func (s *Session) TimeRange() (float64, float64) {
	first := true
	var tmin, tmax float64
	for _, traj := range s.trajectories {
		if first {
			tmin, tmax = traj.Start(), traj.End()
			first = false
			continue
		}
		if traj.Start() < tmin {
			tmin = traj.Start()
		}
		if traj.End() > tmax {
			tmax = traj.End()
		}
	}
	if first {
		return 0, 1
	}
	return tmin, tmax
}

// Scrub returns the current scrub fraction.
func (s *Session) Scrub() float64 { return s.scrub }

// Time returns the absolute time of the last applied scrub position.
func (s *Session) Time() float64 { return s.time }

// SetScrub stores a scrub fraction, clamped to [0, 1], and applies the
// resulting pose to the rig.
func (s *Session) SetScrub(ctx context.Context, frac float64) {
	if frac < 0 {
		frac = 0
	} else if frac > 1 {
		frac = 1
	}
	s.scrub = frac
	s.ApplyScrub(ctx)
}

// ApplyScrub samples every loaded trajectory at the current scrub position
// and pushes the joint angles to the rig. Failures while applying are
// logged and swallowed; this runs on every interactive tick and must never
// surface an error to the caller.
func (s *Session) ApplyScrub(ctx context.Context) {
	t0, t1 := s.TimeRange()
	duration := t1 - t0
	if duration < minScrubDuration {
		duration = minScrubDuration
	}
	at := t0 + s.scrub*duration
	s.time = at

	for _, arm := range s.loadedArms() {
		pose := s.trajectories[arm].Sample(at)
		handles := s.armHandles(arm)

		n := len(handles)
		if len(pose) != n && s.OnTruncate != nil {
			s.OnTruncate(arm, len(pose), n)
		}
		if n > len(pose) {
			n = len(pose)
		}
		for j := 0; j < n; j++ {
			h := handles[j]
			if h == nil {
				continue
			}
			if err := h.SetAngle(ctx, pose[j]); err != nil {
				s.logger.Errorf("Scrub apply arm %s joint %d: %v", arm, j, err)
			}
		}
	}
}

// loadedArms returns the loaded arm keys in stable order.
func (s *Session) loadedArms() []Arm {
	arms := make([]Arm, 0, len(s.trajectories))
	for a := range s.trajectories {
		arms = append(arms, a)
	}
	sort.Slice(arms, func(i, j int) bool { return arms[i] < arms[j] })
	return arms
}
