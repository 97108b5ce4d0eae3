package armscrub

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-viper/mapstructure/v2"
	"google.golang.org/protobuf/encoding/protojson"

	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/motionplan"
	"go.viam.com/rdk/referenceframe"
	"go.viam.com/rdk/services/motion"

	"github.com/KejiaChen/armscrub/trajectory"
)

// motionServiceName is the resource name of the builtin motion service.
const motionServiceName = "builtin"

// Replayer pushes parsed trajectories through a live machine's motion
// service: it plans a transit move to the first sample so replay does not
// start with a jump, then executes the file's joint configurations step by
// step via DoExecute.
type Replayer struct {
	logger logging.Logger
	motion motion.Service

	// PlansDir, when set, is a directory for persisting converted
	// trajectories to disk so repeat replays skip the conversion.
	PlansDir string
}

// NewReplayer creates a Replayer over the given motion service.
func NewReplayer(m motion.Service, logger logging.Logger) *Replayer {
	return &Replayer{logger: logger, motion: m}
}

// ReplayArm converts the trajectory into motion-service steps for the named
// arm component and executes them, preceded by a planned transit to the
// first sample.
func (r *Replayer) ReplayArm(ctx context.Context, componentName string, traj *trajectory.Trajectory) error {
	steps := r.loadCachedTrajectory(cacheFileName(componentName))
	if steps == nil {
		steps = toMotionTrajectory(traj, componentName)
		r.saveCachedTrajectory(cacheFileName(componentName), steps)
	}
	if len(steps) == 0 {
		return fmt.Errorf("empty trajectory for %s", componentName)
	}

	transit, err := r.planTransit(ctx, componentName, steps[0][componentName])
	if err != nil {
		return fmt.Errorf("plan transit for %s: %w", componentName, err)
	}
	if err := r.execute(ctx, transit); err != nil {
		return fmt.Errorf("transit to start: %w", err)
	}
	if err := r.execute(ctx, steps); err != nil {
		return fmt.Errorf("replay %s: %w", componentName, err)
	}
	return nil
}

// toMotionTrajectory converts a parsed trajectory into a motion-service
// trajectory keyed by the component name, one step per sample.
func toMotionTrajectory(traj *trajectory.Trajectory, componentName string) motionplan.Trajectory {
	steps := make(motionplan.Trajectory, 0, traj.Len())
	for _, pose := range traj.Poses {
		inputs := make([]referenceframe.Input, trajectory.NumJoints)
		for k, v := range pose {
			inputs[k] = referenceframe.Input(v)
		}
		steps = append(steps, map[string][]referenceframe.Input{componentName: inputs})
	}
	return steps
}

// planTransit calls the motion service's DoPlan DoCommand to plan (without
// executing) a collision-aware move that brings the arm to the goal joint
// configuration.
func (r *Replayer) planTransit(ctx context.Context, componentName string, goal []referenceframe.Input) (motionplan.Trajectory, error) {
	goalVals := make([]interface{}, len(goal))
	for i, v := range goal {
		goalVals[i] = v
	}
	req := motion.MoveReq{
		ComponentName: componentName,
		Extra: map[string]interface{}{
			"goal_state": map[string]interface{}{
				"configuration": map[string]interface{}{componentName: goalVals},
			},
		},
	}

	proto, err := req.ToProto(motionServiceName)
	if err != nil {
		return nil, fmt.Errorf("build plan proto: %w", err)
	}
	bytes, err := protojson.Marshal(proto)
	if err != nil {
		return nil, fmt.Errorf("marshal plan request: %w", err)
	}
	resp, err := r.motion.DoCommand(ctx, map[string]interface{}{
		"plan": string(bytes),
	})
	if err != nil {
		return nil, fmt.Errorf("DoPlan: %w", err)
	}
	raw, ok := resp["plan"]
	if !ok {
		return nil, fmt.Errorf("DoPlan response missing 'plan' key")
	}
	var planned motionplan.Trajectory
	if err := mapstructure.Decode(raw, &planned); err != nil {
		return nil, fmt.Errorf("decode planned trajectory: %w", err)
	}
	return planned, nil
}

// execute calls the motion service's DoExecute DoCommand to run a
// trajectory.
func (r *Replayer) execute(ctx context.Context, steps motionplan.Trajectory) error {
	r.logger.Debugf("execute: %d trajectory steps", len(steps))

	resp, err := r.motion.DoCommand(ctx, map[string]interface{}{
		"execute": steps,
	})
	if err != nil {
		return fmt.Errorf("DoExecute: %w", err)
	}
	if ok, _ := resp["execute"].(bool); !ok {
		return fmt.Errorf("DoExecute returned non-true response: %v", resp["execute"])
	}
	return nil
}

func cacheFileName(componentName string) string {
	return componentName + ".json"
}

// loadCachedTrajectory loads a converted trajectory from PlansDir/filename.
// Returns nil if PlansDir is unset, the file doesn't exist, or parsing
// fails.
func (r *Replayer) loadCachedTrajectory(filename string) motionplan.Trajectory {
	if r.PlansDir == "" {
		return nil
	}
	path := filepath.Join(r.PlansDir, filename)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var steps motionplan.Trajectory
	if err := json.Unmarshal(data, &steps); err != nil {
		r.logger.Warnf("Failed to parse cached trajectory %s: %v", path, err)
		return nil
	}
	r.logger.Infof("Loaded cached trajectory from %s (%d steps)", path, len(steps))
	return steps
}

// saveCachedTrajectory writes a converted trajectory to PlansDir/filename
// as JSON. No-op if PlansDir is unset; logs a warning on write failure.
func (r *Replayer) saveCachedTrajectory(filename string, steps motionplan.Trajectory) {
	if r.PlansDir == "" {
		return
	}
	if err := os.MkdirAll(r.PlansDir, 0o755); err != nil {
		r.logger.Warnf("Failed to create plans dir %s: %v", r.PlansDir, err)
		return
	}
	path := filepath.Join(r.PlansDir, filename)
	data, err := json.Marshal(steps)
	if err != nil {
		r.logger.Warnf("Failed to serialize trajectory for %s: %v", path, err)
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		r.logger.Warnf("Failed to write trajectory to %s: %v", path, err)
		return
	}
	r.logger.Infof("Saved trajectory to %s (%d steps)", path, len(steps))
}
