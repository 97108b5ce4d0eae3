package armscrub

import (
	"context"
	"fmt"
	"math"

	"go.viam.com/rdk/components/servo"
	"go.viam.com/rdk/robot"
)

// JointHandle applies a single joint angle on the external rig.
type JointHandle interface {
	// SetAngle sets the joint to the given angle in radians.
	SetAngle(ctx context.Context, radians float64) error
}

// Rig resolves named joints on the external rig. Implementations decide
// what an object/bone name pair means for their backend; boneName exists
// for armature-style rigs where a joint object carries named sub-handles.
type Rig interface {
	Joint(objectName, boneName string) (JointHandle, error)
}

// ServoRig maps each joint to a servo component on a Viam machine, looked
// up by object name. Servo components have no sub-handles, so the bone name
// is not used for resolution.
type ServoRig struct {
	machine robot.Robot
}

// NewServoRig creates a Rig over the given machine's servo components.
func NewServoRig(machine robot.Robot) *ServoRig {
	return &ServoRig{machine: machine}
}

// Joint resolves a servo by object name.
func (r *ServoRig) Joint(objectName, boneName string) (JointHandle, error) {
	s, err := servo.FromProvider(r.machine, objectName)
	if err != nil {
		return nil, fmt.Errorf("servo %q: %w", objectName, err)
	}
	return &servoJoint{servo: s}, nil
}

// servoJoint drives one servo. Joint zero maps to the servo midpoint so
// negative joint angles stay on the servo's [0, 180] degree range.
type servoJoint struct {
	servo servo.Servo
}

func (j *servoJoint) SetAngle(ctx context.Context, radians float64) error {
	deg := radians*180.0/math.Pi + 90.0
	if deg < 0 {
		deg = 0
	} else if deg > 180 {
		deg = 180
	}
	return j.servo.Move(ctx, uint32(math.Round(deg)), nil)
}

// LogRig is a Rig that resolves every joint and logs assignments instead of
// moving hardware. Useful for dry runs of scrub sessions without a machine.
type LogRig struct {
	Printf func(format string, args ...interface{})
}

// Joint always resolves; the handle logs each assignment.
func (r *LogRig) Joint(objectName, boneName string) (JointHandle, error) {
	return &logJoint{printf: r.Printf, name: objectName, bone: boneName}, nil
}

type logJoint struct {
	printf func(format string, args ...interface{})
	name   string
	bone   string
}

func (j *logJoint) SetAngle(_ context.Context, radians float64) error {
	if j.printf != nil {
		j.printf("%s/%s = %.6f rad", j.name, j.bone, radians)
	}
	return nil
}
