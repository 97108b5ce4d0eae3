package armscrub

import (
	"fmt"
	"strings"

	"github.com/KejiaChen/armscrub/trajectory"
)

// BindingConfig is the naming convention used to resolve joint handles on
// the rig: joint index j maps to object `{BaseName}{j+1}{suffix}` where
// suffix is per-arm, each expected to expose a sub-handle named BoneName.
type BindingConfig struct {
	BaseName   string
	BoneName   string
	StartIndex int
	Joints     int
	SuffixA    string
	SuffixB    string
}

// DefaultBindingConfig matches a Franka-style link naming scheme with the
// two arms distinguished by duplicate-object suffixes.
func DefaultBindingConfig() BindingConfig {
	return BindingConfig{
		BaseName:   "fer_link",
		BoneName:   "Bone",
		StartIndex: 0,
		Joints:     trajectory.NumJoints,
		SuffixA:    ".001",
		SuffixB:    ".002",
	}
}

// suffix returns the per-arm object name suffix.
func (c BindingConfig) suffix(arm Arm) string {
	if arm == ArmB {
		return c.SuffixB
	}
	return c.SuffixA
}

// bindingKey is the full tuple a resolution depends on. Any change forces
// re-resolution and discards the stale handle list entirely.
type bindingKey struct {
	base   string
	bone   string
	start  int
	joints int
	suffix string
}

// armBinding is a memoized handle list for one arm.
type armBinding struct {
	key     bindingKey
	handles []JointHandle
}

// armHandles resolves (or returns the cached) ordered joint handle list for
// an arm. Unresolvable joints become nil placeholders at their position
// rather than aborting; all failures of one resolution are reported in a
// single diagnostic.
func (s *Session) armHandles(arm Arm) []JointHandle {
	key := bindingKey{
		base:   s.Binding.BaseName,
		bone:   s.Binding.BoneName,
		start:  s.Binding.StartIndex,
		joints: s.Binding.Joints,
		suffix: s.Binding.suffix(arm),
	}
	if cached := s.bindings[arm]; cached != nil && cached.key == key {
		return cached.handles
	}

	handles := make([]JointHandle, 0, key.joints)
	var unresolved []string
	for j := key.start; j < key.start+key.joints; j++ {
		name := fmt.Sprintf("%s%d%s", key.base, j+1, key.suffix)
		h, err := s.rig.Joint(name, key.bone)
		if err != nil {
			unresolved = append(unresolved, err.Error())
			handles = append(handles, nil)
			continue
		}
		handles = append(handles, h)
	}
	if len(unresolved) > 0 {
		s.logger.Warnf("Mapping warnings %s: %s", arm, strings.Join(unresolved, "; "))
	}

	s.bindings[arm] = &armBinding{key: key, handles: handles}
	return handles
}
