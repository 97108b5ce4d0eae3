package armscrub

import (
	"errors"
	"fmt"

	"github.com/KejiaChen/armscrub/scene"
)

// ImportScene parses a MoveIt .scene file, spawns a box in the sink for
// every box entry, and retains the created objects so a later ExportScene
// reproduces them. Names colliding with already-spawned objects get a
// Blender-style ".NNN" suffix. Non-box entries are skipped. Returns the
// number of objects created.
func (s *Session) ImportScene(path, material string) (int, error) {
	objs, err := scene.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("scene import: %w", err)
	}
	if len(objs) == 0 {
		return 0, errors.New("scene import: no entries found")
	}

	created := 0
	for _, o := range objs {
		if o.Shape != scene.ShapeBox {
			s.logger.Debugf("Skipping non-box entry %q (shape %q)", o.Name, o.Shape)
			continue
		}
		name := s.uniqueName(o.Name)
		if err := s.sink.DrawBox(name, o.Pose, o.Size, material); err != nil {
			return created, fmt.Errorf("scene import: spawn %q: %w", name, err)
		}
		s.spawned[name] = true
		o.Name = name
		s.sceneObjects = append(s.sceneObjects, o)
		created++
	}
	s.logger.Infof("Imported %d box(es) from %s", created, path)
	return created, nil
}

// ExportScene writes all objects retained from scene imports to a .scene
// file. Fails when nothing has been imported.
func (s *Session) ExportScene(path string) (int, error) {
	if len(s.sceneObjects) == 0 {
		return 0, errors.New("scene export: no objects to export")
	}
	if err := scene.WriteFile(path, s.sceneObjects); err != nil {
		return 0, fmt.Errorf("scene export: %w", err)
	}
	s.logger.Infof("Wrote %d object(s) to %s", len(s.sceneObjects), path)
	return len(s.sceneObjects), nil
}

// SceneObjects returns the objects retained from scene imports.
func (s *Session) SceneObjects() []scene.Object {
	return s.sceneObjects
}

// ExportSTL delegates mesh export of all retained scene objects to the
// sink. Fails with a descriptive message when nothing is selected or the
// sink has no mesh access; no partial writes occur.
func (s *Session) ExportSTL(dir string) error {
	if len(s.sceneObjects) == 0 {
		return errors.New("STL export: no objects selected")
	}
	names := make([]string, 0, len(s.sceneObjects))
	for _, o := range s.sceneObjects {
		names = append(names, o.Name)
	}
	if err := s.sink.ExportSTL(names, dir); err != nil {
		return fmt.Errorf("STL export: %w", err)
	}
	return nil
}

// uniqueName returns base, or base.NNN for the first free NNN when base is
// already spawned.
func (s *Session) uniqueName(base string) string {
	if !s.spawned[base] {
		return base
	}
	for i := 1; ; i++ {
		name := fmt.Sprintf("%s.%03d", base, i)
		if !s.spawned[name] {
			return name
		}
	}
}
