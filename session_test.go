package armscrub

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/spatialmath"

	"github.com/KejiaChen/armscrub/scene"
	"github.com/KejiaChen/armscrub/trajectory"
)

// fakeRig resolves every joint and records assignments by object name.
type fakeRig struct {
	resolveCount int
	failNames    map[string]bool
	setErr       error
	angles       map[string][]float64
}

func newFakeRig() *fakeRig {
	return &fakeRig{angles: make(map[string][]float64)}
}

func (r *fakeRig) Joint(objectName, boneName string) (JointHandle, error) {
	r.resolveCount++
	if r.failNames[objectName] {
		return nil, fmt.Errorf("no joint %q", objectName)
	}
	return &fakeJoint{rig: r, name: objectName}, nil
}

type fakeJoint struct {
	rig  *fakeRig
	name string
}

func (j *fakeJoint) SetAngle(_ context.Context, radians float64) error {
	j.rig.angles[j.name] = append(j.rig.angles[j.name], radians)
	return j.rig.setErr
}

// lastAngle returns the most recent assignment for an object name.
func (r *fakeRig) lastAngle(t *testing.T, name string) float64 {
	t.Helper()
	got := r.angles[name]
	if len(got) == 0 {
		t.Fatalf("no assignment recorded for %q", name)
	}
	return got[len(got)-1]
}

// fakeSink records draw calls in order.
type fakeSink struct {
	spheres   []drawnSphere
	boxes     []drawnBox
	cleared   []string
	stlDirs   []string
	materials map[string]bool
	drawErr   error
}

type drawnSphere struct {
	name     string
	center   r3.Vector
	radius   float64
	material string
}

type drawnBox struct {
	name string
	pose spatialmath.Pose
	size r3.Vector
}

func newFakeSink() *fakeSink {
	return &fakeSink{materials: map[string]bool{"trajectoryBlue": true}}
}

func (f *fakeSink) DrawSphere(name string, center r3.Vector, radius float64, material string) error {
	if f.drawErr != nil {
		return f.drawErr
	}
	f.spheres = append(f.spheres, drawnSphere{name, center, radius, material})
	return nil
}

func (f *fakeSink) DrawBox(name string, pose spatialmath.Pose, size r3.Vector, material string) error {
	if f.drawErr != nil {
		return f.drawErr
	}
	f.boxes = append(f.boxes, drawnBox{name, pose, size})
	return nil
}

func (f *fakeSink) HasMaterial(material string) bool { return f.materials[material] }

func (f *fakeSink) Clear(prefix string) error {
	f.cleared = append(f.cleared, prefix)
	return nil
}

func (f *fakeSink) ExportSTL(names []string, dir string) error {
	f.stlDirs = append(f.stlDirs, dir)
	return nil
}

// writeTrajFile writes a minimal trajectory file where every joint of the
// pose at time t has the single value v.
func writeTrajFile(t *testing.T, rows ...[2]float64) string {
	t.Helper()
	var b strings.Builder
	for _, r := range rows {
		b.WriteString(fmt.Sprintf("%g", r[0]))
		for i := 0; i < 2*trajectory.NumJoints; i++ {
			val := r[1]
			if i >= trajectory.NumJoints {
				val = 0 // velocities, discarded
			}
			b.WriteString(fmt.Sprintf(" %g", val))
		}
		b.WriteString("\n")
	}
	path := filepath.Join(t.TempDir(), "traj.txt")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestSession(t *testing.T, rig Rig, sink SceneSink) *Session {
	t.Helper()
	return NewSession(rig, sink, logging.NewTestLogger(t))
}

func TestScrubOverUnionRange(t *testing.T) {
	ctx := context.Background()
	rig := newFakeRig()
	s := newTestSession(t, rig, newFakeSink())

	// Arm A spans [0,1]s, arm B spans [2,3]s; the union is [0,3].
	pathA := writeTrajFile(t, [2]float64{0, 1.0}, [2]float64{1, 2.0})
	pathB := writeTrajFile(t, [2]float64{2, 5.0}, [2]float64{3, 6.0})
	if err := s.LoadArm(ctx, ArmA, pathA, trajectory.ParseOptions{}); err != nil {
		t.Fatal(err)
	}
	if err := s.LoadArm(ctx, ArmB, pathB, trajectory.ParseOptions{}); err != nil {
		t.Fatal(err)
	}

	t0, t1 := s.TimeRange()
	if t0 != 0 || t1 != 3 {
		t.Errorf("expected union range [0, 3], got [%g, %g]", t0, t1)
	}

	s.SetScrub(ctx, 0.5)
	if got := s.Time(); got != 1.5 {
		t.Errorf("expected scrub time 1.5, got %g", got)
	}

	// At t=1.5 arm A is past its end (clamp to 2.0) and arm B is before
	// its start (clamp to 5.0).
	if got := rig.lastAngle(t, "fer_link1.001"); got != 2.0 {
		t.Errorf("expected arm A clamped to 2.0, got %g", got)
	}
	if got := rig.lastAngle(t, "fer_link1.002"); got != 5.0 {
		t.Errorf("expected arm B clamped to 5.0, got %g", got)
	}
}

func TestSetScrubClampsFraction(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, newFakeRig(), newFakeSink())

	s.SetScrub(ctx, -0.5)
	if got := s.Scrub(); got != 0 {
		t.Errorf("expected fraction clamped to 0, got %g", got)
	}
	s.SetScrub(ctx, 1.5)
	if got := s.Scrub(); got != 1 {
		t.Errorf("expected fraction clamped to 1, got %g", got)
	}
}

func TestTimeRangeFallbackWhenEmpty(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, newFakeRig(), newFakeSink())

	t0, t1 := s.TimeRange()
	if t0 != 0 || t1 != 1 {
		t.Errorf("expected fallback range [0, 1], got [%g, %g]", t0, t1)
	}
	s.SetScrub(ctx, 0.25)
	if got := s.Time(); got != 0.25 {
		t.Errorf("expected time 0.25 over the fallback range, got %g", got)
	}
}

func TestTruncationToShorterSide(t *testing.T) {
	ctx := context.Background()
	rig := newFakeRig()
	s := newTestSession(t, rig, newFakeSink())
	s.Binding.Joints = 3

	var gotPose, gotHandles int
	s.OnTruncate = func(arm Arm, poseLen, handleLen int) {
		gotPose, gotHandles = poseLen, handleLen
	}

	path := writeTrajFile(t, [2]float64{0, 1.0}, [2]float64{1, 2.0})
	if err := s.LoadArm(ctx, ArmA, path, trajectory.ParseOptions{}); err != nil {
		t.Fatal(err)
	}

	if gotPose != trajectory.NumJoints || gotHandles != 3 {
		t.Errorf("expected truncation hook (7, 3), got (%d, %d)", gotPose, gotHandles)
	}
	if len(rig.angles) != 3 {
		t.Errorf("expected 3 joints driven, got %d", len(rig.angles))
	}
	if _, ok := rig.angles["fer_link4.001"]; ok {
		t.Error("expected joint 4 to be left alone after truncation")
	}
}

func TestBindingMemoization(t *testing.T) {
	ctx := context.Background()
	rig := newFakeRig()
	s := newTestSession(t, rig, newFakeSink())

	path := writeTrajFile(t, [2]float64{0, 1.0}, [2]float64{1, 2.0})
	if err := s.LoadArm(ctx, ArmA, path, trajectory.ParseOptions{}); err != nil {
		t.Fatal(err)
	}
	if rig.resolveCount != trajectory.NumJoints {
		t.Fatalf("expected %d resolutions after load, got %d", trajectory.NumJoints, rig.resolveCount)
	}

	// Repeated scrubs reuse the cached handles.
	s.SetScrub(ctx, 0.3)
	s.SetScrub(ctx, 0.7)
	if rig.resolveCount != trajectory.NumJoints {
		t.Errorf("expected cached handles to be reused, got %d resolutions", rig.resolveCount)
	}

	// Any change to the naming tuple forces a full re-resolution.
	s.Binding.SuffixA = ".003"
	s.ApplyScrub(ctx)
	if rig.resolveCount != 2*trajectory.NumJoints {
		t.Errorf("expected re-resolution after suffix change, got %d resolutions", rig.resolveCount)
	}
	if _, ok := rig.angles["fer_link1.003"]; !ok {
		t.Error("expected new suffix to be used for resolution")
	}

	// Reloading the arm invalidates its cache too.
	if err := s.LoadArm(ctx, ArmA, path, trajectory.ParseOptions{}); err != nil {
		t.Fatal(err)
	}
	if rig.resolveCount != 3*trajectory.NumJoints {
		t.Errorf("expected re-resolution after reload, got %d resolutions", rig.resolveCount)
	}
}

func TestLoadFailureKeepsPreviousTrajectory(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, newFakeRig(), newFakeSink())

	path := writeTrajFile(t, [2]float64{0, 1.0}, [2]float64{1, 2.0})
	if err := s.LoadArm(ctx, ArmA, path, trajectory.ParseOptions{}); err != nil {
		t.Fatal(err)
	}
	prev := s.Trajectory(ArmA)

	err := s.LoadArm(ctx, ArmA, filepath.Join(t.TempDir(), "missing.txt"), trajectory.ParseOptions{})
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
	if s.Trajectory(ArmA) != prev {
		t.Error("expected the previous trajectory to survive a failed load")
	}
}

func TestApplyErrorsAreSwallowed(t *testing.T) {
	ctx := context.Background()
	rig := newFakeRig()
	rig.setErr = fmt.Errorf("servo offline")
	s := newTestSession(t, rig, newFakeSink())

	path := writeTrajFile(t, [2]float64{0, 1.0}, [2]float64{1, 2.0})
	if err := s.LoadArm(ctx, ArmA, path, trajectory.ParseOptions{}); err != nil {
		t.Fatal(err)
	}
	s.SetScrub(ctx, 1.0)

	// Every joint was still attempted despite the errors.
	if len(rig.angles) != trajectory.NumJoints {
		t.Errorf("expected all %d joints attempted, got %d", trajectory.NumJoints, len(rig.angles))
	}
}

func TestUnresolvableJointBecomesPlaceholder(t *testing.T) {
	ctx := context.Background()
	rig := newFakeRig()
	rig.failNames = map[string]bool{"fer_link3.001": true}
	s := newTestSession(t, rig, newFakeSink())

	path := writeTrajFile(t, [2]float64{0, 1.0}, [2]float64{1, 2.0})
	if err := s.LoadArm(ctx, ArmA, path, trajectory.ParseOptions{}); err != nil {
		t.Fatal(err)
	}
	s.SetScrub(ctx, 0)

	if _, ok := rig.angles["fer_link3.001"]; ok {
		t.Error("expected the unresolvable joint to be skipped")
	}
	if _, ok := rig.angles["fer_link4.001"]; !ok {
		t.Error("expected joints after the placeholder to still be driven")
	}
}

func TestClearArm(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, newFakeRig(), newFakeSink())

	path := writeTrajFile(t, [2]float64{0, 1.0}, [2]float64{1, 2.0})
	if err := s.LoadArm(ctx, ArmA, path, trajectory.ParseOptions{}); err != nil {
		t.Fatal(err)
	}
	s.ClearArm(ArmA)
	if s.Trajectory(ArmA) != nil {
		t.Error("expected no trajectory after clear")
	}
	t0, t1 := s.TimeRange()
	if t0 != 0 || t1 != 1 {
		t.Errorf("expected fallback range after clear, got [%g, %g]", t0, t1)
	}
}

// tcpFileRow emits one 17-field row whose row-major translation is (x,y,z).
func tcpFileRow(ts, x, y, z float64) string {
	m := []float64{
		1, 0, 0, x,
		0, 1, 0, y,
		0, 0, 1, z,
		0, 0, 0, 1,
	}
	fields := []string{fmt.Sprintf("%g", ts)}
	for _, v := range m {
		fields = append(fields, fmt.Sprintf("%g", v))
	}
	return strings.Join(fields, " ")
}

func writeTCPFile(t *testing.T, rows ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tcp.txt")
	if err := os.WriteFile(path, []byte(strings.Join(rows, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestVisualizeTCP(t *testing.T) {
	sink := newFakeSink()
	s := newTestSession(t, newFakeRig(), sink)

	path := writeTCPFile(t,
		tcpFileRow(0, 0.1, 0.2, 0.3),
		tcpFileRow(1, 0.4, 0.5, 0.6),
		tcpFileRow(2, 0.7, 0.8, 0.9),
	)
	n, err := s.VisualizeTCP(ArmA, path, trajectory.TCPOptions{Order: trajectory.RowMajor},
		MarkerOptions{Radius: 0.005, Step: 1, Material: "trajectoryBlue", YOffset: 0.281})
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 || len(sink.spheres) != 3 {
		t.Fatalf("expected 3 markers, got n=%d drawn=%d", n, len(sink.spheres))
	}

	first := sink.spheres[0]
	wantPrefix := "TCP A (tcp.txt)/"
	if !strings.HasPrefix(first.name, wantPrefix) {
		t.Errorf("expected marker name prefix %q, got %q", wantPrefix, first.name)
	}
	if math.Abs(first.center.Y-(0.2+0.281)) > 1e-12 {
		t.Errorf("expected Y offset applied, got %g", first.center.Y)
	}
	if first.radius != 0.005 || first.material != "trajectoryBlue" {
		t.Errorf("unexpected marker parameters: %+v", first)
	}
}

func TestVisualizeTCPDownsamples(t *testing.T) {
	sink := newFakeSink()
	s := newTestSession(t, newFakeRig(), sink)

	rows := make([]string, 10)
	for i := range rows {
		rows[i] = tcpFileRow(float64(i), float64(i), 0, 0)
	}
	n, err := s.VisualizeTCP(ArmA, writeTCPFile(t, rows...),
		trajectory.TCPOptions{Order: trajectory.RowMajor}, MarkerOptions{Step: 5})
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("expected every 5th point kept (2 of 10), got %d", n)
	}
}

func TestVisualizeTCPDrawFailureFailsWholeAction(t *testing.T) {
	sink := newFakeSink()
	sink.drawErr = fmt.Errorf("viz down")
	s := newTestSession(t, newFakeRig(), sink)

	path := writeTCPFile(t, tcpFileRow(0, 1, 2, 3))
	if _, err := s.VisualizeTCP(ArmA, path, trajectory.TCPOptions{Order: trajectory.RowMajor}, MarkerOptions{}); err == nil {
		t.Fatal("expected a draw failure to fail the action")
	}
}

func TestClearTCP(t *testing.T) {
	sink := newFakeSink()
	s := newTestSession(t, newFakeRig(), sink)
	if err := s.ClearTCP(ArmB); err != nil {
		t.Fatal(err)
	}
	if len(sink.cleared) != 1 || sink.cleared[0] != "TCP B (" {
		t.Errorf("expected clear with prefix %q, got %v", "TCP B (", sink.cleared)
	}
}

func writeSceneFile(t *testing.T, objs []scene.Object) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.scene")
	if err := scene.WriteFile(path, objs); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestImportSceneSpawnsBoxes(t *testing.T) {
	sink := newFakeSink()
	s := newTestSession(t, newFakeRig(), sink)

	path := writeSceneFile(t, []scene.Object{
		scene.NewBox("table", r3.Vector{X: 1, Y: 2, Z: 3}, spatialmath.NewZeroOrientation(), r3.Vector{X: 0.5, Y: 0.5, Z: 0.1}),
		scene.NewBox("shelf", r3.Vector{Z: 1}, spatialmath.NewZeroOrientation(), r3.Vector{X: 1, Y: 1, Z: 1}),
	})
	n, err := s.ImportScene(path, "trajectoryBlue")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 || len(sink.boxes) != 2 {
		t.Fatalf("expected 2 boxes spawned, got n=%d drawn=%d", n, len(sink.boxes))
	}
	if len(s.SceneObjects()) != 2 {
		t.Errorf("expected 2 retained objects, got %d", len(s.SceneObjects()))
	}
}

func TestImportSceneUniqueNames(t *testing.T) {
	sink := newFakeSink()
	s := newTestSession(t, newFakeRig(), sink)

	path := writeSceneFile(t, []scene.Object{
		scene.NewBox("table", r3.Vector{}, spatialmath.NewZeroOrientation(), r3.Vector{X: 1, Y: 1, Z: 1}),
	})
	if _, err := s.ImportScene(path, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ImportScene(path, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ImportScene(path, ""); err != nil {
		t.Fatal(err)
	}

	names := make([]string, 0, len(sink.boxes))
	for _, b := range sink.boxes {
		names = append(names, b.name)
	}
	want := []string{"table", "table.001", "table.002"}
	for i, w := range want {
		if names[i] != w {
			t.Errorf("expected box %d named %q, got %q", i, w, names[i])
		}
	}
}

func TestExportSceneRoundTrip(t *testing.T) {
	sink := newFakeSink()
	s := newTestSession(t, newFakeRig(), sink)

	in := writeSceneFile(t, []scene.Object{
		scene.NewBox("crate", r3.Vector{X: 0.25}, spatialmath.NewZeroOrientation(), r3.Vector{X: 0.2, Y: 0.3, Z: 0.4}),
	})
	if _, err := s.ImportScene(in, ""); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(t.TempDir(), "out.scene")
	if _, err := s.ExportScene(out); err != nil {
		t.Fatal(err)
	}
	objs, err := scene.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(objs) != 1 || objs[0].Name != "crate" {
		t.Fatalf("unexpected round-trip result: %+v", objs)
	}
	if math.Abs(objs[0].Pose.Point().X-0.25) > 1e-6 {
		t.Errorf("expected X 0.25 after round trip, got %g", objs[0].Pose.Point().X)
	}
}

func TestExportSceneEmpty(t *testing.T) {
	s := newTestSession(t, newFakeRig(), newFakeSink())
	if _, err := s.ExportScene(filepath.Join(t.TempDir(), "out.scene")); err == nil {
		t.Fatal("expected an error with nothing imported")
	}
}

func TestExportSTL(t *testing.T) {
	sink := newFakeSink()
	s := newTestSession(t, newFakeRig(), sink)

	if err := s.ExportSTL(t.TempDir()); err == nil {
		t.Fatal("expected an error with no objects selected")
	}

	path := writeSceneFile(t, []scene.Object{
		scene.NewBox("part", r3.Vector{}, spatialmath.NewZeroOrientation(), r3.Vector{X: 1, Y: 1, Z: 1}),
	})
	if _, err := s.ImportScene(path, ""); err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	if err := s.ExportSTL(dir); err != nil {
		t.Fatal(err)
	}
	if len(sink.stlDirs) != 1 || sink.stlDirs[0] != dir {
		t.Errorf("expected STL export delegated to the sink, got %v", sink.stlDirs)
	}
}
