package lightmapper

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLoader records load requests; every path reports Loading until told
// otherwise.
type fakeLoader struct {
	loads  []string
	states map[string]LoadState
	errs   map[string]error
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{
		states: make(map[string]LoadState),
		errs:   make(map[string]error),
	}
}

func (l *fakeLoader) Load(path string) Handle {
	l.loads = append(l.loads, path)
	return Handle{id: AssetId("fake:" + path), path: path}
}

func (l *fakeLoader) LoadState(h Handle) LoadState {
	if s, ok := l.states[h.Path()]; ok {
		return s
	}
	return LoadStateLoading
}

func (l *fakeLoader) LoadError(h Handle) error {
	return l.errs[h.Path()]
}

type applyFixture struct {
	app       *App
	cmd       *Commands
	loader    *fakeLoader
	materials *Materials
	diag      *recordingDiagnostics
	applier   *LightmapApplier
}

func newApplyFixture(cfg LightmapConfig) *applyFixture {
	app := NewApp()
	f := &applyFixture{
		app:       app,
		cmd:       app.Commands(),
		loader:    newFakeLoader(),
		materials: NewMaterials(),
		diag:      &recordingDiagnostics{},
	}
	f.applier = NewLightmapApplier(cfg, f.loader, f.materials, NewLightmapRegistry(cfg.Lightmaps), f.diag)
	return f
}

// surface spawns an entity with a fresh default material and, when lightmap
// is non-empty, a binding.
func (f *applyFixture) surface(lightmap string) (EntityId, MaterialHandle) {
	h := f.materials.Add(DefaultStandardMaterial())
	comps := []any{&MeshMaterial{Material: h}}
	if lightmap != "" {
		comps = append(comps, &LightmapBinding{LightmapName: lightmap, Exposure: 1000})
	}
	eid := f.cmd.AddEntity(comps...)
	f.app.FlushCommands()
	return eid, h
}

func (f *applyFixture) advance(dt time.Duration) {
	f.applier.Advance(f.cmd, dt)
	f.app.FlushCommands()
}

func (f *applyFixture) material(h MaterialHandle) StandardMaterial {
	m, ok := f.materials.Get(h)
	if !ok {
		return StandardMaterial{}
	}
	return *m
}

func TestApplier_IssuesAndCompletes(t *testing.T) {
	f := newApplyFixture(DefaultLightmapConfig())
	wall, mat := f.surface("hall_01")

	assert.Equal(t, ApplyIssuing, f.applier.State())
	f.advance(0)

	assert.Equal(t, ApplyWaiting, f.applier.State())
	assert.Equal(t, []string{"lightmaps/hall_01.ktx2"}, f.loader.loads)
	assert.Equal(t, float32(1000), f.material(mat).LightmapExposure)
	assert.Equal(t, float32(0), f.material(mat).Reflectance)

	pending := f.applier.Pending()
	require.Len(t, pending, 1)
	lm, ok := GetComponent[Lightmap](f.cmd, wall)
	require.True(t, ok, "lightmap component is attached before the texture loads")
	assert.Equal(t, pending[0], lm.Image)
	assert.Equal(t, FullLightmapUVRect(), lm.UVRect)

	f.advance(0)
	assert.Equal(t, ApplyWaiting, f.applier.State())
	assert.Len(t, f.applier.Pending(), 1)

	f.loader.states["lightmaps/hall_01.ktx2"] = LoadStateLoaded
	f.advance(0)

	assert.Equal(t, ApplyDone, f.applier.State())
	assert.True(t, f.applier.State().Terminal())
	assert.Empty(t, f.applier.Pending())

	events := len(f.diag.events)
	for i := 0; i < 5; i++ {
		f.advance(time.Second)
	}
	assert.Len(t, f.loader.loads, 1, "no loads after completion")
	assert.Len(t, f.diag.events, events, "no activity after completion")
}

func TestApplier_SingleIssuePerEntity(t *testing.T) {
	f := newApplyFixture(DefaultLightmapConfig())
	f.surface("a")
	f.surface("b")
	f.surface("a")

	for i := 0; i < 10; i++ {
		f.advance(16 * time.Millisecond)
	}

	assert.Equal(t, []string{
		"lightmaps/a.ktx2",
		"lightmaps/b.ktx2",
		"lightmaps/a.ktx2",
	}, f.loader.loads)
	assert.Equal(t, 3, f.diag.count("issued"))
}

func TestApplier_CompletionGating(t *testing.T) {
	f := newApplyFixture(DefaultLightmapConfig())
	f.surface("a")
	f.surface("b")
	f.surface("c")
	f.advance(0)

	f.loader.states["lightmaps/a.ktx2"] = LoadStateLoaded
	f.loader.states["lightmaps/c.ktx2"] = LoadStateLoaded
	f.advance(0)
	assert.Equal(t, ApplyWaiting, f.applier.State())
	assert.Len(t, f.applier.Pending(), 3, "pending set is only cleared as a whole")

	f.loader.states["lightmaps/b.ktx2"] = LoadStateNotFound
	f.advance(0)
	assert.Equal(t, ApplyWaiting, f.applier.State(), "not found counts as still pending")

	f.loader.states["lightmaps/b.ktx2"] = LoadStateLoaded
	f.advance(0)
	assert.Equal(t, ApplyDone, f.applier.State())
}

func TestApplier_FailedLoadIsTerminal(t *testing.T) {
	f := newApplyFixture(DefaultLightmapConfig())
	f.surface("good")
	f.surface("bad")
	f.advance(0)

	f.loader.states["lightmaps/bad.ktx2"] = LoadStateFailed
	f.loader.errs["lightmaps/bad.ktx2"] = errors.New("corrupt")
	f.advance(0)
	assert.Equal(t, ApplyWaiting, f.applier.State(), "waits while other loads are in flight")

	f.loader.states["lightmaps/good.ktx2"] = LoadStateLoaded
	f.advance(0)

	assert.Equal(t, ApplyFailed, f.applier.State())
	assert.True(t, f.applier.State().Terminal())
	assert.Empty(t, f.applier.Pending())
	assert.Contains(t, f.diag.events, "failed lightmaps/bad.ktx2")
	assert.Contains(t, f.diag.events, "finished application: 1 of 2 lightmaps failed")
}

func TestApplier_Timeout(t *testing.T) {
	cfg := DefaultLightmapConfig()
	cfg.LoadTimeout = 100 * time.Millisecond
	f := newApplyFixture(cfg)
	f.surface("slow")
	f.surface("fast")
	f.advance(0)

	f.loader.states["lightmaps/fast.ktx2"] = LoadStateLoaded
	f.advance(60 * time.Millisecond)
	assert.Equal(t, ApplyWaiting, f.applier.State())

	f.advance(60 * time.Millisecond)
	assert.Equal(t, ApplyFailed, f.applier.State())
	assert.Equal(t, []string{"timed-out lightmaps/slow.ktx2 loading"}, filterPrefix(f.diag.events, "timed-out"))
}

func TestApplier_NoTimeoutWaitsIndefinitely(t *testing.T) {
	f := newApplyFixture(DefaultLightmapConfig())
	f.surface("slow")
	f.advance(0)

	for i := 0; i < 100; i++ {
		f.advance(time.Hour)
	}
	assert.Equal(t, ApplyWaiting, f.applier.State())
}

func TestApplier_StaysIssuingWithoutBindings(t *testing.T) {
	f := newApplyFixture(DefaultLightmapConfig())
	f.surface("")

	f.advance(0)
	f.advance(0)
	assert.Equal(t, ApplyIssuing, f.applier.State())
	assert.Empty(t, f.loader.loads)

	// Bindings that show up later are still picked up.
	f.surface("late")
	f.advance(0)
	assert.Equal(t, ApplyWaiting, f.applier.State())
	assert.Equal(t, []string{"lightmaps/late.ktx2"}, f.loader.loads)
}

func TestApplier_BindingWithoutMaterialIsIgnored(t *testing.T) {
	f := newApplyFixture(DefaultLightmapConfig())
	orphan := f.cmd.AddEntity(&LightmapBinding{LightmapName: "orphan", Exposure: 1000})
	f.app.FlushCommands()

	f.advance(0)

	assert.Empty(t, f.loader.loads)
	_, ok := GetComponent[Lightmap](f.cmd, orphan)
	assert.False(t, ok)
}

func TestApplier_MissingMaterialStillLoads(t *testing.T) {
	f := newApplyFixture(DefaultLightmapConfig())
	// A handle from another store never resolves in the fixture's.
	stray := NewMaterials().Add(DefaultStandardMaterial())
	wall := f.cmd.AddEntity(&MeshMaterial{Material: stray}, &LightmapBinding{LightmapName: "hall_01", Exposure: 1000})
	f.app.FlushCommands()

	f.advance(0)

	assert.Equal(t, []string{"lightmaps/hall_01.ktx2"}, f.loader.loads)
	_, ok := GetComponent[Lightmap](f.cmd, wall)
	assert.True(t, ok)
	assert.Equal(t, 1, f.diag.count("material-missing"))
}

func TestApplier_SharedMaterialPatchedOnce(t *testing.T) {
	f := newApplyFixture(DefaultLightmapConfig())
	shared := f.materials.Add(DefaultStandardMaterial())
	f.cmd.AddEntity(&MeshMaterial{Material: shared}, &LightmapBinding{LightmapName: "a", Exposure: 300})
	f.cmd.AddEntity(&MeshMaterial{Material: shared}, &LightmapBinding{LightmapName: "b", Exposure: 700})
	f.app.FlushCommands()

	f.advance(0)

	// Spawn order decides: the later binding wins.
	assert.Equal(t, float32(700), f.material(shared).LightmapExposure)
	assert.Equal(t, float32(0), f.material(shared).Reflectance)
	assert.Len(t, f.loader.loads, 2)
}

func TestApplier_RegistryOverridesTemplate(t *testing.T) {
	cfg := DefaultLightmapConfig()
	cfg.Lightmaps = map[string]string{"hall_01": "baked/hall.png"}
	f := newApplyFixture(cfg)
	f.surface("hall_01")
	f.surface("attic")

	f.advance(0)

	assert.Equal(t, []string{"baked/hall.png", "lightmaps/attic.ktx2"}, f.loader.loads)
}

func TestApplier_PathIsVerbatim(t *testing.T) {
	f := newApplyFixture(DefaultLightmapConfig())
	f.surface("../odd name")

	f.advance(0)

	assert.Equal(t, []string{"lightmaps/../odd name.ktx2"}, f.loader.loads)
}

func TestApplyState_String(t *testing.T) {
	assert.Equal(t, "issuing", ApplyIssuing.String())
	assert.Equal(t, "waiting", ApplyWaiting.String())
	assert.Equal(t, "done", ApplyDone.String())
	assert.Equal(t, "failed", ApplyFailed.String())
	assert.False(t, ApplyWaiting.Terminal())
}
