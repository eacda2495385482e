package lightmapper

import (
	"fmt"
	"slices"
	"time"

	"github.com/pkg/errors"
)

type ApplyState int

const (
	ApplyIssuing ApplyState = iota
	ApplyWaiting
	ApplyDone
	// ApplyFailed is terminal: at least one lightmap failed or timed out.
	ApplyFailed
)

func (s ApplyState) String() string {
	switch s {
	case ApplyIssuing:
		return "issuing"
	case ApplyWaiting:
		return "waiting"
	case ApplyDone:
		return "done"
	case ApplyFailed:
		return "failed"
	}
	return "invalid"
}

func (s ApplyState) Terminal() bool {
	return s == ApplyDone || s == ApplyFailed
}

// LightmapApplier resolves LightmapBinding components into texture loads.
//
// Issuing: every entity with a binding and a material gets its material
// patched, a load issued and a Lightmap component attached, all in one call.
// Waiting: handles are polled each call; the pending set is only ever
// cleared as a whole, once every handle is loaded (Done) or every handle has
// settled with a failure among them, or the timeout ran out (Failed).
type LightmapApplier struct {
	state   ApplyState
	pending []Handle
	waited  time.Duration

	cfg       LightmapConfig
	loader    AssetLoader
	materials *Materials
	registry  *LightmapRegistry
	diag      LightmapDiagnostics
}

func NewLightmapApplier(cfg LightmapConfig, loader AssetLoader, materials *Materials, registry *LightmapRegistry, diag LightmapDiagnostics) *LightmapApplier {
	if diag == nil {
		diag = NewLoggingDiagnostics(nil)
	}
	if materials == nil {
		materials = NewMaterials()
	}
	return &LightmapApplier{
		cfg:       cfg,
		loader:    loader,
		materials: materials,
		registry:  registry,
		diag:      diag,
	}
}

func (a *LightmapApplier) State() ApplyState {
	return a.state
}

// Pending returns the handles currently awaited, in issue order.
func (a *LightmapApplier) Pending() []Handle {
	return slices.Clone(a.pending)
}

// Advance moves the state machine by at most one step. dt is the time since
// the previous call and only feeds the load timeout.
func (a *LightmapApplier) Advance(cmd *Commands, dt time.Duration) {
	switch a.state {
	case ApplyIssuing:
		a.issue(cmd)
	case ApplyWaiting:
		a.poll(dt)
	}
}

func (a *LightmapApplier) issue(cmd *Commands) {
	MakeQuery2[LightmapBinding, MeshMaterial](cmd).Map(func(eid EntityId, binding *LightmapBinding, mesh *MeshMaterial) bool {
		path := a.registry.Resolve(binding.LightmapName, a.cfg)

		if mat, ok := a.materials.Get(mesh.Material); ok {
			mat.LightmapExposure = binding.Exposure
			mat.Reflectance = 0
		} else {
			a.diag.MaterialMissing(eid, binding.LightmapName)
		}

		handle := a.loader.Load(path)
		a.pending = append(a.pending, handle)
		cmd.AddComponents(eid, &Lightmap{
			Image:  handle,
			UVRect: FullLightmapUVRect(),
		})
		a.diag.LoadIssued(eid, path)
		return true
	})

	// Nothing bound yet: stay here and look again on the next call.
	if len(a.pending) > 0 {
		a.state = ApplyWaiting
	}
}

func (a *LightmapApplier) poll(dt time.Duration) {
	a.waited += dt

	loaded, failed := 0, 0
	states := make([]LoadState, len(a.pending))
	for i, h := range a.pending {
		states[i] = a.loader.LoadState(h)
		switch states[i] {
		case LoadStateLoaded:
			loaded++
		case LoadStateFailed:
			failed++
		}
	}

	switch {
	case loaded == len(a.pending):
		a.finish(ApplyDone, fmt.Sprintf("loaded %d lightmaps", loaded))

	case loaded+failed == len(a.pending):
		for i, h := range a.pending {
			if states[i] == LoadStateFailed {
				a.diag.LoadFailed(h.Path(), a.loadError(h))
			}
		}
		a.finish(ApplyFailed, fmt.Sprintf("%d of %d lightmaps failed", failed, len(a.pending)))

	case a.cfg.LoadTimeout > 0 && a.waited >= a.cfg.LoadTimeout:
		for i, h := range a.pending {
			switch states[i] {
			case LoadStateLoaded:
			case LoadStateFailed:
				a.diag.LoadFailed(h.Path(), a.loadError(h))
			default:
				a.diag.LoadTimedOut(h.Path(), states[i])
			}
		}
		a.finish(ApplyFailed, fmt.Sprintf("timed out after %v with %d of %d lightmaps loaded", a.waited, loaded, len(a.pending)))
	}
}

func (a *LightmapApplier) loadError(h Handle) error {
	if reporter, ok := a.loader.(loadErrorReporter); ok {
		if err := reporter.LoadError(h); err != nil {
			return err
		}
	}
	return errors.Errorf("%s reported %s", h.Path(), LoadStateFailed)
}

func (a *LightmapApplier) finish(state ApplyState, outcome string) {
	a.pending = nil
	a.state = state
	a.diag.PassFinished("application", outcome)
}
