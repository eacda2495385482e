package lightmapper

import (
	"fmt"
	"time"
)

// LightmapModule wires the annotation and application passes into the
// schedule. Install it after AssetServerModule unless Loader is set.
//
// Annotation runs in Update and application in PostUpdate, so bindings added
// during a frame are already flushed when the application pass looks for
// them.
type LightmapModule struct {
	// Config defaults to DefaultLightmapConfig when PathTemplate is empty.
	Config      LightmapConfig
	Loader      AssetLoader
	Diagnostics LightmapDiagnostics
}

func (mod LightmapModule) Install(app *App, cmd *Commands) {
	cfg := mod.Config
	if cfg.PathTemplate == "" {
		cfg = DefaultLightmapConfig()
	}
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("lightmap module: %v", err))
	}

	loader := mod.Loader
	if loader == nil {
		server, ok := GetResource[AssetServer](cmd)
		if !ok {
			panic("lightmap module: no AssetLoader given and no AssetServer installed")
		}
		loader = server
	}

	materials, ok := GetResource[Materials](cmd)
	if !ok {
		materials = NewMaterials()
		cmd.AddResources(materials)
	}

	diag := mod.Diagnostics
	if diag == nil {
		logging := NewLoggingDiagnostics(app.Logger())
		cmd.AddResources(logging)
		diag = logging
	}

	registry := NewLightmapRegistry(cfg.Lightmaps)
	cmd.AddResources(
		registry,
		NewLightmapAnnotator(cfg.DefaultExposure, diag),
		NewLightmapApplier(cfg, loader, materials, registry, diag),
	)

	app.UseSystem(
		System(annotateLightmapsSystem).
			InStage(Update),
	)
	app.UseSystem(
		System(applyLightmapsSystem).
			InStage(PostUpdate),
	)
}

func annotateLightmapsSystem(cmd *Commands, annotator *LightmapAnnotator) {
	annotator.Advance(cmd)
}

func applyLightmapsSystem(cmd *Commands, applier *LightmapApplier) {
	var dt time.Duration
	if t, ok := GetResource[Time](cmd); ok {
		dt = t.Dt
	}
	applier.Advance(cmd, dt)
}
