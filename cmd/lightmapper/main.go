package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gekko3d/lightmapper"
)

func main() {
	scenePath := flag.String("scene", "", "glTF scene to import (.gltf or .glb)")
	configPath := flag.String("config", "", "lightmap config (YAML); defaults are used when empty")
	assetRoot := flag.String("assets", "", "asset root directory; overrides asset_root from the config")
	maxTicks := flag.Int("max-ticks", 600, "give up after this many frames")
	frame := flag.Duration("frame", 16*time.Millisecond, "simulated frame time")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	if *scenePath == "" {
		fmt.Fprintln(os.Stderr, "lightmapper: -scene is required")
		flag.Usage()
		os.Exit(2)
	}

	os.Exit(run(*scenePath, *configPath, *assetRoot, *maxTicks, *frame, *debug))
}

func run(scenePath, configPath, assetRoot string, maxTicks int, frame time.Duration, debug bool) int {
	cfg := lightmapper.DefaultLightmapConfig()
	if configPath != "" {
		var err error
		if cfg, err = lightmapper.LoadLightmapConfig(configPath); err != nil {
			fmt.Fprintf(os.Stderr, "lightmapper: %v\n", err)
			return 1
		}
	}
	if assetRoot != "" {
		cfg.AssetRoot = assetRoot
	}

	app := lightmapper.NewAppBuilder().
		UseModule(
			lightmapper.LoggingModule{Prefix: "lightmapper", Debug: debug},
			lightmapper.TimeModule{FixedStep: frame},
			lightmapper.AssetServerModule{Root: cfg.AssetRoot, Workers: cfg.LoadWorkers},
			lightmapper.HierarchyModule{},
			lightmapper.LightmapModule{Config: cfg},
		).
		Build()

	log := app.Logger()
	if z, ok := log.(*lightmapper.ZapLogger); ok {
		defer z.Sync()
	}

	cmd := app.Commands()
	server, _ := lightmapper.GetResource[lightmapper.AssetServer](cmd)
	defer server.Close()
	materials, _ := lightmapper.GetResource[lightmapper.Materials](cmd)
	if registry, ok := lightmapper.GetResource[lightmapper.LightmapRegistry](cmd); ok {
		if names := registry.Names(); len(names) > 0 {
			log.Infof("explicit lightmap paths for %s", strings.Join(names, ", "))
		}
	}

	if _, err := lightmapper.ImportGltf(cmd, materials, scenePath); err != nil {
		log.Errorf("%v", err)
		return 1
	}
	app.FlushCommands()

	annotator, _ := lightmapper.GetResource[lightmapper.LightmapAnnotator](cmd)
	applier, _ := lightmapper.GetResource[lightmapper.LightmapApplier](cmd)
	for i := 0; i < maxTicks && !applier.State().Terminal(); i++ {
		app.Tick()
		// The scene is fully spawned, so an empty first frame stays empty.
		if annotator.State() == lightmapper.AnnotationDone && applier.State() == lightmapper.ApplyIssuing {
			var stats lightmapper.LightmapStats
			if diag, ok := lightmapper.GetResource[lightmapper.LoggingDiagnostics](cmd); ok {
				stats = diag.Stats()
			}
			log.Infof("%s", idleSummary(stats, scenePath))
			return 0
		}
		if applier.State() == lightmapper.ApplyWaiting {
			time.Sleep(frame)
		}
	}

	if diag, ok := lightmapper.GetResource[lightmapper.LoggingDiagnostics](cmd); ok {
		s := diag.Stats()
		log.Infof("bindings=%d loads=%d failures=%d timeouts=%d decode_errors=%d",
			s.Bindings, s.LoadsIssued, s.LoadFailures, s.LoadTimeouts, s.DecodeFailures)
	}

	switch applier.State() {
	case lightmapper.ApplyDone:
		log.Infof("lightmaps applied after %d frames", app.Ticks())
		return 0
	case lightmapper.ApplyFailed:
		return 1
	default:
		log.Errorf("gave up after %d frames in state %s", app.Ticks(), applier.State())
		return 1
	}
}

// idleSummary explains an application pass that never left Issuing: either
// nothing was bound, or every bound surface lacked a material.
func idleSummary(stats lightmapper.LightmapStats, scenePath string) string {
	if stats.Bindings == 0 {
		return fmt.Sprintf("no lightmap bindings in %s", scenePath)
	}
	return fmt.Sprintf("%d lightmap bindings in %s but no bound surface has a material", stats.Bindings, scenePath)
}
