package lightmapper

import (
	"maps"
	"slices"
)

// LightmapRegistry maps lightmap names to explicit asset paths. Names it
// knows bypass the path template; everything else is templated.
type LightmapRegistry struct {
	paths map[string]string
}

func NewLightmapRegistry(seed map[string]string) *LightmapRegistry {
	r := &LightmapRegistry{paths: make(map[string]string, len(seed))}
	for name, path := range seed {
		r.Register(name, path)
	}
	return r
}

func (r *LightmapRegistry) Register(name, path string) {
	r.paths[name] = path
}

func (r *LightmapRegistry) Lookup(name string) (string, bool) {
	path, ok := r.paths[name]
	return path, ok
}

// Names returns the registered names, sorted.
func (r *LightmapRegistry) Names() []string {
	return slices.Sorted(maps.Keys(r.paths))
}

// Resolve returns the registered path for name, or the templated one.
func (r *LightmapRegistry) Resolve(name string, cfg LightmapConfig) string {
	if r != nil {
		if path, ok := r.Lookup(name); ok {
			return path
		}
	}
	return cfg.LightmapPath(name)
}
