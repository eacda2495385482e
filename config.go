package lightmapper

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const lightmapNamePlaceholder = "{name}"

type LightmapConfig struct {
	// PathTemplate is turned into an asset path by replacing {name} with the
	// lightmap identifier verbatim.
	PathTemplate    string  `yaml:"path_template"`
	DefaultExposure float32 `yaml:"default_exposure"`
	AssetRoot       string  `yaml:"asset_root"`
	LoadWorkers     int     `yaml:"load_workers"`
	// LoadTimeout bounds the wait for issued lightmaps; zero waits forever.
	LoadTimeout time.Duration `yaml:"load_timeout"`
	// Lightmaps seeds the registry with explicit name to path entries.
	Lightmaps map[string]string `yaml:"lightmaps"`
}

func DefaultLightmapConfig() LightmapConfig {
	return LightmapConfig{
		PathTemplate:    "lightmaps/" + lightmapNamePlaceholder + ".ktx2",
		DefaultExposure: 1000.0,
		AssetRoot:       "assets",
		LoadWorkers:     4,
		Lightmaps:       map[string]string{},
	}
}

// ParseLightmapConfig overlays YAML onto the defaults and validates the result.
func ParseLightmapConfig(data []byte) (LightmapConfig, error) {
	cfg := DefaultLightmapConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return LightmapConfig{}, errors.Wrap(err, "parse lightmap config")
	}
	if cfg.Lightmaps == nil {
		cfg.Lightmaps = map[string]string{}
	}
	if err := cfg.Validate(); err != nil {
		return LightmapConfig{}, err
	}
	return cfg, nil
}

func LoadLightmapConfig(path string) (LightmapConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return LightmapConfig{}, errors.Wrapf(err, "read lightmap config %s", path)
	}
	cfg, err := ParseLightmapConfig(data)
	if err != nil {
		return LightmapConfig{}, errors.Wrapf(err, "lightmap config %s", path)
	}
	return cfg, nil
}

func (cfg LightmapConfig) Validate() error {
	if !strings.Contains(cfg.PathTemplate, lightmapNamePlaceholder) {
		return errors.Errorf("path_template %q has no %s placeholder", cfg.PathTemplate, lightmapNamePlaceholder)
	}
	if cfg.DefaultExposure < 0 {
		return errors.Errorf("default_exposure must not be negative, got %v", cfg.DefaultExposure)
	}
	if cfg.LoadWorkers < 1 {
		return errors.Errorf("load_workers must be at least 1, got %d", cfg.LoadWorkers)
	}
	if cfg.LoadTimeout < 0 {
		return errors.Errorf("load_timeout must not be negative, got %v", cfg.LoadTimeout)
	}
	for name, path := range cfg.Lightmaps {
		if path == "" {
			return errors.Errorf("lightmap %q has an empty path", name)
		}
	}
	return nil
}

// LightmapPath formats the template for name. No escaping is applied.
func (cfg LightmapConfig) LightmapPath(name string) string {
	return strings.ReplaceAll(cfg.PathTemplate, lightmapNamePlaceholder, name)
}
