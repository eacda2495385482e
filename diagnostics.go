package lightmapper

import (
	"sync"
)

// LightmapDiagnostics receives everything the lightmap passes would otherwise
// have to print. None of these calls may affect control flow.
type LightmapDiagnostics interface {
	MetadataDecodeFailed(node string, err error)
	ChildSkipped(parent string, child EntityId)
	BindingAttached(node string, child string, lightmap string)
	MaterialMissing(entity EntityId, lightmap string)
	LoadIssued(entity EntityId, path string)
	LoadFailed(path string, err error)
	LoadTimedOut(path string, state LoadState)
	PassFinished(pass string, outcome string)
}

type LightmapStats struct {
	DecodeFailures   int
	SkippedChildren  int
	Bindings         int
	MissingMaterials int
	LoadsIssued      int
	LoadFailures     int
	LoadTimeouts     int
}

// LoggingDiagnostics writes diagnostics to a Logger and keeps counters.
type LoggingDiagnostics struct {
	log Logger

	mu    sync.Mutex
	stats LightmapStats
}

func NewLoggingDiagnostics(log Logger) *LoggingDiagnostics {
	if log == nil {
		log = NewNopLogger()
	}
	return &LoggingDiagnostics{log: log}
}

func (d *LoggingDiagnostics) Stats() LightmapStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

func (d *LoggingDiagnostics) count(f func(*LightmapStats)) {
	d.mu.Lock()
	f(&d.stats)
	d.mu.Unlock()
}

func (d *LoggingDiagnostics) MetadataDecodeFailed(node string, err error) {
	d.count(func(s *LightmapStats) { s.DecodeFailures++ })
	d.log.Warnf("lightmap: failed to parse extras for %s: %v", node, err)
}

func (d *LoggingDiagnostics) ChildSkipped(parent string, child EntityId) {
	d.count(func(s *LightmapStats) { s.SkippedChildren++ })
	d.log.Debugf("lightmap: unnamed child %d of %s skipped", child, parent)
}

func (d *LoggingDiagnostics) BindingAttached(node string, child string, lightmap string) {
	d.count(func(s *LightmapStats) { s.Bindings++ })
	d.log.Debugf("lightmap: %s/%s bound to %s", node, child, lightmap)
}

func (d *LoggingDiagnostics) MaterialMissing(entity EntityId, lightmap string) {
	d.count(func(s *LightmapStats) { s.MissingMaterials++ })
	d.log.Warnf("lightmap: entity %d (%s) has no resolvable material", entity, lightmap)
}

func (d *LoggingDiagnostics) LoadIssued(entity EntityId, path string) {
	d.count(func(s *LightmapStats) { s.LoadsIssued++ })
	d.log.Debugf("lightmap: loading %s for entity %d", path, entity)
}

func (d *LoggingDiagnostics) LoadFailed(path string, err error) {
	d.count(func(s *LightmapStats) { s.LoadFailures++ })
	d.log.Errorf("lightmap: %s failed to load: %v", path, err)
}

func (d *LoggingDiagnostics) LoadTimedOut(path string, state LoadState) {
	d.count(func(s *LightmapStats) { s.LoadTimeouts++ })
	d.log.Errorf("lightmap: %s still %s at timeout", path, state)
}

func (d *LoggingDiagnostics) PassFinished(pass string, outcome string) {
	d.log.Infof("lightmap: %s pass %s", pass, outcome)
}
