package lightmapper

import (
	"fmt"
)

// LightmapBinding ties a surface entity to a lightmap by name.
type LightmapBinding struct {
	LightmapName string
	Exposure     float32
}

type AnnotationState int

const (
	AnnotationPending AnnotationState = iota
	AnnotationDone
)

func (s AnnotationState) String() string {
	if s == AnnotationDone {
		return "done"
	}
	return "pending"
}

// LightmapAnnotator turns lightmap references found in node extras into
// LightmapBinding components on the nodes' immediate, named children.
// It scans the world once; later calls to Advance do nothing.
type LightmapAnnotator struct {
	state    AnnotationState
	exposure float32
	diag     LightmapDiagnostics
}

func NewLightmapAnnotator(exposure float32, diag LightmapDiagnostics) *LightmapAnnotator {
	if diag == nil {
		diag = NewLoggingDiagnostics(nil)
	}
	return &LightmapAnnotator{exposure: exposure, diag: diag}
}

func (a *LightmapAnnotator) State() AnnotationState {
	return a.state
}

// Advance performs the scan on its first call. Bindings are added through cmd
// and become visible once the commands are flushed.
func (a *LightmapAnnotator) Advance(cmd *Commands) {
	if a.state == AnnotationDone {
		return
	}

	bound := 0
	MakeQuery2[Name, GltfExtras](cmd).Map(func(eid EntityId, name *Name, extras *GltfExtras) bool {
		if extras == nil {
			return true
		}

		lightmap, found, err := ParseLightmapReference(extras.Value)
		if err != nil {
			a.diag.MetadataDecodeFailed(name.Value, err)
			return true
		}
		if !found {
			return true
		}

		for _, child := range ChildrenOf(cmd, eid) {
			childName, ok := NameOf(cmd, child)
			if !ok {
				a.diag.ChildSkipped(name.Value, child)
				continue
			}
			cmd.AddComponents(child, &LightmapBinding{
				LightmapName: lightmap,
				Exposure:     a.exposure,
			})
			a.diag.BindingAttached(name.Value, childName, lightmap)
			bound++
		}
		return true
	}, GltfExtras{})

	a.state = AnnotationDone
	a.diag.PassFinished("annotation", fmt.Sprintf("attached %d bindings", bound))
}
