package lightmapper

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

type MaterialHandle struct {
	id AssetId
}

func (h MaterialHandle) Id() AssetId   { return h.id }
func (h MaterialHandle) IsValid() bool { return h.id != "" }

// StandardMaterial is the PBR surface description patched by the lightmap
// pass. LightmapExposure scales baked light; Reflectance drives specular
// response at normal incidence.
type StandardMaterial struct {
	Name                string
	BaseColor           mgl32.Vec4
	Metallic            float32
	PerceptualRoughness float32
	Reflectance         float32
	LightmapExposure    float32
}

func DefaultStandardMaterial() StandardMaterial {
	return StandardMaterial{
		BaseColor:           mgl32.Vec4{1, 1, 1, 1},
		Metallic:            0,
		PerceptualRoughness: 0.5,
		Reflectance:         0.5,
		LightmapExposure:    1,
	}
}

// MeshMaterial points a surface entity at its material.
type MeshMaterial struct {
	Material MaterialHandle
}

// Lightmap is the render-time association of a surface with its baked
// texture. It may be attached while Image is still loading.
type Lightmap struct {
	Image  Handle
	UVRect mgl32.Vec4 // min.x, min.y, max.x, max.y in lightmap UV space
}

func FullLightmapUVRect() mgl32.Vec4 {
	return mgl32.Vec4{0, 0, 1, 1}
}

// Materials owns StandardMaterial values; Get hands out pointers so callers
// edit the stored material in place.
type Materials struct {
	mu        sync.RWMutex
	materials map[AssetId]*StandardMaterial
}

func NewMaterials() *Materials {
	return &Materials{materials: make(map[AssetId]*StandardMaterial)}
}

func (m *Materials) Add(material StandardMaterial) MaterialHandle {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := makeAssetId()
	m.materials[id] = &material
	return MaterialHandle{id: id}
}

func (m *Materials) Get(h MaterialHandle) (*StandardMaterial, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	mat, ok := m.materials[h.id]
	return mat, ok
}

func (m *Materials) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.materials)
}
