package lightmapper

import (
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpawnGltfDocument(t *testing.T) {
	app := NewApp()
	cmd := app.Commands()
	materials := NewMaterials()

	doc := bakedRoom()
	doc.Nodes[0].Translation = [3]float32{1, 2, 3}
	doc.Materials[0].PBRMetallicRoughness = &gltf.PBRMetallicRoughness{
		BaseColorFactor: &[4]float32{0.5, 0.25, 1, 1},
		MetallicFactor:  ptr(float32(0.1)),
	}

	root, err := SpawnGltfDocument(cmd, materials, doc)
	require.NoError(t, err)
	app.FlushCommands()

	name, ok := NameOf(cmd, root)
	require.True(t, ok)
	assert.Equal(t, "Level", name)

	rooms := ChildrenOf(cmd, root)
	require.Len(t, rooms, 1)
	room := rooms[0]
	name, _ = NameOf(cmd, room)
	assert.Equal(t, "Room", name)
	local, ok := GetComponent[LocalTransform](cmd, room)
	require.True(t, ok)
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, local.Position)
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, local.Scale)

	_, hasExtras := GetComponent[GltfExtras](cmd, room)
	assert.False(t, hasExtras, "nodes without extras carry no extras component")

	surfaces := ChildrenOf(cmd, room)
	require.Len(t, surfaces, 2)
	wall := surfaces[0]
	extras, ok := GetComponent[GltfExtras](cmd, wall)
	require.True(t, ok)
	lightmap, found, err := ParseLightmapReference(extras.Value)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "Wall", lightmap)

	prims := ChildrenOf(cmd, wall)
	require.Len(t, prims, 1)
	name, _ = NameOf(cmd, prims[0])
	assert.Equal(t, "WallMesh.0", name)
	parent, ok := GetComponent[Parent](cmd, prims[0])
	require.True(t, ok)
	assert.Equal(t, wall, parent.Entity)

	mm, ok := GetComponent[MeshMaterial](cmd, prims[0])
	require.True(t, ok)
	mat, ok := materials.Get(mm.Material)
	require.True(t, ok)
	assert.Equal(t, "Plaster", mat.Name)
	assert.Equal(t, mgl32.Vec4{0.5, 0.25, 1, 1}, mat.BaseColor)
	assert.Equal(t, float32(0.1), mat.Metallic)
	assert.Equal(t, float32(1), mat.PerceptualRoughness, "glTF default roughness")
	assert.Equal(t, float32(0.5), mat.Reflectance)
	assert.Equal(t, 2, materials.Len())
}

func TestSpawnGltfDocument_SharedAndDefaultMaterials(t *testing.T) {
	app := NewApp()
	cmd := app.Commands()
	materials := NewMaterials()

	doc := &gltf.Document{
		Nodes: []*gltf.Node{
			{Name: "A", Mesh: gltf.Index(0)},
			{Name: "B", Mesh: gltf.Index(0)},
		},
		Meshes: []*gltf.Mesh{{Primitives: []*gltf.Primitive{
			{Material: gltf.Index(0)},
			{},
		}}},
		Materials: []*gltf.Material{{Name: "Stone"}},
	}

	root, err := SpawnGltfDocument(cmd, materials, doc)
	require.NoError(t, err)
	app.FlushCommands()

	assert.Equal(t, 2, materials.Len(), "one converted material plus the shared default")
	_, named := NameOf(cmd, root)
	assert.False(t, named, "documents without scenes have an unnamed root")

	nodes := ChildrenOf(cmd, root)
	require.Len(t, nodes, 2)
	prims := ChildrenOf(cmd, nodes[0])
	require.Len(t, prims, 2)
	_, named = NameOf(cmd, prims[0])
	assert.False(t, named, "primitives of unnamed meshes stay unnamed")
}

func TestSpawnGltfDocument_Errors(t *testing.T) {
	for name, doc := range map[string]*gltf.Document{
		"scene out of range": {Scene: gltf.Index(3), Scenes: []*gltf.Scene{{}}},
		"node out of range":  {Scenes: []*gltf.Scene{{Nodes: []uint32{5}}}},
		"mesh out of range":  {Nodes: []*gltf.Node{{Mesh: gltf.Index(1)}}},
		"material out of range": {
			Nodes:  []*gltf.Node{{Mesh: gltf.Index(0)}},
			Meshes: []*gltf.Mesh{{Primitives: []*gltf.Primitive{{Material: gltf.Index(9)}}}},
		},
		"cycle": {
			Scenes: []*gltf.Scene{{Nodes: []uint32{0}}},
			Nodes:  []*gltf.Node{{Children: []uint32{1}}, {Children: []uint32{0}}},
		},
	} {
		t.Run(name, func(t *testing.T) {
			app := NewApp()
			_, err := SpawnGltfDocument(app.Commands(), NewMaterials(), doc)
			assert.Error(t, err)
		})
	}
}

func TestNodeTransform_Matrix(t *testing.T) {
	m := mgl32.Translate3D(4, 5, 6).Mul4(mgl32.HomogRotate3DY(mgl32.DegToRad(90))).Mul4(mgl32.Scale3D(2, 2, 2))
	tr := nodeTransform(&gltf.Node{Matrix: [16]float32(m)})

	assert.True(t, tr.Position.ApproxEqual(mgl32.Vec3{4, 5, 6}))
	assert.True(t, tr.Scale.ApproxEqualThreshold(mgl32.Vec3{2, 2, 2}, 1e-5))
	// Component-wise: mathgl's approx compare is relative, which never
	// accepts float noise against an exact zero.
	got := tr.Rotation.Rotate(mgl32.Vec3{1, 0, 0})
	assert.InDelta(t, 0, got.X(), 1e-5, "rotated x axis: %v", got)
	assert.InDelta(t, 0, got.Y(), 1e-5, "rotated x axis: %v", got)
	assert.InDelta(t, -1, got.Z(), 1e-5, "rotated x axis: %v", got)
}

func TestImportGltf(t *testing.T) {
	path := filepath.Join(t.TempDir(), "room.gltf")
	require.NoError(t, gltf.Save(bakedRoom(), path))

	app := NewApp()
	cmd := app.Commands()
	root, err := ImportGltf(cmd, NewMaterials(), path)
	require.NoError(t, err)
	app.FlushCommands()

	assert.True(t, cmd.HasEntity(root))
	room := ChildrenOf(cmd, root)
	require.Len(t, room, 1)
	wall := ChildrenOf(cmd, room[0])[0]
	extras, ok := GetComponent[GltfExtras](cmd, wall)
	require.True(t, ok)
	lightmap, found, err := ParseLightmapReference(extras.Value)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "Wall", lightmap)

	_, err = ImportGltf(cmd, NewMaterials(), filepath.Join(t.TempDir(), "missing.gltf"))
	assert.Error(t, err)
}
