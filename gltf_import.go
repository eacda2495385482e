package lightmapper

import (
	"encoding/json"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
)

// ImportGltf opens a .gltf or .glb file and spawns its default scene.
func ImportGltf(cmd *Commands, materials *Materials, path string) (EntityId, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return 0, errors.Wrapf(err, "open gltf %s", path)
	}
	root, err := SpawnGltfDocument(cmd, materials, doc)
	if err != nil {
		return 0, errors.Wrapf(err, "spawn gltf %s", path)
	}
	return root, nil
}

// SpawnGltfDocument spawns the document's default scene under a new root
// entity. Every node becomes an entity with Name (when named), GltfExtras
// (when it has extras), transforms and Parent/Children. Each mesh primitive
// becomes a child entity named "<mesh>.<index>" carrying a MeshMaterial.
func SpawnGltfDocument(cmd *Commands, materials *Materials, doc *gltf.Document) (EntityId, error) {
	sp := &gltfSpawner{
		cmd:       cmd,
		materials: materials,
		doc:       doc,
		handles:   make(map[uint32]MaterialHandle),
		visiting:  make(map[uint32]bool),
	}

	roots, sceneName, err := sp.sceneRoots()
	if err != nil {
		return 0, err
	}

	rootComps := []any{ptr(IdentityTransform()), &WorldTransform{}}
	if sceneName != "" {
		rootComps = append(rootComps, &Name{Value: sceneName})
	}
	root := cmd.AddEntity(rootComps...)

	var kids []EntityId
	for _, idx := range roots {
		eid, err := sp.spawnNode(idx, root)
		if err != nil {
			return 0, err
		}
		kids = append(kids, eid)
	}
	cmd.AddComponents(root, &Children{Entities: kids})
	return root, nil
}

type gltfSpawner struct {
	cmd       *Commands
	materials *Materials
	doc       *gltf.Document

	handles         map[uint32]MaterialHandle
	defaultMaterial *MaterialHandle
	visiting        map[uint32]bool
}

func (sp *gltfSpawner) sceneRoots() ([]uint32, string, error) {
	doc := sp.doc
	if len(doc.Scenes) > 0 {
		sceneIdx := uint32(0)
		if doc.Scene != nil {
			sceneIdx = *doc.Scene
		}
		if int(sceneIdx) >= len(doc.Scenes) {
			return nil, "", errors.Errorf("default scene %d out of range", sceneIdx)
		}
		scene := doc.Scenes[sceneIdx]
		return scene.Nodes, scene.Name, nil
	}

	// No scenes: every node nobody else lists as a child is a root.
	isChild := make(map[uint32]bool)
	for _, n := range doc.Nodes {
		for _, c := range n.Children {
			isChild[c] = true
		}
	}
	var roots []uint32
	for i := range doc.Nodes {
		if !isChild[uint32(i)] {
			roots = append(roots, uint32(i))
		}
	}
	return roots, "", nil
}

func (sp *gltfSpawner) spawnNode(idx uint32, parent EntityId) (EntityId, error) {
	if int(idx) >= len(sp.doc.Nodes) {
		return 0, errors.Errorf("node %d out of range", idx)
	}
	if sp.visiting[idx] {
		return 0, errors.Errorf("node %d is its own ancestor", idx)
	}
	sp.visiting[idx] = true
	defer delete(sp.visiting, idx)

	node := sp.doc.Nodes[idx]
	comps := []any{
		ptr(nodeTransform(node)),
		&WorldTransform{},
		&Parent{Entity: parent},
	}
	if node.Name != "" {
		comps = append(comps, &Name{Value: node.Name})
	}
	if node.Extras != nil {
		raw, err := json.Marshal(node.Extras)
		if err != nil {
			return 0, errors.Wrapf(err, "node %q extras", node.Name)
		}
		comps = append(comps, &GltfExtras{Value: string(raw)})
	}
	eid := sp.cmd.AddEntity(comps...)

	var kids []EntityId
	if node.Mesh != nil {
		prims, err := sp.spawnPrimitives(*node.Mesh, eid)
		if err != nil {
			return 0, err
		}
		kids = append(kids, prims...)
	}
	for _, childIdx := range node.Children {
		child, err := sp.spawnNode(childIdx, eid)
		if err != nil {
			return 0, err
		}
		kids = append(kids, child)
	}
	if len(kids) > 0 {
		sp.cmd.AddComponents(eid, &Children{Entities: kids})
	}
	return eid, nil
}

func (sp *gltfSpawner) spawnPrimitives(meshIdx uint32, parent EntityId) ([]EntityId, error) {
	if int(meshIdx) >= len(sp.doc.Meshes) {
		return nil, errors.Errorf("mesh %d out of range", meshIdx)
	}
	mesh := sp.doc.Meshes[meshIdx]

	prims := make([]EntityId, 0, len(mesh.Primitives))
	for i, prim := range mesh.Primitives {
		handle, err := sp.material(prim.Material)
		if err != nil {
			return nil, errors.Wrapf(err, "mesh %q primitive %d", mesh.Name, i)
		}
		comps := []any{
			ptr(IdentityTransform()),
			&WorldTransform{},
			&Parent{Entity: parent},
			&MeshMaterial{Material: handle},
		}
		if mesh.Name != "" {
			comps = append(comps, &Name{Value: fmt.Sprintf("%s.%d", mesh.Name, i)})
		}
		prims = append(prims, sp.cmd.AddEntity(comps...))
	}
	return prims, nil
}

// material converts each glTF material once; primitives without one share a
// default material.
func (sp *gltfSpawner) material(idx *uint32) (MaterialHandle, error) {
	if idx == nil {
		if sp.defaultMaterial == nil {
			h := sp.materials.Add(DefaultStandardMaterial())
			sp.defaultMaterial = &h
		}
		return *sp.defaultMaterial, nil
	}
	if h, ok := sp.handles[*idx]; ok {
		return h, nil
	}
	if int(*idx) >= len(sp.doc.Materials) {
		return MaterialHandle{}, errors.Errorf("material %d out of range", *idx)
	}

	src := sp.doc.Materials[*idx]
	mat := DefaultStandardMaterial()
	mat.Name = src.Name
	if pbr := src.PBRMetallicRoughness; pbr != nil {
		if pbr.BaseColorFactor != nil {
			mat.BaseColor = mgl32.Vec4(*pbr.BaseColorFactor)
		}
		// glTF defaults both factors to 1 when absent.
		mat.Metallic = 1
		if pbr.MetallicFactor != nil {
			mat.Metallic = *pbr.MetallicFactor
		}
		mat.PerceptualRoughness = 1
		if pbr.RoughnessFactor != nil {
			mat.PerceptualRoughness = *pbr.RoughnessFactor
		}
	}

	h := sp.materials.Add(mat)
	sp.handles[*idx] = h
	return h, nil
}

// nodeTransform reads TRS, or decomposes the matrix when one is given. Zero
// valued fields (nodes built in code rather than decoded) mean identity.
func nodeTransform(node *gltf.Node) LocalTransform {
	tr := IdentityTransform()

	if node.Matrix != ([16]float32{}) && node.Matrix != identityMatrix {
		m := mgl32.Mat4(node.Matrix)
		tr.Position = m.Col(3).Vec3()
		sx, sy, sz := m.Col(0).Vec3().Len(), m.Col(1).Vec3().Len(), m.Col(2).Vec3().Len()
		tr.Scale = mgl32.Vec3{sx, sy, sz}
		if sx != 0 && sy != 0 && sz != 0 {
			rot := mgl32.Mat3FromCols(
				m.Col(0).Vec3().Mul(1/sx),
				m.Col(1).Vec3().Mul(1/sy),
				m.Col(2).Vec3().Mul(1/sz),
			)
			tr.Rotation = mgl32.Mat4ToQuat(rot.Mat4()).Normalize()
		}
		return tr
	}

	tr.Position = mgl32.Vec3(node.Translation)
	if node.Rotation != ([4]float32{}) {
		r := node.Rotation
		tr.Rotation = mgl32.Quat{W: r[3], V: mgl32.Vec3{r[0], r[1], r[2]}}.Normalize()
	}
	if node.Scale != ([3]float32{}) {
		tr.Scale = mgl32.Vec3(node.Scale)
	}
	return tr
}

var identityMatrix = [16]float32{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}

func ptr[T any](v T) *T {
	return &v
}
