package lightmapper

import (
	"slices"

	"github.com/go-gl/mathgl/mgl32"
)

// Name is the human-readable label a scene node was authored with.
type Name struct {
	Value string
}

type Parent struct {
	Entity EntityId
}

// Children lists immediate children in spawn order. It is derived from Parent
// by the hierarchy module; write Parent, not Children.
type Children struct {
	Entities []EntityId
}

type LocalTransform struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3
}

type WorldTransform struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3
}

func IdentityTransform() LocalTransform {
	return LocalTransform{
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{1, 1, 1},
	}
}

const maxHierarchyDepth = 16

type HierarchyModule struct{}

func (HierarchyModule) Install(app *App, cmd *Commands) {
	app.UseSystem(
		System(ChildrenSyncSystem).
			InStage(Prelude),
	)
	app.UseSystem(
		System(TransformHierarchySystem).
			InStage(PostUpdate),
	)
}

// ChildrenSyncSystem rebuilds every Children list from the Parent components.
func ChildrenSyncSystem(cmd *Commands) {
	byParent := make(map[EntityId][]EntityId)
	MakeQuery1[Parent](cmd).Map(func(eid EntityId, p *Parent) bool {
		byParent[p.Entity] = append(byParent[p.Entity], eid)
		return true
	})

	// Parents that lost all of their children.
	MakeQuery1[Children](cmd).Map(func(eid EntityId, ch *Children) bool {
		if _, ok := byParent[eid]; !ok && len(ch.Entities) > 0 {
			cmd.AddComponents(eid, &Children{})
		}
		return true
	})

	for parent, kids := range byParent {
		if !cmd.HasEntity(parent) {
			continue
		}
		if existing, ok := GetComponent[Children](cmd, parent); ok && slices.Equal(existing.Entities, kids) {
			continue
		}
		cmd.AddComponents(parent, &Children{Entities: kids})
	}
}

// ChildrenOf returns the immediate children of eid; grandchildren are not
// included.
func ChildrenOf(cmd *Commands, eid EntityId) []EntityId {
	if ch, ok := GetComponent[Children](cmd, eid); ok {
		return slices.Clone(ch.Entities)
	}
	return nil
}

// NameOf returns the entity's Name, if it carries one.
func NameOf(cmd *Commands, eid EntityId) (string, bool) {
	if n, ok := GetComponent[Name](cmd, eid); ok {
		return n.Value, true
	}
	return "", false
}

func TransformHierarchySystem(cmd *Commands) {
	// Roots: the local transform is the world transform.
	MakeQuery2[LocalTransform, WorldTransform](cmd).Without(Parent{}).Map(func(eid EntityId, local *LocalTransform, world *WorldTransform) bool {
		world.Position = local.Position
		world.Rotation = local.Rotation
		world.Scale = local.Scale
		return true
	})

	// Children converge one level per pass.
	for pass := 0; pass < maxHierarchyDepth; pass++ {
		changed := false
		MakeQuery3[LocalTransform, Parent, WorldTransform](cmd).Map(func(eid EntityId, local *LocalTransform, parent *Parent, world *WorldTransform) bool {
			parentWorld, ok := GetComponent[WorldTransform](cmd, parent.Entity)
			if !ok {
				return true
			}

			// WorldPos = ParentPos + ParentRot * (ParentScale * LocalPos)
			scaledLocalPos := mgl32.Vec3{
				local.Position.X() * parentWorld.Scale.X(),
				local.Position.Y() * parentWorld.Scale.Y(),
				local.Position.Z() * parentWorld.Scale.Z(),
			}
			newPos := parentWorld.Position.Add(parentWorld.Rotation.Rotate(scaledLocalPos))
			newRot := parentWorld.Rotation.Mul(local.Rotation).Normalize()
			newScale := mgl32.Vec3{
				parentWorld.Scale.X() * local.Scale.X(),
				parentWorld.Scale.Y() * local.Scale.Y(),
				parentWorld.Scale.Z() * local.Scale.Z(),
			}

			if newPos != world.Position || newRot != world.Rotation || newScale != world.Scale {
				world.Position = newPos
				world.Rotation = newRot
				world.Scale = newScale
				changed = true
			}
			return true
		})
		if !changed {
			break
		}
	}
}
