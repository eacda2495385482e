package lightmapper

import (
	"reflect"
)

// Commands is handed to every system. Structural changes (spawning, adding or
// removing components) are buffered and applied when the current stage ends,
// so queries stay valid while a system iterates them.
type Commands struct {
	app *App
}

func (cmd *Commands) AddResources(resources ...any) *Commands {
	cmd.app.addResources(resources...)
	return cmd
}

func (cmd *Commands) AddEntity(components ...any) EntityId {
	eid := cmd.app.ecs.nextEntityId()
	cmd.app.pendingAdditions = append(cmd.app.pendingAdditions, pendingAdd{
		eid:        eid,
		components: components,
	})
	return eid
}

func (cmd *Commands) AddComponents(entityId EntityId, components ...any) {
	cmd.app.pendingCompAdds = append(cmd.app.pendingCompAdds, pendingCompChange{
		eid:        entityId,
		components: components,
	})
}

func (cmd *Commands) RemoveComponents(entityId EntityId, components ...any) {
	cmd.app.pendingCompRemovals = append(cmd.app.pendingCompRemovals, pendingCompChange{
		eid:        entityId,
		components: components,
	})
}

func (cmd *Commands) RemoveEntity(entityId EntityId) {
	cmd.app.pendingRemovals = append(cmd.app.pendingRemovals, entityId)
}

// HasEntity reports whether the entity exists in the flushed world.
func (cmd *Commands) HasEntity(entityId EntityId) bool {
	return cmd.app.ecs.hasEntity(entityId)
}

// GetAllComponents returns copies of every component on the entity, in
// component registration order.
func (cmd *Commands) GetAllComponents(entityId EntityId) []any {
	ecs := cmd.app.ecs
	archId, ok := ecs.entityIndex[entityId]
	if !ok {
		return nil
	}
	arch := ecs.archetypes[archId]
	row := arch.entities[entityId]

	res := make([]any, 0, len(arch.key))
	for _, compId := range arch.key {
		val := reflectSliceGet(arch.componentData[compId], int(row))
		res = append(res, val.Interface())
	}
	return res
}

// GetComponent returns a pointer into the entity's storage for T, valid until
// the next flush.
func GetComponent[T any](cmd *Commands, entityId EntityId) (*T, bool) {
	ecs := cmd.app.ecs
	archId, ok := ecs.entityIndex[entityId]
	if !ok {
		return nil, false
	}
	arch := ecs.archetypes[archId]
	data, ok := arch.componentData[ecs.getComponentId(reflect.TypeFor[T]())]
	if !ok {
		return nil, false
	}
	return &data.([]T)[arch.entities[entityId]], true
}

// GetResource looks up a resource registered under *T.
func GetResource[T any](cmd *Commands) (*T, bool) {
	res, ok := cmd.app.resources[reflect.TypeFor[T]()]
	if !ok {
		return nil, false
	}
	typed, ok := res.(*T)
	return typed, ok
}
