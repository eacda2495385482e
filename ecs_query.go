package lightmapper

import (
	"reflect"
	"slices"
)

// Queries visit matching entities in spawn order (ascending EntityId),
// independent of which archetype an entity currently lives in.
//
// To add a wider query:
//  1. Declare QueryN and MakeQueryN
//  2. Add identifyComponentsN
//  3. Implement Map following the existing ones
type Query1[A any] struct {
	ecs     *Ecs
	without []any
}
type Query2[A, B any] struct {
	ecs     *Ecs
	without []any
}
type Query3[A, B, C any] struct {
	ecs     *Ecs
	without []any
}
type Query4[A, B, C, D any] struct {
	ecs     *Ecs
	without []any
}

func MakeQuery1[A any](cmd *Commands) Query1[A]             { return Query1[A]{ecs: cmd.app.ecs} }
func MakeQuery2[A, B any](cmd *Commands) Query2[A, B]       { return Query2[A, B]{ecs: cmd.app.ecs} }
func MakeQuery3[A, B, C any](cmd *Commands) Query3[A, B, C] { return Query3[A, B, C]{ecs: cmd.app.ecs} }
func MakeQuery4[A, B, C, D any](cmd *Commands) Query4[A, B, C, D] {
	return Query4[A, B, C, D]{ecs: cmd.app.ecs}
}

// Without excludes entities carrying any of the given component types.
func (q Query1[A]) Without(components ...any) Query1[A] {
	q.without = append(slices.Clone(q.without), components...)
	return q
}

func (q Query2[A, B]) Without(components ...any) Query2[A, B] {
	q.without = append(slices.Clone(q.without), components...)
	return q
}

func (q Query3[A, B, C]) Without(components ...any) Query3[A, B, C] {
	q.without = append(slices.Clone(q.without), components...)
	return q
}

func (q Query4[A, B, C, D]) Without(components ...any) Query4[A, B, C, D] {
	q.without = append(slices.Clone(q.without), components...)
	return q
}

// queryColumn resolves one query argument against an archetype.
// ok is false when the archetype cannot satisfy the argument at all.
type queryColumn struct {
	data    any
	missing bool
}

func resolveColumn(arch *archetype, id componentId, opt set[componentId]) (queryColumn, bool) {
	if data, ok := arch.componentData[id]; ok {
		return queryColumn{data: data}, true
	}
	if _, ok := opt[id]; ok {
		return queryColumn{missing: true}, true
	}
	return queryColumn{}, false
}

func columnPtr[T any](col queryColumn, r row) *T {
	if col.missing {
		return nil
	}
	return &col.data.([]T)[r]
}

type queryMatch struct {
	eid  EntityId
	row  row
	cols []queryColumn
}

// matchArchetypes collects every (entity, row) satisfying ids, sorted by entity id.
func matchArchetypes(ecs *Ecs, ids []componentId, opt set[componentId], excluded set[componentId]) []queryMatch {
	var matches []queryMatch

ArchLoop:
	for _, archId := range ecs.archetypeOrder {
		arch := ecs.archetypes[archId]
		if len(arch.entities) == 0 {
			continue
		}
		for _, compId := range arch.key {
			if _, ok := excluded[compId]; ok {
				continue ArchLoop
			}
		}

		cols := make([]queryColumn, len(ids))
		for i, id := range ids {
			col, ok := resolveColumn(arch, id, opt)
			if !ok {
				continue ArchLoop
			}
			cols[i] = col
		}

		for entityId, r := range arch.entities {
			matches = append(matches, queryMatch{eid: entityId, row: r, cols: cols})
		}
	}

	slices.SortFunc(matches, func(a, b queryMatch) int {
		switch {
		case a.eid < b.eid:
			return -1
		case a.eid > b.eid:
			return 1
		}
		return 0
	})
	return matches
}

func (q Query1[A]) Map(m func(EntityId, *A) bool, optionals ...any) {
	id1 := identifyComponents1[A](q.ecs)
	matches := matchArchetypes(q.ecs, []componentId{id1}, identifyTypes(q.ecs, optionals...), identifyTypes(q.ecs, q.without...))

	for _, match := range matches {
		if !m(match.eid, columnPtr[A](match.cols[0], match.row)) {
			return
		}
	}
}

func (q Query2[A, B]) Map(m func(EntityId, *A, *B) bool, optionals ...any) {
	id1, id2 := identifyComponents2[A, B](q.ecs)
	matches := matchArchetypes(q.ecs, []componentId{id1, id2}, identifyTypes(q.ecs, optionals...), identifyTypes(q.ecs, q.without...))

	for _, match := range matches {
		a := columnPtr[A](match.cols[0], match.row)
		b := columnPtr[B](match.cols[1], match.row)
		if !m(match.eid, a, b) {
			return
		}
	}
}

func (q Query3[A, B, C]) Map(m func(EntityId, *A, *B, *C) bool, optionals ...any) {
	id1, id2, id3 := identifyComponents3[A, B, C](q.ecs)
	matches := matchArchetypes(q.ecs, []componentId{id1, id2, id3}, identifyTypes(q.ecs, optionals...), identifyTypes(q.ecs, q.without...))

	for _, match := range matches {
		a := columnPtr[A](match.cols[0], match.row)
		b := columnPtr[B](match.cols[1], match.row)
		c := columnPtr[C](match.cols[2], match.row)
		if !m(match.eid, a, b, c) {
			return
		}
	}
}

func (q Query4[A, B, C, D]) Map(m func(EntityId, *A, *B, *C, *D) bool, optionals ...any) {
	id1, id2, id3, id4 := identifyComponents4[A, B, C, D](q.ecs)
	matches := matchArchetypes(q.ecs, []componentId{id1, id2, id3, id4}, identifyTypes(q.ecs, optionals...), identifyTypes(q.ecs, q.without...))

	for _, match := range matches {
		a := columnPtr[A](match.cols[0], match.row)
		b := columnPtr[B](match.cols[1], match.row)
		c := columnPtr[C](match.cols[2], match.row)
		d := columnPtr[D](match.cols[3], match.row)
		if !m(match.eid, a, b, c, d) {
			return
		}
	}
}

func identifyTypes(ecs *Ecs, components ...any) set[componentId] {
	res := make(set[componentId])
	for _, c := range components {
		res[ecs.getComponentId(componentType(c))] = struct{}{}
	}

	return res
}

func identifyComponents1[A any](ecs *Ecs) componentId {
	return ecs.getComponentId(reflect.TypeFor[A]())
}

func identifyComponents2[A, B any](ecs *Ecs) (componentId, componentId) {
	return ecs.getComponentId(reflect.TypeFor[A]()), ecs.getComponentId(reflect.TypeFor[B]())
}

func identifyComponents3[A, B, C any](ecs *Ecs) (componentId, componentId, componentId) {
	return ecs.getComponentId(reflect.TypeFor[A]()), ecs.getComponentId(reflect.TypeFor[B]()), ecs.getComponentId(reflect.TypeFor[C]())
}

func identifyComponents4[A, B, C, D any](ecs *Ecs) (componentId, componentId, componentId, componentId) {
	return ecs.getComponentId(reflect.TypeFor[A]()), ecs.getComponentId(reflect.TypeFor[B]()), ecs.getComponentId(reflect.TypeFor[C]()), ecs.getComponentId(reflect.TypeFor[D]())
}
