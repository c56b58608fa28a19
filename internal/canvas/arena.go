package canvas

import "reqflow/internal/geom"

// Arena owns the node-position map of one workflow. Positions are top-left
// corners; every node shares the same size. Node order is insertion order
// and is also the draw order.
type Arena struct {
	nodeSize geom.Size
	order    []string
	pos      map[string]geom.Point
}

// NewArena creates an empty arena for nodes of the given size.
func NewArena(nodeSize geom.Size) *Arena {
	return &Arena{nodeSize: nodeSize, pos: make(map[string]geom.Point)}
}

// FromPositions builds an arena from a stored position map, ordering ids
// by the order slice. Ids in positions but not in order are ignored.
func FromPositions(nodeSize geom.Size, order []string, positions map[string]geom.Point) *Arena {
	a := NewArena(nodeSize)
	for _, id := range order {
		if p, ok := positions[id]; ok {
			a.Set(id, p)
		}
	}
	return a
}

// Set stores the position of id, appending it when new.
func (a *Arena) Set(id string, p geom.Point) {
	if _, ok := a.pos[id]; !ok {
		a.order = append(a.order, id)
	}
	a.pos[id] = p
}

// Remove purges id from the arena.
func (a *Arena) Remove(id string) {
	if _, ok := a.pos[id]; !ok {
		return
	}
	delete(a.pos, id)
	for i, v := range a.order {
		if v == id {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
}

// Position returns the stored top-left of id.
func (a *Arena) Position(id string) (geom.Point, bool) {
	p, ok := a.pos[id]
	return p, ok
}

// Rect returns the tight rect of id.
func (a *Arena) Rect(id string) (geom.Rect, bool) {
	p, ok := a.pos[id]
	if !ok {
		return geom.Rect{}, false
	}
	return geom.R(p.X, p.Y, a.nodeSize.W, a.nodeSize.H), true
}

// Len returns the number of placed nodes.
func (a *Arena) Len() int { return len(a.order) }

// ListObstacles returns the rect of every node except the excluded ids, in
// arena order. The result is a fresh slice on every call.
func (a *Arena) ListObstacles(exclude ...string) []geom.Obstacle {
	out := make([]geom.Obstacle, 0, len(a.order))
	for _, id := range a.order {
		if contains(exclude, id) {
			continue
		}
		r, _ := a.Rect(id)
		out = append(out, geom.Obstacle{ID: id, Rect: r})
	}
	return out
}

// Snapshot copies the position map.
func (a *Arena) Snapshot() map[string]geom.Point {
	out := make(map[string]geom.Point, len(a.pos))
	for k, v := range a.pos {
		out[k] = v
	}
	return out
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
