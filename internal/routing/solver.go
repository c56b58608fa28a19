package routing

import (
	"math"

	"reqflow/internal/geom"
)

// ── Frontier (min-heap) ────────────────────────────────────

// state is a node reached with a given last-segment orientation. Tracking the
// orientation lets equal-length routes be ranked by their bend count.
type state struct {
	id     int // node*3 + orientation
	node   int
	dir    orientation
	length float64
	bends  int
	pt     geom.Point
}

// before orders states by length, then bends, then x, then y. The last two
// keys make the search deterministic when several routes cost the same.
func (a *state) before(b *state) bool {
	if d := a.length - b.length; math.Abs(d) > 1e-9 {
		return d < 0
	}
	if a.bends != b.bends {
		return a.bends < b.bends
	}
	if a.pt.X != b.pt.X {
		return a.pt.X < b.pt.X
	}
	return a.pt.Y < b.pt.Y
}

type frontier []*state

func (pq *frontier) push(s *state) {
	*pq = append(*pq, s)
	pq.up(len(*pq) - 1)
}

func (pq *frontier) pop() *state {
	old := *pq
	n := len(old)
	if n == 0 {
		return nil
	}
	item := old[0]
	old[0] = old[n-1]
	*pq = old[:n-1]
	if len(*pq) > 0 {
		pq.down(0)
	}
	return item
}

func (pq *frontier) up(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !(*pq)[i].before((*pq)[p]) {
			break
		}
		(*pq)[i], (*pq)[p] = (*pq)[p], (*pq)[i]
		i = p
	}
}

func (pq *frontier) down(i int) {
	n := len(*pq)
	for {
		s, l, r := i, 2*i+1, 2*i+2
		if l < n && (*pq)[l].before((*pq)[s]) {
			s = l
		}
		if r < n && (*pq)[r].before((*pq)[s]) {
			s = r
		}
		if s == i {
			break
		}
		(*pq)[i], (*pq)[s] = (*pq)[s], (*pq)[i]
		i = s
	}
}

// ── Dijkstra ───────────────────────────────────────────────

// ShortestPath returns the points from node from to node to inclusive along a
// minimum Manhattan-length route. Among routes of equal length the one with
// fewer bends wins. It stops as soon as to is popped from the frontier.
func ShortestPath(g *Graph, from, to int) ([]geom.Point, error) {
	if from < 0 || to < 0 || from >= len(g.Nodes) || to >= len(g.Nodes) {
		return nil, ErrUnreachable
	}
	if from == to {
		return []geom.Point{g.Nodes[from]}, nil
	}

	n := len(g.Nodes) * 3
	best := make([]*state, n)
	prev := make([]int, n)
	done := make([]bool, n)
	for i := range prev {
		prev[i] = -1
	}

	origin := &state{id: from * 3, node: from, dir: dirNone, pt: g.Nodes[from]}
	best[origin.id] = origin
	pq := &frontier{}
	pq.push(origin)

	var goal *state
	for len(*pq) > 0 {
		cur := pq.pop()
		if done[cur.id] {
			continue
		}
		done[cur.id] = true
		if cur.node == to {
			goal = cur
			break
		}

		for _, e := range g.adj[cur.node] {
			bends := cur.bends
			if cur.dir != dirNone && cur.dir != e.dir {
				bends++
			}
			next := &state{
				id:     e.to*3 + int(e.dir),
				node:   e.to,
				dir:    e.dir,
				length: cur.length + e.w,
				bends:  bends,
				pt:     g.Nodes[e.to],
			}
			if done[next.id] {
				continue
			}
			if b := best[next.id]; b != nil && !next.before(b) {
				continue
			}
			best[next.id] = next
			prev[next.id] = cur.id
			pq.push(next)
		}
	}

	if goal == nil {
		return nil, ErrUnreachable
	}

	var path []geom.Point
	for id := goal.id; id >= 0; id = prev[id] {
		path = append(path, g.Nodes[id/3])
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}
