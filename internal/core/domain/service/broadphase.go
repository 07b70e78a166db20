package service

import (
	"sort"

	"github.com/azrael-sim/azrael/internal/core/domain/entity"
)

// unionFind is a minimal disjoint-set structure over a dense slice of
// body ids, used to turn pairwise AABB overlaps into connected
// components (islands).
type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), rank: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	if uf.rank[ra] < uf.rank[rb] {
		ra, rb = rb, ra
	}
	uf.parent[rb] = ra
	if uf.rank[ra] == uf.rank[rb] {
		uf.rank[ra]++
	}
}

// broadphaseBody is the minimal per-body data the broadphase needs.
type broadphaseBody struct {
	ID     entity.BodyID
	AABB   entity.AABB
	Static bool
	Active bool // false for sleeping bodies; they still collide but don't get their own island
}

// BuildIslands partitions bodies into collision islands using
// sweep-and-prune over the x-axis to find overlapping AABB pairs,
// followed by union-find to collapse overlap edges into connected
// components (spec.md §4.5 Phase D). A sweep over sorted interval
// endpoints is chosen over a fixed-cell grid (the shape the teacher
// pack uses in colliderdispatcher.go) because body extents in this
// domain can vary by orders of magnitude once Compound shapes and
// StaticPlane are in play, which defeats a single fixed cell size.
//
// Static (InvMass==0) bodies with no active overlap are skipped
// entirely; static bodies overlapping more than one active island are
// included, read-only, in every one of them (StaticOnly), per spec.md's
// tie-break rule.
func BuildIslands(bodies []broadphaseBody) []entity.Island {
	n := len(bodies)
	if n == 0 {
		return nil
	}

	type endpoint struct {
		value  float64
		index  int
		isLow  bool
	}
	endpoints := make([]endpoint, 0, 2*n)
	for i, b := range bodies {
		endpoints = append(endpoints,
			endpoint{value: b.AABB.Min[0], index: i, isLow: true},
			endpoint{value: b.AABB.Max[0], index: i, isLow: false},
		)
	}
	sort.Slice(endpoints, func(i, j int) bool {
		if endpoints[i].value != endpoints[j].value {
			return endpoints[i].value < endpoints[j].value
		}
		// Process "low" before "high" at equal coordinates so
		// zero-width overlaps on this axis are still caught.
		return endpoints[i].isLow && !endpoints[j].isLow
	})

	uf := newUnionFind(n)
	active := make(map[int]struct{})
	// Each pair found active simultaneously on the x sweep is checked
	// for full 3D AABB overlap before unioning.
	for _, ep := range endpoints {
		if ep.isLow {
			for j := range active {
				if j == ep.index {
					continue
				}
				a, b := bodies[ep.index], bodies[j]
				if a.Static || b.Static {
					// Static bodies never get unioned into a dynamic
					// component here; attachSharedStatics replicates them,
					// read-only, into every island that overlaps them, so
					// a single static can't merge two otherwise-disjoint
					// dynamic clusters into one island.
					continue
				}
				if a.AABB.Overlaps(b.AABB) {
					uf.union(ep.index, j)
				}
			}
			active[ep.index] = struct{}{}
		} else {
			delete(active, ep.index)
		}
	}

	componentOf := make(map[int][]int)
	for i := range bodies {
		root := uf.find(i)
		componentOf[root] = append(componentOf[root], i)
	}

	var islands []entity.Island
	var nextIslandID uint64
	for _, members := range componentOf {
		hasActiveNonStatic := false
		for _, i := range members {
			if bodies[i].Active && !bodies[i].Static {
				hasActiveNonStatic = true
				break
			}
		}
		if len(members) == 1 {
			b := bodies[members[0]]
			if b.Static || !b.Active {
				// A lone static body, or a lone sleeping body with no
				// overlaps, forms no island of its own.
				continue
			}
		}
		if !hasActiveNonStatic {
			continue
		}

		nextIslandID++
		island := entity.Island{ID: nextIslandID, StaticOnly: map[entity.BodyID]bool{}}
		for _, i := range members {
			island.Bodies = append(island.Bodies, bodies[i].ID)
		}
		islands = append(islands, island)
	}

	return attachSharedStatics(islands, bodies)
}

// attachSharedStatics adds each static body, read-only, to every island
// whose members overlap it (e.g. a ground plane touching two separate
// clusters that don't themselves overlap is present in both). Static
// bodies are never unioned in BuildIslands, so this is the only way one
// enters an island.
func attachSharedStatics(islands []entity.Island, bodies []broadphaseBody) []entity.Island {
	byID := make(map[entity.BodyID]broadphaseBody, len(bodies))
	for _, b := range bodies {
		byID[b.ID] = b
	}

	for _, b := range bodies {
		if !b.Static {
			continue
		}
		for i := range islands {
			if islands[i].StaticOnly[b.ID] {
				continue // already a member
			}
			overlapsIsland := false
			for _, memberID := range islands[i].Bodies {
				member := byID[memberID]
				if member.Static {
					continue
				}
				if member.AABB.Overlaps(b.AABB) {
					overlapsIsland = true
					break
				}
			}
			if overlapsIsland {
				islands[i].Bodies = append(islands[i].Bodies, b.ID)
				islands[i].StaticOnly[b.ID] = true
			}
		}
	}
	return islands
}
