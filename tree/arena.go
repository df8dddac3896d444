package tree

import (
	"sync"
	"sync/atomic"
)

const arenaSlabSize = 256

// arena is a slab of subtrees. A tree holds a reference to each slab its allocator filled, and a slab holds
// a reference to each other slab its nodes have children in. A slab goes back to the pool once nothing
// refers to it.
type arena struct {
	subtrees []Subtree
	used     int
	refs     atomic.Int32

	// deps is written only while the slab is being filled.
	deps map[*arena]struct{}
}

var arenaPool = sync.Pool{
	New: func() any {
		return &arena{
			subtrees: make([]Subtree, arenaSlabSize),
		}
	},
}

func acquireArena() *arena {
	a := arenaPool.Get().(*arena)
	a.refs.Store(1)
	liveArenas.Add(1)
	return a
}

func (a *arena) retain() {
	a.refs.Add(1)
}

func (a *arena) release() {
	if a.refs.Add(-1) != 0 {
		return
	}
	for i := 0; i < a.used; i++ {
		a.subtrees[i] = Subtree{}
	}
	a.used = 0
	liveArenas.Add(-1)
	deps := a.deps
	a.deps = nil
	arenaPool.Put(a)
	for d := range deps {
		d.release()
	}
}

// dependOn makes a keep d alive.
func (a *arena) dependOn(d *arena) {
	if d == nil || d == a {
		return
	}
	if _, ok := a.deps[d]; ok {
		return
	}
	if a.deps == nil {
		a.deps = map[*arena]struct{}{}
	}
	d.retain()
	a.deps[d] = struct{}{}
}

func (a *arena) alloc() (*Subtree, bool) {
	if a.used >= len(a.subtrees) {
		return nil, false
	}
	s := &a.subtrees[a.used]
	a.used++
	return s, true
}

// Allocator hands out the subtrees of one tree generation. Its slabs pass to the tree built with NewTree,
// so an allocator must be used for one tree only.
type Allocator struct {
	arenas  []*arena
	current *arena
}

func NewAllocator() *Allocator {
	return &Allocator{}
}

func (a *Allocator) alloc() (*Subtree, *arena) {
	if a.current != nil {
		if s, ok := a.current.alloc(); ok {
			return s, a.current
		}
	}
	a.current = acquireArena()
	a.arenas = append(a.arenas, a.current)
	s, _ := a.current.alloc()
	return s, a.current
}

// take hands the slabs over to a tree rooted at root. A root living in a slab of another generation is
// kept alive as well.
func (a *Allocator) take(root *Subtree) []*arena {
	arenas := a.arenas
	if root != nil && root.arena != nil {
		own := false
		for _, ar := range arenas {
			if ar == root.arena {
				own = true
				break
			}
		}
		if !own {
			root.arena.retain()
			arenas = append(arenas, root.arena)
		}
	}
	a.arenas = nil
	a.current = nil
	return arenas
}

// LiveArenas returns the number of slabs currently handed out. It is meant for tests checking that
// released trees give their memory back.
func LiveArenas() int {
	return int(liveArenas.Load())
}

var liveArenas atomic.Int64
