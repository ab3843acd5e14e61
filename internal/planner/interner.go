package planner

import "github.com/lherron/nestmig/internal/paths"

// interner assigns dense uint32 ids to paths so sets of paths can be kept
// in roaring bitmaps.
type interner struct {
	ids   map[string]uint32
	paths []paths.Path
}

func newInterner() *interner {
	return &interner{ids: make(map[string]uint32)}
}

func (in *interner) intern(p paths.Path) uint32 {
	key := p.Key()
	if id, ok := in.ids[key]; ok {
		return id
	}
	id := uint32(len(in.paths))
	in.ids[key] = id
	in.paths = append(in.paths, p)
	return id
}

func (in *interner) lookup(p paths.Path) (uint32, bool) {
	id, ok := in.ids[p.Key()]
	return id, ok
}

func (in *interner) path(id uint32) paths.Path {
	return in.paths[id]
}
