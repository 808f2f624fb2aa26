package registry

import "slices"

type sessionID uint64

// fileIndex maps filenames to the sessions publishing them.
// For each name owners are kept in publication order, the most recent one is returned by lookup.
type fileIndex struct {
	owners  map[string][]sessionID
	byOwner map[sessionID]map[string]struct{}
}

func newFileIndex() *fileIndex {
	return &fileIndex{
		owners:  map[string][]sessionID{},
		byOwner: map[sessionID]map[string]struct{}{},
	}
}

func (idx *fileIndex) put(name string, owner sessionID) {
	owners := slices.DeleteFunc(idx.owners[name], func(o sessionID) bool {
		return o == owner
	})
	idx.owners[name] = append(owners, owner)

	names, exists := idx.byOwner[owner]
	if !exists {
		names = map[string]struct{}{}
		idx.byOwner[owner] = names
	}
	names[name] = struct{}{}
}

func (idx *fileIndex) removeAll(owner sessionID) {
	for name := range idx.byOwner[owner] {
		owners := slices.DeleteFunc(idx.owners[name], func(o sessionID) bool {
			return o == owner
		})
		if len(owners) == 0 {
			delete(idx.owners, name)
		} else {
			idx.owners[name] = owners
		}
	}
	delete(idx.byOwner, owner)
}

func (idx *fileIndex) lookup(name string) (sessionID, bool) {
	owners := idx.owners[name]
	if len(owners) == 0 {
		return 0, false
	}
	return owners[len(owners)-1], true
}
