package index

import (
	"sort"
)

// Indexes is what the index mutators need from the owner of the partitions. Get returns nil for a
// partition which is not present.
type Indexes interface {
	Get(key Key) *EntityIndex
	GetOrCreate(key Key) *EntityIndex
	Remove(key Key)
}

// Listener is told about partitions appearing in and disappearing from a registry.
type Listener interface {
	PartitionCreated(key Key)
	PartitionRemoved(key Key)
}

// Registry owns the index partitions of one entity collection. It does no locking, writers are
// serialized by the collection.
type Registry struct {
	partitions map[Key]*EntityIndex
	listener   Listener
	version    uint64
}

func NewRegistry() *Registry {
	return &Registry{partitions: make(map[Key]*EntityIndex)}
}

func (r *Registry) SetListener(l Listener) {
	r.listener = l
}

func (r *Registry) Get(key Key) *EntityIndex {
	return r.partitions[key]
}

func (r *Registry) GetOrCreate(key Key) *EntityIndex {
	if idx, ok := r.partitions[key]; ok {
		return idx
	}
	idx := NewEntityIndex(key)
	r.partitions[key] = idx
	if r.listener != nil {
		r.listener.PartitionCreated(key)
	}
	return idx
}

func (r *Registry) put(key Key, idx *EntityIndex) {
	_, ok := r.partitions[key]
	r.partitions[key] = idx
	if !ok && r.listener != nil {
		r.listener.PartitionCreated(key)
	}
}

func (r *Registry) Remove(key Key) {
	if _, ok := r.partitions[key]; !ok {
		return
	}
	delete(r.partitions, key)
	if r.listener != nil {
		r.listener.PartitionRemoved(key)
	}
}

// Version changes every time a layer is committed into the registry.
func (r *Registry) Version() uint64 {
	return r.version
}

func (r *Registry) Len() int {
	return len(r.partitions)
}

// Keys returns the keys of all partitions, Global first.
func (r *Registry) Keys() []Key {
	res := make([]Key, 0, len(r.partitions))
	for k := range r.partitions {
		res = append(res, k)
	}
	sortKeys(res)
	return res
}

// NewLayer starts a private overlay of the registry.
func (r *Registry) NewLayer() *Layer {
	return &Layer{
		base:       r,
		partitions: make(map[Key]*EntityIndex),
		removed:    make(map[Key]struct{}),
	}
}

// Layer is a copy-on-write view of a registry owned by one transaction. A partition is cloned from
// the registry the first time the layer touches it, the registry itself is never written.
type Layer struct {
	base       *Registry
	partitions map[Key]*EntityIndex
	removed    map[Key]struct{}
}

func (l *Layer) Get(key Key) *EntityIndex {
	if _, ok := l.removed[key]; ok {
		return nil
	}
	if idx, ok := l.partitions[key]; ok {
		return idx
	}
	base := l.base.Get(key)
	if base == nil {
		return nil
	}
	idx := base.Clone()
	l.partitions[key] = idx
	return idx
}

func (l *Layer) GetOrCreate(key Key) *EntityIndex {
	if idx := l.Get(key); idx != nil {
		return idx
	}
	delete(l.removed, key)
	idx := NewEntityIndex(key)
	l.partitions[key] = idx
	return idx
}

func (l *Layer) Remove(key Key) {
	delete(l.partitions, key)
	l.removed[key] = struct{}{}
}

// Keys returns the keys of the partitions visible through the layer.
func (l *Layer) Keys() []Key {
	seen := make(map[Key]struct{}, len(l.base.partitions)+len(l.partitions))
	for k := range l.base.partitions {
		if _, ok := l.removed[k]; !ok {
			seen[k] = struct{}{}
		}
	}
	for k := range l.partitions {
		seen[k] = struct{}{}
	}
	res := make([]Key, 0, len(seen))
	for k := range seen {
		res = append(res, k)
	}
	sortKeys(res)
	return res
}

// Commit installs the partitions the layer touched into the registry. The layer is empty afterwards.
func (l *Layer) Commit() {
	for k := range l.removed {
		l.base.Remove(k)
	}
	for k, idx := range l.partitions {
		l.base.put(k, idx)
	}
	l.base.version++
	l.Discard()
}

// Discard forgets everything the layer did.
func (l *Layer) Discard() {
	l.partitions = make(map[Key]*EntityIndex)
	l.removed = make(map[Key]struct{})
}

// Touched returns the number of partitions the layer copied, created or removed.
func (l *Layer) Touched() int {
	return len(l.partitions) + len(l.removed)
}

func sortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.ReferenceName != b.ReferenceName {
			return a.ReferenceName < b.ReferenceName
		}
		return a.PrimaryKey < b.PrimaryKey
	})
}
