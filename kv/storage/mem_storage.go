package storage

import (
	"bytes"
	"sync"

	"github.com/petar/GoLLRB/llrb"
	"github.com/pingcap-incubator/tinydoc/kv/util/engine_util"
	"github.com/pingcap/errors"
)

// MemStorage is a Storage backed by memory. Data is not written to disk. It is intended for testing
// and for collections which never need to survive a restart.
type MemStorage struct {
	mu  sync.RWMutex
	cfs map[string]*llrb.LLRB
	// Writes counts batches written, tests use it to check flush amortization.
	Writes int
}

func NewMemStorage() *MemStorage {
	cfs := make(map[string]*llrb.LLRB, len(engine_util.CFs))
	for _, cf := range engine_util.CFs {
		cfs[cf] = llrb.New()
	}
	return &MemStorage{cfs: cfs}
}

func (s *MemStorage) Start() error {
	return nil
}

func (s *MemStorage) Stop() error {
	return nil
}

func (s *MemStorage) Reader() (StorageReader, error) {
	return &memReader{s}, nil
}

func (s *MemStorage) Write(batch []Modify) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range batch {
		tree, ok := s.cfs[m.Cf()]
		if !ok {
			return errors.Errorf("mem-storage: bad CF %s", m.Cf())
		}
		switch data := m.Data.(type) {
		case Put:
			tree.ReplaceOrInsert(memItem{key: data.Key, value: data.Value})
		case Delete:
			tree.Delete(memItem{key: data.Key})
		}
	}
	s.Writes++
	return nil
}

// Len returns the number of keys stored in cf, or -1 for an unknown column family.
func (s *MemStorage) Len(cf string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if tree, ok := s.cfs[cf]; ok {
		return tree.Len()
	}
	return -1
}

// memReader is a StorageReader which reads from a MemStorage.
type memReader struct {
	inner *MemStorage
}

func (mr *memReader) GetCF(cf string, key []byte) ([]byte, error) {
	mr.inner.mu.RLock()
	defer mr.inner.mu.RUnlock()
	tree, ok := mr.inner.cfs[cf]
	if !ok {
		return nil, errors.Errorf("mem-storage: bad CF %s", cf)
	}
	result := tree.Get(memItem{key: key})
	if result == nil {
		return nil, nil
	}
	return result.(memItem).value, nil
}

// IterCF iterates over a snapshot of cf taken when the iterator is created.
func (mr *memReader) IterCF(cf string) engine_util.DBIterator {
	mr.inner.mu.RLock()
	defer mr.inner.mu.RUnlock()
	var items []memItem
	if tree, ok := mr.inner.cfs[cf]; ok && tree.Len() > 0 {
		tree.AscendGreaterOrEqual(tree.Min(), func(i llrb.Item) bool {
			items = append(items, i.(memItem))
			return true
		})
	}
	return &memIter{items: items}
}

func (mr *memReader) Close() {}

type memIter struct {
	items []memItem
	pos   int
}

func (it *memIter) Item() engine_util.DBItem {
	return it.items[it.pos]
}

func (it *memIter) Valid() bool {
	return it.pos < len(it.items)
}

func (it *memIter) Next() {
	it.pos++
}

func (it *memIter) Seek(key []byte) {
	it.pos = 0
	for it.pos < len(it.items) && bytes.Compare(it.items[it.pos].key, key) < 0 {
		it.pos++
	}
}

func (it *memIter) Close() {}

type memItem struct {
	key   []byte
	value []byte
}

func (it memItem) Key() []byte {
	return it.key
}

func (it memItem) Value() ([]byte, error) {
	return it.value, nil
}

func (it memItem) Less(than llrb.Item) bool {
	other := than.(memItem)
	return bytes.Compare(it.key, other.key) < 0
}
