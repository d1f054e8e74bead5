package index

import (
	"sort"

	"github.com/google/btree"
	"github.com/pingcap-incubator/tinydoc/kv/mutation"
)

type uniqueEntry struct {
	pk    int
	count int
}

// attributeItem is an immutable entry of a filter or sort sub-index. count tells how many times the
// same value was inserted for the same primary key, which happens in ReferencedEntityType partitions.
type attributeItem struct {
	value interface{}
	pk    int
	count int
}

func (i attributeItem) Less(than btree.Item) bool {
	o := than.(attributeItem)
	if c := mutation.CompareValues(i.value, o.value); c != 0 {
		return c < 0
	}
	return i.pk < o.pk
}

func (idx *EntityIndex) InsertUnique(key AttributeIndexKey, value interface{}, pk int) error {
	m, ok := idx.unique[key]
	if !ok {
		m = make(map[string]uniqueEntry)
		idx.unique[key] = m
	}
	vk := mutation.ValueKey(value)
	if e, ok := m[vk]; ok {
		if e.pk != pk {
			return &UniqueViolation{Index: idx.key, Attribute: key, Value: value, ExistingPK: e.pk, PK: pk}
		}
		e.count++
		m[vk] = e
		return nil
	}
	m[vk] = uniqueEntry{pk: pk, count: 1}
	return nil
}

func (idx *EntityIndex) RemoveUnique(key AttributeIndexKey, value interface{}, pk int) error {
	m := idx.unique[key]
	vk := mutation.ValueKey(value)
	e, ok := m[vk]
	if !ok || e.pk != pk {
		return inconsistent(idx.key, "unique attribute %s has no value %v for entity %d", key, value, pk)
	}
	if e.count > 1 {
		e.count--
		m[vk] = e
		return nil
	}
	delete(m, vk)
	if len(m) == 0 {
		delete(idx.unique, key)
	}
	return nil
}

// UniqueLookup returns the entity holding value of a unique attribute.
func (idx *EntityIndex) UniqueLookup(key AttributeIndexKey, value interface{}) (int, bool) {
	e, ok := idx.unique[key][mutation.ValueKey(value)]
	return e.pk, ok
}

func (idx *EntityIndex) InsertFilter(key AttributeIndexKey, value interface{}, pk int) {
	insertAttribute(idx.filter, key, value, pk)
}

func (idx *EntityIndex) RemoveFilter(key AttributeIndexKey, value interface{}, pk int) error {
	if !removeAttribute(idx.filter, key, value, pk) {
		return inconsistent(idx.key, "filter attribute %s has no value %v for entity %d", key, value, pk)
	}
	return nil
}

func (idx *EntityIndex) InsertSort(key AttributeIndexKey, value interface{}, pk int) {
	insertAttribute(idx.sort, key, value, pk)
}

func (idx *EntityIndex) RemoveSort(key AttributeIndexKey, value interface{}, pk int) error {
	if !removeAttribute(idx.sort, key, value, pk) {
		return inconsistent(idx.key, "sort attribute %s has no value %v for entity %d", key, value, pk)
	}
	return nil
}

func insertAttribute(trees map[AttributeIndexKey]*btree.BTree, key AttributeIndexKey, value interface{}, pk int) {
	t, ok := trees[key]
	if !ok {
		t = btree.New(btreeDegree)
		trees[key] = t
	}
	item := attributeItem{value: value, pk: pk, count: 1}
	if old := t.Get(item); old != nil {
		item.count = old.(attributeItem).count + 1
	}
	t.ReplaceOrInsert(item)
}

func removeAttribute(trees map[AttributeIndexKey]*btree.BTree, key AttributeIndexKey, value interface{}, pk int) bool {
	t, ok := trees[key]
	if !ok {
		return false
	}
	old := t.Get(attributeItem{value: value, pk: pk})
	if old == nil {
		return false
	}
	if item := old.(attributeItem); item.count > 1 {
		item.count--
		t.ReplaceOrInsert(item)
		return true
	}
	t.Delete(old)
	if t.Len() == 0 {
		delete(trees, key)
	}
	return true
}

// FilterEquals returns the entities whose filterable attribute equals value, in ascending order.
func (idx *EntityIndex) FilterEquals(key AttributeIndexKey, value interface{}) []int {
	return idx.FilterRange(key, value, value)
}

// FilterRange returns the entities whose filterable attribute lies within [from, to], in ascending
// order. A nil bound is open.
func (idx *EntityIndex) FilterRange(key AttributeIndexKey, from, to interface{}) []int {
	t, ok := idx.filter[key]
	if !ok {
		return nil
	}
	seen := make(map[int]struct{})
	visit := func(i btree.Item) bool {
		item := i.(attributeItem)
		if to != nil && mutation.CompareValues(item.value, to) > 0 {
			return false
		}
		seen[item.pk] = struct{}{}
		return true
	}
	if from == nil {
		t.Ascend(visit)
	} else {
		t.AscendGreaterOrEqual(attributeItem{value: from, pk: minInt}, visit)
	}
	return sortedSet(seen)
}

// SortedPrimaryKeys returns the entities ordered by the sortable attribute and then by primary key.
func (idx *EntityIndex) SortedPrimaryKeys(key AttributeIndexKey) []int {
	t, ok := idx.sort[key]
	if !ok {
		return nil
	}
	res := make([]int, 0, t.Len())
	t.Ascend(func(i btree.Item) bool {
		res = append(res, i.(attributeItem).pk)
		return true
	})
	return res
}

// AttributeKeys returns the keys of all attribute sub-indexes of the given type.
func (idx *EntityIndex) AttributeKeys(t IndexType) []AttributeIndexKey {
	var res []AttributeIndexKey
	switch t {
	case AttributeUnique:
		for k := range idx.unique {
			res = append(res, k)
		}
	case AttributeFilter:
		for k := range idx.filter {
			res = append(res, k)
		}
	case AttributeSort:
		for k := range idx.sort {
			res = append(res, k)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].String() < res[j].String() })
	return res
}
