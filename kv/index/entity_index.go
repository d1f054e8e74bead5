package index

import (
	"sort"

	"github.com/google/btree"
	"golang.org/x/text/language"
)

const (
	btreeDegree = 32

	minInt = -int(^uint(0)>>1) - 1
)

// EntityIndex is one index partition. All sub-indexes are created on the first entry and dropped with
// their last one, so an EntityIndex without entries is empty in every respect.
//
// An EntityIndex is not safe for concurrent use, the owner of the registry serializes writers.
type EntityIndex struct {
	key Key

	// Primary keys with the number of times each one was inserted.
	primaryKeys map[int]int

	unique map[AttributeIndexKey]map[string]uniqueEntry
	filter map[AttributeIndexKey]*btree.BTree
	sort   map[AttributeIndexKey]*btree.BTree

	prices map[PriceIndexKey]*btree.BTree

	// reference name -> facet -> owning primary keys
	facets map[string]map[FacetKey]map[int]struct{}

	placements map[int]placement
	hierarchy  *btree.BTree

	locales map[language.Tag]map[int]struct{}
}

func NewEntityIndex(key Key) *EntityIndex {
	return &EntityIndex{
		key:         key,
		primaryKeys: make(map[int]int),
		unique:      make(map[AttributeIndexKey]map[string]uniqueEntry),
		filter:      make(map[AttributeIndexKey]*btree.BTree),
		sort:        make(map[AttributeIndexKey]*btree.BTree),
		prices:      make(map[PriceIndexKey]*btree.BTree),
		facets:      make(map[string]map[FacetKey]map[int]struct{}),
		placements:  make(map[int]placement),
		hierarchy:   btree.New(btreeDegree),
		locales:     make(map[language.Tag]map[int]struct{}),
	}
}

func (idx *EntityIndex) Key() Key {
	return idx.key
}

// InsertPrimaryKey adds one occurrence of pk and returns how many there are now.
func (idx *EntityIndex) InsertPrimaryKey(pk int) int {
	idx.primaryKeys[pk]++
	return idx.primaryKeys[pk]
}

// RemovePrimaryKey removes one occurrence of pk and returns how many remain.
func (idx *EntityIndex) RemovePrimaryKey(pk int) (int, error) {
	n, ok := idx.primaryKeys[pk]
	if !ok {
		return 0, inconsistent(idx.key, "primary key %d is not present", pk)
	}
	if n == 1 {
		delete(idx.primaryKeys, pk)
		return 0, nil
	}
	idx.primaryKeys[pk] = n - 1
	return n - 1, nil
}

func (idx *EntityIndex) ContainsPrimaryKey(pk int) bool {
	_, ok := idx.primaryKeys[pk]
	return ok
}

// PrimaryKeys returns the distinct primary keys in ascending order.
func (idx *EntityIndex) PrimaryKeys() []int {
	return sortedKeys(idx.primaryKeys)
}

// RegisterLocale marks the entity as having values in locale, registering twice is harmless.
func (idx *EntityIndex) RegisterLocale(pk int, locale language.Tag) {
	pks, ok := idx.locales[locale]
	if !ok {
		pks = make(map[int]struct{})
		idx.locales[locale] = pks
	}
	pks[pk] = struct{}{}
}

func (idx *EntityIndex) UnregisterLocale(pk int, locale language.Tag) error {
	pks, ok := idx.locales[locale]
	if !ok {
		return inconsistent(idx.key, "locale %s is not registered", locale)
	}
	if _, ok := pks[pk]; !ok {
		return inconsistent(idx.key, "locale %s is not registered for entity %d", locale, pk)
	}
	delete(pks, pk)
	if len(pks) == 0 {
		delete(idx.locales, locale)
	}
	return nil
}

func (idx *EntityIndex) HasLocale(pk int, locale language.Tag) bool {
	_, ok := idx.locales[locale][pk]
	return ok
}

// LocalePrimaryKeys returns the entities having values in locale in ascending order.
func (idx *EntityIndex) LocalePrimaryKeys(locale language.Tag) []int {
	return sortedSet(idx.locales[locale])
}

// Locales returns the registered locales ordered by their string form.
func (idx *EntityIndex) Locales() []language.Tag {
	res := make([]language.Tag, 0, len(idx.locales))
	for l := range idx.locales {
		res = append(res, l)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].String() < res[j].String() })
	return res
}

// IsEmpty reports whether the partition holds no entry in any of its sub-indexes.
func (idx *EntityIndex) IsEmpty() bool {
	return len(idx.primaryKeys) == 0 && len(idx.unique) == 0 && len(idx.filter) == 0 &&
		len(idx.sort) == 0 && len(idx.prices) == 0 && len(idx.facets) == 0 &&
		len(idx.placements) == 0 && len(idx.locales) == 0
}

// Stats counts the entries of a partition.
type Stats struct {
	PrimaryKeys      int
	AttributeEntries int
	PriceEntries     int
	FacetEntries     int
	HierarchyEntries int
	Locales          int
}

func (idx *EntityIndex) Stats() Stats {
	s := Stats{
		PrimaryKeys:      len(idx.primaryKeys),
		HierarchyEntries: len(idx.placements),
		Locales:          len(idx.locales),
	}
	for _, m := range idx.unique {
		s.AttributeEntries += len(m)
	}
	for _, t := range idx.filter {
		s.AttributeEntries += t.Len()
	}
	for _, t := range idx.sort {
		s.AttributeEntries += t.Len()
	}
	for _, t := range idx.prices {
		s.PriceEntries += t.Len()
	}
	for _, facets := range idx.facets {
		for _, owners := range facets {
			s.FacetEntries += len(owners)
		}
	}
	return s
}

// Clone returns a copy which shares nothing mutable with idx. Trees are cloned lazily, so the copy
// costs little until either side writes.
func (idx *EntityIndex) Clone() *EntityIndex {
	c := &EntityIndex{
		key:         idx.key,
		primaryKeys: make(map[int]int, len(idx.primaryKeys)),
		unique:      make(map[AttributeIndexKey]map[string]uniqueEntry, len(idx.unique)),
		filter:      cloneTrees(idx.filter),
		sort:        cloneTrees(idx.sort),
		facets:      make(map[string]map[FacetKey]map[int]struct{}, len(idx.facets)),
		placements:  make(map[int]placement, len(idx.placements)),
		hierarchy:   idx.hierarchy.Clone(),
		locales:     make(map[language.Tag]map[int]struct{}, len(idx.locales)),
	}
	for pk, n := range idx.primaryKeys {
		c.primaryKeys[pk] = n
	}
	for k, m := range idx.unique {
		cm := make(map[string]uniqueEntry, len(m))
		for v, e := range m {
			cm[v] = e
		}
		c.unique[k] = cm
	}
	c.prices = make(map[PriceIndexKey]*btree.BTree, len(idx.prices))
	for k, t := range idx.prices {
		c.prices[k] = t.Clone()
	}
	for name, facets := range idx.facets {
		cf := make(map[FacetKey]map[int]struct{}, len(facets))
		for f, owners := range facets {
			cf[f] = cloneSet(owners)
		}
		c.facets[name] = cf
	}
	for pk, p := range idx.placements {
		c.placements[pk] = p
	}
	for l, pks := range idx.locales {
		c.locales[l] = cloneSet(pks)
	}
	return c
}

func cloneTrees(trees map[AttributeIndexKey]*btree.BTree) map[AttributeIndexKey]*btree.BTree {
	res := make(map[AttributeIndexKey]*btree.BTree, len(trees))
	for k, t := range trees {
		res[k] = t.Clone()
	}
	return res
}

func cloneSet(s map[int]struct{}) map[int]struct{} {
	res := make(map[int]struct{}, len(s))
	for k := range s {
		res[k] = struct{}{}
	}
	return res
}

func sortedKeys(m map[int]int) []int {
	res := make([]int, 0, len(m))
	for k := range m {
		res = append(res, k)
	}
	sort.Ints(res)
	return res
}

func sortedSet(s map[int]struct{}) []int {
	res := make([]int, 0, len(s))
	for k := range s {
		res = append(res, k)
	}
	sort.Ints(res)
	return res
}
