package index

import (
	"testing"

	"github.com/pingcap-incubator/tinydoc/kv/mutation"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

var (
	code  = AttributeIndexKey{Name: "code"}
	size  = AttributeIndexKey{Name: "size"}
	basic = mutation.PriceKey{PriceID: 1, PriceList: "basic", Currency: "EUR"}
)

func TestUniqueAttribute(t *testing.T) {
	idx := NewEntityIndex(GlobalKey())
	require.Nil(t, idx.InsertUnique(code, "A", 1))
	err := idx.InsertUnique(code, "A", 2)
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
	assert.Equal(t, 1, err.(*UniqueViolation).ExistingPK)

	// the same entity may hold a value several times
	require.Nil(t, idx.InsertUnique(code, "A", 1))
	require.Nil(t, idx.RemoveUnique(code, "A", 1))
	pk, ok := idx.UniqueLookup(code, "A")
	assert.True(t, ok)
	assert.Equal(t, 1, pk)
	require.Nil(t, idx.RemoveUnique(code, "A", 1))
	_, ok = idx.UniqueLookup(code, "A")
	assert.False(t, ok)
	assert.True(t, idx.IsEmpty())

	err = idx.RemoveUnique(code, "A", 1)
	assert.True(t, IsConsistencyError(err))
}

func TestFilterAndSort(t *testing.T) {
	idx := NewEntityIndex(GlobalKey())
	idx.InsertFilter(size, int64(10), 1)
	idx.InsertFilter(size, int64(5), 2)
	idx.InsertFilter(size, int64(10), 3)
	idx.InsertFilter(size, int64(20), 4)
	assert.Equal(t, []int{1, 3}, idx.FilterEquals(size, int64(10)))
	assert.Equal(t, []int{1, 2, 3}, idx.FilterRange(size, nil, int64(10)))
	assert.Equal(t, []int{1, 3, 4}, idx.FilterRange(size, int64(6), nil))
	assert.Empty(t, idx.FilterEquals(size, int64(7)))

	idx.InsertSort(size, int64(10), 1)
	idx.InsertSort(size, int64(5), 2)
	assert.Equal(t, []int{2, 1}, idx.SortedPrimaryKeys(size))

	require.Nil(t, idx.RemoveSort(size, int64(10), 1))
	require.Nil(t, idx.RemoveSort(size, int64(5), 2))
	assert.True(t, IsConsistencyError(idx.RemoveSort(size, int64(5), 2)))
	assert.Empty(t, idx.AttributeKeys(AttributeSort))
	assert.Equal(t, []AttributeIndexKey{size}, idx.AttributeKeys(AttributeFilter))
}

func TestFilterCountsRepeatedValues(t *testing.T) {
	idx := NewEntityIndex(ReferencedEntityTypeKey("brand"))
	priority := AttributeIndexKey{ReferenceName: "brand", Name: "priority"}
	idx.InsertFilter(priority, int64(1), 7)
	idx.InsertFilter(priority, int64(1), 7)
	require.Nil(t, idx.RemoveFilter(priority, int64(1), 7))
	assert.Equal(t, []int{7}, idx.FilterEquals(priority, int64(1)))
	require.Nil(t, idx.RemoveFilter(priority, int64(1), 7))
	assert.True(t, idx.IsEmpty())
}

func TestPrices(t *testing.T) {
	idx := NewEntityIndex(GlobalKey())
	rec := PriceRecord{InternalID: 1, PrimaryKey: 10, Key: basic, PriceWithTax: 12100, PriceWithoutTax: 10000}
	cheap := PriceRecord{InternalID: 2, PrimaryKey: 11, Key: basic, PriceWithTax: 500}
	require.Nil(t, idx.InsertPrice(mutation.HandlingNone, rec))
	require.Nil(t, idx.InsertPrice(mutation.HandlingNone, cheap))
	assert.True(t, IsConsistencyError(idx.InsertPrice(mutation.HandlingNone, rec)))

	pik := PriceIndexKey{PriceList: "basic", Currency: "EUR", Handling: mutation.HandlingNone}
	assert.Equal(t, []PriceRecord{cheap, rec}, idx.PricesSorted(pik))
	assert.Equal(t, []PriceRecord{cheap}, idx.PriceRange(pik, 0, 1000))

	// removal needs the exact record
	other := rec
	other.PriceWithoutTax = 1
	assert.True(t, IsConsistencyError(idx.RemovePrice(mutation.HandlingNone, other)))
	assert.True(t, IsConsistencyError(idx.RemovePrice(mutation.HandlingLowestPrice, rec)))
	require.Nil(t, idx.RemovePrice(mutation.HandlingNone, rec))
	require.Nil(t, idx.RemovePrice(mutation.HandlingNone, cheap))
	assert.Empty(t, idx.PriceKeys())
	assert.True(t, idx.IsEmpty())
}

func TestScaleDecimal(t *testing.T) {
	assert.Equal(t, int64(12346), ScaleDecimal(decimal.RequireFromString("123.456"), 2))
	assert.Equal(t, int64(-150), ScaleDecimal(decimal.RequireFromString("-1.5"), 2))
	assert.Equal(t, int64(3), ScaleDecimal(decimal.RequireFromString("2.5"), 0))
}

func TestFacets(t *testing.T) {
	idx := NewEntityIndex(GlobalKey())
	group := 3
	require.Nil(t, idx.InsertFacet("brand", NewFacetKey(7, nil), 1))
	require.Nil(t, idx.InsertFacet("brand", NewFacetKey(7, &group), 2))
	assert.True(t, IsConsistencyError(idx.InsertFacet("brand", NewFacetKey(7, nil), 1)))
	assert.Equal(t, []int{1, 2}, idx.FacetPrimaryKeys("brand", 7))
	assert.Equal(t, []FacetKey{{ReferencedPK: 7}, {ReferencedPK: 7, HasGroup: true, GroupPK: 3}}, idx.Facets("brand"))

	assert.True(t, IsConsistencyError(idx.RemoveFacet("brand", NewFacetKey(7, nil), 2)))
	require.Nil(t, idx.RemoveFacet("brand", NewFacetKey(7, nil), 1))
	require.Nil(t, idx.RemoveFacet("brand", NewFacetKey(7, &group), 2))
	assert.True(t, idx.IsEmpty())
}

func TestHierarchy(t *testing.T) {
	idx := NewEntityIndex(GlobalKey())
	idx.SetPlacement(1, mutation.HierarchyPlacement{Order: 2})
	idx.SetPlacement(2, mutation.HierarchyPlacement{Order: 1})
	idx.SetPlacement(3, mutation.HierarchyPlacement{ParentPrimaryKey: mutation.IntPtr(1), Order: 5})
	idx.SetPlacement(4, mutation.HierarchyPlacement{ParentPrimaryKey: mutation.IntPtr(1), Order: 1})
	assert.Equal(t, []int{2, 1}, idx.HierarchyRoots())
	assert.Equal(t, []int{4, 3}, idx.HierarchyChildren(1))
	assert.Empty(t, idx.HierarchyChildren(2))

	// moving keeps a single entry
	idx.SetPlacement(3, mutation.HierarchyPlacement{ParentPrimaryKey: mutation.IntPtr(2)})
	assert.Equal(t, []int{4}, idx.HierarchyChildren(1))
	assert.Equal(t, []int{3}, idx.HierarchyChildren(2))
	p, ok := idx.Placement(3)
	require.True(t, ok)
	assert.Equal(t, 2, *p.ParentPrimaryKey)

	for _, pk := range []int{1, 2, 3, 4} {
		require.Nil(t, idx.RemovePlacement(pk))
	}
	assert.True(t, IsConsistencyError(idx.RemovePlacement(1)))
	assert.True(t, idx.IsEmpty())
}

func TestLocalesAndPrimaryKeys(t *testing.T) {
	idx := NewEntityIndex(ReferencedEntityTypeKey("brand"))
	assert.Equal(t, 1, idx.InsertPrimaryKey(7))
	assert.Equal(t, 2, idx.InsertPrimaryKey(7))
	n, err := idx.RemovePrimaryKey(7)
	require.Nil(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, idx.ContainsPrimaryKey(7))

	idx.RegisterLocale(1, language.English)
	idx.RegisterLocale(1, language.English)
	assert.Equal(t, []int{1}, idx.LocalePrimaryKeys(language.English))
	require.Nil(t, idx.UnregisterLocale(1, language.English))
	assert.True(t, IsConsistencyError(idx.UnregisterLocale(1, language.English)))
	assert.Empty(t, idx.Locales())

	n, err = idx.RemovePrimaryKey(7)
	require.Nil(t, err)
	assert.Equal(t, 0, n)
	_, err = idx.RemovePrimaryKey(7)
	assert.True(t, IsConsistencyError(err))
	assert.True(t, idx.IsEmpty())
}

func TestCloneIsIndependent(t *testing.T) {
	idx := NewEntityIndex(GlobalKey())
	idx.InsertPrimaryKey(1)
	idx.InsertFilter(size, int64(1), 1)
	require.Nil(t, idx.InsertPrice(mutation.HandlingNone, PriceRecord{InternalID: 1, PrimaryKey: 1, Key: basic}))

	c := idx.Clone()
	c.InsertPrimaryKey(2)
	c.InsertFilter(size, int64(2), 2)
	require.Nil(t, c.RemovePrice(mutation.HandlingNone, PriceRecord{InternalID: 1, PrimaryKey: 1, Key: basic}))

	assert.Equal(t, []int{1}, idx.PrimaryKeys())
	assert.Equal(t, []int{1}, idx.FilterRange(size, nil, nil))
	assert.Len(t, idx.PriceKeys(), 1)
	assert.Equal(t, []int{1, 2}, c.PrimaryKeys())
	assert.Equal(t, []int{1, 2}, c.FilterRange(size, nil, nil))
	assert.Empty(t, c.PriceKeys())
}

type countingListener struct {
	created, removed int
}

func (l *countingListener) PartitionCreated(Key) { l.created++ }
func (l *countingListener) PartitionRemoved(Key) { l.removed++ }

func TestRegistryAndLayer(t *testing.T) {
	r := NewRegistry()
	l := &countingListener{}
	r.SetListener(l)
	global := r.GetOrCreate(GlobalKey())
	global.InsertPrimaryKey(1)
	brand := ReferencedEntityKey("brand", 7)
	r.GetOrCreate(brand).InsertPrimaryKey(1)
	assert.Equal(t, 2, l.created)
	assert.Equal(t, []Key{GlobalKey(), brand}, r.Keys())

	layer := r.NewLayer()
	layer.GetOrCreate(GlobalKey()).InsertPrimaryKey(2)
	layer.Remove(brand)
	typeKey := ReferencedEntityTypeKey("brand")
	layer.GetOrCreate(typeKey).InsertPrimaryKey(7)

	assert.Equal(t, []int{1, 2}, layer.Get(GlobalKey()).PrimaryKeys())
	assert.Nil(t, layer.Get(brand))
	assert.Equal(t, []Key{GlobalKey(), typeKey}, layer.Keys())
	assert.Equal(t, 3, layer.Touched())

	// the registry does not see the layer
	assert.Equal(t, []int{1}, r.Get(GlobalKey()).PrimaryKeys())
	assert.NotNil(t, r.Get(brand))
	assert.Nil(t, r.Get(typeKey))
	assert.Equal(t, 2, l.created)

	r.Remove(brand)
	r.Remove(brand)
	assert.Equal(t, 1, l.removed)
	assert.Nil(t, r.Get(brand))
}

func TestLayerCommit(t *testing.T) {
	r := NewRegistry()
	l := &countingListener{}
	r.SetListener(l)
	r.GetOrCreate(GlobalKey()).InsertPrimaryKey(1)
	brand := ReferencedEntityKey("brand", 7)
	r.GetOrCreate(brand).InsertPrimaryKey(1)

	layer := r.NewLayer()
	layer.Get(GlobalKey()).InsertPrimaryKey(2)
	layer.Remove(brand)
	typeKey := ReferencedEntityTypeKey("brand")
	layer.GetOrCreate(typeKey).InsertPrimaryKey(7)
	assert.Equal(t, uint64(0), r.Version())
	layer.Commit()
	assert.Equal(t, uint64(1), r.Version())

	assert.Equal(t, []int{1, 2}, r.Get(GlobalKey()).PrimaryKeys())
	assert.Nil(t, r.Get(brand))
	assert.Equal(t, []int{7}, r.Get(typeKey).PrimaryKeys())
	assert.Equal(t, 3, l.created)
	assert.Equal(t, 1, l.removed)
	assert.Equal(t, 0, layer.Touched())

	discarded := r.NewLayer()
	discarded.Get(GlobalKey()).InsertPrimaryKey(3)
	discarded.Discard()
	assert.Equal(t, []int{1, 2}, r.Get(GlobalKey()).PrimaryKeys())
}
