package container

import (
	"testing"

	"github.com/pingcap-incubator/tinydoc/kv/mutation"
	"github.com/pingcap-incubator/tinydoc/kv/storage"
	"github.com/pingcap-incubator/tinydoc/kv/storage/buffer"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

type fixedPriceIDs map[mutation.PriceKey]int

func (ids fixedPriceIDs) PriceID(pk int, key mutation.PriceKey) (int, bool) {
	id, ok := ids[key]
	return id, ok
}

func newTestExecutor(buf *buffer.Buffer, pk int) *Executor {
	return NewExecutor(NewCachedAccessor(pk, BufferReader(buf, nil)), fixedPriceIDs{})
}

func applyAll(t *testing.T, e *Executor, ms ...mutation.LocalMutation) {
	for _, m := range ms {
		require.Nil(t, e.Apply(m), "%s", m.Kind())
	}
}

func persist(t *testing.T, buf *buffer.Buffer, e *Executor) []Part {
	parts, err := e.ChangedParts()
	require.Nil(t, err)
	for _, p := range parts {
		if p.Empty() {
			require.Nil(t, buf.Remove(nil, p.CF(), p.Key()))
			continue
		}
		data, err := Marshal(p)
		require.Nil(t, err)
		require.Nil(t, buf.Update(nil, p.CF(), p.Key(), data))
	}
	e.Committed()
	return parts
}

var (
	en    = language.English
	de    = language.German
	basic = mutation.PriceKey{PriceID: 1, PriceList: "basic", Currency: "EUR"}
	brand = mutation.ReferenceKey{Name: "brand", PrimaryKey: 7}
)

func TestAccessorPanicsOnOtherEntity(t *testing.T) {
	a := NewCachedAccessor(1, BufferReader(buffer.NewBuffer(storage.NewMemStorage()), nil))
	_, err := a.Body(1)
	require.Nil(t, err)
	assert.Panics(t, func() { a.Body(2) })
	assert.Panics(t, func() { a.Prices(3) })
}

func TestNoChangeNoDirtyParts(t *testing.T) {
	buf := buffer.NewBuffer(storage.NewMemStorage())
	e := newTestExecutor(buf, 1)
	applyAll(t, e, mutation.UpsertAttribute{Key: mutation.NewAttributeKey("code"), Value: "A"})
	parts := persist(t, buf, e)
	assert.Len(t, parts, 2)

	e = newTestExecutor(buf, 1)
	applyAll(t, e, mutation.UpsertAttribute{Key: mutation.NewAttributeKey("code"), Value: "A"})
	parts, err := e.ChangedParts()
	require.Nil(t, err)
	assert.Empty(t, parts)
}

func TestContainersRoundTripThroughBuffer(t *testing.T) {
	buf := buffer.NewBuffer(storage.NewMemStorage())
	e := NewExecutor(NewCachedAccessor(5, BufferReader(buf, nil)), fixedPriceIDs{basic: 42})
	inner := 3
	applyAll(t, e,
		mutation.UpsertAttribute{Key: mutation.NewAttributeKey("code"), Value: "A-1"},
		mutation.UpsertAttribute{Key: mutation.NewLocalizedAttributeKey("name", en), Value: "Phone"},
		mutation.UpsertAttribute{Key: mutation.NewAttributeKey("weight"), Value: decimal.RequireFromString("1.25")},
		mutation.UpsertAssociatedData{Key: mutation.NewLocalizedAssociatedDataKey("manual", de), Value: "Anleitung"},
		mutation.SetPriceInnerRecordHandling{Handling: mutation.HandlingLowestPrice},
		mutation.UpsertPrice{Key: basic, InnerRecordID: &inner, PriceWithTax: decimal.New(121, 0), Sellable: true},
		mutation.InsertReference{Key: brand, ReferencedEntityType: "brand"},
		mutation.UpsertReferenceGroup{Key: brand, GroupType: "group", GroupPrimaryKey: 2},
		mutation.SetHierarchyPlacement{ParentPrimaryKey: mutation.IntPtr(1), Order: 3},
	)
	persist(t, buf, e)

	a := NewCachedAccessor(5, BufferReader(buf, nil))
	body, err := a.Body(5)
	require.Nil(t, err)
	assert.True(t, body.Stored())
	assert.Equal(t, 1, body.Version)
	assert.Equal(t, []language.Tag{de, en}, body.Locales)
	assert.Equal(t, []language.Tag{en}, body.AttributeLocales)
	assert.Equal(t, 1, *body.Hierarchy.ParentPrimaryKey)

	global, err := a.Attributes(5, language.Und)
	require.Nil(t, err)
	assert.Equal(t, "A-1", global.Get("code").Value)
	assert.True(t, decimal.RequireFromString("1.25").Equal(global.Get("weight").Value.(decimal.Decimal)))
	localized, err := a.Attributes(5, en)
	require.Nil(t, err)
	assert.Equal(t, "Phone", localized.Get("name").Value)

	prices, err := a.Prices(5)
	require.Nil(t, err)
	assert.Equal(t, mutation.HandlingLowestPrice, prices.Handling)
	p := prices.Get(basic)
	assert.Equal(t, 42, p.InternalID)
	assert.Equal(t, 3, *p.InnerRecordID)

	refs, err := a.References(5)
	require.Nil(t, err)
	assert.Equal(t, 2, *refs.Get(brand).GroupPrimaryKey())

	data, err := a.AssociatedData(5, mutation.NewLocalizedAssociatedDataKey("manual", de))
	require.Nil(t, err)
	assert.Equal(t, "Anleitung", data.Value.Value)
}

func TestLocalesFollowLocalizedValues(t *testing.T) {
	buf := buffer.NewBuffer(storage.NewMemStorage())
	e := newTestExecutor(buf, 1)
	name := mutation.NewLocalizedAttributeKey("name", en)
	manual := mutation.NewLocalizedAssociatedDataKey("manual", en)
	label := mutation.NewLocalizedAttributeKey("label", de)
	applyAll(t, e,
		mutation.UpsertAttribute{Key: name, Value: "Phone"},
		mutation.UpsertAssociatedData{Key: manual, Value: "..."},
		mutation.InsertReference{Key: brand},
		mutation.UpdateReferenceAttribute{Key: brand, Attribute: mutation.UpsertAttribute{Key: label, Value: "Marke"}},
	)
	body, err := e.Accessor().Body(1)
	require.Nil(t, err)
	assert.Equal(t, []language.Tag{de, en}, body.Locales)

	applyAll(t, e, mutation.RemoveAttribute{Key: name})
	assert.Equal(t, []language.Tag{de, en}, body.Locales)
	assert.Empty(t, body.AttributeLocales)

	applyAll(t, e, mutation.RemoveAssociatedData{Key: manual})
	assert.Equal(t, []language.Tag{de}, body.Locales)
	assert.Empty(t, body.AssociatedDataKeys)

	applyAll(t, e, mutation.RemoveReference{Key: brand})
	assert.Empty(t, body.Locales)

	// emptied localized containers are removed instead of written
	for _, p := range persist(t, buf, e) {
		if _, ok := p.(*AttributesContainer); ok && p.(*AttributesContainer).Locale == en {
			assert.True(t, p.Empty())
		}
		if _, ok := p.(*AssociatedDataContainer); ok {
			assert.True(t, p.Empty())
		}
	}
	v, err := buf.Fetch(nil, (&AssociatedDataContainer{PrimaryKey: 1, DataKey: manual}).CF(), AssociatedDataKey(1, manual))
	require.Nil(t, err)
	assert.Nil(t, v)
}

func TestRemovalErrors(t *testing.T) {
	e := newTestExecutor(buffer.NewBuffer(storage.NewMemStorage()), 1)
	assert.Error(t, e.Apply(mutation.RemoveAttribute{Key: mutation.NewAttributeKey("code")}))
	assert.Error(t, e.Apply(mutation.RemovePrice{Key: basic}))
	assert.Error(t, e.Apply(mutation.RemoveReference{Key: brand}))
	assert.Error(t, e.Apply(mutation.RemoveHierarchyPlacement{}))
	assert.Error(t, e.Apply(mutation.RemoveAssociatedData{Key: mutation.NewAssociatedDataKey("x")}))
}

func TestRemovalAndInsertionStreams(t *testing.T) {
	buf := buffer.NewBuffer(storage.NewMemStorage())
	e := newTestExecutor(buf, 9)
	priority := mutation.NewAttributeKey("priority")
	applyAll(t, e,
		mutation.UpsertAttribute{Key: mutation.NewAttributeKey("code"), Value: "A"},
		mutation.UpsertAttribute{Key: mutation.NewLocalizedAttributeKey("name", en), Value: "Phone"},
		mutation.UpsertAssociatedData{Key: mutation.NewAssociatedDataKey("sheet"), Value: "pdf"},
		mutation.UpsertPrice{Key: basic, PriceWithTax: decimal.New(10, 0), Sellable: true},
		mutation.SetPriceInnerRecordHandling{Handling: mutation.HandlingSum},
		mutation.InsertReference{Key: brand, ReferencedEntityType: "brand"},
		mutation.UpdateReferenceAttribute{Key: brand, Attribute: mutation.UpsertAttribute{Key: priority, Value: int64(1)}},
		mutation.SetHierarchyPlacement{Order: 1},
	)
	persist(t, buf, e)

	a := NewCachedAccessor(9, BufferReader(buf, nil))
	insertions, err := InsertionMutations(a, 9)
	require.Nil(t, err)
	kinds := make([]mutation.Kind, 0, len(insertions))
	for _, m := range insertions {
		kinds = append(kinds, m.Kind())
	}
	assert.Equal(t, []mutation.Kind{
		mutation.KindSetPriceInnerRecordHandling,
		mutation.KindUpsertAttribute,
		mutation.KindUpsertAttribute,
		mutation.KindUpsertAssociatedData,
		mutation.KindUpsertPrice,
		mutation.KindInsertReference,
		mutation.KindUpdateReferenceAttribute,
		mutation.KindSetHierarchyPlacement,
	}, kinds)

	removals, err := RemovalMutations(a, 9)
	require.Nil(t, err)
	e = NewExecutor(a, nil)
	applyAll(t, e, removals...)
	body, err := a.Body(9)
	require.Nil(t, err)
	assert.Nil(t, body.Hierarchy)
	assert.Empty(t, body.Locales)
	assert.Empty(t, body.AssociatedDataKeys)
	prices, err := a.Prices(9)
	require.Nil(t, err)
	assert.Empty(t, prices.Live())
	assert.Equal(t, mutation.HandlingNone, prices.Handling)
	refs, err := a.References(9)
	require.Nil(t, err)
	assert.Empty(t, refs.Live())

	again, err := RemovalMutations(a, 9)
	require.Nil(t, err)
	assert.Empty(t, again)
}

func TestLocalizedPartsMarshal(t *testing.T) {
	label := mutation.NewLocalizedAttributeKey("label", de)
	body := &EntityBody{
		PrimaryKey:         3,
		Version:            2,
		Locales:            []language.Tag{de, en},
		AttributeLocales:   []language.Tag{en},
		AssociatedDataKeys: []mutation.AssociatedDataKey{mutation.NewLocalizedAssociatedDataKey("manual", de)},
	}
	data, err := Marshal(body)
	require.Nil(t, err)
	decodedBody := &EntityBody{}
	require.Nil(t, unmarshal(data, decodedBody))
	assert.Equal(t, body.Locales, decodedBody.Locales)
	assert.Equal(t, body.AttributeLocales, decodedBody.AttributeLocales)
	assert.Equal(t, body.AssociatedDataKeys, decodedBody.AssociatedDataKeys)
	assert.Equal(t, 2, decodedBody.Version)
	assert.True(t, decodedBody.HasLocale(de))

	for _, locale := range []language.Tag{language.Und, en} {
		name := mutation.NewLocalizedAttributeKey("name", locale)
		attrs := &AttributesContainer{PrimaryKey: 3, Locale: locale, Values: map[string]*mutation.AttributeValue{
			"name": {Key: name, Value: "Phone", Version: 1},
		}}
		data, err = Marshal(attrs)
		require.Nil(t, err)
		decodedAttrs := &AttributesContainer{}
		require.Nil(t, unmarshal(data, decodedAttrs))
		assert.Equal(t, locale, decodedAttrs.Locale)
		assert.Equal(t, name, decodedAttrs.Get("name").Key)
		assert.Equal(t, "Phone", decodedAttrs.Get("name").Value)
	}

	refs := &ReferencesContainer{PrimaryKey: 3, References: map[mutation.ReferenceKey]*mutation.ReferenceValue{
		brand: {Key: brand, Attributes: map[mutation.AttributeKey]*mutation.AttributeValue{
			label: {Key: label, Value: "Marke", Version: 1},
		}},
	}}
	data, err = Marshal(refs)
	require.Nil(t, err)
	decodedRefs := &ReferencesContainer{}
	require.Nil(t, unmarshal(data, decodedRefs))
	assert.Equal(t, "Marke", decodedRefs.Get(brand).Attribute(label).Value)
}

func TestBodyVersionGrowsOncePerSession(t *testing.T) {
	buf := buffer.NewBuffer(storage.NewMemStorage())
	e := newTestExecutor(buf, 1)
	applyAll(t, e, mutation.UpsertAttribute{Key: mutation.NewAttributeKey("code"), Value: "A"})
	_, err := e.ChangedParts()
	require.Nil(t, err)
	applyAll(t, e, mutation.UpsertAttribute{Key: mutation.NewAttributeKey("code"), Value: "B"})
	parts := persist(t, buf, e)
	require.NotEmpty(t, parts)
	body := parts[0].(*EntityBody)
	assert.Equal(t, 1, body.Version)

	applyAll(t, e, mutation.UpsertAttribute{Key: mutation.NewAttributeKey("code"), Value: "C"})
	persist(t, buf, e)
	assert.Equal(t, 2, body.Version)
}
