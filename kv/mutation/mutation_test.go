package mutation

import (
	"bytes"
	"encoding/gob"
	"testing"

	"github.com/pingcap/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestUpsertAttributeIsPure(t *testing.T) {
	key := NewAttributeKey("code")
	old := &AttributeValue{Key: key, Value: "a", Version: 3}

	v, err := UpsertAttribute{Key: key, Value: "b"}.MutateValue(old)
	require.Nil(t, err)
	assert.Equal(t, "b", v.Value)
	assert.Equal(t, 4, v.Version)
	assert.Equal(t, "a", old.Value)

	same, err := UpsertAttribute{Key: key, Value: "a"}.MutateValue(old)
	require.Nil(t, err)
	assert.True(t, same == old)

	fresh, err := UpsertAttribute{Key: key, Value: "a"}.MutateValue(nil)
	require.Nil(t, err)
	assert.Equal(t, 1, fresh.Version)
}

func TestRemoveAttribute(t *testing.T) {
	key := NewLocalizedAttributeKey("name", language.English)
	_, err := RemoveAttribute{Key: key}.MutateValue(nil)
	assert.Error(t, err)

	old := &AttributeValue{Key: key, Value: "x", Version: 1}
	v, err := RemoveAttribute{Key: key}.MutateValue(old)
	require.Nil(t, err)
	assert.True(t, v.Dropped)
	assert.False(t, v.Exists())
	assert.Equal(t, 2, v.Version)

	_, err = RemoveAttribute{Key: key}.MutateValue(v)
	assert.Error(t, err)

	// an upsert after removal revives the value with a higher version
	revived, err := UpsertAttribute{Key: key, Value: "x"}.MutateValue(v)
	require.Nil(t, err)
	assert.True(t, revived.Exists())
	assert.Equal(t, 3, revived.Version)
}

func TestApplyDelta(t *testing.T) {
	key := NewAttributeKey("stock")
	v, err := ApplyDeltaAttribute{Key: key, Delta: int64(-2)}.MutateValue(&AttributeValue{Key: key, Value: int64(5)})
	require.Nil(t, err)
	assert.Equal(t, int64(3), v.Value)

	d, err := ApplyDeltaAttribute{Key: key, Delta: decimal.RequireFromString("0.25")}.
		MutateValue(&AttributeValue{Key: key, Value: decimal.RequireFromString("1.5")})
	require.Nil(t, err)
	assert.True(t, decimal.RequireFromString("1.75").Equal(d.Value.(decimal.Decimal)))

	_, err = ApplyDeltaAttribute{Key: key, Delta: int64(1)}.MutateValue(nil)
	assert.Error(t, err)
	_, err = ApplyDeltaAttribute{Key: key, Delta: int64(1)}.MutateValue(&AttributeValue{Key: key, Value: "text"})
	assert.Error(t, err)
	_, err = ApplyDeltaAttribute{Key: key, Delta: int64(1)}.MutateValue(&AttributeValue{Key: key, Value: decimal.New(1, 0)})
	assert.Error(t, err)
}

func TestUpsertPriceKeepsInternalID(t *testing.T) {
	key := PriceKey{PriceID: 1, PriceList: "basic", Currency: "EUR"}
	old := &PriceValue{Key: key, PriceWithTax: decimal.New(100, 0), Sellable: true, InternalID: 7, Version: 1}
	m := UpsertPrice{Key: key, PriceWithTax: decimal.New(120, 0), Sellable: true}
	p := m.MutateValue(old)
	assert.Equal(t, 7, p.InternalID)
	assert.Equal(t, 2, p.Version)
	assert.True(t, decimal.New(100, 0).Equal(old.PriceWithTax))

	unchanged := UpsertPrice{Key: key, PriceWithTax: decimal.RequireFromString("100.00"), Sellable: true}.MutateValue(old)
	assert.True(t, unchanged == old)

	_, err := RemovePrice{Key: key}.MutateValue(nil)
	assert.Error(t, err)
	removed, err := RemovePrice{Key: key}.MutateValue(old)
	require.Nil(t, err)
	assert.False(t, removed.SellableNow())
	assert.True(t, old.SellableNow())
}

func TestReferenceMutations(t *testing.T) {
	key := ReferenceKey{Name: "brand", PrimaryKey: 5}
	r := InsertReference{Key: key, ReferencedEntityType: "Brand"}.MutateValue(nil)
	require.True(t, r.Exists())
	assert.Nil(t, r.GroupPrimaryKey())

	_, err := RemoveReferenceGroup{Key: key}.MutateValue(r)
	assert.Error(t, err)

	grouped, err := UpsertReferenceGroup{Key: key, GroupType: "BrandGroup", GroupPrimaryKey: 9}.MutateValue(r)
	require.Nil(t, err)
	assert.Equal(t, 9, *grouped.GroupPrimaryKey())
	assert.Nil(t, r.Group)

	attrKey := NewAttributeKey("priority")
	withAttr, err := UpdateReferenceAttribute{Key: key, Attribute: UpsertAttribute{Key: attrKey, Value: int64(1)}}.MutateValue(grouped)
	require.Nil(t, err)
	assert.Equal(t, int64(1), withAttr.Attribute(attrKey).Value)
	assert.Nil(t, grouped.Attribute(attrKey))

	removed, err := RemoveReference{Key: key}.MutateValue(withAttr)
	require.Nil(t, err)
	assert.False(t, removed.Exists())
	assert.True(t, withAttr.Exists())

	revived := InsertReference{Key: key}.MutateValue(removed)
	assert.True(t, revived.Exists())
	assert.Equal(t, "Brand", revived.ReferencedEntityType)
	assert.Empty(t, revived.Attributes)
}

func TestCompareValues(t *testing.T) {
	assert.Equal(t, -1, CompareValues("a", "b"))
	assert.Equal(t, 1, CompareValues(int64(3), int64(2)))
	assert.Equal(t, 0, CompareValues(decimal.RequireFromString("1.50"), decimal.RequireFromString("1.5")))
	assert.Equal(t, -1, CompareValues(false, true))
	assert.Equal(t, ValueKey(decimal.RequireFromString("1.50")), ValueKey(decimal.RequireFromString("1.5")))
	assert.NotEqual(t, ValueKey("1"), ValueKey(int64(1)))
}

func TestKindNames(t *testing.T) {
	assert.Equal(t, "upsert-attribute", UpsertAttribute{}.Kind().String())
	assert.Equal(t, "remove-associated-data", RemoveAssociatedData{}.Kind().String())
	assert.Equal(t, "unknown", Kind(99).String())
}

func TestParseKind(t *testing.T) {
	for k := KindUpsertAttribute; k <= KindRemoveAssociatedData; k++ {
		parsed, err := ParseKind(k.String())
		require.Nil(t, err)
		assert.Equal(t, k, parsed)
	}
	_, err := ParseKind("upsert")
	assert.Error(t, err)
}

func TestParseInnerRecordHandling(t *testing.T) {
	h, err := ParseInnerRecordHandling("SUM")
	require.Nil(t, err)
	assert.Equal(t, HandlingSum, h)
	_, err = ParseInnerRecordHandling("cheapest")
	assert.Error(t, err)
	assert.Contains(t, errors.ErrorStack(err), "keys.go")
}

func TestLocalizedKeysGob(t *testing.T) {
	values := map[AttributeKey]*AttributeValue{
		NewAttributeKey("code"):                                        {Key: NewAttributeKey("code"), Value: "A"},
		NewLocalizedAttributeKey("name", language.German):              {Key: NewLocalizedAttributeKey("name", language.German), Value: "Lampe"},
		NewLocalizedAttributeKey("name", language.BrazilianPortuguese): {Value: "Lâmpada"},
	}
	var buf bytes.Buffer
	require.Nil(t, gob.NewEncoder(&buf).Encode(values))
	decoded := map[AttributeKey]*AttributeValue{}
	require.Nil(t, gob.NewDecoder(&buf).Decode(&decoded))
	assert.Len(t, decoded, 3)
	assert.Equal(t, "Lampe", decoded[NewLocalizedAttributeKey("name", language.German)].Value)
	assert.Equal(t, language.German, decoded[NewLocalizedAttributeKey("name", language.German)].Key.Locale)
	assert.Equal(t, language.Und, decoded[NewAttributeKey("code")].Key.Locale)
	assert.Equal(t, "Lâmpada", decoded[NewLocalizedAttributeKey("name", language.BrazilianPortuguese)].Value)

	data, err := NewLocalizedAssociatedDataKey("manual", language.English).GobEncode()
	require.Nil(t, err)
	var key AssociatedDataKey
	require.Nil(t, key.GobDecode(data))
	assert.Equal(t, NewLocalizedAssociatedDataKey("manual", language.English), key)
	assert.Error(t, key.GobDecode([]byte("short")))
}
