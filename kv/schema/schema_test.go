package schema

import (
	"testing"

	"github.com/pingcap-incubator/tinydoc/kv/mutation"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func newProductSchema() *EntitySchema {
	s := NewEntitySchema("product")
	s.Locales = []language.Tag{language.English}
	s.WithPrice = true
	s.AddAttribute(&AttributeSchema{Name: "code", Type: mutation.TypeString, Unique: true})
	s.AddAttribute(&AttributeSchema{Name: "name", Type: mutation.TypeString, Localized: true, Sortable: true})
	s.AddAttribute(&AttributeSchema{Name: "weight", Type: mutation.TypeDecimal, Filterable: true, IndexedDecimalPlaces: 2})
	s.AddAssociatedData(&AssociatedDataSchema{Name: "manual", Localized: true})
	s.AddReference(&ReferenceSchema{Name: "brand", ReferencedEntityType: "brand", Indexed: true, Faceted: true})
	return s
}

func TestValidateAcceptsConformingStream(t *testing.T) {
	s := newProductSchema()
	err := s.Validate([]mutation.LocalMutation{
		mutation.UpsertAttribute{Key: mutation.NewAttributeKey("code"), Value: "A-1"},
		mutation.UpsertAttribute{Key: mutation.NewLocalizedAttributeKey("name", language.English), Value: "Phone"},
		mutation.ApplyDeltaAttribute{Key: mutation.NewAttributeKey("weight"), Delta: decimal.New(1, 0)},
		mutation.UpsertAssociatedData{Key: mutation.NewLocalizedAssociatedDataKey("manual", language.English), Value: "..."},
		mutation.InsertReference{Key: mutation.ReferenceKey{Name: "brand", PrimaryKey: 1}, ReferencedEntityType: "brand"},
		mutation.UpsertPrice{Key: mutation.PriceKey{PriceID: 1, PriceList: "basic", Currency: "EUR"}, Sellable: true},
	})
	assert.Nil(t, err)
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name string
		m    mutation.LocalMutation
	}{
		{"unknown attribute", mutation.UpsertAttribute{Key: mutation.NewAttributeKey("color"), Value: "red"}},
		{"wrong type", mutation.UpsertAttribute{Key: mutation.NewAttributeKey("code"), Value: int64(1)}},
		{"missing locale", mutation.UpsertAttribute{Key: mutation.NewAttributeKey("name"), Value: "x"}},
		{"unexpected locale", mutation.UpsertAttribute{Key: mutation.NewLocalizedAttributeKey("code", language.English), Value: "x"}},
		{"locale not allowed", mutation.UpsertAttribute{Key: mutation.NewLocalizedAttributeKey("name", language.German), Value: "x"}},
		{"delta on string", mutation.ApplyDeltaAttribute{Key: mutation.NewAttributeKey("code"), Delta: int64(1)}},
		{"delta of other type", mutation.ApplyDeltaAttribute{Key: mutation.NewAttributeKey("weight"), Delta: int64(1)}},
		{"unknown reference", mutation.InsertReference{Key: mutation.ReferenceKey{Name: "tag", PrimaryKey: 1}}},
		{"reference type mismatch", mutation.InsertReference{Key: mutation.ReferenceKey{Name: "brand", PrimaryKey: 1}, ReferencedEntityType: "store"}},
		{"hierarchy", mutation.SetHierarchyPlacement{Order: 1}},
		{"unsupported value", mutation.UpsertAssociatedData{Key: mutation.NewLocalizedAssociatedDataKey("manual", language.English), Value: 1.5}},
		{"unknown reference attribute", mutation.UpdateReferenceAttribute{
			Key:       mutation.ReferenceKey{Name: "brand", PrimaryKey: 1},
			Attribute: mutation.UpsertAttribute{Key: mutation.NewAttributeKey("priority"), Value: int64(1)},
		}},
	}
	for _, c := range cases {
		err := newProductSchema().Validate([]mutation.LocalMutation{c.m})
		require.Error(t, err, c.name)
		assert.True(t, IsViolation(err), c.name)
	}
}

func TestValidateIsAllOrNothing(t *testing.T) {
	s := newProductSchema()
	s.Evolution = AddingAttributes
	err := s.Validate([]mutation.LocalMutation{
		mutation.UpsertAttribute{Key: mutation.NewAttributeKey("color"), Value: "red"},
		mutation.SetHierarchyPlacement{Order: 1},
	})
	require.Error(t, err)
	_, err = s.Attribute("color")
	assert.True(t, IsViolation(err))
}

func TestAutomaticEvolution(t *testing.T) {
	s := newProductSchema()
	s.Evolution = AllEvolution
	err := s.Validate([]mutation.LocalMutation{
		mutation.UpsertAttribute{Key: mutation.NewLocalizedAttributeKey("slogan", language.German), Value: "gut"},
		mutation.InsertReference{Key: mutation.ReferenceKey{Name: "tag", PrimaryKey: 3}, ReferencedEntityType: "tag"},
		mutation.UpdateReferenceAttribute{
			Key:       mutation.ReferenceKey{Name: "tag", PrimaryKey: 3},
			Attribute: mutation.UpsertAttribute{Key: mutation.NewAttributeKey("priority"), Value: int64(1)},
		},
		mutation.UpsertAssociatedData{Key: mutation.NewAssociatedDataKey("sheet"), Value: "pdf"},
	})
	require.Nil(t, err)

	a, err := s.Attribute("slogan")
	require.Nil(t, err)
	assert.True(t, a.Localized)
	assert.False(t, a.Indexed())
	assert.Equal(t, mutation.TypeString, a.Type)
	assert.True(t, s.SupportsLocale(language.German))

	r, err := s.Reference("tag")
	require.Nil(t, err)
	assert.False(t, r.Indexed)
	assert.Equal(t, "tag", r.ReferencedEntityType)
	pa, err := s.ReferenceAttribute("tag", "priority")
	require.Nil(t, err)
	assert.Equal(t, mutation.TypeInt, pa.Type)

	_, err = s.AssociatedData("sheet")
	assert.Nil(t, err)
}
