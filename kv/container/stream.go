package container

import (
	"github.com/pingcap-incubator/tinydoc/kv/mutation"
	"golang.org/x/text/language"
)

// RemovalMutations returns the mutations which remove every existing value of the entity. Applied in
// order they leave nothing indexed for it.
func RemovalMutations(accessor Accessor, pk int) ([]mutation.LocalMutation, error) {
	body, err := accessor.Body(pk)
	if err != nil {
		return nil, err
	}
	var res []mutation.LocalMutation
	if body.Hierarchy != nil {
		res = append(res, mutation.RemoveHierarchyPlacement{})
	}

	refs, err := accessor.References(pk)
	if err != nil {
		return nil, err
	}
	for _, r := range refs.Live() {
		res = append(res, mutation.RemoveReference{Key: r.Key})
	}

	for _, locale := range append([]language.Tag{language.Und}, body.AttributeLocales...) {
		attrs, err := accessor.Attributes(pk, locale)
		if err != nil {
			return nil, err
		}
		for _, v := range attrs.Live() {
			res = append(res, mutation.RemoveAttribute{Key: v.Key})
		}
	}

	for _, key := range body.AssociatedDataKeys {
		res = append(res, mutation.RemoveAssociatedData{Key: key})
	}

	prices, err := accessor.Prices(pk)
	if err != nil {
		return nil, err
	}
	for _, p := range prices.Live() {
		res = append(res, mutation.RemovePrice{Key: p.Key})
	}
	if prices.Handling != mutation.HandlingNone {
		res = append(res, mutation.SetPriceInnerRecordHandling{Handling: mutation.HandlingNone})
	}
	return res, nil
}

// InsertionMutations returns the mutations which build the stored entity from nothing. Indexes are
// rebuilt from them when a collection is opened.
func InsertionMutations(accessor Accessor, pk int) ([]mutation.LocalMutation, error) {
	body, err := accessor.Body(pk)
	if err != nil {
		return nil, err
	}
	prices, err := accessor.Prices(pk)
	if err != nil {
		return nil, err
	}
	var res []mutation.LocalMutation
	if prices.Handling != mutation.HandlingNone {
		res = append(res, mutation.SetPriceInnerRecordHandling{Handling: prices.Handling})
	}

	for _, locale := range append([]language.Tag{language.Und}, body.AttributeLocales...) {
		attrs, err := accessor.Attributes(pk, locale)
		if err != nil {
			return nil, err
		}
		for _, v := range attrs.Live() {
			res = append(res, mutation.UpsertAttribute{Key: v.Key, Value: v.Value})
		}
	}

	for _, key := range body.AssociatedDataKeys {
		c, err := accessor.AssociatedData(pk, key)
		if err != nil {
			return nil, err
		}
		if c.Value.Exists() {
			res = append(res, mutation.UpsertAssociatedData{Key: key, Value: c.Value.Value})
		}
	}

	for _, p := range prices.Live() {
		res = append(res, mutation.UpsertPrice{
			Key:             p.Key,
			InnerRecordID:   p.InnerRecordID,
			PriceWithoutTax: p.PriceWithoutTax,
			TaxRate:         p.TaxRate,
			PriceWithTax:    p.PriceWithTax,
			Validity:        p.Validity,
			Sellable:        p.Sellable,
		})
	}

	refs, err := accessor.References(pk)
	if err != nil {
		return nil, err
	}
	for _, r := range refs.Live() {
		res = append(res, mutation.InsertReference{Key: r.Key, ReferencedEntityType: r.ReferencedEntityType})
		if r.Group != nil {
			res = append(res, mutation.UpsertReferenceGroup{Key: r.Key, GroupType: r.Group.Type, GroupPrimaryKey: r.Group.PrimaryKey})
		}
		for _, v := range liveReferenceAttributes(r) {
			res = append(res, mutation.UpdateReferenceAttribute{
				Key:       r.Key,
				Attribute: mutation.UpsertAttribute{Key: v.Key, Value: v.Value},
			})
		}
	}

	if body.Hierarchy != nil {
		res = append(res, mutation.SetHierarchyPlacement{
			ParentPrimaryKey: body.Hierarchy.ParentPrimaryKey,
			Order:            body.Hierarchy.Order,
		})
	}
	return res, nil
}

func liveReferenceAttributes(r *mutation.ReferenceValue) []*mutation.AttributeValue {
	var res []*mutation.AttributeValue
	for _, v := range r.Attributes {
		if v.Exists() {
			res = append(res, v)
		}
	}
	return sortAttributeValues(res)
}
