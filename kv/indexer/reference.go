package indexer

import (
	"sort"

	"github.com/pingcap-incubator/tinydoc/kv/index"
	"github.com/pingcap-incubator/tinydoc/kv/mutation"
	"github.com/pingcap-incubator/tinydoc/kv/schema"
	"golang.org/x/text/language"
)

// liveReference returns the reference as the record holds it before the mutation, it must exist.
func (e *Executor) liveReference(key mutation.ReferenceKey) (*mutation.ReferenceValue, error) {
	refs, err := e.containers.References(e.pk)
	if err != nil {
		return nil, err
	}
	r := refs.Get(key)
	if !r.Exists() {
		return nil, inconsistent(index.GlobalKey(), "reference %s of entity %d does not exist", key, e.pk)
	}
	return r, nil
}

// referencePartitionsOf returns the type partition and the partition of the referenced entity, both
// must exist.
func (e *Executor) referencePartitionsOf(rs *schema.ReferenceSchema, referencedPK int) (*index.EntityIndex, *index.EntityIndex, error) {
	typeKey := index.ReferencedEntityTypeKey(rs.Name)
	typeIdx := e.indexes.Get(typeKey)
	if typeIdx == nil {
		return nil, nil, inconsistent(typeKey, "partition is missing")
	}
	refKey := referencePartitionKey(rs, referencedPK)
	refIdx := e.indexes.Get(refKey)
	if refIdx == nil {
		return nil, nil, inconsistent(refKey, "partition is missing")
	}
	return typeIdx, refIdx, nil
}

func (e *Executor) insertReference(m mutation.InsertReference) error {
	rs, err := e.schema.Reference(m.Key.Name)
	if err != nil || !rs.Indexed {
		return err
	}
	refs, err := e.containers.References(e.pk)
	if err != nil {
		return err
	}
	if refs.Get(m.Key).Exists() {
		return nil
	}
	e.indexes.GetOrCreate(index.ReferencedEntityTypeKey(rs.Name)).InsertPrimaryKey(m.Key.PrimaryKey)
	refIdx := e.indexes.GetOrCreate(referencePartitionKey(rs, m.Key.PrimaryKey))
	refIdx.InsertPrimaryKey(e.pk)
	if rs.Faceted {
		facet := index.NewFacetKey(m.Key.PrimaryKey, nil)
		if err := e.global().InsertFacet(rs.Name, facet, e.pk); err != nil {
			return err
		}
		if err := refIdx.InsertFacet(rs.Name, facet, e.pk); err != nil {
			return err
		}
	}
	return e.replicate(refIdx, true)
}

func (e *Executor) removeReference(m mutation.RemoveReference) error {
	old, err := e.liveReference(m.Key)
	if err != nil {
		return err
	}
	rs, err := e.schema.Reference(m.Key.Name)
	if err != nil || !rs.Indexed {
		return err
	}
	typeIdx, refIdx, err := e.referencePartitionsOf(rs, m.Key.PrimaryKey)
	if err != nil {
		return err
	}

	// attributes of the reference itself
	var locales []language.Tag
	for _, k := range sortedAttributeKeys(old) {
		v := old.Attributes[k]
		if !v.Exists() {
			continue
		}
		a, err := e.schema.ReferenceAttribute(rs.Name, k.Name)
		if err != nil {
			return err
		}
		ik := index.ReferenceAttributeKey(rs.Name, k)
		if a.Indexed() {
			pks := ReferencedKeys{Owner: e.pk, Referenced: m.Key.PrimaryKey}
			if err := removeAttribute(a, e.target(typeIdx, ik, pks), v.Value); err != nil {
				return err
			}
			if err := removeAttribute(a, e.target(refIdx, ik, OwnerKeys{Owner: e.pk}), v.Value); err != nil {
				return err
			}
		}
		if k.Localized() && !containsLocale(locales, k.Locale) {
			locales = append(locales, k.Locale)
		}
	}
	for _, l := range locales {
		if err := e.releaseLocale(l, localeExclusion{reference: &m.Key}); err != nil {
			return err
		}
	}

	if rs.Faceted {
		facet := index.NewFacetKey(m.Key.PrimaryKey, old.GroupPrimaryKey())
		if err := e.global().RemoveFacet(rs.Name, facet, e.pk); err != nil {
			return err
		}
		if err := refIdx.RemoveFacet(rs.Name, facet, e.pk); err != nil {
			return err
		}
	}
	if err := e.replicate(refIdx, false); err != nil {
		return err
	}
	if _, err := refIdx.RemovePrimaryKey(e.pk); err != nil {
		return err
	}
	if refIdx.IsEmpty() {
		e.indexes.Remove(refIdx.Key())
	}
	if _, err := typeIdx.RemovePrimaryKey(m.Key.PrimaryKey); err != nil {
		return err
	}
	if typeIdx.IsEmpty() {
		e.indexes.Remove(typeIdx.Key())
	}
	return nil
}

// replicate copies the indexed attributes, the sellable prices and the locales of the entity into the
// partition of a referenced entity, or withdraws them again.
func (e *Executor) replicate(refIdx *index.EntityIndex, insert bool) error {
	body, err := e.containers.Body(e.pk)
	if err != nil {
		return err
	}
	for _, locale := range append([]language.Tag{language.Und}, body.AttributeLocales...) {
		attrs, err := e.containers.Attributes(e.pk, locale)
		if err != nil {
			return err
		}
		for _, v := range attrs.Live() {
			a, err := e.schema.Attribute(v.Key.Name)
			if err != nil {
				return err
			}
			if !a.Indexed() {
				continue
			}
			t := e.target(refIdx, index.EntityAttributeKey(v.Key), OwnerKeys{Owner: e.pk})
			if insert {
				err = insertAttribute(a, t, v.Value)
			} else {
				err = removeAttribute(a, t, v.Value)
			}
			if err != nil {
				return err
			}
		}
	}

	prices, err := e.containers.Prices(e.pk)
	if err != nil {
		return err
	}
	for _, p := range prices.Sellable() {
		rec := e.priceRecord(p, p.InternalID)
		if insert {
			err = e.insertPrice(refIdx, prices.Handling, rec)
		} else {
			err = e.removePriceRecord(refIdx, prices.Handling, rec)
		}
		if err != nil {
			return err
		}
	}

	if insert {
		// body locales also count attributes of references which are not indexed
		for _, l := range body.Locales {
			used, err := e.localeInUse(l, localeExclusion{})
			if err != nil {
				return err
			}
			if used {
				refIdx.RegisterLocale(e.pk, l)
			}
		}
		return nil
	}
	for _, l := range refIdx.Locales() {
		if refIdx.HasLocale(e.pk, l) {
			if err := refIdx.UnregisterLocale(e.pk, l); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Executor) upsertReferenceGroup(m mutation.UpsertReferenceGroup) error {
	old, err := e.liveReference(m.Key)
	if err != nil {
		return err
	}
	if old.Group != nil && old.Group.Type == m.GroupType && old.Group.PrimaryKey == m.GroupPrimaryKey {
		return nil
	}
	group := m.GroupPrimaryKey
	return e.replaceFacet(old, &group)
}

func (e *Executor) removeReferenceGroup(m mutation.RemoveReferenceGroup) error {
	old, err := e.liveReference(m.Key)
	if err != nil {
		return err
	}
	if old.Group == nil {
		return inconsistent(index.GlobalKey(), "reference %s of entity %d has no group", m.Key, e.pk)
	}
	return e.replaceFacet(old, nil)
}

// replaceFacet swaps the facet of the reference for one with the new group in the Global partition
// and in the partition of the referenced entity.
func (e *Executor) replaceFacet(old *mutation.ReferenceValue, group *int) error {
	rs, err := e.schema.Reference(old.Key.Name)
	if err != nil || !rs.Indexed || !rs.Faceted {
		return err
	}
	refKey := referencePartitionKey(rs, old.Key.PrimaryKey)
	refIdx := e.indexes.Get(refKey)
	if refIdx == nil {
		return inconsistent(refKey, "partition is missing")
	}
	oldFacet := index.NewFacetKey(old.Key.PrimaryKey, old.GroupPrimaryKey())
	newFacet := index.NewFacetKey(old.Key.PrimaryKey, group)
	for _, idx := range []*index.EntityIndex{e.global(), refIdx} {
		if err := idx.RemoveFacet(rs.Name, oldFacet, e.pk); err != nil {
			return err
		}
		if err := idx.InsertFacet(rs.Name, newFacet, e.pk); err != nil {
			return err
		}
	}
	return nil
}

// updateReferenceAttribute indexes an attribute of the reference itself. The type partition keys its
// entries by the referenced entity, except for sorting, and the partition of the referenced entity by
// the owning entity.
func (e *Executor) updateReferenceAttribute(m mutation.UpdateReferenceAttribute) error {
	old, err := e.liveReference(m.Key)
	if err != nil {
		return err
	}
	rs, err := e.schema.Reference(m.Key.Name)
	if err != nil || !rs.Indexed {
		return err
	}
	key := m.Attribute.AttributeKey()
	a, err := e.schema.ReferenceAttribute(rs.Name, key.Name)
	if err != nil {
		return err
	}
	typeIdx, refIdx, err := e.referencePartitionsOf(rs, m.Key.PrimaryKey)
	if err != nil {
		return err
	}
	before := &valueBefore{fetch: func() (*mutation.AttributeValue, error) {
		return old.Attributes[key], nil
	}}
	ik := index.ReferenceAttributeKey(rs.Name, key)
	pks := ReferencedKeys{Owner: e.pk, Referenced: m.Key.PrimaryKey}
	if err := applyAttribute(a, e.target(typeIdx, ik, pks), m.Attribute, before); err != nil {
		return err
	}
	if err := applyAttribute(a, e.target(refIdx, ik, OwnerKeys{Owner: e.pk}), m.Attribute, before); err != nil {
		return err
	}
	if !key.Localized() {
		return nil
	}
	if _, ok := m.Attribute.(mutation.RemoveAttribute); ok {
		return e.releaseLocale(key.Locale, localeExclusion{reference: &m.Key, referenceAttribute: &key})
	}
	return e.registerLocale(key.Locale)
}

func sortedAttributeKeys(r *mutation.ReferenceValue) []mutation.AttributeKey {
	keys := make([]mutation.AttributeKey, 0, len(r.Attributes))
	for k := range r.Attributes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

func containsLocale(locales []language.Tag, locale language.Tag) bool {
	for _, l := range locales {
		if l == locale {
			return true
		}
	}
	return false
}
