package container

import (
	"github.com/pingcap-incubator/tinydoc/kv/mutation"
	"github.com/pingcap-incubator/tinydoc/log"
	"github.com/pingcap/errors"
	"golang.org/x/text/language"
)

// PriceIDLookup returns the internal id assigned to a sellable price during the write session.
type PriceIDLookup interface {
	PriceID(pk int, key mutation.PriceKey) (int, bool)
}

// Executor applies local mutations to the record containers of one entity.
type Executor struct {
	pk       int
	accessor *CachedAccessor
	priceIDs PriceIDLookup
}

// NewExecutor creates an executor for the entity the accessor is scoped to. priceIDs may be nil when
// the prices are not indexed.
func NewExecutor(accessor *CachedAccessor, priceIDs PriceIDLookup) *Executor {
	return &Executor{pk: accessor.PrimaryKey(), accessor: accessor, priceIDs: priceIDs}
}

func (e *Executor) Accessor() *CachedAccessor {
	return e.accessor
}

func (e *Executor) Apply(m mutation.LocalMutation) error {
	switch m := m.(type) {
	case mutation.UpsertAttribute:
		return e.applyAttribute(m)
	case mutation.RemoveAttribute:
		return e.applyAttribute(m)
	case mutation.ApplyDeltaAttribute:
		return e.applyAttribute(m)
	case mutation.UpsertPrice:
		prices, err := e.accessor.Prices(e.pk)
		if err != nil {
			return err
		}
		p := m.MutateValue(prices.Get(m.Key))
		if p.SellableNow() && p.InternalID == 0 && e.priceIDs != nil {
			if id, ok := e.priceIDs.PriceID(e.pk, m.Key); ok {
				if p == prices.Get(m.Key) {
					c := *p
					p = &c
				}
				p.InternalID = id
			}
		}
		prices.put(p)
	case mutation.RemovePrice:
		prices, err := e.accessor.Prices(e.pk)
		if err != nil {
			return err
		}
		p, err := m.MutateValue(prices.Get(m.Key))
		if err != nil {
			return err
		}
		prices.put(p)
	case mutation.SetPriceInnerRecordHandling:
		prices, err := e.accessor.Prices(e.pk)
		if err != nil {
			return err
		}
		prices.setHandling(m.Handling)
	case mutation.InsertReference:
		refs, err := e.accessor.References(e.pk)
		if err != nil {
			return err
		}
		refs.put(m.MutateValue(refs.Get(m.Key)))
	case mutation.RemoveReference:
		return e.applyReference(m.Key, m.MutateValue, hasLocalizedAttributes)
	case mutation.UpsertReferenceGroup:
		return e.applyReference(m.Key, m.MutateValue, nil)
	case mutation.RemoveReferenceGroup:
		return e.applyReference(m.Key, m.MutateValue, nil)
	case mutation.UpdateReferenceAttribute:
		var check func(*mutation.ReferenceValue) bool
		if m.Attribute.AttributeKey().Localized() {
			check = func(*mutation.ReferenceValue) bool { return true }
		}
		return e.applyReference(m.Key, m.MutateValue, check)
	case mutation.SetHierarchyPlacement:
		body, err := e.accessor.Body(e.pk)
		if err != nil {
			return err
		}
		body.setHierarchy(&mutation.HierarchyPlacement{ParentPrimaryKey: m.ParentPrimaryKey, Order: m.Order})
	case mutation.RemoveHierarchyPlacement:
		body, err := e.accessor.Body(e.pk)
		if err != nil {
			return err
		}
		if body.Hierarchy == nil {
			return errors.Errorf("entity %d has no hierarchy placement to remove", e.pk)
		}
		body.setHierarchy(nil)
	case mutation.UpsertAssociatedData:
		return e.applyAssociatedData(m.Key, func(old *mutation.AssociatedDataValue) (*mutation.AssociatedDataValue, error) {
			return m.MutateValue(old), nil
		})
	case mutation.RemoveAssociatedData:
		return e.applyAssociatedData(m.Key, m.MutateValue)
	default:
		log.Panicf("unknown mutation %T", m)
	}
	return nil
}

func (e *Executor) applyAttribute(m mutation.AttributeMutation) error {
	key := m.AttributeKey()
	c, err := e.accessor.Attributes(e.pk, key.Locale)
	if err != nil {
		return err
	}
	v, err := m.MutateValue(c.Get(key.Name))
	if err != nil {
		return err
	}
	c.put(v)
	if !key.Localized() {
		return nil
	}
	body, err := e.accessor.Body(e.pk)
	if err != nil {
		return err
	}
	body.setAttributeLocale(key.Locale, !c.Empty())
	return e.recomputeLocales()
}

func hasLocalizedAttributes(r *mutation.ReferenceValue) bool {
	for k, v := range r.Attributes {
		if k.Localized() && v.Exists() {
			return true
		}
	}
	return false
}

// applyReference replaces a reference with the result of mutate. When localized reports true for the
// former reference the entity locales are recomputed.
func (e *Executor) applyReference(key mutation.ReferenceKey, mutate func(*mutation.ReferenceValue) (*mutation.ReferenceValue, error),
	localized func(*mutation.ReferenceValue) bool) error {
	refs, err := e.accessor.References(e.pk)
	if err != nil {
		return err
	}
	old := refs.Get(key)
	r, err := mutate(old)
	if err != nil {
		return err
	}
	refs.put(r)
	if localized != nil && old != nil && localized(old) {
		return e.recomputeLocales()
	}
	return nil
}

func (e *Executor) applyAssociatedData(key mutation.AssociatedDataKey,
	mutate func(*mutation.AssociatedDataValue) (*mutation.AssociatedDataValue, error)) error {
	c, err := e.accessor.AssociatedData(e.pk, key)
	if err != nil {
		return err
	}
	v, err := mutate(c.Value)
	if err != nil {
		return err
	}
	c.put(v)
	body, err := e.accessor.Body(e.pk)
	if err != nil {
		return err
	}
	if v.Exists() {
		body.addAssociatedDataKey(key)
	} else {
		body.removeAssociatedDataKey(key)
	}
	if key.Localized() {
		return e.recomputeLocales()
	}
	return nil
}

// recomputeLocales sets the body locales to the union of the locales of all existing localized values.
func (e *Executor) recomputeLocales() error {
	body, err := e.accessor.Body(e.pk)
	if err != nil {
		return err
	}
	locales := make([]language.Tag, 0, len(body.Locales)+1)
	add := func(l language.Tag) {
		if l != language.Und && !containsTag(locales, l) {
			locales = append(locales, l)
		}
	}
	for _, l := range body.AttributeLocales {
		add(l)
	}
	for _, k := range body.AssociatedDataKeys {
		add(k.Locale)
	}
	refs, err := e.accessor.References(e.pk)
	if err != nil {
		return err
	}
	for _, r := range refs.Live() {
		for k, v := range r.Attributes {
			if v.Exists() {
				add(k.Locale)
			}
		}
	}
	body.setLocales(locales)
	return nil
}

// ChangedParts returns the dirty containers. The body version grows by one for every write session
// which changed anything.
func (e *Executor) ChangedParts() ([]Part, error) {
	body, err := e.accessor.Body(e.pk)
	if err != nil {
		return nil, err
	}
	parts := e.accessor.ChangedParts()
	if len(parts) > 0 {
		if !body.versioned {
			body.Version++
			body.versioned = true
		}
		body.dirty = true
		if parts[0] != Part(body) {
			parts = append([]Part{body}, parts...)
		}
	}
	return parts, nil
}

// Committed marks every container clean after the caller persisted the changed parts, so the same
// executor can continue with another batch.
func (e *Executor) Committed() {
	a := e.accessor
	if a.body != nil {
		a.body.dirty = false
		a.body.versioned = false
		a.body.stored = true
	}
	for _, c := range a.attributes {
		c.dirty = false
	}
	for _, c := range a.associatedData {
		c.dirty = false
	}
	if a.prices != nil {
		a.prices.dirty = false
	}
	if a.references != nil {
		a.references.dirty = false
	}
}
