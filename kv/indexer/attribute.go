package indexer

import (
	"github.com/pingcap-incubator/tinydoc/kv/index"
	"github.com/pingcap-incubator/tinydoc/kv/mutation"
	"github.com/pingcap-incubator/tinydoc/kv/schema"
	"github.com/shopspring/decimal"
)

// attributeTarget is the place one attribute is indexed at: a partition, the attribute's key inside it
// and the primary keys its entries use.
type attributeTarget struct {
	idx      *index.EntityIndex
	key      index.AttributeIndexKey
	pks      PrimaryKeys
	observer Observer
}

// valueBefore fetches the value an attribute had before the current mutation at most once.
type valueBefore struct {
	fetch   func() (*mutation.AttributeValue, error)
	fetched bool
	value   *mutation.AttributeValue
	err     error
}

func (v *valueBefore) get() (*mutation.AttributeValue, error) {
	if !v.fetched {
		v.value, v.err = v.fetch()
		v.fetched = true
	}
	return v.value, v.err
}

// IndexedValue is the form an attribute value takes inside the sub-indexes. Decimals become integers
// keeping the decimal places of the schema.
func IndexedValue(a *schema.AttributeSchema, value interface{}) interface{} {
	if d, ok := value.(decimal.Decimal); ok {
		return index.ScaleDecimal(d, a.IndexedDecimalPlaces)
	}
	return value
}

// uniqueAlsoFilters covers unique strings which are not filterable: equality filtering on them is
// answered by the filter sub-index, so it gets their values too.
func uniqueAlsoFilters(a *schema.AttributeSchema) bool {
	return a.Unique && !a.Filterable && a.Type == mutation.TypeString
}

func (t attributeTarget) insertFilter(value interface{}) {
	t.idx.InsertFilter(t.key, value, t.pks.PrimaryKey(index.AttributeFilter))
	t.observer.AttributeInserted(t.idx.Key(), index.AttributeFilter, t.key, value)
}

func (t attributeTarget) removeFilter(value interface{}) error {
	if err := t.idx.RemoveFilter(t.key, value, t.pks.PrimaryKey(index.AttributeFilter)); err != nil {
		return err
	}
	t.observer.AttributeRemoved(t.idx.Key(), index.AttributeFilter, t.key, value)
	return nil
}

// insertAttribute writes value into every sub-index the schema asks for.
func insertAttribute(a *schema.AttributeSchema, t attributeTarget, value interface{}) error {
	v := IndexedValue(a, value)
	if a.Unique {
		if err := t.idx.InsertUnique(t.key, v, t.pks.PrimaryKey(index.AttributeUnique)); err != nil {
			return err
		}
		t.observer.AttributeInserted(t.idx.Key(), index.AttributeUnique, t.key, v)
		if uniqueAlsoFilters(a) {
			t.insertFilter(v)
		}
	}
	if a.Filterable {
		t.insertFilter(v)
	}
	if a.Sortable {
		t.idx.InsertSort(t.key, v, t.pks.PrimaryKey(index.AttributeSort))
		t.observer.AttributeInserted(t.idx.Key(), index.AttributeSort, t.key, v)
	}
	return nil
}

// removeAttribute removes value from every sub-index the schema asks for.
func removeAttribute(a *schema.AttributeSchema, t attributeTarget, value interface{}) error {
	v := IndexedValue(a, value)
	if a.Unique {
		if err := t.idx.RemoveUnique(t.key, v, t.pks.PrimaryKey(index.AttributeUnique)); err != nil {
			return err
		}
		t.observer.AttributeRemoved(t.idx.Key(), index.AttributeUnique, t.key, v)
		if uniqueAlsoFilters(a) {
			if err := t.removeFilter(v); err != nil {
				return err
			}
		}
	}
	if a.Filterable {
		if err := t.removeFilter(v); err != nil {
			return err
		}
	}
	if a.Sortable {
		if err := t.idx.RemoveSort(t.key, v, t.pks.PrimaryKey(index.AttributeSort)); err != nil {
			return err
		}
		t.observer.AttributeRemoved(t.idx.Key(), index.AttributeSort, t.key, v)
	}
	return nil
}

// checkUnique fails before anything is written when another entity holds value.
func checkUnique(a *schema.AttributeSchema, t attributeTarget, value interface{}) error {
	if !a.Unique {
		return nil
	}
	v := IndexedValue(a, value)
	pk := t.pks.PrimaryKey(index.AttributeUnique)
	if holder, ok := t.idx.UniqueLookup(t.key, v); ok && holder != pk {
		return &index.UniqueViolation{Index: t.idx.Key(), Attribute: t.key, Value: v, ExistingPK: holder, PK: pk}
	}
	return nil
}

// upsertAttribute replaces the entries of the former value, if any, by the entries of value.
func upsertAttribute(a *schema.AttributeSchema, t attributeTarget, former *mutation.AttributeValue, value interface{}) error {
	if !a.Indexed() {
		return nil
	}
	if former.Exists() && mutation.ValuesEqual(former.Value, value) {
		return nil
	}
	if err := checkUnique(a, t, value); err != nil {
		return err
	}
	if former.Exists() {
		if err := removeAttribute(a, t, former.Value); err != nil {
			return err
		}
	}
	return insertAttribute(a, t, value)
}

// dropAttribute removes the entries of the former value, which must exist.
func dropAttribute(a *schema.AttributeSchema, t attributeTarget, former *mutation.AttributeValue) error {
	if !former.Exists() {
		return inconsistent(t.idx.Key(), "attribute %s has no value to remove", t.key)
	}
	if !a.Indexed() {
		return nil
	}
	return removeAttribute(a, t, former.Value)
}

// applyAttribute indexes the result of an attribute mutation in one partition.
func applyAttribute(a *schema.AttributeSchema, t attributeTarget, m mutation.AttributeMutation, before *valueBefore) error {
	former, err := before.get()
	if err != nil {
		return err
	}
	if _, ok := m.(mutation.RemoveAttribute); ok {
		return dropAttribute(a, t, former)
	}
	after, err := m.MutateValue(former)
	if err != nil {
		return err
	}
	if after == former {
		return nil
	}
	return upsertAttribute(a, t, former, after.Value)
}
