package indexer

import (
	"github.com/pingcap-incubator/tinydoc/kv/container"
	"github.com/pingcap-incubator/tinydoc/kv/index"
	"github.com/pingcap-incubator/tinydoc/kv/mutation"
	"github.com/pingcap-incubator/tinydoc/kv/schema"
	"github.com/pingcap-incubator/tinydoc/log"
)

// Executor keeps the index partitions of a collection in line with the mutations of one entity. It
// must run before the container executor applies the same mutation, because every "value before" is
// read from the record containers.
//
// An Executor is bound to one entity and one write session and is not safe for concurrent use.
type Executor struct {
	pk         int
	schema     *schema.EntitySchema
	indexes    index.Indexes
	containers container.Accessor
	priceIDs   *PriceIDs
	observer   Observer
}

// NewExecutor creates an executor for entity pk. observer may be nil.
func NewExecutor(pk int, s *schema.EntitySchema, indexes index.Indexes, containers container.Accessor,
	priceIDs *PriceIDs, observer Observer) *Executor {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Executor{
		pk:         pk,
		schema:     s,
		indexes:    indexes,
		containers: containers,
		priceIDs:   priceIDs,
		observer:   observer,
	}
}

func (e *Executor) global() *index.EntityIndex {
	return e.indexes.GetOrCreate(index.GlobalKey())
}

// ApplyMutation updates every partition the mutation affects. An error leaves the partitions of the
// entity in an undefined state, the caller has to abandon the write.
func (e *Executor) ApplyMutation(m mutation.LocalMutation) error {
	global := e.global()
	if !global.ContainsPrimaryKey(e.pk) {
		global.InsertPrimaryKey(e.pk)
	}
	switch m := m.(type) {
	case mutation.UpsertAttribute:
		return e.applyAttributeMutation(m)
	case mutation.RemoveAttribute:
		return e.applyAttributeMutation(m)
	case mutation.ApplyDeltaAttribute:
		return e.applyAttributeMutation(m)
	case mutation.UpsertPrice:
		return e.upsertPrice(m)
	case mutation.RemovePrice:
		return e.removePrice(m)
	case mutation.SetPriceInnerRecordHandling:
		return e.setInnerRecordHandling(m)
	case mutation.InsertReference:
		return e.insertReference(m)
	case mutation.RemoveReference:
		return e.removeReference(m)
	case mutation.UpsertReferenceGroup:
		return e.upsertReferenceGroup(m)
	case mutation.RemoveReferenceGroup:
		return e.removeReferenceGroup(m)
	case mutation.UpdateReferenceAttribute:
		return e.updateReferenceAttribute(m)
	case mutation.SetHierarchyPlacement:
		global.SetPlacement(e.pk, mutation.HierarchyPlacement{ParentPrimaryKey: m.ParentPrimaryKey, Order: m.Order})
		return nil
	case mutation.RemoveHierarchyPlacement:
		return global.RemovePlacement(e.pk)
	case mutation.UpsertAssociatedData:
		if m.Key.Localized() {
			return e.registerLocale(m.Key.Locale)
		}
		return nil
	case mutation.RemoveAssociatedData:
		return e.removeAssociatedData(m)
	default:
		log.Panicf("unknown mutation %T", m)
	}
	return nil
}

// RemoveEntity drops the primary key from the Global partition. It runs after the removal mutations
// of the entity were applied.
func (e *Executor) RemoveEntity() error {
	global := e.indexes.Get(index.GlobalKey())
	if global == nil || !global.ContainsPrimaryKey(e.pk) {
		return inconsistent(index.GlobalKey(), "entity %d is not indexed", e.pk)
	}
	_, err := global.RemovePrimaryKey(e.pk)
	return err
}

func (e *Executor) applyAttributeMutation(m mutation.AttributeMutation) error {
	key := m.AttributeKey()
	a, err := e.schema.Attribute(key.Name)
	if err != nil {
		return err
	}
	before := &valueBefore{fetch: func() (*mutation.AttributeValue, error) {
		c, err := e.containers.Attributes(e.pk, key.Locale)
		if err != nil {
			return nil, err
		}
		return c.Get(key.Name), nil
	}}
	ik := index.EntityAttributeKey(key)
	if err := applyAttribute(a, e.target(e.global(), ik, OwnerKeys{Owner: e.pk}), m, before); err != nil {
		return err
	}
	refs, err := e.referencePartitions()
	if err != nil {
		return err
	}
	for _, idx := range refs {
		if err := applyAttribute(a, e.target(idx, ik, OwnerKeys{Owner: e.pk}), m, before); err != nil {
			return err
		}
	}
	if !key.Localized() {
		return nil
	}
	if _, ok := m.(mutation.RemoveAttribute); ok {
		return e.releaseLocale(key.Locale, localeExclusion{attribute: &key})
	}
	return e.registerLocale(key.Locale)
}

func (e *Executor) removeAssociatedData(m mutation.RemoveAssociatedData) error {
	c, err := e.containers.AssociatedData(e.pk, m.Key)
	if err != nil {
		return err
	}
	if !c.Value.Exists() {
		return inconsistent(index.GlobalKey(), "associated data %s of entity %d does not exist", m.Key, e.pk)
	}
	if !m.Key.Localized() {
		return nil
	}
	return e.releaseLocale(m.Key.Locale, localeExclusion{associatedData: &m.Key})
}

func (e *Executor) target(idx *index.EntityIndex, key index.AttributeIndexKey, pks PrimaryKeys) attributeTarget {
	return attributeTarget{idx: idx, key: key, pks: pks, observer: e.observer}
}

func referencePartitionKey(rs *schema.ReferenceSchema, referencedPK int) index.Key {
	if rs.ReferencedHierarchical {
		return index.ReferencedHierarchyNodeKey(rs.Name, referencedPK)
	}
	return index.ReferencedEntityKey(rs.Name, referencedPK)
}

// referencePartitions returns the partitions of every referenced entity the entity currently holds
// an indexed reference to.
func (e *Executor) referencePartitions() ([]*index.EntityIndex, error) {
	refs, err := e.containers.References(e.pk)
	if err != nil {
		return nil, err
	}
	var res []*index.EntityIndex
	for _, r := range refs.Live() {
		rs, err := e.schema.Reference(r.Key.Name)
		if err != nil {
			return nil, err
		}
		if !rs.Indexed {
			continue
		}
		key := referencePartitionKey(rs, r.Key.PrimaryKey)
		idx := e.indexes.Get(key)
		if idx == nil {
			return nil, inconsistent(key, "partition of reference %s of entity %d is missing", r.Key, e.pk)
		}
		res = append(res, idx)
	}
	return res, nil
}
