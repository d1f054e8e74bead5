package mutation

import (
	"github.com/pingcap/errors"
	"github.com/shopspring/decimal"
)

// Kind tags each local mutation for logging and metrics.
type Kind int

const (
	KindUpsertAttribute Kind = iota
	KindRemoveAttribute
	KindApplyDeltaAttribute
	KindUpsertPrice
	KindRemovePrice
	KindSetPriceInnerRecordHandling
	KindInsertReference
	KindRemoveReference
	KindUpsertReferenceGroup
	KindRemoveReferenceGroup
	KindUpdateReferenceAttribute
	KindSetHierarchyPlacement
	KindRemoveHierarchyPlacement
	KindUpsertAssociatedData
	KindRemoveAssociatedData
)

var kindNames = [...]string{
	"upsert-attribute",
	"remove-attribute",
	"apply-delta-attribute",
	"upsert-price",
	"remove-price",
	"set-price-inner-record-handling",
	"insert-reference",
	"remove-reference",
	"upsert-reference-group",
	"remove-reference-group",
	"update-reference-attribute",
	"set-hierarchy-placement",
	"remove-hierarchy-placement",
	"upsert-associated-data",
	"remove-associated-data",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if name == s {
			return Kind(i), nil
		}
	}
	return 0, errors.Errorf("unknown mutation kind %q", s)
}

// LocalMutation is one atomic change of a single entity. The set of implementations is closed, every
// consumer switches over all of them.
type LocalMutation interface {
	Kind() Kind
	localMutation()
}

// AttributeMutation changes a single attribute, either of the entity or of one of its references.
type AttributeMutation interface {
	LocalMutation
	AttributeKey() AttributeKey
	// MutateValue computes the value after the mutation. It returns old itself when nothing changes.
	MutateValue(old *AttributeValue) (*AttributeValue, error)
}

type UpsertAttribute struct {
	Key   AttributeKey
	Value interface{}
}

type RemoveAttribute struct {
	Key AttributeKey
}

type ApplyDeltaAttribute struct {
	Key   AttributeKey
	Delta interface{}
}

type UpsertPrice struct {
	Key             PriceKey
	InnerRecordID   *int
	PriceWithoutTax decimal.Decimal
	TaxRate         decimal.Decimal
	PriceWithTax    decimal.Decimal
	Validity        *DateTimeRange
	Sellable        bool
}

type RemovePrice struct {
	Key PriceKey
}

type SetPriceInnerRecordHandling struct {
	Handling InnerRecordHandling
}

type InsertReference struct {
	Key                  ReferenceKey
	ReferencedEntityType string
}

type RemoveReference struct {
	Key ReferenceKey
}

type UpsertReferenceGroup struct {
	Key             ReferenceKey
	GroupType       string
	GroupPrimaryKey int
}

type RemoveReferenceGroup struct {
	Key ReferenceKey
}

// UpdateReferenceAttribute applies an attribute mutation to an attribute of the reference itself.
type UpdateReferenceAttribute struct {
	Key       ReferenceKey
	Attribute AttributeMutation
}

type SetHierarchyPlacement struct {
	ParentPrimaryKey *int
	Order            int
}

type RemoveHierarchyPlacement struct{}

type UpsertAssociatedData struct {
	Key   AssociatedDataKey
	Value interface{}
}

type RemoveAssociatedData struct {
	Key AssociatedDataKey
}

func (UpsertAttribute) Kind() Kind             { return KindUpsertAttribute }
func (RemoveAttribute) Kind() Kind             { return KindRemoveAttribute }
func (ApplyDeltaAttribute) Kind() Kind         { return KindApplyDeltaAttribute }
func (UpsertPrice) Kind() Kind                 { return KindUpsertPrice }
func (RemovePrice) Kind() Kind                 { return KindRemovePrice }
func (SetPriceInnerRecordHandling) Kind() Kind { return KindSetPriceInnerRecordHandling }
func (InsertReference) Kind() Kind             { return KindInsertReference }
func (RemoveReference) Kind() Kind             { return KindRemoveReference }
func (UpsertReferenceGroup) Kind() Kind        { return KindUpsertReferenceGroup }
func (RemoveReferenceGroup) Kind() Kind        { return KindRemoveReferenceGroup }
func (UpdateReferenceAttribute) Kind() Kind    { return KindUpdateReferenceAttribute }
func (SetHierarchyPlacement) Kind() Kind       { return KindSetHierarchyPlacement }
func (RemoveHierarchyPlacement) Kind() Kind    { return KindRemoveHierarchyPlacement }
func (UpsertAssociatedData) Kind() Kind        { return KindUpsertAssociatedData }
func (RemoveAssociatedData) Kind() Kind        { return KindRemoveAssociatedData }

func (UpsertAttribute) localMutation()             {}
func (RemoveAttribute) localMutation()             {}
func (ApplyDeltaAttribute) localMutation()         {}
func (UpsertPrice) localMutation()                 {}
func (RemovePrice) localMutation()                 {}
func (SetPriceInnerRecordHandling) localMutation() {}
func (InsertReference) localMutation()             {}
func (RemoveReference) localMutation()             {}
func (UpsertReferenceGroup) localMutation()        {}
func (RemoveReferenceGroup) localMutation()        {}
func (UpdateReferenceAttribute) localMutation()    {}
func (SetHierarchyPlacement) localMutation()       {}
func (RemoveHierarchyPlacement) localMutation()    {}
func (UpsertAssociatedData) localMutation()        {}
func (RemoveAssociatedData) localMutation()        {}

func (m UpsertAttribute) AttributeKey() AttributeKey     { return m.Key }
func (m RemoveAttribute) AttributeKey() AttributeKey     { return m.Key }
func (m ApplyDeltaAttribute) AttributeKey() AttributeKey { return m.Key }

func (m UpsertAttribute) MutateValue(old *AttributeValue) (*AttributeValue, error) {
	if old.Exists() && ValuesEqual(old.Value, m.Value) {
		return old, nil
	}
	version := 1
	if old != nil {
		version = old.Version + 1
	}
	return &AttributeValue{Key: m.Key, Value: m.Value, Version: version}, nil
}

func (m RemoveAttribute) MutateValue(old *AttributeValue) (*AttributeValue, error) {
	if !old.Exists() {
		return nil, errors.Errorf("attribute %s cannot be removed, it does not exist", m.Key)
	}
	return &AttributeValue{Key: m.Key, Value: old.Value, Version: old.Version + 1, Dropped: true}, nil
}

func (m ApplyDeltaAttribute) MutateValue(old *AttributeValue) (*AttributeValue, error) {
	if !old.Exists() {
		return nil, errors.Errorf("delta cannot be applied to attribute %s, it does not exist", m.Key)
	}
	value, err := addDelta(old.Value, m.Delta)
	if err != nil {
		return nil, errors.Annotatef(err, "attribute %s", m.Key)
	}
	return &AttributeValue{Key: m.Key, Value: value, Version: old.Version + 1}, nil
}

// MutateValue returns the price after the upsert. The internal id of a former price is kept.
func (m UpsertPrice) MutateValue(old *PriceValue) *PriceValue {
	if old.Exists() && old.Sellable == m.Sellable && equalIntPtr(old.InnerRecordID, m.InnerRecordID) &&
		equalRange(old.Validity, m.Validity) && old.PriceWithoutTax.Equal(m.PriceWithoutTax) &&
		old.PriceWithTax.Equal(m.PriceWithTax) && old.TaxRate.Equal(m.TaxRate) {
		return old
	}
	p := &PriceValue{
		Key:             m.Key,
		InnerRecordID:   m.InnerRecordID,
		PriceWithoutTax: m.PriceWithoutTax,
		TaxRate:         m.TaxRate,
		PriceWithTax:    m.PriceWithTax,
		Validity:        m.Validity,
		Sellable:        m.Sellable,
		Version:         1,
	}
	if old != nil {
		p.InternalID = old.InternalID
		p.Version = old.Version + 1
	}
	return p
}

func (m RemovePrice) MutateValue(old *PriceValue) (*PriceValue, error) {
	if !old.Exists() {
		return nil, errors.Errorf("price %s cannot be removed, it does not exist", m.Key)
	}
	p := *old
	p.Version++
	p.Dropped = true
	return &p, nil
}

// MutateValue returns a live reference. A dropped reference is revived without its former group and
// attributes.
func (m InsertReference) MutateValue(old *ReferenceValue) *ReferenceValue {
	if old.Exists() {
		return old
	}
	r := &ReferenceValue{
		Key:                  m.Key,
		ReferencedEntityType: m.ReferencedEntityType,
		Attributes:           make(map[AttributeKey]*AttributeValue),
		Version:              1,
	}
	if old != nil {
		r.Version = old.Version + 1
		if r.ReferencedEntityType == "" {
			r.ReferencedEntityType = old.ReferencedEntityType
		}
	}
	return r
}

func (m RemoveReference) MutateValue(old *ReferenceValue) (*ReferenceValue, error) {
	if !old.Exists() {
		return nil, errors.Errorf("reference %s cannot be removed, it does not exist", m.Key)
	}
	r := old.clone()
	r.Version++
	r.Dropped = true
	return r, nil
}

func (m UpsertReferenceGroup) MutateValue(old *ReferenceValue) (*ReferenceValue, error) {
	if !old.Exists() {
		return nil, errors.Errorf("reference %s does not exist, its group cannot be set", m.Key)
	}
	if old.Group != nil && old.Group.Type == m.GroupType && old.Group.PrimaryKey == m.GroupPrimaryKey {
		return old, nil
	}
	r := old.clone()
	r.Group = &GroupReference{Type: m.GroupType, PrimaryKey: m.GroupPrimaryKey}
	r.Version++
	return r, nil
}

func (m RemoveReferenceGroup) MutateValue(old *ReferenceValue) (*ReferenceValue, error) {
	if !old.Exists() || old.Group == nil {
		return nil, errors.Errorf("reference %s has no group to remove", m.Key)
	}
	r := old.clone()
	r.Group = nil
	r.Version++
	return r, nil
}

func (m UpdateReferenceAttribute) MutateValue(old *ReferenceValue) (*ReferenceValue, error) {
	if !old.Exists() {
		return nil, errors.Errorf("reference %s does not exist, its attribute cannot be changed", m.Key)
	}
	key := m.Attribute.AttributeKey()
	value, err := m.Attribute.MutateValue(old.Attributes[key])
	if err != nil {
		return nil, errors.Annotatef(err, "reference %s", m.Key)
	}
	if value == old.Attributes[key] {
		return old, nil
	}
	r := old.clone()
	r.Attributes[key] = value
	r.Version++
	return r, nil
}

func (m UpsertAssociatedData) MutateValue(old *AssociatedDataValue) *AssociatedDataValue {
	if old.Exists() && ValuesEqual(old.Value, m.Value) {
		return old
	}
	version := 1
	if old != nil {
		version = old.Version + 1
	}
	return &AssociatedDataValue{Key: m.Key, Value: m.Value, Version: version}
}

func (m RemoveAssociatedData) MutateValue(old *AssociatedDataValue) (*AssociatedDataValue, error) {
	if !old.Exists() {
		return nil, errors.Errorf("associated data %s cannot be removed, it does not exist", m.Key)
	}
	return &AssociatedDataValue{Key: m.Key, Value: old.Value, Version: old.Version + 1, Dropped: true}, nil
}
