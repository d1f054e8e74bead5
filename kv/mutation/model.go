package mutation

import (
	"github.com/shopspring/decimal"
)

// AttributeValue is one versioned attribute value. Removal keeps the value with Dropped set so the
// version keeps growing.
type AttributeValue struct {
	Key     AttributeKey
	Value   interface{}
	Version int
	Dropped bool
}

// Exists reports whether v holds a live value, nil is allowed.
func (v *AttributeValue) Exists() bool {
	return v != nil && !v.Dropped
}

type AssociatedDataValue struct {
	Key     AssociatedDataKey
	Value   interface{}
	Version int
	Dropped bool
}

func (v *AssociatedDataValue) Exists() bool {
	return v != nil && !v.Dropped
}

// PriceValue is a price as stored in the record. InternalID is the surrogate id used by the price
// indexes, it is zero until the price becomes sellable for the first time.
type PriceValue struct {
	Key             PriceKey
	InnerRecordID   *int
	PriceWithoutTax decimal.Decimal
	TaxRate         decimal.Decimal
	PriceWithTax    decimal.Decimal
	Validity        *DateTimeRange
	Sellable        bool
	InternalID      int
	Version         int
	Dropped         bool
}

func (p *PriceValue) Exists() bool {
	return p != nil && !p.Dropped
}

// SellableNow reports whether the price takes part in the price indexes.
func (p *PriceValue) SellableNow() bool {
	return p.Exists() && p.Sellable
}

type GroupReference struct {
	Type       string
	PrimaryKey int
}

type ReferenceValue struct {
	Key                  ReferenceKey
	ReferencedEntityType string
	Group                *GroupReference
	Attributes           map[AttributeKey]*AttributeValue
	Version              int
	Dropped              bool
}

func (r *ReferenceValue) Exists() bool {
	return r != nil && !r.Dropped
}

// GroupPrimaryKey returns the group primary key or nil when the reference has no group.
func (r *ReferenceValue) GroupPrimaryKey() *int {
	if r == nil || r.Group == nil {
		return nil
	}
	pk := r.Group.PrimaryKey
	return &pk
}

// Attribute returns the live attribute value for key, or nil.
func (r *ReferenceValue) Attribute(key AttributeKey) *AttributeValue {
	if r == nil {
		return nil
	}
	if v := r.Attributes[key]; v.Exists() {
		return v
	}
	return nil
}

func (r *ReferenceValue) clone() *ReferenceValue {
	c := *r
	c.Attributes = make(map[AttributeKey]*AttributeValue, len(r.Attributes))
	for k, v := range r.Attributes {
		c.Attributes[k] = v
	}
	if r.Group != nil {
		g := *r.Group
		c.Group = &g
	}
	return &c
}

// HierarchyPlacement places an entity under a parent (nil for a root) with an order among siblings.
type HierarchyPlacement struct {
	ParentPrimaryKey *int
	Order            int
}

func (p *HierarchyPlacement) Equal(other *HierarchyPlacement) bool {
	if p == nil || other == nil {
		return p == other
	}
	return equalIntPtr(p.ParentPrimaryKey, other.ParentPrimaryKey) && p.Order == other.Order
}
