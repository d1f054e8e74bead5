package index

import (
	"fmt"

	"github.com/pingcap-incubator/tinydoc/kv/mutation"
	"golang.org/x/text/language"
)

// Kind is the kind of an index partition.
type Kind int

const (
	Global Kind = iota
	ReferencedEntityType
	ReferencedEntity
	ReferencedHierarchyNode
)

func (k Kind) String() string {
	switch k {
	case Global:
		return "global"
	case ReferencedEntityType:
		return "referenced-entity-type"
	case ReferencedEntity:
		return "referenced-entity"
	case ReferencedHierarchyNode:
		return "referenced-hierarchy-node"
	}
	return "unknown"
}

// Key identifies an index partition. ReferenceName is set for every kind but Global, PrimaryKey only
// for the partitions of one referenced entity.
type Key struct {
	Kind          Kind
	ReferenceName string
	PrimaryKey    int
}

func GlobalKey() Key {
	return Key{Kind: Global}
}

func ReferencedEntityTypeKey(reference string) Key {
	return Key{Kind: ReferencedEntityType, ReferenceName: reference}
}

func ReferencedEntityKey(reference string, pk int) Key {
	return Key{Kind: ReferencedEntity, ReferenceName: reference, PrimaryKey: pk}
}

func ReferencedHierarchyNodeKey(reference string, pk int) Key {
	return Key{Kind: ReferencedHierarchyNode, ReferenceName: reference, PrimaryKey: pk}
}

// IsReference reports whether the partition holds the entities referencing one referenced entity.
func (k Key) IsReference() bool {
	return k.Kind == ReferencedEntity || k.Kind == ReferencedHierarchyNode
}

func (k Key) String() string {
	switch k.Kind {
	case Global:
		return k.Kind.String()
	case ReferencedEntityType:
		return fmt.Sprintf("%s(%s)", k.Kind, k.ReferenceName)
	}
	return fmt.Sprintf("%s(%s:%d)", k.Kind, k.ReferenceName, k.PrimaryKey)
}

// IndexType routes a sub-index operation. It decides which primary key an entry is keyed by.
type IndexType int

const (
	AttributeUnique IndexType = iota
	AttributeFilter
	AttributeSort
	Price
	Facet
	Hierarchy
	PrimaryKeys
)

func (t IndexType) String() string {
	switch t {
	case AttributeUnique:
		return "attribute-unique"
	case AttributeFilter:
		return "attribute-filter"
	case AttributeSort:
		return "attribute-sort"
	case Price:
		return "price"
	case Facet:
		return "facet"
	case Hierarchy:
		return "hierarchy"
	case PrimaryKeys:
		return "primary-keys"
	}
	return "unknown"
}

// AttributeIndexKey identifies the sub-indexes of one attribute. ReferenceName is set for attributes
// of a reference so they never mix with entity attributes of the same name.
type AttributeIndexKey struct {
	ReferenceName string
	Name          string
	Locale        language.Tag
}

func EntityAttributeKey(key mutation.AttributeKey) AttributeIndexKey {
	return AttributeIndexKey{Name: key.Name, Locale: key.Locale}
}

func ReferenceAttributeKey(reference string, key mutation.AttributeKey) AttributeIndexKey {
	return AttributeIndexKey{ReferenceName: reference, Name: key.Name, Locale: key.Locale}
}

func (k AttributeIndexKey) String() string {
	s := k.Name
	if k.ReferenceName != "" {
		s = k.ReferenceName + "." + s
	}
	if k.Locale != language.Und {
		s += ":" + k.Locale.String()
	}
	return s
}

// PriceIndexKey identifies the price sub-index of one price list and currency under one inner record
// handling.
type PriceIndexKey struct {
	PriceList string
	Currency  string
	Handling  mutation.InnerRecordHandling
}

func (k PriceIndexKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.PriceList, k.Currency, k.Handling)
}
