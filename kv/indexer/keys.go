package indexer

import "github.com/pingcap-incubator/tinydoc/kv/index"

// PrimaryKeys decides which primary key an entry of a sub-index is keyed by.
type PrimaryKeys interface {
	PrimaryKey(t index.IndexType) int
}

// OwnerKeys keys every entry by the owning entity. It is used by the Global partition and by the
// partitions of one referenced entity.
type OwnerKeys struct {
	Owner int
}

func (k OwnerKeys) PrimaryKey(index.IndexType) int {
	return k.Owner
}

// ReferencedKeys is used by ReferencedEntityType partitions. Sort entries keep the owning entity so
// the order stays global, all other entries are keyed by the referenced entity.
type ReferencedKeys struct {
	Owner      int
	Referenced int
}

func (k ReferencedKeys) PrimaryKey(t index.IndexType) int {
	if t == index.AttributeSort {
		return k.Owner
	}
	return k.Referenced
}
