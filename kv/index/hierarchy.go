package index

import (
	"github.com/google/btree"
	"github.com/pingcap-incubator/tinydoc/kv/mutation"
)

type placement struct {
	hasParent bool
	parent    int
	order     int
}

// hierarchyItem orders roots before children, children by parent, then by order among siblings.
type hierarchyItem struct {
	placement
	pk int
}

func (i hierarchyItem) Less(than btree.Item) bool {
	o := than.(hierarchyItem)
	if i.hasParent != o.hasParent {
		return !i.hasParent
	}
	if i.parent != o.parent {
		return i.parent < o.parent
	}
	if i.order != o.order {
		return i.order < o.order
	}
	return i.pk < o.pk
}

func toPlacement(p mutation.HierarchyPlacement) placement {
	if p.ParentPrimaryKey == nil {
		return placement{order: p.Order}
	}
	return placement{hasParent: true, parent: *p.ParentPrimaryKey, order: p.Order}
}

// SetPlacement places the entity in the hierarchy, replacing its former placement.
func (idx *EntityIndex) SetPlacement(pk int, p mutation.HierarchyPlacement) {
	if old, ok := idx.placements[pk]; ok {
		idx.hierarchy.Delete(hierarchyItem{placement: old, pk: pk})
	}
	np := toPlacement(p)
	idx.placements[pk] = np
	idx.hierarchy.ReplaceOrInsert(hierarchyItem{placement: np, pk: pk})
}

func (idx *EntityIndex) RemovePlacement(pk int) error {
	old, ok := idx.placements[pk]
	if !ok {
		return inconsistent(idx.key, "entity %d is not placed in the hierarchy", pk)
	}
	idx.hierarchy.Delete(hierarchyItem{placement: old, pk: pk})
	delete(idx.placements, pk)
	return nil
}

// Placement returns the hierarchy placement of the entity.
func (idx *EntityIndex) Placement(pk int) (mutation.HierarchyPlacement, bool) {
	p, ok := idx.placements[pk]
	if !ok {
		return mutation.HierarchyPlacement{}, false
	}
	res := mutation.HierarchyPlacement{Order: p.order}
	if p.hasParent {
		res.ParentPrimaryKey = mutation.IntPtr(p.parent)
	}
	return res, true
}

// HierarchyRoots returns the entities without a parent ordered by their order.
func (idx *EntityIndex) HierarchyRoots() []int {
	return idx.siblings(placement{order: minInt})
}

// HierarchyChildren returns the direct children of parent ordered by their order.
func (idx *EntityIndex) HierarchyChildren(parent int) []int {
	return idx.siblings(placement{hasParent: true, parent: parent, order: minInt})
}

func (idx *EntityIndex) siblings(from placement) []int {
	var res []int
	idx.hierarchy.AscendGreaterOrEqual(hierarchyItem{placement: from, pk: minInt}, func(i btree.Item) bool {
		item := i.(hierarchyItem)
		if item.hasParent != from.hasParent || item.parent != from.parent {
			return false
		}
		res = append(res, item.pk)
		return true
	})
	return res
}
