package index

import (
	"fmt"
	"sort"
)

// FacetKey is a referenced entity together with the group of the reference, if any.
type FacetKey struct {
	ReferencedPK int
	HasGroup     bool
	GroupPK      int
}

func NewFacetKey(referencedPK int, groupPK *int) FacetKey {
	if groupPK == nil {
		return FacetKey{ReferencedPK: referencedPK}
	}
	return FacetKey{ReferencedPK: referencedPK, HasGroup: true, GroupPK: *groupPK}
}

func (f FacetKey) String() string {
	if f.HasGroup {
		return fmt.Sprintf("%d(group %d)", f.ReferencedPK, f.GroupPK)
	}
	return fmt.Sprintf("%d", f.ReferencedPK)
}

func (idx *EntityIndex) InsertFacet(reference string, facet FacetKey, pk int) error {
	facets, ok := idx.facets[reference]
	if !ok {
		facets = make(map[FacetKey]map[int]struct{})
		idx.facets[reference] = facets
	}
	owners, ok := facets[facet]
	if !ok {
		owners = make(map[int]struct{})
		facets[facet] = owners
	}
	if _, ok := owners[pk]; ok {
		return inconsistent(idx.key, "facet %s %s of entity %d is already indexed", reference, facet, pk)
	}
	owners[pk] = struct{}{}
	return nil
}

func (idx *EntityIndex) RemoveFacet(reference string, facet FacetKey, pk int) error {
	owners, ok := idx.facets[reference][facet]
	if !ok {
		return inconsistent(idx.key, "facet %s %s is not indexed", reference, facet)
	}
	if _, ok := owners[pk]; !ok {
		return inconsistent(idx.key, "facet %s %s of entity %d is not indexed", reference, facet, pk)
	}
	delete(owners, pk)
	if len(owners) == 0 {
		delete(idx.facets[reference], facet)
		if len(idx.facets[reference]) == 0 {
			delete(idx.facets, reference)
		}
	}
	return nil
}

// FacetPrimaryKeys returns the entities referencing referencedPK through the reference, whatever the
// group, in ascending order.
func (idx *EntityIndex) FacetPrimaryKeys(reference string, referencedPK int) []int {
	seen := make(map[int]struct{})
	for facet, owners := range idx.facets[reference] {
		if facet.ReferencedPK != referencedPK {
			continue
		}
		for pk := range owners {
			seen[pk] = struct{}{}
		}
	}
	return sortedSet(seen)
}

// Facets returns the facets indexed for the reference ordered by referenced primary key and group.
func (idx *EntityIndex) Facets(reference string) []FacetKey {
	res := make([]FacetKey, 0, len(idx.facets[reference]))
	for f := range idx.facets[reference] {
		res = append(res, f)
	}
	sort.Slice(res, func(i, j int) bool {
		a, b := res[i], res[j]
		if a.ReferencedPK != b.ReferencedPK {
			return a.ReferencedPK < b.ReferencedPK
		}
		if a.HasGroup != b.HasGroup {
			return !a.HasGroup
		}
		return a.GroupPK < b.GroupPK
	})
	return res
}
