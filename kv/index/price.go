package index

import (
	"sort"

	"github.com/google/btree"
	"github.com/pingcap-incubator/tinydoc/kv/mutation"
	"github.com/shopspring/decimal"
)

// PriceRecord is the footprint of one sellable price. The index keeps no back pointer to the record
// container, so removal rebuilds the very same record from the former price.
type PriceRecord struct {
	InternalID      int
	PrimaryKey      int
	Key             mutation.PriceKey
	InnerRecordID   *int
	Validity        *mutation.DateTimeRange
	PriceWithoutTax int64
	PriceWithTax    int64
}

func (r PriceRecord) equal(o PriceRecord) bool {
	return r.InternalID == o.InternalID && r.PrimaryKey == o.PrimaryKey && r.Key == o.Key &&
		equalIntPtr(r.InnerRecordID, o.InnerRecordID) && equalRange(r.Validity, o.Validity) &&
		r.PriceWithoutTax == o.PriceWithoutTax && r.PriceWithTax == o.PriceWithTax
}

type priceItem struct {
	PriceRecord
}

// Less orders prices by the amount with tax, the internal id breaks ties.
func (i priceItem) Less(than btree.Item) bool {
	o := than.(priceItem)
	if i.PriceWithTax != o.PriceWithTax {
		return i.PriceWithTax < o.PriceWithTax
	}
	return i.InternalID < o.InternalID
}

// ScaleDecimal turns d into an integer keeping the given number of decimal places, rounding half away
// from zero.
func ScaleDecimal(d decimal.Decimal, places int) int64 {
	return d.Round(int32(places)).Shift(int32(places)).IntPart()
}

func priceIndexKey(key mutation.PriceKey, handling mutation.InnerRecordHandling) PriceIndexKey {
	return PriceIndexKey{PriceList: key.PriceList, Currency: key.Currency, Handling: handling}
}

func (idx *EntityIndex) InsertPrice(handling mutation.InnerRecordHandling, rec PriceRecord) error {
	pik := priceIndexKey(rec.Key, handling)
	t, ok := idx.prices[pik]
	if !ok {
		t = btree.New(btreeDegree)
		idx.prices[pik] = t
	}
	if t.Has(priceItem{rec}) {
		return inconsistent(idx.key, "price %s with internal id %d is already indexed", rec.Key, rec.InternalID)
	}
	t.ReplaceOrInsert(priceItem{rec})
	return nil
}

func (idx *EntityIndex) RemovePrice(handling mutation.InnerRecordHandling, rec PriceRecord) error {
	pik := priceIndexKey(rec.Key, handling)
	t, ok := idx.prices[pik]
	if !ok {
		return inconsistent(idx.key, "price index %s does not exist", pik)
	}
	found := t.Get(priceItem{rec})
	if found == nil || !found.(priceItem).equal(rec) {
		return inconsistent(idx.key, "price %s with internal id %d of entity %d is not indexed in %s",
			rec.Key, rec.InternalID, rec.PrimaryKey, pik)
	}
	t.Delete(found)
	if t.Len() == 0 {
		delete(idx.prices, pik)
	}
	return nil
}

// PricesSorted returns the records of a price sub-index ordered by the amount with tax.
func (idx *EntityIndex) PricesSorted(pik PriceIndexKey) []PriceRecord {
	return idx.PriceRange(pik, minInt64, maxInt64)
}

// PriceRange returns the records whose scaled amount with tax lies within [from, to].
func (idx *EntityIndex) PriceRange(pik PriceIndexKey, from, to int64) []PriceRecord {
	t, ok := idx.prices[pik]
	if !ok {
		return nil
	}
	var res []PriceRecord
	t.AscendGreaterOrEqual(priceItem{PriceRecord{PriceWithTax: from, InternalID: minInt}}, func(i btree.Item) bool {
		rec := i.(priceItem).PriceRecord
		if rec.PriceWithTax > to {
			return false
		}
		res = append(res, rec)
		return true
	})
	return res
}

// PriceKeys returns the keys of the existing price sub-indexes.
func (idx *EntityIndex) PriceKeys() []PriceIndexKey {
	res := make([]PriceIndexKey, 0, len(idx.prices))
	for k := range idx.prices {
		res = append(res, k)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].String() < res[j].String() })
	return res
}

const (
	minInt64 = -1 << 63
	maxInt64 = 1<<63 - 1
)

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalRange(a, b *mutation.DateTimeRange) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.From.Equal(b.From) && a.To.Equal(b.To)
}
