package indexer

import (
	"github.com/pingcap-incubator/tinydoc/kv/index"
	"github.com/pingcap-incubator/tinydoc/kv/mutation"
)

func (e *Executor) priceRecord(p *mutation.PriceValue, internalID int) index.PriceRecord {
	places := e.schema.IndexedPricePlaces
	return index.PriceRecord{
		InternalID:      internalID,
		PrimaryKey:      e.pk,
		Key:             p.Key,
		InnerRecordID:   p.InnerRecordID,
		Validity:        p.Validity,
		PriceWithoutTax: index.ScaleDecimal(p.PriceWithoutTax, places),
		PriceWithTax:    index.ScaleDecimal(p.PriceWithTax, places),
	}
}

func (e *Executor) insertPrice(idx *index.EntityIndex, handling mutation.InnerRecordHandling, rec index.PriceRecord) error {
	if err := idx.InsertPrice(handling, rec); err != nil {
		return err
	}
	e.observer.PriceInserted(idx.Key(), handling, rec)
	return nil
}

func (e *Executor) removePriceRecord(idx *index.EntityIndex, handling mutation.InnerRecordHandling, rec index.PriceRecord) error {
	if err := idx.RemovePrice(handling, rec); err != nil {
		return err
	}
	e.observer.PriceRemoved(idx.Key(), handling, rec)
	return nil
}

// upsertPrice goes through the Global partition first and the reference partitions after it. The
// internal id is resolved once and shared by all of them.
func (e *Executor) upsertPrice(m mutation.UpsertPrice) error {
	prices, err := e.containers.Prices(e.pk)
	if err != nil {
		return err
	}
	former := prices.Get(m.Key)
	after := m.MutateValue(former)
	if after == former {
		return nil
	}
	var rec index.PriceRecord
	if after.SellableNow() {
		rec = e.priceRecord(after, e.priceIDs.Resolve(e.pk, m.Key, former))
	}
	refs, err := e.referencePartitions()
	if err != nil {
		return err
	}
	for _, idx := range append([]*index.EntityIndex{e.global()}, refs...) {
		if former.SellableNow() {
			if err := e.removePriceRecord(idx, prices.Handling, e.priceRecord(former, former.InternalID)); err != nil {
				return err
			}
		}
		if after.SellableNow() {
			if err := e.insertPrice(idx, prices.Handling, rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// removePrice goes through the reference partitions first, they must still see the price when the
// Global partition forgets it.
func (e *Executor) removePrice(m mutation.RemovePrice) error {
	prices, err := e.containers.Prices(e.pk)
	if err != nil {
		return err
	}
	former := prices.Get(m.Key)
	if !former.Exists() {
		return inconsistent(index.GlobalKey(), "price %s of entity %d does not exist", m.Key, e.pk)
	}
	if !former.SellableNow() {
		return nil
	}
	rec := e.priceRecord(former, former.InternalID)
	refs, err := e.referencePartitions()
	if err != nil {
		return err
	}
	for _, idx := range append(refs, e.global()) {
		if err := e.removePriceRecord(idx, prices.Handling, rec); err != nil {
			return err
		}
	}
	return nil
}

// setInnerRecordHandling reindexes every sellable price under the new handling: all of them leave the
// reference partitions and then the Global partition, and come back in the opposite order.
func (e *Executor) setInnerRecordHandling(m mutation.SetPriceInnerRecordHandling) error {
	prices, err := e.containers.Prices(e.pk)
	if err != nil {
		return err
	}
	if prices.Handling == m.Handling {
		return nil
	}
	sellable := prices.Sellable()
	records := make([]index.PriceRecord, 0, len(sellable))
	for _, p := range sellable {
		records = append(records, e.priceRecord(p, p.InternalID))
	}
	refs, err := e.referencePartitions()
	if err != nil {
		return err
	}
	global := e.global()
	for _, idx := range append(refs, global) {
		for _, rec := range records {
			if err := e.removePriceRecord(idx, prices.Handling, rec); err != nil {
				return err
			}
		}
	}
	for _, idx := range append([]*index.EntityIndex{global}, refs...) {
		for _, rec := range records {
			if err := e.insertPrice(idx, m.Handling, rec); err != nil {
				return err
			}
		}
	}
	return nil
}
