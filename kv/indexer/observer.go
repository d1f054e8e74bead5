package indexer

import (
	"github.com/pingcap-incubator/tinydoc/kv/index"
	"github.com/pingcap-incubator/tinydoc/kv/mutation"
)

// Observer is told about every entry written to or removed from an attribute or price sub-index, in
// the order the writes happen.
type Observer interface {
	AttributeInserted(partition index.Key, t index.IndexType, attribute index.AttributeIndexKey, value interface{})
	AttributeRemoved(partition index.Key, t index.IndexType, attribute index.AttributeIndexKey, value interface{})
	PriceInserted(partition index.Key, handling mutation.InnerRecordHandling, rec index.PriceRecord)
	PriceRemoved(partition index.Key, handling mutation.InnerRecordHandling, rec index.PriceRecord)
}

type nopObserver struct{}

func (nopObserver) AttributeInserted(index.Key, index.IndexType, index.AttributeIndexKey, interface{}) {}
func (nopObserver) AttributeRemoved(index.Key, index.IndexType, index.AttributeIndexKey, interface{})  {}
func (nopObserver) PriceInserted(index.Key, mutation.InnerRecordHandling, index.PriceRecord)        {}
func (nopObserver) PriceRemoved(index.Key, mutation.InnerRecordHandling, index.PriceRecord)         {}

// Observers fans the notifications out to several observers.
type Observers []Observer

func (os Observers) AttributeInserted(p index.Key, t index.IndexType, a index.AttributeIndexKey, v interface{}) {
	for _, o := range os {
		o.AttributeInserted(p, t, a, v)
	}
}

func (os Observers) AttributeRemoved(p index.Key, t index.IndexType, a index.AttributeIndexKey, v interface{}) {
	for _, o := range os {
		o.AttributeRemoved(p, t, a, v)
	}
}

func (os Observers) PriceInserted(p index.Key, h mutation.InnerRecordHandling, rec index.PriceRecord) {
	for _, o := range os {
		o.PriceInserted(p, h, rec)
	}
}

func (os Observers) PriceRemoved(p index.Key, h mutation.InnerRecordHandling, rec index.PriceRecord) {
	for _, o := range os {
		o.PriceRemoved(p, h, rec)
	}
}
