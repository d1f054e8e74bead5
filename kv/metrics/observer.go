package metrics

import (
	"github.com/pingcap-incubator/tinydoc/kv/index"
	"github.com/pingcap-incubator/tinydoc/kv/mutation"
)

// IndexObserver feeds the index metrics of one collection. It is both an indexer observer and a
// registry listener.
type IndexObserver struct {
	collection string
}

func NewIndexObserver(collection string) *IndexObserver {
	return &IndexObserver{collection: collection}
}

func (o *IndexObserver) entry(partition index.Key, t index.IndexType, op string) {
	IndexEntryCounter.WithLabelValues(o.collection, partition.Kind.String(), t.String(), op).Inc()
}

func (o *IndexObserver) AttributeInserted(p index.Key, t index.IndexType, _ index.AttributeIndexKey, _ interface{}) {
	o.entry(p, t, "insert")
}

func (o *IndexObserver) AttributeRemoved(p index.Key, t index.IndexType, _ index.AttributeIndexKey, _ interface{}) {
	o.entry(p, t, "remove")
}

func (o *IndexObserver) PriceInserted(p index.Key, _ mutation.InnerRecordHandling, _ index.PriceRecord) {
	o.entry(p, index.Price, "insert")
}

func (o *IndexObserver) PriceRemoved(p index.Key, _ mutation.InnerRecordHandling, _ index.PriceRecord) {
	o.entry(p, index.Price, "remove")
}

func (o *IndexObserver) PartitionCreated(key index.Key) {
	PartitionGauge.WithLabelValues(o.collection, key.Kind.String()).Inc()
}

func (o *IndexObserver) PartitionRemoved(key index.Key) {
	PartitionGauge.WithLabelValues(o.collection, key.Kind.String()).Dec()
}

// Mutations counts a mutation stream by kind.
func (o *IndexObserver) Mutations(ms []mutation.LocalMutation) {
	for _, m := range ms {
		MutationCounter.WithLabelValues(o.collection, m.Kind().String()).Inc()
	}
}
