package collection

import (
	"sync"

	"github.com/pingcap-incubator/tinydoc/kv/config"
	"github.com/pingcap-incubator/tinydoc/kv/container"
	"github.com/pingcap-incubator/tinydoc/kv/index"
	"github.com/pingcap-incubator/tinydoc/kv/indexer"
	"github.com/pingcap-incubator/tinydoc/kv/metrics"
	"github.com/pingcap-incubator/tinydoc/kv/mutation"
	"github.com/pingcap-incubator/tinydoc/kv/schema"
	"github.com/pingcap-incubator/tinydoc/kv/storage"
	"github.com/pingcap-incubator/tinydoc/kv/storage/buffer"
	"github.com/pingcap-incubator/tinydoc/kv/transaction/latches"
	"github.com/pingcap-incubator/tinydoc/kv/util/engine_util"
	"github.com/pingcap-incubator/tinydoc/kv/util/worker"
	"github.com/pingcap-incubator/tinydoc/log"
	"github.com/pingcap/errors"
)

// Collection is one entity collection: the record containers in the storage buffer and the index
// partitions kept consistent with them.
//
// Writers of the same entity are serialized by latches. Changes to the shared index partitions are
// serialized by mu and always prepared on a layer first, so a failed write leaves them untouched.
type Collection struct {
	conf     *config.Config
	schema   *schema.EntitySchema
	store    storage.Storage
	buf      *buffer.Buffer
	seq      *indexer.Sequence
	latches  *latches.Latches
	observer *metrics.IndexObserver

	mu       sync.RWMutex
	registry *index.Registry

	flushMu sync.Mutex
	flusher *worker.Worker
	wg      sync.WaitGroup
}

// Open opens the collection described by s on a started storage and rebuilds its index partitions
// from the stored records.
func Open(conf *config.Config, s *schema.EntitySchema, store storage.Storage) (*Collection, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	c := &Collection{
		conf:     conf,
		schema:   s,
		store:    store,
		buf:      buffer.NewBuffer(store),
		seq:      indexer.NewSequence(0),
		latches:  latches.NewLatches(),
		observer: metrics.NewIndexObserver(s.Name),
		registry: index.NewRegistry(),
	}
	c.registry.SetListener(c.observer)
	n, err := c.rebuild()
	if err != nil {
		return nil, errors.Annotatef(err, "rebuild indexes of %s", s.Name)
	}
	log.Infof("collection %s opened with %d entities and %d index partitions", s.Name, n, c.registry.Len())
	return c, nil
}

// rebuild replays the insertion stream of every stored entity against empty partitions.
func (c *Collection) rebuild() (int, error) {
	reader, err := c.store.Reader()
	if err != nil {
		return 0, err
	}
	var pks []int
	it := reader.IterCF(engine_util.CfBody)
	for it.Seek(nil); it.Valid(); it.Next() {
		pk, err := container.DecodePrimaryKey(it.Item().Key())
		if err != nil {
			it.Close()
			reader.Close()
			return 0, err
		}
		pks = append(pks, pk)
	}
	it.Close()
	reader.Close()

	stored := container.BufferReader(c.buf, nil)
	for _, pk := range pks {
		accessor := container.NewCachedAccessor(pk, stored)
		ms, err := container.InsertionMutations(accessor, pk)
		if err != nil {
			return 0, err
		}
		if err := c.schema.Validate(ms); err != nil {
			return 0, errors.Annotatef(err, "entity %d", pk)
		}
		prices, err := accessor.Prices(pk)
		if err != nil {
			return 0, err
		}
		priceIDs := indexer.NewPriceIDs(c.seq)
		for _, p := range prices.Live() {
			if p.InternalID != 0 {
				priceIDs.Seed(pk, p.Key, p.InternalID)
			}
		}
		s := &session{schema: c.schema, indexes: c.registry, priceIDs: priceIDs}
		if err := s.writer(pk, emptyReader{}).apply(ms); err != nil {
			return 0, errors.Annotatef(err, "entity %d", pk)
		}
	}
	return len(pks), nil
}

func (c *Collection) Schema() *schema.EntitySchema {
	return c.schema
}

// Apply validates the mutations of entity pk, updates the index partitions and puts the changed
// containers into the not-yet-flushed buffer. Nothing changes when an error is returned.
func (c *Collection) Apply(pk int, ms []mutation.LocalMutation) error {
	if err := c.schema.Validate(ms); err != nil {
		return err
	}
	return c.autoCommit(pk, func(s *session) ([]container.Part, error) {
		return s.apply(pk, ms)
	}, ms)
}

// Delete removes entity pk with all its values.
func (c *Collection) Delete(pk int) error {
	return c.autoCommit(pk, func(s *session) ([]container.Part, error) {
		return s.delete(pk)
	}, nil)
}

func (c *Collection) autoCommit(pk int, write func(s *session) ([]container.Part, error), ms []mutation.LocalMutation) error {
	c.latches.WaitForLatches([]int{pk})
	defer c.latches.ReleaseLatches([]int{pk})

	c.mu.Lock()
	layer := c.registry.NewLayer()
	s := &session{
		schema:   c.schema,
		indexes:  layer,
		reader:   container.BufferReader(c.buf, nil),
		priceIDs: indexer.NewPriceIDs(c.seq),
		observer: c.observer,
	}
	parts, err := write(s)
	if err == nil {
		err = writeParts(c.buf, nil, parts)
	}
	if err != nil {
		layer.Discard()
		c.mu.Unlock()
		return err
	}
	layer.Commit()
	c.mu.Unlock()

	c.observer.Mutations(ms)
	c.checkThreshold()
	return nil
}

// Index returns a copy of the partition, or nil when it does not exist.
func (c *Collection) Index(key index.Key) *index.EntityIndex {
	// cloning marks the trees of the original copy-on-write
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := c.registry.Get(key)
	if idx == nil {
		return nil
	}
	return idx.Clone()
}

// Keys returns the keys of all index partitions, Global first.
func (c *Collection) Keys() []index.Key {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.registry.Keys()
}

func (c *Collection) Stats(key index.Key) (index.Stats, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx := c.registry.Get(key)
	if idx == nil {
		return index.Stats{}, false
	}
	return idx.Stats(), true
}

// Pending returns the number of parts waiting for the next flush.
func (c *Collection) Pending() int {
	return c.buf.Pending()
}

// Flush writes the not-yet-flushed buffer to durable storage.
func (c *Collection) Flush() error {
	n, err := c.buf.Flush()
	if err != nil {
		metrics.FlushCounter.WithLabelValues(c.schema.Name, "error").Inc()
		return err
	}
	if n > 0 {
		metrics.FlushCounter.WithLabelValues(c.schema.Name, "ok").Inc()
		metrics.FlushedParts.WithLabelValues(c.schema.Name).Add(float64(n))
		log.Debugf("collection %s flushed %d parts", c.schema.Name, n)
	}
	return nil
}
