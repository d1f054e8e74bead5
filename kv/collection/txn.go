package collection

import (
	"time"

	"github.com/pingcap-incubator/tinydoc/kv/container"
	"github.com/pingcap-incubator/tinydoc/kv/index"
	"github.com/pingcap-incubator/tinydoc/kv/indexer"
	"github.com/pingcap-incubator/tinydoc/kv/metrics"
	"github.com/pingcap-incubator/tinydoc/kv/mutation"
	"github.com/pingcap-incubator/tinydoc/kv/storage/buffer"
	"github.com/pingcap-incubator/tinydoc/log"
	"github.com/pingcap/errors"
)

var (
	// ErrConflict is returned when a transaction touches an entity another writer is changing.
	ErrConflict = errors.New("entity is being written by another writer")
	// ErrNotFound is returned when a missing entity is deleted.
	ErrNotFound = errors.New("entity does not exist")
)

// IsConflict reports whether err is, or wraps, ErrConflict.
func IsConflict(err error) bool {
	return errors.Cause(err) == ErrConflict
}

type op struct {
	pk        int
	mutations []mutation.LocalMutation
	delete    bool
}

// Txn groups writes of several entities. Its changes are visible through the transaction only until
// Commit publishes the containers and replays the recorded operations on the shared index partitions.
//
// An entity touched by a transaction stays latched until the transaction ends. A failed write changes
// nothing and the transaction stays usable.
type Txn struct {
	c        *Collection
	txn      *buffer.Txn
	priceIDs *indexer.PriceIDs
	latched  map[int]struct{}
	ops      []op
	closed   bool

	// The private index view. It is rebuilt from ops whenever the registry moved on or a write failed
	// half way through it.
	layer   *index.Layer
	version uint64
	stale   bool
}

func (c *Collection) Begin() *Txn {
	return &Txn{
		c:        c,
		txn:      c.buf.Begin(),
		priceIDs: indexer.NewPriceIDs(c.seq),
		latched:  make(map[int]struct{}),
		stale:    true,
	}
}

func (t *Txn) latch(pk int) error {
	if _, ok := t.latched[pk]; ok {
		return nil
	}
	if wg := t.c.latches.AcquireLatches([]int{pk}); wg != nil {
		return errors.Annotatef(ErrConflict, "entity %d", pk)
	}
	t.latched[pk] = struct{}{}
	return nil
}

// view returns the private index view, rebuilding it when needed. The collection lock must be held.
func (t *Txn) view() (*index.Layer, error) {
	registry := t.c.registry
	if !t.stale && t.version == registry.Version() {
		return t.layer, nil
	}
	layer := registry.NewLayer()
	s := &session{
		schema:   t.c.schema,
		indexes:  layer,
		reader:   container.BufferReader(t.c.buf, nil),
		priceIDs: t.priceIDs,
	}
	if err := s.replay(t.ops); err != nil {
		return nil, errors.Annotate(err, "transaction cannot be applied any more")
	}
	t.layer, t.version, t.stale = layer, registry.Version(), false
	return layer, nil
}

// Index returns the partition as the transaction sees it, or nil.
func (t *Txn) Index(key index.Key) *index.EntityIndex {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	layer, err := t.view()
	if err != nil {
		log.Warnf("%v", err)
		return nil
	}
	return layer.Get(key)
}

// Apply changes entity pk inside the transaction.
func (t *Txn) Apply(pk int, ms []mutation.LocalMutation) error {
	if t.closed {
		return buffer.ErrTxnClosed
	}
	if err := t.latch(pk); err != nil {
		return err
	}
	if err := t.c.schema.Validate(ms); err != nil {
		return err
	}
	return t.write(op{pk: pk, mutations: ms}, func(s *session) ([]container.Part, error) {
		return s.apply(pk, ms)
	})
}

// Delete removes entity pk inside the transaction.
func (t *Txn) Delete(pk int) error {
	if t.closed {
		return buffer.ErrTxnClosed
	}
	if err := t.latch(pk); err != nil {
		return err
	}
	return t.write(op{pk: pk, delete: true}, func(s *session) ([]container.Part, error) {
		return s.delete(pk)
	})
}

func (t *Txn) write(o op, write func(s *session) ([]container.Part, error)) error {
	t.c.mu.Lock()
	layer, err := t.view()
	if err != nil {
		t.c.mu.Unlock()
		return err
	}
	s := &session{
		schema:   t.c.schema,
		indexes:  layer,
		reader:   container.BufferReader(t.c.buf, t.txn),
		priceIDs: t.priceIDs,
	}
	parts, err := write(s)
	t.c.mu.Unlock()
	if err == nil {
		err = writeParts(t.c.buf, t.txn, parts)
	}
	if err != nil {
		t.stale = true
		return err
	}
	t.ops = append(t.ops, o)
	return nil
}

// Commit replays the operations on the shared index partitions and merges the containers into the
// not-yet-flushed buffer. When the replay fails nothing is published and the transaction is rolled
// back.
func (t *Txn) Commit() error {
	if t.closed {
		return buffer.ErrTxnClosed
	}
	start := time.Now()
	c := t.c
	c.mu.Lock()
	layer := c.registry.NewLayer()
	s := &session{
		schema:   c.schema,
		indexes:  layer,
		reader:   container.BufferReader(c.buf, nil),
		priceIDs: t.priceIDs,
		observer: c.observer,
	}
	err := s.replay(t.ops)
	if err == nil {
		err = c.buf.Commit(t.txn)
	}
	if err != nil {
		layer.Discard()
		c.mu.Unlock()
		log.Warnf("commit of %d operations on %s failed: %v", len(t.ops), c.schema.Name, err)
		t.Rollback()
		return err
	}
	layer.Commit()
	c.mu.Unlock()

	for _, o := range t.ops {
		c.observer.Mutations(o.mutations)
	}
	t.finish("commit")
	metrics.TxnDuration.WithLabelValues(c.schema.Name).Observe(time.Since(start).Seconds())
	c.checkThreshold()
	return nil
}

// Rollback discards everything the transaction did.
func (t *Txn) Rollback() {
	if t.closed {
		return
	}
	t.c.buf.Rollback(t.txn)
	t.layer = nil
	t.finish("rollback")
}

func (t *Txn) finish(result string) {
	t.closed = true
	pks := make([]int, 0, len(t.latched))
	for pk := range t.latched {
		pks = append(pks, pk)
	}
	t.c.latches.ReleaseLatches(pks)
	t.latched = nil
	metrics.TxnCounter.WithLabelValues(t.c.schema.Name, result).Inc()
}
