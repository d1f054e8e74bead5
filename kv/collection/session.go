package collection

import (
	"github.com/pingcap-incubator/tinydoc/kv/container"
	"github.com/pingcap-incubator/tinydoc/kv/index"
	"github.com/pingcap-incubator/tinydoc/kv/indexer"
	"github.com/pingcap-incubator/tinydoc/kv/mutation"
	"github.com/pingcap-incubator/tinydoc/kv/schema"
	"github.com/pingcap-incubator/tinydoc/kv/storage/buffer"
	"github.com/pingcap/errors"
)

// emptyReader reads a store without any part, entities read through it do not exist yet.
type emptyReader struct{}

func (emptyReader) Fetch(string, []byte) ([]byte, error) {
	return nil, nil
}

// session runs the index executor and the container executor of the entities it is asked to change
// against one index view and one part reader.
type session struct {
	schema   *schema.EntitySchema
	indexes  index.Indexes
	reader   container.PartReader
	priceIDs *indexer.PriceIDs
	observer indexer.Observer
}

type entityWriter struct {
	indexes    *indexer.Executor
	containers *container.Executor
}

func (s *session) writer(pk int, reader container.PartReader) entityWriter {
	accessor := container.NewCachedAccessor(pk, reader)
	return entityWriter{
		indexes:    indexer.NewExecutor(pk, s.schema, s.indexes, accessor, s.priceIDs, s.observer),
		containers: container.NewExecutor(accessor, s.priceIDs),
	}
}

// apply runs every mutation through the index executor first and the container executor second.
func (w entityWriter) apply(ms []mutation.LocalMutation) error {
	for _, m := range ms {
		if err := w.indexes.ApplyMutation(m); err != nil {
			return errors.Annotatef(err, "index %s", m.Kind())
		}
		if err := w.containers.Apply(m); err != nil {
			return errors.Annotatef(err, "apply %s", m.Kind())
		}
	}
	return nil
}

// delete tears the entity down and returns every part it had stored.
func (w entityWriter) delete(pk int) ([]container.Part, error) {
	accessor := w.containers.Accessor()
	parts, err := accessor.AllParts()
	if err != nil {
		return nil, err
	}
	ms, err := container.RemovalMutations(accessor, pk)
	if err != nil {
		return nil, err
	}
	if err := w.apply(ms); err != nil {
		return nil, err
	}
	if err := w.indexes.RemoveEntity(); err != nil {
		return nil, err
	}
	return parts, nil
}

func (s *session) apply(pk int, ms []mutation.LocalMutation) ([]container.Part, error) {
	w := s.writer(pk, s.reader)
	if err := w.apply(ms); err != nil {
		return nil, err
	}
	return w.containers.ChangedParts()
}

// delete removes the entity and returns its stored parts marked for removal.
func (s *session) delete(pk int) ([]container.Part, error) {
	w := s.writer(pk, s.reader)
	body, err := w.containers.Accessor().Body(pk)
	if err != nil {
		return nil, err
	}
	if !body.Stored() {
		return nil, errors.Annotatef(ErrNotFound, "entity %d", pk)
	}
	parts, err := w.delete(pk)
	if err != nil {
		return nil, err
	}
	removed := make([]container.Part, 0, len(parts))
	for _, p := range parts {
		removed = append(removed, removedPart{p})
	}
	return removed, nil
}

// replay applies the recorded operations of a transaction in their order. The entity containers
// accumulate between the operations of an entity the way they did inside the transaction.
func (s *session) replay(ops []op) error {
	writers := make(map[int]entityWriter)
	for _, o := range ops {
		w, ok := writers[o.pk]
		if !ok {
			w = s.writer(o.pk, s.reader)
			writers[o.pk] = w
		}
		if o.delete {
			if _, err := w.delete(o.pk); err != nil {
				return err
			}
			writers[o.pk] = s.writer(o.pk, emptyReader{})
			continue
		}
		if err := w.apply(o.mutations); err != nil {
			return err
		}
	}
	return nil
}

// removedPart is a stored part which has to disappear from the store.
type removedPart struct {
	container.Part
}

func (removedPart) Empty() bool {
	return true
}

// writeParts stores the parts in the buffer, empty parts are removed. Every part is encoded before
// the buffer is touched.
func writeParts(buf *buffer.Buffer, txn *buffer.Txn, parts []container.Part) error {
	values := make([][]byte, len(parts))
	for i, p := range parts {
		if p.Empty() {
			continue
		}
		data, err := container.Marshal(p)
		if err != nil {
			return err
		}
		values[i] = data
	}
	for i, p := range parts {
		var err error
		if values[i] == nil {
			err = buf.Remove(txn, p.CF(), p.Key())
		} else {
			err = buf.Update(txn, p.CF(), p.Key(), values[i])
		}
		if err != nil {
			return err
		}
	}
	return nil
}
