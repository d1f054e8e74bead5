package buffer

import (
	"sort"
	"sync"

	"github.com/pingcap-incubator/tinydoc/kv/storage"
	"github.com/pingcap-incubator/tinydoc/kv/util/engine_util"
	"github.com/pingcap-incubator/tinydoc/log"
	"github.com/pingcap/errors"
)

// ErrTxnClosed is returned when a committed or rolled back transaction is used again.
var ErrTxnClosed = errors.New("transaction is already closed")

type entry struct {
	cf      string
	key     []byte
	value   []byte
	removed bool
}

// Txn is the private layer of one transaction. Writes made through it are visible only to reads made
// through the same handle until Commit. A Txn must not be used from several goroutines at once.
type Txn struct {
	id     uint64
	writes map[string]*entry
	closed bool
}

func (txn *Txn) ID() uint64 {
	return txn.id
}

// Len returns the number of keys written in this transaction.
func (txn *Txn) Len() int {
	return len(txn.writes)
}

// Buffer is a transactional overlay over durable storage. Reads consult the transaction layer, then
// the not-yet-flushed buffer, then the parts of a flush in progress, then the durable store. Writes
// without a transaction go to the not-yet-flushed buffer which is persisted only when it is exchanged.
type Buffer struct {
	store storage.Storage

	// flushMu serializes flushes so at most one flushing layer exists.
	flushMu sync.Mutex

	mu      sync.RWMutex
	pending map[string]*entry
	// flushing is read only, it holds the parts handed to store.Write until the write returns.
	flushing map[string]*entry
	nextTxn  uint64
}

func NewBuffer(store storage.Storage) *Buffer {
	return &Buffer{
		store:   store,
		pending: make(map[string]*entry),
	}
}

func (b *Buffer) Begin() *Txn {
	b.mu.Lock()
	b.nextTxn++
	id := b.nextTxn
	b.mu.Unlock()
	return &Txn{id: id, writes: make(map[string]*entry)}
}

// Fetch returns the current value of key as seen by txn, which may be nil. A nil result without error
// means the key does not exist, including keys which were never flushed.
func (b *Buffer) Fetch(txn *Txn, cf string, key []byte) ([]byte, error) {
	k := bufferKey(cf, key)
	if txn != nil {
		if txn.closed {
			return nil, ErrTxnClosed
		}
		if e, ok := txn.writes[k]; ok {
			return e.get(), nil
		}
	}
	b.mu.RLock()
	e, ok := b.pending[k]
	if !ok {
		e, ok = b.flushing[k]
	}
	b.mu.RUnlock()
	if ok {
		return e.get(), nil
	}
	return b.fetchDurable(cf, key)
}

func (b *Buffer) fetchDurable(cf string, key []byte) ([]byte, error) {
	reader, err := b.store.Reader()
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return reader.GetCF(cf, key)
}

func (b *Buffer) Update(txn *Txn, cf string, key, value []byte) error {
	if len(value) == 0 {
		return errors.Errorf("empty value for key %q in %s", key, cf)
	}
	e := &entry{cf: cf, key: key, value: value}
	if txn != nil {
		if txn.closed {
			return ErrTxnClosed
		}
		txn.writes[e.mapKey()] = e
		return nil
	}
	b.mu.Lock()
	b.pending[e.mapKey()] = e
	b.mu.Unlock()
	return nil
}

// Remove records a tombstone for key. Inside a transaction the tombstone masks whatever the lower
// layers hold. Outside of one, a key which has never reached durable storage is simply dropped from
// the buffer.
func (b *Buffer) Remove(txn *Txn, cf string, key []byte) error {
	e := &entry{cf: cf, key: key, removed: true}
	if txn != nil {
		if txn.closed {
			return ErrTxnClosed
		}
		txn.writes[e.mapKey()] = e
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.removePendingLocked(e)
}

func (b *Buffer) removePendingLocked(e *entry) error {
	// a flushing part may reach durable storage at any moment
	if _, ok := b.flushing[e.mapKey()]; ok {
		b.pending[e.mapKey()] = e
		return nil
	}
	durable, err := b.fetchDurable(e.cf, e.key)
	if err != nil {
		return err
	}
	if durable == nil {
		delete(b.pending, e.mapKey())
		return nil
	}
	b.pending[e.mapKey()] = e
	return nil
}

// Commit merges the transaction layer into the not-yet-flushed buffer.
func (b *Buffer) Commit(txn *Txn) error {
	if txn.closed {
		return ErrTxnClosed
	}
	txn.closed = true
	b.mu.Lock()
	defer b.mu.Unlock()
	for k, e := range txn.writes {
		if e.removed {
			if err := b.removePendingLocked(e); err != nil {
				return err
			}
			continue
		}
		b.pending[k] = e
	}
	log.Debugf("txn %d committed %d parts into the buffer", txn.id, len(txn.writes))
	txn.writes = nil
	return nil
}

// Rollback discards the transaction layer without touching the buffer or durable storage.
func (b *Buffer) Rollback(txn *Txn) {
	txn.closed = true
	txn.writes = nil
}

// Pending returns the number of parts waiting in the not-yet-flushed buffer.
func (b *Buffer) Pending() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.pending)
}

// ExchangeBuffer atomically swaps the not-yet-flushed buffer for an empty one and returns its content,
// ordered by column family and key, for the caller to persist. Reads no longer see the returned parts
// until the caller has written them, use Flush when writers are running.
func (b *Buffer) ExchangeBuffer() []storage.Modify {
	b.mu.Lock()
	old := b.pending
	b.pending = make(map[string]*entry)
	b.mu.Unlock()
	return toModifies(old)
}

// Flush exchanges the buffer and writes its content to durable storage. When the write fails the
// exchanged parts are put back unless they were overwritten in the meantime.
func (b *Buffer) Flush() (int, error) {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()
	b.mu.Lock()
	old := b.pending
	if len(old) == 0 {
		b.mu.Unlock()
		return 0, nil
	}
	b.pending = make(map[string]*entry)
	b.flushing = old
	b.mu.Unlock()

	err := b.store.Write(toModifies(old))
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushing = nil
	if err != nil {
		for k, e := range old {
			if _, ok := b.pending[k]; !ok {
				b.pending[k] = e
			}
		}
		return 0, errors.Annotate(err, "flush storage buffer")
	}
	return len(old), nil
}

func toModifies(entries map[string]*entry) []storage.Modify {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	mods := make([]storage.Modify, 0, len(keys))
	for _, k := range keys {
		e := entries[k]
		if e.removed {
			mods = append(mods, storage.Modify{Data: storage.Delete{Key: e.key, Cf: e.cf}})
		} else {
			mods = append(mods, storage.Modify{Data: storage.Put{Key: e.key, Value: e.value, Cf: e.cf}})
		}
	}
	return mods
}

func (e *entry) get() []byte {
	if e.removed {
		return nil
	}
	return e.value
}

func (e *entry) mapKey() string {
	return bufferKey(e.cf, e.key)
}

func bufferKey(cf string, key []byte) string {
	return string(engine_util.KeyWithCF(cf, key))
}
