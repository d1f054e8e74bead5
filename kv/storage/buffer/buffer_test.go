package buffer

import (
	"testing"

	"github.com/pingcap-incubator/tinydoc/kv/storage"
	"github.com/pingcap-incubator/tinydoc/kv/util/engine_util"
	"github.com/pingcap/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cf = engine_util.CfBody

func newTestBuffer(t *testing.T, durable map[string]string) (*Buffer, *storage.MemStorage) {
	mem := storage.NewMemStorage()
	var batch []storage.Modify
	for k, v := range durable {
		batch = append(batch, storage.Modify{Data: storage.Put{Key: []byte(k), Value: []byte(v), Cf: cf}})
	}
	require.Nil(t, mem.Write(batch))
	return NewBuffer(mem), mem
}

func fetch(t *testing.T, b *Buffer, txn *Txn, key string) []byte {
	val, err := b.Fetch(txn, cf, []byte(key))
	require.Nil(t, err)
	return val
}

func TestTxnLayerIsPrivate(t *testing.T) {
	b, _ := newTestBuffer(t, map[string]string{"x": "old"})
	txn := b.Begin()
	other := b.Begin()

	require.Nil(t, b.Update(txn, cf, []byte("x"), []byte("new")))
	assert.Equal(t, []byte("new"), fetch(t, b, txn, "x"))
	assert.Equal(t, []byte("old"), fetch(t, b, other, "x"))
	assert.Equal(t, []byte("old"), fetch(t, b, nil, "x"))

	require.Nil(t, b.Commit(txn))
	assert.Equal(t, []byte("new"), fetch(t, b, other, "x"))
	assert.Equal(t, []byte("new"), fetch(t, b, nil, "x"))
}

func TestTombstoneMasksDurableValue(t *testing.T) {
	b, mem := newTestBuffer(t, map[string]string{"x": "old"})
	txn := b.Begin()
	require.Nil(t, b.Remove(txn, cf, []byte("x")))
	assert.Nil(t, fetch(t, b, txn, "x"))
	assert.Equal(t, []byte("old"), fetch(t, b, nil, "x"))

	require.Nil(t, b.Commit(txn))
	assert.Nil(t, fetch(t, b, nil, "x"))
	// still physically present until the buffer is flushed
	assert.Equal(t, 1, mem.Len(cf))

	n, err := b.Flush()
	require.Nil(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, mem.Len(cf))
}

func TestRemoveWithoutDurableCounterpart(t *testing.T) {
	b, _ := newTestBuffer(t, nil)
	require.Nil(t, b.Update(nil, cf, []byte("fresh"), []byte("v")))
	assert.Equal(t, 1, b.Pending())
	require.Nil(t, b.Remove(nil, cf, []byte("fresh")))
	assert.Equal(t, 0, b.Pending())
	assert.Nil(t, fetch(t, b, nil, "fresh"))

	// removing something which never existed is a no-op
	require.Nil(t, b.Remove(nil, cf, []byte("ghost")))
	assert.Equal(t, 0, b.Pending())

	txn := b.Begin()
	require.Nil(t, b.Update(txn, cf, []byte("fresh"), []byte("v")))
	require.Nil(t, b.Remove(txn, cf, []byte("fresh")))
	require.Nil(t, b.Commit(txn))
	assert.Equal(t, 0, b.Pending())
}

func TestRollbackDiscardsLayer(t *testing.T) {
	b, mem := newTestBuffer(t, map[string]string{"x": "old"})
	txn := b.Begin()
	require.Nil(t, b.Update(txn, cf, []byte("x"), []byte("new")))
	require.Nil(t, b.Update(txn, cf, []byte("y"), []byte("y")))
	b.Rollback(txn)

	assert.Equal(t, []byte("old"), fetch(t, b, nil, "x"))
	assert.Nil(t, fetch(t, b, nil, "y"))
	assert.Equal(t, 0, b.Pending())
	assert.Equal(t, 1, mem.Writes)

	_, err := b.Fetch(txn, cf, []byte("x"))
	assert.Equal(t, ErrTxnClosed, err)
	assert.Equal(t, ErrTxnClosed, b.Commit(txn))
}

func TestExchangeBuffer(t *testing.T) {
	b, mem := newTestBuffer(t, map[string]string{"gone": "v"})
	require.Nil(t, b.Update(nil, cf, []byte("b"), []byte("2")))
	require.Nil(t, b.Update(nil, cf, []byte("a"), []byte("1")))
	require.Nil(t, b.Remove(nil, cf, []byte("gone")))

	mods := b.ExchangeBuffer()
	require.Len(t, mods, 3)
	assert.Equal(t, []byte("a"), mods[0].Key())
	assert.Equal(t, []byte("b"), mods[1].Key())
	assert.Equal(t, storage.Delete{Key: []byte("gone"), Cf: cf}, mods[2].Data)
	assert.Equal(t, 0, b.Pending())

	// exchanged parts are the caller's responsibility now
	assert.Nil(t, fetch(t, b, nil, "a"))
	require.Nil(t, mem.Write(mods))
	assert.Equal(t, []byte("1"), fetch(t, b, nil, "a"))
	assert.Nil(t, fetch(t, b, nil, "gone"))
}

func TestUpdateRejectsEmptyValue(t *testing.T) {
	b, _ := newTestBuffer(t, nil)
	assert.Error(t, b.Update(nil, cf, []byte("a"), nil))
}

// blockingStorage holds every write until release is closed.
type blockingStorage struct {
	*storage.MemStorage
	entered chan struct{}
	release chan struct{}
	err     error
}

func (s *blockingStorage) Write(batch []storage.Modify) error {
	s.entered <- struct{}{}
	<-s.release
	if s.err != nil {
		return s.err
	}
	return s.MemStorage.Write(batch)
}

func startBlockedFlush(t *testing.T, b *Buffer, s *blockingStorage) chan error {
	done := make(chan error, 1)
	go func() {
		_, err := b.Flush()
		done <- err
	}()
	<-s.entered
	return done
}

func TestReadsAndRemovesDuringFlush(t *testing.T) {
	_, mem := newTestBuffer(t, map[string]string{"x": "old"})
	s := &blockingStorage{MemStorage: mem, entered: make(chan struct{}, 1), release: make(chan struct{})}
	b := NewBuffer(s)
	require.Nil(t, b.Update(nil, cf, []byte("x"), []byte("new")))
	require.Nil(t, b.Update(nil, cf, []byte("y"), []byte("fresh")))

	done := startBlockedFlush(t, b, s)
	assert.Equal(t, 0, b.Pending())
	assert.Equal(t, []byte("new"), fetch(t, b, nil, "x"))
	assert.Equal(t, []byte("fresh"), fetch(t, b, nil, "y"))

	require.Nil(t, b.Remove(nil, cf, []byte("y")))
	txn := b.Begin()
	require.Nil(t, b.Remove(txn, cf, []byte("x")))
	require.Nil(t, b.Commit(txn))
	require.Nil(t, b.Update(nil, cf, []byte("z"), []byte("z")))
	assert.Nil(t, fetch(t, b, nil, "x"))
	assert.Nil(t, fetch(t, b, nil, "y"))

	close(s.release)
	require.Nil(t, <-done)
	assert.Nil(t, fetch(t, b, nil, "x"))
	assert.Nil(t, fetch(t, b, nil, "y"))
	assert.Equal(t, 3, b.Pending())

	s.entered = make(chan struct{}, 1)
	n, err := b.Flush()
	require.Nil(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 1, s.Len(cf))
	assert.Equal(t, []byte("z"), fetch(t, b, nil, "z"))
}

func TestFailedFlushKeepsParts(t *testing.T) {
	mem := storage.NewMemStorage()
	s := &blockingStorage{MemStorage: mem, entered: make(chan struct{}, 1), release: make(chan struct{}), err: errors.New("disk full")}
	b := NewBuffer(s)
	require.Nil(t, b.Update(nil, cf, []byte("a"), []byte("1")))
	require.Nil(t, b.Update(nil, cf, []byte("b"), []byte("1")))

	done := startBlockedFlush(t, b, s)
	require.Nil(t, b.Update(nil, cf, []byte("b"), []byte("2")))
	close(s.release)
	assert.Error(t, <-done)

	assert.Equal(t, 2, b.Pending())
	assert.Equal(t, []byte("1"), fetch(t, b, nil, "a"))
	assert.Equal(t, []byte("2"), fetch(t, b, nil, "b"))
	assert.Equal(t, 0, mem.Len(cf))
}
