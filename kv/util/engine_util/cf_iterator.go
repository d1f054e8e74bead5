package engine_util

import (
	"github.com/Connor1996/badger"
)

// DBIterator walks the containers of one column family in key order.
type DBIterator interface {
	Item() DBItem
	Valid() bool
	Next()
	// Seek positions the iterator at key, or at the first key after it when key is absent.
	Seek([]byte)
	Close()
}

// DBItem is one stored container. Key has no column family prefix and, like Value, is only valid
// until the iterator moves.
type DBItem interface {
	Key() []byte
	Value() ([]byte, error)
}

type cfItem struct {
	item      *badger.Item
	prefixLen int
}

func (i cfItem) Key() []byte {
	return i.item.Key()[i.prefixLen:]
}

func (i cfItem) Value() ([]byte, error) {
	return i.item.Value()
}

// CFIterator iterates one column family of a badger transaction. Keys of all families share one
// keyspace, so the iterator stops as soon as it leaves its prefix.
type CFIterator struct {
	iter   *badger.Iterator
	prefix []byte
}

func NewCFIterator(cf string, txn *badger.Txn) *CFIterator {
	return &CFIterator{
		iter:   txn.NewIterator(badger.DefaultIteratorOptions),
		prefix: KeyWithCF(cf, nil),
	}
}

func (it *CFIterator) Item() DBItem {
	return cfItem{item: it.iter.Item(), prefixLen: len(it.prefix)}
}

func (it *CFIterator) Valid() bool {
	return it.iter.ValidForPrefix(it.prefix)
}

func (it *CFIterator) Next() {
	it.iter.Next()
}

func (it *CFIterator) Seek(key []byte) {
	it.iter.Seek(append(append(make([]byte, 0, len(it.prefix)+len(key)), it.prefix...), key...))
}

func (it *CFIterator) Close() {
	it.iter.Close()
}
