package engine_util

import (
	"github.com/Connor1996/badger"
	"github.com/pingcap/errors"
)

// Column families, one per record container kind.
const (
	CfBody           string = "body"
	CfAttribute      string = "attribute"
	CfAssociatedData string = "associated_data"
	CfPrice          string = "price"
	CfReference      string = "reference"
)

var CFs = [5]string{CfBody, CfAttribute, CfAssociatedData, CfPrice, CfReference}

type batchEntry struct {
	key    []byte
	value  []byte
	delete bool
}

// WriteBatch collects container puts and removals of one flush and writes them in a single badger
// transaction.
type WriteBatch struct {
	entries []batchEntry
	size    int
	deletes int
}

func (wb *WriteBatch) Len() int {
	return len(wb.entries)
}

// Size is the sum of key and value lengths added so far.
func (wb *WriteBatch) Size() int {
	return wb.size
}

// Deletes is the number of removals in the batch.
func (wb *WriteBatch) Deletes() int {
	return wb.deletes
}

func (wb *WriteBatch) SetCF(cf string, key, val []byte) {
	wb.entries = append(wb.entries, batchEntry{key: KeyWithCF(cf, key), value: val})
	wb.size += len(key) + len(val)
}

func (wb *WriteBatch) DeleteCF(cf string, key []byte) {
	wb.entries = append(wb.entries, batchEntry{key: KeyWithCF(cf, key), delete: true})
	wb.size += len(key)
	wb.deletes++
}

// WriteToDB writes all entries in one badger transaction, later entries win over earlier ones for
// the same key.
func (wb *WriteBatch) WriteToDB(db *badger.DB) error {
	if len(wb.entries) == 0 {
		return nil
	}
	err := db.Update(func(txn *badger.Txn) error {
		for _, e := range wb.entries {
			var err error
			if e.delete {
				err = txn.Delete(e.key)
			} else {
				err = txn.Set(e.key, e.value)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	return errors.WithStack(err)
}

func (wb *WriteBatch) Reset() {
	wb.entries = wb.entries[:0]
	wb.size = 0
	wb.deletes = 0
}
