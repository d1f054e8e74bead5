package storage

import (
	"github.com/pingcap-incubator/tinydoc/kv/util/engine_util"
)

// Storage is the durable counterpart of the storage container buffer. It is append-only from the point
// of view of tinydoc: batches produced by the buffer are written as a whole.
type Storage interface {
	Start() error
	Stop() error
	Write(batch []Modify) error
	Reader() (StorageReader, error)
}

type StorageReader interface {
	// GetCF returns nil without an error when the key does not exist.
	GetCF(cf string, key []byte) ([]byte, error)
	IterCF(cf string) engine_util.DBIterator
	Close()
}
