package engine_util

import (
	"os"

	"github.com/Connor1996/badger"
	"github.com/pingcap-incubator/tinydoc/kv/config"
	"github.com/pingcap/errors"
)

// KeyWithCF prefixes key with its column family, badger has no native column families.
func KeyWithCF(cf string, key []byte) []byte {
	return append([]byte(cf+"_"), key...)
}

func GetCF(db *badger.DB, cf string, key []byte) (val []byte, err error) {
	err = db.View(func(txn *badger.Txn) error {
		val, err = GetCFFromTxn(txn, cf, key)
		return err
	})
	return
}

func GetCFFromTxn(txn *badger.Txn, cf string, key []byte) (val []byte, err error) {
	item, err := txn.Get(KeyWithCF(cf, key))
	if err != nil {
		return nil, err
	}
	val, err = item.ValueCopy(val)
	return
}

// CreateDB opens (creating when missing) the badger database at path.
func CreateDB(path string, conf *config.Engine) (*badger.DB, error) {
	opts := badger.DefaultOptions
	opts.Dir = path
	opts.ValueDir = path
	if conf.NumCompactors > 0 {
		opts.NumCompactors = conf.NumCompactors
	}
	if conf.ValueThreshold > 0 {
		opts.ValueThreshold = conf.ValueThreshold
	}
	if conf.NumMemTables > 0 {
		opts.NumMemtables = conf.NumMemTables
	}
	if conf.MaxTableSize > 0 {
		opts.MaxTableSize = int64(conf.MaxTableSize)
	}
	if conf.ValueLogFileSize > 0 {
		opts.ValueLogFileSize = int64(conf.ValueLogFileSize)
	}
	opts.SyncWrites = conf.SyncWrites
	if err := os.MkdirAll(path, os.ModePerm); err != nil {
		return nil, errors.WithStack(err)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Annotatef(err, "open badger at %s", path)
	}
	return db, nil
}
