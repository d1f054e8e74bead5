package standalone_storage

import (
	"github.com/Connor1996/badger"
	"github.com/pingcap-incubator/tinydoc/kv/config"
	"github.com/pingcap-incubator/tinydoc/kv/storage"
	"github.com/pingcap-incubator/tinydoc/kv/util/engine_util"
	"github.com/pingcap-incubator/tinydoc/log"
	"github.com/pingcap/errors"
)

// StandAloneStorage is an implementation of `Storage` for a single process. All data is stored locally
// in one badger database, record container kinds are separated by column family prefixes.
type StandAloneStorage struct {
	conf *config.Config
	db   *badger.DB
}

func NewStandAloneStorage(conf *config.Config) *StandAloneStorage {
	return &StandAloneStorage{conf: conf}
}

func (s *StandAloneStorage) Start() error {
	db, err := engine_util.CreateDB(s.conf.DBPath, &s.conf.Engine)
	if err != nil {
		return err
	}
	s.db = db
	log.Infof("standalone storage opened at %s", s.conf.DBPath)
	return nil
}

func (s *StandAloneStorage) Stop() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return errors.WithStack(err)
}

func (s *StandAloneStorage) Reader() (storage.StorageReader, error) {
	if s.db == nil {
		return nil, errors.New("standalone storage is not started")
	}
	return &badgerReader{txn: s.db.NewTransaction(false)}, nil
}

func (s *StandAloneStorage) Write(batch []storage.Modify) error {
	if s.db == nil {
		return errors.New("standalone storage is not started")
	}
	wb := new(engine_util.WriteBatch)
	for _, m := range batch {
		switch data := m.Data.(type) {
		case storage.Put:
			wb.SetCF(data.Cf, data.Key, data.Value)
		case storage.Delete:
			wb.DeleteCF(data.Cf, data.Key)
		}
	}
	if err := wb.WriteToDB(s.db); err != nil {
		return err
	}
	log.Debugf("standalone storage wrote %d entries (%d deletes, %d bytes)", wb.Len(), wb.Deletes(), wb.Size())
	return nil
}

// badgerReader reads from a read-only badger transaction, i.e. a consistent snapshot.
type badgerReader struct {
	txn *badger.Txn
}

func (r *badgerReader) GetCF(cf string, key []byte) ([]byte, error) {
	val, err := engine_util.GetCFFromTxn(r.txn, cf, key)
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	return val, errors.WithStack(err)
}

func (r *badgerReader) IterCF(cf string) engine_util.DBIterator {
	return engine_util.NewCFIterator(cf, r.txn)
}

func (r *badgerReader) Close() {
	r.txn.Discard()
}
