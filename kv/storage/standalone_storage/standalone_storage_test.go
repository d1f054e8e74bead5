package standalone_storage

import (
	"io/ioutil"
	"os"
	"testing"

	"github.com/pingcap-incubator/tinydoc/kv/config"
	"github.com/pingcap-incubator/tinydoc/kv/storage"
	"github.com/pingcap-incubator/tinydoc/kv/util/engine_util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) (*StandAloneStorage, func()) {
	dir, err := ioutil.TempDir("", "standalone")
	require.Nil(t, err)
	conf := config.NewTestConfig()
	conf.DBPath = dir
	s := NewStandAloneStorage(conf)
	require.Nil(t, s.Start())
	return s, func() {
		s.Stop()
		os.RemoveAll(dir)
	}
}

func TestReader(t *testing.T) {
	s, cleanUp := newTestStorage(t)
	defer cleanUp()

	cf := engine_util.CfBody
	require.Nil(t, s.Write([]storage.Modify{
		{Data: storage.Put{Key: []byte("a"), Value: []byte("x"), Cf: cf}},
	}))

	r, err := s.Reader()
	require.Nil(t, err)
	defer r.Close()
	ret, err := r.GetCF(cf, []byte("a"))
	require.Nil(t, err)
	assert.Equal(t, []byte("x"), ret)

	// a missing key is not an error
	ret, err = r.GetCF(cf, []byte("b"))
	assert.Nil(t, err)
	assert.Nil(t, ret)
}

func TestDelete(t *testing.T) {
	s, cleanUp := newTestStorage(t)
	defer cleanUp()

	cf := engine_util.CfPrice
	require.Nil(t, s.Write([]storage.Modify{
		{Data: storage.Put{Key: []byte("a"), Value: []byte("x"), Cf: cf}},
	}))
	require.Nil(t, s.Write([]storage.Modify{
		{Data: storage.Delete{Key: []byte("a"), Cf: cf}},
	}))

	r, err := s.Reader()
	require.Nil(t, err)
	defer r.Close()
	ret, err := r.GetCF(cf, []byte("a"))
	assert.Nil(t, err)
	assert.Nil(t, ret)
}

func TestIterCF(t *testing.T) {
	s, cleanUp := newTestStorage(t)
	defer cleanUp()

	cf := engine_util.CfAttribute
	require.Nil(t, s.Write([]storage.Modify{
		{Data: storage.Put{Key: []byte("a"), Value: []byte("x"), Cf: cf}},
		{Data: storage.Put{Key: []byte("b"), Value: []byte("y"), Cf: cf}},
		{Data: storage.Put{Key: []byte("a"), Value: []byte("z"), Cf: engine_util.CfBody}},
	}))

	r, err := s.Reader()
	require.Nil(t, err)
	defer r.Close()
	iter := r.IterCF(cf)
	defer iter.Close()
	iter.Seek([]byte("a"))
	item := iter.Item()
	assert.Equal(t, []byte("a"), item.Key())
	val, _ := item.Value()
	assert.Equal(t, []byte("x"), val)

	iter.Next()
	item = iter.Item()
	assert.Equal(t, []byte("b"), item.Key())
	val, _ = item.Value()
	assert.Equal(t, []byte("y"), val)

	iter.Next()
	assert.False(t, iter.Valid())
}
