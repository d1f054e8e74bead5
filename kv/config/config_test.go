package config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	assert.NoError(t, NewDefaultConfig().Validate())
	assert.NoError(t, NewTestConfig().Validate())
}

func TestValidate(t *testing.T) {
	c := NewTestConfig()
	c.DBPath = ""
	assert.Error(t, c.Validate())

	c = NewTestConfig()
	c.FlushInterval = NewDuration(0)
	assert.Error(t, c.Validate())

	c = NewTestConfig()
	c.FlushThreshold = -1
	assert.Error(t, c.Validate())
}

func TestLoadFile(t *testing.T) {
	dir, err := ioutil.TempDir("", "tinydoc-config")
	require.Nil(t, err)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "tinydoc.toml")
	data := `
db-path = "/var/lib/tinydoc"
flush-interval = "250ms"
flush-threshold = 16

[engine]
num-compactors = 2
sync-writes = false
value-log-file-size = "32MB"
`
	require.Nil(t, ioutil.WriteFile(path, []byte(data), 0644))

	c, err := LoadFile(path)
	require.Nil(t, err)
	assert.Equal(t, "/var/lib/tinydoc", c.DBPath)
	assert.Equal(t, 250*time.Millisecond, c.FlushInterval.Duration)
	assert.Equal(t, 16, c.FlushThreshold)
	assert.Equal(t, 2, c.Engine.NumCompactors)
	assert.False(t, c.Engine.SyncWrites)
	assert.Equal(t, 32*MB, c.Engine.ValueLogFileSize)
	// untouched keys keep their defaults
	assert.Equal(t, NewDefaultConfig().Engine.MaxTableSize, c.Engine.MaxTableSize)
}

func TestLoadFileRejectsBadDuration(t *testing.T) {
	dir, err := ioutil.TempDir("", "tinydoc-config")
	require.Nil(t, err)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "tinydoc.toml")
	require.Nil(t, ioutil.WriteFile(path, []byte(`flush-interval = "soon"`), 0644))

	_, err = LoadFile(path)
	assert.Error(t, err)
}

func TestLoadFileRejectsBadSize(t *testing.T) {
	dir, err := ioutil.TempDir("", "tinydoc-config")
	require.Nil(t, err)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "tinydoc.toml")
	require.Nil(t, ioutil.WriteFile(path, []byte("[engine]\nmax-table-size = \"huge\""), 0644))

	_, err = LoadFile(path)
	assert.Error(t, err)
}

func TestByteSizeText(t *testing.T) {
	var b ByteSize
	require.Nil(t, b.UnmarshalText([]byte("1GiB")))
	assert.Equal(t, 1024*MB, b)
	text, err := (4 * KB).MarshalText()
	require.Nil(t, err)
	assert.Equal(t, "4KiB", string(text))
}
