package util

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirExists(t *testing.T) {
	dir, err := ioutil.TempDir("", "tinydoc-util")
	require.Nil(t, err)
	defer os.RemoveAll(dir)

	assert.True(t, DirExists(dir))
	file := filepath.Join(dir, "f")
	require.Nil(t, ioutil.WriteFile(file, nil, 0644))
	assert.False(t, DirExists(file))
	assert.False(t, DirExists(filepath.Join(dir, "missing")))
}
