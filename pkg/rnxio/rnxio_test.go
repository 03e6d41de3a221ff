package rnxio

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_PlainFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.rnx")
	require.NoError(t, os.WriteFile(path, []byte("hello rinex\n"), 0o644))

	rc, err := Open(path)
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello rinex\n", string(got))
}

func TestOpen_Gzip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.rnx.gz")

	f, err := os.Create(path)
	require.NoError(t, err)
	gw := gzip.NewWriter(f)
	_, err = gw.Write([]byte("hello compressed rinex\n"))
	require.NoError(t, err)
	require.NoError(t, gw.Close())
	require.NoError(t, f.Close())

	rc, err := Open(path)
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello compressed rinex\n", string(got))
}

func TestIsCompressed(t *testing.T) {
	assert.True(t, isCompressed("foo.21o.gz"))
	assert.True(t, isCompressed("foo.21o.Z"))
	assert.True(t, isCompressed("foo.zip"))
	assert.True(t, isCompressed("foo.bz2"))
	assert.False(t, isCompressed("foo.21o"))
}
