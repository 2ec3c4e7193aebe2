package localstore

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/gouuxi/uuxi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSendReturnsSizeAndContent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("hello world"), 0644))

	store, err := New(dir, nil)
	require.NoError(t, err)

	f, size, err := store.OpenSend("hello.txt")
	require.NoError(t, err)
	defer f.Close()
	assert.EqualValues(t, 11, size)

	got, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(got))
}

func TestOpenSendMissingFileErrors(t *testing.T) {
	store, err := New(t.TempDir(), nil)
	require.NoError(t, err)
	_, _, err = store.OpenSend("nope.txt")
	assert.Error(t, err)
}

func TestReceiveAndCommitRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir, nil)
	require.NoError(t, err)

	f, err := store.OpenReceive("report.txt", 0640)
	require.NoError(t, err)
	_, err = f.Write([]byte("payload"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	// Before commit, only the staged ".part" file exists.
	_, statErr := os.Stat(filepath.Join(dir, "report.txt"))
	assert.Error(t, statErr)

	require.NoError(t, store.CommitReceive("report.txt", "report.txt"))

	got, err := os.ReadFile(filepath.Join(dir, "report.txt"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))
}

func TestOpenReceiveDefaultsZeroModeToWritable(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir, nil)
	require.NoError(t, err)

	f, err := store.OpenReceive("x.bin", 0)
	require.NoError(t, err)
	_, err = f.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	// The handle OpenFile returns is writable whatever the mode, so the
	// default is confirmed from the staged file's permission bits.
	info, err := os.Stat(filepath.Join(dir, "x.bin.part"))
	require.NoError(t, err)
	assert.NotZero(t, info.Mode().Perm()&0200)
}

func TestFailedRemovesStagedFile(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir, nil)
	require.NoError(t, err)

	f, err := store.OpenReceive("x.bin", 0644)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	store.Failed("x.bin", uuxi.FailOpen)
	_, statErr := os.Stat(filepath.Join(dir, "x.bin.part"))
	assert.True(t, os.IsNotExist(statErr))
}
