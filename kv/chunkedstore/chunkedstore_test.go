package chunkedstore

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPutGetAcrossChunkBoundaries(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, 4)
	require.NoError(t, err)
	defer s.Close()

	for i := 1; i <= 10; i++ {
		_, err := s.Put("", []byte(fmt.Sprintf("rec-%d", i)))
		require.NoError(t, err)
	}
	sz, err := s.Size()
	require.NoError(t, err)
	require.Equal(t, 10, sz)

	v, err := s.Get("5")
	require.NoError(t, err)
	require.Equal(t, "rec-5", string(v))
}

func TestReopenRebuildsFromChunkFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, 3)
	require.NoError(t, err)
	for i := 1; i <= 7; i++ {
		_, err := s.Put("", []byte(fmt.Sprintf("v%d", i)))
		require.NoError(t, err)
	}
	require.NoError(t, s.Close())

	reopened, err := Open(dir, 3)
	require.NoError(t, err)
	defer reopened.Close()

	sz, err := reopened.Size()
	require.NoError(t, err)
	require.Equal(t, 7, sz)

	v, err := reopened.Get("7")
	require.NoError(t, err)
	require.Equal(t, "v7", string(v))

	_, err = reopened.Put("", []byte("v8"))
	require.NoError(t, err)
	sz, err = reopened.Size()
	require.NoError(t, err)
	require.Equal(t, 8, sz)
}
