package leveldbstore

import (
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPutGetSize(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "db"))
	require.NoError(t, err)
	defer s.Close()

	for i := 1; i <= 12; i++ {
		k, err := s.Put("", []byte("v"+strconv.Itoa(i)))
		require.NoError(t, err)
		require.Equal(t, strconv.Itoa(i), k)
	}

	sz, err := s.Size()
	require.NoError(t, err)
	require.Equal(t, 12, sz)

	v, err := s.Get("9")
	require.NoError(t, err)
	require.Equal(t, "v9", string(v))
}

func TestIteratorOrdersNumericallyNotLexicographically(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "db"))
	require.NoError(t, err)
	defer s.Close()

	for i := 1; i <= 12; i++ {
		_, err := s.Put("", []byte("v"+strconv.Itoa(i)))
		require.NoError(t, err)
	}

	it, err := s.Iterator(8, 11)
	require.NoError(t, err)
	defer it.Close()

	var got []string
	for it.Next() {
		got = append(got, string(it.Value()))
	}
	require.Equal(t, []string{"v8", "v9", "v10", "v11"}, got)
}

func TestReopenPersistsData(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")
	s, err := Open(dir)
	require.NoError(t, err)
	_, err = s.Put("", []byte("a"))
	require.NoError(t, err)
	_, err = s.Put("", []byte("b"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	sz, err := reopened.Size()
	require.NoError(t, err)
	require.Equal(t, 2, sz)
}
