package page

import (
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	t.Run("allocate returns sequential 1-based ids", func(t *testing.T) {
		s, err := Open(path.Join(t.TempDir(), "test.db"))
		require.NoError(t, err)
		defer s.Close()

		id1, err := s.Allocate()
		require.NoError(t, err)
		id2, err := s.Allocate()
		require.NoError(t, err)

		assert.Equal(t, uint32(1), id1)
		assert.Equal(t, uint32(2), id2)
	})

	t.Run("write then read round-trips the payload", func(t *testing.T) {
		s, err := Open(path.Join(t.TempDir(), "test.db"))
		require.NoError(t, err)
		defer s.Close()

		id, err := s.Allocate()
		require.NoError(t, err)

		p := New(id)
		copy(p.Payload(), []byte("hello world"))
		require.NoError(t, s.Write(p))

		got, err := s.Read(id)
		require.NoError(t, err)
		assert.Equal(t, id, got.Header.ID)
		assert.Equal(t, []byte("hello world"), got.Payload()[:len("hello world")])
	})

	t.Run("next id counter recovers from file size on reopen", func(t *testing.T) {
		dbPath := path.Join(t.TempDir(), "test.db")
		s, err := Open(dbPath)
		require.NoError(t, err)

		id, err := s.Allocate()
		require.NoError(t, err)
		p := New(id)
		require.NoError(t, s.Write(p))
		require.NoError(t, s.Close())

		reopened, err := Open(dbPath)
		require.NoError(t, err)
		defer reopened.Close()
		assert.Equal(t, uint32(2), reopened.NextID())
	})

	t.Run("unwritten page reads back as empty", func(t *testing.T) {
		s, err := Open(path.Join(t.TempDir(), "test.db"))
		require.NoError(t, err)
		defer s.Close()

		id, err := s.Allocate()
		require.NoError(t, err)

		got, err := s.Read(id)
		require.NoError(t, err)
		assert.Equal(t, id, got.Header.ID)
	})
}
