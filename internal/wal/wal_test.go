package wal

import (
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWALAppendAndReadAll(t *testing.T) {
	w, err := Open(path.Join(t.TempDir(), "test.wal"), nil)
	require.NoError(t, err)
	defer w.Close()

	_, err = w.LogInsert(0, 0, []byte("k1"), []byte("v1"))
	require.NoError(t, err)
	_, err = w.LogInsert(0, 0, []byte("k2"), []byte("v2"))
	require.NoError(t, err)

	records, err := w.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, Insert, records[0].Type)
	assert.Equal(t, []byte("k1"), records[0].Key)
	assert.Equal(t, uint64(1), records[0].LSN)
	assert.Equal(t, uint64(2), records[1].LSN)
}

func TestWALRecoversNextLSNOnReopen(t *testing.T) {
	logPath := path.Join(t.TempDir(), "test.wal")
	w, err := Open(logPath, nil)
	require.NoError(t, err)

	_, err = w.LogInsert(0, 0, []byte("k1"), []byte("v1"))
	require.NoError(t, err)
	_, err = w.LogInsert(0, 0, []byte("k2"), []byte("v2"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	reopened, err := Open(logPath, nil)
	require.NoError(t, err)
	defer reopened.Close()

	lsn, err := reopened.LogInsert(0, 0, []byte("k3"), []byte("v3"))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), lsn)
}

func TestWALTruncateEmptiesLog(t *testing.T) {
	w, err := Open(path.Join(t.TempDir(), "test.wal"), nil)
	require.NoError(t, err)
	defer w.Close()

	_, err = w.LogInsert(0, 0, []byte("k1"), []byte("v1"))
	require.NoError(t, err)
	require.NoError(t, w.Truncate())

	records, err := w.ReadAll()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestWALReadAllStopsAtCorruptTail(t *testing.T) {
	logPath := path.Join(t.TempDir(), "test.wal")
	w, err := Open(logPath, nil)
	require.NoError(t, err)

	_, err = w.LogInsert(0, 0, []byte("k1"), []byte("v1"))
	require.NoError(t, err)
	_, err = w.file.Write([]byte{0xFF, 0x01, 0x02}) // truncated garbage tail
	require.NoError(t, err)

	records, err := w.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.NoError(t, w.Close())
}

func TestPartitionTieBreaksToAborted(t *testing.T) {
	records := []*Record{
		{Type: Commit, TxnID: 1},
		{Type: Abort, TxnID: 1},
		{Type: Commit, TxnID: 2},
	}
	committed, aborted := Partition(records)
	assert.True(t, aborted[1])
	assert.False(t, committed[1])
	assert.True(t, committed[2])
}

func TestLastCheckpointIndex(t *testing.T) {
	records := []*Record{
		{Type: Insert},
		{Type: Checkpoint},
		{Type: Insert},
		{Type: Checkpoint},
		{Type: Insert},
	}
	assert.Equal(t, 3, LastCheckpointIndex(records))
	assert.Equal(t, -1, LastCheckpointIndex(nil))
}

func TestChecksumDetectsCorruption(t *testing.T) {
	r := &Record{Type: Insert, LSN: 1, TxnID: 0, PageID: 0, Key: []byte("k"), Value: []byte("v")}
	buf := r.Encode()
	buf[len(buf)-1] ^= 0xFF // flip a byte of the checksum

	_, _, err := decodeRecord(buf)
	assert.Error(t, err)
}
