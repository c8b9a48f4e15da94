package wal

import (
	"os"
	"sync"

	"go.uber.org/zap"
)

// WAL is the single append-only log file. The lsn counter is recovered on
// open by scanning the log and taking the maximum observed lsn.
type WAL struct {
	mu      sync.Mutex
	file    *os.File
	path    string
	nextLSN uint64
	log     *zap.Logger
}

// Open opens or creates the log file at path and recovers nextLSN by
// scanning any existing records.
func Open(path string, log *zap.Logger) (*WAL, error) {
	if log == nil {
		log = zap.NewNop()
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	w := &WAL{file: f, path: path, nextLSN: 1, log: log}

	records, err := w.readAllLocked()
	if err != nil {
		f.Close()
		return nil, err
	}
	var max uint64
	for _, r := range records {
		if r.LSN > max {
			max = r.LSN
		}
	}
	if max > 0 {
		w.nextLSN = max + 1
	}
	return w, nil
}

func (w *WAL) append(r *Record) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	r.LSN = w.nextLSN
	w.nextLSN++
	buf := r.Encode()
	if _, err := w.file.Write(buf); err != nil {
		return 0, err
	}
	if err := w.file.Sync(); err != nil {
		return 0, err
	}
	return r.LSN, nil
}

func (w *WAL) LogInsert(txnID uint64, pageID uint32, key, value []byte) (uint64, error) {
	return w.append(&Record{Type: Insert, TxnID: txnID, PageID: pageID, Key: key, Value: value})
}

func (w *WAL) LogUpdate(txnID uint64, pageID uint32, key, value []byte) (uint64, error) {
	return w.append(&Record{Type: Update, TxnID: txnID, PageID: pageID, Key: key, Value: value})
}

func (w *WAL) LogDelete(txnID uint64, pageID uint32, key []byte) (uint64, error) {
	return w.append(&Record{Type: Delete, TxnID: txnID, PageID: pageID, Key: key})
}

func (w *WAL) LogBegin(txnID uint64) (uint64, error) {
	return w.append(&Record{Type: Begin, TxnID: txnID})
}

func (w *WAL) LogCommit(txnID uint64) (uint64, error) {
	return w.append(&Record{Type: Commit, TxnID: txnID})
}

func (w *WAL) LogAbort(txnID uint64) (uint64, error) {
	return w.append(&Record{Type: Abort, TxnID: txnID})
}

func (w *WAL) LogCheckpoint() (uint64, error) {
	return w.append(&Record{Type: Checkpoint})
}

// Flush forces the OS buffer to durable media.
func (w *WAL) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Sync()
}

// ReadAll reads every well-formed record in the log, stopping at the first
// checksum failure (treated as a truncated tail), per spec §4.3.
func (w *WAL) ReadAll() ([]*Record, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.readAllLocked()
}

func (w *WAL) readAllLocked() ([]*Record, error) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, err
	}
	var records []*Record
	off := 0
	for off < len(data) {
		r, n, err := decodeRecord(data[off:])
		if err != nil {
			w.log.Warn("wal scan stopped at truncated/corrupt tail", zap.Int("offset", off), zap.Error(err))
			break
		}
		records = append(records, r)
		off += n
	}
	return records, nil
}

// Truncate empties the log file, called after a checkpoint once all dirty
// pages and the checkpoint record itself are durable.
func (w *WAL) Truncate() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.file.Truncate(0); err != nil {
		return err
	}
	if _, err := w.file.Seek(0, 0); err != nil {
		return err
	}
	return w.file.Sync()
}

func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	_ = w.file.Sync()
	err := w.file.Close()
	w.file = nil
	return err
}

// Partition splits records into the set of transaction ids that reached a
// terminal commit record vs. an abort record. Per spec §4.3: if a txn id
// appears in both sets (should not normally happen), treat it as aborted.
func Partition(records []*Record) (committed map[uint64]bool, aborted map[uint64]bool) {
	committed = make(map[uint64]bool)
	aborted = make(map[uint64]bool)
	for _, r := range records {
		switch r.Type {
		case Commit:
			committed[r.TxnID] = true
		case Abort:
			aborted[r.TxnID] = true
		}
	}
	for id := range aborted {
		delete(committed, id)
	}
	return committed, aborted
}

// LastCheckpointIndex returns the index into records of the latest
// Checkpoint record, or -1 if none exists. Replay starts at the record
// immediately following it.
func LastCheckpointIndex(records []*Record) int {
	idx := -1
	for i, r := range records {
		if r.Type == Checkpoint {
			idx = i
		}
	}
	return idx
}
