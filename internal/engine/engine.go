// Package engine composes the buffer pool, B+-tree, and WAL into the
// transactional key/value store described in spec §4.5: begin/commit/
// abort, auto-transaction shortcuts, checkpoint, and crash recovery on
// open. Grounded on query_executor/txn_manager.go (transaction state
// machine and rollback-by-recorded-insert idiom) and
// query_executor/checkpoint_manager.go (atomic-write discipline, adapted
// here to a WAL checkpoint record rather than a side JSON file).
package engine

import (
	"fmt"
	"sync"

	"coredb/internal/btree"
	"coredb/internal/bufferpool"
	"coredb/internal/config"
	"coredb/internal/dberr"
	"coredb/internal/page"
	"coredb/internal/wal"

	"go.uber.org/zap"
)

// TxnState is the lifecycle state of a transaction, per spec §3.
type TxnState int

const (
	Active TxnState = iota
	Committed
	Aborted
)

type transaction struct {
	id           uint64
	state        TxnState
	insertedKeys [][]byte // for best-effort rollback on abort
}

// Engine is the transactional key/value store. It is not safe for
// concurrent use — spec §5 mandates a single-writer, single-threaded
// caller.
type Engine struct {
	mu sync.Mutex

	store *page.Store
	pool  *bufferpool.Pool
	tree  *btree.Tree
	log   *wal.WAL

	nextTxnID uint64
	txns      map[uint64]*transaction

	sinceCheckpoint int
	cfg             config.Config
	zl              *zap.Logger
}

// Open opens (or creates) the database and WAL files named in cfg, runs
// crash recovery if the WAL is non-empty, and returns a ready Engine.
func Open(cfg config.Config, zl *zap.Logger) (*Engine, error) {
	if zl == nil {
		zl = zap.NewNop()
	}
	store, err := page.Open(cfg.DataFile)
	if err != nil {
		return nil, fmt.Errorf("open page store: %w", err)
	}
	w, err := wal.Open(cfg.WALFile, zl)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("open wal: %w", err)
	}
	pool := bufferpool.New(cfg.BufferPoolCapacity, store, zl)

	e := &Engine{
		store:     store,
		pool:      pool,
		log:       w,
		nextTxnID: 1,
		txns:      make(map[uint64]*transaction),
		cfg:       cfg,
		zl:        zl,
	}

	// Adopt page 1 as the tree root if the file already has at least one
	// page; otherwise create a fresh tree, per spec §4.5. The tree's root
	// never moves off page 1 after creation (splitRoot relocates the old
	// root's content instead of the root itself), so this check is safe
	// even for a root that has split many times over.
	if store.NextID() > 1 {
		e.tree = btree.Open(1, pool, zl)
	} else {
		t, err := btree.Create(pool, zl)
		if err != nil {
			return nil, fmt.Errorf("create tree: %w", err)
		}
		e.tree = t
	}

	if err := e.recover(); err != nil {
		return nil, fmt.Errorf("recover: %w", err)
	}
	return e, nil
}

// recover implements spec §4.3's protocol: read well-formed records up to
// the first checksum failure, partition committed/aborted, replay from
// just after the latest checkpoint, and reset the txn-id counter.
func (e *Engine) recover() error {
	records, err := e.log.ReadAll()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	committed, aborted := wal.Partition(records)
	ckptIdx := wal.LastCheckpointIndex(records)
	start := ckptIdx + 1

	var maxTxnID uint64
	for _, r := range records {
		if r.TxnID > maxTxnID {
			maxTxnID = r.TxnID
		}
	}

	applied := 0
	for i := start; i < len(records); i++ {
		r := records[i]
		if r.TxnID > 0 {
			if aborted[r.TxnID] {
				continue
			}
			if !committed[r.TxnID] {
				continue // in-flight, never committed: excluded per spec §8 invariant 3
			}
		}
		switch r.Type {
		case wal.Insert, wal.Update:
			if err := e.tree.Insert(r.Key, r.Value); err != nil {
				return err
			}
			applied++
		case wal.Delete:
			if _, err := e.tree.Delete(r.Key); err != nil {
				return err
			}
			applied++
		}
	}
	e.nextTxnID = maxTxnID + 1
	e.zl.Info("wal recovery complete", zap.Int("records_replayed", applied), zap.Uint64("next_txn_id", e.nextTxnID))
	return e.pool.FlushDirty()
}

// Begin allocates a new transaction id, writes a begin record, and flushes
// the log.
func (e *Engine) Begin() (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextTxnID
	e.nextTxnID++
	if _, err := e.log.LogBegin(id); err != nil {
		return 0, err
	}
	e.txns[id] = &transaction{id: id, state: Active}
	return id, nil
}

func (e *Engine) requireActive(id uint64) (*transaction, error) {
	txn, ok := e.txns[id]
	if !ok {
		return nil, &dberr.StateError{Msg: fmt.Sprintf("unknown transaction %d", id)}
	}
	if txn.state != Active {
		return nil, &dberr.StateError{Msg: fmt.Sprintf("transaction %d is not active", id)}
	}
	return txn, nil
}

// Commit writes a commit record, flushes the log, flushes dirty pages,
// and forgets the transaction's rollback state.
func (e *Engine) Commit(id uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	txn, err := e.requireActive(id)
	if err != nil {
		return err
	}
	if _, err := e.log.LogCommit(id); err != nil {
		return err
	}
	if err := e.log.Flush(); err != nil {
		return err
	}
	if err := e.pool.FlushDirty(); err != nil {
		return err
	}
	txn.state = Committed
	delete(e.txns, id)
	e.sinceCheckpoint++
	if e.cfg.CheckpointEvery > 0 && e.sinceCheckpoint >= e.cfg.CheckpointEvery {
		return e.checkpointLocked()
	}
	return nil
}

// Abort best-effort rolls back inserts performed under this transaction
// (delete by key for each recorded insert); updates and deletes are not
// rolled back (spec §9 open question).
func (e *Engine) Abort(id uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	txn, err := e.requireActive(id)
	if err != nil {
		return err
	}
	for _, k := range txn.insertedKeys {
		_, _ = e.tree.Delete(k)
	}
	if _, err := e.log.LogAbort(id); err != nil {
		return err
	}
	if err := e.log.Flush(); err != nil {
		return err
	}
	if err := e.pool.FlushDirty(); err != nil {
		return err
	}
	txn.state = Aborted
	delete(e.txns, id)
	return nil
}

// Insert auto-begins and auto-commits a single insert under txn id 0.
func (e *Engine) Insert(key, value []byte) error {
	return e.InsertTxn(0, key, value)
}

// InsertTxn writes an insert record (flushed) before applying to the
// B+-tree. Inside an explicit transaction the key is recorded for
// possible rollback.
func (e *Engine) InsertTxn(id uint64, key, value []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var txn *transaction
	if id != 0 {
		t, err := e.requireActive(id)
		if err != nil {
			return err
		}
		txn = t
	}

	if _, err := e.log.LogInsert(id, 0, key, value); err != nil {
		return err
	}
	if err := e.log.Flush(); err != nil {
		return err
	}
	if err := e.tree.Insert(key, value); err != nil {
		return err
	}
	if txn != nil {
		txn.insertedKeys = append(txn.insertedKeys, key)
	} else {
		if err := e.pool.FlushDirty(); err != nil {
			return err
		}
	}
	return nil
}

// Delete auto-begins/auto-commits a single delete under txn id 0.
func (e *Engine) Delete(key []byte) error {
	return e.DeleteTxn(0, key)
}

// DeleteTxn writes a delete record before applying; raises NotFound if the
// B+-tree reports no deletion.
func (e *Engine) DeleteTxn(id uint64, key []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if id != 0 {
		if _, err := e.requireActive(id); err != nil {
			return err
		}
	}

	if _, err := e.log.LogDelete(id, 0, key); err != nil {
		return err
	}
	if err := e.log.Flush(); err != nil {
		return err
	}
	ok, err := e.tree.Delete(key)
	if err != nil {
		return err
	}
	if !ok {
		return &dberr.NotFound{Key: string(key)}
	}
	if id == 0 {
		if err := e.pool.FlushDirty(); err != nil {
			return err
		}
	}
	return nil
}

// Update logs an update record then overwrites the key's value. Used by
// the executor's UPDATE path, which computes the new value itself.
func (e *Engine) Update(key, value []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.log.LogUpdate(0, 0, key, value); err != nil {
		return err
	}
	if err := e.log.Flush(); err != nil {
		return err
	}
	if err := e.tree.Insert(key, value); err != nil {
		return err
	}
	return e.pool.FlushDirty()
}

// Get is a direct B+-tree read, no log interaction.
func (e *Engine) Get(key []byte) ([]byte, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tree.Search(key)
}

// RangeScan is a direct B+-tree read, no log interaction.
func (e *Engine) RangeScan(start, end []byte) ([]btree.KV, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tree.RangeScan(start, end)
}

// Checkpoint flushes dirty pages, writes a checkpoint record, flushes the
// log, then truncates the log.
func (e *Engine) Checkpoint() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.checkpointLocked()
}

func (e *Engine) checkpointLocked() error {
	if err := e.pool.FlushDirty(); err != nil {
		return err
	}
	if _, err := e.log.LogCheckpoint(); err != nil {
		return err
	}
	if err := e.log.Flush(); err != nil {
		return err
	}
	if err := e.log.Truncate(); err != nil {
		return err
	}
	e.sinceCheckpoint = 0
	e.zl.Info("checkpoint complete")
	return nil
}

// HitRate exposes the buffer pool's cache hit rate, for observability.
func (e *Engine) HitRate() float64 {
	return e.pool.HitRate()
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	// Inserts of transactions still active at close are removed before the
	// final flush, so a reopen excludes them just as recovery skips their
	// uncommitted log records.
	for _, txn := range e.txns {
		for _, k := range txn.insertedKeys {
			_, _ = e.tree.Delete(k)
		}
	}
	_ = e.pool.FlushDirty()
	_ = e.log.Close()
	return e.store.Close()
}
