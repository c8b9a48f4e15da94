package btree

import (
	"bytes"

	"coredb/internal/page"

	"go.uber.org/zap"
)

// Pool is the subset of bufferpool.Pool the tree needs: fetch/allocate
// pages and track which ones must be written back.
type Pool interface {
	Fetch(id uint32) (*page.Page, error)
	NewPage() (*page.Page, error)
	MarkDirty(id uint32)
	FlushDirty() error
}

// Tree is an order-16 B+-tree persisted through a Pool. Ordering is pure
// byte-lexicographic comparison on the key, per spec §4.4.
type Tree struct {
	root uint32
	pool Pool
	log  *zap.Logger
}

// Create allocates a fresh leaf page and returns a tree rooted at it.
func Create(pool Pool, log *zap.Logger) (*Tree, error) {
	if log == nil {
		log = zap.NewNop()
	}
	p, err := pool.NewPage()
	if err != nil {
		return nil, err
	}
	root := newLeaf(p.Header.ID)
	root.encode(p)
	pool.MarkDirty(p.Header.ID)
	return &Tree{root: p.Header.ID, pool: pool, log: log}, nil
}

// Open adopts an existing root page id as the tree's root.
func Open(rootID uint32, pool Pool, log *zap.Logger) *Tree {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tree{root: rootID, pool: pool, log: log}
}

// RootID returns the current root page id (page 1 by convention, per
// spec §4.5: "If the database file already has more than one page, adopt
// page 1 as the B+-tree root").
func (t *Tree) RootID() uint32 { return t.root }

func (t *Tree) loadNode(id uint32) (*node, error) {
	p, err := t.pool.Fetch(id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, nil
	}
	return decodeNode(p), nil
}

func (t *Tree) storeNode(n *node) error {
	p, err := t.pool.Fetch(n.id)
	if err != nil {
		return err
	}
	if p == nil {
		p = page.New(n.id)
	}
	n.encode(p)
	t.pool.MarkDirty(n.id)
	return nil
}

// lowerBound returns the index of the first key >= target, i.e. the child
// slot to descend into for an internal node, or the insertion point for a
// leaf.
func lowerBound(keys [][]byte, target []byte) int {
	lo, hi := 0, len(keys)
	for lo < hi {
		mid := (lo + hi) / 2
		if bytes.Compare(keys[mid], target) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// Search descends to the leaf via binary search on each node and locates
// the key within the leaf by the same binary search.
func (t *Tree) Search(key []byte) ([]byte, bool, error) {
	n, err := t.loadNode(t.root)
	if err != nil || n == nil {
		return nil, false, err
	}
	for !n.isLeaf {
		idx := lowerBound(n.keys, key)
		if idx < len(n.keys) && bytes.Equal(n.keys[idx], key) {
			idx++
		}
		child, err := t.loadNode(n.children[idx])
		if err != nil {
			return nil, false, err
		}
		n = child
	}
	idx := lowerBound(n.keys, key)
	if idx < len(n.keys) && bytes.Equal(n.keys[idx], key) {
		return n.values[idx], true, nil
	}
	return nil, false, nil
}

// Insert upserts key/value. If the root is full (MaxKeys keys) it is split
// and a new internal root is created before descent continues; a full child
// on the descent path is split the same way before it is entered.
func (t *Tree) Insert(key, value []byte) error {
	root, err := t.loadNode(t.root)
	if err != nil {
		return err
	}
	if root == nil {
		return nil
	}
	if len(root.keys) >= MaxKeys {
		newRootID, err := t.splitRoot(root)
		if err != nil {
			return err
		}
		t.root = newRootID
		root, err = t.loadNode(t.root)
		if err != nil {
			return err
		}
	}
	return t.insertInto(root, key, value)
}

func (t *Tree) insertInto(n *node, key, value []byte) error {
	if n.isLeaf {
		idx := lowerBound(n.keys, key)
		if idx < len(n.keys) && bytes.Equal(n.keys[idx], key) {
			n.values[idx] = value
		} else {
			n.keys = insertAt(n.keys, idx, key)
			n.values = insertValAt(n.values, idx, value)
		}
		return t.storeNode(n)
	}

	idx := lowerBound(n.keys, key)
	if idx < len(n.keys) && bytes.Equal(n.keys[idx], key) {
		idx++
	}
	child, err := t.loadNode(n.children[idx])
	if err != nil {
		return err
	}
	if len(child.keys) >= MaxKeys {
		promoted, rightID, err := t.split(child)
		if err != nil {
			return err
		}
		n.keys = insertAt(n.keys, idx, promoted)
		n.children = insertChildAt(n.children, idx+1, rightID)
		if err := t.storeNode(n); err != nil {
			return err
		}
		if bytes.Compare(key, promoted) >= 0 {
			idx++
		}
		child, err = t.loadNode(n.children[idx])
		if err != nil {
			return err
		}
	}
	return t.insertInto(child, key, value)
}

// splitRoot handles overflow of the current root. The root's page id never
// moves: the old root's (now split) content is relocated onto a freshly
// allocated page, and a new internal root node — with the relocated node and
// the new right sibling as its two children and the split key promoted into
// it — is
// written back onto the original root page id. This keeps "page 1 is the
// tree root" true for the tree's entire lifetime (spec §4.5), so Open can
// always adopt page 1 without a separately persisted root pointer.
func (t *Tree) splitRoot(root *node) (uint32, error) {
	rootID := root.id
	promoted, rightID, err := t.split(root)
	if err != nil {
		return 0, err
	}

	p, err := t.pool.NewPage()
	if err != nil {
		return 0, err
	}
	root.id = p.Header.ID
	if err := t.storeNode(root); err != nil {
		return 0, err
	}

	newRoot := newInternal(rootID)
	newRoot.keys = [][]byte{promoted}
	newRoot.children = []uint32{root.id, rightID}
	if err := t.storeNode(newRoot); err != nil {
		return 0, err
	}
	t.log.Debug("split root", zap.Uint32("relocated_old_root_to", root.id))
	return rootID, nil
}

// split splits an overflowing node, returning the key promoted to the
// parent and the id of the new right sibling. Per spec §4.4: midpoint
// index m = order/2; right sibling gets keys [m..k); for leaves the
// promoted key is the right sibling's first key, for internals it's the
// midpoint key (removed from the left).
func (t *Tree) split(n *node) ([]byte, uint32, error) {
	p, err := t.pool.NewPage()
	if err != nil {
		return nil, 0, err
	}
	m := Order / 2

	if n.isLeaf {
		right := newLeaf(p.Header.ID)
		right.keys = append([][]byte(nil), n.keys[m:]...)
		right.values = append([][]byte(nil), n.values[m:]...)
		right.next = n.next
		n.next = right.id
		n.keys = n.keys[:m]
		n.values = n.values[:m]

		if err := t.storeNode(right); err != nil {
			return nil, 0, err
		}
		if err := t.storeNode(n); err != nil {
			return nil, 0, err
		}
		return right.keys[0], right.id, nil
	}

	right := newInternal(p.Header.ID)
	promoted := n.keys[m]
	right.keys = append([][]byte(nil), n.keys[m+1:]...)
	right.children = append([]uint32(nil), n.children[m+1:]...)
	n.keys = n.keys[:m]
	n.children = n.children[:m+1]

	if err := t.storeNode(right); err != nil {
		return nil, 0, err
	}
	if err := t.storeNode(n); err != nil {
		return nil, 0, err
	}
	return promoted, right.id, nil
}

// Delete is best-effort (spec §4.4/§9): it locates the leaf, removes the
// entry if present, and skips rebalancing. Returns false if the key was
// not present (a no-op, not an error).
func (t *Tree) Delete(key []byte) (bool, error) {
	n, err := t.loadNode(t.root)
	if err != nil || n == nil {
		return false, err
	}
	for !n.isLeaf {
		idx := lowerBound(n.keys, key)
		if idx < len(n.keys) && bytes.Equal(n.keys[idx], key) {
			idx++
		}
		child, err := t.loadNode(n.children[idx])
		if err != nil {
			return false, err
		}
		n = child
	}
	idx := lowerBound(n.keys, key)
	if idx >= len(n.keys) || !bytes.Equal(n.keys[idx], key) {
		return false, nil
	}
	n.keys = append(n.keys[:idx], n.keys[idx+1:]...)
	n.values = append(n.values[:idx], n.values[idx+1:]...)
	if err := t.storeNode(n); err != nil {
		return false, err
	}
	return true, nil
}

// KV is one (key, value) pair emitted by RangeScan.
type KV struct {
	Key   []byte
	Value []byte
}

// RangeScan finds the start leaf and walks next-leaf pointers, emitting
// every (key, value) with start <= key <= end, stopping as soon as a key
// exceeds end. Per spec §4.4/§8: non-decreasing order, linked-leaf walk.
func (t *Tree) RangeScan(start, end []byte) ([]KV, error) {
	n, err := t.loadNode(t.root)
	if err != nil || n == nil {
		return nil, err
	}
	for !n.isLeaf {
		idx := lowerBound(n.keys, start)
		if idx < len(n.keys) && bytes.Equal(n.keys[idx], start) {
			idx++
		}
		child, err := t.loadNode(n.children[idx])
		if err != nil {
			return nil, err
		}
		n = child
	}

	var out []KV
	for n != nil {
		startIdx := lowerBound(n.keys, start)
		for i := startIdx; i < len(n.keys); i++ {
			if bytes.Compare(n.keys[i], end) > 0 {
				return out, nil
			}
			out = append(out, KV{Key: n.keys[i], Value: n.values[i]})
		}
		if n.next == 0 {
			break
		}
		n, err = t.loadNode(n.next)
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

func insertAt(s [][]byte, idx int, v []byte) [][]byte {
	s = append(s, nil)
	copy(s[idx+1:], s[idx:])
	s[idx] = v
	return s
}

func insertValAt(s [][]byte, idx int, v []byte) [][]byte {
	return insertAt(s, idx, v)
}

func insertChildAt(s []uint32, idx int, v uint32) []uint32 {
	s = append(s, 0)
	copy(s[idx+1:], s[idx:])
	s[idx] = v
	return s
}
