// Package btree implements the order-16 B+-tree described in spec §3/§4.4:
// ordered byte-string key/value map, persisted across pages through the
// buffer pool, with point lookup, insert/upsert, best-effort delete, and
// forward range scan via linked leaves.
//
// Grounded on bplustree/{struct.go,new_node.go,find_leaf.go,insertion.go,
// parent_insert.go,split_internal.go,iterator.go,node_codec.go} for node
// shape, split/promote logic, and page encoding, adapted to spec's order
// (15-key split threshold, not the teacher's MaxKeys=32) and spec's
// best-effort (non-rebalancing) delete, not the teacher's full rebalance.
package btree

import (
	"encoding/binary"

	"coredb/internal/page"
)

const (
	// Order is the tree's order (spec §3/GLOSSARY: order 16, split
	// threshold 15); a node holds at most Order-1 keys.
	Order = 16
	// MaxKeys is the split threshold: a node holding MaxKeys keys is split
	// before an insert descends into it, so no node exceeds MaxKeys keys.
	MaxKeys = Order - 1
)

type node struct {
	id       uint32
	isLeaf   bool
	keys     [][]byte
	children []uint32 // internal only, len == len(keys)+1
	values   [][]byte // leaf only, len == len(keys)
	next     uint32   // leaf only, 0 if none
}

func newLeaf(id uint32) *node {
	return &node{id: id, isLeaf: true}
}

func newInternal(id uint32) *node {
	return &node{id: id, isLeaf: false}
}

// encode serializes n into the payload of a page-sized buffer. Layout:
// [isLeaf:1][numKeys:2][next:4]
// keys:    ([keyLen:2][key bytes]) * numKeys
// if leaf: values: ([valLen:2][value bytes]) * numKeys
// if internal: children: (childID:4) * (numKeys+1)
func (n *node) encode(p *page.Page) {
	buf := p.Payload()
	off := 0
	if n.isLeaf {
		buf[off] = 1
		p.Header.PageType = page.TypeLeaf
	} else {
		buf[off] = 0
		p.Header.PageType = page.TypeInternal
	}
	off++
	binary.LittleEndian.PutUint16(buf[off:], uint16(len(n.keys)))
	off += 2
	binary.LittleEndian.PutUint32(buf[off:], n.next)
	off += 4

	for _, k := range n.keys {
		binary.LittleEndian.PutUint16(buf[off:], uint16(len(k)))
		off += 2
		copy(buf[off:], k)
		off += len(k)
	}
	if n.isLeaf {
		for _, v := range n.values {
			binary.LittleEndian.PutUint16(buf[off:], uint16(len(v)))
			off += 2
			copy(buf[off:], v)
			off += len(v)
		}
	} else {
		for _, c := range n.children {
			binary.LittleEndian.PutUint32(buf[off:], c)
			off += 4
		}
	}
	p.Header.ID = n.id
	p.Header.SlotCount = uint16(len(n.keys))
	p.Sync()
}

func decodeNode(p *page.Page) *node {
	buf := p.Payload()
	off := 0
	isLeaf := buf[off] == 1
	off++
	numKeys := int(binary.LittleEndian.Uint16(buf[off:]))
	off += 2
	next := binary.LittleEndian.Uint32(buf[off:])
	off += 4

	n := &node{id: p.Header.ID, isLeaf: isLeaf, next: next}
	n.keys = make([][]byte, numKeys)
	for i := 0; i < numKeys; i++ {
		klen := int(binary.LittleEndian.Uint16(buf[off:]))
		off += 2
		n.keys[i] = append([]byte(nil), buf[off:off+klen]...)
		off += klen
	}
	if isLeaf {
		n.values = make([][]byte, numKeys)
		for i := 0; i < numKeys; i++ {
			vlen := int(binary.LittleEndian.Uint16(buf[off:]))
			off += 2
			n.values[i] = append([]byte(nil), buf[off:off+vlen]...)
			off += vlen
		}
	} else {
		n.children = make([]uint32, numKeys+1)
		for i := 0; i < numKeys+1; i++ {
			n.children[i] = binary.LittleEndian.Uint32(buf[off:])
			off += 4
		}
	}
	return n
}
