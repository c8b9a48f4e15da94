// Package page implements the fixed-size page store: translation between
// 1-based page ids and 4 KiB regions of a single database file.
package page

import (
	"encoding/binary"
)

const (
	// Size is the fixed page size in bytes.
	Size = 4096
	// HeaderSize is the number of bytes at the front of every page
	// reserved for the header; the remainder is opaque payload.
	HeaderSize = 16
	// PayloadSize is the number of bytes available to the owner of a page.
	PayloadSize = Size - HeaderSize

	// InvalidID denotes "no page" / "not yet allocated".
	InvalidID uint32 = 0
)

// Type distinguishes how a page's payload should be interpreted by the
// layer above the page store (the B+-tree). The page store itself never
// inspects this value beyond storing and returning it.
type Type byte

const (
	TypeUnused   Type = 0
	TypeLeaf     Type = 1
	TypeInternal Type = 2
)

// Header is the first 16 bytes of every page: id, type, slot count,
// free-space offset, and a checksum field. The checksum is stored and
// reloaded with the header but is never computed over the payload or
// verified.
type Header struct {
	ID         uint32
	PageType   Type
	SlotCount  uint16
	FreeOffset uint16
	Checksum   uint32
}

// Page is one fixed-size unit of the database file. Buf is always exactly
// Size bytes; Header mirrors the first HeaderSize bytes of Buf.
type Page struct {
	Header
	Buf [Size]byte
}

// New returns an empty page with the given id, header zeroed.
func New(id uint32) *Page {
	p := &Page{Header: Header{ID: id}}
	p.encodeHeader()
	return p
}

// Payload returns the mutable payload region (everything after the header).
func (p *Page) Payload() []byte {
	return p.Buf[HeaderSize:]
}

// encodeHeader writes p.Header into the first HeaderSize bytes of Buf.
func (p *Page) encodeHeader() {
	binary.LittleEndian.PutUint32(p.Buf[0:4], p.Header.ID)
	p.Buf[4] = byte(p.Header.PageType)
	binary.LittleEndian.PutUint16(p.Buf[5:7], p.Header.SlotCount)
	binary.LittleEndian.PutUint16(p.Buf[7:9], p.Header.FreeOffset)
	binary.LittleEndian.PutUint32(p.Buf[9:13], p.Header.Checksum)
	// bytes 13..16 reserved, left zero.
}

// decodeHeader reconstructs p.Header from the first HeaderSize bytes of Buf.
// Invariant (spec §3): a page loaded from disk reconstructs its header from
// the first 16 bytes of the payload buffer.
func (p *Page) decodeHeader() {
	p.Header.ID = binary.LittleEndian.Uint32(p.Buf[0:4])
	p.Header.PageType = Type(p.Buf[4])
	p.Header.SlotCount = binary.LittleEndian.Uint16(p.Buf[5:7])
	p.Header.FreeOffset = binary.LittleEndian.Uint16(p.Buf[7:9])
	p.Header.Checksum = binary.LittleEndian.Uint32(p.Buf[9:13])
}

// SetHeader updates the header fields and re-serializes them into Buf.
func (p *Page) SetHeader(h Header) {
	p.Header = h
	p.encodeHeader()
}

// Sync re-serializes the current header into Buf; call after mutating
// p.Header fields directly.
func (p *Page) Sync() {
	p.encodeHeader()
}
