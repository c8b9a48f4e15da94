package page

import (
	"fmt"
	"os"
	"sync"

	"coredb/internal/dberr"
)

// Store translates between page ids and regions of a single on-disk file.
// Grounded on bplustree/disk_pager.go's OnDiskPager: same open/stat-to-
// recover-next-id, ReadAt/WriteAt, short-read zero-pad behavior.
type Store struct {
	mu       sync.Mutex
	file     *os.File
	path     string
	nextID   uint32
}

// Open opens or creates the database file at path and recovers the
// next-id counter from the file size, per spec §3: "the next-ID counter
// equals (file-size-in-bytes / 4096) + 1 on open."
func Open(path string) (*Store, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("open page store %s: %w", path, err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat page store %s: %w", path, err)
	}
	numPages := uint32(stat.Size() / Size)
	return &Store{
		file:   f,
		path:   path,
		nextID: numPages + 1,
	}, nil
}

// Allocate increments the counter and returns a new page id. The backing
// file region is created lazily on first Write.
func (s *Store) Allocate() (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	return id, nil
}

// Read seeks to (id-1)*Size and reads Size bytes. A short read (EOF) yields
// an empty page stamped with id rather than an error; otherwise the header
// is reconstructed from the first 16 bytes.
func (s *Store) Read(id uint32) (*Page, error) {
	if id == InvalidID || id >= s.nextID {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p := &Page{}
	offset := int64(id-1) * Size
	n, err := s.file.ReadAt(p.Buf[:], offset)
	if err != nil && n == 0 {
		// Not yet written: empty page.
		p.Header = Header{ID: id}
		p.encodeHeader()
		return p, nil
	}
	if n < Size {
		for i := n; i < Size; i++ {
			p.Buf[i] = 0
		}
	}
	p.decodeHeader()
	if p.Header.ID == 0 {
		p.Header.ID = id
	}
	return p, nil
}

// Write seeks and writes exactly Size bytes, then flushes the OS buffer.
func (s *Store) Write(p *Page) error {
	if len(p.Buf) != Size {
		return &dberr.IOError{PageID: p.Header.ID, Err: fmt.Errorf("page buffer is not %d bytes", Size)}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p.encodeHeader()
	offset := int64(p.Header.ID-1) * Size
	if _, err := s.file.WriteAt(p.Buf[:], offset); err != nil {
		return &dberr.IOError{PageID: p.Header.ID, Err: err}
	}
	if err := s.file.Sync(); err != nil {
		return &dberr.IOError{PageID: p.Header.ID, Err: err}
	}
	return nil
}

// FlushAll writes every page in pages, then flushes the OS buffer once.
func (s *Store) FlushAll(pages []*Page) error {
	s.mu.Lock()
	for _, p := range pages {
		p.encodeHeader()
		offset := int64(p.Header.ID-1) * Size
		if _, err := s.file.WriteAt(p.Buf[:], offset); err != nil {
			s.mu.Unlock()
			return &dberr.IOError{PageID: p.Header.ID, Err: err}
		}
	}
	s.mu.Unlock()
	return s.file.Sync()
}

// NextID reports the id that would be assigned by the next Allocate call,
// used by the engine to decide whether a tree root already exists.
func (s *Store) NextID() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextID
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	_ = s.file.Sync()
	err := s.file.Close()
	s.file = nil
	return err
}
