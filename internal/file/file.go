// Package file is the disk-backed implementation of the File abstraction
// that spec.md treats as an external collaborator: page allocation, read,
// write, delete, and stable-order iteration over a single table's pages.
package file

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/MartrixG/pagestore/internal/page"
)

// File is the contract the buffer manager and heap/join layers depend on.
// Page number 0 is reserved as invalid; the first allocated page is 1.
type File interface {
	AllocatePage() (*page.Page, error)
	ReadPage(pageNo uint32) (*page.Page, error)
	WritePage(p *page.Page) error
	DeletePage(pageNo uint32) error
	Filename() string
	Begin() Iterator
}

// Iterator walks a File's used pages in stable, file-chain order.
type Iterator interface {
	// Next returns the next used page, or (nil, false) once exhausted.
	Next() (*page.Page, bool)
}

// fileHeaderSize reserves one full page's worth of file-level bookkeeping
// (head/tail/page-count) ahead of page number 1, so that page n always
// lives at byte offset n*page.Size.
const fileHeaderSize = page.Size

var _ File = (*DiskFile)(nil)

// DiskFile is a single OS file holding one table's pages.
type DiskFile struct {
	mu   sync.Mutex
	f    *os.File
	path string

	headPageNumber uint32
	tailPageNumber uint32
	pageCount      uint32
}

// Open opens or creates the file at path as a DiskFile, loading its
// bookkeeping header if the file already has content.
func Open(path string) (*DiskFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("file: open %s: %w", path, err)
	}
	f, err := os.OpenFile(abs, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("file: open %s: %w", path, err)
	}
	df := &DiskFile{f: f, path: abs}
	if err := df.loadHeader(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return df, nil
}

// OpenTemp creates a new uniquely-named DiskFile under dir (the OS temp
// directory if dir is empty), used for Grace hash join spill buckets.
func OpenTemp(dir, pattern string) (*DiskFile, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return nil, fmt.Errorf("file: create temp: %w", err)
	}
	path := f.Name()
	if err := f.Close(); err != nil {
		return nil, err
	}
	return Open(path)
}

func (df *DiskFile) loadHeader() error {
	info, err := df.f.Stat()
	if err != nil {
		return err
	}
	if info.Size() < fileHeaderSize {
		return df.writeHeaderLocked()
	}
	buf := make([]byte, fileHeaderSize)
	if _, err := df.f.ReadAt(buf, 0); err != nil && err != io.EOF {
		return err
	}
	df.headPageNumber = binary.LittleEndian.Uint32(buf[0:4])
	df.tailPageNumber = binary.LittleEndian.Uint32(buf[4:8])
	df.pageCount = binary.LittleEndian.Uint32(buf[8:12])
	return nil
}

func (df *DiskFile) writeHeaderLocked() error {
	buf := make([]byte, fileHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], df.headPageNumber)
	binary.LittleEndian.PutUint32(buf[4:8], df.tailPageNumber)
	binary.LittleEndian.PutUint32(buf[8:12], df.pageCount)
	_, err := df.f.WriteAt(buf, 0)
	return err
}

func (df *DiskFile) offsetOf(pageNo uint32) int64 {
	return int64(fileHeaderSize) + (int64(pageNo)-1)*int64(page.Size)
}

// AllocatePage creates a new page with a fresh page number, links it onto
// the end of the used-page chain, and persists it.
func (df *DiskFile) AllocatePage() (*page.Page, error) {
	df.mu.Lock()
	defer df.mu.Unlock()

	newNo := df.pageCount + 1
	buf := make([]byte, page.Size)
	p, err := page.New(buf, newNo)
	if err != nil {
		return nil, err
	}

	if df.tailPageNumber == page.Invalid {
		df.headPageNumber = newNo
	} else {
		tail, err := df.readPageLocked(df.tailPageNumber)
		if err != nil {
			return nil, err
		}
		tail.SetNextPageNumber(newNo)
		if err := df.writePageLocked(tail); err != nil {
			return nil, err
		}
	}
	df.tailPageNumber = newNo
	df.pageCount = newNo

	if err := df.writePageLocked(p); err != nil {
		return nil, err
	}
	if err := df.writeHeaderLocked(); err != nil {
		return nil, err
	}
	return p, nil
}

// ReadPage fetches a page by number.
func (df *DiskFile) ReadPage(pageNo uint32) (*page.Page, error) {
	df.mu.Lock()
	defer df.mu.Unlock()
	return df.readPageLocked(pageNo)
}

func (df *DiskFile) readPageLocked(pageNo uint32) (*page.Page, error) {
	buf := make([]byte, page.Size)
	if _, err := df.f.ReadAt(buf, df.offsetOf(pageNo)); err != nil && err != io.EOF {
		return nil, fmt.Errorf("file: read page %d: %w", pageNo, err)
	}
	return page.Wrap(buf)
}

// WritePage persists a page in place.
func (df *DiskFile) WritePage(p *page.Page) error {
	df.mu.Lock()
	defer df.mu.Unlock()
	return df.writePageLocked(p)
}

func (df *DiskFile) writePageLocked(p *page.Page) error {
	if _, err := df.f.WriteAt(p.Bytes(), df.offsetOf(p.PageNumber())); err != nil {
		return fmt.Errorf("file: write page %d: %w", p.PageNumber(), err)
	}
	return nil
}

// DeletePage marks the page free and unlinks it from the used-page chain.
// Space is not reclaimed in the backing OS file; freed page numbers are
// never reused by AllocatePage.
func (df *DiskFile) DeletePage(pageNo uint32) error {
	df.mu.Lock()
	defer df.mu.Unlock()

	var prev uint32 = page.Invalid
	cur := df.headPageNumber
	for cur != page.Invalid {
		p, err := df.readPageLocked(cur)
		if err != nil {
			return err
		}
		if cur == pageNo {
			next := p.NextPageNumber()
			if prev == page.Invalid {
				df.headPageNumber = next
			} else {
				prevPage, err := df.readPageLocked(prev)
				if err != nil {
					return err
				}
				prevPage.SetNextPageNumber(next)
				if err := df.writePageLocked(prevPage); err != nil {
					return err
				}
			}
			if df.tailPageNumber == pageNo {
				df.tailPageNumber = prev
			}

			freed, err := page.New(make([]byte, page.Size), page.Invalid)
			if err != nil {
				return err
			}
			// Freed pages carry page number 0 on disk, so write at the
			// vacated page's offset explicitly rather than via
			// writePageLocked (which addresses by PageNumber()).
			if _, err := df.f.WriteAt(freed.Bytes(), df.offsetOf(pageNo)); err != nil {
				return err
			}
			return df.writeHeaderLocked()
		}
		prev = cur
		cur = p.NextPageNumber()
	}
	return fmt.Errorf("file: delete page %d: not found in chain", pageNo)
}

// Filename returns the stable absolute path used as this file's identity
// for buffer-pool hashing.
func (df *DiskFile) Filename() string { return df.path }

// PageCount returns the number of pages ever allocated to this file
// (including any since unlinked by DeletePage). Join operators use it to
// pick the smaller input as the build side without a full page scan.
func (df *DiskFile) PageCount() uint32 {
	df.mu.Lock()
	defer df.mu.Unlock()
	return df.pageCount
}

// Close releases the underlying OS file handle.
func (df *DiskFile) Close() error {
	df.mu.Lock()
	defer df.mu.Unlock()
	return df.f.Close()
}

// Remove closes and deletes the backing OS file; used to clean up
// temporary Grace hash join spill files.
func (df *DiskFile) Remove() error {
	if err := df.Close(); err != nil {
		return err
	}
	return os.Remove(df.path)
}

// diskIterator walks a DiskFile's used-page chain.
type diskIterator struct {
	df   *DiskFile
	next uint32
	done bool
}

// Begin returns an iterator over the file's used pages in chain order.
func (df *DiskFile) Begin() Iterator {
	df.mu.Lock()
	head := df.headPageNumber
	df.mu.Unlock()
	return &diskIterator{df: df, next: head}
}

func (it *diskIterator) Next() (*page.Page, bool) {
	if it.done || it.next == page.Invalid {
		return nil, false
	}
	p, err := it.df.ReadPage(it.next)
	if err != nil {
		it.done = true
		return nil, false
	}
	it.next = p.NextPageNumber()
	return p, true
}
