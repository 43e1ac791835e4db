// Package page implements the fixed-size slotted page container: a byte
// buffer with an internal slot directory that stores variable-length
// records and supports insert/update/delete with in-page compaction.
package page

import (
	"fmt"

	"github.com/MartrixG/pagestore/pkg/bx"
)

// Size is the fixed page size in bytes. If this is changed, database files
// created with a different page size will be unreadable by the resulting
// binaries.
const Size = 8192

// headerSize is the on-disk size of PageHeader: four u16 fields and two
// u32 fields (2+2+2+2+4+4).
const headerSize = 16

// slotSize is the on-disk size of one PageSlot entry: used (1 byte, padded
// to 2), item_offset (u16), item_length (u16).
const slotSize = 6

// DataSize is the number of bytes available for the slot directory and
// record payloads.
const DataSize = Size - headerSize

// Invalid is the page number meaning "free/invalid".
const Invalid uint32 = 0

// InvalidSlot is the reserved, never-valid slot number; directory slot
// numbers are 1-based externally.
const InvalidSlot uint16 = 0

// RecordId identifies a record by the page it lives on and its slot number.
type RecordId struct {
	PageNumber uint32
	SlotNumber uint16
}

func (r RecordId) String() string {
	return fmt.Sprintf("(%d,%d)", r.PageNumber, r.SlotNumber)
}

// InsufficientSpaceErr is raised when a page cannot hold a record.
type InsufficientSpaceErr struct {
	PageNumber uint32
	Required   int
	Available  int
}

func (e *InsufficientSpaceErr) Error() string {
	return fmt.Sprintf("page %d: insufficient space: required %d, available %d",
		e.PageNumber, e.Required, e.Available)
}

// InvalidRecordErr is raised when a RecordId's page number doesn't match or
// its slot is unused.
type InvalidRecordErr struct {
	Rid        RecordId
	PageNumber uint32
}

func (e *InvalidRecordErr) Error() string {
	return fmt.Sprintf("record %s invalid on page %d", e.Rid, e.PageNumber)
}

// InvalidSlotErr is raised when a slot number is zero or out of range.
type InvalidSlotErr struct {
	PageNumber uint32
	SlotNumber uint16
}

func (e *InvalidSlotErr) Error() string {
	return fmt.Sprintf("page %d: invalid slot %d", e.PageNumber, e.SlotNumber)
}

// SlotInUseErr is raised when insertRecordInSlot targets an already-used
// slot; this indicates an internal invariant violation and is considered
// fatal by callers.
type SlotInUseErr struct {
	PageNumber uint32
	SlotNumber uint16
}

func (e *SlotInUseErr) Error() string {
	return fmt.Sprintf("page %d: slot %d already in use", e.PageNumber, e.SlotNumber)
}

// header is the fixed-layout prefix of a page, read and written directly
// against the backing buffer (little-endian).
//
//	offset 0: free_space_lower_bound (u16)
//	offset 2: free_space_upper_bound (u16)
//	offset 4: num_slots              (u16)
//	offset 6: num_free_slots         (u16)
//	offset 8: current_page_number    (u32)
//	offset 12: next_page_number      (u32)
type header struct{}

// Page is a fixed-size, owned byte buffer with typed accessors for the
// header and slot directory. Records returned to callers are copies; no
// caller may hold a reference across an unpin of the frame backing this
// page.
//
// Page is not safe for concurrent use without external synchronization.
type Page struct {
	buf []byte
}

// New wraps buf (which must be exactly Size bytes), zeroes it, and
// initializes its header as an empty page with page number pageNumber.
func New(buf []byte, pageNumber uint32) (*Page, error) {
	if len(buf) != Size {
		return nil, fmt.Errorf("page: buffer must be exactly %d bytes, got %d", Size, len(buf))
	}
	p := &Page{buf: buf}
	p.initialize(pageNumber)
	return p, nil
}

// Wrap adapts an existing, already-initialized Size-byte buffer (e.g. read
// from disk) into a Page without touching its contents.
func Wrap(buf []byte) (*Page, error) {
	if len(buf) != Size {
		return nil, fmt.Errorf("page: buffer must be exactly %d bytes, got %d", Size, len(buf))
	}
	return &Page{buf: buf}, nil
}

func (p *Page) initialize(pageNumber uint32) {
	for i := range p.buf {
		p.buf[i] = 0
	}
	p.setLower(0)
	p.setUpper(DataSize)
	p.setNumSlots(0)
	p.setNumFreeSlots(0)
	p.setPageNumber(pageNumber)
	p.setNextPageNumber(Invalid)
}

// --- header accessors ---

func (p *Page) lower() uint16            { return bx.U16(p.buf[0:2]) }
func (p *Page) setLower(v uint16)        { bx.PutU16(p.buf[0:2], v) }
func (p *Page) upper() uint16            { return bx.U16(p.buf[2:4]) }
func (p *Page) setUpper(v uint16)        { bx.PutU16(p.buf[2:4], v) }
func (p *Page) numSlots() uint16         { return bx.U16(p.buf[4:6]) }
func (p *Page) setNumSlots(v uint16)     { bx.PutU16(p.buf[4:6], v) }
func (p *Page) numFreeSlots() uint16     { return bx.U16(p.buf[6:8]) }
func (p *Page) setNumFreeSlots(v uint16) { bx.PutU16(p.buf[6:8], v) }
func (p *Page) setPageNumber(v uint32)   { bx.PutU32(p.buf[8:12], v) }
func (p *Page) setNextPageNumber(v uint32) {
	bx.PutU32(p.buf[12:16], v)
}

// PageNumber returns this page's number in its file. Invalid (0) means
// free/uninitialized.
func (p *Page) PageNumber() uint32 { return bx.U32(p.buf[8:12]) }

// NextPageNumber returns the number of the next used page in the file.
func (p *Page) NextPageNumber() uint32 { return bx.U32(p.buf[12:16]) }

// SetNextPageNumber links this page to the next used page in its file.
func (p *Page) SetNextPageNumber(next uint32) { p.setNextPageNumber(next) }

// IsUsed reports whether the page is in use (vs. free).
func (p *Page) IsUsed() bool { return p.PageNumber() != Invalid }

// NumSlots returns the directory length, including tombstoned entries.
func (p *Page) NumSlots() int { return int(p.numSlots()) }

// --- slot directory accessors ---
// Slot layout within the directory, 6 bytes per entry starting at headerSize:
//
//	offset+0: used (1 byte, 0/1)
//	offset+2: item_offset (u16)
//	offset+4: item_length (u16)

func (p *Page) slotOffset(slotNumber uint16) int {
	return headerSize + int(slotNumber-1)*slotSize
}

type slotView struct {
	used       bool
	itemOffset uint16
	itemLength uint16
}

func (p *Page) getSlot(slotNumber uint16) slotView {
	o := p.slotOffset(slotNumber)
	return slotView{
		used:       p.buf[o] != 0,
		itemOffset: bx.U16(p.buf[o+2 : o+4]),
		itemLength: bx.U16(p.buf[o+4 : o+6]),
	}
}

func (p *Page) putSlot(slotNumber uint16, s slotView) {
	o := p.slotOffset(slotNumber)
	if s.used {
		p.buf[o] = 1
	} else {
		p.buf[o] = 0
	}
	p.buf[o+1] = 0
	bx.PutU16(p.buf[o+2:o+4], s.itemOffset)
	bx.PutU16(p.buf[o+4:o+6], s.itemLength)
}

// dataOffset converts a data-region-relative offset into an absolute buffer
// offset (the data region, which holds both the slot directory and the
// record payloads, starts right after the header).
func (p *Page) dataOffset(itemOffset uint16) int {
	return headerSize + int(itemOffset)
}

// FreeSpace returns this page's free space in bytes: the gap between the
// slot directory's lower bound and the record area's upper bound.
func (p *Page) FreeSpace() uint16 {
	return p.upper() - p.lower()
}

// HasSpaceFor reports whether the page has enough free space to hold data,
// accounting for a new slot-directory entry if no free slot can be reused.
func (p *Page) HasSpaceFor(data []byte) bool {
	required := len(data)
	if p.numFreeSlots() == 0 {
		required += slotSize
	}
	return required <= int(p.FreeSpace())
}

// InsertRecord inserts data as a new record and returns its RecordId.
func (p *Page) InsertRecord(data []byte) (RecordId, error) {
	if !p.HasSpaceFor(data) {
		return RecordId{}, &InsufficientSpaceErr{
			PageNumber: p.PageNumber(),
			Required:   len(data),
			Available:  int(p.FreeSpace()),
		}
	}
	slotNumber := p.availableSlot()
	if err := p.insertRecordInSlot(slotNumber, data); err != nil {
		return RecordId{}, err
	}
	return RecordId{PageNumber: p.PageNumber(), SlotNumber: slotNumber}, nil
}

// availableSlot returns the slot number of an available slot, reusing an
// unused slot from the directory if one exists, else allocating a new one
// at the end of the directory. It does not mark the returned slot as used;
// callers must fill it immediately.
func (p *Page) availableSlot() uint16 {
	if p.numFreeSlots() > 0 {
		for i := uint16(1); i <= p.numSlots(); i++ {
			if !p.getSlot(i).used {
				return i
			}
		}
	}
	n := p.numSlots() + 1
	p.setNumSlots(n)
	p.setNumFreeSlots(p.numFreeSlots() + 1)
	p.setLower(n * slotSize)
	return n
}

// insertRecordInSlot writes data into slotNumber, which must not currently
// be in use and must be <= NumSlots().
func (p *Page) insertRecordInSlot(slotNumber uint16, data []byte) error {
	if slotNumber == InvalidSlot || slotNumber > p.numSlots() {
		return &InvalidSlotErr{PageNumber: p.PageNumber(), SlotNumber: slotNumber}
	}
	slot := p.getSlot(slotNumber)
	if slot.used {
		return &SlotInUseErr{PageNumber: p.PageNumber(), SlotNumber: slotNumber}
	}
	length := uint16(len(data))
	offset := p.upper() - length
	p.setUpper(offset)
	p.setNumFreeSlots(p.numFreeSlots() - 1)
	copy(p.buf[p.dataOffset(offset):p.dataOffset(offset)+int(length)], data)
	p.putSlot(slotNumber, slotView{used: true, itemOffset: offset, itemLength: length})
	return nil
}

// GetRecord returns a copy of the bytes stored for rid.
func (p *Page) GetRecord(rid RecordId) ([]byte, error) {
	if err := p.validateRecordId(rid); err != nil {
		return nil, err
	}
	slot := p.getSlot(rid.SlotNumber)
	out := make([]byte, slot.itemLength)
	copy(out, p.buf[p.dataOffset(slot.itemOffset):p.dataOffset(slot.itemOffset)+int(slot.itemLength)])
	return out, nil
}

// UpdateRecord replaces the bytes stored for rid with data, preserving
// rid's slot number. Equivalent to a delete followed by an insert into the
// same slot, with slot-array compaction suppressed so the slot number is
// never reclaimed mid-update.
func (p *Page) UpdateRecord(rid RecordId, data []byte) error {
	if err := p.validateRecordId(rid); err != nil {
		return err
	}
	slot := p.getSlot(rid.SlotNumber)
	freeAfterDelete := int(p.FreeSpace()) + int(slot.itemLength)
	if len(data) > freeAfterDelete {
		return &InsufficientSpaceErr{
			PageNumber: p.PageNumber(),
			Required:   len(data),
			Available:  freeAfterDelete,
		}
	}
	p.deleteRecord(rid, false /* allowSlotCompaction */)
	return p.insertRecordInSlot(rid.SlotNumber, data)
}

// DeleteRecord removes the record identified by rid, compacting the
// payload region and, if rid was the last slot, trimming the directory's
// trailing run of unused slots.
func (p *Page) DeleteRecord(rid RecordId) error {
	if err := p.validateRecordId(rid); err != nil {
		return err
	}
	p.deleteRecord(rid, true /* allowSlotCompaction */)
	return nil
}

func (p *Page) deleteRecord(rid RecordId, allowSlotCompaction bool) {
	slot := p.getSlot(rid.SlotNumber)

	// Zero the payload bytes.
	start := p.dataOffset(slot.itemOffset)
	for i := start; i < start+int(slot.itemLength); i++ {
		p.buf[i] = 0
	}

	// Shift every used payload whose offset is less than the deleted
	// slot's offset rightward by the deleted length, updating each
	// shifted slot's item_offset, then physically move that region.
	moveOffset := slot.itemOffset
	var moveBytes uint16
	for i := uint16(1); i <= p.numSlots(); i++ {
		other := p.getSlot(i)
		if other.used && other.itemOffset < slot.itemOffset {
			if other.itemOffset < moveOffset {
				moveOffset = other.itemOffset
			}
			moveBytes += other.itemLength
			other.itemOffset += slot.itemLength
			p.putSlot(i, other)
		}
	}
	if moveBytes > 0 {
		src := p.dataOffset(moveOffset)
		dst := p.dataOffset(moveOffset + slot.itemLength)
		copy(p.buf[dst:dst+int(moveBytes)], p.buf[src:src+int(moveBytes)])
	}
	p.setUpper(p.upper() + slot.itemLength)

	p.putSlot(rid.SlotNumber, slotView{used: false, itemOffset: 0, itemLength: 0})
	p.setNumFreeSlots(p.numFreeSlots() + 1)

	if allowSlotCompaction && rid.SlotNumber == p.numSlots() {
		toDelete := uint16(1)
		for i := uint16(1); i < p.numSlots(); i++ {
			if !p.getSlot(p.numSlots() - i).used {
				toDelete++
			} else {
				break
			}
		}
		p.setNumSlots(p.numSlots() - toDelete)
		p.setNumFreeSlots(p.numFreeSlots() - toDelete)
		p.setLower(p.lower() - slotSize*toDelete)
	}
}

func (p *Page) validateRecordId(rid RecordId) error {
	if rid.PageNumber != p.PageNumber() {
		return &InvalidRecordErr{Rid: rid, PageNumber: p.PageNumber()}
	}
	if rid.SlotNumber == InvalidSlot || rid.SlotNumber > p.numSlots() {
		return &InvalidRecordErr{Rid: rid, PageNumber: p.PageNumber()}
	}
	if !p.getSlot(rid.SlotNumber).used {
		return &InvalidRecordErr{Rid: rid, PageNumber: p.PageNumber()}
	}
	return nil
}

// Bytes returns the page's raw backing buffer, for use by the file layer
// when persisting the page. Callers must not retain it past an unpin.
func (p *Page) Bytes() []byte { return p.buf }

// NextUsedSlot returns the smallest slot number greater than after that is
// currently used, or InvalidSlot if none exists.
func (p *Page) NextUsedSlot(after uint16) uint16 {
	for i := after + 1; i <= p.numSlots(); i++ {
		if p.getSlot(i).used {
			return i
		}
	}
	return InvalidSlot
}

// DebugString renders the header fields for diagnostics.
func (p *Page) DebugString() string {
	return fmt.Sprintf(
		"page{number=%d next=%d lower=%d upper=%d slots=%d free_slots=%d free_space=%d}",
		p.PageNumber(), p.NextPageNumber(), p.lower(), p.upper(),
		p.numSlots(), p.numFreeSlots(), p.FreeSpace(),
	)
}

// Iterator yields RecordIds in ascending slot order over used slots.
type Iterator struct {
	p     *Page
	after uint16
}

// Begin returns an iterator positioned before the first record in the
// page.
func (p *Page) Begin() *Iterator { return &Iterator{p: p, after: 0} }

// Next advances the iterator and returns the next used record, or
// (RecordId{}, false) once exhausted.
func (it *Iterator) Next() (RecordId, bool) {
	next := it.p.NextUsedSlot(it.after)
	if next == InvalidSlot {
		return RecordId{}, false
	}
	it.after = next
	return RecordId{PageNumber: it.p.PageNumber(), SlotNumber: next}, true
}
