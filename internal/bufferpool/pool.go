// Package bufferpool implements the fixed-capacity buffer manager: a pool
// of page frames backed by on-disk files, using clock replacement with
// pin/unpin reference counting, dirty-bit write-back, and a
// file-and-page-number lookup index (frameIndex).
package bufferpool

import (
	"fmt"
	"log/slog"
	"sync"

	"go.uber.org/multierr"

	"github.com/MartrixG/pagestore/internal/file"
	"github.com/MartrixG/pagestore/internal/page"
)

var logDebugPrefix = "bufferpool: "

// Pool is a fixed-capacity buffer manager. All public operations are
// serialized under a single coarse mutex, matching the synchronous,
// single-threaded scheduling model this core assumes.
type Pool struct {
	mu sync.Mutex

	numBufs   int
	bufPool   []*page.Page
	descTable []*BufDesc
	index     *frameIndex
	clockHand int
}

// New creates a buffer pool with numBufs frames.
func New(numBufs int) *Pool {
	if numBufs <= 0 {
		numBufs = 1
	}
	descTable := make([]*BufDesc, numBufs)
	for i := range descTable {
		descTable[i] = newBufDesc(i)
	}
	return &Pool{
		numBufs:   numBufs,
		bufPool:   make([]*page.Page, numBufs),
		descTable: descTable,
		index:     newFrameIndex(numBufs),
		clockHand: numBufs - 1,
	}
}

func (p *Pool) advanceClock() {
	p.clockHand = (p.clockHand + 1) % p.numBufs
}

// allocBuf picks a victim frame by sweeping the clock hand. Caller must
// hold p.mu. It never returns a frame whose pin count is > 0, and fails
// with ErrBufferExceeded iff every frame is pinned at the moment it is
// called. That check is made once, up front, against the frames' actual
// pin counts rather than accumulated while sweeping: a counter that
// instead counts pinned frames as the clock hand happens to land on them
// can reach numBufs purely from ref-bit-decay revisits of the same still-
// pinned frames, long before every frame is truly pinned simultaneously,
// and falsely reject an allocation that an unpinned frame (already
// decayed earlier in the same sweep) would have satisfied on the very
// next step.
func (p *Pool) allocBuf() (int, error) {
	pinned := 0
	for _, d := range p.descTable {
		if d.pinCount.Load() > 0 {
			pinned++
		}
	}
	if pinned == p.numBufs {
		return 0, ErrBufferExceeded
	}

	for {
		p.advanceClock()
		d := p.descTable[p.clockHand]

		if !d.valid.Load() {
			return p.clockHand, nil
		}
		if d.refBit.Load() {
			d.refBit.Store(false)
			continue
		}
		if d.pinCount.Load() > 0 {
			continue
		}

		// Eligible victim: clean it out.
		if d.dirty.Load() {
			if err := d.f.WritePage(p.bufPool[p.clockHand]); err != nil {
				return 0, fmt.Errorf("bufferpool: writeback frame %d: %w", p.clockHand, err)
			}
			d.dirty.Store(false)
		}
		if err := p.index.remove(d.fileKey, d.pageNo); err != nil {
			slog.Debug(logDebugPrefix+"victim already absent from index", "frame", p.clockHand)
		}
		frame := p.clockHand
		d.clear()
		return frame, nil
	}
}

// ReadPage pins and returns the page (file, pageNo), loading it from disk
// on a miss.
func (p *Pool) ReadPage(f file.File, pageNo uint32) (*page.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := f.Filename()
	if frame, err := p.index.lookup(key, pageNo); err == nil {
		d := p.descTable[frame]
		d.pinCount.Add(1)
		d.refBit.Store(true)
		slog.Debug(logDebugPrefix+"read hit", "file", key, "page", pageNo, "frame", frame)
		return p.bufPool[frame], nil
	}

	frame, err := p.allocBuf()
	if err != nil {
		return nil, err
	}
	pg, err := f.ReadPage(pageNo)
	if err != nil {
		return nil, fmt.Errorf("bufferpool: read page %d: %w", pageNo, err)
	}
	p.bufPool[frame] = pg
	if err := p.index.insert(key, pageNo, frame); err != nil {
		return nil, err
	}
	p.descTable[frame].set(f, pageNo)
	slog.Debug(logDebugPrefix+"read miss, loaded", "file", key, "page", pageNo, "frame", frame)
	return pg, nil
}

// UnpinPage decreases a page's pin count and optionally marks it dirty.
// Unpinning a page this pool doesn't know about is tolerated: it is logged
// and ignored rather than treated as an error.
func (p *Pool) UnpinPage(f file.File, pageNo uint32, dirty bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	frame, err := p.index.lookup(f.Filename(), pageNo)
	if err != nil {
		slog.Warn(logDebugPrefix+"unpinning a page not held by the pool", "file", f.Filename(), "page", pageNo)
		return nil
	}
	d := p.descTable[frame]
	if d.pinCount.Load() <= 0 {
		return fmt.Errorf("%w: file=%s page=%d", ErrPageNotPinned, f.Filename(), pageNo)
	}
	d.pinCount.Add(-1)
	if dirty {
		d.dirty.Store(true)
	}
	return nil
}

// AllocPage asks file for a brand new page and pins it in the pool.
func (p *Pool) AllocPage(f file.File) (uint32, *page.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pg, err := f.AllocatePage()
	if err != nil {
		return 0, nil, fmt.Errorf("bufferpool: allocate page: %w", err)
	}
	frame, err := p.allocBuf()
	if err != nil {
		return 0, nil, err
	}
	p.bufPool[frame] = pg
	if err := p.index.insert(f.Filename(), pg.PageNumber(), frame); err != nil {
		return 0, nil, err
	}
	p.descTable[frame].set(f, pg.PageNumber())
	return pg.PageNumber(), pg, nil
}

// DisposePage removes a page from the pool (if present) and asks file to
// delete it on disk.
func (p *Pool) DisposePage(f file.File, pageNo uint32) error {
	p.mu.Lock()
	if frame, err := p.index.lookup(f.Filename(), pageNo); err == nil {
		_ = p.index.remove(f.Filename(), pageNo)
		p.descTable[frame].clear()
	}
	p.mu.Unlock()
	return f.DeletePage(pageNo)
}

// FlushFile writes back every dirty frame belonging to file and evicts all
// of its frames from the pool. Frames belonging to other files are
// skipped rather than rejected.
func (p *Pool) FlushFile(f file.File) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := f.Filename()
	for i, d := range p.descTable {
		if d.fileKey != key {
			continue
		}
		if !d.valid.Load() {
			return &BadBufferErr{Frame: i, Dirty: d.dirty.Load(), Valid: d.valid.Load(), Ref: d.refBit.Load()}
		}
		if d.pinCount.Load() > 0 {
			return fmt.Errorf("%w: file=%s page=%d frame=%d", ErrPagePinned, key, d.pageNo, i)
		}
		if d.dirty.Load() {
			if err := f.WritePage(p.bufPool[i]); err != nil {
				return fmt.Errorf("bufferpool: flush frame %d: %w", i, err)
			}
			d.dirty.Store(false)
		}
		_ = p.index.remove(key, d.pageNo)
		d.clear()
	}
	return nil
}

// Close flushes every dirty frame across every file still resident in the
// pool. This is the teardown policy: the pool never silently drops a
// dirty frame.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs error
	for i, d := range p.descTable {
		if d.valid.Load() && d.dirty.Load() {
			if err := d.f.WritePage(p.bufPool[i]); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("bufferpool: close flush frame %d: %w", i, err))
				continue
			}
			d.dirty.Store(false)
		}
	}
	return errs
}

// NumBufs returns the pool's fixed frame capacity.
func (p *Pool) NumBufs() int { return p.numBufs }
