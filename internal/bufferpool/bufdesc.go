package bufferpool

import (
	"go.uber.org/atomic"

	"github.com/MartrixG/pagestore/internal/file"
)

// BufDesc is the per-frame descriptor the clock algorithm sweeps over.
// Fields are atomic so a concurrent diagnostic reader never needs to take
// the pool's lock; mutation is still only ever done by the pool under its
// own mutex.
type BufDesc struct {
	frameNo int

	f       file.File
	fileKey string
	pageNo  uint32

	pinCount *atomic.Int32
	dirty    *atomic.Bool
	valid    *atomic.Bool
	refBit   *atomic.Bool
}

func newBufDesc(frameNo int) *BufDesc {
	return &BufDesc{
		frameNo:  frameNo,
		pinCount: atomic.NewInt32(0),
		dirty:    atomic.NewBool(false),
		valid:    atomic.NewBool(false),
		refBit:   atomic.NewBool(false),
	}
}

// set installs (f, pageNo) into this descriptor as a freshly-pinned,
// recently-used, clean frame.
func (d *BufDesc) set(f file.File, pageNo uint32) {
	d.f = f
	d.fileKey = f.Filename()
	d.pageNo = pageNo
	d.valid.Store(true)
	d.pinCount.Store(1)
	d.refBit.Store(true)
	d.dirty.Store(false)
}

// clear resets the descriptor to the free state.
func (d *BufDesc) clear() {
	d.f = nil
	d.fileKey = ""
	d.pageNo = 0
	d.valid.Store(false)
	d.pinCount.Store(0)
	d.refBit.Store(false)
	d.dirty.Store(false)
}
