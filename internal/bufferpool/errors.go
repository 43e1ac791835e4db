package bufferpool

import (
	"errors"
	"fmt"
)

// ErrBufferExceeded is raised by allocBuf when every frame is pinned; the
// caller must unpin something before retrying.
var ErrBufferExceeded = errors.New("bufferpool: all frames are pinned")

// ErrPageNotPinned is raised by UnpinPage on a page with a zero pin count.
var ErrPageNotPinned = errors.New("bufferpool: page is not pinned")

// ErrPagePinned is raised by FlushFile when a frame belonging to the
// target file is still pinned.
var ErrPagePinned = errors.New("bufferpool: page is pinned")

// BadBufferErr is raised by FlushFile when a frame claims to belong to the
// target file but is not valid.
type BadBufferErr struct {
	Frame int
	Dirty bool
	Valid bool
	Ref   bool
}

func (e *BadBufferErr) Error() string {
	return fmt.Sprintf("bufferpool: bad buffer at frame %d (dirty=%v valid=%v ref=%v)",
		e.Frame, e.Dirty, e.Valid, e.Ref)
}
