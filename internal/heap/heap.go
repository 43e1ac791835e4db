// Package heap implements the record-level heap-file operations that sit
// directly on top of the buffer pool: tuple insert/delete and the
// page-at-a-time scan used by printing and by the join operators.
package heap

import (
	"errors"
	"fmt"

	"github.com/MartrixG/pagestore/internal/bufferpool"
	"github.com/MartrixG/pagestore/internal/file"
	"github.com/MartrixG/pagestore/internal/page"
)

// InsertTuple scans f's existing pages looking for room for tuple; if none
// has space, a new page is allocated. It always returns the inserted
// record's RecordId on success.
func InsertTuple(tuple string, f file.File, bp *bufferpool.Pool) (page.RecordId, error) {
	data := []byte(tuple)

	it := f.Begin()
	for {
		p, ok := it.Next()
		if !ok {
			break
		}
		pageNo := p.PageNumber()
		buffered, err := bp.ReadPage(f, pageNo)
		if err != nil {
			return page.RecordId{}, err
		}

		rid, err := buffered.InsertRecord(data)
		if err == nil {
			if err := bp.UnpinPage(f, pageNo, true); err != nil {
				return page.RecordId{}, err
			}
			return rid, nil
		}

		var spaceErr *page.InsufficientSpaceErr
		if errors.As(err, &spaceErr) {
			if unpinErr := bp.UnpinPage(f, pageNo, false); unpinErr != nil {
				return page.RecordId{}, unpinErr
			}
			continue
		}
		return page.RecordId{}, err
	}

	pageNo, buffered, err := bp.AllocPage(f)
	if err != nil {
		return page.RecordId{}, fmt.Errorf("heap: insert tuple: %w", err)
	}
	rid, err := buffered.InsertRecord(data)
	if err != nil {
		_ = bp.UnpinPage(f, pageNo, false)
		return page.RecordId{}, err
	}
	if err := bp.UnpinPage(f, pageNo, true); err != nil {
		return page.RecordId{}, err
	}
	return rid, nil
}

// DeleteTuple removes the record identified by rid from f via the pool.
func DeleteTuple(rid page.RecordId, f file.File, bp *bufferpool.Pool) error {
	p, err := bp.ReadPage(f, rid.PageNumber)
	if err != nil {
		return err
	}
	if err := p.DeleteRecord(rid); err != nil {
		_ = bp.UnpinPage(f, rid.PageNumber, false)
		return err
	}
	return bp.UnpinPage(f, rid.PageNumber, true)
}

// VisitFunc is called once per used record encountered by Scan.
type VisitFunc func(rid page.RecordId, tuple string) error

// Scan visits every used record of every used page of f, via the buffer
// pool, in file-chain then slot order.
func Scan(f file.File, bp *bufferpool.Pool, visit VisitFunc) error {
	it := f.Begin()
	for {
		p, ok := it.Next()
		if !ok {
			return nil
		}
		pageNo := p.PageNumber()
		buffered, err := bp.ReadPage(f, pageNo)
		if err != nil {
			return err
		}

		pit := buffered.Begin()
		for {
			rid, ok := pit.Next()
			if !ok {
				break
			}
			data, err := buffered.GetRecord(rid)
			if err != nil {
				_ = bp.UnpinPage(f, pageNo, false)
				return err
			}
			if err := visit(rid, string(data)); err != nil {
				_ = bp.UnpinPage(f, pageNo, false)
				return err
			}
		}
		if err := bp.UnpinPage(f, pageNo, false); err != nil {
			return err
		}
	}
}
