// Package join implements the three equi-join operators that exercise the
// buffer manager under different memory budgets: OnePassJoin,
// NestedLoopBlockHashJoin, and GraceHashJoin. All three compute the same
// equi-join of two heap-file tables on their single shared attribute.
package join

import (
	"fmt"

	"github.com/MartrixG/pagestore/internal/bufferpool"
	"github.com/MartrixG/pagestore/internal/catalog"
	"github.com/MartrixG/pagestore/internal/file"
	"github.com/MartrixG/pagestore/internal/heap"
	"github.com/MartrixG/pagestore/internal/page"
)

// Stats reports what an operator did, mirroring the counters the original
// join operators expose for diagnostics.
type Stats struct {
	NumResultTuples int
	NumUsedBufPages int
	NumIOs          int
	IsComplete      bool
}

// pageCounter is implemented by file.File backends (DiskFile included)
// that can report their page count without a full scan.
type pageCounter interface {
	PageCount() uint32
}

func countPages(f file.File) int {
	if pc, ok := f.(pageCounter); ok {
		return int(pc.PageCount())
	}
	n := 0
	it := f.Begin()
	for {
		if _, ok := it.Next(); !ok {
			break
		}
		n++
	}
	return n
}

// base holds the inputs common to every join operator, already resolved
// into build (smaller) / probe (larger) roles and the shared join key.
type base struct {
	buildFile   file.File
	buildSchema *catalog.TableSchema
	probeFile   file.File
	probeSchema *catalog.TableSchema

	resultSchema *catalog.TableSchema

	buildKeyIdx int
	probeKeyIdx int
}

// newBase resolves the join key, picks the smaller input as the build
// side (swapping left/right if needed), and derives the result schema as
// build-attributes-then-probe-attributes, matching the order operators
// register with the catalog.
func newBase(left, right file.File, leftSchema, rightSchema *catalog.TableSchema) (*base, error) {
	joinKey, err := catalog.SharedAttribute(leftSchema, rightSchema)
	if err != nil {
		return nil, err
	}

	// The smaller input is the build side; ties favor the left input, so
	// only swap when left is strictly larger.
	buildFile, buildSchema := left, leftSchema
	probeFile, probeSchema := right, rightSchema
	if countPages(left) > countPages(right) {
		buildFile, buildSchema = right, rightSchema
		probeFile, probeSchema = left, leftSchema
	}

	resultSchema, err := catalog.ResultSchema(buildSchema, probeSchema)
	if err != nil {
		return nil, err
	}

	buildKeyIdx, err := buildSchema.AttrIndex(joinKey)
	if err != nil {
		return nil, err
	}
	probeKeyIdx, err := probeSchema.AttrIndex(joinKey)
	if err != nil {
		return nil, err
	}

	return &base{
		buildFile:    buildFile,
		buildSchema:  buildSchema,
		probeFile:    probeFile,
		probeSchema:  probeSchema,
		resultSchema: resultSchema,
		buildKeyIdx:  buildKeyIdx,
		probeKeyIdx:  probeKeyIdx,
	}, nil
}

// nonKeyFields returns every field of values except the one at keyIdx, in
// order, matching the result schema's attribute concatenation.
func nonKeyFields(values []string, keyIdx int) []string {
	out := make([]string, 0, len(values)-1)
	for i, v := range values {
		if i == keyIdx {
			continue
		}
		out = append(out, v)
	}
	return out
}

// buildHashTable scans every record of f via bp and groups the non-key
// fields of each tuple under its join-key value. Multiple build rows may
// share a key, so each bucket is a slice.
func buildHashTable(f file.File, bp *bufferpool.Pool, keyIdx int) (map[string][][]string, int, error) {
	table := make(map[string][][]string)
	pages := 0
	seen := make(map[uint32]struct{})
	err := heap.Scan(f, bp, func(rid page.RecordId, tuple string) error {
		if _, ok := seen[rid.PageNumber]; !ok {
			seen[rid.PageNumber] = struct{}{}
			pages++
		}
		fields := catalog.DecodeTuple(tuple)
		if keyIdx >= len(fields) {
			return fmt.Errorf("join: tuple %q missing join-key field %d", tuple, keyIdx)
		}
		key := fields[keyIdx]
		table[key] = append(table[key], nonKeyFields(fields, keyIdx))
		return nil
	})
	return table, pages, err
}

// probeAndEmit scans f, looks up each tuple's join key in table, and
// writes one result tuple per match into resultFile.
func probeAndEmit(
	f file.File, bp *bufferpool.Pool, keyIdx int, table map[string][][]string,
	resultFile file.File, stats *Stats,
) error {
	pages := 0
	seen := make(map[uint32]struct{})
	err := heap.Scan(f, bp, func(rid page.RecordId, tuple string) error {
		if _, ok := seen[rid.PageNumber]; !ok {
			seen[rid.PageNumber] = struct{}{}
			pages++
		}
		fields := catalog.DecodeTuple(tuple)
		if keyIdx >= len(fields) {
			return fmt.Errorf("join: tuple %q missing join-key field %d", tuple, keyIdx)
		}
		key := fields[keyIdx]
		matches, ok := table[key]
		if !ok {
			return nil
		}
		probeNonKey := nonKeyFields(fields, keyIdx)
		for _, buildNonKey := range matches {
			result := catalog.EncodeTuple(append(append([]string{}, buildNonKey...), probeNonKey...))
			if _, err := heap.InsertTuple(result, resultFile, bp); err != nil {
				return err
			}
			stats.NumResultTuples++
		}
		return nil
	})
	stats.NumIOs += pages
	return err
}
