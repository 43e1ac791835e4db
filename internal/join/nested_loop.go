package join

import (
	"fmt"

	"github.com/MartrixG/pagestore/internal/bufferpool"
	"github.com/MartrixG/pagestore/internal/catalog"
	"github.com/MartrixG/pagestore/internal/file"
)

// NestedLoopBlockHashJoin computes the equi-join of left and right under a
// page budget: the build side is partitioned into chunks of budget-1
// pages, and for each chunk the in-memory hash table is built once and
// probed against the entire probe side before being discarded.
func NestedLoopBlockHashJoin(
	resultFile file.File,
	bp *bufferpool.Pool,
	left, right file.File,
	leftSchema, rightSchema *catalog.TableSchema,
	cat *catalog.Catalog,
	budget int,
) (Stats, error) {
	chunkSize := budget - 1
	if chunkSize < 1 {
		return Stats{}, fmt.Errorf("join: nested-loop block hash join needs at least 2 buffer pages, got %d", budget)
	}

	b, err := newBase(left, right, leftSchema, rightSchema)
	if err != nil {
		return Stats{}, err
	}
	cat.AddTableSchema(b.resultSchema, b.resultSchema.Name)

	var stats Stats
	it := b.buildFile.Begin()
	for {
		table := make(map[string][][]string)
		pagesInChunk := 0

		for pagesInChunk < chunkSize {
			p, ok := it.Next()
			if !ok {
				break
			}
			pageNo := p.PageNumber()
			buffered, err := bp.ReadPage(b.buildFile, pageNo)
			if err != nil {
				return Stats{}, err
			}

			pit := buffered.Begin()
			for {
				rid, ok := pit.Next()
				if !ok {
					break
				}
				data, err := buffered.GetRecord(rid)
				if err != nil {
					_ = bp.UnpinPage(b.buildFile, pageNo, false)
					return Stats{}, err
				}
				fields := catalog.DecodeTuple(string(data))
				if b.buildKeyIdx >= len(fields) {
					_ = bp.UnpinPage(b.buildFile, pageNo, false)
					return Stats{}, fmt.Errorf("join: tuple %q missing join-key field %d", data, b.buildKeyIdx)
				}
				key := fields[b.buildKeyIdx]
				table[key] = append(table[key], nonKeyFields(fields, b.buildKeyIdx))
			}

			if err := bp.UnpinPage(b.buildFile, pageNo, false); err != nil {
				return Stats{}, err
			}
			pagesInChunk++
			stats.NumUsedBufPages++
			stats.NumIOs++
		}
		if pagesInChunk == 0 {
			break
		}

		if err := probeAndEmit(b.probeFile, bp, b.probeKeyIdx, table, resultFile, &stats); err != nil {
			return Stats{}, err
		}
	}

	stats.IsComplete = true
	return stats, nil
}
