package join

import (
	"fmt"
	"hash/fnv"

	"go.uber.org/multierr"

	"github.com/MartrixG/pagestore/internal/bufferpool"
	"github.com/MartrixG/pagestore/internal/catalog"
	"github.com/MartrixG/pagestore/internal/file"
	"github.com/MartrixG/pagestore/internal/heap"
	"github.com/MartrixG/pagestore/internal/page"
)

func hashKey(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32()
}

// GraceHashJoin computes the equi-join of left and right by first
// partitioning both sides into numBuckets (derived from budget) temporary
// files keyed on hash(join key) mod numBuckets, then running an in-memory
// one-pass join over each corresponding bucket pair. tempDir selects where
// spill files are created; empty uses the OS default temp directory.
func GraceHashJoin(
	resultFile file.File,
	bp *bufferpool.Pool,
	left, right file.File,
	leftSchema, rightSchema *catalog.TableSchema,
	cat *catalog.Catalog,
	budget int,
	tempDir string,
) (Stats, error) {
	numBuckets := budget - 1
	if numBuckets < 1 {
		numBuckets = 1
	}

	b, err := newBase(left, right, leftSchema, rightSchema)
	if err != nil {
		return Stats{}, err
	}
	cat.AddTableSchema(b.resultSchema, b.resultSchema.Name)

	buildBuckets := make([]*file.DiskFile, numBuckets)
	probeBuckets := make([]*file.DiskFile, numBuckets)
	defer func() {
		for _, bucket := range buildBuckets {
			if bucket != nil {
				_ = bucket.Remove()
			}
		}
		for _, bucket := range probeBuckets {
			if bucket != nil {
				_ = bucket.Remove()
			}
		}
	}()
	for i := 0; i < numBuckets; i++ {
		buildBuckets[i], err = file.OpenTemp(tempDir, "pagestore-grace-build-*")
		if err != nil {
			return Stats{}, fmt.Errorf("join: grace hash join: %w", err)
		}
		probeBuckets[i], err = file.OpenTemp(tempDir, "pagestore-grace-probe-*")
		if err != nil {
			return Stats{}, fmt.Errorf("join: grace hash join: %w", err)
		}
	}

	buildPages, err := partitionIntoBuckets(b.buildFile, bp, b.buildKeyIdx, numBuckets, buildBuckets)
	if err != nil {
		return Stats{}, err
	}
	probePages, err := partitionIntoBuckets(b.probeFile, bp, b.probeKeyIdx, numBuckets, probeBuckets)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{NumIOs: buildPages + probePages}
	for i := 0; i < numBuckets; i++ {
		table, pages, err := buildHashTable(buildBuckets[i], bp, b.buildKeyIdx)
		if err != nil {
			return Stats{}, err
		}
		stats.NumIOs += pages
		stats.NumUsedBufPages++
		if err := probeAndEmit(probeBuckets[i], bp, b.probeKeyIdx, table, resultFile, &stats); err != nil {
			return Stats{}, err
		}
	}

	stats.IsComplete = true
	return stats, nil
}

// partitionIntoBuckets scans src and spills each tuple into
// buckets[hash(key) % numBuckets], returning the number of distinct
// source pages visited.
func partitionIntoBuckets(
	src file.File, bp *bufferpool.Pool, keyIdx int, numBuckets int, buckets []*file.DiskFile,
) (int, error) {
	pages := 0
	seen := make(map[uint32]struct{})
	var errs error
	err := heap.Scan(src, bp, func(rid page.RecordId, tuple string) error {
		if _, ok := seen[rid.PageNumber]; !ok {
			seen[rid.PageNumber] = struct{}{}
			pages++
		}
		fields := catalog.DecodeTuple(tuple)
		if keyIdx >= len(fields) {
			return fmt.Errorf("join: tuple %q missing join-key field %d", tuple, keyIdx)
		}
		idx := int(hashKey(fields[keyIdx]) % uint32(numBuckets))
		if _, err := heap.InsertTuple(tuple, buckets[idx], bp); err != nil {
			errs = multierr.Append(errs, err)
		}
		return nil
	})
	if err != nil {
		return pages, err
	}
	return pages, errs
}
