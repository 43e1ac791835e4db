package join

import (
	"github.com/MartrixG/pagestore/internal/bufferpool"
	"github.com/MartrixG/pagestore/internal/catalog"
	"github.com/MartrixG/pagestore/internal/file"
)

// OnePassJoin computes the equi-join of left and right, writing results
// into resultFile and registering the result schema under cat. It
// requires enough buffer pages to hold the build side's hash table in
// memory; no page budget is enforced by this operator.
func OnePassJoin(
	resultFile file.File,
	bp *bufferpool.Pool,
	left, right file.File,
	leftSchema, rightSchema *catalog.TableSchema,
	cat *catalog.Catalog,
) (Stats, error) {
	b, err := newBase(left, right, leftSchema, rightSchema)
	if err != nil {
		return Stats{}, err
	}
	cat.AddTableSchema(b.resultSchema, b.resultSchema.Name)

	table, buildPages, err := buildHashTable(b.buildFile, bp, b.buildKeyIdx)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{NumIOs: buildPages, NumUsedBufPages: 1}
	if err := probeAndEmit(b.probeFile, bp, b.probeKeyIdx, table, resultFile, &stats); err != nil {
		return Stats{}, err
	}
	stats.IsComplete = true
	return stats, nil
}
