package heap

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MartrixG/pagestore/internal/bufferpool"
	"github.com/MartrixG/pagestore/internal/catalog"
	"github.com/MartrixG/pagestore/internal/file"
	"github.com/MartrixG/pagestore/internal/page"
)

func newTestHeap(t *testing.T, name string, capacity int) (*file.DiskFile, *bufferpool.Pool) {
	t.Helper()
	dir := t.TempDir()
	f, err := file.Open(filepath.Join(dir, name))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f, bufferpool.New(capacity)
}

func TestInsertTupleAllocatesFirstPageLazily(t *testing.T) {
	f, bp := newTestHeap(t, "t.db", 4)

	rid, err := InsertTuple("1 alice", f, bp)
	require.NoError(t, err)
	require.Equal(t, uint32(1), rid.PageNumber)
}

func TestInsertTupleSpillsToNewPageWhenFull(t *testing.T) {
	f, bp := newTestHeap(t, "t.db", 4)

	// Fill the first page's data region exactly, leaving no room for a
	// second slot, so the next insert must allocate page 2.
	big := make([]byte, page.DataSize-6)
	for i := range big {
		big[i] = 'x'
	}
	_, err := InsertTuple(string(big), f, bp)
	require.NoError(t, err)

	rid, err := InsertTuple("second row", f, bp)
	require.NoError(t, err)
	require.Equal(t, uint32(2), rid.PageNumber)
}

func TestInsertAndScanRoundTrip(t *testing.T) {
	f, bp := newTestHeap(t, "t.db", 4)

	tuples := []string{"1 alice", "2 bob", "3 carol"}
	for _, tup := range tuples {
		_, err := InsertTuple(tup, f, bp)
		require.NoError(t, err)
	}

	var got []string
	require.NoError(t, Scan(f, bp, func(_ page.RecordId, tuple string) error {
		got = append(got, tuple)
		return nil
	}))
	require.ElementsMatch(t, tuples, got)
}

func TestDeleteTupleRemovesRow(t *testing.T) {
	f, bp := newTestHeap(t, "t.db", 4)

	rid, err := InsertTuple("1 alice", f, bp)
	require.NoError(t, err)
	_, err = InsertTuple("2 bob", f, bp)
	require.NoError(t, err)

	require.NoError(t, DeleteTuple(rid, f, bp))

	var got []string
	require.NoError(t, Scan(f, bp, func(_ page.RecordId, tuple string) error {
		got = append(got, tuple)
		return nil
	}))
	require.Equal(t, []string{"2 bob"}, got)
}

func TestPrintRendersSchemaAndRows(t *testing.T) {
	f, bp := newTestHeap(t, "t.db", 4)
	_, err := InsertTuple("1 alice", f, bp)
	require.NoError(t, err)

	schema, err := catalog.FromSQLStatement("CREATE TABLE L (id INT, name VARCHAR(10))")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Print(&buf, schema, f, bp))
	require.Contains(t, buf.String(), "alice")
	require.Contains(t, buf.String(), "table name: L")
}
