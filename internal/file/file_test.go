package file

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MartrixG/pagestore/internal/page"
)

func newTestFile(t *testing.T) *DiskFile {
	t.Helper()
	dir := t.TempDir()
	df, err := Open(filepath.Join(dir, "table.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = df.Close() })
	return df
}

func TestAllocateReadWriteRoundTrip(t *testing.T) {
	df := newTestFile(t)

	p1, err := df.AllocatePage()
	require.NoError(t, err)
	require.Equal(t, uint32(1), p1.PageNumber())

	rid, err := p1.InsertRecord([]byte("payload"))
	require.NoError(t, err)
	require.NoError(t, df.WritePage(p1))

	reread, err := df.ReadPage(1)
	require.NoError(t, err)
	data, err := reread.GetRecord(rid)
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), data)
}

func TestAllocatePageNumbersAreSequentialStartingAt1(t *testing.T) {
	df := newTestFile(t)

	p1, err := df.AllocatePage()
	require.NoError(t, err)
	p2, err := df.AllocatePage()
	require.NoError(t, err)
	p3, err := df.AllocatePage()
	require.NoError(t, err)

	require.Equal(t, uint32(1), p1.PageNumber())
	require.Equal(t, uint32(2), p2.PageNumber())
	require.Equal(t, uint32(3), p3.PageNumber())
}

func TestIterationVisitsUsedPagesInChainOrder(t *testing.T) {
	df := newTestFile(t)
	var want []uint32
	for i := 0; i < 4; i++ {
		p, err := df.AllocatePage()
		require.NoError(t, err)
		want = append(want, p.PageNumber())
	}

	var got []uint32
	it := df.Begin()
	for {
		p, ok := it.Next()
		if !ok {
			break
		}
		got = append(got, p.PageNumber())
	}
	require.Equal(t, want, got)
}

func TestDeletePageUnlinksFromChain(t *testing.T) {
	df := newTestFile(t)
	p1, err := df.AllocatePage()
	require.NoError(t, err)
	p2, err := df.AllocatePage()
	require.NoError(t, err)
	p3, err := df.AllocatePage()
	require.NoError(t, err)

	require.NoError(t, df.DeletePage(p2.PageNumber()))

	var got []uint32
	it := df.Begin()
	for {
		p, ok := it.Next()
		if !ok {
			break
		}
		got = append(got, p.PageNumber())
	}
	require.Equal(t, []uint32{p1.PageNumber(), p3.PageNumber()}, got)

	reread, err := df.ReadPage(p2.PageNumber())
	require.NoError(t, err)
	require.Equal(t, page.Invalid, reread.PageNumber())
}

func TestFilenameIsStablePath(t *testing.T) {
	df := newTestFile(t)
	require.NotEmpty(t, df.Filename())
}

func TestReopenPreservesChain(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "table.db")

	df, err := Open(path)
	require.NoError(t, err)
	p1, err := df.AllocatePage()
	require.NoError(t, err)
	_, err = p1.InsertRecord([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, df.WritePage(p1))
	require.NoError(t, df.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	it := reopened.Begin()
	p, ok := it.Next()
	require.True(t, ok)
	require.Equal(t, uint32(1), p.PageNumber())
}
