package heap

import (
	"fmt"
	"io"
	"strings"

	"github.com/MartrixG/pagestore/internal/bufferpool"
	"github.com/MartrixG/pagestore/internal/catalog"
	"github.com/MartrixG/pagestore/internal/file"
	"github.com/MartrixG/pagestore/internal/page"
)

// Print renders every tuple of f as a table, flushing the file first so
// the dump reflects whatever is currently on disk.
func Print(w io.Writer, schema *catalog.TableSchema, f file.File, bp *bufferpool.Pool) error {
	if err := bp.FlushFile(f); err != nil {
		return err
	}

	names := schema.AttrNames()
	header := "+"
	namesLine := "|\t"
	for range names {
		namesLine += "\t|\t"
		header += "---------------+"
	}
	fmt.Fprintln(w, "------------------------------")
	fmt.Fprintln(w, "table name:", schema.Name)
	fmt.Fprintln(w, header)
	fmt.Fprintln(w, "|\t"+strings.Join(names, "\t|\t")+"\t|")
	fmt.Fprintln(w, header)

	return Scan(f, bp, func(_ page.RecordId, tuple string) error {
		values := catalog.DecodeTuple(tuple)
		fmt.Fprintln(w, "|\t"+strings.Join(values, "\t|\t")+"\t|")
		return nil
	})
}
