// Command pagestore is a REPL driving the page-and-buffer storage core
// directly: CREATE TABLE, INSERT, SELECT and JOIN statements are parsed
// locally and dispatched straight into the catalog, heap and join packages
// — there is no network hop, since this core ships no server.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/MartrixG/pagestore/internal/bufferpool"
	"github.com/MartrixG/pagestore/internal/catalog"
	"github.com/MartrixG/pagestore/internal/config"
	"github.com/MartrixG/pagestore/internal/file"
	"github.com/MartrixG/pagestore/internal/heap"
	"github.com/MartrixG/pagestore/internal/join"
)

// engine holds everything one REPL session needs: the shared buffer pool,
// the in-memory catalog, and one open DiskFile per table.
type engine struct {
	bp    *bufferpool.Pool
	cat   *catalog.Catalog
	dir   string
	files map[string]*file.DiskFile
}

func newEngine(cfg *config.Config) *engine {
	return &engine{
		bp:    bufferpool.New(cfg.BufferPool.Capacity),
		cat:   catalog.New(),
		dir:   cfg.Storage.DataDir,
		files: make(map[string]*file.DiskFile),
	}
}

func (e *engine) close() {
	for name, f := range e.files {
		if err := f.Close(); err != nil {
			slog.Warn("pagestore: close table file failed", "table", name, "err", err)
		}
	}
}

func (e *engine) tableFile(name string) (*file.DiskFile, error) {
	if f, ok := e.files[name]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("pagestore: unknown table %q", name)
}

func (e *engine) createTable(stmt string) error {
	schema, err := catalog.FromSQLStatement(stmt)
	if err != nil {
		return err
	}
	if _, exists := e.files[schema.Name]; exists {
		return fmt.Errorf("pagestore: table %q already exists", schema.Name)
	}
	f, err := file.Open(filepath.Join(e.dir, schema.Name+".db"))
	if err != nil {
		return err
	}
	e.cat.AddTableSchema(schema, schema.Name)
	e.files[schema.Name] = f
	return nil
}

func (e *engine) insert(table string, values []string) error {
	schema, err := e.cat.Lookup(table)
	if err != nil {
		return err
	}
	if len(values) != len(schema.Attrs) {
		return fmt.Errorf("pagestore: table %q expects %d values, got %d", table, len(schema.Attrs), len(values))
	}
	f, err := e.tableFile(table)
	if err != nil {
		return err
	}
	_, err = heap.InsertTuple(catalog.EncodeTuple(values), f, e.bp)
	return err
}

func (e *engine) selectAll(w *os.File, table string) error {
	schema, err := e.cat.Lookup(table)
	if err != nil {
		return err
	}
	f, err := e.tableFile(table)
	if err != nil {
		return err
	}
	return heap.Print(w, schema, f, e.bp)
}

type joinKind int

const (
	joinOnePass joinKind = iota
	joinNestedLoop
	joinGraceHash
)

func (e *engine) join(w *os.File, kind joinKind, leftName, rightName string, budget int) error {
	left, err := e.tableFile(leftName)
	if err != nil {
		return err
	}
	right, err := e.tableFile(rightName)
	if err != nil {
		return err
	}
	leftSchema, err := e.cat.Lookup(leftName)
	if err != nil {
		return err
	}
	rightSchema, err := e.cat.Lookup(rightName)
	if err != nil {
		return err
	}

	result, err := file.OpenTemp(e.dir, "pagestore-join-*")
	if err != nil {
		return err
	}
	defer func() { _ = result.Remove() }()

	var stats join.Stats
	switch kind {
	case joinOnePass:
		stats, err = join.OnePassJoin(result, e.bp, left, right, leftSchema, rightSchema, e.cat)
	case joinNestedLoop:
		stats, err = join.NestedLoopBlockHashJoin(result, e.bp, left, right, leftSchema, rightSchema, e.cat, budget)
	case joinGraceHash:
		stats, err = join.GraceHashJoin(result, e.bp, left, right, leftSchema, rightSchema, e.cat, budget, e.dir)
	default:
		return fmt.Errorf("pagestore: unknown join kind %d", kind)
	}
	if err != nil {
		return err
	}

	resultSchema, err := e.cat.Lookup("T")
	if err != nil {
		return err
	}
	if err := heap.Print(w, resultSchema, result, e.bp); err != nil {
		return err
	}
	fmt.Fprintf(w, "(%d rows, %d pages touched)\n", stats.NumResultTuples, stats.NumIOs)
	return nil
}

// dispatch parses a single ';'-terminated statement and executes it.
func (e *engine) dispatch(w *os.File, stmt string) error {
	stmt = strings.TrimSuffix(strings.TrimSpace(stmt), ";")
	upper := strings.ToUpper(stmt)

	switch {
	case strings.HasPrefix(upper, "CREATE TABLE"):
		return e.createTable(stmt)

	case strings.HasPrefix(upper, "INSERT INTO"):
		fields := strings.Fields(stmt)
		if len(fields) < 4 || strings.ToUpper(fields[3]) != "VALUES" {
			return errors.New("pagestore: expected INSERT INTO <table> VALUES v1 v2 ...")
		}
		return e.insert(fields[2], fields[4:])

	case strings.HasPrefix(upper, "SELECT * FROM"):
		fields := strings.Fields(stmt)
		if len(fields) != 4 {
			return errors.New("pagestore: expected SELECT * FROM <table>")
		}
		return e.selectAll(w, fields[3])

	case strings.HasPrefix(upper, "JOIN"):
		fields := strings.Fields(stmt)
		if len(fields) < 4 {
			return errors.New("pagestore: expected JOIN <left> <right> ONEPASS|NESTEDLOOP|GRACE [budget]")
		}
		var kind joinKind
		switch strings.ToUpper(fields[3]) {
		case "ONEPASS":
			kind = joinOnePass
		case "NESTEDLOOP":
			kind = joinNestedLoop
		case "GRACE":
			kind = joinGraceHash
		default:
			return fmt.Errorf("pagestore: unknown join strategy %q", fields[3])
		}
		budget := 3
		if len(fields) >= 5 {
			n, err := strconv.Atoi(fields[4])
			if err != nil {
				return fmt.Errorf("pagestore: invalid budget %q: %w", fields[4], err)
			}
			budget = n
		}
		return e.join(w, kind, fields[1], fields[2], budget)

	default:
		return fmt.Errorf("pagestore: unrecognized statement: %s", stmt)
	}
}

// statementComplete reports whether buf has a terminating ';' outside any
// single-quoted string.
func statementComplete(buf string) bool {
	inQuote := false
	for _, r := range buf {
		if r == '\'' {
			inQuote = !inQuote
			continue
		}
		if r == ';' && !inQuote {
			return true
		}
	}
	return false
}

func isMetaCommand(line string) bool {
	line = strings.TrimSpace(line)
	return strings.HasPrefix(line, "\\") || line == "quit" || line == "exit"
}

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".pagestore_history"
	}
	return filepath.Join(home, ".pagestore_history")
}

func main() {
	configPath := flag.String("config", "pagestore.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	eng := newEngine(cfg)
	defer eng.close()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "pagestore> ",
		HistoryFile:     defaultHistoryPath(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "readline: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = rl.Close() }()

	fmt.Println("pagestore storage core; type \\help for help")

	var buf strings.Builder
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if buf.Len() > 0 {
				buf.Reset()
				rl.SetPrompt("pagestore> ")
				continue
			}
			fmt.Println("^C")
			continue
		}
		if err != nil {
			fmt.Println()
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if isMetaCommand(line) {
			switch line {
			case "\\q", "quit", "exit":
				return
			case "\\help":
				fmt.Println(`meta commands:
  \q | quit | exit         quit

statements (end with ';'):
  CREATE TABLE t (a INT, b VARCHAR(10));
  INSERT INTO t VALUES 1 hello;
  SELECT * FROM t;
  JOIN left right ONEPASS|NESTEDLOOP|GRACE [budget];`)
			default:
				fmt.Printf("unknown command: %s\n", line)
			}
			continue
		}

		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(line)

		if !statementComplete(buf.String()) {
			rl.SetPrompt("    -> ")
			continue
		}

		stmt := strings.TrimSpace(buf.String())
		buf.Reset()
		rl.SetPrompt("pagestore> ")

		if err := eng.dispatch(os.Stdout, stmt); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}
}
