// Package datarecording stores simulation records in SQLite tables. Each
// table holds one flat struct type; entries are buffered and written in
// batches.
package datarecording

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/fatih/structs"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// DataRecorder is a backend that can record and store data
type DataRecorder interface {
	// CreateTable creates a new table whose columns are the fields of the
	// sample entry.
	CreateTable(tableName string, sampleEntry any)

	// InsertData buffers an entry for a table that already exists.
	InsertData(tableName string, entry any)

	// ListTables returns the names of all the tables, sorted.
	ListTables() []string

	// Flush writes all the buffered entries into the database.
	Flush()

	// Close flushes and closes the database.
	Close() error
}

const defaultBatchSize = 100000

// New creates a DataRecorder that writes to path.sqlite3. An empty path
// picks a unique name. The file must not exist.
func New(path string) DataRecorder {
	if path == "" {
		path = "nrmac_recording_" + xid.New().String()
	}

	filename := path + ".sqlite3"
	if _, err := os.Stat(filename); err == nil {
		panic(fmt.Errorf("file %s already exists", filename))
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		panic(err)
	}

	if err := db.Ping(); err != nil {
		panic(err)
	}

	fmt.Fprintf(os.Stderr, "Database created for recording: %s\n", filename)

	w := &sqliteWriter{
		db:        db,
		batchSize: defaultBatchSize,
		tables:    make(map[string]*table),
	}

	atexit.Register(w.Flush)

	return w
}

type table struct {
	entryType reflect.Type
	insert    string
	pending   []any
}

type sqliteWriter struct {
	db        *sql.DB
	tables    map[string]*table
	batchSize int
	buffered  int
	closed    bool
}

func columnType(kind reflect.Kind) (string, bool) {
	switch kind {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32,
		reflect.Uint64:
		return "INTEGER", true
	case reflect.Float32, reflect.Float64:
		return "REAL", true
	case reflect.String:
		return "TEXT", true
	default:
		return "", false
	}
}

// columns returns the column definitions of a flat struct of exported
// scalar fields.
func columns(sample any) ([]string, error) {
	typ := reflect.TypeOf(sample)
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("entry of type %s is not a struct", typ)
	}

	defs := make([]string, 0, typ.NumField())

	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)

		if !f.IsExported() {
			return nil, fmt.Errorf("field %s is not exported", f.Name)
		}

		sqlType, ok := columnType(f.Type.Kind())
		if !ok {
			return nil, fmt.Errorf("field %s of kind %s cannot be stored",
				f.Name, f.Type.Kind())
		}

		defs = append(defs, f.Name+" "+sqlType)
	}

	return defs, nil
}

func (w *sqliteWriter) CreateTable(tableName string, sampleEntry any) {
	if _, exists := w.tables[tableName]; exists {
		panic(fmt.Sprintf("table %s already exists", tableName))
	}

	defs, err := columns(sampleEntry)
	if err != nil {
		panic(err)
	}

	w.mustExecute(fmt.Sprintf("CREATE TABLE %s (\n\t%s\n);",
		tableName, strings.Join(defs, ",\n\t")))

	placeholders := strings.TrimSuffix(
		strings.Repeat("?, ", len(structs.Names(sampleEntry))), ", ")

	w.tables[tableName] = &table{
		entryType: reflect.TypeOf(sampleEntry),
		insert: fmt.Sprintf("INSERT INTO %s VALUES (%s)",
			tableName, placeholders),
	}
}

func (w *sqliteWriter) InsertData(tableName string, entry any) {
	t, exists := w.tables[tableName]
	if !exists {
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}

	if reflect.TypeOf(entry) != t.entryType {
		panic(fmt.Sprintf("table %s stores %s, not %T",
			tableName, t.entryType, entry))
	}

	t.pending = append(t.pending, entry)

	w.buffered++
	if w.buffered >= w.batchSize {
		w.Flush()
	}
}

func (w *sqliteWriter) ListTables() []string {
	names := make([]string, 0, len(w.tables))
	for name := range w.tables {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Flush writes every pending entry in one transaction, table by table in
// name order.
func (w *sqliteWriter) Flush() {
	if w.buffered == 0 || w.closed {
		return
	}

	tx, err := w.db.Begin()
	if err != nil {
		panic(err)
	}

	for _, name := range w.ListTables() {
		t := w.tables[name]
		if len(t.pending) == 0 {
			continue
		}

		if err := t.write(tx); err != nil {
			_ = tx.Rollback()
			panic(err)
		}

		t.pending = nil
	}

	if err := tx.Commit(); err != nil {
		panic(err)
	}

	w.buffered = 0
}

func (t *table) write(tx *sql.Tx) error {
	stmt, err := tx.Prepare(t.insert)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, entry := range t.pending {
		if _, err := stmt.Exec(structs.Values(entry)...); err != nil {
			return err
		}
	}

	return nil
}

func (w *sqliteWriter) Close() error {
	if w.closed {
		return nil
	}

	w.Flush()
	w.closed = true

	return w.db.Close()
}

func (w *sqliteWriter) mustExecute(query string) {
	if _, err := w.db.Exec(query); err != nil {
		log.Printf("Failed to execute: %s\n", query)
		panic(err)
	}
}
