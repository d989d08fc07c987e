package datarecording

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"
)

// QueryParams selects and orders the rows of one table.
type QueryParams struct {
	// Where is a SQL condition without the WHERE keyword, for example
	// "RNTI = ? AND Direction = ?".
	Where string

	// Args fill the placeholders of Where.
	Args []any

	// Limit caps the number of rows returned. Zero means no cap.
	Limit int

	// Offset skips rows before the first one returned.
	Offset int

	// OrderBy is a SQL ordering without ORDER BY, for example "Slot DESC".
	OrderBy string
}

// DataReader reads back what a DataRecorder stored.
type DataReader interface {
	// MapTable tells the reader which struct the rows of a table decode
	// into. A table must be mapped before it is queried.
	MapTable(tableName string, sampleEntry any)

	// Query returns the selected rows as pointers to the mapped struct,
	// together with the number of rows matching Where regardless of Limit
	// and Offset.
	Query(ctx context.Context, tableName string, params QueryParams) (
		results []any,
		totalCount int,
		err error,
	)

	Close() error
}

type tableMapping struct {
	typ    reflect.Type
	fields map[string]int
}

type sqliteReader struct {
	db     *sql.DB
	tables map[string]tableMapping
}

// NewReader opens a database file written by a DataRecorder.
func NewReader(dbFilename string) DataReader {
	db, err := sql.Open("sqlite3", dbFilename)
	if err != nil {
		panic(err)
	}

	return &sqliteReader{
		db:     db,
		tables: make(map[string]tableMapping),
	}
}

func (r *sqliteReader) MapTable(tableName string, sampleEntry any) {
	typ := reflect.TypeOf(sampleEntry)

	m := tableMapping{typ: typ, fields: make(map[string]int)}
	for i := 0; i < typ.NumField(); i++ {
		m.fields[typ.Field(i).Name] = i
	}

	r.tables[tableName] = m
}

func (r *sqliteReader) Query(
	ctx context.Context,
	tableName string,
	params QueryParams,
) ([]any, int, error) {
	m, ok := r.tables[tableName]
	if !ok {
		return nil, 0, fmt.Errorf("table %s is not mapped", tableName)
	}

	where := ""
	if params.Where != "" {
		where = " WHERE " + params.Where
	}

	var total int

	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM "+tableName+where, params.Args...).
		Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx,
		selectStatement(tableName, where, params), params.Args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	results, err := m.scan(rows)
	if err != nil {
		return nil, 0, err
	}

	return results, total, nil
}

func selectStatement(tableName, where string, params QueryParams) string {
	var b strings.Builder

	b.WriteString("SELECT * FROM ")
	b.WriteString(tableName)
	b.WriteString(where)

	if params.OrderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(params.OrderBy)
	}

	switch {
	case params.Limit > 0:
		fmt.Fprintf(&b, " LIMIT %d", params.Limit)
	case params.Offset > 0:
		// SQLite only accepts OFFSET after a LIMIT.
		b.WriteString(" LIMIT -1")
	}

	if params.Offset > 0 {
		fmt.Fprintf(&b, " OFFSET %d", params.Offset)
	}

	return b.String()
}

// scan decodes the rows. Columns without a matching field are skipped.
func (m tableMapping) scan(rows *sql.Rows) ([]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []any

	for rows.Next() {
		entry := reflect.New(m.typ)
		targets := make([]any, len(columns))

		for i, col := range columns {
			idx, ok := m.fields[col]
			if !ok {
				targets[i] = new(any)
				continue
			}

			targets[i] = entry.Elem().Field(idx).Addr().Interface()
		}

		if err := rows.Scan(targets...); err != nil {
			return nil, err
		}

		results = append(results, entry.Interface())
	}

	return results, rows.Err()
}

func (r *sqliteReader) Close() error {
	return r.db.Close()
}
