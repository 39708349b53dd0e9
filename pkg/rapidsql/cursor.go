package rapidsql

import (
	"database/sql"

	"github.com/shopspring/decimal"
)

// Cursor is positioned over the live result of the most recent query in the
// current call chain. Navigation is forward-only and single pass; the cursor
// is invalid once the wrapping query call returns.
//
// Typed accessors return the database/sql null wrappers: a NULL stored value
// is a valid, absent result, not an error.
type Cursor struct {
	rt      *Runtime
	rows    *sql.Rows
	columns []string
	index   map[string]int

	// values holds the raw driver values of the current row; dest aliases
	// them for Scan.
	values []any
	dest   []any

	onRow  bool
	closed bool
	err    error
}

// newCursor caches the column name lookup from the result metadata once;
// it is reused until the cursor closes.
func newCursor(rt *Runtime, rows *sql.Rows) (*Cursor, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	index := make(map[string]int, len(columns))
	for i, column := range columns {
		index[column] = i
	}

	c := &Cursor{
		rt:      rt,
		rows:    rows,
		columns: columns,
		index:   index,
		values:  make([]any, len(columns)),
		dest:    make([]any, len(columns)),
	}
	for i := range c.values {
		c.dest[i] = &c.values[i]
	}

	return c, nil
}

// Next advances to the next row and reports whether one is available.
// Iteration errors are reported by Err.
func (c *Cursor) Next() bool {
	if c.closed || c.err != nil {
		return false
	}

	if !c.rows.Next() {
		c.onRow = false
		if err := c.rows.Err(); err != nil {
			c.err = c.rt.errorf(KindCursor, err, "reading result rows")
		}

		return false
	}

	if err := c.rows.Scan(c.dest...); err != nil {
		c.onRow = false
		c.err = c.rt.errorf(KindCursor, err, "reading result rows")

		return false
	}
	c.onRow = true

	return true
}

// Err returns the error, if any, that ended iteration. The error is wrapped
// and logged once, when iteration fails; repeated calls return the same
// instance.
func (c *Cursor) Err() error {
	return c.err
}

// Columns returns the result column names in result order.
func (c *Cursor) Columns() []string {
	out := make([]string, len(c.columns))
	copy(out, c.columns)

	return out
}

func (c *Cursor) close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.onRow = false

	if err := c.rows.Close(); err != nil {
		return c.rt.errorf(KindCursor, err, "closing result cursor")
	}

	return nil
}

// value returns the raw driver value of the named column in the current row.
func (c *Cursor) value(column string) (any, error) {
	if c.closed {
		return nil, c.rt.errorf(KindCursor, nil, "no query has been executed or the cursor is closed")
	}
	if !c.onRow {
		return nil, c.rt.errorf(KindCursor, nil, "cursor is not positioned on a row")
	}

	i, ok := c.index[column]
	if !ok {
		return nil, c.rt.errorf(KindColumn, nil, "unknown result column %q", column)
	}

	return c.values[i], nil
}

func (c *Cursor) columnError(column string, err error) error {
	return c.rt.errorf(KindColumn, err, "reading value of column %q", column)
}

// IsNull reports whether the named column holds NULL in the current row.
func (c *Cursor) IsNull(column string) (bool, error) {
	v, err := c.value(column)
	if err != nil {
		return false, err
	}

	return v == nil, nil
}

// IsNotNull reports whether the named column holds a non-NULL value.
func (c *Cursor) IsNotNull(column string) (bool, error) {
	null, err := c.IsNull(column)
	return !null, err
}

// Value returns the raw driver value of the named column.
func (c *Cursor) Value(column string) (any, error) {
	return c.value(column)
}

func (c *Cursor) Int64(column string) (sql.NullInt64, error) {
	v, err := c.value(column)
	if err != nil {
		return sql.NullInt64{}, err
	}

	var n sql.NullInt64
	if err := n.Scan(v); err != nil {
		return sql.NullInt64{}, c.columnError(column, err)
	}

	return n, nil
}

func (c *Cursor) Int32(column string) (sql.NullInt32, error) {
	v, err := c.value(column)
	if err != nil {
		return sql.NullInt32{}, err
	}

	var n sql.NullInt32
	if err := n.Scan(v); err != nil {
		return sql.NullInt32{}, c.columnError(column, err)
	}

	return n, nil
}

func (c *Cursor) Float64(column string) (sql.NullFloat64, error) {
	v, err := c.value(column)
	if err != nil {
		return sql.NullFloat64{}, err
	}

	var n sql.NullFloat64
	if err := n.Scan(v); err != nil {
		return sql.NullFloat64{}, c.columnError(column, err)
	}

	return n, nil
}

func (c *Cursor) Bool(column string) (sql.NullBool, error) {
	v, err := c.value(column)
	if err != nil {
		return sql.NullBool{}, err
	}

	var n sql.NullBool
	if err := n.Scan(v); err != nil {
		return sql.NullBool{}, c.columnError(column, err)
	}

	return n, nil
}

func (c *Cursor) String(column string) (sql.NullString, error) {
	v, err := c.value(column)
	if err != nil {
		return sql.NullString{}, err
	}

	var n sql.NullString
	if err := n.Scan(v); err != nil {
		return sql.NullString{}, c.columnError(column, err)
	}

	return n, nil
}

// Timestamp returns the named column as a timestamp. Values bound through
// the runtime are normalized to UTC, so reading one back yields the same
// instant.
func (c *Cursor) Timestamp(column string) (sql.NullTime, error) {
	v, err := c.value(column)
	if err != nil {
		return sql.NullTime{}, err
	}

	var n sql.NullTime
	if err := n.Scan(v); err != nil {
		return sql.NullTime{}, c.columnError(column, err)
	}

	return n, nil
}

// Decimal returns the named column as an arbitrary-precision decimal.
func (c *Cursor) Decimal(column string) (decimal.NullDecimal, error) {
	v, err := c.value(column)
	if err != nil {
		return decimal.NullDecimal{}, err
	}

	var n decimal.NullDecimal
	if err := n.Scan(v); err != nil {
		return decimal.NullDecimal{}, c.columnError(column, err)
	}

	return n, nil
}
