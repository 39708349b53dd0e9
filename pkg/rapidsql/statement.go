package rapidsql

import (
	"context"
	"database/sql"
	"time"
)

// Op describes one data access call as supplied by the caller's dispatch
// layer: the literal SQL text and whether it is a query or an update.
// Declaring both is a configuration error and is rejected before any
// connection work begins.
type Op struct {
	Query  string
	Update string
}

// Do executes the operation described by op, wrapping body in the statement
// lifecycle. Query bodies read the published cursor through Current; update
// bodies run before the statement executes. body may be nil for either kind,
// in which case the statement executes and cleans up on its own.
func (r *Runtime) Do(ctx context.Context, op Op, args []any, body func(ctx context.Context) error) error {
	switch {
	case op.Query != "" && op.Update != "":
		return r.errorf(KindConfig, nil, "operation declares both a query and an update")
	case op.Query != "":
		return r.query(ctx, op.Query, args, body)
	case op.Update != "":
		return r.update(ctx, op.Update, args, body)
	default:
		return r.errorf(KindConfig, nil, "operation declares neither a query nor an update")
	}
}

// Query prepares and executes query with the given positional args and
// invokes body with the resulting cursor. On every exit path the cursor and
// the prepared statement are closed, and the connection is released unless
// an enclosing transaction owns it.
func (r *Runtime) Query(ctx context.Context, query string, args []any, body func(cur *Cursor) error) error {
	return r.Do(ctx, Op{Query: query}, args, func(ctx context.Context) error {
		cur, err := r.Current(ctx)
		if err != nil {
			return err
		}

		return body(cur)
	})
}

// Update prepares the statement, runs body (which may read and validate the
// arguments), then executes the update. body may be nil. Cleanup rules match
// Query.
func (r *Runtime) Update(ctx context.Context, query string, args []any, body func(ctx context.Context) error) error {
	return r.Do(ctx, Op{Update: query}, args, body)
}

// Current returns the cursor published by the innermost query call of this
// chain. It fails when no query has been executed or the cursor was closed.
func (r *Runtime) Current(ctx context.Context) (*Cursor, error) {
	if s, ok := sessionFrom(ctx); ok && s.rt == r && s.cursor != nil && !s.cursor.closed {
		return s.cursor, nil
	}

	return nil, r.errorf(KindCursor, nil, "no query has been executed or the cursor is closed")
}

// statementHandle owns the resources of one statement execution: the
// prepared statement and, for queries, the result cursor. close runs on
// every exit path; a cleanup failure is reported only when no other error
// is already in flight.
type statementHandle struct {
	s    *session
	stmt *sql.Stmt
	cur  *Cursor
}

func (h *statementHandle) close(prior error) error {
	var cleanupErr error

	if h.cur != nil {
		if err := h.cur.close(); err != nil {
			cleanupErr = err
		}
		h.s.cursor = nil
	}

	if h.stmt != nil {
		if err := h.stmt.Close(); err != nil && cleanupErr == nil {
			cleanupErr = h.s.rt.errorf(KindStatement, err, "closing prepared statement")
		}
	}

	// A query never closes a connection owned by an enclosing transaction.
	if !h.s.transactionActive() {
		if err := h.s.release(); err != nil && cleanupErr == nil {
			cleanupErr = err
		}
	}

	if prior != nil {
		return prior
	}

	return cleanupErr
}

func (r *Runtime) query(ctx context.Context, query string, args []any, body func(ctx context.Context) error) (err error) {
	ctx, s := r.sessionFor(ctx)

	if err = s.acquire(ctx); err != nil {
		return err
	}

	h := &statementHandle{s: s}
	defer func() { err = h.close(err) }()

	start := time.Now()

	stmt, perr := s.prepare(ctx, query)
	if perr != nil {
		return r.statementError(perr, query, args)
	}
	h.stmt = stmt

	rows, qerr := stmt.QueryContext(ctx, bindArgs(args)...)
	if qerr != nil {
		return r.statementError(qerr, query, args)
	}

	cur, cerr := newCursor(r, rows)
	if cerr != nil {
		return r.statementError(cerr, query, args)
	}
	h.cur = cur
	s.cursor = cur

	r.sendOperationStats(ctx, s, start, "query", query, args...)

	if body != nil {
		if berr := body(ctx); berr != nil {
			return r.statementError(berr, query, args)
		}
	}

	// A row iteration error surfaces here when the body itself returned nil.
	if rerr := cur.Err(); rerr != nil {
		return r.statementError(rerr, query, args)
	}

	return nil
}

func (r *Runtime) update(ctx context.Context, query string, args []any, body func(ctx context.Context) error) (err error) {
	ctx, s := r.sessionFor(ctx)

	if err = s.acquire(ctx); err != nil {
		return err
	}

	h := &statementHandle{s: s}
	defer func() { err = h.close(err) }()

	stmt, perr := s.prepare(ctx, query)
	if perr != nil {
		return r.statementError(perr, query, args)
	}
	h.stmt = stmt

	if body != nil {
		if berr := body(ctx); berr != nil {
			return r.statementError(berr, query, args)
		}
	}

	start := time.Now()

	result, xerr := stmt.ExecContext(ctx, bindArgs(args)...)
	if xerr != nil {
		return r.statementError(xerr, query, args)
	}

	r.sendOperationStats(ctx, s, start, "update", query, args...)

	if r.logger != nil {
		if affected, aerr := result.RowsAffected(); aerr == nil {
			r.logger.Debugf("update affected %d rows", affected)
		}
	}

	return nil
}

// bindArgs normalizes temporal arguments to UTC before binding so that
// downstream comparisons are type-stable; everything else passes through.
func bindArgs(args []any) []any {
	out := make([]any, len(args))

	for i, arg := range args {
		switch v := arg.(type) {
		case time.Time:
			out[i] = v.UTC()
		case *time.Time:
			if v != nil {
				out[i] = v.UTC()
			} else {
				out[i] = nil
			}
		default:
			out[i] = arg
		}
	}

	return out
}
