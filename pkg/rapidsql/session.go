package rapidsql

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

type sessionKey struct{}

// session is the per-call-chain execution context: the current connection,
// the transaction nesting counter and the active cursor. A session is never
// shared across call chains, so none of its state needs locking.
//
// Invariants: tx != nil implies conn != nil; depth > 0 implies tx != nil;
// releasing the connection clears tx, depth and cursor.
type session struct {
	rt *Runtime
	id string

	conn   *sql.Conn
	tx     *sql.Tx
	depth  int
	cursor *Cursor
}

// WithSession returns a context carrying a fresh session for this runtime.
// Operations called without one create their own session on the fly, so
// binding explicitly is only needed to scope several calls to one chain.
func (r *Runtime) WithSession(ctx context.Context) context.Context {
	ctx, _ = r.sessionFor(ctx)
	return ctx
}

// sessionFor looks up the call chain's session, creating and attaching one
// when absent.
func (r *Runtime) sessionFor(ctx context.Context) (context.Context, *session) {
	if s, ok := sessionFrom(ctx); ok && s.rt == r {
		return ctx, s
	}

	s := &session{rt: r, id: uuid.NewString()}

	return context.WithValue(ctx, sessionKey{}, s), s
}

func sessionFrom(ctx context.Context) (*session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*session)
	return s, ok
}

// acquire returns the current connection, creating one from the configured
// provider if the session has none.
func (s *session) acquire(ctx context.Context) error {
	if s.conn != nil {
		return nil
	}

	provider, err := s.rt.connectionProvider()
	if err != nil {
		return err
	}

	conn, err := provider.Conn(ctx)
	if err != nil {
		return s.rt.errorf(KindConnection, err, "creating connection from provider")
	}
	s.conn = conn

	return nil
}

// release closes and clears the current connection. Local state is cleared
// even when the close fails, so a broken connection is never reused.
func (s *session) release() error {
	if s.conn == nil {
		return nil
	}

	err := s.conn.Close()
	s.conn = nil
	s.tx = nil
	s.depth = 0
	s.cursor = nil

	if err != nil {
		return s.rt.errorf(KindConnection, err, "closing database connection")
	}

	return nil
}

// begin acquires a connection and starts a transaction on it.
// sql.LevelDefault keeps the database's own isolation level. On failure the
// connection is left as the driver left it; the caller must release it.
func (s *session) begin(ctx context.Context, isolation sql.IsolationLevel) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}

	tx, err := s.conn.BeginTx(ctx, &sql.TxOptions{Isolation: isolation})
	if err != nil {
		return s.rt.errorf(KindTransaction, err, "beginning transaction")
	}
	s.tx = tx

	return nil
}

// commit ends the transaction. The transaction reference is cleared
// regardless of the outcome so the connection returns to autocommit.
func (s *session) commit() error {
	if s.tx == nil {
		return nil
	}

	err := s.tx.Commit()
	s.tx = nil

	if err != nil {
		return s.rt.errorf(KindTransaction, err, "committing transaction")
	}

	return nil
}

func (s *session) rollback() error {
	if s.tx == nil {
		return nil
	}

	err := s.tx.Rollback()
	s.tx = nil

	if err != nil {
		return s.rt.errorf(KindTransaction, err, "rolling back transaction")
	}

	return nil
}

func (s *session) transactionActive() bool {
	return s.tx != nil
}

// prepare compiles a statement on the active transaction when one exists,
// otherwise directly on the connection.
func (s *session) prepare(ctx context.Context, query string) (*sql.Stmt, error) {
	if s.tx != nil {
		return s.tx.PrepareContext(ctx, query)
	}

	return s.conn.PrepareContext(ctx, query)
}
