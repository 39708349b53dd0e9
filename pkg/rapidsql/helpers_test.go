package rapidsql

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

// dbProvider adapts a *sql.DB into a ConnectionProvider for tests.
type dbProvider struct {
	db *sql.DB
}

func (p dbProvider) Conn(ctx context.Context) (*sql.Conn, error) {
	return p.db.Conn(ctx)
}

func newTestRuntime(t *testing.T) (*Runtime, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rt := New()
	require.NoError(t, rt.SetProvider(dbProvider{db: db}))

	return rt, mock
}

// recordLogger captures log entries for assertions.
type recordLogger struct {
	mu     sync.Mutex
	debugs []any
	errors []string
}

func (l *recordLogger) Debug(args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.debugs = append(l.debugs, args...)
}

func (l *recordLogger) Debugf(format string, args ...any) {
	l.Debug(format)
}

func (l *recordLogger) Error(args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, fmt.Sprint(args...))
}

func (l *recordLogger) Errorf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, fmt.Sprintf(format, args...))
}

func (l *recordLogger) queryLogs() []*QueryLog {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []*QueryLog
	for _, d := range l.debugs {
		if ql, ok := d.(*QueryLog); ok {
			out = append(out, ql)
		}
	}

	return out
}
