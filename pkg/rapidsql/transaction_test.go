package rapidsql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestTransactional_SingleCommitAndRelease(t *testing.T) {
	for _, depth := range []int{1, 2, 5} {
		t.Run(fmt.Sprintf("depth %d", depth), func(t *testing.T) {
			rt, mock := newTestRuntime(t)
			mock.ExpectBegin()
			mock.ExpectCommit()

			ctx := rt.WithSession(context.Background())
			s, ok := sessionFrom(ctx)
			require.True(t, ok)

			calls := 0

			var nest func(ctx context.Context, remaining int) error
			nest = func(ctx context.Context, remaining int) error {
				calls++
				if remaining == 1 {
					assert.Equal(t, depth, s.depth)
					return nil
				}

				return rt.Transactional(ctx, sql.LevelDefault, func(ctx context.Context) error {
					return nest(ctx, remaining-1)
				})
			}

			err := rt.Transactional(ctx, sql.LevelDefault, func(ctx context.Context) error {
				return nest(ctx, depth)
			})

			require.NoError(t, err)
			assert.Equal(t, depth, calls)
			assert.Nil(t, s.conn)
			assert.Nil(t, s.tx)
			assert.Zero(t, s.depth)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestTransactional_InnerFailureRollsBackAtRoot(t *testing.T) {
	rt, mock := newTestRuntime(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	ctx := rt.WithSession(context.Background())
	s, _ := sessionFrom(ctx)

	errBoom := errors.New("boom")

	err := rt.Transactional(ctx, sql.LevelDefault, func(ctx context.Context) error {
		return rt.Transactional(ctx, sql.LevelDefault, func(ctx context.Context) error {
			// A joined call requesting another isolation level is accepted
			// and ignored; the owner's level stands.
			return rt.Transactional(ctx, sql.LevelSerializable, func(ctx context.Context) error {
				return errBoom
			})
		})
	})

	require.Equal(t, errBoom, err)
	assert.Nil(t, s.conn)
	assert.Nil(t, s.tx)
	assert.Zero(t, s.depth)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactional_BeginFailureReleasesConnection(t *testing.T) {
	rt, mock := newTestRuntime(t)

	errBegin := errors.New("begin refused")
	mock.ExpectBegin().WillReturnError(errBegin)

	ctx := rt.WithSession(context.Background())
	s, _ := sessionFrom(ctx)

	err := rt.Transactional(ctx, sql.LevelDefault, func(ctx context.Context) error {
		t.Fatal("body must not run when begin fails")
		return nil
	})

	var re *Error
	require.ErrorAs(t, err, &re)
	assert.Equal(t, KindTransaction, re.Kind)
	assert.ErrorIs(t, err, errBegin)
	assert.Nil(t, s.conn)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactional_CommitFailure(t *testing.T) {
	rt, mock := newTestRuntime(t)

	errCommit := errors.New("commit refused")
	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errCommit)

	ctx := rt.WithSession(context.Background())
	s, _ := sessionFrom(ctx)

	err := rt.Transactional(ctx, sql.LevelDefault, func(ctx context.Context) error {
		return nil
	})

	var re *Error
	require.ErrorAs(t, err, &re)
	assert.Equal(t, KindTransaction, re.Kind)
	assert.ErrorIs(t, err, errCommit)
	// The transaction reference is cleared even when commit fails.
	assert.Nil(t, s.tx)
	assert.Nil(t, s.conn)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactional_RollbackFailureKeepsOriginalError(t *testing.T) {
	rt, mock := newTestRuntime(t)

	mock.ExpectBegin()
	mock.ExpectRollback().WillReturnError(errors.New("rollback refused"))

	ctx := rt.WithSession(context.Background())
	s, _ := sessionFrom(ctx)

	errBoom := errors.New("boom")

	err := rt.Transactional(ctx, sql.LevelDefault, func(ctx context.Context) error {
		return errBoom
	})

	require.Equal(t, errBoom, err)
	assert.Nil(t, s.tx)
	assert.Nil(t, s.conn)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactional_ReportsReleaseFailureWhenAlone(t *testing.T) {
	rt, mock := newTestRuntime(t)

	mock.ExpectBegin()
	mock.ExpectCommit()

	ctx := rt.WithSession(context.Background())
	s, _ := sessionFrom(ctx)

	err := rt.Transactional(ctx, sql.LevelDefault, func(ctx context.Context) error {
		// Settle the transaction and close the connection by hand so the
		// coordinator's own end is clean and only its release can fail.
		require.NoError(t, s.tx.Commit())
		s.tx = nil
		require.NoError(t, s.conn.Close())
		return nil
	})

	var re *Error
	require.ErrorAs(t, err, &re)
	assert.Equal(t, KindConnection, re.Kind)
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.Nil(t, s.conn)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactional_ProviderFailure(t *testing.T) {
	ctrl := gomock.NewController(t)

	provider := NewMockConnectionProvider(ctrl)
	provider.EXPECT().Conn(gomock.Any()).Return(nil, errors.New("pool exhausted"))

	rt := New()
	require.NoError(t, rt.SetProvider(provider))

	err := rt.Transactional(context.Background(), sql.LevelDefault, func(ctx context.Context) error {
		t.Fatal("body must not run without a connection")
		return nil
	})

	var re *Error
	require.ErrorAs(t, err, &re)
	assert.Equal(t, KindConnection, re.Kind)
}

func TestTransactional_IsolatedAcrossCallChains(t *testing.T) {
	rt, mock := newTestRuntime(t)

	// Two independent chains get two independent transactions.
	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectCommit()

	ctxA := rt.WithSession(context.Background())
	ctxB := rt.WithSession(context.Background())

	sA, _ := sessionFrom(ctxA)
	sB, _ := sessionFrom(ctxB)
	require.NotSame(t, sA, sB)

	require.NoError(t, rt.Transactional(ctxA, sql.LevelDefault, func(ctx context.Context) error { return nil }))
	require.NoError(t, rt.Transactional(ctxB, sql.LevelDefault, func(ctx context.Context) error { return nil }))

	assert.NoError(t, mock.ExpectationsWereMet())
}
