package rapidsql

import (
	"context"
	"database/sql"
)

// Transactional runs fn inside the call chain's transaction. The first
// transactional call of a chain begins the transaction and owns it; nested
// calls join the running transaction and run inside the single, largest
// scoped one. Only the owner commits or rolls back, and only the owner
// releases the connection, so exactly one commit-or-rollback and one release
// happen per transaction tree regardless of nesting depth.
//
// A joined call may request a different isolation level; it is accepted and
// ignored, the owner's level applies to the whole merged transaction.
//
// fn errors propagate unchanged: a failing nested call leaves the decision
// to the outermost one, which rolls back.
func (r *Runtime) Transactional(ctx context.Context, isolation sql.IsolationLevel, fn func(ctx context.Context) error) (err error) {
	ctx, s := r.sessionFor(ctx)

	if s.transactionActive() {
		if isolation != sql.LevelDefault && r.logger != nil {
			r.logger.Debugf("joining active transaction, requested isolation level %v ignored", isolation)
		}

		s.depth++
		defer func() { s.depth-- }()

		return fn(ctx)
	}

	if err = s.begin(ctx, isolation); err != nil {
		if relErr := s.release(); relErr != nil && r.logger != nil {
			r.logger.Errorf("releasing connection after failed begin: %v", relErr)
		}

		return err
	}
	s.depth = 1

	defer func() {
		if p := recover(); p != nil {
			_ = s.rollback()
			_ = s.release()
			panic(p)
		}

		var endErr error
		if err != nil {
			endErr = s.rollback()
		} else {
			endErr = s.commit()
		}
		relErr := s.release()

		// The original error takes priority over cleanup failures.
		if err == nil {
			if endErr != nil {
				err = endErr
			} else {
				err = relErr
			}
		}
	}()

	return fn(ctx)
}
