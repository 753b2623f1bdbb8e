package memberkit

import (
	"context"
	"fmt"
	"time"

	"github.com/fernandezvara/dbkit"
)

// runInTx executes fn inside a database transaction, handing it the
// transactional handle. Every mutating operation in the engine funnels through
// here so the uniqueness check, row write, counter update and audit append
// commit or roll back as one unit. Nested calls become savepoints.
func (s *Service) runInTx(ctx context.Context, fn func(ctx context.Context, db dbkit.IDB) error) error {
	start := time.Now()
	var err error

	switch db := s.db.(type) {
	case *dbkit.Tx:
		// Already in a transaction, use a savepoint.
		err = db.Transaction(ctx, func(tx *dbkit.Tx) error {
			return fn(ctx, tx)
		})
	case *dbkit.DBKit:
		err = db.Transaction(ctx, func(tx *dbkit.Tx) error {
			return fn(ctx, tx)
		})
	default:
		// Unknown IDB implementation (tests, fakes): run without a wrapping
		// transaction.
		err = fn(ctx, s.db)
	}

	s.txMonitor.recordTransaction(time.Since(start), err == nil)
	return err
}

// Transaction executes a function within a database transaction with automatic
// commit/rollback. If the function returns an error, the transaction is rolled
// back. Otherwise, it's committed.
//
// Example:
//
//	err := service.Transaction(ctx, func(ctx context.Context) error {
//	    if _, err := service.Join(ctx, communityID, "user-1"); err != nil {
//	        return err // rollback
//	    }
//	    if _, err := service.Join(ctx, communityID, "user-2"); err != nil {
//	        return err // rollback
//	    }
//	    return nil // commit
//	})
func (s *Service) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.runInTx(ctx, func(ctx context.Context, _ dbkit.IDB) error {
		return fn(ctx)
	})
}

// TransactionWithOptions executes a function within a database transaction
// with custom options. Supports read-only transactions, isolation levels and
// other transaction parameters.
//
// Example:
//
//	err := service.TransactionWithOptions(ctx, dbkit.SerializableTxOptions(), func(ctx context.Context) error {
//	    return service.Ban(ctx, communityID, userID, "spam")
//	})
func (s *Service) TransactionWithOptions(ctx context.Context, opts dbkit.TxOptions, fn func(ctx context.Context) error) error {
	if tx, ok := s.db.(*dbkit.Tx); ok {
		// Nested transactions use savepoints; options do not apply there.
		return tx.Transaction(ctx, func(tx *dbkit.Tx) error {
			return fn(ctx)
		})
	}

	if db, ok := s.db.(*dbkit.DBKit); ok {
		return db.TransactionWithOptions(ctx, opts, func(tx *dbkit.Tx) error {
			return fn(ctx)
		})
	}

	return fmt.Errorf("transaction support requires a dbkit.DBKit or dbkit.Tx instance")
}

// ReadOnlyTransaction executes a function within a read-only database
// transaction. Useful for multi-query reads that need a consistent snapshot.
func (s *Service) ReadOnlyTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.TransactionWithOptions(ctx, dbkit.ReadOnlyTxOptions(), fn)
}

// GetTransactionMetrics returns the current transaction performance metrics.
func (s *Service) GetTransactionMetrics() TransactionMetrics {
	return s.txMonitor.getMetrics()
}

// ResetTransactionMetrics resets all transaction metrics.
func (s *Service) ResetTransactionMetrics() {
	s.txMonitor.reset()
}

// IsTransactionHealthy checks if transaction performance is within acceptable
// thresholds.
func (s *Service) IsTransactionHealthy() bool {
	metrics := s.txMonitor.getMetrics()

	if metrics.TotalTransactions < 10 {
		return true
	}

	failureRate := float64(metrics.FailedTransactions) / float64(metrics.TotalTransactions)
	if failureRate > 0.05 {
		return false
	}

	if metrics.AverageDuration > time.Second {
		return false
	}

	return true
}
