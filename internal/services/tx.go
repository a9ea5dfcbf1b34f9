package services

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Clock lets tests pin time. Defaults to time.Now.
type Clock func() time.Time

// forUpdate adds a pessimistic row lock to the query. SQLite (the test
// driver) has no FOR UPDATE and serializes writers anyway, so the clause is
// only emitted on postgres.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// inTransaction reports whether tx is running inside an open transaction.
func inTransaction(tx *gorm.DB) bool {
	_, ok := tx.Statement.ConnPool.(gorm.TxCommitter)
	return ok
}

func ptr[T any](v T) *T { return &v }
