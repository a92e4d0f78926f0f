package store

import "github.com/jmoiron/sqlx"

// DBTX is an interface that abstracts the database access layer.
// It is implemented by both *sqlx.DB and *sqlx.Tx, allowing our code
// to work with either a database connection or a transaction. Queries are
// written with ? placeholders and passed through Rebind for the active driver.
type DBTX interface {
	sqlx.ExtContext
}
