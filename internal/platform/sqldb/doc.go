// Package sqldb implements the store interfaces on database/sql through sqlx.
//
// The same queries run on PostgreSQL (pgx stdlib driver) and SQLite
// (modernc.org/sqlite). Queries are written with '?' placeholders and
// rebound for the active driver. Schema lives in embedded goose migrations.
package sqldb
