// Package testdb provides migrated databases for store and service tests.
//
// By default every call to Open creates a fresh SQLite file under the test's
// temporary directory, so tests need no external services. Setting
// TRACKER_TEST_DATABASE_URL runs the same tests against PostgreSQL; tables
// are truncated before each test in that mode.
//
//	func TestTaskStore(t *testing.T) {
//	    db := testdb.Open(t)
//	    tasks := sqldb.NewTaskStore(db, nil)
//	    ...
//	}
package testdb
