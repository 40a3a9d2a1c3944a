// Package database provides SQLite database connectivity for Lumen Bridge.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Versioned, additive-only schema migrations
//   - Connection pooling and lifecycle management
//
// Security Considerations:
//   - All queries use parameterised statements (no SQL injection)
//   - Database file permissions are set to 0600 (owner read/write only)
//
// Performance Characteristics:
//   - WAL mode allows concurrent reads during writes
//   - Busy timeout prevents lock contention errors
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migration Strategy:
//
// The schema history lives in code as an ordered list of versioned
// statements. Migrations are additive-only: new columns must be NULLABLE
// or carry DEFAULT values, and existing entries are never edited.
package database
