// Package database provides SQLite connectivity for the sync service.
//
// SQLite holds the service's configuration inputs: reporting profiles and
// device credentials. Sessions are never persisted.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Embedded, versioned up/down schema migrations
//   - Connection lifecycle and health checks
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// SchemaStatus backs /api/v1/health and "lwm2msync migrate status";
// Rollback backs "lwm2msync migrate down --steps N".
//
// Migrations are additive: new columns must be NULLABLE or carry a DEFAULT,
// and every .up.sql file has a matching .down.sql.
package database
