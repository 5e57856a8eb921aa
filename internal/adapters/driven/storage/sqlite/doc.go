// Package sqlite provides the SQLite-backed chunk metadata store.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation
// that requires no CGO, enabling easy cross-compilation.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in
// the migrations/ directory. The chunks table is keyed by ordinal: row
// N of the vector file describes ordinal N here, and the retriever
// joins search hits back to metadata through this table.
//
// # Data Location
//
// By default, the database is stored at ~/.railsup/data/chunks.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking
// provided by SQLite in WAL mode.
package sqlite
