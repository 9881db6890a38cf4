// Package adapters provide database adapter implementations for the PostgreSQL lending engine.
//
// This package implements the adapter pattern to support multiple PostgreSQL database libraries:
// pgx.Pool, sql.DB, and sqlx.DB. All adapters provide equivalent functionality through
// a common DBAdapter interface, allowing the lending engine to work seamlessly with any
// supported database connection type.
//
// On top of plain query execution the adapters expose transactions through the
// DBTransaction interface, because the engine's lend and return operations are
// dual-writes (stock + ledger) that must commit or roll back as one unit.
package adapters
