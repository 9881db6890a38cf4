// Package postgresengine provides the PostgreSQL implementation of the lending engine.
//
// This package implements the borrowing/return lifecycle on top of PostgreSQL,
// supporting multiple database adapters (pgx, sql.DB, sqlx) with transactional
// dual-writes and per-book concurrency control.
//
// Key features:
//   - Multiple database adapter support (PGX, SQL, SQLX), optional read replica
//   - Stock check and decrement as one conditional update: the available count
//     can never go negative under concurrent lending
//   - Stock mutation and ledger mutation inside one transaction boundary
//   - Lazily derived OVERDUE status - nothing is written on overdue reads
//   - Configurable table names, loan period, clock, and dual-logger support
//
// Usage examples:
//
//	// Basic usage
//	db, _ := pgxpool.New(context.Background(), dsn)
//	engine, _ := postgresengine.NewLendingEngineFromPGXPool(db)
//
//	// With options
//	engine, _ := postgresengine.NewLendingEngineFromPGXPool(
//		db,
//		postgresengine.WithTableNames("books", "members", "loans"),
//		postgresengine.WithLoanPeriod(21),
//		postgresengine.WithLogger(logger),
//	)
//
//	record, _ := engine.Lend(ctx, bookID, memberID)
//	record, _ = engine.Return(ctx, record.ID)
//	overdue, _ := engine.ListOverdueLoans(ctx, time.Now())
package postgresengine
