// Package postgreswrapper abstracts over the supported database adapters so
// the engine test suite runs unchanged against pgxpool, database/sql, and
// sqlx connections. The adapter is selected via the ADAPTER_TYPE environment
// variable; pgx.pool is the default.
package postgreswrapper
