package postgreswrapper

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"

	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/lending/postgresengine"
	"github.com/AntonStoeckl/library-lending-go/testutil/postgresengine/config"
)

// Engine type constants, matched against the ADAPTER_TYPE environment variable.
const (
	typePGXPool = "pgx.pool"
	typeSQLDB   = "sql.db"
	typeSQLXDB  = "sqlx.db"
)

const createSchemaSQL = `
CREATE TABLE IF NOT EXISTS books (
	id              BIGINT PRIMARY KEY,
	available_count INTEGER NOT NULL CHECK (available_count >= 0)
);

CREATE TABLE IF NOT EXISTS members (
	id BIGINT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS loans (
	id          UUID PRIMARY KEY,
	book_id     BIGINT NOT NULL REFERENCES books (id),
	member_id   BIGINT NOT NULL REFERENCES members (id),
	borrow_date DATE NOT NULL,
	due_date    DATE NOT NULL,
	return_date DATE,
	status      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS loans_member_id_idx ON loans (member_id);
CREATE INDEX IF NOT EXISTS loans_status_due_date_idx ON loans (status, due_date);
`

// Wrapper abstracts over the different adapter types so the test suite can
// exercise the engine against each of them.
type Wrapper interface {
	GetEngine() postgresengine.LendingEngine
	Close()
}

// PGXPoolWrapper wraps pgxpool-based testing.
type PGXPoolWrapper struct {
	pool   *pgxpool.Pool
	engine postgresengine.LendingEngine
}

func (w *PGXPoolWrapper) GetEngine() postgresengine.LendingEngine {
	return w.engine
}

func (w *PGXPoolWrapper) Close() {
	w.pool.Close()
}

// SQLDBWrapper wraps sql.DB-based testing.
type SQLDBWrapper struct {
	db     *sql.DB
	engine postgresengine.LendingEngine
}

func (w *SQLDBWrapper) GetEngine() postgresengine.LendingEngine {
	return w.engine
}

func (w *SQLDBWrapper) Close() {
	_ = w.db.Close() // ignore error
}

// SQLXWrapper wraps sqlx.DB-based testing.
type SQLXWrapper struct {
	db     *sqlx.DB
	engine postgresengine.LendingEngine
}

func (w *SQLXWrapper) GetEngine() postgresengine.LendingEngine {
	return w.engine
}

func (w *SQLXWrapper) Close() {
	_ = w.db.Close() // ignore error
}

// CreateWrapperWithTestConfig creates the wrapper matching the ADAPTER_TYPE
// environment variable and ensures the schema exists.
func CreateWrapperWithTestConfig(t testing.TB, options ...postgresengine.Option) Wrapper {
	engineTypeFromEnv := strings.ToLower(os.Getenv("ADAPTER_TYPE"))

	var wrapper Wrapper

	switch engineTypeFromEnv {
	case typePGXPool, "":
		connPool, err := pgxpool.NewWithConfig(context.Background(), config.PostgresPGXPoolTestConfig())
		assert.NoError(t, err, "error connecting to DB pool in test setup")

		engine, err := postgresengine.NewLendingEngineFromPGXPool(connPool, options...)
		assert.NoError(t, err, "error creating lending engine")

		wrapper = &PGXPoolWrapper{pool: connPool, engine: engine}

	case typeSQLDB:
		db := config.PostgresSQLDBTestConfig()

		engine, err := postgresengine.NewLendingEngineFromSQLDB(db, options...)
		assert.NoError(t, err, "error creating lending engine")

		wrapper = &SQLDBWrapper{db: db, engine: engine}

	case typeSQLXDB:
		db := config.PostgresSQLXTestConfig()

		engine, err := postgresengine.NewLendingEngineFromSQLX(db, options...)
		assert.NoError(t, err, "error creating lending engine")

		wrapper = &SQLXWrapper{db: db, engine: engine}

	default: // neither one of the known types nor empty
		panic(fmt.Sprintf("unsupported wrapper type from env: %s", engineTypeFromEnv))
	}

	execSQL(t, wrapper, createSchemaSQL)

	return wrapper
}

// CleanUp truncates all lending tables.
func CleanUp(t testing.TB, wrapper Wrapper) {
	execSQL(t, wrapper, "TRUNCATE TABLE loans, members, books")
}

// SeedBook inserts a book with the given available count.
func SeedBook(t testing.TB, wrapper Wrapper, bookID lending.BookIDInt64, availableCount int) {
	execSQL(t, wrapper, fmt.Sprintf(
		"INSERT INTO books (id, available_count) VALUES (%d, %d)", bookID, availableCount))
}

// SeedMember inserts a member.
func SeedMember(t testing.TB, wrapper Wrapper, memberID lending.MemberIDInt64) {
	execSQL(t, wrapper, fmt.Sprintf("INSERT INTO members (id) VALUES (%d)", memberID))
}

// StockCountFromDB reads a book's available count directly from the database.
func StockCountFromDB(t testing.TB, wrapper Wrapper, bookID lending.BookIDInt64) int {
	var count int
	queryRowScan(t, wrapper, fmt.Sprintf("SELECT available_count FROM books WHERE id = %d", bookID), &count)

	return count
}

// LoanStatusFromDB reads a loan's persisted status directly from the database.
func LoanStatusFromDB(t testing.TB, wrapper Wrapper, loanID uuid.UUID) string {
	var status string
	queryRowScan(t, wrapper, fmt.Sprintf("SELECT status FROM loans WHERE id = '%s'", loanID.String()), &status)

	return status
}

// LoanCountFromDB counts all rows in the loans table.
func LoanCountFromDB(t testing.TB, wrapper Wrapper) int {
	var count int
	queryRowScan(t, wrapper, "SELECT count(*) FROM loans", &count)

	return count
}

func execSQL(t testing.TB, wrapper Wrapper, query string) {
	var err error

	switch w := wrapper.(type) {
	case *PGXPoolWrapper:
		_, err = w.pool.Exec(context.Background(), query)

	case *SQLDBWrapper:
		_, err = w.db.Exec(query)

	case *SQLXWrapper:
		_, err = w.db.Exec(query)

	default:
		panic(fmt.Sprintf("unsupported wrapper type: %T", w))
	}

	assert.NoError(t, err, "error executing SQL in test setup")
}

func queryRowScan(t testing.TB, wrapper Wrapper, query string, dest any) {
	var err error

	switch w := wrapper.(type) {
	case *PGXPoolWrapper:
		err = w.pool.QueryRow(context.Background(), query).Scan(dest)

	case *SQLDBWrapper:
		err = w.db.QueryRow(query).Scan(dest)

	case *SQLXWrapper:
		err = w.db.QueryRow(query).Scan(dest)

	default:
		panic(fmt.Sprintf("unsupported wrapper type: %T", w))
	}

	assert.NoError(t, err, "error reading from DB in test")
}
