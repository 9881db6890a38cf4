package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // driver import
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/lending/postgresengine/internal/adapters"
)

const (
	defaultBooksTableName   = "books"
	defaultMembersTableName = "members"
	defaultLoansTableName   = "loans"

	logMsgBuildQueryFailed    = "failed to build query"
	logMsgBeginTxFailed       = "failed to begin transaction"
	logMsgCommitFailed        = "failed to commit transaction"
	logMsgRollbackFailed      = "failed to roll back transaction"
	logMsgDBQueryFailed       = "database query execution failed"
	logMsgDBExecFailed        = "database execution failed"
	logMsgCloseRowsFailed     = "failed to close database rows"
	logMsgScanRowFailed       = "failed to scan database row"
	logMsgRowsAffectedFailed  = "failed to get rows affected count"
	logMsgLoanCreated         = "loan created"
	logMsgLoanReturned        = "loan returned"
	logMsgStockConflict       = "stock conflict detected"
	logMsgReturnConflict      = "return conflict detected"
	logMsgQueryCompleted      = "query completed"
	logMsgSQLExecuted         = "executed sql for: "
	logMsgOperation           = "lendingengine operation: "
	logAttrError              = "error"
	logAttrQuery              = "query"
	logAttrBookID             = "book_id"
	logAttrMemberID           = "member_id"
	logAttrLoanID             = "loan_id"
	logAttrLoanCount          = "loan_count"
	logAttrDurationMS         = "duration_ms"

	colID             = "id"
	colAvailableCount = "available_count"
	colBookID         = "book_id"
	colMemberID       = "member_id"
	colBorrowDate     = "borrow_date"
	colDueDate        = "due_date"
	colReturnDate     = "return_date"
	colStatus         = "status"

	dialectPostgres = "postgres"
	castTextType    = "text"

	operationLend        = "lend"
	operationReturn      = "return"
	operationGetLoan     = "get_loan_by_id"
	operationListMember  = "list_loans_by_member"
	operationListOverdue = "list_overdue_loans"
)

var (
	// ErrBuildingQueryFailed is returned when goqu fails to produce SQL for an operation.
	ErrBuildingQueryFailed = errors.New("building query failed")

	// ErrScanningDBRowFailed is returned when a result row cannot be scanned into a loan record.
	ErrScanningDBRowFailed = errors.New("scanning database row failed")

	// ErrBookRowMissing is returned when the stock increment of a return affects no
	// row, meaning the ledger references a book the catalog no longer has.
	ErrBookRowMissing = errors.New("book row referenced by loan is missing")
)

type (
	sqlQueryString    = string
	rowsAffectedInt64 = int64
)

// LendingEngine is the transactional Postgres implementation of the lending
// lifecycle: it decides whether a copy may be lent, atomically reserves and
// releases stock, and keeps the loan ledger consistent with the stock count.
//
// The stock mutation and the ledger mutation of Lend and Return run inside one
// database transaction; the conditional stock update serializes concurrent
// operations on the same book at the row level, so operations on different
// books never block each other.
type LendingEngine struct {
	db               adapters.DBAdapter
	booksTableName   string
	membersTableName string
	loansTableName   string
	loanPeriodDays   int
	clock            lending.Clock
	logger           lending.Logger
	contextualLogger lending.ContextualLogger
	metricsCollector lending.MetricsCollector
	tracingCollector lending.TracingCollector
}

// NewLendingEngineFromPGXPool creates a new LendingEngine using a pgx Pool with optional configuration.
func NewLendingEngineFromPGXPool(db *pgxpool.Pool, options ...Option) (LendingEngine, error) {
	if db == nil {
		return LendingEngine{}, lending.ErrNilDatabaseConnection
	}

	return newLendingEngine(adapters.NewPGXAdapter(db), options...)
}

// NewLendingEngineFromPGXPoolWithReplica creates a new LendingEngine using a primary pgx Pool
// for all writes and transactions and a replica pool for read-only queries.
func NewLendingEngineFromPGXPoolWithReplica(db *pgxpool.Pool, replica *pgxpool.Pool, options ...Option) (LendingEngine, error) {
	if db == nil || replica == nil {
		return LendingEngine{}, lending.ErrNilDatabaseConnection
	}

	return newLendingEngine(adapters.NewPGXAdapterWithReplica(db, replica), options...)
}

// NewLendingEngineFromSQLDB creates a new LendingEngine using a sql.DB with optional configuration.
func NewLendingEngineFromSQLDB(db *sql.DB, options ...Option) (LendingEngine, error) {
	if db == nil {
		return LendingEngine{}, lending.ErrNilDatabaseConnection
	}

	return newLendingEngine(adapters.NewSQLAdapter(db), options...)
}

// NewLendingEngineFromSQLX creates a new LendingEngine using a sqlx.DB with optional configuration.
func NewLendingEngineFromSQLX(db *sqlx.DB, options ...Option) (LendingEngine, error) {
	if db == nil {
		return LendingEngine{}, lending.ErrNilDatabaseConnection
	}

	return newLendingEngine(adapters.NewSQLXAdapter(db), options...)
}

func newLendingEngine(db adapters.DBAdapter, options ...Option) (LendingEngine, error) {
	es := LendingEngine{
		db:               db,
		booksTableName:   defaultBooksTableName,
		membersTableName: defaultMembersTableName,
		loansTableName:   defaultLoansTableName,
		loanPeriodDays:   lending.DefaultLoanPeriodDays,
		clock:            time.Now,
	}

	for _, option := range options {
		if err := option(&es); err != nil {
			return LendingEngine{}, err
		}
	}

	return es, nil
}

// Lend checks out one copy of the book to the member.
//
// Inside one transaction it verifies that the book and the member exist,
// atomically decrements the available count (only if it is positive), and
// inserts the new BORROWED ledger entry. Either all of it commits or none of
// it does - a failed ledger insert can never leak a stock decrement.
//
// Errors: lending.ErrBookNotFound, lending.ErrMemberNotFound,
// lending.ErrBookOutOfStock, lending.ErrPersistenceFailure.
func (es LendingEngine) Lend(
	ctx context.Context,
	bookID lending.BookIDInt64,
	memberID lending.MemberIDInt64,
) (lending.LoanRecord, error) {

	var empty lending.LoanRecord

	tracing, ctx := es.startOperationTracing(ctx, operationLend)
	metrics := es.startOperationMetrics(ctx, operationLend)
	start := time.Now()

	record, err := es.executeLend(ctx, bookID, memberID)
	duration := time.Since(start)

	if err != nil {
		es.observeOperationError(tracing, metrics, err, duration)
		return empty, err
	}

	tracing.finishSuccess(map[string]string{spanAttrLoanID: record.ID.String()})
	metrics.recordSuccess(duration)
	es.logOperationBoth(ctx, logMsgLoanCreated,
		logAttrLoanID, record.ID.String(),
		logAttrBookID, record.BookID,
		logAttrMemberID, record.MemberID,
		logAttrDurationMS, es.toMilliseconds(duration))

	return record, nil
}

// executeLend runs the lend critical section inside one transaction.
func (es LendingEngine) executeLend(
	ctx context.Context,
	bookID lending.BookIDInt64,
	memberID lending.MemberIDInt64,
) (lending.LoanRecord, error) {

	var empty lending.LoanRecord

	tx, beginErr := es.db.BeginTx(ctx)
	if beginErr != nil {
		es.logErrorBoth(ctx, logMsgBeginTxFailed, beginErr)
		return empty, errors.Join(lending.ErrPersistenceFailure, beginErr)
	}
	defer es.rollback(ctx, tx)

	bookExists, bookErr := es.rowExists(ctx, tx, es.booksTableName, bookID)
	if bookErr != nil {
		return empty, bookErr
	}
	if !bookExists {
		return empty, lending.ErrBookNotFound
	}

	memberExists, memberErr := es.rowExists(ctx, tx, es.membersTableName, memberID)
	if memberErr != nil {
		return empty, memberErr
	}
	if !memberExists {
		return empty, lending.ErrMemberNotFound
	}

	decremented, decrementErr := es.decrementStock(ctx, tx, bookID)
	if decrementErr != nil {
		return empty, decrementErr
	}
	if !decremented {
		es.logOperationBoth(ctx, logMsgStockConflict, logAttrBookID, bookID)
		return empty, lending.ErrBookOutOfStock
	}

	record := lending.BuildLoanRecord(uuid.New(), bookID, memberID, es.clock(), es.loanPeriodDays)

	if insertErr := es.insertLoan(ctx, tx, record); insertErr != nil {
		return empty, insertErr
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		es.logErrorBoth(ctx, logMsgCommitFailed, commitErr)
		return empty, errors.Join(lending.ErrPersistenceFailure, commitErr)
	}

	return record, nil
}

// Return transitions a BORROWED loan to RETURNED and releases the copy back to stock.
//
// The status transition is a conditional update, so a concurrent double return
// loses the race and observes lending.ErrLoanAlreadyReturned; the stock
// increment happens in the same transaction as the ledger update.
//
// Errors: lending.ErrLoanNotFound, lending.ErrLoanAlreadyReturned, lending.ErrPersistenceFailure.
func (es LendingEngine) Return(ctx context.Context, loanID uuid.UUID) (lending.LoanRecord, error) {
	var empty lending.LoanRecord

	tracing, ctx := es.startOperationTracing(ctx, operationReturn)
	metrics := es.startOperationMetrics(ctx, operationReturn)
	start := time.Now()

	record, err := es.executeReturn(ctx, loanID)
	duration := time.Since(start)

	if err != nil {
		es.observeOperationError(tracing, metrics, err, duration)
		return empty, err
	}

	tracing.finishSuccess(map[string]string{spanAttrLoanID: record.ID.String()})
	metrics.recordSuccess(duration)
	es.logOperationBoth(ctx, logMsgLoanReturned,
		logAttrLoanID, record.ID.String(),
		logAttrBookID, record.BookID,
		logAttrDurationMS, es.toMilliseconds(duration))

	return record, nil
}

// executeReturn runs the return critical section inside one transaction.
func (es LendingEngine) executeReturn(ctx context.Context, loanID uuid.UUID) (lending.LoanRecord, error) {
	var empty lending.LoanRecord

	tx, beginErr := es.db.BeginTx(ctx)
	if beginErr != nil {
		es.logErrorBoth(ctx, logMsgBeginTxFailed, beginErr)
		return empty, errors.Join(lending.ErrPersistenceFailure, beginErr)
	}
	defer es.rollback(ctx, tx)

	returnDate := lending.ToCalendarDate(es.clock())

	record, transitioned, transitionErr := es.transitionLoanToReturned(ctx, tx, loanID, returnDate)
	if transitionErr != nil {
		return empty, transitionErr
	}
	if !transitioned {
		conflictErr, disambiguateErr := es.disambiguateReturnConflict(ctx, tx, loanID)
		if disambiguateErr != nil {
			return empty, disambiguateErr
		}

		es.logOperationBoth(ctx, logMsgReturnConflict, logAttrLoanID, loanID.String())

		return empty, conflictErr
	}

	if incrementErr := es.incrementStock(ctx, tx, record.BookID); incrementErr != nil {
		return empty, incrementErr
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		es.logErrorBoth(ctx, logMsgCommitFailed, commitErr)
		return empty, errors.Join(lending.ErrPersistenceFailure, commitErr)
	}

	return record, nil
}

// GetLoanByID fetches a single ledger entry with its status derived for the current date.
//
// Errors: lending.ErrLoanNotFound, lending.ErrPersistenceFailure.
func (es LendingEngine) GetLoanByID(ctx context.Context, loanID uuid.UUID) (lending.LoanRecord, error) {
	var empty lending.LoanRecord

	tracing, ctx := es.startOperationTracing(ctx, operationGetLoan)
	metrics := es.startOperationMetrics(ctx, operationGetLoan)
	start := time.Now()

	selectStmt := es.selectLoanColumns().Where(goqu.C(colID).Eq(loanID.String()))

	records, err := es.queryLoans(ctx, selectStmt)
	duration := time.Since(start)

	if err != nil {
		es.observeOperationError(tracing, metrics, err, duration)
		return empty, err
	}

	if len(records) == 0 {
		es.observeOperationError(tracing, metrics, lending.ErrLoanNotFound, duration)
		return empty, lending.ErrLoanNotFound
	}

	record := records[0]
	record.Status = record.StatusAsOf(es.clock())

	tracing.finishSuccess(map[string]string{spanAttrLoanID: record.ID.String()})
	metrics.recordSuccess(duration)

	return record, nil
}

// ListLoansByMember lists all ledger entries for a member in no particular
// order, each with its status derived for the current date.
//
// Errors: lending.ErrPersistenceFailure.
func (es LendingEngine) ListLoansByMember(
	ctx context.Context,
	memberID lending.MemberIDInt64,
) (lending.LoanRecords, error) {

	tracing, ctx := es.startOperationTracing(ctx, operationListMember)
	metrics := es.startOperationMetrics(ctx, operationListMember)
	start := time.Now()

	selectStmt := es.selectLoanColumns().Where(goqu.C(colMemberID).Eq(memberID))

	records, err := es.queryLoans(ctx, selectStmt)
	duration := time.Since(start)

	if err != nil {
		es.observeOperationError(tracing, metrics, err, duration)
		return nil, err
	}

	now := es.clock()
	for i := range records {
		records[i].Status = records[i].StatusAsOf(now)
	}

	es.finishListOperation(tracing, metrics, len(records), duration)

	return records, nil
}

// ListOverdueLoans lists all loans that are still BORROWED with a due date
// before asOf's calendar date. Returned records carry the derived OVERDUE
// status; nothing is written - overdue is a view, not a stored transition.
//
// Errors: lending.ErrPersistenceFailure.
func (es LendingEngine) ListOverdueLoans(ctx context.Context, asOf time.Time) (lending.LoanRecords, error) {
	tracing, ctx := es.startOperationTracing(ctx, operationListOverdue)
	metrics := es.startOperationMetrics(ctx, operationListOverdue)
	start := time.Now()

	asOfDate := lending.ToCalendarDate(asOf).Format(lending.CalendarDateLayout)

	selectStmt := es.selectLoanColumns().Where(
		goqu.C(colStatus).Eq(string(lending.StatusBorrowed)),
		goqu.C(colDueDate).Lt(asOfDate),
	)

	records, err := es.queryLoans(ctx, selectStmt)
	duration := time.Since(start)

	if err != nil {
		es.observeOperationError(tracing, metrics, err, duration)
		return nil, err
	}

	for i := range records {
		records[i].Status = lending.StatusOverdue
	}

	es.finishListOperation(tracing, metrics, len(records), duration)

	return records, nil
}

// rowExists checks for the presence of an id in a table, inside the transaction.
func (es LendingEngine) rowExists(
	ctx context.Context,
	tx adapters.DBTransaction,
	tableName string,
	id int64,
) (bool, error) {

	selectStmt := goqu.Dialect(dialectPostgres).
		From(tableName).
		Select(goqu.C(colID)).
		Where(goqu.C(colID).Eq(id))

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		es.logErrorBoth(ctx, logMsgBuildQueryFailed, toSQLErr)
		return false, errors.Join(lending.ErrPersistenceFailure, ErrBuildingQueryFailed, toSQLErr)
	}

	rows, _, queryErr := es.executeQuery(ctx, tx, sqlQuery)
	if queryErr != nil {
		return false, queryErr
	}
	defer es.closeRows(rows)

	return rows.Next(), nil
}

// decrementStock applies the atomic conditional decrement that guards the
// whole lending lifecycle: it only succeeds while the available count is
// positive, so the count can never go negative no matter how many concurrent
// lends race for the last copy.
func (es LendingEngine) decrementStock(
	ctx context.Context,
	tx adapters.DBTransaction,
	bookID lending.BookIDInt64,
) (bool, error) {

	updateStmt := goqu.Dialect(dialectPostgres).
		Update(es.booksTableName).
		Set(goqu.Record{colAvailableCount: goqu.L(colAvailableCount + " - 1")}).
		Where(
			goqu.C(colID).Eq(bookID),
			goqu.C(colAvailableCount).Gt(0),
		)

	sqlQuery, _, toSQLErr := updateStmt.ToSQL()
	if toSQLErr != nil {
		es.logErrorBoth(ctx, logMsgBuildQueryFailed, toSQLErr)
		return false, errors.Join(lending.ErrPersistenceFailure, ErrBuildingQueryFailed, toSQLErr)
	}

	rowsAffected, execErr := es.executeStatement(ctx, tx, sqlQuery)
	if execErr != nil {
		return false, execErr
	}

	return rowsAffected == 1, nil
}

// incrementStock releases one copy back to the available count.
func (es LendingEngine) incrementStock(
	ctx context.Context,
	tx adapters.DBTransaction,
	bookID lending.BookIDInt64,
) error {

	updateStmt := goqu.Dialect(dialectPostgres).
		Update(es.booksTableName).
		Set(goqu.Record{colAvailableCount: goqu.L(colAvailableCount + " + 1")}).
		Where(goqu.C(colID).Eq(bookID))

	sqlQuery, _, toSQLErr := updateStmt.ToSQL()
	if toSQLErr != nil {
		es.logErrorBoth(ctx, logMsgBuildQueryFailed, toSQLErr)
		return errors.Join(lending.ErrPersistenceFailure, ErrBuildingQueryFailed, toSQLErr)
	}

	rowsAffected, execErr := es.executeStatement(ctx, tx, sqlQuery)
	if execErr != nil {
		return execErr
	}

	if rowsAffected != 1 {
		return errors.Join(lending.ErrPersistenceFailure, ErrBookRowMissing)
	}

	return nil
}

// insertLoan writes the new ledger entry inside the lend transaction.
func (es LendingEngine) insertLoan(
	ctx context.Context,
	tx adapters.DBTransaction,
	record lending.LoanRecord,
) error {

	insertStmt := goqu.Dialect(dialectPostgres).
		Insert(es.loansTableName).
		Rows(goqu.Record{
			colID:         record.ID.String(),
			colBookID:     record.BookID,
			colMemberID:   record.MemberID,
			colBorrowDate: record.BorrowDate.Format(lending.CalendarDateLayout),
			colDueDate:    record.DueDate.Format(lending.CalendarDateLayout),
			colStatus:     string(record.Status),
		})

	sqlQuery, _, toSQLErr := insertStmt.ToSQL()
	if toSQLErr != nil {
		es.logErrorBoth(ctx, logMsgBuildQueryFailed, toSQLErr)
		return errors.Join(lending.ErrPersistenceFailure, ErrBuildingQueryFailed, toSQLErr)
	}

	if _, execErr := es.executeStatement(ctx, tx, sqlQuery); execErr != nil {
		return execErr
	}

	return nil
}

// transitionLoanToReturned performs the conditional BORROWED -> RETURNED
// update and reads the affected loan row back in the same statement.
// A false result with nil error means no BORROWED row matched the loan id.
func (es LendingEngine) transitionLoanToReturned(
	ctx context.Context,
	tx adapters.DBTransaction,
	loanID uuid.UUID,
	returnDate time.Time,
) (lending.LoanRecord, bool, error) {

	var empty lending.LoanRecord

	updateStmt := goqu.Dialect(dialectPostgres).
		Update(es.loansTableName).
		Set(goqu.Record{
			colStatus:     string(lending.StatusReturned),
			colReturnDate: returnDate.Format(lending.CalendarDateLayout),
		}).
		Where(
			goqu.C(colID).Eq(loanID.String()),
			goqu.C(colStatus).Eq(string(lending.StatusBorrowed)),
		).
		Returning(goqu.C(colBookID), goqu.C(colMemberID), goqu.C(colBorrowDate), goqu.C(colDueDate))

	sqlQuery, _, toSQLErr := updateStmt.ToSQL()
	if toSQLErr != nil {
		es.logErrorBoth(ctx, logMsgBuildQueryFailed, toSQLErr)
		return empty, false, errors.Join(lending.ErrPersistenceFailure, ErrBuildingQueryFailed, toSQLErr)
	}

	rows, _, queryErr := es.executeQuery(ctx, tx, sqlQuery)
	if queryErr != nil {
		return empty, false, queryErr
	}
	defer es.closeRows(rows)

	if !rows.Next() {
		return empty, false, nil
	}

	record := lending.LoanRecord{
		ID:         loanID,
		ReturnDate: returnDate,
		Status:     lending.StatusReturned,
	}

	var borrowDate, dueDate time.Time

	if scanErr := rows.Scan(&record.BookID, &record.MemberID, &borrowDate, &dueDate); scanErr != nil {
		es.logErrorBoth(ctx, logMsgScanRowFailed, scanErr)
		return empty, false, errors.Join(lending.ErrPersistenceFailure, ErrScanningDBRowFailed, scanErr)
	}

	record.BorrowDate = lending.ToCalendarDate(borrowDate)
	record.DueDate = lending.ToCalendarDate(dueDate)

	return record, true, nil
}

// disambiguateReturnConflict tells a missing loan apart from an already
// returned one after the conditional transition affected no row.
func (es LendingEngine) disambiguateReturnConflict(
	ctx context.Context,
	tx adapters.DBTransaction,
	loanID uuid.UUID,
) (error, error) {

	selectStmt := goqu.Dialect(dialectPostgres).
		From(es.loansTableName).
		Select(goqu.C(colID)).
		Where(goqu.C(colID).Eq(loanID.String()))

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		es.logErrorBoth(ctx, logMsgBuildQueryFailed, toSQLErr)
		return nil, errors.Join(lending.ErrPersistenceFailure, ErrBuildingQueryFailed, toSQLErr)
	}

	rows, _, queryErr := es.executeQuery(ctx, tx, sqlQuery)
	if queryErr != nil {
		return nil, queryErr
	}
	defer es.closeRows(rows)

	if !rows.Next() {
		return lending.ErrLoanNotFound, nil
	}

	return lending.ErrLoanAlreadyReturned, nil
}

// selectLoanColumns builds the shared SELECT for all loan read operations.
func (es LendingEngine) selectLoanColumns() *goqu.SelectDataset {
	return goqu.Dialect(dialectPostgres).
		From(es.loansTableName).
		Select(
			goqu.Cast(goqu.C(colID), castTextType),
			goqu.C(colBookID),
			goqu.C(colMemberID),
			goqu.C(colBorrowDate),
			goqu.C(colDueDate),
			goqu.C(colReturnDate),
			goqu.C(colStatus),
		)
}

// queryLoans executes a loan SELECT outside any transaction and scans all rows.
func (es LendingEngine) queryLoans(ctx context.Context, selectStmt *goqu.SelectDataset) (lending.LoanRecords, error) {
	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		es.logErrorBoth(ctx, logMsgBuildQueryFailed, toSQLErr)
		return nil, errors.Join(lending.ErrPersistenceFailure, ErrBuildingQueryFailed, toSQLErr)
	}

	start := time.Now()
	rows, queryErr := es.db.Query(ctx, sqlQuery)
	duration := time.Since(start)
	es.logQueryWithDurationBoth(ctx, sqlQuery, duration)

	if queryErr != nil {
		es.logErrorBoth(ctx, logMsgDBQueryFailed, queryErr, logAttrQuery, sqlQuery)
		return nil, errors.Join(lending.ErrPersistenceFailure, queryErr)
	}
	defer es.closeRows(rows)

	records := make(lending.LoanRecords, 0)

	for rows.Next() {
		record, scanErr := es.scanLoanRow(rows)
		if scanErr != nil {
			es.logErrorBoth(ctx, logMsgScanRowFailed, scanErr)
			return nil, scanErr
		}

		records = append(records, record)
	}

	es.logOperationBoth(ctx, logMsgQueryCompleted,
		logAttrLoanCount, len(records),
		logAttrDurationMS, es.toMilliseconds(duration))

	return records, nil
}

// scanLoanRow converts one result row into a LoanRecord.
func (es LendingEngine) scanLoanRow(rows adapters.DBRows) (lending.LoanRecord, error) {
	var empty lending.LoanRecord

	var (
		rawID      string
		rawStatus  string
		borrowDate time.Time
		dueDate    time.Time
		returnDate sql.NullTime
		record     lending.LoanRecord
	)

	scanErr := rows.Scan(&rawID, &record.BookID, &record.MemberID, &borrowDate, &dueDate, &returnDate, &rawStatus)
	if scanErr != nil {
		return empty, errors.Join(lending.ErrPersistenceFailure, ErrScanningDBRowFailed, scanErr)
	}

	id, parseErr := uuid.Parse(rawID)
	if parseErr != nil {
		return empty, errors.Join(lending.ErrPersistenceFailure, ErrScanningDBRowFailed, parseErr)
	}

	status, statusErr := lending.BuildLoanStatus(rawStatus)
	if statusErr != nil {
		return empty, errors.Join(lending.ErrPersistenceFailure, ErrScanningDBRowFailed, statusErr)
	}

	record.ID = id
	record.Status = status
	record.BorrowDate = lending.ToCalendarDate(borrowDate)
	record.DueDate = lending.ToCalendarDate(dueDate)

	if returnDate.Valid {
		record.ReturnDate = lending.ToCalendarDate(returnDate.Time)
	}

	return record, nil
}

// executeQuery executes a SQL query inside the transaction and returns rows with timing information.
func (es LendingEngine) executeQuery(
	ctx context.Context,
	tx adapters.DBTransaction,
	sqlQuery sqlQueryString,
) (adapters.DBRows, time.Duration, error) {

	start := time.Now()
	rows, queryErr := tx.Query(ctx, sqlQuery)
	duration := time.Since(start)
	es.logQueryWithDurationBoth(ctx, sqlQuery, duration)

	if queryErr != nil {
		es.logErrorBoth(ctx, logMsgDBQueryFailed, queryErr, logAttrQuery, sqlQuery)
		return nil, duration, errors.Join(lending.ErrPersistenceFailure, queryErr)
	}

	return rows, duration, nil
}

// executeStatement executes a SQL statement inside the transaction and returns the rows affected.
func (es LendingEngine) executeStatement(
	ctx context.Context,
	tx adapters.DBTransaction,
	sqlQuery sqlQueryString,
) (rowsAffectedInt64, error) {

	start := time.Now()
	result, execErr := tx.Exec(ctx, sqlQuery)
	duration := time.Since(start)
	es.logQueryWithDurationBoth(ctx, sqlQuery, duration)

	if execErr != nil {
		es.logErrorBoth(ctx, logMsgDBExecFailed, execErr, logAttrQuery, sqlQuery)
		return 0, errors.Join(lending.ErrPersistenceFailure, execErr)
	}

	rowsAffected, rowsAffectedErr := result.RowsAffected()
	if rowsAffectedErr != nil {
		es.logErrorBoth(ctx, logMsgRowsAffectedFailed, rowsAffectedErr)
		return 0, errors.Join(lending.ErrPersistenceFailure, rowsAffectedErr)
	}

	return rowsAffected, nil
}

// rollback safely rolls back and logs any unexpected error; rolling back a
// committed transaction is a no-op in all adapters.
func (es LendingEngine) rollback(ctx context.Context, tx adapters.DBTransaction) {
	if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
		if es.logger != nil {
			es.logger.Warn(logMsgRollbackFailed, logAttrError, rollbackErr.Error())
		}
		if es.contextualLogger != nil {
			es.contextualLogger.WarnContext(ctx, logMsgRollbackFailed, logAttrError, rollbackErr.Error())
		}
	}
}

// closeRows safely closes database rows and logs any errors.
func (es LendingEngine) closeRows(rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		if es.logger != nil {
			es.logger.Warn(logMsgCloseRowsFailed, logAttrError, closeErr.Error())
		}
	}
}
