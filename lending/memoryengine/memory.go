package memoryengine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

const (
	logMsgLoanCreated      = "loan created"
	logMsgLoanReturned     = "loan returned"
	logMsgStockConflict    = "lend rejected, no available copies"
	logMsgReturnConflict   = "return rejected, loan is not open"
	logMsgCompensatedStock = "ledger insert failed, stock decrement compensated"

	logAttrBookID   = "book_id"
	logAttrMemberID = "member_id"
	logAttrLoanID   = "loan_id"
)

// Seeding and configuration errors.
var (
	ErrBookAlreadyInCatalog    = errors.New("book is already in the catalog")
	ErrMemberAlreadyRegistered = errors.New("member is already registered")
	ErrNegativeStockCount      = errors.New("stock count must not be negative")
	ErrDuplicateLoanID         = errors.New("loan id already exists in the ledger")
)

// LendingEngine is the in-process implementation of lending.Engine.
// It holds catalog, member registry and loan ledger in memory and
// serializes the lend/return critical section per book, never globally.
//
// The zero value is not usable; create instances with NewLendingEngine.
type LendingEngine struct {
	catalog        *catalogStore
	members        *memberStore
	ledger         *loanLedger
	bookLocks      *keyedMutex
	loanPeriodDays int
	clock          lending.Clock
	logger         lending.Logger
}

// Option defines a functional option for configuring the LendingEngine.
type Option func(*LendingEngine) error

// WithLoanPeriod overrides the loan period applied to new loans.
func WithLoanPeriod(days int) Option {
	return func(e *LendingEngine) error {
		if days <= 0 {
			return lending.ErrInvalidLoanPeriod
		}

		e.loanPeriodDays = days

		return nil
	}
}

// WithClock overrides the wall clock, typically for tests.
func WithClock(clock lending.Clock) Option {
	return func(e *LendingEngine) error {
		if clock == nil {
			return lending.ErrNilClock
		}

		e.clock = clock

		return nil
	}
}

// WithLogger configures a logger for operational messages.
func WithLogger(logger lending.Logger) Option {
	return func(e *LendingEngine) error {
		e.logger = logger

		return nil
	}
}

// NewLendingEngine creates an empty in-process engine.
// Seed it with AddBook and AddMember before lending.
func NewLendingEngine(options ...Option) (*LendingEngine, error) {
	engine := &LendingEngine{
		catalog:        newCatalogStore(),
		members:        newMemberStore(),
		ledger:         newLoanLedger(),
		bookLocks:      newKeyedMutex(),
		loanPeriodDays: lending.DefaultLoanPeriodDays,
		clock:          time.Now,
	}

	for _, option := range options {
		if err := option(engine); err != nil {
			return nil, err
		}
	}

	return engine, nil
}

var _ lending.Engine = (*LendingEngine)(nil)

// AddBook seeds a title with an initial number of available copies.
func (e *LendingEngine) AddBook(bookID lending.BookIDInt64, availableCount int) error {
	return e.catalog.add(bookID, availableCount)
}

// AddMember registers a member.
func (e *LendingEngine) AddMember(memberID lending.MemberIDInt64) error {
	return e.members.add(memberID)
}

// Catalog exposes the engine's catalog store.
func (e *LendingEngine) Catalog() lending.CatalogStore {
	return e.catalog
}

// Members exposes the engine's member store.
func (e *LendingEngine) Members() lending.MemberStore {
	return e.members
}

// Ledger exposes the engine's loan ledger.
func (e *LendingEngine) Ledger() lending.LoanLedger {
	return e.ledger
}

// Lend checks out one copy of a book to a member.
// It decrements the available count and records the loan as one atomic unit:
// if the ledger insert fails the decrement is compensated before returning.
func (e *LendingEngine) Lend(
	ctx context.Context,
	bookID lending.BookIDInt64,
	memberID lending.MemberIDInt64,
) (lending.LoanRecord, error) {

	if _, err := e.catalog.GetStock(ctx, bookID); err != nil {
		return lending.LoanRecord{}, err
	}

	memberExists, err := e.members.Exists(ctx, memberID)
	if err != nil {
		return lending.LoanRecord{}, err
	}

	if !memberExists {
		return lending.LoanRecord{}, lending.ErrMemberNotFound
	}

	unlock := e.bookLocks.acquire(bookID)
	defer unlock()

	if err = e.catalog.AdjustStock(ctx, bookID, -1); err != nil {
		if errors.Is(err, lending.ErrBookOutOfStock) {
			e.logInfo(logMsgStockConflict, logAttrBookID, bookID)
		}

		return lending.LoanRecord{}, err
	}

	record := lending.BuildLoanRecord(uuid.New(), bookID, memberID, e.clock(), e.loanPeriodDays)

	if err = e.ledger.Insert(ctx, record); err != nil {
		if compErr := e.catalog.AdjustStock(ctx, bookID, +1); compErr != nil {
			return lending.LoanRecord{}, errors.Join(lending.ErrPersistenceFailure, err, compErr)
		}

		e.logInfo(logMsgCompensatedStock, logAttrBookID, bookID)

		return lending.LoanRecord{}, errors.Join(lending.ErrPersistenceFailure, err)
	}

	e.logInfo(logMsgLoanCreated, logAttrLoanID, record.ID.String(), logAttrMemberID, memberID)

	return record, nil
}

// Return closes an open loan and puts the copy back into stock.
// Returning a loan that is already closed fails with
// lending.ErrLoanAlreadyReturned and changes nothing.
func (e *LendingEngine) Return(ctx context.Context, loanID uuid.UUID) (lending.LoanRecord, error) {
	record, err := e.ledger.GetByID(ctx, loanID)
	if err != nil {
		return lending.LoanRecord{}, err
	}

	unlock := e.bookLocks.acquire(record.BookID)
	defer unlock()

	// Re-read under the book lock, a concurrent Return may have won.
	record, err = e.ledger.GetByID(ctx, loanID)
	if err != nil {
		return lending.LoanRecord{}, err
	}

	if record.IsReturned() {
		e.logInfo(logMsgReturnConflict, logAttrLoanID, loanID.String())

		return lending.LoanRecord{}, lending.ErrLoanAlreadyReturned
	}

	returned := record.WithReturn(e.clock())

	if err = e.ledger.UpdateStatus(ctx, loanID, returned.Status, returned.ReturnDate); err != nil {
		return lending.LoanRecord{}, errors.Join(lending.ErrPersistenceFailure, err)
	}

	if err = e.catalog.AdjustStock(ctx, record.BookID, +1); err != nil {
		// Roll the ledger transition back so the dual-write stays all-or-nothing.
		if compErr := e.ledger.UpdateStatus(ctx, loanID, lending.StatusBorrowed, time.Time{}); compErr != nil {
			return lending.LoanRecord{}, errors.Join(lending.ErrPersistenceFailure, err, compErr)
		}

		return lending.LoanRecord{}, errors.Join(lending.ErrPersistenceFailure, err)
	}

	e.logInfo(logMsgLoanReturned, logAttrLoanID, loanID.String(), logAttrBookID, record.BookID)

	return returned, nil
}

// GetLoanByID fetches a single loan with its status derived as of now.
func (e *LendingEngine) GetLoanByID(ctx context.Context, loanID uuid.UUID) (lending.LoanRecord, error) {
	record, err := e.ledger.GetByID(ctx, loanID)
	if err != nil {
		return lending.LoanRecord{}, err
	}

	record.Status = record.StatusAsOf(e.clock())

	return record, nil
}

// ListLoansByMember lists all loans of a member, open and closed,
// with statuses derived as of now.
func (e *LendingEngine) ListLoansByMember(
	ctx context.Context,
	memberID lending.MemberIDInt64,
) (lending.LoanRecords, error) {

	records, err := e.ledger.ListByMember(ctx, memberID)
	if err != nil {
		return nil, err
	}

	asOf := e.clock()
	for idx := range records {
		records[idx].Status = records[idx].StatusAsOf(asOf)
	}

	return records, nil
}

// ListOverdueLoans lists all open loans whose due date lies before asOf's calendar date.
func (e *LendingEngine) ListOverdueLoans(ctx context.Context, asOf time.Time) (lending.LoanRecords, error) {
	records, err := e.ledger.ListOverdue(ctx, asOf)
	if err != nil {
		return nil, err
	}

	for idx := range records {
		records[idx].Status = lending.StatusOverdue
	}

	return records, nil
}

func (e *LendingEngine) logInfo(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Info(msg, args...)
	}
}
