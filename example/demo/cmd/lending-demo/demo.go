package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/lending/postgresengine"
)

const (
	demoBookID        = lending.BookIDInt64(1001)
	demoBookCopies    = 2
	firstDemoMemberID = lending.MemberIDInt64(501)
	otherDemoMemberID = lending.MemberIDInt64(502)
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

// Demo drives the loan lifecycle end to end: a regular lend with retry, an
// overdue loan created through a backdated clock, the out-of-stock and
// double-return conflicts, and the ledger queries.
type Demo struct {
	pool          *pgxpool.Pool
	engine        postgresengine.LendingEngine
	engineOptions []postgresengine.Option
	config        Config
}

// NewDemo creates a Demo instance with the provided pool, engine, and the
// options the engine was built with. The options are re-used to build a
// second engine with a backdated clock.
func NewDemo(pool *pgxpool.Pool, engine postgresengine.LendingEngine, engineOptions []postgresengine.Option, config Config) *Demo {
	return &Demo{
		pool:          pool,
		engine:        engine,
		engineOptions: engineOptions,
		config:        config,
	}
}

// Run executes the full scenario against a freshly prepared schema.
func (d *Demo) Run(ctx context.Context) error {
	if err := d.prepareDatabase(ctx); err != nil {
		return err
	}

	firstLoan, err := d.lendWithRetry(ctx, demoBookID, firstDemoMemberID)
	if err != nil {
		return fmt.Errorf("lending first copy: %w", err)
	}
	log.Printf("Lent book %d to member %d: loan %s due %s",
		firstLoan.BookID, firstLoan.MemberID, firstLoan.ID, firstLoan.DueDate.Format(lending.CalendarDateLayout))

	fetched, err := d.engine.GetLoanByID(ctx, firstLoan.ID)
	if err != nil {
		return fmt.Errorf("fetching loan by id: %w", err)
	}
	log.Printf("Fetched loan %s: status %s", fetched.ID, fetched.Status)

	overdueLoan, err := d.lendBackdated(ctx, demoBookID, otherDemoMemberID)
	if err != nil {
		return fmt.Errorf("lending backdated copy: %w", err)
	}
	log.Printf("Lent book %d to member %d with a borrow date %d days ago: loan %s",
		overdueLoan.BookID, overdueLoan.MemberID, d.config.OverdueBackdateDays, overdueLoan.ID)

	overdue, err := d.engine.ListOverdueLoans(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("listing overdue loans: %w", err)
	}
	for _, loan := range overdue {
		log.Printf("Overdue loan %s: member %d, due %s, status %s",
			loan.ID, loan.MemberID, loan.DueDate.Format(lending.CalendarDateLayout), loan.Status)
	}

	// Both copies are out now, so the next lend must be refused.
	_, err = d.engine.Lend(ctx, demoBookID, firstDemoMemberID)
	switch {
	case errors.Is(err, lending.ErrBookOutOfStock):
		log.Printf("Lending a third copy was refused: %v", err)
	case err == nil:
		return errors.New("expected an out-of-stock conflict, but the lend succeeded")
	default:
		return fmt.Errorf("lending third copy: %w", err)
	}

	returned, err := d.engine.Return(ctx, firstLoan.ID)
	if err != nil {
		return fmt.Errorf("returning first loan: %w", err)
	}
	log.Printf("Returned loan %s on %s: status %s",
		returned.ID, returned.ReturnDate.Format(lending.CalendarDateLayout), returned.Status)

	_, err = d.engine.Return(ctx, firstLoan.ID)
	switch {
	case errors.Is(err, lending.ErrLoanAlreadyReturned):
		log.Printf("Returning the same loan again was refused: %v", err)
	case err == nil:
		return errors.New("expected an already-returned conflict, but the return succeeded")
	default:
		return fmt.Errorf("returning first loan again: %w", err)
	}

	memberLoans, err := d.engine.ListLoansByMember(ctx, firstDemoMemberID)
	if err != nil {
		return fmt.Errorf("listing loans by member: %w", err)
	}
	for _, loan := range memberLoans {
		log.Printf("Loan %s of member %d: book %d, status %s",
			loan.ID, loan.MemberID, loan.BookID, loan.Status)
	}

	return nil
}

// lendWithRetry wraps the lend in the exponential backoff helper so transient
// persistence failures do not abort the demo.
func (d *Demo) lendWithRetry(ctx context.Context, bookID lending.BookIDInt64, memberID lending.MemberIDInt64) (lending.LoanRecord, error) {
	var record lending.LoanRecord

	err := lending.RetryWithExponentialBackoff(ctx, func(ctx context.Context) error {
		var lendErr error
		record, lendErr = d.engine.Lend(ctx, bookID, memberID)

		return lendErr
	})

	return record, err
}

// lendBackdated lends through a second engine whose clock sits in the past,
// so the resulting loan is already overdue when queried against today.
func (d *Demo) lendBackdated(ctx context.Context, bookID lending.BookIDInt64, memberID lending.MemberIDInt64) (lending.LoanRecord, error) {
	borrowInstant := time.Now().AddDate(0, 0, -d.config.OverdueBackdateDays)

	options := make([]postgresengine.Option, 0, len(d.engineOptions)+1)
	options = append(options, d.engineOptions...)
	options = append(options, postgresengine.WithClock(func() time.Time { return borrowInstant }))

	backdatedEngine, err := postgresengine.NewLendingEngineFromPGXPool(d.pool, options...)
	if err != nil {
		return lending.LoanRecord{}, err
	}

	return backdatedEngine.Lend(ctx, bookID, memberID)
}

// prepareDatabase creates the schema if needed and resets the demo fixtures,
// so the scenario can be re-run against the same database.
func (d *Demo) prepareDatabase(ctx context.Context) error {
	if _, err := d.pool.Exec(ctx, createSchemaSQL); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	if _, err := d.pool.Exec(ctx, "TRUNCATE TABLE loans"); err != nil {
		return fmt.Errorf("resetting loans: %w", err)
	}

	upsertBook := `INSERT INTO books (id, available_count) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET available_count = EXCLUDED.available_count`
	if _, err := d.pool.Exec(ctx, upsertBook, int64(demoBookID), demoBookCopies); err != nil {
		return fmt.Errorf("seeding book: %w", err)
	}

	upsertMember := `INSERT INTO members (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`
	for _, memberID := range []lending.MemberIDInt64{firstDemoMemberID, otherDemoMemberID} {
		if _, err := d.pool.Exec(ctx, upsertMember, int64(memberID)); err != nil {
			return fmt.Errorf("seeding member %d: %w", memberID, err)
		}
	}

	return nil
}
