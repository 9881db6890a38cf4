package postgresengine_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/lending/postgresengine"
	. "github.com/AntonStoeckl/library-lending-go/testutil/postgresengine/helper"
	"github.com/AntonStoeckl/library-lending-go/testutil/postgresengine/helper/postgreswrapper"
)

const (
	someBookID   = lending.BookIDInt64(1001)
	someMemberID = lending.MemberIDInt64(42)
)

func Test_Lend_When_BookAndMemberExist_And_StockIsAvailable(t *testing.T) {
	// setup
	ctxWithTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	fakeClock := time.Date(2024, 1, 1, 15, 30, 0, 0, time.UTC)
	wrapper := postgreswrapper.CreateWrapperWithTestConfig(t, postgresengine.WithClock(func() time.Time { return fakeClock }))
	defer wrapper.Close()
	engine := wrapper.GetEngine()

	// arrange
	postgreswrapper.CleanUp(t, wrapper)
	postgreswrapper.SeedBook(t, wrapper, someBookID, 3)
	postgreswrapper.SeedMember(t, wrapper, someMemberID)

	// act
	record, err := engine.Lend(ctxWithTimeout, someBookID, someMemberID)

	// assert
	assert.NoError(t, err, "error in lending the book")
	assert.Equal(t, someBookID, record.BookID)
	assert.Equal(t, someMemberID, record.MemberID)
	assert.Equal(t, lending.StatusBorrowed, record.Status)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), record.BorrowDate)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), record.DueDate)
	assert.Equal(t, 2, postgreswrapper.StockCountFromDB(t, wrapper, someBookID))
	assert.Equal(t, "BORROWED", postgreswrapper.LoanStatusFromDB(t, wrapper, record.ID))
}

func Test_Lend_When_BookDoesNotExist(t *testing.T) {
	// setup
	ctxWithTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wrapper := postgreswrapper.CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	engine := wrapper.GetEngine()

	// arrange
	postgreswrapper.CleanUp(t, wrapper)
	postgreswrapper.SeedMember(t, wrapper, someMemberID)

	// act
	_, err := engine.Lend(ctxWithTimeout, someBookID, someMemberID)

	// assert
	assert.ErrorIs(t, err, lending.ErrBookNotFound)
	assert.Equal(t, 0, postgreswrapper.LoanCountFromDB(t, wrapper), "no loan should be recorded")
}

func Test_Lend_When_MemberDoesNotExist(t *testing.T) {
	// setup
	ctxWithTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wrapper := postgreswrapper.CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	engine := wrapper.GetEngine()

	// arrange
	postgreswrapper.CleanUp(t, wrapper)
	postgreswrapper.SeedBook(t, wrapper, someBookID, 1)

	// act
	_, err := engine.Lend(ctxWithTimeout, someBookID, someMemberID)

	// assert
	assert.ErrorIs(t, err, lending.ErrMemberNotFound)
	assert.Equal(t, 1, postgreswrapper.StockCountFromDB(t, wrapper, someBookID), "stock should be untouched")
}

func Test_Lend_When_NoCopiesAreAvailable(t *testing.T) {
	// setup
	ctxWithTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wrapper := postgreswrapper.CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	engine := wrapper.GetEngine()

	// arrange
	postgreswrapper.CleanUp(t, wrapper)
	postgreswrapper.SeedBook(t, wrapper, someBookID, 0)
	postgreswrapper.SeedMember(t, wrapper, someMemberID)

	// act
	_, err := engine.Lend(ctxWithTimeout, someBookID, someMemberID)

	// assert
	assert.ErrorIs(t, err, lending.ErrBookOutOfStock)
	assert.Equal(t, 0, postgreswrapper.StockCountFromDB(t, wrapper, someBookID))
	assert.Equal(t, 0, postgreswrapper.LoanCountFromDB(t, wrapper), "no loan should be recorded")
}

func Test_Lend_When_ManyMembersCompeteForLimitedStock(t *testing.T) {
	// setup
	ctxWithTimeout, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	wrapper := postgreswrapper.CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	engine := wrapper.GetEngine()

	const availableCopies = 3
	const competingMembers = 20

	// arrange
	postgreswrapper.CleanUp(t, wrapper)
	postgreswrapper.SeedBook(t, wrapper, someBookID, availableCopies)
	for i := 0; i < competingMembers; i++ {
		postgreswrapper.SeedMember(t, wrapper, lending.MemberIDInt64(i+1))
	}

	// act
	var successCount, conflictCount int
	var countMu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < competingMembers; i++ {
		wg.Add(1)

		go func(memberID lending.MemberIDInt64) {
			defer wg.Done()

			_, lendErr := engine.Lend(ctxWithTimeout, someBookID, memberID)

			countMu.Lock()
			defer countMu.Unlock()

			switch {
			case lendErr == nil:
				successCount++
			case errors.Is(lendErr, lending.ErrBookOutOfStock):
				conflictCount++
			default:
				t.Errorf("unexpected error: %v", lendErr)
			}
		}(lending.MemberIDInt64(i + 1))
	}

	wg.Wait()

	// assert
	assert.Equal(t, availableCopies, successCount, "exactly one lend per copy should succeed")
	assert.Equal(t, competingMembers-availableCopies, conflictCount, "all other lends should be rejected")
	assert.Equal(t, 0, postgreswrapper.StockCountFromDB(t, wrapper, someBookID), "stock should be exactly zero, never negative")
	assert.Equal(t, availableCopies, postgreswrapper.LoanCountFromDB(t, wrapper), "one ledger entry per successful lend")
}

func Test_Return_When_LoanIsOpen(t *testing.T) {
	// setup
	ctxWithTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wrapper := postgreswrapper.CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	engine := wrapper.GetEngine()

	// arrange
	postgreswrapper.CleanUp(t, wrapper)
	postgreswrapper.SeedBook(t, wrapper, someBookID, 1)
	postgreswrapper.SeedMember(t, wrapper, someMemberID)
	loan := GivenLoanWasLent(t, ctxWithTimeout, engine, someBookID, someMemberID)

	// act
	returned, err := engine.Return(ctxWithTimeout, loan.ID)

	// assert
	assert.NoError(t, err, "error in returning the loan")
	assert.Equal(t, lending.StatusReturned, returned.Status)
	assert.Equal(t, loan.BorrowDate, returned.BorrowDate)
	assert.Equal(t, loan.DueDate, returned.DueDate)
	assert.False(t, returned.ReturnDate.IsZero(), "return date should be set")
	assert.Equal(t, 1, postgreswrapper.StockCountFromDB(t, wrapper, someBookID), "the copy should be back in stock")
	assert.Equal(t, "RETURNED", postgreswrapper.LoanStatusFromDB(t, wrapper, loan.ID))
}

func Test_Return_When_LoanDoesNotExist(t *testing.T) {
	// setup
	ctxWithTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wrapper := postgreswrapper.CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	engine := wrapper.GetEngine()

	// arrange
	postgreswrapper.CleanUp(t, wrapper)

	// act
	_, err := engine.Return(ctxWithTimeout, GivenUniqueLoanID(t))

	// assert
	assert.ErrorIs(t, err, lending.ErrLoanNotFound)
}

func Test_Return_When_LoanWasAlreadyReturned(t *testing.T) {
	// setup
	ctxWithTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wrapper := postgreswrapper.CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	engine := wrapper.GetEngine()

	// arrange
	postgreswrapper.CleanUp(t, wrapper)
	postgreswrapper.SeedBook(t, wrapper, someBookID, 1)
	postgreswrapper.SeedMember(t, wrapper, someMemberID)
	loan := GivenLoanWasLent(t, ctxWithTimeout, engine, someBookID, someMemberID)
	GivenLoanWasReturned(t, ctxWithTimeout, engine, loan.ID)

	// act
	_, err := engine.Return(ctxWithTimeout, loan.ID)

	// assert
	assert.ErrorIs(t, err, lending.ErrLoanAlreadyReturned)
	assert.Equal(t, 1, postgreswrapper.StockCountFromDB(t, wrapper, someBookID), "stock should not be incremented twice")
}

func Test_Return_When_TwoReturnsRaceForTheSameLoan(t *testing.T) {
	// setup
	ctxWithTimeout, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	wrapper := postgreswrapper.CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	engine := wrapper.GetEngine()

	// arrange
	postgreswrapper.CleanUp(t, wrapper)
	postgreswrapper.SeedBook(t, wrapper, someBookID, 1)
	postgreswrapper.SeedMember(t, wrapper, someMemberID)
	loan := GivenLoanWasLent(t, ctxWithTimeout, engine, someBookID, someMemberID)

	// act
	errs := make([]error, 2)
	start := make(chan struct{})
	var wg sync.WaitGroup

	for i := 0; i < 2; i++ {
		wg.Add(1)

		go func(idx int) {
			defer wg.Done()
			<-start
			_, errs[idx] = engine.Return(ctxWithTimeout, loan.ID)
		}(i)
	}

	close(start)
	wg.Wait()

	// assert
	var successCount, conflictCount int
	for _, err := range errs {
		switch {
		case err == nil:
			successCount++
		case errors.Is(err, lending.ErrLoanAlreadyReturned):
			conflictCount++
		}
	}

	assert.Equal(t, 1, successCount, "exactly one return should succeed")
	assert.Equal(t, 1, conflictCount, "the other return should be rejected")
	assert.Equal(t, 1, postgreswrapper.StockCountFromDB(t, wrapper, someBookID), "the copy should be back in stock exactly once")
}

func Test_GetLoanByID_When_LoanExists(t *testing.T) {
	// setup
	ctxWithTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wrapper := postgreswrapper.CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	engine := wrapper.GetEngine()

	// arrange
	postgreswrapper.CleanUp(t, wrapper)
	postgreswrapper.SeedBook(t, wrapper, someBookID, 1)
	postgreswrapper.SeedMember(t, wrapper, someMemberID)
	loan := GivenLoanWasLent(t, ctxWithTimeout, engine, someBookID, someMemberID)

	// act
	record, err := engine.GetLoanByID(ctxWithTimeout, loan.ID)

	// assert
	assert.NoError(t, err, "error in fetching the loan")
	assert.Equal(t, loan.ID, record.ID)
	assert.Equal(t, loan.BookID, record.BookID)
	assert.Equal(t, loan.MemberID, record.MemberID)
	assert.Equal(t, loan.BorrowDate, record.BorrowDate)
	assert.Equal(t, loan.DueDate, record.DueDate)
	assert.Equal(t, lending.StatusBorrowed, record.Status)
}

func Test_GetLoanByID_When_LoanDoesNotExist(t *testing.T) {
	// setup
	ctxWithTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wrapper := postgreswrapper.CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	engine := wrapper.GetEngine()

	// arrange
	postgreswrapper.CleanUp(t, wrapper)

	// act
	_, err := engine.GetLoanByID(ctxWithTimeout, GivenUniqueLoanID(t))

	// assert
	assert.ErrorIs(t, err, lending.ErrLoanNotFound)
}

func Test_GetLoanByID_When_LoanIsPastItsDueDate(t *testing.T) {
	// setup
	ctxWithTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	borrowedAt := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	clockNow := borrowedAt

	wrapper := postgreswrapper.CreateWrapperWithTestConfig(t, postgresengine.WithClock(func() time.Time { return clockNow }))
	defer wrapper.Close()
	engine := wrapper.GetEngine()

	// arrange
	postgreswrapper.CleanUp(t, wrapper)
	postgreswrapper.SeedBook(t, wrapper, someBookID, 1)
	postgreswrapper.SeedMember(t, wrapper, someMemberID)
	loan := GivenLoanWasLent(t, ctxWithTimeout, engine, someBookID, someMemberID)
	clockNow = borrowedAt.AddDate(0, 0, lending.DefaultLoanPeriodDays+1)

	// act
	record, err := engine.GetLoanByID(ctxWithTimeout, loan.ID)

	// assert
	assert.NoError(t, err, "error in fetching the loan")
	assert.Equal(t, lending.StatusOverdue, record.Status, "status should be derived as overdue")
	assert.Equal(t, "BORROWED", postgreswrapper.LoanStatusFromDB(t, wrapper, loan.ID),
		"the persisted status should stay BORROWED")
}

func Test_ListLoansByMember_When_MemberHasOpenAndClosedLoans(t *testing.T) {
	// setup
	ctxWithTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wrapper := postgreswrapper.CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	engine := wrapper.GetEngine()

	// arrange
	postgreswrapper.CleanUp(t, wrapper)
	postgreswrapper.SeedBook(t, wrapper, someBookID, 2)
	postgreswrapper.SeedBook(t, wrapper, someBookID+1, 1)
	postgreswrapper.SeedMember(t, wrapper, someMemberID)
	postgreswrapper.SeedMember(t, wrapper, someMemberID+1)
	firstLoan := GivenLoanWasLent(t, ctxWithTimeout, engine, someBookID, someMemberID)
	GivenLoanWasLent(t, ctxWithTimeout, engine, someBookID+1, someMemberID)
	GivenLoanWasLent(t, ctxWithTimeout, engine, someBookID, someMemberID+1) // other member's loan
	GivenLoanWasReturned(t, ctxWithTimeout, engine, firstLoan.ID)

	// act
	records, err := engine.ListLoansByMember(ctxWithTimeout, someMemberID)

	// assert
	assert.NoError(t, err, "error in listing the loans")
	assert.Len(t, records, 2, "only the member's own loans should be listed")

	for _, record := range records {
		assert.Equal(t, someMemberID, record.MemberID)
		if record.ID == firstLoan.ID {
			assert.Equal(t, lending.StatusReturned, record.Status)
		} else {
			assert.Equal(t, lending.StatusBorrowed, record.Status)
		}
	}
}

func Test_ListLoansByMember_When_MemberHasNoLoans(t *testing.T) {
	// setup
	ctxWithTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wrapper := postgreswrapper.CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	engine := wrapper.GetEngine()

	// arrange
	postgreswrapper.CleanUp(t, wrapper)

	// act
	records, err := engine.ListLoansByMember(ctxWithTimeout, someMemberID)

	// assert
	assert.NoError(t, err, "listing for an unknown member should not fail")
	assert.Empty(t, records)
}

func Test_ListOverdueLoans_When_SomeLoansArePastTheirDueDate(t *testing.T) {
	// setup
	ctxWithTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	borrowedAt := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	clockNow := borrowedAt

	wrapper := postgreswrapper.CreateWrapperWithTestConfig(t, postgresengine.WithClock(func() time.Time { return clockNow }))
	defer wrapper.Close()
	engine := wrapper.GetEngine()

	// arrange
	postgreswrapper.CleanUp(t, wrapper)
	postgreswrapper.SeedBook(t, wrapper, someBookID, 2)
	postgreswrapper.SeedMember(t, wrapper, someMemberID)
	overdueLoan := GivenLoanWasLent(t, ctxWithTimeout, engine, someBookID, someMemberID)
	clockNow = borrowedAt.AddDate(0, 0, 10)
	freshLoan := GivenLoanWasLent(t, ctxWithTimeout, engine, someBookID, someMemberID)

	// act
	records, err := engine.ListOverdueLoans(ctxWithTimeout, borrowedAt.AddDate(0, 0, lending.DefaultLoanPeriodDays+1))

	// assert
	assert.NoError(t, err, "error in listing overdue loans")
	assert.Len(t, records, 1, "only the loan past its due date should be listed")
	assert.Equal(t, overdueLoan.ID, records[0].ID)
	assert.Equal(t, lending.StatusOverdue, records[0].Status)
	assert.NotEqual(t, freshLoan.ID, records[0].ID)
}

func Test_ListOverdueLoans_When_TheOverdueLoanIsReturned(t *testing.T) {
	// setup
	ctxWithTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wrapper := postgreswrapper.CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	engine := wrapper.GetEngine()

	// arrange
	postgreswrapper.CleanUp(t, wrapper)
	postgreswrapper.SeedBook(t, wrapper, someBookID, 1)
	postgreswrapper.SeedMember(t, wrapper, someMemberID)
	loan := GivenLoanWasLent(t, ctxWithTimeout, engine, someBookID, someMemberID)
	GivenLoanWasReturned(t, ctxWithTimeout, engine, loan.ID)

	// act
	records, err := engine.ListOverdueLoans(ctxWithTimeout, time.Now().AddDate(1, 0, 0))

	// assert
	assert.NoError(t, err, "error in listing overdue loans")
	assert.Empty(t, records, "a returned loan should never be overdue")
}
