package helper

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/lending/postgresengine"
)

// GivenUniqueLoanID generates a unique loan id for testing.
func GivenUniqueLoanID(t testing.TB) uuid.UUID {
	loanID, err := uuid.NewV7()
	assert.NoError(t, err, "error in arranging test data")

	return loanID
}

// GivenLoanWasLent checks out a book through the engine and returns the loan record.
func GivenLoanWasLent(
	t testing.TB,
	ctx context.Context,
	engine postgresengine.LendingEngine,
	bookID lending.BookIDInt64,
	memberID lending.MemberIDInt64,
) lending.LoanRecord {

	record, err := engine.Lend(ctx, bookID, memberID)
	assert.NoError(t, err, "error in arranging test data")

	return record
}

// GivenLoanWasReturned returns a loan through the engine and returns the closed record.
func GivenLoanWasReturned(
	t testing.TB,
	ctx context.Context,
	engine postgresengine.LendingEngine,
	loanID uuid.UUID,
) lending.LoanRecord {

	record, err := engine.Return(ctx, loanID)
	assert.NoError(t, err, "error in arranging test data")

	return record
}
