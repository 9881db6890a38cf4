package lending

import "errors"

var (
	// ErrBookNotFound is returned when a lend operation references a book that is not in the catalog.
	ErrBookNotFound = errors.New("book not found")

	// ErrMemberNotFound is returned when a lend operation references an unknown member.
	ErrMemberNotFound = errors.New("member not found")

	// ErrLoanNotFound is returned when a loan id does not exist in the ledger.
	ErrLoanNotFound = errors.New("loan not found")

	// ErrBookOutOfStock is returned when the atomic stock check observed zero available copies.
	// It is an expected business outcome under concurrent lending, not a system fault.
	ErrBookOutOfStock = errors.New("book is out of stock")

	// ErrLoanAlreadyReturned is returned when a return is attempted on a loan that is not BORROWED.
	ErrLoanAlreadyReturned = errors.New("loan was already returned")

	// ErrPersistenceFailure indicates the underlying store or transaction failed.
	// The dual-write (stock + ledger) has been rolled back fully; callers may retry.
	ErrPersistenceFailure = errors.New("persistence failure")

	// ErrInvalidLoanStatus is returned when a raw status value is not a persisted lifecycle state.
	ErrInvalidLoanStatus = errors.New("invalid loan status")

	// ErrNilDatabaseConnection is returned when an engine constructor receives a nil connection.
	ErrNilDatabaseConnection = errors.New("database connection must not be nil")

	// ErrEmptyTableName is returned when an empty table name is supplied via options.
	ErrEmptyTableName = errors.New("empty table name supplied")

	// ErrInvalidLoanPeriod is returned when a non-positive loan period is supplied via options.
	ErrInvalidLoanPeriod = errors.New("loan period must be positive")

	// ErrNilClock is returned when a nil clock function is supplied via options.
	ErrNilClock = errors.New("clock must not be nil")
)

// IsBusinessError reports whether err belongs to the expected business-outcome
// taxonomy (NotFound / Conflict) as opposed to an infrastructure failure.
// Business errors are returned to callers as typed results and are never retried.
func IsBusinessError(err error) bool {
	return errors.Is(err, ErrBookNotFound) ||
		errors.Is(err, ErrMemberNotFound) ||
		errors.Is(err, ErrLoanNotFound) ||
		errors.Is(err, ErrBookOutOfStock) ||
		errors.Is(err, ErrLoanAlreadyReturned)
}
