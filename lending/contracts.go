package lending

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Clock supplies the current time to an engine. Injectable for deterministic tests.
type Clock func() time.Time

// BookStock is the slice of a catalog record the lending core cares about:
// the identity of a title and how many copies are currently available to lend.
// The invariant AvailableCount >= 0 holds at all times; the count is mutated
// only through an engine's atomic critical section.
type BookStock struct {
	BookID         BookIDInt64
	AvailableCount int
}

// Engine is the lending lifecycle contract exposed to callers (an HTTP layer,
// a CLI, a background job). Implementations guarantee that the stock mutation
// and the ledger mutation of Lend and Return either both happen or neither
// happens, and that operations on the same book are mutually exclusive while
// operations on different books never block each other.
type Engine interface {
	// Lend checks out one copy of the book to the member.
	// Errors: ErrBookNotFound, ErrMemberNotFound, ErrBookOutOfStock, ErrPersistenceFailure.
	Lend(ctx context.Context, bookID BookIDInt64, memberID MemberIDInt64) (LoanRecord, error)

	// Return transitions a BORROWED loan to RETURNED and releases the copy back to stock.
	// Errors: ErrLoanNotFound, ErrLoanAlreadyReturned, ErrPersistenceFailure.
	Return(ctx context.Context, loanID uuid.UUID) (LoanRecord, error)

	// GetLoanByID fetches a single ledger entry with its status derived for the current date.
	GetLoanByID(ctx context.Context, loanID uuid.UUID) (LoanRecord, error)

	// ListLoansByMember lists all ledger entries for a member in no particular order.
	ListLoansByMember(ctx context.Context, memberID MemberIDInt64) (LoanRecords, error)

	// ListOverdueLoans lists all loans that are BORROWED with a due date before asOf.
	// Returned records carry the derived OVERDUE status.
	ListOverdueLoans(ctx context.Context, asOf time.Time) (LoanRecords, error)
}

// LoanLedger is the durable store of LoanRecords. Insert and UpdateStatus are
// the only mutation entry points and are invoked exclusively by an engine
// inside its atomic section.
type LoanLedger interface {
	GetByID(ctx context.Context, loanID uuid.UUID) (LoanRecord, error)
	ListByMember(ctx context.Context, memberID MemberIDInt64) (LoanRecords, error)
	ListOverdue(ctx context.Context, asOf time.Time) (LoanRecords, error)
	Insert(ctx context.Context, record LoanRecord) error
	UpdateStatus(ctx context.Context, loanID uuid.UUID, status LoanStatus, returnDate time.Time) error
}

// CatalogStore is the narrow contract consumed from the catalog subsystem.
// Catalog CRUD, validation, and lookup beyond stock live outside the lending core.
type CatalogStore interface {
	// GetStock fetches the current stock record for a title.
	// Errors: ErrBookNotFound.
	GetStock(ctx context.Context, bookID BookIDInt64) (BookStock, error)

	// AdjustStock atomically applies delta to a title's available count,
	// enforcing non-negativity: a decrement below zero fails with
	// ErrBookOutOfStock and leaves the count untouched.
	// Errors: ErrBookNotFound, ErrBookOutOfStock.
	AdjustStock(ctx context.Context, bookID BookIDInt64, delta int) error
}

// MemberStore is the narrow contract consumed from the member subsystem.
// Only identity matters to the lending core.
type MemberStore interface {
	Exists(ctx context.Context, memberID MemberIDInt64) (bool, error)
}
