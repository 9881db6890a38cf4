package lending

import (
	"time"

	"github.com/google/uuid"
)

// DefaultLoanPeriodDays is the fixed lending policy: a borrowed copy is due
// this many days after the borrow date.
const DefaultLoanPeriodDays = 14

// BookIDInt64 is a type alias for int64, representing the identity of a book title in the catalog.
type BookIDInt64 = int64

// MemberIDInt64 is a type alias for int64, representing the identity of a library member.
type MemberIDInt64 = int64

// LoanStatus represents the lifecycle state of a LoanRecord.
type LoanStatus string

const (
	// StatusBorrowed is the state of a loan from creation until the copy is returned.
	StatusBorrowed LoanStatus = "BORROWED"

	// StatusReturned is the terminal state of a loan; a returned loan never re-enters BORROWED.
	StatusReturned LoanStatus = "RETURNED"

	// StatusOverdue is the derived state of a loan that is still BORROWED past its due date.
	// It is never persisted - reads derive it from the due date and the current date.
	StatusOverdue LoanStatus = "OVERDUE"
)

// BuildLoanStatus converts a raw string (typically scanned from storage) into a LoanStatus.
// Only the two persisted states are accepted; OVERDUE is a read-side derivation.
func BuildLoanStatus(raw string) (LoanStatus, error) {
	switch LoanStatus(raw) {
	case StatusBorrowed:
		return StatusBorrowed, nil
	case StatusReturned:
		return StatusReturned, nil
	default:
		return "", ErrInvalidLoanStatus
	}
}

// LoanRecord is the ledger entry for one physical checkout event.
// It is created once by a successful lend operation and mutated exactly once
// by the return transition; it is never deleted.
//
// All dates are calendar dates (midnight UTC, no time-of-day component).
// ReturnDate is the zero time until the loan is returned.
type LoanRecord struct {
	ID         uuid.UUID
	BookID     BookIDInt64
	MemberID   MemberIDInt64
	BorrowDate time.Time
	DueDate    time.Time
	ReturnDate time.Time
	Status     LoanStatus
}

// LoanRecords is a slice of LoanRecord with no ordering guarantee; callers may sort.
type LoanRecords = []LoanRecord

// ToCalendarDate truncates a timestamp to its calendar date in UTC.
// All dates stored on a LoanRecord pass through this normalization.
func ToCalendarDate(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DueDateFor computes the due date for a loan created at borrowedAt under the
// given loan period policy.
func DueDateFor(borrowedAt time.Time, loanPeriodDays int) time.Time {
	return ToCalendarDate(borrowedAt).AddDate(0, 0, loanPeriodDays)
}

// BuildLoanRecord creates a new LoanRecord in the BORROWED state with its
// borrow and due dates derived from borrowedAt and the loan period policy.
func BuildLoanRecord(
	id uuid.UUID,
	bookID BookIDInt64,
	memberID MemberIDInt64,
	borrowedAt time.Time,
	loanPeriodDays int,
) LoanRecord {

	return LoanRecord{
		ID:         id,
		BookID:     bookID,
		MemberID:   memberID,
		BorrowDate: ToCalendarDate(borrowedAt),
		DueDate:    DueDateFor(borrowedAt, loanPeriodDays),
		Status:     StatusBorrowed,
	}
}

// WithReturn produces the returned copy of the loan: status RETURNED and the
// return date set to the calendar date of returnedAt. The receiver is not modified.
func (lr LoanRecord) WithReturn(returnedAt time.Time) LoanRecord {
	lr.Status = StatusReturned
	lr.ReturnDate = ToCalendarDate(returnedAt)

	return lr
}

// IsReturned reports whether the loan has reached its terminal state.
func (lr LoanRecord) IsReturned() bool {
	return lr.Status == StatusReturned
}

// IsOverdueAsOf reports whether the loan is logically overdue at the given
// date: still BORROWED with a due date strictly before asOf's calendar date.
func (lr LoanRecord) IsOverdueAsOf(asOf time.Time) bool {
	return lr.Status == StatusBorrowed && lr.DueDate.Before(ToCalendarDate(asOf))
}

// StatusAsOf returns the derived lifecycle state at the given date.
// A BORROWED loan past its due date reads as OVERDUE; the persisted status is
// not touched - returning an overdue loan still transitions BORROWED to RETURNED.
func (lr LoanRecord) StatusAsOf(asOf time.Time) LoanStatus {
	if lr.IsOverdueAsOf(asOf) {
		return StatusOverdue
	}

	return lr.Status
}
