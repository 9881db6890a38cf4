package memoryengine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

// catalogStore is the in-memory catalog collaborator: book identity plus the
// mutable available-stock count, nothing else.
type catalogStore struct {
	mu    sync.RWMutex
	stock map[lending.BookIDInt64]int
}

func newCatalogStore() *catalogStore {
	return &catalogStore{stock: make(map[lending.BookIDInt64]int)}
}

// GetStock fetches the current stock record for a title.
func (cs *catalogStore) GetStock(_ context.Context, bookID lending.BookIDInt64) (lending.BookStock, error) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	availableCount, found := cs.stock[bookID]
	if !found {
		return lending.BookStock{}, lending.ErrBookNotFound
	}

	return lending.BookStock{BookID: bookID, AvailableCount: availableCount}, nil
}

// AdjustStock atomically applies delta to a title's available count.
// A decrement below zero fails with lending.ErrBookOutOfStock and leaves the
// count untouched - this is the non-negativity guard of the whole system.
func (cs *catalogStore) AdjustStock(_ context.Context, bookID lending.BookIDInt64, delta int) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	availableCount, found := cs.stock[bookID]
	if !found {
		return lending.ErrBookNotFound
	}

	if availableCount+delta < 0 {
		return lending.ErrBookOutOfStock
	}

	cs.stock[bookID] = availableCount + delta

	return nil
}

// add seeds a new title; duplicates and negative counts are rejected.
func (cs *catalogStore) add(bookID lending.BookIDInt64, availableCount int) error {
	if availableCount < 0 {
		return ErrNegativeStockCount
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	if _, found := cs.stock[bookID]; found {
		return ErrBookAlreadyInCatalog
	}

	cs.stock[bookID] = availableCount

	return nil
}

// memberStore is the in-memory member collaborator: only identity matters.
type memberStore struct {
	mu      sync.RWMutex
	members map[lending.MemberIDInt64]struct{}
}

func newMemberStore() *memberStore {
	return &memberStore{members: make(map[lending.MemberIDInt64]struct{})}
}

// Exists reports whether the member is registered.
func (ms *memberStore) Exists(_ context.Context, memberID lending.MemberIDInt64) (bool, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	_, found := ms.members[memberID]

	return found, nil
}

// add seeds a new member; duplicates are rejected.
func (ms *memberStore) add(memberID lending.MemberIDInt64) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, found := ms.members[memberID]; found {
		return ErrMemberAlreadyRegistered
	}

	ms.members[memberID] = struct{}{}

	return nil
}

// loanLedger is the in-memory ledger: append-mostly, records are never deleted.
type loanLedger struct {
	mu       sync.RWMutex
	loans    map[uuid.UUID]lending.LoanRecord
	byMember map[lending.MemberIDInt64][]uuid.UUID
}

func newLoanLedger() *loanLedger {
	return &loanLedger{
		loans:    make(map[uuid.UUID]lending.LoanRecord),
		byMember: make(map[lending.MemberIDInt64][]uuid.UUID),
	}
}

// GetByID fetches a single ledger entry.
func (ll *loanLedger) GetByID(_ context.Context, loanID uuid.UUID) (lending.LoanRecord, error) {
	ll.mu.RLock()
	defer ll.mu.RUnlock()

	record, found := ll.loans[loanID]
	if !found {
		return lending.LoanRecord{}, lending.ErrLoanNotFound
	}

	return record, nil
}

// ListByMember lists all ledger entries for a member in no particular order.
func (ll *loanLedger) ListByMember(_ context.Context, memberID lending.MemberIDInt64) (lending.LoanRecords, error) {
	ll.mu.RLock()
	defer ll.mu.RUnlock()

	loanIDs := ll.byMember[memberID]
	records := make(lending.LoanRecords, 0, len(loanIDs))

	for _, loanID := range loanIDs {
		records = append(records, ll.loans[loanID])
	}

	return records, nil
}

// ListOverdue lists all entries that are BORROWED with a due date before asOf.
func (ll *loanLedger) ListOverdue(_ context.Context, asOf time.Time) (lending.LoanRecords, error) {
	ll.mu.RLock()
	defer ll.mu.RUnlock()

	records := make(lending.LoanRecords, 0)

	for _, record := range ll.loans {
		if record.IsOverdueAsOf(asOf) {
			records = append(records, record)
		}
	}

	return records, nil
}

// Insert writes a new ledger entry; loan ids are unique for the record's lifetime.
func (ll *loanLedger) Insert(_ context.Context, record lending.LoanRecord) error {
	ll.mu.Lock()
	defer ll.mu.Unlock()

	if _, found := ll.loans[record.ID]; found {
		return ErrDuplicateLoanID
	}

	ll.loans[record.ID] = record
	ll.byMember[record.MemberID] = append(ll.byMember[record.MemberID], record.ID)

	return nil
}

// UpdateStatus applies the single allowed mutation: the return transition.
func (ll *loanLedger) UpdateStatus(
	_ context.Context,
	loanID uuid.UUID,
	status lending.LoanStatus,
	returnDate time.Time,
) error {

	ll.mu.Lock()
	defer ll.mu.Unlock()

	record, found := ll.loans[loanID]
	if !found {
		return lending.ErrLoanNotFound
	}

	record.Status = status
	record.ReturnDate = returnDate
	ll.loans[loanID] = record

	return nil
}

// keyedMutex provides one mutex per book id so that stock critical sections
// for different books never block each other. Entries are never removed; the
// map is bounded by the size of the catalog.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[lending.BookIDInt64]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[lending.BookIDInt64]*sync.Mutex)}
}

// acquire locks the mutex for the given book and returns the unlock function.
func (km *keyedMutex) acquire(bookID lending.BookIDInt64) func() {
	km.mu.Lock()
	bookLock, found := km.locks[bookID]
	if !found {
		bookLock = &sync.Mutex{}
		km.locks[bookID] = bookLock
	}
	km.mu.Unlock()

	bookLock.Lock()

	return bookLock.Unlock
}
