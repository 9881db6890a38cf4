package lending

import (
	"errors"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

// CalendarDateLayout is the wire format for all loan dates: calendar dates
// without a time-of-day component.
const CalendarDateLayout = "2006-01-02"

// ErrMarshalingLoanRecordFailed is returned when a LoanRecord cannot be serialized.
var ErrMarshalingLoanRecordFailed = errors.New("marshaling loan record failed")

// ErrUnmarshalingLoanRecordFailed is returned when a LoanRecord cannot be deserialized.
var ErrUnmarshalingLoanRecordFailed = errors.New("unmarshaling loan record failed")

// loanRecordJSON is the wire shape of a LoanRecord: every field of the domain
// entity verbatim, dates as calendar dates, returnDate null until set.
type loanRecordJSON struct {
	ID         string  `json:"id"`
	BookID     int64   `json:"bookId"`
	MemberID   int64   `json:"memberId"`
	BorrowDate string  `json:"borrowDate"`
	DueDate    string  `json:"dueDate"`
	ReturnDate *string `json:"returnDate"`
	Status     string  `json:"status"`
}

// MarshalLoanRecordJSON serializes a LoanRecord to its wire representation.
func MarshalLoanRecordJSON(record LoanRecord) ([]byte, error) {
	wire := loanRecordJSON{
		ID:         record.ID.String(),
		BookID:     record.BookID,
		MemberID:   record.MemberID,
		BorrowDate: record.BorrowDate.Format(CalendarDateLayout),
		DueDate:    record.DueDate.Format(CalendarDateLayout),
		Status:     string(record.Status),
	}

	if !record.ReturnDate.IsZero() {
		returnDate := record.ReturnDate.Format(CalendarDateLayout)
		wire.ReturnDate = &returnDate
	}

	payload, err := jsoniter.ConfigFastest.Marshal(wire)
	if err != nil {
		return nil, errors.Join(ErrMarshalingLoanRecordFailed, err)
	}

	return payload, nil
}

// UnmarshalLoanRecordJSON deserializes the wire representation back into a LoanRecord.
func UnmarshalLoanRecordJSON(payload []byte) (LoanRecord, error) {
	var empty LoanRecord
	var wire loanRecordJSON

	if err := jsoniter.ConfigFastest.Unmarshal(payload, &wire); err != nil {
		return empty, errors.Join(ErrUnmarshalingLoanRecordFailed, err)
	}

	id, err := uuid.Parse(wire.ID)
	if err != nil {
		return empty, errors.Join(ErrUnmarshalingLoanRecordFailed, err)
	}

	borrowDate, err := time.ParseInLocation(CalendarDateLayout, wire.BorrowDate, time.UTC)
	if err != nil {
		return empty, errors.Join(ErrUnmarshalingLoanRecordFailed, err)
	}

	dueDate, err := time.ParseInLocation(CalendarDateLayout, wire.DueDate, time.UTC)
	if err != nil {
		return empty, errors.Join(ErrUnmarshalingLoanRecordFailed, err)
	}

	record := LoanRecord{
		ID:         id,
		BookID:     wire.BookID,
		MemberID:   wire.MemberID,
		BorrowDate: borrowDate,
		DueDate:    dueDate,
		Status:     LoanStatus(wire.Status),
	}

	if wire.ReturnDate != nil {
		returnDate, parseErr := time.ParseInLocation(CalendarDateLayout, *wire.ReturnDate, time.UTC)
		if parseErr != nil {
			return empty, errors.Join(ErrUnmarshalingLoanRecordFailed, parseErr)
		}

		record.ReturnDate = returnDate
	}

	return record, nil
}
