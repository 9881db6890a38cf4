package lending_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	. "github.com/AntonStoeckl/library-lending-go/lending"
)

func Test_MarshalLoanRecordJSON_When_TheLoanIsOpen(t *testing.T) {
	// arrange
	loanID := uuid.MustParse("0f8fad5b-d9cb-469f-a165-70867728950e")
	record := BuildLoanRecord(loanID, 1001, 42, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), DefaultLoanPeriodDays)

	// act
	payload, err := MarshalLoanRecordJSON(record)

	// assert
	assert.NoError(t, err, "error in marshaling the loan record")
	assert.JSONEq(
		t,
		`{
			"id": "0f8fad5b-d9cb-469f-a165-70867728950e",
			"bookId": 1001,
			"memberId": 42,
			"borrowDate": "2024-01-01",
			"dueDate": "2024-01-15",
			"returnDate": null,
			"status": "BORROWED"
		}`,
		string(payload),
	)
}

func Test_MarshalLoanRecordJSON_When_TheLoanWasReturned_RoundTripsLossless(t *testing.T) {
	// arrange
	record := BuildLoanRecord(uuid.New(), 1001, 42, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), DefaultLoanPeriodDays)
	record = record.WithReturn(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC))

	// act
	payload, err := MarshalLoanRecordJSON(record)
	assert.NoError(t, err, "error in marshaling the loan record")

	decoded, err := UnmarshalLoanRecordJSON(payload)

	// assert
	assert.NoError(t, err, "error in unmarshaling the loan record")
	assert.Equal(t, record, decoded)
}

func Test_UnmarshalLoanRecordJSON_When_ThePayloadIsInvalid(t *testing.T) {
	// act + assert
	_, err := UnmarshalLoanRecordJSON([]byte(`{not json`))
	assert.ErrorIs(t, err, ErrUnmarshalingLoanRecordFailed)

	_, err = UnmarshalLoanRecordJSON([]byte(`{"id": "not-a-uuid", "borrowDate": "2024-01-01", "dueDate": "2024-01-15"}`))
	assert.ErrorIs(t, err, ErrUnmarshalingLoanRecordFailed, "a malformed loan id should be rejected")

	_, err = UnmarshalLoanRecordJSON([]byte(`{"id": "0f8fad5b-d9cb-469f-a165-70867728950e", "borrowDate": "01.01.2024"}`))
	assert.ErrorIs(t, err, ErrUnmarshalingLoanRecordFailed, "a malformed date should be rejected")
}
