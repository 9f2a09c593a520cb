package utils

import "errors"

var ErrorRecordNotFound = errors.New("record not found")

// ErrorDuplicateKey is returned when the database rejects a write because of the
// unique index on students.index_number. Callers should treat it as a retryable
// conflict, not a silent skip.
var ErrorDuplicateKey = errors.New("duplicate index number")

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
