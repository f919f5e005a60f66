package docdb

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDuplicateKey is wrapped by the error Add and BulkAdd return when the
// primary key is already present. Use Put for upserts.
var ErrDuplicateKey = errors.New("duplicate primary key")

// UsageError indicates the caller is holding the API wrong: querying an
// undeclared field, storing a non-primitive value in a keyed field, calling
// Reverse before OrderBy, and so on. Usage errors on the fluent query
// surface are raised as panics; write-path usage errors are returned.
type UsageError struct {
	Collection string
	Field      string
	Msg        string
	Err        error
}

func usageErrf(collection, field string, err error, format string, args ...any) *UsageError {
	return &UsageError{collection, field, fmt.Sprintf(format, args...), err}
}

func (e *UsageError) Unwrap() error {
	return e.Err
}

func (e *UsageError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Collection)
	if e.Field != "" {
		buf.WriteByte('.')
		buf.WriteString(e.Field)
	}
	if e.Msg != "" {
		buf.WriteString(": ")
		buf.WriteString(e.Msg)
	}
	if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	return buf.String()
}
