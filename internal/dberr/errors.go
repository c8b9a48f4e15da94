// Package dberr defines the error taxonomy shared across the storage and
// SQL layers. Each kind is a distinct type so callers can use errors.As to
// branch on it instead of matching error strings.
package dberr

import "fmt"

// ParseError reports malformed SQL input, named by the offending token and
// its offset in the source string.
type ParseError struct {
	Token  string
	Offset int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at offset %d near %q: %s", e.Offset, e.Token, e.Msg)
}

// SchemaError reports unknown tables/columns, ambiguous unqualified column
// references, duplicate table creation, or column-count mismatches.
type SchemaError struct {
	Msg string
}

func (e *SchemaError) Error() string { return "schema error: " + e.Msg }

// TypeError reports a value that cannot be coerced to a column's declared
// type during INSERT/UPDATE.
type TypeError struct {
	Column string
	Want    string
	Value   string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("type error: cannot coerce %q to %s for column %s", e.Value, e.Want, e.Column)
}

// NotFound reports a point lookup or delete on a missing key.
type NotFound struct {
	Key string
}

func (e *NotFound) Error() string { return fmt.Sprintf("not found: %s", e.Key) }

// IOError reports a disk read/write failure or a corrupt page, with the
// page id that was being accessed.
type IOError struct {
	PageID uint32
	Err    error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("io error on page %d: %v", e.PageID, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// CorruptionError reports a WAL checksum mismatch. The WAL layer handles
// this locally (by truncating the scan) rather than surfacing it, but the
// type exists so that it can be logged and, if ever needed, inspected.
type CorruptionError struct {
	LSN uint64
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("corruption error: checksum mismatch at lsn %d", e.LSN)
}

// StateError reports an operation on a transaction in a terminal state, or
// a commit/abort of an unknown transaction id.
type StateError struct {
	Msg string
}

func (e *StateError) Error() string { return "state error: " + e.Msg }
