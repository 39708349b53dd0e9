package rapidsql

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies the failure carried by an Error.
type Kind int

const (
	// KindConfig marks setup misuse: missing or duplicated provider, bad
	// entity registration, an operation declared as both query and update.
	KindConfig Kind = iota + 1
	// KindConnection marks failures creating or closing a connection.
	KindConnection
	// KindTransaction marks begin, commit and rollback failures.
	KindTransaction
	// KindStatement marks statement preparation, binding and execution
	// failures. The Error carries the offending SQL text and arguments.
	KindStatement
	// KindColumn marks invalid column names and column value reads.
	KindColumn
	// KindCursor marks reads against a missing or closed result cursor.
	KindCursor
	// KindEntity marks entity registration lookups and materialization
	// failures.
	KindEntity
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindConnection:
		return "connection"
	case KindTransaction:
		return "transaction"
	case KindStatement:
		return "statement"
	case KindColumn:
		return "column"
	case KindCursor:
		return "cursor"
	case KindEntity:
		return "entity"
	default:
		return "unknown"
	}
}

// Error is the only error type produced by the runtime. Driver-level
// failures are wrapped exactly once; an error that is already an *Error
// propagates unchanged so the original message chain is preserved.
type Error struct {
	Kind Kind
	// SQL and Args are set on statement errors only.
	SQL  string
	Args []any

	msg   string
	cause error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("rapidsql: ")
	b.WriteString(e.msg)
	if e.SQL != "" {
		fmt.Fprintf(&b, " [sql: %s, args: %v]", e.SQL, e.Args)
	}
	if e.cause != nil {
		b.WriteString(": ")
		b.WriteString(e.cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.cause }

// errorf builds a new *Error unless cause already is one, logging the
// failure through the configured logger before returning it.
func (r *Runtime) errorf(kind Kind, cause error, format string, args ...any) error {
	var re *Error
	if errors.As(cause, &re) {
		return cause
	}

	e := &Error{Kind: kind, msg: fmt.Sprintf(format, args...), cause: cause}
	r.logError(e)

	return e
}

// statementError wraps a prepare/bind/execute failure with the SQL text
// and bound arguments. Already-wrapped errors pass through.
func (r *Runtime) statementError(cause error, sqlText string, args []any) error {
	var re *Error
	if errors.As(cause, &re) {
		return cause
	}

	e := &Error{
		Kind: KindStatement,
		SQL:  sqlText,
		Args: args,
		msg:  "executing statement",

		cause: cause,
	}
	r.logError(e)

	return e
}

func (r *Runtime) logError(e *Error) {
	if r.logger == nil {
		return
	}
	r.logger.Errorf("%v", e)
}
