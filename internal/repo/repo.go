package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

type Repo struct {
	DB *sql.DB
}

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a job request changed between read and write.
	ErrConflict = errors.New("version conflict")
	// ErrUpstream tags failures of the underlying store.
	ErrUpstream = errors.New("store unavailable")
)

// StoreError wraps a driver error with the operation that failed. It
// matches ErrUpstream and still unwraps to the driver error.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrUpstream }

// wrap tags err as an upstream failure unless it is already a domain error.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) || errors.Is(err, ErrUpstream) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// BeginTx starts a write transaction.
func (r Repo) BeginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	return tx, wrap("begin tx", err)
}

// Ping checks that the store answers.
func (r Repo) Ping(ctx context.Context) error {
	return wrap("ping", r.DB.PingContext(ctx))
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func marshalStrings(in []string) (string, error) {
	if in == nil {
		in = []string{}
	}
	b, err := json.Marshal(in)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func marshalDoc(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalDoc(data string, v any) error {
	if data == "" {
		data = "[]"
	}
	return json.Unmarshal([]byte(data), v)
}
