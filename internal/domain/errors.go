package domain

import "fmt"

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

func Invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

type NotFoundKind string

const (
	NotFoundBranch   NotFoundKind = "branch"
	NotFoundProduct  NotFoundKind = "product"
	NotFoundCustomer NotFoundKind = "customer"
	NotFoundSale     NotFoundKind = "sale"
)

type NotFoundError struct {
	Kind NotFoundKind
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func NotFound(kind NotFoundKind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

type ConflictKind string

const ConflictAlreadyVoided ConflictKind = "already_voided"

type ConflictError struct {
	Kind ConflictKind
	ID   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s: %s", e.ID, e.Kind)
}

type ConnectionErrorKind string

const (
	ConnUnreachable       ConnectionErrorKind = "unreachable"
	ConnAuthFailed        ConnectionErrorKind = "auth_failed"
	ConnUnsupportedEngine ConnectionErrorKind = "unsupported_engine"
	ConnTimeout           ConnectionErrorKind = "timeout"
)

type ConnectionError struct {
	Kind     ConnectionErrorKind
	BranchID string
	Err      error
}

func (e *ConnectionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("branch %s connection: %s", e.BranchID, e.Kind)
	}
	return fmt.Sprintf("branch %s connection: %s: %v", e.BranchID, e.Kind, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }
