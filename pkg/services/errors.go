package services

import (
	"errors"
	"fmt"
	"strings"

	"challenge-hub-backend/pkg/database"
)

// Kinds of NotFoundError.
const (
	KindOrganization = "organization"
	KindProfile      = "profile"
	KindProject      = "project"
	KindTeam         = "team"
	KindChallenge    = "challenge"
	KindInvitation   = "invitation"
	KindOutboxEvent  = "outbox event"
)

// ErrTransactionConflict is returned when a concurrent write invalidated a
// transaction. Nothing was written; the caller may retry.
var ErrTransactionConflict = database.ErrTransactionConflict

// ErrInvalidCredentials is returned by login and refresh.
var ErrInvalidCredentials = errors.New("invalid credentials")

// NotFoundError reports a referenced record that does not exist.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// Is lets errors.Is(err, database.ErrNotFound) match.
func (e *NotFoundError) Is(target error) bool {
	return target == database.ErrNotFound
}

// PermissionError reports an actor that may not perform an operation.
type PermissionError struct {
	UserID string
	Action string
	Kind   string
	ID     string
	Err    error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %q may not %s %s %q", e.UserID, e.Action, e.Kind, e.ID)
}

func (e *PermissionError) Unwrap() error { return e.Err }

// TransitionError reports a status change the transition table forbids.
type TransitionError struct {
	Kind string
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s cannot move from %q to %q", e.Kind, e.From, e.To)
}

// RuleError reports a request that is well formed but breaks a business rule,
// such as joining a closed challenge or a full team.
type RuleError struct {
	Rule    string
	Message string
}

func (e *RuleError) Error() string { return e.Message }

// ValidationError wraps an invalid input payload.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return "invalid input: " + e.Err.Error() }

func (e *ValidationError) Unwrap() error { return e.Err }

// PartialFailureError reports steps that did not complete after the main
// write committed. The committed state stays; Pending names what is left.
type PartialFailureError struct {
	Op      string
	Pending []string
	Err     error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("%s committed with pending steps [%s]: %v", e.Op, strings.Join(e.Pending, ", "), e.Err)
}

func (e *PartialFailureError) Unwrap() error { return e.Err }

// notFound converts a store ErrNotFound into a NotFoundError of kind.
func notFound(err error, kind, id string) error {
	if database.IsNotFound(err) {
		return &NotFoundError{Kind: kind, ID: id}
	}
	return err
}
