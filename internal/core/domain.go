package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// CorrectionDescription marks transactions created to reconcile a manual balance edit.
const CorrectionDescription = "Correction"

// UncategorizedName groups transactions without a category in reports and exports.
const UncategorizedName = "None"

type (
	User struct {
		ID           int64
		Login        string
		PasswordHash string
		Balance      Money // derived from the user's accounts, never stored
	}

	Account struct {
		ID          int64
		Name        string
		Description string
		Balance     Money
		UserID      int64
	}

	Category struct {
		ID   int64
		Name string
	}

	UserCategory struct {
		UserID     int64
		CategoryID int64
	}

	Transaction struct {
		ID          int64
		Amount      Money
		Date        time.Time
		Description string
		Category    *Category // nil for system operations
		AccountID   int64
	}
)

// Kinds of rule violations. Every RuleError unwraps to exactly one of these.
var (
	ErrEmptyField    = errors.New("empty field")
	ErrInvalidFormat = errors.New("invalid format")
	ErrMismatch      = errors.New("mismatch")
	ErrConflict      = errors.New("conflict")
	ErrNotFound      = errors.New("not found")
	ErrUnchanged     = errors.New("unchanged")
	ErrWrongPassword = errors.New("wrong password")
	ErrForbidden     = errors.New("forbidden")
)

// RuleError is an expected business-rule violation. Its message is meant to be
// shown to the user as is.
type RuleError struct {
	Kind    error
	Message string
}

func (e *RuleError) Error() string {
	return e.Message
}

func (e *RuleError) Unwrap() error {
	return e.Kind
}

// Rule builds a RuleError of the given kind with a formatted message.
func Rule(kind error, format string, args ...any) error {
	return &RuleError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// IsRule reports whether err carries a business-rule violation.
func IsRule(err error) bool {
	var re *RuleError
	return errors.As(err, &re)
}

// CategoryName returns the transaction's category name or UncategorizedName.
func (t Transaction) CategoryName() string {
	if t.Category == nil {
		return UncategorizedName
	}
	return t.Category.Name
}

// IsSystem reports whether the transaction was generated by the system
// rather than categorized by the user.
func (t Transaction) IsSystem() bool {
	return t.Category == nil
}

// Blank reports whether s is empty once surrounding whitespace is removed.
func Blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
