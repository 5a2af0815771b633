package quota

import (
	"errors"
	"fmt"
)

// Reason classifies why a quota operation was refused.
type Reason int

const (
	ReasonInvalidInput Reason = iota + 1
	ReasonNotOwner
	ReasonAdminNotConfigured
	ReasonUserLimitReached
	ReasonInsufficientPool
	ReasonAlreadyAssigned
	ReasonNotAssigned
	ReasonWrongAdmin
	ReasonUserQuotaExceeded
	ReasonAdminQuotaExceeded
	ReasonStorage
	ReasonDisabled
)

var reasonNames = map[Reason]string{
	ReasonInvalidInput:       "invalid_input",
	ReasonNotOwner:           "not_owner",
	ReasonAdminNotConfigured: "admin_not_configured",
	ReasonUserLimitReached:   "user_limit_reached",
	ReasonInsufficientPool:   "insufficient_pool",
	ReasonAlreadyAssigned:    "already_assigned",
	ReasonNotAssigned:        "not_assigned",
	ReasonWrongAdmin:         "wrong_admin",
	ReasonUserQuotaExceeded:  "user_quota_exceeded",
	ReasonAdminQuotaExceeded: "admin_quota_exceeded",
	ReasonStorage:            "storage",
	ReasonDisabled:           "disabled",
}

func (r Reason) String() string {
	if s, ok := reasonNames[r]; ok {
		return s
	}
	return fmt.Sprintf("reason(%d)", int(r))
}

// Error carries a refusal reason and the message shown to the user.
type Error struct {
	Reason  Reason
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func refuse(r Reason, format string, args ...any) *Error {
	return &Error{Reason: r, Message: fmt.Sprintf(format, args...)}
}

func storageError(msg string, err error) *Error {
	return &Error{Reason: ReasonStorage, Message: msg, Err: err}
}

// ReasonOf extracts the Reason of a quota error, or 0.
func ReasonOf(err error) Reason {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Reason
	}
	return 0
}

// Message returns the user-facing text of err.
func Message(err error) string {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
