package services

import (
	"errors"
	"fmt"
	"time"
)

// ===== SENTINEL ERRORS =====

var (
	ErrTestNotFound        = errors.New("test not found")
	ErrAttemptNotFound     = errors.New("attempt not found")
	ErrQuestionNotFound    = errors.New("question not found")
	ErrQuestionSetNotFound = errors.New("question set not found")
	ErrExamNotFound        = errors.New("exam not found")
	ErrUserNotFound        = errors.New("user not found")

	ErrAttemptAlreadySubmitted = errors.New("attempt already submitted")
	ErrAttemptNotActive        = errors.New("attempt is not in progress")
	ErrAttemptNotSubmitted     = errors.New("attempt not submitted yet")
	ErrEmptyQuestionList       = errors.New("test has no questions")
)

// ===== TYPED ERRORS =====

// PermissionError carries who tried what on which resource. Handlers map it
// to 403.
type PermissionError struct {
	UserID     string
	ResourceID interface{}
	Resource   string
	Action     string
	Reason     string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %s cannot %s %s %v: %s", e.UserID, e.Action, e.Resource, e.ResourceID, e.Reason)
}

func NewPermissionError(userID string, resourceID interface{}, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

// StartWindowError is returned when a new attempt is requested outside the
// test's start window. It echoes the configured bounds so clients can show
// when the window opens or closed. Existing attempts are never gated by it.
type StartWindowError struct {
	TestID      string
	StartAt     *time.Time
	LastStartAt *time.Time
	Reason      string // "not_open" or "closed"
}

func (e *StartWindowError) Error() string {
	return fmt.Sprintf("test %s start window %s", e.TestID, e.Reason)
}

// BusinessRuleError is a catch-all for domain rule violations that map to 400.
type BusinessRuleError struct {
	Rule    string
	Message string
}

func (e *BusinessRuleError) Error() string {
	return fmt.Sprintf("%s: %s", e.Rule, e.Message)
}

func NewBusinessRuleError(rule, message string) *BusinessRuleError {
	return &BusinessRuleError{Rule: rule, Message: message}
}
