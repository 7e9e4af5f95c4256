package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is the base interface for all application errors
type AppError interface {
	error
	HTTPStatus() int
	Code() string
}

// DetailedError is implemented by errors that carry extra response fields
type DetailedError interface {
	AppError
	Details() map[string]interface{}
}

// kind supplies the HTTP status and machine code shared by each error type
type kind struct {
	status int
	code   string
}

func (k kind) HTTPStatus() int { return k.status }
func (k kind) Code() string    { return k.code }

var (
	kindNotFound      = kind{http.StatusNotFound, "NOT_FOUND"}
	kindValidation    = kind{http.StatusBadRequest, "VALIDATION_ERROR"}
	kindPermission    = kind{http.StatusForbidden, "PERMISSION_DENIED"}
	kindUnauthorized  = kind{http.StatusUnauthorized, "UNAUTHORIZED"}
	kindConflict      = kind{http.StatusConflict, "CONFLICT"}
	kindPrerequisites = kind{http.StatusBadRequest, "PREREQUISITES_NOT_MET"}
	kindInternal      = kind{http.StatusInternalServerError, "INTERNAL_ERROR"}
)

// NotFoundError represents a resource that was not found
type NotFoundError struct {
	kind
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s with ID '%s' not found", e.Resource, e.ID)
}

func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{kind: kindNotFound, Resource: resource, ID: id}
}

// ValidationError represents invalid input
type ValidationError struct {
	kind
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Message
	}
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{kind: kindValidation, Field: field, Message: message}
}

// PermissionError is returned when the caller's role lacks a stage permission
type PermissionError struct {
	kind
	Action             string
	StageName          string
	RequiredPermission string
	Role               string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: cannot %s stage '%s'", e.Action, e.StageName)
}

func (e *PermissionError) Details() map[string]interface{} {
	return map[string]interface{}{
		"required_permission": e.RequiredPermission,
		"your_role":           e.Role,
	}
}

// NewStagePermissionError names the permission the caller's role is missing
func NewStagePermissionError(action, stageName, required, role string) *PermissionError {
	return &PermissionError{
		kind:               kindPermission,
		Action:             action,
		StageName:          stageName,
		RequiredPermission: required,
		Role:               role,
	}
}

// UnauthorizedError represents authentication failures
type UnauthorizedError struct {
	kind
	Reason string
}

func (e *UnauthorizedError) Error() string {
	if e.Reason == "" {
		return "unauthorized"
	}
	return "unauthorized: " + e.Reason
}

func NewUnauthorizedError(reason string) *UnauthorizedError {
	return &UnauthorizedError{kind: kindUnauthorized, Reason: reason}
}

// ConflictError represents a unique value that is already taken
type ConflictError struct {
	kind
	Resource string
	Field    string
	Value    string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already exists with %s='%s'", e.Resource, e.Field, e.Value)
}

func NewConflictError(resource, field, value string) *ConflictError {
	return &ConflictError{kind: kindConflict, Resource: resource, Field: field, Value: value}
}

// BlockingStage identifies a parent stage that is not yet complete
type BlockingStage struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// PrerequisitesNotMetError is returned when a stage is submitted before its parents
type PrerequisitesNotMetError struct {
	kind
	StageName string
	Blocking  []BlockingStage
}

func (e *PrerequisitesNotMetError) Error() string {
	names := make([]string, 0, len(e.Blocking))
	for _, b := range e.Blocking {
		names = append(names, b.Name)
	}
	return fmt.Sprintf("cannot submit '%s': prerequisite stages not completed: %v", e.StageName, names)
}

func (e *PrerequisitesNotMetError) Details() map[string]interface{} {
	return map[string]interface{}{
		"error_code":               e.code,
		"incomplete_prerequisites": e.Blocking,
	}
}

func NewPrerequisitesNotMetError(stageName string, blocking []BlockingStage) *PrerequisitesNotMetError {
	return &PrerequisitesNotMetError{kind: kindPrerequisites, StageName: stageName, Blocking: blocking}
}

// InternalError wraps an unexpected infrastructure failure
type InternalError struct {
	kind
	Message string
	Cause   error
}

func (e *InternalError) Error() string {
	if e.Cause == nil {
		return "internal error: " + e.Message
	}
	return fmt.Sprintf("internal error: %s (caused by: %v)", e.Message, e.Cause)
}

func (e *InternalError) Unwrap() error { return e.Cause }

func NewInternalError(message string, cause error) *InternalError {
	return &InternalError{kind: kindInternal, Message: message, Cause: cause}
}

func is[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}

func IsNotFound(err error) bool            { return is[*NotFoundError](err) }
func IsValidation(err error) bool          { return is[*ValidationError](err) }
func IsPermission(err error) bool          { return is[*PermissionError](err) }
func IsConflict(err error) bool            { return is[*ConflictError](err) }
func IsPrerequisitesNotMet(err error) bool { return is[*PrerequisitesNotMetError](err) }

// GetHTTPStatus returns the HTTP status for err, 500 for errors outside this package
func GetHTTPStatus(err error) int {
	var appErr AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// GetErrorCode returns the machine code for err, UNKNOWN_ERROR for foreign errors
func GetErrorCode(err error) string {
	var appErr AppError
	if errors.As(err, &appErr) {
		return appErr.Code()
	}
	return "UNKNOWN_ERROR"
}

// GetDetails returns the extra response fields carried by err, if any
func GetDetails(err error) map[string]interface{} {
	var detailed DetailedError
	if errors.As(err, &detailed) {
		return detailed.Details()
	}
	return nil
}
