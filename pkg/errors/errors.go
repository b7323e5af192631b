package errors

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// InternalMessage is what clients see for any failure that is not a domain
// error.
const InternalMessage = "An internal error occurred"

// ValidationError is a malformed request that never reached the store.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) GRPCStatus() *status.Status {
	return status.New(codes.InvalidArgument, e.Error())
}

// NotFoundError reports a missing resource. Message, when set, is returned
// to the client verbatim.
type NotFoundError struct {
	Resource string
	Message  string
}

func NewNotFoundError(resource, message string) *NotFoundError {
	return &NotFoundError{Resource: resource, Message: message}
}

func (e *NotFoundError) Error() string {
	return orDefault(e.Message, e.Resource+" not found")
}

func (e *NotFoundError) GRPCStatus() *status.Status {
	return status.New(codes.NotFound, e.Error())
}

// AlreadyExistsError reports a uniqueness conflict.
type AlreadyExistsError struct {
	Resource string
	Message  string
}

func NewAlreadyExistsError(resource, message string) *AlreadyExistsError {
	return &AlreadyExistsError{Resource: resource, Message: message}
}

func (e *AlreadyExistsError) Error() string {
	return orDefault(e.Message, e.Resource+" already exists")
}

func (e *AlreadyExistsError) GRPCStatus() *status.Status {
	return status.New(codes.AlreadyExists, e.Error())
}

// InternalError wraps an infrastructure failure. Only Message goes into the
// gRPC status; Err is kept for logs.
type InternalError struct {
	Message string
	Err     error
}

func NewInternalError(message string, err error) *InternalError {
	return &InternalError{Message: message, Err: err}
}

func (e *InternalError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *InternalError) Unwrap() error { return e.Err }

func (e *InternalError) GRPCStatus() *status.Status {
	return status.New(codes.Internal, e.Message)
}

func orDefault(msg, fallback string) string {
	if msg != "" {
		return msg
	}
	return fallback
}

// Is is errors.Is, so callers importing this package need not alias the
// standard one.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Code resolves the gRPC code carried by err, walking the wrap chain.
// Errors without a status map to codes.Unknown.
func Code(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	var s interface{ GRPCStatus() *status.Status }
	if errors.As(err, &s) {
		return s.GRPCStatus().Code()
	}
	return codes.Unknown
}

var httpStatus = map[codes.Code]int{
	codes.OK:              http.StatusOK,
	codes.InvalidArgument: http.StatusBadRequest,
	codes.NotFound:        http.StatusNotFound,
	codes.AlreadyExists:   http.StatusConflict,
}

// HTTPStatus maps err onto the HTTP status the REST surface answers with.
// Anything without a domain meaning is a 500.
func HTTPStatus(err error) int {
	if s, ok := httpStatus[Code(err)]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// PublicMessage is the text safe to put in a response body: the domain
// message for client errors, InternalMessage for everything else.
func PublicMessage(err error) string {
	if HTTPStatus(err) == http.StatusInternalServerError {
		return InternalMessage
	}
	return err.Error()
}
