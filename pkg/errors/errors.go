package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code for stable testing
type ErrorCode string

// Error codes for different error categories
const (
	// General errors
	ErrUnknown       ErrorCode = "UNKNOWN"
	ErrInternal      ErrorCode = "INTERNAL"
	ErrInvalidInput  ErrorCode = "INVALID_INPUT"
	ErrNotFound      ErrorCode = "NOT_FOUND"
	ErrAlreadyExists ErrorCode = "ALREADY_EXISTS"
	ErrCancelled     ErrorCode = "CANCELLED"

	// Configuration errors
	ErrConfigLoad     ErrorCode = "CONFIG_LOAD"
	ErrConfigParse    ErrorCode = "CONFIG_PARSE"
	ErrConfigInvalid  ErrorCode = "CONFIG_INVALID"
	ErrManifestAbsent ErrorCode = "MANIFEST_NOT_FOUND"
	ErrManifestParse  ErrorCode = "MANIFEST_PARSE"
	ErrDependency     ErrorCode = "DEPENDENCY"
	ErrConflict       ErrorCode = "CONFLICT"
	ErrCycle          ErrorCode = "CYCLE"
	ErrUnsupported    ErrorCode = "UNSUPPORTED"

	// Network errors
	ErrNetwork         ErrorCode = "NETWORK"
	ErrPartialDownload ErrorCode = "PARTIAL_DOWNLOAD"
	ErrChecksum        ErrorCode = "CHECKSUM"

	// FileSystem errors
	ErrFileNotFound      ErrorCode = "FILE_NOT_FOUND"
	ErrFileAccess        ErrorCode = "FILE_ACCESS"
	ErrFileWrite         ErrorCode = "FILE_WRITE"
	ErrFileInUse         ErrorCode = "FILE_IN_USE"
	ErrDirCreate         ErrorCode = "DIR_CREATE"
	ErrSymlinkCreate     ErrorCode = "SYMLINK_CREATE"
	ErrUnsupportedFormat ErrorCode = "UNSUPPORTED_FORMAT"
	ErrCorruptArchive    ErrorCode = "CORRUPT"

	// External tool errors
	ErrExternalTool ErrorCode = "EXTERNAL_TOOL"
	ErrToolchain    ErrorCode = "TOOLCHAIN"

	// State errors
	ErrStateLocked   ErrorCode = "STATE_LOCKED"
	ErrStateCorrupt  ErrorCode = "STATE_CORRUPT"
	ErrStateMismatch ErrorCode = "STATE_MISMATCH"
)

// Kind groups error codes into the broad failure categories callers branch on.
type Kind string

const (
	KindUnknown            Kind = "unknown"
	KindConfiguration      Kind = "configuration"
	KindNetwork            Kind = "network"
	KindFileSystem         Kind = "filesystem"
	KindExternalTool       Kind = "external-tool"
	KindStateInconsistency Kind = "state-inconsistency"
)

var codeKinds = map[ErrorCode]Kind{
	ErrInvalidInput:      KindConfiguration,
	ErrConfigLoad:        KindConfiguration,
	ErrConfigParse:       KindConfiguration,
	ErrConfigInvalid:     KindConfiguration,
	ErrManifestAbsent:    KindConfiguration,
	ErrManifestParse:     KindConfiguration,
	ErrDependency:        KindConfiguration,
	ErrConflict:          KindConfiguration,
	ErrCycle:             KindConfiguration,
	ErrUnsupported:       KindConfiguration,
	ErrNetwork:           KindNetwork,
	ErrPartialDownload:   KindNetwork,
	ErrChecksum:          KindNetwork,
	ErrFileNotFound:      KindFileSystem,
	ErrFileAccess:        KindFileSystem,
	ErrFileWrite:         KindFileSystem,
	ErrFileInUse:         KindFileSystem,
	ErrDirCreate:         KindFileSystem,
	ErrSymlinkCreate:     KindFileSystem,
	ErrUnsupportedFormat: KindFileSystem,
	ErrCorruptArchive:    KindFileSystem,
	ErrExternalTool:      KindExternalTool,
	ErrToolchain:         KindExternalTool,
	ErrStateLocked:       KindStateInconsistency,
	ErrStateCorrupt:      KindStateInconsistency,
	ErrStateMismatch:     KindStateInconsistency,
}

// KitError represents a structured error with code and details
type KitError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Wrapped error
}

// Error implements the error interface
func (e *KitError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *KitError) Unwrap() error {
	return e.Wrapped
}

// Is matches another KitError by code.
func (e *KitError) Is(target error) bool {
	var targetErr *KitError
	if errors.As(target, &targetErr) {
		return e.Code == targetErr.Code
	}
	return false
}

// Kind returns the category of the error's code.
func (e *KitError) Kind() Kind {
	if k, ok := codeKinds[e.Code]; ok {
		return k
	}
	return KindUnknown
}

// New creates a new KitError with the given code and message
func New(code ErrorCode, message string) *KitError {
	return &KitError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Newf creates a new KitError with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *KitError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with a KitError. A nil error stays nil.
func Wrap(err error, code ErrorCode, message string) *KitError {
	if err == nil {
		return nil
	}
	e := New(code, message)
	e.Wrapped = err
	return e
}

// Wrapf wraps an existing error with a formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *KitError {
	if err == nil {
		return nil
	}
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// WithDetail adds a detail to the error
func (e *KitError) WithDetail(key string, value interface{}) *KitError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsErrorCode checks if an error has a specific error code
func IsErrorCode(err error, code ErrorCode) bool {
	var kitErr *KitError
	if errors.As(err, &kitErr) {
		return kitErr.Code == code
	}
	return false
}

// GetErrorCode returns the error code from an error, or ErrUnknown if not a KitError
func GetErrorCode(err error) ErrorCode {
	var kitErr *KitError
	if errors.As(err, &kitErr) {
		return kitErr.Code
	}
	return ErrUnknown
}

// GetErrorDetails returns the details from an error, or nil if not a KitError
func GetErrorDetails(err error) map[string]interface{} {
	var kitErr *KitError
	if errors.As(err, &kitErr) {
		return kitErr.Details
	}
	return nil
}

// KindOf classifies err by the outermost KitError in its chain.
func KindOf(err error) Kind {
	var kitErr *KitError
	if errors.As(err, &kitErr) {
		return kitErr.Kind()
	}
	return KindUnknown
}

// As is errors.As, re-exported so callers need a single errors import.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
