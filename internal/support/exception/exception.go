// Package exception provides the error types and classification utilities used
// throughout streamsync. Errors raised while fetching, committing, or scheduling
// are categorized so callers can decide between retrying on the next scheduled
// run, skipping a site, or failing the whole run.
package exception

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"sync"
)

// Sentinel kinds for the sync error taxonomy. Matchable with errors.Is on any
// SyncError built by the corresponding constructor.
var (
	// ErrTransientFetch indicates a fetch failure expected to heal by the next
	// scheduled run (network failure, 5xx from the source service).
	ErrTransientFetch = errors.New("transient fetch failure")
	// ErrMalformedResponse indicates the source returned a payload that could
	// not be decoded or fails structural validation. Not retryable.
	ErrMalformedResponse = errors.New("malformed source response")
	// ErrNotFound indicates the source does not know the requested site.
	ErrNotFound = errors.New("site not found at source")
	// ErrStoreCommit indicates a persistence failure while committing a single
	// site's observations and watermark.
	ErrStoreCommit = errors.New("store commit failure")
	// ErrRunTimeout indicates a job run exceeded its wall-clock budget.
	ErrRunTimeout = errors.New("run timed out")
	// ErrOptimisticLockingFailure indicates a versioned update lost a race.
	ErrOptimisticLockingFailure = errors.New("OptimisticLockingFailureException")
)

// errorRegistry maps error type names to sentinel instances so that errors
// referenced by name in configuration can be matched with errors.Is.
var errorRegistry = make(map[string]error)

// registryMutex protects access to errorRegistry.
var registryMutex sync.RWMutex

// RegisterErrorType registers an error prototype under a unique name.
// Registered errors are used by IsErrorOfType for classification.
// Panics on an empty name or nil prototype.
func RegisterErrorType(name string, prototype error) {
	registryMutex.Lock()
	defer registryMutex.Unlock()

	if name == "" {
		panic("Error type name cannot be empty")
	}
	if prototype == nil {
		panic(fmt.Sprintf("Cannot register nil prototype for name: %s", name))
	}

	errorRegistry[name] = prototype
}

// IsErrorTypeRegistered checks if the specified error type name is registered.
func IsErrorTypeRegistered(name string) bool {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	_, ok := errorRegistry[name]
	return ok
}

// SyncError is the error type raised by streamsync components. It carries the
// module where the error occurred, a message, the wrapped original error, a
// taxonomy kind, and flags describing whether the failure is retryable on the
// next scheduled run or skippable for the affected site.
type SyncError struct {
	// Module indicates the component where the error occurred
	// (e.g., "connector", "repository", "scheduler", "config").
	Module string
	// Message is a concise description of the error.
	Message string
	// OriginalErr is the wrapped original error.
	OriginalErr error
	// kind is the taxonomy sentinel this error matches via errors.Is, if any.
	kind error
	// isRetryable indicates the next scheduled run may succeed without operator action.
	isRetryable bool
	// isSkippable indicates the affected site can be skipped while the run continues.
	isSkippable bool
	// StackTrace is the stack trace at the time of the error (for debugging).
	StackTrace string
}

// NewSyncError creates a new SyncError instance without a taxonomy kind.
func NewSyncError(module, message string, originalErr error, isSkippable, isRetryable bool) *SyncError {
	return newSyncError(module, message, originalErr, nil, isSkippable, isRetryable)
}

func newSyncError(module, message string, originalErr, kind error, isSkippable, isRetryable bool) *SyncError {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)

	return &SyncError{
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		kind:        kind,
		isRetryable: isRetryable,
		isSkippable: isSkippable,
		StackTrace:  string(buf[:n]),
	}
}

// NewTransientFetchError creates a SyncError for a fetch failure that is
// expected to heal by the next scheduled run. Retryable, skippable.
func NewTransientFetchError(module, message string, originalErr error) *SyncError {
	return newSyncError(module, message, originalErr, ErrTransientFetch, true, true)
}

// NewMalformedResponseError creates a SyncError for an undecodable or
// structurally invalid source payload. Not retryable; the site is skipped
// until an operator intervenes.
func NewMalformedResponseError(module, message string, originalErr error) *SyncError {
	return newSyncError(module, message, originalErr, ErrMalformedResponse, true, false)
}

// NewNotFoundError creates a SyncError for a site unknown to the source.
func NewNotFoundError(module, message string, originalErr error) *SyncError {
	return newSyncError(module, message, originalErr, ErrNotFound, true, false)
}

// NewStoreCommitError creates a SyncError for a failed per-site commit.
// The site's transaction is rolled back; the run continues with other sites.
func NewStoreCommitError(module, message string, originalErr error) *SyncError {
	return newSyncError(module, message, originalErr, ErrStoreCommit, true, true)
}

// NewTimeoutError creates a SyncError for a run that exceeded its wall-clock
// budget. Fatal to the run; in-flight sites are not committed.
func NewTimeoutError(module, message string, originalErr error) *SyncError {
	return newSyncError(module, message, originalErr, ErrRunTimeout, false, false)
}

// NewOptimisticLockingFailureException creates a SyncError indicating a
// versioned update lost a race. Neither retryable nor skippable.
func NewOptimisticLockingFailureException(module, message string, originalErr error) *SyncError {
	var errToWrap error
	if originalErr != nil {
		errToWrap = errors.Join(ErrOptimisticLockingFailure, originalErr)
	} else {
		errToWrap = ErrOptimisticLockingFailure
	}

	return newSyncError(module, message, errToWrap, ErrOptimisticLockingFailure, false, false)
}

// Error implements the error interface.
func (e *SyncError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap returns the original error for errors.Unwrap.
func (e *SyncError) Unwrap() error {
	return e.OriginalErr
}

// Is reports whether this error matches the given taxonomy sentinel.
// Combined with Unwrap, errors.Is finds both the kind and the original chain.
func (e *SyncError) Is(target error) bool {
	return e.kind != nil && e.kind == target
}

// IsRetryable returns whether this error is retryable on the next scheduled run.
func (e *SyncError) IsRetryable() bool {
	return e.isRetryable
}

// IsSkippable returns whether the affected site can be skipped.
func (e *SyncError) IsSkippable() bool {
	return e.isSkippable
}

// IsSyncError determines if the given error is of type SyncError.
func IsSyncError(err error) bool {
	if err == nil {
		return false
	}
	var se *SyncError
	return errors.As(err, &se)
}

// IsTransientFetch reports whether err is (or wraps) a transient fetch failure.
func IsTransientFetch(err error) bool {
	return errors.Is(err, ErrTransientFetch)
}

// IsMalformedResponse reports whether err is (or wraps) a malformed response failure.
func IsMalformedResponse(err error) bool {
	return errors.Is(err, ErrMalformedResponse)
}

// IsNotFound reports whether err is (or wraps) a source not-found failure.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsStoreCommit reports whether err is (or wraps) a store commit failure.
func IsStoreCommit(err error) bool {
	return errors.Is(err, ErrStoreCommit)
}

// IsRunTimeout reports whether err indicates the run exceeded its budget.
// A bare context.DeadlineExceeded from a timed-out run context also qualifies.
func IsRunTimeout(err error) bool {
	return errors.Is(err, ErrRunTimeout) || errors.Is(err, context.DeadlineExceeded)
}

// IsOptimisticLockingFailure determines if an error indicates an optimistic locking failure.
func IsOptimisticLockingFailure(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrOptimisticLockingFailure)
}

// IsTemporary determines if an error is temporary (e.g., network error,
// temporary DB connection issue). The SyncError retryable flag takes
// precedence; otherwise common transport failure fragments are matched.
func IsTemporary(err error) bool {
	if err == nil {
		return false
	}
	var se *SyncError
	if errors.As(err, &se) {
		return se.IsRetryable()
	}
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset")
}

// IsFatal determines if an error is fatal (neither retryable nor skippable).
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var se *SyncError
	if errors.As(err, &se) {
		return !se.IsRetryable() && !se.IsSkippable()
	}
	errStr := err.Error()
	return strings.Contains(errStr, "invalid argument") ||
		strings.Contains(errStr, "permission denied")
}

// IsErrorOfType checks if an error matches a specified type name.
// It checks, in order: registered sentinel errors (errors.Is), substrings of
// error messages along the chain, and type names via reflection.
func IsErrorOfType(err error, errorTypeName string) bool {
	if err == nil {
		return false
	}

	registryMutex.RLock()
	targetError, ok := errorRegistry[errorTypeName]
	registryMutex.RUnlock()

	if ok {
		if errors.Is(err, targetError) {
			return true
		}
	}

	currentErr := err
	for currentErr != nil {
		if strings.Contains(currentErr.Error(), errorTypeName) {
			return true
		}

		errType := reflect.TypeOf(currentErr)
		if errType != nil {
			if errType.String() == errorTypeName || (errType.Kind() == reflect.Ptr && errType.Elem().String() == errorTypeName) {
				return true
			}
		}

		currentErr = errors.Unwrap(currentErr)
	}

	return false
}

// ExtractErrorMessage extracts the error message string from an error.
// For SyncError it returns the cleaner Message field.
func ExtractErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var se *SyncError
	if errors.As(err, &se) {
		return se.Message
	}
	return err.Error()
}

func init() {
	// Register sentinel errors so classification by name works out of the box.
	RegisterErrorType("TransientFetchError", ErrTransientFetch)
	RegisterErrorType("MalformedResponseError", ErrMalformedResponse)
	RegisterErrorType("NotFoundError", ErrNotFound)
	RegisterErrorType("StoreCommitError", ErrStoreCommit)
	RegisterErrorType("TimeoutError", ErrRunTimeout)
	RegisterErrorType("OptimisticLockingFailureException", ErrOptimisticLockingFailure)

	RegisterErrorType("context.DeadlineExceeded", context.DeadlineExceeded)
	RegisterErrorType("context.Canceled", context.Canceled)
	RegisterErrorType("sql.ErrNoRows", sql.ErrNoRows)
}
