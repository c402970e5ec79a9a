package exception

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSyncErrorTaxonomy(t *testing.T) {
	cause := errors.New("connection reset by peer")

	transient := NewTransientFetchError("connector", "request failed", cause)
	assert.True(t, IsTransientFetch(transient))
	assert.True(t, transient.IsRetryable())
	assert.True(t, transient.IsSkippable())
	assert.False(t, IsMalformedResponse(transient))
	assert.ErrorIs(t, transient, ErrTransientFetch)

	malformed := NewMalformedResponseError("connector", "undecodable payload", nil)
	assert.True(t, IsMalformedResponse(malformed))
	assert.False(t, malformed.IsRetryable())
	assert.True(t, malformed.IsSkippable())

	notFound := NewNotFoundError("connector", "unknown site", nil)
	assert.True(t, IsNotFound(notFound))
	assert.False(t, notFound.IsRetryable())

	commit := NewStoreCommitError("repository", "upsert failed", cause)
	assert.True(t, IsStoreCommit(commit))
	assert.True(t, commit.IsSkippable())

	timeout := NewTimeoutError("scheduler", "run exceeded budget", context.DeadlineExceeded)
	assert.True(t, IsRunTimeout(timeout))
	assert.True(t, IsFatal(timeout))
}

func TestSyncErrorWrapping(t *testing.T) {
	cause := errors.New("dial tcp: i/o timeout")
	err := NewTransientFetchError("connector", "request failed", cause)

	// The original error stays reachable through the chain.
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "[connector] request failed: dial tcp: i/o timeout", err.Error())
	assert.Equal(t, "request failed", ExtractErrorMessage(err))

	// Wrapping a SyncError in fmt.Errorf preserves taxonomy matching.
	wrapped := fmt.Errorf("site 14211720: %w", err)
	assert.True(t, IsTransientFetch(wrapped))
}

func TestIsRunTimeoutOnBareDeadline(t *testing.T) {
	assert.True(t, IsRunTimeout(context.DeadlineExceeded))
	assert.False(t, IsRunTimeout(context.Canceled))
}

func TestOptimisticLockingFailure(t *testing.T) {
	err := NewOptimisticLockingFailureException("repository", "stale version", nil)
	assert.True(t, IsOptimisticLockingFailure(err))
	assert.True(t, IsFatal(err))

	withCause := NewOptimisticLockingFailureException("repository", "stale version", errors.New("0 rows affected"))
	assert.True(t, IsOptimisticLockingFailure(withCause))
}

func TestIsTemporary(t *testing.T) {
	assert.True(t, IsTemporary(errors.New("dial tcp 10.0.0.1:443: connection refused")))
	assert.False(t, IsTemporary(errors.New("syntax error")))
	// SyncError flags take precedence over message fragments.
	assert.False(t, IsTemporary(NewMalformedResponseError("connector", "timeout field missing", nil)))
}

func TestIsErrorOfType(t *testing.T) {
	err := NewTransientFetchError("connector", "request failed", errors.New("boom"))
	assert.True(t, IsErrorOfType(err, "TransientFetchError"))
	assert.False(t, IsErrorOfType(err, "MalformedResponseError"))
	assert.True(t, IsErrorOfType(errors.New("no such table: observations"), "no such table"))
	assert.True(t, IsErrorTypeRegistered("StoreCommitError"))
}
