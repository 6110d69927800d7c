package posting

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/ledger/shared"
)

type retryableConnError struct{}

func (retryableConnError) Error() string     { return "failed to connect" }
func (retryableConnError) SafeToRetry() bool { return true }

func TestClassifyStoreErrorTransientCodes(t *testing.T) {
	for _, code := range []string{"40001", "40P01", "55P03"} {
		err := classifyStoreError(&pgconn.PgError{Code: code})
		require.ErrorIs(t, err, shared.ErrTransientStore, code)
	}
}

func TestClassifyStoreErrorConnectivity(t *testing.T) {
	require.ErrorIs(t, classifyStoreError(retryableConnError{}), shared.ErrTransientStore)
	require.ErrorIs(t, classifyStoreError(context.DeadlineExceeded), shared.ErrTransientStore)
}

func TestClassifyStoreErrorLeavesOthersAlone(t *testing.T) {
	// Sentinels pass through unwrapped so errors.Is keeps matching upstream.
	require.ErrorIs(t, classifyStoreError(shared.ErrDuplicateEvent), shared.ErrDuplicateEvent)
	require.ErrorIs(t, classifyStoreError(shared.ErrInvalidTransition), shared.ErrInvalidTransition)

	// Constraint violations are permanent, not retryable.
	fk := &pgconn.PgError{Code: "23503"}
	classified := classifyStoreError(fk)
	require.NotErrorIs(t, classified, shared.ErrTransientStore)

	other := errors.New("schema drift")
	require.Equal(t, other, classifyStoreError(other))
	require.NotErrorIs(t, classifyStoreError(context.Canceled), shared.ErrTransientStore)
	require.NoError(t, classifyStoreError(nil))
}
