package generic_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/finance-gate/generic"
)

func TestRejection_MessageIsVerbatim(t *testing.T) {
	err := generic.Rejectf(generic.KindFormat, "amount", "Expense amount must be greater than %d", 0)

	assert.Equal(t, "Expense amount must be greater than 0", err.Error())
}

func TestRejection_MatchesKindSentinel(t *testing.T) {
	tests := []struct {
		kind     generic.Kind
		sentinel error
	}{
		{generic.KindDecode, generic.ErrDecode},
		{generic.KindFormat, generic.ErrFormat},
		{generic.KindTransition, generic.ErrTransition},
		{generic.KindConsistency, generic.ErrConsistency},
		{generic.KindIntegrity, generic.ErrIntegrity},
		{generic.KindPolicy, generic.ErrPolicy},
		{generic.KindRouting, generic.ErrRouting},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			err := generic.Reject(tt.kind, "", "nope")

			assert.ErrorIs(t, err, tt.sentinel)
			assert.Equal(t, tt.kind, generic.KindOf(err))
			assert.True(t, generic.IsRejection(err))
			assert.True(t, generic.IsClientError(err))
		})
	}
}

func TestRejectCause_UnwrapsBothSentinelAndCause(t *testing.T) {
	cause := errors.New("disk on fire")

	err := generic.RejectCause(generic.KindIntegrity, "categoryId", cause, "Failed to look up %s: %v", "expense_categories", cause)

	assert.ErrorIs(t, err, generic.ErrIntegrity)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "Failed to look up expense_categories: disk on fire", err.Error())
}

func TestAsRejection_ThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("put expenses/exp-1: %w", generic.Reject(generic.KindPolicy, "vendorName", "name the vendor"))

	rej, ok := generic.AsRejection(wrapped)

	require.True(t, ok)
	assert.Equal(t, "vendorName", rej.Field)
	assert.Equal(t, generic.KindPolicy, rej.Kind)
}

func TestErrorHelpers_OnPlainErrors(t *testing.T) {
	plain := errors.New("boom")

	assert.False(t, generic.IsRejection(plain))
	assert.Equal(t, generic.Kind(""), generic.KindOf(plain))
	assert.False(t, generic.IsRetryable(plain))
	assert.False(t, generic.IsNotFound(plain))

	assert.True(t, generic.IsRetryable(fmt.Errorf("commit: %w", generic.ErrVersionConflict)))
	assert.True(t, generic.IsNotFound(fmt.Errorf("get: %w", generic.ErrDocumentNotFound)))
}
