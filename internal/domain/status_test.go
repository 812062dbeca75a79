package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePurchaseOrderStatus(t *testing.T) {
	status, err := ParsePurchaseOrderStatus("draft")
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, status)

	status, err = ParsePurchaseOrderStatus("  In_Transit ")
	require.NoError(t, err)
	assert.Equal(t, StatusInTransit, status)

	_, err = ParsePurchaseOrderStatus("SHIPPED")
	require.Error(t, err)
}

func TestStatusTransitionMatrix(t *testing.T) {
	all := []PurchaseOrderStatus{
		StatusDraft,
		StatusInTransit,
		StatusReceivedSplitPending,
		StatusSentToStores,
		StatusCompleted,
		StatusCancelled,
	}

	allowed := map[PurchaseOrderStatus][]PurchaseOrderStatus{
		StatusDraft:                {StatusInTransit, StatusCancelled},
		StatusInTransit:            {StatusReceivedSplitPending},
		StatusReceivedSplitPending: {StatusSentToStores},
		StatusSentToStores:         {StatusCompleted},
		StatusCompleted:            {},
		StatusCancelled:            {},
	}

	for _, from := range all {
		want := allowed[from]
		for _, to := range all {
			expected := false
			for _, ok := range want {
				if to == ok {
					expected = true
				}
			}
			assert.Equalf(t, expected, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestMutableOnlyDraft(t *testing.T) {
	assert.True(t, StatusDraft.Mutable())
	for _, status := range []PurchaseOrderStatus{
		StatusInTransit,
		StatusReceivedSplitPending,
		StatusSentToStores,
		StatusCompleted,
		StatusCancelled,
	} {
		assert.False(t, status.Mutable())
	}
}
