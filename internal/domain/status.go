package domain

import (
	"fmt"
	"strings"
)

// PurchaseOrderStatus is the lifecycle state of a purchase order.
type PurchaseOrderStatus string

const (
	StatusDraft                PurchaseOrderStatus = "DRAFT"
	StatusInTransit            PurchaseOrderStatus = "IN_TRANSIT"
	StatusReceivedSplitPending PurchaseOrderStatus = "RECEIVED_SPLIT_PENDING"
	StatusSentToStores         PurchaseOrderStatus = "SENT_TO_STORES"
	StatusCompleted            PurchaseOrderStatus = "COMPLETED"
	StatusCancelled            PurchaseOrderStatus = "CANCELLED"
)

var purchaseOrderStatuses = map[string]PurchaseOrderStatus{
	"DRAFT":                  StatusDraft,
	"IN_TRANSIT":             StatusInTransit,
	"RECEIVED_SPLIT_PENDING": StatusReceivedSplitPending,
	"SENT_TO_STORES":         StatusSentToStores,
	"COMPLETED":              StatusCompleted,
	"CANCELLED":              StatusCancelled,
}

// ParsePurchaseOrderStatus returns the status for a given label (case-insensitive).
func ParsePurchaseOrderStatus(label string) (PurchaseOrderStatus, error) {
	status, ok := purchaseOrderStatuses[strings.ToUpper(strings.TrimSpace(label))]
	if !ok {
		return "", fmt.Errorf("unknown purchase order status %q", label)
	}
	return status, nil
}

// CanTransitionTo reports whether the forward status chain allows s -> next.
// Cancellation is only reachable from DRAFT.
func (s PurchaseOrderStatus) CanTransitionTo(next PurchaseOrderStatus) bool {
	switch s {
	case StatusDraft:
		return next == StatusInTransit || next == StatusCancelled
	case StatusInTransit:
		return next == StatusReceivedSplitPending
	case StatusReceivedSplitPending:
		return next == StatusSentToStores
	case StatusSentToStores:
		return next == StatusCompleted
	case StatusCompleted, StatusCancelled:
		return false
	default:
		return false
	}
}

// Mutable reports whether order contents may still be edited or deleted.
func (s PurchaseOrderStatus) Mutable() bool {
	return s == StatusDraft
}

// ConfidenceState classifies the statistical trust in a recommendation.
type ConfidenceState string

const (
	ConfidenceNormal ConfidenceState = "NORMAL"
	ConfidenceLow    ConfidenceState = "LOW"
)

// ParLevelSource records whether par levels are human-set or derived.
type ParLevelSource string

const (
	ParSourceManual  ParLevelSource = "MANUAL"
	ParSourceDynamic ParLevelSource = "DYNAMIC"
)
