package repository

import "context"

// DeliveryStatus tracks the lifecycle of one reply delivery.
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed"
)

// DeliveryStore enforces at-most-one delivered reply per inbound
// message via an idempotency key derived from the inbound platform id.
type DeliveryStore interface {
	// Reserve atomically claims the idempotency key. Returns false if a
	// delivery for the key already exists (duplicate suppressed).
	Reserve(ctx context.Context, key, chatID, inboundID string) (bool, error)

	// MarkDelivered records the successful send and links the outbound
	// message id.
	MarkDelivered(ctx context.Context, key, outboundID string) error

	// MarkFailed records exhaustion of the retry budget.
	MarkFailed(ctx context.Context, key, reason string) error
}
