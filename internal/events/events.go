// Package events publishes cart lifecycle events for downstream
// consumers (notifications, analytics). Publishing is best-effort:
// failures are logged by callers and never fail the parent mutation.
package events

import "context"

// Event subjects.
const (
	SubjectItemAdded   = "cart.item_added"
	SubjectItemUpdated = "cart.item_updated"
	SubjectItemRemoved = "cart.item_removed"
	SubjectCleared     = "cart.cleared"
	SubjectSynced      = "cart.synced"
)

// CartEvent is the payload published after a successful mutation.
type CartEvent struct {
	UserID     string `json:"user_id"`
	CartID     string `json:"cart_id"`
	ItemCount  int32  `json:"item_count"`
	TotalCents int64  `json:"total_cents"`
}

// Publisher emits cart events.
type Publisher interface {
	Publish(ctx context.Context, subject string, event CartEvent) error
}

// NoopPublisher discards all events. Used when no broker is configured.
type NoopPublisher struct{}

var _ Publisher = (*NoopPublisher)(nil)

func (NoopPublisher) Publish(ctx context.Context, subject string, event CartEvent) error {
	return nil
}
