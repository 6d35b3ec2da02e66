package domain

import "context"

// RecordRepository persists booking records keyed by canonical user id.
// Get returns errors.ErrNotFound when no record exists.
type RecordRepository interface {
	Get(ctx context.Context, userID string) (*BookingRecord, error)
	Save(ctx context.Context, record *BookingRecord) error
	List(ctx context.Context) ([]*BookingRecord, error)
	Delete(ctx context.Context, userID string) error
}

// StateRepository persists conversation state keyed by canonical user id.
// Get returns errors.ErrNotFound when no state exists.
type StateRepository interface {
	Get(ctx context.Context, userID string) (*ConversationState, error)
	Save(ctx context.Context, state *ConversationState) error
	Delete(ctx context.Context, userID string) error
}
