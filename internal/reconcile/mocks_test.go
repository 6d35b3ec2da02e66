package reconcile

import (
	"context"
	"sync"

	"github.com/unravelhq/tripflow/internal/domain"
	apperrors "github.com/unravelhq/tripflow/internal/errors"
)

type memRecordRepo struct {
	mu      sync.Mutex
	records map[string]*domain.BookingRecord
	saveErr error
}

func newMemRecordRepo() *memRecordRepo {
	return &memRecordRepo{records: make(map[string]*domain.BookingRecord)}
}

func (r *memRecordRepo) Get(ctx context.Context, userID string) (*domain.BookingRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[userID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return rec, nil
}

func (r *memRecordRepo) Save(ctx context.Context, record *domain.BookingRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.records[record.UserID] = record
	return nil
}

func (r *memRecordRepo) List(ctx context.Context) ([]*domain.BookingRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.BookingRecord
	for _, rec := range r.records {
		out = append(out, rec)
	}
	return out, nil
}

func (r *memRecordRepo) Delete(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, userID)
	return nil
}

type memStateRepo struct {
	mu     sync.Mutex
	states map[string]*domain.ConversationState
}

func newMemStateRepo() *memStateRepo {
	return &memStateRepo{states: make(map[string]*domain.ConversationState)}
}

func (r *memStateRepo) Get(ctx context.Context, userID string) (*domain.ConversationState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.states[userID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return s, nil
}

func (r *memStateRepo) Save(ctx context.Context, state *domain.ConversationState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[state.UserID] = state
	return nil
}

func (r *memStateRepo) Delete(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.states, userID)
	return nil
}

// stubSender records sent texts and can fail on demand.
type stubSender struct {
	mu    sync.Mutex
	sends []string // "to|text"
	err   error
}

func (s *stubSender) SendText(ctx context.Context, to, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sends = append(s.sends, to+"|"+text)
	return nil
}

func (s *stubSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sends)
}

func (s *stubSender) last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sends) == 0 {
		return ""
	}
	return s.sends[len(s.sends)-1]
}

// stubNotifier records executive notifications.
type stubNotifier struct {
	mu       sync.Mutex
	notified []*domain.BookingRecord
	done     chan struct{}
}

func newStubNotifier() *stubNotifier {
	return &stubNotifier{done: make(chan struct{}, 8)}
}

func (n *stubNotifier) Notify(ctx context.Context, record *domain.BookingRecord) {
	n.mu.Lock()
	n.notified = append(n.notified, record)
	n.mu.Unlock()
	n.done <- struct{}{}
}

func (n *stubNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.notified)
}
