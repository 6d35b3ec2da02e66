package flow

import (
	"context"
	"sync"

	"github.com/unravelhq/tripflow/internal/backend"
	"github.com/unravelhq/tripflow/internal/domain"
	apperrors "github.com/unravelhq/tripflow/internal/errors"
)

// memRecordRepo is an in-memory RecordRepository.
type memRecordRepo struct {
	mu        sync.Mutex
	records   map[string]*domain.BookingRecord
	saveErr   error
	getErr    error
	saveCalls int
}

func newMemRecordRepo() *memRecordRepo {
	return &memRecordRepo{records: make(map[string]*domain.BookingRecord)}
}

func (r *memRecordRepo) Get(ctx context.Context, userID string) (*domain.BookingRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	rec, ok := r.records[userID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return rec, nil
}

func (r *memRecordRepo) Save(ctx context.Context, record *domain.BookingRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saveCalls++
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

// memStateRepo is an in-memory StateRepository.
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

// stubSubmitter records submissions and returns a configured result.
type stubSubmitter struct {
	mu       sync.Mutex
	requests []*backend.SubmitRequest
	result   *backend.SubmitResult
	err      error

	// ledgerLenAtSubmit captures the submitting user's persisted ledger
	// size when Submit is called, to verify write-before-send ordering.
	records           *memRecordRepo
	ledgerLenAtSubmit int
}

func (s *stubSubmitter) Submit(ctx context.Context, req *backend.SubmitRequest) (*backend.SubmitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.records != nil {
		if rec, ok := s.records.records[req.Phone]; ok {
			s.ledgerLenAtSubmit = len(rec.RequestIDs)
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	if s.result != nil {
		return s.result, nil
	}
	return &backend.SubmitResult{Accepted: true}, nil
}

// stubAnswerer returns a fixed answer or error.
type stubAnswerer struct {
	mu        sync.Mutex
	questions []string
	answer    string
	err       error
}

func (a *stubAnswerer) Answer(ctx context.Context, question, packageContext string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.questions = append(a.questions, question)
	if a.err != nil {
		return "", a.err
	}
	return a.answer, nil
}

// stubDocSender records brochure sends.
type stubDocSender struct {
	mu    sync.Mutex
	sends []string // "to|filename"
	err   error
}

func (d *stubDocSender) SendDocument(ctx context.Context, to, filename, caption string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sends = append(d.sends, to+"|"+filename)
	return d.err
}
