// Package flow implements the per-user booking conversation: a staged
// state machine that greets travelers, collects booking details, and
// submits finalized requests to the booking backend.
package flow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/unravelhq/tripflow/internal/backend"
	"github.com/unravelhq/tripflow/internal/catalog"
	"github.com/unravelhq/tripflow/internal/clock"
	"github.com/unravelhq/tripflow/internal/domain"
	apperrors "github.com/unravelhq/tripflow/internal/errors"
	"github.com/unravelhq/tripflow/internal/metrics"
	"github.com/unravelhq/tripflow/internal/validation"
)

// Answerer produces short answers to traveler questions.
type Answerer interface {
	Answer(ctx context.Context, question, packageContext string) (string, error)
}

// DocumentSender delivers brochure documents. Satisfied by the transport
// connector.
type DocumentSender interface {
	SendDocument(ctx context.Context, to, filename, caption string) error
}

// Config holds flow behavior settings.
type Config struct {
	YearsAhead     int
	SupportPhone   string
	SupportEmail   string
	CurrencySymbol string
}

// Engine drives the booking conversation. Process handles one inbound
// message and returns the ordered replies to send. Callers serialize
// Process per user.
type Engine struct {
	records   domain.RecordRepository
	states    domain.StateRepository
	catalog   *catalog.Catalog
	answers   Answerer
	submitter backend.Submitter
	brochures DocumentSender
	clk       clock.Clock
	logger    *zap.Logger
	metrics   *metrics.Metrics
	cfg       Config
}

// NewEngine creates a flow engine. answers and brochures may be nil;
// questions then get the static fallback and brochure delivery is skipped.
func NewEngine(
	records domain.RecordRepository,
	states domain.StateRepository,
	cat *catalog.Catalog,
	answers Answerer,
	submitter backend.Submitter,
	brochures DocumentSender,
	clk clock.Clock,
	logger *zap.Logger,
	m *metrics.Metrics,
	cfg Config,
) *Engine {
	if cfg.YearsAhead <= 0 {
		cfg.YearsAhead = 5
	}
	if cfg.CurrencySymbol == "" {
		cfg.CurrencySymbol = "₹"
	}
	return &Engine{
		records:   records,
		states:    states,
		catalog:   cat,
		answers:   answers,
		submitter: submitter,
		brochures: brochures,
		clk:       clk,
		logger:    logger,
		metrics:   m,
		cfg:       cfg,
	}
}

// Process handles one admitted inbound message for a user and returns
// the replies to deliver, in order.
func (e *Engine) Process(ctx context.Context, userID, text string) ([]string, error) {
	now := e.clk.NowUTC()

	state, record, err := e.load(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	if matchesAny(text, resetPhrases) {
		record.ResetCollection(now)
		e.transition(state, domain.StageDestinationSelection, now)
		if err := e.save(ctx, state, record, now); err != nil {
			return nil, err
		}
		return []string{greetingMessage(e.catalog.All())}, nil
	}

	var replies []string
	switch state.Stage {
	case domain.StageGreeting:
		replies = e.handleGreeting(ctx, state, record, text, now)
	case domain.StageDestinationSelection:
		replies = e.handleDestinationSelection(ctx, state, record, text, now)
	case domain.StageReadyConfirmation:
		replies = e.handleReadyConfirmation(ctx, state, record, text, now)
	case domain.StageCollectName:
		replies = e.handleCollectName(ctx, state, record, text, now)
	case domain.StageCollectPartySize:
		replies = e.handleCollectPartySize(ctx, state, record, text, now)
	case domain.StageCollectTravelDate:
		replies = e.handleCollectTravelDate(ctx, state, record, text, now)
	case domain.StageCollectRequirements:
		replies = e.handleCollectRequirements(ctx, state, record, text, now)
	case domain.StageConfirmSummary:
		replies, err = e.handleConfirmSummary(ctx, state, record, text, now)
		if err != nil {
			return nil, err
		}
	case domain.StageAwaitingQuote:
		replies = e.handleAwaitingQuote(ctx, record, text)
	case domain.StageCompleted:
		replies = e.handleCompleted(ctx, record, text)
	default:
		// Unknown stored stage; recover by restarting the flow.
		e.logger.Warn("unknown conversation stage, restarting",
			zap.String("user_id", userID),
			zap.String("stage", string(state.Stage)),
		)
		e.transition(state, domain.StageDestinationSelection, now)
		replies = []string{greetingMessage(e.catalog.All())}
	}

	state.LastMessageAt = now
	if err := e.save(ctx, state, record, now); err != nil {
		return nil, err
	}
	return replies, nil
}

// load fetches the conversation state and booking record, creating both
// for first-contact users.
func (e *Engine) load(ctx context.Context, userID string, now time.Time) (*domain.ConversationState, *domain.BookingRecord, error) {
	state, err := e.states.Get(ctx, userID)
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrNotFound):
		state = domain.NewConversationState(userID, now)
	default:
		return nil, nil, apperrors.Wrap(err, "flow.load", apperrors.CodeDatabase, "loading conversation state")
	}

	record, err := e.records.Get(ctx, userID)
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrNotFound):
		record = domain.NewBookingRecord(userID, now)
	default:
		return nil, nil, apperrors.Wrap(err, "flow.load", apperrors.CodeDatabase, "loading booking record")
	}

	return state, record, nil
}

func (e *Engine) save(ctx context.Context, state *domain.ConversationState, record *domain.BookingRecord, now time.Time) error {
	record.UpdatedAt = now
	if err := e.records.Save(ctx, record); err != nil {
		return apperrors.Wrap(err, "flow.save", apperrors.CodeDatabase, "saving booking record")
	}
	if err := e.states.Save(ctx, state); err != nil {
		return apperrors.Wrap(err, "flow.save", apperrors.CodeDatabase, "saving conversation state")
	}
	return nil
}

func (e *Engine) transition(state *domain.ConversationState, to domain.Stage, now time.Time) {
	from := state.Stage
	state.Transition(to, now)
	if e.metrics != nil {
		e.metrics.RecordStageTransition(string(from), string(to))
	}
	e.logger.Debug("stage transition",
		zap.String("user_id", state.UserID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
}

func (e *Engine) handleGreeting(ctx context.Context, state *domain.ConversationState, record *domain.BookingRecord, text string, now time.Time) []string {
	e.transition(state, domain.StageDestinationSelection, now)
	if isGreeting(text) {
		return []string{greetingMessage(e.catalog.All())}
	}
	// A first-contact message that already names a destination skips the
	// greeting and goes straight to selection.
	return e.handleDestinationSelection(ctx, state, record, text, now)
}

func (e *Engine) handleDestinationSelection(ctx context.Context, state *domain.ConversationState, record *domain.BookingRecord, text string, now time.Time) []string {
	pkg, ok := e.catalog.MatchKeyword(text)
	if !ok {
		if IsQuestion(text) {
			return []string{e.answerQuestion(ctx, record, text), destinationRepromptMessage(e.catalog.All())}
		}
		return []string{destinationRepromptMessage(e.catalog.All())}
	}

	record.SelectedPackage = pkg.Name
	replies := []string{packageOverviewMessage(pkg)}

	// The overview lands first, then the brochure document, then the
	// follow-up asking whether to proceed.
	e.transition(state, domain.StagePackageOverview, now)
	e.sendBrochure(ctx, record.UserID, pkg)
	replies = append(replies, brochureFollowupMessage(pkg))

	// Package overview is transient; the conversation rests awaiting the
	// traveler's go-ahead.
	e.transition(state, domain.StageReadyConfirmation, now)
	return replies
}

func (e *Engine) sendBrochure(ctx context.Context, userID string, pkg *catalog.Package) {
	if e.brochures == nil || pkg.Brochure == "" {
		return
	}
	caption := fmt.Sprintf("%s brochure", pkg.Name)
	if err := e.brochures.SendDocument(ctx, userID, pkg.Brochure, caption); err != nil {
		// Brochure delivery is best effort; the text overview already
		// carries the essentials.
		e.logger.Warn("brochure delivery failed",
			zap.String("user_id", userID),
			zap.String("package", pkg.Name),
			zap.Error(err),
		)
	}
}

func (e *Engine) handleReadyConfirmation(ctx context.Context, state *domain.ConversationState, record *domain.BookingRecord, text string, now time.Time) []string {
	if matchesAny(text, readyPhrases) {
		e.transition(state, domain.StageCollectName, now)
		return []string{namePromptMessage}
	}
	if IsQuestion(text) {
		return []string{e.answerQuestion(ctx, record, text)}
	}
	pkg, _ := e.catalog.Get(record.SelectedPackage)
	if pkg == nil {
		// Selected package vanished from the catalog; restart selection.
		e.transition(state, domain.StageDestinationSelection, now)
		return []string{destinationRepromptMessage(e.catalog.All())}
	}
	return []string{readyNudgeMessage(pkg)}
}

func (e *Engine) handleCollectName(ctx context.Context, state *domain.ConversationState, record *domain.BookingRecord, text string, now time.Time) []string {
	if IsQuestion(text) {
		return []string{e.answerQuestion(ctx, record, text), namePromptMessage}
	}
	name, err := validation.ValidateName(text)
	if err != nil {
		return []string{err.Error()}
	}
	record.Name = name
	e.transition(state, domain.StageCollectPartySize, now)
	return []string{partySizePromptMessage}
}

func (e *Engine) handleCollectPartySize(ctx context.Context, state *domain.ConversationState, record *domain.BookingRecord, text string, now time.Time) []string {
	if IsQuestion(text) {
		return []string{e.answerQuestion(ctx, record, text), partySizePromptMessage}
	}
	size, err := validation.ValidatePartySize(text)
	if err != nil {
		return []string{err.Error()}
	}
	record.PartySize = size
	e.transition(state, domain.StageCollectTravelDate, now)
	return []string{travelDatePromptMessage}
}

func (e *Engine) handleCollectTravelDate(ctx context.Context, state *domain.ConversationState, record *domain.BookingRecord, text string, now time.Time) []string {
	date, err := validation.ValidateTravelDate(text, now, e.cfg.YearsAhead)
	if err != nil {
		if IsQuestion(text) {
			return []string{e.answerQuestion(ctx, record, text), travelDatePromptMessage}
		}
		return []string{err.Error()}
	}
	record.TravelDate = date
	e.transition(state, domain.StageCollectRequirements, now)
	return []string{requirementsPromptMessage}
}

func (e *Engine) handleCollectRequirements(ctx context.Context, state *domain.ConversationState, record *domain.BookingRecord, text string, now time.Time) []string {
	if IsQuestion(text) {
		return []string{e.answerQuestion(ctx, record, text), requirementsPromptMessage}
	}
	req, err := validation.NormalizeRequirements(text)
	if err != nil {
		return []string{err.Error()}
	}
	record.Requirements = req
	e.transition(state, domain.StageConfirmSummary, now)
	return []string{summaryMessage(record)}
}

func (e *Engine) handleConfirmSummary(ctx context.Context, state *domain.ConversationState, record *domain.BookingRecord, text string, now time.Time) ([]string, error) {
	switch {
	case matchesAny(text, affirmativePhrases):
		return e.submit(ctx, state, record, now)

	case matchesAny(text, negativePhrases):
		record.ResetCollection(now)
		e.transition(state, domain.StageDestinationSelection, now)
		return []string{cancelledMessage(e.catalog.All())}, nil

	case IsQuestion(text):
		return []string{e.answerQuestion(ctx, record, text), summaryMessage(record)}, nil

	default:
		return []string{summaryMessage(record)}, nil
	}
}

// submit mints a request id, persists it to the ledger, and sends the
// booking to the backend. The ledger write lands before the submission so
// a quote callback can never race an unrecorded id.
func (e *Engine) submit(ctx context.Context, state *domain.ConversationState, record *domain.BookingRecord, now time.Time) ([]string, error) {
	requestID := domain.NewRequestID(now, record.UserID)
	record.AppendRequestID(requestID, now)
	if err := e.records.Save(ctx, record); err != nil {
		return nil, apperrors.Wrap(err, "flow.submit", apperrors.CodeDatabase, "persisting request id")
	}

	req := &backend.SubmitRequest{
		RequestID:    requestID,
		Name:         record.Name,
		Phone:        record.UserID,
		Email:        record.UserID + "@whatsapp.com",
		Destination:  e.destinationFor(record),
		TravelDate:   record.TravelDate.ISO(),
		Guests:       record.PartySize,
		Requirements: record.Requirements,
		Package:      record.SelectedPackage,
	}

	result, err := e.submitter.Submit(ctx, req)
	switch {
	case err == nil && result.Accepted:
		// The outer save persists the backend's id on the ledger entry.
		record.SetBackendID(requestID, result.BackendRequestID)
		if e.metrics != nil {
			e.metrics.RecordSubmission("success")
		}
		e.logger.Info("booking submitted",
			zap.String("user_id", record.UserID),
			zap.String("request_id", requestID),
			zap.String("backend_request_id", result.BackendRequestID),
			zap.String("package", record.SelectedPackage),
		)
		e.transition(state, domain.StageAwaitingQuote, now)
		return []string{submittedMessage}, nil

	case errors.Is(err, apperrors.ErrBackendUnavailable):
		if e.metrics != nil {
			e.metrics.RecordSubmission("failure")
		}
		e.logger.Error("booking backend unavailable",
			zap.String("user_id", record.UserID),
			zap.String("request_id", requestID),
		)
		return []string{systemUnavailableMessage(e.cfg.SupportPhone, e.cfg.SupportEmail)}, nil

	case apperrors.GetCode(err) == apperrors.CodeBackendValidation:
		if e.metrics != nil {
			e.metrics.RecordSubmission("validation")
		}
		var appErr *apperrors.Error
		var fields []string
		if errors.As(err, &appErr) {
			fields = appErr.Fields
		}
		e.logger.Warn("booking rejected by backend",
			zap.String("user_id", record.UserID),
			zap.String("request_id", requestID),
			zap.Strings("fields", fields),
		)
		return []string{backendRejectionMessage(fields)}, nil

	default:
		if e.metrics != nil {
			e.metrics.RecordSubmission("failure")
		}
		e.logger.Error("booking submission failed",
			zap.String("user_id", record.UserID),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		return []string{systemUnavailableMessage(e.cfg.SupportPhone, e.cfg.SupportEmail)}, nil
	}
}

func (e *Engine) destinationFor(record *domain.BookingRecord) string {
	if pkg, ok := e.catalog.Get(record.SelectedPackage); ok {
		return pkg.Destination
	}
	return record.SelectedPackage
}

func (e *Engine) handleAwaitingQuote(ctx context.Context, record *domain.BookingRecord, text string) []string {
	if IsQuestion(text) {
		return []string{e.answerQuestion(ctx, record, text)}
	}
	return []string{awaitingQuoteMessage}
}

func (e *Engine) handleCompleted(ctx context.Context, record *domain.BookingRecord, text string) []string {
	if IsQuestion(text) {
		return []string{e.answerQuestion(ctx, record, text)}
	}
	return []string{completedMessage()}
}

// answerQuestion asks the answer engine, substituting the static
// fallback on any failure.
func (e *Engine) answerQuestion(ctx context.Context, record *domain.BookingRecord, question string) string {
	if e.answers == nil {
		return answerFallbackMessage
	}

	answer, err := e.answers.Answer(ctx, question, e.packageContext(record))
	if err != nil {
		if e.metrics != nil {
			e.metrics.RecordMessage("answer_fallback")
		}
		e.logger.Warn("answer engine failed, using fallback",
			zap.String("user_id", record.UserID),
			zap.Error(err),
		)
		return answerFallbackMessage
	}
	return answer
}

// packageContext renders the selected package (or the full catalog when
// none is selected yet) for the answer engine prompt.
func (e *Engine) packageContext(record *domain.BookingRecord) string {
	if pkg, ok := e.catalog.Get(record.SelectedPackage); ok {
		return packageOverviewMessage(pkg)
	}
	var ctx string
	for _, p := range e.catalog.All() {
		ctx += fmt.Sprintf("%s: %s, %s\n", p.Name, p.Destination, p.DurationLabel())
	}
	return ctx
}
