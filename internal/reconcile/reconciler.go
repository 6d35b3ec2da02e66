package reconcile

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/unravelhq/tripflow/internal/catalog"
	"github.com/unravelhq/tripflow/internal/clock"
	"github.com/unravelhq/tripflow/internal/domain"
	apperrors "github.com/unravelhq/tripflow/internal/errors"
	"github.com/unravelhq/tripflow/internal/flow"
	"github.com/unravelhq/tripflow/internal/metrics"
)

// TextSender delivers the quote message. Satisfied by the transport
// connector.
type TextSender interface {
	SendText(ctx context.Context, to, text string) error
}

// Notifier alerts the travel executive about a confirmed booking.
// Implementations must not block reconciliation.
type Notifier interface {
	Notify(ctx context.Context, record *domain.BookingRecord)
}

// Reconciler applies normalized quote deliveries to booking records.
// Callers serialize Apply with the flow engine per user.
type Reconciler struct {
	records  domain.RecordRepository
	states   domain.StateRepository
	catalog  *catalog.Catalog
	sender   TextSender
	notifier Notifier
	clk      clock.Clock
	logger   *zap.Logger
	metrics  *metrics.Metrics
	currency string
}

// New creates a reconciler. notifier may be nil.
func New(
	records domain.RecordRepository,
	states domain.StateRepository,
	cat *catalog.Catalog,
	sender TextSender,
	notifier Notifier,
	clk clock.Clock,
	logger *zap.Logger,
	m *metrics.Metrics,
	currency string,
) *Reconciler {
	if currency == "" {
		currency = "₹"
	}
	return &Reconciler{
		records:  records,
		states:   states,
		catalog:  cat,
		sender:   sender,
		notifier: notifier,
		clk:      clk,
		logger:   logger,
		metrics:  m,
		currency: currency,
	}
}

// Apply reconciles one quote delivery. Rejections (unknown recipient,
// stale or unmatched request id, conversation not awaiting a quote)
// return discard-kind errors that are logged and absorbed upstream; the
// traveler never sees them. The ledger entry is marked used and
// persisted before any message is sent, so a redelivered callback can
// never produce a second quote.
func (r *Reconciler) Apply(ctx context.Context, delivery *domain.QuoteDelivery) error {
	now := r.clk.NowUTC()
	userID := delivery.CustomerPhone

	record, err := r.records.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return r.reject(apperrors.UnknownRecipient(userID), delivery)
		}
		return apperrors.Wrap(err, "reconcile.Apply", apperrors.CodeDatabase, "loading booking record")
	}

	// A record that never submitted anything is as unknown to the quote
	// pipeline as a missing one.
	if len(record.RequestIDs) == 0 {
		return r.reject(apperrors.UnknownRecipient(userID), delivery)
	}

	state, err := r.states.Get(ctx, userID)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return apperrors.Wrap(err, "reconcile.Apply", apperrors.CodeDatabase, "loading conversation state")
	}
	// The state gate runs before the ledger is touched: a mismatched
	// callback must not burn an entry that a later valid one could use.
	if state == nil || state.Stage != domain.StageAwaitingQuote {
		have := "absent"
		if state != nil {
			have = string(state.Stage)
		}
		return r.reject(apperrors.StateMismatch(have), delivery)
	}

	if !record.ConsumeRequestID(delivery.RequestID) {
		return r.reject(apperrors.StaleOrUnmatched(delivery.RequestID), delivery)
	}

	price := delivery.FinalPrice()
	destination := delivery.Destination
	pkg, _ := r.catalog.Get(record.SelectedPackage)
	if destination == "" && pkg != nil {
		destination = pkg.Destination
	}
	record.ApplyQuote(price, destination, delivery.Quotes, now)

	// Persist the consumed entry and quote before sending anything.
	if err := r.records.Save(ctx, record); err != nil {
		return apperrors.Wrap(err, "reconcile.Apply", apperrors.CodeDatabase, "persisting reconciled quote")
	}

	message := flow.QuoteMessage(record, pkg, price, r.currency)
	if err := r.sender.SendText(ctx, userID, message); err != nil {
		// The entry stays used; the quote lives on the record and the
		// executive follows up. Do not risk a double send.
		r.logger.Error("quote delivery send failed",
			zap.String("user_id", userID),
			zap.String("request_id", delivery.RequestID),
			zap.Error(err),
		)
		return err
	}

	state.Transition(domain.StageCompleted, now)
	if err := r.states.Save(ctx, state); err != nil {
		return apperrors.Wrap(err, "reconcile.Apply", apperrors.CodeDatabase, "completing conversation")
	}

	if r.metrics != nil {
		r.metrics.RecordQuoteDelivered()
		r.metrics.RecordStageTransition(string(domain.StageAwaitingQuote), string(domain.StageCompleted))
	}
	r.logger.Info("quote reconciled",
		zap.String("user_id", userID),
		zap.String("request_id", delivery.RequestID),
		zap.Float64("price", price),
		zap.Int("vendor_quotes", len(delivery.Quotes)),
	)

	if r.notifier != nil {
		// Fire and forget; executive notification must never delay or
		// fail reconciliation.
		go r.notifier.Notify(context.WithoutCancel(ctx), record)
	}

	return nil
}

// reject logs and counts a discarded delivery and returns the rejection.
func (r *Reconciler) reject(rejection *apperrors.Error, delivery *domain.QuoteDelivery) error {
	if r.metrics != nil {
		r.metrics.RecordQuoteRejection(rejectionLabel(rejection.Code))
	}
	r.logger.Warn("quote callback rejected",
		zap.String("reason", string(rejection.Code)),
		zap.String("request_id", delivery.RequestID),
		zap.String("customer_phone", delivery.CustomerPhone),
	)
	return rejection
}

func rejectionLabel(code apperrors.Code) string {
	switch code {
	case apperrors.CodeUnknownRecipient:
		return "unknown_recipient"
	case apperrors.CodeStaleOrUnmatched:
		return "stale_or_unmatched"
	case apperrors.CodeStateMismatch:
		return "state_mismatch"
	default:
		return "other"
	}
}
