package reconcile

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/unravelhq/tripflow/internal/catalog"
	"github.com/unravelhq/tripflow/internal/clock"
	"github.com/unravelhq/tripflow/internal/domain"
	apperrors "github.com/unravelhq/tripflow/internal/errors"
)

const testUser = "919812345678"
const testRequestID = "REQ_1741598400000_345678_abcd1234"

var reconcileNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	reconciler *Reconciler
	records    *memRecordRepo
	states     *memStateRepo
	sender     *stubSender
	notifier   *stubNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	records := newMemRecordRepo()
	states := newMemStateRepo()
	sender := &stubSender{}
	notifier := newStubNotifier()
	clk := clock.NewMock(reconcileNow)

	r := New(records, states, catalog.Default(), sender, notifier, clk, zap.NewNop(), nil, "₹")
	return &fixture{reconciler: r, records: records, states: states, sender: sender, notifier: notifier}
}

// seedAwaiting installs a record and state as the flow leaves them after
// a successful submission.
func (f *fixture) seedAwaiting(t *testing.T) *domain.BookingRecord {
	t.Helper()
	record := domain.NewBookingRecord(testUser, reconcileNow.Add(-time.Hour))
	record.Name = "Asha Rao"
	record.PartySize = 4
	record.TravelDate = domain.TravelDate{Day: 20, Month: 12, Year: 2026}
	record.Requirements = "No special requirements"
	record.SelectedPackage = "A Week with Santa"
	record.AppendRequestID(testRequestID, reconcileNow.Add(-time.Hour))
	if err := f.records.Save(context.Background(), record); err != nil {
		t.Fatal(err)
	}

	state := domain.NewConversationState(testUser, reconcileNow.Add(-time.Hour))
	state.Stage = domain.StageAwaitingQuote
	if err := f.states.Save(context.Background(), state); err != nil {
		t.Fatal(err)
	}
	return record
}

func delivery(price float64) *domain.QuoteDelivery {
	return &domain.QuoteDelivery{
		RequestID:     testRequestID,
		CustomerPhone: testUser,
		Destination:   "Lapland, Finland",
		TotalPrice:    price,
	}
}

func TestApplyDeliversQuote(t *testing.T) {
	f := newFixture(t)
	f.seedAwaiting(t)

	if err := f.reconciler.Apply(context.Background(), delivery(184000)); err != nil {
		t.Fatalf("Apply error = %v", err)
	}

	if f.sender.count() != 1 {
		t.Fatalf("sends = %d, want 1", f.sender.count())
	}
	sent := f.sender.last()
	if !strings.HasPrefix(sent, testUser+"|") {
		t.Errorf("sent to %q", sent)
	}
	for _, want := range []string{"Your Quote is Ready", "₹1,84,000", "A Week with Santa", "20 Dec 2026", "26 Dec 2026"} {
		if !strings.Contains(sent, want) {
			t.Errorf("quote message missing %q", want)
		}
	}

	record, _ := f.records.Get(context.Background(), testUser)
	if record.QuotePrice != 184000 || record.QuoteReceivedAt == nil {
		t.Errorf("record quote = %v / %v", record.QuotePrice, record.QuoteReceivedAt)
	}
	if record.RequestIDs[0].Used != true {
		t.Error("ledger entry should be consumed")
	}

	state, _ := f.states.Get(context.Background(), testUser)
	if state.Stage != domain.StageCompleted {
		t.Errorf("stage = %s, want completed", state.Stage)
	}

	select {
	case <-f.notifier.done:
	case <-time.After(time.Second):
		t.Fatal("executive notification not fired")
	}
}

func TestApplyItemizedSumLaw(t *testing.T) {
	f := newFixture(t)
	f.seedAwaiting(t)

	d := delivery(999999)
	d.Quotes = []domain.VendorQuote{
		{VendorName: "Nordic Air", MarkupPrice: 52000},
		{VendorName: "Aurora Lodge", MarkupPrice: 61000},
		{VendorName: "Husky Tours", MarkupPrice: 8000},
	}

	if err := f.reconciler.Apply(context.Background(), d); err != nil {
		t.Fatalf("Apply error = %v", err)
	}

	record, _ := f.records.Get(context.Background(), testUser)
	if record.QuotePrice != 121000 {
		t.Errorf("price = %v, want markup sum 121000", record.QuotePrice)
	}
	if !strings.Contains(f.sender.last(), "₹1,21,000") {
		t.Errorf("message should carry the markup sum: %q", f.sender.last())
	}
}

func TestApplyUnknownRecipient(t *testing.T) {
	f := newFixture(t)
	// No record seeded.

	err := f.reconciler.Apply(context.Background(), delivery(50000))
	if apperrors.GetCode(err) != apperrors.CodeUnknownRecipient {
		t.Errorf("code = %s", apperrors.GetCode(err))
	}
	if !apperrors.IsDiscard(err) {
		t.Error("rejection must be discardable")
	}
	if f.sender.count() != 0 {
		t.Error("nothing may be sent on rejection")
	}
}

func TestApplyEmptyLedgerRejectedAsUnknown(t *testing.T) {
	f := newFixture(t)

	// The traveler exists but never finalized a submission.
	record := domain.NewBookingRecord(testUser, reconcileNow.Add(-time.Hour))
	record.SelectedPackage = "A Week with Santa"
	f.records.Save(context.Background(), record)
	state := domain.NewConversationState(testUser, reconcileNow.Add(-time.Hour))
	state.Stage = domain.StageAwaitingQuote
	f.states.Save(context.Background(), state)

	err := f.reconciler.Apply(context.Background(), delivery(50000))
	if apperrors.GetCode(err) != apperrors.CodeUnknownRecipient {
		t.Errorf("code = %s, want unknown recipient", apperrors.GetCode(err))
	}
	if !apperrors.IsDiscard(err) {
		t.Error("rejection must be discardable")
	}
	if f.sender.count() != 0 {
		t.Error("nothing may be sent on rejection")
	}
}

func TestApplyStaleOrUnmatched(t *testing.T) {
	f := newFixture(t)
	f.seedAwaiting(t)

	d := delivery(50000)
	d.RequestID = "REQ_someone_elses_id"

	err := f.reconciler.Apply(context.Background(), d)
	if apperrors.GetCode(err) != apperrors.CodeStaleOrUnmatched {
		t.Errorf("code = %s", apperrors.GetCode(err))
	}
	if f.sender.count() != 0 {
		t.Error("nothing may be sent on rejection")
	}

	// The real entry survives for the matching callback.
	record, _ := f.records.Get(context.Background(), testUser)
	if record.RequestIDs[0].Used {
		t.Error("mismatched callback must not consume the ledger entry")
	}
}

func TestApplyStateMismatchDoesNotBurnEntry(t *testing.T) {
	f := newFixture(t)
	f.seedAwaiting(t)

	state, _ := f.states.Get(context.Background(), testUser)
	state.Stage = domain.StageCollectName
	f.states.Save(context.Background(), state)

	err := f.reconciler.Apply(context.Background(), delivery(50000))
	if apperrors.GetCode(err) != apperrors.CodeStateMismatch {
		t.Errorf("code = %s", apperrors.GetCode(err))
	}

	record, _ := f.records.Get(context.Background(), testUser)
	if record.RequestIDs[0].Used {
		t.Error("state mismatch must not consume the ledger entry")
	}
}

func TestApplyIdempotentOnRedelivery(t *testing.T) {
	f := newFixture(t)
	f.seedAwaiting(t)

	if err := f.reconciler.Apply(context.Background(), delivery(184000)); err != nil {
		t.Fatalf("first Apply error = %v", err)
	}

	// The same callback delivered again: the conversation has completed
	// and the entry is used. Exactly one quote message ever goes out.
	err := f.reconciler.Apply(context.Background(), delivery(184000))
	if err == nil {
		t.Fatal("redelivery should be rejected")
	}
	if !apperrors.IsDiscard(err) {
		t.Errorf("redelivery rejection must be discardable: %v", err)
	}
	if f.sender.count() != 1 {
		t.Errorf("sends = %d, want exactly 1", f.sender.count())
	}
}

func TestApplySendFailureKeepsEntryConsumed(t *testing.T) {
	f := newFixture(t)
	f.seedAwaiting(t)
	f.sender.err = apperrors.TransportError("transport.SendText", context.DeadlineExceeded)

	err := f.reconciler.Apply(context.Background(), delivery(184000))
	if err == nil {
		t.Fatal("send failure should surface")
	}

	// The consumed entry was persisted before the send attempt, so a
	// retried callback cannot double-deliver.
	record, _ := f.records.Get(context.Background(), testUser)
	if !record.RequestIDs[0].Used {
		t.Error("entry must stay consumed after a failed send")
	}
	if record.QuotePrice != 184000 {
		t.Error("quote must be persisted before the send")
	}

	// The conversation stays in awaiting_quote; the executive follows up.
	state, _ := f.states.Get(context.Background(), testUser)
	if state.Stage != domain.StageAwaitingQuote {
		t.Errorf("stage = %s", state.Stage)
	}
	if f.notifier.count() != 0 {
		t.Error("no executive notification on failed delivery")
	}
}

func TestApplyDestinationFallsBackToCatalog(t *testing.T) {
	f := newFixture(t)
	f.seedAwaiting(t)

	d := delivery(90000)
	d.Destination = ""

	if err := f.reconciler.Apply(context.Background(), d); err != nil {
		t.Fatalf("Apply error = %v", err)
	}
	record, _ := f.records.Get(context.Background(), testUser)
	if record.QuoteDestination != "Lapland, Finland" {
		t.Errorf("destination = %q, want catalog fallback", record.QuoteDestination)
	}
}

func TestApplySecondSubmissionOnlyMatchingIDWins(t *testing.T) {
	f := newFixture(t)
	record := f.seedAwaiting(t)

	// The traveler finalized twice; two unused entries sit in the ledger.
	second := "REQ_1741598500000_345678_ef567890"
	record.AppendRequestID(second, reconcileNow.Add(-time.Minute))
	f.records.Save(context.Background(), record)

	d := delivery(70000)
	d.RequestID = second
	if err := f.reconciler.Apply(context.Background(), d); err != nil {
		t.Fatalf("Apply error = %v", err)
	}

	got, _ := f.records.Get(context.Background(), testUser)
	if got.RequestIDs[0].Used {
		t.Error("non-matching entry must stay unused")
	}
	if !got.RequestIDs[1].Used {
		t.Error("matching entry must be consumed")
	}
}
