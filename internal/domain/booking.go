// Package domain defines the core booking types shared across the
// conversation flow, quote reconciliation, and storage layers.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxRequestIDs bounds the per-user request id ledger. When a new id is
// appended to a full ledger, the oldest entry is evicted regardless of
// whether it was used.
const MaxRequestIDs = 10

// RequestIDEntry is one submission attempt recorded in the ledger.
// BackendID is the booking backend's own identifier for the submission,
// filled in once the backend acknowledges it.
type RequestIDEntry struct {
	ID        string    `json:"id"`
	BackendID string    `json:"backend_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Used      bool      `json:"used"`
}

// TravelDate is a calendar date as the traveler typed it (DD/MM/YYYY).
type TravelDate struct {
	Day   int `json:"day"`
	Month int `json:"month"`
	Year  int `json:"year"`
}

// IsZero reports whether no date has been collected.
func (d TravelDate) IsZero() bool {
	return d.Day == 0 && d.Month == 0 && d.Year == 0
}

// String formats the date as DD/MM/YYYY.
func (d TravelDate) String() string {
	return fmt.Sprintf("%02d/%02d/%04d", d.Day, d.Month, d.Year)
}

// Time converts the date to a time.Time at midnight UTC. Out-of-range
// components normalize per time.Date rules.
func (d TravelDate) Time() time.Time {
	return time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)
}

// ISO formats the date as YYYY-MM-DD for backend submission.
func (d TravelDate) ISO() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// VendorQuote is one vendor's line in an itemized quote callback.
type VendorQuote struct {
	VendorName    string  `json:"vendor_name"`
	VendorType    string  `json:"vendor_type"`
	OriginalPrice float64 `json:"original_price"`
	MarkupPrice   float64 `json:"markup_price"`
	Details       string  `json:"quote_details,omitempty"`
}

// BookingRecord is the durable per-user booking document. It accumulates
// collected answers, the request id ledger, and quote results.
type BookingRecord struct {
	UserID          string           `json:"user_id"`
	Name            string           `json:"name,omitempty"`
	PartySize       int              `json:"party_size,omitempty"`
	TravelDate      TravelDate       `json:"travel_date,omitempty"`
	Requirements    string           `json:"requirements,omitempty"`
	SelectedPackage string           `json:"selected_package,omitempty"`
	RequestIDs      []RequestIDEntry `json:"request_ids,omitempty"`

	QuotePrice       float64       `json:"quote_price,omitempty"`
	QuoteDestination string        `json:"quote_destination,omitempty"`
	VendorQuotes     []VendorQuote `json:"vendor_quotes,omitempty"`
	QuoteReceivedAt  *time.Time    `json:"quote_received_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewBookingRecord creates an empty record for a user.
func NewBookingRecord(userID string, now time.Time) *BookingRecord {
	return &BookingRecord{
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewRequestID builds a submission identifier carrying the submission
// instant and the tail of the user's phone number. A random component
// keeps ids from colliding when two submissions land in the same
// millisecond.
func NewRequestID(now time.Time, userID string) string {
	suffix := userID
	if len(suffix) > 6 {
		suffix = suffix[len(suffix)-6:]
	}
	rand := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("REQ_%d_%s_%s", now.UnixMilli(), suffix, rand)
}

// AppendRequestID records a new submission attempt, evicting the oldest
// entry if the ledger is full.
func (r *BookingRecord) AppendRequestID(id string, now time.Time) {
	r.RequestIDs = append(r.RequestIDs, RequestIDEntry{ID: id, CreatedAt: now})
	if len(r.RequestIDs) > MaxRequestIDs {
		r.RequestIDs = r.RequestIDs[len(r.RequestIDs)-MaxRequestIDs:]
	}
	r.UpdatedAt = now
}

// SetBackendID stores the backend's identifier on the ledger entry with
// the given local id.
func (r *BookingRecord) SetBackendID(id, backendID string) {
	for i := range r.RequestIDs {
		if r.RequestIDs[i].ID == id {
			r.RequestIDs[i].BackendID = backendID
			return
		}
	}
}

// ConsumeRequestID marks the ledger entry with the given id as used.
// It returns false when the id is absent or already used, so a given id
// can be consumed at most once.
func (r *BookingRecord) ConsumeRequestID(id string) bool {
	for i := range r.RequestIDs {
		if r.RequestIDs[i].ID == id && !r.RequestIDs[i].Used {
			r.RequestIDs[i].Used = true
			return true
		}
	}
	return false
}

// HasUnusedRequestID reports whether any submission is still awaiting a
// quote callback.
func (r *BookingRecord) HasUnusedRequestID() bool {
	for _, e := range r.RequestIDs {
		if !e.Used {
			return true
		}
	}
	return false
}

// ApplyQuote stores the reconciled quote result on the record.
func (r *BookingRecord) ApplyQuote(price float64, destination string, quotes []VendorQuote, now time.Time) {
	r.QuotePrice = price
	r.QuoteDestination = destination
	r.VendorQuotes = quotes
	t := now
	r.QuoteReceivedAt = &t
	r.UpdatedAt = now
}

// ResetCollection clears collected answers so the flow can restart. The
// request id ledger and quote history survive a reset.
func (r *BookingRecord) ResetCollection(now time.Time) {
	r.Name = ""
	r.PartySize = 0
	r.TravelDate = TravelDate{}
	r.Requirements = ""
	r.SelectedPackage = ""
	r.UpdatedAt = now
}
