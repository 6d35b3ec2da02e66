// Package reconcile matches asynchronous quote callbacks from the
// booking backend against the per-user request id ledger and delivers
// accepted quotes to travelers.
package reconcile

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/unravelhq/tripflow/internal/domain"
	apperrors "github.com/unravelhq/tripflow/internal/errors"
	"github.com/unravelhq/tripflow/internal/phone"
)

// flexFloat accepts a JSON number or a numeric string ("1,25,000" and
// "₹125000" both parse). Operator-facing systems are loose about types.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		s = strings.TrimPrefix(s, "₹")
		s = strings.ReplaceAll(s, ",", "")
		if s == "" {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid price string %q", s)
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

// RawVendorQuote is one vendor line as it arrives on the wire.
type RawVendorQuote struct {
	VendorName    string    `json:"vendor_name"`
	VendorType    string    `json:"vendor_type"`
	OriginalPrice flexFloat `json:"original_price"`
	MarkupPrice   flexFloat `json:"markup_price"`
	MarkupAmount  flexFloat `json:"markup_amount"`
	QuoteDetails  string    `json:"quote_details"`
}

// RawQuotePayload is the webhook body as sent by the backend. Different
// backend versions use different key names for the same fields; all
// variants are accepted.
type RawQuotePayload struct {
	RequestID        string `json:"request_id"`
	BookingRequestID string `json:"booking_request_id"`

	CustomerPhone  string `json:"customer_phone"`
	Phone          string `json:"phone"`
	WhatsappNumber string `json:"whatsapp_number"`

	Destination string `json:"destination"`

	TotalPrice    flexFloat `json:"total_price"`
	GrandTotal    flexFloat `json:"grand_total"`
	FinalPriceINR flexFloat `json:"final_price_inr"`
	GrandTotalINR flexFloat `json:"grand_total_inr"`

	Quotes []RawVendorQuote `json:"quotes"`
}

// requestID returns the first populated request id key.
func (p *RawQuotePayload) requestID() string {
	if p.RequestID != "" {
		return p.RequestID
	}
	return p.BookingRequestID
}

// rawPhone returns the first populated phone key.
func (p *RawQuotePayload) rawPhone() string {
	for _, candidate := range []string{p.CustomerPhone, p.Phone, p.WhatsappNumber} {
		if candidate != "" {
			return candidate
		}
	}
	return ""
}

// flatPrice returns the first populated flat-total key.
func (p *RawQuotePayload) flatPrice() float64 {
	for _, candidate := range []flexFloat{p.TotalPrice, p.GrandTotal, p.FinalPriceINR, p.GrandTotalINR} {
		if candidate != 0 {
			return float64(candidate)
		}
	}
	return 0
}

// Normalize validates the payload and converts it into a QuoteDelivery
// with a canonical phone number.
func (p *RawQuotePayload) Normalize() (*domain.QuoteDelivery, error) {
	requestID := p.requestID()
	if requestID == "" {
		return nil, apperrors.ValidationFailed("quote payload missing request id")
	}

	canonical := phone.Canonical(p.rawPhone())
	if canonical == "" {
		return nil, apperrors.ValidationFailed("quote payload missing customer phone")
	}

	delivery := &domain.QuoteDelivery{
		RequestID:     requestID,
		CustomerPhone: canonical,
		Destination:   strings.TrimSpace(p.Destination),
		TotalPrice:    p.flatPrice(),
	}

	for _, q := range p.Quotes {
		markup := float64(q.MarkupPrice)
		if markup == 0 && q.MarkupAmount != 0 {
			markup = float64(q.OriginalPrice) + float64(q.MarkupAmount)
		}
		delivery.Quotes = append(delivery.Quotes, domain.VendorQuote{
			VendorName:    strings.TrimSpace(q.VendorName),
			VendorType:    strings.TrimSpace(q.VendorType),
			OriginalPrice: float64(q.OriginalPrice),
			MarkupPrice:   markup,
			Details:       strings.TrimSpace(q.QuoteDetails),
		})
	}

	if delivery.TotalPrice == 0 && len(delivery.Quotes) == 0 {
		return nil, apperrors.ValidationFailed("quote payload carries no price")
	}

	return delivery, nil
}
