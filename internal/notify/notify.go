// Package notify sends internal alerts to the travel executive when a
// booking is confirmed with a quote.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/unravelhq/tripflow/internal/domain"
)

// TextSender delivers the notification message. Satisfied by the
// transport connector.
type TextSender interface {
	SendText(ctx context.Context, to, text string) error
}

// notifyTimeout bounds a single notification attempt.
const notifyTimeout = 10 * time.Second

// Executive notifies the on-call travel executive about confirmed
// bookings. Notification is best effort; failures are logged and never
// propagated.
type Executive struct {
	sender   TextSender
	phone    string
	currency string
	logger   *zap.Logger
}

// NewExecutive creates an executive notifier.
func NewExecutive(sender TextSender, phone, currency string, logger *zap.Logger) *Executive {
	if currency == "" {
		currency = "₹"
	}
	return &Executive{
		sender:   sender,
		phone:    phone,
		currency: currency,
		logger:   logger,
	}
}

// Notify sends the booking alert. Safe to call from a goroutine.
func (e *Executive) Notify(ctx context.Context, record *domain.BookingRecord) {
	if e.phone == "" {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()

	if err := e.sender.SendText(ctx, e.phone, e.message(record)); err != nil {
		e.logger.Error("executive notification failed",
			zap.String("user_id", record.UserID),
			zap.Error(err),
		)
		return
	}
	e.logger.Info("executive notified",
		zap.String("user_id", record.UserID),
		zap.Float64("price", record.QuotePrice),
	)
}

func (e *Executive) message(record *domain.BookingRecord) string {
	var b strings.Builder
	b.WriteString("🔔 NEW BOOKING REQUEST\n\n")
	fmt.Fprintf(&b, "Customer: %s\n", record.Name)
	fmt.Fprintf(&b, "Phone: %s\n", record.UserID)
	fmt.Fprintf(&b, "Package: %s\n", record.SelectedPackage)
	if record.QuoteDestination != "" {
		fmt.Fprintf(&b, "Destination: %s\n", record.QuoteDestination)
	}
	fmt.Fprintf(&b, "Travelers: %d\n", record.PartySize)
	if !record.TravelDate.IsZero() {
		fmt.Fprintf(&b, "Travel date: %s\n", record.TravelDate)
	}
	fmt.Fprintf(&b, "Requirements: %s\n", record.Requirements)
	fmt.Fprintf(&b, "Quoted: %s%.0f\n", e.currency, record.QuotePrice)

	if len(record.VendorQuotes) > 0 {
		b.WriteString("\nVendor breakdown:\n")
		for _, q := range record.VendorQuotes {
			fmt.Fprintf(&b, "• %s (%s): %s%.0f → %s%.0f\n",
				q.VendorName, q.VendorType,
				e.currency, q.OriginalPrice,
				e.currency, q.MarkupPrice,
			)
		}
	}

	b.WriteString("\nPlease follow up with the customer for payment and confirmation.")
	return b.String()
}
