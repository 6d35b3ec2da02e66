package flow

import (
	"fmt"
	"strings"

	"github.com/unravelhq/tripflow/internal/catalog"
	"github.com/unravelhq/tripflow/internal/domain"
)

// Reply keywords the flow recognizes.
var (
	greetingPhrases    = []string{"hello", "hi", "hey", "good morning", "good afternoon", "good evening"}
	readyPhrases       = []string{"ready for this package", "ready", "book now"}
	affirmativePhrases = []string{"finalize", "yes", "confirm"}
	negativePhrases    = []string{"no", "cancel"}
	resetPhrases       = []string{"reset", "restart"}
)

func matchesAny(text string, phrases []string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, p := range phrases {
		if lower == p {
			return true
		}
	}
	return false
}

// isGreeting reports whether a first-contact message is a salutation
// rather than a destination pick. Empty messages count as greetings.
func isGreeting(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return true
	}
	for _, p := range greetingPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func greetingMessage(packages []catalog.Package) string {
	var b strings.Builder
	b.WriteString("Hello! Welcome to Unravel Experience ✈️\n\n")
	b.WriteString("We craft magical festive getaways. Here are our packages this season:\n\n")
	for _, p := range packages {
		fmt.Fprintf(&b, "🎄 *%s* — %s (%s)\n", p.Name, p.Destination, p.DurationLabel())
	}
	b.WriteString("\nWhich destination catches your eye? Just mention it by name (e.g., \"London\" or \"Santa\").")
	return b.String()
}

func destinationRepromptMessage(packages []catalog.Package) string {
	var b strings.Builder
	b.WriteString("I didn't catch a destination there. We currently offer:\n\n")
	for _, p := range packages {
		fmt.Fprintf(&b, "🎄 *%s* — %s (%s)\n", p.Name, p.Destination, p.DurationLabel())
	}
	b.WriteString("\nReply with a destination like \"Paris\" or \"New York\" to see the details.")
	return b.String()
}

func packageOverviewMessage(p *catalog.Package) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Great! I'd be happy to help you book *%s* 🎁\n\n", p.Name)
	fmt.Fprintf(&b, "📍 Destination: %s\n", p.Destination)
	fmt.Fprintf(&b, "🗓 Duration: %s\n", p.DurationLabel())
	if p.BestFor != "" {
		fmt.Fprintf(&b, "✨ Best for: %s\n", p.BestFor)
	}
	if len(p.Highlights) > 0 {
		b.WriteString("\nHighlights:\n")
		for _, h := range p.Highlights {
			fmt.Fprintf(&b, "• %s\n", h)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func brochureFollowupMessage(p *catalog.Package) string {
	return fmt.Sprintf(
		"If you have any questions about *%s*, just ask!\n\nIf you're ready to proceed with booking, please reply \"ready for this package\".",
		p.Name,
	)
}

func readyNudgeMessage(p *catalog.Package) string {
	return fmt.Sprintf(
		"Whenever you'd like to go ahead with *%s*, please reply \"ready for this package\". Questions are welcome too!",
		p.Name,
	)
}

const namePromptMessage = "Wonderful! Let's get your booking started 🎉\n\nPlease provide your full name."

const partySizePromptMessage = "Thanks! How many travelers will be joining this trip? (1-20)"

const travelDatePromptMessage = "What's your preferred travel date? Please use DD/MM/YYYY (e.g., 25/12/2026)."

const requirementsPromptMessage = "Any special requirements or preferences? (dietary needs, accessibility, celebrations...)\n\nReply \"none\" if there aren't any."

func summaryMessage(record *domain.BookingRecord) string {
	var b strings.Builder
	b.WriteString("*Booking Summary*\n\n")
	fmt.Fprintf(&b, "👤 Name: %s\n", record.Name)
	fmt.Fprintf(&b, "🧳 Package: %s\n", record.SelectedPackage)
	fmt.Fprintf(&b, "👥 Travelers: %d\n", record.PartySize)
	fmt.Fprintf(&b, "🗓 Travel date: %s\n", record.TravelDate)
	fmt.Fprintf(&b, "📝 Requirements: %s\n", record.Requirements)
	b.WriteString("\nAll details collected! Reply with \"finalize\" to submit your booking request, or \"no\" to start over.")
	return b.String()
}

const submittedMessage = "Perfect! Your booking request has been submitted 🎊\n\nOur team is preparing your personalized quote. You'll receive it right here, usually within a few hours."

const awaitingQuoteMessage = "Your quote is being prepared — hang tight! We'll send it here the moment it's ready. 🎁"

func completedMessage() string {
	return "Thank you for booking with Unravel Experience! 🌟\n\nOur travel executive will be in touch shortly to arrange payment and final details.\n\nPlanning another trip? Reply \"reset\" to start again."
}

func cancelledMessage(packages []catalog.Package) string {
	return "No problem, let's start fresh!\n\n" + greetingMessage(packages)
}

func systemUnavailableMessage(supportPhone, supportEmail string) string {
	return fmt.Sprintf(
		"⚠️ SYSTEM UNAVAILABLE\n\nWe couldn't submit your booking right now. Please try again in a few minutes, or reach us directly:\n\n📞 %s\n📧 %s",
		supportPhone, supportEmail,
	)
}

func backendRejectionMessage(fields []string) string {
	if len(fields) == 0 {
		return "Hmm, the booking system rejected the request. Could you reply \"finalize\" to try once more?"
	}
	return fmt.Sprintf(
		"The booking system flagged some details (%s). Let's fix them — reply \"reset\" to re-enter your details.",
		strings.Join(fields, ", "),
	)
}

const answerFallbackMessage = "That's a great question! Our travel expert will get back to you on that shortly. Meanwhile, feel free to continue with your booking."

// QuoteMessage renders the traveler-facing quote, including the travel
// window computed from the package duration. Used by quote reconciliation.
func QuoteMessage(record *domain.BookingRecord, pkg *catalog.Package, price float64, currencySymbol string) string {
	var b strings.Builder
	b.WriteString("🎉 *Your Quote is Ready!*\n\n")
	fmt.Fprintf(&b, "🧳 Package: %s\n", record.SelectedPackage)
	if record.QuoteDestination != "" {
		fmt.Fprintf(&b, "📍 Destination: %s\n", record.QuoteDestination)
	}
	fmt.Fprintf(&b, "👥 Travelers: %d\n", record.PartySize)
	if pkg != nil && !record.TravelDate.IsZero() {
		start := record.TravelDate.Time()
		end := pkg.EndDate(start)
		fmt.Fprintf(&b, "🗓 Travel window: %s – %s (%s)\n",
			start.Format("02 Jan 2006"), end.Format("02 Jan 2006"), pkg.DurationLabel())
	} else if !record.TravelDate.IsZero() {
		fmt.Fprintf(&b, "🗓 Travel date: %s\n", record.TravelDate)
	}
	fmt.Fprintf(&b, "\n💰 *Total: %s%s*\n", currencySymbol, formatAmount(price))
	b.WriteString("\nOur travel executive will contact you shortly to confirm and arrange payment. Thank you for choosing Unravel Experience! ✨")
	return b.String()
}

// formatAmount renders a price with thousands separators in the Indian
// grouping style (12,34,567).
func formatAmount(amount float64) string {
	whole := fmt.Sprintf("%.0f", amount)
	neg := strings.HasPrefix(whole, "-")
	if neg {
		whole = whole[1:]
	}
	if len(whole) > 3 {
		head := whole[:len(whole)-3]
		tail := whole[len(whole)-3:]
		var groups []string
		for len(head) > 2 {
			groups = append([]string{head[len(head)-2:]}, groups...)
			head = head[:len(head)-2]
		}
		if head != "" {
			groups = append([]string{head}, groups...)
		}
		whole = strings.Join(groups, ",") + "," + tail
	}
	if neg {
		whole = "-" + whole
	}
	return whole
}
