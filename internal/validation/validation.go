// Package validation checks traveler answers collected during the booking
// flow. Each validator returns the parsed value plus an error whose message
// is suitable for re-prompting the user.
package validation

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/unravelhq/tripflow/internal/domain"
	apperrors "github.com/unravelhq/tripflow/internal/errors"
)

// Party size bounds for a single booking.
const (
	MinPartySize = 1
	MaxPartySize = 20
)

// MinNameLength is the minimum accepted full-name length after trimming.
const MinNameLength = 2

// dateRegex matches DD/MM/YYYY with 1-2 digit day and month.
var dateRegex = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)

// ValidateName checks a traveler's full name.
func ValidateName(input string) (string, error) {
	name := strings.TrimSpace(input)
	if len(name) < MinNameLength {
		return "", apperrors.ValidationFailed("Please provide a valid name (at least 2 characters).")
	}
	return name, nil
}

// ValidatePartySize parses and bounds the number of travelers.
func ValidatePartySize(input string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || n < MinPartySize || n > MaxPartySize {
		return 0, apperrors.ValidationFailed("Please provide a valid number of travelers (1-20).")
	}
	return n, nil
}

// ValidateTravelDate parses a DD/MM/YYYY date and bounds its components.
// Day and month are range-checked individually; the year must fall within
// [current year, current year + yearsAhead]. Month length is deliberately
// not enforced, so 31/02/2026 passes and normalizes downstream.
func ValidateTravelDate(input string, now time.Time, yearsAhead int) (domain.TravelDate, error) {
	reprompt := apperrors.ValidationFailed("Please provide the date in DD/MM/YYYY format (e.g., 25/12/2026).")

	m := dateRegex.FindStringSubmatch(strings.TrimSpace(input))
	if m == nil {
		return domain.TravelDate{}, reprompt
	}

	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])

	if day < 1 || day > 31 || month < 1 || month > 12 {
		return domain.TravelDate{}, reprompt
	}
	if year < now.Year() || year > now.Year()+yearsAhead {
		return domain.TravelDate{}, reprompt
	}

	return domain.TravelDate{Day: day, Month: month, Year: year}, nil
}

// NoRequirements is stored when the traveler has nothing to add.
const NoRequirements = "No special requirements"

// NormalizeRequirements cleans the free-text requirements answer. An empty
// answer is rejected; "none" in any casing maps to the canonical
// no-requirements sentence.
func NormalizeRequirements(input string) (string, error) {
	req := strings.TrimSpace(input)
	if req == "" {
		return "", apperrors.ValidationFailed("Please share any special requirements, or reply \"none\".")
	}
	if strings.EqualFold(req, "none") {
		return NoRequirements, nil
	}
	return req, nil
}
