package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

var (
	emailPattern  = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@(?:[A-Za-z0-9\-]+\.)+[A-Za-z]{2,}$`)
	digitsPattern = regexp.MustCompile(`^[0-9]+$`)
	expiryPattern = regexp.MustCompile(`^([0-9]{2})/([0-9]{2})$`)
	cvvPattern    = regexp.MustCompile(`^[0-9]{3,4}$`)
	zipPattern    = regexp.MustCompile(`^[0-9]{5}(?:-[0-9]{4})?$`)
)

// Field rule failures. The text is returned to clients as-is.
var (
	ErrFullNameLength       = lengthError(FullName, 2, 100)
	ErrEmailFormat          = errors.New("email must be a valid email address")
	ErrEmailLength          = fmt.Errorf("email must be at most %d characters", MaxEmailLength)
	ErrCardNumberDigits     = errors.New("cardNumber must contain only digits (spaces and dashes allowed)")
	ErrCardNumberLength     = errors.New("cardNumber must be between 13 and 19 digits")
	ErrCardExpiryFormat     = errors.New("cardExpiry must be in MM/YY format")
	ErrCardExpiryMonth      = errors.New("cardExpiry month must be between 01 and 12")
	ErrCardExpired          = errors.New("card has expired")
	ErrCardCVVFormat        = errors.New("cardCvv must be 3 or 4 digits")
	ErrBillingAddressLength = lengthError(BillingAddress, 5, 200)
	ErrCityLength           = lengthError(City, 2, 100)
	ErrStateLength          = lengthError(State, 2, 50)
	ErrZipCodeFormat        = errors.New("zipCode must be in 12345 or 12345-6789 format")
)

func lengthError(f Field, min, max int) error {
	return fmt.Errorf("%s must be between %d and %d characters", f.String(), min, max)
}

func runeLenBetween(value string, min, max int) bool {
	n := utf8.RuneCountInString(strings.TrimSpace(value))
	return n >= min && n <= max
}

// ValidateFullName checks the trimmed name is 2..100 characters.
func ValidateFullName(value string) error {
	if !runeLenBetween(value, 2, 100) {
		return ErrFullNameLength
	}
	return nil
}

// MaxEmailLength is the RFC 5321 path limit and the width of the email column.
const MaxEmailLength = 254

// ValidateEmail checks value looks like local@domain.tld with an ASCII
// local part and a TLD of at least two letters.
func ValidateEmail(value string) error {
	value = strings.TrimSpace(value)
	if len(value) > MaxEmailLength {
		return ErrEmailLength
	}
	if !emailPattern.MatchString(value) {
		return ErrEmailFormat
	}
	return nil
}

// ValidateCardNumber strips whitespace and dashes, then requires 13..19 digits.
func ValidateCardNumber(value string) error {
	digits := StripCardSeparators(value)
	if digits != "" && !digitsPattern.MatchString(digits) {
		return ErrCardNumberDigits
	}
	if len(digits) < 13 || len(digits) > 19 {
		return ErrCardNumberLength
	}
	return nil
}

// ValidateCardExpiry checks MM/YY and rejects cards whose expiry is strictly
// before now. Years are compared as two-digit values; the month only matters
// when the years are equal.
func ValidateCardExpiry(value string, now time.Time) error {
	m := expiryPattern.FindStringSubmatch(strings.TrimSpace(value))
	if m == nil {
		return ErrCardExpiryFormat
	}
	month, _ := strconv.Atoi(m[1])
	year, _ := strconv.Atoi(m[2])
	if month < 1 || month > 12 {
		return ErrCardExpiryMonth
	}

	currentYear := now.Year() % 100
	currentMonth := int(now.Month())
	if year < currentYear || (year == currentYear && month < currentMonth) {
		return ErrCardExpired
	}
	return nil
}

// ValidateCardCVV requires 3 or 4 digits.
func ValidateCardCVV(value string) error {
	if !cvvPattern.MatchString(strings.TrimSpace(value)) {
		return ErrCardCVVFormat
	}
	return nil
}

func ValidateBillingAddress(value string) error {
	if !runeLenBetween(value, 5, 200) {
		return ErrBillingAddressLength
	}
	return nil
}

func ValidateCity(value string) error {
	if !runeLenBetween(value, 2, 100) {
		return ErrCityLength
	}
	return nil
}

func ValidateState(value string) error {
	if !runeLenBetween(value, 2, 50) {
		return ErrStateLength
	}
	return nil
}

// ValidateZipCode accepts DDDDD or DDDDD-DDDD.
func ValidateZipCode(value string) error {
	if !zipPattern.MatchString(strings.TrimSpace(value)) {
		return ErrZipCodeFormat
	}
	return nil
}

// StripCardSeparators removes every whitespace rune and dash.
func StripCardSeparators(value string) string {
	return strings.Map(func(r rune) rune {
		if r == '-' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, value)
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
