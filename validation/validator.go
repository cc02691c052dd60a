// Package validation holds the checkout field rules and the validator that
// runs them over a raw submission.
package validation

import (
	"fmt"
	"strings"
	"time"
)

// Field identifies one checkout form field. The declaration order is the
// order in which validation messages are reported.
type Field int

const (
	FullName Field = iota
	Email
	CardNumber
	CardExpiry
	CardCVV
	BillingAddress
	City
	State
	ZipCode
)

var fieldNames = [...]string{
	FullName:       "fullName",
	Email:          "email",
	CardNumber:     "cardNumber",
	CardExpiry:     "cardExpiry",
	CardCVV:        "cardCvv",
	BillingAddress: "billingAddress",
	City:           "city",
	State:          "state",
	ZipCode:        "zipCode",
}

// Fields lists every checkout field in declaration order.
var Fields = []Field{FullName, Email, CardNumber, CardExpiry, CardCVV, BillingAddress, City, State, ZipCode}

// String returns the wire (JSON and tabular header) name of the field.
func (f Field) String() string {
	if f < 0 || int(f) >= len(fieldNames) {
		return fmt.Sprintf("Field(%d)", int(f))
	}
	return fieldNames[f]
}

// RawFields is a decoded JSON submission keyed by wire field name.
type RawFields map[string]any

// String returns the trimmed string value for f and whether it is present,
// a string and not blank.
func (r RawFields) String(f Field) (string, bool) {
	v, ok := r[f.String()]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

type rule func(value string, now time.Time) error

func ignoreClock(fn func(string) error) rule {
	return func(value string, _ time.Time) error { return fn(value) }
}

var rules = map[Field]rule{
	FullName:       ignoreClock(ValidateFullName),
	Email:          ignoreClock(ValidateEmail),
	CardNumber:     ignoreClock(ValidateCardNumber),
	CardExpiry:     ValidateCardExpiry,
	CardCVV:        ignoreClock(ValidateCardCVV),
	BillingAddress: ignoreClock(ValidateBillingAddress),
	City:           ignoreClock(ValidateCity),
	State:          ignoreClock(ValidateState),
	ZipCode:        ignoreClock(ValidateZipCode),
}

// RequiredMessage is reported for a field that is absent, not a string or blank.
func RequiredMessage(f Field) string {
	return f.String() + " is required"
}

// Validator runs every field rule over a submission.
type Validator struct {
	now func() time.Time
}

// Option configures a Validator.
type Option func(*Validator)

// WithClock overrides the time source used for the card expiry rule.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

// New returns a Validator using the wall clock unless overridden.
func New(opts ...Option) *Validator {
	v := &Validator{now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate returns every violation in field order; an empty slice means the
// submission is valid. A field failing the presence check gets a single
// "required" message and its format rule is not run.
func (v *Validator) Validate(raw RawFields) []string {
	values := make(map[Field]string, len(Fields))
	present := make(map[Field]bool, len(Fields))
	for _, f := range Fields {
		values[f], present[f] = raw.String(f)
	}

	now := v.now()
	messages := []string{}
	for _, f := range Fields {
		if !present[f] {
			messages = append(messages, RequiredMessage(f))
			continue
		}
		if err := rules[f](values[f], now); err != nil {
			messages = append(messages, err.Error())
		}
	}
	return messages
}
