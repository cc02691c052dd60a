// Package tabular exports checkout records to flat files and imports them
// back, suppressing duplicates by (email, cardNumber).
package tabular

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"checkout-service/models"
	"checkout-service/validation"

	"github.com/spf13/cast"
)

const (
	columnID        = "id"
	columnTimestamp = "timestamp"

	// TimestampLayout is used for every exported timestamp so repeated
	// exports of the same rows are byte-identical.
	TimestampLayout = time.RFC3339Nano
)

// Header is the fixed header row of every export.
var Header = func() []string {
	h := []string{columnID}
	for _, f := range validation.Fields {
		h = append(h, f.String())
	}
	return append(h, columnTimestamp)
}()

// legacyColumns maps the snake_case header of earlier exports onto the
// current column names.
var legacyColumns = map[string]string{
	"full_name":       validation.FullName.String(),
	"card_number":     validation.CardNumber.String(),
	"card_expiry":     validation.CardExpiry.String(),
	"card_cvv":        validation.CardCVV.String(),
	"billing_address": validation.BillingAddress.String(),
	"zip_code":        validation.ZipCode.String(),
}

// Format selects the file encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts "csv" or "xlsx" (case-insensitive); blank means CSV.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return FormatCSV, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return FormatXLSX
	}
	return FormatCSV
}

// Extension returns the file extension including the dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// ErrFileNotFound is returned when the import file does not exist.
var ErrFileNotFound = errors.New("import file not found")

// MalformedFileError aborts an import whose header is unusable.
type MalformedFileError struct {
	Missing []string
	Reason  string
}

func (e *MalformedFileError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("malformed file: missing required columns: %s", strings.Join(e.Missing, ", "))
	}
	return "malformed file: " + e.Reason
}

// RowError is a per-row import failure. Row is 1-based over data rows.
type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string { return fmt.Sprintf("Row %d: %v", e.Row, e.Err) }

func (e *RowError) Unwrap() error { return e.Err }

func record(c models.Checkout) []string {
	return []string{
		strconv.FormatUint(uint64(c.ID), 10),
		c.FullName,
		c.Email,
		c.CardNumber,
		c.CardExpiry,
		c.CardCVV,
		c.BillingAddress,
		c.City,
		c.State,
		c.ZipCode,
		c.Timestamp.UTC().Format(TimestampLayout),
	}
}

// cardNumberCell returns the stored form of a card number cell. Spreadsheet
// tools hand long numbers back as floats ("4.111111111111111E+15"); those are
// coerced to their integer digits.
func cardNumberCell(raw string) string {
	s := validation.StripCardSeparators(raw)
	if s == "" || isDigits(s) {
		return s
	}
	if f, err := cast.ToFloat64E(s); err == nil && f >= 0 && f == math.Trunc(f) && !math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'f', 0, 64)
	}
	return s
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// parseTimestamp returns the zero time when the cell is blank or unparseable,
// leaving the store to assign one.
func parseTimestamp(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	if t, err := time.Parse(TimestampLayout, raw); err == nil {
		return t.UTC()
	}
	t, err := cast.ToTimeInDefaultLocationE(raw, time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
