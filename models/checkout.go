package models

import (
	"strings"
	"time"
)

// Checkout is the GORM model persisted in Postgres. Records are only ever
// created; there is no update path.
type Checkout struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	FullName       string    `gorm:"type:varchar(100);not null" json:"fullName"`
	Email          string    `gorm:"type:varchar(254);not null;index:idx_checkouts_dedup,priority:1" json:"email"`
	CardNumber     string    `gorm:"type:varchar(19);not null;index:idx_checkouts_dedup,priority:2" json:"cardNumber"`
	CardExpiry     string    `gorm:"type:varchar(5);not null" json:"cardExpiry"`
	CardCVV        string    `gorm:"column:card_cvv;type:varchar(4);not null" json:"cardCvv"`
	BillingAddress string    `gorm:"type:varchar(200);not null" json:"billingAddress"`
	City           string    `gorm:"type:varchar(100);not null" json:"city"`
	State          string    `gorm:"type:varchar(50);not null" json:"state"`
	ZipCode        string    `gorm:"type:varchar(10);not null" json:"zipCode"`
	Timestamp      time.Time `gorm:"not null" json:"timestamp"`
}

func (Checkout) TableName() string { return "checkouts" }

// CardLast4 returns the trailing four digits of the stored card number.
func (c *Checkout) CardLast4() string {
	if len(c.CardNumber) <= 4 {
		return c.CardNumber
	}
	return c.CardNumber[len(c.CardNumber)-4:]
}

// Masked returns a copy safe for listing: the card number keeps only its
// last four digits and the CVV is fully hidden.
func (c Checkout) Masked() Checkout {
	if n := len(c.CardNumber); n > 4 {
		c.CardNumber = strings.Repeat("*", n-4) + c.CardNumber[n-4:]
	}
	c.CardCVV = strings.Repeat("*", len(c.CardCVV))
	return c
}

// CheckoutCreatedEvent is published to SNS after a checkout is persisted.
// It never carries the full card number or the CVV.
type CheckoutCreatedEvent struct {
	EventType  string    `json:"event_type"`
	CheckoutID uint      `json:"checkout_id"`
	Email      string    `json:"email"`
	CardLast4  string    `json:"card_last4"`
	Timestamp  time.Time `json:"timestamp"`
}

// ImportRequest is the payload for POST /api/checkouts/import.
type ImportRequest struct {
	FilePath       string `json:"file_path"`
	SkipDuplicates *bool  `json:"skip_duplicates"`
}

// ImportReport summarises a bulk import. Errors holds one "Row N: ..." entry
// per rejected data row.
type ImportReport struct {
	ID       string   `json:"report_id,omitempty"`
	FilePath string   `json:"file_path"`
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors"`
}

// ExportSummary describes a finished export.
type ExportSummary struct {
	FilePath    string `json:"file_path"`
	FileSize    int64  `json:"file_size"`
	RecordCount int    `json:"record_count"`
	S3Key       string `json:"s3_key,omitempty"`
}
