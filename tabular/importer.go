package tabular

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"checkout-service/models"
	"checkout-service/validation"

	"go.uber.org/zap"
)

// ImportStore is the part of the record store used by imports.
type ImportStore interface {
	FindByDedupKey(ctx context.Context, email, cardNumber string) (*models.Checkout, error)
	Insert(ctx context.Context, checkout *models.Checkout) error
}

// ImportOptions controls duplicate handling.
type ImportOptions struct {
	// SkipDuplicates skips rows whose (email, cardNumber) already exists.
	SkipDuplicates bool
}

// Importer re-creates records from a tabular file, one row at a time.
type Importer struct {
	store  ImportStore
	logger *zap.Logger
}

func NewImporter(store ImportStore, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{store: store, logger: logger}
}

type columnIndex map[string]int

func indexHeader(header []string) (columnIndex, error) {
	idx := make(columnIndex, len(header))
	for i, h := range header {
		name := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if canonical, ok := legacyColumns[strings.ToLower(name)]; ok {
			name = canonical
		}
		if _, dup := idx[name]; !dup {
			idx[name] = i
		}
	}

	var missing []string
	for _, f := range validation.Fields {
		if _, ok := idx[f.String()]; !ok {
			missing = append(missing, f.String())
		}
	}
	if len(missing) > 0 {
		return nil, &MalformedFileError{Missing: missing}
	}
	return idx, nil
}

// ImportAll reads path and inserts each row as a new record. It fails as a
// whole only when the file is missing or its header lacks required columns;
// every other failure is reported per row and the remaining rows still run.
// Rows are not re-validated against the field rules, but email and card
// number are normalized into their stored form.
func (im *Importer) ImportAll(ctx context.Context, path string, opts ImportOptions) (*models.ImportReport, error) {
	src, err := openSource(path)
	if err != nil {
		return nil, err
	}
	defer src.Close() //nolint:errcheck

	header, err := src.Header()
	if err != nil {
		return nil, err
	}
	idx, err := indexHeader(header)
	if err != nil {
		return nil, err
	}

	report := &models.ImportReport{FilePath: path, Errors: []string{}}
	row := 0
	for {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("import interrupted after %d rows: %w", row, err)
		}

		cells, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		row++

		var rowErr *RowError
		if errors.As(err, &rowErr) {
			report.Errors = append(report.Errors, rowErr.Error())
			continue
		}
		if err != nil {
			return report, fmt.Errorf("read import file: %w", err)
		}
		if blankRow(cells) {
			continue
		}

		if err := im.importRow(ctx, idx, len(header), cells, opts, report); err != nil {
			report.Errors = append(report.Errors, (&RowError{Row: row, Err: err}).Error())
		}
	}

	im.logger.Info("Checkout import finished",
		zap.String("path", path),
		zap.Int("imported", report.Imported),
		zap.Int("skipped", report.Skipped),
		zap.Int("errors", len(report.Errors)),
	)
	return report, nil
}

func (im *Importer) importRow(ctx context.Context, idx columnIndex, width int, cells []string, opts ImportOptions, report *models.ImportReport) error {
	if len(cells) != width {
		return fmt.Errorf("expected %d columns, got %d", width, len(cells))
	}

	values := make(map[validation.Field]string, len(validation.Fields))
	for _, f := range validation.Fields {
		v := strings.TrimSpace(cells[idx[f.String()]])
		if v == "" {
			return fmt.Errorf("missing value for column %s", f)
		}
		values[f] = v
	}

	checkout := &models.Checkout{
		FullName:       values[validation.FullName],
		Email:          validation.NormalizeEmail(values[validation.Email]),
		CardNumber:     cardNumberCell(values[validation.CardNumber]),
		CardExpiry:     values[validation.CardExpiry],
		CardCVV:        values[validation.CardCVV],
		BillingAddress: values[validation.BillingAddress],
		City:           values[validation.City],
		State:          values[validation.State],
		ZipCode:        values[validation.ZipCode],
	}
	if i, ok := idx[columnTimestamp]; ok {
		checkout.Timestamp = parseTimestamp(cells[i])
	}

	if opts.SkipDuplicates {
		existing, err := im.store.FindByDedupKey(ctx, checkout.Email, checkout.CardNumber)
		if err != nil {
			return fmt.Errorf("duplicate lookup failed: %w", err)
		}
		if existing != nil {
			report.Skipped++
			return nil
		}
	}

	if err := im.store.Insert(ctx, checkout); err != nil {
		return fmt.Errorf("insert failed: %w", err)
	}
	report.Imported++
	return nil
}

func blankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
