package services

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"checkout-service/models"
	aws_pkg "checkout-service/pkg/aws"
	"checkout-service/repository"
	"checkout-service/tabular"
	"checkout-service/validation"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ExportBaseName is the file name, without extension, of every export.
const ExportBaseName = "checkouts"

// CheckoutService defines the business logic interface.
type CheckoutService interface {
	SubmitCheckout(ctx context.Context, raw validation.RawFields) (*models.Checkout, error)
	ListCheckouts(ctx context.Context) ([]models.Checkout, error)
	ExportAll(ctx context.Context, format tabular.Format) (*models.ExportSummary, error)
	ImportAll(ctx context.Context, path string, opts tabular.ImportOptions) (*models.ImportReport, error)
	GetImportReport(ctx context.Context, id string) (*models.ImportReport, error)
}

// Settings holds the non-collaborator configuration of the service.
type Settings struct {
	ExportDir    string
	ExportBucket string
	SNSTopicArn  string
}

type checkoutServiceImpl struct {
	repo      repository.CheckoutRepository
	validator *validation.Validator
	exporter  *tabular.Exporter
	importer  *tabular.Importer
	snsClient aws_pkg.SNSPublisher
	uploader  aws_pkg.FileUploader
	reports   ImportReportStore
	settings  Settings
	logger    *zap.Logger
}

// NewCheckoutService wires the service. snsClient, uploader and reports may
// be nil, which disables events, the S3 export mirror and report retention.
func NewCheckoutService(
	repo repository.CheckoutRepository,
	validator *validation.Validator,
	snsClient aws_pkg.SNSPublisher,
	uploader aws_pkg.FileUploader,
	reports ImportReportStore,
	settings Settings,
	logger *zap.Logger,
) CheckoutService {
	if settings.ExportDir == "" {
		settings.ExportDir = "."
	}
	return &checkoutServiceImpl{
		repo:      repo,
		validator: validator,
		exporter:  tabular.NewExporter(repo),
		importer:  tabular.NewImporter(repo, logger),
		snsClient: snsClient,
		uploader:  uploader,
		reports:   reports,
		settings:  settings,
		logger:    logger,
	}
}

// SubmitCheckout validates a raw submission and persists it. Nothing is
// written when any field is invalid.
func (s *checkoutServiceImpl) SubmitCheckout(ctx context.Context, raw validation.RawFields) (*models.Checkout, error) {
	if messages := s.validator.Validate(raw); len(messages) > 0 {
		s.logger.Info("Checkout rejected", zap.Int("violations", len(messages)))
		return nil, &ValidationError{Messages: messages}
	}

	checkout := normalize(raw)
	if err := s.repo.Insert(ctx, checkout); err != nil {
		s.logger.Error("Failed to persist checkout", zap.Error(err))
		return nil, &StorageError{Op: "insert", Err: err}
	}

	s.logger.Info("Checkout created",
		zap.Uint("checkout_id", checkout.ID),
		zap.String("card_last4", checkout.CardLast4()),
	)

	s.publishEvent(ctx, models.CheckoutCreatedEvent{
		EventType:  "checkout_created",
		CheckoutID: checkout.ID,
		Email:      checkout.Email,
		CardLast4:  checkout.CardLast4(),
		Timestamp:  checkout.Timestamp,
	})

	return checkout, nil
}

func normalize(raw validation.RawFields) *models.Checkout {
	value := func(f validation.Field) string {
		v, _ := raw.String(f)
		return v
	}
	return &models.Checkout{
		FullName:       value(validation.FullName),
		Email:          validation.NormalizeEmail(value(validation.Email)),
		CardNumber:     validation.StripCardSeparators(value(validation.CardNumber)),
		CardExpiry:     value(validation.CardExpiry),
		CardCVV:        value(validation.CardCVV),
		BillingAddress: value(validation.BillingAddress),
		City:           value(validation.City),
		State:          value(validation.State),
		ZipCode:        value(validation.ZipCode),
	}
}

func (s *checkoutServiceImpl) ListCheckouts(ctx context.Context) ([]models.Checkout, error) {
	checkouts, err := s.repo.ListAll(ctx)
	if err != nil {
		s.logger.Error("Failed to list checkouts", zap.Error(err))
		return nil, &StorageError{Op: "list", Err: err}
	}
	return checkouts, nil
}

// ExportPath returns the file every export of the given format overwrites.
func (s *checkoutServiceImpl) ExportPath(format tabular.Format) string {
	return filepath.Join(s.settings.ExportDir, ExportBaseName+format.Extension())
}

// ExportAll snapshots the store into the export directory. A non-empty export
// is also mirrored to S3 when a bucket is configured; a failed upload is
// logged and leaves the local export in place.
func (s *checkoutServiceImpl) ExportAll(ctx context.Context, format tabular.Format) (*models.ExportSummary, error) {
	count, err := s.repo.Count(ctx)
	if err != nil {
		s.logger.Error("Failed to count checkouts", zap.Error(err))
		return nil, &StorageError{Op: "count", Err: err}
	}

	path := s.ExportPath(format)
	res, err := s.exporter.ExportAll(ctx, path)
	if err != nil {
		s.logger.Error("Export failed", zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("export checkouts: %w", err)
	}

	summary := &models.ExportSummary{
		FilePath:    res.Path,
		FileSize:    res.Size,
		RecordCount: res.Records,
	}
	s.logger.Info("Checkouts exported",
		zap.String("path", res.Path),
		zap.Int("records", res.Records),
		zap.Int64("bytes", res.Size),
	)

	if count > 0 {
		summary.S3Key = s.mirrorExport(ctx, res.Path, format)
	}
	return summary, nil
}

func (s *checkoutServiceImpl) mirrorExport(ctx context.Context, path string, format tabular.Format) string {
	if s.uploader == nil || s.settings.ExportBucket == "" {
		return ""
	}
	key := fmt.Sprintf("exports/%s/%s%s", time.Now().UTC().Format("20060102T150405Z"), ExportBaseName, format.Extension())
	contentType := "text/csv"
	if format == tabular.FormatXLSX {
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	if err := s.uploader.UploadFile(ctx, s.settings.ExportBucket, key, path, contentType); err != nil {
		s.logger.Warn("Failed to mirror export to S3", zap.String("bucket", s.settings.ExportBucket), zap.Error(err))
		return ""
	}
	return key
}

// ImportAll re-creates records from path, or from the default CSV export
// when path is blank. The finished report is retained when a report store is
// configured.
func (s *checkoutServiceImpl) ImportAll(ctx context.Context, path string, opts tabular.ImportOptions) (*models.ImportReport, error) {
	if strings.TrimSpace(path) == "" {
		path = s.ExportPath(tabular.FormatCSV)
	}

	report, err := s.importer.ImportAll(ctx, path, opts)
	if err != nil {
		s.logger.Warn("Import aborted", zap.String("path", path), zap.Error(err))
		return report, err
	}

	if s.reports != nil {
		report.ID = uuid.NewString()
		if err := s.reports.Save(ctx, report); err != nil {
			s.logger.Warn("Failed to retain import report", zap.Error(err))
			report.ID = ""
		}
	}
	return report, nil
}

func (s *checkoutServiceImpl) GetImportReport(ctx context.Context, id string) (*models.ImportReport, error) {
	if s.reports == nil {
		return nil, ErrReportNotFound
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrReportNotFound
	}
	return s.reports.Get(ctx, id)
}

// publishEvent marshals an event and publishes it to SNS (non-fatal on error).
func (s *checkoutServiceImpl) publishEvent(ctx context.Context, event interface{}) {
	if s.snsClient == nil || s.settings.SNSTopicArn == "" {
		return
	}
	b, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("Failed to marshal SNS event", zap.Error(err))
		return
	}
	if err := s.snsClient.Publish(ctx, s.settings.SNSTopicArn, b); err != nil {
		s.logger.Error("Failed to publish SNS event", zap.Error(err))
		return
	}
	s.logger.Debug("Published SNS event", zap.String("topic", s.settings.SNSTopicArn))
}
