package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"checkout-service/models"
	"checkout-service/services"
	"checkout-service/tabular"
	"checkout-service/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ---- mock repository ----

type mockCheckoutRepo struct {
	mu        sync.Mutex
	rows      []models.Checkout
	insertErr error
	listErr   error
	countErr  error
}

func (m *mockCheckoutRepo) Insert(_ context.Context, c *models.Checkout) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	c.ID = uint(len(m.rows) + 1)
	if c.Timestamp.IsZero() {
		c.Timestamp = time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)
	}
	m.rows = append(m.rows, *c)
	return nil
}

func (m *mockCheckoutRepo) ListAll(context.Context) ([]models.Checkout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return append([]models.Checkout(nil), m.rows...), nil
}

func (m *mockCheckoutRepo) FindByDedupKey(_ context.Context, email, card string) (*models.Checkout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].Email == email && m.rows[i].CardNumber == card {
			c := m.rows[i]
			return &c, nil
		}
	}
	return nil, nil
}

func (m *mockCheckoutRepo) Count(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.rows)), m.countErr
}

// ---- mock SNS publisher ----

type mockSNS struct {
	publishErr error
	topic      string
	messages   [][]byte
}

func (m *mockSNS) Publish(_ context.Context, topicArn string, message []byte) error {
	m.topic = topicArn
	m.messages = append(m.messages, message)
	return m.publishErr
}

// ---- mock uploader ----

type mockUploader struct {
	err    error
	bucket string
	key    string
	calls  int
}

func (m *mockUploader) UploadFile(_ context.Context, bucket, key, _, _ string) error {
	m.calls++
	m.bucket, m.key = bucket, key
	return m.err
}

// ---- mock report store ----

type mockReports struct {
	saved   map[string]*models.ImportReport
	saveErr error
}

func (m *mockReports) Save(_ context.Context, r *models.ImportReport) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	if m.saved == nil {
		m.saved = map[string]*models.ImportReport{}
	}
	m.saved[r.ID] = r
	return nil
}

func (m *mockReports) Get(_ context.Context, id string) (*models.ImportReport, error) {
	if r, ok := m.saved[id]; ok {
		return r, nil
	}
	return nil, services.ErrReportNotFound
}

// ---- helpers ----

func fixedValidator() *validation.Validator {
	return validation.New(validation.WithClock(func() time.Time {
		return time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	}))
}

func validRaw() validation.RawFields {
	return validation.RawFields{
		"fullName":       "Jo",
		"email":          "a@b.co",
		"cardNumber":     "4111 1111 1111 1111",
		"cardExpiry":     "12/30",
		"cardCvv":        "123",
		"billingAddress": "1 Main St",
		"city":           "NY",
		"state":          "NY",
		"zipCode":        "10001",
	}
}

type deps struct {
	repo     *mockCheckoutRepo
	sns      *mockSNS
	uploader *mockUploader
	reports  *mockReports
}

func newService(t *testing.T, settings services.Settings) (services.CheckoutService, *deps) {
	t.Helper()
	d := &deps{
		repo:     &mockCheckoutRepo{},
		sns:      &mockSNS{},
		uploader: &mockUploader{},
		reports:  &mockReports{},
	}
	if settings.ExportDir == "" {
		settings.ExportDir = t.TempDir()
	}
	svc := services.NewCheckoutService(d.repo, fixedValidator(), d.sns, d.uploader, d.reports, settings, zap.NewNop())
	return svc, d
}

// ---- tests ----

func TestSubmitCheckout_Success(t *testing.T) {
	svc, d := newService(t, services.Settings{SNSTopicArn: "arn:aws:sns:us-east-1:000000000000:checkout-events"})

	checkout, err := svc.SubmitCheckout(context.Background(), validRaw())
	require.NoError(t, err)
	assert.Equal(t, uint(1), checkout.ID)
	assert.Equal(t, "4111111111111111", checkout.CardNumber)
	assert.False(t, checkout.Timestamp.IsZero())
	require.Len(t, d.repo.rows, 1)
	assert.Equal(t, "4111111111111111", d.repo.rows[0].CardNumber)

	require.Len(t, d.sns.messages, 1)
	var evt models.CheckoutCreatedEvent
	require.NoError(t, json.Unmarshal(d.sns.messages[0], &evt))
	assert.Equal(t, "checkout_created", evt.EventType)
	assert.Equal(t, "1111", evt.CardLast4)
	assert.NotContains(t, string(d.sns.messages[0]), "4111111111111111")
	assert.NotContains(t, string(d.sns.messages[0]), `"123"`)
}

func TestSubmitCheckout_NormalizesEmail(t *testing.T) {
	svc, _ := newService(t, services.Settings{})

	raw := validRaw()
	raw["email"] = "  Jo.Smith@Example.COM "
	raw["cardNumber"] = "4111-1111-1111-1111"

	checkout, err := svc.SubmitCheckout(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "jo.smith@example.com", checkout.Email)
	assert.Equal(t, "4111111111111111", checkout.CardNumber)
}

func TestSubmitCheckout_InvalidZipNotPersisted(t *testing.T) {
	svc, d := newService(t, services.Settings{})

	raw := validRaw()
	raw["zipCode"] = "ABCDE"

	_, err := svc.SubmitCheckout(context.Background(), raw)

	var vErr *services.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Messages, validation.ErrZipCodeFormat.Error())
	assert.Empty(t, d.repo.rows)
	assert.Empty(t, d.sns.messages)
}

func TestSubmitCheckout_MissingFieldsAllReported(t *testing.T) {
	svc, d := newService(t, services.Settings{})

	_, err := svc.SubmitCheckout(context.Background(), validation.RawFields{"fullName": "Jo"})

	var vErr *services.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Len(t, vErr.Messages, 8)
	assert.Equal(t, "email is required", vErr.Messages[0])
	assert.Empty(t, d.repo.rows)
}

func TestSubmitCheckout_StorageError(t *testing.T) {
	svc, d := newService(t, services.Settings{SNSTopicArn: "arn"})
	d.repo.insertErr = errors.New("connection reset")

	_, err := svc.SubmitCheckout(context.Background(), validRaw())

	var sErr *services.StorageError
	require.ErrorAs(t, err, &sErr)
	assert.Equal(t, "insert", sErr.Op)
	assert.ErrorContains(t, err, "connection reset")
	assert.Empty(t, d.sns.messages)
}

func TestSubmitCheckout_PublishFailureIsNonFatal(t *testing.T) {
	svc, d := newService(t, services.Settings{SNSTopicArn: "arn"})
	d.sns.publishErr = errors.New("sns down")

	checkout, err := svc.SubmitCheckout(context.Background(), validRaw())
	assert.NoError(t, err)
	assert.NotNil(t, checkout)
}

func TestSubmitCheckout_NoTopicSkipsPublish(t *testing.T) {
	svc, d := newService(t, services.Settings{})

	_, err := svc.SubmitCheckout(context.Background(), validRaw())
	require.NoError(t, err)
	assert.Empty(t, d.sns.messages)
}

func TestListCheckouts(t *testing.T) {
	svc, d := newService(t, services.Settings{})
	_, err := svc.SubmitCheckout(context.Background(), validRaw())
	require.NoError(t, err)

	list, err := svc.ListCheckouts(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 1)

	d.repo.listErr = errors.New("db down")
	_, err = svc.ListCheckouts(context.Background())
	var sErr *services.StorageError
	assert.ErrorAs(t, err, &sErr)
}

func TestExportAll_EmptyStore(t *testing.T) {
	dir := t.TempDir()
	svc, d := newService(t, services.Settings{ExportDir: dir, ExportBucket: "exports"})

	summary, err := svc.ExportAll(context.Background(), tabular.FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "checkouts.csv"), summary.FilePath)
	assert.Equal(t, 0, summary.RecordCount)
	assert.Empty(t, summary.S3Key)
	assert.Equal(t, 0, d.uploader.calls)

	data, err := os.ReadFile(summary.FilePath)
	require.NoError(t, err)
	assert.EqualValues(t, len(data), summary.FileSize)
}

func TestExportAll_MirrorsToS3(t *testing.T) {
	svc, d := newService(t, services.Settings{ExportBucket: "exports"})
	_, err := svc.SubmitCheckout(context.Background(), validRaw())
	require.NoError(t, err)

	summary, err := svc.ExportAll(context.Background(), tabular.FormatXLSX)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.RecordCount)
	assert.Equal(t, ".xlsx", filepath.Ext(summary.FilePath))
	assert.Equal(t, "exports", d.uploader.bucket)
	assert.Equal(t, d.uploader.key, summary.S3Key)
	assert.Contains(t, summary.S3Key, "exports/")
}

func TestExportAll_UploadFailureKeepsLocalExport(t *testing.T) {
	svc, d := newService(t, services.Settings{ExportBucket: "exports"})
	d.uploader.err = errors.New("access denied")
	_, err := svc.SubmitCheckout(context.Background(), validRaw())
	require.NoError(t, err)

	summary, err := svc.ExportAll(context.Background(), tabular.FormatCSV)
	require.NoError(t, err)
	assert.Empty(t, summary.S3Key)
	_, statErr := os.Stat(summary.FilePath)
	assert.NoError(t, statErr)
}

func TestExportAll_CountError(t *testing.T) {
	svc, d := newService(t, services.Settings{})
	d.repo.countErr = errors.New("timeout")

	_, err := svc.ExportAll(context.Background(), tabular.FormatCSV)
	var sErr *services.StorageError
	assert.ErrorAs(t, err, &sErr)
}

func TestExportThenImport_SameStoreSkipsAll(t *testing.T) {
	svc, d := newService(t, services.Settings{})
	for _, email := range []string{"a@b.co", "c@d.co", "e@f.co"} {
		raw := validRaw()
		raw["email"] = email
		_, err := svc.SubmitCheckout(context.Background(), raw)
		require.NoError(t, err)
	}
	_, err := svc.ExportAll(context.Background(), tabular.FormatCSV)
	require.NoError(t, err)

	report, err := svc.ImportAll(context.Background(), "", tabular.ImportOptions{SkipDuplicates: true})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Imported)
	assert.Equal(t, 3, report.Skipped)
	assert.Empty(t, report.Errors)
	assert.Len(t, d.repo.rows, 3)
}

func TestImportAll_DuplicateRowSkipped(t *testing.T) {
	svc, _ := newService(t, services.Settings{})
	_, err := svc.SubmitCheckout(context.Background(), validRaw())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "one.csv")
	content := "id,fullName,email,cardNumber,cardExpiry,cardCvv,billingAddress,city,state,zipCode,timestamp\n" +
		"42,Jo,a@b.co,4111111111111111,12/30,123,1 Main St,NY,NY,10001,2025-01-01T00:00:00Z\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	report, err := svc.ImportAll(context.Background(), path, tabular.ImportOptions{SkipDuplicates: true})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, report.Imported)
}

func TestImportAll_RetainsReport(t *testing.T) {
	svc, d := newService(t, services.Settings{})
	_, err := svc.ExportAll(context.Background(), tabular.FormatCSV)
	require.NoError(t, err)

	report, err := svc.ImportAll(context.Background(), "", tabular.ImportOptions{SkipDuplicates: true})
	require.NoError(t, err)
	require.NotEmpty(t, report.ID)
	assert.Contains(t, d.reports.saved, report.ID)

	got, err := svc.GetImportReport(context.Background(), report.ID)
	require.NoError(t, err)
	assert.Equal(t, report, got)
}

func TestImportAll_ReportSaveFailureIsNonFatal(t *testing.T) {
	svc, d := newService(t, services.Settings{})
	d.reports.saveErr = errors.New("redis down")
	_, err := svc.ExportAll(context.Background(), tabular.FormatCSV)
	require.NoError(t, err)

	report, err := svc.ImportAll(context.Background(), "", tabular.ImportOptions{})
	require.NoError(t, err)
	assert.Empty(t, report.ID)
}

func TestImportAll_InterruptedReturnsPartialReport(t *testing.T) {
	svc, d := newService(t, services.Settings{})
	_, err := svc.SubmitCheckout(context.Background(), validRaw())
	require.NoError(t, err)
	_, err = svc.ExportAll(context.Background(), tabular.FormatCSV)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := svc.ImportAll(ctx, "", tabular.ImportOptions{SkipDuplicates: true})
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Empty(t, report.ID)
	assert.Empty(t, d.reports.saved)
}

func TestImportAll_MissingFile(t *testing.T) {
	svc, _ := newService(t, services.Settings{})

	_, err := svc.ImportAll(context.Background(), "", tabular.ImportOptions{})
	assert.ErrorIs(t, err, tabular.ErrFileNotFound)
}

func TestGetImportReport_NotFound(t *testing.T) {
	svc, _ := newService(t, services.Settings{})

	_, err := svc.GetImportReport(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, services.ErrReportNotFound)

	_, err = svc.GetImportReport(context.Background(), "6f1c1f9e-2b1a-4a8e-9a43-0d3b8e6f2c11")
	assert.ErrorIs(t, err, services.ErrReportNotFound)
}

func TestGetImportReport_NoStore(t *testing.T) {
	svc := services.NewCheckoutService(&mockCheckoutRepo{}, fixedValidator(), nil, nil, nil, services.Settings{ExportDir: t.TempDir()}, zap.NewNop())

	_, err := svc.GetImportReport(context.Background(), "6f1c1f9e-2b1a-4a8e-9a43-0d3b8e6f2c11")
	assert.ErrorIs(t, err, services.ErrReportNotFound)
}
