package controllers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"checkout-service/apperrors"
	"checkout-service/models"
	"checkout-service/services"
	"checkout-service/tabular"
	"checkout-service/validation"

	"github.com/gin-gonic/gin"
)

// CheckoutController handles HTTP requests for checkout operations.
type CheckoutController struct {
	checkoutService services.CheckoutService
}

// NewCheckoutController creates a new CheckoutController.
func NewCheckoutController(svc services.CheckoutService) *CheckoutController {
	return &CheckoutController{checkoutService: svc}
}

// MaxBodyBytes caps JSON request bodies.
const MaxBodyBytes = 1 << 20

var (
	errContentType  = apperrors.New(http.StatusBadRequest, "Content-Type must be application/json", nil)
	errInvalidJSON  = apperrors.New(http.StatusBadRequest, "Invalid JSON payload", nil)
	errBodyTooLarge = apperrors.New(http.StatusRequestEntityTooLarge, "Request body too large", nil)
	errTrailingData = errors.New("unexpected data after JSON value")
)

// decodeJSON decodes exactly one JSON value from body into v.
func decodeJSON(body io.Reader, v any) error {
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errTrailingData
	}
	return nil
}

// decodeObject reads a JSON object body. Arrays, scalars and null are
// rejected.
func decodeObject(body io.Reader) (map[string]any, error) {
	var obj map[string]any
	if err := decodeJSON(body, &obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errors.New("body is null")
	}
	return obj, nil
}

func abortDecode(ctx *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		apperrors.Abort(ctx, errBodyTooLarge)
		return
	}
	apperrors.Abort(ctx, errInvalidJSON)
}

// SubmitCheckout handles POST /api/checkout
func (cc *CheckoutController) SubmitCheckout(ctx *gin.Context) {
	if ctx.ContentType() != gin.MIMEJSON {
		apperrors.Abort(ctx, errContentType)
		return
	}
	raw, err := decodeObject(http.MaxBytesReader(ctx.Writer, ctx.Request.Body, MaxBodyBytes))
	if err != nil {
		abortDecode(ctx, err)
		return
	}

	checkout, err := cc.checkoutService.SubmitCheckout(ctx.Request.Context(), validation.RawFields(raw))
	var vErr *services.ValidationError
	switch {
	case errors.As(err, &vErr):
		ctx.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Validation failed",
			"errors":  vErr.Messages,
		})
		return
	case err != nil:
		_ = ctx.Error(apperrors.New(http.StatusInternalServerError, "Failed to save checkout", err).
			WithDetail("The checkout could not be stored. Please try again."))
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"success": true, "checkout": checkout})
}

// ListCheckouts handles GET /api/checkouts. Card numbers and CVVs are masked.
func (cc *CheckoutController) ListCheckouts(ctx *gin.Context) {
	checkouts, err := cc.checkoutService.ListCheckouts(ctx.Request.Context())
	if err != nil {
		_ = ctx.Error(apperrors.New(http.StatusInternalServerError, "Failed to list checkouts", err))
		return
	}
	masked := make([]models.Checkout, len(checkouts))
	for i, c := range checkouts {
		masked[i] = c.Masked()
	}
	ctx.JSON(http.StatusOK, gin.H{"success": true, "count": len(masked), "checkouts": masked})
}

// ExportCheckouts handles POST /api/checkouts/export?format=csv|xlsx
func (cc *CheckoutController) ExportCheckouts(ctx *gin.Context) {
	format, err := tabular.ParseFormat(ctx.Query("format"))
	if err != nil {
		apperrors.Abort(ctx, apperrors.ErrBadRequest.WithDetail(err.Error()))
		return
	}

	summary, err := cc.checkoutService.ExportAll(ctx.Request.Context(), format)
	if err != nil {
		_ = ctx.Error(apperrors.New(http.StatusInternalServerError, "Failed to export checkouts", err))
		return
	}

	resp := gin.H{
		"success":      true,
		"file_path":    summary.FilePath,
		"file_size":    summary.FileSize,
		"record_count": summary.RecordCount,
	}
	if summary.S3Key != "" {
		resp["s3_key"] = summary.S3Key
	}
	if summary.RecordCount == 0 {
		resp["message"] = "Export written but database is empty"
	}
	ctx.JSON(http.StatusOK, resp)
}

// ImportCheckouts handles POST /api/checkouts/import. The body is optional;
// skip_duplicates defaults to true. An import cut short (for example by the
// request deadline) still reports the rows it committed, with success false.
func (cc *CheckoutController) ImportCheckouts(ctx *gin.Context) {
	var req models.ImportRequest
	if ctx.Request.ContentLength != 0 {
		body := http.MaxBytesReader(ctx.Writer, ctx.Request.Body, MaxBodyBytes)
		if err := decodeJSON(body, &req); err != nil && !errors.Is(err, io.EOF) {
			abortDecode(ctx, err)
			return
		}
	}
	opts := tabular.ImportOptions{SkipDuplicates: true}
	if req.SkipDuplicates != nil {
		opts.SkipDuplicates = *req.SkipDuplicates
	}

	report, err := cc.checkoutService.ImportAll(ctx.Request.Context(), req.FilePath, opts)
	var malformed *tabular.MalformedFileError
	switch {
	case errors.Is(err, tabular.ErrFileNotFound):
		apperrors.Abort(ctx, apperrors.New(http.StatusNotFound, "Import file not found", err).WithDetail(err.Error()))
		return
	case errors.As(err, &malformed):
		apperrors.Abort(ctx, apperrors.New(http.StatusUnprocessableEntity, "Malformed import file", err).WithDetail(malformed.Error()))
		return
	case err != nil && report != nil:
		ctx.JSON(http.StatusOK, gin.H{
			"success":     false,
			"interrupted": true,
			"message":     "Import interrupted; rows counted as imported were committed. Retry with skip_duplicates to resume.",
			"file_path":   report.FilePath,
			"imported":    report.Imported,
			"skipped":     report.Skipped,
			"errors":      report.Errors,
		})
		return
	case err != nil:
		_ = ctx.Error(apperrors.New(http.StatusInternalServerError, "Import failed", err))
		return
	}

	resp := gin.H{
		"success":   true,
		"file_path": report.FilePath,
		"imported":  report.Imported,
		"skipped":   report.Skipped,
		"errors":    report.Errors,
	}
	if report.ID != "" {
		resp["report_id"] = report.ID
	}
	ctx.JSON(http.StatusOK, resp)
}

// GetImportReport handles GET /api/checkouts/import/:id
func (cc *CheckoutController) GetImportReport(ctx *gin.Context) {
	report, err := cc.checkoutService.GetImportReport(ctx.Request.Context(), ctx.Param("id"))
	if errors.Is(err, services.ErrReportNotFound) {
		apperrors.Abort(ctx, apperrors.New(http.StatusNotFound, "Import report not found", err))
		return
	}
	if err != nil {
		_ = ctx.Error(apperrors.New(http.StatusInternalServerError, "Failed to load import report", err))
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"success": true, "report": report})
}
