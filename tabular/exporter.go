package tabular

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"checkout-service/models"
)

// Lister is the read side of the record store used by exports.
type Lister interface {
	ListAll(ctx context.Context) ([]models.Checkout, error)
}

// ExportResult describes a written export file.
type ExportResult struct {
	Path    string
	Size    int64
	Records int
}

// Exporter snapshots the store into a tabular file.
type Exporter struct {
	store Lister
}

func NewExporter(store Lister) *Exporter {
	return &Exporter{store: store}
}

// ExportAll writes a header row plus one row per stored record, ordered by
// id, replacing any file at path. The file is written beside path and
// renamed into place, so readers see either the old or the new export.
// Records inserted while the export runs may or may not be included.
func (e *Exporter) ExportAll(ctx context.Context, path string) (*ExportResult, error) {
	checkouts, err := e.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list checkouts: %w", err)
	}

	rows := make([][]string, 0, len(checkouts))
	for _, c := range checkouts {
		rows = append(rows, record(c))
	}

	write := writeCSV
	if FormatFromPath(path) == FormatXLSX {
		write = writeXLSX
	}

	size, err := replaceFile(path, func(w io.Writer) error { return write(w, rows) })
	if err != nil {
		return nil, err
	}
	return &ExportResult{Path: path, Size: size, Records: len(rows)}, nil
}

func replaceFile(path string, write func(io.Writer) error) (int64, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create export directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".export-*.tmp")
	if err != nil {
		return 0, fmt.Errorf("create export file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck

	if err := write(tmp); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("write export file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("sync export file: %w", err)
	}
	info, err := tmp.Stat()
	if err != nil {
		tmp.Close()
		return 0, fmt.Errorf("stat export file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close export file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return 0, fmt.Errorf("chmod export file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return 0, fmt.Errorf("replace export file: %w", err)
	}
	return info.Size(), nil
}
