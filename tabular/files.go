package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet written to and preferred on read for XLSX files.
const SheetName = "checkouts"

func writeCSV(w io.Writer, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

func writeXLSX(w io.Writer, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return err
	}
	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return err
	}
	if err := sw.SetRow("A1", toCells(Header)); err != nil {
		return err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, toCells(row)); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}
	return f.Write(w)
}

// toCells keeps every value a string cell so card numbers never turn into
// floating point numbers in spreadsheet tools.
func toCells(row []string) []interface{} {
	cells := make([]interface{}, len(row))
	for i, v := range row {
		cells[i] = v
	}
	return cells
}

// rowSource yields the header and then one data row at a time. Next returns
// io.EOF after the last row; a *RowError reports a row that could not be
// decoded and does not stop the iteration.
type rowSource interface {
	Header() ([]string, error)
	Next() ([]string, error)
	Close() error
}

func openSource(path string) (rowSource, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("stat import file: %w", err)
	}
	if FormatFromPath(path) == FormatXLSX {
		return openXLSX(path)
	}
	return openCSV(path)
}

type csvSource struct {
	file *os.File
	r    *csv.Reader
	row  int
}

func openCSV(path string) (*csvSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open import file: %w", err)
	}
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	return &csvSource{file: f, r: r}, nil
}

func (s *csvSource) Header() ([]string, error) {
	h, err := s.r.Read()
	if errors.Is(err, io.EOF) {
		return nil, &MalformedFileError{Reason: "file has no header row"}
	}
	if err != nil {
		return nil, &MalformedFileError{Reason: err.Error()}
	}
	return h, nil
}

func (s *csvSource) Next() ([]string, error) {
	rec, err := s.r.Read()
	if errors.Is(err, io.EOF) {
		return nil, io.EOF
	}
	s.row++
	var perr *csv.ParseError
	if errors.As(err, &perr) {
		return nil, &RowError{Row: s.row, Err: perr.Err}
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *csvSource) Close() error { return s.file.Close() }

type xlsxSource struct {
	file  *excelize.File
	rows  *excelize.Rows
	row   int
	width int
}

func openXLSX(path string) (*xlsxSource, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &MalformedFileError{Reason: err.Error()}
	}
	sheet := SheetName
	if idx, _ := f.GetSheetIndex(SheetName); idx < 0 {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			f.Close()
			return nil, &MalformedFileError{Reason: "workbook has no sheets"}
		}
		sheet = sheets[0]
	}
	rows, err := f.Rows(sheet)
	if err != nil {
		f.Close()
		return nil, &MalformedFileError{Reason: err.Error()}
	}
	return &xlsxSource{file: f, rows: rows}, nil
}

func (s *xlsxSource) Header() ([]string, error) {
	if !s.rows.Next() {
		return nil, &MalformedFileError{Reason: "file has no header row"}
	}
	h, err := s.rows.Columns()
	if err != nil {
		return nil, &MalformedFileError{Reason: err.Error()}
	}
	s.width = len(h)
	return h, nil
}

// Next pads rows to the header width since excelize drops trailing empty
// cells.
func (s *xlsxSource) Next() ([]string, error) {
	if !s.rows.Next() {
		if err := s.rows.Error(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	s.row++
	cols, err := s.rows.Columns()
	if err != nil {
		return nil, &RowError{Row: s.row, Err: err}
	}
	for len(cols) < s.width {
		cols = append(cols, "")
	}
	return cols, nil
}

func (s *xlsxSource) Close() error {
	rerr := s.rows.Close()
	if err := s.file.Close(); err != nil {
		return err
	}
	return rerr
}
