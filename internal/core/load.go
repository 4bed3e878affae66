package core

// load.go reads a CSV file into a Table.
//
// The file is decoded as UTF-8 first. Only when the bytes are not valid
// UTF-8 is it decoded again as Windows-1251, the legacy single-byte Cyrillic
// code page. Parse and structure errors are never retried.

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Encodings reported by LoadTable.
const (
	EncodingUTF8        = "utf-8"
	EncodingWindows1251 = "windows-1251"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// undefined1251 is the only byte Windows-1251 leaves unmapped. x/text
// decodes it to U+FFFD instead of failing, so it is rejected up front.
const undefined1251 = 0x98

// LoadTable reads the CSV file at path. maxSize limits the file size in
// bytes; zero or negative disables the limit. It returns the table and the
// encoding that decoded it.
func LoadTable(path string, maxSize int64) (*Table, string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", &LoadError{Path: path, Err: fmt.Errorf("file not found: %w", err)}
		}
		return nil, "", &LoadError{Path: path, Err: err}
	}
	if info.IsDir() {
		return nil, "", &LoadError{Path: path, Err: errors.New("invalid csv: path is a directory")}
	}
	if maxSize > 0 && info.Size() > maxSize {
		return nil, "", &LoadError{Path: path, Err: fmt.Errorf("file too large: %d bytes exceeds %d", info.Size(), maxSize)}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", &LoadError{Path: path, Err: err}
	}

	table, enc, err := decodeTable(data)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.Path = path
		}
		return nil, enc, err
	}
	return table, enc, nil
}

// decodeTable picks the encoding and parses data.
func decodeTable(data []byte) (*Table, string, error) {
	if utf8.Valid(data) {
		table, err := parseTable(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
		if err != nil {
			return nil, EncodingUTF8, wrapParseError(err, EncodingUTF8)
		}
		return table, EncodingUTF8, nil
	}

	if i := bytes.IndexByte(data, undefined1251); i >= 0 {
		return nil, EncodingWindows1251, &LoadError{
			Encoding: EncodingWindows1251,
			Err:      fmt.Errorf("encoding error: not valid UTF-8 or Windows-1251: undefined byte 0x%X at offset %d", undefined1251, i),
		}
	}

	decoded, err := charmap.Windows1251.NewDecoder().Bytes(data)
	if err != nil {
		return nil, EncodingWindows1251, &LoadError{
			Encoding: EncodingWindows1251,
			Err:      fmt.Errorf("encoding error: not valid UTF-8 or Windows-1251: %w", err),
		}
	}
	table, err := parseTable(bytes.NewReader(decoded))
	if err != nil {
		return nil, EncodingWindows1251, wrapParseError(err, EncodingWindows1251)
	}
	return table, EncodingWindows1251, nil
}

// wrapParseError leaves AnalysisError untouched and turns anything else into
// a LoadError.
func wrapParseError(err error, enc string) error {
	var ae *AnalysisError
	if errors.As(err, &ae) {
		return err
	}
	return &LoadError{Encoding: enc, Err: err}
}

// parseTable reads comma-separated records with a header row. Blank lines
// are skipped, short rows are padded with missing cells and long rows are
// rejected.
func parseTable(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, &AnalysisError{Reason: "file has no header row (0 columns)"}
	}
	if err != nil {
		return nil, fmt.Errorf("invalid csv: %w", err)
	}

	table := &Table{Columns: make([]Column, len(header))}
	for i, name := range header {
		table.Columns[i] = Column{Name: name}
	}

	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("invalid csv: %w", err)
		}
		if len(record) > len(header) {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("invalid csv: line %d: expected %d fields, saw %d", line, len(header), len(record))
		}

		row := make([]Cell, len(header))
		for i := range row {
			if i >= len(record) {
				row[i] = Cell{Missing: true}
				continue
			}
			row[i] = Cell{Value: record[i], Missing: IsMissingValue(record[i])}
		}
		table.Rows = append(table.Rows, row)
	}

	table.inferKinds()
	return table, nil
}
