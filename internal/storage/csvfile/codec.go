package csvfile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"ledger/internal/core"
)

// Column names of the current layout, in file order.
const (
	ColDate     = "date"
	ColKind     = "kind"
	ColCategory = "category"
	ColAmount   = "amount"
	ColNote     = "note"
	ColImageRef = "image_ref"
	ColID       = "id"
)

// Header is the current layout.
var Header = []string{ColDate, ColKind, ColCategory, ColAmount, ColNote, ColImageRef, ColID}

// headerAliases maps header cells, lower-cased, to column names. The
// localized names are those of files written by the first versions of
// the ledger.
var headerAliases = map[string]string{
	"date":      ColDate,
	"日期":        ColDate,
	"kind":      ColKind,
	"type":      ColKind,
	"類型":        ColKind,
	"category":  ColCategory,
	"類別":        ColCategory,
	"amount":    ColAmount,
	"金額":        ColAmount,
	"note":      ColNote,
	"notes":     ColNote,
	"備註":        ColNote,
	"image_ref": ColImageRef,
	"image":     ColImageRef,
	"圖片":        ColImageRef,
	"id":        ColID,
}

const utf8BOM = "\ufeff"

// columns maps a column name to its index in the file's header.
type columns map[string]int

func parseHeader(row []string) (columns, []string) {
	cols := make(columns, len(row))
	var unknown []string
	for i, cell := range row {
		if i == 0 {
			cell = strings.TrimPrefix(cell, utf8BOM)
		}
		name, ok := headerAliases[strings.ToLower(strings.TrimSpace(cell))]
		if !ok {
			unknown = append(unknown, cell)
			continue
		}
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	return cols, unknown
}

func (c columns) has(name string) bool {
	_, ok := c[name]
	return ok
}

// get returns the raw cell of name, or "" when the column is absent or
// the row is short.
func (c columns) get(row []string, name string) string {
	i, ok := c[name]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

func (c columns) require(names ...string) error {
	for _, n := range names {
		if !c.has(n) {
			return fmt.Errorf("%w: header has no %q column", core.ErrIntegrity, n)
		}
	}
	return nil
}

// inHeaderOrder reports whether every Header column sits at its own index.
func (c columns) inHeaderOrder() bool {
	for i, n := range Header {
		if j, ok := c[n]; !ok || j != i {
			return false
		}
	}
	return true
}

func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	return cr
}

// readRecords decodes a whole ledger file. width is the column count of
// its header, 0 for an empty file.
func readRecords(r io.Reader) (records []core.Record, width int, err error) {
	cr := newReader(r)
	head, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("%w: header: %v", core.ErrMalformedRow, err)
	}
	cols, _ := parseHeader(head)
	if err := cols.require(ColDate, ColCategory, ColAmount); err != nil {
		return nil, len(head), err
	}

	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			line := 0
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				line = pe.Line
			}
			return nil, len(head), core.MalformedRowError(line, "csv", err)
		}
		line, _ := cr.FieldPos(0)
		if blank(row) {
			continue
		}
		rec, err := decodeRecord(cols, row, line)
		if err != nil {
			return nil, len(head), err
		}
		records = append(records, rec)
	}
	return records, len(head), nil
}

func decodeRecord(cols columns, row []string, line int) (core.Record, error) {
	date, err := core.ParseDate(cols.get(row, ColDate))
	if err != nil {
		return core.Record{}, core.MalformedRowError(line, ColDate, err)
	}

	kind := core.Expense
	if cols.has(ColKind) {
		if kind, err = core.ParseKind(cols.get(row, ColKind)); err != nil {
			return core.Record{}, core.MalformedRowError(line, ColKind, err)
		}
	}

	amount, err := core.ParseStoredAmount(cols.get(row, ColAmount))
	if err != nil {
		return core.Record{}, core.MalformedRowError(line, ColAmount, err)
	}

	return core.Record{
		ID:       strings.TrimSpace(cols.get(row, ColID)),
		Date:     date,
		Kind:     kind,
		Category: cols.get(row, ColCategory),
		Amount:   amount,
		Note:     cols.get(row, ColNote),
		ImageRef: cols.get(row, ColImageRef),
	}, nil
}

func encodeRecord(r core.Record) []string {
	return []string{
		r.Date.String(),
		r.Kind.String(),
		r.Category,
		r.Amount.Text(),
		r.Note,
		r.ImageRef,
		r.ID,
	}
}

// writeRecords writes the current header followed by records.
func writeRecords(w io.Writer, records []core.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write(encodeRecord(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
